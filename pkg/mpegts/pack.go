// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

// Frame 一个ES帧，用于打包成PES以及TS packet
type Frame struct {
	Pts uint64 // 单位 1/90000 秒
	Dts uint64
	Cc  uint8 // 输入为上一个packet使用的continuity_counter，Pack后更新为最后一个packet使用的值

	Pid uint16
	Sid uint8 // PES stream_id

	// Key 为true时，首个packet的adaptation中设置random_access_indicator，并携带PCR(取值Dts)
	Key bool

	// NoPts 为true时，PES头中不写PTS、DTS
	NoPts bool

	Raw []byte
}

// Pack 打包成TS packet
//
// @return: 内存块为独立申请，调用结束后，内部不再持有
//
func (frame *Frame) Pack() []byte {
	var out []byte
	pesHeader := frame.packPesHeader()

	lpos := 0
	first := true
	for first || lpos < len(frame.Raw) {
		packet := make([]byte, PacketSize)
		frame.Cc = (frame.Cc + 1) & 0x0f

		packet[0] = syncByte
		packet[1] = uint8(frame.Pid>>8) & 0x1f
		if first {
			packet[1] |= 0x40 // payload_unit_start_indicator
		}
		packet[2] = uint8(frame.Pid)
		packet[3] = 0x10 | frame.Cc

		// adaptation，首个packet的关键帧才有
		var adaptation []byte
		if first && frame.Key {
			adaptation = make([]byte, 8)
			adaptation[0] = 7    // adaptation_field_length
			adaptation[1] = 0x50 // random_access_indicator + PCR_flag
			packPcr(adaptation[2:], frame.Dts)
		}

		var header []byte
		if first {
			header = pesHeader
		}

		avail := PacketSize - 4 - len(adaptation) - len(header)
		n := len(frame.Raw) - lpos
		if n > avail {
			n = avail
		}

		// 剩余空间放入adaptation的stuffing中
		if stuff := avail - n; stuff > 0 {
			adaptation = stuffAdaptation(adaptation, stuff)
		}
		if len(adaptation) > 0 {
			packet[3] |= 0x20
		}

		wpos := 4
		wpos += copy(packet[wpos:], adaptation)
		wpos += copy(packet[wpos:], header)
		copy(packet[wpos:], frame.Raw[lpos:lpos+n])
		lpos += n

		out = append(out, packet...)
		first = false
	}
	return out
}

// ----- private -------------------------------------------------------------------------------------------------------

func (frame *Frame) packPesHeader() []byte {
	flags := uint8(0x80)
	headerSize := uint8(5)
	if frame.NoPts {
		flags = 0
		headerSize = 0
	} else if frame.Dts != frame.Pts {
		flags |= 0x40
		headerSize += 5
	}

	h := make([]byte, 9+int(headerSize))
	h[2] = 0x01 // packet_start_code_prefix
	h[3] = frame.Sid

	pesSize := len(frame.Raw) + 3 + int(headerSize)
	if pesSize > 0xffff {
		pesSize = 0
	}
	h[4] = uint8(pesSize >> 8)
	h[5] = uint8(pesSize)
	h[6] = 0x80 // '10'
	h[7] = flags
	h[8] = headerSize
	if flags&0x80 != 0 {
		packPts(h[9:], flags>>6, frame.Pts)
	}
	if flags&0x40 != 0 {
		packPts(h[14:], 1, frame.Dts)
	}
	return h
}

// stuffAdaptation 在adaptation尾部增加stuff个字节的填充
func stuffAdaptation(adaptation []byte, stuff int) []byte {
	if len(adaptation) == 0 {
		// 新建adaptation，自身的length字段占用1字节
		adaptation = make([]byte, stuff)
		adaptation[0] = uint8(stuff - 1)
		if stuff >= 2 {
			adaptation[1] = 0 // flags
			for i := 2; i < stuff; i++ {
				adaptation[i] = 0xff
			}
		}
		return adaptation
	}
	for i := 0; i < stuff; i++ {
		adaptation = append(adaptation, 0xff)
	}
	adaptation[0] += uint8(stuff)
	return adaptation
}

func packPcr(out []byte, pcr uint64) {
	out[0] = uint8(pcr >> 25)
	out[1] = uint8(pcr >> 17)
	out[2] = uint8(pcr >> 9)
	out[3] = uint8(pcr >> 1)
	out[4] = uint8(pcr<<7) | 0x7e
	out[5] = 0
}

// packPts 注意，除PTS外，DTS也使用这个函数打包
func packPts(out []byte, fb uint8, pts uint64) {
	var val uint64
	out[0] = (fb << 4) | (uint8(pts>>29) & 0x0e) | 1

	val = (((pts >> 15) & 0x7FFF) << 1) | 1
	out[1] = uint8(val >> 8)
	out[2] = uint8(val)

	val = ((pts & 0x7FFF) << 1) | 1
	out[3] = uint8(val >> 8)
	out[4] = uint8(val)
}
