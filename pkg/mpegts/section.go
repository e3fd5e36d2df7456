// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

// maxSectionSize PSI section最大为 3 + 1021 字节，私有section可到 3 + 4093
const maxSectionSize = 4096

// OnSection 回调一个完整的section，从table_id开始，包含尾部CRC_32
//
// 回调结束后，内部不再持有 section 内存块
type OnSection func(pid uint16, section []byte)

// SectionAssembler 把一个pid上的TS packet payload组装成完整的PSI section
//
// 处理了以下情况：
// - pointer_field 指向的上一个section的剩余部分
// - 一个section跨多个TS packet
// - 一个TS packet中包含多个section，以及尾部0xFF填充
//
type SectionAssembler struct {
	pid       uint16
	buf       []byte
	started   bool
	onSection OnSection
}

func NewSectionAssembler(pid uint16, onSection OnSection) *SectionAssembler {
	return &SectionAssembler{
		pid:       pid,
		onSection: onSection,
	}
}

func (a *SectionAssembler) Pid() uint16 {
	return a.pid
}

// Feed
//
// @param pkt: pid需要和 SectionAssembler 的pid一致
//
func (a *SectionAssembler) Feed(pkt TsPacket) {
	payload := pkt.Payload()
	if len(payload) == 0 {
		return
	}

	if pkt.PayloadUnitStart() {
		pointer := int(payload[0])
		payload = payload[1:]
		if pointer > len(payload) {
			Log.Warnf("invalid pointer field. pid=%d, pointer=%d", a.pid, pointer)
			a.Reset()
			return
		}
		if a.started && pointer > 0 {
			a.buf = append(a.buf, payload[:pointer]...)
			a.drain()
		}
		a.buf = append(a.buf[:0], payload[pointer:]...)
		a.started = true
	} else {
		if !a.started {
			return
		}
		a.buf = append(a.buf, payload...)
	}

	a.drain()
	if len(a.buf) > maxSectionSize {
		Log.Warnf("section too large, drop it. pid=%d, len=%d", a.pid, len(a.buf))
		a.Reset()
	}
}

// Reset 丢弃未完成的section，比如检测到continuity_counter不连续时
func (a *SectionAssembler) Reset() {
	a.buf = a.buf[:0]
	a.started = false
}

func (a *SectionAssembler) drain() {
	for len(a.buf) >= 3 {
		if a.buf[0] == 0xff {
			// 剩余都是填充
			a.Reset()
			return
		}
		sl := int(a.buf[1]&0x0f)<<8 | int(a.buf[2])
		total := 3 + sl
		if len(a.buf) < total {
			return
		}
		a.onSection(a.pid, a.buf[:total])
		a.buf = a.buf[total:]
	}
}
