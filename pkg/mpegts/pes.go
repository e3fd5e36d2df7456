// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/naza/pkg/nazabits"
)

// -----------------------------------------------------------
// <iso13818-1.pdf>
// <2.4.3.6 PES packet> <page 49/174>
// <Table E.1 - PES packet header example> <page 142/174>
// <F.0.2 PES packet> <page 144/174>
// packet_start_code_prefix  [24b] *** always 0x00, 0x00, 0x01
// stream_id                 [8b]  *
// PES_packet_length         [16b] **
// '10'                      [2b]
// PES_scrambling_control    [2b]
// PES_priority              [1b]
// data_alignment_indicator  [1b]
// copyright                 [1b]
// original_or_copy          [1b]  *
// PTS_DTS_flags             [2b]
// ESCR_flag                 [1b]
// ES_rate_flag              [1b]
// DSM_trick_mode_flag       [1b]
// additional_copy_info_flag [1b]
// PES_CRC_flag              [1b]
// PES_extension_flag        [1b]  *
// PES_header_data_length    [8b]  *
// -----------------------------------------------------------
type Pes struct {
	Sid        uint8
	Ppl        uint16 // PES_packet_length, 视频流中可能为0
	PtsDtsFlag uint8
	Phdl       uint8 // PES_header_data_length

	// 没有时为-1
	Pts int64
	Dts int64
}

// ParsePes
//
// @param b: 从packet_start_code_prefix开始
//
// @return length: PES头部的长度，即ES数据在 b 中的起始位置
//
func ParsePes(b []byte) (pes Pes, length int, err error) {
	pes.Pts = -1
	pes.Dts = -1

	if len(b) < 6 {
		return pes, 0, base.NewErrShortBuffer(6, len(b), "pes header")
	}
	if b[0] != 0 || b[1] != 0 || b[2] != 1 {
		return pes, 0, base.ErrMpegtsNotPes
	}

	br := nazabits.NewBitReader(b[3:])
	pes.Sid, _ = br.ReadBits8(8)
	pes.Ppl, _ = br.ReadBits16(16)
	if !HasPesOptionalHeader(pes.Sid) {
		return pes, 6, nil
	}

	if len(b) < 9 {
		return pes, 0, base.NewErrShortBuffer(9, len(b), "pes optional header")
	}
	_, _ = br.ReadBits8(8)
	pes.PtsDtsFlag, _ = br.ReadBits8(2)
	_, _ = br.ReadBits8(6)
	pes.Phdl, _ = br.ReadBits8(8)
	length = 9 + int(pes.Phdl)

	if pes.PtsDtsFlag&0x2 != 0 && len(b) < 14 {
		return pes, 0, base.NewErrShortBuffer(14, len(b), "pes pts")
	}
	if pes.PtsDtsFlag == 0x3 && len(b) < 19 {
		return pes, 0, base.NewErrShortBuffer(19, len(b), "pes dts")
	}
	pes.Pts, pes.Dts = ParsePesTimestamps(b[4:])
	return
}

// ParsePesTimestamps 读取PES头中的PTS和DTS
//
// @param b: 从PES_packet_length开始，即stream_id之后的数据。录制时PES头可能只有一部分在当前packet中
//
// @return 没有或者数据不足时为-1
//
func ParsePesTimestamps(b []byte) (pts, dts int64) {
	pts, dts = -1, -1
	if len(b) < 4 {
		return
	}
	flags := b[3] & 0xc0
	if flags&0x80 == 0 || len(b) < 10 {
		return
	}
	pts = readTimestamp(b[5:])
	if flags == 0xc0 && len(b) >= 15 {
		dts = readTimestamp(b[10:])
	}
	return
}

// PesHeaderDataLength 只读取PES_header_data_length字段，用于快速跳过PES头
//
// @return ok: b中的数据不足以读取该字段，或者不是PES头时为false
//
func PesHeaderDataLength(b []byte) (hdl int, ok bool) {
	if len(b) < 9 || b[0] != 0 || b[1] != 0 || b[2] != 1 {
		return 0, false
	}
	return int(b[8]), true
}

// readTimestamp 读取5字节的pts或dts，33位，中间穿插marker_bit
func readTimestamp(b []byte) int64 {
	var ts uint64
	ts |= uint64((b[0]>>1)&0x07) << 30
	ts |= (uint64(b[1])<<8 | uint64(b[2])) >> 1 << 15
	ts |= (uint64(b[3])<<8 | uint64(b[4])) >> 1
	return int64(ts)
}
