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

// ------------------------------------------------
// <iso13818-1.pdf> <2.4.3.2> <page 36/174>
// sync_byte                    [8b]  * always 0x47
// transport_error_indicator    [1b]
// payload_unit_start_indicator [1b]
// transport_priority           [1b]
// PID                          [13b] **
// transport_scrambling_control [2b]
// adaptation_field_control     [2b]
// continuity_counter           [4b]  *
// ------------------------------------------------
type TsPacketHeader struct {
	Sync             uint8
	Err              uint8
	PayloadUnitStart uint8
	Prio             uint8
	Pid              uint16
	Scra             uint8
	Adaptation       uint8
	Cc               uint8
}

// ----------------------------------------------------------
// <iso13818-1.pdf> <Table 2-6> <page 40/174>
// adaptation_field_length              [8b] * 不包括自己这1字节
// discontinuity_indicator              [1b]
// random_access_indicator              [1b]
// elementary_stream_priority_indicator [1b]
// PCR_flag                             [1b]
// OPCR_flag                            [1b]
// splicing_point_flag                  [1b]
// transport_private_data_flag          [1b]
// adaptation_field_extension_flag      [1b] *
// -----if PCR_flag == 1-----
// program_clock_reference_base         [33b]
// reserved                             [6b]
// program_clock_reference_extension    [9b] ******
// ----------------------------------------------------------
type TsPacketAdaptation struct {
	Length        uint8
	Discontinuity uint8
	RandomAccess  uint8
	PcrFlag       uint8
	Pcr           uint64 // 只取base部分，单位 1/90000 秒
}

// ParseTsPacketHeader 解析4字节TS Packet header
func ParseTsPacketHeader(b []byte) (h TsPacketHeader) {
	br := nazabits.NewBitReader(b)
	h.Sync, _ = br.ReadBits8(8)
	h.Err, _ = br.ReadBits8(1)
	h.PayloadUnitStart, _ = br.ReadBits8(1)
	h.Prio, _ = br.ReadBits8(1)
	h.Pid, _ = br.ReadBits16(13)
	h.Scra, _ = br.ReadBits8(2)
	h.Adaptation, _ = br.ReadBits8(2)
	h.Cc, _ = br.ReadBits8(4)
	return
}

// ParseTsPacketAdaptation
//
// @param b: 从adaptation_field_length开始
//
func ParseTsPacketAdaptation(b []byte) (f TsPacketAdaptation) {
	br := nazabits.NewBitReader(b)
	f.Length, _ = br.ReadBits8(8)
	if f.Length == 0 {
		return
	}
	f.Discontinuity, _ = br.ReadBits8(1)
	f.RandomAccess, _ = br.ReadBits8(1)
	_, _ = br.ReadBits8(1)
	f.PcrFlag, _ = br.ReadBits8(1)
	_, _ = br.ReadBits8(4)
	if f.PcrFlag == 1 && f.Length >= 7 {
		high, _ := br.ReadBits32(32)
		low, _ := br.ReadBits8(1)
		f.Pcr = uint64(high)<<1 | uint64(low)
	}
	return
}

// ---------------------------------------------------------------------------------------------------------------------

// TsPacket 对一个188字节TS packet的只读视图
//
// 热路径上使用，所以字段直接从字节中按位取，不经过 nazabits
//
type TsPacket []byte

// NewTsPacket
//
// @param b: 函数调用结束后，返回值持有 b 的内存块
//
func NewTsPacket(b []byte) (TsPacket, error) {
	if len(b) < PacketSize {
		return nil, base.NewErrShortBuffer(PacketSize, len(b), "ts packet")
	}
	if b[0] != syncByte {
		return nil, base.ErrMpegtsSync
	}
	return TsPacket(b[:PacketSize]), nil
}

func (p TsPacket) Pid() uint16 {
	return uint16(p[1]&0x1f)<<8 | uint16(p[2])
}

func (p TsPacket) Cc() uint8 {
	return p[3] & 0x0f
}

func (p TsPacket) TransportError() bool {
	return p[1]&0x80 != 0
}

func (p TsPacket) PayloadUnitStart() bool {
	return p[1]&0x40 != 0
}

func (p TsPacket) Scrambled() bool {
	return p[3]&0xc0 != 0
}

// Afc adaptation_field_control
func (p TsPacket) Afc() uint8 {
	return (p[3] >> 4) & 0x3
}

func (p TsPacket) HasAdaptation() bool {
	return p[3]&0x20 != 0
}

func (p TsPacket) HasPayload() bool {
	return p[3]&0x10 != 0
}

// AfcOffset payload在packet中的起始位置
//
// 没有payload或adaptation长度非法时，返回 PacketSize
//
func (p TsPacket) AfcOffset() int {
	if !p.HasPayload() {
		return PacketSize
	}
	if !p.HasAdaptation() {
		return 4
	}
	offset := 5 + int(p[4])
	if offset > PacketSize {
		return PacketSize
	}
	return offset
}

func (p TsPacket) Payload() []byte {
	return p[p.AfcOffset():]
}

// RandomAccess adaptation中的random_access_indicator
func (p TsPacket) RandomAccess() bool {
	return p.HasAdaptation() && p[4] > 0 && p[5]&0x40 != 0
}

// Pcr 返回PCR的base部分
func (p TsPacket) Pcr() (pcr uint64, ok bool) {
	if !p.HasAdaptation() || p[4] < 7 || p[5]&0x10 == 0 {
		return 0, false
	}
	a := ParseTsPacketAdaptation(p[4:])
	return a.Pcr, true
}

func (p TsPacket) Header() TsPacketHeader {
	return ParseTsPacketHeader(p)
}
