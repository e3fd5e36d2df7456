// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package innertest

import (
	"github.com/q191201771/dtvrec/pkg/mpegts"
	"github.com/q191201771/naza/pkg/bele"
)

// 测试中使用的默认节目
const (
	ProgramNumber uint16 = 5
	PmtPid        uint16 = 0x100
	VideoPid      uint16 = 0x101
	AudioPid      uint16 = 0x102
	DataPid       uint16 = 0x103

	TransportStreamId uint16 = 1
)

// NewProgramPmt 生成 ProgramNumber 的PMT，stream type为0时不包含对应的流
func NewProgramPmt(videoStreamType uint8, audioStreamType uint8) *mpegts.Pmt {
	pmt := &mpegts.Pmt{
		ProgramNumber: ProgramNumber,
		CurrentNext:   1,
		PcrPid:        mpegts.PidNull,
	}
	if videoStreamType != 0 {
		pmt.PcrPid = VideoPid
		pmt.ProgramElements = append(pmt.ProgramElements, mpegts.PmtProgramElement{
			StreamType: videoStreamType,
			Pid:        VideoPid,
		})
	}
	if audioStreamType != 0 {
		if pmt.PcrPid == mpegts.PidNull {
			pmt.PcrPid = AudioPid
		}
		pmt.ProgramElements = append(pmt.ProgramElements, mpegts.PmtProgramElement{
			StreamType: audioStreamType,
			Pid:        AudioPid,
		})
	}
	return pmt
}

// TsStreamBuilder 构造ts流，按pid维护continuity_counter
type TsStreamBuilder struct {
	ccs map[uint16]uint8
	buf []byte
}

func NewTsStreamBuilder() *TsStreamBuilder {
	return &TsStreamBuilder{
		ccs: make(map[uint16]uint8),
	}
}

// WritePat
//
// @param programs: 节目号以及对应的PMT pid
//
func (b *TsStreamBuilder) WritePat(version uint8, programs ...mpegts.PatProgramElement) *TsStreamBuilder {
	pat := mpegts.Pat{
		TransportStreamId: TransportStreamId,
		VersionNumber:     version,
		CurrentNext:       1,
		ProgramElements:   programs,
	}
	return b.writeSection(mpegts.PidPat, pat.Pack())
}

func (b *TsStreamBuilder) WritePmt(pid uint16, pmt *mpegts.Pmt) *TsStreamBuilder {
	return b.writeSection(pid, pmt.Pack())
}

// WriteProgramTables 写入只包含 ProgramNumber 的PAT以及它的PMT
func (b *TsStreamBuilder) WriteProgramTables(pmt *mpegts.Pmt) *TsStreamBuilder {
	b.WritePat(0, mpegts.PatProgramElement{ProgramNumber: ProgramNumber, Pid: PmtPid})
	return b.WritePmt(PmtPid, pmt)
}

// WritePes
//
// @param key: 为true时首个ts包带random_access_indicator以及PCR
//
func (b *TsStreamBuilder) WritePes(pid uint16, sid uint8, pts, dts uint64, key bool, es []byte) *TsStreamBuilder {
	frame := mpegts.Frame{
		Pts: pts,
		Dts: dts,
		Cc:  b.lastCc(pid),
		Pid: pid,
		Sid: sid,
		Key: key,
		Raw: es,
	}
	b.buf = append(b.buf, frame.Pack()...)
	b.ccs[pid] = frame.Cc
	return b
}

// WritePesNoPts PES头中不带时间戳
func (b *TsStreamBuilder) WritePesNoPts(pid uint16, sid uint8, es []byte) *TsStreamBuilder {
	frame := mpegts.Frame{
		Cc:    b.lastCc(pid),
		Pid:   pid,
		Sid:   sid,
		NoPts: true,
		Raw:   es,
	}
	b.buf = append(b.buf, frame.Pack()...)
	b.ccs[pid] = frame.Cc
	return b
}

// WriteNull 写入一个空包
func (b *TsStreamBuilder) WriteNull() *TsStreamBuilder {
	pkt := make([]byte, mpegts.PacketSize)
	pkt[0] = 0x47
	pkt[1] = 0x1f
	pkt[2] = 0xff
	pkt[3] = 0x10
	for i := 4; i < len(pkt); i++ {
		pkt[i] = 0xff
	}
	b.buf = append(b.buf, pkt...)
	return b
}

// WriteRaw 原样写入，不修改continuity_counter
func (b *TsStreamBuilder) WriteRaw(pkts []byte) *TsStreamBuilder {
	b.buf = append(b.buf, pkts...)
	return b
}

// SkipCc 让pid的下一个包跳过n个continuity_counter，模拟丢包
func (b *TsStreamBuilder) SkipCc(pid uint16, n uint8) *TsStreamBuilder {
	b.ccs[pid] = (b.lastCc(pid) + n) & 0x0f
	return b
}

func (b *TsStreamBuilder) Bytes() []byte {
	return b.buf
}

// Packets 按188字节切分
func (b *TsStreamBuilder) Packets() [][]byte {
	return SplitTsPackets(b.buf)
}

// Reset 清空已生成的数据，continuity_counter继续累加
func (b *TsStreamBuilder) Reset() {
	b.buf = nil
}

func SplitTsPackets(b []byte) [][]byte {
	var ret [][]byte
	for i := 0; i+mpegts.PacketSize <= len(b); i += mpegts.PacketSize {
		ret = append(ret, b[i:i+mpegts.PacketSize])
	}
	return ret
}

// ----- program stream ------------------------------------------------------------------------------------------------

// PsPackHeader ISO/IEC 13818-1 2.5.3.3 Pack layer of program stream, 不带stuffing
func PsPackHeader() []byte {
	return []byte{0x00, 0x00, 0x01, 0xba, 0x44, 0x00, 0x04, 0x00, 0x04, 0x01, 0x01, 0x89, 0xc3, 0xf8}
}

// PsPes 生成带PTS的PES包，用于program stream
func PsPes(sid uint8, pts uint64, payload []byte) []byte {
	out := make([]byte, 14, 14+len(payload))
	out[0], out[1], out[2], out[3] = 0x00, 0x00, 0x01, sid
	bele.BePutUint16(out[4:], uint16(3+5+len(payload)))
	out[6] = 0x80
	out[7] = 0x80
	out[8] = 5
	putPts(out[9:], 0x20, pts)
	return append(out, payload...)
}

// PsPadding padding stream，n为PES_packet_length
func PsPadding(n int) []byte {
	out := make([]byte, 6+n)
	out[0], out[1], out[2], out[3] = 0x00, 0x00, 0x01, mpegts.StreamIdPadding
	bele.BePutUint16(out[4:], uint16(n))
	for i := 6; i < len(out); i++ {
		out[i] = 0xff
	}
	return out
}

func putPts(out []byte, fb uint8, pts uint64) {
	out[0] = fb | uint8(pts>>29)&0x0e | 0x01
	bele.BePutUint16(out[1:], uint16(pts>>14)&0xfffe|0x01)
	bele.BePutUint16(out[3:], uint16(pts<<1)&0xfffe|0x01)
}

func (b *TsStreamBuilder) lastCc(pid uint16) uint8 {
	cc, ok := b.ccs[pid]
	if !ok {
		return 0x0f
	}
	return cc
}

func (b *TsStreamBuilder) writeSection(pid uint16, section []byte) *TsStreamBuilder {
	cc := b.lastCc(pid)
	b.buf = append(b.buf, mpegts.PackSectionToTsPackets(pid, section, &cc)...)
	b.ccs[pid] = cc
	return b
}
