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
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabits"
)

// ---------------------------------------------------------------------------------------------------
// Program association section
// <iso13818-1.pdf> <2.4.4.3> <page 61/174>
// table_id                 [8b] *
// section_syntax_indicator [1b]
// '0'                      [1b]
// reserved                 [2b]
// section_length           [12b] **
// transport_stream_id      [16b] **
// reserved                 [2b]
// version_number           [5b]
// current_next_indicator   [1b]  *
// section_number           [8b]  *
// last_section_number      [8b]  *
// -----loop-----
// program_number           [16b] **
// reserved                 [3b]
// program_map_PID          [13b] ** if program_number == 0 then network_PID else then program_map_PID
// --------------
// CRC_32                   [32b] ****
// ---------------------------------------------------------------------------------------------------
type Pat struct {
	TransportStreamId uint16
	VersionNumber     uint8
	CurrentNext       uint8
	SectionNumber     uint8
	LastSectionNumber uint8
	ProgramElements   []PatProgramElement
	Crc32             uint32
}

type PatProgramElement struct {
	ProgramNumber uint16
	Pid           uint16 // program_number为0时，是network_PID
}

// ParsePat
//
// @param b: 从table_id开始的一个完整section，即不包含pointer_field
//
func ParsePat(b []byte) (pat Pat, err error) {
	sl, err := checkSection(b, TsPsiIdPas, 9)
	if err != nil {
		return
	}

	br := nazabits.NewBitReader(b[3:])
	pat.TransportStreamId, _ = br.ReadBits16(16)
	_, _ = br.ReadBits8(2)
	pat.VersionNumber, _ = br.ReadBits8(5)
	pat.CurrentNext, _ = br.ReadBits8(1)
	pat.SectionNumber, _ = br.ReadBits8(8)
	pat.LastSectionNumber, _ = br.ReadBits8(8)

	length := int(sl) - 9
	for i := 0; i+4 <= length; i += 4 {
		var ppe PatProgramElement
		ppe.ProgramNumber, _ = br.ReadBits16(16)
		_, _ = br.ReadBits8(3)
		ppe.Pid, _ = br.ReadBits16(13)
		pat.ProgramElements = append(pat.ProgramElements, ppe)
	}
	pat.Crc32, _ = br.ReadBits32(32)
	return
}

// SearchPid pid是否为PAT中某个节目的PMT pid
func (pat *Pat) SearchPid(pid uint16) bool {
	for _, ppe := range pat.ProgramElements {
		if ppe.ProgramNumber != 0 && pid == ppe.Pid {
			return true
		}
	}
	return false
}

// SearchProgram 查找节目号对应的PMT pid
func (pat *Pat) SearchProgram(programNumber uint16) (pid uint16, ok bool) {
	for _, ppe := range pat.ProgramElements {
		if ppe.ProgramNumber != 0 && ppe.ProgramNumber == programNumber {
			return ppe.Pid, true
		}
	}
	return 0, false
}

// ProgramCount 不包含network_PID那一项
func (pat *Pat) ProgramCount() int {
	n := 0
	for _, ppe := range pat.ProgramElements {
		if ppe.ProgramNumber != 0 {
			n++
		}
	}
	return n
}

// NewSingleProgramPat 生成只包含一个节目的PAT
func NewSingleProgramPat(tsid uint16, version uint8, programNumber uint16, pmtPid uint16) *Pat {
	return &Pat{
		TransportStreamId: tsid,
		VersionNumber:     version & 0x1f,
		CurrentNext:       1,
		ProgramElements: []PatProgramElement{
			{ProgramNumber: programNumber, Pid: pmtPid},
		},
	}
}

// Pack 序列化为包含pointer_field的section，CRC重新计算
func (pat *Pat) Pack() []byte {
	psi := NewPsi()
	psi.sectionData.header.tableId = TsPsiIdPas
	psi.sectionData.header.sectionSyntaxIndicator = 1
	psi.sectionData.section.tableIdExtension = pat.TransportStreamId
	psi.sectionData.section.versionNumber = pat.VersionNumber
	psi.sectionData.section.currentNextIndicator = 1
	psi.sectionData.patData.pes = pat.ProgramElements
	_, b := psi.Pack()
	return b
}

// ----- private -------------------------------------------------------------------------------------------------------

// checkSection 检查section的table_id、长度以及CRC
//
// @param minSl: section_length的最小合法值
//
// @return sl: section_length
//
func checkSection(b []byte, tid uint8, minSl uint16) (sl uint16, err error) {
	if len(b) < 3 {
		return 0, base.NewErrShortBuffer(3, len(b), "psi section header")
	}
	if b[0] != tid {
		return 0, base.NewErrMpegtsTableId(tid, b[0])
	}
	sl = uint16(b[1]&0x0f)<<8 | uint16(b[2])
	if sl < minSl {
		return 0, base.ErrMpegtsSection
	}
	if len(b) < 3+int(sl) {
		return 0, base.NewErrShortBuffer(3+int(sl), len(b), "psi section")
	}
	if !VerifySectionCrc32(b[:3+int(sl)]) {
		expected := CalcCrc32(0xffffffff, b[:3+int(sl)-4])
		actual := bele.BeUint32(b[3+int(sl)-4:])
		return 0, base.NewErrMpegtsCrc(expected, actual)
	}
	return sl, nil
}
