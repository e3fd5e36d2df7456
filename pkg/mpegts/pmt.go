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

// Pmt
//
// ----------------------------------------
// Program Map Table
// <iso13818-1.pdf> <2.4.4.8> <page 64/174>
// table_id                 [8b]  *
// section_syntax_indicator [1b]
// 0                        [1b]
// reserved                 [2b]
// section_length           [12b] **
// program_number           [16b] **
// reserved                 [2b]
// version_number           [5b]
// current_next_indicator   [1b]  *
// section_number           [8b]  *
// last_section_number      [8b]  *
// reserved                 [3b]
// PCR_PID                  [13b] **
// reserved                 [4b]
// program_info_length      [12b] **
// -----loop-----
// stream_type              [8b]  *
// reserved                 [3b]
// elementary_PID           [13b] **
// reserved                 [4b]
// ES_info_length_length    [12b] **
// --------------
// CRC32                    [32b] ****
// ----------------------------------------
//
type Pmt struct {
	ProgramNumber      uint16
	VersionNumber      uint8
	CurrentNext        uint8
	PcrPid             uint16
	ProgramDescriptors []Descriptor
	ProgramElements    []PmtProgramElement
	Crc32              uint32
}

type PmtProgramElement struct {
	StreamType  uint8
	Pid         uint16
	Descriptors []Descriptor
}

// ParsePmt
//
// @param b: 从table_id开始的一个完整section
//
func ParsePmt(b []byte) (pmt Pmt, err error) {
	sl, err := checkSection(b, TsPsiIdPms, 13)
	if err != nil {
		return
	}
	end := 3 + int(sl) - 4 // 不包含crc

	pmt.ProgramNumber = bele.BeUint16(b[3:])
	br := nazabits.NewBitReader(b[5:12])
	_, _ = br.ReadBits8(2)
	pmt.VersionNumber, _ = br.ReadBits8(5)
	pmt.CurrentNext, _ = br.ReadBits8(1)
	_, _ = br.ReadBits8(8)
	_, _ = br.ReadBits8(8)
	_, _ = br.ReadBits8(3)
	pmt.PcrPid, _ = br.ReadBits16(13)
	_, _ = br.ReadBits8(4)
	pil, _ := br.ReadBits16(12)

	pos := 12
	if pos+int(pil) > end {
		return pmt, base.ErrMpegtsSection
	}
	pmt.ProgramDescriptors = parseDescriptors(b[pos : pos+int(pil)])
	pos += int(pil)

	for pos+5 <= end {
		var ppe PmtProgramElement
		ppe.StreamType = b[pos]
		ppe.Pid = bele.BeUint16(b[pos+1:]) & 0x1fff
		length := int(bele.BeUint16(b[pos+3:]) & 0x0fff)
		pos += 5
		if pos+length > end {
			return pmt, base.ErrMpegtsSection
		}
		ppe.Descriptors = parseDescriptors(b[pos : pos+length])
		pos += length
		pmt.ProgramElements = append(pmt.ProgramElements, ppe)
	}
	pmt.Crc32 = bele.BeUint32(b[end:])
	return
}

func (pmt *Pmt) SearchPid(pid uint16) *PmtProgramElement {
	for i := range pmt.ProgramElements {
		if pmt.ProgramElements[i].Pid == pid {
			return &pmt.ProgramElements[i]
		}
	}
	return nil
}

// Pack 序列化为包含pointer_field的section，CRC重新计算
func (pmt *Pmt) Pack() []byte {
	psi := NewPsi()
	psi.sectionData.header.tableId = TsPsiIdPms
	psi.sectionData.header.sectionSyntaxIndicator = 1
	psi.sectionData.section.tableIdExtension = pmt.ProgramNumber
	psi.sectionData.section.versionNumber = pmt.VersionNumber
	psi.sectionData.section.currentNextIndicator = 1
	psi.sectionData.pmtData.pcrPid = pmt.PcrPid
	psi.sectionData.pmtData.programDescriptors = pmt.ProgramDescriptors
	psi.sectionData.pmtData.pes = pmt.ProgramElements
	_, b := psi.Pack()
	return b
}

// NormalizedStreamType
//
// 欧洲DVB流中，AC3等音频使用私有流类型0x06加描述符的方式声明，这里统一映射成ATSC中的stream_type，
// 方便后续按stream_type分类
//
func (ppe *PmtProgramElement) NormalizedStreamType() uint8 {
	for _, d := range ppe.Descriptors {
		switch d.Tag {
		case DescriptorTagAC3:
			if ppe.StreamType == StreamTypePrivateData {
				return StreamTypeAc3
			}
		case DescriptorTagEnhancedAC3:
			if ppe.StreamType == StreamTypePrivateData {
				return StreamTypeEac3
			}
		case DescriptorTagDts:
			if ppe.StreamType == StreamTypePrivateData {
				return StreamTypeDts
			}
		case DescriptorTagRegistration:
			if st, ok := registrationStreamType[d.Registration.FormatIdentifier]; ok {
				if ppe.StreamType == StreamTypePrivateData || ppe.StreamType == st {
					return st
				}
			}
		}
	}
	return ppe.StreamType
}

// registration_descriptor中format_identifier到stream_type的映射
var registrationStreamType = map[uint32]uint8{
	0x41432d33: StreamTypeAc3,  // AC-3
	0x45414333: StreamTypeEac3, // EAC3
	0x44545331: StreamTypeDts,  // DTS1
	0x44545332: StreamTypeDts,  // DTS2
	0x44545333: StreamTypeDts,  // DTS3
	0x48455643: StreamTypeH265, // HEVC
	0x56432d31: StreamTypeVc1,  // VC-1
}
