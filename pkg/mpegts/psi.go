// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabits"
)

// PsiId
const (
	TsPsiIdPas            = 0x00 // program_association_section
	TsPsiIdCas            = 0x01 // conditional_access_section (CA_section)
	TsPsiIdPms            = 0x02 // TS_program_map_section
	TsPsiIdDs             = 0x03 // TS_description_section
	TsPsiIdSds            = 0x04 // ISO_IEC_14496_scene_description_section
	TsPsiIdOds            = 0x05 // ISO_IEC_14496_object_descriptor_section
	TsPsiIdIso138181Start = 0x06 // ITU-T Rec. H.222.0 | ISO/IEC 13818-1 reserved
	TsPsiIdIso138181End   = 0x37
	TsPsiIdIso138186Start = 0x38 // Defined in ISO/IEC 13818-6
	TsPsiIdIso138186End   = 0x3F
	TsPsiIdUserStart      = 0x40 // User private
	TsPsiIdUserEnd        = 0xFE
	TsPsiIdForbidden      = 0xFF // forbidden
)

const (
	DescriptorTagAC3                        = 0x6a
	DescriptorTagAVCVideo                   = 0x28
	DescriptorTagComponent                  = 0x50
	DescriptorTagContent                    = 0x54
	DescriptorTagDataStreamAlignment        = 0x6
	DescriptorTagDts                        = 0x7b
	DescriptorTagEnhancedAC3                = 0x7a
	DescriptorTagExtendedEvent              = 0x4e
	DescriptorTagExtension                  = 0x7f
	DescriptorTagISO639LanguageAndAudioType = 0xa
	DescriptorTagLocalTimeOffset            = 0x58
	DescriptorTagMaximumBitrate             = 0xe
	DescriptorTagNetworkName                = 0x40
	DescriptorTagParentalRating             = 0x55
	DescriptorTagPrivateDataIndicator       = 0xf
	DescriptorTagPrivateDataSpecifier       = 0x5f
	DescriptorTagRegistration               = 0x5
	DescriptorTagService                    = 0x48
	DescriptorTagShortEvent                 = 0x4d
	DescriptorTagStreamIdentifier           = 0x52
	DescriptorTagSubtitling                 = 0x59
	DescriptorTagTeletext                   = 0x56
	DescriptorTagVBIData                    = 0x45
	DescriptorTagVBITeletext                = 0x46
)

type PsiSection struct {
	pointerFileld uint8
	sectionData   PsiSectionData
}

type PsiSectionData struct {
	header  PsiTableHeader
	section PsiTableSyntaxSection
	patData PatSpecificData
	pmtData PmtSpecificData
}

type PsiTableHeader struct {
	tableId                uint8
	sectionSyntaxIndicator uint8
	sectionLength          uint16
}

type PsiTableSyntaxSection struct {
	tableIdExtension     uint16
	versionNumber        uint8
	currentNextIndicator uint8
	sectionNumber        uint8
	lastSectionNumber    uint8
}

type PatSpecificData struct {
	pes []PatProgramElement
}

type PmtSpecificData struct {
	pcrPid             uint16
	programDescriptors []Descriptor
	pes                []PmtProgramElement
}

// Descriptor
//
// Data 保存描述符的原始内容（不包含tag和length），序列化时原样写回。
// Registration 只有tag为 DescriptorTagRegistration 时有效。
//
type Descriptor struct {
	Tag          uint8
	Length       uint8
	Data         []byte
	Registration DescriptorRegistration
}

type DescriptorRegistration struct {
	FormatIdentifier             uint32
	AdditionalIdentificationInfo []byte
}

func NewPsi() *PsiSection {
	return &PsiSection{
		pointerFileld: 0x00,
	}
}

// Pack
//
// @return 返回的内存块包含 pointer_field，以及尾部4字节CRC_32
//
func (psi *PsiSection) Pack() (int, []byte) {
	sl := psi.calcPsiSectionLength()
	psiSection := make([]byte, 1+3+int(sl))
	bw := nazabits.NewBitWriter(psiSection)

	bw.WriteBits8(8, psi.pointerFileld)
	psi.writePsiTableHeader(&bw)
	psi.writePsiTableSyntaxSection(&bw)

	crc := CalcCrc32(0xffffffff, psiSection[1:len(psiSection)-4])
	bele.BePutUint32(psiSection[len(psiSection)-4:], crc)

	return len(psiSection), psiSection
}

// PackSectionToTsPackets 把包含pointer_field的section切分成TS packet，剩余空间使用0xFF填充
//
// @param cc: 输入为上一个packet使用的continuity_counter，函数返回时更新为最后一个packet使用的值
//
func PackSectionToTsPackets(pid uint16, section []byte, cc *uint8) []byte {
	n := (len(section) + PacketSize - 4 - 1) / (PacketSize - 4)
	if n == 0 {
		n = 1
	}
	out := make([]byte, n*PacketSize)
	for i := range out {
		out[i] = 0xff
	}

	pos := 0
	for i := 0; i < n; i++ {
		packet := out[i*PacketSize : (i+1)*PacketSize]
		*cc = (*cc + 1) & 0x0f
		packet[0] = syncByte
		packet[1] = uint8(pid>>8) & 0x1f
		if i == 0 {
			packet[1] |= 0x40 // payload_unit_start_indicator
		}
		packet[2] = uint8(pid)
		packet[3] = 0x10 | *cc // payload only
		pos += copy(packet[4:], section[pos:])
	}
	return out
}

func (psi *PsiSection) writePsiTableHeader(bw *nazabits.BitWriter) {
	bw.WriteBits8(8, psi.sectionData.header.tableId)
	bw.WriteBit(psi.sectionData.header.sectionSyntaxIndicator)
	bw.WriteBit(0)
	bw.WriteBits8(2, 0xff)

	psi.sectionData.header.sectionLength = psi.calcPsiSectionLength()
	bw.WriteBits16(12, psi.sectionData.header.sectionLength)
}

func (psi *PsiSection) writePsiTableSyntaxSection(bw *nazabits.BitWriter) {
	bw.WriteBits16(16, psi.sectionData.section.tableIdExtension)
	bw.WriteBits8(2, 0xff)
	bw.WriteBits8(5, psi.sectionData.section.versionNumber)
	bw.WriteBit(psi.sectionData.section.currentNextIndicator)
	bw.WriteBits8(8, psi.sectionData.section.sectionNumber)
	bw.WriteBits8(8, psi.sectionData.section.lastSectionNumber)

	switch psi.sectionData.header.tableId {
	case TsPsiIdPas:
		psi.writePatSection(bw)
	case TsPsiIdPms:
		psi.writePmtSection(bw)
	}
}

func (psi *PsiSection) calcPsiSectionLength() (length uint16) {
	// Table ID extension(16 bits)+Reserved bits(2 bits)+Version number(5 bits)+Current next Indicator(1 bit)+Section number(8 bits)+Last section number(8 bits)
	length += 5

	switch psi.sectionData.header.tableId {
	case TsPsiIdPas:
		length += uint16(4 * len(psi.sectionData.patData.pes))
	case TsPsiIdPms:
		length += psi.calcPmtSectionLength()
	}

	length += 4 // crc32
	return
}

func (psi *PsiSection) calcPmtSectionLength() (length uint16) {
	// Reserved bits(3 bits)+PCR PID(13 bits)+Reserved bits(4 bits)+Program info length(12 bits)
	length = 4
	length += calcDescriptorsLength(psi.sectionData.pmtData.programDescriptors)

	for _, pe := range psi.sectionData.pmtData.pes {
		length += 5
		length += calcDescriptorsLength(pe.Descriptors)
	}
	return
}

func (psi *PsiSection) writePatSection(bw *nazabits.BitWriter) {
	for _, pe := range psi.sectionData.patData.pes {
		bw.WriteBits16(16, pe.ProgramNumber)
		bw.WriteBits8(3, 0xff)
		bw.WriteBits16(13, pe.Pid)
	}
}

func (psi *PsiSection) writePmtSection(bw *nazabits.BitWriter) {
	bw.WriteBits8(3, 0xff)
	bw.WriteBits16(13, psi.sectionData.pmtData.pcrPid)
	writeDescriptorsWithLength(bw, psi.sectionData.pmtData.programDescriptors)

	for _, pe := range psi.sectionData.pmtData.pes {
		bw.WriteBits8(8, pe.StreamType)
		bw.WriteBits8(3, 0xff)
		bw.WriteBits16(13, pe.Pid)
		writeDescriptorsWithLength(bw, pe.Descriptors)
	}
}

// ----- descriptor ----------------------------------------------------------------------------------------------------

func parseDescriptors(b []byte) (ds []Descriptor) {
	for pos := 0; pos+2 <= len(b); {
		var d Descriptor
		d.Tag = b[pos]
		d.Length = b[pos+1]
		pos += 2
		if pos+int(d.Length) > len(b) {
			Log.Warnf("descriptor length invalid. tag=%d, length=%d, remain=%d", d.Tag, d.Length, len(b)-pos)
			break
		}
		d.Data = append([]byte(nil), b[pos:pos+int(d.Length)]...)
		pos += int(d.Length)

		if d.Tag == DescriptorTagRegistration && d.Length >= 4 {
			d.Registration.FormatIdentifier = bele.BeUint32(d.Data)
			d.Registration.AdditionalIdentificationInfo = d.Data[4:]
		}
		ds = append(ds, d)
	}
	return
}

func calcDescriptorsLength(ds []Descriptor) uint16 {
	length := uint16(0)
	for _, d := range ds {
		length += 2 + uint16(len(d.Data)) // tag and length
	}
	return length
}

func writeDescriptorsWithLength(bw *nazabits.BitWriter, ds []Descriptor) {
	bw.WriteBits8(4, 0xff)
	bw.WriteBits16(12, calcDescriptorsLength(ds))
	for _, d := range ds {
		bw.WriteBits8(8, d.Tag)
		bw.WriteBits8(8, uint8(len(d.Data)))
		for _, b := range d.Data {
			bw.WriteBits8(8, b)
		}
	}
}
