// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package hevc

import (
	"encoding/hex"

	"github.com/q191201771/dtvrec/pkg/avc"
	"github.com/q191201771/naza/pkg/nazabytes"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// ISO_IEC_23008-2_2013.pdf
// Table 7-1 – NAL unit type codes and NAL unit type classes
const (
	NaluTypeSliceTrailN uint8 = 0
	NaluTypeSliceTrailR uint8 = 1
	NaluTypeSliceRaslR  uint8 = 9

	NaluTypeSliceBlaWlp       uint8 = 16 // 0x10
	NaluTypeSliceBlaWradl     uint8 = 17 // 0x11
	NaluTypeSliceBlaNlp       uint8 = 18 // 0x12
	NaluTypeSliceIdr          uint8 = 19 // 0x13
	NaluTypeSliceIdrNlp       uint8 = 20 // 0x14
	NaluTypeSliceCra          uint8 = 21 // 0x15
	NaluTypeSliceRsvIrapVcl22 uint8 = 22 // 0x16
	NaluTypeSliceRsvIrapVcl23 uint8 = 23 // 0x17
	NaluTypeSliceRsvVcl31     uint8 = 31 // 0x1f

	NaluTypeVps       uint8 = 32 // 0x20
	NaluTypeSps       uint8 = 33 // 0x21
	NaluTypePps       uint8 = 34 // 0x22
	NaluTypeAud       uint8 = 35 // 0x23
	NaluTypeEos       uint8 = 36 // 0x24
	NaluTypeEob       uint8 = 37 // 0x25
	NaluTypeFd        uint8 = 38 // 0x26
	NaluTypeSei       uint8 = 39 // 0x27
	NaluTypeSeiSuffix uint8 = 40 // 0x28
)

var NaluTypeMapping = map[uint8]string{
	NaluTypeSliceTrailN: "TRAIL_N",
	NaluTypeSliceTrailR: "TRAIL_R",
	NaluTypeSliceBlaWlp: "BLA",
	NaluTypeSliceIdr:    "IDR",
	NaluTypeSliceIdrNlp: "IDR_N_LP",
	NaluTypeSliceCra:    "CRA",
	NaluTypeVps:         "VPS",
	NaluTypeSps:         "SPS",
	NaluTypePps:         "PPS",
	NaluTypeAud:         "AUD",
	NaluTypeSei:         "SEI",
	NaluTypeSeiSuffix:   "SEI_SUFFIX",
}

// Context sps中录制关心的字段
type Context struct {
	Profile uint8
	Level   uint8
	Width   uint32
	Height  uint32
}

// ParseNaluType
//
// @param v: nalu的第一个字节
//
func ParseNaluType(v uint8) uint8 {
	// 6 bit in middle
	// 0*** ***0
	return (v & 0x7E) >> 1
}

func ParseNaluTypeReadable(v uint8) string {
	b, ok := NaluTypeMapping[ParseNaluType(v)]
	if !ok {
		return "unknown"
	}
	return b
}

// IsVclNalu 0~31都是slice segment
func IsVclNalu(typ uint8) bool {
	return typ <= NaluTypeSliceRsvVcl31
}

// IsIrapNalu BLA、IDR、CRA以及保留的22、23都是随机访问点
func IsIrapNalu(typ uint8) bool {
	return typ >= NaluTypeSliceBlaWlp && typ <= NaluTypeSliceRsvIrapVcl23
}

// IsAuStartNalu 出现在access unit第一个slice之前的nalu，见 7.4.2.4.4
func IsAuStartNalu(typ uint8) bool {
	switch typ {
	case NaluTypeAud, NaluTypeVps, NaluTypeSps, NaluTypePps, NaluTypeSei:
		return true
	}
	// 41..44 reserved, 48..55 unspecified
	return (typ >= 41 && typ <= 44) || (typ >= 48 && typ <= 55)
}

// FirstSliceSegmentInPicFlag slice segment header的第一个bit
//
// @param nalu: 包含2字节nalu header
//
func FirstSliceSegmentInPicFlag(nalu []byte) (bool, error) {
	if len(nalu) < 3 {
		return false, nazaerrors.Wrap(ErrHevc)
	}
	return nalu[2]&0x80 != 0, nil
}

// ParseSps 只解析到宽高为止
//
// 7.3.2.2.1 General sequence parameter set RBSP syntax
//
// @param nalu: 包含2字节nalu header，不包含start code
//
func ParseSps(nalu []byte, ctx *Context) error {
	if len(nalu) < 3 || ParseNaluType(nalu[0]) != NaluTypeSps {
		return nazaerrors.Wrap(ErrHevc)
	}
	r := avc.NewRbspReader(avc.Ebsp2Rbsp(nalu[2:]))

	r.Skip(4) // sps_video_parameter_set_id
	maxSubLayersMinus1 := r.U8(3)
	r.Skip(1) // sps_temporal_id_nesting_flag

	// 7.3.3 Profile, tier and level syntax
	r.Skip(3) // general_profile_space, general_tier_flag
	profile := r.U8(5)
	r.Skip(32 + 4 + 43 + 1)
	level := r.U8(8)
	var subLayerProfilePresent, subLayerLevelPresent [8]bool
	for i := uint8(0); i < maxSubLayersMinus1; i++ {
		subLayerProfilePresent[i] = r.Flag()
		subLayerLevelPresent[i] = r.Flag()
	}
	if maxSubLayersMinus1 > 0 {
		for i := maxSubLayersMinus1; i < 8; i++ {
			r.Skip(2) // reserved_zero_2bits
		}
	}
	for i := uint8(0); i < maxSubLayersMinus1; i++ {
		if subLayerProfilePresent[i] {
			r.Skip(88)
		}
		if subLayerLevelPresent[i] {
			r.Skip(8)
		}
	}

	_ = r.Ue() // sps_seq_parameter_set_id
	chromaFormatIdc := r.Ue()
	separateColourPlane := false
	if chromaFormatIdc == 3 {
		separateColourPlane = r.Flag()
	}
	width := r.Ue()
	height := r.Ue()
	var left, right, top, bottom uint32
	if r.Flag() { // conformance_window_flag
		left = r.Ue()
		right = r.Ue()
		top = r.Ue()
		bottom = r.Ue()
	}
	if err := r.Err(); err != nil {
		Log.Warnf("parse sps failed. err=%+v, nalu=%s", err, hex.Dump(nazabytes.Prefix(nalu, 128)))
		return err
	}

	// Table 6-1
	subWidthC, subHeightC := uint32(1), uint32(1)
	if !separateColourPlane {
		switch chromaFormatIdc {
		case 1:
			subWidthC, subHeightC = 2, 2
		case 2:
			subWidthC = 2
		}
	}
	ctx.Profile = profile
	ctx.Level = level
	ctx.Width = width - subWidthC*(left+right)
	ctx.Height = height - subHeightC*(top+bottom)
	return nil
}
