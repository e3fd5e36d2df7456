// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avc

import (
	"encoding/hex"

	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/naza/pkg/nazabytes"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// Sps 只包含录制需要关心的字段
type Sps struct {
	ProfileIdc                  uint8
	ConstraintSetFlags          uint8
	LevelIdc                    uint8
	SpsId                       uint32
	ChromaFormatIdc             uint32
	SeparateColourPlaneFlag     bool
	Log2MaxFrameNumMinus4       uint32
	PicOrderCntType             uint32
	Log2MaxPicOrderCntLsbMinus4 uint32
	DeltaPicOrderAlwaysZeroFlag bool
	MaxNumRefFrames             uint32
	PicWidthInMbsMinusOne       uint32
	PicHeightInMapUnitsMinusOne uint32
	FrameMbsOnlyFlag            bool
	FrameCroppingFlag           bool
	FrameCropLeftOffset         uint32
	FrameCropRightOffset        uint32
	FrameCropTopOffset          uint32
	FrameCropBottomOffset       uint32
	VuiParametersPresentFlag    bool
	AspectRatioIdc              uint8
	SarWidth                    uint16
	SarHeight                   uint16
	TimingInfoPresentFlag       bool
	NumUnitsInTick              uint32
	TimeScale                   uint32
	FixedFrameRateFlag          bool
}

// Context 从sps中计算出的结果，以及后续解析slice header需要的字段
type Context struct {
	Profile     uint8
	Level       uint8
	Width       uint32
	Height      uint32
	SarWidth    uint32
	SarHeight   uint32
	AspectRatio base.AspectRatio
	FrameRate   base.FrameRate

	SpsId                       uint32
	SeparateColourPlaneFlag     bool
	Log2MaxFrameNum             uint32
	FrameMbsOnlyFlag            bool
	PicOrderCntType             uint32
	Log2MaxPicOrderCntLsb       uint32
	DeltaPicOrderAlwaysZeroFlag bool
}

// ISO-14496-10 Table E-1 – Meaning of sample aspect ratio indicator
var sarTable = [17][2]uint16{
	{0, 0},
	{1, 1},
	{12, 11},
	{10, 11},
	{16, 11},
	{40, 33},
	{24, 11},
	{20, 11},
	{32, 11},
	{80, 33},
	{18, 11},
	{15, 11},
	{64, 33},
	{160, 99},
	{4, 3},
	{3, 2},
	{2, 1},
}

const aspectRatioIdcExtendedSar = 255

var highProfileIdcs = map[uint8]struct{}{
	100: {}, 110: {}, 122: {}, 244: {}, 44: {}, 83: {}, 86: {}, 118: {}, 128: {}, 138: {}, 139: {}, 134: {}, 135: {},
}

// ParseSps
//
// @param nalu: 包含1字节nalu header，不包含start code。可以包含防竞争字节
//
func ParseSps(nalu []byte, ctx *Context) error {
	if len(nalu) < 4 || ParseNaluType(nalu[0]) != NaluTypeSps {
		return nazaerrors.Wrap(ErrAvc)
	}
	rbsp := Ebsp2Rbsp(nalu[1:])

	var sps Sps
	if err := parseSps(rbsp, &sps); err != nil {
		Log.Warnf("parse sps failed. err=%+v, nalu=%s", err, hex.Dump(nazabytes.Prefix(nalu, 128)))
		return err
	}
	sps.toContext(ctx)
	return nil
}

// ISO-14496-10.pdf
// 7.3.2.1.1 Sequence parameter set data syntax
func parseSps(rbsp []byte, sps *Sps) error {
	r := NewRbspReader(rbsp)

	sps.ProfileIdc = r.U8(8)
	sps.ConstraintSetFlags = r.U8(8)
	sps.LevelIdc = r.U8(8)
	sps.SpsId = r.Ue()
	if r.Err() != nil {
		return r.Err()
	}
	if sps.SpsId >= 32 {
		return nazaerrors.Wrap(ErrAvc)
	}

	sps.ChromaFormatIdc = 1
	if _, ok := highProfileIdcs[sps.ProfileIdc]; ok {
		sps.ChromaFormatIdc = r.Ue()
		if sps.ChromaFormatIdc > 3 {
			return nazaerrors.Wrap(ErrAvc)
		}
		if sps.ChromaFormatIdc == 3 {
			sps.SeparateColourPlaneFlag = r.Flag()
		}
		_ = r.Ue() // bit_depth_luma_minus8
		_ = r.Ue() // bit_depth_chroma_minus8
		r.Skip(1)  // qpprime_y_zero_transform_bypass_flag

		// seq_scaling_matrix_present_flag
		if r.Flag() {
			n := 8
			if sps.ChromaFormatIdc == 3 {
				n = 12
			}
			for i := 0; i < n; i++ {
				if !r.Flag() {
					continue
				}
				if i < 6 {
					skipScalingList(r, 16)
				} else {
					skipScalingList(r, 64)
				}
			}
		}
	}

	sps.Log2MaxFrameNumMinus4 = r.Ue()
	sps.PicOrderCntType = r.Ue()
	switch sps.PicOrderCntType {
	case 0:
		sps.Log2MaxPicOrderCntLsbMinus4 = r.Ue()
	case 1:
		sps.DeltaPicOrderAlwaysZeroFlag = r.Flag()
		_ = r.Se() // offset_for_non_ref_pic
		_ = r.Se() // offset_for_top_to_bottom_field
		n := r.Ue()
		if n > 255 {
			return nazaerrors.Wrap(ErrAvc)
		}
		for i := uint32(0); i < n; i++ {
			_ = r.Se()
		}
	}
	sps.MaxNumRefFrames = r.Ue()
	r.Skip(1) // gaps_in_frame_num_value_allowed_flag
	sps.PicWidthInMbsMinusOne = r.Ue()
	sps.PicHeightInMapUnitsMinusOne = r.Ue()
	sps.FrameMbsOnlyFlag = r.Flag()
	if !sps.FrameMbsOnlyFlag {
		r.Skip(1) // mb_adaptive_frame_field_flag
	}
	r.Skip(1) // direct_8x8_inference_flag
	sps.FrameCroppingFlag = r.Flag()
	if sps.FrameCroppingFlag {
		sps.FrameCropLeftOffset = r.Ue()
		sps.FrameCropRightOffset = r.Ue()
		sps.FrameCropTopOffset = r.Ue()
		sps.FrameCropBottomOffset = r.Ue()
	}
	if r.Err() != nil {
		return r.Err()
	}

	sps.VuiParametersPresentFlag = r.Flag()
	if sps.VuiParametersPresentFlag {
		// 有些流的vui被截断了，vui解析失败不影响宽高
		if err := parseVui(r, sps); err != nil {
			Log.Debugf("parse vui failed. err=%+v", err)
			sps.TimingInfoPresentFlag = false
		}
	}
	return nil
}

// E.1.1 VUI parameters syntax
//
// 只解析到timing info为止
//
func parseVui(r *RbspReader, sps *Sps) error {
	if r.Flag() { // aspect_ratio_info_present_flag
		sps.AspectRatioIdc = r.U8(8)
		if sps.AspectRatioIdc == aspectRatioIdcExtendedSar {
			sps.SarWidth = r.U16(16)
			sps.SarHeight = r.U16(16)
		} else if int(sps.AspectRatioIdc) < len(sarTable) {
			sps.SarWidth = sarTable[sps.AspectRatioIdc][0]
			sps.SarHeight = sarTable[sps.AspectRatioIdc][1]
		}
	}
	if r.Flag() { // overscan_info_present_flag
		r.Skip(1)
	}
	if r.Flag() { // video_signal_type_present_flag
		r.Skip(4) // video_format, video_full_range_flag
		if r.Flag() {
			r.Skip(24) // colour_primaries, transfer_characteristics, matrix_coefficients
		}
	}
	if r.Flag() { // chroma_loc_info_present_flag
		_ = r.Ue()
		_ = r.Ue()
	}
	sps.TimingInfoPresentFlag = r.Flag()
	if sps.TimingInfoPresentFlag {
		sps.NumUnitsInTick = r.U32(32)
		sps.TimeScale = r.U32(32)
		sps.FixedFrameRateFlag = r.Flag()
	}
	return r.Err()
}

func (sps *Sps) toContext(ctx *Context) {
	ctx.Profile = sps.ProfileIdc
	ctx.Level = sps.LevelIdc
	ctx.SpsId = sps.SpsId
	ctx.SeparateColourPlaneFlag = sps.SeparateColourPlaneFlag
	ctx.Log2MaxFrameNum = sps.Log2MaxFrameNumMinus4 + 4
	ctx.FrameMbsOnlyFlag = sps.FrameMbsOnlyFlag
	ctx.PicOrderCntType = sps.PicOrderCntType
	ctx.Log2MaxPicOrderCntLsb = sps.Log2MaxPicOrderCntLsbMinus4 + 4
	ctx.DeltaPicOrderAlwaysZeroFlag = sps.DeltaPicOrderAlwaysZeroFlag

	// 7.4.2.1.1 frame_crop_*_offset
	var cropUnitX, cropUnitY uint32
	frameHeightFactor := uint32(1)
	if !sps.FrameMbsOnlyFlag {
		frameHeightFactor = 2
	}
	if sps.ChromaFormatIdc == 0 || sps.SeparateColourPlaneFlag {
		cropUnitX = 1
		cropUnitY = frameHeightFactor
	} else {
		subWidthC, subHeightC := uint32(2), uint32(2)
		switch sps.ChromaFormatIdc {
		case 2:
			subHeightC = 1
		case 3:
			subWidthC, subHeightC = 1, 1
		}
		cropUnitX = subWidthC
		cropUnitY = subHeightC * frameHeightFactor
	}
	ctx.Width = (sps.PicWidthInMbsMinusOne+1)*16 - (sps.FrameCropLeftOffset+sps.FrameCropRightOffset)*cropUnitX
	ctx.Height = frameHeightFactor*(sps.PicHeightInMapUnitsMinusOne+1)*16 - (sps.FrameCropTopOffset+sps.FrameCropBottomOffset)*cropUnitY

	ctx.SarWidth = uint32(sps.SarWidth)
	ctx.SarHeight = uint32(sps.SarHeight)
	ctx.AspectRatio = base.CalcAspectRatio(ctx.Width, ctx.Height, ctx.SarWidth, ctx.SarHeight)

	// 一帧两个field，所以帧率是 time_scale / (2 * num_units_in_tick)
	ctx.FrameRate = base.FrameRateUnknown
	if sps.TimingInfoPresentFlag && sps.NumUnitsInTick != 0 && sps.TimeScale != 0 {
		num, den := uint64(sps.TimeScale), 2*uint64(sps.NumUnitsInTick)
		g := gcd(num, den)
		ctx.FrameRate = base.NewFrameRate(uint32(num/g), uint32(den/g))
	}
}

// 7.3.2.1.1.1 Scaling list syntax
func skipScalingList(r *RbspReader, size int) {
	last, next := int32(8), int32(8)
	for j := 0; j < size; j++ {
		if next != 0 {
			delta := r.Se()
			next = (last + delta + 256) % 256
		}
		if next != 0 {
			last = next
		}
	}
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}
