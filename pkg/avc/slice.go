// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avc

import (
	"github.com/q191201771/naza/pkg/nazabytes"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// SliceHeader 只解析到判断access unit边界需要的字段
//
// ISO-14496-10.pdf
// 7.3.3 Slice header syntax
// 7.4.1.2.4 Detection of the first VCL NAL unit of a primary coded picture
//
type SliceHeader struct {
	NaluType        uint8
	NalRefIdc       uint8
	FirstMbInSlice  uint32
	SliceType       uint8
	PpsId           uint32
	FrameNum        uint32
	FieldPicFlag    bool
	BottomFieldFlag bool
	IdrPicId        uint32
	PicOrderCntLsb  uint32
}

// sliceHeaderMaxBytes 解析slice header到pic_order_cnt_lsb为止，这些字节足够了
const sliceHeaderMaxBytes = 32

// ParseSliceHeader
//
// @param nalu: 包含1字节nalu header，可以只是nalu的前面一部分
// @param ctx:  由 ParseSps 得到
//
func ParseSliceHeader(nalu []byte, ctx *Context) (sh SliceHeader, err error) {
	if len(nalu) < 2 {
		return sh, nazaerrors.Wrap(ErrAvc)
	}
	sh.NaluType = ParseNaluType(nalu[0])
	sh.NalRefIdc = ParseNaluRefIdc(nalu[0])
	if !IsVclNalu(sh.NaluType) {
		return sh, nazaerrors.Wrap(ErrAvc)
	}

	payload := nalu[1:]
	if len(payload) > sliceHeaderMaxBytes {
		payload = payload[:sliceHeaderMaxBytes]
	}
	r := NewRbspReader(Ebsp2Rbsp(payload))

	sh.FirstMbInSlice = r.Ue()
	sliceType := r.Ue()
	sh.PpsId = r.Ue()
	if err = r.Err(); err != nil {
		return
	}
	if sliceType > 9 {
		return sh, nazaerrors.Wrap(ErrAvc)
	}
	sh.SliceType = uint8(sliceType % 5)

	// 没有sps时只能拿到上面三个字段
	if ctx == nil || ctx.Log2MaxFrameNum == 0 {
		return
	}

	if ctx.SeparateColourPlaneFlag {
		r.Skip(2) // colour_plane_id
	}
	sh.FrameNum = r.U32(uint(ctx.Log2MaxFrameNum))
	if !ctx.FrameMbsOnlyFlag {
		sh.FieldPicFlag = r.Flag()
		if sh.FieldPicFlag {
			sh.BottomFieldFlag = r.Flag()
		}
	}
	if sh.NaluType == NaluTypeIdrSlice {
		sh.IdrPicId = r.Ue()
	}
	if ctx.PicOrderCntType == 0 {
		sh.PicOrderCntLsb = r.U32(uint(ctx.Log2MaxPicOrderCntLsb))
		// bottom_field_pic_order_in_frame_present_flag在pps中，这里不读delta_pic_order_cnt_bottom
	}
	err = r.Err()
	return
}

// IsFirstVclOfNewPicture 按 7.4.1.2.4 判断 cur 是否是一个新的primary coded picture的第一个slice
//
// first_mb_in_slice为0的情况在调用方判断
//
func IsFirstVclOfNewPicture(prev, cur *SliceHeader) bool {
	if prev == nil {
		return true
	}
	if cur.FrameNum != prev.FrameNum ||
		cur.PpsId != prev.PpsId ||
		cur.FieldPicFlag != prev.FieldPicFlag ||
		cur.BottomFieldFlag != prev.BottomFieldFlag {
		return true
	}
	if (cur.NalRefIdc == 0) != (prev.NalRefIdc == 0) {
		return true
	}
	if cur.PicOrderCntLsb != prev.PicOrderCntLsb {
		return true
	}
	curIdr := cur.NaluType == NaluTypeIdrSlice
	prevIdr := prev.NaluType == NaluTypeIdrSlice
	if curIdr != prevIdr {
		return true
	}
	if curIdr && prevIdr && cur.IdrPicId != prev.IdrPicId {
		return true
	}
	return false
}

// ParsePpsId 读取pps中的pic_parameter_set_id和seq_parameter_set_id
//
// 7.3.2.2 Picture parameter set RBSP syntax
//
func ParsePpsId(nalu []byte) (ppsId uint32, spsId uint32, err error) {
	if len(nalu) < 2 || ParseNaluType(nalu[0]) != NaluTypePps {
		return 0, 0, nazaerrors.Wrap(ErrAvc)
	}
	r := NewRbspReader(Ebsp2Rbsp(nazabytes.Prefix(nalu[1:], 8)))
	ppsId = r.Ue()
	spsId = r.Ue()
	err = r.Err()
	return
}
