// Copyright 2019, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avc_test

import (
	"testing"

	"github.com/q191201771/dtvrec/pkg/avc"
	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/naza/pkg/assert"
)

// main profile, 1920x1080 (1088裁剪8行), 逐行, sar 1:1, 30000/1001
var sps1080p = []byte{
	0x67, 0x4d, 0x40, 0x28, 0xed, 0x00, 0xf0, 0x04, 0x4f, 0xcb, 0x80, 0x88, 0x00, 0x00, 0x1f, 0x48,
	0x00, 0x07, 0x53, 0x04, 0x20,
}

// high profile, 720x576, 隔行, sar 16:11, 25fps, 包含防竞争字节
var sps576i = []byte{
	0x67, 0x64, 0x00, 0x1e, 0xac, 0x35, 0xb0, 0x2d, 0x09, 0x36, 0x08, 0x20, 0x00, 0x00, 0x03, 0x00,
	0x20, 0x00, 0x00, 0x06, 0x50, 0x80,
}

var pps = []byte{0x68, 0xe8}

var (
	idr1080p     = []byte{0x65, 0x88, 0x84, 0x0a, 0xb8}
	p1080p       = []byte{0x41, 0x9a, 0x22, 0x55, 0xc0}
	idr576Top    = []byte{0x65, 0x88, 0x80, 0x22, 0x06, 0x6c}
	idr576Bottom = []byte{0x65, 0x88, 0x80, 0x32, 0x0e, 0x6c}
)

func TestParseNaluType(t *testing.T) {
	assert.Equal(t, avc.NaluTypeSps, avc.ParseNaluType(0x67))
	assert.Equal(t, avc.NaluTypePps, avc.ParseNaluType(0x68))
	assert.Equal(t, avc.NaluTypeIdrSlice, avc.ParseNaluType(0x65))
	assert.Equal(t, avc.NaluTypeSlice, avc.ParseNaluType(0x41))
	assert.Equal(t, avc.NaluTypeAud, avc.ParseNaluType(0x09))
	assert.Equal(t, uint8(3), avc.ParseNaluRefIdc(0x65))
	assert.Equal(t, uint8(0), avc.ParseNaluRefIdc(0x01))
	assert.Equal(t, "IDR", avc.ParseNaluTypeReadable(0x65))
	assert.Equal(t, "unknown", avc.ParseNaluTypeReadable(0x1e))
	assert.Equal(t, true, avc.IsVclNalu(5))
	assert.Equal(t, false, avc.IsVclNalu(6))
	assert.Equal(t, true, avc.IsIntraSlice(7))
	assert.Equal(t, false, avc.IsIntraSlice(5))
}

func TestEbsp2Rbsp(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 1}, avc.Ebsp2Rbsp([]byte{0, 0, 3, 0, 0, 3, 0, 1}))
	assert.Equal(t, []byte{1, 2, 3}, avc.Ebsp2Rbsp([]byte{1, 2, 3}))
	// 03前面只有一个0，不是防竞争字节
	assert.Equal(t, []byte{0, 3, 0}, avc.Ebsp2Rbsp([]byte{0, 3, 0}))
}

func TestParseSps(t *testing.T) {
	var ctx avc.Context
	err := avc.ParseSps(sps1080p, &ctx)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(77), ctx.Profile)
	assert.Equal(t, uint8(40), ctx.Level)
	assert.Equal(t, uint32(1920), ctx.Width)
	assert.Equal(t, uint32(1080), ctx.Height)
	assert.Equal(t, base.AspectRatio16x9, ctx.AspectRatio)
	assert.Equal(t, base.NewFrameRate(30000, 1001), ctx.FrameRate)
	assert.Equal(t, uint32(4), ctx.Log2MaxFrameNum)
	assert.Equal(t, uint32(6), ctx.Log2MaxPicOrderCntLsb)
	assert.Equal(t, true, ctx.FrameMbsOnlyFlag)

	var ctx2 avc.Context
	err = avc.ParseSps(sps576i, &ctx2)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(100), ctx2.Profile)
	assert.Equal(t, uint32(720), ctx2.Width)
	assert.Equal(t, uint32(576), ctx2.Height)
	assert.Equal(t, uint32(16), ctx2.SarWidth)
	assert.Equal(t, uint32(11), ctx2.SarHeight)
	assert.Equal(t, base.AspectRatio16x9, ctx2.AspectRatio)
	assert.Equal(t, base.NewFrameRate(25, 1), ctx2.FrameRate)
	assert.Equal(t, uint32(9), ctx2.Log2MaxFrameNum)
	assert.Equal(t, false, ctx2.FrameMbsOnlyFlag)

	err = avc.ParseSps(pps, &ctx2)
	assert.IsNotNil(t, err)
	err = avc.ParseSps([]byte{0x67, 0x4d, 0x40}, &ctx2)
	assert.IsNotNil(t, err)
	// 截断的sps，日志中dump的数据比128字节短
	err = avc.ParseSps(sps1080p[:6], &ctx2)
	assert.IsNotNil(t, err)
}

func TestParseSliceHeader(t *testing.T) {
	var ctx avc.Context
	assert.Equal(t, nil, avc.ParseSps(sps1080p, &ctx))

	idr, err := avc.ParseSliceHeader(idr1080p, &ctx)
	assert.Equal(t, nil, err)
	assert.Equal(t, avc.NaluTypeIdrSlice, idr.NaluType)
	assert.Equal(t, uint32(0), idr.FirstMbInSlice)
	assert.Equal(t, avc.SliceTypeI, idr.SliceType)
	assert.Equal(t, uint32(0), idr.FrameNum)

	p, err := avc.ParseSliceHeader(p1080p, &ctx)
	assert.Equal(t, nil, err)
	assert.Equal(t, avc.SliceTypeP, p.SliceType)
	assert.Equal(t, uint32(1), p.FrameNum)
	assert.Equal(t, uint32(4), p.PicOrderCntLsb)
	assert.Equal(t, true, avc.IsFirstVclOfNewPicture(&idr, &p))
	assert.Equal(t, false, avc.IsFirstVclOfNewPicture(&p, &p))
	assert.Equal(t, true, avc.IsFirstVclOfNewPicture(nil, &p))

	var ctx2 avc.Context
	assert.Equal(t, nil, avc.ParseSps(sps576i, &ctx2))
	top, err := avc.ParseSliceHeader(idr576Top, &ctx2)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, top.FieldPicFlag)
	assert.Equal(t, false, top.BottomFieldFlag)
	assert.Equal(t, uint32(3), top.IdrPicId)
	bottom, err := avc.ParseSliceHeader(idr576Bottom, &ctx2)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, bottom.FieldPicFlag)
	assert.Equal(t, true, bottom.BottomFieldFlag)
	assert.Equal(t, uint32(1), bottom.PicOrderCntLsb)
	assert.Equal(t, true, avc.IsFirstVclOfNewPicture(&top, &bottom))

	// 没有sps时只解析前三个字段
	h, err := avc.ParseSliceHeader(p1080p, nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, avc.SliceTypeP, h.SliceType)
	assert.Equal(t, uint32(0), h.FrameNum)

	_, err = avc.ParseSliceHeader(pps, &ctx)
	assert.IsNotNil(t, err)
}

func TestParsePpsId(t *testing.T) {
	ppsId, spsId, err := avc.ParsePpsId(pps)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint32(0), ppsId)
	assert.Equal(t, uint32(0), spsId)

	// 只读取前8字节
	long := append([]byte{0x68, 0xe8}, make([]byte, 64)...)
	ppsId, spsId, err = avc.ParsePpsId(long)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint32(0), ppsId)
	assert.Equal(t, uint32(0), spsId)
}
