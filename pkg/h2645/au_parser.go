// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package h2645

import (
	"github.com/q191201771/dtvrec/pkg/avc"
	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/dtvrec/pkg/hevc"
)

// ResumeState 两次 AddBytes 之间解析器所处的位置
type ResumeState uint8

const (
	// ResumeStateSearching 还没有找到第一个start code
	ResumeStateSearching ResumeState = iota

	// ResumeStateInNalu 处于某个nalu的中间，下次 AddBytes 的数据属于这个nalu，
	// 未完成的start code也保存在 sync 中
	ResumeStateInNalu
)

func (s ResumeState) String() string {
	switch s {
	case ResumeStateSearching:
		return "Searching"
	case ResumeStateInNalu:
		return "InNalu"
	}
	return "unknown"
}

const (
	// 缓存的nalu最大长度，sps、pps、slice header都远小于这个值
	maxNaluBufSize = 1024

	// h264解析slice header需要的字节数，包括1字节nalu header
	h264SliceHeaderBytes = 33

	// h265只需要first_slice_segment_in_pic_flag
	h265SliceHeaderBytes = 3
)

// AuParser 从annexb字节流中找出access unit的起始位置，以及该access unit是否是关键帧
//
// 数据可以任意切分后多次调用 AddBytes，跨ts包、跨pes包的start code以及nalu残留数据都保存在内部。
//
// 用法：
//   for len(b) > 0 {
//       n := p.AddBytes(b, streamOffset)
//       b = b[n:]
//       if p.StateChanged() { ... }
//   }
//
type AuParser struct {
	codec Codec

	sync          uint32
	state         ResumeState
	naluBuf       []byte
	naluType      uint8
	naluTruncated bool
	naluHandled   bool
	naluOffset    int64

	auPending bool
	auOffset  int64
	vclInAu   bool
	spsInAu   bool
	prevSlice avc.SliceHeader
	havePrev  bool

	avcCtx  avc.Context
	hevcCtx hevc.Context
	haveSps bool

	stateChanged   bool
	onFrame        bool
	onKeyFrame     bool
	bottomField    bool
	keyframeOffset int64
	auCount        uint64
	spsCount       uint64
}

func NewAuParser(codec Codec) *AuParser {
	p := &AuParser{
		codec: codec,
	}
	p.Reset()
	return p
}

// Reset 丢弃所有状态，包括残留数据和sps信息
func (p *AuParser) Reset() {
	codec := p.codec
	*p = AuParser{
		codec:   codec,
		sync:    0xFFFFFFFF,
		naluBuf: make([]byte, 0, maxNaluBufSize),
	}
}

// AddBytes
//
// @param streamOffset: b所在ts包在输出流中的位置，作为access unit的位置
//
// @return 消费的字节数。当检测到新的access unit时提前返回，剩余的数据需要再次调用
//
func (p *AuParser) AddBytes(b []byte, streamOffset int64) int {
	p.stateChanged = false

	for i, c := range b {
		p.sync = p.sync<<8 | uint32(c)

		if p.sync&0xFFFFFF00 == 0x00000100 {
			if p.state == ResumeStateInNalu {
				p.finishNalu()
			}
			p.startNalu(c, streamOffset)
			if p.stateChanged {
				return i + 1
			}
			continue
		}

		// slice header已经解析过，剩下的slice数据不需要缓存
		if p.state != ResumeStateInNalu || p.naluHandled {
			continue
		}
		if len(p.naluBuf) < maxNaluBufSize {
			p.naluBuf = append(p.naluBuf, c)
		} else {
			p.naluTruncated = true
		}
		if IsVclNalu(p.codec, p.naluType) && len(p.naluBuf) >= p.sliceHeaderBytes() {
			p.handleVcl(p.naluBuf)
			if p.stateChanged {
				return i + 1
			}
		}
	}
	return len(b)
}

func (p *AuParser) StateChanged() bool {
	return p.stateChanged
}

// OnFrameStart 最近一次 StateChanged 是否是一个新的图像
func (p *AuParser) OnFrameStart() bool {
	return p.onFrame
}

// OnKeyFrameStart 最近一个access unit是否是关键帧
//
// h264: IDR，或者同一个access unit中带了sps的I slice
// h265: IRAP
//
func (p *AuParser) OnKeyFrameStart() bool {
	return p.onKeyFrame
}

// IsBottomField 最近一个access unit是否是隔行视频的底场，底场不作为新的一帧
func (p *AuParser) IsBottomField() bool {
	return p.bottomField
}

// KeyframeAuStreamOffset 最近一个access unit起始位置的 streamOffset
func (p *AuParser) KeyframeAuStreamOffset() int64 {
	return p.keyframeOffset
}

func (p *AuParser) ResumeState() ResumeState {
	return p.state
}

func (p *AuParser) Codec() Codec {
	return p.codec
}

func (p *AuParser) AuCount() uint64 {
	return p.auCount
}

// SpsCount 成功解析的sps个数，调用方可以用它判断格式信息是否有更新
func (p *AuParser) SpsCount() uint64 {
	return p.spsCount
}

func (p *AuParser) HasSps() bool {
	return p.haveSps
}

func (p *AuParser) Width() uint32 {
	if p.codec == CodecH265 {
		return p.hevcCtx.Width
	}
	return p.avcCtx.Width
}

func (p *AuParser) Height() uint32 {
	if p.codec == CodecH265 {
		return p.hevcCtx.Height
	}
	return p.avcCtx.Height
}

func (p *AuParser) AspectRatio() base.AspectRatio {
	if !p.haveSps {
		return base.AspectRatioUnknown
	}
	if p.codec == CodecH265 {
		return base.CalcAspectRatio(p.hevcCtx.Width, p.hevcCtx.Height, 0, 0)
	}
	return p.avcCtx.AspectRatio
}

// FrameRate h265暂时不解析vui，返回 base.FrameRateUnknown
func (p *AuParser) FrameRate() base.FrameRate {
	if p.codec == CodecH265 {
		return base.FrameRateUnknown
	}
	return p.avcCtx.FrameRate
}

// ----- private -------------------------------------------------------------------------------------------------------

func (p *AuParser) sliceHeaderBytes() int {
	if p.codec == CodecH265 {
		return h265SliceHeaderBytes
	}
	return h264SliceHeaderBytes
}

func (p *AuParser) startNalu(header uint8, streamOffset int64) {
	p.state = ResumeStateInNalu
	p.naluBuf = append(p.naluBuf[:0], header)
	p.naluType = ParseNaluType(p.codec, header)
	p.naluTruncated = false
	p.naluHandled = false
	p.naluOffset = streamOffset

	if IsAuStartNalu(p.codec, p.naluType) {
		if p.vclInAu {
			p.auPending = true
			p.auOffset = streamOffset
			p.vclInAu = false
			p.spsInAu = false
		} else if !p.auPending {
			p.auPending = true
			p.auOffset = streamOffset
		}
		if IsSpsNalu(p.codec, p.naluType) {
			p.spsInAu = true
		}
	}
}

// finishNalu 遇到下一个start code，当前nalu结束
func (p *AuParser) finishNalu() {
	nalu := p.naluBuf
	if !p.naluTruncated {
		// 去掉已经缓存的下一个start code的 00 00 01，以及 trailing_zero_8bits
		if len(nalu) >= 3 {
			nalu = nalu[:len(nalu)-3]
		}
		for len(nalu) > 0 && nalu[len(nalu)-1] == 0 {
			nalu = nalu[:len(nalu)-1]
		}
	}

	switch {
	case IsVclNalu(p.codec, p.naluType):
		if !p.naluHandled {
			p.handleVcl(nalu)
		}
	case IsSpsNalu(p.codec, p.naluType):
		if p.naluTruncated {
			Log.Warnf("sps too large, ignore. codec=%s", p.codec)
			return
		}
		p.handleSps(nalu)
	}
}

func (p *AuParser) handleSps(nalu []byte) {
	var err error
	if p.codec == CodecH265 {
		var ctx hevc.Context
		if err = hevc.ParseSps(nalu, &ctx); err == nil {
			p.hevcCtx = ctx
		}
	} else {
		var ctx avc.Context
		if err = avc.ParseSps(nalu, &ctx); err == nil {
			p.avcCtx = ctx
		}
	}
	if err != nil {
		return
	}
	p.haveSps = true
	p.spsCount++
}

func (p *AuParser) handleVcl(nalu []byte) {
	p.naluHandled = true

	var newPicture, idr, intra, bottom bool
	if p.codec == CodecH265 {
		first, err := hevc.FirstSliceSegmentInPicFlag(nalu)
		if err != nil {
			return
		}
		newPicture = first || !p.vclInAu
		idr = hevc.IsIrapNalu(p.naluType)
	} else {
		var ctx *avc.Context
		if p.haveSps {
			ctx = &p.avcCtx
		}
		sh, err := avc.ParseSliceHeader(nalu, ctx)
		if err != nil {
			Log.Debugf("parse slice header failed. err=%+v", err)
			return
		}
		var prev *avc.SliceHeader
		if p.havePrev {
			prev = &p.prevSlice
		}
		newPicture = !p.vclInAu || sh.FirstMbInSlice == 0 || avc.IsFirstVclOfNewPicture(prev, &sh)
		idr = sh.NaluType == avc.NaluTypeIdrSlice
		intra = avc.IsIntraSlice(sh.SliceType)
		bottom = sh.FieldPicFlag && sh.BottomFieldFlag
		p.prevSlice = sh
		p.havePrev = true
	}
	if !newPicture {
		return
	}

	if !p.auPending {
		// 前面没有AUD、SPS这些nalu，access unit从这个slice开始
		p.auOffset = p.naluOffset
		p.spsInAu = false
	}
	p.auPending = false
	p.vclInAu = true

	p.stateChanged = true
	p.onFrame = true
	p.onKeyFrame = idr || (intra && p.spsInAu)
	p.bottomField = bottom
	p.keyframeOffset = p.auOffset
	p.auCount++
}
