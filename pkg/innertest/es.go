// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package innertest

// ----- h264 ----------------------------------------------------------------------------------------------------------

// H264Sps1080p main profile, 1920x1080, 逐行, sar 1:1, 30000/1001
var H264Sps1080p = []byte{
	0x67, 0x4d, 0x40, 0x28, 0xed, 0x00, 0xf0, 0x04, 0x4f, 0xcb, 0x80, 0x88, 0x00, 0x00, 0x1f, 0x48,
	0x00, 0x07, 0x53, 0x04, 0x20,
}

// H264Sps576i high profile, 720x576, 隔行, sar 16:11, 25fps
var H264Sps576i = []byte{
	0x67, 0x64, 0x00, 0x1e, 0xac, 0x35, 0xb0, 0x2d, 0x09, 0x36, 0x08, 0x20, 0x00, 0x00, 0x03, 0x00,
	0x20, 0x00, 0x00, 0x06, 0x50, 0x80,
}

var (
	H264Pps = []byte{0x68, 0xe8}
	H264Aud = []byte{0x09, 0xf0}

	// 以下slice header都按 H264Sps1080p 编码
	H264IdrSliceHeader = []byte{0x65, 0x88, 0x84, 0x0a}
	H264PSliceHeader   = []byte{0x41, 0x9a, 0x22, 0x55}
)

// ----- h265 ----------------------------------------------------------------------------------------------------------

// H265Sps1080p main profile, 1920x1080
var H265Sps1080p = []byte{
	0x42, 0x01, 0x01, 0x01, 0x60, 0x00, 0x00, 0x03, 0x00, 0x90, 0x00, 0x00, 0x03, 0x00, 0x00, 0x03,
	0x00, 0x78, 0xa0, 0x03, 0xc0, 0x80, 0x11, 0x07, 0xcb, 0x96,
}

var (
	H265Aud = []byte{0x46, 0x01, 0x50}
	H265Vps = []byte{0x40, 0x01, 0x0c, 0x01, 0xff, 0xff}
	H265Pps = []byte{0x44, 0x01, 0xc1, 0x72}

	// first_slice_segment_in_pic_flag 为1
	H265IdrSliceHeader   = []byte{0x26, 0x01, 0xaf}
	H265TrailSliceHeader = []byte{0x02, 0x01, 0xd0}
)

var startCode4 = []byte{0x0, 0x0, 0x0, 0x1}

// H264Au 生成一个annexb格式的access unit：AUD，关键帧时带上SPS、PPS，最后是一个slice
//
// @param sliceSize: slice数据部分的长度，用于构造跨多个ts包的帧
//
func H264Au(key bool, sliceSize int) []byte {
	var out []byte
	out = appendNalu(out, H264Aud)
	if key {
		out = appendNalu(out, H264Sps1080p)
		out = appendNalu(out, H264Pps)
		out = appendNalu(out, withFiller(H264IdrSliceHeader, sliceSize))
	} else {
		out = appendNalu(out, withFiller(H264PSliceHeader, sliceSize))
	}
	return out
}

// H264AuNoAud 不带AUD的access unit，用于检查以slice作为access unit起点的情况
func H264AuNoAud(key bool, sliceSize int) []byte {
	var out []byte
	if key {
		out = appendNalu(out, H264Sps1080p)
		out = appendNalu(out, H264Pps)
		out = appendNalu(out, withFiller(H264IdrSliceHeader, sliceSize))
	} else {
		out = appendNalu(out, withFiller(H264PSliceHeader, sliceSize))
	}
	return out
}

func H265Au(key bool, sliceSize int) []byte {
	var out []byte
	out = appendNalu(out, H265Aud)
	if key {
		out = appendNalu(out, H265Vps)
		out = appendNalu(out, H265Sps1080p)
		out = appendNalu(out, H265Pps)
		out = appendNalu(out, withFiller(H265IdrSliceHeader, sliceSize))
	} else {
		out = appendNalu(out, withFiller(H265TrailSliceHeader, sliceSize))
	}
	return out
}

// ----- mpeg2 video ---------------------------------------------------------------------------------------------------

const (
	Mpeg2PictureTypeI uint8 = 1
	Mpeg2PictureTypeP uint8 = 2
	Mpeg2PictureTypeB uint8 = 3
)

// Mpeg2SequenceHeader
//
// ISO/IEC 13818-2 6.2.2.1 Sequence header
//
// @param aspect:        aspect_ratio_information，2为4:3，3为16:9
// @param frameRateCode: 3为25，4为30000/1001
//
func Mpeg2SequenceHeader(width, height uint16, aspect, frameRateCode uint8) []byte {
	return []byte{
		0x00, 0x00, 0x01, 0xb3,
		uint8(width >> 4),
		uint8(width&0xf)<<4 | uint8(height>>8),
		uint8(height),
		aspect<<4 | frameRateCode,
		0xff, 0xff, 0xe0, 0x18,
	}
}

// Mpeg2SequenceExtension 6.2.2.3 Sequence extension
func Mpeg2SequenceExtension(progressive bool) []byte {
	b1 := uint8(0x82)
	if progressive {
		b1 |= 0x08
	}
	return []byte{0x00, 0x00, 0x01, 0xb5, 0x14, b1, 0x01, 0x01, 0x80, 0x01}
}

// Mpeg2Gop 6.2.2.6 Group of pictures header
func Mpeg2Gop() []byte {
	return []byte{0x00, 0x00, 0x01, 0xb8, 0x00, 0x08, 0x00, 0x40}
}

// Mpeg2PictureHeader 6.2.3 Picture header
func Mpeg2PictureHeader(pictureType uint8) []byte {
	return []byte{0x00, 0x00, 0x01, 0x00, 0x00, pictureType<<3 | 0x07, 0xff, 0xf8}
}

// Mpeg2PictureCodingExtension 6.2.3.1 Picture coding extension
func Mpeg2PictureCodingExtension(topFieldFirst, repeatFirstField, progressiveFrame bool) []byte {
	b3 := uint8(0x0)
	if topFieldFirst {
		b3 |= 0x80
	}
	if repeatFirstField {
		b3 |= 0x02
	}
	b4 := uint8(0x40)
	if progressiveFrame {
		b4 |= 0x80
	}
	return []byte{0x00, 0x00, 0x01, 0xb5, 0x8f, 0xff, 0xf3, b3, b4}
}

// Mpeg2Slice 一个slice，数据部分用非0字节填充
func Mpeg2Slice(size int) []byte {
	return withFiller([]byte{0x00, 0x00, 0x01, 0x01}, size)
}

// Mpeg2Frame 按常见的广播流组织一帧：I帧前带sequence header、sequence extension以及GOP
func Mpeg2Frame(pictureType uint8, withSeq bool, withGop bool, sliceSize int) []byte {
	var out []byte
	if withSeq {
		out = append(out, Mpeg2SequenceHeader(720, 576, 3, 3)...)
		out = append(out, Mpeg2SequenceExtension(false)...)
	}
	if withGop {
		out = append(out, Mpeg2Gop()...)
	}
	out = append(out, Mpeg2PictureHeader(pictureType)...)
	out = append(out, Mpeg2PictureCodingExtension(true, false, false)...)
	out = append(out, Mpeg2Slice(sliceSize)...)
	return out
}

// ----- private -------------------------------------------------------------------------------------------------------

func appendNalu(out []byte, nalu []byte) []byte {
	out = append(out, startCode4...)
	return append(out, nalu...)
}

func withFiller(header []byte, size int) []byte {
	out := make([]byte, len(header), len(header)+size)
	copy(out, header)
	for i := 0; i < size; i++ {
		out = append(out, 0xa5)
	}
	return out
}
