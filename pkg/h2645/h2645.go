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
	"github.com/q191201771/dtvrec/pkg/hevc"
	"github.com/q191201771/naza/pkg/nazalog"
)

// 无特殊说明的函数则同时支持h264和h265两种格式

var Log = nazalog.GetGlobalLogger()

type Codec uint8

const (
	CodecH264 Codec = iota + 1
	CodecH265
)

func (c Codec) String() string {
	switch c {
	case CodecH264:
		return "H264"
	case CodecH265:
		return "H265"
	}
	return "unknown"
}

// NaluHeaderSize h264为1字节，h265为2字节
func (c Codec) NaluHeaderSize() int {
	if c == CodecH265 {
		return 2
	}
	return 1
}

func ParseNaluType(codec Codec, v uint8) uint8 {
	if codec == CodecH265 {
		return hevc.ParseNaluType(v)
	}
	return avc.ParseNaluType(v)
}

func ParseNaluTypeReadable(codec Codec, v uint8) string {
	if codec == CodecH265 {
		return hevc.ParseNaluTypeReadable(v)
	}
	return avc.ParseNaluTypeReadable(v)
}

func IsVclNalu(codec Codec, typ uint8) bool {
	if codec == CodecH265 {
		return hevc.IsVclNalu(typ)
	}
	return avc.IsVclNalu(typ)
}

// IsAuStartNalu 在新access unit的第一个slice之前出现的非vcl nalu
//
// h264见 ISO-14496-10 7.4.1.2.3，h265见 ISO_IEC_23008-2 7.4.2.4.4
//
func IsAuStartNalu(codec Codec, typ uint8) bool {
	if codec == CodecH265 {
		return hevc.IsAuStartNalu(typ)
	}
	switch typ {
	case avc.NaluTypeAud, avc.NaluTypeSps, avc.NaluTypePps, avc.NaluTypeSei:
		return true
	}
	// 14..18
	return typ >= 14 && typ <= 18
}

// IsSpsNalu
func IsSpsNalu(codec Codec, typ uint8) bool {
	if codec == CodecH265 {
		return typ == hevc.NaluTypeSps
	}
	return typ == avc.NaluTypeSps
}

// SplitNaluAnnexb 按start code切分annexb格式的数据，返回的nalu不包含start code
//
// 3字节和4字节的start code都支持
//
func SplitNaluAnnexb(b []byte) [][]byte {
	var ret [][]byte
	start := -1
	i := 0
	for i+2 < len(b) {
		if b[i] == 0 && b[i+1] == 0 && b[i+2] == 1 {
			if start >= 0 {
				ret = append(ret, trimTrailingZero(b[start:i]))
			}
			i += 3
			start = i
			continue
		}
		i++
	}
	if start >= 0 && start < len(b) {
		ret = append(ret, b[start:])
	}
	return ret
}

// JoinNaluAnnexb 用4字节start code把nalu拼接起来
func JoinNaluAnnexb(nalus ...[]byte) []byte {
	var ret []byte
	for _, nalu := range nalus {
		ret = append(ret, avc.NaluStartCode4...)
		ret = append(ret, nalu...)
	}
	return ret
}

func trimTrailingZero(b []byte) []byte {
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return b
}
