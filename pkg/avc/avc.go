// Copyright 2019, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avc

import (
	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/naza/pkg/nazalog"
)

var Log = nazalog.GetGlobalLogger()

var ErrAvc = base.ErrAvc

var (
	NaluStartCode3 = []byte{0x0, 0x0, 0x1}
	NaluStartCode4 = []byte{0x0, 0x0, 0x0, 0x1}
)

var NaluTypeMapping = map[uint8]string{
	1:  "SLICE",
	5:  "IDR",
	6:  "SEI",
	7:  "SPS",
	8:  "PPS",
	9:  "AUD",
	10: "EOSEQ",
	11: "EOSTREAM",
	12: "FD",
}

var SliceTypeMapping = map[uint8]string{
	0: "P",
	1: "B",
	2: "I",
	3: "SP",
	4: "SI",
	5: "P",
	6: "B",
	7: "I",
	8: "SP",
	9: "SI",
}

const (
	NaluTypeSlice       uint8 = 1
	NaluTypeIdrSlice    uint8 = 5
	NaluTypeSei         uint8 = 6
	NaluTypeSps         uint8 = 7
	NaluTypePps         uint8 = 8
	NaluTypeAud         uint8 = 9
	NaluTypeEndOfSeq    uint8 = 10
	NaluTypeEndOfStream uint8 = 11
	NaluTypeFiller      uint8 = 12
)

const (
	SliceTypeP  uint8 = 0
	SliceTypeB  uint8 = 1
	SliceTypeI  uint8 = 2
	SliceTypeSp uint8 = 3
	SliceTypeSi uint8 = 4
)

// ParseNaluType
//
// @param v: nalu的第一个字节
//
func ParseNaluType(v uint8) uint8 {
	return v & 0x1f
}

func ParseNaluRefIdc(v uint8) uint8 {
	return (v >> 5) & 0x3
}

func ParseNaluTypeReadable(v uint8) string {
	t := ParseNaluType(v)
	ret, ok := NaluTypeMapping[t]
	if !ok {
		return "unknown"
	}
	return ret
}

func SliceTypeReadable(t uint8) string {
	ret, ok := SliceTypeMapping[t]
	if !ok {
		return "unknown"
	}
	return ret
}

// IsVclNalu 是否是携带图像数据的nalu
func IsVclNalu(t uint8) bool {
	return t >= NaluTypeSlice && t <= NaluTypeIdrSlice
}

// IsIntraSlice slice_type为I或SI，包含5~9的取值
func IsIntraSlice(sliceType uint8) bool {
	t := sliceType % 5
	return t == SliceTypeI || t == SliceTypeSi
}

// Ebsp2Rbsp 去除防竞争字节，也即 00 00 03 中的 03
//
// h265也使用同样的规则
//
func Ebsp2Rbsp(b []byte) []byte {
	out := make([]byte, 0, len(b))
	zeros := 0
	for _, c := range b {
		if zeros >= 2 && c == 0x3 {
			zeros = 0
			continue
		}
		if c == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, c)
	}
	return out
}
