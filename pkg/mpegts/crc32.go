// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

// PSI使用的是 CRC-32/MPEG-2：多项式0x04C11DB7，高位在前，不反转，结果不异或。
// 标准库 hash/crc32 只提供反转(LSB在前)的实现，所以这里自己生成表。
//
// <iso13818-1.pdf> <Annex A CRC decoder model> <page 94/174>

const crc32MpegPoly uint32 = 0x04c11db7

var crc32MpegTable [256]uint32

// CalcCrc32
//
// @param crc: 初始值，PSI中固定为0xffffffff
//
func CalcCrc32(crc uint32, buffer []byte) uint32 {
	for _, b := range buffer {
		crc = (crc << 8) ^ crc32MpegTable[byte(crc>>24)^b]
	}
	return crc
}

// VerifySectionCrc32 对包含尾部CRC_32字段的完整section做校验，正确时计算结果为0
func VerifySectionCrc32(section []byte) bool {
	return CalcCrc32(0xffffffff, section) == 0
}

func init() {
	for i := 0; i < 256; i++ {
		c := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if c&0x80000000 != 0 {
				c = (c << 1) ^ crc32MpegPoly
			} else {
				c <<= 1
			}
		}
		crc32MpegTable[i] = c
	}
}
