// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "fmt"

// FrameRate 分数形式的帧率，比如 30000/1001
//
// 零值表示未知帧率
//
type FrameRate struct {
	Num uint32
	Den uint32
}

var FrameRateUnknown = FrameRate{}

func NewFrameRate(num, den uint32) FrameRate {
	return FrameRate{Num: num, Den: den}
}

func (fr FrameRate) IsValid() bool {
	return fr.Num != 0 && fr.Den != 0
}

// Milli 帧率乘以1000后的整数值，比如 29970
func (fr FrameRate) Milli() uint32 {
	if !fr.IsValid() {
		return 0
	}
	return uint32(uint64(fr.Num) * 1000 / uint64(fr.Den))
}

func (fr FrameRate) Float64() float64 {
	if !fr.IsValid() {
		return 0
	}
	return float64(fr.Num) / float64(fr.Den)
}

func (fr FrameRate) String() string {
	return fmt.Sprintf("%d/%d", fr.Num, fr.Den)
}

// AspectRatio 显示宽高比
//
// 取值和mpeg2 sequence header中的aspect_ratio_information一致
//
type AspectRatio uint8

const (
	AspectRatioUnknown AspectRatio = 0
	AspectRatioSquare  AspectRatio = 1 // 1:1, 即sample aspect ratio为1:1
	AspectRatio4x3     AspectRatio = 2
	AspectRatio16x9    AspectRatio = 3
	AspectRatio221x1   AspectRatio = 4
)

func (a AspectRatio) String() string {
	switch a {
	case AspectRatioSquare:
		return "1:1"
	case AspectRatio4x3:
		return "4:3"
	case AspectRatio16x9:
		return "16:9"
	case AspectRatio221x1:
		return "2.21:1"
	}
	return fmt.Sprintf("unknown(%d)", uint8(a))
}

// CalcAspectRatio 根据显示宽高比选择最接近的 AspectRatio
//
// @param width, height: 像素宽高
// @param sarWidth, sarHeight: sample aspect ratio，为0时按1:1处理
//
func CalcAspectRatio(width, height, sarWidth, sarHeight uint32) AspectRatio {
	if width == 0 || height == 0 {
		return AspectRatioUnknown
	}
	if sarWidth == 0 || sarHeight == 0 {
		sarWidth, sarHeight = 1, 1
	}
	dar := float64(width) * float64(sarWidth) / (float64(height) * float64(sarHeight))

	// 取距离最近的一个
	candidates := []struct {
		v float64
		a AspectRatio
	}{
		{1.0, AspectRatioSquare},
		{4.0 / 3.0, AspectRatio4x3},
		{16.0 / 9.0, AspectRatio16x9},
		{2.21, AspectRatio221x1},
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if abs64(dar-c.v) < abs64(dar-best.v) {
			best = c
		}
	}
	return best.a
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
