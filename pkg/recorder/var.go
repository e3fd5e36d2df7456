// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package recorder

import (
	"time"

	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/naza/pkg/nazalog"
)

var Log = nazalog.GetGlobalLogger()

const (
	// mpeg视频中的start code，即 00 00 01 后面的一个字节
	startCodePicture   uint8 = 0x00
	startCodeSequence  uint8 = 0xb3
	startCodeExtension uint8 = 0xb5
	startCodeGop       uint8 = 0xb8

	// extension_start_code_identifier
	extensionIdSequence      = 0x1
	extensionIdPictureCoding = 0x8
)

const (
	// 每个PES stream_id前多少个时间戳用于确定起始时间戳
	tsFirstCount = 30

	// 时间戳往回跳超过10秒，当作33位回绕处理
	tsWrapThreshold int64 = -10 * 90000

	// 33位全1
	tsMax int64 = 0x1ffffffff

	gapThresholdDts   int64 = 90000
	gapThresholdPts   int64 = 2 * 90000
	gapThresholdMusic int64 = 8 * 90000

	// 第一个关键帧之前，视频时间戳跨度超过3秒时，认为是音乐台这种帧率很低的节目
	musicChoiceSpan int64 = 3 * 90000

	// mpts模式下，每隔这么长时间产生一个虚拟关键帧
	mptsKeyframeInterval = 500 * time.Millisecond

	// 每隔多少个虚拟帧产生一个关键帧，见 findAudioKeyframes
	audioKeyframeMask = 0x7

	// 打印前多少个continuity counter错误
	ccErrorLogMaxCount = 64

	gapTimeLayout = "2006-01-02 15:04:05.000"
)

var (
	// 只有音频的节目，按照这个帧率产生虚拟帧
	audioOnlyFrameRate = base.NewFrameRate(30000, 1001)

	// mpts模式下每个虚拟帧的时长为500毫秒
	mptsFrameRate = base.NewFrameRate(2, 1)

	// 视频流中解析不出帧率时，计算时长使用的帧率
	defaultVideoFrameRate = base.NewFrameRate(30000, 1001)
)

// mpeg2 sequence header中frame_rate_code对应的帧率
//
// <iso13818-2.pdf> <Table 6-4 – frame_rate_value> <page 39/255>
//
var frameRateMap = [16]base.FrameRate{
	{},
	{Num: 24000, Den: 1001},
	{Num: 24, Den: 1},
	{Num: 25, Den: 1},
	{Num: 30000, Den: 1001},
	{Num: 30, Den: 1},
	{Num: 50, Den: 1},
	{Num: 60000, Den: 1001},
	{Num: 60, Den: 1},
	{}, {}, {}, {}, {}, {}, {},
}
