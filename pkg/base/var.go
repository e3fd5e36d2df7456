// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/nazalog"

var Log = nazalog.GetGlobalLogger()

// ----- recorder --------------------
var (
	// RecorderMaxKeyframeDistance
	//
	// mpeg2视频中，超过这个帧数没有看到GOP头，sequence头才会被当作关键帧，
	// 同时也是强制关键帧的最小间隔
	//
	RecorderMaxKeyframeDistance int64 = 80

	// RecorderH264MaxKeyframeDistance h264视频中，超过这个帧数没有看到关键帧时强制产生一个关键帧
	RecorderH264MaxKeyframeDistance int64 = 511

	// RecorderSavePositionMapIntervalMs 周期性保存position map增量的间隔
	RecorderSavePositionMapIntervalMs = 1500
)

// ----- ringbuffer --------------------
var (
	// RingBufferWriteBufSize 写文件前合并小块数据的缓存大小，188的整数倍
	RingBufferWriteBufSize = 188 * 348
)
