// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package recorder

import (
	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/dtvrec/pkg/mpegts"
)

// findH2645Keyframes h264和h265视频中查找帧和关键帧
//
// 只在PES开始的TS packet处同步，跳过PES头之后的es数据交给 h2645.AuParser。
// PES头不完整或者没有找到时失去同步，直到下一个PES开始。
//
func (r *Recorder) findH2645Keyframes(pkt mpegts.TsPacket) {
	if !pkt.HasPayload() || r.auParser == nil {
		return
	}

	payloadStart := pkt.PayloadUnitStart()
	if payloadStart {
		r.pesSynced = false
	}

	var hasFrame, hasKeyFrame bool
	var format videoFormat

	b := []byte(pkt)
	i := pkt.AfcOffset()
	for i < len(b) {
		if payloadStart && !r.pesSynced {
			hdl, ok := mpegts.PesHeaderDataLength(b[i:])
			if !ok {
				Log.Warnf("[%s] pes header not found in ts packet with pusi set. pid=0x%x", r.uniqueKey, pkt.Pid())
				break
			}
			payloadPos := i + 9 + hdl
			if payloadPos > len(b) {
				Log.Warnf("[%s] pes header overflow to next ts packet. pid=0x%x, hdl=%d", r.uniqueKey, pkt.Pid(), hdl)
				break
			}
			sid := b[i+3]
			pts, dts := mpegts.ParsePesTimestamps(b[i+4:])
			r.handleTimestamps(sid, pts, dts)

			i = payloadPos
			r.pesSynced = true
			continue
		}

		if !r.pesSynced {
			break
		}

		// 当前packet在输出流中的位置，缓存的数据会先于当前packet写出
		streamOffset := r.sink.WritePosition() + int64(len(r.payloadBuffer))
		i += r.auParser.AddBytes(b[i:], streamOffset)

		if r.auParser.StateChanged() && r.auParser.OnFrameStart() && !r.auParser.IsBottomField() {
			hasKeyFrame = r.auParser.OnKeyFrameStart()
			hasFrame = true

			format.width = r.auParser.Width()
			format.height = r.auParser.Height()
			format.aspect = r.auParser.AspectRatio()
			format.frameRate = r.auParser.FrameRate()
			if !format.frameRate.IsValid() {
				format.frameRate = defaultVideoFrameRate
			}
		}
	}

	framesSeen := r.framesSeen.Load()
	if hasFrame && !hasKeyFrame && framesSeen-r.lastKeyframeSeen > uint64(base.RecorderH264MaxKeyframeDistance) {
		Log.Warnf("[%s] %d frames without a keyframe.", r.uniqueKey, framesSeen-r.lastKeyframeSeen)
		hasKeyFrame = true
	}

	if hasKeyFrame && (r.bufferPackets || r.firstKeyframe >= 0) {
		Log.Tracef("[%s] keyframe. pos=%d, buffered=%d, au=%d",
			r.uniqueKey, r.sink.WritePosition(), len(r.payloadBuffer), r.auParser.KeyframeAuStreamOffset())
		r.lastKeyframeSeen = framesSeen
		r.handleH2645Keyframe()
	}

	if hasFrame {
		r.frameDecided()
	}

	r.reportFormat(format)
}

// handleH2645Keyframe 关键帧的位置使用access unit的起始位置
func (r *Recorder) handleH2645Keyframe() {
	r.checkForSegmentSwitch()

	frameNum := r.framesWritten.Load()
	var offset int64
	if r.firstKeyframe < 0 {
		// 文件中的第一个关键帧，从文件头开始
		r.firstKeyframe = int64(frameNum)
		Log.Infof("[%s] first keyframe. frame=%d", r.uniqueKey, frameNum)
		r.observer.OnFirstKeyframeWritten(frameNum)
	} else {
		offset = r.auParser.KeyframeAuStreamOffset()
	}
	r.addPositionMapEntry(frameNum, offset)
}
