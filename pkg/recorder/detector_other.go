// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package recorder

import (
	"github.com/q191201771/dtvrec/pkg/mpegts"
)

// findAudioKeyframes 只有音频的节目，根据PTS按照 audioOnlyFrameRate 产生虚拟帧，每8帧一个关键帧
func (r *Recorder) findAudioKeyframes(pkt mpegts.TsPacket) {
	if r.primaryVideoPid != 0 || pkt.Pid() != r.primaryAudioPid {
		return
	}
	if !pkt.HasPayload() || !pkt.PayloadUnitStart() {
		return
	}

	pes, _, err := mpegts.ParsePes(pkt.Payload())
	if err != nil || pes.Pts < 0 {
		return
	}
	r.handleTimestamps(pes.Sid, pes.Pts, pes.Dts)

	if r.audioPtsFirst < 0 {
		r.audioPtsFirst = pes.Pts
	}
	r.audioPtsLast = pes.Pts

	diff := r.audioPtsLast - r.audioPtsFirst
	if diff < 0 {
		diff += tsMax + 1
	}
	expected := uint64(diff) * uint64(audioOnlyFrameRate.Num) / (uint64(audioOnlyFrameRate.Den) * 90000)

	fs := r.framesSeen.Load()
	if fs != 0 && fs >= expected {
		return
	}

	r.bufferPackets = false
	r.framesSeen.Increment()
	fs = r.framesSeen.Load()
	if fs&audioKeyframeMask == 1 {
		r.lastKeyframeSeen = fs
		r.reportFormat(videoFormat{frameRate: audioOnlyFrameRate})
		r.handleKeyframe(int64(len(r.payloadBuffer)))
	}
	if !r.option.WaitForKeyframe || r.firstKeyframe >= 0 {
		r.updateFramesWritten()
	}
}

// findOtherKeyframes 没有音视频的节目，比如纯数据广播，第一个packet为唯一的关键帧
func (r *Recorder) findOtherKeyframes() {
	if r.hasWrittenOtherKeyframe {
		return
	}
	r.hasWrittenOtherKeyframe = true
	Log.Infof("[%s] program without audio and video, writing first packet as keyframe.", r.uniqueKey)

	r.framesSeen.Increment()
	r.handleKeyframe(int64(len(r.payloadBuffer)))
	r.updateFramesWritten()
}

// processMpts 录制整个复用流，每隔 mptsKeyframeInterval 产生一个虚拟关键帧
func (r *Recorder) processMpts(pkt mpegts.TsPacket) {
	now := r.option.Clock.Now()
	if r.framesSeen.Load() == 0 {
		r.mptsTimer = now
	}
	r.framesSeen.Increment()

	if now.Sub(r.mptsTimer) > mptsKeyframeInterval {
		r.statMutex.Lock()
		r.frameRate = mptsFrameRate
		r.statMutex.Unlock()

		r.updateFramesWritten()
		r.handleKeyframe(int64(len(r.payloadBuffer)))
		r.mptsTimer = r.mptsTimer.Add(mptsKeyframeInterval)
	}

	r.bufferedWrite(pkt, false)
}
