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

// videoFormat 从码流中解析出的视频格式，零值表示这一次没有解析到
type videoFormat struct {
	width     uint32
	height    uint32
	aspect    base.AspectRatio
	frameRate base.FrameRate
}

func (r *Recorder) processVideo(pkt mpegts.TsPacket, info pidInfo) {
	if pkt.HasPayload() && pkt.PayloadUnitStart() {
		if r.bufferPackets && r.firstKeyframe >= 0 && len(r.payloadBuffer) > 0 {
			r.flushPayloadBuffer()
		}
		// 确定是否为关键帧之前先缓存
		r.bufferPackets = true
	}

	switch info.detector {
	case detectorKindMpeg2:
		r.findMpeg2Keyframes(pkt)
	case detectorKindH264, detectorKindH265:
		r.findH2645Keyframes(pkt)
	}
	r.processAv(pkt)
}

func (r *Recorder) processAudio(pkt mpegts.TsPacket, info pidInfo) {
	if pkt.HasPayload() && pkt.PayloadUnitStart() {
		if r.bufferPackets && r.firstKeyframe >= 0 && len(r.payloadBuffer) > 0 {
			r.flushPayloadBuffer()
		}
		r.bufferPackets = true
	}

	r.findAudioKeyframes(pkt)
	r.processAv(pkt)
}

// processAv 音视频packet的公共部分
func (r *Recorder) processAv(pkt mpegts.TsPacket) {
	if r.option.WaitForKeyframe && r.firstKeyframe < 0 {
		if r.bufferPackets {
			r.bufferedWrite(pkt, false)
		}
		return
	}

	pid := pkt.Pid()
	if pkt.PayloadUnitStart() && !r.payloadStartSeen[pid] {
		r.payloadStartSeen[pid] = true
		Log.Infof("[%s] pid 0x%x found payload start.", r.uniqueKey, pid)
	}
	r.bufferedWrite(pkt, false)
}

// findMpeg2Keyframes mpeg1/2视频中查找帧和关键帧
//
// 查找以下start code：
//   00 00 01 00: picture_start_code，一帧
//   00 00 01 B8: group_start_code，关键帧
//   00 00 01 B3: sequence_header_code，附近没有GOP时为关键帧，同时包含分辨率等信息
//   00 00 01 B5: extension_start_code，用于计算帧的时长
//
// 既没有GOP也没有sequence header的流，每16帧强制产生一个关键帧
//
func (r *Recorder) findMpeg2Keyframes(pkt mpegts.TsPacket) {
	if !pkt.HasPayload() {
		return
	}
	// 新的PES开始时，重新查找start code
	if pkt.PayloadUnitStart() {
		r.startCode = 0xFFFFFFFF
	}

	var hasFrame, hasKeyFrame bool
	var format videoFormat
	framesSeen := int64(r.framesSeen.Load())
	r.repeatPict = 0

	b := []byte(pkt)
	pos := pkt.AfcOffset()
	for pos < len(b) {
		pos += findStartCode(b[pos:], &r.startCode)
		if r.startCode&0xFFFFFF00 != 0x00000100 {
			continue
		}
		rest := b[pos:]
		sid := uint8(r.startCode)
		switch sid {
		case startCodePicture:
			hasFrame = true
		case startCodeGop:
			r.lastGopSeen = framesSeen
			hasKeyFrame = true
		case startCodeSequence:
			r.lastSeqSeen = framesSeen
			hasKeyFrame = hasKeyFrame || !isRecent(r.lastGopSeen, framesSeen)
			if len(rest) >= 4 {
				format = parseSequenceHeader(rest)
			}
		case startCodeExtension:
			r.handleExtension(rest)
		}

		if mpegts.IsVideoStreamId(sid) {
			pts, dts := mpegts.ParsePesTimestamps(rest)
			r.handleTimestamps(sid, pts, dts)

			// 音乐台这种帧率很低的节目
			if r.firstKeyframe < 0 && r.tsLast[sid]-r.tsFirst[sid] > musicChoiceSpan {
				hasKeyFrame = true
				if !r.musicChoice {
					Log.Infof("[%s] music choice program detected.", r.uniqueKey)
				}
				r.musicChoice = true
			}
		}
	}

	if hasFrame && !hasKeyFrame {
		// 超过 RecorderMaxKeyframeDistance 帧没有GOP和sequence header，假装这一帧是关键帧，
		// 可能有花屏，但至少可以seek
		hasKeyFrame = framesSeen&0xF == 0 &&
			!isRecent(r.lastGopSeen, framesSeen) &&
			!isRecent(r.lastSeqSeen, framesSeen)
	}

	// bufferPackets为true说明已经看到了PES的开始
	if hasKeyFrame && (r.bufferPackets || r.firstKeyframe >= 0) {
		Log.Tracef("[%s] keyframe. pos=%d, buffered=%d", r.uniqueKey, r.sink.WritePosition(), len(r.payloadBuffer))
		r.lastKeyframeSeen = uint64(framesSeen)
		r.handleKeyframe(0)
	}

	if hasFrame {
		r.frameDecided()
	}

	r.reportFormat(format)
}

// handleExtension
//
// @param b: extension_start_code之后的数据
//
// <iso13818-2.pdf> <6.2.2.3 Sequence extension> <6.2.3.1 Picture coding extension>
//
func (r *Recorder) handleExtension(b []byte) {
	if len(b) < 1 {
		return
	}
	switch b[0] >> 4 {
	case extensionIdSequence:
		if len(b) >= 6 {
			r.progressiveSequence = b[1]&0x08 != 0
		}
	case extensionIdPictureCoding:
		if len(b) >= 5 {
			topFieldFirst := b[3]&0x80 != 0
			repeatFirstField := b[3]&0x02 != 0
			progressiveFrame := b[4]&0x80 != 0

			r.repeatPict = 1
			if repeatFirstField {
				if r.progressiveSequence {
					if topFieldFirst {
						r.repeatPict = 5
					} else {
						r.repeatPict = 3
					}
				} else if progressiveFrame {
					r.repeatPict = 2
				}
			}
			// 重复的场数
			r.repeatPict--
		}
	}
}

// frameDecided 确定了当前帧是否为关键帧
func (r *Recorder) frameDecided() {
	r.bufferPackets = false
	r.framesSeen.Increment()
	if !r.option.WaitForKeyframe || r.firstKeyframe >= 0 {
		r.updateFramesWritten()
	} else {
		// 不是关键帧，并且需要从关键帧开始录制
		r.payloadBuffer = r.payloadBuffer[:0]
	}
}

// reportFormat 宽高比、分辨率、帧率发生变化时通知
func (r *Recorder) reportFormat(f videoFormat) {
	frames := r.framesWritten.Load()

	r.statMutex.Lock()
	aspectChanged := f.aspect != base.AspectRatioUnknown && f.aspect != r.aspect
	if aspectChanged {
		r.aspect = f.aspect
	}
	resolutionChanged := f.width != 0 && f.height != 0 && (f.width != r.width || f.height != r.height)
	if resolutionChanged {
		r.width = f.width
		r.height = f.height
	}
	frameRateChanged := f.frameRate.IsValid() && f.frameRate != r.frameRate
	if frameRateChanged {
		r.frameRate = f.frameRate
	}
	r.statMutex.Unlock()

	if aspectChanged {
		Log.Infof("[%s] aspect change. aspect=%s, frame=%d", r.uniqueKey, f.aspect, frames)
		r.observer.OnAspectChange(f.aspect, frames)
	}
	if resolutionChanged {
		Log.Infof("[%s] resolution change. %dx%d, frame=%d", r.uniqueKey, f.width, f.height, frames)
		r.observer.OnResolutionChange(f.width, f.height, frames)
	}
	if frameRateChanged {
		Log.Infof("[%s] frame rate change. frameRate=%s, frame=%d", r.uniqueKey, f.frameRate, frames)
		r.observer.OnFrameRateChange(f.frameRate.Milli(), frames)
	}
}

// parseSequenceHeader
//
// @param b: sequence_header_code之后的数据，至少4字节
//
// horizontal_size_value       [12b]
// vertical_size_value         [12b]
// aspect_ratio_information    [4b]
// frame_rate_code             [4b]
//
func parseSequenceHeader(b []byte) (f videoFormat) {
	f.width = uint32(b[0])<<4 | uint32(b[1])>>4
	f.height = uint32(b[1]&0x0f)<<8 | uint32(b[2])
	f.aspect = base.AspectRatio(b[3] >> 4)
	f.frameRate = frameRateMap[b[3]&0x0f]
	return
}

// findStartCode 查找下一个 00 00 01 xx，state 跨调用保存已经读取的最后4个字节
//
// @return 消费的字节数。找到时 state 的低8位即为 xx
//
func findStartCode(b []byte, state *uint32) int {
	for i, c := range b {
		*state = *state<<8 | uint32(c)
		if *state&0xFFFFFF00 == 0x00000100 {
			return i + 1
		}
	}
	return len(b)
}

// isRecent last帧号是否在最近 RecorderMaxKeyframeDistance 帧之内，从来没有出现过时为false
func isRecent(last int64, framesSeen int64) bool {
	return last >= 0 && last+base.RecorderMaxKeyframeDistance >= framesSeen
}
