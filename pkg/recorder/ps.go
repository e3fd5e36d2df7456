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

// FeedPsData 录制mpeg2 PS流，比如模拟采集卡的输出
//
// 数据原样写出，只在帧的边界处写出，关键帧的位置为 00 00 01 xx 的起始位置。
// 不完整的数据缓存到下一次调用。
//
// @param b: 任意长度，函数返回后内部不再持有
//
func (r *Recorder) FeedPsData(b []byte) {
	if r.disposed.Load() || len(b) == 0 {
		return
	}
	r.updateDataTime()

	bufStart := 0
	pos := 0
	skip := maxInt(r.audioBytesRemaining, r.otherBytesRemaining)
	for pos+skip < len(b) {
		var hasFrame, hasKeyFrame bool
		var format videoFormat
		framesSeen := int64(r.framesSeen.Load())

		prev := pos
		pos += skip
		pos += findStartCode(b[pos:], &r.startCode)
		r.audioBytesRemaining = 0
		r.otherBytesRemaining = 0
		r.videoBytesRemaining -= minInt(pos-prev, r.videoBytesRemaining)

		if r.startCode&0xFFFFFF00 != 0x00000100 {
			continue
		}

		// stream_id之后为PES_packet_length，即PES中剩余的字节数，对于视频里面的start code没有意义
		rest := b[pos:]
		pesRemaining := 0
		if len(rest) >= 2 {
			pesRemaining = (int(rest[0])<<8 | int(rest[1])) + 2
		}

		sid := uint8(r.startCode)
		if r.videoBytesRemaining > 0 {
			switch sid {
			case startCodePicture:
				// picture_coding_type: 1 I, 2 P, 3 B, 4 D
				if len(rest) >= 4 {
					t := (rest[1] >> 3) & 0x7
					hasFrame = t >= 1 && t <= 5
				} else {
					hasFrame = true
				}
			case startCodeGop:
				r.lastGopSeen = framesSeen
				hasKeyFrame = true
			case startCodeSequence:
				r.lastSeqSeen = framesSeen
				hasKeyFrame = hasKeyFrame || !isRecent(r.lastGopSeen, framesSeen)
				if len(rest) >= 4 {
					format = parseSequenceHeader(rest)
				}
			}
		} else if r.audioBytesRemaining == 0 {
			if mpegts.IsVideoStreamId(sid) {
				r.videoBytesRemaining = pesRemaining
			} else if mpegts.IsAudioStreamId(sid) {
				r.audioBytesRemaining = pesRemaining
			}
		}
		if sid == mpegts.StreamIdPadding {
			r.otherBytesRemaining = pesRemaining
		}

		r.startCode = 0xFFFFFFFF

		if hasFrame && !hasKeyFrame {
			hasKeyFrame = framesSeen&0xF == 0 &&
				!isRecent(r.lastGopSeen, framesSeen) &&
				!isRecent(r.lastSeqSeen, framesSeen)
		}

		if hasFrame {
			r.framesSeen.Increment()
			if !r.option.WaitForKeyframe || r.firstKeyframe >= 0 {
				r.updateFramesWritten()
			}
		}

		if hasKeyFrame {
			r.lastKeyframeSeen = r.framesSeen.Load()
			// start code的起始位置
			r.handleKeyframe(int64(len(r.payloadBuffer) + pos - bufStart - 4))
		}

		r.reportFormat(format)

		if hasFrame || hasKeyFrame {
			r.flushPayloadBuffer()
			if pos > bufStart {
				r.writeToSink(b[bufStart:pos])
			}
			bufStart = pos
		}

		skip = maxInt(r.audioBytesRemaining, r.otherBytesRemaining)
	}

	// 剩余的字节不再扫描，从各个PES剩余长度中扣除，下一次调用从正确的位置继续
	left := len(b) - pos
	r.audioBytesRemaining -= minInt(left, r.audioBytesRemaining)
	r.videoBytesRemaining -= minInt(left, r.videoBytesRemaining)
	r.otherBytesRemaining -= minInt(left, r.otherBytesRemaining)

	if bufStart < len(b) {
		r.payloadBuffer = append(r.payloadBuffer, b[bufStart:]...)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
