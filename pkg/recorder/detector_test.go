// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package recorder

import (
	"testing"
	"time"

	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/naza/pkg/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

type bufSink struct {
	buf []byte
}

func (s *bufSink) Write(b []byte) (int, error) {
	s.buf = append(s.buf, b...)
	return len(b), nil
}
func (s *bufSink) WritePosition() int64 { return int64(len(s.buf)) }
func (s *bufSink) SwitchPending() bool { return false }
func (s *bufSink) SwitchToNextSegment() error { return nil }
func (s *bufSink) Flush() error { return nil }

type recordInfo struct {
	durationMs int64
	frames     uint64
	saved      map[MarkType]int
	status     []RecordingStatus
}

func (i *recordInfo) SetDuration(durationMs int64) { i.durationMs = durationMs }
func (i *recordInfo) SetTotalFrames(frames uint64) { i.frames = frames }
func (i *recordInfo) ClearPositionMap(kind MarkType) {}
func (i *recordInfo) SavePositionMap(kind MarkType, delta map[uint64]int64) {
	if i.saved == nil {
		i.saved = make(map[MarkType]int)
	}
	i.saved[kind] += len(delta)
}
func (i *recordInfo) SetRecordingGaps(gaps []RecordingGap) {}
func (i *recordInfo) SetRecordingStatus(status RecordingStatus) {
	i.status = append(i.status, status)
}

func newTestRecorder(info IRecordingInfo) (*Recorder, *bufSink, *fakeClock) {
	sink := &bufSink{}
	clock := &fakeClock{now: time.Date(2022, 3, 1, 20, 0, 0, 0, time.UTC)}
	r := NewRecorder(sink, info, nil, func(option *RecorderOption) {
		option.Clock = clock
	})
	return r, sink, clock
}

func TestFindStartCode(t *testing.T) {
	state := uint32(0xFFFFFFFF)
	b := []byte{0xff, 0x00, 0x00, 0x01, 0xb3, 0x11}
	n := findStartCode(b, &state)
	assert.Equal(t, 5, n)
	assert.Equal(t, uint32(0x000001b3), state)

	n = findStartCode(b[n:], &state)
	assert.Equal(t, 1, n)
	assert.Equal(t, false, state&0xFFFFFF00 == 0x00000100)

	// start code跨越两块数据
	state = 0xFFFFFFFF
	n = findStartCode([]byte{0x12, 0x00, 0x00}, &state)
	assert.Equal(t, 3, n)
	n = findStartCode([]byte{0x01, 0xb8, 0x00}, &state)
	assert.Equal(t, 2, n)
	assert.Equal(t, uint32(0x000001b8), state)
}

func TestParseSequenceHeader(t *testing.T) {
	f := parseSequenceHeader([]byte{0x2d, 0x02, 0x40, 0x33})
	assert.Equal(t, uint32(720), f.width)
	assert.Equal(t, uint32(576), f.height)
	assert.Equal(t, base.AspectRatio16x9, f.aspect)
	assert.Equal(t, base.NewFrameRate(25, 1), f.frameRate)

	f = parseSequenceHeader([]byte{0x78, 0x04, 0x38, 0x24})
	assert.Equal(t, uint32(1920), f.width)
	assert.Equal(t, uint32(1080), f.height)
	assert.Equal(t, base.AspectRatio4x3, f.aspect)
	assert.Equal(t, base.NewFrameRate(30000, 1001), f.frameRate)

	// 保留的frame_rate_code
	f = parseSequenceHeader([]byte{0x2d, 0x02, 0x40, 0x3f})
	assert.Equal(t, false, f.frameRate.IsValid())
}

func TestHandleExtension(t *testing.T) {
	r, _, _ := newTestRecorder(nil)

	pictureCoding := func(tff, rff, pf bool) []byte {
		b := []byte{0x8f, 0xff, 0xf3, 0x00, 0x40}
		if tff {
			b[3] |= 0x80
		}
		if rff {
			b[3] |= 0x02
		}
		if pf {
			b[4] |= 0x80
		}
		return b
	}

	r.handleExtension([]byte{0x14, 0x82, 0x01, 0x01, 0x80, 0x01})
	assert.Equal(t, false, r.progressiveSequence)
	r.handleExtension(pictureCoding(true, false, false))
	assert.Equal(t, 0, r.repeatPict)
	r.handleExtension(pictureCoding(true, true, true))
	assert.Equal(t, 1, r.repeatPict)
	r.handleExtension(pictureCoding(true, true, false))
	assert.Equal(t, 0, r.repeatPict)

	r.handleExtension([]byte{0x14, 0x8a, 0x01, 0x01, 0x80, 0x01})
	assert.Equal(t, true, r.progressiveSequence)
	r.handleExtension(pictureCoding(true, true, true))
	assert.Equal(t, 4, r.repeatPict)
	r.handleExtension(pictureCoding(false, true, true))
	assert.Equal(t, 2, r.repeatPict)

	// 数据不足时不修改
	r.handleExtension([]byte{0x8f, 0xff})
	assert.Equal(t, 2, r.repeatPict)
}

func TestIsRecent(t *testing.T) {
	assert.Equal(t, false, isRecent(-1, 0))
	assert.Equal(t, true, isRecent(0, 0))
	assert.Equal(t, true, isRecent(0, base.RecorderMaxKeyframeDistance))
	assert.Equal(t, false, isRecent(0, base.RecorderMaxKeyframeDistance+1))
}

func TestUpdateFramesWritten(t *testing.T) {
	r, _, _ := newTestRecorder(nil)

	r.frameRate = base.NewFrameRate(25, 1)
	for i := 0; i < 25; i++ {
		r.updateFramesWritten()
	}
	assert.Equal(t, uint64(25), r.framesWritten.Load())
	assert.Equal(t, int64(1000), r.totalDurationMs.Load())

	// 帧率变化后在已有时长的基础上累加
	r.frameRate = base.NewFrameRate(50, 1)
	for i := 0; i < 50; i++ {
		r.updateFramesWritten()
	}
	assert.Equal(t, int64(2000), r.totalDurationMs.Load())

	// 重复一场，一帧为3个半帧
	r.repeatPict = 1
	for i := 0; i < 10; i++ {
		r.updateFramesWritten()
	}
	assert.Equal(t, int64(2300), r.totalDurationMs.Load())
}

func TestAddPositionMapEntry(t *testing.T) {
	r, _, _ := newTestRecorder(nil)

	r.addPositionMapEntry(0, 376)
	r.addPositionMapEntry(0, 1000)
	r.addPositionMapEntry(12, -188)
	r.addPositionMapEntry(24, 9400)

	m := r.GetPositionMap()
	assert.Equal(t, map[uint64]int64{0: 376, 24: 9400}, m)

	// 返回的是拷贝
	m[36] = 1
	assert.Equal(t, 2, len(r.GetPositionMap()))
	assert.Equal(t, 2, len(r.GetDurationMap()))

	r.ResetForNewFile()
	assert.Equal(t, 0, len(r.GetPositionMap()))
	assert.Equal(t, 0, len(r.GetDurationMap()))
}

func TestHandleKeyframeOffset(t *testing.T) {
	r, sink, _ := newTestRecorder(nil)
	sink.buf = make([]byte, 376)
	r.payloadBuffer = append(r.payloadBuffer, make([]byte, 188)...)

	// 位置只由写入位置和extra决定，缓存的数据由调用方计入extra
	r.handleKeyframe(0)
	r.framesWritten.Store(12)
	r.handleKeyframe(int64(len(r.payloadBuffer)) + 4)
	assert.Equal(t, map[uint64]int64{0: 376, 12: 376 + 188 + 4}, r.GetPositionMap())
}

func TestSavePositionMap(t *testing.T) {
	info := &recordInfo{}
	r, _, _ := newTestRecorder(info)

	r.SavePositionMap(false)
	assert.Equal(t, 0, len(info.saved))

	r.frameRate = base.NewFrameRate(25, 1)
	r.addPositionMapEntry(0, 0)
	for i := 0; i < 12; i++ {
		r.updateFramesWritten()
	}
	r.addPositionMapEntry(12, 18800)
	r.SavePositionMap(false)
	assert.Equal(t, 2, info.saved[MarkTypeGopByFrame])
	assert.Equal(t, 2, info.saved[MarkTypeDurationMs])
	assert.Equal(t, uint64(12), info.frames)
	assert.Equal(t, int64(480), info.durationMs)
	assert.Equal(t, int64(480), r.GetDurationMap()[12])

	// 增量已经保存过
	r.SavePositionMap(false)
	assert.Equal(t, 2, info.saved[MarkTypeGopByFrame])

	r.updateFramesWritten()
	r.SavePositionMap(true)
	assert.Equal(t, 2, info.saved[MarkTypeGopByFrame])
	assert.Equal(t, uint64(13), info.frames)
	assert.Equal(t, int64(520), info.durationMs)
}
