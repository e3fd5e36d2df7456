// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package recorder_test

import (
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/dtvrec/pkg/innertest"
	"github.com/q191201771/dtvrec/pkg/mpegts"
	"github.com/q191201771/dtvrec/pkg/recorder"
	"github.com/q191201771/naza/pkg/assert"
)

var errDiskFull = errors.New("disk full")

type memSink struct {
	buf      []byte
	segments [][]byte
	pending  bool
	fail     bool
}

func (s *memSink) Write(b []byte) (int, error) {
	if s.fail {
		return 0, errDiskFull
	}
	s.buf = append(s.buf, b...)
	return len(b), nil
}

func (s *memSink) WritePosition() int64 {
	return int64(len(s.buf))
}

func (s *memSink) SwitchPending() bool {
	return s.pending
}

func (s *memSink) SwitchToNextSegment() error {
	s.segments = append(s.segments, s.buf)
	s.buf = nil
	s.pending = false
	return nil
}

func (s *memSink) Flush() error {
	return nil
}

type observer struct {
	videoCodecs []mpegts.VideoCodec
	audioCodecs []mpegts.AudioCodec
	widths      []uint32
	aspects     []base.AspectRatio
	frameRates  []uint32
	statuses    []recorder.RecordingStatus
	firstFrames []uint64
	segments    []uint64
}

func (o *observer) OnVideoCodecChange(codec mpegts.VideoCodec) {
	o.videoCodecs = append(o.videoCodecs, codec)
}

func (o *observer) OnAudioCodecChange(codec mpegts.AudioCodec) {
	o.audioCodecs = append(o.audioCodecs, codec)
}

func (o *observer) OnResolutionChange(width, height uint32, frame uint64) {
	o.widths = append(o.widths, width)
}

func (o *observer) OnAspectChange(aspect base.AspectRatio, frame uint64) {
	o.aspects = append(o.aspects, aspect)
}

func (o *observer) OnFrameRateChange(frameRateMilli uint32, frame uint64) {
	o.frameRates = append(o.frameRates, frameRateMilli)
}

func (o *observer) OnRecordingStatusChange(status recorder.RecordingStatus) {
	o.statuses = append(o.statuses, status)
}

func (o *observer) OnFirstKeyframeWritten(frame uint64) {
	o.firstFrames = append(o.firstFrames, frame)
}

func (o *observer) OnSegmentFinished(durationMs int64, frames uint64) {
	o.segments = append(o.segments, frames)
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func feed(r *recorder.Recorder, b []byte) {
	for _, pkt := range innertest.SplitTsPackets(b) {
		r.FeedTsPacket(pkt)
	}
}

func sortedKeys(m map[uint64]int64) []uint64 {
	var keys []uint64
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// checkPesStart 关键帧位置上是一个带PES起始的视频packet
func checkPesStart(t *testing.T, out []byte, offset int64, pid uint16) {
	assert.Equal(t, int64(0), offset%mpegts.PacketSize)
	pkt, err := mpegts.NewTsPacket(out[offset:])
	assert.Equal(t, nil, err)
	assert.Equal(t, pid, pkt.Pid())
	assert.Equal(t, true, pkt.PayloadUnitStart())
}

// mpeg2Stream 每12帧一个GOP，25帧每秒
func mpeg2Stream(b *innertest.TsStreamBuilder, from, to int) {
	for i := from; i < to; i++ {
		key := i%12 == 0
		pictureType := innertest.Mpeg2PictureTypeP
		if key {
			pictureType = innertest.Mpeg2PictureTypeI
		}
		ts := uint64(900000 + i*3600)
		b.WritePes(innertest.VideoPid, 0xe0, ts, ts, key, innertest.Mpeg2Frame(pictureType, key, key, 100))
	}
}

func h264Stream(b *innertest.TsStreamBuilder, from, to int) {
	for i := from; i < to; i++ {
		key := i%10 == 0
		ts := uint64(900000 + i*3003)
		b.WritePes(innertest.VideoPid, 0xe0, ts, ts, key, innertest.H264Au(key, 50))
	}
}

func TestContinuity(t *testing.T) {
	r := recorder.NewRecorder(&memSink{}, nil, nil)

	b := innertest.NewTsStreamBuilder()
	for i := 0; i < 3; i++ {
		b.WritePesNoPts(innertest.VideoPid, 0xe0, []byte{0x1, 0x2, 0x3})
	}
	b.SkipCc(innertest.VideoPid, 2)
	b.WritePesNoPts(innertest.VideoPid, 0xe0, []byte{0x1, 0x2, 0x3})
	b.WriteNull()
	feed(r, b.Bytes())

	stat := r.GetStat()
	assert.Equal(t, uint64(1), stat.ContinuityErrors)
	assert.Equal(t, uint64(4), stat.Packets)
}

func TestContinuityStuckCounter(t *testing.T) {
	r := recorder.NewRecorder(&memSink{}, nil, nil)

	b := innertest.NewTsStreamBuilder()
	b.WritePesNoPts(innertest.VideoPid, 0xe0, []byte{0x1, 0x2, 0x3})
	for i := 0; i < 3; i++ {
		// 下一个包沿用上一个包的counter
		b.SkipCc(innertest.VideoPid, 15)
		b.WritePesNoPts(innertest.VideoPid, 0xe0, []byte{0x1, 0x2, 0x3})
	}
	feed(r, b.Bytes())

	stat := r.GetStat()
	assert.Equal(t, uint64(3), stat.ContinuityErrors)
	assert.Equal(t, uint64(4), stat.Packets)
}

func TestProgramTables(t *testing.T) {
	sink := &memSink{}
	obs := &observer{}
	r := recorder.NewRecorder(sink, nil, obs, func(option *recorder.RecorderOption) {
		option.DesiredProgram = int(innertest.ProgramNumber)
	})

	pmt := innertest.NewProgramPmt(mpegts.StreamTypeH264, mpegts.StreamTypeAc3)
	other := innertest.NewProgramPmt(mpegts.StreamTypeMpeg2Video, mpegts.StreamTypeMpeg1Audio)
	other.ProgramNumber = 6

	b := innertest.NewTsStreamBuilder()
	for i := 0; i < 3; i++ {
		b.WritePat(0,
			mpegts.PatProgramElement{ProgramNumber: 6, Pid: 0x200},
			mpegts.PatProgramElement{ProgramNumber: innertest.ProgramNumber, Pid: innertest.PmtPid})
		b.WritePmt(0x200, other)
		b.WritePmt(innertest.PmtPid, pmt)
	}
	feed(r, b.Bytes())

	assert.Equal(t, []mpegts.VideoCodec{mpegts.VideoCodecH264}, obs.videoCodecs)
	assert.Equal(t, []mpegts.AudioCodec{mpegts.AudioCodecAc3}, obs.audioCodecs)

	// 输出以只包含一个节目的PAT开始，然后是PMT，其他节目的PMT不写出。
	// 第一个关键帧之前重复的表不写出
	pkts := innertest.SplitTsPackets(sink.buf)
	assert.Equal(t, 2, len(pkts))
	pkt, _ := mpegts.NewTsPacket(pkts[0])
	assert.Equal(t, mpegts.PidPat, pkt.Pid())
	pat, err := mpegts.ParsePat(pkt.Payload()[1:])
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, pat.ProgramCount())
	pid, ok := pat.SearchProgram(innertest.ProgramNumber)
	assert.Equal(t, true, ok)
	assert.Equal(t, innertest.PmtPid, pid)
	_, ok = pat.SearchProgram(6)
	assert.Equal(t, false, ok)

	pkt, _ = mpegts.NewTsPacket(pkts[1])
	assert.Equal(t, innertest.PmtPid, pkt.Pid())
	pmtOut, err := mpegts.ParsePmt(pkt.Payload()[1:])
	assert.Equal(t, nil, err)
	assert.Equal(t, innertest.ProgramNumber, pmtOut.ProgramNumber)
	assert.Equal(t, 2, len(pmtOut.ProgramElements))
}

func TestMpeg2Keyframes(t *testing.T) {
	sink := &memSink{}
	obs := &observer{}
	r := recorder.NewRecorder(sink, nil, obs)

	b := innertest.NewTsStreamBuilder()
	b.WriteProgramTables(innertest.NewProgramPmt(mpegts.StreamTypeMpeg2Video, 0))
	mpeg2Stream(b, 0, 84)
	feed(r, b.Bytes())

	m := r.GetPositionMap()
	assert.Equal(t, []uint64{0, 12, 24, 36, 48, 60, 72}, sortedKeys(m))
	assert.Equal(t, int64(2*mpegts.PacketSize), m[0])
	var prev int64 = -1
	for _, k := range sortedKeys(m) {
		assert.Equal(t, true, m[k] > prev)
		checkPesStart(t, sink.buf, m[k], innertest.VideoPid)
		prev = m[k]
	}

	stat := r.GetStat()
	assert.Equal(t, uint64(84), stat.FramesSeen)
	assert.Equal(t, uint64(84), stat.FramesWritten)
	assert.Equal(t, int64(84*40), stat.DurationMs)
	assert.Equal(t, uint32(720), stat.Width)
	assert.Equal(t, uint32(576), stat.Height)

	d := r.GetDurationMap()
	assert.Equal(t, int64(0), d[0])
	assert.Equal(t, int64(12*40), d[12])

	assert.Equal(t, []mpegts.VideoCodec{mpegts.VideoCodecMpeg2}, obs.videoCodecs)
	assert.Equal(t, 0, len(obs.audioCodecs))
	assert.Equal(t, []uint32{720}, obs.widths)
	assert.Equal(t, []base.AspectRatio{base.AspectRatio16x9}, obs.aspects)
	assert.Equal(t, []uint32{25000}, obs.frameRates)
	assert.Equal(t, []uint64{0}, obs.firstFrames)
	assert.Equal(t, 0, len(obs.statuses))
}

func TestMpeg2Fallback(t *testing.T) {
	sink := &memSink{}
	r := recorder.NewRecorder(sink, nil, nil)

	b := innertest.NewTsStreamBuilder()
	b.WriteProgramTables(innertest.NewProgramPmt(mpegts.StreamTypeMpeg2Video, 0))
	// 没有GOP和sequence header，每16帧强制一个关键帧
	for i := 0; i < 100; i++ {
		ts := uint64(900000 + i*3600)
		b.WritePes(innertest.VideoPid, 0xe0, ts, ts, false, innertest.Mpeg2Frame(innertest.Mpeg2PictureTypeP, false, false, 100))
	}
	feed(r, b.Bytes())

	m := r.GetPositionMap()
	assert.Equal(t, []uint64{0, 16, 32, 48, 64, 80, 96}, sortedKeys(m))
	for _, k := range sortedKeys(m) {
		checkPesStart(t, sink.buf, m[k], innertest.VideoPid)
	}
	assert.Equal(t, uint64(100), r.GetStat().FramesWritten)
}

func TestWaitForKeyframe(t *testing.T) {
	sink := &memSink{}
	r := recorder.NewRecorder(sink, nil, nil)

	b := innertest.NewTsStreamBuilder()
	b.WriteProgramTables(innertest.NewProgramPmt(mpegts.StreamTypeH264, 0))
	// 从GOP中间开始，第一个关键帧之前的帧丢弃
	h264Stream(b, 5, 30)
	feed(r, b.Bytes())

	m := r.GetPositionMap()
	assert.Equal(t, []uint64{0, 10}, sortedKeys(m))
	assert.Equal(t, int64(0), m[0])
	assert.Equal(t, int64(12*mpegts.PacketSize), m[10])
	assert.Equal(t, 22*mpegts.PacketSize, len(sink.buf))
	checkPesStart(t, sink.buf, 2*mpegts.PacketSize, innertest.VideoPid)

	stat := r.GetStat()
	assert.Equal(t, uint64(25), stat.FramesSeen)
	assert.Equal(t, uint64(20), stat.FramesWritten)
	assert.Equal(t, true, stat.FramesWritten <= stat.FramesSeen)
}

func TestNoAudioVideo(t *testing.T) {
	sink := &memSink{}
	obs := &observer{}
	r := recorder.NewRecorder(sink, nil, obs)

	pmt := &mpegts.Pmt{
		ProgramNumber: innertest.ProgramNumber,
		CurrentNext:   1,
		PcrPid:        mpegts.PidNull,
		ProgramElements: []mpegts.PmtProgramElement{
			{StreamType: mpegts.StreamTypePrivateSection, Pid: innertest.DataPid},
		},
	}
	b := innertest.NewTsStreamBuilder()
	b.WriteProgramTables(pmt)
	for i := 0; i < 3; i++ {
		b.WritePesNoPts(innertest.DataPid, 0xbd, []byte{0x1, 0x2, 0x3, 0x4})
	}
	feed(r, b.Bytes())

	assert.Equal(t, map[uint64]int64{0: 2 * mpegts.PacketSize}, r.GetPositionMap())
	assert.Equal(t, 5*mpegts.PacketSize, len(sink.buf))
	assert.Equal(t, []uint64{0}, obs.firstFrames)
	assert.Equal(t, 0, len(obs.videoCodecs))
}

func TestH264Keyframes(t *testing.T) {
	sink := &memSink{}
	obs := &observer{}
	r := recorder.NewRecorder(sink, nil, obs)

	b := innertest.NewTsStreamBuilder()
	b.WriteProgramTables(innertest.NewProgramPmt(mpegts.StreamTypeH264, 0))
	h264Stream(b, 0, 30)
	feed(r, b.Bytes())

	// 第一个关键帧从文件头开始，之后为access unit所在packet的位置
	m := r.GetPositionMap()
	assert.Equal(t, []uint64{0, 10, 20}, sortedKeys(m))
	assert.Equal(t, int64(0), m[0])
	checkPesStart(t, sink.buf, m[10], innertest.VideoPid)
	checkPesStart(t, sink.buf, m[20], innertest.VideoPid)
	assert.Equal(t, true, m[20] > m[10])

	stat := r.GetStat()
	assert.Equal(t, uint64(30), stat.FramesSeen)
	assert.Equal(t, uint64(30), stat.FramesWritten)
	assert.Equal(t, uint32(1920), stat.Width)
	assert.Equal(t, uint32(1080), stat.Height)
	assert.Equal(t, []mpegts.VideoCodec{mpegts.VideoCodecH264}, obs.videoCodecs)
	assert.Equal(t, []uint64{0}, obs.firstFrames)
}

func TestH264ForcedKeyframe(t *testing.T) {
	sink := &memSink{}
	r := recorder.NewRecorder(sink, nil, nil, func(option *recorder.RecorderOption) {
		option.WaitForKeyframe = true
	})

	// 只有第一帧是IDR，超过511帧没有关键帧时强制产生一个
	b := innertest.NewTsStreamBuilder()
	b.WriteProgramTables(innertest.NewProgramPmt(mpegts.StreamTypeH264, 0))
	for i := 0; i < 600; i++ {
		ts := uint64(900000 + i*3003)
		b.WritePes(innertest.VideoPid, 0xe0, ts, ts, i == 0, innertest.H264Au(i == 0, 50))
	}
	feed(r, b.Bytes())

	m := r.GetPositionMap()
	assert.Equal(t, []uint64{0, 512}, sortedKeys(m))
	assert.Equal(t, int64(0), m[0])
	checkPesStart(t, sink.buf, m[512], innertest.VideoPid)
	assert.Equal(t, uint64(600), r.GetStat().FramesSeen)
}

func TestMusicChoice(t *testing.T) {
	obs := &observer{}
	r := recorder.NewRecorder(&memSink{}, nil, obs)

	b := innertest.NewTsStreamBuilder()
	b.WriteProgramTables(innertest.NewProgramPmt(mpegts.StreamTypeMpeg2Video, 0))
	feed(r, b.Bytes())

	// 没有GOP和sequence header，PES间隔4秒
	b.Reset()
	b.WritePes(innertest.VideoPid, 0xe0, 900000, 900000, false, innertest.Mpeg2Slice(100))
	feed(r, b.Bytes())
	assert.Equal(t, 0, len(obs.firstFrames))
	assert.Equal(t, false, r.MusicChoice())

	b.Reset()
	b.WritePes(innertest.VideoPid, 0xe0, 900000+4*90000, 900000+4*90000, false, innertest.Mpeg2Slice(100))
	feed(r, b.Bytes())
	assert.Equal(t, []uint64{0}, obs.firstFrames)
	assert.Equal(t, true, r.MusicChoice())
	assert.Equal(t, []uint64{0}, sortedKeys(r.GetPositionMap()))

	// 间隔6秒不算gap，超过8秒才算
	b.Reset()
	frame := append(innertest.Mpeg2PictureHeader(innertest.Mpeg2PictureTypeP), innertest.Mpeg2Slice(100)...)
	b.WritePes(innertest.VideoPid, 0xe0, 900000+10*90000, 900000+10*90000, false, frame)
	feed(r, b.Bytes())
	assert.Equal(t, 0, r.GetStat().GapCount)

	b.Reset()
	b.WritePes(innertest.VideoPid, 0xe0, 900000+19*90000, 900000+19*90000, false, frame)
	feed(r, b.Bytes())
	assert.Equal(t, 1, r.GetStat().GapCount)
}

func TestResetForNewFile(t *testing.T) {
	sink := &memSink{}
	r := recorder.NewRecorder(sink, nil, nil)

	b := innertest.NewTsStreamBuilder()
	b.WriteProgramTables(innertest.NewProgramPmt(mpegts.StreamTypeH264, 0))
	h264Stream(b, 0, 15)
	feed(r, b.Bytes())
	assert.Equal(t, []uint64{0, 10}, sortedKeys(r.GetPositionMap()))

	r.ResetForNewFile()
	assert.Equal(t, 0, len(r.GetPositionMap()))
	assert.Equal(t, uint64(0), r.GetStat().FramesWritten)

	// 节目表以及解析器的状态保留，下一个关键帧为新文件的第一帧
	b.Reset()
	h264Stream(b, 15, 35)
	feed(r, b.Bytes())
	m := r.GetPositionMap()
	assert.Equal(t, []uint64{0, 10}, sortedKeys(m))
	assert.Equal(t, int64(0), m[0])

	stat := r.GetStat()
	assert.Equal(t, uint64(20), stat.FramesSeen)
	assert.Equal(t, uint64(15), stat.FramesWritten)
}

func TestSinkFailure(t *testing.T) {
	sink := &memSink{fail: true}
	obs := &observer{}
	r := recorder.NewRecorder(sink, nil, obs)

	b := innertest.NewTsStreamBuilder()
	b.WriteProgramTables(innertest.NewProgramPmt(mpegts.StreamTypeMpeg2Video, 0))
	mpeg2Stream(b, 0, 30)
	feed(r, b.Bytes())

	assert.Equal(t, []recorder.RecordingStatus{recorder.RecordingStatusFailing}, obs.statuses)
	assert.Equal(t, "Failing", r.GetStat().Status)

	r.FinishRecording()
	assert.Equal(t, []recorder.RecordingStatus{recorder.RecordingStatusFailing, recorder.RecordingStatusFailed}, obs.statuses)
}

func TestFinishRecording(t *testing.T) {
	sink := &memSink{}
	obs := &observer{}
	r := recorder.NewRecorder(sink, nil, obs)

	b := innertest.NewTsStreamBuilder()
	b.WriteProgramTables(innertest.NewProgramPmt(mpegts.StreamTypeMpeg2Video, 0))
	mpeg2Stream(b, 0, 30)
	feed(r, b.Bytes())

	r.FinishRecording()
	assert.Equal(t, []recorder.RecordingStatus{recorder.RecordingStatusRecorded}, obs.statuses)
	assert.Equal(t, []uint64{30}, obs.segments)

	// Reset之后重新开始录制
	r.Reset()
	assert.Equal(t, "Recording", r.GetStat().Status)
	assert.Equal(t, 0, len(r.GetPositionMap()))
}

func TestSegmentSwitch(t *testing.T) {
	sink := &memSink{}
	obs := &observer{}
	r := recorder.NewRecorder(sink, nil, obs)

	b := innertest.NewTsStreamBuilder()
	b.WriteProgramTables(innertest.NewProgramPmt(mpegts.StreamTypeMpeg2Video, 0))
	mpeg2Stream(b, 0, 30)
	feed(r, b.Bytes())

	// 只在关键帧处切换
	sink.pending = true
	b.Reset()
	mpeg2Stream(b, 30, 60)
	feed(r, b.Bytes())

	assert.Equal(t, 1, len(sink.segments))
	assert.Equal(t, []uint64{36}, obs.segments)

	// 新文件以PAT、PMT开始
	pkts := innertest.SplitTsPackets(sink.buf)
	pkt, _ := mpegts.NewTsPacket(pkts[0])
	assert.Equal(t, mpegts.PidPat, pkt.Pid())
	pkt, _ = mpegts.NewTsPacket(pkts[1])
	assert.Equal(t, innertest.PmtPid, pkt.Pid())

	m := r.GetPositionMap()
	assert.Equal(t, []uint64{0, 12}, sortedKeys(m))
	assert.Equal(t, int64(2*mpegts.PacketSize), m[0])
	checkPesStart(t, sink.buf, m[12], innertest.VideoPid)
	assert.Equal(t, uint64(24), r.GetStat().FramesWritten)
	assert.Equal(t, []uint64{0, 0}, obs.firstFrames)
}

func TestAudioOnly(t *testing.T) {
	sink := &memSink{}
	obs := &observer{}
	r := recorder.NewRecorder(sink, nil, obs)

	b := innertest.NewTsStreamBuilder()
	b.WriteProgramTables(innertest.NewProgramPmt(0, mpegts.StreamTypeAc3))
	// 每个PES 100毫秒，比虚拟帧长，每个PES都产生一个虚拟帧
	audio := make([]byte, 100)
	for i := 0; i < 30; i++ {
		ts := uint64(900000 + i*9000)
		b.WritePes(innertest.AudioPid, 0xbd, ts, ts, false, audio)
	}
	feed(r, b.Bytes())

	m := r.GetPositionMap()
	assert.Equal(t, []uint64{0, 8, 16, 24}, sortedKeys(m))
	for k, v := range m {
		assert.Equal(t, int64(2+k)*mpegts.PacketSize, v)
	}
	assert.Equal(t, uint64(30), r.GetStat().FramesWritten)
	assert.Equal(t, []uint32{29970}, obs.frameRates)
	assert.Equal(t, []mpegts.AudioCodec{mpegts.AudioCodecAc3}, obs.audioCodecs)
}

func TestMpts(t *testing.T) {
	sink := &memSink{}
	clock := &fakeClock{now: time.Date(2022, 3, 1, 20, 0, 0, 0, time.UTC)}
	r := recorder.NewRecorder(sink, nil, nil, func(option *recorder.RecorderOption) {
		option.RecordMpts = true
		option.WaitForKeyframe = false
		option.Clock = clock
	})

	b := innertest.NewTsStreamBuilder()
	for i := 0; i < 12; i++ {
		b.WriteNull()
	}
	for _, pkt := range b.Packets() {
		r.FeedTsPacket(pkt)
		clock.now = clock.now.Add(100 * time.Millisecond)
	}

	// 每500毫秒一个虚拟关键帧，数据原样写出
	assert.Equal(t, map[uint64]int64{1: 6 * mpegts.PacketSize, 2: 11 * mpegts.PacketSize}, r.GetPositionMap())
	assert.Equal(t, b.Bytes(), sink.buf)
	assert.Equal(t, int64(1000), r.GetStat().DurationMs)
}

func TestPsKeyframes(t *testing.T) {
	sink := &memSink{}
	obs := &observer{}
	r := recorder.NewRecorder(sink, nil, obs)

	var ps []byte
	var keyOffsets []int64
	audio := make([]byte, 64)
	for i := 0; i < 20; i++ {
		key := i%10 == 0
		pictureType := innertest.Mpeg2PictureTypeB
		if key {
			pictureType = innertest.Mpeg2PictureTypeI
		}
		ps = append(ps, innertest.PsPackHeader()...)
		if key {
			// 关键帧的位置为sequence header紧跟在14字节的PES头之后。
			// 之后的sequence header离上一个GOP太近，关键帧的位置为GOP
			offset := int64(len(ps) + 14)
			if i > 0 {
				offset += 12 + 10
			}
			keyOffsets = append(keyOffsets, offset)
		}
		pts := uint64(900000 + i*3600)
		ps = append(ps, innertest.PsPes(0xe0, pts, innertest.Mpeg2Frame(pictureType, key, key, 100))...)
		ps = append(ps, innertest.PsPes(0xc0, pts, audio)...)
		ps = append(ps, innertest.PsPadding(20)...)
	}
	r.FeedPsData(ps)

	m := r.GetPositionMap()
	assert.Equal(t, []uint64{0, 10}, sortedKeys(m))
	assert.Equal(t, keyOffsets[0], m[0])
	assert.Equal(t, keyOffsets[1], m[10])
	assert.Equal(t, uint64(20), r.GetStat().FramesSeen)
	assert.Equal(t, []uint32{720}, obs.widths)

	// 最后一帧之后的数据等下一次调用
	assert.Equal(t, true, len(sink.buf) < len(ps))
	assert.Equal(t, ps[:len(sink.buf)], sink.buf)
}

func TestPsChunked(t *testing.T) {
	// 音频PES中带有看起来像视频PES和picture header的数据，必须整体跳过
	fake := append([]byte{0x00, 0x00, 0x01, 0xe0, 0x00, 0x20}, innertest.Mpeg2PictureHeader(innertest.Mpeg2PictureTypeI)...)
	var audio []byte
	for len(audio) < 1500 {
		audio = append(audio, fake...)
	}
	audio = audio[:1500]

	var ps []byte
	for i := 0; i < 40; i++ {
		key := i%10 == 0
		pictureType := innertest.Mpeg2PictureTypeB
		if key {
			pictureType = innertest.Mpeg2PictureTypeI
		}
		pts := uint64(900000 + i*3600)
		ps = append(ps, innertest.PsPackHeader()...)
		ps = append(ps, innertest.PsPes(0xe0, pts, innertest.Mpeg2Frame(pictureType, key, key, 100))...)
		ps = append(ps, innertest.PsPes(0xc0, pts, audio)...)
		ps = append(ps, innertest.PsPadding(20)...)
	}

	whole := recorder.NewRecorder(&memSink{}, nil, nil)
	whole.FeedPsData(ps)
	assert.Equal(t, uint64(40), whole.GetStat().FramesSeen)
	assert.Equal(t, []uint64{0, 10, 20, 30}, sortedKeys(whole.GetPositionMap()))

	for _, chunkSize := range []int{1024, 777, 188} {
		chunked := recorder.NewRecorder(&memSink{}, nil, nil)
		for i := 0; i < len(ps); i += chunkSize {
			end := i + chunkSize
			if end > len(ps) {
				end = len(ps)
			}
			chunked.FeedPsData(ps[i:end])
		}
		assert.Equal(t, whole.GetStat().FramesSeen, chunked.GetStat().FramesSeen)
		assert.Equal(t, whole.GetPositionMap(), chunked.GetPositionMap())
	}
}
