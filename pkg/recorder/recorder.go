// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package recorder

import (
	"math"
	"sync"
	"time"

	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/dtvrec/pkg/h2645"
	"github.com/q191201771/dtvrec/pkg/mpegts"
	"github.com/q191201771/naza/pkg/bitrate"
	"github.com/q191201771/naza/pkg/mock"
	"github.com/q191201771/naza/pkg/nazaatomic"
)

// ISink 录制数据的输出，比如 ringbuffer.RingBuffer
//
// 所有方法都在喂数据的协程中调用
//
type ISink interface {
	Write(b []byte) (int, error)

	// WritePosition 当前segment中已经写入的字节数
	WritePosition() int64

	// SwitchPending 是否需要切换到下一个segment，Recorder只在关键帧处检查
	SwitchPending() bool
	SwitchToNextSegment() error

	Flush() error
}

// IRecordingInfo 录制的元信息，比如 recinfo.Markup
type IRecordingInfo interface {
	SetDuration(durationMs int64)
	SetTotalFrames(frames uint64)
	ClearPositionMap(kind MarkType)

	// SavePositionMap 增量保存，delta在调用结束后不再被Recorder使用
	SavePositionMap(kind MarkType, delta map[uint64]int64)

	SetRecordingGaps(gaps []RecordingGap)
	SetRecordingStatus(status RecordingStatus)
}

// IRecorderObserver 录制过程中的事件通知，回调发生在喂数据的协程中
type IRecorderObserver interface {
	OnVideoCodecChange(codec mpegts.VideoCodec)
	OnAudioCodecChange(codec mpegts.AudioCodec)

	// 以下三个回调的frame参数是变化发生时已经写入的帧数
	OnResolutionChange(width, height uint32, frame uint64)
	OnAspectChange(aspect base.AspectRatio, frame uint64)
	OnFrameRateChange(frameRateMilli uint32, frame uint64)

	OnRecordingStatusChange(status RecordingStatus)
	OnFirstKeyframeWritten(frame uint64)

	// OnSegmentFinished 当前segment结束，包括切换segment以及 FinishRecording
	OnSegmentFinished(durationMs int64, frames uint64)
}

type MarkType int

const (
	MarkTypeGopByFrame MarkType = 9  // 帧号 -> 字节位置
	MarkTypeDurationMs MarkType = 33 // 帧号 -> 累计时长，单位毫秒
)

func (m MarkType) String() string {
	switch m {
	case MarkTypeGopByFrame:
		return "GopByFrame"
	case MarkTypeDurationMs:
		return "DurationMs"
	}
	return "unknown"
}

type RecordingStatus int

const (
	RecordingStatusRecording RecordingStatus = iota + 1
	RecordingStatusFailing
	RecordingStatusRecorded
	RecordingStatusFailed
)

func (s RecordingStatus) String() string {
	switch s {
	case RecordingStatusRecording:
		return "Recording"
	case RecordingStatusFailing:
		return "Failing"
	case RecordingStatusRecorded:
		return "Recorded"
	case RecordingStatusFailed:
		return "Failed"
	}
	return "unknown"
}

// IClock 时间源，测试时可以替换
type IClock interface {
	Now() time.Time
}

type RecorderOption struct {
	// DesiredProgram 需要录制的节目号，小于0时录制PAT中的第一个节目
	DesiredProgram int `json:"desired_program"`

	// WaitForKeyframe 为true时，第一个关键帧之前的数据都丢弃
	WaitForKeyframe bool `json:"wait_for_keyframe"`

	// MinimumRecordingQuality 录制质量低于这个分数（0~100）时，录制状态变为Failing
	MinimumRecordingQuality float64 `json:"minimum_recording_quality"`

	// RecordMpts 为true时不过滤节目，原样写入整个复用流
	RecordMpts bool `json:"record_mpts"`

	Clock IClock `json:"-"`
}

var defaultRecorderOption = RecorderOption{
	DesiredProgram:          -1,
	WaitForKeyframe:         true,
	MinimumRecordingQuality: 95,
	RecordMpts:              false,
	Clock:                   mock.NewStdClock(),
}

type ModRecorderOption func(option *RecorderOption)

// Recorder 把TS流写入 ISink，同时记录关键帧位置
//
// FeedTsPacket、FeedPsData、Reset、ResetForNewFile、FinishRecording 需要在同一个协程中串行调用，
// GetPositionMap、GetDurationMap、SavePositionMap、GetStat、GetRecordingQuality 可以在其他协程中调用
//
type Recorder struct {
	uniqueKey string
	option    RecorderOption
	sink      ISink
	info      IRecordingInfo
	observer  IRecorderObserver

	cc     *mpegts.ContinuityChecker
	tables *tableTracker
	ccDump base.LogDump

	// ----- 节目表，只在喂数据的协程中使用 -----
	desiredProgram int
	inputPat       *mpegts.Pat
	inputPmt       *mpegts.Pmt
	pmtPid         uint16
	hasNoAv        bool
	patCc          uint8
	pmtCc          uint8
	patInserted    bool
	pmtInserted    bool

	primaryVideoCodec mpegts.VideoCodec
	primaryAudioCodec mpegts.AudioCodec
	primaryVideoPid   uint16 // 0表示没有视频
	primaryAudioPid   uint16

	pidMutex sync.Mutex
	pidInfos map[uint16]pidInfo

	// ----- 关键帧检测 -----
	startCode               uint32
	firstKeyframe           int64
	hasWrittenOtherKeyframe bool
	lastKeyframeSeen        uint64
	lastGopSeen             int64 // -1表示还没有出现过
	lastSeqSeen             int64
	progressiveSequence     bool
	repeatPict              int
	musicChoice             bool
	pesSynced               bool
	auParser                *h2645.AuParser
	payloadStartSeen        map[uint16]bool

	videoBytesRemaining int
	audioBytesRemaining int
	otherBytesRemaining int

	audioPtsFirst int64
	audioPtsLast  int64
	mptsTimer     time.Time

	// ----- 缓存 -----
	bufferPackets bool
	payloadBuffer []byte

	// ----- 帧数和时长 -----
	framesSeen      nazaatomic.Uint64
	framesWritten   nazaatomic.Uint64
	totalDurationMs nazaatomic.Int64
	totalDuration   float64
	tdBase          float64
	tdTickCount     int64
	tdTickFrameRate base.FrameRate

	// ----- 视频格式，statMutex保护 -----
	frameRate base.FrameRate
	width     uint32
	height    uint32
	aspect    base.AspectRatio

	positionMapMutex sync.Mutex
	positionMap      map[uint64]int64
	positionMapDelta map[uint64]int64
	durationMap      map[uint64]int64
	durationMapDelta map[uint64]int64

	// ----- 时间戳，下标为PES stream_id -----
	usePts      bool
	tsCount     [256]int
	tsFirst     [256]int64
	tsLast      [256]int64
	tsFirstTime [256]time.Time

	statMutex        sync.Mutex
	status           RecordingStatus
	gaps             []RecordingGap
	timeOfFirstData  time.Time
	timeOfLatestData time.Time
	writeBytes       nazaatomic.Uint64
	writeBitrate     bitrate.Bitrate

	disposed nazaatomic.Bool
}

// NewRecorder
//
// @param info:     可以为nil
// @param observer: 可以为nil
//
func NewRecorder(sink ISink, info IRecordingInfo, observer IRecorderObserver, modOptions ...ModRecorderOption) *Recorder {
	option := defaultRecorderOption
	for _, fn := range modOptions {
		fn(&option)
	}
	if option.Clock == nil {
		option.Clock = mock.NewStdClock()
	}
	if info == nil {
		info = dummyRecordingInfo{}
	}
	if observer == nil {
		observer = dummyObserver{}
	}

	uk := base.GenUkRecorder()
	r := &Recorder{
		uniqueKey:        uk,
		option:           option,
		sink:             sink,
		info:             info,
		observer:         observer,
		cc:               mpegts.NewContinuityChecker(),
		ccDump:           base.NewLogDump(Log, ccErrorLogMaxCount),
		desiredProgram:   option.DesiredProgram,
		patCc:            0x0f,
		pmtCc:            0x0f,
		pidInfos:         make(map[uint16]pidInfo),
		payloadStartSeen: make(map[uint16]bool),
		status:           RecordingStatusRecording,
		writeBitrate:     bitrate.New(),
	}
	r.tables = newTableTracker(uk, r.onPat, r.onPmt)
	r.resetForNewFile()
	Log.Infof("[%s] lifecycle new recorder. option=%+v", uk, option)
	return r
}

func (r *Recorder) UniqueKey() string {
	return r.uniqueKey
}

// FeedTsPacket
//
// @param b: 一个完整的188字节TS packet，函数返回后内部不再持有
//
func (r *Recorder) FeedTsPacket(b []byte) {
	if r.disposed.Load() {
		return
	}
	pkt, err := mpegts.NewTsPacket(b)
	if err != nil {
		Log.Warnf("[%s] invalid ts packet. err=%+v", r.uniqueKey, err)
		return
	}
	pid := pkt.Pid()

	r.checkContinuity(pkt)

	if pkt.TransportError() {
		Log.Debugf("[%s] transport error indicator set, drop it. pid=%d", r.uniqueKey, pid)
		return
	}

	// 输入流中的PAT和PMT在单节目模式下不写出，由 onPat 和 onPmt 写出重新打包的表
	if r.tables.Feed(pkt) && !r.option.RecordMpts && r.isSingleProgramTablePid(pid) {
		return
	}

	switch {
	case r.option.RecordMpts:
		r.processMpts(pkt)
		return
	case r.inputPmt != nil && r.hasNoAv:
		// 没有音视频时，第一个packet为唯一的关键帧，之后全部写出
		r.findOtherKeyframes()
		r.bufferPackets = false
		r.bufferedWrite(pkt, false)
		return
	}

	info, ok := r.lookupPid(pid)
	if !ok {
		return
	}
	switch info.detector {
	case detectorKindMpeg2, detectorKindH264, detectorKindH265:
		r.processVideo(pkt, info)
	case detectorKindAudio:
		r.processAudio(pkt, info)
	case detectorKindPassthrough:
		r.processAv(pkt)
	case detectorKindNone:
		if r.option.WaitForKeyframe && r.firstKeyframe < 0 {
			return
		}
		r.bufferedWrite(pkt, false)
	}
}

// Reset 开始一个新的录制
//
// 除了 ResetForNewFile 的内容，还会清除已经保存的position map，以及主音视频编码信息
//
func (r *Recorder) Reset() {
	Log.Infof("[%s] reset.", r.uniqueKey)
	r.resetForNewFile()

	r.startCode = 0xFFFFFFFF
	r.pesSynced = false
	if r.auParser != nil {
		r.auParser.Reset()
	}
	r.primaryVideoCodec = mpegts.VideoCodecNone
	r.primaryAudioCodec = mpegts.AudioCodecNone
	r.patInserted = false
	r.pmtInserted = false
	r.payloadBuffer = r.payloadBuffer[:0]
	r.bufferPackets = false
	r.usePts = false
	r.musicChoice = false
	r.cc.Reset()

	r.statMutex.Lock()
	r.status = RecordingStatusRecording
	r.frameRate = base.FrameRateUnknown
	r.width = 0
	r.height = 0
	r.aspect = base.AspectRatioUnknown
	r.statMutex.Unlock()

	r.info.ClearPositionMap(MarkTypeGopByFrame)
	r.info.ClearPositionMap(MarkTypeDurationMs)
}

// ResetForNewFile 开始写一个新文件时调用，清除帧计数、position map以及统计信息
//
// h264/h265的解析状态不清除，一个nalu可能跨越两个文件
//
func (r *Recorder) ResetForNewFile() {
	Log.Infof("[%s] reset for new file.", r.uniqueKey)
	r.resetForNewFile()
}

// FinishRecording 录制结束，把剩余信息写入 IRecordingInfo
func (r *Recorder) FinishRecording() {
	Log.Infof("[%s] finish recording. frames=%d, duration=%dms", r.uniqueKey, r.framesWritten.Load(), r.totalDurationMs.Load())
	r.finishSegment()

	q := r.GetRecordingQuality()
	status := r.getStatus()
	if q.Damaged && status == RecordingStatusRecording {
		Log.Warnf("[%s] recording damaged. quality=%+v", r.uniqueKey, q)
		status = RecordingStatusFailing
	}
	if status == RecordingStatusFailing {
		r.setStatus(RecordingStatusFailed)
	} else {
		r.setStatus(RecordingStatusRecorded)
	}
}

// Dispose 之后 FeedTsPacket 和 FeedPsData 不再处理数据
func (r *Recorder) Dispose() error {
	if r.disposed.Load() {
		return base.ErrRecorderDisposed
	}
	r.disposed.Store(true)
	Log.Infof("[%s] lifecycle dispose recorder.", r.uniqueKey)
	return nil
}

// GetPositionMap 返回当前文件的 帧号 -> 字节位置
func (r *Recorder) GetPositionMap() map[uint64]int64 {
	r.positionMapMutex.Lock()
	defer r.positionMapMutex.Unlock()
	return copyMap(r.positionMap)
}

// GetDurationMap 返回当前文件的 帧号 -> 累计时长（毫秒）
func (r *Recorder) GetDurationMap() map[uint64]int64 {
	r.positionMapMutex.Lock()
	defer r.positionMapMutex.Unlock()
	return copyMap(r.durationMap)
}

// ----- private -------------------------------------------------------------------------------------------------------

func (r *Recorder) resetForNewFile() {
	r.positionMapMutex.Lock()
	r.startCode = 0xFFFFFFFF
	r.firstKeyframe = -1
	r.hasWrittenOtherKeyframe = false
	r.lastKeyframeSeen = 0
	r.lastGopSeen = -1
	r.lastSeqSeen = -1
	r.videoBytesRemaining = 0
	r.audioBytesRemaining = 0
	r.otherBytesRemaining = 0
	r.progressiveSequence = false
	r.repeatPict = 0

	r.positionMap = make(map[uint64]int64)
	r.positionMapDelta = make(map[uint64]int64)
	r.durationMap = make(map[uint64]int64)
	r.durationMapDelta = make(map[uint64]int64)
	r.positionMapMutex.Unlock()

	r.clearStatistics()
}

func (r *Recorder) clearStatistics() {
	for i := range r.tsCount {
		r.tsCount[i] = 0
		r.tsFirst[i] = -1
		r.tsLast[i] = -1
	}
	r.cc.ResetCount()
	r.ccDump.Reset()
	r.framesSeen.Store(0)
	r.framesWritten.Store(0)
	r.totalDurationMs.Store(0)
	r.totalDuration = 0
	r.tdBase = 0
	r.tdTickCount = 0
	r.tdTickFrameRate = base.FrameRateUnknown
	r.audioPtsFirst = -1
	r.audioPtsLast = -1

	r.statMutex.Lock()
	r.gaps = nil
	r.timeOfFirstData = time.Time{}
	r.timeOfLatestData = time.Time{}
	r.statMutex.Unlock()
	r.writeBytes.Store(0)
}

func (r *Recorder) checkContinuity(pkt mpegts.TsPacket) {
	pid := pkt.Pid()
	expected, _ := r.cc.Expected(pid)
	if r.cc.CheckPacket(pkt) {
		return
	}
	if r.ccDump.ShouldDump() {
		Log.Warnf("[%s] pid 0x%x discontinuity detected. expected=%d, actual=%d, rate=%.2f%%",
			r.uniqueKey, pid, expected, pkt.Cc(), r.cc.ErrorRate())
	}
}

// finishSegment 当前文件结束
func (r *Recorder) finishSegment() {
	if err := r.sink.Flush(); err != nil {
		Log.Errorf("[%s] flush sink failed. err=%+v", r.uniqueKey, err)
	}
	r.SavePositionMap(true)

	r.statMutex.Lock()
	gaps := make([]RecordingGap, len(r.gaps))
	copy(gaps, r.gaps)
	r.statMutex.Unlock()
	r.info.SetRecordingGaps(gaps)

	durationMs := r.totalDurationMs.Load()
	frames := r.framesWritten.Load()
	r.observer.OnSegmentFinished(durationMs, frames)
}

// checkForSegmentSwitch 只在关键帧处调用，保证一个帧不会跨越两个文件
func (r *Recorder) checkForSegmentSwitch() {
	if !r.sink.SwitchPending() {
		return
	}
	Log.Infof("[%s] switch to next segment. frames=%d, duration=%dms", r.uniqueKey, r.framesWritten.Load(), r.totalDurationMs.Load())
	r.finishSegment()
	if err := r.sink.SwitchToNextSegment(); err != nil {
		Log.Errorf("[%s] switch to next segment failed. err=%+v", r.uniqueKey, err)
		r.markFailing()
		return
	}
	r.resetForNewFile()

	// 新文件以PAT和PMT开头，写在已经缓存的数据之前
	r.patInserted = false
	r.pmtInserted = false
	r.emitSingleProgramPat()
	r.emitSingleProgramPmt()
}

func (r *Recorder) addPositionMapEntry(frameNum uint64, offset int64) {
	r.positionMapMutex.Lock()
	defer r.positionMapMutex.Unlock()
	if _, ok := r.positionMap[frameNum]; ok {
		return
	}
	// 位置为负数时丢弃，错误的位置比缺失的位置更糟糕
	if offset < 0 {
		Log.Warnf("[%s] negative keyframe offset, ignore. frame=%d, offset=%d", r.uniqueKey, frameNum, offset)
		return
	}
	duration := int64(math.Round(r.totalDuration))
	r.positionMap[frameNum] = offset
	r.positionMapDelta[frameNum] = offset
	r.durationMap[frameNum] = duration
	r.durationMapDelta[frameNum] = duration
}

// handleKeyframe 记录关键帧位置
//
// @param extra: 关键帧相对于sink当前写入位置的偏移
//
func (r *Recorder) handleKeyframe(extra int64) {
	r.checkForSegmentSwitch()

	frameNum := r.framesWritten.Load()
	if r.firstKeyframe < 0 {
		r.firstKeyframe = int64(frameNum)
		Log.Infof("[%s] first keyframe. frame=%d", r.uniqueKey, frameNum)
		r.observer.OnFirstKeyframeWritten(frameNum)
	}
	r.addPositionMapEntry(frameNum, r.sink.WritePosition()+extra)
}

// updateFramesWritten 写入了一帧，累加时长
//
// 时长以半帧为单位计数，帧率变化时以当前时长为基础重新计数，保证时长单调增加
//
func (r *Recorder) updateFramesWritten() {
	r.framesWritten.Increment()
	frames := r.framesWritten.Load()
	if !r.tdTickFrameRate.IsValid() {
		r.tdTickFrameRate = r.frameRate
	}
	if r.tdTickFrameRate != r.frameRate {
		r.tdBase = r.totalDuration
		r.tdTickCount = 0
		r.tdTickFrameRate = r.frameRate
	}
	r.tdTickCount += int64(2 + r.repeatPict)
	if r.tdTickFrameRate.IsValid() {
		r.totalDuration = r.tdBase + 500*float64(r.tdTickCount)*float64(r.tdTickFrameRate.Den)/float64(r.tdTickFrameRate.Num)
		r.totalDurationMs.Store(int64(math.Round(r.totalDuration)))
	}

	if frames < 2000 || frames%1000 == 0 {
		Log.Tracef("[%s] frames written. count=%d, frameRate=%s, tickFrameRate=%s, ticks=%d, base=%.2f, duration=%.2f",
			r.uniqueKey, frames, r.frameRate, r.tdTickFrameRate, r.tdTickCount, r.tdBase, r.totalDuration)
	}
}

func copyMap(m map[uint64]int64) map[uint64]int64 {
	out := make(map[uint64]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type dummyRecordingInfo struct{}

func (dummyRecordingInfo) SetDuration(durationMs int64) {}
func (dummyRecordingInfo) SetTotalFrames(frames uint64) {}
func (dummyRecordingInfo) ClearPositionMap(kind MarkType) {}
func (dummyRecordingInfo) SavePositionMap(kind MarkType, delta map[uint64]int64) {}
func (dummyRecordingInfo) SetRecordingGaps(gaps []RecordingGap) {}
func (dummyRecordingInfo) SetRecordingStatus(status RecordingStatus) {}

type dummyObserver struct{}

func (dummyObserver) OnVideoCodecChange(codec mpegts.VideoCodec) {}
func (dummyObserver) OnAudioCodecChange(codec mpegts.AudioCodec) {}
func (dummyObserver) OnResolutionChange(width, height uint32, frame uint64) {}
func (dummyObserver) OnAspectChange(aspect base.AspectRatio, frame uint64) {}
func (dummyObserver) OnFrameRateChange(frameRateMilli uint32, frame uint64) {}
func (dummyObserver) OnRecordingStatusChange(status RecordingStatus) {}
func (dummyObserver) OnFirstKeyframeWritten(frame uint64) {}
func (dummyObserver) OnSegmentFinished(durationMs int64, frames uint64) {}
