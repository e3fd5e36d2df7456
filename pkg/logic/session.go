// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"context"
	"sync"
	"time"

	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/dtvrec/pkg/mpegts"
	"github.com/q191201771/dtvrec/pkg/probe"
	"github.com/q191201771/dtvrec/pkg/recinfo"
	"github.com/q191201771/dtvrec/pkg/recorder"
	"github.com/q191201771/dtvrec/pkg/ringbuffer"
	"github.com/q191201771/dtvrec/pkg/source"
	"github.com/q191201771/naza/pkg/nazaerrors"
	"golang.org/x/sync/errgroup"
)

// Session 一次录制：source -> recorder -> ringbuffer，元信息写入markup
//
// 数据在 RunLoop 的读协程中喂给recorder，另一个协程周期性保存position map
//
type Session struct {
	uniqueKey string
	config    *Config

	src    source.ISource
	sink   *segmentSink
	rb     *ringbuffer.RingBuffer
	markup *recinfo.Markup
	rec    *recorder.Recorder

	disposeOnce sync.Once
}

// segmentSink 切换segment时markup也切换到新的文件
type segmentSink struct {
	*ringbuffer.RingBuffer
	markup *recinfo.Markup
}

func (s *segmentSink) SwitchToNextSegment() error {
	if err := s.RingBuffer.SwitchToNextSegment(); err != nil {
		return err
	}
	filename := s.RingBuffer.CurrentSegmentFilename()
	if err := s.markup.Rotate(filename+markupSuffix, filename); err != nil {
		Log.Warnf("rotate markup failed. err=%+v", err)
	}
	return nil
}

func NewSession(config *Config, src source.ISource) *Session {
	uk := base.GenUkSession()
	s := &Session{
		uniqueKey: uk,
		config:    config,
		src:       src,
	}
	s.rb = ringbuffer.NewRingBuffer(func(option *ringbuffer.RingBufferOption) {
		*option = config.RingBufferConfig
	})
	Log.Infof("[%s] lifecycle new session. source=%s", uk, src.UniqueKey())
	return s
}

// RunLoop 阻塞直到源结束、ctx被取消或者出错，返回前完成录制的收尾
func (s *Session) RunLoop(ctx context.Context) error {
	if err := s.rb.Start(); err != nil {
		return err
	}
	filename := s.rb.CurrentSegmentFilename()
	s.markup = recinfo.NewMarkup(filename+markupSuffix, filename, func(option *recinfo.MarkupOption) {
		option.UseMemoryAsDisk = s.config.RingBufferConfig.UseMemoryAsDisk
	})
	s.sink = &segmentSink{
		RingBuffer: s.rb,
		markup:     s.markup,
	}
	rc := s.config.RecorderConfig
	s.rec = recorder.NewRecorder(s.sink, s.markup, s, func(option *recorder.RecorderOption) {
		option.DesiredProgram = rc.DesiredProgram
		option.WaitForKeyframe = rc.WaitForKeyframe
		option.MinimumRecordingQuality = rc.MinimumRecordingQuality
		option.RecordMpts = rc.RecordMpts
	})

	done := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		var err error
		if ps, ok := s.src.(*source.FileSource); ok && s.config.SourceConfig.Type == SourceTypePsFile {
			err = ps.RunPsLoop(gctx, s.rec.FeedPsData)
		} else {
			err = s.src.RunLoop(gctx, s.rec.FeedTsPacket)
		}
		Log.Infof("[%s] source loop done. err=%+v", s.uniqueKey, err)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error {
		s.runSavePositionMapLoop(gctx, done)
		return nil
	})
	err := g.Wait()

	return nazaerrors.CombineErrors(err, s.finish())
}

// RequestSwitch 在下一个关键帧处切换到新的segment
func (s *Session) RequestSwitch() {
	s.rb.RequestSwitch()
}

// Dispose 关闭源，RunLoop随后返回
func (s *Session) Dispose() error {
	var err error
	s.disposeOnce.Do(func() {
		Log.Infof("[%s] lifecycle dispose session.", s.uniqueKey)
		err = s.src.Dispose()
	})
	return err
}

func (s *Session) UniqueKey() string {
	return s.uniqueKey
}

func (s *Session) Recorder() *recorder.Recorder {
	return s.rec
}

func (s *Session) RingBuffer() *ringbuffer.RingBuffer {
	return s.rb
}

func (s *Session) Markup() *recinfo.Markup {
	return s.markup
}

// ----- recorder.IRecorderObserver ------------------------------------------------------------------------------------

func (s *Session) OnVideoCodecChange(codec mpegts.VideoCodec) {
	Log.Infof("[%s] video codec change. codec=%s", s.uniqueKey, codec)
	s.markup.SetVideoCodec(string(codec))
}

func (s *Session) OnAudioCodecChange(codec mpegts.AudioCodec) {
	Log.Infof("[%s] audio codec change. codec=%s", s.uniqueKey, codec)
	s.markup.SetAudioCodec(string(codec))
}

func (s *Session) OnResolutionChange(width, height uint32, frame uint64) {
	Log.Infof("[%s] resolution change. %dx%d, frame=%d", s.uniqueKey, width, height, frame)
	s.markup.SetResolution(width, height)
}

func (s *Session) OnAspectChange(aspect base.AspectRatio, frame uint64) {
	Log.Infof("[%s] aspect change. aspect=%s, frame=%d", s.uniqueKey, aspect, frame)
	s.markup.SetAspect(aspect)
}

func (s *Session) OnFrameRateChange(frameRateMilli uint32, frame uint64) {
	Log.Infof("[%s] frame rate change. fps=%.3f, frame=%d", s.uniqueKey, float64(frameRateMilli)/1000, frame)
	s.markup.SetFrameRate(frameRateMilli)
}

func (s *Session) OnRecordingStatusChange(status recorder.RecordingStatus) {
	Log.Infof("[%s] recording status change. status=%s", s.uniqueKey, status)
}

func (s *Session) OnFirstKeyframeWritten(frame uint64) {
	Log.Infof("[%s] first keyframe written. frame=%d", s.uniqueKey, frame)
}

func (s *Session) OnSegmentFinished(durationMs int64, frames uint64) {
	Log.Infof("[%s] segment finished. duration=%dms, frames=%d", s.uniqueKey, durationMs, frames)
	s.rb.OnSegmentFinished(durationMs, frames)
	if err := s.markup.Save(); err != nil {
		Log.Errorf("[%s] save markup failed. err=%+v", s.uniqueKey, err)
	}
}

// ----- private -------------------------------------------------------------------------------------------------------

func (s *Session) runSavePositionMapLoop(ctx context.Context, done <-chan struct{}) {
	interval := s.config.RecInfoConfig.SavePositionMapIntervalMs
	if interval <= 0 {
		interval = base.RecorderSavePositionMapIntervalMs
	}
	t := time.NewTicker(time.Duration(interval) * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-t.C:
			s.rec.SavePositionMap(false)
			if err := s.markup.Save(); err != nil {
				Log.Errorf("[%s] save markup failed. err=%+v", s.uniqueKey, err)
			}
		}
	}
}

func (s *Session) finish() error {
	s.rec.FinishRecording()
	stat := s.rec.GetStat()
	q := s.rec.GetRecordingQuality()
	Log.Infof("[%s] recording finished. stat=%+v, quality=%+v", s.uniqueKey, stat, q)

	e1 := s.rb.Dispose()
	e2 := s.markup.Save()
	e3 := s.rec.Dispose()
	e4 := s.Dispose()

	if s.config.ProbeAfterFinish && !s.config.RingBufferConfig.UseMemoryAsDisk {
		s.probeSegments()
	}
	return nazaerrors.CombineErrors(e1, e2, e3, e4)
}

func (s *Session) probeSegments() {
	for _, seg := range s.rb.Segments() {
		filename := ringbuffer.SegmentFilename(s.config.RingBufferConfig.OutPath, seg)
		report, err := probe.ProbeFile(context.Background(), filename)
		if err != nil {
			Log.Warnf("[%s] probe failed. filename=%s, err=%+v", s.uniqueKey, filename, err)
			continue
		}
		Log.Infof("[%s] probe %s:\n%s", s.uniqueKey, filename, report.String())
	}
}
