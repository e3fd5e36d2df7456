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
)

// RecordingGap 时间戳不连续的区间，时间由时间戳换算为墙上时间
type RecordingGap struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (g RecordingGap) Duration() time.Duration {
	d := g.End.Sub(g.Start)
	if d < 0 {
		return -d
	}
	return d
}

type RecordingQuality struct {
	Score            float64 `json:"score"` // 0~100
	Damaged          bool    `json:"damaged"`
	GapCount         int     `json:"gap_count"`
	GapDurationMs    int64   `json:"gap_duration_ms"`
	SpanMs           int64   `json:"span_ms"`
	ContinuityErrors uint64  `json:"continuity_errors"`
	Packets          uint64  `json:"packets"`
}

// CalcRecordingQuality
//
// 分数为 100 * (1 - gap时长占比) * (1 - continuity counter错误占比)，
// 录制时长取 first 到 latest 与gap总时长中较大的那个
//
// @param minimum: 分数低于该值时 Damaged 为true
//
func CalcRecordingQuality(gaps []RecordingGap, first, latest time.Time, ccErrors, packets uint64, minimum float64) RecordingQuality {
	q := RecordingQuality{
		GapCount:         len(gaps),
		ContinuityErrors: ccErrors,
		Packets:          packets,
	}

	var gapDuration time.Duration
	for _, g := range gaps {
		gapDuration += g.Duration()
	}
	var span time.Duration
	if !first.IsZero() && latest.After(first) {
		span = latest.Sub(first)
	}
	if gapDuration > span {
		span = gapDuration
	}
	q.GapDurationMs = gapDuration.Milliseconds()
	q.SpanMs = span.Milliseconds()

	gapFraction := 0.0
	if span > 0 {
		gapFraction = float64(gapDuration) / float64(span)
	}
	ccFraction := 0.0
	if packets > 0 {
		ccFraction = float64(ccErrors) / float64(packets)
		if ccFraction > 1 {
			ccFraction = 1
		}
	}
	q.Score = 100 * (1 - gapFraction) * (1 - ccFraction)
	q.Damaged = q.Score < minimum
	return q
}

// GetRecordingQuality 当前文件的录制质量
func (r *Recorder) GetRecordingQuality() RecordingQuality {
	r.statMutex.Lock()
	gaps := r.gaps
	first := r.timeOfFirstData
	latest := r.timeOfLatestData
	r.statMutex.Unlock()

	return CalcRecordingQuality(gaps, first, latest, r.cc.Errors(), r.cc.Packets(), r.option.MinimumRecordingQuality)
}

type Stat struct {
	Status           string  `json:"status"`
	FramesSeen       uint64  `json:"frames_seen"`
	FramesWritten    uint64  `json:"frames_written"`
	DurationMs       int64   `json:"duration_ms"`
	WriteBytes       uint64  `json:"write_bytes"`
	WriteKbitsPerSec float32 `json:"write_kbits_per_sec"`
	Width            uint32  `json:"width"`
	Height           uint32  `json:"height"`
	Aspect           string  `json:"aspect"`
	FrameRate        string  `json:"frame_rate"`
	ContinuityErrors uint64  `json:"continuity_errors"`
	Packets          uint64  `json:"packets"`
	GapCount         int     `json:"gap_count"`
	FirstDataTime    string  `json:"first_data_time"`
	LatestDataTime   string  `json:"latest_data_time"`
}

func (r *Recorder) GetStat() Stat {
	var s Stat
	s.FramesSeen = r.framesSeen.Load()
	s.FramesWritten = r.framesWritten.Load()
	s.DurationMs = r.totalDurationMs.Load()
	s.WriteBytes = r.writeBytes.Load()
	s.WriteKbitsPerSec = r.writeBitrate.Rate()
	s.ContinuityErrors = r.cc.Errors()
	s.Packets = r.cc.Packets()

	r.statMutex.Lock()
	s.Status = r.status.String()
	s.Width = r.width
	s.Height = r.height
	s.Aspect = r.aspect.String()
	s.FrameRate = r.frameRate.String()
	s.GapCount = len(r.gaps)
	if !r.timeOfFirstData.IsZero() {
		s.FirstDataTime = r.timeOfFirstData.Format(time.RFC3339)
		s.LatestDataTime = r.timeOfLatestData.Format(time.RFC3339)
	}
	r.statMutex.Unlock()
	return s
}

// SavePositionMap 把position map的增量写入 IRecordingInfo
//
// 可以在其他协程中周期性调用，间隔参考 base.RecorderSavePositionMapIntervalMs
//
// @param force: 为false时，没有增量则什么也不做；为true时总是更新时长和帧数
//
func (r *Recorder) SavePositionMap(force bool) {
	r.positionMapMutex.Lock()
	defer r.positionMapMutex.Unlock()

	if !force && len(r.positionMapDelta) == 0 && len(r.durationMapDelta) == 0 {
		return
	}

	if len(r.positionMapDelta) > 0 {
		r.info.SavePositionMap(MarkTypeGopByFrame, r.positionMapDelta)
		r.positionMapDelta = make(map[uint64]int64)
	}
	if len(r.durationMapDelta) > 0 {
		r.info.SavePositionMap(MarkTypeDurationMs, r.durationMapDelta)
		r.durationMapDelta = make(map[uint64]int64)
	}
	r.info.SetDuration(r.totalDurationMs.Load())
	r.info.SetTotalFrames(r.framesWritten.Load())
}

// ----- private -------------------------------------------------------------------------------------------------------

// handleTimestamps 检查时间戳是否跳变，跳变超过阈值时记录一个gap
//
// 有DTS时使用DTS，否则使用PTS，PTS因为B帧重排所以阈值更大
//
func (r *Recorder) handleTimestamps(sid uint8, pts, dts int64) {
	if pts < 0 {
		r.tsLast[sid] = -1
		return
	}
	if dts < 0 && !r.usePts {
		r.tsLast[sid] = -1
		r.usePts = true
		Log.Debugf("[%s] dts not present, using pts for gap detection. sid=0x%x", r.uniqueKey, sid)
	}

	ts := dts
	threshold := gapThresholdDts
	if r.usePts {
		ts = pts
		threshold = gapThresholdPts
	}
	// 音乐台每6秒左右才有一帧
	if r.musicChoice {
		threshold = gapThresholdMusic
	}

	if last := r.tsLast[sid]; last >= 0 {
		diff := ts - last
		if diff < tsWrapThreshold {
			diff += tsMax
		}
		// 往回跳也当作gap
		if diff < 0 {
			diff = -diff
		}
		if diff > threshold && r.firstKeyframe >= 0 {
			gap := RecordingGap{
				Start: tsToTime(last, r.tsFirst[sid], r.tsFirstTime[sid]),
				End:   tsToTime(ts, r.tsFirst[sid], r.tsFirstTime[sid]),
			}
			r.addGap(gap, diff)
		}
	}

	r.tsLast[sid] = ts
	if r.tsCount[sid] < tsFirstCount {
		if r.tsCount[sid] == 0 || ts < r.tsFirst[sid] {
			r.tsFirst[sid] = ts
			r.tsFirstTime[sid] = r.option.Clock.Now()
		}
	}
	r.tsCount[sid]++
}

func (r *Recorder) addGap(gap RecordingGap, diff int64) {
	r.statMutex.Lock()
	r.gaps = append(r.gaps, gap)
	gaps := r.gaps
	first := r.timeOfFirstData
	latest := r.timeOfLatestData
	status := r.status
	r.statMutex.Unlock()

	Log.Warnf("[%s] inserted gap. start=%s, end=%s, diff=%dms",
		r.uniqueKey, gap.Start.Format(gapTimeLayout), gap.End.Format(gapTimeLayout), diff/90)

	if status != RecordingStatusFailing {
		q := CalcRecordingQuality(gaps, first, latest, 0, 0, r.option.MinimumRecordingQuality)
		if q.Damaged {
			Log.Warnf("[%s] too many gaps. quality=%+v", r.uniqueKey, q)
			r.markFailing()
		}
	}
}

// tsToTime 把90kHz的时间戳换算为墙上时间，first 为 firstTime 时刻的时间戳
func tsToTime(ts, first int64, firstTime time.Time) time.Time {
	if ts < first {
		ts += tsMax
	}
	return firstTime.Add(time.Duration((ts-first)/90) * time.Millisecond)
}
