// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package recinfo_test

import (
	"testing"
	"time"

	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/dtvrec/pkg/recinfo"
	"github.com/q191201771/dtvrec/pkg/recorder"
	"github.com/q191201771/naza/pkg/assert"
)

var _ recorder.IRecordingInfo = &recinfo.Markup{}

func newMemMarkup(filename, recordingFilename string) *recinfo.Markup {
	return recinfo.NewMarkup(filename, recordingFilename, func(option *recinfo.MarkupOption) {
		option.UseMemoryAsDisk = true
	})
}

func TestMarkupPositionMap(t *testing.T) {
	m := newMemMarkup("/memrec/live-0.ts.json", "/memrec/live-0.ts")

	m.SavePositionMap(recorder.MarkTypeGopByFrame, map[uint64]int64{0: 376, 12: 9400})
	m.SavePositionMap(recorder.MarkTypeGopByFrame, map[uint64]int64{24: 18800})
	m.SavePositionMap(recorder.MarkTypeDurationMs, map[uint64]int64{0: 0, 12: 480, 24: 960})
	m.SetDuration(1000)
	m.SetTotalFrames(25)

	d := m.Data()
	assert.Equal(t, map[uint64]int64{0: 376, 12: 9400, 24: 18800}, d.GopByFrame)
	assert.Equal(t, int64(480), d.DurationByFrame[12])
	assert.Equal(t, "Recording", d.Status)

	// 返回的是拷贝
	d.GopByFrame[36] = 1
	assert.Equal(t, 3, len(m.Data().GopByFrame))

	m.ClearPositionMap(recorder.MarkTypeGopByFrame)
	assert.Equal(t, 0, len(m.Data().GopByFrame))
	assert.Equal(t, 3, len(m.Data().DurationByFrame))
}

func TestMarkupSaveLoad(t *testing.T) {
	m := newMemMarkup("/memrec/live-0.ts.json", "/memrec/live-0.ts")

	t0 := time.Date(2022, 3, 1, 20, 0, 0, 0, time.UTC)
	m.SavePositionMap(recorder.MarkTypeGopByFrame, map[uint64]int64{0: 376, 12: 9400})
	m.SetRecordingGaps([]recorder.RecordingGap{{Start: t0, End: t0.Add(2 * time.Second)}})
	m.SetRecordingStatus(recorder.RecordingStatusFailing)
	m.SetVideoCodec("H264")
	m.SetResolution(1920, 1080)
	m.SetAspect(base.AspectRatio16x9)
	m.SetFrameRate(25000)
	assert.Equal(t, nil, m.Save())

	content, err := m.ReadFile("/memrec/live-0.ts.json")
	assert.Equal(t, nil, err)
	d, err := recinfo.LoadMarkup(content)
	assert.Equal(t, nil, err)
	assert.Equal(t, "/memrec/live-0.ts", d.RecordingFilename)
	assert.Equal(t, "Failing", d.Status)
	assert.Equal(t, map[uint64]int64{0: 376, 12: 9400}, d.GopByFrame)
	assert.Equal(t, 0, len(d.DurationByFrame))
	assert.Equal(t, 1, len(d.Gaps))
	assert.Equal(t, 2*time.Second, d.Gaps[0].Duration())
	assert.Equal(t, uint32(1920), d.Width)
	assert.Equal(t, "H264", d.VideoCodec)

	// 没有新的修改不重写
	assert.Equal(t, nil, m.Save())

	_, err = recinfo.LoadMarkup([]byte("{"))
	assert.IsNotNil(t, err)
}

func TestMarkupRotate(t *testing.T) {
	m := newMemMarkup("/memrec/live-0.ts.json", "/memrec/live-0.ts")
	m.SetVideoCodec("MPEG2")
	m.SetResolution(720, 576)
	m.SavePositionMap(recorder.MarkTypeGopByFrame, map[uint64]int64{0: 376})
	m.SetTotalFrames(100)

	assert.Equal(t, nil, m.Rotate("/memrec/live-1.ts.json", "/memrec/live-1.ts"))
	assert.Equal(t, "/memrec/live-1.ts.json", m.Filename())

	d := m.Data()
	assert.Equal(t, "/memrec/live-1.ts", d.RecordingFilename)
	assert.Equal(t, 0, len(d.GopByFrame))
	assert.Equal(t, uint64(0), d.TotalFrames)
	assert.Equal(t, "MPEG2", d.VideoCodec)
	assert.Equal(t, uint32(576), d.Height)

	// 之前的文件已经保存
	content, err := m.ReadFile("/memrec/live-0.ts.json")
	assert.Equal(t, nil, err)
	prev, _ := recinfo.LoadMarkup(content)
	assert.Equal(t, uint64(100), prev.TotalFrames)
	assert.Equal(t, map[uint64]int64{0: 376}, prev.GopByFrame)
}
