// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package recinfo

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/dtvrec/pkg/recorder"
	"github.com/q191201771/naza/pkg/filesystemlayer"
	"github.com/q191201771/naza/pkg/nazajson"
)

// MarkupData 一个录制文件的元信息，以json格式保存在录制文件旁边
type MarkupData struct {
	RecordingFilename string `json:"recording_filename"`
	Status            string `json:"status"`
	DurationMs        int64  `json:"duration_ms"`
	TotalFrames       uint64 `json:"total_frames"`

	VideoCodec string `json:"video_codec"`
	AudioCodec string `json:"audio_codec"`
	Width      uint32 `json:"width"`
	Height     uint32 `json:"height"`
	Aspect     string `json:"aspect"`
	FrameRate  uint32 `json:"frame_rate_milli"`

	// 帧号 -> 字节位置
	GopByFrame map[uint64]int64 `json:"gop_by_frame"`
	// 帧号 -> 累计时长，单位毫秒
	DurationByFrame map[uint64]int64 `json:"duration_by_frame"`

	Gaps []recorder.RecordingGap `json:"gaps"`
}

// Markup 实现 recorder.IRecordingInfo
//
// 所有方法都可以在任意协程中调用
//
type Markup struct {
	uniqueKey string
	option    MarkupOption
	fsl       filesystemlayer.IFileSystemLayer

	mutex    sync.Mutex
	filename string
	data     MarkupData
	dirty    bool
}

type MarkupOption struct {
	// UseMemoryAsDisk 不落盘，主要用于测试
	UseMemoryAsDisk bool `json:"use_memory_as_disk"`
}

var defaultMarkupOption = MarkupOption{
	UseMemoryAsDisk: false,
}

type ModMarkupOption func(option *MarkupOption)

// NewMarkup
//
// @param filename:          markup文件名
// @param recordingFilename: 对应的录制文件名
//
func NewMarkup(filename string, recordingFilename string, modOptions ...ModMarkupOption) *Markup {
	option := defaultMarkupOption
	for _, fn := range modOptions {
		fn(&option)
	}
	t := filesystemlayer.FslTypeDisk
	if option.UseMemoryAsDisk {
		t = filesystemlayer.FslTypeMemory
	}

	uk := base.GenUkRecInfo()
	m := &Markup{
		uniqueKey: uk,
		option:    option,
		fsl:       filesystemlayer.FslFactory(t),
	}
	m.reset(filename, recordingFilename)
	Log.Infof("[%s] lifecycle new markup. filename=%s, recording=%s", uk, filename, recordingFilename)
	return m
}

// ----- recorder.IRecordingInfo ---------------------------------------------------------------------------------------

func (m *Markup) SetDuration(durationMs int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.data.DurationMs = durationMs
	m.dirty = true
}

func (m *Markup) SetTotalFrames(frames uint64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.data.TotalFrames = frames
	m.dirty = true
}

func (m *Markup) ClearPositionMap(kind recorder.MarkType) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	switch kind {
	case recorder.MarkTypeGopByFrame:
		m.data.GopByFrame = make(map[uint64]int64)
	case recorder.MarkTypeDurationMs:
		m.data.DurationByFrame = make(map[uint64]int64)
	default:
		Log.Warnf("[%s] unknown mark type. kind=%d", m.uniqueKey, kind)
		return
	}
	m.dirty = true
}

func (m *Markup) SavePositionMap(kind recorder.MarkType, delta map[uint64]int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	var dst map[uint64]int64
	switch kind {
	case recorder.MarkTypeGopByFrame:
		dst = m.data.GopByFrame
	case recorder.MarkTypeDurationMs:
		dst = m.data.DurationByFrame
	default:
		Log.Warnf("[%s] unknown mark type. kind=%d", m.uniqueKey, kind)
		return
	}
	for k, v := range delta {
		dst[k] = v
	}
	m.dirty = true
}

func (m *Markup) SetRecordingGaps(gaps []recorder.RecordingGap) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.data.Gaps = append([]recorder.RecordingGap{}, gaps...)
	m.dirty = true
}

func (m *Markup) SetRecordingStatus(status recorder.RecordingStatus) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.data.Status = status.String()
	m.dirty = true
}

// ---------------------------------------------------------------------------------------------------------------------

func (m *Markup) SetVideoCodec(codec string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.data.VideoCodec = codec
	m.dirty = true
}

func (m *Markup) SetAudioCodec(codec string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.data.AudioCodec = codec
	m.dirty = true
}

func (m *Markup) SetResolution(width, height uint32) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.data.Width = width
	m.data.Height = height
	m.dirty = true
}

func (m *Markup) SetAspect(aspect base.AspectRatio) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.data.Aspect = aspect.String()
	m.dirty = true
}

func (m *Markup) SetFrameRate(frameRateMilli uint32) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.data.FrameRate = frameRateMilli
	m.dirty = true
}

// Data 返回一份拷贝
func (m *Markup) Data() MarkupData {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.copyData()
}

func (m *Markup) Filename() string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.filename
}

// Save 有修改时写文件，先写临时文件再改名
func (m *Markup) Save() error {
	m.mutex.Lock()
	if !m.dirty {
		m.mutex.Unlock()
		return nil
	}
	filename := m.filename
	content, err := json.Marshal(m.data)
	m.dirty = false
	m.mutex.Unlock()

	if err != nil {
		return fmt.Errorf("%w. marshal failed. err=%+v", base.ErrRecInfo, err)
	}
	bak := filename + ".bak"
	if err = m.fsl.WriteFile(bak, content, 0666); err != nil {
		return err
	}
	return m.fsl.Rename(bak, filename)
}

// Rotate 保存当前文件，之后的信息写入新的markup文件，用于录制切换到下一个segment
//
// 编码格式以及分辨率等信息保留
//
func (m *Markup) Rotate(filename string, recordingFilename string) error {
	err := m.Save()

	m.mutex.Lock()
	prev := m.data
	m.reset(filename, recordingFilename)
	m.data.VideoCodec = prev.VideoCodec
	m.data.AudioCodec = prev.AudioCodec
	m.data.Width = prev.Width
	m.data.Height = prev.Height
	m.data.Aspect = prev.Aspect
	m.data.FrameRate = prev.FrameRate
	m.mutex.Unlock()

	Log.Infof("[%s] rotate markup. filename=%s, recording=%s", m.uniqueKey, filename, recordingFilename)
	return err
}

func (m *Markup) ReadFile(filename string) ([]byte, error) {
	return m.fsl.ReadFile(filename)
}

// LoadMarkup 读取 Markup.Save 写的文件，缺少的字段使用零值
func LoadMarkup(content []byte) (MarkupData, error) {
	var data MarkupData
	if err := json.Unmarshal(content, &data); err != nil {
		return data, fmt.Errorf("%w. unmarshal failed. err=%+v", base.ErrRecInfo, err)
	}
	j, err := nazajson.New(content)
	if err != nil {
		return data, fmt.Errorf("%w. invalid json. err=%+v", base.ErrRecInfo, err)
	}
	if !j.Exist("gop_by_frame") || data.GopByFrame == nil {
		data.GopByFrame = make(map[uint64]int64)
	}
	if !j.Exist("duration_by_frame") || data.DurationByFrame == nil {
		data.DurationByFrame = make(map[uint64]int64)
	}
	return data, nil
}

// ----- private -------------------------------------------------------------------------------------------------------

// reset 需要持有锁，或者在构造时调用
func (m *Markup) reset(filename string, recordingFilename string) {
	m.filename = filename
	m.data = MarkupData{
		RecordingFilename: recordingFilename,
		Status:            recorder.RecordingStatusRecording.String(),
		GopByFrame:        make(map[uint64]int64),
		DurationByFrame:   make(map[uint64]int64),
	}
	m.dirty = true
}

func (m *Markup) copyData() MarkupData {
	out := m.data
	out.GopByFrame = make(map[uint64]int64, len(m.data.GopByFrame))
	for k, v := range m.data.GopByFrame {
		out.GopByFrame[k] = v
	}
	out.DurationByFrame = make(map[uint64]int64, len(m.data.DurationByFrame))
	for k, v := range m.data.DurationByFrame {
		out.DurationByFrame[k] = v
	}
	out.Gaps = append([]recorder.RecordingGap{}, m.data.Gaps...)
	return out
}
