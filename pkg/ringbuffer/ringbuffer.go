// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package ringbuffer

import (
	"fmt"
	"sync"

	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/naza/pkg/filesystemlayer"
	"github.com/q191201771/naza/pkg/nazaatomic"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// RingBuffer 直播录制的输出，由一组segment文件组成
//
// 当前segment的大小超过 SegmentMaxBytes，或者外部调用了 RequestSwitch 时，SwitchPending 返回true，
// 录制模块在下一个关键帧处调用 SwitchToNextSegment 切换到下一个文件。
// 磁盘上最多保留 MaxSegments 个segment，更早的会被删除。
// 每次切换都会重写m3u8文件。
//
// 除了 RequestSwitch 以及 Segments，其他方法都应该在同一个协程中调用
//
type RingBuffer struct {
	uniqueKey string
	option    RingBufferOption
	fsl       filesystemlayer.IFileSystemLayer

	playlistFilename    string
	playlistFilenameBak string

	seg      segment
	opened   bool
	bw       base.IBufWriter
	writeErr error
	position int64

	nextId        int
	switchRequest nazaatomic.Bool

	mutex         sync.Mutex
	segments      []SegmentInfo // 还在磁盘上的segment，最后一个是当前正在写的
	mediaSequence int
}

type RingBufferOption struct {
	OutPath  string `json:"out_path"`
	BaseName string `json:"base_name"`

	// SegmentMaxBytes 为0时只在 RequestSwitch 时切换
	SegmentMaxBytes int64 `json:"segment_max_bytes"`

	// MaxSegments 为0时不删除老的segment
	MaxSegments int `json:"max_segments"`

	// UseMemoryAsDisk 不落盘，主要用于测试
	UseMemoryAsDisk bool `json:"use_memory_as_disk"`

	// WriteBufSize 小于等于0时不合并小块数据
	WriteBufSize int `json:"write_buf_size"`
}

var defaultRingBufferOption = RingBufferOption{
	OutPath:         "./rec/",
	BaseName:        "live",
	SegmentMaxBytes: 512 * 1024 * 1024,
	MaxSegments:     0,
	UseMemoryAsDisk: false,
	WriteBufSize:    base.RingBufferWriteBufSize,
}

type ModRingBufferOption func(option *RingBufferOption)

func NewRingBuffer(modOptions ...ModRingBufferOption) *RingBuffer {
	option := defaultRingBufferOption
	for _, fn := range modOptions {
		fn(&option)
	}

	t := filesystemlayer.FslTypeDisk
	if option.UseMemoryAsDisk {
		t = filesystemlayer.FslTypeMemory
	}

	uk := base.GenUkRingBuffer()
	playlistFilename := getPlaylistFilename(option.OutPath, option.BaseName)
	rb := &RingBuffer{
		uniqueKey:           uk,
		option:              option,
		fsl:                 filesystemlayer.FslFactory(t),
		playlistFilename:    playlistFilename,
		playlistFilenameBak: playlistFilename + bakSuffix,
	}
	rb.bw = base.NewWriterFuncSize(rb.write, option.WriteBufSize)
	Log.Infof("[%s] lifecycle new ringbuffer. option=%+v", uk, option)
	return rb
}

// Start 创建输出目录并打开第一个segment
func (rb *RingBuffer) Start() error {
	if err := rb.fsl.MkdirAll(rb.option.OutPath, 0777); err != nil {
		return nazaerrors.Wrap(err)
	}
	return rb.openSegment()
}

// Dispose 关闭当前segment，m3u8加上 #EXT-X-ENDLIST
func (rb *RingBuffer) Dispose() error {
	Log.Infof("[%s] lifecycle dispose ringbuffer.", rb.uniqueKey)
	return rb.closeSegment(true)
}

// ----- recorder.ISink ------------------------------------------------------------------------------------------------

func (rb *RingBuffer) Write(b []byte) (int, error) {
	if !rb.opened {
		return 0, base.ErrRingBufferClosed
	}
	if rb.writeErr != nil {
		return 0, rb.writeErr
	}
	rb.bw.Write(b)
	rb.position += int64(len(b))
	if rb.writeErr != nil {
		return 0, rb.writeErr
	}
	return len(b), nil
}

func (rb *RingBuffer) WritePosition() int64 {
	return rb.position
}

func (rb *RingBuffer) SwitchPending() bool {
	if rb.switchRequest.Load() {
		return true
	}
	return rb.option.SegmentMaxBytes > 0 && rb.position >= rb.option.SegmentMaxBytes
}

func (rb *RingBuffer) SwitchToNextSegment() error {
	rb.switchRequest.Store(false)
	if err := rb.closeSegment(false); err != nil {
		Log.Warnf("[%s] close segment failed. err=%+v", rb.uniqueKey, err)
	}
	return rb.openSegment()
}

func (rb *RingBuffer) Flush() error {
	rb.bw.Flush()
	return rb.writeErr
}

// ---------------------------------------------------------------------------------------------------------------------

// RequestSwitch 在下一个关键帧处切换到新的segment，可以在任意协程中调用
func (rb *RingBuffer) RequestSwitch() {
	rb.switchRequest.Store(true)
}

// OnSegmentFinished 更新当前segment的时长以及帧数，写m3u8时使用
func (rb *RingBuffer) OnSegmentFinished(durationMs int64, frames uint64) {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()
	if len(rb.segments) == 0 {
		return
	}
	s := &rb.segments[len(rb.segments)-1]
	s.DurationMs = durationMs
	s.Frames = frames
}

// Segments 还在磁盘上的segment
func (rb *RingBuffer) Segments() []SegmentInfo {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()
	out := make([]SegmentInfo, len(rb.segments))
	copy(out, rb.segments)
	return out
}

func (rb *RingBuffer) CurrentSegmentFilename() string {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()
	if len(rb.segments) == 0 {
		return ""
	}
	return getSegmentFilename(rb.option.OutPath, rb.option.BaseName, rb.segments[len(rb.segments)-1].Id)
}

func (rb *RingBuffer) PlaylistFilename() string {
	return rb.playlistFilename
}

func (rb *RingBuffer) ReadFile(filename string) ([]byte, error) {
	return rb.fsl.ReadFile(filename)
}

// ----- private -------------------------------------------------------------------------------------------------------

func (rb *RingBuffer) write(b []byte) {
	if rb.writeErr != nil {
		return
	}
	if err := rb.seg.WriteFile(b); err != nil {
		Log.Errorf("[%s] write segment failed. err=%+v", rb.uniqueKey, err)
		rb.writeErr = err
	}
}

func (rb *RingBuffer) openSegment() error {
	if rb.opened {
		return nil
	}

	id := rb.nextId
	filename := getSegmentFilename(rb.option.OutPath, rb.option.BaseName, id)
	if err := rb.seg.OpenFile(rb.fsl, filename); err != nil {
		return fmt.Errorf("%w. open segment failed. filename=%s, err=%+v", base.ErrRingBuffer, filename, err)
	}
	Log.Infof("[%s] open segment. filename=%s", rb.uniqueKey, filename)

	rb.nextId++
	rb.opened = true
	rb.writeErr = nil
	rb.position = 0

	rb.mutex.Lock()
	rb.segments = append(rb.segments, SegmentInfo{
		Id:       id,
		Filename: getSegmentFilenameWithoutPath(rb.option.BaseName, id),
	})
	rb.mutex.Unlock()
	return nil
}

func (rb *RingBuffer) closeSegment(isLast bool) error {
	if !rb.opened {
		return nil
	}

	rb.bw.Flush()
	err := nazaerrors.CombineErrors(rb.writeErr, rb.seg.CloseFile())
	rb.opened = false

	rb.mutex.Lock()
	rb.segments[len(rb.segments)-1].Bytes = rb.position
	if !isLast {
		rb.removeOldSegments()
	}
	content := makePlaylist(rb.segments, rb.mediaSequence, isLast)
	rb.mutex.Unlock()

	if werr := writeM3u8File(rb.fsl, content, rb.playlistFilename, rb.playlistFilenameBak); werr != nil {
		Log.Errorf("[%s] write playlist failed. err=%+v", rb.uniqueKey, werr)
		err = nazaerrors.CombineErrors(err, werr)
	}
	return err
}

// removeOldSegments 加上即将打开的下一个segment，磁盘上不超过 MaxSegments 个，需要持有锁
func (rb *RingBuffer) removeOldSegments() {
	if rb.option.MaxSegments <= 0 {
		return
	}
	for len(rb.segments) >= rb.option.MaxSegments {
		s := rb.segments[0]
		filename := getSegmentFilename(rb.option.OutPath, rb.option.BaseName, s.Id)
		if err := rb.fsl.RemoveAll(filename); err != nil {
			Log.Warnf("[%s] remove segment failed. filename=%s, err=%+v", rb.uniqueKey, filename, err)
		} else {
			Log.Infof("[%s] remove segment. filename=%s", rb.uniqueKey, filename)
		}
		rb.segments = rb.segments[1:]
		rb.mediaSequence = s.Id + 1
	}
}
