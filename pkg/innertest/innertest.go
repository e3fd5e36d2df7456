// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package innertest

import (
	"bytes"
	"context"
	"testing"

	"github.com/q191201771/dtvrec/pkg/mpegts"
	"github.com/q191201771/dtvrec/pkg/probe"
	"github.com/q191201771/dtvrec/pkg/recinfo"
	"github.com/q191201771/dtvrec/pkg/recorder"
	"github.com/q191201771/dtvrec/pkg/ringbuffer"
	"github.com/q191201771/naza/pkg/assert"
)

// 端到端测试：
// 1. 构造一个H264+AC3的单节目流，喂给recorder
// 2. recorder写入内存中的ringbuffer，按大小切换segment
// 3. 每个segment使用独立的demuxer重新解析，检查PAT、PMT以及PES是否完整

const (
	innerTestOutPath = "/innertest"
	innerTestGops    = 5
	innerTestGopSize = 10
)

func InnerTestEntry(t *testing.T) {
	rb := ringbuffer.NewRingBuffer(func(option *ringbuffer.RingBufferOption) {
		option.OutPath = innerTestOutPath
		option.BaseName = "innertest"
		option.SegmentMaxBytes = mpegts.PacketSize * 15
		option.UseMemoryAsDisk = true
	})
	assert.Equal(t, nil, rb.Start())

	filename := rb.CurrentSegmentFilename()
	markup := recinfo.NewMarkup(filename+".json", filename, func(option *recinfo.MarkupOption) {
		option.UseMemoryAsDisk = true
	})
	r := recorder.NewRecorder(rb, markup, nil, func(option *recorder.RecorderOption) {
		option.DesiredProgram = int(ProgramNumber)
	})

	b := NewTsStreamBuilder()
	b.WriteProgramTables(NewProgramPmt(mpegts.StreamTypeH264, mpegts.StreamTypeAc3))
	for i := 0; i < innerTestGops*innerTestGopSize; i++ {
		key := i%innerTestGopSize == 0
		ts := uint64(900000 + i*3600)
		b.WritePes(VideoPid, 0xe0, ts, ts, key, H264Au(key, 50))
		b.WritePes(AudioPid, 0xbd, ts, ts, false, []byte{0x0b, 0x77, 0x1, 0x2, 0x3, 0x4})
	}
	for _, pkt := range SplitTsPackets(b.Bytes()) {
		r.FeedTsPacket(pkt)
	}
	r.FinishRecording()
	assert.Equal(t, nil, rb.Dispose())
	assert.Equal(t, nil, markup.Save())
	assert.Equal(t, nil, r.Dispose())

	stat := r.GetStat()
	assert.Equal(t, uint64(0), stat.ContinuityErrors)
	assert.Equal(t, recorder.RecordingStatusRecorded.String(), markup.Data().Status)

	segs := rb.Segments()
	assert.Equal(t, innerTestGops, len(segs))
	for _, seg := range segs {
		content, err := rb.ReadFile(ringbuffer.SegmentFilename(innerTestOutPath, seg))
		assert.Equal(t, nil, err)
		assert.Equal(t, seg.Bytes, int64(len(content)))

		pkts := SplitTsPackets(content)
		assert.Equal(t, true, len(pkts) > 2)
		assert.Equal(t, uint16(mpegts.PidPat), mpegts.TsPacket(pkts[0]).Pid())
		assert.Equal(t, PmtPid, mpegts.TsPacket(pkts[1]).Pid())

		report, err := probe.ProbeReader(context.Background(), bytes.NewReader(content))
		assert.Equal(t, nil, err)
		assert.Equal(t, 1, len(report.Programs))
		assert.Equal(t, ProgramNumber, report.Programs[0].ProgramNumber)

		video, ok := report.Streams[VideoPid]
		assert.Equal(t, true, ok)
		assert.Equal(t, innerTestGopSize, video.PesCount)
		assert.Equal(t, mpegts.StreamTypeH264, video.StreamType)
		assert.Equal(t, int64((innerTestGopSize-1)*40), video.DurationMs())

		audio, ok := report.Streams[AudioPid]
		assert.Equal(t, true, ok)
		assert.Equal(t, innerTestGopSize, audio.PesCount)
	}

	playlist, err := rb.ReadFile(rb.PlaylistFilename())
	assert.Equal(t, nil, err)
	assert.Equal(t, true, bytes.HasSuffix(playlist, []byte("#EXT-X-ENDLIST\n")))
}
