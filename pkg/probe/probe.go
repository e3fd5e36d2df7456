// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package probe

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/asticode/go-astits"
	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/dtvrec/pkg/mpegts"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// 使用独立的demuxer读取录制的文件，用于检查录制结果是否能被其他程序正确解析

type StreamReport struct {
	Pid        uint16 `json:"pid"`
	StreamType uint8  `json:"stream_type"`
	PesCount   int    `json:"pes_count"`
	PesBytes   int    `json:"pes_bytes"`

	// 没有时间戳时为-1
	FirstPts int64 `json:"first_pts"`
	LastPts  int64 `json:"last_pts"`
}

// DurationMs 第一个和最后一个PES的PTS之差
func (s StreamReport) DurationMs() int64 {
	if s.FirstPts < 0 || s.LastPts < 0 {
		return 0
	}
	d := s.LastPts - s.FirstPts
	if d < 0 {
		d += tsWrap
	}
	return d / 90
}

type ProgramReport struct {
	ProgramNumber uint16         `json:"program_number"`
	PmtPid        uint16         `json:"pmt_pid"`
	PcrPid        uint16         `json:"pcr_pid"`
	Streams       []StreamReport `json:"streams"`
}

type Report struct {
	PatCount int             `json:"pat_count"`
	PmtCount int             `json:"pmt_count"`
	Programs []ProgramReport `json:"programs"`

	// 所有PES，包括PMT中没有的pid
	Streams map[uint16]*StreamReport `json:"-"`
}

func (r *Report) DurationMs() int64 {
	var max int64
	for _, s := range r.Streams {
		if d := s.DurationMs(); d > max {
			max = d
		}
	}
	return max
}

func (r *Report) String() string {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("pat=%d, pmt=%d, duration=%dms\n", r.PatCount, r.PmtCount, r.DurationMs()))
	for _, p := range r.Programs {
		buf.WriteString(fmt.Sprintf("program %d: pmt pid=0x%x, pcr pid=0x%x\n", p.ProgramNumber, p.PmtPid, p.PcrPid))
		for _, s := range p.Streams {
			buf.WriteString(fmt.Sprintf("  pid=0x%x, type=%s, pes=%d, bytes=%d, duration=%dms\n",
				s.Pid, mpegts.StreamTypeReadable(s.StreamType), s.PesCount, s.PesBytes, s.DurationMs()))
		}
	}
	return buf.String()
}

// ProbeReader 读到流结束为止
func ProbeReader(ctx context.Context, r io.Reader) (*Report, error) {
	report := &Report{
		Streams: make(map[uint16]*StreamReport),
	}
	pmtPids := make(map[uint16]uint16) // program number -> pmt pid
	pmts := make(map[uint16]*astits.PMTData)

	// 包一层bufio，自动检测packet大小时需要peek
	dmx := astits.NewDemuxer(ctx, bufio.NewReader(r))
	for {
		d, err := dmx.NextData()
		if err != nil {
			if err == astits.ErrNoMorePackets {
				break
			}
			return report, fmt.Errorf("%w. demux failed. err=%+v", base.ErrProbe, err)
		}

		switch {
		case d.PAT != nil:
			report.PatCount++
			for _, p := range d.PAT.Programs {
				if p.ProgramNumber != 0 {
					pmtPids[p.ProgramNumber] = p.ProgramMapID
				}
			}
		case d.PMT != nil:
			report.PmtCount++
			pmts[d.PMT.ProgramNumber] = d.PMT
		case d.PES != nil:
			report.addPes(d)
		}
	}

	report.makePrograms(pmtPids, pmts)
	return report, nil
}

func ProbeFile(ctx context.Context, filename string) (*Report, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return nil, nazaerrors.Wrap(err)
	}
	defer fp.Close()
	return ProbeReader(ctx, fp)
}

// ----- private -------------------------------------------------------------------------------------------------------

func (r *Report) addPes(d *astits.DemuxerData) {
	if d.FirstPacket == nil {
		return
	}
	pid := d.FirstPacket.Header.PID
	s, ok := r.Streams[pid]
	if !ok {
		s = &StreamReport{
			Pid:      pid,
			FirstPts: -1,
			LastPts:  -1,
		}
		r.Streams[pid] = s
	}
	s.PesCount++
	s.PesBytes += len(d.PES.Data)

	if d.PES.Header == nil || d.PES.Header.OptionalHeader == nil || d.PES.Header.OptionalHeader.PTS == nil {
		return
	}
	pts := d.PES.Header.OptionalHeader.PTS.Base
	if s.FirstPts < 0 {
		s.FirstPts = pts
	}
	s.LastPts = pts
}

func (r *Report) makePrograms(pmtPids map[uint16]uint16, pmts map[uint16]*astits.PMTData) {
	var numbers []int
	for n := range pmtPids {
		numbers = append(numbers, int(n))
	}
	sort.Ints(numbers)

	for _, n := range numbers {
		pn := uint16(n)
		p := ProgramReport{
			ProgramNumber: pn,
			PmtPid:        pmtPids[pn],
			PcrPid:        mpegts.PidNull,
		}
		if pmt, ok := pmts[pn]; ok {
			p.PcrPid = pmt.PCRPID
			for _, es := range pmt.ElementaryStreams {
				s := StreamReport{
					Pid:        es.ElementaryPID,
					StreamType: uint8(es.StreamType),
					FirstPts:   -1,
					LastPts:    -1,
				}
				if v, ok := r.Streams[es.ElementaryPID]; ok {
					v.StreamType = s.StreamType
					s = *v
				}
				p.Streams = append(p.Streams, s)
			}
		}
		r.Programs = append(r.Programs, p)
	}
}
