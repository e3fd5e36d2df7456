// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package source

import (
	"context"
	"io"
	"os"

	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/naza/pkg/nazaatomic"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// OnTsPacket 回调结束后，内部不再持有pkt
type OnTsPacket func(pkt []byte)

// OnPsData 回调结束后，内部不再持有b
type OnPsData func(b []byte)

type ISource interface {
	// RunLoop 阻塞直到流结束、出错或者ctx被取消。流正常结束时返回nil
	RunLoop(ctx context.Context, onPacket OnTsPacket) error
	Dispose() error
	UniqueKey() string
}

// ReaderSource 从 io.ReadCloser 中读取TS流，比如SRT连接
type ReaderSource struct {
	uniqueKey string
	rc        io.ReadCloser

	packets  nazaatomic.Uint64
	disposed nazaatomic.Bool
}

func NewReaderSource(rc io.ReadCloser) *ReaderSource {
	uk := base.GenUkSource()
	Log.Infof("[%s] lifecycle new reader source.", uk)
	return &ReaderSource{
		uniqueKey: uk,
		rc:        rc,
	}
}

func (s *ReaderSource) RunLoop(ctx context.Context, onPacket OnTsPacket) error {
	tr := NewTsReader(s.rc)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pkt, err := tr.ReadPacket()
		if err != nil {
			Log.Infof("[%s] read done. packets=%d, lost sync=%d, skipped=%d, err=%+v",
				s.uniqueKey, s.packets.Load(), tr.LostSync(), tr.Skipped(), err)
			if err == io.EOF || s.disposed.Load() {
				return nil
			}
			return nazaerrors.Wrap(err)
		}
		s.packets.Increment()
		onPacket(pkt)
	}
}

func (s *ReaderSource) Dispose() error {
	if s.disposed.Load() {
		return nil
	}
	s.disposed.Store(true)
	Log.Infof("[%s] lifecycle dispose reader source.", s.uniqueKey)
	return s.rc.Close()
}

func (s *ReaderSource) UniqueKey() string {
	return s.uniqueKey
}

func (s *ReaderSource) Packets() uint64 {
	return s.packets.Load()
}

// ---------------------------------------------------------------------------------------------------------------------

// FileSource 读取录制好的TS文件或者PS文件
type FileSource struct {
	*ReaderSource
	filename string
}

func NewFileSource(filename string) (*FileSource, error) {
	fp, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nazaerrors.Wrap(base.ErrFileNotExist, filename)
		}
		return nil, nazaerrors.Wrap(err)
	}
	s := &FileSource{
		ReaderSource: NewReaderSource(fp),
		filename:     filename,
	}
	Log.Infof("[%s] open file. filename=%s", s.uniqueKey, filename)
	return s, nil
}

// RunPsLoop 按块读取PS流
func (s *FileSource) RunPsLoop(ctx context.Context, onData OnPsData) error {
	buf := make([]byte, psChunkSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := s.rc.Read(buf)
		if n > 0 {
			onData(buf[:n])
		}
		if err != nil {
			if err == io.EOF || s.disposed.Load() {
				return nil
			}
			return nazaerrors.Wrap(err)
		}
	}
}
