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
	"path/filepath"

	"github.com/q191201771/naza/pkg/filesystemlayer"
)

// SegmentInfo 一个已经写完或者正在写的segment文件
type SegmentInfo struct {
	Id         int    `json:"id"`
	Filename   string `json:"filename"` // 不包含目录
	Bytes      int64  `json:"bytes"`
	DurationMs int64  `json:"duration_ms"`
	Frames     uint64 `json:"frames"`
}

type segment struct {
	fp filesystemlayer.IFile
}

func (s *segment) OpenFile(fsl filesystemlayer.IFileSystemLayer, filename string) (err error) {
	s.fp, err = fsl.Create(filename)
	return
}

func (s *segment) WriteFile(b []byte) (err error) {
	_, err = s.fp.Write(b)
	return
}

func (s *segment) CloseFile() error {
	if s.fp == nil {
		return nil
	}
	err := s.fp.Close()
	s.fp = nil
	return err
}

func getSegmentFilenameWithoutPath(baseName string, id int) string {
	return fmt.Sprintf("%s-%d%s", baseName, id, segmentSuffix)
}

func getSegmentFilename(outPath, baseName string, id int) string {
	return filepath.Join(outPath, getSegmentFilenameWithoutPath(baseName, id))
}

func getPlaylistFilename(outPath, baseName string) string {
	return filepath.Join(outPath, baseName+playlistSuffix)
}

// SegmentFilename segment文件的完整路径
func SegmentFilename(outPath string, s SegmentInfo) string {
	return filepath.Join(outPath, s.Filename)
}
