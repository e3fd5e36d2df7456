// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package ringbuffer

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/q191201771/naza/pkg/filesystemlayer"
)

// writeM3u8File 先写临时文件再改名，读playlist的一方不会读到写了一半的内容
//
// @param content     需写入文件的内容
// @param filename    m3u8文件名
// @param filenameBak m3u8临时文件名
//
func writeM3u8File(fsl filesystemlayer.IFileSystemLayer, content []byte, filename string, filenameBak string) error {
	if err := fsl.WriteFile(filenameBak, content, 0666); err != nil {
		return err
	}
	return fsl.Rename(filenameBak, filename)
}

// makePlaylist
//
// @param mediaSequence 第一个segment的id
// @param isLast        为true时写 #EXT-X-ENDLIST
//
func makePlaylist(segments []SegmentInfo, mediaSequence int, isLast bool) []byte {
	maxDuration := 1
	for _, s := range segments {
		d := int(math.Ceil(float64(s.DurationMs) / 1000))
		if d > maxDuration {
			maxDuration = d
		}
	}

	var buf bytes.Buffer
	buf.WriteString("#EXTM3U\n")
	buf.WriteString("#EXT-X-VERSION:3\n")
	buf.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", maxDuration))
	buf.WriteString(fmt.Sprintf("#EXT-X-MEDIA-SEQUENCE:%d\n\n", mediaSequence))
	for _, s := range segments {
		buf.WriteString(fmt.Sprintf("#EXTINF:%.3f,\n%s\n", float64(s.DurationMs)/1000, s.Filename))
	}
	if isLast {
		buf.WriteString("#EXT-X-ENDLIST\n")
	}
	return buf.Bytes()
}

// CalcM3u8Duration
//
// @param content 传入m3u8文件内容
//
// @return durationSec m3u8中所有segment的时间总和。注意，使用的是m3u8文件中描述的时长，而不是segment中实际音视频数据的时长。
//
func CalcM3u8Duration(content []byte) (durationSec float64, err error) {
	lines := bytes.Split(content, []byte{'\n'})
	for _, line := range lines {
		if bytes.HasPrefix(line, []byte("#EXTINF:")) {
			line = bytes.TrimSpace(line)
			v := bytes.TrimSuffix(bytes.TrimPrefix(line, []byte("#EXTINF:")), []byte{','})
			v = bytes.TrimSpace(v)
			vv, err := strconv.ParseFloat(string(v), 64)
			if err != nil {
				return durationSec, err
			}
			durationSec += vv
		}
	}
	return
}
