// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/q191201771/dtvrec/pkg/probe"
	"github.com/q191201771/dtvrec/pkg/recinfo"
	"github.com/q191201771/dtvrec/pkg/ringbuffer"
	"github.com/q191201771/naza/pkg/nazalog"
)

// 检查录制结果
//
// - 输入ts文件时，使用独立的demuxer解析并打印节目以及各流的统计
// - 输入m3u8文件时，打印所有segment的总时长
// - 输入json文件时，打印markup中的元信息
//

func main() {
	filename, asJson := parseFlag()

	switch {
	case strings.HasSuffix(filename, ".m3u8"):
		content, err := ioutil.ReadFile(filename)
		nazalog.Assert(nil, err)
		duration, err := ringbuffer.CalcM3u8Duration(content)
		nazalog.Assert(nil, err)
		fmt.Printf("%s duration=%.3fs\n", filename, duration)
	case strings.HasSuffix(filename, ".json"):
		content, err := ioutil.ReadFile(filename)
		nazalog.Assert(nil, err)
		data, err := recinfo.LoadMarkup(content)
		nazalog.Assert(nil, err)
		fmt.Printf("recording=%s, status=%s, duration=%dms, frames=%d, keyframes=%d, gaps=%d\n",
			data.RecordingFilename, data.Status, data.DurationMs, data.TotalFrames, len(data.GopByFrame), len(data.Gaps))
		fmt.Printf("video=%s %dx%d %s fps=%.3f, audio=%s\n",
			data.VideoCodec, data.Width, data.Height, data.Aspect, float64(data.FrameRate)/1000, data.AudioCodec)
	default:
		report, err := probe.ProbeFile(context.Background(), filename)
		nazalog.Assert(nil, err)
		if asJson {
			b, err := json.MarshalIndent(report, "", "  ")
			nazalog.Assert(nil, err)
			fmt.Println(string(b))
			return
		}
		fmt.Print(report.String())
	}
}

func parseFlag() (string, bool) {
	i := flag.String("i", "", "specify ts, m3u8 or markup json file")
	j := flag.Bool("j", false, "output ts report as json")
	flag.Parse()
	if *i == "" {
		flag.Usage()
		_, _ = fmt.Fprintf(os.Stderr, `Example:
  %s -i ./rec/live-0.ts
  %s -i ./rec/live.m3u8
  %s -i ./rec/live-0.ts.json
`, os.Args[0], os.Args[0], os.Args[0])
		os.Exit(1)
	}
	return *i, *j
}
