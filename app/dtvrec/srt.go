// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

// #cgo LDFLAGS: -lsrt
// #include <srt/srt.h>
import "C"
import (
	"errors"
	"io"
	"strconv"

	"github.com/haivision/srtgo"
	"github.com/q191201771/dtvrec/pkg/logic"
	"github.com/q191201771/dtvrec/pkg/source"
	"github.com/q191201771/naza/pkg/nazalog"
)

// srtConn 连接断开时Read返回io.EOF，使得录制正常结束
type srtConn struct {
	*srtgo.SrtSocket
}

func (c *srtConn) Read(b []byte) (int, error) {
	n, err := c.SrtSocket.Read(b)
	if err != nil && errors.Is(err, srtgo.EConnLost) {
		nazalog.Infof("srt connection lost.")
		return n, io.EOF
	}
	return n, err
}

func (c *srtConn) Close() error {
	c.SrtSocket.Close()
	return nil
}

// newSrtSource listener模式下阻塞直到第一个连接进来，caller模式下阻塞直到连接成功
func newSrtSource(config logic.SourceConfig) (source.ISource, error) {
	options := make(map[string]string)
	options["transtype"] = "live"
	options["latency"] = strconv.Itoa(config.SrtLatencyMs)

	switch config.SrtMode {
	case logic.SrtModeCaller:
		options["mode"] = "caller"
		sck := srtgo.NewSrtSocket(config.SrtHost, config.SrtPort, options)
		if err := sck.Connect(); err != nil {
			sck.Close()
			return nil, err
		}
		nazalog.Infof("srt connected. addr=%s:%d", config.SrtHost, config.SrtPort)
		return source.NewReaderSource(&srtConn{sck}), nil
	default:
		options["mode"] = "listener"
		sck := srtgo.NewSrtSocket(config.SrtHost, config.SrtPort, options)
		if err := sck.Listen(1); err != nil {
			sck.Close()
			return nil, err
		}
		nazalog.Infof("srt listen. addr=%s:%d", config.SrtHost, config.SrtPort)
		socket, addr, err := sck.Accept()
		sck.Close()
		if err != nil {
			return nil, err
		}
		nazalog.Infof("srt accept. remote=%s", addr.String())
		return source.NewReaderSource(&srtConn{socket}), nil
	}
}
