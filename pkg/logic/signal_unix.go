// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

//go:build linux || darwin || netbsd || freebsd || openbsd || dragonfly
// +build linux darwin netbsd freebsd openbsd dragonfly

package logic

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// runSignalHandler 收到SIGINT或SIGTERM时调用cb，收到SIGUSR1时调用onSwitch
func runSignalHandler(ctx context.Context, cb func(), onSwitch func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(c)
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-c:
			Log.Infof("recv signal. s=%+v", s)
			if s == syscall.SIGUSR1 {
				onSwitch()
				continue
			}
			cb()
			return
		}
	}
}
