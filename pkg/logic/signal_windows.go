// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

//go:build windows
// +build windows

package logic

import (
	"context"
	"os"
	"os/signal"
)

// runSignalHandler windows下只处理中断信号，没有手动切换segment的信号
func runSignalHandler(ctx context.Context, cb func(), onSwitch func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	defer signal.Stop(c)
	select {
	case <-ctx.Done():
	case s := <-c:
		Log.Infof("recv signal. s=%+v", s)
		cb()
	}
}
