// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"fmt"

	"github.com/q191201771/naza/pkg/nazalog"
)

// LogDump 控制高频日志的输出次数
//
// 日志级别为trace时，每次都输出；日志级别为debug时，最多输出 debugMaxNum 次；其他级别不输出。
// 主要用于打印异常TS packet的hex内容。
//
type LogDump struct {
	log         nazalog.Logger
	debugMaxNum int

	debugCount int
}

func NewLogDump(log nazalog.Logger, debugMaxNum int) LogDump {
	return LogDump{
		log:         log,
		debugMaxNum: debugMaxNum,
	}
}

func (ld *LogDump) ShouldDump() bool {
	switch ld.log.GetOption().Level {
	case nazalog.LevelTrace:
		return true
	case nazalog.LevelDebug:
		if ld.debugCount >= ld.debugMaxNum {
			return false
		}
		ld.debugCount++
		return true
	}
	return false
}

// Outf
//
// 先调用 ShouldDump 判断，避免构造实参的开销，比如 ld.Outf("hex=%s", hex.Dump(buf))
//
func (ld *LogDump) Outf(format string, v ...interface{}) {
	ld.log.Out(ld.log.GetOption().Level, 3, fmt.Sprintf(format, v...))
}

// Reset 重新开始计数，比如录制切换到新文件时
func (ld *LogDump) Reset() {
	ld.debugCount = 0
}
