// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package base 提供被其他多个package依赖的基础内容，自身不依赖工程内的其他package
package base

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/q191201771/naza/pkg/bininfo"
)

var startTime string

var readableTimeLayout = "2006-01-02 15:04:05.999 Z0700 MST"

// ReadableNowTime 当前时间，可读字符串形式
func ReadableNowTime() string {
	return time.Now().Format(readableTimeLayout)
}

func ReadableTime(t time.Time) string {
	return t.Format(readableTimeLayout)
}

func ParseReadableTime(t string) (time.Time, error) {
	return time.Parse(readableTimeLayout, t)
}

func GetWd() string {
	dir, _ := os.Getwd()
	return dir
}

func LogoutStartInfo() {
	Log.Infof("     start: %s", startTime)
	Log.Infof("        wd: %s", GetWd())
	Log.Infof("      args: %s", strings.Join(os.Args, " "))
	Log.Infof("   bininfo: %s", bininfo.StringifySingleLine())
	Log.Infof("   version: %s", DtvrecFullInfo)
	Log.Infof("    github: %s", DtvrecGithubSite)
}

// WrapReadConfigFile 读取配置文件内容
//
// 命令行没有指定配置文件时，依次尝试 defaultConfigFiles，都不存在则退出进程
//
func WrapReadConfigFile(theConfigFile string, defaultConfigFiles []string, hookBeforeExit func()) []byte {
	if theConfigFile == "" {
		Log.Warnf("config file did not specify in the command line, try to load it in the usual path.")
		for _, dcf := range defaultConfigFiles {
			fi, err := os.Stat(dcf)
			if err == nil && fi.Size() > 0 && !fi.IsDir() {
				Log.Warnf("%s exist. using it as config file.", dcf)
				theConfigFile = dcf
				break
			} else {
				Log.Warnf("%s not exist.", dcf)
			}
		}

		if theConfigFile == "" {
			flag.Usage()
			if hookBeforeExit != nil {
				hookBeforeExit()
			}
			OsExitAndWaitPressIfWindows(1)
		}
	}

	rawContent, err := os.ReadFile(theConfigFile)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "read conf file failed. file=%s err=%+v", theConfigFile, err)
		OsExitAndWaitPressIfWindows(1)
	}
	return rawContent
}

func OsExitAndWaitPressIfWindows(code int) {
	if runtime.GOOS == "windows" {
		_, _ = fmt.Fprintf(os.Stderr, "Press Enter to exit...")
		r := bufio.NewReader(os.Stdin)
		_, _ = r.ReadByte()
	}
	os.Exit(code)
}

func init() {
	startTime = ReadableNowTime()
}
