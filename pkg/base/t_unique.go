// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/unique"

const (
	UkPreRecorder   = "RECORDER"
	UkPreRingBuffer = "RINGBUFFER"
	UkPreRecInfo    = "RECINFO"
	UkPreSource     = "SOURCE"
	UkPreSession    = "SESSION"
)

func GenUkRecorder() string {
	return siUkRecorder.GenUniqueKey()
}

func GenUkRingBuffer() string {
	return siUkRingBuffer.GenUniqueKey()
}

func GenUkRecInfo() string {
	return siUkRecInfo.GenUniqueKey()
}

func GenUkSource() string {
	return siUkSource.GenUniqueKey()
}

func GenUkSession() string {
	return siUkSession.GenUniqueKey()
}

var (
	siUkRecorder   *unique.SingleGenerator
	siUkRingBuffer *unique.SingleGenerator
	siUkRecInfo    *unique.SingleGenerator
	siUkSource     *unique.SingleGenerator
	siUkSession    *unique.SingleGenerator
)

func init() {
	siUkRecorder = unique.NewSingleGenerator(UkPreRecorder)
	siUkRingBuffer = unique.NewSingleGenerator(UkPreRingBuffer)
	siUkRecInfo = unique.NewSingleGenerator(UkPreRecInfo)
	siUkSource = unique.NewSingleGenerator(UkPreSource)
	siUkSession = unique.NewSingleGenerator(UkPreSession)
}
