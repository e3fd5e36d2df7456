// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package source

import (
	"github.com/q191201771/dtvrec/pkg/mpegts"
	"github.com/q191201771/naza/pkg/nazalog"
)

var Log = nazalog.GetGlobalLogger()

const (
	syncByte = 0x47

	// 读缓存的大小，packet大小的整数倍
	readBufSize = mpegts.PacketSize * 64

	// ps流每次读取的大小
	psChunkSize = 64 * 1024
)
