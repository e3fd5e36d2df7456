// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package innertest

import (
	"github.com/q191201771/dtvrec/pkg/recinfo"
	"github.com/q191201771/dtvrec/pkg/recorder"
	"github.com/q191201771/dtvrec/pkg/ringbuffer"
	"github.com/q191201771/dtvrec/pkg/source"
)

// 数据流向：
//
// source.ISource -> recorder.Recorder -> recorder.ISink(ringbuffer.RingBuffer)
//                                     -> recorder.IRecordingInfo(recinfo.Markup)
//                                     -> recorder.IRecorderObserver(logic.Session)
//

var _ recorder.ISink = &ringbuffer.RingBuffer{}
var _ recorder.IRecordingInfo = &recinfo.Markup{}

var _ source.ISource = &source.ReaderSource{}
var _ source.ISource = &source.FileSource{}
