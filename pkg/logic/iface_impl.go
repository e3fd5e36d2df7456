// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"github.com/q191201771/dtvrec/pkg/recorder"
	"github.com/q191201771/dtvrec/pkg/source"
)

var (
	_ recorder.IRecorderObserver = &Session{}
	_ recorder.ISink             = &segmentSink{}

	_ source.ISource = &source.ReaderSource{}
	_ source.ISource = &source.FileSource{}
)
