// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"context"
	"fmt"

	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/dtvrec/pkg/source"
)

// Entry 进程级别的入口，持有一个录制session，并处理信号
//
// SIGINT、SIGTERM结束录制，SIGUSR1切换到新的segment
//
type Entry struct {
	config  *Config
	session *Session
	cancel  context.CancelFunc
}

func NewEntry(config *Config, src source.ISource) *Entry {
	base.LogoutStartInfo()
	return &Entry{
		config:  config,
		session: NewSession(config, src),
	}
}

// RunLoop 阻塞直到录制结束
func (e *Entry) RunLoop() error {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	defer cancel()

	go runSignalHandler(ctx, func() {
		_ = e.session.Dispose()
	}, e.session.RequestSwitch)

	err := e.session.RunLoop(ctx)
	Log.Infof("session loop done. err=%+v", err)
	return err
}

func (e *Entry) Session() *Session {
	return e.session
}

func (e *Entry) Dispose() {
	if e.cancel != nil {
		e.cancel()
	}
	_ = e.session.Dispose()
}

// NewSourceByConfig 创建文件类型的输入源
//
// srt输入依赖cgo，由应用层创建
//
func NewSourceByConfig(config SourceConfig) (source.ISource, error) {
	switch config.Type {
	case SourceTypeFile, SourceTypePsFile:
		return source.NewFileSource(config.Filename)
	}
	return nil, fmt.Errorf("%w. type=%s", base.ErrLogicUnknownSourceType, config.Type)
}
