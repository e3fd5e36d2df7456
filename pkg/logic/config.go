// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/dtvrec/pkg/recorder"
	"github.com/q191201771/dtvrec/pkg/ringbuffer"
	"github.com/q191201771/naza/pkg/nazajson"
	"github.com/q191201771/naza/pkg/nazalog"
)

const (
	SourceTypeFile   = "file"
	SourceTypePsFile = "ps_file"
	SourceTypeSrt    = "srt"

	SrtModeListener = "listener"
	SrtModeCaller   = "caller"
)

type Config struct {
	ConfVersion      string                      `json:"conf_version"`
	SourceConfig     SourceConfig                `json:"source"`
	RecorderConfig   recorder.RecorderOption     `json:"recorder"`
	RingBufferConfig ringbuffer.RingBufferOption `json:"ring_buffer"`
	RecInfoConfig    RecInfoConfig               `json:"rec_info"`
	ProbeAfterFinish bool                        `json:"probe_after_finish"`

	LogConfig nazalog.Option `json:"log"`
}

type SourceConfig struct {
	Type     string `json:"type"`
	Filename string `json:"filename"`

	SrtHost      string `json:"srt_host"`
	SrtPort      uint16 `json:"srt_port"`
	SrtMode      string `json:"srt_mode"`
	SrtLatencyMs int    `json:"srt_latency_ms"`
}

type RecInfoConfig struct {
	SavePositionMapIntervalMs int `json:"save_position_map_interval_ms"`
}

// DefaultConfFilenameList 命令行没有指定配置文件时依次尝试的路径
var DefaultConfFilenameList = []string{
	"dtvrec.conf.json",
	"conf/dtvrec.conf.json",
	"../dtvrec.conf.json",
	"../conf/dtvrec.conf.json",
}

// LoadConfAndInitLog 解析配置文件内容并初始化日志
func LoadConfAndInitLog(rawContent []byte) (*Config, error) {
	config, err := parseConf(rawContent)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "parse conf file failed. raw content=%s err=%+v", rawContent, err)
		return nil, err
	}

	// 初始化日志，注意，这一步尽量提前，使得后续的日志内容按我们的日志配置输出
	if err = nazalog.Init(func(option *nazalog.Option) {
		*option = config.LogConfig
	}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "initial log failed. err=%+v\n", err)
		return nil, err
	}
	Log.Info("initial log succ.")

	if config.ConfVersion != base.ConfVersion {
		Log.Warnf("config version invalid. conf version of dtvrec=%s, conf version of config file=%s",
			base.ConfVersion, config.ConfVersion)
	}

	// 打印配置文件中的元素
	Log.Infof("load conf succ. raw content=%s parsed=%+v", rawContent, config)
	return config, nil
}

// parseConf 配置文件中没有的字段使用默认值
func parseConf(rawContent []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(rawContent, &config); err != nil {
		return nil, err
	}

	j, err := nazajson.New(rawContent)
	if err != nil {
		return nil, err
	}

	if !j.Exist("source.type") {
		config.SourceConfig.Type = SourceTypeFile
	}
	if !j.Exist("source.srt_host") {
		config.SourceConfig.SrtHost = "0.0.0.0"
	}
	if !j.Exist("source.srt_port") {
		config.SourceConfig.SrtPort = 6001
	}
	if !j.Exist("source.srt_mode") {
		config.SourceConfig.SrtMode = SrtModeListener
	}
	if !j.Exist("source.srt_latency_ms") {
		config.SourceConfig.SrtLatencyMs = 120
	}
	switch config.SourceConfig.Type {
	case SourceTypeFile, SourceTypePsFile, SourceTypeSrt:
	default:
		return nil, fmt.Errorf("%w. type=%s", base.ErrLogicUnknownSourceType, config.SourceConfig.Type)
	}

	if !j.Exist("recorder.desired_program") {
		config.RecorderConfig.DesiredProgram = -1
	}
	if !j.Exist("recorder.wait_for_keyframe") {
		config.RecorderConfig.WaitForKeyframe = true
	}
	if !j.Exist("recorder.minimum_recording_quality") {
		config.RecorderConfig.MinimumRecordingQuality = 95
	}

	if !j.Exist("ring_buffer.out_path") {
		config.RingBufferConfig.OutPath = "./rec/"
	}
	if !j.Exist("ring_buffer.base_name") {
		config.RingBufferConfig.BaseName = "live"
	}
	if !j.Exist("ring_buffer.segment_max_bytes") {
		config.RingBufferConfig.SegmentMaxBytes = 512 * 1024 * 1024
	}
	if !j.Exist("ring_buffer.write_buf_size") {
		config.RingBufferConfig.WriteBufSize = base.RingBufferWriteBufSize
	}

	if !j.Exist("rec_info.save_position_map_interval_ms") {
		config.RecInfoConfig.SavePositionMapIntervalMs = base.RecorderSavePositionMapIntervalMs
	}

	if !j.Exist("log.level") {
		config.LogConfig.Level = nazalog.LevelDebug
	}
	if !j.Exist("log.filename") {
		config.LogConfig.Filename = "./logs/dtvrec.log"
	}
	if !j.Exist("log.is_to_stdout") {
		config.LogConfig.IsToStdout = true
	}
	if !j.Exist("log.is_rotate_daily") {
		config.LogConfig.IsRotateDaily = true
	}
	if !j.Exist("log.short_file_flag") {
		config.LogConfig.ShortFileFlag = true
	}

	return &config, nil
}
