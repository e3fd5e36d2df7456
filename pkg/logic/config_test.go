// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"io/ioutil"
	"testing"

	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/naza/pkg/assert"
)

func TestParseConfDefault(t *testing.T) {
	config, err := parseConf([]byte(`{}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, SourceTypeFile, config.SourceConfig.Type)
	assert.Equal(t, SrtModeListener, config.SourceConfig.SrtMode)
	assert.Equal(t, uint16(6001), config.SourceConfig.SrtPort)
	assert.Equal(t, -1, config.RecorderConfig.DesiredProgram)
	assert.Equal(t, true, config.RecorderConfig.WaitForKeyframe)
	assert.Equal(t, float64(95), config.RecorderConfig.MinimumRecordingQuality)
	assert.Equal(t, "./rec/", config.RingBufferConfig.OutPath)
	assert.Equal(t, int64(512*1024*1024), config.RingBufferConfig.SegmentMaxBytes)
	assert.Equal(t, base.RecorderSavePositionMapIntervalMs, config.RecInfoConfig.SavePositionMapIntervalMs)
	assert.Equal(t, true, config.LogConfig.IsToStdout)
}

func TestParseConf(t *testing.T) {
	config, err := parseConf([]byte(`{
  "source": {"type": "ps_file", "filename": "a.ps"},
  "recorder": {"desired_program": 3, "wait_for_keyframe": false},
  "ring_buffer": {"segment_max_bytes": 0, "max_segments": 4}
}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, SourceTypePsFile, config.SourceConfig.Type)
	assert.Equal(t, "a.ps", config.SourceConfig.Filename)
	assert.Equal(t, 3, config.RecorderConfig.DesiredProgram)
	assert.Equal(t, false, config.RecorderConfig.WaitForKeyframe)
	assert.Equal(t, int64(0), config.RingBufferConfig.SegmentMaxBytes)
	assert.Equal(t, 4, config.RingBufferConfig.MaxSegments)
	assert.Equal(t, "live", config.RingBufferConfig.BaseName)

	_, err = parseConf([]byte(`{"source": {"type": "udp"}}`))
	assert.IsNotNil(t, err)

	_, err = parseConf([]byte(`{`))
	assert.IsNotNil(t, err)
}

func TestParseConfFile(t *testing.T) {
	rawContent, err := ioutil.ReadFile("../../conf/dtvrec.conf.json")
	assert.Equal(t, nil, err)
	config, err := parseConf(rawContent)
	assert.Equal(t, nil, err)
	assert.Equal(t, base.ConfVersion, config.ConfVersion)
	assert.Equal(t, true, config.ProbeAfterFinish)
	assert.Equal(t, base.RingBufferWriteBufSize, config.RingBufferConfig.WriteBufSize)
}
