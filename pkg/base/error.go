// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"errors"
	"fmt"
)

// ----- common --------------------------------------------------------------------------------------------------------

var (
	ErrShortBuffer  = errors.New("dtvrec: buffer too short")
	ErrFileNotExist = errors.New("dtvrec: file not exist")
)

func NewErrShortBuffer(need, actual int, msg string) error {
	return fmt.Errorf("%w. need=%d, actual=%d, msg=%s", ErrShortBuffer, need, actual, msg)
}

// ----- pkg/mpegts ----------------------------------------------------------------------------------------------------

var (
	ErrMpegts          = errors.New("dtvrec.mpegts: fxxk")
	ErrMpegtsSync      = errors.New("dtvrec.mpegts: sync byte mismatch")
	ErrMpegtsCrc       = errors.New("dtvrec.mpegts: crc32 mismatch")
	ErrMpegtsTableId   = errors.New("dtvrec.mpegts: unexpected table id")
	ErrMpegtsNotPes    = errors.New("dtvrec.mpegts: packet start code prefix not found")
	ErrMpegtsSection   = errors.New("dtvrec.mpegts: invalid section")
	ErrMpegtsNoPayload = errors.New("dtvrec.mpegts: packet has no payload")
)

func NewErrMpegtsCrc(expected, actual uint32) error {
	return fmt.Errorf("%w. expected=0x%08x, actual=0x%08x", ErrMpegtsCrc, expected, actual)
}

func NewErrMpegtsTableId(expected, actual uint8) error {
	return fmt.Errorf("%w. expected=%d, actual=%d", ErrMpegtsTableId, expected, actual)
}

// ----- pkg/avc -------------------------------------------------------------------------------------------------------

var ErrAvc = errors.New("dtvrec.avc: fxxk")

// ----- pkg/hevc ------------------------------------------------------------------------------------------------------

var ErrHevc = errors.New("dtvrec.hevc: fxxk")

// ----- pkg/recorder --------------------------------------------------------------------------------------------------

var (
	ErrRecorder         = errors.New("dtvrec.recorder: fxxk")
	ErrRecorderDisposed = errors.New("dtvrec.recorder: recorder already disposed")
)

// ----- pkg/ringbuffer ------------------------------------------------------------------------------------------------

var (
	ErrRingBuffer       = errors.New("dtvrec.ringbuffer: fxxk")
	ErrRingBufferClosed = errors.New("dtvrec.ringbuffer: segment not opened")
)

// ----- pkg/recinfo ---------------------------------------------------------------------------------------------------

var ErrRecInfo = errors.New("dtvrec.recinfo: fxxk")

// ----- pkg/source ----------------------------------------------------------------------------------------------------

var (
	ErrSource         = errors.New("dtvrec.source: fxxk")
	ErrSourceLostSync = errors.New("dtvrec.source: lost sync")
)

func NewErrSourceLostSync(offset int64) error {
	return fmt.Errorf("%w. offset=%d", ErrSourceLostSync, offset)
}

// ----- pkg/probe -----------------------------------------------------------------------------------------------------

var ErrProbe = errors.New("dtvrec.probe: fxxk")

// ----- pkg/logic -----------------------------------------------------------------------------------------------------

var (
	ErrLogic                  = errors.New("dtvrec.logic: fxxk")
	ErrLogicUnknownSourceType = errors.New("dtvrec.logic: unknown source type")
)

// ---------------------------------------------------------------------------------------------------------------------
