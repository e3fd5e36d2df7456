// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import "github.com/q191201771/naza/pkg/nazalog"

var Log = nazalog.GetGlobalLogger()

const (
	syncByte uint8 = 0x47

	// PacketSize 一个TS packet的固定大小
	PacketSize = 188
)

const (
	PidPat  uint16 = 0x0
	PidCat  uint16 = 0x1
	PidNull uint16 = 0x1FFF

	// PidMax pid共13位
	PidMax uint16 = 0x1FFF
)

// PES stream_id
//
// <iso13818-1.pdf> <Table 2-18 – Stream_id assignments> <page 52/174>
//
const (
	StreamIdProgramStreamMap uint8 = 0xbc
	StreamIdPrivateStream1   uint8 = 0xbd
	StreamIdPadding          uint8 = 0xbe
	StreamIdPrivateStream2   uint8 = 0xbf
	StreamIdAudio            uint8 = 0xc0 // 0xc0 ~ 0xdf
	StreamIdAudioLast        uint8 = 0xdf
	StreamIdVideo            uint8 = 0xe0 // 0xe0 ~ 0xef
	StreamIdVideoLast        uint8 = 0xef
	StreamIdEcm              uint8 = 0xf0
	StreamIdEmm              uint8 = 0xf1
	StreamIdProgramStreamDir uint8 = 0xff
)

// program stream中的start code，即 00 00 01 后面的一个字节
const (
	PsStartCodePack         uint8 = 0xba
	PsStartCodeSystemHeader uint8 = 0xbb
	PsStartCodeEnd          uint8 = 0xb9
)

func IsVideoStreamId(sid uint8) bool {
	return sid >= StreamIdVideo && sid <= StreamIdVideoLast
}

func IsAudioStreamId(sid uint8) bool {
	return sid >= StreamIdAudio && sid <= StreamIdAudioLast
}

// HasPesOptionalHeader 这些stream_id的PES没有 '10' 开头的可选头部
func HasPesOptionalHeader(sid uint8) bool {
	switch sid {
	case StreamIdProgramStreamMap, StreamIdPadding, StreamIdPrivateStream2,
		StreamIdEcm, StreamIdEmm, StreamIdProgramStreamDir:
		return false
	}
	return true
}
