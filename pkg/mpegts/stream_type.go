// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

// stream_type
//
// <iso13818-1.pdf> <Table 2-29 – Stream type assignments> <page 66/174>
// 以及ATSC A/53, A/52, SCTE中的私有定义
//
const (
	StreamTypeMpeg1Video     uint8 = 0x01
	StreamTypeMpeg2Video     uint8 = 0x02
	StreamTypeMpeg1Audio     uint8 = 0x03
	StreamTypeMpeg2Audio     uint8 = 0x04
	StreamTypePrivateSection uint8 = 0x05
	StreamTypePrivateData    uint8 = 0x06
	StreamTypeDsmcc          uint8 = 0x0d
	StreamTypeAac            uint8 = 0x0f // ADTS
	StreamTypeMpeg4Video     uint8 = 0x10
	StreamTypeAacLatm        uint8 = 0x11
	StreamTypeH264           uint8 = 0x1b
	StreamTypeH265           uint8 = 0x24
	StreamTypeOpenCableVideo uint8 = 0x80 // DigiCipher II, 实际为mpeg2 video
	StreamTypeAc3            uint8 = 0x81
	StreamTypeScte35         uint8 = 0x86
	StreamTypeEac3           uint8 = 0x87
	StreamTypeDts            uint8 = 0x8a
	StreamTypeVc1            uint8 = 0xea
)

type VideoCodec string

const (
	VideoCodecNone  VideoCodec = ""
	VideoCodecMpeg1 VideoCodec = "MPEG1"
	VideoCodecMpeg2 VideoCodec = "MPEG2"
	VideoCodecMpeg4 VideoCodec = "MPEG4"
	VideoCodecH264  VideoCodec = "H264"
	VideoCodecH265  VideoCodec = "H265"
	VideoCodecVc1   VideoCodec = "VC1"
)

type AudioCodec string

const (
	AudioCodecNone    AudioCodec = ""
	AudioCodecMp2     AudioCodec = "MP2"
	AudioCodecAac     AudioCodec = "AAC"
	AudioCodecAacLatm AudioCodec = "AAC_LATM"
	AudioCodecAc3     AudioCodec = "AC3"
	AudioCodecEac3    AudioCodec = "EAC3"
	AudioCodecDts     AudioCodec = "DTS"
)

var videoStreamType2Codec = map[uint8]VideoCodec{
	StreamTypeMpeg1Video:     VideoCodecMpeg1,
	StreamTypeMpeg2Video:     VideoCodecMpeg2,
	StreamTypeMpeg4Video:     VideoCodecMpeg4,
	StreamTypeH264:           VideoCodecH264,
	StreamTypeH265:           VideoCodecH265,
	StreamTypeOpenCableVideo: VideoCodecMpeg2,
	StreamTypeVc1:            VideoCodecVc1,
}

var audioStreamType2Codec = map[uint8]AudioCodec{
	StreamTypeMpeg1Audio: AudioCodecMp2,
	StreamTypeMpeg2Audio: AudioCodecMp2,
	StreamTypeAac:        AudioCodecAac,
	StreamTypeAacLatm:    AudioCodecAacLatm,
	StreamTypeAc3:        AudioCodecAc3,
	StreamTypeEac3:       AudioCodecEac3,
	StreamTypeDts:        AudioCodecDts,
}

func IsVideoStreamType(st uint8) bool {
	_, ok := videoStreamType2Codec[st]
	return ok
}

func IsAudioStreamType(st uint8) bool {
	_, ok := audioStreamType2Codec[st]
	return ok
}

func StreamType2VideoCodec(st uint8) VideoCodec {
	return videoStreamType2Codec[st]
}

func StreamType2AudioCodec(st uint8) AudioCodec {
	return audioStreamType2Codec[st]
}

func StreamTypeReadable(st uint8) string {
	if c, ok := videoStreamType2Codec[st]; ok {
		return string(c)
	}
	if c, ok := audioStreamType2Codec[st]; ok {
		return string(c)
	}
	switch st {
	case StreamTypePrivateSection:
		return "PRIVSEC"
	case StreamTypePrivateData:
		return "PRIVDATA"
	case StreamTypeDsmcc:
		return "DSMCC"
	case StreamTypeScte35:
		return "SCTE35"
	}
	return "unknown"
}
