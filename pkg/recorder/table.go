// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package recorder

import (
	"github.com/q191201771/dtvrec/pkg/h2645"
	"github.com/q191201771/dtvrec/pkg/mpegts"
)

// streamKind pid的分类
type streamKind uint8

const (
	streamKindUnclassified streamKind = iota
	streamKindVideoMpeg2
	streamKindVideoH264
	streamKindVideoH265
	streamKindAudio
	streamKindPcr // 只携带PCR，不是任何一路es
	streamKindOther
)

func (k streamKind) String() string {
	switch k {
	case streamKindUnclassified:
		return "unclassified"
	case streamKindVideoMpeg2:
		return "video-mpeg2"
	case streamKindVideoH264:
		return "video-h264"
	case streamKindVideoH265:
		return "video-h265"
	case streamKindAudio:
		return "audio"
	case streamKindPcr:
		return "pcr"
	case streamKindOther:
		return "other"
	}
	return "unknown"
}

// detectorKind 收到该pid的packet时使用哪种关键帧检测
type detectorKind uint8

const (
	detectorKindNone        detectorKind = iota // 非音视频，原样写出
	detectorKindPassthrough                     // 非主视频的视频流，不检测帧
	detectorKindMpeg2
	detectorKindH264
	detectorKindH265
	detectorKindAudio
)

type pidInfo struct {
	streamType uint8
	kind       streamKind
	detector   detectorKind
}

// onTableFn 在喂数据的协程中回调
//
// @param changed: 和上一次收到的表相比，版本号或CRC发生了变化
//
type (
	onPatFn func(pat *mpegts.Pat, changed bool)
	onPmtFn func(pid uint16, pmt *mpegts.Pmt, changed bool)
)

// tableTracker 组装PAT和PMT的section，解析后交给唯一的使用者
type tableTracker struct {
	uniqueKey  string
	onPat      onPatFn
	onPmt      onPmtFn
	assemblers map[uint16]*mpegts.SectionAssembler

	patCrc  uint32
	havePat bool
	pmtCrcs map[uint16]uint32
	pmts    map[uint16]mpegts.Pmt // 节目号 -> 最新的PMT
}

func newTableTracker(uk string, onPat onPatFn, onPmt onPmtFn) *tableTracker {
	t := &tableTracker{
		uniqueKey:  uk,
		onPat:      onPat,
		onPmt:      onPmt,
		assemblers: make(map[uint16]*mpegts.SectionAssembler),
		pmtCrcs:    make(map[uint16]uint32),
		pmts:       make(map[uint16]mpegts.Pmt),
	}
	t.AddListeningPid(mpegts.PidPat)
	return t
}

// AddListeningPid 监听一个PSI pid，重复添加无副作用
func (t *tableTracker) AddListeningPid(pid uint16) {
	if _, ok := t.assemblers[pid]; ok {
		return
	}
	Log.Debugf("[%s] add listening pid. pid=0x%x", t.uniqueKey, pid)
	t.assemblers[pid] = mpegts.NewSectionAssembler(pid, t.onSection)
}

func (t *tableTracker) IsListeningPid(pid uint16) bool {
	_, ok := t.assemblers[pid]
	return ok
}

// Feed
//
// @return 是否是正在监听的PSI pid
//
func (t *tableTracker) Feed(pkt mpegts.TsPacket) bool {
	a, ok := t.assemblers[pkt.Pid()]
	if !ok {
		return false
	}
	a.Feed(pkt)
	return true
}

// CachedPmt 其他节目的PMT也会缓存下来
func (t *tableTracker) CachedPmt(programNumber uint16) (mpegts.Pmt, bool) {
	pmt, ok := t.pmts[programNumber]
	return pmt, ok
}

// ResetAssemblers 丢弃未完成的section
func (t *tableTracker) ResetAssemblers() {
	for _, a := range t.assemblers {
		a.Reset()
	}
}

func (t *tableTracker) onSection(pid uint16, section []byte) {
	if len(section) == 0 {
		return
	}
	switch section[0] {
	case mpegts.TsPsiIdPas:
		if pid != mpegts.PidPat {
			return
		}
		pat, err := mpegts.ParsePat(section)
		if err != nil {
			Log.Warnf("[%s] parse pat failed. err=%+v", t.uniqueKey, err)
			return
		}
		if pat.CurrentNext == 0 {
			return
		}
		changed := !t.havePat || pat.Crc32 != t.patCrc
		t.havePat = true
		t.patCrc = pat.Crc32
		t.onPat(&pat, changed)
	case mpegts.TsPsiIdPms:
		pmt, err := mpegts.ParsePmt(section)
		if err != nil {
			Log.Warnf("[%s] parse pmt failed. pid=0x%x, err=%+v", t.uniqueKey, pid, err)
			return
		}
		if pmt.CurrentNext == 0 {
			return
		}
		prev, ok := t.pmtCrcs[pid]
		changed := !ok || prev != pmt.Crc32
		t.pmtCrcs[pid] = pmt.Crc32
		t.pmts[pmt.ProgramNumber] = pmt
		t.onPmt(pid, &pmt, changed)
	}
}

// ----- Recorder中处理节目表的部分 -------------------------------------------------------------------------------------

func (r *Recorder) onPat(pat *mpegts.Pat, changed bool) {
	if changed {
		r.handlePat(pat)
	}
	if !r.option.RecordMpts {
		r.emitSingleProgramPat()
	}
}

func (r *Recorder) onPmt(pid uint16, pmt *mpegts.Pmt, changed bool) {
	if r.desiredProgram < 0 || int(pmt.ProgramNumber) != r.desiredProgram || pid != r.pmtPid {
		// 其他节目的PMT只缓存，不处理
		return
	}
	// 该pid上的PMT可能在作为其他节目监听时就已经收到过
	if changed || r.inputPmt == nil {
		r.handlePmt(pmt)
	}
	r.handleSingleProgramPmt()
}

// handlePat 找到需要录制的节目的PMT pid
//
// 没有该节目时忽略这个PAT，保留之前的
//
func (r *Recorder) handlePat(pat *mpegts.Pat) {
	desired := r.desiredProgram
	if desired < 0 {
		for _, ppe := range pat.ProgramElements {
			if ppe.ProgramNumber != 0 {
				desired = int(ppe.ProgramNumber)
				break
			}
		}
	}
	if desired < 0 {
		Log.Warnf("[%s] ignore pat without any program. tsid=%d", r.uniqueKey, pat.TransportStreamId)
		return
	}
	pmtPid, ok := pat.SearchProgram(uint16(desired))
	if !ok {
		Log.Warnf("[%s] ignore pat not containing desired program. program=%d, tsid=%d",
			r.uniqueKey, desired, pat.TransportStreamId)
		return
	}

	Log.Infof("[%s] handle pat. program=%d, pmt pid=0x%x, version=%d, programs=%d",
		r.uniqueKey, desired, pmtPid, pat.VersionNumber, pat.ProgramCount())
	if r.desiredProgram < 0 {
		r.desiredProgram = desired
	}
	if pmtPid != r.pmtPid {
		r.pmtInserted = false
	}
	r.inputPat = pat
	r.pmtPid = pmtPid
	r.patInserted = false

	// 监听其他节目的PMT
	for _, ppe := range pat.ProgramElements {
		if ppe.ProgramNumber != 0 {
			r.tables.AddListeningPid(ppe.Pid)
		}
	}
}

// handlePmt 需要录制的节目的PMT发生了变化
func (r *Recorder) handlePmt(pmt *mpegts.Pmt) {
	hasNoAv := true
	for i := range pmt.ProgramElements {
		st := pmt.ProgramElements[i].NormalizedStreamType()
		if mpegts.IsVideoStreamType(st) || mpegts.IsAudioStreamType(st) {
			hasNoAv = false
			break
		}
	}
	Log.Infof("[%s] handle pmt. program=%d, version=%d, streams=%d, pcr pid=0x%x, hasNoAv=%t",
		r.uniqueKey, pmt.ProgramNumber, pmt.VersionNumber, len(pmt.ProgramElements), pmt.PcrPid, hasNoAv)

	r.inputPmt = pmt
	r.hasNoAv = hasNoAv
	r.pmtInserted = false
}

// handleSingleProgramPmt 确定主音视频编码，对pid分类，并写出重新打包的PMT
//
// 每次收到需要录制的节目的PMT时都会调用
//
func (r *Recorder) handleSingleProgramPmt() {
	pmt := r.inputPmt

	// 主音视频编码每次录制只确定一次
	if r.primaryVideoCodec == mpegts.VideoCodecNone {
		for i := range pmt.ProgramElements {
			st := pmt.ProgramElements[i].NormalizedStreamType()
			if !mpegts.IsVideoStreamType(st) {
				continue
			}
			r.primaryVideoCodec = mpegts.StreamType2VideoCodec(st)
			Log.Infof("[%s] primary video codec. codec=%s, pid=0x%x", r.uniqueKey, r.primaryVideoCodec, pmt.ProgramElements[i].Pid)
			r.observer.OnVideoCodecChange(r.primaryVideoCodec)
			break
		}
	}
	if r.primaryAudioCodec == mpegts.AudioCodecNone {
		var best uint8
		for i := range pmt.ProgramElements {
			st := pmt.ProgramElements[i].NormalizedStreamType()
			if mpegts.IsAudioStreamType(st) && st > best {
				best = st
			}
		}
		if best != 0 {
			r.primaryAudioCodec = mpegts.StreamType2AudioCodec(best)
			Log.Infof("[%s] primary audio codec. codec=%s", r.uniqueKey, r.primaryAudioCodec)
			r.observer.OnAudioCodecChange(r.primaryAudioCodec)
		}
	}

	r.classifyPids(pmt)

	if !r.option.RecordMpts {
		r.emitSingleProgramPmt()
	}
}

// classifyPids 根据PMT重建pid分类表
//
// 第一路视频流为主视频，使用关键帧检测，stream_type最大的音频流为主音频
//
func (r *Recorder) classifyPids(pmt *mpegts.Pmt) {
	infos := make(map[uint16]pidInfo, len(pmt.ProgramElements)+1)
	var videoPid, audioPid uint16
	var bestAudio uint8
	for i := range pmt.ProgramElements {
		ppe := &pmt.ProgramElements[i]
		st := ppe.NormalizedStreamType()
		info := pidInfo{streamType: st}
		switch {
		case mpegts.IsVideoStreamType(st):
			switch st {
			case mpegts.StreamTypeH264:
				info.kind = streamKindVideoH264
			case mpegts.StreamTypeH265:
				info.kind = streamKindVideoH265
			default:
				info.kind = streamKindVideoMpeg2
			}
			if videoPid == 0 {
				videoPid = ppe.Pid
				info.detector = videoDetector(info.kind)
			} else {
				info.detector = detectorKindPassthrough
			}
		case mpegts.IsAudioStreamType(st):
			info.kind = streamKindAudio
			info.detector = detectorKindAudio
			if st > bestAudio {
				bestAudio = st
				audioPid = ppe.Pid
			}
		default:
			info.kind = streamKindOther
			info.detector = detectorKindNone
		}
		infos[ppe.Pid] = info
	}

	// PCR不在任何一路es中时，保留PCR所在的pid
	if pmt.PcrPid != mpegts.PidNull {
		if _, ok := infos[pmt.PcrPid]; !ok {
			infos[pmt.PcrPid] = pidInfo{kind: streamKindPcr, detector: detectorKindNone}
		}
	}

	if videoPid != r.primaryVideoPid || audioPid != r.primaryAudioPid {
		Log.Infof("[%s] primary pid. video=0x%x, audio=0x%x", r.uniqueKey, videoPid, audioPid)
	}
	r.primaryVideoPid = videoPid
	r.primaryAudioPid = audioPid
	if videoPid != 0 {
		r.ensureAuParser(infos[videoPid].detector)
	}

	r.pidMutex.Lock()
	r.pidInfos = infos
	r.pidMutex.Unlock()
}

func (r *Recorder) lookupPid(pid uint16) (pidInfo, bool) {
	r.pidMutex.Lock()
	defer r.pidMutex.Unlock()
	info, ok := r.pidInfos[pid]
	return info, ok
}

// ensureAuParser h264和h265共用一个解析器，编码变化时重新创建
func (r *Recorder) ensureAuParser(d detectorKind) {
	var codec h2645.Codec
	switch d {
	case detectorKindH264:
		codec = h2645.CodecH264
	case detectorKindH265:
		codec = h2645.CodecH265
	default:
		return
	}
	if r.auParser != nil && r.auParser.Codec() == codec {
		return
	}
	r.auParser = h2645.NewAuParser(codec)
	r.pesSynced = false
}

func (r *Recorder) isSingleProgramTablePid(pid uint16) bool {
	return pid == mpegts.PidPat || (r.pmtPid != 0 && pid == r.pmtPid)
}

// emitSingleProgramPat 写出只包含需要录制的节目的PAT
//
// 某个版本第一次写出时插在缓存数据之前，之后重复的PAT正常排队
//
func (r *Recorder) emitSingleProgramPat() {
	if r.inputPat == nil || r.pmtPid == 0 {
		return
	}
	pat := mpegts.NewSingleProgramPat(r.inputPat.TransportStreamId, r.inputPat.VersionNumber, uint16(r.desiredProgram), r.pmtPid)
	b := mpegts.PackSectionToTsPackets(mpegts.PidPat, pat.Pack(), &r.patCc)
	insert := !r.patInserted
	r.patInserted = true
	r.writeTsPackets(b, insert)
}

func (r *Recorder) emitSingleProgramPmt() {
	if r.inputPmt == nil || r.pmtPid == 0 {
		return
	}
	b := mpegts.PackSectionToTsPackets(r.pmtPid, r.inputPmt.Pack(), &r.pmtCc)
	insert := !r.pmtInserted
	r.pmtInserted = true
	r.writeTsPackets(b, insert)
}

func (r *Recorder) writeTsPackets(b []byte, insert bool) {
	for i := 0; i+mpegts.PacketSize <= len(b); i += mpegts.PacketSize {
		r.bufferedWrite(b[i:i+mpegts.PacketSize], insert)
	}
}

func videoDetector(kind streamKind) detectorKind {
	switch kind {
	case streamKindVideoH264:
		return detectorKindH264
	case streamKindVideoH265:
		return detectorKindH265
	}
	return detectorKindMpeg2
}
