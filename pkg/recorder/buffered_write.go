// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package recorder

// bufferedWrite 写出一个TS packet
//
// 还不能确定当前帧是否为关键帧时（bufferPackets为true），数据先缓存起来，确定之后先写缓存再写当前数据。
//
// @param insert: 为true时直接写出，排在缓存数据之前，用于PAT和PMT
//
func (r *Recorder) bufferedWrite(b []byte, insert bool) {
	if !insert {
		// 等待第一个关键帧
		if !r.bufferPackets && r.option.WaitForKeyframe && r.firstKeyframe < 0 {
			return
		}

		r.updateDataTime()

		if r.bufferPackets {
			r.payloadBuffer = append(r.payloadBuffer, b...)
			return
		}

		if len(r.payloadBuffer) > 0 {
			r.flushPayloadBuffer()
		}
	}
	r.writeToSink(b)
}

func (r *Recorder) flushPayloadBuffer() {
	if len(r.payloadBuffer) == 0 {
		return
	}
	r.writeToSink(r.payloadBuffer)
	r.payloadBuffer = r.payloadBuffer[:0]
}

// writeToSink 写失败时录制状态变为Failing，不重试
func (r *Recorder) writeToSink(b []byte) {
	n, err := r.sink.Write(b)
	if n > 0 {
		r.writeBytes.Add(uint64(n))
		r.writeBitrate.Add(n)
	}
	if err != nil {
		if r.getStatus() != RecordingStatusFailing {
			Log.Errorf("[%s] write failed, setting status to %s. err=%+v", r.uniqueKey, RecordingStatusFailing, err)
		}
		r.markFailing()
	}
}

func (r *Recorder) updateDataTime() {
	now := r.option.Clock.Now()
	r.statMutex.Lock()
	if r.timeOfFirstData.IsZero() {
		r.timeOfFirstData = now
	}
	r.timeOfLatestData = now
	r.statMutex.Unlock()
}

func (r *Recorder) markFailing() {
	r.setStatus(RecordingStatusFailing)
}

func (r *Recorder) getStatus() RecordingStatus {
	r.statMutex.Lock()
	defer r.statMutex.Unlock()
	return r.status
}

// setStatus 状态变化时通知 IRecordingInfo 和 IRecorderObserver
func (r *Recorder) setStatus(status RecordingStatus) {
	r.statMutex.Lock()
	if r.status == status {
		r.statMutex.Unlock()
		return
	}
	r.status = status
	r.statMutex.Unlock()

	Log.Infof("[%s] recording status change. status=%s", r.uniqueKey, status)
	r.info.SetRecordingStatus(status)
	r.observer.OnRecordingStatusChange(status)
}
