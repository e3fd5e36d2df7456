// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package source

import (
	"bytes"
	"io"

	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/dtvrec/pkg/mpegts"
)

// TsReader 从字节流中切分出188字节的TS packet
//
// 没有同步时，只有连续两个位置都是0x47才认为重新同步。
// 流末尾不足一个packet的数据丢弃。
//
type TsReader struct {
	r   io.Reader
	err error // 底层读的错误，缓存中的数据消费完后返回

	buf        []byte
	start, end int

	synced   bool
	offset   int64 // buf[start] 在整个流中的位置
	lostSync int
	skipped  int64
}

func NewTsReader(r io.Reader) *TsReader {
	return &TsReader{
		r:   r,
		buf: make([]byte, readBufSize),
	}
}

// ReadPacket
//
// @return pkt: 内存块在下一次调用前有效
//
func (tr *TsReader) ReadPacket() (pkt []byte, err error) {
	for {
		if err = tr.fill(mpegts.PacketSize); err != nil {
			if tr.end > tr.start {
				Log.Warnf("drop tail bytes. offset=%d, len=%d", tr.offset, tr.end-tr.start)
				tr.skip(tr.end - tr.start)
			}
			return nil, err
		}

		if tr.buf[tr.start] == syncByte {
			if !tr.synced {
				// 流结束时没有下一个packet可以检查，直接认为同步
				if tr.fill(2*mpegts.PacketSize) == nil && tr.buf[tr.start+mpegts.PacketSize] != syncByte {
					tr.skip(1)
					continue
				}
				if tr.offset != 0 {
					Log.Infof("resync. offset=%d", tr.offset)
				}
				tr.synced = true
			}
			pkt = tr.buf[tr.start : tr.start+mpegts.PacketSize]
			tr.start += mpegts.PacketSize
			tr.offset += mpegts.PacketSize
			return pkt, nil
		}

		if tr.synced {
			Log.Warnf("%+v", base.NewErrSourceLostSync(tr.offset))
			tr.synced = false
			tr.lostSync++
		}
		idx := bytes.IndexByte(tr.buf[tr.start+1:tr.end], syncByte)
		if idx < 0 {
			tr.skip(tr.end - tr.start)
		} else {
			tr.skip(idx + 1)
		}
	}
}

// LostSync 失去同步的次数
func (tr *TsReader) LostSync() int {
	return tr.lostSync
}

// Skipped 重新同步时丢弃的字节数
func (tr *TsReader) Skipped() int64 {
	return tr.skipped
}

// ----- private -------------------------------------------------------------------------------------------------------

func (tr *TsReader) skip(n int) {
	tr.start += n
	tr.offset += int64(n)
	tr.skipped += int64(n)
}

// fill 保证缓存中至少有n个字节
func (tr *TsReader) fill(n int) error {
	if tr.end-tr.start >= n {
		return nil
	}
	if tr.start > 0 {
		copy(tr.buf, tr.buf[tr.start:tr.end])
		tr.end -= tr.start
		tr.start = 0
	}
	for tr.end < n {
		if tr.err != nil {
			return tr.err
		}
		m, err := tr.r.Read(tr.buf[tr.end:])
		tr.end += m
		if err != nil {
			tr.err = err
		}
	}
	return nil
}
