// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"bytes"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
)

func TestBufWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterFuncSize(func(p []byte) {
		_, _ = buf.Write(p)
	}, 4096)
	wb, _ := w.(*bufWriter)

	// 大块数据直接写
	w.Write(bytes.Repeat([]byte{0x1}, 5000))
	assert.Equal(t, 4096, wb.available())
	assert.Equal(t, 0, w.Buffered())
	assert.Equal(t, 5000, buf.Len())
	buf.Reset()

	w.Write(bytes.Repeat([]byte{0x2}, 188))
	w.Write(bytes.Repeat([]byte{0x3}, 188))
	assert.Equal(t, 376, w.Buffered())
	assert.Equal(t, 0, buf.Len())

	// 填满后写出，剩余部分继续缓存
	w.Write(bytes.Repeat([]byte{0x4}, 4096))
	assert.Equal(t, 376, w.Buffered())
	assert.Equal(t, 4096, buf.Len())
	assert.Equal(t, bytes.Repeat([]byte{0x2}, 188), buf.Bytes()[:188])
	assert.Equal(t, bytes.Repeat([]byte{0x4}, 4096-376), buf.Bytes()[376:])
	buf.Reset()

	w.Flush()
	assert.Equal(t, 0, w.Buffered())
	assert.Equal(t, bytes.Repeat([]byte{0x4}, 376), buf.Bytes())
	buf.Reset()

	w.Flush()
	assert.Equal(t, 0, buf.Len())
}

func TestDirectWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterFuncSize(func(p []byte) {
		_, _ = buf.Write(p)
	}, 0)
	w.Write([]byte{1, 2, 3})
	assert.Equal(t, 0, w.Buffered())
	assert.Equal(t, []byte{1, 2, 3}, buf.Bytes())
	w.Flush()
	assert.Equal(t, 3, buf.Len())
}

func TestFrameRate(t *testing.T) {
	fr := NewFrameRate(30000, 1001)
	assert.Equal(t, true, fr.IsValid())
	assert.Equal(t, uint32(29970), fr.Milli())
	assert.Equal(t, "30000/1001", fr.String())
	assert.Equal(t, false, FrameRateUnknown.IsValid())
	assert.Equal(t, uint32(0), FrameRateUnknown.Milli())
}

func TestCalcAspectRatio(t *testing.T) {
	assert.Equal(t, AspectRatio16x9, CalcAspectRatio(1920, 1080, 1, 1))
	assert.Equal(t, AspectRatio16x9, CalcAspectRatio(1440, 1080, 4, 3))
	assert.Equal(t, AspectRatio4x3, CalcAspectRatio(720, 480, 10, 11))
	assert.Equal(t, AspectRatio16x9, CalcAspectRatio(720, 576, 64, 45))
	assert.Equal(t, AspectRatioSquare, CalcAspectRatio(480, 480, 0, 0))
	assert.Equal(t, AspectRatioUnknown, CalcAspectRatio(0, 1080, 1, 1))
}
