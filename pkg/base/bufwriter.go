// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

// 调用方场景/约定描述：
// - 内部实际写总是全量写，写失败由 WriterFunc 的实现自行记录
// - 外部传入的内存块，调用结束后内部不再持有
//
// 与bufio.Writer表现不同的地方：
// 数据超过缓存容量时，bufio.Writer一般会切分成多个缓存容量大小的块实际写，BufWriter则可能实际写大数据

type IBufWriter interface {
	Write(p []byte)
	Flush()

	// Buffered 当前缓存中还未实际写出的字节数
	Buffered() int
}

type WriterFunc func(p []byte)

// NewWriterFuncSize
//
// @param size: 缓存大小，小于等于0时不做缓存，每次Write都直接实际写
//
func NewWriterFuncSize(wr WriterFunc, size int) IBufWriter {
	if size <= 0 {
		return &directWriter{
			wr: wr,
		}
	}

	b := &bufWriter{
		wr:          wr,
		defaultSize: size,
	}
	b.mallocOnePiece(size)
	return b
}

type bufWriter struct {
	wr          WriterFunc
	defaultSize int
	buf         []byte
	n           int
}

type directWriter struct {
	wr WriterFunc
}

func (b *bufWriter) Write(p []byte) {
	avail := b.available()
	if len(p) <= avail {
		b.append(p)
		return
	}

	if b.n == 0 {
		// 空缓存也放不下，直接写
		b.wr(p)
		return
	}

	// 先填满当前缓存块并写出
	b.append(p[:avail])
	b.Flush()

	remain := p[avail:]
	if len(remain) < b.defaultSize {
		b.append(remain)
	} else {
		b.wr(remain)
	}
}

func (b *bufWriter) Flush() {
	if b.n == 0 {
		return
	}
	// 实际写的实现可能继续持有这块内存，所以重新申请
	b.wr(b.buf[:b.n])
	b.mallocOnePiece(b.defaultSize)
}

func (b *bufWriter) Buffered() int {
	return b.n
}

func (b *bufWriter) available() int {
	return len(b.buf) - b.n
}

func (b *bufWriter) mallocOnePiece(size int) {
	b.buf = make([]byte, size)
	b.n = 0
}

func (b *bufWriter) append(p []byte) {
	copy(b.buf[b.n:], p)
	b.n += len(p)
}

func (dw *directWriter) Write(p []byte) {
	dw.wr(p)
}

func (dw *directWriter) Flush() {
	// noop
}

func (dw *directWriter) Buffered() int {
	return 0
}
