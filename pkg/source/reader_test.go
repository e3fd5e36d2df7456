// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package source_test

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/q191201771/dtvrec/pkg/innertest"
	"github.com/q191201771/dtvrec/pkg/mpegts"
	"github.com/q191201771/dtvrec/pkg/source"
	"github.com/q191201771/naza/pkg/assert"
)

func makeStream(n int) []byte {
	b := innertest.NewTsStreamBuilder()
	for i := 0; i < n; i++ {
		b.WritePesNoPts(innertest.VideoPid, 0xe0, []byte{0x0, 0x0, 0x1, 0xb8})
	}
	return b.Bytes()
}

func readAll(t *testing.T, tr *source.TsReader) [][]byte {
	var out [][]byte
	for {
		pkt, err := tr.ReadPacket()
		if err != nil {
			assert.Equal(t, io.EOF, err)
			return out
		}
		out = append(out, append([]byte{}, pkt...))
	}
}

func TestTsReader(t *testing.T) {
	stream := makeStream(10)

	pkts := readAll(t, source.NewTsReader(bytes.NewReader(stream)))
	assert.Equal(t, 10, len(pkts))
	assert.Equal(t, stream, bytes.Join(pkts, nil))

	// 每次只读一个字节
	pkts = readAll(t, source.NewTsReader(iotest.OneByteReader(bytes.NewReader(stream))))
	assert.Equal(t, 10, len(pkts))
	assert.Equal(t, stream, bytes.Join(pkts, nil))
}

func TestTsReaderResync(t *testing.T) {
	stream := makeStream(10)

	// 开头的垃圾数据中带有0x47
	var in []byte
	in = append(in, 0x1, 0x47, 0x2, 0x3)
	in = append(in, stream[:5*mpegts.PacketSize]...)
	// 中间丢了半个packet
	in = append(in, stream[5*mpegts.PacketSize+100:]...)
	// 末尾不足一个packet
	in = append(in, 0x47, 0x0, 0x0)

	tr := source.NewTsReader(bytes.NewReader(in))
	pkts := readAll(t, tr)
	assert.Equal(t, 9, len(pkts))
	assert.Equal(t, stream[:5*mpegts.PacketSize], bytes.Join(pkts[:5], nil))
	assert.Equal(t, stream[6*mpegts.PacketSize:], bytes.Join(pkts[5:], nil))
	assert.Equal(t, 1, tr.LostSync())
}

func TestFileSource(t *testing.T) {
	dir, err := ioutil.TempDir("", "dtvrec_source")
	assert.Equal(t, nil, err)
	defer os.RemoveAll(dir)

	stream := makeStream(20)
	filename := filepath.Join(dir, "in.ts")
	assert.Equal(t, nil, ioutil.WriteFile(filename, stream, 0666))

	s, err := source.NewFileSource(filename)
	assert.Equal(t, nil, err)
	var n int
	err = s.RunLoop(context.Background(), func(pkt []byte) {
		n++
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, 20, n)
	assert.Equal(t, uint64(20), s.Packets())
	assert.Equal(t, nil, s.Dispose())

	_, err = source.NewFileSource(filepath.Join(dir, "notexist.ts"))
	assert.IsNotNil(t, err)

	// 已经取消的ctx
	s, _ = source.NewFileSource(filename)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.RunLoop(ctx, func(pkt []byte) {})
	assert.Equal(t, context.Canceled, err)
	_ = s.Dispose()
}
