// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avc

import (
	"github.com/q191201771/naza/pkg/nazabits"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// RbspReader 在 nazabits.BitReader 的基础上记录第一个错误
//
// sps、slice header这类语法元素很多的结构，逐个判断错误太啰嗦，
// 读完一组元素后调用 Err 检查即可。出错后后续的读取都返回0
//
type RbspReader struct {
	br  nazabits.BitReader
	err error
}

func NewRbspReader(rbsp []byte) *RbspReader {
	return &RbspReader{
		br: nazabits.NewBitReader(rbsp),
	}
}

func (r *RbspReader) Err() error {
	return r.err
}

func (r *RbspReader) U8(n uint) uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.br.ReadBits8(n)
	if err != nil {
		r.err = nazaerrors.Wrap(err)
	}
	return v
}

func (r *RbspReader) U16(n uint) uint16 {
	if r.err != nil {
		return 0
	}
	v, err := r.br.ReadBits16(n)
	if err != nil {
		r.err = nazaerrors.Wrap(err)
	}
	return v
}

func (r *RbspReader) U32(n uint) uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.br.ReadBits32(n)
	if err != nil {
		r.err = nazaerrors.Wrap(err)
	}
	return v
}

func (r *RbspReader) Flag() bool {
	return r.U8(1) == 1
}

func (r *RbspReader) Skip(n uint) {
	if r.err != nil {
		return
	}
	if err := r.br.SkipBits(n); err != nil {
		r.err = nazaerrors.Wrap(err)
	}
}

// Ue 无符号指数哥伦布编码
func (r *RbspReader) Ue() uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.br.ReadGolomb()
	if err != nil {
		r.err = nazaerrors.Wrap(err)
	}
	return v
}

// Se 有符号指数哥伦布编码
//
// codeNum k 映射为 (-1)^(k+1) * Ceil(k/2)
//
func (r *RbspReader) Se() int32 {
	k := r.Ue()
	if k&1 == 1 {
		return int32((k + 1) / 2)
	}
	return -int32(k / 2)
}
