// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import "github.com/q191201771/naza/pkg/nazaatomic"

// ContinuityChecker 按pid检查TS packet的continuity_counter
//
// - 每个pid的第一个packet总是认为连续，并作为后续检查的起点
// - 带payload的packet，counter必须等于上一个加1（模16），重复的counter也算不连续
// - 只有adaptation的packet不增加counter，见 CheckPacket
// - PidNull 不参与检查和计数
//
// Check 只能在一个协程中调用，计数相关的读取函数可以在其他协程中调用
//
type ContinuityChecker struct {
	prev [int(PidMax) + 1]int8

	packets nazaatomic.Uint64
	errors  nazaatomic.Uint64
}

func NewContinuityChecker() *ContinuityChecker {
	c := &ContinuityChecker{}
	c.Reset()
	return c
}

// Check counter必须为上一个counter加1（模16）
//
// @return 是否连续
//
func (c *ContinuityChecker) Check(pid uint16, cc uint8) bool {
	return c.check(pid, cc, true)
}

// CheckPacket 同 Check，只有adaptation没有payload的packet要求counter和上一个相同
func (c *ContinuityChecker) CheckPacket(pkt TsPacket) bool {
	return c.check(pkt.Pid(), pkt.Cc(), pkt.HasPayload())
}

// Expected 下一个packet期望的counter，该pid还没有出现过时ok为false
func (c *ContinuityChecker) Expected(pid uint16) (cc uint8, ok bool) {
	if pid > PidMax || c.prev[pid] < 0 {
		return 0, false
	}
	return uint8(c.prev[pid]+1) & 0x0f, true
}

// ResetPid 在该pid上重新开始检查，比如PMT中的pid发生了变化
func (c *ContinuityChecker) ResetPid(pid uint16) {
	if pid > PidMax {
		return
	}
	c.prev[pid] = -1
}

// Reset 清除所有pid的状态，计数不变
func (c *ContinuityChecker) Reset() {
	for i := range c.prev {
		c.prev[i] = -1
	}
}

func (c *ContinuityChecker) Packets() uint64 {
	return c.packets.Load()
}

func (c *ContinuityChecker) Errors() uint64 {
	return c.errors.Load()
}

// ErrorRate 不连续的packet占比，单位百分比
func (c *ContinuityChecker) ErrorRate() float64 {
	packets := c.packets.Load()
	if packets == 0 {
		return 0
	}
	return float64(c.errors.Load()) * 100 / float64(packets)
}

// ResetCount 清除计数，比如开始一个新的录制
func (c *ContinuityChecker) ResetCount() {
	c.packets.Store(0)
	c.errors.Store(0)
}

// ----- private -------------------------------------------------------------------------------------------------------

func (c *ContinuityChecker) check(pid uint16, cc uint8, hasPayload bool) bool {
	if pid >= PidNull {
		return true
	}
	c.packets.Increment()

	cc &= 0x0f
	prev := c.prev[pid]
	c.prev[pid] = int8(cc)
	if prev < 0 {
		return true
	}
	expected := uint8(prev+1) & 0x0f
	if !hasPayload {
		expected = uint8(prev)
	}
	if cc == expected {
		return true
	}
	c.errors.Increment()
	return false
}
