//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
package sim

import (
	"github.com/golang/glog"
)

const numWatchpoints = 8

// Debug interface registers and commands, as seen by the debug controller.
const (
	dbgStatus  = 0
	dbgCommand = 1
	dbgArg0    = 2
	dbgArg1    = 3
	dbgReturn  = 4
	dbgWpSetup = 5
	dbgWp0     = 6
	dbgNumRegs = dbgWp0 + numWatchpoints

	cmdHalt      = 0x1
	cmdStep      = 0x2
	cmdContinue  = 0x4
	cmdReadReg   = 0x8
	cmdWriteReg  = 0x10
	cmdReadMem   = 0x20
	cmdWriteMem  = 0x40
	cmdDebugMode = 0x80000000

	wpPC    = 1
	wpRead  = 2
	wpWrite = 4
)

// core is one RV32I hart with the debug interface attached.
type core struct {
	name     string
	id       int
	resetBit uint
	hasDebug bool
	startPC  func(t *tile) uint32

	t *tile

	x  [32]uint32
	pc uint32

	inReset bool
	halted  bool
	ebreak  bool
	pcHit   bool
	memHit  bool
	hits    uint8
	// resume skips the PC watchpoint check of the first instruction after
	// a continue or step.
	resume bool

	local  map[uint32]uint32
	icache map[uint32]uint32
	dbg    [dbgNumRegs]uint32

	retired uint64
}

func newCore(name string, id int, resetBit uint, hasDebug bool, startPC func(*tile) uint32) *core {
	return &core{
		name: name, id: id, resetBit: resetBit, hasDebug: hasDebug, startPC: startPC,
		inReset: true,
		local:   map[uint32]uint32{},
		icache:  map[uint32]uint32{},
	}
}

func (c *core) running() bool {
	return !c.inReset && !c.halted
}

func (c *core) status() uint32 {
	var v uint32
	if c.halted {
		v |= 1
	}
	if c.pcHit {
		v |= 2
	}
	if c.memHit {
		v |= 4
	}
	if c.ebreak {
		v |= 8
	}
	return v | uint32(c.hits)<<4
}

func (c *core) clearHaltReason() {
	c.ebreak, c.pcHit, c.memHit, c.hits = false, false, false, 0
}

func (c *core) reset() {
	c.inReset = true
	c.halted = false
	c.clearHaltReason()
	c.x = [32]uint32{}
	c.dbg = [dbgNumRegs]uint32{}
}

func (c *core) release() {
	c.inReset = false
	c.pc = c.startPC(c.t)
	c.resume = false
	glog.V(3).Infof("sim: %s@%s starts at 0x%x", c.name, c.t.xy, c.pc)
}

func (c *core) isLocal(addr uint32) bool {
	return addr >= localMemBase && addr < localMemBase+localMemSize
}

func (c *core) load32(addr uint32) uint32 {
	addr &^= 3
	if c.isLocal(addr) {
		return c.local[addr]
	}
	return c.t.memRead(uint64(addr))
}

func (c *core) store32(addr, v uint32) {
	addr &^= 3
	if c.isLocal(addr) {
		c.local[addr] = v
		return
	}
	c.t.memWrite(uint64(addr), v)
}

func (c *core) load(addr uint32, size uint) uint32 {
	w := c.load32(addr)
	sh := (addr & 3) * 8
	switch size {
	case 1:
		return (w >> sh) & 0xff
	case 2:
		return (w >> sh) & 0xffff
	}
	return w
}

func (c *core) store(addr uint32, size uint, v uint32) {
	if size == 4 {
		c.store32(addr, v)
		return
	}
	sh := (addr & 3) * 8
	mask := uint32(0xff)
	if size == 2 {
		mask = 0xffff
	}
	w := c.load32(addr)
	w = (w &^ (mask << sh)) | ((v & mask) << sh)
	c.store32(addr, w)
}

// checkMemoryWatchpoints compares every byte of [addr, addr+size) against
// the comparators.
func (c *core) checkMemoryWatchpoints(addr uint32, size uint, mode uint32) {
	if !c.hasDebug {
		return
	}
	setup := c.dbg[dbgWpSetup]
	for i := 0; i < numWatchpoints; i++ {
		m := (setup >> (uint(i) * 4)) & 0xf
		if m&mode == 0 {
			continue
		}
		wa := c.dbg[dbgWp0+i]
		if wa >= addr && wa < addr+uint32(size) {
			c.hits |= 1 << uint(i)
			c.memHit = true
		}
	}
	if c.memHit {
		c.halted = true
	}
}

func (c *core) checkPCWatchpoints() bool {
	if !c.hasDebug {
		return false
	}
	setup := c.dbg[dbgWpSetup]
	for i := 0; i < numWatchpoints; i++ {
		if (setup>>(uint(i)*4))&0xf == wpPC && c.dbg[dbgWp0+i] == c.pc {
			c.hits |= 1 << uint(i)
			c.pcHit = true
		}
	}
	if c.pcHit {
		c.halted = true
	}
	return c.pcHit
}

func (c *core) fetch() uint32 {
	if v, ok := c.icache[c.pc]; ok {
		return v
	}
	v := c.load32(c.pc)
	c.icache[c.pc] = v
	return v
}

// run executes up to n instructions.
func (c *core) run(n int) {
	for i := 0; i < n && c.running(); i++ {
		if !c.resume && c.checkPCWatchpoints() {
			return
		}
		c.resume = false
		c.exec()
	}
}

func signExtend(v uint32, bits uint) uint32 {
	sh := 32 - bits
	return uint32(int32(v<<sh) >> sh)
}

func (c *core) setReg(rd, v uint32) {
	if rd != 0 {
		c.x[rd] = v
	}
}

// exec executes one instruction.
func (c *core) exec() {
	in := c.fetch()
	op := in & 0x7f
	rd := (in >> 7) & 0x1f
	f3 := (in >> 12) & 7
	rs1 := (in >> 15) & 0x1f
	rs2 := (in >> 20) & 0x1f
	f7 := in >> 25
	immI := signExtend(in>>20, 12)
	immS := signExtend((in>>25)<<5|(in>>7)&0x1f, 12)
	immB := signExtend((in>>31)<<12|((in>>7)&1)<<11|((in>>25)&0x3f)<<5|((in>>8)&0xf)<<1, 13)
	immU := in &^ 0xfff
	immJ := signExtend((in>>31)<<20|((in>>12)&0xff)<<12|((in>>20)&1)<<11|((in>>21)&0x3ff)<<1, 21)
	a, b := c.x[rs1], c.x[rs2]
	next := c.pc + 4
	c.retired++

	switch op {
	case 0x37: // lui
		c.setReg(rd, immU)
	case 0x17: // auipc
		c.setReg(rd, c.pc+immU)
	case 0x6f: // jal
		c.setReg(rd, next)
		next = c.pc + immJ
	case 0x67: // jalr
		t := (a + immI) &^ 1
		c.setReg(rd, next)
		next = t
	case 0x63:
		var taken bool
		switch f3 {
		case 0:
			taken = a == b
		case 1:
			taken = a != b
		case 4:
			taken = int32(a) < int32(b)
		case 5:
			taken = int32(a) >= int32(b)
		case 6:
			taken = a < b
		case 7:
			taken = a >= b
		default:
			c.illegal(in)
			return
		}
		if taken {
			next = c.pc + immB
		}
	case 0x03:
		addr := a + immI
		var v uint32
		var size uint
		switch f3 {
		case 0:
			size, v = 1, signExtend(c.load(addr, 1), 8)
		case 1:
			size, v = 2, signExtend(c.load(addr, 2), 16)
		case 2:
			size, v = 4, c.load(addr, 4)
		case 4:
			size, v = 1, c.load(addr, 1)
		case 5:
			size, v = 2, c.load(addr, 2)
		default:
			c.illegal(in)
			return
		}
		c.setReg(rd, v)
		c.checkMemoryWatchpoints(addr, size, wpRead)
	case 0x23:
		addr := a + immS
		size := uint(1) << f3
		if f3 > 2 {
			c.illegal(in)
			return
		}
		c.store(addr, size, b)
		c.checkMemoryWatchpoints(addr, size, wpWrite)
	case 0x13:
		sh := rs2
		var v uint32
		switch f3 {
		case 0:
			v = a + immI
		case 2:
			v = b2u(int32(a) < int32(immI))
		case 3:
			v = b2u(a < immI)
		case 4:
			v = a ^ immI
		case 6:
			v = a | immI
		case 7:
			v = a & immI
		case 1:
			v = a << sh
		case 5:
			if f7&0x20 != 0 {
				v = uint32(int32(a) >> sh)
			} else {
				v = a >> sh
			}
		}
		c.setReg(rd, v)
	case 0x33:
		sh := b & 0x1f
		var v uint32
		switch f3 {
		case 0:
			if f7&0x20 != 0 {
				v = a - b
			} else {
				v = a + b
			}
		case 1:
			v = a << sh
		case 2:
			v = b2u(int32(a) < int32(b))
		case 3:
			v = b2u(a < b)
		case 4:
			v = a ^ b
		case 5:
			if f7&0x20 != 0 {
				v = uint32(int32(a) >> sh)
			} else {
				v = a >> sh
			}
		case 6:
			v = a | b
		case 7:
			v = a & b
		}
		c.setReg(rd, v)
	case 0x0f: // fence
	case 0x73:
		if in == insnEbreak {
			// The PC stays on the ebreak.
			c.halted = true
			c.ebreak = true
			return
		}
		// ecall and csr accesses are not modeled.
	default:
		c.illegal(in)
		return
	}
	c.pc = next
}

func (c *core) illegal(in uint32) {
	glog.Errorf("sim: %s@%s: illegal instruction 0x%08x at 0x%x, halting", c.name, c.t.xy, in, c.pc)
	c.halted = true
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// debugWrite handles a debug controller write of value to register reg.
// It reports whether a continue was immediately followed by a self-halt.
func (c *core) debugWrite(reg, value uint32, steps int) (raced bool) {
	if reg >= dbgNumRegs {
		return false
	}
	if reg != dbgCommand {
		if reg != dbgStatus {
			c.dbg[reg] = value
		}
		return false
	}
	if value&cmdDebugMode == 0 {
		return false
	}
	switch {
	case value&cmdHalt != 0:
		if !c.inReset && !c.halted {
			c.halted = true
			c.clearHaltReason()
		}
	case value&cmdStep != 0:
		if c.halted {
			c.clearHaltReason()
			c.resume = true
			c.halted = false
			c.run(1)
			c.halted = true
		}
	case value&cmdContinue != 0:
		if c.halted {
			c.clearHaltReason()
			c.halted = false
			c.resume = true
			c.run(steps)
			return c.halted
		}
	case value&cmdReadReg != 0 && c.halted:
		if i := c.dbg[dbgArg0]; i == 32 {
			c.dbg[dbgReturn] = c.pc
		} else if i < 32 {
			c.dbg[dbgReturn] = c.x[i]
		}
	case value&cmdWriteReg != 0 && c.halted:
		if i := c.dbg[dbgArg0]; i == 32 {
			c.pc = c.dbg[dbgArg1]
		} else if i < 32 {
			c.setReg(i, c.dbg[dbgArg1])
		}
	case value&cmdReadMem != 0 && c.halted:
		c.dbg[dbgReturn] = c.load32(c.dbg[dbgArg0])
	case value&cmdWriteMem != 0 && c.halted:
		c.store32(c.dbg[dbgArg0], c.dbg[dbgArg1])
	}
	return false
}

func (c *core) debugRead(reg uint32) uint32 {
	switch {
	case reg == dbgStatus:
		return c.status()
	case reg < dbgNumRegs:
		return c.dbg[reg]
	}
	return 0
}
