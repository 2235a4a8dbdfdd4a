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

	"github.com/cesanta/nocdbg/noc/coord"
)

// Hardware addresses, as the chip decodes them.
const (
	debugBase       = 0xFFB12000
	regDbgCntl0     = debugBase + 0x80
	regDbgCntl1     = debugBase + 0x84
	regDbgStatus0   = debugBase + 0x88
	regDbgStatus1   = debugBase + 0x8C
	regSoftReset    = debugBase + 0x1B0
	regICInvalidate = debugBase + 0x190
	regBusCntl      = debugBase + 0x54
	regBusData      = debugBase + 0x5C

	configBase = 0xFFEF0000

	localMemBase = 0xFFB00000
	localMemSize = 0x1000

	nocRegBase0 = 0xFFB20000
	nocRegBase1 = 0xFFB30000
	nocNodeID   = 0x2C

	ncriscIRAM = 0xFFC00000

	dbgCntlStrobe    = 1 << 31
	dbgCntlWrite     = 1 << 16
	dbgStatReadValid = 1 << 30
)

type TileKind int

const (
	TileOther TileKind = iota
	TileTensix
	TileEth
)

type tile struct {
	kind TileKind
	xy   coord.XY
	dev  *Device

	mem   map[uint64]uint32
	cores []*core

	cntl1     uint32
	status1   uint32
	readValid bool
	softReset uint32
	busCntl   uint32
}

func newTile(dev *Device, kind TileKind, xy coord.XY) *tile {
	t := &tile{kind: kind, xy: xy, dev: dev, mem: map[uint64]uint32{}}
	switch kind {
	case TileTensix:
		t.cores = []*core{
			newCore("brisc", 0, 11, true, fixedStart(0)),
			newCore("trisc0", 1, 12, true, overrideStart(158, 161, 0, 0x6000)),
			newCore("trisc1", 2, 13, true, overrideStart(159, 161, 1, 0xA000)),
			newCore("trisc2", 3, 14, true, overrideStart(160, 161, 2, 0xE000)),
			newCore("ncrisc", 4, 18, true, overrideStart(162, 163, 0, ncriscIRAM)),
		}
	case TileEth:
		t.cores = []*core{newCore("erisc", 0, 11, false, fixedStart(0))}
	}
	for _, c := range t.cores {
		c.t = t
		t.softReset |= 1 << c.resetBit
	}
	return t
}

func fixedStart(pc uint32) func(*tile) uint32 {
	return func(*tile) uint32 { return pc }
}

// overrideStart starts from configuration word pcIndex if bit enBit of word
// enIndex is set.
func overrideStart(pcIndex, enIndex uint64, enBit uint, def uint32) func(*tile) uint32 {
	return func(t *tile) uint32 {
		if t.memRead(configBase+enIndex*4)&(1<<enBit) != 0 {
			return t.memRead(configBase + pcIndex*4)
		}
		return def
	}
}

func (t *tile) memRead(addr uint64) uint32 {
	return t.mem[addr&^3]
}

func (t *tile) memWrite(addr uint64, v uint32) {
	t.mem[addr&^3] = v
}

func (t *tile) hasDebug() bool {
	for _, c := range t.cores {
		if c.hasDebug {
			return true
		}
	}
	return false
}

func (t *tile) coreByID(id int) *core {
	for _, c := range t.cores {
		if c.id == id && c.hasDebug {
			return c
		}
	}
	return nil
}

// read serves a NOC read of the word at addr; xy are the coordinates in
// the plane the read came from.
func (t *tile) read(addr uint64, xy coord.XY) uint32 {
	switch addr {
	case nocRegBase0 + nocNodeID:
		return uint32(t.xy.X) | uint32(t.xy.Y)<<6
	case nocRegBase1 + nocNodeID:
		return uint32(xy.X) | uint32(xy.Y)<<6
	case regSoftReset:
		return t.softReset
	}
	if t.hasDebug() {
		switch addr {
		case regDbgStatus0:
			if t.readValid {
				return dbgStatReadValid
			}
			return 0
		case regDbgStatus1:
			return t.status1
		case regBusData:
			return t.busData()
		}
	}
	return t.memRead(addr)
}

// write serves a NOC write. It reports a continue that self-halted during
// the same transaction.
func (t *tile) write(addr uint64, v uint32) (raced bool) {
	switch addr {
	case regSoftReset:
		t.setSoftReset(v)
		return false
	case regICInvalidate:
		for _, c := range t.cores {
			if v&(1<<uint(c.id)) != 0 {
				c.icache = map[uint32]uint32{}
			}
		}
		t.memWrite(addr, v)
		return false
	}
	if !t.hasDebug() {
		t.memWrite(addr, v)
		return false
	}
	switch addr {
	case regDbgCntl1:
		t.cntl1 = v
		return false
	case regDbgCntl0:
		if v&dbgCntlStrobe == 0 {
			return false
		}
		c := t.coreByID(int((v >> 17) & 0x1f))
		if c == nil {
			return false
		}
		reg := v & 0xffff
		if v&dbgCntlWrite != 0 {
			return c.debugWrite(reg, t.cntl1, t.dev.steps)
		}
		t.status1 = c.debugRead(reg)
		t.readValid = true
		return false
	case regBusCntl:
		t.busCntl = v
		return false
	}
	t.memWrite(addr, v)
	return false
}

func (t *tile) setSoftReset(v uint32) {
	old := t.softReset
	t.softReset = v
	for _, c := range t.cores {
		bit := uint32(1) << c.resetBit
		switch {
		case old&bit == 0 && v&bit != 0:
			c.reset()
		case old&bit != 0 && v&bit == 0:
			c.release()
		}
	}
}

// busData decodes the debug bus selection. Only the core PCs are modeled.
func (t *tile) busData() uint32 {
	if t.busCntl&(1<<29) == 0 {
		return 0
	}
	daisy := (t.busCntl >> 16) & 0xff
	rdSel := (t.busCntl >> 25) & 0xf
	sig := t.busCntl & 0xffff
	if daisy != 7 || rdSel != 0 || sig%2 != 1 {
		return 0
	}
	for _, c := range t.cores {
		if uint32(2*c.id+1) == sig {
			return c.pc
		}
	}
	return 0
}

func (t *tile) tick(n int) {
	for _, c := range t.cores {
		if c.running() {
			c.run(n)
			if c.halted {
				glog.V(3).Infof("sim: %s@%s halted at 0x%x (status 0x%x)", c.name, t.xy, c.pc, c.status())
			}
		}
	}
}
