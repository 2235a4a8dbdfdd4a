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
package block

import (
	"context"
	"sort"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/cesanta/nocdbg/noc/risc"
)

const (
	RegDebugBusControl = "RISCV_DEBUG_REG_DBG_BUS_CNTL_REG"
	RegDebugBusData    = "RISCV_DEBUG_REG_DBG_RD_DATA"

	debugBusEnable    = 1 << 29
	debugBusRdSelBit  = 25
	debugBusDaisyBit  = 16
	debugBusSigSelMax = 0xffff
)

// Signal selects one 32-bit slice of a debug bus signal.
type Signal struct {
	DaisySel uint32
	RdSel    uint32
	SigSel   uint32
	Mask     uint32
}

// Control returns the debug bus control register value selecting s.
func (s Signal) Control() uint32 {
	return debugBusEnable | (s.RdSel&0xf)<<debugBusRdSelBit | (s.DaisySel&0xff)<<debugBusDaisyBit | s.SigSel&debugBusSigSelMax
}

// DebugBus is the catalog of named signals readable through a block's debug
// bus mux.
type DebugBus struct {
	signals map[string]Signal
}

func NewDebugBus(signals map[string]Signal) *DebugBus {
	return &DebugBus{signals: signals}
}

func (b *DebugBus) Names() []string {
	res := make([]string, 0, len(b.signals))
	for k := range b.signals {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

func (b *DebugBus) Signal(name string) (Signal, error) {
	s, ok := b.signals[name]
	if !ok {
		return Signal{}, errors.NotFoundf("debug bus signal %q", name)
	}
	return s, nil
}

// Read selects the signal and reads it through the debug registers of h on
// plane nocID.
func (b *DebugBus) Read(ctx context.Context, h risc.Host, nocID int, name string) (uint32, error) {
	sig, err := b.Signal(name)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return ReadSignal(ctx, h, nocID, sig)
}

// ReadSignal holds the host's debug lock so that the selection is still in
// place when the data register is read.
func ReadSignal(ctx context.Context, h risc.Host, nocID int, sig Signal) (uint32, error) {
	s, err := h.RegisterStore(nocID)
	if err != nil {
		return 0, errors.Trace(err)
	}
	l := h.DebugLock()
	l.Lock()
	defer l.Unlock()
	if err := s.Write(ctx, RegDebugBusControl, sig.Control()); err != nil {
		return 0, errors.Annotatef(err, "failed to select debug bus signal")
	}
	v, err := s.Read(ctx, RegDebugBusData)
	if err != nil {
		return 0, errors.Trace(err)
	}
	glog.V(3).Infof("%s dbg bus %d/%d/%d == 0x%x", s.Location(), sig.DaisySel, sig.RdSel, sig.SigSel, v)
	return v & sig.Mask, nil
}

const debugBusPCDaisy = 7

// PC signals of core id on daisy chain 7 are at sig_sel 2*id+1.
func pcSignal(id uint32) Signal {
	return Signal{DaisySel: debugBusPCDaisy, SigSel: 2*id + 1, Mask: 0x7fffffff}
}

var tensixDebugBus = NewDebugBus(map[string]Signal{
	"brisc_pc":              pcSignal(0),
	"trisc0_pc":             pcSignal(1),
	"trisc1_pc":             pcSignal(2),
	"trisc2_pc":             pcSignal(3),
	"ncrisc_pc":             pcSignal(4),
	"brisc_ex_id_rtr":       {DaisySel: 7, RdSel: 1, SigSel: 1, Mask: 0x200},
	"brisc_id_ex_rts":       {DaisySel: 7, RdSel: 1, SigSel: 1, Mask: 0x100},
	"brisc_if_rts":          {DaisySel: 7, RdSel: 1, SigSel: 1, Mask: 0x80000000},
	"brisc_if_ex_predicted": {DaisySel: 7, RdSel: 1, SigSel: 1, Mask: 0x40000000},
	"trisc0_if_rts":         {DaisySel: 7, RdSel: 1, SigSel: 3, Mask: 0x80000000},
	"trisc1_if_rts":         {DaisySel: 7, RdSel: 1, SigSel: 5, Mask: 0x80000000},
	"trisc2_if_rts":         {DaisySel: 7, RdSel: 1, SigSel: 7, Mask: 0x80000000},
	"ncrisc_if_rts":         {DaisySel: 7, RdSel: 1, SigSel: 9, Mask: 0x80000000},
	"unpack_state":          {DaisySel: 1, RdSel: 0, SigSel: 12, Mask: 0xff},
	"pack_state":            {DaisySel: 2, RdSel: 0, SigSel: 12, Mask: 0xff},
})

var ethDebugBus = NewDebugBus(map[string]Signal{
	"erisc_pc": pcSignal(0),
})
