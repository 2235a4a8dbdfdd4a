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

// Package risc implements the debug protocol of the embedded RISC-V cores:
// halt, continue, step, GPR and memory access through the debug interface,
// watchpoints, reset and instruction cache control.
//
// Nothing is cached: every query re-reads hardware status.
package risc

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/cesanta/nocdbg/noc/register"
	"github.com/cesanta/nocdbg/noc/umd"
)

// Names of the debug registers used by Debug. Every block with cores that
// have debug hardware must have them in its catalog, see DebugRegisters.
const (
	RegDebugControl0 = "RISCV_DEBUG_REG_RISC_DBG_CNTL_0"
	RegDebugControl1 = "RISCV_DEBUG_REG_RISC_DBG_CNTL_1"
	RegDebugStatus0  = "RISCV_DEBUG_REG_RISC_DBG_STATUS_0"
	RegDebugStatus1  = "RISCV_DEBUG_REG_RISC_DBG_STATUS_1"
	RegSoftReset     = "RISCV_DEBUG_REG_SOFT_RESET_0"
	RegICInvalidate  = "RISCV_IC_INVALIDATE_InvalidateAll"
)

// DebugRegisters is the part of the debug register catalog the core debug
// protocol relies on.
var DebugRegisters = register.Catalog{
	RegDebugControl0: register.DebugRegister{Offset: 0x80},
	RegDebugControl1: register.DebugRegister{Offset: 0x84},
	RegDebugStatus0:  register.DebugRegister{Offset: 0x88},
	RegDebugStatus1:  register.DebugRegister{Offset: 0x8C},
	RegSoftReset:     register.DebugRegister{Offset: 0x1B0},
	RegICInvalidate:  register.DebugRegister{Offset: 0x190},
}

const (
	dbgControlStrobe = 1 << 31
	dbgControlWrite  = 1 << 16
	dbgControlIDBit  = 17
	// Set in STATUS_0 once STATUS_1 holds the requested value.
	dbgStatusReadValid = 1 << 30

	// Highest GPR index; 32 reads the PC.
	PCRegisterIndex = 32

	DefaultPollAttempts = 1000
)

var (
	ErrNotHalted      = errors.New("core is not halted")
	ErrInReset        = errors.New("core is in reset")
	ErrContinueFailed = errors.New("core failed to continue")
	ErrNoDebugHW      = errors.NotSupportedf("debug hardware")
)

// Debug drives the debug interface of one core through the register store
// of its host on one NOC plane. The debug registers are shared by all cores
// of the host, so every operation holds the host's debug lock throughout.
type Debug struct {
	info  *Info
	neoID int
	store *register.Store
	lock  sync.Locker

	// PollAttempts bounds the register polls of Halt and debug reads.
	PollAttempts int
	// PollInterval is slept between polls, zero means spin.
	PollInterval time.Duration
}

func NewDebug(info *Info, neoID, nocID int) (*Debug, error) {
	if info.Host == nil {
		return nil, errors.NotValidf("core %s without host", info.Name)
	}
	s, err := info.Host.RegisterStore(nocID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Debug{
		info:         info,
		neoID:        neoID,
		store:        s,
		lock:         info.Host.DebugLock(),
		PollAttempts: DefaultPollAttempts,
	}, nil
}

func (d *Debug) Info() *Info {
	return d.info
}

func (d *Debug) NocID() int {
	return d.store.NocID()
}

func (d *Debug) NeoID() int {
	return d.neoID
}

func (d *Debug) Store() *register.Store {
	return d.store
}

func (d *Debug) String() string {
	return d.info.String()
}

func (d *Debug) checkHW() error {
	if !d.info.DebugHardwarePresent {
		return errors.Annotatef(ErrNoDebugHW, "%s", d)
	}
	return nil
}

func (d *Debug) control(reg uint32, write bool) uint32 {
	v := uint32(dbgControlStrobe) | uint32(d.info.ID)<<dbgControlIDBit | reg
	if write {
		v |= dbgControlWrite
	}
	return v
}

func (d *Debug) writeDbg(ctx context.Context, reg, value uint32) error {
	glog.V(4).Infof("%s: dbg[%d] = 0x%08x", d, reg, value)
	if err := d.store.Write(ctx, RegDebugControl1, value); err != nil {
		return errors.Trace(err)
	}
	if err := d.store.Write(ctx, RegDebugControl0, d.control(reg, true)); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(d.store.Write(ctx, RegDebugControl0, 0))
}

func (d *Debug) readDbg(ctx context.Context, reg uint32) (uint32, error) {
	if err := d.store.Write(ctx, RegDebugControl0, d.control(reg, false)); err != nil {
		return 0, errors.Trace(err)
	}
	if err := d.store.Write(ctx, RegDebugControl0, 0); err != nil {
		return 0, errors.Trace(err)
	}
	for i := 0; ; i++ {
		st, err := d.store.Read(ctx, RegDebugStatus0)
		if err != nil {
			return 0, errors.Trace(err)
		}
		if st&dbgStatusReadValid != 0 {
			break
		}
		if i >= d.PollAttempts {
			return 0, errors.Errorf("%s: debug register %d never became readable", d, reg)
		}
		d.sleep()
	}
	v, err := d.store.Read(ctx, RegDebugStatus1)
	if err != nil {
		return 0, errors.Trace(err)
	}
	glog.V(4).Infof("%s: dbg[%d] == 0x%08x", d, reg, v)
	return v, nil
}

func (d *Debug) sleep() {
	if d.PollInterval > 0 {
		time.Sleep(d.PollInterval)
	}
}

func (d *Debug) command(ctx context.Context, cmd uint32) error {
	return errors.Trace(d.writeDbg(ctx, dbgRegCommand, cmdDebugMode|cmd))
}

// EnableDebug puts the core's debug interface into debug mode. It is a no-op
// for cores without debug hardware.
func (d *Debug) EnableDebug(ctx context.Context) error {
	if !d.info.DebugHardwarePresent {
		glog.V(2).Infof("%s: no debug hardware, not enabling debug", d)
		return nil
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	return errors.Annotatef(d.command(ctx, 0), "%s: failed to enable debug", d)
}

// ReadStatus returns one snapshot of the debug status register.
func (d *Debug) readStatus(ctx context.Context) (Status, error) {
	if err := d.checkHW(); err != nil {
		return Status{}, err
	}
	v, err := d.readDbg(ctx, dbgRegStatus)
	if err != nil {
		return Status{}, errors.Annotatef(err, "%s: failed to read status", d)
	}
	return decodeStatus(v), nil
}

func (d *Debug) isHalted(ctx context.Context) (bool, error) {
	st, err := d.readStatus(ctx)
	if err != nil {
		return false, errors.Trace(err)
	}
	return st.Halted, nil
}

func (d *Debug) requireHalted(ctx context.Context) error {
	st, err := d.readStatus(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	if !st.Halted {
		return errors.Annotatef(ErrNotHalted, "%s", d)
	}
	return nil
}

func (d *Debug) halt(ctx context.Context) error {
	if err := d.checkHW(); err != nil {
		return err
	}
	inReset, err := d.IsInReset(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	if inReset {
		return errors.Annotatef(ErrInReset, "%s: cannot halt", d)
	}
	glog.V(2).Infof("%s: halt", d)
	if err := d.command(ctx, cmdHalt); err != nil {
		return errors.Annotatef(err, "%s: failed to request halt", d)
	}
	for i := 0; i <= d.PollAttempts; i++ {
		halted, err := d.isHalted(ctx)
		if err != nil {
			return errors.Trace(err)
		}
		if halted {
			return nil
		}
		d.sleep()
	}
	return errors.Errorf("%s: did not halt after %d polls", d, d.PollAttempts)
}

func (d *Debug) cont(ctx context.Context) error {
	if err := d.requireHalted(ctx); err != nil {
		return errors.Trace(err)
	}
	glog.V(2).Infof("%s: continue", d)
	cerr := d.command(ctx, cmdContinue)
	if cerr != nil && umd.IsTimeout(cerr) {
		return errors.Annotatef(cerr, "%s: continue", d)
	}
	st, err := d.readStatus(ctx)
	if err != nil {
		if cerr != nil {
			return errors.Annotatef(cerr, "%s: continue (status: %s)", d, err)
		}
		return errors.Trace(err)
	}
	switch {
	case !st.Halted:
		return nil
	case st.SelfHalted():
		glog.V(2).Infof("%s: halted again right away: %s", d, st)
		return nil
	case cerr != nil:
		return errors.Annotatef(cerr, "%s: continue", d)
	}
	return errors.Annotatef(ErrContinueFailed, "%s: status %s", d, st)
}

func (d *Debug) step(ctx context.Context) error {
	if err := d.requireHalted(ctx); err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(d.command(ctx, cmdStep), "%s: step", d)
}

func checkGPR(index int) error {
	if index < 0 || index > PCRegisterIndex {
		return errors.NotValidf("register index %d", index)
	}
	return nil
}

func (d *Debug) readGPR(ctx context.Context, index int) (uint32, error) {
	if err := checkGPR(index); err != nil {
		return 0, err
	}
	if err := d.requireHalted(ctx); err != nil {
		return 0, errors.Trace(err)
	}
	if err := d.writeDbg(ctx, dbgRegArg0, uint32(index)); err != nil {
		return 0, errors.Trace(err)
	}
	if err := d.command(ctx, cmdReadRegister); err != nil {
		return 0, errors.Trace(err)
	}
	v, err := d.readDbg(ctx, dbgRegReturn)
	return v, errors.Annotatef(err, "%s: failed to read x%d", d, index)
}

func (d *Debug) writeGPR(ctx context.Context, index int, value uint32) error {
	if err := checkGPR(index); err != nil {
		return err
	}
	if err := d.requireHalted(ctx); err != nil {
		return errors.Trace(err)
	}
	if err := d.writeDbg(ctx, dbgRegArg0, uint32(index)); err != nil {
		return errors.Trace(err)
	}
	if err := d.writeDbg(ctx, dbgRegArg1, value); err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(d.command(ctx, cmdWriteRegister), "%s: failed to write x%d", d, index)
}

func (d *Debug) readMemory(ctx context.Context, addr uint32) (uint32, error) {
	if addr%4 != 0 {
		return 0, errors.NotValidf("unaligned address 0x%x", addr)
	}
	if err := d.requireHalted(ctx); err != nil {
		return 0, errors.Trace(err)
	}
	if err := d.writeDbg(ctx, dbgRegArg0, addr); err != nil {
		return 0, errors.Trace(err)
	}
	if err := d.command(ctx, cmdReadMemory); err != nil {
		return 0, errors.Trace(err)
	}
	v, err := d.readDbg(ctx, dbgRegReturn)
	return v, errors.Annotatef(err, "%s: failed to read memory at 0x%x", d, addr)
}

func (d *Debug) writeMemory(ctx context.Context, addr, value uint32) error {
	if addr%4 != 0 {
		return errors.NotValidf("unaligned address 0x%x", addr)
	}
	if err := d.requireHalted(ctx); err != nil {
		return errors.Trace(err)
	}
	if err := d.writeDbg(ctx, dbgRegArg0, addr); err != nil {
		return errors.Trace(err)
	}
	if err := d.writeDbg(ctx, dbgRegArg1, value); err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(d.command(ctx, cmdWriteMemory), "%s: failed to write memory at 0x%x", d, addr)
}

func (d *Debug) setWatchpoint(ctx context.Context, index int, mode WatchpointMode, addr uint32) error {
	if index < 0 || index >= d.info.MaxWatchpoints {
		return errors.NotValidf("watchpoint index %d (%s has %d)", index, d, d.info.MaxWatchpoints)
	}
	if err := d.requireHalted(ctx); err != nil {
		return errors.Trace(err)
	}
	glog.V(2).Infof("%s: wp%d %s @ 0x%08x", d, index, mode, addr)
	if mode != WatchpointDisabled {
		if err := d.writeDbg(ctx, dbgRegWatchpoint0+uint32(index), addr); err != nil {
			return errors.Trace(err)
		}
	}
	settings, err := d.readDbg(ctx, dbgRegWatchpointSetup)
	if err != nil {
		return errors.Trace(err)
	}
	sh := uint(index) * 4
	settings = (settings &^ (0xf << sh)) | uint32(mode)<<sh
	return errors.Annotatef(d.writeDbg(ctx, dbgRegWatchpointSetup, settings), "%s: failed to set wp%d", d, index)
}

// ReadStatus returns one snapshot of the debug status register.
func (d *Debug) ReadStatus(ctx context.Context) (Status, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.readStatus(ctx)
}

func (d *Debug) IsHalted(ctx context.Context) (bool, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.isHalted(ctx)
}

// Halt requests a halt and waits until the core reports it.
func (d *Debug) Halt(ctx context.Context) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.halt(ctx)
}

// Continue resumes a halted core. The core may stop again on its own (ebreak
// or a watchpoint) before Continue returns; that is not an error.
func (d *Debug) Continue(ctx context.Context) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.cont(ctx)
}

// Step executes one instruction on a halted core.
func (d *Debug) Step(ctx context.Context) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.step(ctx)
}

// ReadGPR reads x0..x31, or the PC for index 32.
func (d *Debug) ReadGPR(ctx context.Context, index int) (uint32, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.readGPR(ctx, index)
}

func (d *Debug) WriteGPR(ctx context.Context, index int, value uint32) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.writeGPR(ctx, index, value)
}

// ReadMemory reads a word as seen by the core, including its private memory.
func (d *Debug) ReadMemory(ctx context.Context, addr uint32) (uint32, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.readMemory(ctx, addr)
}

func (d *Debug) WriteMemory(ctx context.Context, addr, value uint32) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.writeMemory(ctx, addr, value)
}

// SetWatchpoint programs comparator index. Whatever was there before is
// replaced.
func (d *Debug) SetWatchpoint(ctx context.Context, index int, mode WatchpointMode, addr uint32) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.setWatchpoint(ctx, index, mode, addr)
}

func (d *Debug) SetWatchpointOnPCAddress(ctx context.Context, index int, addr uint32) error {
	return d.SetWatchpoint(ctx, index, WatchpointPC, addr)
}

func (d *Debug) SetWatchpointOnMemoryWrite(ctx context.Context, index int, addr uint32) error {
	return d.SetWatchpoint(ctx, index, WatchpointMemoryWrite, addr)
}

func (d *Debug) SetWatchpointOnMemoryRead(ctx context.Context, index int, addr uint32) error {
	return d.SetWatchpoint(ctx, index, WatchpointMemoryRead, addr)
}

func (d *Debug) SetWatchpointOnMemoryAccess(ctx context.Context, index int, addr uint32) error {
	return d.SetWatchpoint(ctx, index, WatchpointMemory, addr)
}

func (d *Debug) DisableWatchpoint(ctx context.Context, index int) error {
	return d.SetWatchpoint(ctx, index, WatchpointDisabled, 0)
}

func (d *Debug) readWatchpoints(ctx context.Context) ([]Watchpoint, error) {
	if err := d.requireHalted(ctx); err != nil {
		return nil, errors.Trace(err)
	}
	settings, err := d.readDbg(ctx, dbgRegWatchpointSetup)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var res []Watchpoint
	for i := 0; i < d.info.MaxWatchpoints; i++ {
		wp := Watchpoint{Index: i, Mode: WatchpointMode((settings >> (uint(i) * 4)) & 0xf)}
		if wp.Mode != WatchpointDisabled {
			if wp.Address, err = d.readDbg(ctx, dbgRegWatchpoint0+uint32(i)); err != nil {
				return nil, errors.Trace(err)
			}
		}
		res = append(res, wp)
	}
	return res, nil
}

// ReadWatchpoints returns the configuration of all comparators.
func (d *Debug) ReadWatchpoints(ctx context.Context) ([]Watchpoint, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.readWatchpoints(ctx)
}

// InvalidateInstructionCache must follow any write to code the core may
// have fetched already.
func (d *Debug) InvalidateInstructionCache(ctx context.Context) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	bit := uint32(1) << uint(d.info.ID)
	if err := d.store.Write(ctx, RegICInvalidate, bit); err != nil {
		return errors.Annotatef(err, "%s: icache invalidate", d)
	}
	return errors.Trace(d.store.Write(ctx, RegICInvalidate, 0))
}

func (d *Debug) IsInReset(ctx context.Context) (bool, error) {
	v, err := d.store.Read(ctx, RegSoftReset)
	if err != nil {
		return false, errors.Annotatef(err, "%s: failed to read reset state", d)
	}
	return v&(1<<d.info.ResetFlagShift) != 0, nil
}

// SetReset asserts or releases the core's soft reset, leaving the other
// cores of the tile alone.
func (d *Debug) SetReset(ctx context.Context, assert bool) error {
	bit := uint32(1) << d.info.ResetFlagShift
	glog.V(2).Infof("%s: reset=%t", d, assert)
	_, err := d.store.Update(ctx, RegSoftReset, func(old uint32) uint32 {
		if assert {
			return old | bit
		}
		return old &^ bit
	})
	return errors.Annotatef(err, "%s: failed to change reset", d)
}

// SetBranchPrediction enables or disables branch prediction on cores that
// have a control for it.
func (d *Debug) SetBranchPrediction(ctx context.Context, enable bool) error {
	if d.info.BranchPredictionRegister == "" {
		return errors.NotSupportedf("branch prediction control on %s", d)
	}
	mask := d.info.BranchPredictionMask
	_, err := d.store.Update(ctx, d.info.BranchPredictionRegister, func(old uint32) uint32 {
		if enable {
			return old &^ mask
		}
		return old | mask
	})
	return errors.Annotatef(err, "%s: branch prediction", d)
}

// SetCodeStartAddress makes the core start at addr after its next reset.
func (d *Debug) SetCodeStartAddress(ctx context.Context, addr uint32) error {
	if !d.info.CanChangeCodeStart() {
		return errors.NotSupportedf("code start override on %s", d)
	}
	if err := d.store.Write(ctx, d.info.CodeStartRegister, addr); err != nil {
		return errors.Trace(err)
	}
	if d.info.CodeStartEnableRegister == "" {
		return nil
	}
	return errors.Trace(d.store.Write(ctx, d.info.CodeStartEnableRegister, 1))
}
