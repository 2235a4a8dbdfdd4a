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
package runelf

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/cesanta/nocdbg/noc/elfload"
	"github.com/cesanta/nocdbg/noc/risc"
)

// MailboxValue is written by the firmware to its mailbox once it runs.
const MailboxValue = 0xFFB1208C

// Symbols the verification firmware exports.
const (
	SymMailbox  = "mailbox"
	SymCommand  = "debug_command"
	SymDone     = "debug_done"
	SymPCTarget = "pc_watchpoint_target"
	SymData     = "watch_data"
)

// Offsets from watch_data the memory watchpoints are put at, one per
// comparator. Adjacent bytes across a word boundary catch comparators that
// match whole words.
var memoryWatchOffsets = []uint64{0, 3, 4, 5}

type VerifyOptions struct {
	// Mailbox is used when the image has no mailbox symbol.
	Mailbox uint64
	// HaltCycles is the number of halt/continue rounds.
	HaltCycles   int
	PollAttempts int
	PollInterval time.Duration
	// Progress, if set, is called with a line per completed step.
	Progress func(format string, args ...interface{})
}

// debugger is the part of *risc.Debug the script drives.
type debugger interface {
	ReadStatus(ctx context.Context) (risc.Status, error)
	IsHalted(ctx context.Context) (bool, error)
	Halt(ctx context.Context) error
	Continue(ctx context.Context) error
	ReadGPR(ctx context.Context, index int) (uint32, error)
	SetWatchpointOnPCAddress(ctx context.Context, index int, addr uint32) error
	SetWatchpointOnMemoryWrite(ctx context.Context, index int, addr uint32) error
	DisableWatchpoint(ctx context.Context, index int) error
}

type verifier struct {
	rd   debugger
	ld   *elfload.Loader
	f    *elfload.File
	opts VerifyOptions
}

// Verify drives the script against the firmware started by Run.
// Phases whose symbols the image does not export are skipped.
func Verify(ctx context.Context, rd *risc.Debug, ld *elfload.Loader, f *elfload.File, opts VerifyOptions) error {
	if opts.HaltCycles <= 0 {
		opts.HaltCycles = 3
	}
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = 1000
	}
	v := &verifier{rd: rd, ld: ld, f: f, opts: opts}
	if err := v.mailbox(ctx); err != nil {
		return errors.Annotatef(err, "mailbox")
	}
	if err := v.haltCycles(ctx); err != nil {
		return errors.Annotatef(err, "halt/continue")
	}
	if v.has(SymCommand, SymDone, SymPCTarget) {
		if err := v.pcWatchpoint(ctx); err != nil {
			return errors.Annotatef(err, "pc watchpoint")
		}
	} else {
		v.report("pc watchpoint: skipped, image has no %s", SymPCTarget)
	}
	if v.has(SymCommand, SymDone, SymData) {
		if err := v.memoryWatchpoints(ctx); err != nil {
			return errors.Annotatef(err, "memory watchpoints")
		}
	} else {
		v.report("memory watchpoints: skipped, image has no %s", SymData)
	}
	return nil
}

func (v *verifier) report(format string, args ...interface{}) {
	glog.Infof(format, args...)
	if v.opts.Progress != nil {
		v.opts.Progress(format, args...)
	}
}

func (v *verifier) has(names ...string) bool {
	for _, n := range names {
		if _, err := v.f.SymbolAddress(n); err != nil {
			return false
		}
	}
	return true
}

func (v *verifier) sym(name string) uint64 {
	a, _ := v.f.SymbolAddress(name)
	return a
}

func (v *verifier) readWord(ctx context.Context, addr uint64) (uint32, error) {
	b, err := v.ld.ReadMemory(ctx, addr, 4)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (v *verifier) writeWord(ctx context.Context, addr uint64, value uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], value)
	return errors.Trace(v.ld.WriteMemory(ctx, addr, b[:]))
}

// poll calls cond until it returns true or the attempts run out.
func (v *verifier) poll(what string, cond func() (bool, error)) error {
	for i := 0; i < v.opts.PollAttempts; i++ {
		ok, err := cond()
		if err != nil {
			return errors.Trace(err)
		}
		if ok {
			return nil
		}
		if v.opts.PollInterval > 0 {
			time.Sleep(v.opts.PollInterval)
		}
	}
	return errors.Errorf("timed out waiting for %s", what)
}

func (v *verifier) mailbox(ctx context.Context) error {
	addr := v.opts.Mailbox
	if v.has(SymMailbox) {
		addr = v.sym(SymMailbox)
	}
	var last uint32
	err := v.poll(fmt.Sprintf("mailbox at 0x%x", addr), func() (bool, error) {
		var err error
		last, err = v.readWord(ctx, addr)
		return last == MailboxValue, err
	})
	if err != nil {
		return errors.Annotatef(err, "last value 0x%08x", last)
	}
	v.report("mailbox: 0x%08x", last)
	return nil
}

func (v *verifier) expectRunning(ctx context.Context) error {
	halted, err := v.rd.IsHalted(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	if halted {
		st, err := v.rd.ReadStatus(ctx)
		if err != nil {
			return errors.Annotatef(err, "core unexpectedly halted")
		}
		return errors.Errorf("core unexpectedly halted: %s", st)
	}
	return nil
}

func (v *verifier) haltCycles(ctx context.Context) error {
	for i := 0; i < v.opts.HaltCycles; i++ {
		if err := v.rd.Halt(ctx); err != nil {
			return errors.Trace(err)
		}
		halted, err := v.rd.IsHalted(ctx)
		if err != nil {
			return errors.Trace(err)
		}
		if !halted {
			return errors.Errorf("round %d: not halted after halt", i)
		}
		pc, err := v.rd.ReadGPR(ctx, risc.PCRegisterIndex)
		if err != nil {
			return errors.Trace(err)
		}
		glog.V(1).Infof("round %d: pc 0x%08x", i, pc)
		if err := v.rd.Continue(ctx); err != nil {
			return errors.Trace(err)
		}
		if err := v.expectRunning(ctx); err != nil {
			return errors.Annotatef(err, "round %d", i)
		}
	}
	v.report("halt/continue: %d rounds", v.opts.HaltCycles)
	return nil
}

// trigger makes the firmware run its body once.
func (v *verifier) trigger(ctx context.Context) (uint32, error) {
	done, err := v.readWord(ctx, v.sym(SymDone))
	if err != nil {
		return 0, errors.Trace(err)
	}
	return done, errors.Trace(v.writeWord(ctx, v.sym(SymCommand), 1))
}

func (v *verifier) waitDone(ctx context.Context, prev uint32) error {
	return v.poll("firmware pass", func() (bool, error) {
		d, err := v.readWord(ctx, v.sym(SymDone))
		return d != prev, err
	})
}

func (v *verifier) waitHalted(ctx context.Context) (risc.Status, error) {
	var st risc.Status
	err := v.poll("halt", func() (bool, error) {
		var err error
		st, err = v.rd.ReadStatus(ctx)
		return st.Halted, err
	})
	return st, err
}

func (v *verifier) pcWatchpoint(ctx context.Context) error {
	target := v.sym(SymPCTarget)

	// Without a watchpoint the body runs through.
	prev, err := v.trigger(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	if err := v.waitDone(ctx, prev); err != nil {
		return errors.Trace(err)
	}
	if err := v.expectRunning(ctx); err != nil {
		return errors.Trace(err)
	}

	if err := v.rd.Halt(ctx); err != nil {
		return errors.Trace(err)
	}
	if err := v.rd.SetWatchpointOnPCAddress(ctx, 0, uint32(target)); err != nil {
		return errors.Trace(err)
	}
	if err := v.rd.Continue(ctx); err != nil {
		return errors.Trace(err)
	}
	if prev, err = v.trigger(ctx); err != nil {
		return errors.Trace(err)
	}
	st, err := v.waitHalted(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	if !st.PCWatchpointHit || !st.WatchpointHit(0) || st.EbreakHit {
		return errors.Errorf("unexpected status %s", st)
	}
	pc, err := v.rd.ReadGPR(ctx, risc.PCRegisterIndex)
	if err != nil {
		return errors.Trace(err)
	}
	if uint64(pc) != target {
		return errors.Errorf("halted at 0x%x, want 0x%x", pc, target)
	}
	if err := v.rd.DisableWatchpoint(ctx, 0); err != nil {
		return errors.Trace(err)
	}
	if err := v.rd.Continue(ctx); err != nil {
		return errors.Trace(err)
	}
	if err := v.waitDone(ctx, prev); err != nil {
		return errors.Trace(err)
	}
	v.report("pc watchpoint: hit at 0x%x", target)
	return nil
}

func (v *verifier) memoryWatchpoints(ctx context.Context) error {
	data := v.sym(SymData)
	if err := v.rd.Halt(ctx); err != nil {
		return errors.Trace(err)
	}
	for i, off := range memoryWatchOffsets {
		if err := v.rd.SetWatchpointOnMemoryWrite(ctx, i, uint32(data+off)); err != nil {
			return errors.Trace(err)
		}
	}
	if err := v.rd.Continue(ctx); err != nil {
		return errors.Trace(err)
	}
	prev, err := v.trigger(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	for i, off := range memoryWatchOffsets {
		st, err := v.waitHalted(ctx)
		if err != nil {
			return errors.Annotatef(err, "write to data+%d", off)
		}
		hits := st.HitWatchpoints()
		if !st.MemoryWatchpointHit || len(hits) != 1 || hits[0] != i {
			return errors.Errorf("write to data+%d: want wp%d only, got %s", off, i, st)
		}
		if err := v.rd.Continue(ctx); err != nil {
			return errors.Trace(err)
		}
	}
	if err := v.waitDone(ctx, prev); err != nil {
		return errors.Trace(err)
	}
	if err := v.rd.Halt(ctx); err != nil {
		return errors.Trace(err)
	}
	for i := range memoryWatchOffsets {
		if err := v.rd.DisableWatchpoint(ctx, i); err != nil {
			return errors.Trace(err)
		}
	}
	if err := v.rd.Continue(ctx); err != nil {
		return errors.Trace(err)
	}
	v.report("memory watchpoints: %d byte writes caught by the right comparator", len(memoryWatchOffsets))
	return nil
}
