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
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/juju/errors"

	"github.com/cesanta/nocdbg/cli/devutil"
	"github.com/cesanta/nocdbg/cli/flags"
	"github.com/cesanta/nocdbg/cli/ourutil"
	"github.com/cesanta/nocdbg/noc/block"
	"github.com/cesanta/nocdbg/noc/risc"
)

var (
	colorRunning = color.New(color.FgGreen)
	colorHalted  = color.New(color.FgYellow)
	colorReset   = color.New(color.FgRed)
)

// coreState is one line of the status table.
type coreState struct {
	name  string
	state string
	c     *color.Color
	pc    string
}

func readCoreState(ctx context.Context, b block.NocBlock, ri *risc.Info) coreState {
	cs := coreState{name: ri.Name, pc: "-"}
	fail := func(err error) coreState {
		cs.state, cs.c = err.Error(), colorReset
		return cs
	}
	if !ri.DebugHardwarePresent {
		cs.state, cs.c = "no debug hardware", color.New(color.Faint)
		return cs
	}
	rd, err := b.RiscDebug(ri.Name, *flags.Neo, *flags.Noc)
	if err != nil {
		return fail(err)
	}
	inReset, err := rd.IsInReset(ctx)
	if err != nil {
		return fail(err)
	}
	if inReset {
		cs.state, cs.c = "in reset", colorReset
		return cs
	}
	st, err := rd.ReadStatus(ctx)
	if err != nil {
		return fail(err)
	}
	cs.state = st.String()
	if st.Halted {
		cs.c = colorHalted
		if pc, err := rd.ReadGPR(ctx, risc.PCRegisterIndex); err == nil {
			cs.pc = fmt.Sprintf("0x%08x", pc)
		}
		return cs
	}
	cs.c = colorRunning
	// A running core's PC is only visible on the debug bus.
	if bus := b.DebugBus(); bus != nil {
		if pc, err := bus.Read(ctx, b, *flags.Noc, ri.Name+"_pc"); err == nil {
			cs.pc = fmt.Sprintf("~0x%08x", pc)
		}
	}
	return cs
}

func status(ctx context.Context, s *devutil.Session) error {
	a, err := args(1, 1)
	if err != nil {
		return errors.Trace(err)
	}
	_, b, err := locate(s, a[0])
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Printf("%s %s\n", b.Type(), b.Location())
	if len(b.Riscs()) == 0 {
		fmt.Println("  no cores")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, ri := range b.Riscs() {
		cs := readCoreState(ctx, b, ri)
		fmt.Fprintf(w, "  %s\t%s\t%s\n", cs.name, cs.c.Sprint(cs.state), cs.pc)
	}
	return errors.Trace(w.Flush())
}

func printStatus(ctx context.Context, rd *risc.Debug) error {
	st, err := rd.ReadStatus(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	c := colorRunning
	if st.Halted {
		c = colorHalted
	}
	fmt.Printf("%s: %s\n", rd, c.Sprint(st))
	return nil
}

func halt(ctx context.Context, s *devutil.Session) error {
	a, err := args(1, 1)
	if err != nil {
		return errors.Trace(err)
	}
	rd, err := core(s, a[0])
	if err != nil {
		return errors.Trace(err)
	}
	if err := rd.Halt(ctx); err != nil {
		return errors.Trace(err)
	}
	pc, err := rd.ReadGPR(ctx, risc.PCRegisterIndex)
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Printf("%s: halted at 0x%08x\n", rd, pc)
	return nil
}

func cont(ctx context.Context, s *devutil.Session) error {
	a, err := args(1, 1)
	if err != nil {
		return errors.Trace(err)
	}
	rd, err := core(s, a[0])
	if err != nil {
		return errors.Trace(err)
	}
	if err := rd.Continue(ctx); err != nil {
		return errors.Trace(err)
	}
	return printStatus(ctx, rd)
}

func step(ctx context.Context, s *devutil.Session) error {
	a, err := args(1, 2)
	if err != nil {
		return errors.Trace(err)
	}
	count := 1
	if len(a) > 1 {
		if count, err = strconv.Atoi(a[1]); err != nil || count < 1 {
			return errors.NotValidf("step count %q", a[1])
		}
	}
	rd, err := core(s, a[0])
	if err != nil {
		return errors.Trace(err)
	}
	for i := 0; i < count; i++ {
		if err := rd.Step(ctx); err != nil {
			return errors.Annotatef(err, "step %d", i)
		}
	}
	pc, err := rd.ReadGPR(ctx, risc.PCRegisterIndex)
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Printf("%s: pc 0x%08x\n", rd, pc)
	return nil
}

func reset(ctx context.Context, s *devutil.Session) error {
	a, err := args(2, 2)
	if err != nil {
		return errors.Trace(err)
	}
	assert, err := parseOnOff(a[1])
	if err != nil {
		return errors.Trace(err)
	}
	if a[0] == "all" {
		dev, err := s.Device(*flags.Chip)
		if err != nil {
			return errors.Trace(err)
		}
		if !*flags.Force && !ourutil.Confirm(os.Stdin, fmt.Sprintf("Change reset of every core on chip %d?", dev.ID)) {
			return errors.New("cancelled")
		}
		if err := dev.ResetAllCores(ctx, assert); err != nil {
			return errors.Trace(err)
		}
		reportf("chip %d: all cores %s", dev.ID, map[bool]string{true: "held in reset", false: "released"}[assert])
		return nil
	}
	rd, err := core(s, a[0])
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(rd.SetReset(ctx, assert))
}

func gpr(ctx context.Context, s *devutil.Session) error {
	a, err := args(1, -1)
	if err != nil {
		return errors.Trace(err)
	}
	rd, err := core(s, a[0])
	if err != nil {
		return errors.Trace(err)
	}
	var regs []int
	for _, n := range a[1:] {
		i, err := parseGPR(n)
		if err != nil {
			return errors.Trace(err)
		}
		regs = append(regs, i)
	}
	if len(regs) == 0 {
		for i := 0; i <= risc.PCRegisterIndex; i++ {
			regs = append(regs, i)
		}
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, i := range regs {
		v, err := rd.ReadGPR(ctx, i)
		if err != nil {
			return errors.Trace(err)
		}
		abi := ""
		if i < len(abiNames) {
			abi = abiNames[i]
		}
		fmt.Fprintf(w, "%s\t%s\t0x%08x\t%d\n", gprName(i), abi, v, int32(v))
	}
	return errors.Trace(w.Flush())
}

func writeGPR(ctx context.Context, s *devutil.Session) error {
	a, err := args(3, 3)
	if err != nil {
		return errors.Trace(err)
	}
	i, err := parseGPR(a[1])
	if err != nil {
		return errors.Trace(err)
	}
	v, err := parseUint32(a[2])
	if err != nil {
		return errors.Trace(err)
	}
	rd, err := core(s, a[0])
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(rd.WriteGPR(ctx, i, v))
}

func parseWatchMode(s string) (risc.WatchpointMode, error) {
	for _, m := range []risc.WatchpointMode{
		risc.WatchpointDisabled, risc.WatchpointPC, risc.WatchpointMemoryRead,
		risc.WatchpointMemoryWrite, risc.WatchpointMemory,
	} {
		if m.String() == s {
			return m, nil
		}
	}
	if s == "off" {
		return risc.WatchpointDisabled, nil
	}
	return 0, errors.NotValidf("watchpoint mode %q", s)
}

func watch(ctx context.Context, s *devutil.Session) error {
	a, err := args(1, 4)
	if err != nil {
		return errors.Trace(err)
	}
	rd, err := core(s, a[0])
	if err != nil {
		return errors.Trace(err)
	}
	if len(a) == 1 {
		wps, err := rd.ReadWatchpoints(ctx)
		if err != nil {
			return errors.Trace(err)
		}
		for _, wp := range wps {
			fmt.Println(wp)
		}
		return nil
	}
	if len(a) < 3 {
		return errors.Errorf("invalid arguments, see \"help watch\"")
	}
	index, err := strconv.Atoi(a[1])
	if err != nil {
		return errors.NotValidf("watchpoint index %q", a[1])
	}
	mode, err := parseWatchMode(a[2])
	if err != nil {
		return errors.Trace(err)
	}
	if mode == risc.WatchpointDisabled {
		return errors.Trace(rd.DisableWatchpoint(ctx, index))
	}
	if len(a) != 4 {
		return errors.Errorf("watchpoint address is required")
	}
	addr, err := parseUint32(a[3])
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(rd.SetWatchpoint(ctx, index, mode, addr))
}
