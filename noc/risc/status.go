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
package risc

import (
	"fmt"
	"strings"
)

// Registers of the core debug interface, reached through the tile's
// RISC_DBG_CNTL/STATUS debug registers.
const (
	dbgRegStatus          = 0
	dbgRegCommand         = 1
	dbgRegArg0            = 2
	dbgRegArg1            = 3
	dbgRegReturn          = 4
	dbgRegWatchpointSetup = 5
	dbgRegWatchpoint0     = 6
)

const (
	cmdHalt          = 0x1
	cmdStep          = 0x2
	cmdContinue      = 0x4
	cmdReadRegister  = 0x8
	cmdWriteRegister = 0x10
	cmdReadMemory    = 0x20
	cmdWriteMemory   = 0x40
	cmdDebugMode     = 0x80000000
)

const (
	statusHalted              = 0x1
	statusPCWatchpointHit     = 0x2
	statusMemoryWatchpointHit = 0x4
	statusEbreakHit           = 0x8
	statusWatchpointHitShift  = 4
)

// Status is one snapshot of the core debug status register. All "why did
// the core halt" decisions must be made from a single Status.
type Status struct {
	Raw uint32

	Halted              bool
	PCWatchpointHit     bool
	MemoryWatchpointHit bool
	EbreakHit           bool
	// WatchpointsHit has bit i set if watchpoint i fired.
	WatchpointsHit uint8
}

func decodeStatus(v uint32) Status {
	return Status{
		Raw:                 v,
		Halted:              v&statusHalted != 0,
		PCWatchpointHit:     v&statusPCWatchpointHit != 0,
		MemoryWatchpointHit: v&statusMemoryWatchpointHit != 0,
		EbreakHit:           v&statusEbreakHit != 0,
		WatchpointsHit:      uint8(v >> statusWatchpointHitShift),
	}
}

func (s Status) WatchpointHit(index int) bool {
	return index >= 0 && index < 8 && s.WatchpointsHit&(1<<uint(index)) != 0
}

// HitWatchpoints returns the indices of all watchpoints that fired.
func (s Status) HitWatchpoints() []int {
	var res []int
	for i := 0; i < 8; i++ {
		if s.WatchpointHit(i) {
			res = append(res, i)
		}
	}
	return res
}

// SelfHalted reports whether the core stopped on its own (ebreak or a
// watchpoint) as opposed to an explicit halt request.
func (s Status) SelfHalted() bool {
	return s.Halted && (s.EbreakHit || s.PCWatchpointHit || s.MemoryWatchpointHit)
}

func (s Status) String() string {
	if !s.Halted {
		return "running"
	}
	var reasons []string
	if s.EbreakHit {
		reasons = append(reasons, "ebreak")
	}
	if s.PCWatchpointHit {
		reasons = append(reasons, "pc-watchpoint")
	}
	if s.MemoryWatchpointHit {
		reasons = append(reasons, "memory-watchpoint")
	}
	for _, i := range s.HitWatchpoints() {
		reasons = append(reasons, fmt.Sprintf("wp%d", i))
	}
	if len(reasons) == 0 {
		return "halted"
	}
	return "halted (" + strings.Join(reasons, ", ") + ")"
}

type WatchpointMode uint32

const (
	WatchpointDisabled    WatchpointMode = 0
	WatchpointPC          WatchpointMode = 1
	WatchpointMemoryRead  WatchpointMode = 2
	WatchpointMemoryWrite WatchpointMode = 4
	WatchpointMemory      WatchpointMode = 6
)

func (m WatchpointMode) String() string {
	switch m {
	case WatchpointDisabled:
		return "disabled"
	case WatchpointPC:
		return "pc"
	case WatchpointMemoryRead:
		return "read"
	case WatchpointMemoryWrite:
		return "write"
	case WatchpointMemory:
		return "access"
	}
	return fmt.Sprintf("mode(%d)", uint32(m))
}

type Watchpoint struct {
	Index   int
	Mode    WatchpointMode
	Address uint32
}

func (w Watchpoint) String() string {
	return fmt.Sprintf("wp%d %s @ 0x%08x", w.Index, w.Mode, w.Address)
}
