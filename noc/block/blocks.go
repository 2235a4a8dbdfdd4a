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
	"fmt"

	"github.com/cesanta/nocdbg/noc/coord"
	"github.com/cesanta/nocdbg/noc/devaddr"
	"github.com/cesanta/nocdbg/noc/register"
	"github.com/cesanta/nocdbg/noc/risc"
)

// Fixed architecture addresses. Configuration and debug registers are at the
// same address in the core-private and the NOC address space.
const (
	ConfigurationBase = 0xFFEF0000
	DebugBase         = 0xFFB12000

	// NOC register blocks of the two planes in tensix and eth tiles.
	Noc0RegisterBase = 0xFFB20000
	Noc1RegisterBase = 0xFFB30000

	TensixL1Size = 0x180000
	EthL1Size    = 0x40000

	LocalMemoryBase  = 0xFFB00000
	NcriscIRAMBase   = 0xFFC00000
	NcriscIRAMSize   = 0x4000
	MaxWatchpoints   = 8
	TensixResetShift = 11
	NcriscResetShift = 18
	EriscResetShift  = 11
)

var tileNocBases = [2]uint64{Noc0RegisterBase, Noc1RegisterBase}

// DRAM controllers have three NOC ports ("stations"); the station of a tile
// is picked by its column.
var dramNocBases = [3][2]uint64{
	{0x100080000, 0x100090000},
	{0x1000A0000, 0x1000B0000},
	{0x1000C0000, 0x1000D0000},
}

// DramStation returns which of the three DRAM NOC ports serves column x.
func DramStation(x int) int {
	return x % 3
}

var pcieNocBases = [2]uint64{0xFFFB20000, 0xFFFB30000}

func tileBases() register.Bases {
	return register.Bases{
		register.KindConfiguration: register.FixedBase(devaddr.PrivateAndNoc(ConfigurationBase, ConfigurationBase)),
		register.KindDebug:         register.FixedBase(devaddr.PrivateAndNoc(DebugBase, DebugBase)),
	}
}

type TensixBlock struct {
	base
}

func NewTensixBlock(loc coord.Location, tr register.Transport) *TensixBlock {
	b := &TensixBlock{}
	b.init(loc, TypeTensix, tensixCatalog, tileBases(), tileNocBases, tr)
	b.l1 = risc.MemoryRegion{Start: 0, Size: TensixL1Size, NocAlias: 0, HasNocAlias: true}
	b.bus = tensixDebugBus
	b.riscs = tensixRiscs(b)
	return b
}

func tensixRiscs(h risc.Host) []*risc.Info {
	local := func(size uint64) risc.MemoryRegion {
		return risc.MemoryRegion{Start: LocalMemoryBase, Size: size}
	}
	res := []*risc.Info{
		{
			Name: "brisc", ID: 0, Host: h,
			LocalMemory:              local(0x1000),
			MaxWatchpoints:           MaxWatchpoints,
			ResetFlagShift:           TensixResetShift,
			BranchPredictionRegister: "DISABLE_RISC_BP_Disable_main",
			BranchPredictionMask:     1 << 0,
			ResetVector:              0,
			DebugHardwarePresent:     true,
		},
	}
	for i := 0; i < 3; i++ {
		res = append(res, &risc.Info{
			Name: trisc(i), ID: i + 1, Host: h,
			LocalMemory:              local(0x800),
			MaxWatchpoints:           MaxWatchpoints,
			ResetFlagShift:           TensixResetShift + uint(i) + 1,
			BranchPredictionRegister: "DISABLE_RISC_BP_Disable_trisc",
			BranchPredictionMask:     1 << uint(i),
			CodeStartRegister:        fmt.Sprintf("TRISC_RESET_PC_SEC%d_PC", i),
			CodeStartEnableRegister:  fmt.Sprintf("TRISC_RESET_PC_OVERRIDE_Reset_PC_Override_en_%d", i),
			ResetVector:              TriscResetVectors[i],
			DebugHardwarePresent:     true,
		})
	}
	iram := risc.MemoryRegion{Start: NcriscIRAMBase, Size: NcriscIRAMSize, NocAlias: NcriscIRAMBase, HasNocAlias: true}
	res = append(res, &risc.Info{
		Name: "ncrisc", ID: 4, Host: h,
		LocalMemory:              local(0x1000),
		CodeMemory:               &iram,
		MaxWatchpoints:           MaxWatchpoints,
		ResetFlagShift:           NcriscResetShift,
		BranchPredictionRegister: "DISABLE_RISC_BP_Disable_ncrisc",
		BranchPredictionMask:     1,
		CodeStartRegister:        "NCRISC_RESET_PC_PC",
		CodeStartEnableRegister:  "NCRISC_RESET_PC_OVERRIDE_Reset_PC_Override_en",
		ResetVector:              NcriscIRAMBase,
		DebugHardwarePresent:     true,
	})
	return res
}

// TriscResetVectors are the default start addresses of trisc0..2.
var TriscResetVectors = [3]uint64{0x6000, 0xA000, 0xE000}

func trisc(i int) string {
	return fmt.Sprintf("trisc%d", i)
}

type EthBlock struct {
	base
}

func NewEthBlock(loc coord.Location, tr register.Transport) *EthBlock {
	b := &EthBlock{}
	b.init(loc, TypeEth, ethCatalog, tileBases(), tileNocBases, tr)
	b.l1 = risc.MemoryRegion{Start: 0, Size: EthL1Size, NocAlias: 0, HasNocAlias: true}
	b.bus = ethDebugBus
	b.riscs = []*risc.Info{{
		Name: "erisc", ID: 0, Host: b,
		LocalMemory:    risc.MemoryRegion{Start: LocalMemoryBase, Size: 0x1000},
		MaxWatchpoints: MaxWatchpoints,
		ResetFlagShift: EriscResetShift,
		ResetVector:    0,
		// The eth core runs link firmware and has no debug interface.
		DebugHardwarePresent: false,
	}}
	return b
}

type DramBlock struct {
	base
	station int
}

func NewDramBlock(loc coord.Location, tr register.Transport) *DramBlock {
	b := &DramBlock{station: DramStation(loc.Noc0().X)}
	b.init(loc, TypeDram, nocCatalog, register.Bases{}, dramNocBases[b.station], tr)
	return b
}

func (b *DramBlock) Station() int {
	return b.station
}

type PcieBlock struct {
	base
}

func NewPcieBlock(loc coord.Location, tr register.Transport) *PcieBlock {
	b := &PcieBlock{}
	b.init(loc, TypePcie, nocCatalog, register.Bases{}, pcieNocBases, tr)
	return b
}

// HarvestedBlock is a disabled tensix tile. Only its router is alive.
type HarvestedBlock struct {
	base
}

func NewHarvestedBlock(loc coord.Location, tr register.Transport) *HarvestedBlock {
	b := &HarvestedBlock{}
	b.init(loc, TypeHarvested, nocCatalog, register.Bases{}, tileNocBases, tr)
	return b
}

type RouterOnlyBlock struct {
	base
}

func NewRouterOnlyBlock(loc coord.Location, tr register.Transport) *RouterOnlyBlock {
	b := &RouterOnlyBlock{}
	b.init(loc, TypeRouterOnly, nocCatalog, register.Bases{}, tileNocBases, tr)
	return b
}
