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

// Package block models the hardware blocks of the NOC grid. All block types
// share one interface and differ only in the register catalogs, base
// addresses and cores they wire in.
package block

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/juju/errors"

	"github.com/cesanta/nocdbg/noc/coord"
	"github.com/cesanta/nocdbg/noc/devaddr"
	"github.com/cesanta/nocdbg/noc/register"
	"github.com/cesanta/nocdbg/noc/risc"
)

type Type int

const (
	TypeTensix Type = iota
	TypeEth
	TypeDram
	TypePcie
	TypeHarvested
	TypeRouterOnly
)

func (t Type) String() string {
	switch t {
	case TypeTensix:
		return "tensix"
	case TypeEth:
		return "eth"
	case TypeDram:
		return "dram"
	case TypePcie:
		return "pcie"
	case TypeHarvested:
		return "harvested"
	case TypeRouterOnly:
		return "router_only"
	}
	return fmt.Sprintf("type(%d)", int(t))
}

func ParseType(s string) (Type, error) {
	for t := TypeTensix; t <= TypeRouterOnly; t++ {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return 0, errors.NotValidf("block type %q", s)
}

// NocBlock is one tile of the grid.
type NocBlock interface {
	Location() coord.Location
	Type() Type
	RegisterStore(nocID int) (*register.Store, error)
	// Riscs returns the cores of the block; blocks without cores return nil.
	Riscs() []*risc.Info
	Risc(name string) (*risc.Info, error)
	// RiscDebug returns the cached debug controller of a core.
	RiscDebug(name string, neoID, nocID int) (*risc.Debug, error)
	// DebugBus returns nil when the block has no debug bus.
	DebugBus() *DebugBus
	// DebugLock is held across debug register sequences of the block.
	DebugLock() sync.Locker
	// L1 is the block's NOC-visible memory; Size is 0 if it has none.
	L1() risc.MemoryRegion
}

type debugKey struct {
	name         string
	neoID, nocID int
}

// base carries everything the concrete blocks have in common.
type base struct {
	loc    coord.Location
	typ    Type
	stores [2]*register.Store
	riscs  []*risc.Info
	bus    *DebugBus
	l1     risc.MemoryRegion
	neos   int

	mu    sync.Mutex
	debug map[debugKey]*risc.Debug

	// dbgMu is shared by the controllers of all cores and planes.
	dbgMu sync.Mutex
}

// nocBases returns the base function for the NOC register groups of one plane.
func nocBases(b register.Bases, nocBase uint64) register.Bases {
	res := register.Bases{}
	for k, v := range b {
		res[k] = v
	}
	nb := register.FixedBase(devaddr.Noc(nocBase))
	res[register.KindNocControl] = nb
	res[register.KindNocConfiguration] = nb
	res[register.KindNocStatus] = nb
	return res
}

func (b *base) init(loc coord.Location, typ Type, catalog register.Catalog, bases register.Bases, nocBase [2]uint64, tr register.Transport) {
	b.loc = loc
	b.typ = typ
	b.neos = 1
	b.debug = map[debugKey]*risc.Debug{}
	for i := range b.stores {
		b.stores[i] = register.NewStore(loc, i, catalog, nocBases(bases, nocBase[i]), tr)
	}
}

func (b *base) Location() coord.Location {
	return b.loc
}

func (b *base) Type() Type {
	return b.typ
}

func (b *base) RegisterStore(nocID int) (*register.Store, error) {
	if nocID < 0 || nocID >= len(b.stores) {
		return nil, errors.NotValidf("noc id %d", nocID)
	}
	return b.stores[nocID], nil
}

func (b *base) Riscs() []*risc.Info {
	return b.riscs
}

func (b *base) Risc(name string) (*risc.Info, error) {
	for _, ri := range b.riscs {
		if ri.Name == name {
			return ri, nil
		}
	}
	var names []string
	for _, ri := range b.riscs {
		names = append(names, ri.Name)
	}
	sort.Strings(names)
	return nil, errors.NotFoundf("core %q on %s %s (have: %s)", name, b.typ, b.loc, strings.Join(names, ", "))
}

func (b *base) RiscDebug(name string, neoID, nocID int) (*risc.Debug, error) {
	ri, err := b.Risc(name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if neoID < 0 || neoID >= b.neos {
		return nil, errors.NotValidf("neo id %d on %s", neoID, b.loc)
	}
	key := debugKey{name: name, neoID: neoID, nocID: nocID}
	b.mu.Lock()
	defer b.mu.Unlock()
	if d := b.debug[key]; d != nil {
		return d, nil
	}
	d, err := risc.NewDebug(ri, neoID, nocID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	b.debug[key] = d
	return d, nil
}

func (b *base) DebugLock() sync.Locker {
	return &b.dbgMu
}

func (b *base) DebugBus() *DebugBus {
	return b.bus
}

func (b *base) L1() risc.MemoryRegion {
	return b.l1
}

func (b *base) String() string {
	return fmt.Sprintf("%s@%s", b.typ, b.loc)
}

// New creates a block of type t at loc. Register access goes through tr.
func New(t Type, loc coord.Location, tr register.Transport) (NocBlock, error) {
	switch t {
	case TypeTensix:
		return NewTensixBlock(loc, tr), nil
	case TypeEth:
		return NewEthBlock(loc, tr), nil
	case TypeDram:
		return NewDramBlock(loc, tr), nil
	case TypePcie:
		return NewPcieBlock(loc, tr), nil
	case TypeHarvested:
		return NewHarvestedBlock(loc, tr), nil
	case TypeRouterOnly:
		return NewRouterOnlyBlock(loc, tr), nil
	}
	return nil, errors.NotValidf("block type %s", t)
}
