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

// Package device discovers the blocks of every chip from a SoC descriptor
// and owns them for the debugging session.
package device

import (
	"context"
	"sort"
	"sync"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/cesanta/nocdbg/common/multierror"
	"github.com/cesanta/nocdbg/noc/block"
	"github.com/cesanta/nocdbg/noc/coord"
	"github.com/cesanta/nocdbg/noc/risc"
	"github.com/cesanta/nocdbg/noc/umd"
)

// Device is one chip. Blocks are built at discovery and replaced as a
// whole by Rediscover, which also drops every cached core controller.
type Device struct {
	ID   int
	MMIO bool

	w     *umd.Wrapper
	desc  *Descriptor
	table *coord.Table

	mu     sync.RWMutex
	blocks map[coord.XY]block.NocBlock
}

// Open discovers all chips the descriptor lists. Every chip must be known
// to the transport.
func Open(w *umd.Wrapper, desc *Descriptor) ([]*Device, error) {
	table, err := desc.Table()
	if err != nil {
		return nil, errors.Trace(err)
	}
	present := map[int]bool{}
	for _, id := range w.Chips() {
		present[id] = true
	}
	var res []*Device
	for _, cd := range desc.Chips {
		if !present[cd.ID] {
			return nil, errors.NotFoundf("chip %d in the transport", cd.ID)
		}
		if mmio := w.IsMMIOCapable(cd.ID); mmio != cd.MMIO {
			glog.Warningf("chip %d: descriptor says mmio=%t, transport says %t", cd.ID, cd.MMIO, mmio)
		}
		d := &Device{ID: cd.ID, MMIO: w.IsMMIOCapable(cd.ID), w: w, desc: desc, table: table}
		if err := d.Rediscover(); err != nil {
			return nil, errors.Trace(err)
		}
		res = append(res, d)
	}
	return res, nil
}

// Rediscover rebuilds all blocks of the chip.
func (d *Device) Rediscover() error {
	types, err := d.desc.Blocks()
	if err != nil {
		return errors.Trace(err)
	}
	blocks := map[coord.XY]block.NocBlock{}
	for xy, t := range types {
		loc, err := coord.NewLocation(d.ID, coord.Noc0, xy, d.table)
		if err != nil {
			return errors.Trace(err)
		}
		b, err := block.New(t, loc, d.w)
		if err != nil {
			return errors.Trace(err)
		}
		blocks[xy] = b
	}
	d.mu.Lock()
	d.blocks = blocks
	d.mu.Unlock()
	glog.V(1).Infof("chip %d: %d blocks", d.ID, len(blocks))
	return nil
}

func (d *Device) Wrapper() *umd.Wrapper {
	return d.w
}

func (d *Device) Table() coord.Translator {
	return d.table
}

func (d *Device) Arch() string {
	return d.desc.Arch
}

// ParseLocation parses a coordinate string (see coord.Parse) on this chip.
func (d *Device) ParseLocation(s string) (coord.Location, error) {
	return coord.Parse(d.ID, s, d.table)
}

func (d *Device) Block(loc coord.Location) (block.NocBlock, error) {
	if loc.Chip != d.ID {
		return nil, errors.NotValidf("location %s on chip %d", loc, d.ID)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.blocks[loc.Noc0()]
	if !ok {
		return nil, errors.NotFoundf("block at %s", loc)
	}
	return b, nil
}

// Blocks returns the blocks of the given types (all if none), sorted by
// NOC0 coordinates.
func (d *Device) Blocks(types ...block.Type) []block.NocBlock {
	want := map[block.Type]bool{}
	for _, t := range types {
		want[t] = true
	}
	d.mu.RLock()
	var res []block.NocBlock
	for _, b := range d.blocks {
		if len(want) == 0 || want[b.Type()] {
			res = append(res, b)
		}
	}
	d.mu.RUnlock()
	sort.Slice(res, func(i, j int) bool {
		a, b := res[i].Location().Noc0(), res[j].Location().Noc0()
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return res
}

// Tunnels returns the tunnel cores of the chip as listed in the descriptor.
func (d *Device) Tunnels() ([]coord.Location, error) {
	var res []coord.Location
	for _, cd := range d.desc.Chips {
		if cd.ID != d.ID {
			continue
		}
		for _, s := range cd.Tunnels {
			xy, err := parseXY(s)
			if err != nil {
				return nil, errors.Trace(err)
			}
			loc, err := coord.NewLocation(d.ID, coord.Noc0, xy, d.table)
			if err != nil {
				return nil, errors.Trace(err)
			}
			res = append(res, loc)
		}
	}
	return res, nil
}

// ResetAllCores asserts or releases the soft reset of every core on the
// chip that has one. Failures do not stop the sweep; they are all returned.
func (d *Device) ResetAllCores(ctx context.Context, assert bool) error {
	var errs error
	for _, b := range d.Blocks(block.TypeTensix, block.TypeEth) {
		for _, ri := range b.Riscs() {
			if !ri.DebugHardwarePresent {
				continue
			}
			rd, err := b.RiscDebug(ri.Name, 0, 0)
			if err == nil {
				err = rd.SetReset(ctx, assert)
			}
			if err != nil {
				errs = multierror.Append(errs, errors.Annotatef(err, "%s", ri))
			}
		}
	}
	return errs
}

// RiscDebug looks up a core by location and name.
func (d *Device) RiscDebug(loc coord.Location, name string, neoID, nocID int) (*risc.Debug, error) {
	b, err := d.Block(loc)
	if err != nil {
		return nil, errors.Trace(err)
	}
	rd, err := b.RiscDebug(name, neoID, nocID)
	return rd, errors.Trace(err)
}
