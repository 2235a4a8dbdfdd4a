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

// Package sim is a simulated device implementing umd.Driver: tiles with
// sparse word memory, RV32I cores behind the debug register interface,
// soft reset, instruction caches, the debug bus, tunnels to remote chips and
// the PCI BAR of the local chip.
//
// Cores advance a fixed number of instructions on every transaction.
package sim

import (
	"sort"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/cesanta/nocdbg/noc/coord"
	"github.com/cesanta/nocdbg/noc/umd"
)

const DefaultSteps = 64

type ChipConfig struct {
	ID   int
	MMIO bool
	// Tiles lists the tiles with cores, in NOC0 coordinates. Everything else
	// on the grid is plain memory.
	Tiles map[coord.XY]TileKind
	// Tunnels is the number of tunnel cores a remote chip is reachable through.
	Tunnels int
}

type Config struct {
	Width, Height int
	Chips         []ChipConfig
	// Steps is the number of instructions every running core executes per
	// transaction.
	Steps int
	// NoBlockAccess makes the driver report no large-block support.
	NoBlockAccess bool
	// ReportContinueRace makes a continue command fail when the core halts
	// again within the same transaction.
	ReportContinueRace bool
}

type chip struct {
	cfg    ChipConfig
	tiles  map[coord.XY]*tile
	tunnel int
	broken map[int]bool
	bar    map[uint32]uint32
	telem  map[uint32]uint32
	hung   map[coord.XY]time.Duration
}

// Device is safe for concurrent use.
type Device struct {
	mu     sync.Mutex
	cfg    Config
	steps  int
	noc    int
	chips  map[int]*chip
	closed bool
}

var _ umd.Driver = (*Device)(nil)

func New(cfg Config) (*Device, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.NotValidf("grid %dx%d", cfg.Width, cfg.Height)
	}
	d := &Device{cfg: cfg, steps: cfg.Steps, chips: map[int]*chip{}}
	if d.steps <= 0 {
		d.steps = DefaultSteps
	}
	for _, cc := range cfg.Chips {
		if _, ok := d.chips[cc.ID]; ok {
			return nil, errors.NotValidf("duplicate chip %d", cc.ID)
		}
		if !cc.MMIO && cc.Tunnels <= 0 {
			return nil, errors.NotValidf("remote chip %d without tunnels", cc.ID)
		}
		c := &chip{
			cfg:    cc,
			tiles:  map[coord.XY]*tile{},
			broken: map[int]bool{},
			bar:    map[uint32]uint32{},
			telem:  map[uint32]uint32{},
			hung:   map[coord.XY]time.Duration{},
		}
		for xy, kind := range cc.Tiles {
			if xy.X < 0 || xy.Y < 0 || xy.X >= cfg.Width || xy.Y >= cfg.Height {
				return nil, errors.NotValidf("tile %s outside the %dx%d grid", xy, cfg.Width, cfg.Height)
			}
			c.tiles[xy] = newTile(d, kind, xy)
		}
		c.telem[TelemetryBoardIDLow] = 0x5ca1ab1e
		c.telem[TelemetryBoardIDHigh] = uint32(cc.ID)
		c.telem[TelemetryASICTemperature] = 45 << 4
		c.telem[TelemetryAICLK] = 1000
		d.chips[cc.ID] = c
	}
	return d, nil
}

// Telemetry tags served by the simulated firmware.
const (
	TelemetryBoardIDHigh     = 1
	TelemetryBoardIDLow      = 2
	TelemetryASICTemperature = 11
	TelemetryAICLK           = 14
)

func (d *Device) chipLocked(id int) (*chip, error) {
	if d.closed {
		return nil, errors.New("device closed")
	}
	c, ok := d.chips[id]
	if !ok {
		return nil, errors.NotFoundf("chip %d", id)
	}
	return c, nil
}

// noc0 maps coordinates of the selected plane to NOC0.
func (d *Device) noc0(x, y int) coord.XY {
	if d.noc == 1 {
		return coord.XY{X: d.cfg.Width - 1 - x, Y: d.cfg.Height - 1 - y}
	}
	return coord.XY{X: x, Y: y}
}

// tileLocked runs the cores and returns the addressed tile, creating a
// plain memory tile on first access.
func (d *Device) tileLocked(chipID, x, y int) (*chip, *tile, error) {
	c, err := d.chipLocked(chipID)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	if !c.cfg.MMIO && c.broken[c.tunnel] {
		return nil, nil, errors.Errorf("chip %d: no response through tunnel %d", chipID, c.tunnel)
	}
	xy := d.noc0(x, y)
	if xy.X < 0 || xy.Y < 0 || xy.X >= d.cfg.Width || xy.Y >= d.cfg.Height {
		return nil, nil, errors.NotValidf("coordinates %d-%d on noc%d", x, y, d.noc)
	}
	d.tickLocked()
	t := c.tiles[xy]
	if t == nil {
		t = newTile(d, TileOther, xy)
		c.tiles[xy] = t
	}
	return c, t, nil
}

func (d *Device) tickLocked() {
	for _, c := range d.chips {
		for _, t := range c.tiles {
			t.tick(d.steps)
		}
	}
}

func (d *Device) SelectNoc(nocID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if nocID != 0 && nocID != 1 {
		return errors.NotValidf("noc %d", nocID)
	}
	d.noc = nocID
	return nil
}

func (d *Device) Read32(chipID, x, y int, addr uint64) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, t, err := d.tileLocked(chipID, x, y)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if delay, ok := c.hung[t.xy]; ok {
		time.Sleep(delay)
		return umd.StuckValue, nil
	}
	return t.read(addr, coord.XY{X: x, Y: y}), nil
}

func (d *Device) Write32(chipID, x, y int, addr uint64, value uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, t, err := d.tileLocked(chipID, x, y)
	if err != nil {
		return errors.Trace(err)
	}
	if delay, ok := c.hung[t.xy]; ok {
		time.Sleep(delay)
		return nil
	}
	if t.write(addr, value) && d.cfg.ReportContinueRace {
		return errors.Errorf("chip %d %s: core failed to continue", chipID, t.xy)
	}
	return nil
}

func (d *Device) ReadBlock(chipID, x, y int, addr uint64, buf []byte) error {
	for i := 0; i+4 <= len(buf); i += 4 {
		v, err := d.Read32(chipID, x, y, addr+uint64(i))
		if err != nil {
			return errors.Trace(err)
		}
		buf[i], buf[i+1], buf[i+2], buf[i+3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
	}
	return nil
}

func (d *Device) WriteBlock(chipID, x, y int, addr uint64, data []byte) error {
	for i := 0; i+4 <= len(data); i += 4 {
		v := uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
		if err := d.Write32(chipID, x, y, addr+uint64(i), v); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (d *Device) SupportsBlockAccess() bool {
	return !d.cfg.NoBlockAccess
}

func (d *Device) Chips() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	var res []int
	for id := range d.chips {
		res = append(res, id)
	}
	sort.Ints(res)
	return res
}

func (d *Device) IsMMIOCapable(chipID int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.chips[chipID]
	return ok && c.cfg.MMIO
}

func (d *Device) SwitchTunnel(chipID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, err := d.chipLocked(chipID)
	if err != nil {
		return errors.Trace(err)
	}
	if c.cfg.MMIO {
		return errors.NotSupportedf("tunnel switch on local chip %d", chipID)
	}
	c.tunnel = (c.tunnel + 1) % c.cfg.Tunnels
	glog.Infof("sim: chip %d now uses tunnel %d", chipID, c.tunnel)
	return nil
}

func (d *Device) mmioChipLocked(chipID int) (*chip, error) {
	c, err := d.chipLocked(chipID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !c.cfg.MMIO {
		return nil, errors.NotSupportedf("BAR access to remote chip %d", chipID)
	}
	return c, nil
}

func (d *Device) ReadBar32(chipID int, addr uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, err := d.mmioChipLocked(chipID)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return c.bar[addr&^3], nil
}

func (d *Device) WriteBar32(chipID int, addr uint32, value uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, err := d.mmioChipLocked(chipID)
	if err != nil {
		return errors.Trace(err)
	}
	c.bar[addr&^3] = value
	return nil
}

func (d *Device) ReadTelemetry(chipID int, tag uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, err := d.mmioChipLocked(chipID)
	if err != nil {
		return 0, errors.Trace(err)
	}
	v, ok := c.telem[tag]
	if !ok {
		return 0, errors.NotFoundf("telemetry tag %d", tag)
	}
	return v, nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// BreakTunnel makes transactions routed through tunnel index of a remote
// chip fail until RepairTunnel.
func (d *Device) BreakTunnel(chipID, index int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.chips[chipID]; ok {
		c.broken[index] = true
	}
}

func (d *Device) RepairTunnel(chipID, index int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.chips[chipID]; ok {
		delete(c.broken, index)
	}
}

// ActiveTunnel returns the tunnel index used for a remote chip.
func (d *Device) ActiveTunnel(chipID int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.chips[chipID]; ok {
		return c.tunnel
	}
	return -1
}

// Hang makes the tile at NOC0 xy stop responding: every transaction takes
// delay and reads return the stuck value. A zero delay un-hangs it.
func (d *Device) Hang(chipID int, xy coord.XY, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.chips[chipID]
	if !ok {
		return
	}
	if delay == 0 {
		delete(c.hung, xy)
		return
	}
	c.hung[xy] = delay
}

// CoreState is a snapshot of a simulated core, for tests.
type CoreState struct {
	PC      uint32
	InReset bool
	Halted  bool
	Retired uint64
}

func (d *Device) Core(chipID int, xy coord.XY, name string) (CoreState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, err := d.chipLocked(chipID)
	if err != nil {
		return CoreState{}, errors.Trace(err)
	}
	if t := c.tiles[xy]; t != nil {
		for _, cr := range t.cores {
			if cr.name == name {
				return CoreState{PC: cr.pc, InReset: cr.inReset, Halted: cr.halted, Retired: cr.retired}, nil
			}
		}
	}
	return CoreState{}, errors.NotFoundf("core %s at %s", name, xy)
}
