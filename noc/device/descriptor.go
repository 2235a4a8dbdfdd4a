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
package device

import (
	"fmt"
	"io/ioutil"
	"sort"

	"github.com/juju/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/cesanta/nocdbg/noc/block"
	"github.com/cesanta/nocdbg/noc/coord"
)

// Descriptor is the SoC description of a device, usually loaded from YAML:
//
//	arch: wormhole
//	grid: {x: 10, y: 12}
//	tensix: [1-1, 2-1, ...]
//	harvested: [1-11, ...]
//	chips:
//	  - {id: 0, mmio: true}
//	  - {id: 1, tunnels: [0-0, 9-0]}
//
// Coordinates are NOC0 "X-Y" strings.
type Descriptor struct {
	Arch string `yaml:"arch"`
	Grid struct {
		X int `yaml:"x"`
		Y int `yaml:"y"`
	} `yaml:"grid"`
	Tensix     []string `yaml:"tensix"`
	Eth        []string `yaml:"eth"`
	Dram       []string `yaml:"dram"`
	Pcie       []string `yaml:"pcie"`
	RouterOnly []string `yaml:"router_only"`
	// Harvested tensix tiles. They must not be listed in Tensix.
	Harvested []string `yaml:"harvested"`
	// Translated maps NOC0 coordinates to translated ones. When present it
	// must list every tile addressed in the translated system.
	Translated map[string]string `yaml:"translated"`
	Chips      []ChipDescriptor  `yaml:"chips"`
}

type ChipDescriptor struct {
	ID      int      `yaml:"id"`
	MMIO    bool     `yaml:"mmio"`
	Tunnels []string `yaml:"tunnels"`
}

func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	d, err := ParseDescriptor(data)
	return d, errors.Annotatef(err, "%s", path)
}

func ParseDescriptor(data []byte) (*Descriptor, error) {
	d := &Descriptor{}
	if err := yaml.UnmarshalStrict(data, d); err != nil {
		return nil, errors.Annotatef(err, "invalid descriptor")
	}
	if d.Grid.X <= 0 || d.Grid.Y <= 0 {
		return nil, errors.NotValidf("grid %dx%d", d.Grid.X, d.Grid.Y)
	}
	if len(d.Chips) == 0 {
		d.Chips = []ChipDescriptor{{ID: 0, MMIO: true}}
	}
	if _, err := d.Blocks(); err != nil {
		return nil, errors.Trace(err)
	}
	return d, nil
}

func parseXY(s string) (coord.XY, error) {
	var xy coord.XY
	var rest string
	if n, _ := fmt.Sscanf(s+"$", "%d-%d%s", &xy.X, &xy.Y, &rest); n != 3 || rest != "$" || xy.X < 0 || xy.Y < 0 {
		return xy, errors.NotValidf("coordinate %q", s)
	}
	return xy, nil
}

// Blocks returns the block type of every listed tile. Tiles not listed are
// router-only.
func (d *Descriptor) Blocks() (map[coord.XY]block.Type, error) {
	res := map[coord.XY]block.Type{}
	for _, l := range []struct {
		t    block.Type
		list []string
	}{
		{block.TypeTensix, d.Tensix},
		{block.TypeEth, d.Eth},
		{block.TypeDram, d.Dram},
		{block.TypePcie, d.Pcie},
		{block.TypeRouterOnly, d.RouterOnly},
		{block.TypeHarvested, d.Harvested},
	} {
		for _, s := range l.list {
			xy, err := parseXY(s)
			if err != nil {
				return nil, errors.Annotatef(err, "%s list", l.t)
			}
			if xy.X >= d.Grid.X || xy.Y >= d.Grid.Y {
				return nil, errors.NotValidf("%s tile %s outside the grid", l.t, xy)
			}
			if prev, ok := res[xy]; ok {
				return nil, errors.NotValidf("tile %s listed as both %s and %s", xy, prev, l.t)
			}
			res[xy] = l.t
		}
	}
	for x := 0; x < d.Grid.X; x++ {
		for y := 0; y < d.Grid.Y; y++ {
			if _, ok := res[coord.XY{X: x, Y: y}]; !ok {
				res[coord.XY{X: x, Y: y}] = block.TypeRouterOnly
			}
		}
	}
	return res, nil
}

// Table builds the coordinate translation table. Logical coordinates number
// the working tensix tiles: columns and rows holding at least one of them,
// in NOC0 order.
func (d *Descriptor) Table() (*coord.Table, error) {
	xs, ys := map[int]bool{}, map[int]bool{}
	var tensix []coord.XY
	for _, s := range d.Tensix {
		xy, err := parseXY(s)
		if err != nil {
			return nil, errors.Trace(err)
		}
		xs[xy.X], ys[xy.Y] = true, true
		tensix = append(tensix, xy)
	}
	index := func(m map[int]bool) map[int]int {
		var keys []int
		for k := range m {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		res := map[int]int{}
		for i, k := range keys {
			res[k] = i
		}
		return res
	}
	xi, yi := index(xs), index(ys)
	logical := map[coord.XY]coord.XY{}
	for _, xy := range tensix {
		logical[coord.XY{X: xi[xy.X], Y: yi[xy.Y]}] = xy
	}
	var translated map[coord.XY]coord.XY
	if len(d.Translated) > 0 {
		translated = map[coord.XY]coord.XY{}
		for from, to := range d.Translated {
			n0, err := parseXY(from)
			if err != nil {
				return nil, errors.Trace(err)
			}
			tr, err := parseXY(to)
			if err != nil {
				return nil, errors.Trace(err)
			}
			translated[tr] = n0
		}
	}
	t, err := coord.NewTable(d.Grid.X, d.Grid.Y, logical, translated)
	return t, errors.Trace(err)
}
