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

// Package coord addresses tiles on a chip. The native system is NOC0;
// NOC1, logical and translated coordinates are reached through a Translator
// built from tables in the device descriptor. Nothing here knows about
// harvesting: harvested rows only show up as holes in those tables.
package coord

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

type System int

const (
	Noc0 System = iota
	Noc1
	Logical
	Translated
)

func (s System) String() string {
	switch s {
	case Noc0:
		return "noc0"
	case Noc1:
		return "noc1"
	case Logical:
		return "logical"
	case Translated:
		return "translated"
	}
	return fmt.Sprintf("system(%d)", int(s))
}

func ParseSystem(s string) (System, error) {
	switch strings.ToLower(s) {
	case "noc0":
		return Noc0, nil
	case "noc1":
		return Noc1, nil
	case "logical":
		return Logical, nil
	case "translated":
		return Translated, nil
	}
	return 0, errors.NotValidf("coordinate system %q", s)
}

type XY struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

func (xy XY) String() string {
	return fmt.Sprintf("%d-%d", xy.X, xy.Y)
}

// Translator converts between NOC0 and the other systems.
type Translator interface {
	GridSize() (width, height int)
	ToNoc0(sys System, xy XY) (XY, error)
	FromNoc0(sys System, xy XY) (XY, error)
}

// Table is a Translator backed by explicit lookup tables.
type Table struct {
	width, height int

	logicalToNoc0    map[XY]XY
	noc0ToLogical    map[XY]XY
	translatedToNoc0 map[XY]XY
	noc0ToTranslated map[XY]XY
}

// NewTable builds a translator. logical and translated map the respective
// system to NOC0; a nil translated table means translated == NOC0.
func NewTable(width, height int, logical, translated map[XY]XY) (*Table, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.NotValidf("grid size %dx%d", width, height)
	}
	t := &Table{
		width:            width,
		height:           height,
		logicalToNoc0:    map[XY]XY{},
		noc0ToLogical:    map[XY]XY{},
		translatedToNoc0: map[XY]XY{},
		noc0ToTranslated: map[XY]XY{},
	}
	add := func(fwd, rev map[XY]XY, src map[XY]XY, what string) error {
		for k, v := range src {
			if !t.inGrid(v) {
				return errors.NotValidf("%s %s maps outside the grid (%s)", what, k, v)
			}
			if prev, ok := rev[v]; ok {
				return errors.NotValidf("%s %s and %s both map to %s", what, prev, k, v)
			}
			fwd[k] = v
			rev[v] = k
		}
		return nil
	}
	if err := add(t.logicalToNoc0, t.noc0ToLogical, logical, "logical"); err != nil {
		return nil, errors.Trace(err)
	}
	if err := add(t.translatedToNoc0, t.noc0ToTranslated, translated, "translated"); err != nil {
		return nil, errors.Trace(err)
	}
	return t, nil
}

func (t *Table) GridSize() (int, int) {
	return t.width, t.height
}

func (t *Table) inGrid(xy XY) bool {
	return xy.X >= 0 && xy.Y >= 0 && xy.X < t.width && xy.Y < t.height
}

func (t *Table) ToNoc0(sys System, xy XY) (XY, error) {
	switch sys {
	case Noc0:
		if !t.inGrid(xy) {
			return XY{}, errors.NotValidf("noc0 %s", xy)
		}
		return xy, nil
	case Noc1:
		res := XY{t.width - 1 - xy.X, t.height - 1 - xy.Y}
		if !t.inGrid(res) {
			return XY{}, errors.NotValidf("noc1 %s", xy)
		}
		return res, nil
	case Logical:
		res, ok := t.logicalToNoc0[xy]
		if !ok {
			return XY{}, errors.NotFoundf("logical %s", xy)
		}
		return res, nil
	case Translated:
		if len(t.translatedToNoc0) == 0 {
			return t.ToNoc0(Noc0, xy)
		}
		res, ok := t.translatedToNoc0[xy]
		if !ok {
			return XY{}, errors.NotFoundf("translated %s", xy)
		}
		return res, nil
	}
	return XY{}, errors.NotValidf("coordinate system %s", sys)
}

func (t *Table) FromNoc0(sys System, xy XY) (XY, error) {
	if !t.inGrid(xy) {
		return XY{}, errors.NotValidf("noc0 %s", xy)
	}
	switch sys {
	case Noc0:
		return xy, nil
	case Noc1:
		return XY{t.width - 1 - xy.X, t.height - 1 - xy.Y}, nil
	case Logical:
		res, ok := t.noc0ToLogical[xy]
		if !ok {
			return XY{}, errors.NotFoundf("logical coordinate for noc0 %s", xy)
		}
		return res, nil
	case Translated:
		if len(t.noc0ToTranslated) == 0 {
			return xy, nil
		}
		res, ok := t.noc0ToTranslated[xy]
		if !ok {
			return XY{}, errors.NotFoundf("translated coordinate for noc0 %s", xy)
		}
		return res, nil
	}
	return XY{}, errors.NotValidf("coordinate system %s", sys)
}

// Location is one tile on one chip.
type Location struct {
	Chip int
	noc0 XY
	tr   Translator
}

func NewLocation(chip int, sys System, xy XY, tr Translator) (Location, error) {
	noc0, err := tr.ToNoc0(sys, xy)
	if err != nil {
		return Location{}, errors.Trace(err)
	}
	return Location{Chip: chip, noc0: noc0, tr: tr}, nil
}

func (l Location) Noc0() XY {
	return l.noc0
}

// NocXY returns coordinates to use for transactions on the given NOC plane.
func (l Location) NocXY(nocID int) (XY, error) {
	switch nocID {
	case 0:
		return l.noc0, nil
	case 1:
		return l.tr.FromNoc0(Noc1, l.noc0)
	}
	return XY{}, errors.NotValidf("noc id %d", nocID)
}

func (l Location) In(sys System) (XY, error) {
	return l.tr.FromNoc0(sys, l.noc0)
}

func (l Location) String() string {
	return fmt.Sprintf("chip%d:%s", l.Chip, l.noc0)
}

var (
	reNoc0    = regexp.MustCompile(`^(\d+)-(\d+)$`)
	reLogical = regexp.MustCompile(`^(\d+),(\d+)$`)
	rePrefix  = regexp.MustCompile(`^([a-z0-9]+):(\d+)[-,](\d+)$`)
)

// Parse accepts "X-Y" (NOC0), "X,Y" (logical) and "system:X-Y".
func Parse(chip int, s string, tr Translator) (Location, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	atoi := func(a, b string) (XY, error) {
		x, err := strconv.Atoi(a)
		if err != nil {
			return XY{}, errors.NotValidf("coordinate %q", s)
		}
		y, err := strconv.Atoi(b)
		if err != nil {
			return XY{}, errors.NotValidf("coordinate %q", s)
		}
		return XY{x, y}, nil
	}
	var (
		sys  System
		x, y string
	)
	if m := reNoc0.FindStringSubmatch(s); m != nil {
		sys, x, y = Noc0, m[1], m[2]
	} else if m := reLogical.FindStringSubmatch(s); m != nil {
		sys, x, y = Logical, m[1], m[2]
	} else if m := rePrefix.FindStringSubmatch(s); m != nil {
		var err error
		if sys, err = ParseSystem(m[1]); err != nil {
			return Location{}, errors.Trace(err)
		}
		x, y = m[2], m[3]
	} else {
		return Location{}, errors.NotValidf("coordinate %q", s)
	}
	xy, err := atoi(x, y)
	if err != nil {
		return Location{}, errors.Trace(err)
	}
	return NewLocation(chip, sys, xy, tr)
}
