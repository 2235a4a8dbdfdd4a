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

// Package pcibar gives direct access to a chip's PCI BAR through the
// resource file sysfs exposes for it, and a driver decorator that routes
// BAR accesses of local chips there.
package pcibar

import (
	"fmt"
	"path/filepath"

	"github.com/juju/errors"

	"github.com/cesanta/nocdbg/noc/umd"
)

// ResourcePath returns the sysfs file of BAR n of the PCI function at bdf,
// e.g. "0000:01:00.0".
func ResourcePath(bdf string, n int) string {
	return filepath.Join("/sys/bus/pci/devices", bdf, fmt.Sprintf("resource%d", n))
}

func (b *Bar) check(addr uint32) error {
	if addr%4 != 0 {
		return errors.NotValidf("unaligned BAR address 0x%x", addr)
	}
	if uint64(addr)+4 > uint64(b.Size()) {
		return errors.NotValidf("BAR address 0x%x (size 0x%x)", addr, b.Size())
	}
	return nil
}

// Driver overrides BAR access of the chips in bars, everything else goes to
// the wrapped driver.
type Driver struct {
	umd.Driver
	bars map[int]*Bar
}

func NewDriver(inner umd.Driver, bars map[int]*Bar) *Driver {
	return &Driver{Driver: inner, bars: bars}
}

func (d *Driver) ReadBar32(chip int, addr uint32) (uint32, error) {
	b, ok := d.bars[chip]
	if !ok {
		return d.Driver.ReadBar32(chip, addr)
	}
	return b.Read32(addr)
}

func (d *Driver) WriteBar32(chip int, addr uint32, value uint32) error {
	b, ok := d.bars[chip]
	if !ok {
		return d.Driver.WriteBar32(chip, addr, value)
	}
	return b.Write32(addr, value)
}

func (d *Driver) Close() error {
	var first error
	for chip, b := range d.bars {
		if err := b.Close(); err != nil && first == nil {
			first = errors.Annotatef(err, "chip %d", chip)
		}
	}
	if err := d.Driver.Close(); err != nil {
		return errors.Trace(err)
	}
	return first
}
