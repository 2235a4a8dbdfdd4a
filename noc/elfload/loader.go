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
package elfload

import (
	"context"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/cesanta/nocdbg/noc/risc"
)

// Memory is the byte access the loader writes through; *umd.Wrapper
// implements it.
type Memory interface {
	Write(ctx context.Context, nocID, chip, x, y int, addr uint64, data []byte) (int, error)
	Read(ctx context.Context, nocID, chip, x, y int, addr uint64, size int) ([]byte, error)
}

// Loader writes images into the memory of one core.
type Loader struct {
	mem  Memory
	core *risc.Debug
	// l1 is the tile memory that is the same in the core's and the NOC
	// address space.
	l1 risc.MemoryRegion
}

func NewLoader(mem Memory, core *risc.Debug, l1 risc.MemoryRegion) *Loader {
	return &Loader{mem: mem, core: core, l1: l1}
}

// NocAddress translates a core address to the NOC address it is reachable at.
func (l *Loader) NocAddress(addr, size uint64) (uint64, error) {
	info := l.core.Info()
	regions := []risc.MemoryRegion{l.l1, info.LocalMemory}
	if info.CodeMemory != nil {
		regions = append(regions, *info.CodeMemory)
	}
	for _, r := range regions {
		if r.Contains(addr) {
			if !r.ContainsRange(addr, size) {
				return 0, errors.NotValidf("range 0x%x+%d crossing the end of %s", addr, size, r)
			}
			na, err := r.ToNoc(addr)
			return na, errors.Annotatef(err, "%s", l.core)
		}
	}
	return 0, errors.NotValidf("address 0x%x not in any memory of %s", addr, l.core)
}

func (l *Loader) target() (nocID, chip, x, y int, err error) {
	loc := l.core.Info().Host.Location()
	nocID = l.core.NocID()
	xy, err := loc.NocXY(nocID)
	if err != nil {
		return 0, 0, 0, 0, errors.Trace(err)
	}
	return nocID, loc.Chip, xy.X, xy.Y, nil
}

// WriteMemory writes data at a core address.
func (l *Loader) WriteMemory(ctx context.Context, addr uint64, data []byte) error {
	na, err := l.NocAddress(addr, uint64(len(data)))
	if err != nil {
		return errors.Trace(err)
	}
	nocID, chip, x, y, err := l.target()
	if err != nil {
		return errors.Trace(err)
	}
	n, err := l.mem.Write(ctx, nocID, chip, x, y, na, data)
	if err != nil {
		return errors.Annotatef(err, "wrote %d of %d bytes at 0x%x", n, len(data), addr)
	}
	return nil
}

func (l *Loader) ReadMemory(ctx context.Context, addr uint64, size int) ([]byte, error) {
	na, err := l.NocAddress(addr, uint64(size))
	if err != nil {
		return nil, errors.Trace(err)
	}
	nocID, chip, x, y, err := l.target()
	if err != nil {
		return nil, errors.Trace(err)
	}
	data, err := l.mem.Read(ctx, nocID, chip, x, y, na, size)
	return data, errors.Trace(err)
}

// Load writes all segments of f, zero-filling the part of each segment that
// is not in the file.
func (l *Loader) Load(ctx context.Context, f *File) error {
	for _, s := range f.Segments {
		data := s.Data
		if s.MemSize > uint64(len(data)) {
			data = append(append([]byte(nil), data...), make([]byte, s.MemSize-uint64(len(data)))...)
		}
		glog.Infof("%s: loading %d bytes at 0x%x", l.core, len(data), s.Addr)
		if err := l.WriteMemory(ctx, s.Addr, data); err != nil {
			return errors.Annotatef(err, "segment at 0x%x", s.Addr)
		}
	}
	return nil
}

// Verify reads back all segments and compares them with f.
func (l *Loader) Verify(ctx context.Context, f *File) error {
	return l.verify(ctx, f, false)
}

// VerifyCode is Verify limited to executable segments, usable while the
// image runs and modifies its data.
func (l *Loader) VerifyCode(ctx context.Context, f *File) error {
	return l.verify(ctx, f, true)
}

func (l *Loader) verify(ctx context.Context, f *File, codeOnly bool) error {
	for _, s := range f.Segments {
		if codeOnly && !s.Exec {
			continue
		}
		got, err := l.ReadMemory(ctx, s.Addr, len(s.Data))
		if err != nil {
			return errors.Trace(err)
		}
		for i := range got {
			if got[i] != s.Data[i] {
				return errors.Errorf("%s: mismatch at 0x%x: 0x%02x != 0x%02x", l.core, s.Addr+uint64(i), got[i], s.Data[i])
			}
		}
	}
	return nil
}
