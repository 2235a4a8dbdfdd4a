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
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/juju/errors"

	"github.com/cesanta/nocdbg/cli/devutil"
	"github.com/cesanta/nocdbg/cli/flags"
	"github.com/cesanta/nocdbg/noc/register"
)

// nocTarget resolves a location argument to plane coordinates.
func nocTarget(s *devutil.Session, arg string) (chip, x, y int, err error) {
	_, b, err := locate(s, arg)
	if err != nil {
		return 0, 0, 0, errors.Trace(err)
	}
	xy, err := b.Location().NocXY(*flags.Noc)
	if err != nil {
		return 0, 0, 0, errors.Trace(err)
	}
	return b.Location().Chip, xy.X, xy.Y, nil
}

// dumpWords prints data as little-endian words, four per line.
func dumpWords(addr uint64, data []byte) {
	for i := 0; i < len(data); i += 16 {
		fmt.Printf("%08x:", addr+uint64(i))
		for j := i; j < i+16 && j < len(data); j += 4 {
			if j+4 <= len(data) {
				fmt.Printf(" %08x", binary.LittleEndian.Uint32(data[j:]))
			} else {
				for _, b := range data[j:] {
					fmt.Printf(" %02x", b)
				}
			}
		}
		fmt.Println()
	}
}

func nocRead(ctx context.Context, s *devutil.Session) error {
	a, err := args(2, 3)
	if err != nil {
		return errors.Trace(err)
	}
	addr, err := strconv.ParseUint(a[1], 0, 64)
	if err != nil {
		return errors.NotValidf("address %q", a[1])
	}
	size := 4
	if len(a) > 2 {
		if size, err = strconv.Atoi(a[2]); err != nil || size <= 0 {
			return errors.NotValidf("length %q", a[2])
		}
	}
	chip, x, y, err := nocTarget(s, a[0])
	if err != nil {
		return errors.Trace(err)
	}
	data, err := s.Wrapper.Read(ctx, *flags.Noc, chip, x, y, addr, size)
	if err != nil {
		return errors.Trace(err)
	}
	dumpWords(addr, data)
	return nil
}

func parseWords(ss []string) ([]byte, error) {
	data := make([]byte, 4*len(ss))
	for i, s := range ss {
		v, err := parseUint32(s)
		if err != nil {
			return nil, errors.Trace(err)
		}
		binary.LittleEndian.PutUint32(data[4*i:], v)
	}
	return data, nil
}

func nocWrite(ctx context.Context, s *devutil.Session) error {
	a, err := args(3, -1)
	if err != nil {
		return errors.Trace(err)
	}
	addr, err := strconv.ParseUint(a[1], 0, 64)
	if err != nil {
		return errors.NotValidf("address %q", a[1])
	}
	data, err := parseWords(a[2:])
	if err != nil {
		return errors.Trace(err)
	}
	chip, x, y, err := nocTarget(s, a[0])
	if err != nil {
		return errors.Trace(err)
	}
	n, err := s.Wrapper.Write(ctx, *flags.Noc, chip, x, y, addr, data)
	if err != nil {
		return errors.Annotatef(err, "wrote %d of %d bytes", n, len(data))
	}
	return nil
}

func privRead(ctx context.Context, s *devutil.Session) error {
	a, err := args(2, 3)
	if err != nil {
		return errors.Trace(err)
	}
	addr, err := parseUint32(a[1])
	if err != nil {
		return errors.Trace(err)
	}
	words := 1
	if len(a) > 2 {
		if words, err = strconv.Atoi(a[2]); err != nil || words <= 0 {
			return errors.NotValidf("word count %q", a[2])
		}
	}
	rd, err := core(s, a[0])
	if err != nil {
		return errors.Trace(err)
	}
	data := make([]byte, 4*words)
	for i := 0; i < words; i++ {
		v, err := rd.ReadMemory(ctx, addr+uint32(4*i))
		if err != nil {
			return errors.Trace(err)
		}
		binary.LittleEndian.PutUint32(data[4*i:], v)
	}
	dumpWords(uint64(addr), data)
	return nil
}

func privWrite(ctx context.Context, s *devutil.Session) error {
	a, err := args(3, -1)
	if err != nil {
		return errors.Trace(err)
	}
	addr, err := parseUint32(a[1])
	if err != nil {
		return errors.Trace(err)
	}
	rd, err := core(s, a[0])
	if err != nil {
		return errors.Trace(err)
	}
	for i, w := range a[2:] {
		v, err := parseUint32(w)
		if err != nil {
			return errors.Trace(err)
		}
		if err := rd.WriteMemory(ctx, addr+uint32(4*i), v); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func regStore(s *devutil.Session, arg string) (*register.Store, error) {
	_, b, err := locate(s, arg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	st, err := b.RegisterStore(*flags.Noc)
	return st, errors.Trace(err)
}

func regRead(ctx context.Context, s *devutil.Session) error {
	a, err := args(1, -1)
	if err != nil {
		return errors.Trace(err)
	}
	st, err := regStore(s, a[0])
	if err != nil {
		return errors.Trace(err)
	}
	names := a[1:]
	if len(names) == 0 {
		names = st.Names()
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, name := range names {
		d, err := st.Description(name)
		if err != nil {
			return errors.Trace(err)
		}
		v, err := st.Read(ctx, name)
		if err != nil {
			// Keep going past unreadable registers.
			fmt.Fprintf(w, "%s\t%s\terror: %s\n", name, d.Kind(), err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, d.Kind(), register.FormatValue(d, v))
	}
	return errors.Trace(w.Flush())
}

func regWrite(ctx context.Context, s *devutil.Session) error {
	a, err := args(3, 3)
	if err != nil {
		return errors.Trace(err)
	}
	v, err := parseUint32(a[2])
	if err != nil {
		return errors.Trace(err)
	}
	st, err := regStore(s, a[0])
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(st.Write(ctx, a[1], v))
}

func dbgBus(ctx context.Context, s *devutil.Session) error {
	a, err := args(1, -1)
	if err != nil {
		return errors.Trace(err)
	}
	_, b, err := locate(s, a[0])
	if err != nil {
		return errors.Trace(err)
	}
	bus := b.DebugBus()
	if bus == nil {
		return errors.NotSupportedf("debug bus on %s", b.Type())
	}
	names := a[1:]
	if len(names) == 0 {
		names = bus.Names()
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, name := range names {
		v, err := bus.Read(ctx, b, *flags.Noc, name)
		if err != nil {
			return errors.Trace(err)
		}
		fmt.Fprintf(w, "%s\t0x%08x\n", name, v)
	}
	return errors.Trace(w.Flush())
}

func barRead(ctx context.Context, s *devutil.Session) error {
	a, err := args(1, 1)
	if err != nil {
		return errors.Trace(err)
	}
	addr, err := parseUint32(a[0])
	if err != nil {
		return errors.Trace(err)
	}
	v, err := s.Wrapper.ReadBar32(ctx, *flags.Chip, addr)
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Printf("0x%08x\n", v)
	return nil
}

func barWrite(ctx context.Context, s *devutil.Session) error {
	a, err := args(2, 2)
	if err != nil {
		return errors.Trace(err)
	}
	addr, err := parseUint32(a[0])
	if err != nil {
		return errors.Trace(err)
	}
	v, err := parseUint32(a[1])
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(s.Wrapper.WriteBar32(ctx, *flags.Chip, addr, v))
}

var telemetryTags = map[string]uint32{
	"board_id_high":    1,
	"board_id_low":     2,
	"asic_temperature": 11,
	"aiclk":            14,
}

func telemetry(ctx context.Context, s *devutil.Session) error {
	a, err := args(0, -1)
	if err != nil {
		return errors.Trace(err)
	}
	if len(a) == 0 {
		for name := range telemetryTags {
			a = append(a, name)
		}
		sort.Strings(a)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, name := range a {
		tag, ok := telemetryTags[name]
		if !ok {
			v, err := parseUint32(name)
			if err != nil {
				return errors.NotFoundf("telemetry tag %q", name)
			}
			tag = v
		}
		v, err := s.Wrapper.ReadTelemetry(ctx, *flags.Chip, tag)
		if err != nil {
			return errors.Annotatef(err, "%s", name)
		}
		fmt.Fprintf(w, "%s\t%d\t0x%08x\n", name, v, v)
	}
	return errors.Trace(w.Flush())
}
