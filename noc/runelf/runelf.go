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

// Package runelf starts firmware on a core and runs the halt, continue and
// watchpoint verification script against a cooperating image.
package runelf

import (
	"context"
	"encoding/binary"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/cesanta/nocdbg/noc/block"
	"github.com/cesanta/nocdbg/noc/device"
	"github.com/cesanta/nocdbg/noc/elfload"
	"github.com/cesanta/nocdbg/noc/risc"
)

type Options struct {
	Risc  string
	NeoID int
	NocID int
}

// Run resets all cores of the chip, loads f into the core, points the core
// at the entry and takes it out of reset. The other cores stay in reset.
func Run(ctx context.Context, dev *device.Device, b block.NocBlock, f *elfload.File, opts Options) (*risc.Debug, error) {
	rd, err := b.RiscDebug(opts.Risc, opts.NeoID, opts.NocID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	glog.Infof("run-elf: %s entry 0x%x", rd, f.Entry)
	if err := dev.ResetAllCores(ctx, true); err != nil {
		return nil, errors.Annotatef(err, "failed to put cores in reset")
	}
	ld := elfload.NewLoader(dev.Wrapper(), rd, b.L1())
	if err := ld.Load(ctx, f); err != nil {
		return nil, errors.Trace(err)
	}
	if err := SetEntry(ctx, ld, rd, f.Entry); err != nil {
		return nil, errors.Trace(err)
	}
	if err := rd.InvalidateInstructionCache(ctx); err != nil {
		return nil, errors.Trace(err)
	}
	if err := rd.SetReset(ctx, false); err != nil {
		return nil, errors.Trace(err)
	}
	return rd, nil
}

// SetEntry makes the core start at entry: through the code start register
// where the core has one, otherwise by placing a jump at its reset vector.
func SetEntry(ctx context.Context, ld *elfload.Loader, rd *risc.Debug, entry uint64) error {
	info := rd.Info()
	if info.CanChangeCodeStart() {
		glog.V(1).Infof("%s: code start = 0x%x", rd, entry)
		return errors.Trace(rd.SetCodeStartAddress(ctx, uint32(entry)))
	}
	if entry == info.ResetVector {
		return nil
	}
	insn, err := jal(info.ResetVector, entry)
	if err != nil {
		return errors.Trace(err)
	}
	glog.V(1).Infof("%s: jal 0x%x at reset vector 0x%x", rd, entry, info.ResetVector)
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], insn)
	return errors.Annotatef(ld.WriteMemory(ctx, info.ResetVector, b[:]), "reset vector")
}

// jal encodes "jal x0, to-from".
func jal(from, to uint64) (uint32, error) {
	off := int64(to) - int64(from)
	if off%2 != 0 || off < -(1<<20) || off >= 1<<20 {
		return 0, errors.NotValidf("jump from 0x%x to 0x%x", from, to)
	}
	u := uint32(off) & 0x1fffff
	return ((u>>20)&1)<<31 | ((u>>1)&0x3ff)<<21 | ((u>>11)&1)<<20 | ((u>>12)&0xff)<<12 | 0x6f, nil
}
