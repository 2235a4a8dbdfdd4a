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
package pcibar

import (
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/golang/glog"
	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

// Bar is a memory-mapped BAR region.
type Bar struct {
	path string
	mem  []byte
}

// Open maps the whole resource file at path.
func Open(path string) (*Bar, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if fi.Size() < 4 {
		return nil, errors.NotValidf("%s: BAR size %d", path, fi.Size())
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Annotatef(err, "mmap %s", path)
	}
	glog.V(1).Infof("%s: mapped 0x%x bytes", path, len(mem))
	return &Bar{path: path, mem: mem}, nil
}

func (b *Bar) Size() int {
	return len(b.mem)
}

func (b *Bar) word(addr uint32) *uint32 {
	return (*uint32)(unsafe.Pointer(&b.mem[addr]))
}

func (b *Bar) Read32(addr uint32) (uint32, error) {
	if err := b.check(addr); err != nil {
		return 0, errors.Trace(err)
	}
	v := atomic.LoadUint32(b.word(addr))
	glog.V(4).Infof("%s: [0x%x] -> 0x%08x", b.path, addr, v)
	return v, nil
}

func (b *Bar) Write32(addr uint32, value uint32) error {
	if err := b.check(addr); err != nil {
		return errors.Trace(err)
	}
	glog.V(4).Infof("%s: [0x%x] <- 0x%08x", b.path, addr, value)
	atomic.StoreUint32(b.word(addr), value)
	return nil
}

func (b *Bar) Close() error {
	if b.mem == nil {
		return nil
	}
	err := unix.Munmap(b.mem)
	b.mem = nil
	return errors.Trace(err)
}
