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

// Package umd is the transport: it turns arbitrary byte ranges into the
// aligned 32-bit NOC transactions the hardware supports, watches every
// transaction for hangs and fails over between tunnel cores for chips that
// are not attached to this host.
package umd

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

const (
	// StuckValue is what a hung NOC endpoint returns for reads.
	StuckValue = 0xffffffff

	DefaultReadTimeout       = 500 * time.Millisecond
	DefaultWriteTimeout      = 500 * time.Millisecond
	DefaultWriteTimeoutLimit = 5
	// Remote (tunneled) transfers larger than this are known to fail.
	DefaultRemoteChunkSize = 1024
)

type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// WriteTimeoutLimit is the number of consecutive slow writes after
	// which the first of them is reported.
	WriteTimeoutLimit int
	RemoteChunkSize   int
	// Now is used to time transactions; time.Now if nil.
	Now func() time.Time
}

func (o *Options) setDefaults() {
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.WriteTimeoutLimit <= 0 {
		o.WriteTimeoutLimit = DefaultWriteTimeoutLimit
	}
	if o.RemoteChunkSize <= 0 || o.RemoteChunkSize%4 != 0 {
		o.RemoteChunkSize = DefaultRemoteChunkSize
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Wrapper owns the native driver. There must be one Wrapper per driver
// handle; everything above it holds a *Wrapper and never the driver.
type Wrapper struct {
	opts Options

	// mu covers the driver, the selected NOC plane and the write timeout
	// tracking. "select plane, access" is always one critical section.
	mu          sync.Mutex
	drv         Driver
	selectedNoc int
	slowWrites  int
	firstSlow   *TimeoutError
}

func NewWrapper(drv Driver, opts *Options) *Wrapper {
	w := &Wrapper{drv: drv, selectedNoc: -1}
	if opts != nil {
		w.opts = *opts
	}
	w.opts.setDefaults()
	return w
}

func (w *Wrapper) Options() Options {
	return w.opts
}

func (w *Wrapper) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return errors.Trace(w.drv.Close())
}

func (w *Wrapper) Chips() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.drv.Chips()
}

func (w *Wrapper) IsMMIOCapable(chip int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.drv.IsMMIOCapable(chip)
}

type target struct {
	nocID, chip, x, y int
}

func (w *Wrapper) selectNocLocked(nocID int) error {
	if nocID != 0 && nocID != 1 {
		return errors.NotValidf("noc id %d", nocID)
	}
	if w.selectedNoc == nocID {
		return nil
	}
	if err := w.drv.SelectNoc(nocID); err != nil {
		w.selectedNoc = -1
		return errors.Annotatef(err, "failed to select noc%d", nocID)
	}
	w.selectedNoc = nocID
	return nil
}

// withFailover runs f, and for remote chips retries it once through another
// tunnel core if it fails with a driver error.
func (w *Wrapper) withFailover(t target, f func() error) error {
	err := f()
	if err == nil || IsTimeout(err) || isPermanent(err) || w.drv.IsMMIOCapable(t.chip) {
		return err
	}
	glog.Errorf("chip %d: transaction failed (%s), switching tunnel core", t.chip, err)
	if serr := w.drv.SwitchTunnel(t.chip); serr != nil {
		return errors.Annotatef(err, "tunnel switch also failed (%s)", serr)
	}
	// Tunnel reconfiguration may have touched routing, select the plane again.
	w.selectedNoc = -1
	if serr := w.selectNocLocked(t.nocID); serr != nil {
		return errors.Trace(serr)
	}
	return errors.Annotatef(f(), "retry through another tunnel core")
}

func (w *Wrapper) resetSlowWritesLocked() {
	w.slowWrites = 0
	w.firstSlow = nil
}

func allStuck(b []byte) bool {
	for _, v := range b {
		if v != 0xff {
			return false
		}
	}
	return true
}

// checkRead classifies a finished read.
func (w *Wrapper) checkRead(t target, addr uint64, data []byte, elapsed time.Duration) error {
	if elapsed > w.opts.ReadTimeout && allStuck(data) {
		return errors.Trace(&TimeoutError{
			ChipID: t.chip, NocID: t.nocID, X: t.x, Y: t.y,
			Address: addr, Size: len(data), IsRead: true, Elapsed: elapsed,
		})
	}
	w.resetSlowWritesLocked()
	return nil
}

// checkWrite classifies a finished write. Isolated slow writes are tolerated.
func (w *Wrapper) checkWrite(t target, addr uint64, size int, elapsed time.Duration) error {
	if elapsed <= w.opts.WriteTimeout {
		w.resetSlowWritesLocked()
		return nil
	}
	w.slowWrites++
	glog.V(2).Infof("slow write #%d: chip %d 0x%x took %s", w.slowWrites, t.chip, addr, elapsed)
	if w.firstSlow == nil {
		w.firstSlow = &TimeoutError{
			ChipID: t.chip, NocID: t.nocID, X: t.x, Y: t.y,
			Address: addr, Size: size, IsRead: false, Elapsed: elapsed,
		}
	}
	if w.slowWrites < w.opts.WriteTimeoutLimit {
		return nil
	}
	te := w.firstSlow
	w.resetSlowWritesLocked()
	return errors.Trace(te)
}

func (w *Wrapper) read32Locked(t target, addr uint64) (uint32, error) {
	var value uint32
	err := w.withFailover(t, func() error {
		start := w.opts.Now()
		v, err := w.drv.Read32(t.chip, t.x, t.y, addr)
		if err != nil {
			return errors.Trace(err)
		}
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		if err := w.checkRead(t, addr, b[:], w.opts.Now().Sub(start)); err != nil {
			return err
		}
		value = v
		return nil
	})
	glog.V(4).Infof("read32 chip %d noc%d %d-%d 0x%x == 0x%08x", t.chip, t.nocID, t.x, t.y, addr, value)
	return value, err
}

func (w *Wrapper) write32Locked(t target, addr uint64, value uint32) error {
	glog.V(4).Infof("write32 chip %d noc%d %d-%d 0x%x = 0x%08x", t.chip, t.nocID, t.x, t.y, addr, value)
	return w.withFailover(t, func() error {
		start := w.opts.Now()
		if err := w.drv.Write32(t.chip, t.x, t.y, addr, value); err != nil {
			return errors.Trace(err)
		}
		return w.checkWrite(t, addr, 4, w.opts.Now().Sub(start))
	})
}

func (w *Wrapper) chunkSize(chip, size int) int {
	if !w.drv.SupportsBlockAccess() {
		return 4
	}
	if !w.drv.IsMMIOCapable(chip) && size > w.opts.RemoteChunkSize {
		return w.opts.RemoteChunkSize
	}
	return size
}

func (w *Wrapper) readAlignedLocked(t target, addr uint64, buf []byte) error {
	cs := w.chunkSize(t.chip, len(buf))
	for off := 0; off < len(buf); off += cs {
		end := off + cs
		if end > len(buf) {
			end = len(buf)
		}
		chunk := buf[off:end]
		a := addr + uint64(off)
		if len(chunk) == 4 {
			v, err := w.read32Locked(t, a)
			if err != nil {
				return errors.Trace(err)
			}
			binary.LittleEndian.PutUint32(chunk, v)
			continue
		}
		err := w.withFailover(t, func() error {
			start := w.opts.Now()
			if err := w.drv.ReadBlock(t.chip, t.x, t.y, a, chunk); err != nil {
				return errors.Trace(err)
			}
			return w.checkRead(t, a, chunk, w.opts.Now().Sub(start))
		})
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (w *Wrapper) writeAlignedLocked(t target, addr uint64, data []byte) error {
	cs := w.chunkSize(t.chip, len(data))
	for off := 0; off < len(data); off += cs {
		end := off + cs
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		a := addr + uint64(off)
		if len(chunk) == 4 {
			if err := w.write32Locked(t, a, binary.LittleEndian.Uint32(chunk)); err != nil {
				return errors.Trace(err)
			}
			continue
		}
		err := w.withFailover(t, func() error {
			start := w.opts.Now()
			if err := w.drv.WriteBlock(t.chip, t.x, t.y, a, chunk); err != nil {
				return errors.Trace(err)
			}
			return w.checkWrite(t, a, len(chunk), w.opts.Now().Sub(start))
		})
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (w *Wrapper) begin(ctx context.Context, t target) error {
	// Once started, a transaction is never abandoned; ctx is only honored here.
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	w.mu.Lock()
	if err := w.selectNocLocked(t.nocID); err != nil {
		w.mu.Unlock()
		return errors.Trace(err)
	}
	return nil
}

// Read reads size bytes at an arbitrary address.
func (w *Wrapper) Read(ctx context.Context, nocID, chip, x, y int, addr uint64, size int) ([]byte, error) {
	if size < 0 {
		return nil, errors.NotValidf("size %d", size)
	}
	t := target{nocID: nocID, chip: chip, x: x, y: y}
	if err := w.begin(ctx, t); err != nil {
		return nil, errors.Trace(err)
	}
	defer w.mu.Unlock()
	res := make([]byte, 0, size)
	cur, end := addr, addr+uint64(size)
	if off := cur % 4; off != 0 && size > 0 {
		v, err := w.read32Locked(t, cur-off)
		if err != nil {
			return nil, errors.Annotatef(err, "leading word")
		}
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		n := 4 - off
		if n > uint64(size) {
			n = uint64(size)
		}
		res = append(res, b[off:off+n]...)
		cur += n
	}
	if aligned := (end - cur) &^ 3; aligned > 0 {
		buf := make([]byte, aligned)
		if err := w.readAlignedLocked(t, cur, buf); err != nil {
			return nil, errors.Trace(err)
		}
		res = append(res, buf...)
		cur += aligned
	}
	if cur < end {
		v, err := w.read32Locked(t, cur)
		if err != nil {
			return nil, errors.Annotatef(err, "trailing word")
		}
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		res = append(res, b[:end-cur]...)
	}
	return res, nil
}

// Write writes data at an arbitrary address. Partial words are
// read-modify-written, so neighboring bytes are preserved.
func (w *Wrapper) Write(ctx context.Context, nocID, chip, x, y int, addr uint64, data []byte) (int, error) {
	t := target{nocID: nocID, chip: chip, x: x, y: y}
	if err := w.begin(ctx, t); err != nil {
		return 0, errors.Trace(err)
	}
	defer w.mu.Unlock()
	cur, end := addr, addr+uint64(len(data))
	written := 0
	patch := func(base uint64, off uint64, src []byte) error {
		v, err := w.read32Locked(t, base)
		if err != nil {
			return errors.Trace(err)
		}
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		copy(b[off:], src)
		return errors.Trace(w.write32Locked(t, base, binary.LittleEndian.Uint32(b[:])))
	}
	if off := cur % 4; off != 0 && len(data) > 0 {
		n := 4 - off
		if n > uint64(len(data)) {
			n = uint64(len(data))
		}
		if err := patch(cur-off, off, data[:n]); err != nil {
			return written, errors.Annotatef(err, "leading word")
		}
		cur += n
		written += int(n)
	}
	if aligned := (end - cur) &^ 3; aligned > 0 {
		if err := w.writeAlignedLocked(t, cur, data[written:written+int(aligned)]); err != nil {
			return written, errors.Trace(err)
		}
		cur += aligned
		written += int(aligned)
	}
	if cur < end {
		if err := patch(cur, 0, data[written:]); err != nil {
			return written, errors.Annotatef(err, "trailing word")
		}
		written = len(data)
	}
	return written, nil
}

func (w *Wrapper) Read32(ctx context.Context, nocID, chip, x, y int, addr uint64) (uint32, error) {
	if addr%4 != 0 {
		return 0, errors.NotValidf("unaligned word address 0x%x", addr)
	}
	t := target{nocID: nocID, chip: chip, x: x, y: y}
	if err := w.begin(ctx, t); err != nil {
		return 0, errors.Trace(err)
	}
	defer w.mu.Unlock()
	v, err := w.read32Locked(t, addr)
	return v, errors.Trace(err)
}

func (w *Wrapper) Write32(ctx context.Context, nocID, chip, x, y int, addr uint64, value uint32) error {
	if addr%4 != 0 {
		return errors.NotValidf("unaligned word address 0x%x", addr)
	}
	t := target{nocID: nocID, chip: chip, x: x, y: y}
	if err := w.begin(ctx, t); err != nil {
		return errors.Trace(err)
	}
	defer w.mu.Unlock()
	return errors.Trace(w.write32Locked(t, addr, value))
}

// Update32 atomically replaces the word at addr with update(old). If the
// read fails nothing is written.
func (w *Wrapper) Update32(ctx context.Context, nocID, chip, x, y int, addr uint64, update func(old uint32) uint32) (uint32, error) {
	if addr%4 != 0 {
		return 0, errors.NotValidf("unaligned word address 0x%x", addr)
	}
	t := target{nocID: nocID, chip: chip, x: x, y: y}
	if err := w.begin(ctx, t); err != nil {
		return 0, errors.Trace(err)
	}
	defer w.mu.Unlock()
	old, err := w.read32Locked(t, addr)
	if err != nil {
		return 0, errors.Annotatef(err, "read leg of update at 0x%x", addr)
	}
	nv := update(old)
	if err := w.write32Locked(t, addr, nv); err != nil {
		return 0, errors.Annotatef(err, "write leg of update at 0x%x", addr)
	}
	return nv, nil
}

func (w *Wrapper) lockMMIO(ctx context.Context, chip int) error {
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	w.mu.Lock()
	if !w.drv.IsMMIOCapable(chip) {
		w.mu.Unlock()
		return errors.NotSupportedf("direct access to remote chip %d", chip)
	}
	return nil
}

func (w *Wrapper) ReadBar32(ctx context.Context, chip int, addr uint32) (uint32, error) {
	if err := w.lockMMIO(ctx, chip); err != nil {
		return 0, errors.Trace(err)
	}
	defer w.mu.Unlock()
	v, err := w.drv.ReadBar32(chip, addr)
	return v, errors.Annotatef(err, "chip %d bar read 0x%x", chip, addr)
}

func (w *Wrapper) WriteBar32(ctx context.Context, chip int, addr uint32, value uint32) error {
	if err := w.lockMMIO(ctx, chip); err != nil {
		return errors.Trace(err)
	}
	defer w.mu.Unlock()
	return errors.Annotatef(w.drv.WriteBar32(chip, addr, value), "chip %d bar write 0x%x", chip, addr)
}

func (w *Wrapper) ReadTelemetry(ctx context.Context, chip int, tag uint32) (uint32, error) {
	if err := w.lockMMIO(ctx, chip); err != nil {
		return 0, errors.Trace(err)
	}
	defer w.mu.Unlock()
	v, err := w.drv.ReadTelemetry(chip, tag)
	return v, errors.Annotatef(err, "chip %d telemetry tag %d", chip, tag)
}

// SwitchTunnel forces the driver onto the next tunnel core for chip.
func (w *Wrapper) SwitchTunnel(ctx context.Context, chip int) error {
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.drv.IsMMIOCapable(chip) {
		return errors.NotSupportedf("tunnel switch on local chip %d", chip)
	}
	w.selectedNoc = -1
	return errors.Trace(w.drv.SwitchTunnel(chip))
}
