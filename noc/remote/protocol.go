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

// Package remote serves a umd.Driver over a websocket and provides the
// matching client, so a debugger can run on a different host than the one
// the device is attached to.
//
// Every request is one binary message: an opcode byte followed by the
// little-endian arguments. The reply is a status byte followed by the
// result, or by an error message if the status is not StatusOK.
//
// Addressed requests carry their NOC plane, so the plane is selected and
// used in one step on the server no matter how many clients share it.
package remote

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/juju/errors"
)

type Opcode byte

const (
	OpHello Opcode = iota + 1
	OpRead32
	OpWrite32
	OpRead
	OpWrite
	OpBarRead32
	OpBarWrite32
	OpTelemetry
	OpChips
	OpSwitchTunnel
)

func (op Opcode) String() string {
	switch op {
	case OpHello:
		return "hello"
	case OpRead32:
		return "read32"
	case OpWrite32:
		return "write32"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpBarRead32:
		return "bar-read32"
	case OpBarWrite32:
		return "bar-write32"
	case OpTelemetry:
		return "telemetry"
	case OpChips:
		return "chips"
	case OpSwitchTunnel:
		return "switch-tunnel"
	}
	return fmt.Sprintf("op(%d)", byte(op))
}

// Reply status codes. The last three carry the error type of a driver
// failure across the connection.
const (
	StatusOK           = 0
	StatusError        = 1
	StatusUnsupported  = 2
	StatusNotFound     = 3
	StatusNotValid     = 4
	StatusNotSupported = 5
)

// MaxTransfer bounds the size of a single block read or write.
const MaxTransfer = 1 << 20

type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) u8(v byte) *encoder {
	e.buf.WriteByte(v)
	return e
}

func (e *encoder) u32(v uint32) *encoder {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
	return e
}

func (e *encoder) u64(v uint64) *encoder {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
	return e
}

func (e *encoder) int(v int) *encoder {
	return e.u32(uint32(int32(v)))
}

func (e *encoder) bool(v bool) *encoder {
	if v {
		return e.u8(1)
	}
	return e.u8(0)
}

func (e *encoder) bytes(b []byte) *encoder {
	e.u32(uint32(len(b)))
	e.buf.Write(b)
	return e
}

func (e *encoder) str(s string) *encoder {
	return e.bytes([]byte(s))
}

func (e *encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// decoder reads fields until the first error, which sticks.
type decoder struct {
	b   []byte
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.b) < n {
		d.err = errors.Errorf("short message: need %d bytes, have %d", n, len(d.b))
		return nil
	}
	res := d.b[:n]
	d.b = d.b[n:]
	return res
}

func (d *decoder) u8() byte {
	if b := d.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *decoder) u32() uint32 {
	if b := d.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *decoder) u64() uint64 {
	if b := d.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (d *decoder) int() int {
	return int(int32(d.u32()))
}

func (d *decoder) bool() bool {
	return d.u8() != 0
}

func (d *decoder) bytes() []byte {
	n := d.u32()
	if n > MaxTransfer {
		d.err = errors.NotValidf("transfer of %d bytes", n)
		return nil
	}
	b := d.take(int(n))
	return append([]byte(nil), b...)
}

func (d *decoder) str() string {
	return string(d.bytes())
}

// target is the addressing part of a NOC transaction.
type target struct {
	noc, chip, x, y int
	addr            uint64
}

func (e *encoder) target(t target) *encoder {
	return e.int(t.noc).int(t.chip).int(t.x).int(t.y).u64(t.addr)
}

func (d *decoder) target() target {
	return target{noc: d.int(), chip: d.int(), x: d.int(), y: d.int(), addr: d.u64()}
}

// ChipInfo is one entry of the chips reply.
type ChipInfo struct {
	ID   int  `json:"id"`
	MMIO bool `json:"mmio"`
}
