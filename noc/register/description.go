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

// Package register resolves symbolic register names to device addresses
// and bitfields, and reads/writes them through the transport.
package register

import (
	"fmt"
	"math"
)

// Kind tags the Description variant; it selects the base address family.
type Kind int

const (
	KindConfiguration Kind = iota
	KindDebug
	KindNocControl
	KindNocConfiguration
	KindNocStatus
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindDebug:
		return "debug"
	case KindNocControl:
		return "noc-control"
	case KindNocConfiguration:
		return "noc-configuration"
	case KindNocStatus:
		return "noc-status"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Description is a closed set: only the types in this file implement it.
type Description interface {
	Kind() Kind
	// byteOffset is the offset of the containing word from the family base.
	byteOffset() uint64
	// field returns mask and shift; whole-word registers return (0xffffffff, 0).
	field() (mask uint32, shift uint)
}

type DataType int

const (
	Int DataType = iota
	Hex
	Bool
	Float
	DataFormat
)

// ConfigurationRegister is a packed bitfield in the block's configuration
// table, addressed by word index.
type ConfigurationRegister struct {
	Index    uint32
	Mask     uint32
	Shift    uint
	DataType DataType
}

func (r ConfigurationRegister) Kind() Kind            { return KindConfiguration }
func (r ConfigurationRegister) byteOffset() uint64    { return uint64(r.Index) * 4 }
func (r ConfigurationRegister) field() (uint32, uint) { return r.Mask, r.Shift }

// DebugRegister is a memory-mapped word at a byte offset from the debug base.
type DebugRegister struct {
	Offset uint64
}

func (r DebugRegister) Kind() Kind            { return KindDebug }
func (r DebugRegister) byteOffset() uint64    { return r.Offset }
func (r DebugRegister) field() (uint32, uint) { return math.MaxUint32, 0 }

type NocControlRegister struct {
	Offset uint64
}

func (r NocControlRegister) Kind() Kind            { return KindNocControl }
func (r NocControlRegister) byteOffset() uint64    { return r.Offset }
func (r NocControlRegister) field() (uint32, uint) { return math.MaxUint32, 0 }

type NocConfigurationRegister struct {
	Offset uint64
}

func (r NocConfigurationRegister) Kind() Kind            { return KindNocConfiguration }
func (r NocConfigurationRegister) byteOffset() uint64    { return r.Offset }
func (r NocConfigurationRegister) field() (uint32, uint) { return math.MaxUint32, 0 }

type NocStatusRegister struct {
	Offset uint64
}

func (r NocStatusRegister) Kind() Kind            { return KindNocStatus }
func (r NocStatusRegister) byteOffset() uint64    { return r.Offset }
func (r NocStatusRegister) field() (uint32, uint) { return math.MaxUint32, 0 }

// NOC register groups sit at fixed offsets from the plane's NOC base.
const (
	NocControlGroup       = 0x000
	NocConfigurationGroup = 0x100
	NocStatusGroup        = 0x200
)

// Catalog maps register names to descriptions. Catalogs are built once at
// package init and never modified.
type Catalog map[string]Description

// Merge returns a new catalog holding all entries of the given catalogs.
// A name defined twice is a catalog bug and panics.
func Merge(cs ...Catalog) Catalog {
	res := Catalog{}
	for _, c := range cs {
		for k, v := range c {
			if _, ok := res[k]; ok {
				panic(fmt.Sprintf("register %q defined twice", k))
			}
			res[k] = v
		}
	}
	return res
}

// FormatValue renders a field value according to its data type.
func FormatValue(d Description, v uint32) string {
	cr, ok := d.(ConfigurationRegister)
	if !ok {
		return fmt.Sprintf("0x%08x", v)
	}
	switch cr.DataType {
	case Int:
		return fmt.Sprintf("%d", v)
	case Bool:
		return fmt.Sprintf("%t", v != 0)
	case Float:
		return fmt.Sprintf("%g", math.Float32frombits(v))
	case DataFormat:
		return DataFormatName(v)
	}
	return fmt.Sprintf("0x%x", v)
}

// DataFormatName decodes the tile data format code used by the unpacker
// and packer configuration fields.
func DataFormatName(v uint32) string {
	switch v {
	case 0:
		return "Float32"
	case 1:
		return "Float16"
	case 2:
		return "Bfp8"
	case 3:
		return "Bfp4"
	case 4:
		return "Tf32"
	case 5:
		return "Float16_b"
	case 6:
		return "Bfp8_b"
	case 7:
		return "Bfp4_b"
	case 8:
		return "Int32"
	case 9:
		return "UInt16"
	case 10:
		return "Lf8"
	case 11:
		return "Bfp2"
	case 14:
		return "Int8"
	case 15:
		return "Bfp2_b"
	case 30:
		return "UInt8"
	}
	return fmt.Sprintf("format(%d)", v)
}
