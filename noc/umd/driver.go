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
package umd

//go:generate mockgen -source=driver.go -destination=mock_driver_test.go -package=umd

// Driver is the native device handle. Implementations are not required to be
// safe for concurrent use: Wrapper serializes every call.
//
// All NOC transactions are addressed in the coordinate system of the NOC
// plane last passed to SelectNoc.
type Driver interface {
	// SelectNoc switches the NOC plane used by all subsequent transactions.
	// This is global driver state.
	SelectNoc(nocID int) error
	// Read32 reads one word. addr must be word-aligned.
	Read32(chip, x, y int, addr uint64) (uint32, error)
	// Write32 writes one word. addr must be word-aligned.
	Write32(chip, x, y int, addr uint64, value uint32) error
	// ReadBlock fills buf starting at addr. addr and len(buf) must be multiples of 4.
	ReadBlock(chip, x, y int, addr uint64, buf []byte) error
	// WriteBlock writes data starting at addr. addr and len(data) must be multiples of 4.
	WriteBlock(chip, x, y int, addr uint64, data []byte) error
	// SupportsBlockAccess reports whether large-block addressing is available.
	// When it is not, aligned runs are issued as individual words.
	SupportsBlockAccess() bool

	Chips() []int
	// IsMMIOCapable reports whether the chip is attached to this host directly.
	IsMMIOCapable(chip int) bool
	// SwitchTunnel makes the driver route a remote chip through the next
	// available tunnel core.
	SwitchTunnel(chip int) error

	ReadBar32(chip int, addr uint32) (uint32, error)
	WriteBar32(chip int, addr uint32, value uint32) error
	ReadTelemetry(chip int, tag uint32) (uint32, error)

	Close() error
}
