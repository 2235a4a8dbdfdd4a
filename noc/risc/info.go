package risc

import (
	"fmt"
	"sync"

	"github.com/juju/errors"

	"github.com/cesanta/nocdbg/noc/coord"
	"github.com/cesanta/nocdbg/noc/register"
)

// Host is the tile a core lives in.
type Host interface {
	Location() coord.Location
	RegisterStore(nocID int) (*register.Store, error)
	// DebugLock serializes multi-transaction sequences on the host's shared
	// debug registers, across cores and NOC planes.
	DebugLock() sync.Locker
}

// MemoryRegion is a range of the core's private address space, optionally
// aliased somewhere in the tile's NOC address space.
type MemoryRegion struct {
	Start uint64
	Size  uint64
	// NocAlias is where the region shows up on the NOC, if HasNocAlias.
	NocAlias    uint64
	HasNocAlias bool
}

func (r MemoryRegion) Contains(addr uint64) bool {
	return r.Size > 0 && addr >= r.Start && addr < r.Start+r.Size
}

// ContainsRange reports whether [addr, addr+size) lies fully in the region.
func (r MemoryRegion) ContainsRange(addr, size uint64) bool {
	return r.Contains(addr) && (size == 0 || r.Contains(addr+size-1))
}

// ToNoc translates a private address in the region to its NOC alias.
func (r MemoryRegion) ToNoc(addr uint64) (uint64, error) {
	if !r.Contains(addr) {
		return 0, errors.NotValidf("address 0x%x outside %s", addr, r)
	}
	if !r.HasNocAlias {
		return 0, errors.NotSupportedf("NOC access to private memory %s", r)
	}
	return r.NocAlias + (addr - r.Start), nil
}

func (r MemoryRegion) String() string {
	return fmt.Sprintf("[0x%x, 0x%x)", r.Start, r.Start+r.Size)
}

// Info is the static description of one core (BabyRISC).
type Info struct {
	Name string
	ID   int
	Host Host

	LocalMemory MemoryRegion
	// CodeMemory is a dedicated instruction memory, if the core has one.
	CodeMemory *MemoryRegion

	MaxWatchpoints int
	// ResetFlagShift is the core's bit in the tile soft reset register.
	ResetFlagShift uint

	// Optional: configuration field that disables branch prediction and the
	// bits in it that belong to this core.
	BranchPredictionRegister string
	BranchPredictionMask     uint32

	// Optional: register overriding the address the core starts executing
	// from after reset, and the field enabling the override.
	CodeStartRegister       string
	CodeStartEnableRegister string

	// ResetVector is where the core starts when no override is enabled.
	ResetVector uint64

	DebugHardwarePresent bool
}

func (i *Info) String() string {
	if i.Host == nil {
		return i.Name
	}
	return fmt.Sprintf("%s@%s", i.Name, i.Host.Location())
}

// CanChangeCodeStart reports whether the start address can be set through
// a register instead of patching the reset vector.
func (i *Info) CanChangeCodeStart() bool {
	return i.CodeStartRegister != ""
}
