// Package devaddr holds the multi-space address value used by register
// resolution: a single register can be visible in the core-private space,
// in the NOC space and in the raw transport space at the same time.
package devaddr

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
)

type Space int

const (
	SpacePrivate Space = iota
	SpaceNoc
	SpaceRaw
)

func (s Space) String() string {
	switch s {
	case SpacePrivate:
		return "private"
	case SpaceNoc:
		return "noc"
	case SpaceRaw:
		return "raw"
	}
	return fmt.Sprintf("space(%d)", int(s))
}

type optional struct {
	value uint64
	valid bool
}

// DeviceAddress is an immutable value. Zero value has no populated space.
type DeviceAddress struct {
	private optional
	noc     optional
	raw     optional
	nocID   optional
	// Preferred tells resolvers which space is authoritative.
	preferred Space
}

func Private(addr uint64) DeviceAddress {
	return DeviceAddress{private: optional{addr, true}, preferred: SpacePrivate}
}

func Noc(addr uint64) DeviceAddress {
	return DeviceAddress{noc: optional{addr, true}, preferred: SpaceNoc}
}

func Raw(addr uint64) DeviceAddress {
	return DeviceAddress{raw: optional{addr, true}, preferred: SpaceRaw}
}

// PrivateAndNoc builds an address for a register that the core sees at
// private and the NOC sees at noc.
func PrivateAndNoc(private, noc uint64) DeviceAddress {
	return DeviceAddress{
		private:   optional{private, true},
		noc:       optional{noc, true},
		preferred: SpaceNoc,
	}
}

func (a DeviceAddress) WithNocID(nocID int) DeviceAddress {
	a.nocID = optional{uint64(nocID), true}
	return a
}

func (a DeviceAddress) WithPreferred(s Space) DeviceAddress {
	a.preferred = s
	return a
}

// Offset returns a copy with every populated space moved by delta bytes.
func (a DeviceAddress) Offset(delta uint64) DeviceAddress {
	for _, o := range []*optional{&a.private, &a.noc, &a.raw} {
		if o.valid {
			o.value += delta
		}
	}
	return a
}

func (a DeviceAddress) IsZero() bool {
	return !a.private.valid && !a.noc.valid && !a.raw.valid
}

func (a DeviceAddress) Preferred() Space {
	return a.preferred
}

func (a DeviceAddress) Has(s Space) bool {
	switch s {
	case SpacePrivate:
		return a.private.valid
	case SpaceNoc:
		return a.noc.valid
	case SpaceRaw:
		return a.raw.valid
	}
	return false
}

// Get returns the address in the given space. A missing space is an error,
// never a silent zero.
func (a DeviceAddress) Get(s Space) (uint64, error) {
	var o optional
	switch s {
	case SpacePrivate:
		o = a.private
	case SpaceNoc:
		o = a.noc
	case SpaceRaw:
		o = a.raw
	default:
		return 0, errors.NotValidf("address space %d", int(s))
	}
	if !o.valid {
		return 0, errors.NotFoundf("%s address in %s", s, a)
	}
	return o.value, nil
}

func (a DeviceAddress) PrivateAddress() (uint64, error) {
	return a.Get(SpacePrivate)
}

func (a DeviceAddress) NocAddress() (uint64, error) {
	return a.Get(SpaceNoc)
}

func (a DeviceAddress) RawAddress() (uint64, error) {
	return a.Get(SpaceRaw)
}

func (a DeviceAddress) NocID() (int, error) {
	if !a.nocID.valid {
		return 0, errors.NotFoundf("noc id in %s", a)
	}
	return int(a.nocID.value), nil
}

func (a DeviceAddress) String() string {
	var parts []string
	if a.private.valid {
		parts = append(parts, fmt.Sprintf("private=0x%x", a.private.value))
	}
	if a.noc.valid {
		parts = append(parts, fmt.Sprintf("noc=0x%x", a.noc.value))
	}
	if a.raw.valid {
		parts = append(parts, fmt.Sprintf("raw=0x%x", a.raw.value))
	}
	if a.nocID.valid {
		parts = append(parts, fmt.Sprintf("noc_id=%d", a.nocID.value))
	}
	if len(parts) == 0 {
		return "[empty address]"
	}
	return "[" + strings.Join(parts, " ") + "]"
}
