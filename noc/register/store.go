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
package register

import (
	"context"
	"math"
	"sort"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/cesanta/nocdbg/noc/coord"
	"github.com/cesanta/nocdbg/noc/devaddr"
)

// Transport is the part of the transport wrapper a Store uses.
type Transport interface {
	Read32(ctx context.Context, nocID, chip, x, y int, addr uint64) (uint32, error)
	Write32(ctx context.Context, nocID, chip, x, y int, addr uint64, value uint32) error
	Update32(ctx context.Context, nocID, chip, x, y int, addr uint64, update func(old uint32) uint32) (uint32, error)
}

// BaseFunc returns the base address of the family a description belongs to.
type BaseFunc func(d Description) devaddr.DeviceAddress

// FixedBase is a BaseFunc for families with a single base address.
func FixedBase(base devaddr.DeviceAddress) BaseFunc {
	return func(Description) devaddr.DeviceAddress { return base }
}

// Bases maps each supported register kind to its base address function.
type Bases map[Kind]BaseFunc

// Store is a register catalog bound to one tile and one NOC plane.
// It is immutable and safe for concurrent use.
type Store struct {
	catalog Catalog
	bases   Bases
	loc     coord.Location
	nocID   int
	tr      Transport
}

func NewStore(loc coord.Location, nocID int, catalog Catalog, bases Bases, tr Transport) *Store {
	return &Store{catalog: catalog, bases: bases, loc: loc, nocID: nocID, tr: tr}
}

func (s *Store) Location() coord.Location {
	return s.loc
}

func (s *Store) NocID() int {
	return s.nocID
}

func (s *Store) Has(name string) bool {
	_, ok := s.catalog[name]
	return ok
}

// Names returns the sorted list of register names in the catalog.
func (s *Store) Names() []string {
	res := make([]string, 0, len(s.catalog))
	for k := range s.catalog {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

func (s *Store) Description(name string) (Description, error) {
	d, ok := s.catalog[name]
	if !ok {
		return nil, errors.NotFoundf("register %q on %s", name, s.loc)
	}
	return d, nil
}

// Address resolves name to the address of its containing word.
func (s *Store) Address(name string) (devaddr.DeviceAddress, error) {
	d, err := s.Description(name)
	if err != nil {
		return devaddr.DeviceAddress{}, errors.Trace(err)
	}
	return s.addressOf(name, d)
}

func (s *Store) addressOf(name string, d Description) (devaddr.DeviceAddress, error) {
	bf, ok := s.bases[d.Kind()]
	if !ok || bf == nil {
		return devaddr.DeviceAddress{}, errors.NotSupportedf("%s register %q on %s", d.Kind(), name, s.loc)
	}
	return bf(d).Offset(d.byteOffset()).WithNocID(s.nocID), nil
}

type resolved struct {
	xy   coord.XY
	addr uint64
	mask uint32
	sh   uint
}

func (s *Store) resolve(name string) (resolved, error) {
	d, err := s.Description(name)
	if err != nil {
		return resolved{}, errors.Trace(err)
	}
	da, err := s.addressOf(name, d)
	if err != nil {
		return resolved{}, errors.Trace(err)
	}
	addr, err := da.NocAddress()
	if err != nil {
		return resolved{}, errors.Annotatef(err, "register %q is not reachable over the NOC", name)
	}
	xy, err := s.loc.NocXY(s.nocID)
	if err != nil {
		return resolved{}, errors.Trace(err)
	}
	mask, shift := d.field()
	return resolved{xy: xy, addr: addr, mask: mask, sh: shift}, nil
}

func (s *Store) Read(ctx context.Context, name string) (uint32, error) {
	r, err := s.resolve(name)
	if err != nil {
		return 0, errors.Trace(err)
	}
	raw, err := s.tr.Read32(ctx, s.nocID, s.loc.Chip, r.xy.X, r.xy.Y, r.addr)
	if err != nil {
		return 0, errors.Annotatef(err, "failed to read %s on %s", name, s.loc)
	}
	v := (raw >> r.sh) & r.mask
	glog.V(3).Infof("%s %s == 0x%x", s.loc, name, v)
	return v, nil
}

// Write stores value&mask into the field. Fields narrower than a word are
// read-modify-written as one transport operation: if the read fails,
// nothing is written.
func (s *Store) Write(ctx context.Context, name string, value uint32) error {
	r, err := s.resolve(name)
	if err != nil {
		return errors.Trace(err)
	}
	glog.V(3).Infof("%s %s = 0x%x", s.loc, name, value)
	if r.mask == math.MaxUint32 && r.sh == 0 {
		return errors.Annotatef(s.tr.Write32(ctx, s.nocID, s.loc.Chip, r.xy.X, r.xy.Y, r.addr, value),
			"failed to write %s on %s", name, s.loc)
	}
	_, err = s.tr.Update32(ctx, s.nocID, s.loc.Chip, r.xy.X, r.xy.Y, r.addr, func(old uint32) uint32 {
		return (old &^ (r.mask << r.sh)) | ((value & r.mask) << r.sh)
	})
	return errors.Annotatef(err, "failed to write %s on %s", name, s.loc)
}

// Update replaces the field value with update(old) in one read-modify-write.
// update sees and returns field values, not raw words.
func (s *Store) Update(ctx context.Context, name string, update func(old uint32) uint32) (uint32, error) {
	r, err := s.resolve(name)
	if err != nil {
		return 0, errors.Trace(err)
	}
	var res uint32
	_, err = s.tr.Update32(ctx, s.nocID, s.loc.Chip, r.xy.X, r.xy.Y, r.addr, func(old uint32) uint32 {
		res = update((old>>r.sh)&r.mask) & r.mask
		return (old &^ (r.mask << r.sh)) | (res << r.sh)
	})
	if err != nil {
		return 0, errors.Annotatef(err, "failed to update %s on %s", name, s.loc)
	}
	glog.V(3).Infof("%s %s := 0x%x", s.loc, name, res)
	return res, nil
}
