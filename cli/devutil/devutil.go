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
package devutil

import (
	"context"
	"crypto/tls"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/glog"
	"github.com/juju/errors"
	"github.com/kardianos/osext"
	"github.com/tebeka/atexit"
	flock "github.com/theckman/go-flock"

	"github.com/cesanta/nocdbg/cli/flags"
	"github.com/cesanta/nocdbg/noc/block"
	"github.com/cesanta/nocdbg/noc/coord"
	"github.com/cesanta/nocdbg/noc/device"
	"github.com/cesanta/nocdbg/noc/pcibar"
	"github.com/cesanta/nocdbg/noc/remote"
	"github.com/cesanta/nocdbg/noc/sim"
	"github.com/cesanta/nocdbg/noc/umd"
)

// Session is an opened device: the driver, its wrapper and one Device per chip.
type Session struct {
	Desc    *device.Descriptor
	Driver  umd.Driver
	Wrapper *umd.Wrapper
	Devices []*device.Device
	// Sim is set when the driver is simulated.
	Sim *sim.Device

	lock *flock.Flock
}

// FindDescriptor returns --descriptor, or the default descriptor next to
// the executable.
func FindDescriptor() (string, error) {
	if *flags.Descriptor != "" {
		return *flags.Descriptor, nil
	}
	dir, err := osext.ExecutableFolder()
	if err != nil {
		return "", errors.Annotatef(err, "failed to locate the executable")
	}
	path := filepath.Join(dir, flags.DefaultDescriptorName)
	if _, err := os.Stat(path); err != nil {
		return "", errors.NotFoundf("%s (use --descriptor)", path)
	}
	return path, nil
}

// SimConfig builds a simulator matching the descriptor.
func SimConfig(desc *device.Descriptor, steps int) (sim.Config, error) {
	blocks, err := desc.Blocks()
	if err != nil {
		return sim.Config{}, errors.Trace(err)
	}
	tiles := map[coord.XY]sim.TileKind{}
	for xy, t := range blocks {
		switch t {
		case block.TypeTensix:
			tiles[xy] = sim.TileTensix
		case block.TypeEth:
			tiles[xy] = sim.TileEth
		}
	}
	cfg := sim.Config{Width: desc.Grid.X, Height: desc.Grid.Y, Steps: steps}
	for _, cd := range desc.Chips {
		cfg.Chips = append(cfg.Chips, sim.ChipConfig{
			ID:      cd.ID,
			MMIO:    cd.MMIO,
			Tiles:   tiles,
			Tunnels: len(cd.Tunnels),
		})
	}
	return cfg, nil
}

// OpenDriver opens the driver selected by the flags. The simulator is
// returned separately when it is used.
func OpenDriver(ctx context.Context, desc *device.Descriptor) (umd.Driver, *sim.Device, error) {
	switch {
	case *flags.Remote != "":
		var tlsConfig *tls.Config
		if strings.HasPrefix(*flags.Remote, "wss") {
			tc, err := flags.TLSConfigFromFlags()
			if err != nil {
				return nil, nil, errors.Trace(err)
			}
			tlsConfig = tc
		}
		c, err := remote.Dial(ctx, *flags.Remote, *flags.MinVersion, tlsConfig)
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		return c, nil, nil
	case *flags.Sim:
		cfg, err := SimConfig(desc, *flags.SimSteps)
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		s, err := sim.New(cfg)
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		return s, s, nil
	}
	return nil, nil, errors.NotSupportedf("no native driver in this build, use --sim or --remote")
}

// withBars puts the --bar mappings in front of drv.
func withBars(drv umd.Driver) (umd.Driver, error) {
	paths, err := flags.ParseBars()
	if err != nil || len(paths) == 0 {
		return drv, errors.Trace(err)
	}
	chips := make([]int, 0, len(paths))
	for chip := range paths {
		chips = append(chips, chip)
	}
	sort.Ints(chips)
	bars := map[int]*pcibar.Bar{}
	for _, chip := range chips {
		b, err := pcibar.Open(paths[chip])
		if err != nil {
			for _, b := range bars {
				b.Close()
			}
			return nil, errors.Annotatef(err, "chip %d", chip)
		}
		bars[chip] = b
	}
	return pcibar.NewDriver(drv, bars), nil
}

// Lock takes the cross-process device lock, failing if another process
// holds it.
func Lock(path string) (*flock.Flock, error) {
	fl := flock.NewFlock(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, errors.Annotatef(err, "failed to lock %s", path)
	}
	if !ok {
		return nil, errors.Errorf("device is in use by another process (%s is locked)", path)
	}
	return fl, nil
}

// Open opens the device according to the flags. The session is closed at
// exit if the caller does not close it first.
func Open(ctx context.Context) (*Session, error) {
	path, err := FindDescriptor()
	if err != nil {
		return nil, errors.Trace(err)
	}
	desc, err := device.LoadDescriptor(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	s := &Session{Desc: desc}
	if *flags.Remote == "" {
		if s.lock, err = Lock(*flags.LockFile); err != nil {
			return nil, errors.Trace(err)
		}
	}
	drv, simDev, err := OpenDriver(ctx, desc)
	if err != nil {
		s.Close()
		return nil, errors.Trace(err)
	}
	s.Sim = simDev
	if s.Driver, err = withBars(drv); err != nil {
		drv.Close()
		s.Close()
		return nil, errors.Trace(err)
	}
	s.Wrapper = umd.NewWrapper(s.Driver, flags.UmdOptions())
	if s.Devices, err = device.Open(s.Wrapper, desc); err != nil {
		s.Close()
		return nil, errors.Trace(err)
	}
	atexit.Register(func() { s.Close() })
	glog.V(1).Infof("opened %s: %d chip(s)", path, len(s.Devices))
	return s, nil
}

// Device returns the device of the given chip.
func (s *Session) Device(chip int) (*device.Device, error) {
	for _, d := range s.Devices {
		if d.ID == chip {
			return d, nil
		}
	}
	return nil, errors.NotFoundf("chip %d", chip)
}

func (s *Session) Close() error {
	var err error
	if s.Wrapper != nil {
		err = s.Wrapper.Close()
		s.Wrapper, s.Driver = nil, nil
	}
	if s.lock != nil {
		s.lock.Unlock()
		s.lock = nil
	}
	return errors.Trace(err)
}
