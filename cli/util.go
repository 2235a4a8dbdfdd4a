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
package main

import (
	"strconv"
	"strings"

	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/cesanta/nocdbg/cli/devutil"
	"github.com/cesanta/nocdbg/cli/flags"
	"github.com/cesanta/nocdbg/cli/ourutil"
	"github.com/cesanta/nocdbg/noc/block"
	"github.com/cesanta/nocdbg/noc/device"
	"github.com/cesanta/nocdbg/noc/risc"
)

func reportf(f string, args ...interface{}) {
	ourutil.Reportf(f, args...)
}

// args returns the command arguments, checking their number.
func args(min, max int) ([]string, error) {
	a := flag.Args()[1:]
	if len(a) < min || (max >= 0 && len(a) > max) {
		return nil, errors.Errorf("invalid arguments, see \"help %s\"", flag.Arg(0))
	}
	return a, nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, errors.NotValidf("number %q", s)
	}
	return uint32(v), nil
}

// locate resolves a location argument on the --chip device. Locations
// without a system prefix are in the --coords system.
func locate(s *devutil.Session, arg string) (*device.Device, block.NocBlock, error) {
	dev, err := s.Device(*flags.Chip)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	if !strings.Contains(arg, ":") && *flags.Coords != "noc0" {
		arg = *flags.Coords + ":" + arg
	}
	loc, err := dev.ParseLocation(arg)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	b, err := dev.Block(loc)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return dev, b, nil
}

// core returns the --core controller of the block at arg.
func core(s *devutil.Session, arg string) (*risc.Debug, error) {
	_, b, err := locate(s, arg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	rd, err := b.RiscDebug(*flags.Core, *flags.Neo, *flags.Noc)
	return rd, errors.Trace(err)
}

var abiNames = []string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

func gprName(i int) string {
	if i == risc.PCRegisterIndex {
		return "pc"
	}
	return "x" + strconv.Itoa(i)
}

// parseGPR accepts x0..x31, ABI names, "fp" and "pc".
func parseGPR(s string) (int, error) {
	s = strings.ToLower(s)
	switch s {
	case "pc":
		return risc.PCRegisterIndex, nil
	case "fp":
		return 8, nil
	}
	for i, n := range abiNames {
		if n == s {
			return i, nil
		}
	}
	if strings.HasPrefix(s, "x") {
		if i, err := strconv.Atoi(s[1:]); err == nil && i >= 0 && i < 32 {
			return i, nil
		}
	}
	return 0, errors.NotValidf("register %q", s)
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true", "assert":
		return true, nil
	case "off", "0", "false", "release":
		return false, nil
	}
	return false, errors.NotValidf("%q, want on or off", s)
}
