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
	"context"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"
	"github.com/tebeka/atexit"

	"github.com/cesanta/nocdbg/cli/devutil"
	"github.com/cesanta/nocdbg/cli/flags"
	"github.com/cesanta/nocdbg/common/pflagenv"
	"github.com/cesanta/nocdbg/version"
)

const (
	envPrefix = "NOCDBG_"
)

var (
	versionFlag = flag.Bool("version", false, "Print version and exit")
	helpFull    = flag.Bool("helpfull", false, "Show full help, including advanced flags")
)

// handler runs one command. s is nil for commands that do not open the device.
type handler func(ctx context.Context, s *devutil.Session) error

type command struct {
	name     string
	handler  handler
	short    string
	required []string
	optional []string
	// noDevice commands get a nil session.
	noDevice bool
	extended bool
}

var commands []command

func init() {
	commands = []command{
		{"status", status, `Show the state of the cores of a tile: status LOC`, nil, []string{"chip", "noc", "neo"}, false, false},
		{"halt", halt, `Halt a core: halt LOC`, nil, []string{"chip", "core", "noc"}, false, false},
		{"cont", cont, `Resume a halted core: cont LOC`, nil, []string{"chip", "core", "noc"}, false, false},
		{"step", step, `Execute one instruction of a halted core: step LOC [COUNT]`, nil, []string{"chip", "core"}, false, false},
		{"reset", reset, `Assert or release soft reset: reset LOC|all on|off`, nil, []string{"chip", "core", "force"}, false, false},
		{"gpr", gpr, `Print the registers of a halted core: gpr LOC [REG...]`, nil, []string{"chip", "core"}, false, false},
		{"wr-gpr", writeGPR, `Write a register of a halted core: wr-gpr LOC REG VALUE`, nil, []string{"chip", "core"}, false, false},
		{"watch", watch, `List, set or clear watchpoints: watch LOC [INDEX pc|read|write|access|off [ADDR]]`, nil, []string{"chip", "core"}, false, false},
		{"rd", nocRead, `Read memory over the NOC: rd LOC ADDR [LEN]`, nil, []string{"chip", "noc"}, false, false},
		{"wr", nocWrite, `Write words over the NOC: wr LOC ADDR WORD...`, nil, []string{"chip", "noc"}, false, false},
		{"rd-priv", privRead, `Read core-private memory of a halted core: rd-priv LOC ADDR [WORDS]`, nil, []string{"chip", "core"}, false, true},
		{"wr-priv", privWrite, `Write core-private memory of a halted core: wr-priv LOC ADDR WORD...`, nil, []string{"chip", "core"}, false, true},
		{"reg", regRead, `Read a named register: reg LOC [NAME...]`, nil, []string{"chip", "noc"}, false, false},
		{"wr-reg", regWrite, `Write a named register: wr-reg LOC NAME VALUE`, nil, []string{"chip", "noc"}, false, false},
		{"dbg-bus", dbgBus, `Read debug bus signals: dbg-bus LOC [SIGNAL...]`, nil, []string{"chip", "noc"}, false, false},
		{"bar-rd", barRead, `Read a PCI BAR word: bar-rd ADDR`, nil, []string{"chip", "bar"}, false, true},
		{"bar-wr", barWrite, `Write a PCI BAR word: bar-wr ADDR VALUE`, nil, []string{"chip", "bar"}, false, true},
		{"telemetry", telemetry, `Read firmware telemetry: telemetry [TAG...]`, nil, []string{"chip"}, false, false},
		{"run-elf", runELF, `Load an ELF image on a core and start it: run-elf LOC FILE`, nil, []string{"chip", "core", "neo", "noc", "verify"}, false, false},
		{"serve", serve, `Serve the device to remote debuggers`, nil, []string{"listen", "sim", "descriptor"}, true, false},
		{"sim-fw", simFirmware, `Write the self-test firmware image: sim-fw [ebreak|verify]`, []string{"output"}, nil, true, true},
	}
}

func run(ctx context.Context) error {
	c, ok := findCommand(flag.Arg(0))
	if !ok {
		usage()
		return nil
	}
	if err := checkFlags(c.required); err != nil {
		return errors.Trace(err)
	}
	glog.V(2).Infof("running %s %v", c.name, flag.Args()[1:])
	if c.noDevice {
		return errors.Trace(c.handler(ctx, nil))
	}
	s, err := devutil.Open(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer s.Close()
	return errors.Trace(c.handler(ctx, s))
}

func main() {
	initFlags()
	flag.Parse()
	if err := pflagenv.Parse(envPrefix); err != nil {
		printError(err)
		os.Exit(1)
	}

	if *helpFull {
		showAllFlags()
		usage()
		return
	} else if *versionFlag {
		fmt.Printf("%s\nVersion: %s\nBuild ID: %s\n", "NOC debugger", version.GetVersion(), version.BuildId)
		return
	}

	if *flags.Verbose {
		flag.Set("logtostderr", "true")
		flag.Set("v", "2")
	}

	ctx, cancel := newContext(flag.Arg(0))
	atexit.Register(cancel)
	if err := run(ctx); err != nil {
		glog.Infof("Error: %s", errors.ErrorStack(err))
		printError(err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

// newContext bounds every command by --timeout except serve, which runs
// until interrupted.
func newContext(cmd string) (context.Context, context.CancelFunc) {
	if cmd == "serve" || *flags.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), *flags.Timeout)
}
