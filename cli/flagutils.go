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
	goflag "flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/cesanta/nocdbg/common/multierror"
	"github.com/cesanta/nocdbg/version"
)

// Flags listed by the short help. Everything else shows up with --helpfull.
var globalFlags = []string{"descriptor", "sim", "remote", "chip", "core", "noc", "timeout", "verbose"}

// initFlags pulls in the glog flags from the standard flag set, hidden.
func initFlags() {
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	goflag.CommandLine.VisitAll(func(gf *goflag.Flag) {
		flag.CommandLine.MarkHidden(gf.Name)
	})
	flag.Usage = usage
}

func showAllFlags() {
	flag.CommandLine.VisitAll(func(f *flag.Flag) { f.Hidden = false })
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func checkFlags(names []string) error {
	var errs error
	for _, name := range names {
		switch f := flag.Lookup(name); {
		case f == nil:
			errs = multierror.Append(errs, errors.NotFoundf("flag --%s", name))
		case !f.Changed:
			errs = multierror.Append(errs, errors.Errorf("--%s is required (%s)", f.Name, f.Usage))
		}
	}
	return errors.Trace(errs)
}

// flagRow is one tab-separated help line, or "" for unknown flags.
func flagRow(name string, required bool) string {
	f := flag.Lookup(name)
	if f == nil {
		return ""
	}
	spec := "--" + f.Name
	if f.Shorthand != "" {
		spec = "-" + f.Shorthand + ", " + spec
	}
	if t := f.Value.Type(); t != "bool" {
		spec += " " + t
	}
	note := fmt.Sprintf("default %q", f.DefValue)
	if required {
		note = "required"
	}
	return fmt.Sprintf("  %s\t%s (%s)\n", spec, f.Usage, note)
}

func writeCommandHelp(out io.Writer, prog string, c command) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintf(w, "%s\n\nUsage: %s %s [FLAGS]\n", c.short, prog, c.name)
	if len(c.required)+len(c.optional) == 0 {
		return
	}
	fmt.Fprintf(w, "\nFlags:\n")
	for _, name := range c.required {
		fmt.Fprint(w, flagRow(name, true))
	}
	for _, name := range c.optional {
		fmt.Fprint(w, flagRow(name, false))
	}
}

func writeUsage(out io.Writer, prog string, full bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()
	color.New(color.Bold).Fprintf(w, "NOC debugger %s\n", version.GetVersion())
	fmt.Fprintf(w, "Usage: %s <command> [ARGS] [FLAGS]\n", prog)
	fmt.Fprintf(w, "       %s help <command>\n", prog)
	fmt.Fprintf(w, "\nLocations are NOC0 X-Y, logical X,Y or SYSTEM:X-Y (noc0, noc1, logical, translated).\n")
	fmt.Fprintf(w, "\nCommands:\n")
	for _, c := range commands {
		if !c.extended || full {
			fmt.Fprintf(w, "  %s\t%s\n", c.name, c.short)
		}
	}
	fmt.Fprintf(w, "\nGlobal flags:\n")
	if full {
		w.Flush()
		fmt.Fprint(out, flag.CommandLine.FlagUsages())
		return
	}
	for _, name := range globalFlags {
		fmt.Fprint(w, flagRow(name, false))
	}
}

func printError(err error) {
	color.New(color.FgRed).Fprintf(os.Stderr, "Error: ")
	fmt.Fprintf(os.Stderr, "%s\n", err)
}

func usage() {
	prog := filepath.Base(os.Args[0])
	if len(os.Args) == 3 && os.Args[1] == "help" {
		if c, ok := findCommand(os.Args[2]); ok {
			writeCommandHelp(os.Stderr, prog, c)
			os.Exit(1)
		}
	}
	writeUsage(os.Stderr, prog, *helpFull)
}
