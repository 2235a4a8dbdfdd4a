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

// Package pflagenv fills flags that were not given on the command line from
// environment variables, so that NOCDBG_REMOTE=ws://... works like --remote.
package pflagenv

import (
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/spf13/pflag"

	"github.com/cesanta/nocdbg/common/multierror"
)

// Lookup is os.LookupEnv, replaceable in tests.
type Lookup func(name string) (string, bool)

// EnvName returns the variable consulted for a flag: the prefix followed by
// the upper-cased flag name with dashes turned into underscores.
func EnvName(flagName, envPrefix string) string {
	return envPrefix + strings.ToUpper(strings.Replace(flagName, "-", "_", -1))
}

// ParseFlagSet must be called after fs.Parse. Flags set on the command line
// win over the environment. A variable that is present but empty is
// ignored. Values the flag rejects are reported together.
func ParseFlagSet(fs *pflag.FlagSet, envPrefix string, lookup Lookup) error {
	// pflag only tells apart flags that were set, so collect all of them and
	// drop those that were.
	unset := map[string]*pflag.Flag{}
	fs.VisitAll(func(f *pflag.Flag) {
		unset[f.Name] = f
	})
	fs.Visit(func(f *pflag.Flag) {
		delete(unset, f.Name)
	})

	names := make([]string, 0, len(unset))
	for name := range unset {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs error
	for _, name := range names {
		env := EnvName(name, envPrefix)
		v, ok := lookup(env)
		if !ok || v == "" {
			continue
		}
		if err := fs.Set(name, v); err != nil {
			errs = multierror.Append(errs, errors.Annotatef(err, "%s", env))
		}
	}
	return errs
}
