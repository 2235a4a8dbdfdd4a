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

	"github.com/juju/errors"

	"github.com/cesanta/nocdbg/cli/devutil"
	"github.com/cesanta/nocdbg/cli/flags"
	"github.com/cesanta/nocdbg/noc/elfload"
	"github.com/cesanta/nocdbg/noc/risc"
	"github.com/cesanta/nocdbg/noc/runelf"
)

func runELF(ctx context.Context, s *devutil.Session) error {
	a, err := args(2, 2)
	if err != nil {
		return errors.Trace(err)
	}
	dev, b, err := locate(s, a[0])
	if err != nil {
		return errors.Trace(err)
	}
	f, err := elfload.Open(a[1])
	if err != nil {
		return errors.Trace(err)
	}
	rd, err := runelf.Run(ctx, dev, b, f, runelf.Options{Risc: *flags.Core, NeoID: *flags.Neo, NocID: *flags.Noc})
	if err != nil {
		return errors.Trace(err)
	}
	reportf("%s: started %s at 0x%x", rd, a[1], f.Entry)
	if !*flags.Verify {
		return nil
	}

	ld := elfload.NewLoader(s.Wrapper, rd, b.L1())
	if err := ld.VerifyCode(ctx, f); err != nil {
		return errors.Annotatef(err, "image check")
	}
	reportf("image check: ok")
	err = runelf.Verify(ctx, rd, ld, f, runelf.VerifyOptions{Progress: reportf})
	if err != nil {
		if pc, perr := rd.ReadGPR(ctx, risc.PCRegisterIndex); perr == nil {
			if sym, serr := f.SymbolAt(uint64(pc)); serr == nil {
				reportf("core stopped in %s+0x%x", sym.Name, uint64(pc)-sym.Addr)
			}
			if li, lerr := f.LineForPC(uint64(pc)); lerr == nil {
				reportf("at %s", li)
			}
		}
		return errors.Trace(err)
	}
	reportf("%s: self-test passed", rd)
	return nil
}
