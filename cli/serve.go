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
	"io/ioutil"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/cesanta/nocdbg/cli/devutil"
	"github.com/cesanta/nocdbg/cli/flags"
	"github.com/cesanta/nocdbg/noc/device"
	"github.com/cesanta/nocdbg/noc/remote"
	"github.com/cesanta/nocdbg/noc/sim"
	"github.com/cesanta/nocdbg/version"
)

// serve exports the local driver over a websocket until interrupted.
func serve(ctx context.Context, _ *devutil.Session) error {
	if *flags.Remote != "" {
		return errors.NotValidf("--remote with serve")
	}
	path, err := devutil.FindDescriptor()
	if err != nil {
		return errors.Trace(err)
	}
	desc, err := device.LoadDescriptor(path)
	if err != nil {
		return errors.Trace(err)
	}
	fl, err := devutil.Lock(*flags.LockFile)
	if err != nil {
		return errors.Trace(err)
	}
	defer fl.Unlock()
	drv, _, err := devutil.OpenDriver(ctx, desc)
	if err != nil {
		return errors.Trace(err)
	}
	defer drv.Close()

	srv := &http.Server{
		Addr:    *flags.Listen,
		Handler: remote.NewServer(drv, version.GetVersion()).Handler(),
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	reportf("Serving %s on ws://%s/ws", path, *flags.Listen)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	defer signal.Stop(sigc)
	select {
	case err := <-errc:
		return errors.Trace(err)
	case sig := <-sigc:
		glog.Infof("got %s, shutting down", sig)
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Trace(srv.Shutdown(sctx))
}

func simFirmware(ctx context.Context, _ *devutil.Session) error {
	a, err := args(0, 1)
	if err != nil {
		return errors.Trace(err)
	}
	kind := "verify"
	if len(a) > 0 {
		kind = a[0]
	}
	var img []byte
	switch kind {
	case "verify":
		img = sim.VerifyFirmware()
	case "ebreak":
		img = sim.EbreakFirmware(0)
	default:
		return errors.NotValidf("firmware %q", kind)
	}
	if err := ioutil.WriteFile(*flags.Output, img, 0644); err != nil {
		return errors.Trace(err)
	}
	reportf("Wrote %s (%d bytes)", *flags.Output, len(img))
	return nil
}
