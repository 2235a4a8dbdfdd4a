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
package flags

import (
	"crypto/tls"
	"crypto/x509"
	"io/ioutil"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/cesanta/nocdbg/noc/umd"
)

var (
	Descriptor = flag.String("descriptor", "", "SoC descriptor YAML. If not set, "+DefaultDescriptorName+
		" next to the executable is used.")
	Remote = flag.String("remote", "", "Debug server to connect to, ws://host:port/ws. "+
		"If not set, the device is opened locally.")
	Sim        = flag.Bool("sim", false, "Use a simulated device built from the descriptor")
	SimSteps   = flag.Int("sim-steps", 0, "Instructions a simulated core runs per transaction")
	Bars       = flag.StringSlice("bar", nil, `PCI BAR mapping in the format "CHIP=PATH", e.g. 0=/sys/bus/pci/devices/0000:01:00.0/resource0. Can be used multiple times.`)
	MinVersion = flag.String("min-server-version", "", "Refuse to talk to debug servers older than this")

	Chip   = flag.Int("chip", 0, "Chip to operate on")
	Noc    = flag.Int("noc", 0, "NOC plane used for transactions, 0 or 1")
	Neo    = flag.Int("neo", 0, "Neo index of the core")
	Core   = flag.String("core", "brisc", "RISC core name")
	Coords = flag.String("coords", "noc0", "Coordinate system of locations: noc0, noc1, logical or translated")

	ReadTimeout       = flag.Duration("read-timeout", umd.DefaultReadTimeout, "A read slower than this that returns all ones is a timeout")
	WriteTimeout      = flag.Duration("write-timeout", umd.DefaultWriteTimeout, "Writes slower than this count towards --write-timeout-limit")
	WriteTimeoutLimit = flag.Int("write-timeout-limit", umd.DefaultWriteTimeoutLimit, "Consecutive slow writes reported as a timeout")
	RemoteChunkSize   = flag.Int("remote-chunk-size", umd.DefaultRemoteChunkSize, "Largest single transfer to a remote chip")
	Timeout           = flag.Duration("timeout", 20*time.Second, "Timeout for the whole command")

	LockFile = flag.String("lock-file", "/tmp/nocdbg.lock", "File locked while the device is in use")
	Listen   = flag.String("listen", "127.0.0.1:7070", "Address for the serve command")

	CertFile = flag.String("cert-file", "", "Client certificate file name")
	KeyFile  = flag.String("key-file", "", "Client key file name")
	CAFile   = flag.String("ca-cert-file", "", "CA certificate file name")

	Verify  = flag.Bool("verify", false, "After run-elf, check the image and run the debug self-test")
	Output  = flag.StringP("output", "o", "", "Output file")
	Force   = flag.Bool("force", false, "Do not ask for confirmation")
	Verbose = flag.Bool("verbose", false, "Verbose output")
)

const DefaultDescriptorName = "soc.yaml"

func UmdOptions() *umd.Options {
	return &umd.Options{
		ReadTimeout:       *ReadTimeout,
		WriteTimeout:      *WriteTimeout,
		WriteTimeoutLimit: *WriteTimeoutLimit,
		RemoteChunkSize:   *RemoteChunkSize,
	}
}

// ParseBars returns the --bar mappings keyed by chip.
func ParseBars() (map[int]string, error) {
	res := map[int]string{}
	for _, b := range *Bars {
		parts := strings.SplitN(b, "=", 2)
		if len(parts) != 2 || parts[1] == "" {
			return nil, errors.NotValidf("--bar %q", b)
		}
		chip, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, errors.Annotatef(err, "--bar %q", b)
		}
		res[chip] = parts[1]
	}
	return res, nil
}

func TLSConfigFromFlags() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: *CAFile == "",
	}

	// Load client cert / key if specified
	if *CertFile != "" && *KeyFile == "" {
		return nil, errors.Errorf("Please specify --key-file")
	}
	if *CertFile != "" {
		cert, err := tls.LoadX509KeyPair(*CertFile, *KeyFile)
		if err != nil {
			return nil, errors.Trace(err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	// Load CA cert if specified
	if *CAFile != "" {
		caCert, err := ioutil.ReadFile(*CAFile)
		if err != nil {
			return nil, errors.Trace(err)
		}
		tlsConfig.RootCAs = x509.NewCertPool()
		tlsConfig.RootCAs.AppendCertsFromPEM(caCert)
	}

	return tlsConfig, nil
}
