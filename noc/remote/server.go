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
package remote

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"
	"goji.io"
	"goji.io/pat"
	"golang.org/x/net/websocket"

	"github.com/cesanta/nocdbg/noc/umd"
)

// Server exposes a driver to remote clients. Requests from all connections
// are serialized on the driver.
type Server struct {
	drv     umd.Driver
	version string

	mu sync.Mutex
}

func NewServer(drv umd.Driver, version string) *Server {
	return &Server{drv: drv, version: version}
}

// Handler returns the HTTP handler serving the websocket endpoint at /ws
// and a JSON summary at /info.
func (s *Server) Handler() http.Handler {
	mux := goji.NewMux()
	mux.Use(makeLogger())
	mux.Handle(pat.Get("/ws"), websocket.Handler(s.serveConn))
	mux.HandleFunc(pat.Get("/info"), s.serveInfo)
	return mux
}

// Info is the body of the /info reply.
type Info struct {
	Version string     `json:"version"`
	Chips   []ChipInfo `json:"chips"`
}

func (s *Server) chips() []ChipInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []ChipInfo
	for _, c := range s.drv.Chips() {
		res = append(res, ChipInfo{ID: c, MMIO: s.drv.IsMMIOCapable(c)})
	}
	return res
}

func (s *Server) serveInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(&Info{Version: s.version, Chips: s.chips()}); err != nil {
		glog.Errorf("info: %s", err)
	}
}

func (s *Server) serveConn(conn *websocket.Conn) {
	peer := conn.Request().RemoteAddr
	glog.Infof("%s: connected", peer)
	defer conn.Close()
	for {
		var req []byte
		if err := websocket.Message.Receive(conn, &req); err != nil {
			if err != io.EOF {
				glog.Errorf("%s: %s", peer, err)
			}
			glog.Infof("%s: disconnected", peer)
			return
		}
		resp := s.handle(req)
		if err := websocket.Message.Send(conn, resp); err != nil {
			glog.Errorf("%s: %s", peer, err)
			return
		}
	}
}

func errorReply(err error) []byte {
	var status byte = StatusError
	switch {
	case errors.IsNotImplemented(err):
		status = StatusUnsupported
	case errors.IsNotFound(err):
		status = StatusNotFound
	case errors.IsNotValid(err):
		status = StatusNotValid
	case errors.IsNotSupported(err):
		status = StatusNotSupported
	}
	e := &encoder{}
	return e.u8(status).str(err.Error()).Bytes()
}

// handle executes one request and returns the encoded reply.
func (s *Server) handle(req []byte) []byte {
	if len(req) == 0 {
		return errorReply(errors.New("empty request"))
	}
	op := Opcode(req[0])
	d := &decoder{b: req[1:]}
	out := &encoder{}
	out.u8(StatusOK)

	s.mu.Lock()
	err := s.dispatch(op, d, out)
	s.mu.Unlock()

	if err == nil && d.err != nil {
		err = d.err
	}
	if err != nil {
		glog.V(2).Infof("%s: %s", op, err)
		return errorReply(err)
	}
	glog.V(4).Infof("%s: ok, %d bytes", op, len(out.Bytes())-1)
	return out.Bytes()
}

// selectNoc must be called with s.mu held, in the same critical section as
// the access it is for.
func (s *Server) selectNoc(nocID int) error {
	if nocID != 0 && nocID != 1 {
		return errors.NotValidf("noc id %d", nocID)
	}
	return errors.Trace(s.drv.SelectNoc(nocID))
}

func (s *Server) dispatch(op Opcode, d *decoder, out *encoder) error {
	switch op {
	case OpHello:
		peer := d.str()
		glog.V(1).Infof("hello from %q", peer)
		out.str(s.version)
	case OpRead32:
		t := d.target()
		if d.err != nil {
			return nil
		}
		if err := s.selectNoc(t.noc); err != nil {
			return errors.Trace(err)
		}
		v, err := s.drv.Read32(t.chip, t.x, t.y, t.addr)
		if err != nil {
			return errors.Trace(err)
		}
		out.u32(v)
	case OpWrite32:
		t, v := d.target(), d.u32()
		if d.err != nil {
			return nil
		}
		if err := s.selectNoc(t.noc); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(s.drv.Write32(t.chip, t.x, t.y, t.addr, v))
	case OpRead:
		t, n := d.target(), d.u32()
		if d.err != nil {
			return nil
		}
		if n > MaxTransfer {
			return errors.NotValidf("read of %d bytes", n)
		}
		if err := s.selectNoc(t.noc); err != nil {
			return errors.Trace(err)
		}
		buf := make([]byte, n)
		if err := s.drv.ReadBlock(t.chip, t.x, t.y, t.addr, buf); err != nil {
			return errors.Trace(err)
		}
		out.bytes(buf)
	case OpWrite:
		t, data := d.target(), d.bytes()
		if d.err != nil {
			return nil
		}
		if err := s.selectNoc(t.noc); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(s.drv.WriteBlock(t.chip, t.x, t.y, t.addr, data))
	case OpBarRead32:
		chip, addr := d.int(), d.u32()
		if d.err != nil {
			return nil
		}
		v, err := s.drv.ReadBar32(chip, addr)
		if err != nil {
			return errors.Trace(err)
		}
		out.u32(v)
	case OpBarWrite32:
		chip, addr, v := d.int(), d.u32(), d.u32()
		if d.err != nil {
			return nil
		}
		return errors.Trace(s.drv.WriteBar32(chip, addr, v))
	case OpTelemetry:
		chip, tag := d.int(), d.u32()
		if d.err != nil {
			return nil
		}
		v, err := s.drv.ReadTelemetry(chip, tag)
		if err != nil {
			return errors.Trace(err)
		}
		out.u32(v)
	case OpChips:
		chips := s.drv.Chips()
		out.u32(uint32(len(chips)))
		for _, c := range chips {
			out.int(c).bool(s.drv.IsMMIOCapable(c))
		}
		out.bool(s.drv.SupportsBlockAccess())
	case OpSwitchTunnel:
		chip := d.int()
		if d.err != nil {
			return nil
		}
		return errors.Trace(s.drv.SwitchTunnel(chip))
	default:
		return errors.NotImplementedf("opcode %d", byte(op))
	}
	return nil
}

func makeLogger() func(inner http.Handler) http.Handler {
	return func(inner http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := r.URL.Path
			if r.URL.RawQuery != "" {
				path += "?" + r.URL.RawQuery
			}
			clientIP := r.RemoteAddr
			if ips, ok := r.Header["X-Real-Ip"]; ok && len(ips) > 0 {
				clientIP = ips[0]
			}
			glog.V(1).Infof("START | %s | %-7s %s", clientIP, r.Method, path)
			inner.ServeHTTP(w, r)
			glog.V(1).Infof("END %13v | %s | %-7s %s", time.Since(start), clientIP, r.Method, path)
		})
	}
}
