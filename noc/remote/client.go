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
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"

	"github.com/golang/glog"
	"github.com/juju/errors"
	"golang.org/x/net/websocket"

	"github.com/cesanta/nocdbg/noc/umd"
	"github.com/cesanta/nocdbg/version"
)

const origin = "http://localhost/"

// ProtocolError is returned when the server rejects a request it does not
// understand or sends a reply the client cannot parse. It is never retried.
type ProtocolError struct {
	Op  Opcode
	Msg string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error on %s: %s", e.Op, e.Msg)
}

func (e *ProtocolError) Permanent() bool {
	return true
}

func IsProtocolError(err error) bool {
	_, ok := errors.Cause(err).(*ProtocolError)
	return ok
}

// Client is a umd.Driver talking to a Server.
type Client struct {
	url           string
	serverVersion string

	mu          sync.Mutex
	conn        *websocket.Conn
	noc         int
	chips       []int
	mmio        map[int]bool
	blockAccess bool
}

var _ umd.Driver = (*Client)(nil)

// Dial connects to the server at url (ws://host:port/ws or wss://...) and
// checks that its version is at least minVersion. tlsConfig is only used
// for wss.
func Dial(ctx context.Context, url string, minVersion string, tlsConfig *tls.Config) (*Client, error) {
	cfg, err := websocket.NewConfig(url, origin)
	if err != nil {
		return nil, errors.Annotatef(err, "bad url %q", url)
	}
	cfg.TlsConfig = tlsConfig
	if deadline, ok := ctx.Deadline(); ok {
		cfg.Dialer = &net.Dialer{Deadline: deadline}
	}
	glog.V(1).Infof("connecting to %s", url)
	conn, err := websocket.DialConfig(cfg)
	if err != nil {
		return nil, errors.Annotatef(err, "connecting to %s", url)
	}
	c := &Client{url: url, conn: conn, mmio: map[int]bool{}}
	if err := c.hello(minVersion); err != nil {
		conn.Close()
		return nil, errors.Trace(err)
	}
	if err := c.loadChips(); err != nil {
		conn.Close()
		return nil, errors.Trace(err)
	}
	glog.Infof("connected to %s, server %s, chips %v", url, c.serverVersion, c.chips)
	return c, nil
}

func (c *Client) hello(minVersion string) error {
	d, err := c.call(OpHello, (&encoder{}).str(version.GetUserAgent()))
	if err != nil {
		return errors.Trace(err)
	}
	c.serverVersion = d.str()
	if d.err != nil {
		return &ProtocolError{Op: OpHello, Msg: d.err.Error()}
	}
	if !version.Compatible(c.serverVersion, minVersion) {
		return errors.NotSupportedf("server version %s (need %s or newer)", c.serverVersion, minVersion)
	}
	return nil
}

func (c *Client) loadChips() error {
	d, err := c.call(OpChips, &encoder{})
	if err != nil {
		return errors.Trace(err)
	}
	n := d.u32()
	for i := uint32(0); i < n && d.err == nil; i++ {
		id, mmio := d.int(), d.bool()
		c.chips = append(c.chips, id)
		c.mmio[id] = mmio
	}
	c.blockAccess = d.bool()
	if d.err != nil {
		return &ProtocolError{Op: OpChips, Msg: d.err.Error()}
	}
	return nil
}

// ServerVersion is the version string reported by the server.
func (c *Client) ServerVersion() string {
	return c.serverVersion
}

func statusError(status byte, msg string) error {
	switch status {
	case StatusNotFound:
		return errors.NewNotFound(nil, msg)
	case StatusNotValid:
		return errors.NewNotValid(nil, msg)
	case StatusNotSupported:
		return errors.NewNotSupported(nil, msg)
	}
	return errors.New(msg)
}

// call sends one request and waits for its reply. The returned decoder is
// positioned after the status byte.
func (c *Client) call(op Opcode, args *encoder) (*decoder, error) {
	req := append([]byte{byte(op)}, args.Bytes()...)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, errors.Errorf("%s: connection is closed", c.url)
	}
	if err := websocket.Message.Send(c.conn, req); err != nil {
		return nil, errors.Annotatef(err, "%s", op)
	}
	var resp []byte
	if err := websocket.Message.Receive(c.conn, &resp); err != nil {
		return nil, errors.Annotatef(err, "%s", op)
	}
	if len(resp) == 0 {
		return nil, &ProtocolError{Op: op, Msg: "empty reply"}
	}
	d := &decoder{b: resp[1:]}
	switch resp[0] {
	case StatusOK:
		return d, nil
	case StatusUnsupported:
		return nil, &ProtocolError{Op: op, Msg: d.str()}
	case StatusError, StatusNotFound, StatusNotValid, StatusNotSupported:
		msg := d.str()
		if d.err != nil {
			return nil, &ProtocolError{Op: op, Msg: d.err.Error()}
		}
		return nil, statusError(resp[0], msg)
	}
	return nil, &ProtocolError{Op: op, Msg: fmt.Sprintf("unknown status %d", resp[0])}
}

// exec is call for requests whose reply carries no data.
func (c *Client) exec(op Opcode, args *encoder) error {
	_, err := c.call(op, args)
	return err
}

func (c *Client) call32(op Opcode, args *encoder) (uint32, error) {
	d, err := c.call(op, args)
	if err != nil {
		return 0, err
	}
	v := d.u32()
	if d.err != nil {
		return 0, &ProtocolError{Op: op, Msg: d.err.Error()}
	}
	return v, nil
}

// SelectNoc sets the plane sent with the following accesses. The server
// selects it together with each access.
func (c *Client) SelectNoc(nocID int) error {
	if nocID != 0 && nocID != 1 {
		return errors.NotValidf("noc id %d", nocID)
	}
	c.mu.Lock()
	c.noc = nocID
	c.mu.Unlock()
	return nil
}

func (c *Client) target(chip, x, y int, addr uint64) target {
	c.mu.Lock()
	defer c.mu.Unlock()
	return target{noc: c.noc, chip: chip, x: x, y: y, addr: addr}
}

func (c *Client) Read32(chip, x, y int, addr uint64) (uint32, error) {
	return c.call32(OpRead32, (&encoder{}).target(c.target(chip, x, y, addr)))
}

func (c *Client) Write32(chip, x, y int, addr uint64, value uint32) error {
	return c.exec(OpWrite32, (&encoder{}).target(c.target(chip, x, y, addr)).u32(value))
}

func (c *Client) ReadBlock(chip, x, y int, addr uint64, buf []byte) error {
	for len(buf) > 0 {
		n := len(buf)
		if n > MaxTransfer {
			n = MaxTransfer
		}
		d, err := c.call(OpRead, (&encoder{}).target(c.target(chip, x, y, addr)).u32(uint32(n)))
		if err != nil {
			return err
		}
		data := d.bytes()
		if d.err != nil || len(data) != n {
			return &ProtocolError{Op: OpRead, Msg: fmt.Sprintf("expected %d bytes, got %d", n, len(data))}
		}
		copy(buf, data)
		buf, addr = buf[n:], addr+uint64(n)
	}
	return nil
}

func (c *Client) WriteBlock(chip, x, y int, addr uint64, data []byte) error {
	for len(data) > 0 {
		n := len(data)
		if n > MaxTransfer {
			n = MaxTransfer
		}
		if err := c.exec(OpWrite, (&encoder{}).target(c.target(chip, x, y, addr)).bytes(data[:n])); err != nil {
			return err
		}
		data, addr = data[n:], addr+uint64(n)
	}
	return nil
}

func (c *Client) SupportsBlockAccess() bool {
	return c.blockAccess
}

func (c *Client) Chips() []int {
	return append([]int(nil), c.chips...)
}

func (c *Client) IsMMIOCapable(chip int) bool {
	return c.mmio[chip]
}

func (c *Client) SwitchTunnel(chip int) error {
	return c.exec(OpSwitchTunnel, (&encoder{}).int(chip))
}

func (c *Client) ReadBar32(chip int, addr uint32) (uint32, error) {
	return c.call32(OpBarRead32, (&encoder{}).int(chip).u32(addr))
}

func (c *Client) WriteBar32(chip int, addr uint32, value uint32) error {
	return c.exec(OpBarWrite32, (&encoder{}).int(chip).u32(addr).u32(value))
}

func (c *Client) ReadTelemetry(chip int, tag uint32) (uint32, error) {
	return c.call32(OpTelemetry, (&encoder{}).int(chip).u32(tag))
}

// Call sends a raw request. Used to probe servers for optional features.
func (c *Client) Call(op Opcode, payload []byte) ([]byte, error) {
	e := &encoder{}
	e.buf.Write(payload)
	d, err := c.call(op, e)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return d.b, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return errors.Trace(err)
}
