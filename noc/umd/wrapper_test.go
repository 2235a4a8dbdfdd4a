package umd

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memDriver is a word-addressed memory with one tile.
type memDriver struct {
	mem        map[uint64]uint32
	block      bool
	mmio       bool
	maxBlock   int
	nocSelects int
}

func newMemDriver(block, mmio bool) *memDriver {
	return &memDriver{mem: map[uint64]uint32{}, block: block, mmio: mmio}
}

func (d *memDriver) SelectNoc(nocID int) error { d.nocSelects++; return nil }
func (d *memDriver) Read32(chip, x, y int, addr uint64) (uint32, error) {
	if addr%4 != 0 {
		return 0, fmt.Errorf("unaligned 0x%x", addr)
	}
	return d.mem[addr], nil
}
func (d *memDriver) Write32(chip, x, y int, addr uint64, value uint32) error {
	if addr%4 != 0 {
		return fmt.Errorf("unaligned 0x%x", addr)
	}
	d.mem[addr] = value
	return nil
}
func (d *memDriver) ReadBlock(chip, x, y int, addr uint64, buf []byte) error {
	if addr%4 != 0 || len(buf)%4 != 0 {
		return fmt.Errorf("unaligned block 0x%x %d", addr, len(buf))
	}
	if len(buf) > d.maxBlock {
		d.maxBlock = len(buf)
	}
	for i := 0; i < len(buf); i += 4 {
		binary.LittleEndian.PutUint32(buf[i:], d.mem[addr+uint64(i)])
	}
	return nil
}
func (d *memDriver) WriteBlock(chip, x, y int, addr uint64, data []byte) error {
	if addr%4 != 0 || len(data)%4 != 0 {
		return fmt.Errorf("unaligned block 0x%x %d", addr, len(data))
	}
	if len(data) > d.maxBlock {
		d.maxBlock = len(data)
	}
	for i := 0; i < len(data); i += 4 {
		d.mem[addr+uint64(i)] = binary.LittleEndian.Uint32(data[i:])
	}
	return nil
}
func (d *memDriver) SupportsBlockAccess() bool                          { return d.block }
func (d *memDriver) Chips() []int                                       { return []int{0} }
func (d *memDriver) IsMMIOCapable(chip int) bool                        { return d.mmio }
func (d *memDriver) SwitchTunnel(chip int) error                        { return nil }
func (d *memDriver) ReadBar32(chip int, addr uint32) (uint32, error)    { return 0, nil }
func (d *memDriver) WriteBar32(chip int, addr uint32, v uint32) error   { return nil }
func (d *memDriver) ReadTelemetry(chip int, tag uint32) (uint32, error) { return 0, nil }
func (d *memDriver) Close() error                                       { return nil }

func TestUnalignedRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, block := range []bool{false, true} {
		for base := uint64(0x100); base < 0x108; base++ {
			for size := 0; size <= 13; size++ {
				drv := newMemDriver(block, true)
				w := NewWrapper(drv, nil)
				// Fill the surroundings with a known background.
				bg := bytes.Repeat([]byte{0xa5}, 32)
				_, err := w.Write(ctx, 0, 0, 1, 1, 0xf8, bg)
				require.NoError(t, err)

				data := make([]byte, size)
				for i := range data {
					data[i] = byte(i + 1)
				}
				n, err := w.Write(ctx, 0, 0, 1, 1, base, data)
				require.NoError(t, err)
				require.Equal(t, size, n)

				got, err := w.Read(ctx, 0, 0, 1, 1, base, size)
				require.NoError(t, err)
				require.Equal(t, data, got, "base 0x%x size %d block %t", base, size, block)

				all, err := w.Read(ctx, 0, 0, 1, 1, 0xf8, 32)
				require.NoError(t, err)
				for i, b := range all {
					a := 0xf8 + uint64(i)
					if a >= base && a < base+uint64(size) {
						continue
					}
					require.Equal(t, byte(0xa5), b, "byte at 0x%x clobbered (base 0x%x size %d)", a, base, size)
				}
			}
		}
	}
}

func TestRemoteChunking(t *testing.T) {
	ctx := context.Background()
	drv := newMemDriver(true, false)
	w := NewWrapper(drv, nil)
	data := make([]byte, 5000)
	for i := range data {
		data[i] = byte(i * 7)
	}
	_, err := w.Write(ctx, 0, 1, 1, 1, 0x1000, data)
	require.NoError(t, err)
	got, err := w.Read(ctx, 0, 1, 1, 1, 0x1000, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, DefaultRemoteChunkSize, drv.maxBlock)

	local := newMemDriver(true, true)
	w = NewWrapper(local, nil)
	_, err = w.Write(ctx, 0, 0, 1, 1, 0x1000, data)
	require.NoError(t, err)
	assert.Equal(t, len(data), local.maxBlock)
}

func TestNocSelectedOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	drv := newMemDriver(false, true)
	w := NewWrapper(drv, nil)
	for i := 0; i < 3; i++ {
		_, err := w.Read32(ctx, 1, 0, 0, 0, 0)
		require.NoError(t, err)
	}
	_, err := w.Read32(ctx, 0, 0, 0, 0, 0)
	require.NoError(t, err)
	if got, want := drv.nocSelects, 2; got != want {
		t.Errorf("got: %d, want: %d", got, want)
	}
	if _, err := w.Read32(ctx, 2, 0, 0, 0, 0); !errors.IsNotValid(err) {
		t.Errorf("noc2 must be rejected, got %v", err)
	}
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newMockWrapper(t *testing.T) (*Wrapper, *MockDriver, *fakeClock) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	drv := NewMockDriver(ctrl)
	drv.EXPECT().SelectNoc(gomock.Any()).Return(nil).AnyTimes()
	drv.EXPECT().IsMMIOCapable(0).Return(true).AnyTimes()
	drv.EXPECT().SupportsBlockAccess().Return(true).AnyTimes()
	clk := &fakeClock{t: time.Unix(1000, 0)}
	w := NewWrapper(drv, &Options{Now: clk.Now})
	return w, drv, clk
}

func TestStuckReadTimesOutImmediately(t *testing.T) {
	w, drv, clk := newMockWrapper(t)
	drv.EXPECT().Read32(0, 1, 1, uint64(0x40)).DoAndReturn(func(chip, x, y int, addr uint64) (uint32, error) {
		clk.advance(time.Second)
		return StuckValue, nil
	}).Times(1)
	_, err := w.Read32(context.Background(), 0, 0, 1, 1, 0x40)
	te, ok := AsTimeout(err)
	require.True(t, ok, "want timeout, got %v", err)
	assert.True(t, te.IsRead)
	assert.Equal(t, uint64(0x40), te.Address)
	assert.Equal(t, 4, te.Size)
	assert.Equal(t, time.Second, te.Elapsed)
}

func TestSlowReadWithRealDataIsNotTimeout(t *testing.T) {
	w, drv, clk := newMockWrapper(t)
	drv.EXPECT().Read32(0, 1, 1, uint64(0x40)).DoAndReturn(func(chip, x, y int, addr uint64) (uint32, error) {
		clk.advance(time.Second)
		return 0x1234, nil
	})
	v, err := w.Read32(context.Background(), 0, 0, 1, 1, 0x40)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1234), v)
}

func TestConsecutiveSlowWritesEscalate(t *testing.T) {
	ctx := context.Background()
	w, drv, clk := newMockWrapper(t)
	slow := func(chip, x, y int, addr uint64, value uint32) error {
		clk.advance(time.Second)
		return nil
	}
	fast := func(chip, x, y int, addr uint64, value uint32) error {
		return nil
	}
	drv.EXPECT().Write32(0, 1, 1, gomock.Any(), gomock.Any()).DoAndReturn(slow).Times(DefaultWriteTimeoutLimit - 1)
	for i := 0; i < DefaultWriteTimeoutLimit-1; i++ {
		require.NoError(t, w.Write32(ctx, 0, 0, 1, 1, uint64(0x100+4*i), 1))
	}

	// One fast write resets the counter.
	drv.EXPECT().Write32(0, 1, 1, gomock.Any(), gomock.Any()).DoAndReturn(fast).Times(1)
	require.NoError(t, w.Write32(ctx, 0, 0, 1, 1, 0x200, 1))

	drv.EXPECT().Write32(0, 1, 1, gomock.Any(), gomock.Any()).DoAndReturn(slow).Times(DefaultWriteTimeoutLimit)
	for i := 0; i < DefaultWriteTimeoutLimit-1; i++ {
		require.NoError(t, w.Write32(ctx, 0, 0, 1, 1, uint64(0x300+4*i), 1))
	}
	err := w.Write32(ctx, 0, 0, 1, 1, 0x400, 1)
	te, ok := AsTimeout(err)
	require.True(t, ok, "want timeout, got %v", err)
	assert.False(t, te.IsRead)
	// The first slow write of the run is reported.
	assert.Equal(t, uint64(0x300), te.Address)
}

func TestUpdateReadLegFailureWritesNothing(t *testing.T) {
	w, drv, clk := newMockWrapper(t)
	drv.EXPECT().Read32(0, 1, 1, uint64(0x80)).DoAndReturn(func(chip, x, y int, addr uint64) (uint32, error) {
		clk.advance(time.Second)
		return StuckValue, nil
	})
	// No Write32 expectation: gomock fails the test if one is issued.
	_, err := w.Update32(context.Background(), 0, 0, 1, 1, 0x80, func(old uint32) uint32 { return old | 1 })
	assert.True(t, IsTimeout(err), "got %v", err)
}

func TestRemoteFailoverRetriesOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	drv := NewMockDriver(ctrl)
	drv.EXPECT().IsMMIOCapable(3).Return(false).AnyTimes()
	gomock.InOrder(
		drv.EXPECT().SelectNoc(0).Return(nil),
		drv.EXPECT().Read32(3, 2, 2, uint64(0x10)).Return(uint32(0), errors.New("link down")),
		drv.EXPECT().SwitchTunnel(3).Return(nil),
		drv.EXPECT().SelectNoc(0).Return(nil),
		drv.EXPECT().Read32(3, 2, 2, uint64(0x10)).Return(uint32(0x55), nil),
	)
	w := NewWrapper(drv, nil)
	v, err := w.Read32(context.Background(), 0, 3, 2, 2, 0x10)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x55), v)
}

func TestRemoteFailoverGivesUpAfterRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	drv := NewMockDriver(ctrl)
	drv.EXPECT().IsMMIOCapable(3).Return(false).AnyTimes()
	drv.EXPECT().SelectNoc(0).Return(nil).Times(2)
	drv.EXPECT().Write32(3, 2, 2, uint64(0x10), uint32(1)).Return(errors.New("link down")).Times(2)
	drv.EXPECT().SwitchTunnel(3).Return(nil).Times(1)
	w := NewWrapper(drv, nil)
	err := w.Write32(context.Background(), 0, 3, 2, 2, 0x10, 1)
	require.Error(t, err)
}

type permanentErr struct{}

func (permanentErr) Error() string   { return "bad request" }
func (permanentErr) Permanent() bool { return true }

func TestPermanentErrorIsNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	drv := NewMockDriver(ctrl)
	drv.EXPECT().IsMMIOCapable(3).Return(false).AnyTimes()
	drv.EXPECT().SelectNoc(0).Return(nil)
	drv.EXPECT().Read32(3, 2, 2, uint64(0x10)).Return(uint32(0), errors.Trace(permanentErr{}))
	w := NewWrapper(drv, nil)
	_, err := w.Read32(context.Background(), 0, 3, 2, 2, 0x10)
	require.Error(t, err)
	assert.Equal(t, permanentErr{}, errors.Cause(err))
}

func TestBarAccessOnlyOnMMIOChips(t *testing.T) {
	drv := newMemDriver(true, false)
	w := NewWrapper(drv, nil)
	_, err := w.ReadBar32(context.Background(), 0, 0x1f0)
	if !errors.IsNotSupported(err) {
		t.Errorf("want NotSupported, got %v", err)
	}
}

func TestCancelledContextIssuesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	drv := NewMockDriver(ctrl)
	w := NewWrapper(drv, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.Read(ctx, 0, 0, 0, 0, 0, 16)
	if errors.Cause(err) != context.Canceled {
		t.Errorf("got %v", err)
	}
}
