package elfload

import (
	"bytes"
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesanta/nocdbg/noc/block"
	"github.com/cesanta/nocdbg/noc/coord"
	"github.com/cesanta/nocdbg/noc/sim"
	"github.com/cesanta/nocdbg/noc/umd"
)

func TestParseFirmware(t *testing.T) {
	f, err := Parse(bytes.NewReader(sim.VerifyFirmware()))
	require.NoError(t, err)
	assert.Equal(t, uint64(sim.FirmwareBase), f.Entry)
	require.Len(t, f.Segments, 2)
	assert.Equal(t, uint64(sim.FirmwareBase), f.Segments[0].Addr)
	assert.Equal(t, uint64(sim.FirmwareMailbox), f.Segments[1].Addr)
	assert.Equal(t, uint64(0x20), f.Segments[1].MemSize)
	assert.True(t, f.Segments[0].Exec)
	assert.False(t, f.Segments[1].Exec)

	addr, err := f.SymbolAddress("mailbox")
	require.NoError(t, err)
	assert.Equal(t, uint64(sim.FirmwareMailbox), addr)
	_, err = f.SymbolAddress("main")
	assert.True(t, errors.IsNotFound(err))

	s, err := f.SymbolAt(sim.FirmwareCommand + 1)
	require.NoError(t, err)
	assert.Equal(t, "debug_command", s.Name)
	_, err = f.SymbolAt(0x100)
	assert.True(t, errors.IsNotFound(err))

	syms := f.Symbols()
	require.Len(t, syms, 7)
	assert.Equal(t, "_start", syms[0].Name)

	assert.False(t, f.HasDebugInfo())
	_, err = f.LineForPC(sim.FirmwareBase)
	assert.True(t, errors.IsNotFound(err))
}

func TestParseRejects(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte("not an elf")))
	assert.Error(t, err)

	img := sim.EbreakFirmware(0)
	// e_machine = EM_X86_64
	img[18], img[19] = 62, 0
	_, err = Parse(bytes.NewReader(img))
	assert.True(t, errors.IsNotSupported(err), "%v", err)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fw.elf")
	require.NoError(t, ioutil.WriteFile(path, sim.EbreakFirmware(0x100), 0644))
	f, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x100), f.Entry)

	_, err = Open(filepath.Join(t.TempDir(), "missing.elf"))
	assert.Error(t, err)
}

type fixture struct {
	w   *umd.Wrapper
	xy  coord.XY
	blk block.NocBlock
}

func newFixture(t *testing.T) *fixture {
	xy := coord.XY{X: 1, Y: 1}
	dev, err := sim.New(sim.Config{
		Width: 4, Height: 4,
		Chips: []sim.ChipConfig{{ID: 0, MMIO: true, Tiles: map[coord.XY]sim.TileKind{xy: sim.TileTensix}}},
	})
	require.NoError(t, err)
	tbl, err := coord.NewTable(4, 4, nil, nil)
	require.NoError(t, err)
	loc, err := coord.NewLocation(0, coord.Noc0, xy, tbl)
	require.NoError(t, err)
	w := umd.NewWrapper(dev, nil)
	return &fixture{w: w, xy: xy, blk: block.NewTensixBlock(loc, w)}
}

func (f *fixture) loader(t *testing.T, core string) *Loader {
	rd, err := f.blk.RiscDebug(core, 0, 0)
	require.NoError(t, err)
	return NewLoader(f.w, rd, f.blk.L1())
}

func TestNocAddress(t *testing.T) {
	f := newFixture(t)
	ld := f.loader(t, "brisc")

	na, err := ld.NocAddress(0x1234, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1234), na)

	_, err = ld.NocAddress(block.TensixL1Size-2, 4)
	assert.True(t, errors.IsNotValid(err), "%v", err)
	_, err = ld.NocAddress(0x80000000, 4)
	assert.True(t, errors.IsNotValid(err), "%v", err)
	_, err = ld.NocAddress(block.LocalMemoryBase, 4)
	assert.True(t, errors.IsNotSupported(err), "%v", err)
	// IRAM belongs to ncrisc only.
	_, err = ld.NocAddress(block.NcriscIRAMBase, 4)
	assert.True(t, errors.IsNotValid(err), "%v", err)

	na, err = f.loader(t, "ncrisc").NocAddress(block.NcriscIRAMBase+8, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(block.NcriscIRAMBase+8), na)
}

func TestLoadAndVerify(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	ld := fx.loader(t, "brisc")

	img := sim.BuildELF(sim.Program{
		Entry: 0x9000,
		Segments: []sim.Segment{
			{Name: ".text", Addr: 0x9000, Data: sim.Words(sim.Nop(), sim.Ebreak())},
			{Name: ".bss", Addr: 0x9100, Data: []byte{1, 2, 3}, MemSize: 16},
		},
	})
	f, err := Parse(bytes.NewReader(img))
	require.NoError(t, err)

	// Junk where the zero-filled part goes.
	_, err = fx.w.Write(ctx, 0, 0, fx.xy.X, fx.xy.Y, 0x9100, bytes.Repeat([]byte{0xaa}, 16))
	require.NoError(t, err)

	require.NoError(t, ld.Load(ctx, f))
	require.NoError(t, ld.Verify(ctx, f))

	got, err := ld.ReadMemory(ctx, 0x9100, 16)
	require.NoError(t, err)
	assert.Equal(t, append([]byte{1, 2, 3}, make([]byte, 13)...), got)

	// Data changes only matter to the full check.
	require.NoError(t, ld.WriteMemory(ctx, 0x9101, []byte{0x55}))
	assert.Error(t, ld.Verify(ctx, f))
	require.NoError(t, ld.VerifyCode(ctx, f))

	require.NoError(t, ld.WriteMemory(ctx, 0x9004, []byte{0x13}))
	err = ld.Verify(ctx, f)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "0x9004")
	assert.Error(t, ld.VerifyCode(ctx, f))
}
