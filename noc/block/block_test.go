package block

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesanta/nocdbg/noc/coord"
	"github.com/cesanta/nocdbg/noc/sim"
	"github.com/cesanta/nocdbg/noc/umd"
)

func testLocation(t *testing.T, x, y int) coord.Location {
	tbl, err := coord.NewTable(10, 12, nil, nil)
	require.NoError(t, err)
	loc, err := coord.NewLocation(0, coord.Noc0, coord.XY{X: x, Y: y}, tbl)
	require.NoError(t, err)
	return loc
}

func TestParseType(t *testing.T) {
	for typ := TypeTensix; typ <= TypeRouterOnly; typ++ {
		got, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	_, err := ParseType("gpu")
	assert.True(t, errors.IsNotValid(err))
}

func TestNewByType(t *testing.T) {
	loc := testLocation(t, 1, 1)
	for typ, cores := range map[Type][]string{
		TypeTensix:     {"brisc", "trisc0", "trisc1", "trisc2", "ncrisc"},
		TypeEth:        {"erisc"},
		TypeDram:       nil,
		TypePcie:       nil,
		TypeHarvested:  nil,
		TypeRouterOnly: nil,
	} {
		b, err := New(typ, loc, nil)
		require.NoError(t, err)
		assert.Equal(t, typ, b.Type())
		var names []string
		for _, ri := range b.Riscs() {
			names = append(names, ri.Name)
		}
		assert.Equal(t, cores, names, "%s", typ)
		if len(cores) == 0 {
			_, err := b.RiscDebug("brisc", 0, 0)
			assert.True(t, errors.IsNotFound(err), "%s: %v", typ, err)
			assert.Nil(t, b.DebugBus())
			assert.Equal(t, uint64(0), b.L1().Size)
		}
		s, err := b.RegisterStore(1)
		require.NoError(t, err)
		assert.True(t, s.Has("NOC_NODE_ID"), "%s", typ)
		_, err = b.RegisterStore(2)
		assert.True(t, errors.IsNotValid(err))
	}
	_, err := New(Type(42), loc, nil)
	assert.True(t, errors.IsNotValid(err))
}

func TestDramStation(t *testing.T) {
	for x, want := range []int{0, 1, 2, 0, 1, 2, 0} {
		b := NewDramBlock(testLocation(t, x, 0), nil)
		assert.Equal(t, want, b.Station(), "column %d", x)
		s, err := b.RegisterStore(0)
		require.NoError(t, err)
		addr, err := s.Address("NOC_NODE_ID")
		require.NoError(t, err)
		na, err := addr.NocAddress()
		require.NoError(t, err)
		assert.Equal(t, dramNocBases[want][0]+NocNodeIDOffset, na)
	}
}

func TestRiscDebugCache(t *testing.T) {
	b := NewTensixBlock(testLocation(t, 1, 1), nil)
	a1, err := b.RiscDebug("trisc2", 0, 0)
	require.NoError(t, err)
	a2, err := b.RiscDebug("trisc2", 0, 0)
	require.NoError(t, err)
	assert.True(t, a1 == a2, "same key must return the same controller")

	n1, err := b.RiscDebug("trisc2", 0, 1)
	require.NoError(t, err)
	assert.False(t, a1 == n1)
	assert.Equal(t, 1, n1.NocID())
	assert.Equal(t, 1, n1.Store().NocID())

	_, err = b.RiscDebug("trisc2", 1, 0)
	assert.True(t, errors.IsNotValid(err), "%v", err)
	_, err = b.RiscDebug("trisc3", 0, 0)
	assert.True(t, errors.IsNotFound(err), "%v", err)
}

func TestTensixCores(t *testing.T) {
	b := NewTensixBlock(testLocation(t, 1, 1), nil)
	ncrisc, err := b.Risc("ncrisc")
	require.NoError(t, err)
	require.NotNil(t, ncrisc.CodeMemory)
	na, err := ncrisc.CodeMemory.ToNoc(NcriscIRAMBase + 0x10)
	require.NoError(t, err)
	assert.Equal(t, uint64(NcriscIRAMBase+0x10), na)
	assert.True(t, ncrisc.CanChangeCodeStart())

	brisc, err := b.Risc("brisc")
	require.NoError(t, err)
	assert.False(t, brisc.CanChangeCodeStart())
	_, err = brisc.LocalMemory.ToNoc(LocalMemoryBase)
	assert.True(t, errors.IsNotSupported(err), "%v", err)

	for i, v := range TriscResetVectors {
		ri, err := b.Risc(trisc(i))
		require.NoError(t, err)
		assert.Equal(t, v, ri.ResetVector)
		assert.Equal(t, uint(TensixResetShift+i+1), ri.ResetFlagShift)
	}
	assert.Equal(t, "brisc@chip0:1-1", brisc.String())
}

func TestDebugBusAndNodeID(t *testing.T) {
	ctx := context.Background()
	xy := coord.XY{X: 1, Y: 1}
	dev, err := sim.New(sim.Config{
		Width: 10, Height: 12,
		Chips: []sim.ChipConfig{{ID: 0, MMIO: true, Tiles: map[coord.XY]sim.TileKind{xy: sim.TileTensix}}},
	})
	require.NoError(t, err)
	w := umd.NewWrapper(dev, nil)
	b := NewTensixBlock(testLocation(t, xy.X, xy.Y), w)

	// The core stops on the ebreak at 8.
	_, err = w.Write(ctx, 0, 0, xy.X, xy.Y, 0, sim.Words(sim.Nop(), sim.Nop(), sim.Ebreak()))
	require.NoError(t, err)
	rd, err := b.RiscDebug("brisc", 0, 0)
	require.NoError(t, err)
	require.NoError(t, rd.SetReset(ctx, false))
	halted, err := rd.IsHalted(ctx)
	require.NoError(t, err)
	require.True(t, halted)

	s, err := b.RegisterStore(0)
	require.NoError(t, err)
	pc, err := b.DebugBus().Read(ctx, b, 0, "brisc_pc")
	require.NoError(t, err)
	assert.Equal(t, uint32(8), pc)
	_, err = b.DebugBus().Read(ctx, b, 0, "gpu_pc")
	assert.True(t, errors.IsNotFound(err))

	// Each plane reports the coordinates it addresses the tile with.
	id, err := s.Read(ctx, "NOC_NODE_ID")
	require.NoError(t, err)
	assert.Equal(t, uint32(1|1<<6), id)
	s1, err := b.RegisterStore(1)
	require.NoError(t, err)
	id, err = s1.Read(ctx, "NOC_NODE_ID")
	require.NoError(t, err)
	assert.Equal(t, uint32(8|10<<6), id)
}
