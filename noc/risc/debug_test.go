package risc_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesanta/nocdbg/noc/block"
	"github.com/cesanta/nocdbg/noc/coord"
	"github.com/cesanta/nocdbg/noc/risc"
	"github.com/cesanta/nocdbg/noc/sim"
	"github.com/cesanta/nocdbg/noc/umd"
)

var (
	tensixXY = coord.XY{X: 1, Y: 1}
	ethXY    = coord.XY{X: 2, Y: 0}
)

type fixture struct {
	dev    *sim.Device
	w      *umd.Wrapper
	tensix block.NocBlock
	eth    block.NocBlock
}

func newFixture(t *testing.T, race bool) *fixture {
	dev, err := sim.New(sim.Config{
		Width: 4, Height: 4,
		Chips: []sim.ChipConfig{{
			ID: 0, MMIO: true,
			Tiles: map[coord.XY]sim.TileKind{tensixXY: sim.TileTensix, ethXY: sim.TileEth},
		}},
		ReportContinueRace: race,
	})
	require.NoError(t, err)
	w := umd.NewWrapper(dev, nil)
	tbl, err := coord.NewTable(4, 4, nil, nil)
	require.NoError(t, err)
	loc := func(xy coord.XY) coord.Location {
		l, err := coord.NewLocation(0, coord.Noc0, xy, tbl)
		require.NoError(t, err)
		return l
	}
	return &fixture{
		dev:    dev,
		w:      w,
		tensix: block.NewTensixBlock(loc(tensixXY), w),
		eth:    block.NewEthBlock(loc(ethXY), w),
	}
}

func (f *fixture) core(t *testing.T, name string) *risc.Debug {
	rd, err := f.tensix.RiscDebug(name, 0, 0)
	require.NoError(t, err)
	return rd
}

// start writes code at addr and takes brisc out of reset. brisc starts at 0.
func (f *fixture) start(t *testing.T, code ...uint32) *risc.Debug {
	ctx := context.Background()
	_, err := f.w.Write(ctx, 0, 0, tensixXY.X, tensixXY.Y, 0, sim.Words(code...))
	require.NoError(t, err)
	rd := f.core(t, "brisc")
	require.NoError(t, rd.EnableDebug(ctx))
	require.NoError(t, rd.SetReset(ctx, false))
	return rd
}

// counterLoop increments t0 forever.
var counterLoop = []uint32{
	sim.Addi(sim.T0, sim.T0, 1),
	sim.Addi(sim.T1, sim.T1, 2),
	sim.Jal(sim.Zero, -8),
}

func TestHaltContinue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	rd := f.start(t, counterLoop...)

	halted, err := rd.IsHalted(ctx)
	require.NoError(t, err)
	assert.False(t, halted)

	var last uint32
	for i := 0; i < 3; i++ {
		require.NoError(t, rd.Halt(ctx))
		halted, err := rd.IsHalted(ctx)
		require.NoError(t, err)
		require.True(t, halted)

		pc, err := rd.ReadGPR(ctx, risc.PCRegisterIndex)
		require.NoError(t, err)
		assert.Contains(t, []uint32{0, 4, 8}, pc)

		// The core must not move while halted.
		n, err := rd.ReadGPR(ctx, int(sim.T0))
		require.NoError(t, err)
		again, err := rd.ReadGPR(ctx, int(sim.T0))
		require.NoError(t, err)
		assert.Equal(t, n, again)
		assert.True(t, n > last, "counter %d after %d", n, last)
		last = n

		require.NoError(t, rd.Continue(ctx))
		halted, err = rd.IsHalted(ctx)
		require.NoError(t, err)
		require.False(t, halted)
	}
}

func TestRegistersRequireHalt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	rd := f.start(t, counterLoop...)

	_, err := rd.ReadGPR(ctx, 5)
	assert.Equal(t, risc.ErrNotHalted, errors.Cause(err))
	assert.Equal(t, risc.ErrNotHalted, errors.Cause(rd.WriteGPR(ctx, 5, 1)))
	_, err = rd.ReadMemory(ctx, 0x100)
	assert.Equal(t, risc.ErrNotHalted, errors.Cause(err))
	assert.Equal(t, risc.ErrNotHalted, errors.Cause(rd.SetWatchpointOnPCAddress(ctx, 0, 4)))
	assert.Equal(t, risc.ErrNotHalted, errors.Cause(rd.Step(ctx)))

	_, err = rd.ReadGPR(ctx, 33)
	assert.True(t, errors.IsNotValid(err), "%v", err)
	_, err = rd.ReadGPR(ctx, -1)
	assert.True(t, errors.IsNotValid(err), "%v", err)
}

func TestRegisterAndMemoryAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	rd := f.start(t, counterLoop...)
	require.NoError(t, rd.Halt(ctx))

	require.NoError(t, rd.WriteGPR(ctx, int(sim.S1), 0x12345678))
	v, err := rd.ReadGPR(ctx, int(sim.S1))
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), v)

	require.NoError(t, rd.WriteGPR(ctx, 0, 7))
	v, err = rd.ReadGPR(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v, "x0 is hardwired")

	require.NoError(t, rd.WriteMemory(ctx, 0x100, 0xdeadbeef))
	v, err = rd.ReadMemory(ctx, 0x100)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), v)
	// L1 is the same memory over the NOC.
	v, err = f.w.Read32(ctx, 0, 0, tensixXY.X, tensixXY.Y, 0x100)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), v)

	// Local memory is private to the core.
	require.NoError(t, rd.WriteMemory(ctx, block.LocalMemoryBase, 42))
	v, err = rd.ReadMemory(ctx, block.LocalMemoryBase)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), v)

	_, err = rd.ReadMemory(ctx, 0x102)
	assert.True(t, errors.IsNotValid(err), "%v", err)
	assert.True(t, errors.IsNotValid(rd.WriteMemory(ctx, 0x101, 0)))
}

func TestStep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	rd := f.start(t, counterLoop...)
	require.NoError(t, rd.Halt(ctx))
	for i := 0; i < 4; i++ {
		pc, err := rd.ReadGPR(ctx, risc.PCRegisterIndex)
		require.NoError(t, err)
		require.NoError(t, rd.Step(ctx))
		halted, err := rd.IsHalted(ctx)
		require.NoError(t, err)
		require.True(t, halted)
		next, err := rd.ReadGPR(ctx, risc.PCRegisterIndex)
		require.NoError(t, err)
		want := pc + 4
		if pc == 8 {
			want = 0
		}
		assert.Equal(t, want, next)
	}
}

func TestHaltInReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	rd := f.core(t, "trisc1")
	inReset, err := rd.IsInReset(ctx)
	require.NoError(t, err)
	require.True(t, inReset)
	assert.Equal(t, risc.ErrInReset, errors.Cause(rd.Halt(ctx)))
}

func TestSetResetTouchesOneCore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	brisc, trisc0 := f.core(t, "brisc"), f.core(t, "trisc0")

	require.NoError(t, brisc.SetReset(ctx, false))
	inReset, err := brisc.IsInReset(ctx)
	require.NoError(t, err)
	assert.False(t, inReset)
	inReset, err = trisc0.IsInReset(ctx)
	require.NoError(t, err)
	assert.True(t, inReset)

	st, err := f.dev.Core(0, tensixXY, "brisc")
	require.NoError(t, err)
	assert.False(t, st.InReset)

	require.NoError(t, brisc.SetReset(ctx, true))
	st, err = f.dev.Core(0, tensixXY, "brisc")
	require.NoError(t, err)
	assert.True(t, st.InReset)
}

func TestWatchpointIndex(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	rd := f.start(t, counterLoop...)
	require.NoError(t, rd.Halt(ctx))
	for _, i := range []int{-1, block.MaxWatchpoints, 100} {
		err := rd.SetWatchpointOnMemoryRead(ctx, i, 0x100)
		assert.True(t, errors.IsNotValid(err), "index %d: %v", i, err)
	}
}

func TestPCWatchpoint(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	rd := f.start(t, counterLoop...)
	require.NoError(t, rd.Halt(ctx))

	require.NoError(t, rd.SetWatchpointOnPCAddress(ctx, 2, 4))
	require.NoError(t, rd.SetWatchpointOnMemoryWrite(ctx, 5, 0x200))
	wps, err := rd.ReadWatchpoints(ctx)
	require.NoError(t, err)
	require.Len(t, wps, block.MaxWatchpoints)
	assert.Equal(t, risc.Watchpoint{Index: 2, Mode: risc.WatchpointPC, Address: 4}, wps[2])
	assert.Equal(t, risc.Watchpoint{Index: 5, Mode: risc.WatchpointMemoryWrite, Address: 0x200}, wps[5])
	assert.Equal(t, risc.WatchpointDisabled, wps[0].Mode)

	for i := 0; i < 3; i++ {
		require.NoError(t, rd.Continue(ctx))
		st, err := rd.ReadStatus(ctx)
		require.NoError(t, err)
		require.True(t, st.Halted, "%s", st)
		assert.True(t, st.PCWatchpointHit)
		assert.False(t, st.EbreakHit)
		assert.Equal(t, []int{2}, st.HitWatchpoints())
		pc, err := rd.ReadGPR(ctx, risc.PCRegisterIndex)
		require.NoError(t, err)
		assert.Equal(t, uint32(4), pc)
	}

	require.NoError(t, rd.DisableWatchpoint(ctx, 2))
	require.NoError(t, rd.Continue(ctx))
	halted, err := rd.IsHalted(ctx)
	require.NoError(t, err)
	assert.False(t, halted)
}

func TestMemoryWatchpoints(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	rd := f.start(t,
		sim.Addi(sim.T1, sim.Zero, 0x200),
		sim.Lw(sim.T2, sim.T1, 0),
		sim.Sb(sim.T2, sim.T1, 6),
		sim.Jal(sim.Zero, -8),
	)
	require.NoError(t, rd.Halt(ctx))
	require.NoError(t, rd.SetWatchpointOnMemoryRead(ctx, 0, 0x202))
	require.NoError(t, rd.SetWatchpointOnMemoryWrite(ctx, 1, 0x206))
	require.NoError(t, rd.SetWatchpointOnMemoryAccess(ctx, 3, 0x300))

	seen := map[int]bool{}
	for i := 0; i < 4; i++ {
		require.NoError(t, rd.Continue(ctx))
		st, err := rd.ReadStatus(ctx)
		require.NoError(t, err)
		require.True(t, st.Halted)
		require.True(t, st.MemoryWatchpointHit, "%s", st)
		hits := st.HitWatchpoints()
		require.Len(t, hits, 1)
		seen[hits[0]] = true
	}
	assert.Equal(t, map[int]bool{0: true, 1: true}, seen)
}

func TestEbreakSelfHalt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	rd := f.start(t, sim.Ebreak())

	st, err := rd.ReadStatus(ctx)
	require.NoError(t, err)
	require.True(t, st.Halted)
	require.True(t, st.EbreakHit)

	// The core halts again within the continue transaction and the
	// transport reports a failure; continue still succeeds.
	require.NoError(t, rd.Continue(ctx))
	st, err = rd.ReadStatus(ctx)
	require.NoError(t, err)
	assert.True(t, st.Halted)
	assert.True(t, st.EbreakHit)
	assert.True(t, st.SelfHalted())
}

func TestNoDebugHardware(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	rd, err := f.eth.RiscDebug("erisc", 0, 0)
	require.NoError(t, err)

	assert.NoError(t, rd.EnableDebug(ctx))
	err = rd.Halt(ctx)
	assert.Equal(t, risc.ErrNoDebugHW, errors.Cause(err))
	assert.True(t, errors.IsNotSupported(err))
	_, err = rd.ReadStatus(ctx)
	assert.Equal(t, risc.ErrNoDebugHW, errors.Cause(err))

	// Reset still works.
	require.NoError(t, rd.SetReset(ctx, false))
	inReset, err := rd.IsInReset(ctx)
	require.NoError(t, err)
	assert.False(t, inReset)
}

func TestBranchPrediction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	s, err := f.tensix.RegisterStore(0)
	require.NoError(t, err)

	require.NoError(t, f.core(t, "trisc1").SetBranchPrediction(ctx, false))
	v, err := s.Read(ctx, "DISABLE_RISC_BP_Disable_trisc")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), v)

	require.NoError(t, f.core(t, "brisc").SetBranchPrediction(ctx, false))
	require.NoError(t, f.core(t, "trisc1").SetBranchPrediction(ctx, true))
	v, err = s.Read(ctx, "DISABLE_RISC_BP_Disable_trisc")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v)
	v, err = s.Read(ctx, "DISABLE_RISC_BP_Disable_main")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)

	erisc, err := f.eth.RiscDebug("erisc", 0, 0)
	require.NoError(t, err)
	assert.True(t, errors.IsNotSupported(erisc.SetBranchPrediction(ctx, true)))
}

func TestCodeStartAddress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	_, err := f.w.Write(ctx, 0, 0, tensixXY.X, tensixXY.Y, 0x7000, sim.Words(sim.Nop(), sim.Ebreak()))
	require.NoError(t, err)

	rd := f.core(t, "trisc0")
	require.True(t, rd.Info().CanChangeCodeStart())
	require.NoError(t, rd.SetCodeStartAddress(ctx, 0x7000))
	require.NoError(t, rd.SetReset(ctx, false))

	st, err := rd.ReadStatus(ctx)
	require.NoError(t, err)
	require.True(t, st.EbreakHit, "%s", st)
	pc, err := rd.ReadGPR(ctx, risc.PCRegisterIndex)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x7004), pc)

	brisc := f.core(t, "brisc")
	assert.False(t, brisc.Info().CanChangeCodeStart())
	assert.True(t, errors.IsNotSupported(brisc.SetCodeStartAddress(ctx, 0x7000)))
}

func TestConcurrentCoresOfOneTile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	spin := sim.Words(sim.Jal(sim.Zero, 0))
	_, err := f.w.Write(ctx, 0, 0, tensixXY.X, tensixXY.Y, 0, spin)
	require.NoError(t, err)
	_, err = f.w.Write(ctx, 0, 0, tensixXY.X, tensixXY.Y, block.TriscResetVectors[0], spin)
	require.NoError(t, err)

	brisc, trisc0 := f.core(t, "brisc"), f.core(t, "trisc0")
	trisc0Noc1, err := f.tensix.RiscDebug("trisc0", 0, 1)
	require.NoError(t, err)
	for rd, v := range map[*risc.Debug]uint32{brisc: 0xaaaa, trisc0: 0xbbbb} {
		require.NoError(t, rd.EnableDebug(ctx))
		require.NoError(t, rd.SetReset(ctx, false))
		require.NoError(t, rd.Halt(ctx))
		require.NoError(t, rd.WriteGPR(ctx, 10, v))
	}

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	check := func(rd *risc.Debug, want uint32) {
		defer wg.Done()
		for i := 0; i < 300; i++ {
			v, err := rd.ReadGPR(ctx, 10)
			if err != nil {
				errs <- errors.Annotatef(err, "%s noc%d", rd, rd.NocID())
				return
			}
			if v != want {
				errs <- fmt.Errorf("%s noc%d: got 0x%x, want 0x%x", rd, rd.NocID(), v, want)
				return
			}
		}
	}
	wg.Add(3)
	go check(brisc, 0xaaaa)
	go check(trisc0, 0xbbbb)
	go check(trisc0Noc1, 0xbbbb)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
