package register

import (
	"context"
	"testing"

	"github.com/juju/errors"

	"github.com/cesanta/nocdbg/noc/coord"
	"github.com/cesanta/nocdbg/noc/devaddr"
)

type fakeTransport struct {
	mem       map[uint64]uint32
	failReads bool
	writes    int
}

func (f *fakeTransport) Read32(ctx context.Context, nocID, chip, x, y int, addr uint64) (uint32, error) {
	if f.failReads {
		return 0, errors.New("hung")
	}
	return f.mem[addr], nil
}

func (f *fakeTransport) Write32(ctx context.Context, nocID, chip, x, y int, addr uint64, value uint32) error {
	f.writes++
	f.mem[addr] = value
	return nil
}

func (f *fakeTransport) Update32(ctx context.Context, nocID, chip, x, y int, addr uint64, update func(uint32) uint32) (uint32, error) {
	old, err := f.Read32(ctx, nocID, chip, x, y, addr)
	if err != nil {
		return 0, err
	}
	nv := update(old)
	return nv, f.Write32(ctx, nocID, chip, x, y, addr, nv)
}

var testCatalog = Catalog{
	"LOW_FIELD":  ConfigurationRegister{Index: 3, Mask: 0xff, Shift: 0},
	"MID_FIELD":  ConfigurationRegister{Index: 3, Mask: 0xfff, Shift: 8},
	"HIGH_BIT":   ConfigurationRegister{Index: 3, Mask: 0x1, Shift: 31},
	"DBG_WORD":   DebugRegister{Offset: 0x80},
	"NOC_STATUS": NocStatusRegister{Offset: NocStatusGroup + 0x10},
}

func newTestStore(t *testing.T, tr Transport, bases Bases) *Store {
	tbl, err := coord.NewTable(4, 4, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	loc, err := coord.NewLocation(0, coord.Noc0, coord.XY{X: 1, Y: 1}, tbl)
	if err != nil {
		t.Fatal(err)
	}
	return NewStore(loc, 0, testCatalog, bases, tr)
}

var testBases = Bases{
	KindConfiguration: FixedBase(devaddr.PrivateAndNoc(0xffef0000, 0xffef0000)),
	KindDebug:         FixedBase(devaddr.PrivateAndNoc(0xffb12000, 0xffb12000)),
}

func TestFieldRoundTrip(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTransport{mem: map[uint64]uint32{}}
	s := newTestStore(t, tr, testBases)
	for _, c := range []struct {
		name  string
		value uint32
		want  uint32
	}{
		{"LOW_FIELD", 0x1ab, 0xab},
		{"MID_FIELD", 0xfedc, 0xedc},
		{"HIGH_BIT", 3, 1},
		{"DBG_WORD", 0xdeadbeef, 0xdeadbeef},
	} {
		if err := s.Write(ctx, c.name, c.value); err != nil {
			t.Fatalf("%s: %s", c.name, err)
		}
		got, err := s.Read(ctx, c.name)
		if err != nil {
			t.Fatalf("%s: %s", c.name, err)
		}
		if got != c.want {
			t.Errorf("%s: got: 0x%x, want: 0x%x", c.name, got, c.want)
		}
	}
}

func TestSiblingFieldsSurvive(t *testing.T) {
	ctx := context.Background()
	for _, order := range [][]string{{"LOW_FIELD", "MID_FIELD"}, {"MID_FIELD", "LOW_FIELD"}} {
		tr := &fakeTransport{mem: map[uint64]uint32{0xffef000c: 0x80000000}}
		s := newTestStore(t, tr, testBases)
		values := map[string]uint32{"LOW_FIELD": 0x5a, "MID_FIELD": 0x3c3}
		for _, name := range order {
			if err := s.Write(ctx, name, values[name]); err != nil {
				t.Fatal(err)
			}
		}
		for name, want := range values {
			got, _ := s.Read(ctx, name)
			if got != want {
				t.Errorf("%v: %s got 0x%x, want 0x%x", order, name, got, want)
			}
		}
		if hb, _ := s.Read(ctx, "HIGH_BIT"); hb != 1 {
			t.Errorf("%v: HIGH_BIT clobbered", order)
		}
	}
}

func TestFailedReadLegWritesNothing(t *testing.T) {
	tr := &fakeTransport{mem: map[uint64]uint32{}, failReads: true}
	s := newTestStore(t, tr, testBases)
	if err := s.Write(context.Background(), "MID_FIELD", 1); err == nil {
		t.Fatal("want error")
	}
	if tr.writes != 0 {
		t.Errorf("got %d writes after failed read leg", tr.writes)
	}
}

func TestResolutionErrors(t *testing.T) {
	tr := &fakeTransport{mem: map[uint64]uint32{}}
	s := newTestStore(t, tr, testBases)
	if _, err := s.Read(context.Background(), "NO_SUCH_REGISTER"); !errors.IsNotFound(err) {
		t.Errorf("want NotFound, got %v", err)
	}
	if _, err := s.Read(context.Background(), "NOC_STATUS"); !errors.IsNotSupported(err) {
		t.Errorf("want NotSupported, got %v", err)
	}
	// A family whose base exists only in the private space cannot be accessed over the NOC.
	priv := newTestStore(t, tr, Bases{KindDebug: FixedBase(devaddr.Private(0xffb12000))})
	if _, err := priv.Read(context.Background(), "DBG_WORD"); !errors.IsNotFound(err) {
		t.Errorf("want NotFound, got %v", err)
	}
}

func TestAddress(t *testing.T) {
	s := newTestStore(t, &fakeTransport{}, testBases)
	a, err := s.Address("MID_FIELD")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := a.String(), "[private=0xffef000c noc=0xffef000c noc_id=0]"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
}

func TestFormatValue(t *testing.T) {
	if got, want := FormatValue(ConfigurationRegister{DataType: DataFormat}, 5), "Float16_b"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
	if got, want := FormatValue(DebugRegister{}, 5), "0x00000005"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
}

func TestUpdateSetsBitsInsideField(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTransport{mem: map[uint64]uint32{0xffef000c: 0x0000ff00}}
	s := newTestStore(t, tr, testBases)
	got, err := s.Update(ctx, "MID_FIELD", func(old uint32) uint32 { return old | 0x100 })
	if err != nil {
		t.Fatal(err)
	}
	if want := uint32(0x1ff); got != want {
		t.Errorf("got: 0x%x, want: 0x%x", got, want)
	}
	if got, want := tr.mem[0xffef000c], uint32(0x0001ff00); got != want {
		t.Errorf("raw word got: 0x%08x, want: 0x%08x", got, want)
	}
}
