package coord

import (
	"testing"

	"github.com/juju/errors"
)

func testTable(t *testing.T) *Table {
	// 3x3 grid, row y=2 harvested: logical grid is 3x1 on rows 1.
	tbl, err := NewTable(3, 3, map[XY]XY{
		{0, 0}: {0, 1},
		{1, 0}: {1, 1},
		{2, 0}: {2, 1},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

func TestNoc1IsMirrored(t *testing.T) {
	tbl := testTable(t)
	l, err := NewLocation(0, Noc0, XY{0, 1}, tbl)
	if err != nil {
		t.Fatal(err)
	}
	got, err := l.NocXY(1)
	if err != nil {
		t.Fatal(err)
	}
	if want := (XY{2, 1}); got != want {
		t.Errorf("got: %s, want: %s", got, want)
	}
	back, err := tbl.ToNoc0(Noc1, got)
	if err != nil {
		t.Fatal(err)
	}
	if back != l.Noc0() {
		t.Errorf("round trip: got %s, want %s", back, l.Noc0())
	}
}

func TestParse(t *testing.T) {
	tbl := testTable(t)
	for _, c := range []struct {
		in   string
		want XY
	}{
		{"1-1", XY{1, 1}},
		{"2,0", XY{2, 1}},
		{"noc1:0-0", XY{2, 2}},
		{"logical:0,0", XY{0, 1}},
		{"translated:1-2", XY{1, 2}},
	} {
		l, err := Parse(0, c.in, tbl)
		if err != nil {
			t.Errorf("%q: %s", c.in, err)
			continue
		}
		if l.Noc0() != c.want {
			t.Errorf("%q: got %s, want %s", c.in, l.Noc0(), c.want)
		}
	}
	if _, err := Parse(0, "0,2", tbl); !errors.IsNotFound(err) {
		t.Errorf("harvested logical coordinate must not resolve, got %v", err)
	}
	for _, in := range []string{"bogus", "99999999999999999999-1", "1,99999999999999999999", "noc1:99999999999999999999-0"} {
		if _, err := Parse(0, in, tbl); !errors.IsNotValid(err) {
			t.Errorf("%q: want NotValid, got %v", in, err)
		}
	}
}

func TestTableRejectsDuplicates(t *testing.T) {
	_, err := NewTable(2, 2, map[XY]XY{{0, 0}: {1, 1}, {0, 1}: {1, 1}}, nil)
	if !errors.IsNotValid(err) {
		t.Errorf("want NotValid, got %v", err)
	}
}
