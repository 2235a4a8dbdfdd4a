package devaddr

import (
	"testing"

	"github.com/juju/errors"
)

func TestMissingSpaceIsAnError(t *testing.T) {
	a := Noc(0xffb20000)
	if _, err := a.PrivateAddress(); !errors.IsNotFound(err) {
		t.Fatalf("want NotFound, got %v", err)
	}
	if _, err := a.NocID(); !errors.IsNotFound(err) {
		t.Fatalf("want NotFound, got %v", err)
	}
	got, err := a.NocAddress()
	if err != nil {
		t.Fatal(err)
	}
	if want := uint64(0xffb20000); got != want {
		t.Errorf("got: 0x%x, want: 0x%x", got, want)
	}
}

func TestOffsetMovesAllSpaces(t *testing.T) {
	a := PrivateAndNoc(0xffb12000, 0xffb12000).WithNocID(1).Offset(0x80)
	p, _ := a.PrivateAddress()
	n, _ := a.NocAddress()
	id, _ := a.NocID()
	if p != 0xffb12080 || n != 0xffb12080 || id != 1 {
		t.Errorf("got: %s", a)
	}
	if a.Has(SpaceRaw) {
		t.Errorf("raw space must stay empty")
	}
}

func TestString(t *testing.T) {
	if got, want := (DeviceAddress{}).String(), "[empty address]"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
	if got, want := Raw(0x10).WithNocID(0).String(), "[raw=0x10 noc_id=0]"; got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
}
