package version

import "testing"

func TestCompatible(t *testing.T) {
	for _, c := range []struct {
		peer, min string
		want      bool
	}{
		{"1.2.0", "1.2.0", true},
		{"1.10.0", "1.9", true},
		{"1.1.9", "1.2", false},
		{"0.9", "1.0.0", false},
		{"latest", "1.0.0", true},
		{"1.0.0", "latest", true},
	} {
		if got := Compatible(c.peer, c.min); got != c.want {
			t.Errorf("Compatible(%q, %q): got %t, want %t", c.peer, c.min, got, c.want)
		}
	}
}

func TestBuildIdParts(t *testing.T) {
	p := GetBuildIdParts("1.2.0+4f2a9c1-dirty")
	if p == nil {
		t.Fatal("no match")
	}
	if got, want := p["version"], "1.2.0"; got != want {
		t.Errorf("version: got %q, want %q", got, want)
	}
	if got, want := p["hash"], "4f2a9c1"; got != want {
		t.Errorf("hash: got %q, want %q", got, want)
	}
	if got, want := p["dirty"], "-dirty"; got != want {
		t.Errorf("dirty: got %q, want %q", got, want)
	}
	if GetBuildIdParts("20200101-120000") != nil {
		t.Errorf("timestamp build id must not match")
	}
}
