package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesanta/nocdbg/noc/coord"
	"github.com/cesanta/nocdbg/noc/sim"
	"github.com/cesanta/nocdbg/noc/umd"
)

func startServer(t *testing.T, ver string) (*sim.Device, *httptest.Server) {
	dev, err := sim.New(sim.Config{
		Width: 4, Height: 4,
		Chips: []sim.ChipConfig{
			{ID: 0, MMIO: true, Tiles: map[coord.XY]sim.TileKind{{X: 1, Y: 1}: sim.TileTensix}},
			{ID: 1, Tunnels: 1},
		},
	})
	require.NoError(t, err)
	ts := httptest.NewServer(NewServer(dev, ver).Handler())
	t.Cleanup(ts.Close)
	return dev, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, ts *httptest.Server) *Client {
	c, err := Dial(context.Background(), wsURL(ts), "1.0.0", nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClientDriver(t *testing.T) {
	ctx := context.Background()
	_, ts := startServer(t, "1.2.0")
	c := dial(t, ts)

	assert.Equal(t, "1.2.0", c.ServerVersion())
	assert.Equal(t, []int{0, 1}, c.Chips())
	assert.True(t, c.IsMMIOCapable(0))
	assert.False(t, c.IsMMIOCapable(1))
	assert.True(t, c.SupportsBlockAccess())

	w := umd.NewWrapper(c, nil)
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	n, err := w.Write(ctx, 0, 0, 1, 2, 0x101, data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	got, err := w.Read(ctx, 0, 0, 1, 2, 0x101, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// The same word seen through the mirrored plane.
	v, err := w.Read32(ctx, 1, 0, 2, 1, 0x104)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x07060504), v)

	require.NoError(t, w.WriteBar32(ctx, 0, 0x40, 0x1234))
	v, err = w.ReadBar32(ctx, 0, 0x40)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1234), v)
	v, err = w.ReadTelemetry(ctx, 0, sim.TelemetryAICLK)
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), v)

	require.NoError(t, c.SwitchTunnel(1))
}

func TestErrorTypesSurvive(t *testing.T) {
	_, ts := startServer(t, "1.2.0")
	c := dial(t, ts)

	_, err := c.Read32(3, 0, 0, 0)
	assert.True(t, errors.IsNotFound(err), "%v", err)
	_, err = c.Read32(0, 7, 0, 0)
	assert.True(t, errors.IsNotValid(err), "%v", err)
	_, err = c.ReadBar32(1, 0)
	assert.True(t, errors.IsNotSupported(err), "%v", err)
	assert.False(t, IsProtocolError(err))
}

func TestUnknownOpcode(t *testing.T) {
	_, ts := startServer(t, "1.2.0")
	c := dial(t, ts)

	_, err := c.Call(Opcode(99), nil)
	assert.True(t, IsProtocolError(err), "%v", err)

	// A truncated request is an ordinary error and the connection stays usable.
	_, err = c.Call(OpRead32, []byte{1})
	require.Error(t, err)
	assert.False(t, IsProtocolError(err))
	_, err = c.Read32(0, 1, 1, 0)
	assert.NoError(t, err)
}

func TestVersionCheck(t *testing.T) {
	_, ts := startServer(t, "1.0.3")
	_, err := Dial(context.Background(), wsURL(ts), "1.1.0", nil)
	assert.True(t, errors.IsNotSupported(err), "%v", err)

	c, err := Dial(context.Background(), wsURL(ts), "1.0", nil)
	require.NoError(t, err)
	c.Close()
}

func TestInfo(t *testing.T) {
	_, ts := startServer(t, "1.2.0")
	resp, err := http.Get(ts.URL + "/info")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info Info
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, Info{Version: "1.2.0", Chips: []ChipInfo{{ID: 0, MMIO: true}, {ID: 1}}}, info)
}

func TestClosedClient(t *testing.T) {
	_, ts := startServer(t, "1.2.0")
	c := dial(t, ts)
	require.NoError(t, c.Close())
	_, err := c.Read32(0, 0, 0, 0)
	assert.Error(t, err)
	assert.NoError(t, c.Close())
}

func TestClientsDoNotShareNocSelection(t *testing.T) {
	ctx := context.Background()
	_, ts := startServer(t, "1.2.0")
	a := umd.NewWrapper(dial(t, ts), nil)
	b := umd.NewWrapper(dial(t, ts), nil)

	require.NoError(t, b.Write32(ctx, 0, 0, 1, 1, 0x200, 0x11111111))
	require.NoError(t, b.Write32(ctx, 0, 0, 2, 2, 0x200, 0x22222222))

	// Noc1 (2,2) is noc0 (1,1) on a 4x4 grid.
	v, err := a.Read32(ctx, 1, 0, 2, 2, 0x200)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x11111111), v)

	// b still addresses noc0 although a switched the server to noc1.
	v, err = b.Read32(ctx, 0, 0, 1, 1, 0x200)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x11111111), v)
	v, err = b.Read32(ctx, 0, 0, 2, 2, 0x200)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x22222222), v)
}

func TestBadNocID(t *testing.T) {
	_, ts := startServer(t, "1.2.0")
	c := dial(t, ts)
	assert.True(t, errors.IsNotValid(c.SelectNoc(2)))

	e := (&encoder{}).target(target{noc: 5, chip: 0, x: 1, y: 1})
	_, err := c.Call(OpRead32, e.Bytes())
	assert.True(t, errors.IsNotValid(err), "%v", err)
}
