package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/PixPMusic/midiwire/internal/midi"
	"github.com/PixPMusic/midiwire/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotNil(t, cfg.Endpoints)
	assert.NotNil(t, cfg.Routes)
	assert.NoError(t, cfg.Validate())
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	cfg := Default()
	in := NewEndpointConfig()
	in.Name = "keys"
	in.InPort = "USB Keys"
	out := NewEndpointConfig()
	out.Name = "synth"
	out.Type = port.TypeSerial
	out.InPort = "/dev/ttyAMA0"
	out.RunningStatus = true
	cfg.AddEndpoint(in)
	cfg.AddEndpoint(out)

	ch := 9
	route := NewRouteConfig("keys", out.ID)
	route.Channel = &ch
	route.Kinds = []string{"NoteOn", "noteoff"}
	cfg.AddRoute(route)

	require.NoError(t, cfg.SaveFile(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	require.NoError(t, loaded.Validate())

	kinds, err := loaded.Routes[0].ParseKinds()
	require.NoError(t, err)
	assert.Equal(t, []midi.Kind{midi.NoteOn, midi.NoteOff}, kinds)
}

func TestLoadFileFillsIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"endpoints":[{"name":"a","type":"loopback"}],"routes":[{"from":"a","to":"a"}]}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Endpoints[0].ID)
	assert.NotEmpty(t, cfg.Routes[0].ID)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFileBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestFindAndRemoveEndpoint(t *testing.T) {
	cfg := Default()
	a := NewEndpointConfig()
	a.Name = "a"
	b := NewEndpointConfig()
	b.Name = "b"
	cfg.AddEndpoint(a)
	cfg.AddEndpoint(b)
	cfg.AddRoute(NewRouteConfig("a", "b"))
	cfg.AddRoute(NewRouteConfig(b.ID, b.ID))

	assert.Equal(t, a.ID, cfg.FindEndpoint("a").ID)
	assert.Equal(t, b.Name, cfg.FindEndpoint(b.ID).Name)
	assert.Nil(t, cfg.FindEndpoint("c"))

	cfg.RemoveEndpoint(a.ID)
	require.Len(t, cfg.Endpoints, 1)
	require.Len(t, cfg.Routes, 1)
	assert.Equal(t, b.ID, cfg.Routes[0].From)
}

func TestEndpointOptions(t *testing.T) {
	e := EndpointConfig{Name: "uart", Type: port.TypeSerial, InPort: "/dev/ttyS0", BaudRate: 38400, ReadTimeoutMS: 5}
	opts := e.PortOptions()
	assert.Equal(t, port.TypeSerial, opts.Type)
	assert.Equal(t, "/dev/ttyS0", opts.InPort)
	assert.Equal(t, 38400, opts.BaudRate)
	assert.Equal(t, "5ms", opts.ReadTimeout.String())
	assert.Len(t, e.ReceiverOptions(), 2)
}

func TestValidate(t *testing.T) {
	bad := -1
	cfg := &Config{
		Endpoints: []EndpointConfig{
			{ID: "1", Name: "a", Type: port.TypeDriver},
			{ID: "2", Name: "a", Type: port.TypeLoopback},
			{ID: "3", Name: "s", Type: port.TypeSerial},
			{ID: "4", Name: "x", Type: "usb"},
		},
		Routes: []RouteConfig{
			{Name: "r", From: "a", To: "ghost", Channel: &bad, Kinds: []string{"Noise"}},
		},
	}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"no input or output port",
		"duplicate name",
		"no serial device",
		`unknown type "usb"`,
		`unknown destination "ghost"`,
		"channel -1 out of range",
		"unknown message kind",
	} {
		assert.Contains(t, err.Error(), want)
	}
}
