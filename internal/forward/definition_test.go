package forward

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSocket() *Definition {
	return &Definition{
		Name:       "postgres-local",
		Group:      "db",
		LocalPort:  5432,
		Enabled:    true,
		Type:       TypeSocket,
		RemoteHost: "localhost",
		RemotePort: 5432,
	}
}

func validKube() *Definition {
	return &Definition{
		Name:        "redis",
		Group:       "cache",
		LocalPort:   6379,
		Enabled:     false,
		Type:        TypeKubernetes,
		Context:     "prod",
		Namespace:   "default",
		Service:     "redis",
		ServicePort: 6379,
	}
}

func TestValidate_Socket(t *testing.T) {
	d := validSocket()
	require.NoError(t, d.Validate())

	bad := validSocket()
	bad.RemoteHost = ""
	assert.Error(t, bad.Validate())

	bad2 := validSocket()
	bad2.RemotePort = 0
	assert.Error(t, bad2.Validate())
}

func TestValidate_Kubernetes(t *testing.T) {
	d := validKube()
	require.NoError(t, d.Validate())

	for _, mutate := range []func(*Definition){
		func(d *Definition) { d.Context = "" },
		func(d *Definition) { d.Namespace = "" },
		func(d *Definition) { d.Service = "" },
		func(d *Definition) { d.ServicePort = 70000 },
	} {
		bad := validKube()
		mutate(bad)
		assert.Error(t, bad.Validate())
	}
}

func TestValidate_PortRange(t *testing.T) {
	d := validSocket()
	d.LocalPort = 0
	assert.Error(t, d.Validate())
	d.LocalPort = 70000
	assert.Error(t, d.Validate())
}

func TestValidate_DefaultsGroup(t *testing.T) {
	d := validSocket()
	d.Group = ""
	require.NoError(t, d.Validate())
	assert.Equal(t, DefaultGroup, d.Group)
}

func TestValidate_UnknownType(t *testing.T) {
	d := validSocket()
	d.Type = "carrier-pigeon"
	assert.Error(t, d.Validate())
}

// TestRoundTrip enforces testable property 1: fromJSON(toJSON(d)) == d for
// every valid definition.
func TestRoundTrip(t *testing.T) {
	for _, d := range []*Definition{validSocket(), validKube()} {
		require.NoError(t, d.Validate())

		data, err := d.ToJSON()
		require.NoError(t, err)

		got, err := FromJSON(data)
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
}

func TestFromJSON_UnknownTypeRejected(t *testing.T) {
	_, err := FromJSON([]byte(`{"name":"x","type":"ssh-tunnel","localPort":1}`))
	assert.Error(t, err)
}

func TestFromJSON_MalformedRejected(t *testing.T) {
	_, err := FromJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestNeedsRestart(t *testing.T) {
	a := validSocket()
	b := a.Clone()
	assert.False(t, NeedsRestart(a.Restart(), b.Restart()), "identical params never require restart")

	b.Enabled = !a.Enabled
	assert.False(t, NeedsRestart(a.Restart(), b.Restart()), "enabled-only change never requires restart")

	b2 := a.Clone()
	b2.Group = "other"
	assert.False(t, NeedsRestart(a.Restart(), b2.Restart()), "group-only change never requires restart")

	c := a.Clone()
	c.LocalPort = 9999
	assert.True(t, NeedsRestart(a.Restart(), c.Restart()))

	e := a.Clone()
	e.RemoteHost = "otherhost"
	assert.True(t, NeedsRestart(a.Restart(), e.Restart()))
}

func TestDecodeRegistry_OuterKeyWins(t *testing.T) {
	raw := []byte(`{"forwards":{"real-name":{"type":"socket","name":"stale-name","localPort":80,"remoteHost":"h","remotePort":80}}}`)
	defs, skipped, err := DecodeRegistry(raw)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Contains(t, defs, "real-name")
	assert.Equal(t, "real-name", defs["real-name"].Name)
}

func TestDecodeRegistry_SkipsMalformedEntries(t *testing.T) {
	raw := []byte(`{"forwards":{"ok":{"type":"socket","name":"ok","localPort":80,"remoteHost":"h","remotePort":80},"bad":{"type":"nonsense"}}}`)
	defs, skipped, err := DecodeRegistry(raw)
	require.NoError(t, err)
	assert.Len(t, defs, 1)
	assert.Equal(t, []string{"bad"}, skipped)
}

func TestEncodeDecodeRegistry_RoundTrip(t *testing.T) {
	defs := map[string]*Definition{
		"postgres-local": validSocket(),
		"redis":          validKube(),
	}
	data, err := EncodeRegistry(defs)
	require.NoError(t, err)

	got, skipped, err := DecodeRegistry(data)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, defs, got)
}

func TestDecodeRegistry_MalformedJSONErrors(t *testing.T) {
	_, _, err := DecodeRegistry([]byte("not json"))
	assert.Error(t, err)
}

func TestDecodeRegistry_MissingGroupDefaulted(t *testing.T) {
	raw := []byte(`{"forwards":{"web":{"type":"socket","name":"web","localPort":1,"remoteHost":"h","remotePort":2}}}`)
	defs, _, err := DecodeRegistry(raw)
	require.NoError(t, err)
	assert.Equal(t, DefaultGroup, defs["web"].Group)
}
