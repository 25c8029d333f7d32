package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/de-tools/capacity-atlas/pkg/services/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settings(t *testing.T) *config.Settings {
	s, err := config.LoadSettings("")
	require.NoError(t, err)
	s.Storage.DbPath = ":memory:"
	return s
}

func TestNew_LoadsEnvAndFileSites(t *testing.T) {
	s := settings(t)
	s.Sites.File = filepath.Join(t.TempDir(), "sites.ini")
	require.NoError(t, os.WriteFile(s.Sites.File, []byte(`
[proxmox:lab]
url = https://pve.lab:8006
username = monitor
password = secret
`), 0o600))

	ctx := zerolog.Nop().WithContext(context.Background())
	a, err := New(ctx, s, []string{
		"VCD_SITES=fra1",
		"VCD_FRA1_URL=https://vcd.example",
		"VCD_FRA1_USERNAME=admin",
		"VCD_FRA1_PASSWORD=secret",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, a.Close())
	})

	assert.Equal(t, []string{"proxmox:lab", "vcd:fra1"}, a.Registry.Keys())
	assert.NotNil(t, a.Poller)
	assert.NotNil(t, a.Reports)

	last, err := a.Store.LastPolledAt(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestNew_MissingSitesFile(t *testing.T) {
	s := settings(t)
	s.Sites.File = filepath.Join(t.TempDir(), "missing.ini")

	_, err := New(context.Background(), s, nil)
	assert.Error(t, err)
}
