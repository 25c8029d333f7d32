package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/de-tools/capacity-atlas/pkg/models/domain"
	"github.com/de-tools/capacity-atlas/pkg/services/platform"
	"github.com/de-tools/capacity-atlas/pkg/services/platform/vcd"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFixture(t *testing.T) (*Registry, context.Context) {
	t.Helper()
	logger := zerolog.Nop()
	return NewRegistry(Options{Logger: logger}), logger.WithContext(context.Background())
}

func vcdConfig(id string) domain.SiteConfig {
	return domain.SiteConfig{
		SiteID:       id,
		PlatformType: domain.PlatformVCD,
		URL:          "https://vcd." + id + ".example.com",
		Username:     "admin",
		Password:     "secret",
		Enabled:      true,
	}
}

func TestAddSiteFromConfig(t *testing.T) {
	r, ctx := setupFixture(t)

	p, err := r.AddSiteFromConfig(ctx, vcdConfig("fra1"))
	require.NoError(t, err)
	require.IsType(t, &vcd.Adapter{}, p)

	got, ok := r.Get("vcd:fra1")
	require.True(t, ok)
	assert.Same(t, p, got)

	bySite, ok := r.BySiteID("fra1")
	require.True(t, ok)
	assert.Same(t, p, bySite)

	_, ok = r.BySiteID("ams1")
	assert.False(t, ok)
}

func TestAddSiteFromConfig_ReplacesExistingInstance(t *testing.T) {
	r, ctx := setupFixture(t)

	first, err := r.AddSiteFromConfig(ctx, vcdConfig("fra1"))
	require.NoError(t, err)
	second, err := r.AddSiteFromConfig(ctx, vcdConfig("fra1"))
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 1, r.Len())
	got, _ := r.Get("vcd:fra1")
	assert.Same(t, second, got)
}

func TestAddSiteFromConfig_DisabledRemovesSite(t *testing.T) {
	r, ctx := setupFixture(t)

	_, err := r.AddSiteFromConfig(ctx, vcdConfig("fra1"))
	require.NoError(t, err)

	cfg := vcdConfig("fra1")
	cfg.Enabled = false
	p, err := r.AddSiteFromConfig(ctx, cfg)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Zero(t, r.Len())
}

func TestAddSiteFromConfig_Validation(t *testing.T) {
	r, ctx := setupFixture(t)

	_, err := r.AddSiteFromConfig(ctx, domain.SiteConfig{
		SiteID: "ams1", PlatformType: domain.PlatformCloudStack, URL: "https://cs", APIKey: "k", Enabled: true,
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "secret key")

	_, err = r.AddSiteFromConfig(ctx, domain.SiteConfig{
		SiteID: "x", PlatformType: "openstack", URL: "https://os", Enabled: true,
	})
	assert.ErrorIs(t, err, ErrUnknownPlatform)
	assert.Zero(t, r.Len())
}

func TestRegister_CustomFactory(t *testing.T) {
	r, ctx := setupFixture(t)

	var got platform.Options
	require.NoError(t, r.Register(domain.PlatformVCD, func(cfg domain.SiteConfig, opts platform.Options) (platform.Platform, error) {
		got = opts
		return vcd.New(cfg, opts)
	}))
	assert.Error(t, r.Register(domain.PlatformVCD, nil))

	_, err := r.AddSiteFromConfig(ctx, vcdConfig("fra1"))
	require.NoError(t, err)
	assert.NotNil(t, got.HTTPClient, "every site gets its own transport client")
}

func TestLookups(t *testing.T) {
	r, ctx := setupFixture(t)

	for _, cfg := range []domain.SiteConfig{
		vcdConfig("fra1"),
		vcdConfig("ams1"),
		{SiteID: "ams1", PlatformType: domain.PlatformProxmox, URL: "https://pve", Username: "root", Password: "pw", Enabled: true},
	} {
		_, err := r.AddSiteFromConfig(ctx, cfg)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"proxmox:ams1", "vcd:ams1", "vcd:fra1"}, r.Keys())
	assert.Len(t, r.All(), 3)
	assert.Len(t, r.ByPlatform(domain.PlatformVCD), 2)
	assert.Empty(t, r.ByPlatform(domain.PlatformVeeam))

	// vcd is tried before proxmox
	p, ok := r.BySiteID("ams1")
	require.True(t, ok)
	assert.Equal(t, domain.PlatformVCD, p.PlatformType())

	assert.True(t, r.Remove("vcd:ams1"))
	assert.False(t, r.Remove("vcd:ams1"))
	p, ok = r.BySiteID("ams1")
	require.True(t, ok)
	assert.Equal(t, domain.PlatformProxmox, p.PlatformType())
}

func TestParseEnv(t *testing.T) {
	configs, err := ParseEnv([]string{
		"VCD_SITES=fra1, ams-2",
		"VCD_FRA1_URL=https://vcd.fra1.example.com/",
		"VCD_FRA1_NAME=Frankfurt 1",
		"VCD_FRA1_LOCATION=Frankfurt",
		"VCD_FRA1_USERNAME=admin",
		"VCD_FRA1_PASSWORD=p=ss",
		"VCD_FRA1_ORG=System",
		"VCD_FRA1_INSECURE=true",
		"VCD_AMS_2_URL=https://vcd.ams2.example.com",
		"VCD_AMS_2_MHZ_PER_CORE=2600",
		"CLOUDSTACK_SITES=zrh1",
		"CLOUDSTACK_ZRH1_URL=https://cs.zrh1.example.com/client/api",
		"CLOUDSTACK_ZRH1_API_KEY=key",
		"CLOUDSTACK_ZRH1_SECRET_KEY=secret",
		"PROXMOX_SITES=bad",
		"PROXMOX_BAD_INSECURE=maybe",
		"UNRELATED",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "PROXMOX_BAD_INSECURE")

	require.Len(t, configs, 3)
	fra := configs[0]
	assert.Equal(t, "vcd:fra1", fra.Key())
	assert.Equal(t, "https://vcd.fra1.example.com", fra.URL)
	assert.Equal(t, "Frankfurt 1", fra.Name)
	assert.Equal(t, "p=ss", fra.Password)
	assert.True(t, fra.Insecure)
	assert.True(t, fra.Enabled)

	ams := configs[1]
	assert.Equal(t, "ams-2", ams.SiteID)
	assert.Equal(t, 2600.0, ams.MHzPerCore)

	assert.Equal(t, domain.PlatformCloudStack, configs[2].PlatformType)
	assert.Equal(t, "secret", configs[2].SecretKey)
}

func TestLoadFromEnv_SkipsInvalidSites(t *testing.T) {
	r, ctx := setupFixture(t)

	added := r.LoadFromEnv(ctx, []string{
		"VCD_SITES=fra1,ams1",
		"VCD_FRA1_URL=https://vcd.fra1.example.com",
		"VCD_FRA1_USERNAME=admin",
		"VCD_FRA1_PASSWORD=secret",
		"VCD_AMS1_URL=https://vcd.ams1.example.com",
		"VEEAM_SITES=backup1",
		"VEEAM_BACKUP1_URL=https://vbr:9419",
		"VEEAM_BACKUP1_USERNAME=svc",
		"VEEAM_BACKUP1_PASSWORD=secret",
	})
	assert.Equal(t, 2, added)
	assert.Equal(t, []string{"vcd:fra1", "veeam:backup1"}, r.Keys())
}

const sitesINI = `
[vcd:fra1]
url = https://vcd.fra1.example.com
username = admin
password = secret
name = Frankfurt 1

[proxmox:lab]
url = https://pve.lab:8006/
username = monitor
password = secret
realm = pve
mhz_per_core = 2400
insecure = true

[cloudstack:old]
url = https://cs.example.com/client/api
api_key = key
secret_key = secret
enabled = false

[openstack:nope]
url = https://os.example.com
`

func TestINISource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.ini")
	require.NoError(t, os.WriteFile(path, []byte(sitesINI), 0o600))

	src, err := NewINISource(path)
	require.NoError(t, err)

	configs, err := src.SiteConfigs(context.Background())
	assert.ErrorIs(t, err, ErrUnknownPlatform)
	require.Len(t, configs, 3)

	lab := configs[1]
	assert.Equal(t, "proxmox:lab", lab.Key())
	assert.Equal(t, "https://pve.lab:8006", lab.URL)
	assert.Equal(t, "pve", lab.Realm)
	assert.Equal(t, 2400.0, lab.MHzPerCore)
	assert.True(t, lab.Insecure)
	assert.True(t, lab.Enabled)
	assert.False(t, configs[2].Enabled)

	r, ctx := setupFixture(t)
	added, err := r.LoadFromSource(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, []string{"proxmox:lab", "vcd:fra1"}, r.Keys())
}
