package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JOSM/changeset-viewer/internal/core/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("test", t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Acquisition.QueryTimeoutDuration() != 180*time.Second {
		t.Errorf("query timeout = %v", cfg.Acquisition.QueryTimeoutDuration())
	}
	if cfg.Acquisition.MaxDownloadBytes() != 50<<20 {
		t.Errorf("max download = %d", cfg.Acquisition.MaxDownloadBytes())
	}
	if got := cfg.PlatformNames(); len(got) != 2 || got[0] != "ohm" || got[1] != "osm" {
		t.Errorf("platforms = %v", got)
	}

	osm, err := cfg.Platform("")
	if err != nil {
		t.Fatalf("default platform: %v", err)
	}
	if osm.Name != "osm" || len(osm.Feeds) != 2 || osm.Feeds[1].Format != domain.FormatJSON {
		t.Errorf("osm = %+v", osm)
	}
	if osm.OverpassURL != "https://overpass-api.de/api/interpreter" {
		t.Errorf("overpass = %s", osm.OverpassURL)
	}

	ohm, err := cfg.Platform("OHM")
	if err != nil {
		t.Fatalf("ohm: %v", err)
	}
	if ohm.WebURL(5) != "https://www.openhistoricalmap.org/changeset/5" {
		t.Errorf("ohm web url = %s", ohm.WebURL(5))
	}
}

func TestPlatform_Unknown(t *testing.T) {
	cfg, err := load("test", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.Platform("mars"); !errors.Is(err, domain.ErrUnknownPlatform) {
		t.Errorf("expected ErrUnknownPlatform, got %v", err)
	}
}

func TestPlatform_ReturnsCopy(t *testing.T) {
	cfg, err := load("test", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p, _ := cfg.Platform("osm")
	p.Feeds[0].URL = "mutated"
	again, _ := cfg.Platform("osm")
	if again.Feeds[0].URL == "mutated" {
		t.Error("platform value shares feeds with config")
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	yaml := `
default_platform: local
acquisition:
  query_timeout: 30
  fetch_timeout: 45
platforms:
  local:
    api_url: http://localhost:3000/api/0.6/
    changeset_url: http://localhost:3000/changeset/
    overpass_url: http://localhost:12345/api/interpreter
    feeds:
      - url: http://localhost:9000/{id}.json
        format: json
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := load("test", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, err := cfg.Platform("")
	if err != nil {
		t.Fatalf("platform: %v", err)
	}
	if p.Name != "local" || len(p.Feeds) != 1 || p.Feeds[0].Format != domain.FormatJSON {
		t.Errorf("platform = %+v", p)
	}
	if cfg.Acquisition.QueryTimeout != 30 {
		t.Errorf("query timeout = %d", cfg.Acquisition.QueryTimeout)
	}
}

func TestValidate(t *testing.T) {
	cfg, err := load("test", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg.Acquisition.FetchTimeout = 100
	cfg.Acquisition.PadSeconds = 0
	cfg.DefaultPlatform = "nope"
	cfg.Platforms["osm"] = PlatformConfig{
		APIURL:       "x",
		ChangesetURL: "y",
		Feeds:        []domain.Feed{{URL: "https://no-placeholder", Format: "csv"}},
	}

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"fetch_timeout", "pad_seconds", "default_platform", "{id}", "xml or json"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidate_DefaultsPass(t *testing.T) {
	cfg, err := load("test", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Acquisition.PadSeconds != 1 {
		t.Errorf("pad_seconds = %d, want 1", cfg.Acquisition.PadSeconds)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}
