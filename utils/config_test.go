package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testConfig = `service_config:
  data_dir: /data/bathy
  toolkit_workers: 8
origins:
  - code: gebco
    name: GEBCO
    url: https://www.gebco.net
layers:
  - code: BATIMETRIA_2019
    name: Bathymetry 2019
    origin: gebco
    data_file: gebco_2019.nc
    variable: elevation
    unit: m
    decimals: 0
    formats: [contour-lines, contour-bands, point-value, rectangular-matrix]
  - code: ABSOLUTE
    origin: gebco
    data_file: /mnt/other.tif
    variable: band1
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	config := &Config{}
	if err := config.LoadConfigFile(writeConfig(t, testConfig)); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	sc := config.ServiceConfig
	if sc.PublishDir != "/data/bathy/publish" || sc.ToolkitWorkers != 8 {
		t.Errorf("unexpected service config: %+v", sc)
	}
	if sc.ResultCacheSize != DefaultResultCacheSize || sc.ResultCacheTTL != DefaultResultCacheTTL || sc.LogLevel != "info" {
		t.Errorf("defaults not applied: %+v", sc)
	}

	layer, ok := config.GetLayer("BATIMETRIA_2019")
	if !ok {
		t.Fatalf("layer not found")
	}
	if layer.Decimals == nil || *layer.Decimals != 0 {
		t.Errorf("expected decimals 0, actual %v", layer.Decimals)
	}
	if len(layer.Formats) != 4 {
		t.Errorf("unexpected formats %v", layer.Formats)
	}
	if p := config.DataPath(layer); p != "/data/bathy/gebco_2019.nc" {
		t.Errorf("unexpected data path %s", p)
	}

	abs, _ := config.GetLayer("ABSOLUTE")
	if abs.Decimals != nil {
		t.Errorf("expected no decimals, actual %v", *abs.Decimals)
	}
	if p := config.DataPath(abs); p != "/mnt/other.tif" {
		t.Errorf("unexpected data path %s", p)
	}

	if _, ok := config.GetLayer("NOPE"); ok {
		t.Errorf("unexpected layer NOPE")
	}
}

func TestLoadConfigFileEnv(t *testing.T) {
	t.Setenv("BATHY_PUBLISH_DIR", "/var/bathy/publish")
	t.Setenv("BATHY_TOOLKIT_WORKERS", "3")
	t.Setenv("BATHY_MEMCACHE", "localhost:11211")

	config := &Config{}
	if err := config.LoadConfigFile(writeConfig(t, testConfig)); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	sc := config.ServiceConfig
	if sc.PublishDir != "/var/bathy/publish" || sc.ToolkitWorkers != 3 || sc.MemcacheAddress != "localhost:11211" {
		t.Errorf("environment overrides not applied: %+v", sc)
	}
}

func TestLoadConfigFileErrors(t *testing.T) {
	tests := []struct {
		content string
		errMsg  string
	}{
		{"layers: [", "YAML parsing"},
		{"service_config:\n  unknown_key: 1\nlayers: []\n", "YAML parsing"},
		{"layers: []\n", "no layers"},
		{"layers:\n  - code: A\n    variable: v\n", "data_file"},
		{"layers:\n  - code: A\n    data_file: a.nc\n", "variable"},
		{"layers:\n  - code: A\n    data_file: a.nc\n    variable: v\n    origin: nope\n", "unknown origin"},
		{"layers:\n  - code: A\n    data_file: a.nc\n    variable: v\n    decimals: -1\n", "decimals"},
		{"layers:\n  - code: A\n    data_file: a.nc\n    variable: v\n  - code: A\n    data_file: b.nc\n    variable: v\n", "duplicated layer"},
		{"origins:\n  - code: o\n  - code: o\nlayers:\n  - code: A\n    data_file: a.nc\n    variable: v\n", "duplicated origin"},
	}

	for _, tc := range tests {
		config := &Config{}
		err := config.LoadConfigFile(writeConfig(t, tc.content))
		if err == nil || !strings.Contains(err.Error(), tc.errMsg) {
			t.Errorf("%q: expected error containing %q, actual %v", tc.content, tc.errMsg, err)
		}
	}

	config := &Config{}
	if err := config.LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected an error for a missing file")
	}
}

func TestDumpConfig(t *testing.T) {
	config := &Config{}
	if err := config.LoadConfigFile(writeConfig(t, testConfig)); err != nil {
		t.Fatal(err)
	}

	out, err := DumpConfig(config)
	if err != nil {
		t.Fatalf("failed to dump config: %v", err)
	}

	again := &Config{}
	if err := again.LoadConfigFile(writeConfig(t, out)); err != nil {
		t.Fatalf("dumped config does not load: %v\n%s", err, out)
	}
	if len(again.Layers) != 2 || again.ServiceConfig.PublishDir != config.ServiceConfig.PublishDir {
		t.Errorf("dumped config differs: %+v", again)
	}
}
