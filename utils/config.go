package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

var EtcDir = "."
var DataDir = "."

const DefaultToolkitWorkers = 4
const DefaultResultCacheSize = 1024
const DefaultResultCacheTTL = 3600

type ServiceConfig struct {
	PublishDir      string `yaml:"publish_dir" json:"publish_dir"`
	DataDir         string `yaml:"data_dir" json:"data_dir"`
	GDALBinDir      string `yaml:"gdal_bin_dir" json:"gdal_bin_dir"`
	ToolkitWorkers  int    `yaml:"toolkit_workers" json:"toolkit_workers"`
	MemcacheAddress string `yaml:"memcache_address" json:"memcache_address"`
	ResultCacheSize int    `yaml:"result_cache_size" json:"result_cache_size"`
	ResultCacheTTL  int    `yaml:"result_cache_ttl" json:"result_cache_ttl"`
	MaxConnections  int    `yaml:"max_connections" json:"max_connections"`
	OOMThresholdKB  int64  `yaml:"oom_threshold_kb" json:"oom_threshold_kb"`
	LogLevel        string `yaml:"log_level" json:"log_level"`
	LogConsole      bool   `yaml:"log_console" json:"log_console"`
}

// Origin is the institution a layer's data comes from.
type Origin struct {
	Code string `yaml:"code" json:"code"`
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
	Icon string `yaml:"icon" json:"icon"`
}

// Layer contains all the details that a raster layer needs
// to be registered in the catalog and queried
type Layer struct {
	Code            string   `yaml:"code" json:"code"`
	Name            string   `yaml:"name" json:"name"`
	Origin          string   `yaml:"origin" json:"origin"`
	DataFile        string   `yaml:"data_file" json:"data_file"`
	Variable        string   `yaml:"variable" json:"variable"`
	Unit            string   `yaml:"unit" json:"unit"`
	Decimals        *int     `yaml:"decimals" json:"decimals,omitempty"`
	Icon            string   `yaml:"icon" json:"icon"`
	Groups          []string `yaml:"groups" json:"groups"`
	Formats         []string `yaml:"formats" json:"formats"`
	ValueExpression string   `yaml:"value_expression" json:"value_expression,omitempty"`
}

// Config is the struct representing the configuration of the provider:
// service wide settings plus the origins and layers it publishes.
type Config struct {
	ServiceConfig ServiceConfig `yaml:"service_config" json:"service_config"`
	Origins       []Origin      `yaml:"origins" json:"origins"`
	Layers        []Layer       `yaml:"layers" json:"layers"`
}

// LoadConfigFile unmarshals the YAML document at configFile, applies
// defaults and environment overrides and validates the result.
func (config *Config) LoadConfigFile(configFile string) error {
	*config = Config{}
	cfg, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("Error while reading config file: %s. Error: %v", configFile, err)
	}

	if err := yaml.UnmarshalStrict(cfg, config); err != nil {
		return fmt.Errorf("Error at YAML parsing config document: %s. Error: %v", configFile, err)
	}

	config.applyDefaults()
	config.applyEnv()
	return config.Validate()
}

func (config *Config) applyDefaults() {
	sc := &config.ServiceConfig
	if len(sc.DataDir) == 0 {
		sc.DataDir = DataDir
	}
	if len(sc.PublishDir) == 0 {
		sc.PublishDir = filepath.Join(sc.DataDir, "publish")
	}
	if sc.ToolkitWorkers <= 0 {
		sc.ToolkitWorkers = DefaultToolkitWorkers
	}
	if sc.ResultCacheSize <= 0 {
		sc.ResultCacheSize = DefaultResultCacheSize
	}
	if sc.ResultCacheTTL <= 0 {
		sc.ResultCacheTTL = DefaultResultCacheTTL
	}
	if len(sc.LogLevel) == 0 {
		sc.LogLevel = "info"
	}
}

// applyEnv lets deployments override directories without editing the file.
func (config *Config) applyEnv() {
	sc := &config.ServiceConfig
	if val, ok := os.LookupEnv("BATHY_PUBLISH_DIR"); ok && len(val) > 0 {
		sc.PublishDir = val
	}
	if val, ok := os.LookupEnv("BATHY_DATA_DIR"); ok && len(val) > 0 {
		sc.DataDir = val
	}
	if val, ok := os.LookupEnv("BATHY_GDAL_BIN_DIR"); ok {
		sc.GDALBinDir = val
	}
	if val, ok := os.LookupEnv("BATHY_MEMCACHE"); ok {
		sc.MemcacheAddress = val
	}
	if val, ok := os.LookupEnv("BATHY_TOOLKIT_WORKERS"); ok {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			sc.ToolkitWorkers = n
		}
	}
}

func (config *Config) Validate() error {
	if len(config.Layers) == 0 {
		return fmt.Errorf("no layers configured")
	}

	origins := make(map[string]bool)
	for _, o := range config.Origins {
		if len(strings.TrimSpace(o.Code)) == 0 {
			return fmt.Errorf("origin without code")
		}
		if origins[o.Code] {
			return fmt.Errorf("duplicated origin: %s", o.Code)
		}
		origins[o.Code] = true
	}

	codes := make(map[string]bool)
	for _, l := range config.Layers {
		if len(strings.TrimSpace(l.Code)) == 0 {
			return fmt.Errorf("layer without code")
		}
		if codes[l.Code] {
			return fmt.Errorf("duplicated layer: %s", l.Code)
		}
		codes[l.Code] = true

		if len(l.DataFile) == 0 {
			return fmt.Errorf("layer %s: data_file is required", l.Code)
		}
		if len(l.Variable) == 0 {
			return fmt.Errorf("layer %s: variable is required", l.Code)
		}
		if len(l.Origin) > 0 && !origins[l.Origin] {
			return fmt.Errorf("layer %s: unknown origin %s", l.Code, l.Origin)
		}
		if l.Decimals != nil && *l.Decimals < 0 {
			return fmt.Errorf("layer %s: decimals must not be negative", l.Code)
		}
	}
	return nil
}

func (config *Config) GetLayer(code string) (*Layer, bool) {
	for i := range config.Layers {
		if config.Layers[i].Code == code {
			return &config.Layers[i], true
		}
	}
	return nil, false
}

// DataPath resolves the layer's data file against the data directory.
func (config *Config) DataPath(layer *Layer) string {
	if filepath.IsAbs(layer.DataFile) {
		return layer.DataFile
	}
	return filepath.Join(config.ServiceConfig.DataDir, layer.DataFile)
}

func DumpConfig(config *Config) (string, error) {
	out, err := yaml.Marshal(config)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
