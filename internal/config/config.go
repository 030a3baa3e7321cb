// Package config loads engine configuration from environment variables,
// with an optional YAML file providing lower-priority defaults.
//
// Configuration is organized into sections mirroring the component list
// in SPEC_FULL.md §4: Storage, HNSW, BM25, PPR, Cache, Server. Call
// LoadFromEnv to build a Config from the process environment, then
// Validate before use.
//
// Example:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all engine configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	HNSW    HNSWConfig    `yaml:"hnsw"`
	BM25    BM25Config    `yaml:"bm25"`
	PPR     PPRConfig     `yaml:"ppr"`
	Cache   CacheConfig   `yaml:"cache"`
	Server  ServerConfig  `yaml:"server"`
}

// StorageConfig controls the Storage Kernel (SPEC_FULL.md internal/kvstore).
type StorageConfig struct {
	// DataDir is the root path for the store. Empty means in-memory.
	DataDir string `yaml:"data_dir"`
	// MaxSize is read from max_size and HELIX_DB_MAX_SIZE, in bytes. It is
	// not passed to the Storage Kernel, so the store's size is not bounded
	// by it.
	MaxSize int64 `yaml:"max_size"`
	// SyncWrites forces fsync after each write transaction.
	SyncWrites bool `yaml:"sync_writes"`
}

// HNSWConfig controls ANN tuning for the Vector Index.
type HNSWConfig struct {
	M              int `yaml:"m"`
	EfConstruction int `yaml:"ef_construction"`
	EfSearch       int `yaml:"ef_search"`
}

// BM25Config controls the full-text index's scoring parameters.
type BM25Config struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
}

// PPRConfig controls the PPR Engine's defaults.
type PPRConfig struct {
	PartOfMaxHops   int     `yaml:"part_of_max_hops"`
	NormalizeByDef  bool    `yaml:"normalize_by_default"`
	DefaultDamping  float64 `yaml:"default_damping"`
	DefaultMaxDepth int     `yaml:"default_max_depth"`
	DefaultLimit    int     `yaml:"default_limit"`
	// AdjacencyCacheSize bounds the PPR Engine's cross-call adjacency
	// cache (internal/ppr.AdjacencyCache), counted in cached neighbor
	// entries. Zero disables the cache: every Run reads straight
	// through to the Storage Kernel.
	AdjacencyCacheSize int64 `yaml:"adjacency_cache_size"`
}

// CacheConfig controls the PPR Cache's tiered TTLs.
type CacheConfig struct {
	Enabled         bool `yaml:"enabled"`
	TTLRecentHours  int  `yaml:"ttl_recent_hours"`
	TTLWarmHours    int  `yaml:"ttl_warm_hours"`
	TTLColdHours    int  `yaml:"ttl_cold_hours"`
	WarmupBatchSize int  `yaml:"warmup_batch_size"`
}

// ServerConfig holds runtime-visible, non-core-semantic settings consumed
// by the hosting process (spec.md §6: "not by the core").
type ServerConfig struct {
	DataDir string `yaml:"data_dir"`
	Port    int    `yaml:"port"`
}

// DefaultConfig returns the engine's built-in defaults, matching the
// values named in spec.md §4 and §6.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:    "",
			MaxSize:    0,
			SyncWrites: false,
		},
		HNSW: HNSWConfig{
			M:              16,
			EfConstruction: 200,
			EfSearch:       100,
		},
		BM25: BM25Config{
			K1: 1.2,
			B:  0.75,
		},
		PPR: PPRConfig{
			PartOfMaxHops:      2,
			NormalizeByDef:     true,
			DefaultDamping:     0.85,
			DefaultMaxDepth:    3,
			DefaultLimit:       50,
			AdjacencyCacheSize: 50000,
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTLRecentHours:  24,
			TTLWarmHours:    72,
			TTLColdHours:    168,
			WarmupBatchSize: 100,
		},
		Server: ServerConfig{
			DataDir: "./data/helix",
			Port:    8080,
		},
	}
}

// LoadFromFile overlays a YAML config file's contents onto cfg. Any key
// the file omits keeps its current value, so callers typically start
// from DefaultConfig() before calling this. A missing file at path is
// an error; an empty path should never reach this function (Load skips
// it).
func LoadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Load builds a Config by layering, lowest priority first: built-in
// defaults, an optional YAML file at path (skipped entirely when path
// is empty), then HELIX_* environment variables. Env vars always win,
// matching pkg/config's env-first convention extended with a file
// layer beneath it.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := LoadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}
	overlayEnv(cfg)
	return cfg, nil
}

// LoadFromEnv builds a Config starting from DefaultConfig and overlaying
// any HELIX_* environment variables that are set.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()
	overlayEnv(cfg)
	return cfg
}

func overlayEnv(cfg *Config) {
	if v := os.Getenv("HELIX_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
		cfg.Server.DataDir = v
	}
	if v := os.Getenv("HELIX_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("HELIX_DB_MAX_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Storage.MaxSize = n
		}
	}
	if v := os.Getenv("HELIX_HNSW_M"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HNSW.M = n
		}
	}
	if v := os.Getenv("HELIX_HNSW_EF_CONSTRUCTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HNSW.EfConstruction = n
		}
	}
	if v := os.Getenv("HELIX_HNSW_EF_SEARCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HNSW.EfSearch = n
		}
	}
	if v := os.Getenv("HELIX_BM25_K1"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.BM25.K1 = f
		}
	}
	if v := os.Getenv("HELIX_BM25_B"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.BM25.B = f
		}
	}
	if v := os.Getenv("HELIX_PPR_PART_OF_MAX_HOPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PPR.PartOfMaxHops = n
		}
	}
	if v := os.Getenv("HELIX_PPR_NORMALIZE_DEFAULT"); v != "" {
		cfg.PPR.NormalizeByDef = v == "true" || v == "1"
	}
	if v := os.Getenv("HELIX_PPR_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("HELIX_PPR_CACHE_TTL_RECENT_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.TTLRecentHours = n
		}
	}
	if v := os.Getenv("HELIX_PPR_CACHE_TTL_WARM_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.TTLWarmHours = n
		}
	}
	if v := os.Getenv("HELIX_PPR_CACHE_TTL_COLD_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.TTLColdHours = n
		}
	}
	if v := os.Getenv("HELIX_PPR_ADJACENCY_CACHE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.PPR.AdjacencyCacheSize = n
		}
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.HNSW.M <= 0 {
		return fmt.Errorf("hnsw.M must be positive, got %d", c.HNSW.M)
	}
	if c.HNSW.EfConstruction <= 0 {
		return fmt.Errorf("hnsw.ef_construction must be positive, got %d", c.HNSW.EfConstruction)
	}
	if c.HNSW.EfSearch <= 0 {
		return fmt.Errorf("hnsw.ef_search must be positive, got %d", c.HNSW.EfSearch)
	}
	if c.BM25.K1 < 0 {
		return fmt.Errorf("bm25.k1 must be non-negative, got %f", c.BM25.K1)
	}
	if c.BM25.B < 0 || c.BM25.B > 1 {
		return fmt.Errorf("bm25.b must be in [0,1], got %f", c.BM25.B)
	}
	if c.PPR.DefaultDamping < 0 || c.PPR.DefaultDamping > 1 {
		return fmt.Errorf("ppr.damping must be in [0,1], got %f", c.PPR.DefaultDamping)
	}
	if c.PPR.DefaultMaxDepth < 0 {
		return fmt.Errorf("ppr.max_depth must be non-negative, got %d", c.PPR.DefaultMaxDepth)
	}
	if c.Cache.TTLRecentHours <= 0 || c.Cache.TTLWarmHours <= 0 || c.Cache.TTLColdHours <= 0 {
		return fmt.Errorf("cache TTL hours must be positive")
	}
	return nil
}

// RecentTTL returns the tiered TTL duration for the "recent" bucket.
func (c CacheConfig) RecentTTL() time.Duration { return time.Duration(c.TTLRecentHours) * time.Hour }

// WarmTTL returns the tiered TTL duration for the "warm" bucket.
func (c CacheConfig) WarmTTL() time.Duration { return time.Duration(c.TTLWarmHours) * time.Hour }

// ColdTTL returns the tiered TTL duration for the "cold" bucket.
func (c CacheConfig) ColdTTL() time.Duration { return time.Duration(c.TTLColdHours) * time.Hour }
