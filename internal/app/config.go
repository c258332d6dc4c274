package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/trialgraph/internal/platform/envutil"
	"github.com/yungbote/trialgraph/internal/platform/neo4jdb"
)

// Config carries everything the extract and load stages need. Values come
// from an optional YAML file; environment variables fill anything the file
// leaves unset.
type Config struct {
	Input     string `yaml:"input"`
	OutDir    string `yaml:"out_dir"`
	MeshTable string `yaml:"mesh_table"`

	// OnBadRecord is "skip" or "abort".
	OnBadRecord string `yaml:"on_bad_record"`

	FlushThreshold int `yaml:"flush_threshold"`
	BatchSize      int `yaml:"batch_size"`
	MaxRetries     int `yaml:"max_retries"`

	RetryBackoff time.Duration `yaml:"retry_backoff"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`

	LedgerPath string `yaml:"ledger_path"`

	Neo4j neo4jdb.Config `yaml:"neo4j"`
}

func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.OnBadRecord {
	case "skip", "abort":
		return nil
	default:
		return fmt.Errorf("config: on_bad_record must be %q or %q, got %q", "skip", "abort", c.OnBadRecord)
	}
}

func (c *Config) applyEnv() {
	if c.OutDir == "" {
		c.OutDir = envutil.Str("TRIALGRAPH_OUT_DIR", "")
	}
	if c.LedgerPath == "" {
		c.LedgerPath = envutil.Str("TRIALGRAPH_LEDGER_PATH", "")
	}
	if c.Neo4j.URI == "" {
		c.Neo4j.URI = envutil.Str("NEO4J_URI", "")
	}
	if c.Neo4j.User == "" {
		c.Neo4j.User = envutil.Str("NEO4J_USER", "")
	}
	if c.Neo4j.Password == "" {
		c.Neo4j.Password = os.Getenv("NEO4J_PASSWORD")
	}
	if c.Neo4j.Database == "" {
		c.Neo4j.Database = envutil.Str("NEO4J_DATABASE", "")
	}
	if c.Neo4j.TimeoutSeconds == 0 {
		c.Neo4j.TimeoutSeconds = envutil.Int("NEO4J_TIMEOUT_SECONDS", 0)
	}
	if c.Neo4j.MaxPoolSize == 0 {
		c.Neo4j.MaxPoolSize = envutil.Int("NEO4J_MAX_POOL_SIZE", 0)
	}
}

func (c *Config) applyDefaults() {
	if c.OutDir == "" {
		c.OutDir = "kg_staging"
	}
	if c.OnBadRecord == "" {
		c.OnBadRecord = "skip"
	}
	if c.FlushThreshold <= 0 {
		c.FlushThreshold = 1000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 5000
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 60 * time.Second
	}
	if c.LedgerPath == "" {
		c.LedgerPath = "trialgraph_runs.db"
	}
}
