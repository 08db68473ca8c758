package app

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/thertxnetworktwo/toolkit/bot/archive"
	"github.com/thertxnetworktwo/toolkit/bot/frozen"
	"github.com/thertxnetworktwo/toolkit/bot/ingest"
	coreconfig "github.com/thertxnetworktwo/toolkit/core/config"
	coredatabase "github.com/thertxnetworktwo/toolkit/core/database"
)

const defaultMaxUploadMB = 20

// ArchiveConfig bounds zip extraction.
type ArchiveConfig struct {
	MaxMembers  int   `yaml:"max_members" envconfig:"ARCHIVE_MAX_MEMBERS"`
	MaxMemberMB int64 `yaml:"max_member_mb" envconfig:"ARCHIVE_MAX_MEMBER_MB"`
	MaxTotalMB  int64 `yaml:"max_total_mb" envconfig:"ARCHIVE_MAX_TOTAL_MB"`
}

// Limits converts the configured megabyte values into extraction ceilings.
func (a ArchiveConfig) Limits() archive.Limits {
	limits := archive.DefaultLimits()
	if a.MaxMembers > 0 {
		limits.MaxMembers = a.MaxMembers
	}
	if a.MaxMemberMB > 0 {
		limits.MaxMemberBytes = a.MaxMemberMB << 20
	}
	if a.MaxTotalMB > 0 {
		limits.MaxTotalBytes = a.MaxTotalMB << 20
	}
	return limits
}

// Config aggregates everything the bot needs: the core runtime settings plus
// the database, ingestion and checking-service sections.
type Config struct {
	Core coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Ingest   ingest.Rules        `yaml:"ingest"`
	Archive  ArchiveConfig       `yaml:"archive"`
	Frozen   frozen.Config       `yaml:"frozen"`

	AdminIDs         []int64 `yaml:"admin_ids" envconfig:"ADMIN_IDS"`
	FrozenCacheHours int     `yaml:"frozen_cache_hours" envconfig:"FROZEN_CACHE_HOURS"`
	MaxUploadMB      int64   `yaml:"max_upload_mb" envconfig:"MAX_UPLOAD_MB"`
}

// CoreConfig exposes the embedded core configuration to the generic runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Core
}

// FrozenCacheTTL is how long a cached verdict stays valid.
func (c *Config) FrozenCacheTTL() time.Duration {
	hours := c.FrozenCacheHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// MaxUploadBytes is the document download cap.
func (c *Config) MaxUploadBytes() int64 {
	mb := c.MaxUploadMB
	if mb <= 0 {
		mb = defaultMaxUploadMB
	}
	return mb << 20
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if err := cfg.Frozen.Normalize(); err != nil {
		return nil, err
	}
	if len(cfg.AdminIDs) == 0 && cfg.Core.Telegram.AdminID != 0 {
		cfg.AdminIDs = []int64{cfg.Core.Telegram.AdminID}
	}
	return &cfg, nil
}
