package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultURL is the public endpoint of the RIS Live feed.
const DefaultURL = "ws://ris-live.ripe.net/v1/ws/"

// MessageKinds the feed can filter on server-side.
var MessageKinds = []string{"UPDATE", "OPEN", "NOTIFICATION", "KEEPALIVE", "RIS_PEER_STATE"}

// Config represents the complete configuration for the feed client
type Config struct {
	// Feed connection
	URL    string `yaml:"url" json:"url"`
	Client string `yaml:"client" json:"client"`

	// Subscription filters
	Host         string `yaml:"host" json:"host"`
	MsgType      string `yaml:"msg_type" json:"msg_type"`
	UpdateType   string `yaml:"update_type" json:"update_type"`
	Require      string `yaml:"require" json:"require"`
	Peer         string `yaml:"peer" json:"peer"`
	Prefix       string `yaml:"prefix" json:"prefix"`
	Path         string `yaml:"path" json:"path"`
	MoreSpecific bool   `yaml:"more_specific" json:"more_specific"`
	LessSpecific bool   `yaml:"less_specific" json:"less_specific"`

	// Output
	Format string `yaml:"format" json:"format"`
	Pretty bool   `yaml:"pretty" json:"pretty"`
	Raw    bool   `yaml:"raw" json:"raw"`

	// HTTP ingest sink
	Ingest        string `yaml:"ingest" json:"ingest"`
	BatchMax      int    `yaml:"batch_max" json:"batch_max"`
	BatchFlushSec int    `yaml:"batch_flush_sec" json:"batch_flush_sec"`
	SpoolDir      string `yaml:"spool_dir" json:"spool_dir"`

	// mTLS for the ingest sink
	MTLSCert string `yaml:"mtls_cert" json:"mtls_cert"`
	MTLSKey  string `yaml:"mtls_key" json:"mtls_key"`
	MTLSCA   string `yaml:"mtls_ca" json:"mtls_ca"`

	// Redis sink
	RedisAddr string `yaml:"redis_addr" json:"redis_addr"`
	RedisKey  string `yaml:"redis_key" json:"redis_key"`

	// Observability
	MetricsAddr  string `yaml:"metrics_addr" json:"metrics_addr"`
	OTELEndpoint string `yaml:"otel_endpoint" json:"otel_endpoint"`
	OTELInsecure bool   `yaml:"otel_insecure" json:"otel_insecure"`
	OTELService  string `yaml:"otel_service" json:"otel_service"`
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.Client == "" {
		c.Client = "ris-live-go"
	}
	if c.Host == "" {
		c.Host = "rrc21"
	}
	if c.Format == "" {
		c.Format = "line"
	}
	if c.BatchMax == 0 {
		c.BatchMax = 10000
	}
	if c.BatchFlushSec == 0 {
		c.BatchFlushSec = 2
	}
	if c.SpoolDir == "" {
		c.SpoolDir = "spool"
	}
	if c.OTELService == "" {
		c.OTELService = "rislive"
	}
	if c.RedisKey == "" {
		c.RedisKey = "rislive:elements"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("feed url is required")
	}
	if c.Host == "" {
		return fmt.Errorf("host is required (use \"all\" for the firehose)")
	}
	if c.MsgType != "" && !knownKind(c.MsgType) {
		return fmt.Errorf("msg_type %q is not one of %s", c.MsgType, strings.Join(MessageKinds, ", "))
	}
	switch {
	case c.UpdateType == "":
	case strings.HasPrefix(strings.ToLower(c.UpdateType), "a"):
	case strings.HasPrefix(strings.ToLower(c.UpdateType), "w"):
	default:
		return fmt.Errorf("update_type must be announcement (a) or withdrawal (w)")
	}
	if c.Peer != "" {
		if _, err := netip.ParseAddr(c.Peer); err != nil {
			return fmt.Errorf("invalid peer address %q", c.Peer)
		}
	}
	if c.Prefix != "" {
		if _, err := netip.ParsePrefix(c.Prefix); err != nil {
			return fmt.Errorf("invalid prefix %q", c.Prefix)
		}
	}
	switch strings.ToLower(c.Format) {
	case "line", "json", "jsonl", "ndjson", "csv":
	default:
		return fmt.Errorf("unsupported format: %s (use line, json, jsonl, or csv)", c.Format)
	}
	if c.BatchMax < 1 {
		return fmt.Errorf("batch_max must be at least 1")
	}
	if c.BatchFlushSec < 1 {
		return fmt.Errorf("batch_flush_sec must be at least 1")
	}
	return nil
}

// WantAnnouncements reports whether ANNOUNCE elements pass the update-type filter.
func (c *Config) WantAnnouncements() bool {
	return c.UpdateType == "" || strings.HasPrefix(strings.ToLower(c.UpdateType), "a")
}

// WantWithdrawals reports whether WITHDRAW elements pass the update-type filter.
func (c *Config) WantWithdrawals() bool {
	return c.UpdateType == "" || strings.HasPrefix(strings.ToLower(c.UpdateType), "w")
}

func knownKind(kind string) bool {
	for _, k := range MessageKinds {
		if kind == k {
			return true
		}
	}
	return false
}

// LoadFromFile loads configuration from a YAML or JSON file
func LoadFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	config.SetDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadFromEnv overrides configuration from environment variables
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("RIS_LIVE_URL"); v != "" {
		c.URL = v
	}
	if v := os.Getenv("RIS_LIVE_CLIENT"); v != "" {
		c.Client = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_KEY"); v != "" {
		c.RedisKey = v
	}
}

// MergeWithFlags merges command-line flags with file configuration.
// Command-line flags take precedence over file configuration.
func (c *Config) MergeWithFlags(flags map[string]interface{}) {
	if v, ok := flags["url"].(string); ok && v != "" {
		c.URL = v
	}
	if v, ok := flags["client"].(string); ok && v != "" {
		c.Client = v
	}
	if v, ok := flags["host"].(string); ok && v != "" {
		c.Host = v
	}
	if v, ok := flags["msg_type"].(string); ok && v != "" {
		c.MsgType = v
	}
	if v, ok := flags["update_type"].(string); ok && v != "" {
		c.UpdateType = v
	}
	if v, ok := flags["require"].(string); ok && v != "" {
		c.Require = v
	}
	if v, ok := flags["peer"].(string); ok && v != "" {
		c.Peer = v
	}
	if v, ok := flags["prefix"].(string); ok && v != "" {
		c.Prefix = v
	}
	if v, ok := flags["path"].(string); ok && v != "" {
		c.Path = v
	}
	if v, ok := flags["more_specific"].(bool); ok {
		c.MoreSpecific = v
	}
	if v, ok := flags["less_specific"].(bool); ok {
		c.LessSpecific = v
	}
	if v, ok := flags["format"].(string); ok && v != "" {
		c.Format = v
	}
	if v, ok := flags["pretty"].(bool); ok {
		c.Pretty = v
	}
	if v, ok := flags["raw"].(bool); ok {
		c.Raw = v
	}
	if v, ok := flags["ingest"].(string); ok && v != "" {
		c.Ingest = v
	}
	if v, ok := flags["batch_max"].(int); ok && v > 0 {
		c.BatchMax = v
	}
	if v, ok := flags["batch_flush_sec"].(int); ok && v > 0 {
		c.BatchFlushSec = v
	}
	if v, ok := flags["spool_dir"].(string); ok && v != "" {
		c.SpoolDir = v
	}
	if v, ok := flags["mtls_cert"].(string); ok && v != "" {
		c.MTLSCert = v
	}
	if v, ok := flags["mtls_key"].(string); ok && v != "" {
		c.MTLSKey = v
	}
	if v, ok := flags["mtls_ca"].(string); ok && v != "" {
		c.MTLSCA = v
	}
	if v, ok := flags["redis_addr"].(string); ok && v != "" {
		c.RedisAddr = v
	}
	if v, ok := flags["redis_key"].(string); ok && v != "" {
		c.RedisKey = v
	}
	if v, ok := flags["metrics_addr"].(string); ok && v != "" {
		c.MetricsAddr = v
	}
	if v, ok := flags["otel_endpoint"].(string); ok && v != "" {
		c.OTELEndpoint = v
	}
	if v, ok := flags["otel_service"].(string); ok && v != "" {
		c.OTELService = v
	}
	if v, ok := flags["otel_insecure"].(bool); ok {
		c.OTELInsecure = v
	}
}
