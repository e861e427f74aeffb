package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile_YAML(t *testing.T) {
	yamlContent := `
client: test-client
host: rrc00
msg_type: UPDATE
prefix: 10.0.0.0/8
more_specific: true
batch_max: 20000
ingest: https://test.example.com/ingest
`

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configFile, []byte(yamlContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(configFile)
	if err != nil {
		t.Fatalf("failed to load YAML config: %v", err)
	}

	if cfg.Client != "test-client" {
		t.Errorf("expected client 'test-client', got %s", cfg.Client)
	}
	if cfg.Host != "rrc00" {
		t.Errorf("expected host 'rrc00', got %s", cfg.Host)
	}
	if cfg.MsgType != "UPDATE" {
		t.Errorf("expected msg_type 'UPDATE', got %s", cfg.MsgType)
	}
	if !cfg.MoreSpecific {
		t.Error("expected more_specific to be true")
	}
	if cfg.BatchMax != 20000 {
		t.Errorf("expected batch_max 20000, got %d", cfg.BatchMax)
	}
	if cfg.Ingest != "https://test.example.com/ingest" {
		t.Errorf("expected ingest URL, got %s", cfg.Ingest)
	}
	if cfg.URL != DefaultURL {
		t.Errorf("expected default feed url, got %s", cfg.URL)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	jsonContent := `{
		"client": "json-client",
		"host": "all",
		"format": "jsonl",
		"metrics_addr": ":8080"
	}`

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.json")
	if err := os.WriteFile(configFile, []byte(jsonContent), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(configFile)
	if err != nil {
		t.Fatalf("failed to load JSON config: %v", err)
	}

	if cfg.Client != "json-client" {
		t.Errorf("expected client 'json-client', got %s", cfg.Client)
	}
	if cfg.Host != "all" {
		t.Errorf("expected host 'all', got %s", cfg.Host)
	}
	if cfg.Format != "jsonl" {
		t.Errorf("expected format 'jsonl', got %s", cfg.Format)
	}
	if cfg.MetricsAddr != ":8080" {
		t.Errorf("expected metrics_addr ':8080', got %s", cfg.MetricsAddr)
	}
}

func TestSetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	if cfg.URL != DefaultURL {
		t.Errorf("unexpected default url: %s", cfg.URL)
	}
	if cfg.Client != "ris-live-go" {
		t.Errorf("expected default client 'ris-live-go', got %s", cfg.Client)
	}
	if cfg.Host != "rrc21" {
		t.Errorf("expected default host 'rrc21', got %s", cfg.Host)
	}
	if cfg.Format != "line" {
		t.Errorf("expected default format 'line', got %s", cfg.Format)
	}
	if cfg.BatchMax != 10000 {
		t.Errorf("expected default batch_max 10000, got %d", cfg.BatchMax)
	}
	if cfg.BatchFlushSec != 2 {
		t.Errorf("expected default batch_flush_sec 2, got %d", cfg.BatchFlushSec)
	}
	if cfg.RedisKey != "rislive:elements" {
		t.Errorf("unexpected default redis key: %s", cfg.RedisKey)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Config{}
		c.SetDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"missing host", func(c *Config) { c.Host = "" }, true},
		{"unknown msg_type", func(c *Config) { c.MsgType = "REFRESH" }, true},
		{"valid msg_type", func(c *Config) { c.MsgType = "RIS_PEER_STATE" }, false},
		{"update_type announcement", func(c *Config) { c.UpdateType = "announce" }, false},
		{"update_type short", func(c *Config) { c.UpdateType = "w" }, false},
		{"update_type invalid", func(c *Config) { c.UpdateType = "both" }, true},
		{"bad peer", func(c *Config) { c.Peer = "nope" }, true},
		{"bad prefix", func(c *Config) { c.Prefix = "10.0.0.0" }, true},
		{"good prefix", func(c *Config) { c.Prefix = "10.0.0.0/8" }, false},
		{"bad format", func(c *Config) { c.Format = "xml" }, true},
		{"bad batch_max", func(c *Config) { c.BatchMax = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUpdateTypeFilter(t *testing.T) {
	cfg := Config{}
	if !cfg.WantAnnouncements() || !cfg.WantWithdrawals() {
		t.Error("empty filter should pass both update types")
	}

	cfg.UpdateType = "a"
	if !cfg.WantAnnouncements() || cfg.WantWithdrawals() {
		t.Error("announcement filter should drop withdrawals")
	}

	cfg.UpdateType = "withdrawal"
	if cfg.WantAnnouncements() || !cfg.WantWithdrawals() {
		t.Error("withdrawal filter should drop announcements")
	}
}

func TestMergeWithFlags(t *testing.T) {
	cfg := &Config{
		Host:   "rrc21",
		Client: "original-client",
		Format: "line",
	}

	flags := map[string]interface{}{
		"host":   "rrc00",
		"format": "jsonl",
		"ingest": "https://new.example.com",
	}

	cfg.MergeWithFlags(flags)

	if cfg.Host != "rrc00" {
		t.Errorf("expected host to be overridden to 'rrc00', got %s", cfg.Host)
	}
	if cfg.Client != "original-client" {
		t.Errorf("expected client to remain 'original-client', got %s", cfg.Client)
	}
	if cfg.Format != "jsonl" {
		t.Errorf("expected format to be overridden to 'jsonl', got %s", cfg.Format)
	}
	if cfg.Ingest != "https://new.example.com" {
		t.Errorf("expected ingest to be set, got %s", cfg.Ingest)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RIS_LIVE_URL", "ws://feed.test/v1/ws/")
	t.Setenv("REDIS_ADDR", "redis.test:6379")
	t.Setenv("REDIS_KEY", "test:elements")

	cfg := &Config{}
	cfg.SetDefaults()
	cfg.LoadFromEnv()

	if cfg.URL != "ws://feed.test/v1/ws/" {
		t.Errorf("expected url from env, got %s", cfg.URL)
	}
	if cfg.RedisAddr != "redis.test:6379" {
		t.Errorf("expected redis addr from env, got %s", cfg.RedisAddr)
	}
	if cfg.RedisKey != "test:elements" {
		t.Errorf("expected redis key from env, got %s", cfg.RedisKey)
	}
}
