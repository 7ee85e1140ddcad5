package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// DatabaseConfig.GetDSN / ServerConfig helpers
// ---------------------------------------------------------------------------

func TestGetDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.lab.local",
		Port:     5433,
		User:     "chemsphere",
		Password: "secret",
		Name:     "inventory",
		SSLMode:  "disable",
	}
	want := "host=db.lab.local port=5433 user=chemsphere password=secret dbname=inventory sslmode=disable"
	if got := cfg.GetDSN(); got != want {
		t.Errorf("GetDSN() = %q, want %q", got, want)
	}
}

func TestGetAddress(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{"default", ServerConfig{Host: "0.0.0.0", Port: 8080}, "0.0.0.0:8080"},
		{"empty host", ServerConfig{Host: "", Port: 8080}, ":8080"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetAddress(); got != tt.want {
				t.Errorf("GetAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetPublicAndFrontendURL(t *testing.T) {
	s := ServerConfig{BaseURL: "http://internal:8080"}
	if got := s.GetPublicURL(); got != "http://internal:8080" {
		t.Errorf("GetPublicURL fallback = %q", got)
	}
	if got := s.GetFrontendURL(); got != "http://internal:8080" {
		t.Errorf("GetFrontendURL fallback = %q", got)
	}

	s.PublicURL = "https://api.lab.example"
	s.FrontendURL = "https://lab.example"
	if got := s.GetPublicURL(); got != "https://api.lab.example" {
		t.Errorf("GetPublicURL = %q", got)
	}
	if got := s.GetFrontendURL(); got != "https://lab.example" {
		t.Errorf("GetFrontendURL = %q", got)
	}
}

// ---------------------------------------------------------------------------
// Config.Validate
// ---------------------------------------------------------------------------

func minimalValidConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080, BaseURL: "http://localhost:8080"},
		Database: DatabaseConfig{Host: "localhost", Name: "chemsphere", User: "chemsphere"},
		Storage: StorageConfig{
			DefaultBackend: "local",
			Local:          LocalStorageConfig{BasePath: "./storage"},
		},
		Auth:          AuthConfig{SessionTTL: time.Hour, PasswordMinLength: 8},
		Cache:         CacheConfig{Backend: "memory"},
		Security:      SecurityConfig{RateLimiting: RateLimitingConfig{Backend: "memory"}},
		Logging:       LoggingConfig{Level: "info"},
		Inventory:     InventoryConfig{LowStockThreshold: 5, NearExpirationDays: 90},
		Notifications: NotificationsConfig{ExpirationWindowDays: 90},
	}
}

func TestValidate(t *testing.T) {
	if err := minimalValidConfig().Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }},
		{"missing base url", func(c *Config) { c.Server.BaseURL = "" }},
		{"missing db host", func(c *Config) { c.Database.Host = "" }},
		{"unknown storage backend", func(c *Config) { c.Storage.DefaultBackend = "ftp" }},
		{"s3 without bucket", func(c *Config) { c.Storage.DefaultBackend = "s3"; c.Storage.S3.Region = "eu-west-1" }},
		{"azure without key", func(c *Config) {
			c.Storage.DefaultBackend = "azure"
			c.Storage.Azure = AzureStorageConfig{AccountName: "a", ContainerName: "c"}
		}},
		{"gcs without bucket", func(c *Config) { c.Storage.DefaultBackend = "gcs" }},
		{"short passwords", func(c *Config) { c.Auth.PasswordMinLength = 4 }},
		{"zero session ttl", func(c *Config) { c.Auth.SessionTTL = 0 }},
		{"google without secret", func(c *Config) {
			c.Auth.Google = OIDCConfig{Enabled: true, ClientID: "id"}
		}},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"redis cache without addr", func(c *Config) { c.Cache.Backend = "redis" }},
		{"unknown rate limit backend", func(c *Config) { c.Security.RateLimiting.Backend = "etcd" }},
		{"tls without cert", func(c *Config) { c.Security.TLS = TLSConfig{Enabled: true, KeyFile: "k"} }},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"file output without path", func(c *Config) { c.Logging.Output = "file" }},
		{"negative low stock", func(c *Config) { c.Inventory.LowStockThreshold = -1 }},
		{"zero expiration window", func(c *Config) { c.Notifications.ExpirationWindowDays = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := minimalValidConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error, got nil")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

// writeTempConfig creates a temp YAML file and registers a cleanup to remove it.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal("WriteFile:", err)
	}
	return path
}

func TestLoad_WithConfigFile(t *testing.T) {
	const content = `
server:
  port: 9999
  base_url: "http://labhost:9999"
database:
  host: "dbhost"
cache:
  backend: "redis"
  redis:
    addr: "redis:6379"
inventory:
  low_stock_threshold: 3
logging:
  level: "debug"
`
	cfg, err := Load(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Database.Host != "dbhost" {
		t.Errorf("Database.Host = %q, want dbhost", cfg.Database.Host)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.Redis.Addr != "redis:6379" {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Inventory.LowStockThreshold != 3 {
		t.Errorf("Inventory.LowStockThreshold = %v, want 3", cfg.Inventory.LowStockThreshold)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, "logging:\n  level: info\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Name != "chemsphere" {
		t.Errorf("default Database.Name = %q", cfg.Database.Name)
	}
	if cfg.Auth.SessionTTL != 24*time.Hour {
		t.Errorf("default Auth.SessionTTL = %v", cfg.Auth.SessionTTL)
	}
	if cfg.Auth.Google.IssuerURL != "https://accounts.google.com" {
		t.Errorf("default Google issuer = %q", cfg.Auth.Google.IssuerURL)
	}
	if cfg.Notifications.ExpirationWindowDays != 90 {
		t.Errorf("default ExpirationWindowDays = %d, want 90", cfg.Notifications.ExpirationWindowDays)
	}
	if cfg.Inventory.NearExpirationDays != 90 || cfg.Inventory.LowStockThreshold != 5 {
		t.Errorf("default Inventory = %+v", cfg.Inventory)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("default Cache.TTL = %v", cfg.Cache.TTL)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("CHEM_DATABASE_HOST", "envhost")
	t.Setenv("CHEM_NOTIFICATIONS_SMTP_HOST", "smtp.lab.example")
	cfg, err := Load(writeTempConfig(t, "database:\n  host: filehost\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Host != "envhost" {
		t.Errorf("Database.Host = %q, want envhost", cfg.Database.Host)
	}
	if cfg.Notifications.SMTP.Host != "smtp.lab.example" {
		t.Errorf("SMTP.Host = %q", cfg.Notifications.SMTP.Host)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_CHEM_DB_PASS", "mysecret")
	cfg, err := Load(writeTempConfig(t, "database:\n  password: \"${TEST_CHEM_DB_PASS}\"\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Password != "mysecret" {
		t.Errorf("Database.Password = %q, want mysecret", cfg.Database.Password)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeTempConfig(t, "server: [unclosed")); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	if _, err := Load(writeTempConfig(t, "logging:\n  level: loud\n")); err == nil {
		t.Error("Load() expected validation error, got nil")
	}
}

// ---------------------------------------------------------------------------
// Watch
// ---------------------------------------------------------------------------

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeTempConfig(t, "logging:\n  level: info\n")

	changed := make(chan *Config, 4)
	if err := Watch(path, func(c *Config) { changed <- c }, func(error) {}); err != nil {
		t.Fatalf("Watch() error: %v", err)
	}

	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changed:
		if c.Logging.Level != "debug" {
			t.Errorf("reloaded level = %q, want debug", c.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestWatch_MissingFileIsNoop(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	if err := Watch("", func(*Config) {}, nil); err != nil {
		t.Errorf("Watch() with no config file = %v, want nil", err)
	}
}
