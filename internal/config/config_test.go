package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// Clear all environment variables that might interfere
	envVars := []string{
		"COMMS_URL", "SERVICE_NAME",
		"BUS_SUBJECT_PREFIX", "BUS_DEDUP_WINDOW", "BUS_MAX_PAYLOAD",
		"DATABASE_URL", "HTTP_PORT", "HEALTH_CHECK_TIMEOUT", "LOG_LEVEL",
	}
	for _, env := range envVars {
		os.Unsetenv(env)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.COMMSURL != "nats://127.0.0.1:4222" {
		t.Errorf("config:config_test - COMMSURL = %q, want %q", cfg.COMMSURL, "nats://127.0.0.1:4222")
	}
	if cfg.COMMSName != "contextbus-priv" {
		t.Errorf("config:config_test - COMMSName = %q, want %q", cfg.COMMSName, "contextbus-priv")
	}
	if cfg.SubjectPrefix != "bus" {
		t.Errorf("config:config_test - SubjectPrefix = %q, want %q", cfg.SubjectPrefix, "bus")
	}
	if cfg.DedupWindow != 4096 {
		t.Errorf("config:config_test - DedupWindow = %d, want 4096", cfg.DedupWindow)
	}
	if cfg.MaxPayload != 262144 {
		t.Errorf("config:config_test - MaxPayload = %d, want 262144", cfg.MaxPayload)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("config:config_test - DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("config:config_test - HTTPPort = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.HealthCheckTimeout != 5*time.Second {
		t.Errorf("config:config_test - HealthCheckTimeout = %v, want 5s", cfg.HealthCheckTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("config:config_test - LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	overrides := map[string]string{
		"COMMS_URL":            "nats://custom:4222",
		"SERVICE_NAME":         "test-bus",
		"BUS_SUBJECT_PREFIX":   "testbus",
		"BUS_DEDUP_WINDOW":     "128",
		"BUS_MAX_PAYLOAD":      "1024",
		"DATABASE_URL":         "postgres://test@localhost/test",
		"HTTP_PORT":            "9090",
		"HEALTH_CHECK_TIMEOUT": "10s",
		"LOG_LEVEL":            "debug",
	}

	for key, val := range overrides {
		os.Setenv(key, val)
	}
	defer func() {
		for key := range overrides {
			os.Unsetenv(key)
		}
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.COMMSURL != "nats://custom:4222" {
		t.Errorf("config:config_test - COMMSURL = %q, want %q", cfg.COMMSURL, "nats://custom:4222")
	}
	if cfg.COMMSName != "test-bus" {
		t.Errorf("config:config_test - COMMSName = %q, want %q", cfg.COMMSName, "test-bus")
	}
	if cfg.SubjectPrefix != "testbus" {
		t.Errorf("config:config_test - SubjectPrefix = %q, want %q", cfg.SubjectPrefix, "testbus")
	}
	if cfg.DedupWindow != 128 {
		t.Errorf("config:config_test - DedupWindow = %d, want 128", cfg.DedupWindow)
	}
	if cfg.MaxPayload != 1024 {
		t.Errorf("config:config_test - MaxPayload = %d, want 1024", cfg.MaxPayload)
	}
	if cfg.DatabaseURL != "postgres://test@localhost/test" {
		t.Errorf("config:config_test - DatabaseURL = %q, unexpected", cfg.DatabaseURL)
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("config:config_test - HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.HealthCheckTimeout != 10*time.Second {
		t.Errorf("config:config_test - HealthCheckTimeout = %v, want 10s", cfg.HealthCheckTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("config:config_test - LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestValidateForServe(t *testing.T) {
	cfg := &Config{COMMSURL: "nats://127.0.0.1:4222", DedupWindow: 4096, MaxPayload: 262144, HealthCheckTimeout: 5 * time.Second}
	if err := cfg.ValidateForServe(); err != nil {
		t.Errorf("config:config_test - unexpected error: %v", err)
	}

	bad := *cfg
	bad.DedupWindow = 0
	if err := bad.ValidateForServe(); err == nil {
		t.Error("config:config_test - expected error for zero dedup window")
	}
	bad = *cfg
	bad.COMMSURL = ""
	if err := bad.ValidateForServe(); err == nil {
		t.Error("config:config_test - expected error for empty COMMS_URL")
	}
}

func TestValidateForDB(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateForDB(); err == nil {
		t.Error("config:config_test - expected error without DATABASE_URL")
	}
	cfg.DatabaseURL = "postgres://test@localhost/test"
	if err := cfg.ValidateForDB(); err != nil {
		t.Errorf("config:config_test - unexpected error: %v", err)
	}
}
