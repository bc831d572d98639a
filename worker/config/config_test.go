package config

import (
	"os"
	"path/filepath"
	"testing"
)

var envKeys = []string{
	"BGR_CONFIG", "SERVICE_PORT", "ENV", "REMOVER", "REMOVER_URL", "REMOVER_DEVICE",
	"LOCAL_TOLERANCE", "LOCAL_MAX_DIMENSION", "KAFKA_BROKERS", "KAFKA_TOPIC",
	"REDIS_ADDR", "MAX_UPLOAD_SIZE", "COMPRESSION_LEVEL", "SPOOL_DIR",
}

func clearEnv(t *testing.T) {
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8081" || cfg.Remover != RemoverLocal || cfg.RemoverDevice != "gpu" {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
	if cfg.MaxUploadBytes() != 32_000_000 {
		t.Errorf("Expected 32MB upload limit, got %d", cfg.MaxUploadBytes())
	}
	if !cfg.IsDevelopment() {
		t.Error("Expected development by default")
	}
	if len(cfg.Brokers()) != 0 {
		t.Error("Expected no brokers by default")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "bgremover.toml")
	file := `
port = "9000"
remover = "http"
remover_url = "http://localhost:7000/remove"
max_upload_size = "10MB"
kafka_brokers = "a:9092, b:9092"
`
	if err := os.WriteFile(path, []byte(file), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("BGR_CONFIG", path)
	t.Setenv("SERVICE_PORT", "9100")
	t.Setenv("REMOVER_DEVICE", "cpu")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("Expected env port to win, got %s", cfg.Port)
	}
	if cfg.Remover != RemoverHTTP || cfg.RemoverURL != "http://localhost:7000/remove" {
		t.Errorf("File values not applied: %+v", cfg)
	}
	if cfg.RemoverDevice != "cpu" {
		t.Errorf("Expected cpu device, got %s", cfg.RemoverDevice)
	}
	if cfg.MaxUploadBytes() != 10_000_000 {
		t.Errorf("Expected 10MB upload limit, got %d", cfg.MaxUploadBytes())
	}
	if brokers := cfg.Brokers(); len(brokers) != 2 || brokers[1] != "b:9092" {
		t.Errorf("Unexpected brokers %v", brokers)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown remover", map[string]string{"REMOVER": "onnx"}},
		{"http without url", map[string]string{"REMOVER": "http"}},
		{"bad device", map[string]string{"REMOVER_DEVICE": "tpu"}},
		{"bad size", map[string]string{"MAX_UPLOAD_SIZE": "lots"}},
		{"bad compression", map[string]string{"COMPRESSION_LEVEL": "12"}},
		{"bad port", map[string]string{"SERVICE_PORT": "http"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("BGR_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	if _, err := Load(); err == nil {
		t.Error("Expected error for missing config file")
	}
}
