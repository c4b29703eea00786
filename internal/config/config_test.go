package config

import (
	"os"
	"testing"
	"time"
)

func TestRequireEnv(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		shouldSet bool
		wantPanic bool
	}{
		{
			name:      "variable set",
			key:       "TEST_VAR",
			value:     "test_value",
			shouldSet: true,
			wantPanic: false,
		},
		{
			name:      "variable not set",
			key:       "TEST_VAR_MISSING",
			shouldSet: false,
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnv() should have panicked")
					}
				}()
			}

			result := requireEnv(tt.key)
			if !tt.wantPanic && result != tt.value {
				t.Errorf("requireEnv() = %v, want %v", result, tt.value)
			}
		})
	}
}

func TestRequireEnvInt(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		expected  int
		wantPanic bool
	}{
		{
			name:      "valid integer",
			key:       "TEST_INT",
			value:     "42",
			expected:  42,
			wantPanic: false,
		},
		{
			name:      "invalid integer",
			key:       "TEST_INT_INVALID",
			value:     "not_a_number",
			wantPanic: true,
		},
		{
			name:      "missing variable",
			key:       "TEST_INT_MISSING",
			value:     "",
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnvInt() should have panicked")
					}
				}()
			}

			result := requireEnvInt(tt.key)
			if !tt.wantPanic && result != tt.expected {
				t.Errorf("requireEnvInt() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{
			name:     "valid duration",
			key:      "TEST_DURATION",
			value:    "5s",
			def:      1 * time.Second,
			expected: 5 * time.Second,
		},
		{
			name:     "invalid duration uses default",
			key:      "TEST_DURATION_INVALID",
			value:    "invalid",
			def:      10 * time.Second,
			expected: 10 * time.Second,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_DURATION_MISSING",
			value:    "",
			def:      15 * time.Second,
			expected: 15 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustDuration(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      bool
		expected bool
	}{
		{
			name:     "true value",
			key:      "TEST_BOOL",
			value:    "true",
			def:      false,
			expected: true,
		},
		{
			name:     "false value",
			key:      "TEST_BOOL_FALSE",
			value:    "false",
			def:      true,
			expected: false,
		},
		{
			name:     "invalid value uses default",
			key:      "TEST_BOOL_INVALID",
			value:    "invalid",
			def:      true,
			expected: true,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_BOOL_MISSING",
			value:    "",
			def:      false,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustBool(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustBool() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected []string
	}{
		{
			name:     "empty",
			value:    "",
			expected: nil,
		},
		{
			name:     "multiple values",
			value:    "jot.domain.ext, 10.0.0.0/8 ,127.0.0.1",
			expected: []string{"jot.domain.ext", "10.0.0.0/8", "127.0.0.1"},
		},
		{
			name:     "quoted values and empty parts",
			value:    `"a.ext",, 'b.ext'`,
			expected: []string{"a.ext", "b.ext"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitAndTrim(tt.value)
			if len(result) != len(tt.expected) {
				t.Fatalf("splitAndTrim() length = %v, want %v", len(result), len(tt.expected))
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("splitAndTrim()[%d] = %v, want %v", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantPanic bool
		check     func(t *testing.T, cfg *Config)
	}{
		{
			name: "memory store needs no redis settings",
			env:  map[string]string{"JOT_STORE": "memory", "JOT_SESSION_TTL": "1h"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Store != StoreMemory {
					t.Errorf("Store = %v, want %v", cfg.Store, StoreMemory)
				}
				if cfg.SessionTTL != time.Hour {
					t.Errorf("SessionTTL = %v, want 1h", cfg.SessionTTL)
				}
				if cfg.RedisAddr != "" {
					t.Errorf("RedisAddr = %v, want empty", cfg.RedisAddr)
				}
			},
		},
		{
			name: "redis store",
			env: map[string]string{
				"JOT_STORE":                   "Redis",
				"JOT_REDIS_ADDR":              "localhost:6379",
				"JOT_REDIS_DB":                "2",
				"JOT_REDIS_PASSWORD_REQUIRED": "false",
				"JOT_PDF_FONT_DIR":            "/fonts",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Store != StoreRedis {
					t.Errorf("Store = %v, want %v", cfg.Store, StoreRedis)
				}
				if cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 2 {
					t.Errorf("redis = %v db %v", cfg.RedisAddr, cfg.RedisDB)
				}
				if !cfg.RedisExpiryEvents {
					t.Errorf("RedisExpiryEvents should default to true")
				}
				if cfg.PDFFontDir != "/fonts" {
					t.Errorf("PDFFontDir = %v, want /fonts", cfg.PDFFontDir)
				}
			},
		},
		{
			name:      "redis store without address",
			env:       map[string]string{"JOT_STORE": "redis", "JOT_REDIS_DB": "0"},
			wantPanic: true,
		},
		{
			name: "redis password required but missing",
			env: map[string]string{
				"JOT_STORE":      "redis",
				"JOT_REDIS_ADDR": "localhost:6379",
				"JOT_REDIS_DB":   "0",
			},
			wantPanic: true,
		},
		{
			name:      "unknown store",
			env:       map[string]string{"JOT_STORE": "sqlite"},
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("Load() should have panicked")
					}
				}()
			}

			cfg := Load()
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}
