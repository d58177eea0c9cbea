package storage

import (
	"testing"

	"github.com/lodestar-hq/lodestar/internal/config"
)

func TestNewDialectDialer(t *testing.T) {
	tests := []struct {
		dbType      string
		expectError bool
	}{
		{"sqlite", false},
		{"postgres", false},
		{"sqlserver", false},
		{"mysql", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.dbType, func(t *testing.T) {
			dialer, err := NewDialectDialer(config.DatabaseConfig{Type: tt.dbType, DSN: "test"})
			if tt.expectError {
				if err == nil {
					t.Error("expected error for unsupported type")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dialer.Dialect() == nil {
				t.Error("expected a dialector")
			}
		})
	}
}
