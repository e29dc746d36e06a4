package driver

import (
	"context"
	"testing"

	"github.com/nepal-guide-hub/discovery/pkg/config"
)

func TestOpenMemory(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Driver: config.DriverMemory, Fixtures: "../memory/testdata/catalog.yaml"}}
	b, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if b.DB != nil {
		t.Error("memory backend should not hold a database")
	}
	if err := b.Ping(context.Background()); err != nil {
		t.Errorf("Ping = %v", err)
	}
}

func TestOpenErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
	}{
		{"missing fixtures", config.StorageConfig{Driver: config.DriverMemory, Fixtures: "testdata/nope.yaml"}},
		{"unknown driver", config.StorageConfig{Driver: "sqlite"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(&config.Config{Storage: tt.cfg}); err == nil {
				t.Error("expected error")
			}
		})
	}
}
