// Package network aggregates freshness across several sites.
package network

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tenant is one monitored site
type Tenant struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	URL        string `yaml:"url"`
	DBBackend  string `yaml:"db_backend"`
	DBDSN      string `yaml:"db_dsn"`
	StorageDir string `yaml:"storage_dir"`
}

type tenantsFile struct {
	Tenants []Tenant `yaml:"tenants"`
}

// LoadTenants reads the tenants file
func LoadTenants(path string) ([]Tenant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenants file: %w", err)
	}
	return ParseTenants(data)
}

// ParseTenants decodes and validates a tenants document
func ParseTenants(data []byte) ([]Tenant, error) {
	var file tenantsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tenants file: %w", err)
	}
	if len(file.Tenants) == 0 {
		return nil, fmt.Errorf("tenants file lists no tenants")
	}

	seen := make(map[string]bool, len(file.Tenants))
	for i := range file.Tenants {
		t := &file.Tenants[i]
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			return nil, fmt.Errorf("tenant %d has no id", i+1)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate tenant id %q", t.ID)
		}
		seen[t.ID] = true

		if t.Name == "" {
			t.Name = t.ID
		}
		if t.DBBackend == "" {
			t.DBBackend = "sqlite"
		}
		if t.DBDSN == "" && t.DBBackend != "memory" {
			return nil, fmt.Errorf("tenant %q has no db_dsn", t.ID)
		}
		if t.StorageDir == "" {
			return nil, fmt.Errorf("tenant %q has no storage_dir", t.ID)
		}
	}
	return file.Tenants, nil
}
