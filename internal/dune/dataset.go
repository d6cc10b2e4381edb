package dune

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DatasetConfig describes one Dune-backed dataset directory. The directory
// holds config.yml plus the create-table and insert SQL templates.
type DatasetConfig struct {
	QueryID       string `yaml:"dune_query_id_param"`
	ParamStartKey string `yaml:"param_start_key"`
	ParamEndKey   string `yaml:"param_end_key"`

	// SQL file names relative to the dataset directory; defaults applied
	// by LoadDataset.
	CreateTableSQL string `yaml:"create_table_sql"`
	InsertSQL      string `yaml:"insert_sql"`
}

// LoadDataset reads config.yml from a dataset directory and applies
// defaults for the parameter keys and SQL file names.
func LoadDataset(dir string) (*DatasetConfig, error) {
	path := filepath.Join(dir, "config.yml")

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset config %s: %w", path, err)
	}

	var cfg DatasetConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse dataset config %s: %w", path, err)
	}

	if cfg.QueryID == "" {
		return nil, fmt.Errorf("dataset config %s missing dune_query_id_param", path)
	}
	if cfg.ParamStartKey == "" {
		cfg.ParamStartKey = "start_date"
	}
	if cfg.ParamEndKey == "" {
		cfg.ParamEndKey = "end_date"
	}
	if cfg.CreateTableSQL == "" {
		cfg.CreateTableSQL = "create_table.sql"
	}
	if cfg.InsertSQL == "" {
		cfg.InsertSQL = "insert_from_execution.sql"
	}

	cfg.CreateTableSQL = filepath.Join(dir, cfg.CreateTableSQL)
	cfg.InsertSQL = filepath.Join(dir, cfg.InsertSQL)

	return &cfg, nil
}
