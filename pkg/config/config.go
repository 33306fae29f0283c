// Package config holds the run parameters: defaults, then an optional YAML
// file, then HADESIGN_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/yumyai/hadesign/pkg/partition"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

type Config struct {
	// DataDir hosts one raw FASTA per lineage.
	DataDir string `yaml:"data_dir"`
	// WorkDir is the artifact store root; CSV reports go below it.
	WorkDir string `yaml:"work_dir" validate:"required"`
	// DBPath is the sqlite results ledger.
	DBPath string `yaml:"db_path" validate:"required"`

	Workers    int    `yaml:"workers" validate:"gte=1,lte=64"`
	MinStrains int    `yaml:"min_strains" validate:"gte=1"`
	Reconciler string `yaml:"reconciler" validate:"oneof=builtin mafft"`

	Consensus    ConsensusConfig    `yaml:"consensus"`
	Ancestral    AncestralConfig    `yaml:"ancestral"`
	COBRA        COBRAConfig        `yaml:"cobra"`
	Tools        ToolsConfig        `yaml:"tools"`
	Conservation ConservationConfig `yaml:"conservation"`
	Header       HeaderConfig       `yaml:"header"`
}

type ConsensusConfig struct {
	GapWeight float64 `yaml:"gap_weight" validate:"gte=0,lte=1"`
}

type AncestralConfig struct {
	MinSites int `yaml:"min_sites" validate:"gte=0"`
}

type COBRAConfig struct {
	Round1Identity float64 `yaml:"round1_identity" validate:"gte=0.4,lte=1"`
	Round2Identity float64 `yaml:"round2_identity" validate:"gte=0.4,lte=1"`
}

type ToolsConfig struct {
	Mafft   string `yaml:"mafft" validate:"required"`
	CDHit   string `yaml:"cdhit" validate:"required"`
	IQTree  string `yaml:"iqtree" validate:"required"`
	Model   string `yaml:"model" validate:"required"`
	Threads int    `yaml:"threads" validate:"gte=0"`
}

type ConservationConfig struct {
	Window int `yaml:"window" validate:"gte=1"`
}

// HeaderConfig gives the 0-based pipe-separated fields of year and region.
// A negative index disables the field.
type HeaderConfig struct {
	YearField   int `yaml:"year_field"`
	RegionField int `yaml:"region_field"`
}

func (h HeaderConfig) Layout() partition.HeaderLayout {
	return partition.HeaderLayout{YearField: h.YearField, RegionField: h.RegionField}
}

func Default() Config {
	return Config{
		DataDir:    "data",
		WorkDir:    "work",
		DBPath:     "hadesign.db",
		Workers:    2,
		MinStrains: 5,
		Reconciler: "builtin",
		Consensus:  ConsensusConfig{GapWeight: 0.2},
		Ancestral:  AncestralConfig{MinSites: 50},
		COBRA:      COBRAConfig{Round1Identity: 0.95, Round2Identity: 0.90},
		Tools: ToolsConfig{
			Mafft:  "mafft",
			CDHit:  "cd-hit",
			IQTree: "iqtree2",
			Model:  "MFP",
		},
		Conservation: ConservationConfig{Window: 15},
		Header: HeaderConfig{
			YearField:   partition.DefaultLayout.YearField,
			RegionField: partition.DefaultLayout.RegionField,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read the config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("HADESIGN_DATA"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("HADESIGN_WORK"); v != "" {
		c.WorkDir = v
	}
	if v := os.Getenv("HADESIGN_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("HADESIGN_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HADESIGN_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("HADESIGN_MAFFT"); v != "" {
		c.Tools.Mafft = v
	}
	if v := os.Getenv("HADESIGN_CDHIT"); v != "" {
		c.Tools.CDHit = v
	}
	if v := os.Getenv("HADESIGN_IQTREE"); v != "" {
		c.Tools.IQTree = v
	}
	return nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
