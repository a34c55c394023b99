// Package config loads PipelineOptions from a layered configuration: CLI
// flags (applied by the caller after Load), environment variables, a
// .wnbimport.yaml file, and built-in defaults, in that precedence order.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/wnbrewery/wnbimport/internal/ingesterr"
)

// DefaultFilename is the config file name looked up relative to a provided
// directory (typically the current working directory or the source root).
const DefaultFilename = ".wnbimport.yaml"

// PipelineOptions mirrors the pipeline's tunables; cmd/ layers CLI flags on
// top of whatever Load returns.
type PipelineOptions struct {
	Verify        bool   `yaml:"verify"`
	Rename        bool   `yaml:"rename"`
	DedupEnabled  bool   `yaml:"dedupEnabled"`
	DedupDatabase string `yaml:"dedupDatabase"`
	BatchName     string `yaml:"batchName"`
	ExtractorTimeoutSeconds int `yaml:"extractorTimeoutSeconds"`
	MetadataConcurrency    int `yaml:"metadataConcurrency"`
	CustomIgnoreFile       string `yaml:"customIgnoreFile"`
}

// Defaults returns the built-in baseline, the bottom of the precedence
// stack.
func Defaults() PipelineOptions {
	return PipelineOptions{
		Verify:                  true,
		Rename:                  false,
		DedupEnabled:            true,
		ExtractorTimeoutSeconds: 30,
		MetadataConcurrency:     4,
	}
}

// envPrefix is the prefix every recognized environment variable carries.
const envPrefix = "WNB_IMPORT_"

// Load builds PipelineOptions by starting from Defaults, overlaying a
// .wnbimport.yaml file found under dir (if present), then overlaying
// recognized WNB_IMPORT_* environment variables. CLI flags are the caller's
// responsibility to apply last, since cobra owns flag parsing.
func Load(dir string) (PipelineOptions, error) {
	opts := Defaults()

	path := filepath.Join(dir, DefaultFilename)
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return PipelineOptions{}, ingesterr.New(ingesterr.KindSchemaValidation, path, "failed to parse config file", err)
		}
	} else if !os.IsNotExist(err) {
		return PipelineOptions{}, ingesterr.New(ingesterr.KindRead, path, "failed to read config file", err)
	}

	applyEnv(&opts)

	return opts, nil
}

func applyEnv(opts *PipelineOptions) {
	if v, ok := os.LookupEnv(envPrefix + "VERIFY"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			opts.Verify = b
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "RENAME"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			opts.Rename = b
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "DEDUP_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			opts.DedupEnabled = b
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "DEDUP_DATABASE"); ok {
		opts.DedupDatabase = v
	}
	if v, ok := os.LookupEnv(envPrefix + "BATCH_NAME"); ok {
		opts.BatchName = v
	}
	if v, ok := os.LookupEnv(envPrefix + "EXTRACTOR_TIMEOUT_SECONDS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			opts.ExtractorTimeoutSeconds = n
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "METADATA_CONCURRENCY"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			opts.MetadataConcurrency = n
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "CUSTOM_IGNORE_FILE"); ok {
		opts.CustomIgnoreFile = v
	}
}
