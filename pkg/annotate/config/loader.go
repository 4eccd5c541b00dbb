package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/internalerr"
)

// EnvPrefix prefixes every environment override, e.g. RECONCILE_OUTPUT_TSV.
const EnvPrefix = "RECONCILE_"

// Run is the configuration of one reconciliation batch run.
type Run struct {
	Input   string        `koanf:"input"`
	Policy  string        `koanf:"policy"`
	Output  OutputConfig  `koanf:"output"`
	Archive ArchiveConfig `koanf:"archive"`
	Log     LogConfig     `koanf:"log"`
}

// OutputConfig names the report files.
type OutputConfig struct {
	TSV         string `koanf:"tsv"`
	HTML        string `koanf:"html"`
	SummaryJSON string `koanf:"summary_json"`
}

// ArchiveConfig points at the optional sqlite run archive.
type ArchiveConfig struct {
	Path string `koanf:"path"`
}

// LogConfig configures internal/logging.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DefaultRun returns the fixed file names of the original batch job.
func DefaultRun() Run {
	return Run{
		Input: "annotations-sample.json",
		Output: OutputConfig{
			TSV:  "annotations-diff.tsv",
			HTML: "annotations.html",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadRun layers defaults, an optional YAML file and RECONCILE_* environment
// variables, in that order of increasing priority.
func LoadRun(path string) (Run, error) {
	k := koanf.New(".")

	defaults := DefaultRun()
	if err := k.Load(structs.Provider(&defaults, "koanf"), nil); err != nil {
		return Run{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Run{}, fmt.Errorf("%w: load config file %s: %v", internalerr.ErrInvalidConfig, path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Run{}, fmt.Errorf("load environment: %w", err)
	}

	var run Run
	if err := k.Unmarshal("", &run); err != nil {
		return Run{}, fmt.Errorf("%w: unmarshal config: %v", internalerr.ErrInvalidConfig, err)
	}
	if err := run.Validate(); err != nil {
		return Run{}, err
	}
	return run, nil
}

// envKey maps RECONCILE_OUTPUT_SUMMARY_JSON to output.summary_json: the first
// underscore after the prefix separates the section from the key.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, rest, found := strings.Cut(key, "_")
	if !found {
		return key
	}
	switch section {
	case "output", "archive", "log":
		return section + "." + rest
	default:
		return key
	}
}

// Validate checks required settings.
func (r Run) Validate() error {
	if strings.TrimSpace(r.Input) == "" {
		return fmt.Errorf("%w: input path is required", internalerr.ErrInvalidConfig)
	}
	if strings.TrimSpace(r.Output.TSV) == "" || strings.TrimSpace(r.Output.HTML) == "" {
		return fmt.Errorf("%w: output.tsv and output.html are required", internalerr.ErrInvalidConfig)
	}
	switch strings.ToLower(r.Log.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: log.format must be console or json, got %q", internalerr.ErrInvalidConfig, r.Log.Format)
	}
	return nil
}

// LoadPolicyFor returns the policy file named by the run, or the default policy.
func (r Run) LoadPolicyFor() (Policy, error) {
	if strings.TrimSpace(r.Policy) == "" {
		return DefaultPolicy(), nil
	}
	if _, err := os.Stat(r.Policy); err != nil {
		return Policy{}, fmt.Errorf("%w: policy file: %v", internalerr.ErrInvalidConfig, err)
	}
	return LoadPolicy(r.Policy)
}
