// Package config loads scheduling profiles from YAML.
//
// A profile holds every knob of a scheduling run. Fields missing from the
// file keep the values from Default, and the merged profile is validated
// before use. Command-line flags override profile values afterwards.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/joshharrison/rcsched/internal/fulib"
	"github.com/joshharrison/rcsched/internal/listsched"
	"github.com/joshharrison/rcsched/internal/priority"
	"github.com/joshharrison/rcsched/internal/schedule"
	"github.com/joshharrison/rcsched/internal/search"
)

// DefaultFile is the profile name looked up in the working directory.
const DefaultFile = "rcsched.yaml"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid profile")

// Profile is the on-disk scheduling configuration.
type Profile struct {
	Engine  string `yaml:"engine" validate:"oneof=fds ls"`
	Ranking string `yaml:"ranking" validate:"oneof=baseline improved"`

	// featP and featS of the improved ranking.
	PowerWeighted bool `yaml:"featP"`
	Stiffness     bool `yaml:"featS"`

	Alpha   float64 `yaml:"alpha" validate:"gt=0"`
	Beta    float64 `yaml:"beta" validate:"gt=0"`
	Epsilon float64 `yaml:"epsilon" validate:"gt=0"`

	LatencyParameter float64 `yaml:"latency_parameter" validate:"gt=0"`
	FDSDepth         int     `yaml:"fds_depth" validate:"gte=0"`
	FDSStep          int     `yaml:"fds_step" validate:"gte=1"`
	FDSMaxIterations int     `yaml:"fds_max_iterations" validate:"gte=1"`
	LSMaxIterations  int     `yaml:"ls_max_iterations" validate:"gte=1"`

	ZeroBoundPolicy string  `yaml:"zero_bound_policy" validate:"oneof=reject floor"`
	Scale           float64 `yaml:"scale" validate:"gt=0"`
	Strict          bool    `yaml:"strict"`

	Aliases map[string]string `yaml:"aliases,omitempty" validate:"dive,keys,required,endkeys,required"`

	OutDir      string `yaml:"out_dir"`
	CSVLog      string `yaml:"csv_log,omitempty"`
	MaxParallel int    `yaml:"max_parallel" validate:"gte=1,lte=256"`

	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=text json"`
}

// Default returns the profile used when no file is given.
func Default() Profile {
	return Profile{
		Engine:           string(schedule.EngineLS),
		Ranking:          string(listsched.RankingImproved),
		PowerWeighted:    true,
		Stiffness:        true,
		Alpha:            priority.DefaultAlpha,
		Beta:             priority.DefaultBeta,
		Epsilon:          priority.DefaultEpsilon,
		LatencyParameter: 1,
		FDSStep:          search.DefaultFDSStep,
		FDSMaxIterations: search.DefaultFDSMaxIterations,
		LSMaxIterations:  search.DefaultLSMaxIterations,
		ZeroBoundPolicy:  string(fulib.ZeroReject),
		Scale:            1,
		OutDir:           "results",
		MaxParallel:      4,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field constraint.
func (p *Profile) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := yamlName(fe.StructField())
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "gt", "gte", "lte":
		return fmt.Sprintf("%s must be %s %s, got %v", field, fe.Tag(), fe.Param(), fe.Value())
	case "required":
		return fmt.Sprintf("%s has an empty entry", field)
	}
	return fmt.Sprintf("%s failed %q", field, fe.Tag())
}

// yamlName maps a struct field back to its YAML key for error messages.
func yamlName(field string) string {
	if i := strings.IndexByte(field, '['); i >= 0 {
		field = field[:i]
	}
	if name, ok := yamlNames[field]; ok {
		return name
	}
	return field
}

var yamlNames = map[string]string{
	"Engine":           "engine",
	"Ranking":          "ranking",
	"Alpha":            "alpha",
	"Beta":             "beta",
	"Epsilon":          "epsilon",
	"LatencyParameter": "latency_parameter",
	"FDSDepth":         "fds_depth",
	"FDSStep":          "fds_step",
	"FDSMaxIterations": "fds_max_iterations",
	"LSMaxIterations":  "ls_max_iterations",
	"ZeroBoundPolicy":  "zero_bound_policy",
	"Scale":            "scale",
	"Aliases":          "aliases",
	"MaxParallel":      "max_parallel",
	"LogLevel":         "log_level",
	"LogFormat":        "log_format",
}

// Read decodes a profile over the defaults and validates it.
func Read(r io.Reader) (Profile, error) {
	p := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Load reads a profile file. An empty path returns the defaults, or
// DefaultFile when it exists in the working directory.
func Load(path string) (Profile, error) {
	if path == "" {
		if _, err := os.Stat(DefaultFile); err != nil {
			return Default(), nil
		}
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	p, err := Read(bytes.NewReader(data))
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Save writes p as YAML, creating the parent directory.
func Save(path string, p Profile) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create profile directory: %w", err)
		}
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Priority returns the priority evaluator settings.
func (p Profile) Priority() priority.Config {
	return priority.Config{
		PowerWeighted: p.PowerWeighted,
		Stiffness:     p.Stiffness,
		Alpha:         p.Alpha,
		Beta:          p.Beta,
		Epsilon:       p.Epsilon,
	}
}

// SearchOptions converts the profile into search options. Bounds are
// supplied per graph by the caller.
func (p Profile) SearchOptions(logger *slog.Logger) search.Options {
	return search.Options{
		Engine:           schedule.Engine(p.Engine),
		Ranking:          listsched.Ranking(p.Ranking),
		LatencyParameter: p.LatencyParameter,
		FDSDepth:         p.FDSDepth,
		FDSStep:          p.FDSStep,
		FDSMaxIterations: p.FDSMaxIterations,
		LSMaxIterations:  p.LSMaxIterations,
		ZeroBound:        fulib.ZeroBoundPolicy(p.ZeroBoundPolicy),
		StrictDeadlines:  p.Strict,
		Priority:         p.Priority(),
		Logger:           logger,
	}
}
