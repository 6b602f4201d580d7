package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/joshharrison/rcsched/internal/fulib"
	"github.com/joshharrison/rcsched/internal/listsched"
	"github.com/joshharrison/rcsched/internal/schedule"
)

func TestDefaultIsValid(t *testing.T) {
	p := Default()
	if err := p.Validate(); err != nil {
		t.Fatalf("default profile invalid: %v", err)
	}
	if p.Engine != "ls" || p.FDSStep != 3 || p.FDSMaxIterations != 200 || p.LSMaxIterations != 100 {
		t.Errorf("unexpected defaults: %+v", p)
	}
	if p.Epsilon != 1e-4 {
		t.Errorf("expected epsilon 1e-4, got %v", p.Epsilon)
	}
}

func TestReadMergesOverDefaults(t *testing.T) {
	src := `
engine: fds
fds_depth: 2
featS: false
aliases:
  MAC: MUL
`
	p, err := Read(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Engine != "fds" || p.FDSDepth != 2 || p.Stiffness {
		t.Errorf("file values not applied: %+v", p)
	}
	// unset fields keep defaults
	if !p.PowerWeighted || p.Ranking != "improved" {
		t.Errorf("defaults lost: %+v", p)
	}
	if diff := cmp.Diff(map[string]string{"MAC": "MUL"}, p.Aliases); diff != "" {
		t.Errorf("aliases mismatch (-want +got):\n%s", diff)
	}
}

func TestReadEmpty(t *testing.T) {
	p, err := Read(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(Default(), p); diff != "" {
		t.Errorf("empty input should yield defaults (-want +got):\n%s", diff)
	}
}

func TestReadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"engine", "engine: sa\n", "engine must be one of"},
		{"policy", "zero_bound_policy: ignore\n", "zero_bound_policy"},
		{"negative depth", "fds_depth: -1\n", "fds_depth"},
		{"zero step", "fds_step: 0\n", "fds_step"},
		{"zero alpha", "alpha: 0\n", "alpha"},
		{"parallel", "max_parallel: 1000\n", "max_parallel"},
		{"log format", "log_format: xml\n", "log_format"},
		{"empty alias", "aliases:\n  MAC: \"\"\n", "aliases"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.src))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestReadUnknownField(t *testing.T) {
	_, err := Read(strings.NewReader("engines: fds\n"))
	if err == nil {
		t.Fatal("expected an error for an unknown field")
	}
	if errors.Is(err, ErrInvalid) {
		t.Errorf("unknown field should be a decode error, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles", "fds.yaml")
	p := Default()
	p.Engine = "fds"
	p.Scale = 0.5
	p.Strict = true

	if err := Save(path, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(p, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestSearchOptions(t *testing.T) {
	p := Default()
	p.Engine = "fds"
	p.ZeroBoundPolicy = "floor"
	p.Strict = true
	p.PowerWeighted = false

	opts := p.SearchOptions(nil)
	if opts.Engine != schedule.EngineFDS || opts.Ranking != listsched.RankingImproved {
		t.Errorf("unexpected engine/ranking: %s/%s", opts.Engine, opts.Ranking)
	}
	if opts.ZeroBound != fulib.ZeroFloor || !opts.StrictDeadlines {
		t.Errorf("policy not carried over: %+v", opts)
	}
	if opts.Priority.PowerWeighted || !opts.Priority.Stiffness {
		t.Errorf("priority criteria not carried over: %+v", opts.Priority)
	}
	if opts.FDSStep != 3 {
		t.Errorf("expected fds step 3, got %d", opts.FDSStep)
	}
}
