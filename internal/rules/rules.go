// Package rules holds the canonical agronomic rule table used by the
// suitability scorer.
//
// The table is a single versioned YAML document embedded in the binary. An
// operator may replace it with an override file, which must declare a version
// with the same major number as the embedded table.
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/agrichain/cropadvisor/internal/agro"
)

// SupportedMajor is the rule table major version this build understands.
const SupportedMajor = 1

//go:embed crops.yaml
var embeddedTable []byte

// Rule is one weighted parameter range for a crop. Target is set only for
// the categorical soil_type parameter.
type Rule struct {
	Parameter string  `yaml:"parameter" json:"parameter"`
	Min       float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max       float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Weight    float64 `yaml:"weight" json:"weight"`
	Target    string  `yaml:"target,omitempty" json:"target,omitempty"`
}

// Categorical reports whether the rule matches a class instead of a range.
func (r Rule) Categorical() bool {
	return r.Parameter == agro.ParamSoilType
}

// Table maps crop identifiers to their rules. It is immutable after Parse.
type Table struct {
	version *semver.Version
	crops   map[string][]Rule
}

type document struct {
	Version string            `yaml:"version"`
	Crops   map[string][]Rule `yaml:"crops"`
}

// Default returns the embedded rule table.
func Default() (*Table, error) {
	return Parse(embeddedTable)
}

// Load reads an override table from path, or returns the embedded table when
// path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule table %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rule table %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates a rule table document.
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRule, err)
	}

	if doc.Version == "" {
		return nil, fmt.Errorf("%w: missing version", ErrUnsupportedVersion)
	}
	v, err := semver.NewVersion(doc.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrUnsupportedVersion, doc.Version, err)
	}
	if v.Major() != SupportedMajor {
		return nil, fmt.Errorf("%w: %s (supported major %d)", ErrUnsupportedVersion, v, SupportedMajor)
	}

	crops := make(map[string][]Rule, len(doc.Crops))
	for crop, rules := range doc.Crops {
		crops[agro.NormalizeCrop(crop)] = rules
	}

	t := &Table{version: v, crops: crops}
	if err = t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Version returns the table version.
func (t *Table) Version() *semver.Version {
	return t.version
}

// Rules returns the rules for crop, or nil when the crop has none.
// The returned slice must not be modified.
func (t *Table) Rules(crop string) []Rule {
	if t == nil {
		return nil
	}
	return t.crops[agro.NormalizeCrop(crop)]
}

// Crops returns the crops with rule entries, sorted.
func (t *Table) Crops() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.crops))
	for crop := range t.crops {
		out = append(out, crop)
	}
	sort.Strings(out)
	return out
}

// Validate checks every rule. All problems are reported together.
func (t *Table) Validate() error {
	var errs []error
	for _, crop := range t.Crops() {
		for i, r := range t.crops[crop] {
			if err := validateRule(r); err != nil {
				errs = append(errs, fmt.Errorf("%w: %s rule %d (%s): %w", ErrInvalidRule, crop, i, r.Parameter, err))
			}
		}
	}
	return errors.Join(errs...)
}

func validateRule(r Rule) error {
	if r.Weight < 0 || math.IsNaN(r.Weight) || math.IsInf(r.Weight, 0) {
		return errors.New("weight must be a finite non-negative number")
	}

	if r.Categorical() {
		if _, ok := agro.ParseSoilType(r.Target); !ok {
			return fmt.Errorf("unknown soil type %q", r.Target)
		}
		return nil
	}

	if _, ok := agro.FallbackSnapshot().Value(r.Parameter); !ok {
		return errors.New("unknown parameter")
	}
	if r.Target != "" {
		return errors.New("target is only valid for soil_type")
	}
	if r.Max < r.Min {
		return fmt.Errorf("max %g is below min %g", r.Max, r.Min)
	}
	return nil
}
