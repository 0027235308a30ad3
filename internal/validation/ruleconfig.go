package validation

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"

	"github.com/phrazzld/assessment-engine/internal/domain"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// DefaultTolerance is the allowed absolute gap between land+improvement and
// total value.
const DefaultTolerance = 0.01

//go:embed ruleconfig.schema.json
var ruleConfigSchema []byte

// ErrInvalidRuleConfig is returned when a rule configuration document is
// malformed or fails schema validation.
var ErrInvalidRuleConfig = errors.New("invalid rule configuration")

// RuleConfig holds the business predicates the rules evaluate. It is plain
// data so jurisdictions can change codes and categories without a release.
type RuleConfig struct {
	RequiredFields        []string `yaml:"required_fields" json:"required_fields"`
	Tolerance             float64  `yaml:"tolerance" json:"tolerance"`
	ValidLandUseCodes     []string `yaml:"valid_land_use_codes" json:"valid_land_use_codes"`
	ValidPropertyTypes    []string `yaml:"valid_property_types" json:"valid_property_types"`
	ParcelPattern         string   `yaml:"parcel_pattern" json:"parcel_pattern"`
	VacantPropertyTypes   []string `yaml:"vacant_property_types" json:"vacant_property_types"`
	ImprovedPropertyTypes []string `yaml:"improved_property_types" json:"improved_property_types"`
}

// DefaultRuleConfig returns the built-in rule configuration.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		RequiredFields: []string{
			domain.FieldParcelNumber,
			domain.FieldPropertyType,
			domain.FieldLandUseCode,
			domain.FieldAssessmentYear,
			domain.FieldLandValue,
			domain.FieldTotalValue,
		},
		Tolerance: DefaultTolerance,
		ValidLandUseCodes: []string{
			"R1", "R2", "R3", "RM", "C1", "C2", "C3", "I1", "I2", "A1", "A2", "V1", "EX",
		},
		ValidPropertyTypes: []string{
			"RESIDENTIAL", "COMMERCIAL", "INDUSTRIAL", "AGRICULTURAL", "VACANT_LAND", "EXEMPT",
		},
		ParcelPattern:         `^\d{3}-\d{3}-\d{3}$`,
		VacantPropertyTypes:   []string{"VACANT_LAND"},
		ImprovedPropertyTypes: []string{"RESIDENTIAL", "COMMERCIAL", "INDUSTRIAL"},
	}
}

// LoadRuleConfig reads a YAML rule document from path. An empty path yields
// the defaults.
func LoadRuleConfig(path string) (RuleConfig, error) {
	if path == "" {
		return DefaultRuleConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleConfig{}, fmt.Errorf("failed to read rule configuration: %w", err)
	}
	return ParseRuleConfig(data)
}

// ParseRuleConfig validates a YAML rule document against the embedded JSON
// Schema and overlays it on the defaults.
func ParseRuleConfig(data []byte) (RuleConfig, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return RuleConfig{}, fmt.Errorf("%w: %w", ErrInvalidRuleConfig, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(ruleConfigSchema))
	if err != nil {
		return RuleConfig{}, fmt.Errorf("failed to load rule configuration schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return RuleConfig{}, fmt.Errorf("failed to validate rule configuration: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return RuleConfig{}, fmt.Errorf("%w: %v", ErrInvalidRuleConfig, problems)
	}

	cfg := DefaultRuleConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RuleConfig{}, fmt.Errorf("%w: %w", ErrInvalidRuleConfig, err)
	}
	if _, err := cfg.compile(); err != nil {
		return RuleConfig{}, err
	}
	return cfg, nil
}

// compiledConfig is RuleConfig with lookups prepared.
type compiledConfig struct {
	required  []string
	tolerance float64
	landUse   set
	types     set
	parcel    *regexp.Regexp
	vacant    set
	improved  set
}

func (c RuleConfig) compile() (compiledConfig, error) {
	for _, f := range c.RequiredFields {
		if !domain.KnownField(f) {
			return compiledConfig{}, fmt.Errorf("%w: unknown required field %q", ErrInvalidRuleConfig, f)
		}
	}
	if c.Tolerance < 0 {
		return compiledConfig{}, fmt.Errorf("%w: tolerance must not be negative", ErrInvalidRuleConfig)
	}
	re, err := regexp.Compile(c.ParcelPattern)
	if err != nil {
		return compiledConfig{}, fmt.Errorf("%w: parcel pattern: %w", ErrInvalidRuleConfig, err)
	}
	return compiledConfig{
		required:  slices.Clone(c.RequiredFields),
		tolerance: c.Tolerance,
		landUse:   newSet(c.ValidLandUseCodes),
		types:     newSet(c.ValidPropertyTypes),
		parcel:    re,
		vacant:    newSet(c.VacantPropertyTypes),
		improved:  newSet(c.ImprovedPropertyTypes),
	}, nil
}

type set map[string]struct{}

func newSet(values []string) set {
	s := make(set, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func (s set) has(v string) bool {
	_, ok := s[v]
	return ok
}
