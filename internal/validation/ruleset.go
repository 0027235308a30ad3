package validation

import (
	"fmt"
	"slices"

	"github.com/phrazzld/assessment-engine/internal/domain"
)

// Params are per-run adjustments supplied with a submission.
type Params struct {
	// Tolerance overrides the configured value-consistency tolerance.
	Tolerance *float64 `json:"tolerance,omitempty" validate:"omitempty,gte=0"`

	// RequiredFields are checked in addition to the configured ones.
	RequiredFields []string `json:"required_fields,omitempty" validate:"omitempty,dive,required"`
}

// RuleSets maps each validation type to its ordered rules. FULL_ASSESSMENT
// is the union of every component set, built once.
type RuleSets struct {
	config compiledConfig
	sets   map[domain.ValidationType][]Rule
}

// NewRuleSets compiles cfg and builds the rule table.
func NewRuleSets(cfg RuleConfig) (*RuleSets, error) {
	compiled, err := cfg.compile()
	if err != nil {
		return nil, err
	}

	sets := map[domain.ValidationType][]Rule{
		domain.ValidationRequiredFields:   {requiredFieldsRule},
		domain.ValidationValueConsistency: {valueConsistencyRule},
		domain.ValidationCodes:            {landUseCodeRule, propertyTypeRule},
		domain.ValidationFormat:           {parcelFormatRule},
		domain.ValidationCategorySanity:   {negativeValueRule, improvementCategoryRule},
	}
	var full []Rule
	for _, t := range domain.ComponentValidationTypes() {
		full = append(full, sets[t]...)
	}
	sets[domain.ValidationFullAssessment] = full

	return &RuleSets{config: compiled, sets: sets}, nil
}

// Rules returns the rule names for t in evaluation order.
func (s *RuleSets) Rules(t domain.ValidationType) ([]string, error) {
	rules, ok := s.sets[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidValidationType, t)
	}
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name
	}
	return names, nil
}

// Checker returns a Checker for t with params applied.
func (s *RuleSets) Checker(t domain.ValidationType, params Params) (*Checker, error) {
	rules, ok := s.sets[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidValidationType, t)
	}

	rc := &runConfig{compiledConfig: s.config}
	rc.required = slices.Clone(s.config.required)
	if params.Tolerance != nil {
		if *params.Tolerance < 0 {
			return nil, domain.NewValidationError("tolerance", "must not be negative", domain.ErrValidation)
		}
		rc.tolerance = *params.Tolerance
	}
	for _, f := range params.RequiredFields {
		if !domain.KnownField(f) {
			return nil, domain.NewValidationError("required_fields",
				fmt.Sprintf("unknown field %q", f), domain.ErrValidation)
		}
		if !slices.Contains(rc.required, f) {
			rc.required = append(rc.required, f)
		}
	}

	return &Checker{validationType: t, rules: rules, config: rc}, nil
}

// Checker evaluates one validation type against properties.
type Checker struct {
	validationType domain.ValidationType
	rules          []Rule
	config         *runConfig
}

// ValidationType returns the type this checker evaluates.
func (c *Checker) ValidationType() domain.ValidationType {
	return c.validationType
}

// Check runs every rule against p and returns the findings in rule order.
func (c *Checker) Check(p domain.Property) []domain.BatchValidationError {
	var out []domain.BatchValidationError
	for _, r := range c.rules {
		out = append(out, r.Check(p, c.config)...)
	}
	return out
}
