package validation

import (
	"fmt"
	"math"

	"github.com/phrazzld/assessment-engine/internal/domain"
)

// Rule checks one property and returns its findings. Rules are pure and
// safe for concurrent use.
type Rule struct {
	Name  string
	Check func(p domain.Property, c *runConfig) []domain.BatchValidationError
}

// runConfig is the compiled configuration with per-run parameters applied.
type runConfig struct {
	compiledConfig
}

func finding(p domain.Property, errorType, field, message string, severity domain.Severity) domain.BatchValidationError {
	return domain.BatchValidationError{
		ItemID:    p.ID,
		ErrorType: errorType,
		Message:   message,
		Severity:  severity,
		Field:     field,
	}
}

var requiredFieldsRule = Rule{
	Name: "required_fields",
	Check: func(p domain.Property, c *runConfig) []domain.BatchValidationError {
		var out []domain.BatchValidationError
		for _, field := range c.required {
			if p.HasField(field) {
				continue
			}
			f := finding(p, domain.ErrorTypeMissingRequiredField, field,
				fmt.Sprintf("required field %s is missing", field), domain.SeverityError)
			f.Suggestion = fmt.Sprintf("provide a value for %s", field)
			out = append(out, f)
		}
		return out
	},
}

var valueConsistencyRule = Rule{
	Name: "value_consistency",
	Check: func(p domain.Property, c *runConfig) []domain.BatchValidationError {
		if p.LandValue == nil || p.TotalValue == nil {
			return nil
		}
		improvement := 0.0
		if p.ImprovementValue != nil {
			improvement = *p.ImprovementValue
		}
		expected := *p.LandValue + improvement
		if math.Abs(expected-*p.TotalValue) <= c.tolerance {
			return nil
		}
		f := finding(p, domain.ErrorTypeValueInconsistency, domain.FieldTotalValue,
			fmt.Sprintf("total value %.2f does not equal land plus improvement value %.2f", *p.TotalValue, expected),
			domain.SeverityError)
		f.ExpectedValue = expected
		f.ActualValue = *p.TotalValue
		f.Suggestion = fmt.Sprintf("set totalValue to %.2f", expected)
		f.SuggestedValue = expected
		return []domain.BatchValidationError{f}
	},
}

var landUseCodeRule = Rule{
	Name: "land_use_code",
	Check: func(p domain.Property, c *runConfig) []domain.BatchValidationError {
		if p.LandUseCode == "" || c.landUse.has(p.LandUseCode) {
			return nil
		}
		f := finding(p, domain.ErrorTypeInvalidCode, domain.FieldLandUseCode,
			fmt.Sprintf("land use code %q is not recognised", p.LandUseCode), domain.SeverityError)
		f.ActualValue = p.LandUseCode
		f.Suggestion = "use a code from the jurisdiction's land use code table"
		return []domain.BatchValidationError{f}
	},
}

var propertyTypeRule = Rule{
	Name: "property_type",
	Check: func(p domain.Property, c *runConfig) []domain.BatchValidationError {
		if p.PropertyType == "" || c.types.has(p.PropertyType) {
			return nil
		}
		f := finding(p, domain.ErrorTypeInvalidPropertyType, domain.FieldPropertyType,
			fmt.Sprintf("property type %q is not recognised", p.PropertyType), domain.SeverityError)
		f.ActualValue = p.PropertyType
		return []domain.BatchValidationError{f}
	},
}

var parcelFormatRule = Rule{
	Name: "parcel_format",
	Check: func(p domain.Property, c *runConfig) []domain.BatchValidationError {
		if p.ParcelNumber == "" || c.parcel.MatchString(p.ParcelNumber) {
			return nil
		}
		f := finding(p, domain.ErrorTypeInvalidFormat, domain.FieldParcelNumber,
			fmt.Sprintf("parcel number %q does not match the expected format", p.ParcelNumber),
			domain.SeverityError)
		f.ExpectedValue = c.parcel.String()
		f.ActualValue = p.ParcelNumber
		return []domain.BatchValidationError{f}
	},
}

var negativeValueRule = Rule{
	Name: "negative_values",
	Check: func(p domain.Property, c *runConfig) []domain.BatchValidationError {
		var out []domain.BatchValidationError
		for _, v := range []struct {
			field string
			value *float64
		}{
			{domain.FieldLandValue, p.LandValue},
			{domain.FieldImprovementValue, p.ImprovementValue},
			{domain.FieldTotalValue, p.TotalValue},
		} {
			if v.value == nil || *v.value >= 0 {
				continue
			}
			f := finding(p, domain.ErrorTypeNegativeValue, v.field,
				fmt.Sprintf("%s must not be negative", v.field), domain.SeverityError)
			f.ActualValue = *v.value
			out = append(out, f)
		}
		return out
	},
}

var improvementCategoryRule = Rule{
	Name: "improvement_category",
	Check: func(p domain.Property, c *runConfig) []domain.BatchValidationError {
		hasImprovement := p.ImprovementValue != nil && *p.ImprovementValue > 0

		switch {
		case c.vacant.has(p.PropertyType) && hasImprovement:
			f := finding(p, domain.ErrorTypeUnexpectedImprovementValue, domain.FieldImprovementValue,
				fmt.Sprintf("%s property carries an improvement value", p.PropertyType), domain.SeverityWarning)
			f.ActualValue = *p.ImprovementValue
			f.Suggestion = "confirm the parcel is vacant or reclassify it"
			f.SuggestedValue = 0.0
			return []domain.BatchValidationError{f}
		case c.improved.has(p.PropertyType) && !hasImprovement:
			f := finding(p, domain.ErrorTypeMissingImprovementValue, domain.FieldImprovementValue,
				fmt.Sprintf("%s property has no improvement value", p.PropertyType), domain.SeverityWarning)
			f.Suggestion = "record the improvement value or reclassify the parcel"
			return []domain.BatchValidationError{f}
		}
		return nil
	},
}
