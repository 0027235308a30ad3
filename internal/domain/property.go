package domain

import "time"

// Field names used by rules and reported in BatchValidationError.Field.
const (
	FieldParcelNumber     = "parcelNumber"
	FieldPropertyType     = "propertyType"
	FieldLandUseCode      = "landUseCode"
	FieldAssessmentYear   = "assessmentYear"
	FieldLandValue        = "landValue"
	FieldImprovementValue = "improvementValue"
	FieldTotalValue       = "totalValue"
	FieldAddress          = "address"
	FieldOwnerName        = "ownerName"
)

// Property is one assessed parcel as supplied by the property repository.
// Monetary values are pointers so that an absent value is distinguishable
// from zero.
type Property struct {
	ID               string    `json:"id"`
	ParcelNumber     string    `json:"parcel_number,omitempty"`
	PropertyType     string    `json:"property_type,omitempty"`
	LandUseCode      string    `json:"land_use_code,omitempty"`
	AssessmentYear   int       `json:"assessment_year,omitempty"`
	LandValue        *float64  `json:"land_value,omitempty"`
	ImprovementValue *float64  `json:"improvement_value,omitempty"`
	TotalValue       *float64  `json:"total_value,omitempty"`
	Address          string    `json:"address,omitempty"`
	OwnerName        string    `json:"owner_name,omitempty"`
	LastUpdated      time.Time `json:"last_updated"`
}

// HasField reports whether the named field carries a value.
// Unknown field names are reported as absent.
func (p Property) HasField(name string) bool {
	switch name {
	case FieldParcelNumber:
		return p.ParcelNumber != ""
	case FieldPropertyType:
		return p.PropertyType != ""
	case FieldLandUseCode:
		return p.LandUseCode != ""
	case FieldAssessmentYear:
		return p.AssessmentYear != 0
	case FieldLandValue:
		return p.LandValue != nil
	case FieldImprovementValue:
		return p.ImprovementValue != nil
	case FieldTotalValue:
		return p.TotalValue != nil
	case FieldAddress:
		return p.Address != ""
	case FieldOwnerName:
		return p.OwnerName != ""
	default:
		return false
	}
}

// KnownField reports whether name is a field HasField understands.
func KnownField(name string) bool {
	switch name {
	case FieldParcelNumber, FieldPropertyType, FieldLandUseCode, FieldAssessmentYear,
		FieldLandValue, FieldImprovementValue, FieldTotalValue, FieldAddress, FieldOwnerName:
		return true
	}
	return false
}

// Float returns a pointer to v. It keeps test fixtures and adapters short.
func Float(v float64) *float64 {
	return &v
}
