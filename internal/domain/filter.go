package domain

import "time"

// ValueRange bounds a property's total value, inclusive.
type ValueRange struct {
	Min float64 `json:"min" validate:"gte=0"`
	Max float64 `json:"max" validate:"gtefield=Min"`
}

// DateRange bounds a property's last-updated time, inclusive.
type DateRange struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end"   validate:"required,gtefield=Start"`
}

// ValidationFilter selects the properties a batch validation run covers.
// Empty lists and nil ranges mean "no constraint".
type ValidationFilter struct {
	PropertyTypes    []string    `json:"property_types,omitempty"    validate:"omitempty,dive,required"`
	LandUseCodes     []string    `json:"land_use_codes,omitempty"    validate:"omitempty,dive,required"`
	ParcelNumbers    []string    `json:"parcel_numbers,omitempty"    validate:"omitempty,dive,required"`
	AssessmentYears  []int       `json:"assessment_years,omitempty"  validate:"omitempty,dive,gte=1800,lte=2200"`
	ValueRange       *ValueRange `json:"value_range,omitempty"`
	LastUpdatedRange *DateRange  `json:"last_updated_range,omitempty"`
	Limit            int         `json:"limit,omitempty"             validate:"gte=0"`
}
