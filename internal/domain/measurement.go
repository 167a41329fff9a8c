package domain

import (
	"time"
)

// BodyMeasurement is an immutable history entry. The weight is recorded in
// pounds here regardless of the unit the user supplied; the profile's
// weight_kg field holds the canonical current value.
type BodyMeasurement struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	MeasuredAt     time.Time `json:"measured_at"`
	WeightLbs      float64   `json:"weight_lbs"`
	BodyFatPercent float64   `json:"body_fat_percent,omitempty"`
}
