// Package domain contains core domain types for the MuscleLog application.
package domain

import (
	"time"
)

// Weight unit preferences. Measurements are stored in pounds; the profile's
// current weight is stored in kilograms.
const (
	UnitKg  = "kg"
	UnitLbs = "lbs"
)

// LbsPerKg is the conversion factor between the two stored weight units.
const LbsPerKg = 2.20462

// KgToLbs converts kilograms to pounds.
func KgToLbs(kg float64) float64 {
	return kg * LbsPerKg
}

// LbsToKg converts pounds to kilograms.
func LbsToKg(lbs float64) float64 {
	return lbs / LbsPerKg
}

// Profile represents a user's profile and assistant preferences.
type Profile struct {
	UserID             string     `json:"user_id"`
	Email              string     `json:"email,omitempty"`
	DisplayName        string     `json:"display_name,omitempty"`
	Gender             string     `json:"gender,omitempty"`
	Age                int        `json:"age,omitempty"`
	HeightCm           float64    `json:"height_cm,omitempty"`
	WeightKg           float64    `json:"weight_kg,omitempty"`
	Locale             string     `json:"locale,omitempty"`
	WeightUnit         string     `json:"weight_unit,omitempty"`
	IsPro              bool       `json:"is_pro"`
	CustomInstructions string     `json:"custom_instructions,omitempty"`
	NutritionGoal      string     `json:"nutrition_goal,omitempty"`
	WeightGoalKg       float64    `json:"weight_goal_kg,omitempty"`
	PredictNutrients   bool       `json:"predict_nutrients"`
	PhoneNumber        string     `json:"phone_number,omitempty"`
	StripeCustomerID   string     `json:"stripe_customer_id,omitempty"`
	SubscriptionEndsAt *time.Time `json:"subscription_ends_at,omitempty"`
	WeeklyEmail        bool       `json:"weekly_email"`
	AIUsageTokenCount  int64      `json:"ai_usage_token_count"`
	IsAdmin            bool       `json:"is_admin"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// PreferenceUpdate carries a partial update to assistant preferences.
// Nil fields are left untouched.
type PreferenceUpdate struct {
	Locale           *string `json:"locale,omitempty"`
	WeightUnit       *string `json:"weight_unit,omitempty"`
	PredictNutrients *bool   `json:"predict_nutrients,omitempty"`
}

// Empty returns true if the update would change nothing.
func (p PreferenceUpdate) Empty() bool {
	return p.Locale == nil && p.WeightUnit == nil && p.PredictNutrients == nil
}
