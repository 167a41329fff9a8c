// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/musclelog/server/internal/domain"
)

// Repository defines the interface for persisting fitness-tracking data.
type Repository interface {
	// GetProfile retrieves a profile by user ID. Returns (nil, nil) if absent.
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)

	// GetProfileByPhone retrieves a profile by phone number. Returns (nil, nil) if absent.
	GetProfileByPhone(ctx context.Context, phoneNumber string) (*domain.Profile, error)

	// UpsertProfile creates or updates a profile record.
	UpsertProfile(ctx context.Context, profile *domain.Profile) error

	// UpdatePreferences applies a partial preference update to a profile.
	UpdatePreferences(ctx context.Context, userID string, update domain.PreferenceUpdate) error

	// UpdateProfileWeight sets the profile's canonical current weight in kilograms.
	UpdateProfileWeight(ctx context.Context, userID string, weightKg float64) error

	// AddTokenUsage adds tokens to the profile's running usage counter.
	AddTokenUsage(ctx context.Context, userID string, tokens int64) error

	// SetStripeCustomerID records the Stripe customer ID on a profile.
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error

	// SetSubscriptionByCustomer updates subscription state for the profile
	// owning the given Stripe customer ID.
	SetSubscriptionByCustomer(ctx context.Context, customerID string, isPro bool, endsAt *time.Time) error

	// ListWeeklyEmailProfiles returns Pro profiles that opted into the weekly summary email.
	ListWeeklyEmailProfiles(ctx context.Context) ([]*domain.Profile, error)

	// GetUserIDByTokenHash resolves a bearer-token hash to a user ID.
	// Returns "" if the token is unknown.
	GetUserIDByTokenHash(ctx context.Context, tokenHash string) (string, error)

	// InsertAPIToken registers a bearer-token hash for a user.
	InsertAPIToken(ctx context.Context, tokenHash, userID string) error

	// GetOrCreateSession returns the user's workout session for the given
	// date (YYYY-MM-DD), creating it if none exists. A uniqueness constraint
	// guarantees a single row per (user, day) even under concurrent calls.
	GetOrCreateSession(ctx context.Context, userID, sessionDate string) (*domain.WorkoutSession, error)

	// GetOrCreateExercise returns the catalog entry matching name
	// case-insensitively, creating it with the given category if absent.
	GetOrCreateExercise(ctx context.Context, name, category string) (*domain.Exercise, error)

	// InsertSet records one workout set.
	InsertSet(ctx context.Context, set *domain.WorkoutSet) error

	// ListSessions returns the most recent sessions with their sets,
	// ordered by date descending.
	ListSessions(ctx context.Context, userID string, limit int) ([]*domain.WorkoutSession, error)

	// CountSessionsSince counts workout sessions on or after the given date (YYYY-MM-DD).
	CountSessionsSince(ctx context.Context, userID string, since string) (int, error)

	// InsertFoodLog records one food log entry.
	InsertFoodLog(ctx context.Context, log *domain.FoodLog) error

	// ListFoodLogs returns the most recent food logs ordered by date descending.
	ListFoodLogs(ctx context.Context, userID string, limit int) ([]*domain.FoodLog, error)

	// FoodTotalsSince returns the calorie sum and entry count since the given date (YYYY-MM-DD).
	FoodTotalsSince(ctx context.Context, userID string, since string) (totalCalories float64, entries int, err error)

	// InsertMeasurement records one body measurement history entry.
	InsertMeasurement(ctx context.Context, m *domain.BodyMeasurement) error

	// ListMeasurements returns the most recent measurements, newest first.
	ListMeasurements(ctx context.Context, userID string, limit int) ([]*domain.BodyMeasurement, error)

	// ListExercises returns the whole exercise catalog.
	ListExercises(ctx context.Context) ([]*domain.Exercise, error)

	// UpdateExerciseCategory sets the category of one exercise.
	UpdateExerciseCategory(ctx context.Context, exerciseID, category string) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
