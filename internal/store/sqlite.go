package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/musclelog/server/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		email TEXT,
		display_name TEXT,
		gender TEXT,
		age INTEGER DEFAULT 0,
		height_cm REAL DEFAULT 0,
		weight_kg REAL DEFAULT 0,
		locale TEXT,
		weight_unit TEXT,
		is_pro INTEGER DEFAULT 0,
		custom_instructions TEXT,
		nutrition_goal TEXT,
		weight_goal_kg REAL DEFAULT 0,
		predict_nutrients INTEGER DEFAULT 0,
		phone_number TEXT,
		stripe_customer_id TEXT,
		subscription_ends_at INTEGER,
		weekly_email INTEGER DEFAULT 0,
		ai_usage_token_count INTEGER DEFAULT 0,
		is_admin INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_profiles_phone ON profiles(phone_number) WHERE phone_number IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_profiles_customer ON profiles(stripe_customer_id) WHERE stripe_customer_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS api_tokens (
		token_hash TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exercises (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL COLLATE NOCASE UNIQUE,
		category TEXT NOT NULL DEFAULT 'other',
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS workout_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_date TEXT NOT NULL,
		notes TEXT,
		duration_minutes INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		UNIQUE(user_id, session_date)
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_date ON workout_sessions(user_id, session_date);

	CREATE TABLE IF NOT EXISTS workout_sets (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES workout_sessions(id),
		exercise_id TEXT NOT NULL REFERENCES exercises(id),
		set_number INTEGER NOT NULL,
		weight_lbs REAL NOT NULL DEFAULT 0,
		reps INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sets_session ON workout_sets(session_id);

	CREATE TABLE IF NOT EXISTS food_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		meal_date TEXT NOT NULL,
		meal_type TEXT NOT NULL DEFAULT 'snack',
		food_name TEXT NOT NULL,
		calories REAL NOT NULL DEFAULT 0,
		protein_g REAL NOT NULL DEFAULT 0,
		carbs_g REAL NOT NULL DEFAULT 0,
		fat_g REAL NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_food_user_date ON food_logs(user_id, meal_date);

	CREATE TABLE IF NOT EXISTS body_measurements (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		measured_at INTEGER NOT NULL,
		weight_lbs REAL NOT NULL DEFAULT 0,
		body_fat_percent REAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_measurements_user ON body_measurements(user_id, measured_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

const profileColumns = `user_id, email, display_name, gender, age, height_cm, weight_kg,
	locale, weight_unit, is_pro, custom_instructions, nutrition_goal, weight_goal_kg,
	predict_nutrients, phone_number, stripe_customer_id, subscription_ends_at,
	weekly_email, ai_usage_token_count, is_admin, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (*domain.Profile, error) {
	var p domain.Profile
	var email, displayName, gender, locale, weightUnit sql.NullString
	var customInstructions, nutritionGoal, phoneNumber, customerID sql.NullString
	var subscriptionEndsAt sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&p.UserID, &email, &displayName, &gender, &p.Age, &p.HeightCm, &p.WeightKg,
		&locale, &weightUnit, &p.IsPro, &customInstructions, &nutritionGoal, &p.WeightGoalKg,
		&p.PredictNutrients, &phoneNumber, &customerID, &subscriptionEndsAt,
		&p.WeeklyEmail, &p.AIUsageTokenCount, &p.IsAdmin, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile row: %w", err)
	}

	p.Email = email.String
	p.DisplayName = displayName.String
	p.Gender = gender.String
	p.Locale = locale.String
	p.WeightUnit = weightUnit.String
	p.CustomInstructions = customInstructions.String
	p.NutritionGoal = nutritionGoal.String
	p.PhoneNumber = phoneNumber.String
	p.StripeCustomerID = customerID.String
	if subscriptionEndsAt.Valid {
		ts := time.Unix(subscriptionEndsAt.Int64, 0)
		p.SubscriptionEndsAt = &ts
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)

	return &p, nil
}

// GetProfile retrieves a profile by user ID.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = ?`
	return scanProfile(s.db.QueryRowContext(ctx, query, userID))
}

// GetProfileByPhone retrieves a profile by phone number.
func (s *SQLiteStore) GetProfileByPhone(ctx context.Context, phoneNumber string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE phone_number = ?`
	return scanProfile(s.db.QueryRowContext(ctx, query, phoneNumber))
}

// UpsertProfile creates or updates a profile record.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, profile *domain.Profile) error {
	query := `
	INSERT INTO profiles (` + profileColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		email = excluded.email,
		display_name = excluded.display_name,
		gender = excluded.gender,
		age = excluded.age,
		height_cm = excluded.height_cm,
		weight_kg = excluded.weight_kg,
		locale = excluded.locale,
		weight_unit = excluded.weight_unit,
		is_pro = excluded.is_pro,
		custom_instructions = excluded.custom_instructions,
		nutrition_goal = excluded.nutrition_goal,
		weight_goal_kg = excluded.weight_goal_kg,
		predict_nutrients = excluded.predict_nutrients,
		phone_number = excluded.phone_number,
		weekly_email = excluded.weekly_email,
		is_admin = excluded.is_admin,
		updated_at = excluded.updated_at`

	var subscriptionEndsAt interface{}
	if profile.SubscriptionEndsAt != nil {
		subscriptionEndsAt = profile.SubscriptionEndsAt.Unix()
	}

	now := time.Now()
	createdAt := profile.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err := s.db.ExecContext(ctx, query,
		profile.UserID, profile.Email, profile.DisplayName, profile.Gender,
		profile.Age, profile.HeightCm, profile.WeightKg,
		profile.Locale, profile.WeightUnit, profile.IsPro,
		profile.CustomInstructions, profile.NutritionGoal, profile.WeightGoalKg,
		profile.PredictNutrients, profile.PhoneNumber, profile.StripeCustomerID,
		subscriptionEndsAt, profile.WeeklyEmail, profile.AIUsageTokenCount,
		profile.IsAdmin, createdAt.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// UpdatePreferences applies a partial preference update to a profile.
func (s *SQLiteStore) UpdatePreferences(ctx context.Context, userID string, update domain.PreferenceUpdate) error {
	if update.Empty() {
		return nil
	}

	query := `UPDATE profiles SET updated_at = ?`
	args := []interface{}{time.Now().Unix()}

	if update.Locale != nil {
		query += `, locale = ?`
		args = append(args, *update.Locale)
	}
	if update.WeightUnit != nil {
		query += `, weight_unit = ?`
		args = append(args, *update.WeightUnit)
	}
	if update.PredictNutrients != nil {
		query += `, predict_nutrients = ?`
		args = append(args, *update.PredictNutrients)
	}
	query += ` WHERE user_id = ?`
	args = append(args, userID)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("profile not found")
	}
	return nil
}

// UpdateProfileWeight sets the profile's canonical current weight in kilograms.
func (s *SQLiteStore) UpdateProfileWeight(ctx context.Context, userID string, weightKg float64) error {
	query := `UPDATE profiles SET weight_kg = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, weightKg, time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update profile weight: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("profile not found")
	}
	return nil
}

// AddTokenUsage adds tokens to the profile's running usage counter.
func (s *SQLiteStore) AddTokenUsage(ctx context.Context, userID string, tokens int64) error {
	query := `UPDATE profiles SET ai_usage_token_count = ai_usage_token_count + ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, tokens, time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("add token usage: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("AddTokenUsage affected 0 rows", "user_id", userID)
	}
	return nil
}

// SetStripeCustomerID records the Stripe customer ID on a profile.
func (s *SQLiteStore) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	query := `UPDATE profiles SET stripe_customer_id = ?, updated_at = ? WHERE user_id = ?`
	if _, err := s.db.ExecContext(ctx, query, customerID, time.Now().Unix(), userID); err != nil {
		return fmt.Errorf("set stripe customer id: %w", err)
	}
	return nil
}

// SetSubscriptionByCustomer updates subscription state for the profile owning
// the given Stripe customer ID.
func (s *SQLiteStore) SetSubscriptionByCustomer(ctx context.Context, customerID string, isPro bool, endsAt *time.Time) error {
	var ends interface{}
	if endsAt != nil {
		ends = endsAt.Unix()
	}
	query := `UPDATE profiles SET is_pro = ?, subscription_ends_at = ?, updated_at = ? WHERE stripe_customer_id = ?`
	result, err := s.db.ExecContext(ctx, query, isPro, ends, time.Now().Unix(), customerID)
	if err != nil {
		return fmt.Errorf("set subscription: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("SetSubscriptionByCustomer affected 0 rows", "customer_id", customerID)
	}
	return nil
}

// ListWeeklyEmailProfiles returns Pro profiles that opted into the weekly summary email.
func (s *SQLiteStore) ListWeeklyEmailProfiles(ctx context.Context) ([]*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE is_pro = 1 AND weekly_email = 1`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query weekly email profiles: %w", err)
	}
	defer closeRows(rows, "weekly email profiles")

	var profiles []*domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weekly email profiles: %w", err)
	}
	return profiles, nil
}

// GetUserIDByTokenHash resolves a bearer-token hash to a user ID.
func (s *SQLiteStore) GetUserIDByTokenHash(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM api_tokens WHERE token_hash = ?`, tokenHash).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("scan api token: %w", err)
	}
	return userID, nil
}

// InsertAPIToken registers a bearer-token hash for a user.
func (s *SQLiteStore) InsertAPIToken(ctx context.Context, tokenHash, userID string) error {
	query := `INSERT INTO api_tokens (token_hash, user_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(token_hash) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, tokenHash, userID, time.Now().Unix()); err != nil {
		return fmt.Errorf("insert api token: %w", err)
	}
	return nil
}

// GetOrCreateSession returns the user's workout session for the given date,
// creating it if none exists.
func (s *SQLiteStore) GetOrCreateSession(ctx context.Context, userID, sessionDate string) (*domain.WorkoutSession, error) {
	insert := `INSERT INTO workout_sessions (id, user_id, session_date, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, session_date) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, insert, uuid.NewString(), userID, sessionDate, time.Now().Unix()); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	query := `SELECT id, user_id, session_date, COALESCE(notes, ''), duration_minutes, created_at
		FROM workout_sessions WHERE user_id = ? AND session_date = ?`
	var sess domain.WorkoutSession
	var createdAt int64
	err := s.db.QueryRowContext(ctx, query, userID, sessionDate).Scan(
		&sess.ID, &sess.UserID, &sess.SessionDate, &sess.Notes, &sess.DurationMinutes, &createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	sess.CreatedAt = time.Unix(createdAt, 0)
	return &sess, nil
}

// GetOrCreateExercise returns the catalog entry matching name
// case-insensitively, creating it with the given category if absent.
func (s *SQLiteStore) GetOrCreateExercise(ctx context.Context, name, category string) (*domain.Exercise, error) {
	if category == "" {
		category = domain.DefaultExerciseCategory
	}
	insert := `INSERT INTO exercises (id, name, category, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, insert, uuid.NewString(), name, category, time.Now().Unix()); err != nil {
		return nil, fmt.Errorf("insert exercise: %w", err)
	}

	// The name column is COLLATE NOCASE, so this match is case-insensitive.
	query := `SELECT id, name, category, created_at FROM exercises WHERE name = ?`
	var ex domain.Exercise
	var createdAt int64
	err := s.db.QueryRowContext(ctx, query, name).Scan(&ex.ID, &ex.Name, &ex.Category, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("scan exercise row: %w", err)
	}
	ex.CreatedAt = time.Unix(createdAt, 0)
	return &ex, nil
}

// InsertSet records one workout set.
func (s *SQLiteStore) InsertSet(ctx context.Context, set *domain.WorkoutSet) error {
	if set.ID == "" {
		set.ID = uuid.NewString()
	}
	query := `INSERT INTO workout_sets (id, session_id, exercise_id, set_number, weight_lbs, reps, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		set.ID, set.SessionID, set.ExerciseID, set.SetNumber, set.WeightLbs, set.Reps, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert workout set: %w", err)
	}
	return nil
}

// ListSessions returns the most recent sessions with their sets.
func (s *SQLiteStore) ListSessions(ctx context.Context, userID string, limit int) ([]*domain.WorkoutSession, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT id, user_id, session_date, COALESCE(notes, ''), duration_minutes, created_at
		FROM workout_sessions WHERE user_id = ? ORDER BY session_date DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer closeRows(rows, "sessions")

	var sessions []*domain.WorkoutSession
	byID := make(map[string]*domain.WorkoutSession)
	ids := make([]interface{}, 0, limit)
	for rows.Next() {
		var sess domain.WorkoutSession
		var createdAt int64
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.SessionDate, &sess.Notes, &sess.DurationMinutes, &createdAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sess.CreatedAt = time.Unix(createdAt, 0)
		sessions = append(sessions, &sess)
		byID[sess.ID] = &sess
		ids = append(ids, sess.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	if len(sessions) == 0 {
		return sessions, nil
	}

	placeholders := "?"
	for i := 1; i < len(ids); i++ {
		placeholders += ", ?"
	}
	setQuery := `SELECT ws.id, ws.session_id, ws.exercise_id, e.name, ws.set_number, ws.weight_lbs, ws.reps, ws.created_at
		FROM workout_sets ws JOIN exercises e ON e.id = ws.exercise_id
		WHERE ws.session_id IN (` + placeholders + `) ORDER BY ws.created_at, ws.set_number`
	setRows, err := s.db.QueryContext(ctx, setQuery, ids...)
	if err != nil {
		return nil, fmt.Errorf("query workout sets: %w", err)
	}
	defer closeRows(setRows, "workout sets")

	for setRows.Next() {
		var set domain.WorkoutSet
		var createdAt int64
		if err := setRows.Scan(&set.ID, &set.SessionID, &set.ExerciseID, &set.ExerciseName,
			&set.SetNumber, &set.WeightLbs, &set.Reps, &createdAt); err != nil {
			return nil, fmt.Errorf("scan workout set row: %w", err)
		}
		set.CreatedAt = time.Unix(createdAt, 0)
		if sess, ok := byID[set.SessionID]; ok {
			sess.Sets = append(sess.Sets, &set)
		}
	}
	if err := setRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workout sets: %w", err)
	}

	return sessions, nil
}

// CountSessionsSince counts workout sessions on or after the given date.
func (s *SQLiteStore) CountSessionsSince(ctx context.Context, userID string, since string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM workout_sessions WHERE user_id = ? AND session_date >= ?`
	if err := s.db.QueryRowContext(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return count, nil
}

// InsertFoodLog records one food log entry.
func (s *SQLiteStore) InsertFoodLog(ctx context.Context, log *domain.FoodLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	query := `INSERT INTO food_logs (id, user_id, meal_date, meal_type, food_name, calories, protein_g, carbs_g, fat_g, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		log.ID, log.UserID, log.MealDate, log.MealType, log.FoodName,
		log.Calories, log.ProteinG, log.CarbsG, log.FatG, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert food log: %w", err)
	}
	return nil
}

// ListFoodLogs returns the most recent food logs ordered by date descending.
func (s *SQLiteStore) ListFoodLogs(ctx context.Context, userID string, limit int) ([]*domain.FoodLog, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, user_id, meal_date, meal_type, food_name, calories, protein_g, carbs_g, fat_g, created_at
		FROM food_logs WHERE user_id = ? ORDER BY meal_date DESC, created_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query food logs: %w", err)
	}
	defer closeRows(rows, "food logs")

	var logs []*domain.FoodLog
	for rows.Next() {
		var log domain.FoodLog
		var createdAt int64
		if err := rows.Scan(&log.ID, &log.UserID, &log.MealDate, &log.MealType, &log.FoodName,
			&log.Calories, &log.ProteinG, &log.CarbsG, &log.FatG, &createdAt); err != nil {
			return nil, fmt.Errorf("scan food log row: %w", err)
		}
		log.CreatedAt = time.Unix(createdAt, 0)
		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate food logs: %w", err)
	}
	return logs, nil
}

// FoodTotalsSince returns the calorie sum and entry count since the given date.
func (s *SQLiteStore) FoodTotalsSince(ctx context.Context, userID string, since string) (float64, int, error) {
	var total sql.NullFloat64
	var count int
	query := `SELECT COALESCE(SUM(calories), 0), COUNT(*) FROM food_logs WHERE user_id = ? AND meal_date >= ?`
	if err := s.db.QueryRowContext(ctx, query, userID, since).Scan(&total, &count); err != nil {
		return 0, 0, fmt.Errorf("sum food calories: %w", err)
	}
	return total.Float64, count, nil
}

// InsertMeasurement records one body measurement history entry.
func (s *SQLiteStore) InsertMeasurement(ctx context.Context, m *domain.BodyMeasurement) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	query := `INSERT INTO body_measurements (id, user_id, measured_at, weight_lbs, body_fat_percent)
		VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, m.ID, m.UserID, m.MeasuredAt.Unix(), m.WeightLbs, m.BodyFatPercent)
	if err != nil {
		return fmt.Errorf("insert body measurement: %w", err)
	}
	return nil
}

// ListMeasurements returns the most recent measurements, newest first.
func (s *SQLiteStore) ListMeasurements(ctx context.Context, userID string, limit int) ([]*domain.BodyMeasurement, error) {
	if limit <= 0 {
		limit = 7
	}
	query := `SELECT id, user_id, measured_at, weight_lbs, body_fat_percent
		FROM body_measurements WHERE user_id = ? ORDER BY measured_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query measurements: %w", err)
	}
	defer closeRows(rows, "measurements")

	var measurements []*domain.BodyMeasurement
	for rows.Next() {
		var m domain.BodyMeasurement
		var measuredAt int64
		if err := rows.Scan(&m.ID, &m.UserID, &measuredAt, &m.WeightLbs, &m.BodyFatPercent); err != nil {
			return nil, fmt.Errorf("scan measurement row: %w", err)
		}
		m.MeasuredAt = time.Unix(measuredAt, 0)
		measurements = append(measurements, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate measurements: %w", err)
	}
	return measurements, nil
}

// ListExercises returns the whole exercise catalog.
func (s *SQLiteStore) ListExercises(ctx context.Context) ([]*domain.Exercise, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, category, created_at FROM exercises ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query exercises: %w", err)
	}
	defer closeRows(rows, "exercises")

	var exercises []*domain.Exercise
	for rows.Next() {
		var ex domain.Exercise
		var createdAt int64
		if err := rows.Scan(&ex.ID, &ex.Name, &ex.Category, &createdAt); err != nil {
			return nil, fmt.Errorf("scan exercise row: %w", err)
		}
		ex.CreatedAt = time.Unix(createdAt, 0)
		exercises = append(exercises, &ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exercises: %w", err)
	}
	return exercises, nil
}

// UpdateExerciseCategory sets the category of one exercise.
func (s *SQLiteStore) UpdateExerciseCategory(ctx context.Context, exerciseID, category string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE exercises SET category = ? WHERE id = ?`, category, exerciseID)
	if err != nil {
		return fmt.Errorf("update exercise category: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("exercise not found")
	}
	return nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "what", what, "error", err)
	}
}
