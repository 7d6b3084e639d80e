package models

import "time"

// PersonalRecord is the heaviest completed working set ever logged for an exercise.
type PersonalRecord struct {
	ID           string    `json:"id,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	ExerciseName string    `json:"exercise_name"`
	Weight       float64   `json:"weight"`
	Reps         int       `json:"reps"`
	Date         time.Time `json:"date"`
}

// UserAchievement marks an achievement of the catalog as unlocked.
type UserAchievement struct {
	ID            string    `json:"id,omitempty"`
	UserID        string    `json:"user_id,omitempty"`
	AchievementID string    `json:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

// BodyMeasurement is one dated set of anthropometric readings.
type BodyMeasurement struct {
	ID         string    `json:"id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Date       time.Time `json:"date"`
	WeightKg   *float64  `json:"weight_kg"`
	BodyFatPct *float64  `json:"body_fat_pct"`
	WaistCm    *float64  `json:"waist_cm"`
	ChestCm    *float64  `json:"chest_cm"`
	ArmCm      *float64  `json:"arm_cm"`
	ThighCm    *float64  `json:"thigh_cm"`
}

// Profile holds per-user training defaults.
type Profile struct {
	UserID             string    `json:"user_id,omitempty"`
	DisplayName        string    `json:"display_name"`
	BodyweightKg       float64   `json:"bodyweight_kg"`
	DefaultRestSeconds *int      `json:"default_rest_seconds"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NotificationKind distinguishes what a finish notification is about.
type NotificationKind string

const (
	NotificationPersonalRecord NotificationKind = "personal_record"
	NotificationAchievement    NotificationKind = "achievement"
)

// Notification is the single message surfaced after finishing a workout.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
}

// ImportStatus is the lifecycle state of an import.
type ImportStatus string

const (
	ImportRunning ImportStatus = "running"
	ImportSuccess ImportStatus = "success"
	ImportError   ImportStatus = "error"
)

// ImportLog is the journal entry of one history import.
type ImportLog struct {
	ID               string       `json:"id,omitempty"`
	UserID           string       `json:"user_id,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	Source           string       `json:"source"`
	Status           ImportStatus `json:"status"`
	SessionsReceived int          `json:"sessions_received"`
	SessionsInserted int          `json:"sessions_inserted"`
	SessionsReplaced int          `json:"sessions_replaced"`
	SetsReceived     int          `json:"sets_received"`
	DurationMs       *int         `json:"duration_ms"`
	ErrorMessage     *string      `json:"error_message"`
}
