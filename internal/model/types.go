package model

import "time"

// Food is a nutrient reference row. Nutrient values are per ServingSize of
// ServingUnit; nil means the value was never recorded.
type Food struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Calories    *float64  `json:"calories,omitempty"`
	ProteinG    *float64  `json:"protein_g,omitempty"`
	CarbsG      *float64  `json:"carbs_g,omitempty"`
	FatsG       *float64  `json:"fats_g,omitempty"`
	ServingSize *float64  `json:"serving_size,omitempty"`
	ServingUnit string    `json:"serving_unit"`
	SourceID    string    `json:"source_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type FoodMeasure struct {
	ID     int64   `json:"id"`
	FoodID int64   `json:"food_id"`
	Name   string  `json:"name"`
	Grams  float64 `json:"grams"`
}

type FoodLog struct {
	ID        int64     `json:"id"`
	FoodID    int64     `json:"food_id"`
	FoodName  string    `json:"food_name"`
	ClientID  *int64    `json:"client_id,omitempty"`
	Quantity  float64   `json:"quantity"`
	Unit      string    `json:"unit"`
	LogDate   string    `json:"log_date"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Gender    string    `json:"gender"`
	Trainer   string    `json:"trainer"`
	CreatedAt time.Time `json:"created_at"`
}

// CatalogExercise is the local copy of one upstream exercise record, keyed by
// SourceID. Optional text fields are nil when absent upstream.
type CatalogExercise struct {
	ID                  int64     `json:"id"`
	SourceID            string    `json:"source_id"`
	Name                string    `json:"name"`
	Force               *string   `json:"force,omitempty"`
	Level               *string   `json:"level,omitempty"`
	Mechanic            *string   `json:"mechanic,omitempty"`
	Equipment           *string   `json:"equipment,omitempty"`
	Category            *string   `json:"category,omitempty"`
	PrimaryMuscles      *string   `json:"primary_muscles,omitempty"`
	SecondaryMuscles    *string   `json:"secondary_muscles,omitempty"`
	Instructions        *string   `json:"instructions,omitempty"`
	ImageMain           *string   `json:"image_main,omitempty"`
	ImageSecondary      *string   `json:"image_secondary,omitempty"`
	LocalImageMain      *string   `json:"local_image_main,omitempty"`
	LocalImageSecondary *string   `json:"local_image_secondary,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type CatalogSyncRun struct {
	ID               string    `json:"id"`
	Status           string    `json:"status"`
	Created          int       `json:"created"`
	Updated          int       `json:"updated"`
	Deleted          int       `json:"deleted"`
	Skipped          int       `json:"skipped"`
	ImagesDownloaded int       `json:"images_downloaded"`
	ImagesFailed     int       `json:"images_failed"`
	Error            string    `json:"error,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

type WorkoutTemplate struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Trainer     string             `json:"trainer"`
	Exercises   []TemplateExercise `json:"exercises,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

type TemplateExercise struct {
	ID              int64  `json:"id"`
	TemplateID      int64  `json:"template_id"`
	Position        int    `json:"position"`
	ExerciseName    string `json:"exercise_name"`
	Sets            int    `json:"sets"`
	Reps            int    `json:"reps"`
	CatalogSourceID string `json:"catalog_source_id"`
}

type ClientWorkout struct {
	ID           int64     `json:"id"`
	ClientID     int64     `json:"client_id"`
	TemplateID   int64     `json:"template_id"`
	TemplateName string    `json:"template_name"`
	AssignedAt   time.Time `json:"assigned_at"`
}

type ProgressEntry struct {
	ID         int64   `json:"id"`
	ClientID   int64   `json:"client_id"`
	RecordedOn string  `json:"recorded_on"`
	WeightKg   float64 `json:"weight_kg"`
	Notes      string  `json:"notes,omitempty"`
}
