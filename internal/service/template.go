package service

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/flexfitness/flex-cli/internal/model"
)

type WorkoutTemplateInput struct {
	Name        string
	Description string
	Trainer     string
}

type TemplateExerciseInput struct {
	TemplateID      int64
	ExerciseName    string
	Sets            int
	Reps            int
	CatalogSourceID string
}

func CreateWorkoutTemplate(db *sql.DB, in WorkoutTemplateInput) (int64, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return 0, invalidf("template name is required")
	}
	res, err := db.Exec(`INSERT INTO workout_templates(name, description, trainer) VALUES(?, ?, ?)`, in.Name, strings.TrimSpace(in.Description), normalizeName(in.Trainer))
	if err != nil {
		return 0, fmt.Errorf("create workout template: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("resolve workout template id: %w", err)
	}
	return id, nil
}

func ListWorkoutTemplates(db *sql.DB, trainer string) ([]model.WorkoutTemplate, error) {
	query := `SELECT id, name, description, trainer, created_at FROM workout_templates`
	args := make([]any, 0, 1)
	if t := normalizeName(trainer); t != "" {
		query += ` WHERE trainer = ?`
		args = append(args, t)
	}
	query += ` ORDER BY name ASC, id ASC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list workout templates: %w", err)
	}
	defer rows.Close()
	items := make([]model.WorkoutTemplate, 0)
	for rows.Next() {
		var wt model.WorkoutTemplate
		var createdRaw string
		if err := rows.Scan(&wt.ID, &wt.Name, &wt.Description, &wt.Trainer, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan workout template: %w", err)
		}
		wt.CreatedAt = parseTimestamp(createdRaw)
		items = append(items, wt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workout templates: %w", err)
	}
	return items, nil
}

func GetWorkoutTemplate(db *sql.DB, id int64) (model.WorkoutTemplate, error) {
	if id <= 0 {
		return model.WorkoutTemplate{}, invalidf("template id must be > 0")
	}
	var wt model.WorkoutTemplate
	var createdRaw string
	err := db.QueryRow(`SELECT id, name, description, trainer, created_at FROM workout_templates WHERE id = ?`, id).Scan(&wt.ID, &wt.Name, &wt.Description, &wt.Trainer, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.WorkoutTemplate{}, fmt.Errorf("workout template %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.WorkoutTemplate{}, fmt.Errorf("get workout template %d: %w", id, err)
	}
	wt.CreatedAt = parseTimestamp(createdRaw)

	rows, err := db.Query(`
SELECT id, template_id, position, exercise_name, sets, reps, IFNULL(catalog_source_id, '')
FROM template_exercises
WHERE template_id = ?
ORDER BY position ASC, id ASC
`, id)
	if err != nil {
		return model.WorkoutTemplate{}, fmt.Errorf("list template exercises: %w", err)
	}
	defer rows.Close()
	wt.Exercises = make([]model.TemplateExercise, 0)
	for rows.Next() {
		var ex model.TemplateExercise
		if err := rows.Scan(&ex.ID, &ex.TemplateID, &ex.Position, &ex.ExerciseName, &ex.Sets, &ex.Reps, &ex.CatalogSourceID); err != nil {
			return model.WorkoutTemplate{}, fmt.Errorf("scan template exercise: %w", err)
		}
		wt.Exercises = append(wt.Exercises, ex)
	}
	if err := rows.Err(); err != nil {
		return model.WorkoutTemplate{}, fmt.Errorf("iterate template exercises: %w", err)
	}
	return wt, nil
}

func DeleteWorkoutTemplate(db *sql.DB, id int64) error {
	if id <= 0 {
		return invalidf("template id must be > 0")
	}
	res, err := db.Exec(`DELETE FROM workout_templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete workout template %d: %w", id, err)
	}
	return affectedOrNotFound(res, "workout template", id)
}

// AddTemplateExercise appends an exercise to the end of a template. When a
// catalog source id is given it must exist and supplies the default name.
func AddTemplateExercise(db *sql.DB, in TemplateExerciseInput) (int64, error) {
	if in.Sets <= 0 {
		return 0, invalidf("sets must be > 0")
	}
	if in.Reps <= 0 {
		return 0, invalidf("reps must be > 0")
	}
	if _, err := GetWorkoutTemplate(db, in.TemplateID); err != nil {
		return 0, err
	}
	in.ExerciseName = strings.TrimSpace(in.ExerciseName)
	in.CatalogSourceID = strings.TrimSpace(in.CatalogSourceID)
	if in.CatalogSourceID != "" {
		ex, err := GetCatalogExercise(db, in.CatalogSourceID)
		if err != nil {
			return 0, err
		}
		if in.ExerciseName == "" {
			in.ExerciseName = ex.Name
		}
	}
	if in.ExerciseName == "" {
		return 0, invalidf("exercise name is required")
	}

	var next int
	if err := db.QueryRow(`SELECT IFNULL(MAX(position), 0) + 1 FROM template_exercises WHERE template_id = ?`, in.TemplateID).Scan(&next); err != nil {
		return 0, fmt.Errorf("resolve next template position: %w", err)
	}
	res, err := db.Exec(`
INSERT INTO template_exercises(template_id, position, exercise_name, sets, reps, catalog_source_id)
VALUES(?, ?, ?, ?, ?, ?)
`, in.TemplateID, next, in.ExerciseName, in.Sets, in.Reps, nullableString(in.CatalogSourceID))
	if err != nil {
		return 0, fmt.Errorf("add template exercise: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("resolve template exercise id: %w", err)
	}
	return id, nil
}

func AssignTemplate(db *sql.DB, clientID, templateID int64) (int64, error) {
	client, err := GetClient(db, clientID)
	if err != nil {
		return 0, err
	}
	tmpl, err := GetWorkoutTemplate(db, templateID)
	if err != nil {
		return 0, err
	}
	if client.Trainer != "" && tmpl.Trainer != "" && client.Trainer != tmpl.Trainer {
		return 0, invalidf("template %d belongs to trainer %q, client %d to %q", templateID, tmpl.Trainer, clientID, client.Trainer)
	}

	var exists int
	err = db.QueryRow(`SELECT 1 FROM client_workouts WHERE client_id = ? AND template_id = ?`, clientID, templateID).Scan(&exists)
	if err == nil {
		return 0, invalidf("this client already has this template assigned")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("check existing assignment: %w", err)
	}

	res, err := db.Exec(`INSERT INTO client_workouts(client_id, template_id) VALUES(?, ?)`, clientID, templateID)
	if err != nil {
		return 0, fmt.Errorf("assign template %d to client %d: %w", templateID, clientID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("resolve assignment id: %w", err)
	}
	return id, nil
}

func UnassignTemplate(db *sql.DB, clientID, templateID int64) error {
	res, err := db.Exec(`DELETE FROM client_workouts WHERE client_id = ? AND template_id = ?`, clientID, templateID)
	if err != nil {
		return fmt.Errorf("unassign template %d from client %d: %w", templateID, clientID, err)
	}
	return affectedOrNotFound(res, "assignment", fmt.Sprintf("%d/%d", clientID, templateID))
}

func ListAssignments(db *sql.DB, clientID int64) ([]model.ClientWorkout, error) {
	rows, err := db.Query(`
SELECT cw.id, cw.client_id, cw.template_id, t.name, cw.assigned_at
FROM client_workouts cw
JOIN workout_templates t ON t.id = cw.template_id
WHERE cw.client_id = ?
ORDER BY cw.assigned_at ASC, cw.id ASC
`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list assignments for client %d: %w", clientID, err)
	}
	defer rows.Close()
	items := make([]model.ClientWorkout, 0)
	for rows.Next() {
		var cw model.ClientWorkout
		var assignedRaw string
		if err := rows.Scan(&cw.ID, &cw.ClientID, &cw.TemplateID, &cw.TemplateName, &assignedRaw); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		cw.AssignedAt = parseTimestamp(assignedRaw)
		items = append(items, cw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return items, nil
}
