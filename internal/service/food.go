package service

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/flexfitness/flex-cli/internal/model"
)

type FoodInput struct {
	Name        string
	Calories    *float64
	ProteinG    *float64
	CarbsG      *float64
	FatsG       *float64
	ServingSize *float64
	ServingUnit string
	SourceID    string
}

type UpdateFoodInput struct {
	ID int64
	FoodInput
}

type ListFoodsFilter struct {
	Query string
	Limit int
}

const foodColumns = `id, name, calories, protein_g, carbs_g, fats_g, serving_size, serving_unit, IFNULL(source_id, ''), created_at, updated_at`

func AddFood(db *sql.DB, in FoodInput) (int64, error) {
	normalized, err := normalizeFoodInput(in)
	if err != nil {
		return 0, err
	}
	res, err := db.Exec(`
INSERT INTO foods(name, calories, protein_g, carbs_g, fats_g, serving_size, serving_unit, source_id)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)
`, normalized.Name, normalized.Calories, normalized.ProteinG, normalized.CarbsG, normalized.FatsG, normalized.ServingSize, normalized.ServingUnit, nullableString(normalized.SourceID))
	if err != nil {
		return 0, fmt.Errorf("add food: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("resolve food id: %w", err)
	}
	return id, nil
}

func GetFood(db *sql.DB, id int64) (model.Food, error) {
	if id <= 0 {
		return model.Food{}, invalidf("food id must be > 0")
	}
	row := db.QueryRow(`SELECT `+foodColumns+` FROM foods WHERE id = ?`, id)
	food, err := scanFood(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Food{}, fmt.Errorf("food %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Food{}, fmt.Errorf("get food %d: %w", id, err)
	}
	return food, nil
}

func ListFoods(db *sql.DB, f ListFoodsFilter) ([]model.Food, error) {
	query := `SELECT ` + foodColumns + ` FROM foods WHERE 1=1`
	args := make([]any, 0)
	if q := strings.TrimSpace(f.Query); q != "" {
		query += ` AND LOWER(name) LIKE ?`
		args = append(args, "%"+strings.ToLower(q)+"%")
	}
	query += ` ORDER BY name ASC, id ASC`
	if f.Limit <= 0 {
		f.Limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, f.Limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list foods: %w", err)
	}
	defer rows.Close()

	items := make([]model.Food, 0)
	for rows.Next() {
		food, err := scanFood(rows)
		if err != nil {
			return nil, fmt.Errorf("scan food: %w", err)
		}
		items = append(items, food)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foods: %w", err)
	}
	return items, nil
}

func UpdateFood(db *sql.DB, in UpdateFoodInput) error {
	if in.ID <= 0 {
		return invalidf("food id must be > 0")
	}
	normalized, err := normalizeFoodInput(in.FoodInput)
	if err != nil {
		return err
	}
	res, err := db.Exec(`
UPDATE foods
SET name = ?, calories = ?, protein_g = ?, carbs_g = ?, fats_g = ?, serving_size = ?, serving_unit = ?, source_id = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`, normalized.Name, normalized.Calories, normalized.ProteinG, normalized.CarbsG, normalized.FatsG, normalized.ServingSize, normalized.ServingUnit, nullableString(normalized.SourceID), in.ID)
	if err != nil {
		return fmt.Errorf("update food %d: %w", in.ID, err)
	}
	return affectedOrNotFound(res, "food", in.ID)
}

func DeleteFood(db *sql.DB, id int64) error {
	if id <= 0 {
		return invalidf("food id must be > 0")
	}
	var logs int
	if err := db.QueryRow(`SELECT COUNT(1) FROM food_logs WHERE food_id = ?`, id).Scan(&logs); err != nil {
		return fmt.Errorf("count food logs for food %d: %w", id, err)
	}
	if logs > 0 {
		return invalidf("food %d is referenced by %d log entries; delete those first", id, logs)
	}
	res, err := db.Exec(`DELETE FROM foods WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete food %d: %w", id, err)
	}
	return affectedOrNotFound(res, "food", id)
}

func SetFoodMeasure(db *sql.DB, foodID int64, name string, grams float64) error {
	name = normalizeUnit(name)
	if name == "" {
		return invalidf("measure name is required")
	}
	if grams <= 0 {
		return invalidf("measure grams must be > 0")
	}
	if _, err := GetFood(db, foodID); err != nil {
		return err
	}
	_, err := db.Exec(`
INSERT INTO food_measures(food_id, name, grams)
VALUES(?, ?, ?)
ON CONFLICT(food_id, name) DO UPDATE SET grams = excluded.grams, updated_at = CURRENT_TIMESTAMP
`, foodID, name, grams)
	if err != nil {
		return fmt.Errorf("set measure %q for food %d: %w", name, foodID, err)
	}
	return nil
}

func ListFoodMeasures(db *sql.DB, foodID int64) ([]model.FoodMeasure, error) {
	rows, err := db.Query(`SELECT id, food_id, name, grams FROM food_measures WHERE food_id = ? ORDER BY name ASC`, foodID)
	if err != nil {
		return nil, fmt.Errorf("list measures for food %d: %w", foodID, err)
	}
	defer rows.Close()

	items := make([]model.FoodMeasure, 0)
	for rows.Next() {
		var m model.FoodMeasure
		if err := rows.Scan(&m.ID, &m.FoodID, &m.Name, &m.Grams); err != nil {
			return nil, fmt.Errorf("scan food measure: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate food measures: %w", err)
	}
	return items, nil
}

func DeleteFoodMeasure(db *sql.DB, foodID int64, name string) error {
	name = normalizeUnit(name)
	res, err := db.Exec(`DELETE FROM food_measures WHERE food_id = ? AND name = ?`, foodID, name)
	if err != nil {
		return fmt.Errorf("delete measure %q for food %d: %w", name, foodID, err)
	}
	return affectedOrNotFound(res, "measure", name)
}

func normalizeFoodInput(in FoodInput) (FoodInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return FoodInput{}, invalidf("food name is required")
	}
	checks := []struct {
		name  string
		value *float64
	}{
		{"calories", in.Calories},
		{"protein", in.ProteinG},
		{"carbs", in.CarbsG},
		{"fats", in.FatsG},
		{"serving size", in.ServingSize},
	}
	for _, c := range checks {
		if err := validateOptionalNonNegative(c.name, c.value); err != nil {
			return FoodInput{}, err
		}
	}
	in.ServingUnit = normalizeUnit(in.ServingUnit)
	if in.ServingUnit == "" {
		in.ServingUnit = defaultLogUnit
	}
	in.SourceID = strings.TrimSpace(in.SourceID)
	return in, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFood(s rowScanner) (model.Food, error) {
	var (
		food                                model.Food
		calories, protein, carbs, fats, srv sql.NullFloat64
		createdRaw, updatedRaw              string
	)
	if err := s.Scan(&food.ID, &food.Name, &calories, &protein, &carbs, &fats, &srv, &food.ServingUnit, &food.SourceID, &createdRaw, &updatedRaw); err != nil {
		return model.Food{}, err
	}
	food.Calories = nullFloatPtr(calories)
	food.ProteinG = nullFloatPtr(protein)
	food.CarbsG = nullFloatPtr(carbs)
	food.FatsG = nullFloatPtr(fats)
	food.ServingSize = nullFloatPtr(srv)
	food.CreatedAt = parseTimestamp(createdRaw)
	food.UpdatedAt = parseTimestamp(updatedRaw)
	return food, nil
}
