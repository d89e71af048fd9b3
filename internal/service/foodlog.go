package service

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/flexfitness/flex-cli/internal/model"
)

type FoodLogInput struct {
	FoodID   int64
	ClientID *int64
	Quantity float64
	Unit     string
	LogDate  string
	Notes    string
}

type ListFoodLogsFilter struct {
	Date     string
	FromDate string
	ToDate   string
	ClientID *int64
	Limit    int
}

// FoodLogView is a log entry with its nutrition computed at read time.
type FoodLogView struct {
	model.FoodLog
	Nutrition ScaledNutrition `json:"nutrition"`
}

type DailyNutrition struct {
	Date     string  `json:"date"`
	Entries  int     `json:"entries"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fats     float64 `json:"fats"`
	// AssumedUnits counts entries whose unit was unknown and scaled as grams.
	AssumedUnits int `json:"assumed_units"`
}

func AddFoodLog(db *sql.DB, in FoodLogInput) (int64, error) {
	if in.Quantity <= 0 {
		return 0, invalidf("quantity must be > 0")
	}
	if _, err := GetFood(db, in.FoodID); err != nil {
		return 0, err
	}
	if in.ClientID != nil {
		if _, err := GetClient(db, *in.ClientID); err != nil {
			return 0, err
		}
	}
	unit := normalizeUnit(in.Unit)
	if unit == "" {
		unit = defaultLogUnit
	}
	date, err := normalizeDate(in.LogDate)
	if err != nil {
		return 0, err
	}
	res, err := db.Exec(`
INSERT INTO food_logs(food_id, client_id, quantity, unit, log_date, notes)
VALUES(?, ?, ?, ?, ?, ?)
`, in.FoodID, in.ClientID, in.Quantity, unit, date, strings.TrimSpace(in.Notes))
	if err != nil {
		return 0, fmt.Errorf("add food log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("resolve food log id: %w", err)
	}
	return id, nil
}

func ListFoodLogs(db *sql.DB, f ListFoodLogsFilter, table UnitTable) ([]FoodLogView, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	return queryFoodLogs(db, f, table)
}

// queryFoodLogs applies f.Limit only when it is positive.
func queryFoodLogs(db *sql.DB, f ListFoodLogsFilter, table UnitTable) ([]FoodLogView, error) {
	if strings.TrimSpace(f.Date) != "" && (strings.TrimSpace(f.FromDate) != "" || strings.TrimSpace(f.ToDate) != "") {
		return nil, invalidf("--date cannot be combined with --from or --to")
	}

	query := `
SELECT l.id, l.food_id, l.client_id, l.quantity, l.unit, l.log_date, IFNULL(l.notes, ''), l.created_at,
  f.id, f.name, f.calories, f.protein_g, f.carbs_g, f.fats_g, f.serving_size, f.serving_unit, IFNULL(f.source_id, ''), f.created_at, f.updated_at
FROM food_logs l
JOIN foods f ON f.id = l.food_id
WHERE 1=1`
	args := make([]any, 0)
	if strings.TrimSpace(f.Date) != "" {
		date, err := normalizeDate(f.Date)
		if err != nil {
			return nil, err
		}
		query += ` AND l.log_date = ?`
		args = append(args, date)
	}
	if strings.TrimSpace(f.FromDate) != "" {
		from, err := normalizeDate(f.FromDate)
		if err != nil {
			return nil, err
		}
		query += ` AND l.log_date >= ?`
		args = append(args, from)
	}
	if strings.TrimSpace(f.ToDate) != "" {
		to, err := normalizeDate(f.ToDate)
		if err != nil {
			return nil, err
		}
		query += ` AND l.log_date <= ?`
		args = append(args, to)
	}
	if f.ClientID != nil {
		query += ` AND l.client_id = ?`
		args = append(args, *f.ClientID)
	}
	query += ` ORDER BY l.log_date DESC, l.id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list food logs: %w", err)
	}
	defer rows.Close()

	type pending struct {
		log  model.FoodLog
		food model.Food
	}
	loaded := make([]pending, 0)
	for rows.Next() {
		var (
			p                                   pending
			clientID                            sql.NullInt64
			createdRaw                          string
			calories, protein, carbs, fats, srv sql.NullFloat64
			foodCreated, foodUpdated            string
		)
		if err := rows.Scan(&p.log.ID, &p.log.FoodID, &clientID, &p.log.Quantity, &p.log.Unit, &p.log.LogDate, &p.log.Notes, &createdRaw,
			&p.food.ID, &p.food.Name, &calories, &protein, &carbs, &fats, &srv, &p.food.ServingUnit, &p.food.SourceID, &foodCreated, &foodUpdated); err != nil {
			return nil, fmt.Errorf("scan food log: %w", err)
		}
		if clientID.Valid {
			v := clientID.Int64
			p.log.ClientID = &v
		}
		p.log.CreatedAt = parseTimestamp(createdRaw)
		p.log.FoodName = p.food.Name
		p.food.Calories = nullFloatPtr(calories)
		p.food.ProteinG = nullFloatPtr(protein)
		p.food.CarbsG = nullFloatPtr(carbs)
		p.food.FatsG = nullFloatPtr(fats)
		p.food.ServingSize = nullFloatPtr(srv)
		loaded = append(loaded, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate food logs: %w", err)
	}
	// Rows must be closed before measure lookups; the pool holds one connection.
	rows.Close()

	measures, err := loadMeasuresForFoods(db, loaded, func(p pending) int64 { return p.food.ID })
	if err != nil {
		return nil, err
	}
	items := make([]FoodLogView, 0, len(loaded))
	for _, p := range loaded {
		items = append(items, FoodLogView{
			FoodLog:   p.log,
			Nutrition: ComputeScaledNutrition(ScaleEntry{Quantity: p.log.Quantity, Unit: p.log.Unit}, p.food, measures, table),
		})
	}
	return items, nil
}

func DeleteFoodLog(db *sql.DB, id int64) error {
	if id <= 0 {
		return invalidf("food log id must be > 0")
	}
	res, err := db.Exec(`DELETE FROM food_logs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete food log %d: %w", id, err)
	}
	return affectedOrNotFound(res, "food log", id)
}

func DailyNutritionTotals(db *sql.DB, date string, clientID *int64, table UnitTable) (DailyNutrition, error) {
	day, err := normalizeDate(date)
	if err != nil {
		return DailyNutrition{}, err
	}
	items, err := queryFoodLogs(db, ListFoodLogsFilter{Date: day, ClientID: clientID}, table)
	if err != nil {
		return DailyNutrition{}, err
	}
	out := DailyNutrition{Date: day, Entries: len(items)}
	for _, it := range items {
		out.Calories += it.Nutrition.Calories
		out.Protein += it.Nutrition.Protein
		out.Carbs += it.Nutrition.Carbs
		out.Fats += it.Nutrition.Fats
		if it.Nutrition.UnitSource == UnitSourceAssumed {
			out.AssumedUnits++
		}
	}
	out.Calories = round1(out.Calories)
	out.Protein = round1(out.Protein)
	out.Carbs = round1(out.Carbs)
	out.Fats = round1(out.Fats)
	return out, nil
}

func loadMeasuresForFoods[T any](db *sql.DB, items []T, foodID func(T) int64) (MeasureMap, error) {
	seen := map[int64]bool{}
	all := make([]model.FoodMeasure, 0)
	for _, it := range items {
		id := foodID(it)
		if seen[id] {
			continue
		}
		seen[id] = true
		measures, err := ListFoodMeasures(db, id)
		if err != nil {
			return nil, err
		}
		all = append(all, measures...)
	}
	return NewMeasureMap(all), nil
}
