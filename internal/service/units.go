package service

import (
	"database/sql"
	"math"
	"strings"

	"github.com/flexfitness/flex-cli/internal/model"
)

const (
	defaultLogUnit      = "g"
	defaultServingGrams = 100.0
)

// UnitTable maps a lowercased unit name to grams per unit. It is the generic
// fallback used when a food has no measure of its own.
type UnitTable map[string]float64

// DefaultUnitTable returns a fresh copy of the built-in unit table.
func DefaultUnitTable() UnitTable {
	return UnitTable{
		"g":    1,
		"kg":   1000,
		"oz":   28.35,
		"lb":   453.592,
		"tsp":  4.2,
		"tbsp": 14.3,
		"cup":  240,
	}
}

// Merge returns a copy of t with overrides applied. Override keys are
// normalized the same way lookups are.
func (t UnitTable) Merge(overrides map[string]float64) UnitTable {
	out := UnitTable{}
	for k, v := range t {
		out[k] = v
	}
	for k, v := range overrides {
		out[normalizeUnit(k)] = v
	}
	return out
}

func (t UnitTable) Validate() error {
	for k, v := range t {
		if strings.TrimSpace(k) == "" {
			return invalidf("unit name is required")
		}
		if v <= 0 {
			return invalidf("unit %q grams must be > 0", k)
		}
	}
	return nil
}

// MeasureLookup resolves a food-specific measure (e.g. one "slice" of a given
// bread) to grams.
type MeasureLookup interface {
	LookupMeasure(foodID int64, unit string) (float64, bool)
}

type MeasureLookupFunc func(foodID int64, unit string) (float64, bool)

func (f MeasureLookupFunc) LookupMeasure(foodID int64, unit string) (float64, bool) {
	return f(foodID, unit)
}

type measureKey struct {
	foodID int64
	unit   string
}

// MeasureMap is an in-memory MeasureLookup, mostly for preloaded batches.
type MeasureMap map[measureKey]float64

func NewMeasureMap(measures []model.FoodMeasure) MeasureMap {
	m := MeasureMap{}
	for _, fm := range measures {
		m[measureKey{foodID: fm.FoodID, unit: normalizeUnit(fm.Name)}] = fm.Grams
	}
	return m
}

func (m MeasureMap) LookupMeasure(foodID int64, unit string) (float64, bool) {
	g, ok := m[measureKey{foodID: foodID, unit: normalizeUnit(unit)}]
	return g, ok
}

type sqlMeasureLookup struct {
	db *sql.DB
}

// NewMeasureLookup returns a MeasureLookup backed by the food_measures table.
// Query errors are treated as a missing measure.
func NewMeasureLookup(db *sql.DB) MeasureLookup {
	return &sqlMeasureLookup{db: db}
}

func (l *sqlMeasureLookup) LookupMeasure(foodID int64, unit string) (float64, bool) {
	var grams float64
	err := l.db.QueryRow(`SELECT grams FROM food_measures WHERE food_id = ? AND name = ?`, foodID, normalizeUnit(unit)).Scan(&grams)
	if err != nil {
		return 0, false
	}
	return grams, true
}

type UnitSource string

const (
	UnitSourceMeasure UnitSource = "measure"
	UnitSourceTable   UnitSource = "table"
	// UnitSourceAssumed means the unit was unknown and treated as grams.
	UnitSourceAssumed UnitSource = "assumed"
)

type ScaledNutrition struct {
	Calories     float64    `json:"calories"`
	Protein      float64    `json:"protein"`
	Carbs        float64    `json:"carbs"`
	Fats         float64    `json:"fats"`
	Unit         string     `json:"unit"`
	GramsPerUnit float64    `json:"grams_per_unit"`
	UnitSource   UnitSource `json:"unit_source"`
}

type ScaleEntry struct {
	Quantity float64
	Unit     string
}

// ComputeScaledNutrition scales a food's reference nutrients to the logged
// quantity. It never fails: missing nutrients count as zero, a zero serving
// size counts as 100 and an unknown unit counts as grams (reported through
// UnitSource).
func ComputeScaledNutrition(entry ScaleEntry, food model.Food, lookup MeasureLookup, table UnitTable) ScaledNutrition {
	if table == nil {
		table = DefaultUnitTable()
	}
	unit := normalizeUnit(entry.Unit)
	if unit == "" {
		unit = defaultLogUnit
	}

	gramsPerUnit, source := resolveGramsPerUnit(food.ID, unit, lookup, table)
	quantityGrams := entry.Quantity * gramsPerUnit

	servingGrams := defaultServingGrams
	if food.ServingSize != nil && *food.ServingSize != 0 {
		servingGrams = *food.ServingSize
	}
	factor := quantityGrams / servingGrams

	return ScaledNutrition{
		Calories:     round1(valueOrZero(food.Calories) * factor),
		Protein:      round1(valueOrZero(food.ProteinG) * factor),
		Carbs:        round1(valueOrZero(food.CarbsG) * factor),
		Fats:         round1(valueOrZero(food.FatsG) * factor),
		Unit:         unit,
		GramsPerUnit: gramsPerUnit,
		UnitSource:   source,
	}
}

func resolveGramsPerUnit(foodID int64, unit string, lookup MeasureLookup, table UnitTable) (float64, UnitSource) {
	if lookup != nil {
		if g, ok := lookup.LookupMeasure(foodID, unit); ok {
			return g, UnitSourceMeasure
		}
	}
	if g, ok := table[unit]; ok {
		return g, UnitSourceTable
	}
	return 1, UnitSourceAssumed
}

func normalizeUnit(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
