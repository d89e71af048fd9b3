package service_test

import (
	"math"
	"testing"

	"github.com/flexfitness/flex-cli/internal/model"
	"github.com/flexfitness/flex-cli/internal/service"
)

func referenceFood() model.Food {
	return model.Food{
		ID:          7,
		Name:        "Oats",
		Calories:    floatPtr(200),
		ProteinG:    floatPtr(10),
		CarbsG:      floatPtr(30),
		FatsG:       floatPtr(5),
		ServingSize: floatPtr(100),
		ServingUnit: "g",
	}
}

func TestComputeScaledNutritionGrams(t *testing.T) {
	t.Parallel()
	got := service.ComputeScaledNutrition(service.ScaleEntry{Quantity: 150, Unit: "g"}, referenceFood(), nil, nil)
	if got.Calories != 300 || got.Protein != 15 || got.Carbs != 45 || got.Fats != 7.5 {
		t.Fatalf("unexpected scaled nutrition: %+v", got)
	}
	if got.UnitSource != service.UnitSourceTable {
		t.Fatalf("expected table unit source, got %s", got.UnitSource)
	}
}

func TestComputeScaledNutritionGenericCup(t *testing.T) {
	t.Parallel()
	got := service.ComputeScaledNutrition(service.ScaleEntry{Quantity: 1, Unit: "cup"}, referenceFood(), nil, nil)
	if got.Calories != 480 || got.Protein != 24 || got.Carbs != 72 || got.Fats != 12 {
		t.Fatalf("unexpected scaled nutrition: %+v", got)
	}
	if got.GramsPerUnit != 240 {
		t.Fatalf("expected 240 grams per cup, got %.2f", got.GramsPerUnit)
	}
}

func TestComputeScaledNutritionFoodMeasureOverridesTable(t *testing.T) {
	t.Parallel()
	lookup := service.NewMeasureMap([]model.FoodMeasure{{FoodID: 7, Name: "Cup", Grams: 80}})
	got := service.ComputeScaledNutrition(service.ScaleEntry{Quantity: 1, Unit: "CUP"}, referenceFood(), lookup, nil)
	if got.UnitSource != service.UnitSourceMeasure {
		t.Fatalf("expected measure unit source, got %s", got.UnitSource)
	}
	if got.Calories != 160 || got.Protein != 8 {
		t.Fatalf("expected measure-based scaling, got %+v", got)
	}

	other := referenceFood()
	other.ID = 8
	got = service.ComputeScaledNutrition(service.ScaleEntry{Quantity: 1, Unit: "cup"}, other, lookup, nil)
	if got.GramsPerUnit != 240 {
		t.Fatalf("measure for food 7 must not apply to food 8, got %.2f g/unit", got.GramsPerUnit)
	}
}

func TestComputeScaledNutritionLinearInQuantity(t *testing.T) {
	t.Parallel()
	food := referenceFood()
	for _, unit := range []string{"g", "kg", "oz", "lb", "tsp", "tbsp", "cup"} {
		single := service.ComputeScaledNutrition(service.ScaleEntry{Quantity: 3, Unit: unit}, food, nil, nil)
		double := service.ComputeScaledNutrition(service.ScaleEntry{Quantity: 6, Unit: unit}, food, nil, nil)
		pairs := [][2]float64{
			{single.Calories, double.Calories},
			{single.Protein, double.Protein},
			{single.Carbs, double.Carbs},
			{single.Fats, double.Fats},
		}
		for _, p := range pairs {
			if math.Abs(p[1]-2*p[0]) > 0.15+1e-9 {
				t.Fatalf("unit %s: expected doubling, got %.2f -> %.2f", unit, p[0], p[1])
			}
		}
	}
}

func TestComputeScaledNutritionZeroServingSizeMeansHundred(t *testing.T) {
	t.Parallel()
	zero := referenceFood()
	zero.ServingSize = floatPtr(0)
	missing := referenceFood()
	missing.ServingSize = nil

	want := service.ComputeScaledNutrition(service.ScaleEntry{Quantity: 42, Unit: "g"}, referenceFood(), nil, nil)
	for _, food := range []model.Food{zero, missing} {
		got := service.ComputeScaledNutrition(service.ScaleEntry{Quantity: 42, Unit: "g"}, food, nil, nil)
		if got != want {
			t.Fatalf("expected %+v, got %+v", want, got)
		}
	}
}

func TestComputeScaledNutritionMissingNutrientsAreZero(t *testing.T) {
	t.Parallel()
	food := model.Food{ID: 1, Name: "Water", Calories: floatPtr(0)}
	got := service.ComputeScaledNutrition(service.ScaleEntry{Quantity: 250, Unit: "g"}, food, nil, nil)
	if got.Calories != 0 || got.Protein != 0 || got.Carbs != 0 || got.Fats != 0 {
		t.Fatalf("expected zeros, got %+v", got)
	}
}

func TestComputeScaledNutritionUnknownAndEmptyUnits(t *testing.T) {
	t.Parallel()
	food := referenceFood()

	unknown := service.ComputeScaledNutrition(service.ScaleEntry{Quantity: 50, Unit: "ml"}, food, nil, nil)
	if unknown.UnitSource != service.UnitSourceAssumed || unknown.GramsPerUnit != 1 {
		t.Fatalf("expected unknown unit to be assumed grams, got %+v", unknown)
	}
	if unknown.Calories != 100 {
		t.Fatalf("expected 100 kcal for 50 assumed grams, got %.1f", unknown.Calories)
	}

	empty := service.ComputeScaledNutrition(service.ScaleEntry{Quantity: 50, Unit: "  "}, food, nil, nil)
	if empty.Unit != "g" || empty.UnitSource != service.UnitSourceTable {
		t.Fatalf("expected empty unit to default to g, got %+v", empty)
	}
}

func TestComputeScaledNutritionCustomUnitTable(t *testing.T) {
	t.Parallel()
	table := service.DefaultUnitTable().Merge(map[string]float64{" Scoop ": 30})
	got := service.ComputeScaledNutrition(service.ScaleEntry{Quantity: 2, Unit: "scoop"}, referenceFood(), nil, table)
	if got.UnitSource != service.UnitSourceTable || got.GramsPerUnit != 30 {
		t.Fatalf("expected scoop from custom table, got %+v", got)
	}
	if got.Calories != 120 {
		t.Fatalf("expected 120 kcal, got %.1f", got.Calories)
	}
	if err := table.Validate(); err != nil {
		t.Fatalf("validate merged table: %v", err)
	}
	if err := (service.UnitTable{"pinch": 0}).Validate(); err == nil {
		t.Fatalf("expected non-positive grams to fail validation")
	}
}

func TestComputeScaledNutritionRoundsToOneDecimal(t *testing.T) {
	t.Parallel()
	food := model.Food{ID: 1, Calories: floatPtr(123), ProteinG: floatPtr(3.33), ServingSize: floatPtr(100)}
	got := service.ComputeScaledNutrition(service.ScaleEntry{Quantity: 33, Unit: "g"}, food, nil, nil)
	if got.Calories != 40.6 {
		t.Fatalf("expected 40.6 kcal, got %v", got.Calories)
	}
	if got.Protein != 1.1 {
		t.Fatalf("expected 1.1 g protein, got %v", got.Protein)
	}
}
