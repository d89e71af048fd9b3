package service_test

import (
	"errors"
	"testing"

	"github.com/flexfitness/flex-cli/internal/service"
)

func TestFoodCRUD(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)

	id, err := service.AddFood(sqldb, service.FoodInput{
		Name:        "  Oats ",
		Calories:    floatPtr(389),
		ProteinG:    floatPtr(16.9),
		ServingUnit: "G",
	})
	if err != nil {
		t.Fatalf("add food: %v", err)
	}
	food, err := service.GetFood(sqldb, id)
	if err != nil {
		t.Fatalf("get food: %v", err)
	}
	if food.Name != "Oats" || food.ServingUnit != "g" || food.CarbsG != nil || food.ServingSize != nil {
		t.Fatalf("unexpected food: %+v", food)
	}

	err = service.UpdateFood(sqldb, service.UpdateFoodInput{ID: id, FoodInput: service.FoodInput{
		Name:        "Rolled Oats",
		Calories:    floatPtr(380),
		ServingSize: floatPtr(40),
	}})
	if err != nil {
		t.Fatalf("update food: %v", err)
	}
	foods, err := service.ListFoods(sqldb, service.ListFoodsFilter{Query: "rolled"})
	if err != nil {
		t.Fatalf("list foods: %v", err)
	}
	if len(foods) != 1 || *foods[0].ServingSize != 40 {
		t.Fatalf("unexpected foods: %+v", foods)
	}

	if err := service.DeleteFood(sqldb, id); err != nil {
		t.Fatalf("delete food: %v", err)
	}
	if _, err := service.GetFood(sqldb, id); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := service.UpdateFood(sqldb, service.UpdateFoodInput{ID: id, FoodInput: service.FoodInput{Name: "Ghost"}}); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
}

func TestAddFoodValidation(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)

	if _, err := service.AddFood(sqldb, service.FoodInput{Name: " "}); err == nil {
		t.Fatalf("expected name validation error")
	}
	if _, err := service.AddFood(sqldb, service.FoodInput{Name: "Bad", Calories: floatPtr(-1)}); err == nil {
		t.Fatalf("expected negative calories error")
	}
}

func TestDeleteFoodRejectedWhileLogged(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)

	id, err := service.AddFood(sqldb, service.FoodInput{Name: "Rice", Calories: floatPtr(130)})
	if err != nil {
		t.Fatalf("add food: %v", err)
	}
	if _, err := service.AddFoodLog(sqldb, service.FoodLogInput{FoodID: id, Quantity: 200}); err != nil {
		t.Fatalf("add log: %v", err)
	}
	if err := service.DeleteFood(sqldb, id); err == nil {
		t.Fatalf("expected delete to be rejected while logs exist")
	}
}

func TestFoodMeasures(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)

	id, err := service.AddFood(sqldb, service.FoodInput{Name: "Bread", Calories: floatPtr(265)})
	if err != nil {
		t.Fatalf("add food: %v", err)
	}
	if err := service.SetFoodMeasure(sqldb, id, " Slice ", 30); err != nil {
		t.Fatalf("set measure: %v", err)
	}
	if err := service.SetFoodMeasure(sqldb, id, "slice", 35); err != nil {
		t.Fatalf("upsert measure: %v", err)
	}
	if err := service.SetFoodMeasure(sqldb, id, "loaf", 0); err == nil {
		t.Fatalf("expected grams validation error")
	}
	if err := service.SetFoodMeasure(sqldb, 999, "slice", 30); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("expected not found for missing food, got %v", err)
	}

	measures, err := service.ListFoodMeasures(sqldb, id)
	if err != nil {
		t.Fatalf("list measures: %v", err)
	}
	if len(measures) != 1 || measures[0].Name != "slice" || measures[0].Grams != 35 {
		t.Fatalf("unexpected measures: %+v", measures)
	}

	lookup := service.NewMeasureLookup(sqldb)
	if g, ok := lookup.LookupMeasure(id, "slice"); !ok || g != 35 {
		t.Fatalf("expected sql lookup 35 g, got %v %v", g, ok)
	}
	if _, ok := lookup.LookupMeasure(id, "cup"); ok {
		t.Fatalf("expected no cup measure")
	}

	if err := service.DeleteFoodMeasure(sqldb, id, "SLICE"); err != nil {
		t.Fatalf("delete measure: %v", err)
	}
	if err := service.DeleteFoodMeasure(sqldb, id, "slice"); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}
