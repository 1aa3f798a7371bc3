package domain

import "github.com/shopspring/decimal"

// Stage identifies one of the production stages a batch passes through.
type Stage string

// Production stages. Mash, boil and fermentation carry raw material
// ingredients; packaging carries the finished goods split.
const (
	StageMash         Stage = "mash"
	StageBoil         Stage = "boil"
	StageFermentation Stage = "fermentation"
	StagePackaging    Stage = "packaging"
)

// IngredientStages lists the stages whose ingredients consume warehouse lots,
// in production order.
var IngredientStages = []Stage{StageMash, StageBoil, StageFermentation}

// Valid reports whether s names a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageMash, StageBoil, StageFermentation, StagePackaging:
		return true
	}
	return false
}

// Ingredient is one planned raw material line of a recipe stage.
type Ingredient struct {
	ID         string          `json:"id"`
	MaterialID string          `json:"material_id" validate:"required"`
	Name       string          `json:"name"`
	Quantity   decimal.Decimal `json:"quantity"`
	Unit       string          `json:"unit"`
}

// ProcessStep is a planned process instruction. Days is only meaningful for
// fermentation steps and drives tank occupancy.
type ProcessStep struct {
	Name         string  `json:"name" validate:"required"`
	TemperatureC float64 `json:"temperature_c,omitempty"`
	Minutes      int     `json:"minutes,omitempty" validate:"gte=0"`
	Days         int     `json:"days,omitempty" validate:"gte=0"`
}

// TargetSpec holds the planned output of a recipe.
type TargetSpec struct {
	Volume          decimal.Decimal `json:"volume"`
	OriginalGravity float64         `json:"original_gravity,omitempty"`
	FinalGravity    float64         `json:"final_gravity,omitempty"`
	PH              float64         `json:"ph,omitempty"`
	ABV             float64         `json:"abv,omitempty"`
}

// PackagingSplit plans how much of the batch goes into a finished good item.
type PackagingSplit struct {
	ID       string          `json:"id"`
	ItemID   string          `json:"item_id" validate:"required"`
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
}

// Recipe is reference data describing how to brew a product. Batches copy the
// parts they need at creation time and never read the recipe again.
type Recipe struct {
	Base
	Name                    string           `json:"name" validate:"required"`
	Style                   string           `json:"style"`
	MashIngredients         []Ingredient     `json:"mash_ingredients" validate:"dive"`
	BoilIngredients         []Ingredient     `json:"boil_ingredients" validate:"dive"`
	FermentationIngredients []Ingredient     `json:"fermentation_ingredients" validate:"dive"`
	MashSteps               []ProcessStep    `json:"mash_steps" validate:"dive"`
	BoilSteps               []ProcessStep    `json:"boil_steps" validate:"dive"`
	FermentationSteps       []ProcessStep    `json:"fermentation_steps" validate:"dive"`
	Target                  TargetSpec       `json:"target"`
	PackagingSplits         []PackagingSplit `json:"packaging_splits" validate:"dive"`
	ShelfLifeDays           int              `json:"shelf_life_days" validate:"gte=0"`
}

// Ingredients returns the planned ingredients of the given stage.
func (r Recipe) Ingredients(stage Stage) []Ingredient {
	switch stage {
	case StageMash:
		return r.MashIngredients
	case StageBoil:
		return r.BoilIngredients
	case StageFermentation:
		return r.FermentationIngredients
	}
	return nil
}

// Steps returns the planned steps of the given stage.
func (r Recipe) Steps(stage Stage) []ProcessStep {
	switch stage {
	case StageMash:
		return r.MashSteps
	case StageBoil:
		return r.BoilSteps
	case StageFermentation:
		return r.FermentationSteps
	}
	return nil
}

// FermentationDays sums the durations of all fermentation steps.
func (r Recipe) FermentationDays() int {
	return sumDays(r.FermentationSteps)
}

func sumDays(steps []ProcessStep) int {
	total := 0
	for _, step := range steps {
		total += step.Days
	}
	return total
}
