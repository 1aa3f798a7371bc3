package core

import (
	"brewcore/pkg/domain"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BuildBatch creates a planned batch from recipe. The expected side of every
// stage log is a deep copy of the recipe, so later recipe edits never reach
// issued batches. Cook number and lot code continue the sequence of existing
// batches cooked in the same calendar year. BuildBatch does not check tank
// availability; callers reserve the tank first.
func BuildBatch(recipe Recipe, startDate time.Time, tankID string, existing []Batch) Batch {
	r := recipe.Clone()
	cookDate := domain.Day(startDate)
	cookNumber := NextCookNumber(existing, cookDate.Year())
	return Batch{
		RecipeID:     r.ID,
		RecipeName:   r.Name,
		Style:        r.Style,
		TankID:       tankID,
		CookDate:     cookDate,
		CookNumber:   cookNumber,
		LotCode:      LotCode(cookDate.Year(), cookNumber),
		Status:       StatusPlanned,
		Target:       r.Target,
		Mash:         ingredientStageLog(domain.StageMash, r),
		Boil:         ingredientStageLog(domain.StageBoil, r),
		Fermentation: ingredientStageLog(domain.StageFermentation, r),
		Packaging:    packagingStageLog(r),
	}
}

// NextCookNumber returns one more than the highest cook number of batches
// cooked in year.
func NextCookNumber(existing []Batch, year int) int {
	highest := 0
	for _, b := range existing {
		if b.CookDate.UTC().Year() == year && b.CookNumber > highest {
			highest = b.CookNumber
		}
	}
	return highest + 1
}

// LotCode formats the batch lot as two-digit year and three-digit cook number.
func LotCode(year, cookNumber int) string {
	return fmt.Sprintf("%02d%03d", year%100, cookNumber)
}

func ingredientStageLog(stage Stage, r Recipe) StageLog {
	ingredients := r.Ingredients(stage)
	steps := r.Steps(stage)
	log := StageLog{
		Expected: domain.StagePlan{
			Ingredients: make([]domain.Ingredient, 0, len(ingredients)),
			Steps:       make([]domain.ProcessStep, 0, len(steps)),
		},
		Actual: domain.StageActual{
			Ingredients:  make([]domain.ActualIngredient, 0, len(ingredients)),
			Steps:        make([]domain.ActualStep, 0, len(steps)),
			Entries:      []domain.LogEntry{},
			UnloadStatus: domain.UnloadPending,
		},
	}
	explicit := make([]string, len(ingredients))
	for i, ingredient := range ingredients {
		explicit[i] = ingredient.ID
	}
	ids := lineIDs(string(stage), explicit)
	for i, ingredient := range ingredients {
		ingredient.ID = ids[i]
		log.Expected.Ingredients = append(log.Expected.Ingredients, ingredient)
		log.Actual.Ingredients = append(log.Actual.Ingredients, domain.ActualIngredient{
			IngredientID: ingredient.ID,
			MaterialID:   ingredient.MaterialID,
			Name:         ingredient.Name,
			Unit:         ingredient.Unit,
			Assignments:  []LotAssignment{},
		})
	}
	for _, step := range steps {
		log.Expected.Steps = append(log.Expected.Steps, step)
		log.Actual.Steps = append(log.Actual.Steps, domain.ActualStep{Name: step.Name})
	}
	return log
}

func packagingStageLog(r Recipe) StageLog {
	log := StageLog{
		Expected: domain.StagePlan{
			Ingredients:     []domain.Ingredient{},
			Steps:           []domain.ProcessStep{},
			PackagingSplits: make([]domain.PackagingSplit, 0, len(r.PackagingSplits)),
			ShelfLifeDays:   r.ShelfLifeDays,
		},
		Actual: domain.StageActual{
			Ingredients:   []domain.ActualIngredient{},
			Steps:         []domain.ActualStep{},
			Entries:       []domain.LogEntry{},
			PackagedItems: make([]domain.PackagedItem, 0, len(r.PackagingSplits)),
			UnloadStatus:  domain.UnloadPending,
		},
	}
	explicit := make([]string, len(r.PackagingSplits))
	for i, split := range r.PackagingSplits {
		explicit[i] = split.ID
	}
	ids := lineIDs(string(domain.StagePackaging), explicit)
	for i, split := range r.PackagingSplits {
		split.ID = ids[i]
		log.Expected.PackagingSplits = append(log.Expected.PackagingSplits, split)
		log.Actual.PackagedItems = append(log.Actual.PackagedItems, domain.PackagedItem{
			SplitID:  split.ID,
			ItemID:   split.ItemID,
			Name:     split.Name,
			Quantity: decimal.Zero,
		})
	}
	return log
}

// lineIDs fills the blank ids of a stage's lines with "<prefix>-<position>",
// moving past numbers already taken by an explicit id.
func lineIDs(prefix string, explicit []string) []string {
	taken := make(map[string]struct{}, len(explicit))
	for _, id := range explicit {
		if id != "" {
			taken[id] = struct{}{}
		}
	}
	out := make([]string, len(explicit))
	for i, id := range explicit {
		if id != "" {
			out[i] = id
			continue
		}
		for n := i + 1; ; n++ {
			candidate := fmt.Sprintf("%s-%d", prefix, n)
			if _, ok := taken[candidate]; !ok {
				out[i] = candidate
				taken[candidate] = struct{}{}
				break
			}
		}
	}
	return out
}
