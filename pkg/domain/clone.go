package domain

import "time"

// Clone returns a deep copy of the batch so callers can mutate it freely.
func (b Batch) Clone() Batch {
	cp := b
	cp.ParentBatchID = cloneString(b.ParentBatchID)
	cp.PackagingDate = cloneTime(b.PackagingDate)
	cp.BestBefore = cloneTime(b.BestBefore)
	cp.Mash = b.Mash.Clone()
	cp.Boil = b.Boil.Clone()
	cp.Fermentation = b.Fermentation.Clone()
	cp.Packaging = b.Packaging.Clone()
	return cp
}

// Clone deep-copies a stage log.
func (l StageLog) Clone() StageLog {
	return StageLog{Expected: l.Expected.Clone(), Actual: l.Actual.Clone()}
}

// Clone deep-copies a stage plan.
func (p StagePlan) Clone() StagePlan {
	return StagePlan{
		Ingredients:     cloneSlice(p.Ingredients),
		Steps:           cloneSlice(p.Steps),
		PackagingSplits: cloneSlice(p.PackagingSplits),
		ShelfLifeDays:   p.ShelfLifeDays,
	}
}

// Clone deep-copies recorded actuals.
func (a StageActual) Clone() StageActual {
	cp := a
	if a.Ingredients != nil {
		cp.Ingredients = make([]ActualIngredient, len(a.Ingredients))
		for i, entry := range a.Ingredients {
			entry.Assignments = cloneSlice(entry.Assignments)
			cp.Ingredients[i] = entry
		}
	}
	if a.Steps != nil {
		cp.Steps = make([]ActualStep, len(a.Steps))
		for i, step := range a.Steps {
			step.StartedAt = cloneTime(step.StartedAt)
			step.CompletedAt = cloneTime(step.CompletedAt)
			step.TemperatureC = cloneFloat(step.TemperatureC)
			cp.Steps[i] = step
		}
	}
	if a.Entries != nil {
		cp.Entries = make([]LogEntry, len(a.Entries))
		for i, entry := range a.Entries {
			entry.Gravity = cloneFloat(entry.Gravity)
			entry.TemperatureC = cloneFloat(entry.TemperatureC)
			entry.PH = cloneFloat(entry.PH)
			cp.Entries[i] = entry
		}
	}
	cp.PackagedItems = cloneSlice(a.PackagedItems)
	cp.UnloadedAt = cloneTime(a.UnloadedAt)
	return cp
}

// Clone deep-copies a recipe.
func (r Recipe) Clone() Recipe {
	cp := r
	cp.MashIngredients = cloneSlice(r.MashIngredients)
	cp.BoilIngredients = cloneSlice(r.BoilIngredients)
	cp.FermentationIngredients = cloneSlice(r.FermentationIngredients)
	cp.MashSteps = cloneSlice(r.MashSteps)
	cp.BoilSteps = cloneSlice(r.BoilSteps)
	cp.FermentationSteps = cloneSlice(r.FermentationSteps)
	cp.PackagingSplits = cloneSlice(r.PackagingSplits)
	return cp
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
