package core

import (
	"brewcore/pkg/domain"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError carries per-field validator tags for structured responses.
type ValidationError struct {
	Fields map[string]string
}

func (e ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		parts = append(parts, field+"="+e.Fields[field])
	}
	return fmt.Sprintf("%s: %s", domain.ErrValidation, strings.Join(parts, ", "))
}

func (e ValidationError) Is(target error) bool { return target == domain.ErrValidation }

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func validateStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fe.Tag()
	}
	return ValidationError{Fields: fields}
}

// validateLineIDs rejects a recipe reusing an ingredient id within a stage or
// a packaging split id. Blank ids are generated when a batch is built.
func validateLineIDs(recipe Recipe) error {
	fields := make(map[string]string)
	stages := []struct {
		field string
		lines []domain.Ingredient
	}{
		{"MashIngredients", recipe.MashIngredients},
		{"BoilIngredients", recipe.BoilIngredients},
		{"FermentationIngredients", recipe.FermentationIngredients},
	}
	for _, stage := range stages {
		ids := make([]string, len(stage.lines))
		for i, line := range stage.lines {
			ids[i] = line.ID
		}
		if hasDuplicate(ids) {
			fields[stage.field] = "unique"
		}
	}
	splits := make([]string, len(recipe.PackagingSplits))
	for i, split := range recipe.PackagingSplits {
		splits[i] = split.ID
	}
	if hasDuplicate(splits) {
		fields["PackagingSplits"] = "unique"
	}
	if len(fields) > 0 {
		return ValidationError{Fields: fields}
	}
	return nil
}

func hasDuplicate(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
