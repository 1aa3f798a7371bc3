package httpapi

import (
	"brewcore/pkg/domain"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// date accepts calendar days ("2024-03-01") as well as RFC 3339 timestamps.
type date struct {
	time.Time
}

func (d *date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if raw == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("date %q is neither YYYY-MM-DD nor RFC 3339", raw)
	}
	d.Time = t
	return nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	var d date
	quoted, _ := json.Marshal(raw)
	if err := d.UnmarshalJSON(quoted); err != nil {
		return time.Time{}, err
	}
	return d.Time, nil
}

type createBatchRequest struct {
	RecipeID  string `json:"recipe_id"`
	TankID    string `json:"tank_id"`
	StartDate date   `json:"start_date"`
}

type createTurnRequest struct {
	RecipeID  string `json:"recipe_id"`
	StartDate date   `json:"start_date"`
}

type reassignTankRequest struct {
	TankID string `json:"tank_id"`
}

type advanceStatusRequest struct {
	Status domain.BatchStatus `json:"status"`
}

type packagingDateRequest struct {
	PackagingDate date `json:"packaging_date"`
}

type lotAssignmentRequest struct {
	LotNumber string          `json:"lot_number"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type finishedGoodsRequest struct {
	LocationID string `json:"location_id"`
}

type stepPatch struct {
	Name         string     `json:"name"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	TemperatureC *float64   `json:"temperature_c,omitempty"`
}

type packagedPatch struct {
	SplitID  string          `json:"split_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// actualPatch is a partial update of the actual side of a stage. Steps and
// packaged items are matched by name and split id; entries are appended.
type actualPatch struct {
	Steps         []stepPatch       `json:"steps,omitempty"`
	Entries       []domain.LogEntry `json:"entries,omitempty"`
	Notes         *string           `json:"notes,omitempty"`
	PackagedItems []packagedPatch   `json:"packaged_items,omitempty"`
}

func (p actualPatch) apply(actual *domain.StageActual) error {
	for _, patch := range p.Steps {
		found := false
		for i := range actual.Steps {
			step := &actual.Steps[i]
			if step.Name != patch.Name {
				continue
			}
			found = true
			if patch.StartedAt != nil {
				step.StartedAt = patch.StartedAt
			}
			if patch.CompletedAt != nil {
				step.CompletedAt = patch.CompletedAt
			}
			if patch.TemperatureC != nil {
				step.TemperatureC = patch.TemperatureC
			}
		}
		if !found {
			return fmt.Errorf("%w: unknown step %q", domain.ErrValidation, patch.Name)
		}
	}
	actual.Entries = append(actual.Entries, p.Entries...)
	if p.Notes != nil {
		actual.Notes = *p.Notes
	}
	for _, patch := range p.PackagedItems {
		found := false
		for i := range actual.PackagedItems {
			if actual.PackagedItems[i].SplitID == patch.SplitID {
				actual.PackagedItems[i].Quantity = patch.Quantity
				found = true
			}
		}
		if !found {
			return fmt.Errorf("%w: unknown packaging split %q", domain.ErrValidation, patch.SplitID)
		}
	}
	return nil
}
