package core

import (
	"brewcore/pkg/domain"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TraceRow links a batch to a material lot it consumed.
type TraceRow struct {
	BatchID      string          `json:"batch_id"`
	BatchLot     string          `json:"batch_lot"`
	Stage        Stage           `json:"stage"`
	IngredientID string          `json:"ingredient_id"`
	MaterialID   string          `json:"material_id"`
	MaterialName string          `json:"material_name"`
	LotNumber    string          `json:"lot_number"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit,omitempty"`
}

// materialNames indexes master item names by id.
type materialNames map[string]string

func newMaterialNames(items []MasterItem) materialNames {
	names := make(materialNames, len(items))
	for _, item := range items {
		names[item.ID] = item.Name
	}
	return names
}

func (n materialNames) label(entry domain.ActualIngredient) string {
	if name, ok := n[entry.MaterialID]; ok && name != "" {
		return name
	}
	return entry.Name
}

// TraceForward lists every lot consumed by a batch across mash, boil and
// fermentation, in stage order.
func TraceForward(view domain.TransactionView, batchID string) ([]TraceRow, error) {
	b, ok := view.FindBatch(batchID)
	if !ok {
		return nil, domain.NotFoundError{Entity: EntityBatch, ID: batchID}
	}
	names := newMaterialNames(view.ListMasterItems())
	rows := []TraceRow{}
	collectTrace(b, names, func(string) bool { return true }, &rows)
	return rows, nil
}

// TraceBackward lists every batch assignment whose lot number contains query,
// compared case-insensitively.
func TraceBackward(view domain.TransactionView, query string) ([]TraceRow, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, fmt.Errorf("%w: lot query required", domain.ErrValidation)
	}
	names := newMaterialNames(view.ListMasterItems())
	match := func(lot string) bool { return strings.Contains(strings.ToLower(lot), needle) }
	rows := []TraceRow{}
	for _, b := range view.ListBatches() {
		collectTrace(b, names, match, &rows)
	}
	return rows, nil
}

func collectTrace(b Batch, names materialNames, match func(string) bool, rows *[]TraceRow) {
	for _, stage := range domain.IngredientStages {
		log, _ := b.StageLog(stage)
		for _, entry := range log.Actual.Ingredients {
			for _, assignment := range entry.Assignments {
				if assignment.LotNumber == "" || !match(assignment.LotNumber) {
					continue
				}
				*rows = append(*rows, TraceRow{
					BatchID:      b.ID,
					BatchLot:     b.LotCode,
					Stage:        stage,
					IngredientID: entry.IngredientID,
					MaterialID:   entry.MaterialID,
					MaterialName: names.label(entry),
					LotNumber:    assignment.LotNumber,
					Quantity:     assignment.Quantity,
					Unit:         entry.Unit,
				})
			}
		}
	}
}
