package core

import "brewcore/pkg/domain"

// changedBatch extracts the batch carried by a change payload.
func changedBatch(payload any) (Batch, bool) {
	switch v := payload.(type) {
	case Batch:
		return v, true
	case *Batch:
		if v != nil {
			return *v, true
		}
	}
	return Batch{}, false
}

// touchedTanks collects the tanks whose occupancy or capacity a change set
// may have affected.
func touchedTanks(changes []domain.Change) map[string]struct{} {
	tanks := make(map[string]struct{})
	for _, change := range changes {
		switch change.Entity {
		case domain.EntityBatch:
			for _, payload := range []any{change.Before, change.After} {
				if b, ok := changedBatch(payload); ok && b.TankID != "" {
					tanks[b.TankID] = struct{}{}
				}
			}
		case domain.EntityLocation:
			for _, payload := range []any{change.Before, change.After} {
				if l, ok := payload.(Location); ok && l.IsTank() {
					tanks[l.ID] = struct{}{}
				}
			}
		}
	}
	return tanks
}

// changedBatchIDs lists the batches created or updated by a change set.
func changedBatchIDs(changes []domain.Change) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, change := range changes {
		if change.Entity != domain.EntityBatch {
			continue
		}
		if b, ok := changedBatch(change.After); ok {
			ids[b.ID] = struct{}{}
		}
	}
	return ids
}
