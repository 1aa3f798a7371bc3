package core

import (
	"brewcore/pkg/domain"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SchedulingView is the read access the tank scheduler needs.
type SchedulingView interface {
	ListBatches() []Batch
	FindLocation(id string) (Location, bool)
}

// Occupancy is the closed interval of days a batch holds its tank.
type Occupancy struct {
	BatchID         string      `json:"batch_id"`
	LotCode         string      `json:"lot_code"`
	TankID          string      `json:"tank_id"`
	ParentBatchID   string      `json:"parent_batch_id,omitempty"`
	Status          BatchStatus `json:"status"`
	CookDate        time.Time   `json:"cook_date"`
	LastOccupiedDay time.Time   `json:"last_occupied_day"`
}

// OccupancyOf computes the occupied interval of a batch.
func OccupancyOf(b Batch) Occupancy {
	occ := Occupancy{
		BatchID:         b.ID,
		LotCode:         b.LotCode,
		TankID:          b.TankID,
		Status:          b.Status,
		CookDate:        domain.Day(b.CookDate),
		LastOccupiedDay: b.LastOccupiedDay(),
	}
	if b.IsTurn() {
		occ.ParentBatchID = *b.ParentBatchID
	}
	return occ
}

// Overlaps reports whether two occupancies share at least one day.
func (o Occupancy) Overlaps(other Occupancy) bool {
	return !o.CookDate.After(other.LastOccupiedDay) && !other.CookDate.After(o.LastOccupiedDay)
}

// Reservation describes a request to hold a tank from StartDate onwards.
type Reservation struct {
	TankID    string
	StartDate time.Time
	Volume    decimal.Decimal
	// Exclude lists batches ignored by the overlap check, typically the
	// batches being moved.
	Exclude []string
}

// Reserve checks whether recipe can be brewed into tankID starting on
// startDate. It returns nil when the tank is free, CapacityExceededError when
// the recipe's target volume exceeds the tank, or SchedulingConflictError
// naming the batch that holds the tank longest.
func Reserve(view SchedulingView, tankID string, startDate time.Time, recipe Recipe, excludeBatchID string) error {
	return CheckReservation(view, Reservation{
		TankID:    tankID,
		StartDate: startDate,
		Volume:    recipe.Target.Volume,
		Exclude:   []string{excludeBatchID},
	})
}

// CheckReservation runs the capacity check followed by the overlap check.
func CheckReservation(view SchedulingView, req Reservation) error {
	tank, err := lookupTank(view, req.TankID)
	if err != nil {
		return err
	}
	if err := checkCapacity(tank, req.Volume); err != nil {
		return err
	}
	return checkOverlap(view.ListBatches(), req)
}

// ReserveTurn checks that a turn of the given volume fits next to parent and
// its existing turns. Turns share the parent's reservation window, so only
// capacity is checked.
func ReserveTurn(view SchedulingView, parent Batch, volume decimal.Decimal) error {
	tank, err := lookupTank(view, parent.TankID)
	if err != nil {
		return err
	}
	required := groupVolume(view.ListBatches(), parent).Add(volume)
	return checkCapacity(tank, required)
}

// TankSchedule lists the batches holding tankID ordered by cook date.
func TankSchedule(view SchedulingView, tankID string) ([]Occupancy, error) {
	if _, err := lookupTank(view, tankID); err != nil {
		return nil, err
	}
	var out []Occupancy
	for _, b := range view.ListBatches() {
		if b.TankID != tankID || !b.Status.OccupiesTank() {
			continue
		}
		out = append(out, OccupancyOf(b))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CookDate.Equal(out[j].CookDate) {
			return out[i].CookDate.Before(out[j].CookDate)
		}
		return out[i].BatchID < out[j].BatchID
	})
	return out, nil
}

func lookupTank(view SchedulingView, tankID string) (Location, error) {
	tank, ok := view.FindLocation(tankID)
	if !ok {
		return Location{}, domain.NotFoundError{Entity: EntityLocation, ID: tankID}
	}
	if !tank.IsTank() {
		return Location{}, fmt.Errorf("%w: location %s is not a tank", domain.ErrValidation, tankID)
	}
	return tank, nil
}

func checkCapacity(tank Location, required decimal.Decimal) error {
	if required.GreaterThan(tank.GrossVolume) {
		return domain.CapacityExceededError{TankID: tank.ID, Required: required, Available: tank.GrossVolume}
	}
	return nil
}

// checkOverlap rejects a start day that falls on or before the last occupied
// day of any batch still holding the tank. The reported batch is the one with
// the latest last occupied day so repeated calls yield the same answer.
func checkOverlap(batches []Batch, req Reservation) error {
	start := domain.Day(req.StartDate)
	excluded := make(map[string]struct{}, len(req.Exclude))
	for _, id := range req.Exclude {
		excluded[id] = struct{}{}
	}
	var (
		blocker Batch
		last    time.Time
		found   bool
	)
	for _, b := range batches {
		if b.TankID != req.TankID || !b.Status.OccupiesTank() {
			continue
		}
		if _, skip := excluded[b.ID]; skip {
			continue
		}
		end := b.LastOccupiedDay()
		if start.After(end) {
			continue
		}
		if !found || end.After(last) || (end.Equal(last) && b.ID < blocker.ID) {
			blocker, last, found = b, end, true
		}
	}
	if !found {
		return nil
	}
	return domain.SchedulingConflictError{
		TankID:        req.TankID,
		BatchID:       blocker.ID,
		LotCode:       blocker.LotCode,
		AvailableFrom: domain.AddDays(last, 1),
	}
}

// rootBatch follows parent links to the batch that owns the tank reservation.
func rootBatch(batches map[string]Batch, b Batch) Batch {
	current := b
	for depth := 0; current.IsTurn() && depth < len(batches); depth++ {
		parent, ok := batches[*current.ParentBatchID]
		if !ok {
			break
		}
		current = parent
	}
	return current
}

// turnGroup returns root followed by every batch whose parent is root.
func turnGroup(batches []Batch, root Batch) []Batch {
	group := []Batch{root}
	for _, b := range batches {
		if b.IsTurn() && *b.ParentBatchID == root.ID {
			group = append(group, b)
		}
	}
	return group
}

// groupVolume sums the members of root's turn group still holding the tank.
func groupVolume(batches []Batch, root Batch) decimal.Decimal {
	total := decimal.Zero
	for _, b := range turnGroup(batches, root) {
		if !b.Status.OccupiesTank() {
			continue
		}
		total = total.Add(b.Volume())
	}
	return total
}

func indexBatches(batches []Batch) map[string]Batch {
	out := make(map[string]Batch, len(batches))
	for _, b := range batches {
		out[b.ID] = b
	}
	return out
}
