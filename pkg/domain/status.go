package domain

// BatchStatus represents the production state of a batch.
type BatchStatus string

// Batch statuses in production order. Transitions move one step forward only.
const (
	StatusPlanned    BatchStatus = "planned"
	StatusInProgress BatchStatus = "in_progress"
	StatusFermenting BatchStatus = "fermenting"
	StatusPackaged   BatchStatus = "packaged"
	StatusCompleted  BatchStatus = "completed"
)

var statusOrder = []BatchStatus{
	StatusPlanned,
	StatusInProgress,
	StatusFermenting,
	StatusPackaged,
	StatusCompleted,
}

// Valid reports whether s is a known status.
func (s BatchStatus) Valid() bool {
	return s.index() >= 0
}

// Terminal reports whether no further transition is possible.
func (s BatchStatus) Terminal() bool {
	return s == StatusCompleted
}

// Next returns the single valid successor of s.
func (s BatchStatus) Next() (BatchStatus, bool) {
	idx := s.index()
	if idx < 0 || idx+1 >= len(statusOrder) {
		return "", false
	}
	return statusOrder[idx+1], true
}

// CanTransitionTo reports whether to is the immediate successor of s.
func (s BatchStatus) CanTransitionTo(to BatchStatus) bool {
	next, ok := s.Next()
	return ok && next == to
}

// OccupiesTank reports whether a batch in this status holds its tank.
func (s BatchStatus) OccupiesTank() bool {
	return s != StatusCompleted
}

func (s BatchStatus) index() int {
	for i, candidate := range statusOrder {
		if candidate == s {
			return i
		}
	}
	return -1
}
