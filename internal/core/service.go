package core

import (
	"brewcore/internal/infra/persistence/memory"
	"brewcore/pkg/domain"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Service exposes the brewery operations as transactional units. Every
// operation takes its resource locks, runs inside a store transaction and
// reports through the configured audit, metrics, tracing and logging hooks.
type Service struct {
	store    PersistentStore
	clock    Clock
	logger   Logger
	audit    AuditRecorder
	metrics  MetricsRecorder
	tracer   Tracer
	locker   domain.Locker
	archive  BatchArchive
	validate *validator.Validate
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for packaging dates, unload
// timestamps and audit entries.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithAuditRecorder sets the recorder receiving audit entries.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithMetricsRecorder sets the recorder observing operation outcomes.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer sets the tracer wrapping every operation.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithLocker replaces the in-process locker, e.g. with a Redis locker shared
// by several instances.
func WithLocker(locker domain.Locker) Option {
	return func(s *Service) {
		if locker != nil {
			s.locker = locker
		}
	}
}

// WithArchive sets where completed batches are archived.
func WithArchive(archive BatchArchive) Option {
	return func(s *Service) {
		if archive != nil {
			s.archive = archive
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	svc := &Service{
		store:    store,
		clock:    ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:   noopLogger{},
		audit:    noopAuditRecorder{},
		metrics:  noopMetricsRecorder{},
		tracer:   noopTracer{},
		locker:   NewLocalLocker(),
		archive:  noopArchive{},
		validate: newValidator(),
	}
	if provider, ok := store.(interface{ NowFunc() func() time.Time }); ok {
		if fn := provider.NowFunc(); fn != nil {
			svc.clock = ClockFunc(fn)
		}
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

func (s *Service) today() time.Time {
	return domain.Day(s.clock.Now())
}

// run wraps an operation with tracing, metrics, audit and logging. fn returns
// the id of the entity it touched.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context) (string, error)) error {
	ctx, span := s.tracer.Start(ctx, op)
	started := s.clock.Now()
	entityID, err := fn(ctx)
	duration := s.clock.Now().Sub(started)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.recordAuditError(ctx, op, entityID, duration, err)
		s.logFailure(op, entityID, err)
		return err
	}
	s.recordAuditSuccess(ctx, op, entityID, duration)
	s.logger.Debug("operation completed", "operation", op, "entity_id", entityID, "duration", duration)
	return nil
}

func (s *Service) logFailure(op, entityID string, err error) {
	var ruleErr RuleViolationError
	switch {
	case errors.Is(err, domain.ErrInvariant):
		s.logger.Error("invariant violated", "operation", op, "entity_id", entityID, "error", err)
	case errors.As(err, &ruleErr):
		for _, v := range ruleErr.Result.Violations {
			s.logger.Warn("rule blocked transaction", "operation", op, "rule", v.Rule, "entity_id", v.EntityID, "message", v.Message)
		}
	case isDomainError(err):
		s.logger.Info("operation rejected", "operation", op, "entity_id", entityID, "error", err)
	default:
		s.logger.Error("operation failed", "operation", op, "entity_id", entityID, "error", err)
	}
}

func isDomainError(err error) bool {
	for _, target := range []error{
		domain.ErrSchedulingConflict,
		domain.ErrCapacityExceeded,
		domain.ErrInvalidTransition,
		domain.ErrIncompleteAssignment,
		domain.ErrAlreadyProcessed,
		domain.ErrNegativeStock,
		domain.ErrNotFound,
		domain.ErrArchived,
		domain.ErrBatchReferenced,
		domain.ErrValidation,
		domain.ErrLockNotObtained,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Service) recordAuditSuccess(ctx context.Context, op, entityID string, duration time.Duration) {
	s.recordAudit(ctx, op, entityID, duration, nil)
}

func (s *Service) recordAuditError(ctx context.Context, op, entityID string, duration time.Duration, err error) {
	s.recordAudit(ctx, op, entityID, duration, err)
}

func (s *Service) recordAudit(ctx context.Context, op, entityID string, duration time.Duration, err error) {
	meta, ok := auditedOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

// withLocks holds keys for the duration of fn.
func (s *Service) withLocks(ctx context.Context, keys []string, fn func() error) error {
	release, err := s.locker.Acquire(ctx, keys...)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// withBatchLock locks a batch, reads it, then locks the further resources the
// read names. Batch keys are always taken before tank and lot keys, so two
// operations never wait on each other in opposite order.
func (s *Service) withBatchLock(ctx context.Context, batchID string, resources func(Batch, TransactionView) []string, fn func() error) error {
	return s.withLocks(ctx, []string{batchLockKey(batchID)}, func() error {
		var keys []string
		if err := s.store.View(ctx, func(view TransactionView) error {
			b, ok := view.FindBatch(batchID)
			if !ok {
				return domain.NotFoundError{Entity: EntityBatch, ID: batchID}
			}
			if resources != nil {
				keys = resources(b, view)
			}
			return nil
		}); err != nil {
			return err
		}
		if len(keys) == 0 {
			return fn()
		}
		return s.withLocks(ctx, keys, fn)
	})
}

// CreateBatchRequest describes a new batch.
type CreateBatchRequest struct {
	RecipeID  string    `json:"recipe_id" validate:"required"`
	TankID    string    `json:"tank_id" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
}

// CreateBatch reserves the tank and issues a planned batch snapshotting the
// recipe.
func (s *Service) CreateBatch(ctx context.Context, req CreateBatchRequest) (Batch, Result, error) {
	var (
		created Batch
		res     Result
	)
	err := s.run(ctx, "create_batch", func(ctx context.Context) (string, error) {
		if err := validateStruct(s.validate, req); err != nil {
			return "", err
		}
		err := s.withLocks(ctx, []string{tankLockKey(req.TankID)}, func() error {
			var err error
			res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
				recipe, ok := tx.FindRecipe(req.RecipeID)
				if !ok {
					return domain.NotFoundError{Entity: EntityRecipe, ID: req.RecipeID}
				}
				view := tx.Snapshot()
				if err := Reserve(view, req.TankID, req.StartDate, recipe, ""); err != nil {
					return err
				}
				var err error
				created, err = tx.CreateBatch(BuildBatch(recipe, req.StartDate, req.TankID, view.ListBatches()))
				return err
			})
			return err
		})
		return created.ID, err
	})
	if err != nil {
		return Batch{}, res, err
	}
	return created, res, nil
}

// CreateTurnRequest describes an additional brew added to a batch's tank.
// RecipeID defaults to the parent's recipe and StartDate to the parent's
// cook date.
type CreateTurnRequest struct {
	ParentBatchID string    `json:"parent_batch_id" validate:"required"`
	RecipeID      string    `json:"recipe_id,omitempty"`
	StartDate     time.Time `json:"start_date"`
}

// CreateTurn adds a turn to the tank of the parent batch. Turns share the
// parent's reservation, so only the combined volume is checked.
func (s *Service) CreateTurn(ctx context.Context, req CreateTurnRequest) (Batch, Result, error) {
	var (
		created Batch
		res     Result
	)
	err := s.run(ctx, "create_turn", func(ctx context.Context) (string, error) {
		if err := validateStruct(s.validate, req); err != nil {
			return "", err
		}
		tankOf := func(b Batch, view TransactionView) []string {
			root := rootBatch(indexBatches(view.ListBatches()), b)
			return []string{tankLockKey(root.TankID)}
		}
		err := s.withBatchLock(ctx, req.ParentBatchID, tankOf, func() error {
			var err error
			res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
				view := tx.Snapshot()
				batches := view.ListBatches()
				parent, ok := tx.FindBatch(req.ParentBatchID)
				if !ok {
					return domain.NotFoundError{Entity: EntityBatch, ID: req.ParentBatchID}
				}
				root := rootBatch(indexBatches(batches), parent)
				if err := ensureEditable(root); err != nil {
					return err
				}
				recipeID := req.RecipeID
				if recipeID == "" {
					recipeID = parent.RecipeID
				}
				recipe, ok := tx.FindRecipe(recipeID)
				if !ok {
					return domain.NotFoundError{Entity: EntityRecipe, ID: recipeID}
				}
				if err := ReserveTurn(view, root, recipe.Target.Volume); err != nil {
					return err
				}
				start := req.StartDate
				if start.IsZero() {
					start = root.CookDate
				}
				turn := BuildBatch(recipe, start, root.TankID, batches)
				rootID := root.ID
				turn.ParentBatchID = &rootID
				var err error
				created, err = tx.CreateBatch(turn)
				return err
			})
			return err
		})
		return created.ID, err
	})
	if err != nil {
		return Batch{}, res, err
	}
	return created, res, nil
}

// ReassignTank moves a batch and every turn of its group to another tank,
// re-running the capacity and overlap checks there for the whole group.
func (s *Service) ReassignTank(ctx context.Context, batchID, tankID string) (Batch, Result, error) {
	var (
		updated Batch
		res     Result
	)
	err := s.run(ctx, "reassign_tank", func(ctx context.Context) (string, error) {
		if tankID == "" {
			return batchID, fmt.Errorf("%w: tank id required", domain.ErrValidation)
		}
		tanks := func(b Batch, _ TransactionView) []string {
			return []string{tankLockKey(b.TankID), tankLockKey(tankID)}
		}
		err := s.withBatchLock(ctx, batchID, tanks, func() error {
			var err error
			res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
				current, ok := tx.FindBatch(batchID)
				if !ok {
					return domain.NotFoundError{Entity: EntityBatch, ID: batchID}
				}
				if err := ensureEditable(current); err != nil {
					return err
				}
				view := tx.Snapshot()
				batches := view.ListBatches()
				root := rootBatch(indexBatches(batches), current)
				var members []string
				for _, member := range turnGroup(batches, root) {
					members = append(members, member.ID)
				}
				if err := CheckReservation(view, Reservation{
					TankID:    tankID,
					StartDate: root.CookDate,
					Volume:    groupVolume(batches, root),
					Exclude:   members,
				}); err != nil {
					return err
				}
				for _, member := range turnGroup(batches, root) {
					if member.Archived() || member.TankID == tankID {
						continue
					}
					moved, err := tx.UpdateBatch(member.ID, func(b *Batch) error {
						b.TankID = tankID
						return nil
					})
					if err != nil {
						return err
					}
					if member.ID == batchID {
						updated = moved
					}
				}
				if updated.ID == "" {
					updated, _ = tx.FindBatch(batchID)
				}
				return nil
			})
			return err
		})
		return batchID, err
	})
	if err != nil {
		return Batch{}, res, err
	}
	return updated, res, nil
}

// AdvanceStatus moves a batch to the next lifecycle status. Packaging after
// the planned end may run into the next batch's days; the overlap is returned
// as a warning rather than blocking the transition. Completed batches are
// archived after commit; a failed archive write is logged and left to the
// archive sweep.
func (s *Service) AdvanceStatus(ctx context.Context, batchID string, to BatchStatus) (Batch, Result, error) {
	var (
		updated Batch
		res     Result
	)
	err := s.run(ctx, "advance_status", func(ctx context.Context) (string, error) {
		err := s.withBatchLock(ctx, batchID, nil, func() error {
			var err error
			res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
				var err error
				updated, err = tx.UpdateBatch(batchID, func(b *Batch) error {
					return AdvanceBatch(b, to, s.today())
				})
				return err
			})
			return err
		})
		if err != nil {
			return batchID, err
		}
		for _, v := range res.Violations {
			s.logger.Warn("rule warning", "operation", "advance_status", "rule", v.Rule, "entity_id", v.EntityID, "message", v.Message)
		}
		if updated.Status == StatusCompleted {
			if archiveErr := s.archive.Archive(ctx, updated); archiveErr != nil {
				s.logger.Warn("archive completed batch", "batch_id", batchID, "lot_code", updated.LotCode, "error", archiveErr)
			}
		}
		return batchID, nil
	})
	if err != nil {
		return Batch{}, res, err
	}
	return updated, res, nil
}

// SetPackagingDate records the packaging date and recomputes best-before.
// Extending the packaging date into another batch's slot is blocked by the
// tank occupancy rule.
func (s *Service) SetPackagingDate(ctx context.Context, batchID string, date time.Time) (Batch, Result, error) {
	var (
		updated Batch
		res     Result
	)
	err := s.run(ctx, "set_packaging_date", func(ctx context.Context) (string, error) {
		if date.IsZero() {
			return batchID, fmt.Errorf("%w: packaging date required", domain.ErrValidation)
		}
		tank := func(b Batch, _ TransactionView) []string { return []string{tankLockKey(b.TankID)} }
		err := s.withBatchLock(ctx, batchID, tank, func() error {
			var err error
			res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
				var err error
				updated, err = tx.UpdateBatch(batchID, func(b *Batch) error {
					if err := ensureEditable(*b); err != nil {
						return err
					}
					if domain.Day(date).Before(b.CookDate) {
						return fmt.Errorf("%w: packaging date %s before cook date %s", domain.ErrValidation,
							domain.Day(date).Format(time.DateOnly), b.CookDate.Format(time.DateOnly))
					}
					ApplyPackagingDate(b, date)
					return nil
				})
				return err
			})
			return err
		})
		return batchID, err
	})
	if err != nil {
		return Batch{}, res, err
	}
	return updated, res, nil
}

// UpdateActual applies mutator to the actual side of a stage. The mutator
// may record steps, log entries, notes and packaged quantities. It may not
// change ingredient identities, unload state, or anything already booked to
// the warehouse.
func (s *Service) UpdateActual(ctx context.Context, batchID string, stage Stage, mutator func(*domain.StageActual) error) (Batch, Result, error) {
	var (
		updated Batch
		res     Result
	)
	err := s.run(ctx, "update_actual", func(ctx context.Context) (string, error) {
		if mutator == nil {
			return batchID, fmt.Errorf("%w: mutator required", domain.ErrValidation)
		}
		err := s.withBatchLock(ctx, batchID, nil, func() error {
			var err error
			res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
				var err error
				updated, err = tx.UpdateBatch(batchID, func(b *Batch) error {
					if err := ensureEditable(*b); err != nil {
						return err
					}
					log, ok := b.StageLog(stage)
					if !ok {
						return fmt.Errorf("%w: unknown stage %q", domain.ErrValidation, stage)
					}
					next := log.Actual.Clone()
					if err := mutator(&next); err != nil {
						return err
					}
					if err := checkActualEdit(*b, stage, log.Actual, next); err != nil {
						return err
					}
					log.Actual = next
					return nil
				})
				return err
			})
			return err
		})
		return batchID, err
	})
	if err != nil {
		return Batch{}, res, err
	}
	return updated, res, nil
}

// AddLotAssignment records or updates the lot an ingredient was drawn from.
func (s *Service) AddLotAssignment(ctx context.Context, batchID string, stage Stage, ingredientID string, assignment LotAssignment) (domain.ActualIngredient, Result, error) {
	var (
		entry domain.ActualIngredient
		res   Result
	)
	err := s.run(ctx, "add_lot_assignment", func(ctx context.Context) (string, error) {
		err := s.withBatchLock(ctx, batchID, nil, func() error {
			var err error
			res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
				_, err := tx.UpdateBatch(batchID, func(b *Batch) error {
					var err error
					entry, err = AssignLot(b, stage, ingredientID, assignment)
					return err
				})
				return err
			})
			return err
		})
		return batchID, err
	})
	if err != nil {
		return domain.ActualIngredient{}, res, err
	}
	return entry, res, nil
}

// RemoveLotAssignment drops the assignment of lotNumber from an ingredient.
func (s *Service) RemoveLotAssignment(ctx context.Context, batchID string, stage Stage, ingredientID, lotNumber string) (domain.ActualIngredient, Result, error) {
	var (
		entry domain.ActualIngredient
		res   Result
	)
	err := s.run(ctx, "remove_lot_assignment", func(ctx context.Context) (string, error) {
		err := s.withBatchLock(ctx, batchID, nil, func() error {
			var err error
			res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
				_, err := tx.UpdateBatch(batchID, func(b *Batch) error {
					var err error
					entry, err = UnassignLot(b, stage, ingredientID, lotNumber)
					return err
				})
				return err
			})
			return err
		})
		return batchID, err
	})
	if err != nil {
		return domain.ActualIngredient{}, res, err
	}
	return entry, res, nil
}

// ConfirmUnload deducts a fully assigned stage from the warehouse ledger.
func (s *Service) ConfirmUnload(ctx context.Context, batchID string, stage Stage) ([]StockMovement, Result, error) {
	var (
		movements []StockMovement
		res       Result
	)
	err := s.run(ctx, "confirm_unload", func(ctx context.Context) (string, error) {
		lots := func(b Batch, _ TransactionView) []string { return lotLockKeys(lotKeys(b, stage)) }
		err := s.withBatchLock(ctx, batchID, lots, func() error {
			var err error
			res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
				var err error
				movements, err = UnloadStage(tx, batchID, stage, s.clock.Now())
				return err
			})
			return err
		})
		return batchID, err
	})
	if err != nil {
		return nil, res, err
	}
	return movements, res, nil
}

// LoadFinishedGoods books the packaged output of a batch into a warehouse.
func (s *Service) LoadFinishedGoods(ctx context.Context, batchID, locationID string) ([]StockMovement, Result, error) {
	var (
		movements []StockMovement
		res       Result
	)
	err := s.run(ctx, "load_finished_goods", func(ctx context.Context) (string, error) {
		lots := func(b Batch, _ TransactionView) []string { return lotLockKeys(packagedKeys(b)) }
		err := s.withBatchLock(ctx, batchID, lots, func() error {
			var err error
			res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
				var err error
				movements, err = LoadPackagedGoods(tx, batchID, locationID)
				return err
			})
			return err
		})
		return batchID, err
	})
	if err != nil {
		return nil, res, err
	}
	return movements, res, nil
}

// DeleteBatch removes a batch that is not archived and has no turns.
func (s *Service) DeleteBatch(ctx context.Context, batchID string) (Result, error) {
	var res Result
	err := s.run(ctx, "delete_batch", func(ctx context.Context) (string, error) {
		err := s.withBatchLock(ctx, batchID, nil, func() error {
			var err error
			res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
				current, ok := tx.FindBatch(batchID)
				if !ok {
					return domain.NotFoundError{Entity: EntityBatch, ID: batchID}
				}
				if err := ensureEditable(current); err != nil {
					return err
				}
				return tx.DeleteBatch(batchID)
			})
			return err
		})
		return batchID, err
	})
	return res, err
}

// GetBatch returns a batch by id.
func (s *Service) GetBatch(ctx context.Context, batchID string) (Batch, error) {
	var b Batch
	err := s.run(ctx, "get_batch", func(context.Context) (string, error) {
		var ok bool
		b, ok = s.store.GetBatch(batchID)
		if !ok {
			return batchID, domain.NotFoundError{Entity: EntityBatch, ID: batchID}
		}
		return batchID, nil
	})
	return b, err
}

// BatchFilter narrows ListBatches. Empty fields match everything.
type BatchFilter struct {
	Status BatchStatus
	TankID string
}

func (f BatchFilter) match(b Batch) bool {
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.TankID != "" && b.TankID != f.TankID {
		return false
	}
	return true
}

// ListBatches returns batches ordered by cook date.
func (s *Service) ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error) {
	out := []Batch{}
	err := s.run(ctx, "list_batches", func(context.Context) (string, error) {
		for _, b := range s.store.ListBatches() {
			if filter.match(b) {
				out = append(out, b)
			}
		}
		return "", nil
	})
	return out, err
}

// ListTurns returns the turns whose parent is batchID.
func (s *Service) ListTurns(ctx context.Context, batchID string) ([]Batch, error) {
	out := []Batch{}
	err := s.run(ctx, "list_turns", func(ctx context.Context) (string, error) {
		return batchID, s.store.View(ctx, func(view TransactionView) error {
			parent, ok := view.FindBatch(batchID)
			if !ok {
				return domain.NotFoundError{Entity: EntityBatch, ID: batchID}
			}
			out = append(out, turnGroup(view.ListBatches(), parent)[1:]...)
			return nil
		})
	})
	return out, err
}

// TraceForward lists the lots consumed by a batch.
func (s *Service) TraceForward(ctx context.Context, batchID string) ([]TraceRow, error) {
	var rows []TraceRow
	err := s.run(ctx, "trace_forward", func(ctx context.Context) (string, error) {
		return batchID, s.store.View(ctx, func(view TransactionView) error {
			var err error
			rows, err = TraceForward(view, batchID)
			return err
		})
	})
	return rows, err
}

// TraceBackward lists the batches that consumed lots matching query.
func (s *Service) TraceBackward(ctx context.Context, query string) ([]TraceRow, error) {
	var rows []TraceRow
	err := s.run(ctx, "trace_backward", func(ctx context.Context) (string, error) {
		return "", s.store.View(ctx, func(view TransactionView) error {
			var err error
			rows, err = TraceBackward(view, query)
			return err
		})
	})
	return rows, err
}

// ReservationRequest asks whether a recipe could be brewed into a tank.
type ReservationRequest struct {
	TankID         string    `json:"tank_id" validate:"required"`
	RecipeID       string    `json:"recipe_id" validate:"required"`
	StartDate      time.Time `json:"start_date" validate:"required"`
	ExcludeBatchID string    `json:"exclude_batch_id,omitempty"`
}

// CheckReservation runs the tank scheduler without reserving anything. A nil
// error means the tank is available.
func (s *Service) CheckReservation(ctx context.Context, req ReservationRequest) error {
	return s.run(ctx, "check_reservation", func(ctx context.Context) (string, error) {
		if err := validateStruct(s.validate, req); err != nil {
			return req.TankID, err
		}
		return req.TankID, s.store.View(ctx, func(view TransactionView) error {
			recipe, ok := view.FindRecipe(req.RecipeID)
			if !ok {
				return domain.NotFoundError{Entity: EntityRecipe, ID: req.RecipeID}
			}
			return Reserve(view, req.TankID, req.StartDate, recipe, req.ExcludeBatchID)
		})
	})
}

// TankSchedule lists the batches holding a tank ordered by cook date.
func (s *Service) TankSchedule(ctx context.Context, tankID string) ([]Occupancy, error) {
	var schedule []Occupancy
	err := s.run(ctx, "tank_schedule", func(ctx context.Context) (string, error) {
		return tankID, s.store.View(ctx, func(view TransactionView) error {
			var err error
			schedule, err = TankSchedule(view, tankID)
			return err
		})
	})
	if schedule == nil && err == nil {
		schedule = []Occupancy{}
	}
	return schedule, err
}

// ArchiveCompleted writes every completed batch missing from the archive and
// returns how many were written.
func (s *Service) ArchiveCompleted(ctx context.Context) (int, error) {
	archived := 0
	err := s.run(ctx, "archive_completed", func(ctx context.Context) (string, error) {
		var errs []error
		for _, b := range s.store.ListBatches() {
			if b.Status != StatusCompleted {
				continue
			}
			present, err := s.archive.Contains(ctx, b)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if present {
				continue
			}
			if err := s.archive.Archive(ctx, b); err != nil {
				errs = append(errs, err)
				continue
			}
			archived++
		}
		return "", errors.Join(errs...)
	})
	return archived, err
}
