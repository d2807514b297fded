// Package lifecycle owns the task state machine. Every transition is a
// single conditional write against the store: the row predicate re-checks
// the precondition the policy saw, so a transition either fully applies
// (one row updated) or fails with Conflict when a concurrent writer got
// there first. The engine holds no locks of its own.
package lifecycle

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Lupao-eth/triptask-backend/apperr"
	"github.com/Lupao-eth/triptask-backend/models"
	"github.com/Lupao-eth/triptask-backend/observability"
	"github.com/Lupao-eth/triptask-backend/policy"
)

// Publisher is what the engine needs from the notification bus.
type Publisher interface {
	Publish(room, event string, data any)
}

// RoomKey names the per-task room that lifecycle and chat events land in.
func RoomKey(taskID uint) string {
	return fmt.Sprintf("task-%d", taskID)
}

// StatusUpdate is the payload of a status-update event.
type StatusUpdate struct {
	Status models.TaskStatus `json:"status"`
}

type Engine struct {
	db      *gorm.DB
	bus     Publisher
	metrics *observability.Metrics
}

func New(db *gorm.DB, bus Publisher, metrics *observability.Metrics) *Engine {
	return &Engine{db: db, bus: bus, metrics: metrics}
}

type CreateRequest struct {
	Name     string
	Task     string
	Pickup   string
	Dropoff  string
	Datetime string
	Notes    string
}

// EditRequest carries the descriptive fields of a partial edit. A nil
// field was not sent and keeps its stored value.
type EditRequest struct {
	Name     *string
	Pickup   *string
	Dropoff  *string
	Datetime *string
	Notes    *string
}

// Create inserts a new pending task owned by the calling customer.
func (e *Engine) Create(actor policy.Actor, req CreateRequest) (*models.Task, error) {
	if actor.Role != models.RoleCustomer {
		return nil, apperr.Wrap(apperr.ErrForbidden, "only customers can create tasks")
	}
	if req.Name == "" || req.Task == "" || req.Pickup == "" || req.Dropoff == "" || req.Datetime == "" {
		return nil, apperr.Wrap(apperr.ErrValidation, "missing required fields")
	}
	task := models.Task{
		UserID:   actor.ID,
		Status:   models.StatusPending,
		Name:     req.Name,
		Task:     req.Task,
		Pickup:   req.Pickup,
		Dropoff:  req.Dropoff,
		Datetime: req.Datetime,
		Notes:    req.Notes,
	}
	if err := e.db.Create(&task).Error; err != nil {
		return nil, e.upstream("create task", err)
	}
	return &task, nil
}

// Get returns a single task by ID.
func (e *Engine) Get(id uint) (*models.Task, error) {
	return e.fetch(id)
}

// Edit updates the descriptive fields of a pending task. The owning
// customer only; the pending precondition is re-checked by the write.
// Only fields present in the request are written, so a partial edit
// leaves everything else alone.
func (e *Engine) Edit(actor policy.Actor, id uint, req EditRequest) (*models.Task, error) {
	task, err := e.fetch(id)
	if err != nil {
		return nil, err
	}
	if err := policy.CanEdit(actor, task); err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	for col, v := range map[string]*string{
		"name":     req.Name,
		"pickup":   req.Pickup,
		"dropoff":  req.Dropoff,
		"datetime": req.Datetime,
		"notes":    req.Notes,
	} {
		if v == nil {
			continue
		}
		if *v == "" && col != "notes" {
			return nil, apperr.Wrap(apperr.ErrValidation, "%s cannot be empty", col)
		}
		updates[col] = *v
	}
	if len(updates) == 0 {
		return nil, apperr.Wrap(apperr.ErrValidation, "no fields to update")
	}

	res := e.db.Model(&models.Task{}).
		Where("id = ? AND user_id = ? AND status = ?", id, actor.ID, models.StatusPending).
		Updates(updates)
	if res.Error != nil {
		return nil, e.upstream("edit task", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Wrap(apperr.ErrConflict, "task is no longer pending")
	}
	return e.afterTransition(id, models.StatusPending)
}

// Claim is the contested pending → accepted transition. The conditional
// write is the arbitration point: of N concurrent riders exactly one
// update matches the still-pending row; everyone else sees zero rows
// affected and gets Conflict, never a silent no-op.
func (e *Engine) Claim(actor policy.Actor, id uint) (*models.Task, error) {
	task, err := e.fetch(id)
	if err != nil {
		return nil, err
	}
	if err := policy.CanClaim(actor, task); err != nil {
		return nil, err
	}

	res := e.db.Model(&models.Task{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(map[string]any{
			"status":            models.StatusAccepted,
			"assigned_rider_id": actor.ID,
		})
	if res.Error != nil {
		return nil, e.upstream("claim task", res.Error)
	}
	if res.RowsAffected == 0 {
		// Not "not found"; existence was established above. Another
		// rider won the race between our read and this write.
		return nil, apperr.Wrap(apperr.ErrConflict, "task has already been taken")
	}
	return e.afterTransition(id, models.StatusAccepted)
}

// Advance moves an accepted task along the fulfilment path:
// accepted → on_the_way → completed. Assigned rider only, immediate
// successor only.
func (e *Engine) Advance(actor policy.Actor, id uint, to models.TaskStatus) (*models.Task, error) {
	task, err := e.fetch(id)
	if err != nil {
		return nil, err
	}
	if err := policy.CanAdvance(actor, task, to); err != nil {
		return nil, err
	}

	res := e.db.Model(&models.Task{}).
		Where("id = ? AND status = ? AND assigned_rider_id = ?", id, task.Status, actor.ID).
		Update("status", to)
	if res.Error != nil {
		return nil, e.upstream("advance task", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Wrap(apperr.ErrConflict, "task state changed underneath you")
	}
	return e.afterTransition(id, to)
}

// Cancel is the customer-side pending → cancelled transition, with the
// same all-or-nothing conditional write as Claim.
func (e *Engine) Cancel(actor policy.Actor, id uint) (*models.Task, error) {
	task, err := e.fetch(id)
	if err != nil {
		return nil, err
	}
	if err := policy.CanCancel(actor, task); err != nil {
		return nil, err
	}

	res := e.db.Model(&models.Task{}).
		Where("id = ? AND user_id = ? AND status = ?", id, actor.ID, models.StatusPending).
		Update("status", models.StatusCancelled)
	if res.Error != nil {
		return nil, e.upstream("cancel task", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Wrap(apperr.ErrConflict, "task is no longer pending")
	}
	return e.afterTransition(id, models.StatusCancelled)
}

// ListMine returns a customer's own tasks, newest first.
func (e *Engine) ListMine(actor policy.Actor) ([]models.Task, error) {
	return e.list("user_id = ?", actor.ID)
}

// ListAvailable returns every still-pending task, for riders browsing work.
func (e *Engine) ListAvailable(actor policy.Actor) ([]models.Task, error) {
	if actor.Role != models.RoleRider {
		return nil, apperr.Wrap(apperr.ErrForbidden, "access denied")
	}
	return e.list("status = ?", models.StatusPending)
}

// ListActive returns a rider's in-flight assignments.
func (e *Engine) ListActive(actor policy.Actor) ([]models.Task, error) {
	if actor.Role != models.RoleRider {
		return nil, apperr.Wrap(apperr.ErrForbidden, "access denied")
	}
	return e.list("assigned_rider_id = ? AND status IN ?", actor.ID,
		[]models.TaskStatus{models.StatusAccepted, models.StatusOnTheWay})
}

// ListHistory returns a rider's finished assignments.
func (e *Engine) ListHistory(actor policy.Actor) ([]models.Task, error) {
	if actor.Role != models.RoleRider {
		return nil, apperr.Wrap(apperr.ErrForbidden, "access denied")
	}
	return e.list("assigned_rider_id = ? AND status IN ?", actor.ID,
		[]models.TaskStatus{models.StatusCompleted, models.StatusCancelled})
}

func (e *Engine) list(query string, args ...any) ([]models.Task, error) {
	var tasks []models.Task
	if err := e.db.Where(query, args...).Order("created_at desc").Find(&tasks).Error; err != nil {
		return nil, e.upstream("list tasks", err)
	}
	return tasks, nil
}

func (e *Engine) fetch(id uint) (*models.Task, error) {
	var task models.Task
	if err := e.db.First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Wrap(apperr.ErrNotFound, "task not found")
		}
		return nil, e.upstream("fetch task", err)
	}
	return &task, nil
}

// afterTransition reloads the row for the response and publishes
// exactly one status-update to the task's room. The notification and
// the reported status are this transition's own result: the row may
// already have moved on under a concurrent writer, and echoing the
// re-read would duplicate the later status and lose this one.
func (e *Engine) afterTransition(id uint, status models.TaskStatus) (*models.Task, error) {
	task, err := e.fetch(id)
	if err != nil {
		return nil, err
	}
	task.Status = status
	if e.bus != nil {
		e.bus.Publish(RoomKey(task.ID), "status-update", StatusUpdate{Status: status})
	}
	if e.metrics != nil {
		e.metrics.TaskTransitions.WithLabelValues(string(status)).Inc()
	}
	return task, nil
}

func (e *Engine) upstream(op string, err error) error {
	if e.metrics != nil {
		e.metrics.UpstreamFailures.WithLabelValues("store").Inc()
	}
	return apperr.Wrap(apperr.ErrUpstream, "%s: %v", op, err)
}
