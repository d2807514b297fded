// Package policy holds the pure authorization decisions consulted
// before every mutating operation. Functions inspect the actor and the
// current resource and return nil, ErrForbidden (role or ownership
// mismatch), ErrConflict (state precondition gone) or
// ErrInvalidTransition. They never touch storage.
package policy

import (
	"github.com/Lupao-eth/triptask-backend/apperr"
	"github.com/Lupao-eth/triptask-backend/models"
	"github.com/Lupao-eth/triptask-backend/statemachine"
)

// Actor is the authenticated identity a decision is made for.
type Actor struct {
	ID   uint
	Role models.UserRole
}

// Role and ownership are decided here; whether the state permits the
// move is delegated to the transition table, so Forbidden (who) and
// Conflict/InvalidTransition (when) stay distinct outcomes.

// CanEdit: only the owning customer, only while pending.
func CanEdit(actor Actor, task *models.Task) error {
	if actor.Role != models.RoleCustomer || task.UserID != actor.ID {
		return apperr.Wrap(apperr.ErrForbidden, "only the task owner can edit")
	}
	if !statemachine.CanTransition(task.Status, task.Status, models.RoleCustomer) {
		return apperr.Wrap(apperr.ErrConflict, "only pending tasks can be edited")
	}
	return nil
}

// CanCancel: only the owning customer, only while pending.
func CanCancel(actor Actor, task *models.Task) error {
	if actor.Role != models.RoleCustomer || task.UserID != actor.ID {
		return apperr.Wrap(apperr.ErrForbidden, "only the task owner can cancel")
	}
	if !statemachine.CanTransition(task.Status, models.StatusCancelled, models.RoleCustomer) {
		return apperr.Wrap(apperr.ErrConflict, "only pending tasks can be cancelled")
	}
	return nil
}

// CanClaim: any rider, but only while the task is still unclaimed.
// A non-pending task is Conflict ("already taken"), distinct from the
// Forbidden returned for a wrong role.
func CanClaim(actor Actor, task *models.Task) error {
	if actor.Role != models.RoleRider {
		return apperr.Wrap(apperr.ErrForbidden, "only riders can claim tasks")
	}
	if !statemachine.CanTransition(task.Status, models.StatusAccepted, models.RoleRider) {
		return apperr.Wrap(apperr.ErrConflict, "task has already been taken")
	}
	return nil
}

// CanAdvance: only the assigned rider, and only to the immediate
// successor of the current status.
func CanAdvance(actor Actor, task *models.Task, to models.TaskStatus) error {
	if actor.Role != models.RoleRider {
		return apperr.Wrap(apperr.ErrForbidden, "only riders can advance tasks")
	}
	if task.AssignedRiderID == nil || *task.AssignedRiderID != actor.ID {
		return apperr.Wrap(apperr.ErrForbidden, "you are not the assigned rider for this task")
	}
	next, err := statemachine.Next(task.Status)
	if err != nil || next != to {
		return apperr.Wrap(apperr.ErrInvalidTransition, "cannot move %s task to %s", task.Status, to)
	}
	return nil
}

// CanWriteServiceStatus: only admin or rider may flip the circuit breaker.
func CanWriteServiceStatus(role models.UserRole) error {
	if role != models.RoleAdmin && role != models.RoleRider {
		return apperr.Wrap(apperr.ErrForbidden, "only admin or rider can update service status")
	}
	return nil
}
