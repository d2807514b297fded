package statemachine

import (
	"errors"

	"github.com/Lupao-eth/triptask-backend/models"
)

// Transition defines a valid state change and who can perform it
type Transition struct {
	From  models.TaskStatus
	To    models.TaskStatus
	Actor models.UserRole
}

// validTransitions is the authoritative state machine definition.
// Statuses move forward only; completed and cancelled are terminal.
var validTransitions = []Transition{
	// Customer edits keep the task where it is; only possible while pending
	{From: models.StatusPending, To: models.StatusPending, Actor: models.RoleCustomer},
	// Customer cancels a pending task
	{From: models.StatusPending, To: models.StatusCancelled, Actor: models.RoleCustomer},
	// Rider claims a pending task
	{From: models.StatusPending, To: models.StatusAccepted, Actor: models.RoleRider},
	// Assigned rider advances the fulfilment
	{From: models.StatusAccepted, To: models.StatusOnTheWay, Actor: models.RoleRider},
	{From: models.StatusOnTheWay, To: models.StatusCompleted, Actor: models.RoleRider},
}

type transitionKey struct {
	From  models.TaskStatus
	To    models.TaskStatus
	Actor models.UserRole
}

// Build a lookup map for O(1) validation
var transitionMap = func() map[transitionKey]bool {
	m := make(map[transitionKey]bool)
	for _, t := range validTransitions {
		m[transitionKey{t.From, t.To, t.Actor}] = true
	}
	return m
}()

// CanTransition checks if a given actor role can move a task between states
func CanTransition(from, to models.TaskStatus, actor models.UserRole) bool {
	return transitionMap[transitionKey{From: from, To: to, Actor: actor}]
}

// Next returns the single fulfilment successor of a status, for the
// rider advance path: accepted → on_the_way → completed.
func Next(from models.TaskStatus) (models.TaskStatus, error) {
	switch from {
	case models.StatusAccepted:
		return models.StatusOnTheWay, nil
	case models.StatusOnTheWay:
		return models.StatusCompleted, nil
	}
	return "", errors.New("no successor from " + string(from))
}

// IsTerminal reports whether no transition leaves the given status.
func IsTerminal(status models.TaskStatus) bool {
	return status == models.StatusCompleted || status == models.StatusCancelled
}

// ValidTransitionsFrom returns all valid next states from a given state
func ValidTransitionsFrom(status models.TaskStatus) []models.TaskStatus {
	var nexts []models.TaskStatus
	seen := map[models.TaskStatus]bool{}
	for _, t := range validTransitions {
		if t.From == status && t.To != t.From && !seen[t.To] {
			nexts = append(nexts, t.To)
			seen[t.To] = true
		}
	}
	return nexts
}

// GetAllTransitions returns the full state machine for documentation
func GetAllTransitions() []Transition {
	return validTransitions
}
