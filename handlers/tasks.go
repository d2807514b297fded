package handlers

import (
	"net/http"
	"strconv"

	"github.com/Lupao-eth/triptask-backend/apperr"
	"github.com/Lupao-eth/triptask-backend/lifecycle"
	"github.com/Lupao-eth/triptask-backend/middleware"
	"github.com/Lupao-eth/triptask-backend/models"
	"github.com/Lupao-eth/triptask-backend/policy"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	Engine *lifecycle.Engine
}

type CreateTaskRequest struct {
	Name     string `json:"name" binding:"required"`
	Task     string `json:"task" binding:"required"`
	Pickup   string `json:"pickup" binding:"required"`
	Dropoff  string `json:"dropoff" binding:"required"`
	Datetime string `json:"datetime" binding:"required"`
	Notes    string `json:"notes"`
}

// UpdateTaskRequest carries either a customer's field edit or a rider's
// status change; which operation runs is decided in Update. Edit fields
// are pointers so an absent key is distinguishable from an empty value
// and leaves the stored field untouched.
type UpdateTaskRequest struct {
	Name     *string           `json:"name"`
	Pickup   *string           `json:"pickup"`
	Dropoff  *string           `json:"dropoff"`
	Datetime *string           `json:"datetime"`
	Notes    *string           `json:"notes"`
	Status   models.TaskStatus `json:"status"`
}

func actorFrom(c *gin.Context) policy.Actor {
	return policy.Actor{ID: middleware.GetUserID(c), Role: middleware.GetRole(c)}
}

func taskID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrValidation, "invalid task ID")
	}
	return uint(id), nil
}

// ListMine returns the calling customer's tasks, newest first.
func (h *TaskHandler) ListMine(c *gin.Context) {
	tasks, err := h.Engine.ListMine(actorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(tasks), "tasks": tasks})
}

// ListAvailable returns pending tasks riders can claim.
func (h *TaskHandler) ListAvailable(c *gin.Context) {
	tasks, err := h.Engine.ListAvailable(actorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(tasks), "tasks": tasks})
}

// ListActive returns the calling rider's in-flight assignments.
func (h *TaskHandler) ListActive(c *gin.Context) {
	tasks, err := h.Engine.ListActive(actorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(tasks), "tasks": tasks})
}

// ListHistory returns the calling rider's finished assignments.
func (h *TaskHandler) ListHistory(c *gin.Context) {
	tasks, err := h.Engine.ListHistory(actorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(tasks), "tasks": tasks})
}

// Get returns a single task.
func (h *TaskHandler) Get(c *gin.Context) {
	id, err := taskID(c)
	if err != nil {
		fail(c, err)
		return
	}
	task, err := h.Engine.Get(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

// Create makes a new pending task for the calling customer.
func (h *TaskHandler) Create(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := h.Engine.Create(actorFrom(c), lifecycle.CreateRequest{
		Name:     req.Name,
		Task:     req.Task,
		Pickup:   req.Pickup,
		Dropoff:  req.Dropoff,
		Datetime: req.Datetime,
		Notes:    req.Notes,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Task saved successfully", "task": task})
}

// Update routes the one PUT endpoint to the explicit engine operation:
// customers edit fields, riders either claim or advance. Each operation
// carries its own precondition; there is no role-implicit fallthrough.
func (h *TaskHandler) Update(c *gin.Context) {
	id, err := taskID(c)
	if err != nil {
		fail(c, err)
		return
	}
	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := actorFrom(c)
	var task *models.Task
	switch actor.Role {
	case models.RoleCustomer:
		task, err = h.Engine.Edit(actor, id, lifecycle.EditRequest{
			Name:     req.Name,
			Pickup:   req.Pickup,
			Dropoff:  req.Dropoff,
			Datetime: req.Datetime,
			Notes:    req.Notes,
		})
	case models.RoleRider:
		if req.Status == "" || req.Status == models.StatusAccepted {
			task, err = h.Engine.Claim(actor, id)
		} else {
			task, err = h.Engine.Advance(actor, id, req.Status)
		}
	default:
		err = apperr.Wrap(apperr.ErrForbidden, "unauthorized update")
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task updated", "task": task})
}

// Delete cancels a still-pending task owned by the caller.
func (h *TaskHandler) Delete(c *gin.Context) {
	id, err := taskID(c)
	if err != nil {
		fail(c, err)
		return
	}
	task, err := h.Engine.Cancel(actorFrom(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task cancelled successfully", "task": task})
}
