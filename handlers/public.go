package handlers

import (
	"net/http"

	"github.com/Lupao-eth/triptask-backend/models"
	"github.com/Lupao-eth/triptask-backend/statemachine"

	"github.com/gin-gonic/gin"
)

// GetStateMachineInfo returns the full task lifecycle for informational purposes
func GetStateMachineInfo(c *gin.Context) {
	var info []gin.H
	for _, t := range statemachine.GetAllTransitions() {
		info = append(info, gin.H{"from": t.From, "to": t.To, "actor": t.Actor})
	}

	var terminal []models.TaskStatus
	for _, s := range []models.TaskStatus{
		models.StatusPending, models.StatusAccepted, models.StatusOnTheWay,
		models.StatusCompleted, models.StatusCancelled,
	} {
		if statemachine.IsTerminal(s) {
			terminal = append(terminal, s)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"state_machine":   info,
		"terminal_states": terminal,
		"description":     "TripTask Lifecycle State Machine",
	})
}
