package models

import "time"

// TaskStatus represents all possible states of a delivery task
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusAccepted  TaskStatus = "accepted"
	StatusOnTheWay  TaskStatus = "on_the_way"
	StatusCompleted TaskStatus = "completed"
	StatusCancelled TaskStatus = "cancelled"
)

type Task struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	UserID          uint       `json:"user_id" gorm:"not null;index"`
	User            User       `json:"user,omitempty" gorm:"foreignKey:UserID"`
	AssignedRiderID *uint      `json:"assigned_rider_id" gorm:"index"`
	AssignedRider   *User      `json:"assigned_rider,omitempty" gorm:"foreignKey:AssignedRiderID"`
	Status          TaskStatus `json:"status" gorm:"not null;default:'pending'"`
	Name            string     `json:"name" gorm:"not null"`
	Task            string     `json:"task" gorm:"not null"` // what the rider is asked to do
	Pickup          string     `json:"pickup" gorm:"not null"`
	Dropoff         string     `json:"dropoff" gorm:"not null"`
	Datetime        string     `json:"datetime" gorm:"not null"` // requested schedule, as given by the client
	Notes           string     `json:"notes"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
