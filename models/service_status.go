package models

import "time"

// ServiceStatus is the global circuit breaker for task and chat
// mutation. A single row (ID=1) is seeded at migration time and
// updated in place; it is never deleted. Version increments on every
// write so concurrent flips are arbitrated instead of silently
// overwriting each other.
type ServiceStatus struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	IsOnline  bool      `json:"is_online"`
	Version   uint      `json:"version" gorm:"not null;default:1"`
	UpdatedAt time.Time `json:"updated_at"`
}
