package worker

import (
	"strconv"
	"strings"
	"time"
)

// Worker represents a field worker who can be bound to bookings.
type Worker struct {
	ID    uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name  string `gorm:"type:varchar(255);not null" json:"name"`
	Phone string `gorm:"type:varchar(20);not null" json:"phone"`
	Email string `gorm:"type:varchar(255);not null;unique" json:"email"`

	// WorkingDays is a comma separated list of weekday numbers (0=Sunday).
	WorkingDays string `gorm:"type:varchar(20);not null;default:'1,2,3,4,5'" json:"working_days"`

	IsActive  bool       `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}

// WorksOn reports whether the worker is available on the given weekday.
func (w *Worker) WorksOn(day time.Weekday) bool {
	for _, part := range strings.Split(w.WorkingDays, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if time.Weekday(n) == day {
			return true
		}
	}
	return false
}
