package customer

import (
	"time"
)

// Customer represents a registered customer account.
type Customer struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string     `gorm:"type:varchar(255);not null" json:"name"`
	Email     string     `gorm:"type:varchar(255);not null;unique" json:"email"`
	Phone     string     `gorm:"type:varchar(20);not null" json:"phone"`
	Address   string     `gorm:"type:text" json:"address"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}
