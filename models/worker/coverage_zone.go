package worker

import (
	"time"
)

// CoverageZone maps a worker to a ZIP code they serve. The geographic
// eligibility computation itself happens upstream; this table is its
// materialized result and the only coverage input the booking core reads.
type CoverageZone struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	WorkerID uint   `gorm:"not null;index:idx_coverage_zones_worker_zip" json:"worker_id"`
	Worker   Worker `gorm:"foreignKey:WorkerID" json:"worker"`

	Zip string `gorm:"type:varchar(10);not null;index:idx_coverage_zones_worker_zip;index" json:"zip"`

	// DistanceKm orders broadcast candidates, closest first.
	DistanceKm float64 `gorm:"not null;default:0" json:"distance_km"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
