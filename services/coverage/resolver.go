package coverage

import (
	workerModel "homecare-booking/models/worker"

	"gorm.io/gorm"
)

// Candidate is one eligible worker with their distance score for the
// requested location.
type Candidate struct {
	Worker     workerModel.Worker
	DistanceKm float64
}

// Result is the coverage lookup outcome for a location.
type Result struct {
	Eligible    []Candidate
	HasCoverage bool
}

// Resolver answers which workers can serve a location. Pure query, no
// mutation. The geographic eligibility computation happens upstream; this
// reads its materialized coverage_zones result.
type Resolver interface {
	Resolve(zip string) (*Result, error)
}

// Service is the database-backed Resolver.
type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// Resolve returns the active workers covering the given ZIP, closest first.
func (s *Service) Resolve(zip string) (*Result, error) {
	var zones []workerModel.CoverageZone
	err := s.DB.Preload("Worker").
		Joins("JOIN workers ON workers.id = coverage_zones.worker_id").
		Where("coverage_zones.zip = ? AND workers.is_active = ? AND workers.deleted_at IS NULL", zip, true).
		Order("coverage_zones.distance_km ASC").
		Find(&zones).Error
	if err != nil {
		return nil, err
	}

	result := &Result{HasCoverage: len(zones) > 0}
	for _, z := range zones {
		result.Eligible = append(result.Eligible, Candidate{
			Worker:     z.Worker,
			DistanceKm: z.DistanceKm,
		})
	}
	return result, nil
}
