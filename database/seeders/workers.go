package seeders

import (
	"log"

	workerModel "homecare-booking/models/worker"

	"gorm.io/gorm"
)

// SeedWorkers loads the initial worker roster and their coverage zones.
// Zones are the materialized output of the upstream ZIP-polygon computation.
func SeedWorkers(db *gorm.DB) {
	log.Printf("🔍 Checking worker roster data integrity...")

	workers := []workerModel.Worker{
		{Name: "Alvaro Reyes", Phone: "312-555-0134", Email: "alvaro.reyes@homecare.example", WorkingDays: "1,2,3,4,5"},
		{Name: "Dana Whitfield", Phone: "312-555-0172", Email: "dana.whitfield@homecare.example", WorkingDays: "1,2,3,4,5,6"},
		{Name: "Marcus Oyelaran", Phone: "773-555-0118", Email: "marcus.oyelaran@homecare.example", WorkingDays: "0,2,3,4,6"},
		{Name: "Priya Natarajan", Phone: "773-555-0190", Email: "priya.natarajan@homecare.example", WorkingDays: "1,3,5,6"},
	}

	zonesByEmail := map[string][]workerModel.CoverageZone{
		"alvaro.reyes@homecare.example": {
			{Zip: "60601", DistanceKm: 2.1},
			{Zip: "60602", DistanceKm: 2.8},
			{Zip: "60605", DistanceKm: 4.5},
		},
		"dana.whitfield@homecare.example": {
			{Zip: "60601", DistanceKm: 6.0},
			{Zip: "60614", DistanceKm: 1.2},
			{Zip: "60657", DistanceKm: 3.4},
		},
		"marcus.oyelaran@homecare.example": {
			{Zip: "60614", DistanceKm: 5.6},
			{Zip: "60640", DistanceKm: 2.0},
			{Zip: "60601", DistanceKm: 9.3},
		},
		"priya.natarajan@homecare.example": {
			{Zip: "60605", DistanceKm: 1.9},
			{Zip: "60640", DistanceKm: 7.7},
		},
	}

	for _, w := range workers {
		var existing workerModel.Worker
		err := db.Where("email = ?", w.Email).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			log.Printf("❌ Failed to check worker %s: %v", w.Email, err)
			continue
		}

		if err := db.Create(&w).Error; err != nil {
			log.Printf("❌ Failed to seed worker %s: %v", w.Email, err)
			continue
		}

		zones := zonesByEmail[w.Email]
		for i := range zones {
			zones[i].WorkerID = w.ID
		}
		if len(zones) > 0 {
			if err := db.Create(&zones).Error; err != nil {
				log.Printf("❌ Failed to seed coverage zones for %s: %v", w.Email, err)
			}
		}

		log.Printf("✅ Seeded worker %s with %d coverage zones", w.Email, len(zones))
	}
}
