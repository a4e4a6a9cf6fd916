package coverage

import (
	"fmt"
	"testing"
	"time"

	"homecare-booking/database"
	workerModel "homecare-booking/models/worker"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func seedCoveredWorker(t *testing.T, db *gorm.DB, name string, active bool, zip string, distanceKm float64) workerModel.Worker {
	t.Helper()
	w := workerModel.Worker{
		Name:        name,
		Phone:       "3125550100",
		Email:       fmt.Sprintf("%s@example.com", name),
		WorkingDays: "1,2,3,4,5",
		IsActive:    active,
	}
	require.NoError(t, db.Create(&w).Error)
	require.NoError(t, db.Create(&workerModel.CoverageZone{
		WorkerID:   w.ID,
		Zip:        zip,
		DistanceKm: distanceKm,
	}).Error)
	return w
}

func TestResolve_OrdersByDistance(t *testing.T) {
	db := openTestDB(t)
	far := seedCoveredWorker(t, db, "far", true, "60601", 11.5)
	near := seedCoveredWorker(t, db, "near", true, "60601", 2.0)

	result, err := NewService(db).Resolve("60601")
	require.NoError(t, err)
	assert.True(t, result.HasCoverage)
	require.Len(t, result.Eligible, 2)
	assert.Equal(t, near.ID, result.Eligible[0].Worker.ID)
	assert.Equal(t, far.ID, result.Eligible[1].Worker.ID)
}

func TestResolve_SkipsInactiveAndDeletedWorkers(t *testing.T) {
	db := openTestDB(t)
	seedCoveredWorker(t, db, "inactive", false, "60601", 1.0)
	gone := seedCoveredWorker(t, db, "gone", true, "60601", 2.0)
	deletedAt := time.Now()
	require.NoError(t, db.Model(&workerModel.Worker{}).
		Where("id = ?", gone.ID).Update("deleted_at", deletedAt).Error)
	kept := seedCoveredWorker(t, db, "kept", true, "60601", 3.0)

	result, err := NewService(db).Resolve("60601")
	require.NoError(t, err)
	require.Len(t, result.Eligible, 1)
	assert.Equal(t, kept.ID, result.Eligible[0].Worker.ID)
}

func TestResolve_NoZonesMeansNoCoverage(t *testing.T) {
	db := openTestDB(t)
	seedCoveredWorker(t, db, "elsewhere", true, "60601", 1.0)

	result, err := NewService(db).Resolve("99999")
	require.NoError(t, err)
	assert.False(t, result.HasCoverage)
	assert.Empty(t, result.Eligible)
}
