package repository

import (
	"errors"
	"fmt"
	"time"

	"terrasync/internal/db"
	"terrasync/internal/model"

	"gorm.io/gorm"
)

// ErrNotFound is returned by lookups for schedules or connections that do
// not exist.
var ErrNotFound = errors.New("not found")

type ScheduleRepository struct{}

func NewScheduleRepository() *ScheduleRepository {
	return &ScheduleRepository{}
}

func (r *ScheduleRepository) Create(schedule *model.SyncSchedule) error {
	return db.DB.Create(schedule).Error
}

func (r *ScheduleRepository) GetAll() ([]model.SyncSchedule, error) {
	var schedules []model.SyncSchedule
	return schedules, db.DB.Find(&schedules).Error
}

func (r *ScheduleRepository) GetByConnection(connectionID uint) ([]model.SyncSchedule, error) {
	var schedules []model.SyncSchedule
	return schedules, db.DB.
		Where("connection_id = ?", connectionID).
		Find(&schedules).Error
}

func (r *ScheduleRepository) GetByName(connectionID uint, name string) (model.SyncSchedule, error) {
	var schedule model.SyncSchedule
	err := db.DB.
		Where("connection_id = ? AND name = ?", connectionID, name).
		First(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return schedule, fmt.Errorf("schedule %q on connection %d: %w", name, connectionID, ErrNotFound)
	}

	return schedule, err
}

func (r *ScheduleRepository) Save(schedule *model.SyncSchedule) error {
	return db.DB.Save(schedule).Error
}

func (r *ScheduleRepository) Delete(connectionID uint, name string) error {
	result := db.DB.
		Where("connection_id = ? AND name = ?", connectionID, name).
		Delete(&model.SyncSchedule{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("schedule %q on connection %d: %w", name, connectionID, ErrNotFound)
	}

	return nil
}

// GetDue returns enabled schedules whose nextRun has elapsed and which are
// not already marked running.
func (r *ScheduleRepository) GetDue(now time.Time) ([]model.SyncSchedule, error) {
	var schedules []model.SyncSchedule
	return schedules, db.DB.
		Where("enabled = ? AND next_run IS NOT NULL AND next_run <= ? AND status <> ?",
			true, now, model.ScheduleStatusRunning).
		Find(&schedules).Error
}

func (r *ScheduleRepository) UpdateStatus(id uint, status model.ScheduleStatus) error {
	return db.DB.Model(&model.SyncSchedule{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// ResetRunning flips any schedule left in the running state back to idle.
// Called once at boot; the in-memory registry is empty then, so no run can
// legitimately be in flight.
func (r *ScheduleRepository) ResetRunning() (int64, error) {
	result := db.DB.Model(&model.SyncSchedule{}).
		Where("status = ?", model.ScheduleStatusRunning).
		Update("status", model.ScheduleStatusIdle)

	return result.RowsAffected, result.Error
}
