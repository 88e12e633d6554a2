package repository

import (
	"time"

	"terrasync/internal/db"
	"terrasync/internal/model"
)

type HistoryRepository struct{}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{}
}

func (r *HistoryRepository) Create(history *model.SyncHistory) error {
	return db.DB.Create(history).Error
}

func (r *HistoryRepository) Save(history *model.SyncHistory) error {
	return db.DB.Save(history).Error
}

func (r *HistoryRepository) GetBySchedule(scheduleID uint, limit int) ([]model.SyncHistory, error) {
	var histories []model.SyncHistory
	result := db.DB.
		Where("schedule_id = ?", scheduleID).
		Order("start_time desc").
		Limit(limit).
		Find(&histories)

	return histories, result.Error
}

func (r *HistoryRepository) GetByConnection(connectionID uint, limit int) ([]model.SyncHistory, error) {
	var histories []model.SyncHistory
	result := db.DB.
		Where("connection_id = ?", connectionID).
		Order("start_time desc").
		Limit(limit).
		Find(&histories)

	return histories, result.Error
}

// MarkOrphansFailed finalizes histories left running by a previous process.
func (r *HistoryRepository) MarkOrphansFailed(reason string) (int64, error) {
	var orphans []model.SyncHistory
	if err := db.DB.Where("status = ?", model.RunStatusRunning).Find(&orphans).Error; err != nil {
		return 0, err
	}

	now := time.Now()
	var count int64
	for i := range orphans {
		orphans[i].Status = model.RunStatusFailed
		orphans[i].EndTime = &now
		orphans[i].Errors = append(orphans[i].Errors, reason)
		if err := db.DB.Save(&orphans[i]).Error; err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}
