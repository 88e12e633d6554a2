// Package activity is the fire-and-forget audit sink. Recording failures
// are logged and swallowed; a sync run must never abort because the feed
// could not be written.
package activity

import (
	"terrasync/internal/db"
	"terrasync/internal/logger"
	"terrasync/internal/model"

	"go.uber.org/zap"
)

type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Record(action, icon, iconColor string) {
	entry := model.Activity{
		Action:    action,
		Icon:      icon,
		IconColor: iconColor,
	}

	if err := db.DB.Create(&entry).Error; err != nil {
		logger.Log.Warn("failed to record activity",
			zap.String("action", action),
			zap.Error(err))
	}
}

func (r *Recorder) Recent(limit int) ([]model.Activity, error) {
	var entries []model.Activity
	result := db.DB.
		Order("created_at desc").
		Limit(limit).
		Find(&entries)

	return entries, result.Error
}
