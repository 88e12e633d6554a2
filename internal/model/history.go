package model

import (
	"time"

	"gorm.io/gorm"
)

type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

type FileStatus string

const (
	FileStatusSuccess FileStatus = "success"
	FileStatusSkipped FileStatus = "skipped"
	FileStatusFailed  FileStatus = "failed"
)

// FileDetail records the outcome for a single file within a run.
type FileDetail struct {
	File   string     `json:"file"`
	Status FileStatus `json:"status"`
	Size   int64      `json:"size"`
	Reason string     `json:"reason,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// SyncHistory is the record of one execution. It is created in the running
// state before any transfer happens so a crash mid-run stays observable.
type SyncHistory struct {
	gorm.Model
	ConnectionID     uint         `gorm:"not null;index" json:"connectionId"`
	ScheduleID       uint         `gorm:"not null;index" json:"scheduleId"`
	ScheduleName     string       `gorm:"not null" json:"scheduleName"`
	Status           RunStatus    `gorm:"not null" json:"status"`
	FilesTransferred int          `json:"filesTransferred"`
	TotalBytes       int64        `json:"totalBytes"`
	StartTime        time.Time    `gorm:"not null" json:"startTime"`
	EndTime          *time.Time   `json:"endTime"`
	Errors           []string     `gorm:"serializer:json" json:"errors"`
	Files            []FileDetail `gorm:"serializer:json" json:"files"`
}

// RecordFile appends one file outcome and keeps the counters in step.
func (h *SyncHistory) RecordFile(detail FileDetail) {
	h.Files = append(h.Files, detail)
	if detail.Status == FileStatusSuccess {
		h.FilesTransferred++
		h.TotalBytes += detail.Size
	}
	if detail.Status == FileStatusFailed && detail.Error != "" {
		h.Errors = append(h.Errors, detail.Error)
	}
}
