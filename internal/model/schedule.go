package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Frequency string

const (
	FrequencyManual  Frequency = "manual"
	FrequencyHourly  Frequency = "hourly"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

type ScheduleStatus string

const (
	ScheduleStatusIdle    ScheduleStatus = "idle"
	ScheduleStatusRunning ScheduleStatus = "running"
	ScheduleStatusSuccess ScheduleStatus = "success"
	ScheduleStatusFailed  ScheduleStatus = "failed"
)

type EndpointType string

const (
	EndpointFTP   EndpointType = "ftp"
	EndpointLocal EndpointType = "local"
)

type Endpoint struct {
	Type EndpointType `json:"type"`
	Path string       `json:"path"`
}

type SyncOptions struct {
	FilePatterns      []string `json:"filePatterns"`
	IncludeSubfolders bool     `json:"includeSubfolders"`
	OverwriteExisting bool     `json:"overwriteExisting"`
	DeleteAfterSync   bool     `json:"deleteAfterSync"`
}

// SyncSchedule is a named recurring sync job scoped to a connection.
// (ConnectionID, Name) is unique together.
type SyncSchedule struct {
	gorm.Model
	ConnectionID uint           `gorm:"not null;index;uniqueIndex:idx_conn_name" json:"connectionId"`
	Name         string         `gorm:"not null;uniqueIndex:idx_conn_name" json:"name"`
	Frequency    Frequency      `gorm:"not null" json:"frequency"`
	Time         string         `gorm:"not null;default:'00:00'" json:"time"`
	DayOfWeek    int            `json:"dayOfWeek"`
	DayOfMonth   int            `gorm:"default:1" json:"dayOfMonth"`
	Source       Endpoint       `gorm:"serializer:json;not null" json:"source"`
	Destination  Endpoint       `gorm:"serializer:json;not null" json:"destination"`
	Options      SyncOptions    `gorm:"serializer:json" json:"options"`
	Enabled      bool           `gorm:"not null;default:true" json:"enabled"`
	Status       ScheduleStatus `gorm:"not null;default:'idle'" json:"status"`
	NextRun      *time.Time     `json:"nextRun"`
	LastRun      *time.Time     `json:"lastRun"`
}

// Topology is one of the three supported source/destination pairings.
type Topology int

const (
	TopologyInvalid Topology = iota
	TopologyFTPToLocal
	TopologyLocalToFTP
	TopologyFTPToFTP
)

func (s *SyncSchedule) Topology() Topology {
	switch {
	case s.Source.Type == EndpointFTP && s.Destination.Type == EndpointLocal:
		return TopologyFTPToLocal
	case s.Source.Type == EndpointLocal && s.Destination.Type == EndpointFTP:
		return TopologyLocalToFTP
	case s.Source.Type == EndpointFTP && s.Destination.Type == EndpointFTP:
		return TopologyFTPToFTP
	default:
		return TopologyInvalid
	}
}

func (s *SyncSchedule) Validate() error {
	switch s.Frequency {
	case FrequencyManual, FrequencyHourly, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return fmt.Errorf("unsupported frequency: %s", s.Frequency)
	}

	if s.Topology() == TopologyInvalid {
		return fmt.Errorf("unsupported sync topology: %s -> %s", s.Source.Type, s.Destination.Type)
	}

	if s.Frequency == FrequencyWeekly && (s.DayOfWeek < 0 || s.DayOfWeek > 6) {
		return fmt.Errorf("day_of_week must be 0-6, got %d", s.DayOfWeek)
	}

	if s.Frequency == FrequencyMonthly && (s.DayOfMonth < 1 || s.DayOfMonth > 31) {
		return fmt.Errorf("day_of_month must be 1-31, got %d", s.DayOfMonth)
	}

	return nil
}
