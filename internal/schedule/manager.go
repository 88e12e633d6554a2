package schedule

import (
	"errors"
	"fmt"
	"time"

	"terrasync/internal/logger"
	"terrasync/internal/model"
	"terrasync/internal/repository"

	"go.uber.org/zap"
)

// ErrInvalidSchedule marks a schedule rejected for bad field values, as
// opposed to a storage failure. The API layer maps it to a client error.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Manager owns the SyncSchedule records: CRUD plus the due query the
// scheduler loop polls.
type Manager struct {
	repo *repository.ScheduleRepository
}

func NewManager() *Manager {
	return &Manager{repo: repository.NewScheduleRepository()}
}

func validate(schedule *model.SyncSchedule) error {
	if err := schedule.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	if schedule.Frequency != model.FrequencyManual {
		if _, _, err := ParseClock(schedule.Time); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
	}

	return nil
}

func (m *Manager) Create(schedule *model.SyncSchedule) error {
	if err := validate(schedule); err != nil {
		return err
	}

	next := NextRun(schedule, time.Now())
	schedule.NextRun = &next
	schedule.Status = model.ScheduleStatusIdle

	if err := m.repo.Create(schedule); err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}

	logger.Log.Info("schedule created",
		zap.Uint("connection", schedule.ConnectionID),
		zap.String("name", schedule.Name),
		zap.String("frequency", string(schedule.Frequency)),
		zap.Timep("next_run", schedule.NextRun))

	return nil
}

// Update carries a partial schedule update; nil fields are left untouched.
type Update struct {
	Frequency   *model.Frequency
	Time        *string
	DayOfWeek   *int
	DayOfMonth  *int
	Source      *model.Endpoint
	Destination *model.Endpoint
	Options     *model.SyncOptions
	Enabled     *bool
}

func (u Update) touchesTiming() bool {
	return u.Frequency != nil || u.Time != nil || u.DayOfWeek != nil || u.DayOfMonth != nil
}

func (m *Manager) Update(connectionID uint, name string, update Update) (model.SyncSchedule, error) {
	schedule, err := m.repo.GetByName(connectionID, name)
	if err != nil {
		return schedule, err
	}

	if update.Frequency != nil {
		schedule.Frequency = *update.Frequency
	}
	if update.Time != nil {
		schedule.Time = *update.Time
	}
	if update.DayOfWeek != nil {
		schedule.DayOfWeek = *update.DayOfWeek
	}
	if update.DayOfMonth != nil {
		schedule.DayOfMonth = *update.DayOfMonth
	}
	if update.Source != nil {
		schedule.Source = *update.Source
	}
	if update.Destination != nil {
		schedule.Destination = *update.Destination
	}
	if update.Options != nil {
		schedule.Options = *update.Options
	}
	if update.Enabled != nil {
		schedule.Enabled = *update.Enabled
	}

	if err := validate(&schedule); err != nil {
		return schedule, err
	}

	// nextRun only moves when a timing field changed.
	if update.touchesTiming() {
		next := NextRun(&schedule, time.Now())
		schedule.NextRun = &next
	}

	if err := m.repo.Save(&schedule); err != nil {
		return schedule, fmt.Errorf("failed to update schedule: %w", err)
	}

	return schedule, nil
}

func (m *Manager) Delete(connectionID uint, name string) error {
	return m.repo.Delete(connectionID, name)
}

func (m *Manager) Get(connectionID uint, name string) (model.SyncSchedule, error) {
	return m.repo.GetByName(connectionID, name)
}

func (m *Manager) List(connectionID uint) ([]model.SyncSchedule, error) {
	if connectionID == 0 {
		return m.repo.GetAll()
	}

	return m.repo.GetByConnection(connectionID)
}

func (m *Manager) Due(now time.Time) ([]model.SyncSchedule, error) {
	return m.repo.GetDue(now)
}
