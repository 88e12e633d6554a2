package executor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"terrasync/internal/activity"
	"terrasync/internal/config"
	"terrasync/internal/db"
	"terrasync/internal/logger"
	"terrasync/internal/model"
	"terrasync/internal/repository"
	"terrasync/internal/schedule"
	"terrasync/internal/transfer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTransferClient is an in-memory remote endpoint. Error injection is
// keyed by path substring.
type fakeTransferClient struct {
	mu sync.Mutex

	connectErr error
	listings   map[string][]transfer.FileInfo
	listErr    map[string]error
	uploadErr  map[string]error
	existsErr  map[string]error
	existing   map[string]bool

	downloads []string
	uploads   []string
	deletes   []string

	blockCh chan struct{}
}

func newFakeClient() *fakeTransferClient {
	return &fakeTransferClient{
		listings:  make(map[string][]transfer.FileInfo),
		listErr:   make(map[string]error),
		uploadErr: make(map[string]error),
		existsErr: make(map[string]error),
		existing:  make(map[string]bool),
	}
}

func (f *fakeTransferClient) Connect() error {
	if f.blockCh != nil {
		<-f.blockCh
	}
	return f.connectErr
}

func (f *fakeTransferClient) List(remotePath string) ([]transfer.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.listErr[remotePath]; ok {
		return nil, err
	}
	return f.listings[remotePath], nil
}

func (f *fakeTransferClient) Download(remotePath, localPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.downloads = append(f.downloads, remotePath)
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(localPath, []byte("remote-data"), 0644)
}

func (f *fakeTransferClient) Upload(localPath, remotePath string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for key, err := range f.uploadErr {
		if key != "" && strings.Contains(remotePath, key) {
			return err
		}
	}

	f.uploads = append(f.uploads, remotePath)
	return nil
}

func (f *fakeTransferClient) Delete(remotePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletes = append(f.deletes, remotePath)
	return nil
}

func (f *fakeTransferClient) EnsureDirectory(string, bool) error { return nil }

func (f *fakeTransferClient) Exists(remotePath string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for key, err := range f.existsErr {
		if key != "" && strings.Contains(remotePath, key) {
			return false, err
		}
	}
	return f.existing[remotePath], nil
}

type fixture struct {
	exec    *Executor
	manager *schedule.Manager
	client  *fakeTransferClient
	conn    model.FTPConnection
}

func setup(t *testing.T) *fixture {
	t.Helper()
	logger.Log = zap.NewNop()
	require.NoError(t, db.Init(filepath.Join(t.TempDir(), "test.db")))

	conn := model.FTPConnection{
		Name:     "county-export",
		Host:     "ftp.example.com",
		Port:     21,
		Username: "assessor",
		Password: "secret",
	}
	require.NoError(t, repository.NewConnectionRepository().Create(&conn))

	cfg := &config.Config{
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
		ConnTimeout:   time.Second,
		TempDir:       t.TempDir(),
	}

	client := newFakeClient()
	manager := schedule.NewManager()
	exec := New(manager, activity.NewRecorder(), cfg)
	exec.newClient = func(model.FTPConnection) TransferClient { return client }

	return &fixture{exec: exec, manager: manager, client: client, conn: conn}
}

func (f *fixture) addSchedule(t *testing.T, name string, mutate func(*model.SyncSchedule)) model.SyncSchedule {
	t.Helper()

	sched := model.SyncSchedule{
		ConnectionID: f.conn.ID,
		Name:         name,
		Frequency:    model.FrequencyDaily,
		Time:         "02:00",
		Source:       model.Endpoint{Type: model.EndpointFTP, Path: "/export"},
		Destination:  model.Endpoint{Type: model.EndpointLocal, Path: t.TempDir()},
		Options:      model.SyncOptions{OverwriteExisting: true},
		Enabled:      true,
	}
	if mutate != nil {
		mutate(&sched)
	}

	require.NoError(t, f.manager.Create(&sched))
	return sched
}

func lastHistory(t *testing.T, scheduleID uint) model.SyncHistory {
	t.Helper()
	histories, err := repository.NewHistoryRepository().GetBySchedule(scheduleID, 1)
	require.NoError(t, err)
	require.NotEmpty(t, histories)
	return histories[0]
}

func TestRunRejectsDuplicate(t *testing.T) {
	f := setup(t)
	f.addSchedule(t, "nightly", nil)

	require.True(t, f.exec.Registry().TryAcquire(f.conn.ID, "nightly"))
	defer f.exec.Registry().Release(f.conn.ID, "nightly")

	_, err := f.exec.Run(f.conn.ID, "nightly")
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Equal(t, 1, f.exec.Registry().Count(), "the rejected trigger must not add a slot")
}

func TestRunConcurrentTriggersExecuteOnce(t *testing.T) {
	f := setup(t)
	f.addSchedule(t, "nightly", nil)
	f.client.blockCh = make(chan struct{})

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.exec.Run(f.conn.ID, "nightly")
			results <- err
		}()
	}

	// One trigger is inside the run; the other must bounce off the
	// registry without waiting for it.
	var rejected error
	select {
	case rejected = <-results:
	case <-time.After(2 * time.Second):
		t.Fatal("second trigger blocked instead of returning AlreadyRunning")
	}
	assert.ErrorIs(t, rejected, ErrAlreadyRunning)
	assert.Equal(t, 1, f.exec.Registry().Count())

	close(f.client.blockCh)
	require.NoError(t, <-results)
	assert.Equal(t, 0, f.exec.Registry().Count())
}

func TestRunUnknownScheduleIsNotFound(t *testing.T) {
	f := setup(t)

	_, err := f.exec.Run(f.conn.ID, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, 0, f.exec.Registry().Count())
}

func TestRunPartialFailureStillSucceeds(t *testing.T) {
	f := setup(t)

	src := t.TempDir()
	for i := 1; i <= 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(src, fmt.Sprintf("file%d.csv", i)), []byte("row"), 0644))
	}

	f.client.uploadErr["file3"] = errors.New("552 disk full")

	sched := f.addSchedule(t, "parcel-upload", func(s *model.SyncSchedule) {
		s.Source = model.Endpoint{Type: model.EndpointLocal, Path: src}
		s.Destination = model.Endpoint{Type: model.EndpointFTP, Path: "/incoming"}
	})

	ok, err := f.exec.Run(f.conn.ID, "parcel-upload")
	require.NoError(t, err)
	assert.True(t, ok, "a per-file failure does not fail the run")

	hist := lastHistory(t, sched.ID)
	assert.Equal(t, model.RunStatusSuccess, hist.Status)
	assert.Equal(t, 4, hist.FilesTransferred)
	require.Len(t, hist.Errors, 1)
	assert.Contains(t, hist.Errors[0], "552 disk full")

	var failed []model.FileDetail
	for _, d := range hist.Files {
		if d.Status == model.FileStatusFailed {
			failed = append(failed, d)
		}
	}
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].File, "file3.csv")
}

func TestRunSkipsExistingDestination(t *testing.T) {
	f := setup(t)

	dst := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dst, "held.csv"), []byte("old"), 0644))

	f.client.listings["/export"] = []transfer.FileInfo{
		{Name: "held.csv", Size: 100},
		{Name: "fresh.csv", Size: 50},
	}

	sched := f.addSchedule(t, "nightly", func(s *model.SyncSchedule) {
		s.Destination = model.Endpoint{Type: model.EndpointLocal, Path: dst}
		s.Options.OverwriteExisting = false
	})

	ok, err := f.exec.Run(f.conn.ID, "nightly")
	require.NoError(t, err)
	assert.True(t, ok)

	hist := lastHistory(t, sched.ID)
	assert.Equal(t, 1, hist.FilesTransferred)
	assert.Equal(t, int64(50), hist.TotalBytes, "skipped files do not count bytes")
	assert.Equal(t, []string{"/export/fresh.csv"}, f.client.downloads)

	require.Len(t, hist.Files, 2)
	var skipped *model.FileDetail
	for i := range hist.Files {
		if hist.Files[i].Status == model.FileStatusSkipped {
			skipped = &hist.Files[i]
		}
	}
	require.NotNil(t, skipped)
	assert.Contains(t, skipped.File, "held.csv")
	assert.Equal(t, "destination exists", skipped.Reason)
}

func TestRunFiltersByPattern(t *testing.T) {
	f := setup(t)

	f.client.listings["/export"] = []transfer.FileInfo{
		{Name: "a.csv", Size: 1},
		{Name: "b.csv", Size: 2},
		{Name: "c.csv", Size: 3},
		{Name: "readme.txt", Size: 9},
	}

	sched := f.addSchedule(t, "nightly", func(s *model.SyncSchedule) {
		s.Options.FilePatterns = []string{"*.csv"}
	})

	ok, err := f.exec.Run(f.conn.ID, "nightly")
	require.NoError(t, err)
	assert.True(t, ok)

	hist := lastHistory(t, sched.ID)
	assert.Equal(t, 3, hist.FilesTransferred)
	assert.Len(t, hist.Files, 3, "filtered files never reach a transfer attempt")
	assert.Len(t, f.client.downloads, 3)
	assert.NotContains(t, f.client.downloads, "/export/readme.txt")
}

func TestRunRecursesSubfolders(t *testing.T) {
	f := setup(t)

	f.client.listings["/export"] = []transfer.FileInfo{
		{Name: "top.csv", Size: 1},
		{Name: "2025", IsDir: true},
	}
	f.client.listings["/export/2025"] = []transfer.FileInfo{
		{Name: "deep.csv", Size: 2},
	}

	sched := f.addSchedule(t, "nightly", func(s *model.SyncSchedule) {
		s.Options.IncludeSubfolders = true
	})

	ok, err := f.exec.Run(f.conn.ID, "nightly")
	require.NoError(t, err)
	assert.True(t, ok)

	hist := lastHistory(t, sched.ID)
	assert.Equal(t, 2, hist.FilesTransferred)
	assert.Contains(t, f.client.downloads, "/export/2025/deep.csv")
}

func TestRunDeletesSourceAfterSync(t *testing.T) {
	f := setup(t)

	f.client.listings["/export"] = []transfer.FileInfo{
		{Name: "move-me.csv", Size: 1},
	}

	f.addSchedule(t, "nightly", func(s *model.SyncSchedule) {
		s.Options.DeleteAfterSync = true
	})

	ok, err := f.exec.Run(f.conn.ID, "nightly")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"/export/move-me.csv"}, f.client.deletes)
}

func TestRunConnectionFailureFailsRun(t *testing.T) {
	f := setup(t)

	f.client.connectErr = &transfer.ConnectionError{Host: "ftp.example.com", Attempts: 3, Err: errors.New("refused")}
	sched := f.addSchedule(t, "nightly", nil)

	ok, err := f.exec.Run(f.conn.ID, "nightly")
	require.NoError(t, err)
	assert.False(t, ok)

	hist := lastHistory(t, sched.ID)
	assert.Equal(t, model.RunStatusFailed, hist.Status)
	require.NotNil(t, hist.EndTime)
	require.NotEmpty(t, hist.Errors)

	stored, err := f.manager.Get(f.conn.ID, "nightly")
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusFailed, stored.Status)
	require.NotNil(t, stored.LastRun)
	require.NotNil(t, stored.NextRun)
	assert.True(t, stored.NextRun.After(time.Now()), "nextRun moves forward even after a failed run")
	assert.Equal(t, 0, f.exec.Registry().Count(), "the slot is released on failure")
}

func TestRunUpdatesScheduleAfterSuccess(t *testing.T) {
	f := setup(t)

	f.client.listings["/export"] = []transfer.FileInfo{{Name: "a.csv", Size: 1}}
	f.addSchedule(t, "nightly", nil)

	ok, err := f.exec.Run(f.conn.ID, "nightly")
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := f.manager.Get(f.conn.ID, "nightly")
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusSuccess, stored.Status)
	require.NotNil(t, stored.LastRun)
	assert.WithinDuration(t, time.Now(), *stored.LastRun, 5*time.Second)
	assert.Equal(t, 0, f.exec.Registry().Count())
}

func TestFTPToFTPRelayRemovesTempFile(t *testing.T) {
	f := setup(t)
	tempDir := f.exec.cfg.TempPath()

	f.client.listings["/export"] = []transfer.FileInfo{
		{Name: "good.csv", Size: 1},
		{Name: "bad.csv", Size: 2},
	}
	f.client.uploadErr["bad"] = errors.New("552 disk full")

	sched := f.addSchedule(t, "relay", func(s *model.SyncSchedule) {
		s.Destination = model.Endpoint{Type: model.EndpointFTP, Path: "/archive"}
	})

	ok, err := f.exec.Run(f.conn.ID, "relay")
	require.NoError(t, err)
	assert.True(t, ok)

	hist := lastHistory(t, sched.ID)
	assert.Equal(t, 1, hist.FilesTransferred)
	require.Len(t, hist.Errors, 1)
	assert.Contains(t, f.client.uploads, "/archive/good.csv")

	// The relay temp file is gone whether the upload succeeded or not.
	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFTPToFTPExistsProbeFailureSkipsFile(t *testing.T) {
	f := setup(t)

	f.client.listings["/export"] = []transfer.FileInfo{
		{Name: "good.csv", Size: 1},
		{Name: "murky.csv", Size: 2},
	}
	f.client.existsErr["murky"] = errors.New("450 transient")

	sched := f.addSchedule(t, "relay", func(s *model.SyncSchedule) {
		s.Destination = model.Endpoint{Type: model.EndpointFTP, Path: "/archive"}
		s.Options.OverwriteExisting = false
	})

	ok, err := f.exec.Run(f.conn.ID, "relay")
	require.NoError(t, err)
	assert.True(t, ok)

	// A file whose destination cannot be probed is recorded as failed,
	// never relayed on the assumption it is absent.
	assert.Equal(t, []string{"/archive/good.csv"}, f.client.uploads)

	hist := lastHistory(t, sched.ID)
	assert.Equal(t, 1, hist.FilesTransferred)
	require.Len(t, hist.Errors, 1)
	assert.Contains(t, hist.Errors[0], "450 transient")

	var failed *model.FileDetail
	for i := range hist.Files {
		if hist.Files[i].Status == model.FileStatusFailed {
			failed = &hist.Files[i]
		}
	}
	require.NotNil(t, failed)
	assert.Contains(t, failed.File, "murky.csv")
}

func TestRunDueStartsDueJobsConcurrently(t *testing.T) {
	f := setup(t)

	f.client.listings["/export"] = []transfer.FileInfo{{Name: "a.csv", Size: 1}}

	repo := repository.NewScheduleRepository()
	past := time.Now().Add(-time.Minute)

	for _, name := range []string{"due-one", "due-two"} {
		sched := f.addSchedule(t, name, nil)
		sched.NextRun = &past
		require.NoError(t, repo.Save(&sched))
	}
	f.addSchedule(t, "not-due", nil)

	started, err := f.exec.RunDue(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, started)

	require.Eventually(t, func() bool {
		return f.exec.Registry().Count() == 0
	}, 2*time.Second, 10*time.Millisecond, "started jobs must drain")

	for _, name := range []string{"due-one", "due-two"} {
		stored, err := f.manager.Get(f.conn.ID, name)
		require.NoError(t, err)
		assert.Equal(t, model.ScheduleStatusSuccess, stored.Status, name)
	}

	stored, err := f.manager.Get(f.conn.ID, "not-due")
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusIdle, stored.Status)
}

func TestRunDueSkipsJobsAlreadyRunning(t *testing.T) {
	f := setup(t)

	repo := repository.NewScheduleRepository()
	past := time.Now().Add(-time.Minute)

	sched := f.addSchedule(t, "held", nil)
	sched.NextRun = &past
	// Status still idle in the row, but the registry slot is taken: the
	// registry is the source of truth.
	require.NoError(t, repo.Save(&sched))
	require.True(t, f.exec.Registry().TryAcquire(f.conn.ID, "held"))
	defer f.exec.Registry().Release(f.conn.ID, "held")

	started, err := f.exec.RunDue(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, started)
}
