package executor

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"terrasync/internal/activity"
	"terrasync/internal/config"
	"terrasync/internal/fsutil"
	"terrasync/internal/logger"
	"terrasync/internal/model"
	"terrasync/internal/repository"
	"terrasync/internal/schedule"
	"terrasync/internal/transfer"

	"go.uber.org/zap"
)

// ErrAlreadyRunning rejects a trigger for a job whose registry slot is
// taken. The redundant trigger has no side effects.
var ErrAlreadyRunning = errors.New("sync job already running")

// TransferClient is the slice of the resilient client the executor drives.
type TransferClient interface {
	Connect() error
	Upload(localPath, remotePath string, createParentDirs bool) error
	Download(remotePath, localPath string) error
	List(remotePath string) ([]transfer.FileInfo, error)
	Delete(remotePath string) error
	EnsureDirectory(remotePath string, createParents bool) error
	Exists(remotePath string) (bool, error)
}

// Executor runs sync schedules: it guards each (connection, name) pair
// against concurrent execution, drives the three transfer topologies, and
// records a SyncHistory per run.
type Executor struct {
	manager   *schedule.Manager
	registry  *Registry
	schedRepo *repository.ScheduleRepository
	histRepo  *repository.HistoryRepository
	connRepo  *repository.ConnectionRepository
	recorder  *activity.Recorder
	cfg       *config.Config

	// newClient is swapped out by tests.
	newClient func(conn model.FTPConnection) TransferClient
}

func New(manager *schedule.Manager, recorder *activity.Recorder, cfg *config.Config) *Executor {
	e := &Executor{
		manager:   manager,
		registry:  NewRegistry(),
		schedRepo: repository.NewScheduleRepository(),
		histRepo:  repository.NewHistoryRepository(),
		connRepo:  repository.NewConnectionRepository(),
		recorder:  recorder,
		cfg:       cfg,
	}

	e.newClient = func(conn model.FTPConnection) TransferClient {
		attempts, delay := cfg.Retry()
		dial, err := transfer.NewDialer(conn, cfg.DialTimeout())
		if err != nil {
			return &undialableClient{err: err}
		}

		return transfer.NewClient(dial, conn.Host, attempts, delay, recorder)
	}

	return e
}

func (e *Executor) Registry() *Registry {
	return e.registry
}

// Run executes one schedule now. It returns ErrAlreadyRunning when the
// job's registry slot is taken, and otherwise reports whether the run
// succeeded.
func (e *Executor) Run(connectionID uint, name string) (bool, error) {
	sched, err := e.manager.Get(connectionID, name)
	if err != nil {
		return false, err
	}

	if !e.registry.TryAcquire(connectionID, name) {
		return false, fmt.Errorf("%q on connection %d: %w", name, connectionID, ErrAlreadyRunning)
	}
	defer e.registry.Release(connectionID, name)

	return e.execute(&sched), nil
}

// RunDue starts every due schedule concurrently and returns how many were
// started. A job already holding its slot is skipped, and one job's
// failure never stops the others.
func (e *Executor) RunDue(now time.Time) (int, error) {
	due, err := e.manager.Due(now)
	if err != nil {
		return 0, fmt.Errorf("failed to query due schedules: %w", err)
	}

	started := 0
	for i := range due {
		sched := due[i]
		if !e.registry.TryAcquire(sched.ConnectionID, sched.Name) {
			continue
		}

		started++
		go func() {
			defer e.registry.Release(sched.ConnectionID, sched.Name)
			defer func() {
				if r := recover(); r != nil {
					logger.Log.Error("sync run panicked",
						zap.Uint("connection", sched.ConnectionID),
						zap.String("schedule", sched.Name),
						zap.Any("panic", r))
				}
			}()

			e.execute(&sched)
		}()
	}

	return started, nil
}

// execute is the per-run state machine. The caller holds the registry
// slot; this function owns the schedule and history records until it
// returns.
func (e *Executor) execute(sched *model.SyncSchedule) bool {
	start := time.Now()

	if err := e.schedRepo.UpdateStatus(sched.ID, model.ScheduleStatusRunning); err != nil {
		logger.Log.Warn("failed to mark schedule running", zap.Error(err))
	}

	hist := &model.SyncHistory{
		ConnectionID: sched.ConnectionID,
		ScheduleID:   sched.ID,
		ScheduleName: sched.Name,
		Status:       model.RunStatusRunning,
		StartTime:    start,
	}
	if err := e.histRepo.Create(hist); err != nil {
		logger.Log.Warn("failed to create history", zap.Error(err))
	}

	e.recorder.Record(fmt.Sprintf("Sync started: %s", sched.Name), "fas fa-sync", "text-info")
	logger.Log.Info("sync started",
		zap.Uint("connection", sched.ConnectionID),
		zap.String("schedule", sched.Name),
		zap.String("source", sched.Source.Path),
		zap.String("destination", sched.Destination.Path))

	runErr := e.runTransfer(sched, hist)

	end := time.Now()
	hist.EndTime = &end
	if runErr != nil {
		hist.Status = model.RunStatusFailed
		hist.Errors = append(hist.Errors, runErr.Error())
	} else {
		hist.Status = model.RunStatusSuccess
	}
	if err := e.histRepo.Save(hist); err != nil {
		logger.Log.Warn("failed to finalize history", zap.Error(err))
	}

	next := schedule.NextRun(sched, end)
	sched.NextRun = &next
	sched.LastRun = &end
	if runErr != nil {
		sched.Status = model.ScheduleStatusFailed
	} else {
		sched.Status = model.ScheduleStatusSuccess
	}
	if err := e.schedRepo.Save(sched); err != nil {
		logger.Log.Warn("failed to update schedule after run", zap.Error(err))
	}

	if runErr != nil {
		e.recorder.Record(fmt.Sprintf("Sync failed: %s", sched.Name),
			"fas fa-exclamation-triangle", "text-danger")
		logger.Log.Error("sync failed",
			zap.Uint("connection", sched.ConnectionID),
			zap.String("schedule", sched.Name),
			zap.Error(runErr))
		return false
	}

	e.recorder.Record(fmt.Sprintf("Sync completed: %s (%d files)", sched.Name, hist.FilesTransferred),
		"fas fa-check", "text-success")
	logger.Log.Info("sync completed",
		zap.Uint("connection", sched.ConnectionID),
		zap.String("schedule", sched.Name),
		zap.Int("files", hist.FilesTransferred),
		zap.Int64("bytes", hist.TotalBytes),
		zap.Duration("took", end.Sub(start)))

	return true
}

// runTransfer selects the topology and drives it. Per-file errors are
// recorded in the history and do not abort the run; only setup failures
// (connection lookup, initial listing, source walk) do.
func (e *Executor) runTransfer(sched *model.SyncSchedule, hist *model.SyncHistory) error {
	conn, err := e.connRepo.GetByID(sched.ConnectionID)
	if err != nil {
		return err
	}

	client := e.newClient(conn)
	if err := client.Connect(); err != nil {
		return err
	}

	switch sched.Topology() {
	case model.TopologyFTPToLocal:
		return e.syncFTPToLocal(client, sched.Source.Path, sched.Destination.Path, sched.Options, hist, true)
	case model.TopologyLocalToFTP:
		return e.syncLocalToFTP(client, sched.Source.Path, sched.Destination.Path, sched.Options, hist)
	case model.TopologyFTPToFTP:
		return e.syncFTPToFTP(client, sched.Source.Path, sched.Destination.Path, sched.Options, hist, true)
	default:
		return fmt.Errorf("unsupported sync topology: %s -> %s", sched.Source.Type, sched.Destination.Type)
	}
}

func (e *Executor) syncFTPToLocal(client TransferClient, src, dst string, opts model.SyncOptions, hist *model.SyncHistory, root bool) error {
	entries, err := client.List(src)
	if err != nil {
		if root {
			return err
		}

		// A subdirectory that cannot be entered is a partial failure,
		// not a fatal one.
		hist.RecordFile(model.FileDetail{
			File:   src,
			Status: model.FileStatusFailed,
			Error:  err.Error(),
		})
		e.saveProgress(hist)
		return nil
	}

	for _, entry := range entries {
		remotePath := path.Join(src, entry.Name)

		if entry.IsDir {
			if opts.IncludeSubfolders {
				if err := e.syncFTPToLocal(client, remotePath, filepath.Join(dst, entry.Name), opts, hist, false); err != nil {
					return err
				}
			}
			continue
		}

		if !fsutil.MatchesAny(entry.Name, opts.FilePatterns) {
			continue
		}

		localPath := filepath.Join(dst, entry.Name)
		if !opts.OverwriteExisting {
			if _, err := os.Stat(localPath); err == nil {
				hist.RecordFile(model.FileDetail{
					File:   remotePath,
					Status: model.FileStatusSkipped,
					Size:   entry.Size,
					Reason: "destination exists",
				})
				e.saveProgress(hist)
				continue
			}
		}

		if err := client.Download(remotePath, localPath); err != nil {
			hist.RecordFile(model.FileDetail{
				File:   remotePath,
				Status: model.FileStatusFailed,
				Size:   entry.Size,
				Error:  err.Error(),
			})
			e.saveProgress(hist)
			continue
		}

		hist.RecordFile(model.FileDetail{
			File:   remotePath,
			Status: model.FileStatusSuccess,
			Size:   entry.Size,
		})

		if opts.DeleteAfterSync {
			if err := client.Delete(remotePath); err != nil {
				logger.Log.Warn("failed to delete source after sync",
					zap.String("file", remotePath),
					zap.Error(err))
				hist.Errors = append(hist.Errors, fmt.Sprintf("delete %s: %v", remotePath, err))
			}
		}

		e.saveProgress(hist)
	}

	return nil
}

func (e *Executor) syncLocalToFTP(client TransferClient, src, dst string, opts model.SyncOptions, hist *model.SyncHistory) error {
	files, err := fsutil.Walk(src, opts.IncludeSubfolders, opts.FilePatterns)
	if err != nil {
		return err
	}

	if err := client.EnsureDirectory(dst, true); err != nil {
		logger.Log.Warn("failed to ensure destination dir",
			zap.String("dir", dst),
			zap.Error(err))
	}

	for _, file := range files {
		remotePath := path.Join(dst, file.RelPath)

		if !opts.OverwriteExisting {
			exists, err := client.Exists(remotePath)
			if err != nil {
				hist.RecordFile(model.FileDetail{
					File:   file.Path,
					Status: model.FileStatusFailed,
					Size:   file.Size,
					Error:  err.Error(),
				})
				e.saveProgress(hist)
				continue
			}
			if exists {
				hist.RecordFile(model.FileDetail{
					File:   file.Path,
					Status: model.FileStatusSkipped,
					Size:   file.Size,
					Reason: "destination exists",
				})
				e.saveProgress(hist)
				continue
			}
		}

		if err := client.Upload(file.Path, remotePath, true); err != nil {
			hist.RecordFile(model.FileDetail{
				File:   file.Path,
				Status: model.FileStatusFailed,
				Size:   file.Size,
				Error:  err.Error(),
			})
			e.saveProgress(hist)
			continue
		}

		hist.RecordFile(model.FileDetail{
			File:   file.Path,
			Status: model.FileStatusSuccess,
			Size:   file.Size,
		})

		if opts.DeleteAfterSync {
			if err := os.Remove(file.Path); err != nil {
				logger.Log.Warn("failed to delete source after sync",
					zap.String("file", file.Path),
					zap.Error(err))
				hist.Errors = append(hist.Errors, fmt.Sprintf("delete %s: %v", file.Path, err))
			}
		}

		e.saveProgress(hist)
	}

	return nil
}

// syncFTPToFTP relays files on the same server through a private local
// temp file, since no server-side copy primitive is assumed. The temp
// file is removed whether or not the upload succeeds.
func (e *Executor) syncFTPToFTP(client TransferClient, src, dst string, opts model.SyncOptions, hist *model.SyncHistory, root bool) error {
	entries, err := client.List(src)
	if err != nil {
		if root {
			return err
		}

		hist.RecordFile(model.FileDetail{
			File:   src,
			Status: model.FileStatusFailed,
			Error:  err.Error(),
		})
		e.saveProgress(hist)
		return nil
	}

	for _, entry := range entries {
		srcPath := path.Join(src, entry.Name)
		dstPath := path.Join(dst, entry.Name)

		if entry.IsDir {
			if opts.IncludeSubfolders {
				if err := e.syncFTPToFTP(client, srcPath, dstPath, opts, hist, false); err != nil {
					return err
				}
			}
			continue
		}

		if !fsutil.MatchesAny(entry.Name, opts.FilePatterns) {
			continue
		}

		if !opts.OverwriteExisting {
			exists, err := client.Exists(dstPath)
			if err != nil {
				hist.RecordFile(model.FileDetail{
					File:   srcPath,
					Status: model.FileStatusFailed,
					Size:   entry.Size,
					Error:  err.Error(),
				})
				e.saveProgress(hist)
				continue
			}
			if exists {
				hist.RecordFile(model.FileDetail{
					File:   srcPath,
					Status: model.FileStatusSkipped,
					Size:   entry.Size,
					Reason: "destination exists",
				})
				e.saveProgress(hist)
				continue
			}
		}

		if err := e.relayFile(client, srcPath, dstPath); err != nil {
			hist.RecordFile(model.FileDetail{
				File:   srcPath,
				Status: model.FileStatusFailed,
				Size:   entry.Size,
				Error:  err.Error(),
			})
			e.saveProgress(hist)
			continue
		}

		hist.RecordFile(model.FileDetail{
			File:   srcPath,
			Status: model.FileStatusSuccess,
			Size:   entry.Size,
		})

		if opts.DeleteAfterSync {
			if err := client.Delete(srcPath); err != nil {
				logger.Log.Warn("failed to delete source after sync",
					zap.String("file", srcPath),
					zap.Error(err))
				hist.Errors = append(hist.Errors, fmt.Sprintf("delete %s: %v", srcPath, err))
			}
		}

		e.saveProgress(hist)
	}

	return nil
}

func (e *Executor) relayFile(client TransferClient, srcPath, dstPath string) error {
	tmp, err := os.CreateTemp(e.cfg.TempPath(), "terrasync-relay-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = fsutil.RemoveIfExists(tmpPath) }()

	if err := client.Download(srcPath, tmpPath); err != nil {
		return err
	}

	return client.Upload(tmpPath, dstPath, true)
}

func (e *Executor) saveProgress(hist *model.SyncHistory) {
	if err := e.histRepo.Save(hist); err != nil {
		logger.Log.Warn("failed to save history progress", zap.Error(err))
	}
}

// undialableClient surfaces a dialer construction error (bad credentials,
// unknown protocol) as a connection failure on first use.
type undialableClient struct {
	err error
}

func (c *undialableClient) Connect() error                    { return c.err }
func (c *undialableClient) Upload(string, string, bool) error { return c.err }
func (c *undialableClient) Download(string, string) error     { return c.err }
func (c *undialableClient) List(string) ([]transfer.FileInfo, error) {
	return nil, c.err
}
func (c *undialableClient) Delete(string) error                { return c.err }
func (c *undialableClient) EnsureDirectory(string, bool) error { return c.err }
func (c *undialableClient) Exists(string) (bool, error)        { return false, c.err }
