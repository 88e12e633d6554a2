package transfer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"terrasync/internal/fsutil"
	"terrasync/internal/logger"

	"go.uber.org/zap"
)

// Notifier receives a line for the activity feed. Implementations must be
// safe to call from any goroutine; failures stay inside the implementation.
type Notifier interface {
	Record(action, icon, iconColor string)
}

// Client wraps a remote session with bounded, fixed-delay retries. Every
// attempt dials a fresh session so a wedged connection never leaks into the
// next try.
type Client struct {
	host     string
	dial     Dialer
	attempts int
	delay    time.Duration
	notify   Notifier

	sleep func(time.Duration)
}

const (
	DefaultAttempts = 3
	DefaultDelay    = 2 * time.Second
)

func NewClient(dial Dialer, host string, attempts int, delay time.Duration, notify Notifier) *Client {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if delay <= 0 {
		delay = DefaultDelay
	}

	return &Client{
		host:     host,
		dial:     dial,
		attempts: attempts,
		delay:    delay,
		notify:   notify,
		sleep:    time.Sleep,
	}
}

func (c *Client) record(action, icon, color string) {
	if c.notify != nil {
		c.notify.Record(action, icon, color)
	}
}

// withSession runs op against a fresh session per attempt. Non-retryable
// errors abort immediately; anything else is retried with a fixed delay.
func (c *Client) withSession(name string, op func(Session) error) error {
	var lastErr error

	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			c.record(fmt.Sprintf("Retrying %s on %s (attempt %d/%d)", name, c.host, attempt, c.attempts),
				"fas fa-rotate", "text-warning")
			c.sleep(c.delay)
		}

		sess, err := c.dial()
		if err != nil {
			if !retryable(err) {
				return err
			}

			lastErr = err
			logger.Log.Warn("dial failed",
				zap.String("host", c.host),
				zap.String("op", name),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		err = op(sess)
		_ = sess.Close()

		if err == nil {
			return nil
		}

		lastErr = err
		if !retryable(err) {
			return err
		}

		logger.Log.Warn("operation failed",
			zap.String("host", c.host),
			zap.String("op", name),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	c.record(fmt.Sprintf("%s on %s failed after %d attempts", name, c.host, c.attempts),
		"fas fa-exclamation-triangle", "text-danger")

	// A probe failure keeps its own type so callers can tell a missing
	// file from a dead server.
	var notFound *RemoteFileNotFoundError
	if errors.As(lastErr, &notFound) {
		return lastErr
	}

	return &ConnectionError{Host: c.host, Attempts: c.attempts, Err: lastErr}
}

// Connect verifies the endpoint is reachable with the stored credentials.
func (c *Client) Connect() error {
	c.record(fmt.Sprintf("Connecting to %s", c.host), "fas fa-plug", "text-info")
	return c.withSession("connect", func(Session) error { return nil })
}

// Upload sends a local file to remotePath, recreating parent directories
// first when createParentDirs is set. Directory creation is best effort;
// its failure never aborts the upload attempt itself.
func (c *Client) Upload(localPath, remotePath string, createParentDirs bool) error {
	if _, err := os.Stat(localPath); err != nil {
		return &LocalFileNotFoundError{Path: localPath}
	}

	err := c.withSession("upload", func(sess Session) error {
		if createParentDirs {
			c.ensureDirs(sess, path.Dir(remotePath))
		}

		f, err := os.Open(localPath)
		if err != nil {
			return &LocalFileNotFoundError{Path: localPath}
		}
		defer func() { _ = f.Close() }()

		return sess.Upload(f, remotePath)
	})
	if err != nil {
		return err
	}

	c.record(fmt.Sprintf("Uploaded %s to %s", path.Base(remotePath), c.host),
		"fas fa-upload", "text-success")

	return nil
}

// Download probes the remote file's size before transferring, then writes
// the local copy atomically.
func (c *Client) Download(remotePath, localPath string) error {
	err := c.withSession("download", func(sess Session) error {
		if _, err := sess.Size(remotePath); err != nil {
			return &RemoteFileNotFoundError{Path: remotePath, Err: err}
		}

		return fsutil.AtomicWrite(localPath, func(w io.Writer) error {
			return sess.Download(remotePath, w)
		})
	})
	if err != nil {
		return err
	}

	c.record(fmt.Sprintf("Downloaded %s from %s", path.Base(remotePath), c.host),
		"fas fa-download", "text-success")

	return nil
}

// List returns the entries of a remote directory. A listing failure on a
// live session means the path cannot be entered; that is not retried.
func (c *Client) List(remotePath string) ([]FileInfo, error) {
	var infos []FileInfo

	err := c.withSession("list", func(sess Session) error {
		entries, err := sess.List(remotePath)
		if err != nil {
			return &PathNotAccessibleError{Path: remotePath, Err: err}
		}

		infos = entries
		return nil
	})
	if err != nil {
		return nil, err
	}

	return infos, nil
}

func (c *Client) Delete(remotePath string) error {
	err := c.withSession("delete", func(sess Session) error {
		return sess.Delete(remotePath)
	})
	if err != nil {
		return err
	}

	c.record(fmt.Sprintf("Deleted %s on %s", path.Base(remotePath), c.host),
		"fas fa-trash", "text-muted")

	return nil
}

// EnsureDirectory creates a remote directory, including its parents when
// createParents is set. Existing directories are not an error.
func (c *Client) EnsureDirectory(remotePath string, createParents bool) error {
	return c.withSession("mkdir", func(sess Session) error {
		if createParents {
			c.ensureDirs(sess, remotePath)
			return nil
		}

		if err := sess.MakeDir(remotePath); err != nil {
			if exists, _ := remoteDirExists(sess, remotePath); exists {
				return nil
			}
			return err
		}

		return nil
	})
}

// Exists probes remotePath with a size request on a live session. A probe
// failure there means the file is absent, not that the server is down.
func (c *Client) Exists(remotePath string) (bool, error) {
	var exists bool

	err := c.withSession("exists", func(sess Session) error {
		if _, err := sess.Size(remotePath); err != nil {
			exists = false
			return nil
		}

		exists = true
		return nil
	})

	return exists, err
}

func (c *Client) Size(remotePath string) (int64, error) {
	var size int64

	err := c.withSession("size", func(sess Session) error {
		s, err := sess.Size(remotePath)
		if err != nil {
			return err
		}

		size = s
		return nil
	})

	return size, err
}

// ensureDirs walks the path segment by segment. Directories that already
// exist make MakeDir fail; that is expected and only logged.
func (c *Client) ensureDirs(sess Session, dir string) {
	dir = path.Clean(dir)
	if dir == "/" || dir == "." || dir == "" {
		return
	}

	segments := splitPath(dir)
	current := ""
	if path.IsAbs(dir) {
		current = "/"
	}

	for _, seg := range segments {
		current = path.Join(current, seg)
		if err := sess.MakeDir(current); err != nil {
			logger.Log.Debug("mkdir skipped",
				zap.String("dir", current),
				zap.Error(err))
		}
	}
}

func remoteDirExists(sess Session, dir string) (bool, error) {
	_, err := sess.List(dir)
	return err == nil, err
}

func splitPath(p string) []string {
	var segments []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	return segments
}
