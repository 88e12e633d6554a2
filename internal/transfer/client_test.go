package transfer

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"terrasync/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSession struct {
	listFn     func(string) ([]FileInfo, error)
	downloadFn func(string, io.Writer) error
	uploadFn   func(io.Reader, string) error
	deleteFn   func(string) error
	makeDirFn  func(string) error
	sizeFn     func(string) (int64, error)

	closed bool
}

func (s *fakeSession) List(path string) ([]FileInfo, error) {
	if s.listFn != nil {
		return s.listFn(path)
	}
	return nil, nil
}

func (s *fakeSession) Download(path string, w io.Writer) error {
	if s.downloadFn != nil {
		return s.downloadFn(path, w)
	}
	return nil
}

func (s *fakeSession) Upload(r io.Reader, path string) error {
	if s.uploadFn != nil {
		return s.uploadFn(r, path)
	}
	return nil
}

func (s *fakeSession) Delete(path string) error {
	if s.deleteFn != nil {
		return s.deleteFn(path)
	}
	return nil
}

func (s *fakeSession) MakeDir(path string) error {
	if s.makeDirFn != nil {
		return s.makeDirFn(path)
	}
	return nil
}

func (s *fakeSession) Size(path string) (int64, error) {
	if s.sizeFn != nil {
		return s.sizeFn(path)
	}
	return 0, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func newTestClient(t *testing.T, dial Dialer) *Client {
	t.Helper()
	logger.Log = zap.NewNop()

	c := NewClient(dial, "ftp.example.com", 3, time.Second, nil)
	c.sleep = func(time.Duration) {}
	return c
}

func TestConnectRetriesThenFails(t *testing.T) {
	dials := 0
	c := newTestClient(t, func() (Session, error) {
		dials++
		return nil, errors.New("connection refused")
	})

	err := c.Connect()
	require.Error(t, err)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, 3, connErr.Attempts)
	assert.Equal(t, 3, dials, "every attempt dials a fresh connection")
}

func TestConnectSucceedsAfterTransientFailure(t *testing.T) {
	dials := 0
	c := newTestClient(t, func() (Session, error) {
		dials++
		if dials < 3 {
			return nil, errors.New("connection refused")
		}
		return &fakeSession{}, nil
	})

	require.NoError(t, c.Connect())
	assert.Equal(t, 3, dials)
}

func TestEachAttemptUsesFreshSession(t *testing.T) {
	var sessions []*fakeSession
	c := newTestClient(t, func() (Session, error) {
		s := &fakeSession{
			uploadFn: func(io.Reader, string) error { return errors.New("broken pipe") },
		}
		sessions = append(sessions, s)
		return s, nil
	})

	local := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0644))

	err := c.Upload(local, "/up/f.txt", false)
	require.Error(t, err)

	require.Len(t, sessions, 3)
	for i, s := range sessions {
		assert.True(t, s.closed, "session %d must be closed", i)
	}
}

func TestUploadMissingLocalFileFailsFast(t *testing.T) {
	dials := 0
	c := newTestClient(t, func() (Session, error) {
		dials++
		return &fakeSession{}, nil
	})

	err := c.Upload(filepath.Join(t.TempDir(), "missing.txt"), "/up/missing.txt", false)
	require.Error(t, err)

	var notFound *LocalFileNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, 0, dials, "a missing local file is not transient, no dial happens")
}

func TestUploadCreatesParentDirsBestEffort(t *testing.T) {
	var made []string
	c := newTestClient(t, func() (Session, error) {
		return &fakeSession{
			makeDirFn: func(dir string) error {
				made = append(made, dir)
				return errors.New("already exists")
			},
		}, nil
	})

	local := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0644))

	require.NoError(t, c.Upload(local, "/a/b/f.txt", true))
	assert.Equal(t, []string{"/a", "/a/b"}, made, "mkdir failure never aborts the upload")
}

func TestDownloadProbeFailureIsRemoteNotFound(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func() (Session, error) {
		attempts++
		return &fakeSession{
			sizeFn: func(string) (int64, error) { return 0, errors.New("550 no such file") },
		}, nil
	})

	err := c.Download("/export/gone.csv", filepath.Join(t.TempDir(), "gone.csv"))
	require.Error(t, err)

	var notFound *RemoteFileNotFoundError
	assert.ErrorAs(t, err, &notFound, "probe exhaustion keeps its own type")
	assert.Equal(t, 3, attempts, "the probe is retried up to the limit")
}

func TestDownloadWritesFile(t *testing.T) {
	c := newTestClient(t, func() (Session, error) {
		return &fakeSession{
			sizeFn: func(string) (int64, error) { return 7, nil },
			downloadFn: func(_ string, w io.Writer) error {
				_, err := io.Copy(w, strings.NewReader("payload"))
				return err
			},
		}, nil
	})

	local := filepath.Join(t.TempDir(), "in", "data.csv")
	require.NoError(t, c.Download("/export/data.csv", local))

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestListFailureIsNotRetried(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func() (Session, error) {
		attempts++
		return &fakeSession{
			listFn: func(string) ([]FileInfo, error) { return nil, errors.New("550 permission denied") },
		}, nil
	})

	_, err := c.List("/restricted")
	require.Error(t, err)

	var notAccessible *PathNotAccessibleError
	assert.ErrorAs(t, err, &notAccessible)
	assert.Equal(t, 1, attempts, "an unreadable path on a live session is not transient")
}

func TestExists(t *testing.T) {
	c := newTestClient(t, func() (Session, error) {
		return &fakeSession{
			sizeFn: func(path string) (int64, error) {
				if path == "/there.csv" {
					return 10, nil
				}
				return 0, errors.New("550 no such file")
			},
		}, nil
	})

	exists, err := c.Exists("/there.csv")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.Exists("/gone.csv")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNewDialerRejectsMissingCredentials(t *testing.T) {
	_, err := NewDialer(missingPasswordConn(), time.Second)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}
