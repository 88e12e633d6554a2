package transfer

import (
	"fmt"
	"io"
	"time"

	"terrasync/internal/model"
)

// FileInfo is one remote directory entry.
type FileInfo struct {
	Name    string
	Size    int64
	IsDir   bool
	ModTime time.Time
}

// Session is one live connection to a remote endpoint. The engine never
// reuses a session across retry attempts; each attempt dials a fresh one.
type Session interface {
	List(path string) ([]FileInfo, error)
	Download(remotePath string, w io.Writer) error
	Upload(r io.Reader, remotePath string) error
	Delete(remotePath string) error
	MakeDir(path string) error
	Size(remotePath string) (int64, error)
	Close() error
}

// Dialer opens a fresh session.
type Dialer func() (Session, error)

// NewDialer picks the transport for the connection's protocol.
func NewDialer(conn model.FTPConnection, timeout time.Duration) (Dialer, error) {
	if conn.Host == "" || conn.Username == "" || conn.Password == "" {
		return nil, ErrMissingCredentials
	}

	switch conn.Protocol {
	case model.ProtocolFTP, "":
		return func() (Session, error) { return dialFTP(conn, timeout) }, nil
	case model.ProtocolSFTP:
		return func() (Session, error) { return dialSFTP(conn, timeout) }, nil
	default:
		return nil, fmt.Errorf("unsupported protocol: %s", conn.Protocol)
	}
}
