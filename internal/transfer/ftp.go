package transfer

import (
	"crypto/tls"
	"fmt"
	"io"
	"time"

	"terrasync/internal/model"

	"github.com/jlaffaye/ftp"
)

type ftpSession struct {
	conn *ftp.ServerConn
}

func dialFTP(conn model.FTPConnection, timeout time.Duration) (Session, error) {
	port := conn.Port
	if port == 0 {
		port = 21
	}

	opts := []ftp.DialOption{ftp.DialWithTimeout(timeout)}
	if conn.Secure {
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{ServerName: conn.Host}))
	}

	c, err := ftp.Dial(fmt.Sprintf("%s:%d", conn.Host, port), opts...)
	if err != nil {
		return nil, fmt.Errorf("ftp dial %s: %w", conn.Host, err)
	}

	if err := c.Login(conn.Username, conn.Password); err != nil {
		_ = c.Quit()
		return nil, fmt.Errorf("ftp login %s@%s: %w", conn.Username, conn.Host, err)
	}

	return &ftpSession{conn: c}, nil
}

func (s *ftpSession) List(path string) ([]FileInfo, error) {
	entries, err := s.conn.List(path)
	if err != nil {
		return nil, fmt.Errorf("ftp list %s: %w", path, err)
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}

		infos = append(infos, FileInfo{
			Name:    e.Name,
			Size:    int64(e.Size),
			IsDir:   e.Type == ftp.EntryTypeFolder,
			ModTime: e.Time,
		})
	}

	return infos, nil
}

func (s *ftpSession) Download(remotePath string, w io.Writer) error {
	resp, err := s.conn.Retr(remotePath)
	if err != nil {
		return fmt.Errorf("ftp retr %s: %w", remotePath, err)
	}
	defer func() { _ = resp.Close() }()

	if _, err := io.Copy(w, resp); err != nil {
		return fmt.Errorf("ftp read %s: %w", remotePath, err)
	}

	return nil
}

func (s *ftpSession) Upload(r io.Reader, remotePath string) error {
	if err := s.conn.Stor(remotePath, r); err != nil {
		return fmt.Errorf("ftp stor %s: %w", remotePath, err)
	}

	return nil
}

func (s *ftpSession) Delete(remotePath string) error {
	if err := s.conn.Delete(remotePath); err != nil {
		return fmt.Errorf("ftp delete %s: %w", remotePath, err)
	}

	return nil
}

func (s *ftpSession) MakeDir(path string) error {
	if err := s.conn.MakeDir(path); err != nil {
		return fmt.Errorf("ftp mkdir %s: %w", path, err)
	}

	return nil
}

func (s *ftpSession) Size(remotePath string) (int64, error) {
	size, err := s.conn.FileSize(remotePath)
	if err != nil {
		return 0, fmt.Errorf("ftp size %s: %w", remotePath, err)
	}

	return size, nil
}

func (s *ftpSession) Close() error {
	return s.conn.Quit()
}
