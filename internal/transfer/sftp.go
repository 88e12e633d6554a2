package transfer

import (
	"fmt"
	"io"
	"path"
	"time"

	"terrasync/internal/model"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type sftpSession struct {
	ssh    *ssh.Client
	client *sftp.Client
}

func dialSFTP(conn model.FTPConnection, timeout time.Duration) (Session, error) {
	port := conn.Port
	if port == 0 {
		port = 22
	}

	sshConfig := &ssh.ClientConfig{
		User: conn.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(conn.Password),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	sshClient, err := ssh.Dial("tcp", fmt.Sprintf("%s:%d", conn.Host, port), sshConfig)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", conn.Host, err)
	}

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, fmt.Errorf("sftp session %s: %w", conn.Host, err)
	}

	return &sftpSession{ssh: sshClient, client: client}, nil
}

func (s *sftpSession) List(dir string) ([]FileInfo, error) {
	entries, err := s.client.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("sftp readdir %s: %w", dir, err)
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, FileInfo{
			Name:    e.Name(),
			Size:    e.Size(),
			IsDir:   e.IsDir(),
			ModTime: e.ModTime(),
		})
	}

	return infos, nil
}

func (s *sftpSession) Download(remotePath string, w io.Writer) error {
	f, err := s.client.Open(remotePath)
	if err != nil {
		return fmt.Errorf("sftp open %s: %w", remotePath, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("sftp read %s: %w", remotePath, err)
	}

	return nil
}

func (s *sftpSession) Upload(r io.Reader, remotePath string) error {
	f, err := s.client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("sftp create %s: %w", remotePath, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("sftp write %s: %w", remotePath, err)
	}

	return f.Close()
}

func (s *sftpSession) Delete(remotePath string) error {
	if err := s.client.Remove(remotePath); err != nil {
		return fmt.Errorf("sftp remove %s: %w", remotePath, err)
	}

	return nil
}

func (s *sftpSession) MakeDir(dir string) error {
	if err := s.client.Mkdir(path.Clean(dir)); err != nil {
		return fmt.Errorf("sftp mkdir %s: %w", dir, err)
	}

	return nil
}

func (s *sftpSession) Size(remotePath string) (int64, error) {
	info, err := s.client.Stat(remotePath)
	if err != nil {
		return 0, fmt.Errorf("sftp stat %s: %w", remotePath, err)
	}

	return info.Size(), nil
}

func (s *sftpSession) Close() error {
	err := s.client.Close()
	if cerr := s.ssh.Close(); err == nil {
		err = cerr
	}

	return err
}
