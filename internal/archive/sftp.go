package archive

import (
	"bytes"
	"fmt"
	"os"
	"path"

	"github.com/pkg/sftp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/config"
)

// Uploader pushes generated images to a remote host over SFTP. Each Store
// call opens a fresh connection; the side channel is low-volume and a
// persistent session would only rot between generations.
type Uploader struct {
	cfg    config.ArchiveConfig
	logger *logrus.Logger
}

// NewUploader creates the SFTP uploader
func NewUploader(cfg config.ArchiveConfig) *Uploader {
	return &Uploader{
		cfg:    cfg,
		logger: config.NewLogger(),
	}
}

// Store writes one image under filename below the configured remote path and
// returns the remote location
func (u *Uploader) Store(filename string, data []byte) (string, error) {
	sshConfig := &ssh.ClientConfig{
		User: u.cfg.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(u.cfg.Password),
		},
		// the archive host is operator-controlled; key pinning is not
		// worth the setup friction here
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	addr := fmt.Sprintf("%s:%d", u.cfg.Host, u.cfg.Port)
	conn, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return "", fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	client, err := sftp.NewClient(conn)
	if err != nil {
		return "", fmt.Errorf("failed to open sftp session: %w", err)
	}
	defer client.Close()

	if _, err := client.Stat(u.cfg.RemotePath); err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to stat remote path %s: %w", u.cfg.RemotePath, err)
		}
		if err := client.Mkdir(u.cfg.RemotePath); err != nil {
			return "", fmt.Errorf("failed to create remote path %s: %w", u.cfg.RemotePath, err)
		}
	}

	remote := path.Join(u.cfg.RemotePath, filename)
	f, err := client.Create(remote)
	if err != nil {
		return "", fmt.Errorf("failed to create remote file %s: %w", remote, err)
	}
	defer f.Close()

	if _, err := f.ReadFrom(bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to write remote file %s: %w", remote, err)
	}

	u.logger.WithFields(logrus.Fields{
		"remote": remote,
		"bytes":  len(data),
	}).Info("Image archived")

	return remote, nil
}
