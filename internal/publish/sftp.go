package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/tphakala/treesurvey/internal/logger"
)

// SFTPConfig holds configuration for the SFTP target
type SFTPConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	KeyFile        string
	KnownHostsFile string // defaults to ~/.ssh/known_hosts
	RemotePath     string
	Timeout        time.Duration
	Retry          RetryConfig
}

// sftpSession owns the SFTP client and the transport below it.
type sftpSession struct {
	*sftp.Client
	conn io.Closer
}

func (s *sftpSession) Close() error {
	err := s.Client.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// SFTPTarget uploads artifacts over SSH.
type SFTPTarget struct {
	config SFTPConfig
	log    logger.Logger
	dial   func(ctx context.Context) (*sftpSession, error)
}

// NewSFTPTarget validates config. Host keys are always verified against a
// known_hosts file.
func NewSFTPTarget(config SFTPConfig) (*SFTPTarget, error) {
	if config.Host == "" {
		return nil, configError("sftp", "host is required")
	}
	if config.KeyFile == "" && config.Password == "" {
		return nil, configError("sftp", "no authentication method provided")
	}
	if config.Port == 0 {
		config.Port = DefaultSSHPort
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.RemotePath == "" {
		config.RemotePath = "."
	}
	if config.Retry.MaxRetries == 0 {
		config.Retry = DefaultRetryConfig()
	}
	if config.KnownHostsFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, configError("sftp", "known hosts file is required")
		}
		config.KnownHostsFile = filepath.Join(home, ".ssh", "known_hosts")
	}

	t := &SFTPTarget{config: config, log: GetLogger().Module("sftp")}
	t.dial = t.connect
	return t, nil
}

// Name returns the name of this target
func (t *SFTPTarget) Name() string { return "sftp" }

func (t *SFTPTarget) clientConfig() (*ssh.ClientConfig, error) {
	hostKeyCallback, err := knownhosts.New(t.config.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("sftp: failed to load known hosts: %w", err)
	}

	config := &ssh.ClientConfig{
		User:            t.config.Username,
		HostKeyCallback: hostKeyCallback,
		Timeout:         t.config.Timeout,
	}

	if t.config.KeyFile != "" {
		key, err := os.ReadFile(t.config.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("sftp: failed to read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("sftp: failed to parse private key: %w", err)
		}
		config.Auth = append(config.Auth, ssh.PublicKeys(signer))
	}
	if t.config.Password != "" {
		config.Auth = append(config.Auth, ssh.Password(t.config.Password))
	}
	return config, nil
}

// connect establishes an SFTP session, giving up when ctx ends.
func (t *SFTPTarget) connect(ctx context.Context) (*sftpSession, error) {
	config, err := t.clientConfig()
	if err != nil {
		return nil, err
	}

	type connResult struct {
		session *sftpSession
		err     error
	}
	resultChan := make(chan connResult, 1)

	go func() {
		addr := net.JoinHostPort(t.config.Host, strconv.Itoa(t.config.Port))
		sshConn, err := ssh.Dial("tcp", addr, config)
		if err != nil {
			resultChan <- connResult{nil, fmt.Errorf("sftp: failed to connect: %w", err)}
			return
		}
		client, err := sftp.NewClient(sshConn)
		if err != nil {
			_ = sshConn.Close()
			resultChan <- connResult{nil, fmt.Errorf("sftp: failed to create client: %w", err)}
			return
		}
		resultChan <- connResult{&sftpSession{Client: client, conn: sshConn}, nil}
	}()

	select {
	case <-ctx.Done():
		// close a session that completes after we gave up
		go func() {
			if r := <-resultChan; r.session != nil {
				_ = r.session.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-resultChan:
		return r.session, r.err
	}
}

// Store implements Target.
func (t *SFTPTarget) Store(ctx context.Context, fileName string, data []byte) error {
	if err := validateFileName(fileName); err != nil {
		return err
	}

	err := WithRetry(ctx, t.config.Retry, func() error {
		session, err := t.dial(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = session.Close() }()

		if err := session.MkdirAll(t.config.RemotePath); err != nil {
			return fmt.Errorf("sftp: failed to create directory %s: %w", t.config.RemotePath, err)
		}
		return t.atomicUpload(session.Client, path.Join(t.config.RemotePath, fileName), data)
	})
	if err != nil {
		return storeError(err, t.Name(), fileName)
	}

	t.log.Info("artifact uploaded", logger.String("host", t.config.Host), logger.String("file", fileName))
	return nil
}

func (t *SFTPTarget) atomicUpload(client *sftp.Client, remotePath string, data []byte) error {
	tempName := path.Join(path.Dir(remotePath),
		fmt.Sprintf("%s%d-%s", tempPrefix, time.Now().UnixNano(), path.Base(remotePath)))

	f, err := client.Create(tempName)
	if err != nil {
		return fmt.Errorf("sftp: failed to create file: %w", err)
	}
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		_ = f.Close()
		_ = client.Remove(tempName)
		return fmt.Errorf("sftp: failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = client.Remove(tempName)
		return fmt.Errorf("sftp: failed to close file: %w", err)
	}

	// plain SFTP rename refuses to overwrite; prefer the posix extension
	if err := client.PosixRename(tempName, remotePath); err != nil {
		_ = client.Remove(remotePath)
		if err := client.Rename(tempName, remotePath); err != nil {
			_ = client.Remove(tempName)
			return fmt.Errorf("sftp: failed to rename temporary file: %w", err)
		}
	}
	return nil
}
