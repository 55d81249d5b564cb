package publish

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/tphakala/treesurvey/internal/logger"
)

// FTPConfig holds configuration for the FTP target
type FTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	RemotePath string
	Timeout    time.Duration
	Retry      RetryConfig
}

// FTPTarget uploads artifacts to an FTP server, one connection per store.
type FTPTarget struct {
	config FTPConfig
	log    logger.Logger
}

// NewFTPTarget validates config and fills defaults.
func NewFTPTarget(config FTPConfig) (*FTPTarget, error) {
	if config.Host == "" {
		return nil, configError("ftp", "host is required")
	}
	if config.Port == 0 {
		config.Port = DefaultFTPPort
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.RemotePath == "" {
		config.RemotePath = "/"
	}
	if config.Retry.MaxRetries == 0 {
		config.Retry = DefaultRetryConfig()
	}
	return &FTPTarget{config: config, log: GetLogger().Module("ftp")}, nil
}

// Name returns the name of this target
func (t *FTPTarget) Name() string { return "ftp" }

func (t *FTPTarget) addr() string {
	return net.JoinHostPort(t.config.Host, strconv.Itoa(t.config.Port))
}

// connect dials and logs in.
func (t *FTPTarget) connect(ctx context.Context) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(t.addr(),
		ftp.DialWithTimeout(t.config.Timeout),
		ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ftp: connection failed: %w", err)
	}

	if t.config.Username != "" {
		if err := conn.Login(t.config.Username, t.config.Password); err != nil {
			if quitErr := conn.Quit(); quitErr != nil {
				t.log.Debug("failed to quit after login error", logger.Error(quitErr))
			}
			return nil, fmt.Errorf("ftp: login failed: %w", err)
		}
	}
	return conn, nil
}

// Store implements Target.
func (t *FTPTarget) Store(ctx context.Context, fileName string, data []byte) error {
	if err := validateFileName(fileName); err != nil {
		return err
	}

	err := WithRetry(ctx, t.config.Retry, func() error {
		conn, err := t.connect(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := conn.Quit(); err != nil {
				t.log.Debug("failed to close FTP connection", logger.Error(err))
			}
		}()

		if err := t.createDirectory(conn, t.config.RemotePath); err != nil {
			return err
		}
		return t.atomicUpload(conn, path.Join(t.config.RemotePath, fileName), data)
	})
	if err != nil {
		return storeError(err, t.Name(), fileName)
	}

	t.log.Info("artifact uploaded", logger.String("host", t.config.Host), logger.String("file", fileName))
	return nil
}

// atomicUpload stores data under a temporary name and renames it.
func (t *FTPTarget) atomicUpload(conn *ftp.ServerConn, remotePath string, data []byte) error {
	tempName := path.Join(path.Dir(remotePath),
		fmt.Sprintf("%s%d-%s", tempPrefix, time.Now().UnixNano(), path.Base(remotePath)))

	if err := conn.Stor(tempName, bytes.NewReader(data)); err != nil {
		_ = conn.Delete(tempName)
		return fmt.Errorf("ftp: failed to store file: %w", err)
	}
	if err := conn.Rename(tempName, remotePath); err != nil {
		_ = conn.Delete(tempName)
		return fmt.Errorf("ftp: failed to rename temporary file: %w", err)
	}
	return nil
}

// createDirectory ensures dirPath exists on the server.
func (t *FTPTarget) createDirectory(conn *ftp.ServerConn, dirPath string) error {
	if dirPath == "" || dirPath == "/" || dirPath == "." {
		return nil
	}

	current, err := conn.CurrentDir()
	if err != nil {
		return fmt.Errorf("ftp: failed to get current directory: %w", err)
	}
	if err := conn.ChangeDir(dirPath); err == nil {
		_ = conn.ChangeDir(current)
		return nil
	}

	if err := conn.MakeDir(dirPath); err != nil && !isDirectoryExistsError(err) {
		return fmt.Errorf("ftp: failed to create directory %s: %w", dirPath, err)
	}
	return nil
}

func isDirectoryExistsError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "file exists") ||
		strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "directory exists") ||
		strings.Contains(msg, "550")
}
