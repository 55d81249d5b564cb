package publish

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/errors"
	"github.com/tphakala/treesurvey/internal/export"
	"github.com/tphakala/treesurvey/internal/logger"
)

// maxParallel bounds concurrent uploads across targets.
const maxParallel = 4

// Recorder receives per-target publish outcomes.
type Recorder interface {
	RecordPublish(target, status string, seconds float64, sizeBytes int)
}

// Manager stores each artifact on every configured target in parallel. It
// implements export.Publisher.
type Manager struct {
	targets  []Target
	timeout  time.Duration
	recorder Recorder
	log      logger.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout bounds each target's store call.
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.timeout = d }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) ManagerOption {
	return func(m *Manager) { m.recorder = r }
}

// NewManager creates a manager over targets.
func NewManager(targets []Target, opts ...ManagerOption) *Manager {
	m := &Manager{
		targets: targets,
		timeout: 5 * time.Minute,
		log:     GetLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FromSettings builds the targets enabled in settings.
func FromSettings(ctx context.Context, settings *conf.Settings, opts ...ManagerOption) (*Manager, error) {
	p := settings.Publish
	var targets []Target

	if p.Local.Enabled {
		t, err := NewLocalTarget(settings.ResolvePath(p.Local.Path))
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	if p.FTP.Enabled {
		t, err := NewFTPTarget(FTPConfig{
			Host:       p.FTP.Host,
			Port:       p.FTP.Port,
			Username:   p.FTP.Username,
			Password:   p.FTP.Password,
			RemotePath: p.FTP.RemotePath,
			Timeout:    p.FTP.Timeout,
		})
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	if p.SFTP.Enabled {
		t, err := NewSFTPTarget(SFTPConfig{
			Host:           p.SFTP.Host,
			Port:           p.SFTP.Port,
			Username:       p.SFTP.Username,
			Password:       p.SFTP.Password,
			KeyFile:        p.SFTP.KeyFile,
			KnownHostsFile: p.SFTP.KnownHostsFile,
			RemotePath:     p.SFTP.RemotePath,
			Timeout:        p.SFTP.Timeout,
		})
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	if p.GDrive.Enabled {
		t, err := NewGDriveTarget(ctx, p.GDrive.CredentialsFile, p.GDrive.FolderID)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}

	if p.Timeout > 0 {
		opts = append([]ManagerOption{WithTimeout(p.Timeout)}, opts...)
	}
	return NewManager(targets, opts...), nil
}

// Targets returns the configured target names.
func (m *Manager) Targets() []string {
	names := make([]string, 0, len(m.targets))
	for _, t := range m.targets {
		names = append(names, t.Name())
	}
	return names
}

// Publish implements export.Publisher. Every target is attempted; the
// failures are joined.
func (m *Manager) Publish(ctx context.Context, artifact *export.Artifact) error {
	if artifact == nil || len(m.targets) == 0 {
		return nil
	}

	errs := make([]error, len(m.targets))
	var g errgroup.Group
	g.SetLimit(maxParallel)

	for i, target := range m.targets {
		g.Go(func() error {
			errs[i] = m.store(ctx, target, artifact)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func (m *Manager) store(ctx context.Context, target Target, artifact *export.Artifact) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := target.Store(ctx, artifact.FileName, artifact.Data)
	elapsed := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		m.log.Warn("publish failed",
			logger.String("target", target.Name()),
			logger.String("file", artifact.FileName),
			logger.Error(err))
	} else {
		m.log.Info("artifact published",
			logger.String("target", target.Name()),
			logger.String("file", artifact.FileName),
			logger.Duration("elapsed", elapsed))
	}
	if m.recorder != nil {
		m.recorder.RecordPublish(target.Name(), status, elapsed.Seconds(), len(artifact.Data))
	}
	return err
}

var _ export.Publisher = (*Manager)(nil)
