package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/tphakala/treesurvey/internal/errors"
	"github.com/tphakala/treesurvey/internal/logger"
)

// freeSpaceReserve is kept free on the destination volume.
const freeSpaceReserve = 16 << 20

// LocalTarget writes artifacts into a directory, typically a synced or
// network-mounted folder.
type LocalTarget struct {
	dir string
	log logger.Logger
}

// NewLocalTarget creates a target writing into dir. The directory is
// created on first store.
func NewLocalTarget(dir string) (*LocalTarget, error) {
	if dir == "" {
		return nil, configError("local", "path is required")
	}
	abs, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return nil, configError("local", fmt.Sprintf("failed to resolve path: %v", err))
	}
	return &LocalTarget{dir: abs, log: GetLogger().Module("local")}, nil
}

// Name returns the name of this target
func (t *LocalTarget) Name() string { return "local" }

// Dir returns the destination directory.
func (t *LocalTarget) Dir() string { return t.dir }

// Store implements Target. The file appears under its final name only once
// fully written.
func (t *LocalTarget) Store(ctx context.Context, fileName string, data []byte) error {
	if err := validateFileName(fileName); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(t.dir, PermDir); err != nil {
		return errors.New(err).
			Component("publish").
			Category(errors.CategoryFileIO).
			Context("path", t.dir).
			Build()
	}

	if err := checkFreeSpace(t.dir, uint64(len(data))); err != nil {
		return err
	}

	target := filepath.Join(t.dir, fileName)
	err := atomicWriteFile(target, tempPrefix+"*", PermFile, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
	if err != nil {
		return storeError(err, t.Name(), fileName)
	}

	t.log.Debug("artifact written", logger.String("path", target), logger.Int("bytes", len(data)))
	return nil
}

// checkFreeSpace fails when the volume holding dir cannot take size bytes.
func checkFreeSpace(dir string, size uint64) error {
	usage, err := disk.Usage(dir)
	if err != nil {
		// some filesystems do not report usage; let the write decide
		GetLogger().Debug("disk usage unavailable", logger.String("path", dir), logger.Error(err))
		return nil
	}
	required := size + freeSpaceReserve
	if usage.Free < required {
		return errors.Newf("insufficient disk space: need %d bytes, have %d", required, usage.Free).
			Component("publish").
			Category(errors.CategoryFileIO).
			Context("path", dir).
			Build()
	}
	return nil
}

// atomicWriteFile writes to a temporary file next to targetPath and renames
// it into place.
func atomicWriteFile(targetPath, tempPattern string, perm os.FileMode, write func(*os.File) error) error {
	tempFile, err := os.CreateTemp(filepath.Dir(targetPath), tempPattern)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()

	if err := tempFile.Chmod(perm); err != nil {
		return fmt.Errorf("failed to set file permissions: %w", err)
	}
	if err := write(tempFile); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	success = true
	return nil
}
