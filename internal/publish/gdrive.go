package publish

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/tphakala/treesurvey/internal/logger"
)

// GDriveTarget uploads artifacts into a Google Drive folder using a service
// account.
type GDriveTarget struct {
	folderID string
	opts     []option.ClientOption
	log      logger.Logger
}

// NewGDriveTarget loads the service account credentials file. The folder
// must be shared with the service account.
func NewGDriveTarget(ctx context.Context, credentialsFile, folderID string) (*GDriveTarget, error) {
	if credentialsFile == "" {
		return nil, configError("gdrive", "credentials file is required")
	}
	if folderID == "" {
		return nil, configError("gdrive", "folder id is required")
	}

	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, configError("gdrive", fmt.Sprintf("failed to read credentials: %v", err))
	}
	creds, err := google.CredentialsFromJSON(ctx, data, drive.DriveFileScope)
	if err != nil {
		return nil, configError("gdrive", fmt.Sprintf("invalid credentials: %v", err))
	}

	return NewGDriveTargetWithOptions(folderID, option.WithCredentials(creds)), nil
}

// NewGDriveTargetWithOptions creates a target from explicit client options.
func NewGDriveTargetWithOptions(folderID string, opts ...option.ClientOption) *GDriveTarget {
	return &GDriveTarget{
		folderID: folderID,
		opts:     opts,
		log:      GetLogger().Module("gdrive"),
	}
}

// Name returns the name of this target
func (t *GDriveTarget) Name() string { return "gdrive" }

// Store implements Target. Drive allows duplicate names, so each publish
// creates a new file.
func (t *GDriveTarget) Store(ctx context.Context, fileName string, data []byte) error {
	if err := validateFileName(fileName); err != nil {
		return err
	}

	srv, err := drive.NewService(ctx, t.opts...)
	if err != nil {
		return storeError(fmt.Errorf("gdrive: failed to create client: %w", err), t.Name(), fileName)
	}

	file, err := srv.Files.Create(&drive.File{
		Name:    fileName,
		Parents: []string{t.folderID},
	}).
		Media(bytes.NewReader(data)).
		SupportsAllDrives(true).
		Fields("id", "name").
		Context(ctx).
		Do()
	if err != nil {
		return storeError(fmt.Errorf("gdrive: upload failed: %w", err), t.Name(), fileName)
	}

	t.log.Info("artifact uploaded",
		logger.String("file", fileName),
		logger.String("drive_id", file.Id))
	return nil
}
