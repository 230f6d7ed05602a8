package backup

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"go.uber.org/zap"
)

// DropboxUploader uploads files to a Dropbox app folder.
type DropboxUploader struct {
	client files.Client
	logger *zap.Logger
}

// NewDropboxUploader creates an uploader authenticated with token.
func NewDropboxUploader(token string, logger *zap.Logger) *DropboxUploader {
	cfg := dropbox.Config{Token: token}
	return &DropboxUploader{client: files.New(cfg), logger: logger}
}

// Upload overwrites remotePath with the contents of localPath.
func (u *DropboxUploader) Upload(ctx context.Context, localPath, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := readSnapshot(localPath)
	if err != nil {
		return err
	}

	arg := files.NewUploadArg(remotePath)
	arg.Mode = &files.WriteMode{Tagged: dropbox.Tagged{Tag: files.WriteModeOverwrite}}

	u.logger.Info("uploading to dropbox",
		zap.String("local", localPath),
		zap.String("remote", remotePath),
		zap.Int("bytes", len(data)),
	)
	if _, err := u.client.Upload(arg, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("dropbox upload: %w", err)
	}
	return nil
}
