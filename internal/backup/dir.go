package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirUploader copies files into a local directory, e.g. a mounted network
// share, using the remote path as the file name.
type DirUploader struct {
	dir string
}

// NewDirUploader creates an uploader writing into dir.
func NewDirUploader(dir string) *DirUploader {
	return &DirUploader{dir: dir}
}

// Upload writes the contents of localPath to dir/remotePath.
func (u *DirUploader) Upload(ctx context.Context, localPath, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := readSnapshot(localPath)
	if err != nil {
		return err
	}
	dest := filepath.Join(u.dir, filepath.Base(remotePath))
	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("rename %q: %w", tmp, err)
	}
	return nil
}
