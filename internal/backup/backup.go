// Package backup uploads copies of the transition log to remote storage.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Uploader stores the contents of a local file under a remote path.
type Uploader interface {
	// Upload copies localPath to remotePath, overwriting any existing file.
	Upload(ctx context.Context, localPath, remotePath string) error
}

// ErrDisabled is returned by Job.Run when no uploader is configured.
var ErrDisabled = errors.New("backup: no uploader configured")

// RemotePath returns the remote file name for a backup taken at t.
func RemotePath(t time.Time) string {
	return fmt.Sprintf("/lamp_state_%d.txt", t.Unix())
}

// Job uploads a local file on a fixed interval. Like the detector it is
// driven from the polling loop; Due and Run are not safe for concurrent use.
type Job struct {
	uploader  Uploader
	localPath string
	interval  time.Duration
	last      time.Time
}

// NewJob creates a job uploading localPath every interval, counting from
// start. A nil uploader or an interval <= 0 disables periodic runs.
func NewJob(uploader Uploader, localPath string, interval time.Duration, start time.Time) *Job {
	return &Job{
		uploader:  uploader,
		localPath: localPath,
		interval:  interval,
		last:      start,
	}
}

// Enabled reports whether an uploader is configured.
func (j *Job) Enabled() bool {
	return j.uploader != nil
}

// Due reports whether a periodic backup should run at now.
func (j *Job) Due(now time.Time) bool {
	if j.uploader == nil || j.interval <= 0 {
		return false
	}
	return now.Sub(j.last) >= j.interval
}

// Run uploads the file immediately and resets the interval timer, even on
// failure, so a broken remote is retried on the next interval rather than
// every tick. It returns the remote path used.
func (j *Job) Run(ctx context.Context, now time.Time) (string, error) {
	if j.uploader == nil {
		return "", ErrDisabled
	}
	j.last = now
	remote := RemotePath(now)
	if err := j.uploader.Upload(ctx, j.localPath, remote); err != nil {
		return remote, fmt.Errorf("upload %s to %s: %w", j.localPath, remote, err)
	}
	return remote, nil
}

// readSnapshot reads the whole file so the upload is not affected by
// concurrent appends.
func readSnapshot(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return data, nil
}
