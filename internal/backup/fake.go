package backup

import "context"

// Upload records a single FakeUploader call.
type Upload struct {
	LocalPath  string
	RemotePath string
}

// FakeUploader records uploads for test assertions.
type FakeUploader struct {
	Uploads []Upload

	// UploadError, if set, will be returned by Upload.
	UploadError error
}

// NewFakeUploader creates an empty FakeUploader.
func NewFakeUploader() *FakeUploader {
	return &FakeUploader{}
}

// Upload records the call.
func (f *FakeUploader) Upload(_ context.Context, localPath, remotePath string) error {
	if f.UploadError != nil {
		return f.UploadError
	}
	f.Uploads = append(f.Uploads, Upload{LocalPath: localPath, RemotePath: remotePath})
	return nil
}
