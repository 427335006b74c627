package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/rs/zerolog"

	"playtube/api/internal/apperr"
	"playtube/api/internal/config"
	"playtube/api/internal/ids"
	"playtube/api/internal/media/sniffer"
)

// ImageStore is the media-host surface the upload path writes to.
// *storage.ObjectStore implements it; tests substitute a fake.
type ImageStore interface {
	Put(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) error
	PublicURL(objectKey string) string
}

// MediaService pushes uploaded images to the media host. The upload goes
// through a local temp file which is removed before return, success or not.
type MediaService struct {
	store ImageStore
	cfg   *config.AppConfig
	log   zerolog.Logger
}

func NewMediaService(store ImageStore, cfg *config.AppConfig, log zerolog.Logger) *MediaService {
	return &MediaService{
		store: store,
		cfg:   cfg,
		log:   log,
	}
}

func (s *MediaService) StoreImage(ctx context.Context, header *multipart.FileHeader, folder string) (string, error) {
	if header == nil {
		return "", apperr.New(apperr.Validation, "file is required")
	}
	if s.cfg.Upload.MaxBytes > 0 && header.Size > s.cfg.Upload.MaxBytes {
		return "", apperr.New(apperr.Validation, "file exceeds the upload size limit")
	}

	src, err := header.Open()
	if err != nil {
		return "", apperr.Wrap(apperr.Upload, "could not read uploaded file", err)
	}
	defer src.Close()

	tmpPath, size, err := s.spool(src)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", tmpPath).Msg("temp file cleanup failed")
		}
	}()

	file, err := os.Open(tmpPath)
	if err != nil {
		return "", apperr.Wrap(apperr.Upload, "could not read uploaded file", err)
	}
	defer file.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", apperr.Wrap(apperr.Upload, "could not read uploaded file", err)
	}

	result, err := sniffer.DetectHead(head[:n])
	if err != nil {
		return "", apperr.Wrap(apperr.Validation, "unsupported image format", err)
	}

	if declared := sniffer.MimeTypeFromHTTP(http.Header(header.Header)); declared != "" && declared != result.MIME {
		return "", apperr.New(apperr.Validation,
			fmt.Sprintf("content type mismatch: declared %s, actual %s", declared, result.MIME))
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", apperr.Wrap(apperr.Upload, "could not read uploaded file", err)
	}

	objectKey := buildObjectKey(folder, string(result.Type))
	if err := s.store.Put(ctx, objectKey, file, size, result.MIME); err != nil {
		return "", apperr.Wrap(apperr.Upload, "file upload failed", err)
	}

	return s.store.PublicURL(objectKey), nil
}

// spool writes the uploaded part to the local temp directory and returns the
// path plus the byte count.
func (s *MediaService) spool(src multipart.File) (string, int64, error) {
	if err := os.MkdirAll(s.cfg.Upload.TempDir, 0o755); err != nil {
		return "", 0, apperr.Wrap(apperr.Upload, "could not store uploaded file", err)
	}

	tmp, err := os.CreateTemp(s.cfg.Upload.TempDir, "upload-*")
	if err != nil {
		return "", 0, apperr.Wrap(apperr.Upload, "could not store uploaded file", err)
	}

	size, err := io.Copy(tmp, src)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := os.Remove(tmp.Name()); rmErr != nil && !os.IsNotExist(rmErr) {
			s.log.Warn().Err(rmErr).Str("path", tmp.Name()).Msg("temp file cleanup failed")
		}
		return "", 0, apperr.Wrap(apperr.Upload, "could not store uploaded file", err)
	}

	return tmp.Name(), size, nil
}

func buildObjectKey(folder string, ext string) string {
	datePrefix := time.Now().UTC().Format("2006/01/02")
	return path.Join(folder, datePrefix, fmt.Sprintf("%s.%s", ids.New(), ext))
}
