package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"

	"github.com/AnTengye/orderledger/config"
	"github.com/AnTengye/orderledger/model"
)

const csvContentType = "text/csv; charset=utf-8"

// BackupService copies the ledger files to an object store bucket.
type BackupService struct {
	client *minio.Client
	bucket string
	config *config.MinioConfig
	store  *LedgerStore
	now    func() time.Time
}

func NewBackupService(cfg *config.MinioConfig, store *LedgerStore, now func() time.Time) (*BackupService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	if now == nil {
		now = time.Now
	}

	return &BackupService{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
		store:  store,
		now:    now,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *BackupService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.config.Region})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		slog.Info("backup bucket created", "bucket", s.bucket)
	}

	return nil
}

// Backup uploads every ledger file under <prefix>/<date>/ and returns the
// object names written, in ledger order.
func (s *BackupService) Backup(ctx context.Context) ([]string, error) {
	files, err := s.store.Snapshot()
	if err != nil {
		return nil, err
	}

	dir := path.Join(s.config.Prefix, model.FormatDate(s.now()))
	objects := make([]string, len(files))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, f := range files {
		objects[i] = path.Join(dir, f.Name)
		eg.Go(func() error {
			return s.upload(egCtx, objects[i], f.Data)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	slog.Info("ledgers backed up", "bucket", s.bucket, "objects", len(objects))
	return objects, nil
}

// ExportURL uploads the orders ledger and returns a presigned download link
// valid for the configured number of days.
func (s *BackupService) ExportURL(ctx context.Context) (string, error) {
	data, err := s.store.ExportOrders()
	if err != nil {
		return "", err
	}

	name := path.Join(s.config.Prefix, "exports", model.FormatDate(s.now()), filepath.Base(s.store.OrdersPath()))
	if err := s.upload(ctx, name, data); err != nil {
		return "", err
	}
	return s.PresignedURL(ctx, name)
}

// PresignedURL generates a presigned URL for the object with expiration
func (s *BackupService) PresignedURL(ctx context.Context, objectName string) (string, error) {
	expiry := time.Duration(s.config.ExpireDays) * 24 * time.Hour
	url, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}

func (s *BackupService) upload(ctx context.Context, objectName string, data []byte) error {
	if len(data) == 0 {
		return errors.New("refusing to upload an empty ledger file")
	}
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: csvContentType,
	})
	if err != nil {
		slog.Error("failed to upload ledger", "bucket", s.bucket, "object", objectName, "error", err)
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

// PublicURL returns a public URL for the object (if bucket policy allows)
func (s *BackupService) PublicURL(objectName string) string {
	protocol := "http"
	if s.config.UseSSL {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", protocol, s.config.Endpoint, s.bucket, objectName)
}
