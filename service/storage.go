package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/ajgcsol/videopipeline/config"
	"github.com/ajgcsol/videopipeline/models"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// UploadDestination is what the storage side hands back for a new upload.
// For multipart uploads the part size and count are storage-assigned.
type UploadDestination struct {
	UploadID   string
	ObjectKey  string
	Multipart  bool
	PartSize   int64
	TotalParts int
}

// StorageService is the upload collaborator. Implementations perform network
// I/O only and never touch orchestrator state.
type StorageService interface {
	RequestUploadDestination(ctx context.Context, meta models.VideoMetadata, multipart bool) (*UploadDestination, error)
	UploadBytes(ctx context.Context, dest *UploadDestination, partNumber int, payload io.Reader, size int64) (string, error)
	UploadObject(ctx context.Context, dest *UploadDestination, payload io.Reader, size int64) error
	FinalizeMultipart(ctx context.Context, dest *UploadDestination, parts []models.UploadedPart) error
	AbortMultipart(ctx context.Context, dest *UploadDestination) error
}

type MinIOStorageService struct {
	client *minio.Client
	core   *minio.Core
	cfg    *config.Config
	logger *logrus.Logger
}

func NewMinIOStorageService(cfg *config.Config, logger *logrus.Logger) (*MinIOStorageService, error) {
	client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKeyID, cfg.MinIO.SecretAccessKey, ""),
		Secure: cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	// Ensure the bucket exists
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.MinIO.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		err = client.MakeBucket(ctx, cfg.MinIO.BucketName, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinIOStorageService{
		client: client,
		core:   &minio.Core{Client: client},
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (s *MinIOStorageService) RequestUploadDestination(ctx context.Context, meta models.VideoMetadata, multipart bool) (*UploadDestination, error) {
	ext := filepath.Ext(meta.Filename)
	objectKey := fmt.Sprintf("uploads/%s%s", uuid.New().String(), ext)

	dest := &UploadDestination{
		// The upload ID doubles as the transcoder job reference.
		UploadID:  uuid.New().String(),
		ObjectKey: objectKey,
		Multipart: multipart,
	}
	if !multipart {
		return dest, nil
	}

	uploadID, err := s.core.NewMultipartUpload(ctx, s.cfg.MinIO.BucketName, objectKey, minio.PutObjectOptions{
		ContentType: "video/*",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initiate multipart upload: %w", err)
	}

	partSize := s.cfg.Pipeline.PartSize
	dest.UploadID = uploadID
	dest.PartSize = partSize
	dest.TotalParts = int((meta.SizeBytes + partSize - 1) / partSize)

	s.logger.Infof("Multipart upload initiated: object=%s parts=%d partSize=%d", objectKey, dest.TotalParts, partSize)
	return dest, nil
}

func (s *MinIOStorageService) UploadBytes(ctx context.Context, dest *UploadDestination, partNumber int, payload io.Reader, size int64) (string, error) {
	part, err := s.core.PutObjectPart(ctx, s.cfg.MinIO.BucketName, dest.ObjectKey, dest.UploadID, partNumber, payload, size, minio.PutObjectPartOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to upload part %d: %w", partNumber, err)
	}
	return part.ETag, nil
}

func (s *MinIOStorageService) UploadObject(ctx context.Context, dest *UploadDestination, payload io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.cfg.MinIO.BucketName, dest.ObjectKey, payload, size, minio.PutObjectOptions{
		ContentType: "video/*",
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

func (s *MinIOStorageService) FinalizeMultipart(ctx context.Context, dest *UploadDestination, parts []models.UploadedPart) error {
	completeParts := make([]minio.CompletePart, 0, len(parts))
	for _, p := range parts {
		completeParts = append(completeParts, minio.CompletePart{
			PartNumber: p.PartNumber,
			ETag:       p.PartIdentifier,
		})
	}

	_, err := s.core.CompleteMultipartUpload(ctx, s.cfg.MinIO.BucketName, dest.ObjectKey, dest.UploadID, completeParts, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to finalize multipart upload: %w", err)
	}
	return nil
}

func (s *MinIOStorageService) AbortMultipart(ctx context.Context, dest *UploadDestination) error {
	return s.core.AbortMultipartUpload(ctx, s.cfg.MinIO.BucketName, dest.ObjectKey, dest.UploadID)
}
