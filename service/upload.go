package service

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/ajgcsol/videopipeline/config"
	"github.com/ajgcsol/videopipeline/models"
	"github.com/ajgcsol/videopipeline/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// ProgressFunc receives monotonic upload percentages in 0..100.
type ProgressFunc func(percentage int)

// UploadTransport decides between single-shot and multipart uploads and
// drives the chosen path to completion. There is no resumption contract: a
// failed multipart sequence must be retried from scratch.
type UploadTransport interface {
	BeginUpload(ctx context.Context, payload io.Reader, meta models.VideoMetadata, onProgress ProgressFunc) (*models.UploadResult, error)
}

type UploadTransportImpl struct {
	storage StorageService
	cfg     *config.Config
	logger  *logrus.Logger
}

func NewUploadTransport(storage StorageService, cfg *config.Config, logger *logrus.Logger) UploadTransport {
	return &UploadTransportImpl{
		storage: storage,
		cfg:     cfg,
		logger:  logger,
	}
}

func (t *UploadTransportImpl) BeginUpload(ctx context.Context, payload io.Reader, meta models.VideoMetadata, onProgress ProgressFunc) (*models.UploadResult, error) {
	if meta.SizeBytes > t.cfg.Pipeline.MultipartThreshold {
		return t.multipartUpload(ctx, payload, meta, onProgress)
	}
	return t.singleUpload(ctx, payload, meta, onProgress)
}

func (t *UploadTransportImpl) singleUpload(ctx context.Context, payload io.Reader, meta models.VideoMetadata, onProgress ProgressFunc) (*models.UploadResult, error) {
	dest, err := t.storage.RequestUploadDestination(ctx, meta, false)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("single", "error").Inc()
		return nil, NewTransportError("failed to request upload destination", err)
	}

	reader := &progressReader{
		inner:      payload,
		total:      meta.SizeBytes,
		onProgress: onProgress,
	}
	if err := t.storage.UploadObject(ctx, dest, reader, meta.SizeBytes); err != nil {
		metrics.UploadsTotal.WithLabelValues("single", "error").Inc()
		return nil, NewTransportError("single-shot upload failed", err)
	}

	metrics.UploadsTotal.WithLabelValues("single", "success").Inc()
	metrics.UploadBytesTotal.Add(float64(meta.SizeBytes))

	return &models.UploadResult{
		UploadID:  dest.UploadID,
		ObjectKey: dest.ObjectKey,
		Multipart: false,
		SizeBytes: meta.SizeBytes,
	}, nil
}

// multipartUpload uploads parts strictly sequentially in ascending part
// number order and finalizes exactly once with the full ordered list.
func (t *UploadTransportImpl) multipartUpload(ctx context.Context, payload io.Reader, meta models.VideoMetadata, onProgress ProgressFunc) (*models.UploadResult, error) {
	dest, err := t.storage.RequestUploadDestination(ctx, meta, true)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("multipart", "error").Inc()
		return nil, NewTransportError("failed to request upload destination", err)
	}

	plan := models.MultipartUploadPlan{
		UploadID:   dest.UploadID,
		ObjectKey:  dest.ObjectKey,
		PartSize:   dest.PartSize,
		TotalParts: dest.TotalParts,
		Parts:      make([]models.UploadedPart, 0, dest.TotalParts),
	}

	remaining := meta.SizeBytes
	var uploaded int64
	for partNumber := 1; partNumber <= dest.TotalParts; partNumber++ {
		partSize := dest.PartSize
		if remaining < partSize {
			partSize = remaining
		}

		partID, err := t.storage.UploadBytes(ctx, dest, partNumber, io.LimitReader(payload, partSize), partSize)
		if err != nil {
			// No partial-success state is visible to the caller.
			if abortErr := t.storage.AbortMultipart(ctx, dest); abortErr != nil {
				t.logger.Warnf("Failed to abort multipart upload %s: %v", dest.UploadID, abortErr)
			}
			metrics.UploadsTotal.WithLabelValues("multipart", "error").Inc()
			return nil, NewTransportError(fmt.Sprintf("part %d upload failed", partNumber), err)
		}

		plan.Parts = append(plan.Parts, models.UploadedPart{
			PartNumber:     partNumber,
			PartIdentifier: partID,
		})
		remaining -= partSize
		uploaded += partSize
		if onProgress != nil {
			onProgress(int(uploaded * 100 / meta.SizeBytes))
		}
	}

	if err := validateParts(plan.Parts, plan.TotalParts); err != nil {
		metrics.UploadsTotal.WithLabelValues("multipart", "error").Inc()
		return nil, NewTransportError("refusing to finalize", err)
	}

	if err := t.storage.FinalizeMultipart(ctx, dest, plan.Parts); err != nil {
		metrics.UploadsTotal.WithLabelValues("multipart", "error").Inc()
		return nil, NewTransportError("finalize failed", err)
	}

	metrics.UploadsTotal.WithLabelValues("multipart", "success").Inc()
	metrics.UploadBytesTotal.Add(float64(meta.SizeBytes))
	t.logger.Infof("Multipart upload complete: object=%s parts=%d", dest.ObjectKey, plan.TotalParts)

	return &models.UploadResult{
		UploadID:  dest.UploadID,
		ObjectKey: dest.ObjectKey,
		Multipart: true,
		SizeBytes: meta.SizeBytes,
	}, nil
}

// validateParts rejects finalize unless the part list is exactly
// 1..totalParts with no duplicates and no gaps.
func validateParts(parts []models.UploadedPart, totalParts int) error {
	if len(parts) != totalParts {
		return fmt.Errorf("%w: have %d parts, want %d", ErrPartsNotContiguous, len(parts), totalParts)
	}

	sorted := make([]models.UploadedPart, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	for i, p := range sorted {
		if p.PartNumber != i+1 {
			return fmt.Errorf("%w: part %d missing", ErrPartsNotContiguous, i+1)
		}
	}
	return nil
}

// progressReader reports floor(loaded/total*100) on every read.
type progressReader struct {
	inner      io.Reader
	total      int64
	loaded     int64
	onProgress ProgressFunc
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.inner.Read(p)
	if n > 0 {
		r.loaded += int64(n)
		if r.onProgress != nil && r.total > 0 {
			r.onProgress(int(r.loaded * 100 / r.total))
		}
	}
	return n, err
}
