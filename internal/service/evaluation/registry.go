package evaluation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/rekcurd/dashboard/internal/blob"
	"github.com/rekcurd/dashboard/internal/model"
)

// UploadResult is the outcome of Registry.Upload. Message is empty when a
// new dataset was created and holds the dedup notice otherwise.
type UploadResult struct {
	Evaluation model.Evaluation
	Created    bool
	Message    string
}

// Registry manages uploaded evaluation datasets.
type Registry struct {
	store  Store
	blobs  blob.Store
	logger *slog.Logger

	// uploads collapses concurrent uploads of identical content within this
	// process; the unique constraint covers the cross-process case.
	uploads singleflight.Group
}

// NewRegistry creates a dataset registry.
func NewRegistry(store Store, blobs blob.Store, logger *slog.Logger) *Registry {
	return &Registry{store: store, blobs: blobs, logger: logger}
}

// Checksum is the content hash datasets are deduplicated by.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Upload stores data as a new dataset of applicationID unless identical
// content was uploaded before, in which case the existing dataset is
// returned with Created=false.
func (r *Registry) Upload(ctx context.Context, applicationID int64, data []byte, description string) (UploadResult, error) {
	checksum := Checksum(data)
	description = model.NormalizeDescription(description)

	ran := false
	v, err, _ := r.uploads.Do(strconv.FormatInt(applicationID, 10)+"/"+checksum, func() (any, error) {
		ran = true
		return r.upload(ctx, applicationID, checksum, data, description)
	})
	if err != nil {
		return UploadResult{}, err
	}
	res := v.(UploadResult)
	if !ran && res.Created {
		// Another caller created it; for this one it already existed.
		res.Created = false
		res.Message = model.DuplicateUploadMessage(res.Evaluation)
	}
	return res, nil
}

func (r *Registry) upload(ctx context.Context, applicationID int64, checksum string, data []byte, description string) (UploadResult, error) {
	existing, err := r.store.GetEvaluationByChecksum(ctx, applicationID, checksum)
	switch {
	case err == nil:
		return duplicate(existing), nil
	case !errors.Is(err, ErrNotFound):
		return UploadResult{}, fmt.Errorf("upload: lookup checksum: %w", err)
	}

	key := blob.EvaluationKey(applicationID)
	if err := r.blobs.Put(ctx, key, data); err != nil {
		return UploadResult{}, fmt.Errorf("upload: store data: %w", err)
	}

	ev, err := r.store.CreateEvaluation(ctx, model.Evaluation{
		ApplicationID: applicationID,
		Checksum:      checksum,
		Description:   description,
		DataPath:      key,
	})
	if err != nil {
		r.dropBlob(ctx, key)
		if errors.Is(err, ErrConflict) {
			// Lost a race with another process uploading the same bytes.
			existing, lookupErr := r.store.GetEvaluationByChecksum(ctx, applicationID, checksum)
			if lookupErr != nil {
				return UploadResult{}, fmt.Errorf("upload: lookup after conflict: %w", lookupErr)
			}
			return duplicate(existing), nil
		}
		return UploadResult{}, fmt.Errorf("upload: create evaluation: %w", err)
	}

	r.logger.Info("evaluation uploaded",
		"application_id", applicationID, "evaluation_id", ev.EvaluationID, "bytes", len(data))
	return UploadResult{Evaluation: ev, Created: true}, nil
}

func duplicate(existing model.Evaluation) UploadResult {
	return UploadResult{
		Evaluation: existing,
		Created:    false,
		Message:    model.DuplicateUploadMessage(existing),
	}
}

// List returns the datasets of an application in creation order.
func (r *Registry) List(ctx context.Context, applicationID int64) ([]model.Evaluation, error) {
	return r.store.ListEvaluations(ctx, applicationID)
}

// Get returns one dataset or ErrNotFound.
func (r *Registry) Get(ctx context.Context, applicationID, evaluationID int64) (model.Evaluation, error) {
	return r.store.GetEvaluation(ctx, applicationID, evaluationID)
}

// Latest returns the most recently uploaded dataset or ErrNotFound.
func (r *Registry) Latest(ctx context.Context, applicationID int64) (model.Evaluation, error) {
	return r.store.GetLatestEvaluation(ctx, applicationID)
}

// Delete removes a dataset and every result referencing it. The stored bytes
// are removed afterwards on a best-effort basis.
func (r *Registry) Delete(ctx context.Context, applicationID, evaluationID int64) error {
	ev, err := r.store.DeleteEvaluation(ctx, applicationID, evaluationID)
	if err != nil {
		return err
	}
	if ev.DataPath != "" {
		r.dropBlob(ctx, ev.DataPath)
	}
	r.logger.Info("evaluation deleted", "application_id", applicationID, "evaluation_id", evaluationID)
	return nil
}

// Download opens the stored bytes of a dataset. The caller closes the reader.
func (r *Registry) Download(ctx context.Context, applicationID, evaluationID int64) (io.ReadCloser, model.Evaluation, error) {
	ev, err := r.store.GetEvaluation(ctx, applicationID, evaluationID)
	if err != nil {
		return nil, model.Evaluation{}, err
	}
	rc, err := r.blobs.Open(ctx, ev.DataPath)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, model.Evaluation{}, fmt.Errorf("download evaluation %d: %w", evaluationID, ErrNotFound)
		}
		return nil, model.Evaluation{}, fmt.Errorf("download evaluation %d: %w", evaluationID, err)
	}
	return rc, ev, nil
}

// read returns the full bytes of a dataset.
func (r *Registry) read(ctx context.Context, ev model.Evaluation) ([]byte, error) {
	b, err := blob.ReadAll(ctx, r.blobs, ev.DataPath)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, fmt.Errorf("evaluation %d data: %w", ev.EvaluationID, ErrNotFound)
		}
		return nil, err
	}
	return b, nil
}

func (r *Registry) dropBlob(ctx context.Context, key string) {
	if err := r.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		r.logger.Warn("evaluation: remove stored data failed", "key", key, "error", err)
	}
}

// DataMode reports where dataset bytes live.
func (r *Registry) DataMode() blob.Mode {
	return r.blobs.Mode()
}
