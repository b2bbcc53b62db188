package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pickperfect/api/internal/common"
)

// ObjectDownloader is the slice of the storage client the retriever needs
type ObjectDownloader interface {
	Bucket() string
	Download(ctx context.Context, key string, dst io.Writer) (int64, error)
}

// Retrieval is a downloaded object inside its own scratch directory
type Retrieval struct {
	Dir   string
	Path  string
	Bytes int64
}

// Cleanup removes the scratch directory and everything derived in it
func (r *Retrieval) Cleanup() error {
	if r == nil || r.Dir == "" {
		return nil
	}
	return os.RemoveAll(r.Dir)
}

// Retriever pulls uploaded media into local scratch storage
type Retriever struct {
	storage     ObjectDownloader
	scratchRoot string
	retryWindow time.Duration
}

// NewRetriever creates a retriever. An empty scratchRoot uses the OS temp dir.
func NewRetriever(storage ObjectDownloader, scratchRoot string, retryWindow time.Duration) *Retriever {
	return &Retriever{
		storage:     storage,
		scratchRoot: scratchRoot,
		retryWindow: retryWindow,
	}
}

// Retrieve downloads key into a fresh scratch directory, naming the file
// after the key's base name. The caller owns the returned Retrieval and
// must call Cleanup.
func (r *Retriever) Retrieve(ctx context.Context, key string) (*Retrieval, error) {
	if r.storage == nil || r.storage.Bucket() == "" {
		return nil, common.NewConfigurationError("storage bucket is not set", "AWS_S3_BUCKET")
	}
	if key == "" {
		return nil, common.NewConfigurationError("storage key is missing", "storage_key")
	}

	dir, err := os.MkdirTemp(r.scratchRoot, "analysis-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	retrieval := &Retrieval{Dir: dir, Path: filepath.Join(dir, path.Base(key))}

	op := func() error {
		f, err := os.Create(retrieval.Path)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create local file: %w", err))
		}
		n, err := r.storage.Download(ctx, key, f)
		closeErr := f.Close()
		if err != nil {
			if errors.Is(err, common.ErrRetrievalNotFound) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if closeErr != nil {
			return backoff.Permanent(fmt.Errorf("close local file: %w", closeErr))
		}
		retrieval.Bytes = n
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = r.retryWindow
	var policy backoff.BackOff = bo
	if r.retryWindow <= 0 {
		policy = &backoff.StopBackOff{}
	}

	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		_ = retrieval.Cleanup()
		return nil, fmt.Errorf("download %s: %w", key, err)
	}

	return retrieval, nil
}
