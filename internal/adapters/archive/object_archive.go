package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
	"github.com/zatekoja/trafficpipeline/internal/domain/providers"
	apperrors "github.com/zatekoja/trafficpipeline/pkg/errors"
)

const keyTimeLayout = "20060102T150405Z"

// ObjectPutter is the subset of *minio.Client the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ObjectArchive stores raw analytics pages as gzipped JSON objects.
type ObjectArchive struct {
	store  ObjectPutter
	bucket string
	prefix string
}

// NewObjectArchive creates a new object archive
func NewObjectArchive(store ObjectPutter, bucket, prefix string) *ObjectArchive {
	return &ObjectArchive{
		store:  store,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

var _ providers.PageArchive = (*ObjectArchive)(nil)

// ObjectKey returns <prefix>/<batch name>/<window start>.json.gz.
func ObjectKey(prefix string, meta entities.BatchMetadata) string {
	name := meta.Window.Start.UTC().Format(keyTimeLayout) + ".json.gz"
	return path.Join(strings.Trim(prefix, "/"), meta.BatchName, name)
}

// StorePage compresses body and uploads it under ObjectKey.
func (a *ObjectArchive) StorePage(ctx context.Context, meta entities.BatchMetadata, body []byte) error {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(body); err != nil {
		return apperrors.NewInternalError("failed to compress page", err)
	}
	if err := gz.Close(); err != nil {
		return apperrors.NewInternalError("failed to compress page", err)
	}

	reader := bytes.NewReader(buf.Bytes())
	_, err := a.store.PutObject(ctx, a.bucket, ObjectKey(a.prefix, meta), reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType:     "application/json",
		ContentEncoding: "gzip",
		UserMetadata: map[string]string{
			"batch-id":     meta.BatchID,
			"batch-name":   meta.BatchName,
			"window-start": meta.Window.Start.UTC().Format(time.RFC3339),
			"window-end":   meta.Window.End.UTC().Format(time.RFC3339),
			"raw-size":     strconv.Itoa(len(body)),
		},
	})
	if err != nil {
		return apperrors.NewUnavailableError("failed to upload page to "+a.bucket, err)
	}
	return nil
}
