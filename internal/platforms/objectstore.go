package platforms

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pressworks/disseminator/internal/checksum"
	"github.com/pressworks/disseminator/internal/packaging"
)

// ObjectStore delivers a flat package into an S3-compatible bucket, one
// object per payload under the work's filename root.
type ObjectStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
	force   bool
}

// NewObjectStore creates a client for the openarchive object store.
func NewObjectStore(endpoint, region, bucket, baseURL string, useSSL, force bool, accessKey, secretKey string) (*ObjectStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store client: %w", err)
	}
	return &ObjectStore{client: client, bucket: bucket, baseURL: baseURL, force: force}, nil
}

// Deliver writes every payload under "<root>/<name>". An object that is
// already present is refused unless force is set; after a mid-package
// failure the objects written so far are removed so the platform never
// sees a partial item.
func (s *ObjectStore) Deliver(ctx context.Context, pkg *packaging.Package) (Location, error) {
	var written []string
	for _, payload := range pkg.Payloads() {
		key := pkg.Root + "/" + payload.Name
		if err := s.checkOverwrite(ctx, key, payload.Data); err != nil {
			s.removeAll(ctx, written)
			return Location{}, err
		}
		info, err := s.client.PutObject(ctx, s.bucket, key,
			bytes.NewReader(payload.Data), int64(len(payload.Data)),
			minio.PutObjectOptions{ContentType: payload.MIME})
		if err != nil {
			s.removeAll(ctx, written)
			return Location{}, fmt.Errorf("upload %s: %w", key, err)
		}
		// Single-part uploads echo the MD5 as the ETag; multipart ETags
		// contain a dash and cannot be compared this way.
		if etag := strings.Trim(info.ETag, `"`); !strings.Contains(etag, "-") {
			if etag != checksum.MD5Hex(payload.Data) {
				s.removeAll(ctx, append(written, key))
				return Location{}, fmt.Errorf("upload %s: stored digest %s does not match content", key, etag)
			}
		}
		written = append(written, key)
	}
	return Location{
		ID:  pkg.Root,
		URL: strings.TrimSuffix(s.baseURL, "/") + "/" + pkg.Root,
	}, nil
}

func (s *ObjectStore) checkOverwrite(ctx context.Context, key string, data []byte) error {
	stat, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return nil
		}
		return fmt.Errorf("stat %s: %w", key, err)
	}
	if s.force {
		return nil
	}
	if strings.Trim(stat.ETag, `"`) == checksum.MD5Hex(data) {
		return fmt.Errorf("object %s already present with identical content (use force to overwrite)", key)
	}
	return fmt.Errorf("object %s already present with different content", key)
}

func (s *ObjectStore) removeAll(ctx context.Context, keys []string) {
	for _, key := range keys {
		_ = s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	}
}
