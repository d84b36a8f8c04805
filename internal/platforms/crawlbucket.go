package platforms

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pressworks/disseminator/internal/packaging"
	"github.com/pressworks/disseminator/internal/secrets"
)

// CrawlBucket delivers into the bucket a crawler ingests from: content
// files under "ebooks/<collection>/" and the metadata manifest entry under
// "onix/<collection>-full/". The collection code is assigned per publisher
// and resolved from the secret store at delivery time, once the work's
// publisher is known.
type CrawlBucket struct {
	client   *minio.Client
	bucket   string
	platform string
	store    *secrets.Store
}

// NewCrawlBucket creates a client for the crawldirect ingest bucket.
func NewCrawlBucket(endpoint, bucket, platform string, useSSL bool, accessKey, secretKey string, store *secrets.Store) (*CrawlBucket, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init crawl bucket client: %w", err)
	}
	return &CrawlBucket{client: client, bucket: bucket, platform: platform, store: store}, nil
}

// Deliver uploads content first and the manifest entry last, so the
// crawler never sees a manifest pointing at files that are not there yet.
func (c *CrawlBucket) Deliver(ctx context.Context, pkg *packaging.Package) (Location, error) {
	collection, err := c.store.Credential(c.platform, "COLLECTION", pkg.PublisherID)
	if err != nil {
		return Location{}, fmt.Errorf("no collection code for publisher %s: %w", pkg.PublisherID, err)
	}

	var written []string
	put := func(key string, payload []byte, mime string) error {
		_, err := c.client.PutObject(ctx, c.bucket, key,
			bytes.NewReader(payload), int64(len(payload)),
			minio.PutObjectOptions{ContentType: mime})
		if err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		written = append(written, key)
		return nil
	}

	for _, file := range pkg.Files {
		key := fmt.Sprintf("ebooks/%s/%s", collection, file.Name)
		if err := put(key, file.Data, file.MIME); err != nil {
			c.removeAll(ctx, written)
			return Location{}, err
		}
	}
	manifestKey := fmt.Sprintf("onix/%s-full/%s", collection, pkg.Metadata.Name)
	if err := put(manifestKey, pkg.Metadata.Data, pkg.Metadata.MIME); err != nil {
		c.removeAll(ctx, written)
		return Location{}, err
	}

	return Location{ID: fmt.Sprintf("%s/%s", collection, pkg.Root)}, nil
}

func (c *CrawlBucket) removeAll(ctx context.Context, keys []string) {
	for _, key := range keys {
		_ = c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{})
	}
}
