// Package config centralizes how the disseminator reads environment
// variables and exposes them as strongly typed values. Platform credentials
// are deliberately not part of Config; they are resolved by the secrets
// package so tests can inject fakes without touching the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration for one process (CLI or worker).
type Config struct {
	// Registry collaborator.
	RegistryURL     string
	RegistryTimeout time.Duration

	// Content-file retrieval.
	FetchTimeout    time.Duration
	VerifyChecksums bool
	VerifyPDF       bool

	// Transport retry policy applied inside platform clients.
	TransportRetries int
	RetryBaseDelay   time.Duration

	// Bulk processing.
	Concurrency int

	// Asynq / Redis for scheduled bulk runs.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Optional Postgres attempt journal. Empty disables journalling.
	DatabaseURL string

	// openarchive: S3-compatible object storage.
	OpenArchiveEndpoint string
	OpenArchiveBucket   string
	OpenArchiveRegion   string
	OpenArchiveUseSSL   bool
	// Public URL root for assigned locations.
	OpenArchiveBaseURL string
	OpenArchiveForce   bool

	// crawldirect: crawl-ingest bucket.
	CrawlDirectEndpoint string
	CrawlDirectBucket   string
	CrawlDirectUseSSL   bool

	// bookstream: SFTP deposit.
	BookStreamHost    string
	BookStreamPort    int
	BookStreamRootDir string

	// scholardeposit: AtomPub collection endpoint.
	ScholarDepositURL string

	// researchvault: token-authenticated REST API root.
	ResearchVaultURL string
}

const (
	defaultRegistryURL  = "http://localhost:8000/graphql"
	defaultRedisAddr    = "127.0.0.1:6379"
	defaultConcurrency  = 4
	defaultRetries      = 3
	defaultRetryDelay   = 2 * time.Second
	defaultHTTPTimeout  = 30 * time.Second
	defaultFetchTimeout = 5 * time.Minute
	defaultSFTPPort     = 22
)

// Load reads configuration from environment variables falling back to
// defaults. It keeps the (value, error) shape so callers are ready for
// stricter validation later.
func Load() (*Config, error) {
	cfg := &Config{
		RegistryURL:     readEnv("DISSEM_REGISTRY_URL", defaultRegistryURL),
		RegistryTimeout: parseDuration("DISSEM_REGISTRY_TIMEOUT", defaultHTTPTimeout),

		FetchTimeout:    parseDuration("DISSEM_FETCH_TIMEOUT", defaultFetchTimeout),
		VerifyChecksums: parseBool("DISSEM_VERIFY_CHECKSUMS", true),
		VerifyPDF:       parseBool("DISSEM_VERIFY_PDF", true),

		TransportRetries: parseInt("DISSEM_TRANSPORT_RETRIES", defaultRetries),
		RetryBaseDelay:   parseDuration("DISSEM_RETRY_BASE_DELAY", defaultRetryDelay),

		Concurrency: parseInt("DISSEM_CONCURRENCY", defaultConcurrency),

		RedisAddr:     readEnv("DISSEM_REDIS_ADDR", defaultRedisAddr),
		RedisPassword: readEnv("DISSEM_REDIS_PASSWORD", ""),
		RedisDB:       parseInt("DISSEM_REDIS_DB", 0),

		DatabaseURL: readEnv("DISSEM_DATABASE_URL", ""),

		OpenArchiveEndpoint: readEnv("DISSEM_OPENARCHIVE_ENDPOINT", "s3.openarchive.example.org"),
		OpenArchiveBucket:   readEnv("DISSEM_OPENARCHIVE_BUCKET", "openarchive-ingest"),
		OpenArchiveRegion:   readEnv("DISSEM_OPENARCHIVE_REGION", "us-east-1"),
		OpenArchiveUseSSL:   parseBool("DISSEM_OPENARCHIVE_USE_SSL", true),
		OpenArchiveBaseURL:  readEnv("DISSEM_OPENARCHIVE_BASE_URL", "https://openarchive.example.org/details"),
		OpenArchiveForce:    parseBool("DISSEM_OPENARCHIVE_FORCE", false),

		CrawlDirectEndpoint: readEnv("DISSEM_CRAWLDIRECT_ENDPOINT", "storage.crawldirect.example.org"),
		CrawlDirectBucket:   readEnv("DISSEM_CRAWLDIRECT_BUCKET", "crawldirect-ingest"),
		CrawlDirectUseSSL:   parseBool("DISSEM_CRAWLDIRECT_USE_SSL", true),

		BookStreamHost:    readEnv("DISSEM_BOOKSTREAM_HOST", "sftp.bookstream.example.org"),
		BookStreamPort:    parseInt("DISSEM_BOOKSTREAM_PORT", defaultSFTPPort),
		BookStreamRootDir: readEnv("DISSEM_BOOKSTREAM_ROOT_DIR", "upload"),

		ScholarDepositURL: readEnv("DISSEM_SCHOLARDEPOSIT_URL", "https://deposit.scholardeposit.example.org/collection/works"),

		ResearchVaultURL: readEnv("DISSEM_RESEARCHVAULT_URL", "https://api.researchvault.example.org/v2"),
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.TransportRetries < 0 {
		cfg.TransportRetries = 0
	}
	return cfg, nil
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
