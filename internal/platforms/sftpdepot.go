package platforms

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/pkg/sftp"
	"github.com/sethvargo/go-retry"
	"golang.org/x/crypto/ssh"

	"github.com/pressworks/disseminator/internal/packaging"
)

// SFTPDepot delivers a package over SFTP into a per-publisher directory.
// The layout is <root>/<publisherDir>/<packageRoot>/ for flat and archive
// shapes, with the publisher directory resolved at delivery time.
type SFTPDepot struct {
	addr      string
	user      string
	password  string
	rootDir   string
	attempts  int
	baseDelay time.Duration
}

// NewSFTPDepot configures an SFTP delivery target. Credentials are
// resolved before construction so a missing secret fails before any
// payload is fetched.
func NewSFTPDepot(host string, port int, user, password, rootDir string, attempts int, baseDelay time.Duration) *SFTPDepot {
	return &SFTPDepot{
		addr:      fmt.Sprintf("%s:%d", host, port),
		user:      user,
		password:  password,
		rootDir:   rootDir,
		attempts:  attempts,
		baseDelay: baseDelay,
	}
}

// Deliver connects, uploads every payload into a directory named after the
// package root, and verifies each upload's size before returning. A failed
// upload removes everything written so far so a retry starts clean.
func (d *SFTPDepot) Deliver(ctx context.Context, pkg *packaging.Package) (Location, error) {
	conn, err := d.dial(ctx)
	if err != nil {
		return Location{}, fmt.Errorf("connect to depot: %w", err)
	}
	defer conn.Close()

	client, err := sftp.NewClient(conn)
	if err != nil {
		return Location{}, fmt.Errorf("open sftp session: %w", err)
	}
	defer client.Close()

	dir := path.Join(d.rootDir, pkg.PublisherID, pkg.Root)
	if err := client.MkdirAll(dir); err != nil {
		return Location{}, fmt.Errorf("create directory %s: %w", dir, err)
	}

	var written []string
	for _, payload := range pkg.Payloads() {
		remote := path.Join(dir, payload.Name)
		if err := d.upload(client, remote, payload.Data); err != nil {
			d.removeAll(client, written)
			return Location{}, err
		}
		written = append(written, remote)
	}

	return Location{ID: path.Join(pkg.PublisherID, pkg.Root)}, nil
}

func (d *SFTPDepot) dial(ctx context.Context) (*ssh.Client, error) {
	cfg := &ssh.ClientConfig{
		User:            d.user,
		Auth:            []ssh.AuthMethod{ssh.Password(d.password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}
	var conn *ssh.Client
	err := withRetry(ctx, d.attempts, d.baseDelay, func(context.Context) error {
		var dialErr error
		conn, dialErr = ssh.Dial("tcp", d.addr, cfg)
		if dialErr != nil {
			return retry.RetryableError(dialErr)
		}
		return nil
	})
	return conn, err
}

func (d *SFTPDepot) upload(client *sftp.Client, remote string, data []byte) error {
	f, err := client.Create(remote)
	if err != nil {
		return fmt.Errorf("create %s: %w", remote, err)
	}
	n, err := f.ReadFrom(bytes.NewReader(data))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", remote, err)
	}
	if n != int64(len(data)) {
		return fmt.Errorf("write %s: short write (%d of %d bytes)", remote, n, len(data))
	}
	info, err := client.Stat(remote)
	if err != nil {
		return fmt.Errorf("verify %s: %w", remote, err)
	}
	if info.Size() != int64(len(data)) {
		return fmt.Errorf("verify %s: remote size %d, expected %d", remote, info.Size(), len(data))
	}
	return nil
}

func (d *SFTPDepot) removeAll(client *sftp.Client, remotes []string) {
	for _, remote := range remotes {
		_ = client.Remove(remote)
	}
}
