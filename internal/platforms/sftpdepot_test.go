package platforms

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/pressworks/disseminator/internal/model"
	"github.com/pressworks/disseminator/internal/packaging"
)

// startDepotServer runs an in-process SSH server whose sftp subsystem
// serves the real filesystem, so uploads land where the test can inspect
// them. It accepts exactly one credential pair.
func startDepotServer(t *testing.T, user, password string) (host string, port int) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromSigner(priv)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(conn ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if conn.User() == user && string(pass) == password {
				return nil, nil
			}
			return nil, errors.New("bad credentials")
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveDepotConn(conn, cfg)
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err = strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func serveDepotConn(conn net.Conn, cfg *ssh.ServerConfig) {
	sconn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			_ = newChan.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		channel, requests, err := newChan.Accept()
		if err != nil {
			continue
		}
		go func() {
			for req := range requests {
				// The subsystem payload is a length-prefixed name.
				ok := req.Type == "subsystem" && len(req.Payload) > 4 && string(req.Payload[4:]) == "sftp"
				_ = req.Reply(ok, nil)
				if !ok {
					continue
				}
				if srv, err := sftp.NewServer(channel); err == nil {
					_ = srv.Serve()
				}
				_ = channel.Close()
			}
		}()
	}
}

func archivePackage() *packaging.Package {
	return &packaging.Package{
		WorkID:      "work-1",
		PublisherID: "press-01",
		Root:        "9781234567897",
		Shape:       packaging.ShapeArchive,
		Files: []model.FilePayload{
			{Name: "9781234567897.zip", MIME: "application/zip", Data: []byte("PK archive bytes")},
		},
	}
}

func TestSFTPDepotDeliver(t *testing.T) {
	host, port := startDepotServer(t, "depositor", "hunter2")
	root := t.TempDir()

	depot := NewSFTPDepot(host, port, "depositor", "hunter2", root, 0, time.Millisecond)
	pkg := archivePackage()
	loc, err := depot.Deliver(context.Background(), pkg)
	require.NoError(t, err)
	assert.Equal(t, "press-01/9781234567897", loc.ID)

	// Files land in the per-publisher directory keyed by the registry
	// publisher ID, under a directory named after the package root.
	uploaded := filepath.Join(root, "press-01", "9781234567897", "9781234567897.zip")
	data, err := os.ReadFile(uploaded)
	require.NoError(t, err)
	assert.Equal(t, pkg.Files[0].Data, data)
}

func TestSFTPDepotRemovesPartialUpload(t *testing.T) {
	host, port := startDepotServer(t, "depositor", "hunter2")
	root := t.TempDir()

	depot := NewSFTPDepot(host, port, "depositor", "hunter2", root, 0, time.Millisecond)
	pkg := archivePackage()
	// A second payload whose name points into a directory that does not
	// exist fails after the first file is already written.
	pkg.Files = append(pkg.Files, model.FilePayload{
		Name: "missing/9781234567897.pdf",
		MIME: "application/pdf",
		Data: []byte("%PDF-1.4"),
	})

	_, err := depot.Deliver(context.Background(), pkg)
	require.Error(t, err)

	first := filepath.Join(root, "press-01", "9781234567897", "9781234567897.zip")
	_, statErr := os.Stat(first)
	assert.True(t, os.IsNotExist(statErr), "failed delivery must remove files written so far")
}

func TestSFTPDepotRejectsBadCredentials(t *testing.T) {
	host, port := startDepotServer(t, "depositor", "hunter2")

	depot := NewSFTPDepot(host, port, "depositor", "wrong", t.TempDir(), 0, time.Millisecond)
	_, err := depot.Deliver(context.Background(), archivePackage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to depot")
}
