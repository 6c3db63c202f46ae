package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jotbill/jotbill-server/src/logger"
	"github.com/jotbill/jotbill-server/src/models"
)

// NewSyncBridge builds the remote backup transport from the stored
// storage configuration. An unconfigured target yields the null bridge;
// callers always code against the interface, never feature-sniff.
func NewSyncBridge(cfg *models.StorageConfig, filename string, timeout time.Duration) SyncBridge {
	if cfg == nil || cfg.Host == "" {
		return &nullBridge{}
	}
	transport := http.DefaultTransport
	if cfg.AllowInsecure {
		transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}
	return &webdavBridge{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		host:       strings.TrimSuffix(cfg.Host, "/"),
		dir:        strings.Trim(cfg.Path, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		filename:   filename,
	}
}

// ---- null ----

type nullBridge struct{}

func (*nullBridge) Configured() bool { return false }

func (*nullBridge) Test(context.Context) error { return ErrSyncNotConfigured }

func (*nullBridge) Upload(context.Context, []byte) error { return ErrSyncNotConfigured }

func (*nullBridge) Download(context.Context) ([]byte, error) { return nil, ErrSyncNotConfigured }

// ---- WebDAV ----

// webdavBridge stores the backup document as a single fixed-name file on
// a WebDAV share, authenticated with HTTP Basic. Upload overwrites
// idempotently; download is last-write-wins.
type webdavBridge struct {
	httpClient *http.Client
	host       string
	dir        string
	username   string
	password   string
	filename   string
}

func (b *webdavBridge) Configured() bool { return true }

func (b *webdavBridge) dirURL() string {
	if b.dir == "" {
		return b.host + "/"
	}
	return b.host + "/" + b.dir + "/"
}

func (b *webdavBridge) fileURL() string {
	return b.dirURL() + b.filename
}

func (b *webdavBridge) request(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(b.username, b.password)
	return b.httpClient.Do(req)
}

// Test checks that the share is reachable and the credentials work.
func (b *webdavBridge) Test(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "PROPFIND", b.dirURL(), nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(b.username, b.password)
	req.Header.Set("Depth", "0")
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSyncUnreachable, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		// Directory is created on first upload.
		return nil
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%w: status %d", ErrSyncUnreachable, resp.StatusCode)
	}
	return nil
}

func (b *webdavBridge) Upload(ctx context.Context, content []byte) error {
	if b.dir != "" {
		// Best effort; 405 means it already exists.
		if resp, err := b.request(ctx, "MKCOL", b.dirURL(), nil); err == nil {
			resp.Body.Close()
		}
	}
	resp, err := b.request(ctx, http.MethodPut, b.fileURL(), bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSyncUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: upload returned status %d", ErrSyncUnreachable, resp.StatusCode)
	}
	logger.L.Info("Backup uploaded to remote storage", "bytes", len(content))
	return nil
}

func (b *webdavBridge) Download(ctx context.Context) ([]byte, error) {
	resp, err := b.request(ctx, http.MethodGet, b.fileURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyncUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrSyncNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: download returned status %d", ErrSyncUnreachable, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
