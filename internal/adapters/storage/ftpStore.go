package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"
)

// FTPStore uploads public objects to an FTP server whose root is served at
// BaseURL.
type FTPStore struct {
	host     string
	port     string
	user     string
	password string
	baseURL  string
	timeout  time.Duration
	logger   *zap.Logger

	mu sync.Mutex
}

func NewFTPStore(host, port, user, password, baseURL string, logger *zap.Logger) *FTPStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FTPStore{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeout:  10 * time.Second,
		logger:   logger,
	}
}

func (s *FTPStore) connect(ctx context.Context) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(s.host+":"+s.port, ftp.DialWithTimeout(s.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to FTP: %w", err)
	}
	if err := conn.Login(s.user, s.password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("failed to login to FTP: %w", err)
	}
	return conn, nil
}

// Upload stores r at key, creating parent directories, and returns the
// public URL. Each upload uses its own connection.
func (s *FTPStore) Upload(ctx context.Context, key string, r io.Reader) (string, error) {
	key = strings.TrimLeft(path.Clean("/"+key), "/")
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Quit()

	dir := ""
	for _, part := range strings.Split(path.Dir(key), "/") {
		if part == "." || part == "" {
			continue
		}
		dir = path.Join(dir, part)
		// MKD fails for existing directories; Stor reports a real problem.
		_ = conn.MakeDir(dir)
	}

	if err := conn.Stor(key, r); err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	s.logger.Info("Uploaded object", zap.String("key", key))
	return s.URL(key), nil
}

// URL returns the public URL of key.
func (s *FTPStore) URL(key string) string {
	return s.baseURL + "/" + strings.TrimLeft(key, "/")
}
