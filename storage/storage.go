// Package storage is the object-storage collaborator: opaque blobs on
// local disk, handed out through HMAC-signed, time-limited URLs. It
// stands in for the hosted bucket the service originally used, keeping
// the same contract: size ceiling, content-type allow-list, and
// unguessable expiring links.
package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Lupao-eth/triptask-backend/apperr"
)

// MaxUploadBytes caps a single blob at 5 MiB.
const MaxUploadBytes = 5 << 20

// AllowedTypes is the declared content types uploads may carry.
var AllowedTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

type Store struct {
	dir    string
	secret []byte
}

func New(dir string, secret []byte) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, secret: secret}, nil
}

// Put writes a blob at the given key after enforcing the size ceiling
// and content-type allow-list.
func (s *Store) Put(key string, data []byte, contentType string) error {
	if len(data) == 0 {
		return apperr.Wrap(apperr.ErrValidation, "no file uploaded")
	}
	if len(data) > MaxUploadBytes {
		return apperr.Wrap(apperr.ErrValidation, "file exceeds the %d byte limit", MaxUploadBytes)
	}
	if !AllowedTypes[contentType] {
		return apperr.Wrap(apperr.ErrValidation, "unsupported file type %q", contentType)
	}
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return apperr.Wrap(apperr.ErrUpstream, "prepare storage path: %v", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return apperr.Wrap(apperr.ErrUpstream, "write blob: %v", err)
	}
	return nil
}

// SignedURL returns a relative URL for the key that a download handler
// will honor until the embedded expiry. The signature covers both the
// key and the expiry, so neither can be tampered with.
func (s *Store) SignedURL(key string, ttl time.Duration) (string, error) {
	if _, err := s.resolve(key); err != nil {
		return "", err
	}
	expires := time.Now().Add(ttl).Unix()
	sig := s.sign(key, expires)
	return fmt.Sprintf("/uploads/%s?expires=%d&sig=%s", key, expires, sig), nil
}

// VerifyURL checks a download request's signature and expiry.
func (s *Store) VerifyURL(key string, expires int64, sig string) error {
	if time.Now().Unix() > expires {
		return apperr.Wrap(apperr.ErrUnauthenticated, "link expired")
	}
	want := s.sign(key, expires)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return apperr.Wrap(apperr.ErrUnauthenticated, "bad signature")
	}
	return nil
}

// FilePath maps a verified key to its on-disk location.
func (s *Store) FilePath(key string) (string, error) {
	full, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); err != nil {
		return "", apperr.Wrap(apperr.ErrNotFound, "file not found")
	}
	return full, nil
}

func (s *Store) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key))
	mac.Write([]byte("\n"))
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// resolve rejects keys that would escape the storage root.
func (s *Store) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", apperr.Wrap(apperr.ErrValidation, "invalid storage key")
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}
