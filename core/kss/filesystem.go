package kss

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/apae-gestao/apae/core/logger"
	"github.com/gorilla/mux"
)

// FilesystemRoute is the route serving pre-signed URLs of the local filesystem driver
const FilesystemRoute = "/kss/filesystem"

const (
	dataFile        = "file"
	contentTypeFile = "content-type"
	maxUploadSize   = 50 * 1024 * 1024
)

// LocalConfiguration contains the configuration for the local filesystem KSS service
type LocalConfiguration struct {
	BasePath string
	// Secret signs the URLs. When empty a random secret is generated, which
	// only works for a single instance.
	Secret []byte
}

// LocalFilesystem stores every key as directory {base}/{key} holding the
// content and its content type
type LocalFilesystem struct {
	baseFolder string
	publicURL  url.URL
	secret     []byte
}

// NewLocalFilesystem returns a new LocalFilesystem and installs its route on router.
// publicURL is the externally visible URL of the router.
func NewLocalFilesystem(router *mux.Router, config LocalConfiguration, publicURL url.URL) (*LocalFilesystem, error) {
	secret := config.Secret
	if len(secret) == 0 {
		logger.Default().Warn("No secret provided to sign URLs, a random one will be generated")
		logger.Default().Warn("This can only work when running in a single instance configuration")
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(config.BasePath, 0700); err != nil {
		return nil, err
	}
	f := &LocalFilesystem{baseFolder: config.BasePath, publicURL: publicURL, secret: secret}

	logger.Default().Debugln("filesystem routes enabled")
	logger.Default().Debugln("  handle route:", FilesystemRoute, "GET,PUT")
	router.Handle(FilesystemRoute, http.HandlerFunc(f.handler)).Methods(http.MethodGet, http.MethodPut)
	return f, nil
}

func (f *LocalFilesystem) dir(key string) string {
	return filepath.Join(f.baseFolder, filepath.FromSlash(key))
}

// Upload implements Driver
func (f *LocalFilesystem) Upload(ctx context.Context, key, contentType string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	dir := f.dir(key)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, dataFile), data, 0600); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, contentTypeFile), []byte(contentType), 0600)
}

// Download implements Driver
func (f *LocalFilesystem) Download(ctx context.Context, key string) ([]byte, string, error) {
	if err := ValidateKey(key); err != nil {
		return nil, "", err
	}
	dir := f.dir(key)
	data, err := os.ReadFile(filepath.Join(dir, dataFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	contentType, err := os.ReadFile(filepath.Join(dir, contentTypeFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", err
	}
	if len(contentType) == 0 {
		contentType = []byte(http.DetectContentType(data))
	}
	return data, string(contentType), nil
}

// Delete implements Driver
func (f *LocalFilesystem) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	dir := f.dir(key)
	if err := os.Remove(filepath.Join(dir, dataFile)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	os.Remove(filepath.Join(dir, contentTypeFile))
	os.Remove(dir) // only succeeds if no nested keys exist
	return nil
}

// DeleteAllWithPrefix implements Driver
func (f *LocalFilesystem) DeleteAllWithPrefix(ctx context.Context, prefix string) error {
	keys, err := f.ListAllWithPrefix(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := f.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

// ListAllWithPrefix implements Driver
func (f *LocalFilesystem) ListAllWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	if strings.Contains(prefix, "..") {
		return nil, errors.New("'..' is not allowed in a prefix")
	}
	keys := []string{}
	err := filepath.WalkDir(f.baseFolder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != dataFile {
			return nil
		}
		rel, err := filepath.Rel(f.baseFolder, filepath.Dir(path))
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return keys, nil
	}
	sort.Strings(keys)
	return keys, err
}

// GetPreSignedURL implements Driver. The returned URL points to FilesystemRoute
// under the public URL.
func (f *LocalFilesystem) GetPreSignedURL(ctx context.Context, method Method, key string, expireIn time.Duration) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	expiry := time.Now().Add(expireIn).UTC().Format(time.RFC3339Nano)
	v := url.Values{}
	v.Set("key", key)
	v.Set("expiry", expiry)
	v.Set("method", string(method))
	v.Set("signature", f.sign(string(method), key, expiry))
	u := url.URL{
		Scheme:   f.publicURL.Scheme,
		Host:     f.publicURL.Host,
		Path:     strings.TrimSuffix(f.publicURL.Path, "/") + FilesystemRoute,
		RawQuery: v.Encode(),
	}
	return u.String(), nil
}

func (f *LocalFilesystem) sign(method, key, expiry string) string {
	mac := hmac.New(sha256.New, f.secret)
	mac.Write([]byte(method + "\n" + key + "\n" + expiry))
	return hex.EncodeToString(mac.Sum(nil))
}

// isValid tells whether or not the query carries a valid, unexpired signature for method
func (f *LocalFilesystem) isValid(v url.Values, method string) bool {
	key := v.Get("key")
	if ValidateKey(key) != nil {
		return false
	}
	expiry := v.Get("expiry")
	t, err := time.Parse(time.RFC3339Nano, expiry)
	if err != nil || t.Before(time.Now()) {
		return false
	}
	if v.Get("method") != method {
		return false
	}
	signature, err := hex.DecodeString(v.Get("signature"))
	if err != nil {
		return false
	}
	expected, _ := hex.DecodeString(f.sign(method, key, expiry))
	return hmac.Equal(signature, expected)
}

func (f *LocalFilesystem) handler(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	v := r.URL.Query()
	if !f.isValid(v, r.Method) {
		rlog.Warnf("invalid signature for %s %s", r.Method, r.URL.String())
		http.Error(w, "not authorized", http.StatusForbidden)
		return
	}
	key := v.Get("key")
	rlog.Infof("Filesystem: [%s] key: '%s'", r.Method, key)

	switch r.Method {
	case http.MethodGet:
		data, contentType, err := f.Download(r.Context(), key)
		if err == ErrNotFound {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			rlog.WithError(err).Errorf("Error 1205: Could not read key: '%s'", key)
			http.Error(w, "Error 1205", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Write(data)
	case http.MethodPut:
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadSize))
		if err != nil {
			http.Error(w, "cannot read body", http.StatusBadRequest)
			return
		}
		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		if err := f.Upload(r.Context(), key, contentType, data); err != nil {
			rlog.WithError(err).Errorf("Error 1203: Could not write key: '%s'", key)
			http.Error(w, "Error 1203", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
