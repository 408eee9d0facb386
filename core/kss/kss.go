// Package kss is the key storage service. It stores files outside of the
// database, either on the local filesystem or in AWS S3.
//
// Keys are slash separated paths like "assistidos/{id}/documentos/laudo.pdf".
// Keys must not contain "..".
package kss

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Method is a HTTP method a pre-signed URL can be used with
type Method string

// supported methods for pre-signed URLs
const (
	Get Method = "GET"
	Put Method = "PUT"
)

// ErrNotFound is returned when a key does not exist
var ErrNotFound = errors.New("key not found")

// Driver defines the interface for the KSS service
type Driver interface {
	// Upload stores data under key, replacing any previous content
	Upload(ctx context.Context, key, contentType string, data []byte) error
	// Download returns the content and content type stored under key, or ErrNotFound
	Download(ctx context.Context, key string) (data []byte, contentType string, err error)
	// Delete removes key, or returns ErrNotFound
	Delete(ctx context.Context, key string) error
	// DeleteAllWithPrefix removes all keys starting with prefix
	DeleteAllWithPrefix(ctx context.Context, prefix string) error
	// ListAllWithPrefix returns all keys starting with prefix, sorted
	ListAllWithPrefix(ctx context.Context, prefix string) ([]string, error)
	// GetPreSignedURL returns a URL which allows method on key without
	// further authorization until expireIn has passed
	GetPreSignedURL(ctx context.Context, method Method, key string, expireIn time.Duration) (string, error)
}

// DriverType represents the different type of KSS Drivers
type DriverType string

// DriverTypeLocal is the local filesystem implementation of the KSS service
const DriverTypeLocal DriverType = "Local"

// DriverTypeAWSS3 is the AWS S3 implementation of the KSS service
const DriverTypeAWSS3 DriverType = "AWSS3"

// ValidateKey returns an error for empty keys and keys containing ".."
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid key '%s'", key)
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("'..' is not allowed in a key")
	}
	return nil
}
