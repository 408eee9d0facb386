package kss

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/apae-gestao/apae/core/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Configuration holds the configuration for the S3 driver
type S3Configuration struct {
	AccessID      string
	AccessKey     string
	AWSBucketName string
	AWSRegion     string
	// KeyPrefix is prepended to every key, e.g. "apae-curitiba/"
	KeyPrefix string
}

// S3 is the implementation of the KSS Driver for AWS S3
type S3 struct {
	client      *s3.Client
	presign     *s3.PresignClient
	bucket      string
	baseKeyName string
}

// NewS3 returns a new S3. Without access id the default credential chain
// of the environment is used.
func NewS3(kssConfig S3Configuration) (*S3, error) {
	if kssConfig.AWSBucketName == "" {
		return nil, fmt.Errorf("AWSBucketName must not be empty")
	}

	options := []func(*config.LoadOptions) error{config.WithRegion(kssConfig.AWSRegion)}
	if kssConfig.AccessID != "" {
		options = append(options, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(kssConfig.AccessID, kssConfig.AccessKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(context.TODO(), options...)
	if err != nil {
		return nil, err
	}
	logger.Default().Debugln("KSS S3 enabled")
	client := s3.NewFromConfig(cfg)
	return &S3{
		client:      client,
		presign:     s3.NewPresignClient(client),
		bucket:      kssConfig.AWSBucketName,
		baseKeyName: kssConfig.KeyPrefix,
	}, nil
}

// Upload implements Driver
func (s *S3) Upload(ctx context.Context, key, contentType string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.baseKeyName + key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload file, %w", err)
	}
	return nil
}

// Download implements Driver
func (s *S3) Download(ctx context.Context, key string) ([]byte, string, error) {
	if err := ValidateKey(key); err != nil {
		return nil, "", err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.baseKeyName + key),
	})
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", err
	}
	return data, aws.ToString(out.ContentType), nil
}

// Delete implements Driver
func (s *S3) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	rlog := logger.FromContext(ctx)
	// S3 deletes missing objects without complaint
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.baseKeyName + key),
	})
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.baseKeyName + key),
	})
	if err != nil {
		rlog.WithError(err).Errorln("Could not delete", s.baseKeyName+key)
		return err
	}
	rlog.Infoln("Deleted", s.baseKeyName+key)
	return nil
}

// DeleteAllWithPrefix implements Driver
func (s *S3) DeleteAllWithPrefix(ctx context.Context, prefix string) error {
	keys, err := s.ListAllWithPrefix(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

// ListAllWithPrefix implements Driver. The returned keys do not include the
// configured key prefix.
func (s *S3) ListAllWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	var continuationToken *string
	for {
		resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.baseKeyName + prefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			logger.FromContext(ctx).WithError(err).Errorln("Could not ListObjectsV2 from", s.bucket)
			return nil, err
		}
		for _, item := range resp.Contents {
			keys = append(keys, strings.TrimPrefix(aws.ToString(item.Key), s.baseKeyName))
		}
		continuationToken = resp.NextContinuationToken
		if continuationToken == nil {
			break
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// GetPreSignedURL implements Driver
func (s *S3) GetPreSignedURL(ctx context.Context, method Method, key string, expireIn time.Duration) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	var (
		resp *v4.PresignedHTTPRequest
		err  error
	)
	switch method {
	case Get:
		resp, err = s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.baseKeyName + key),
		}, s3.WithPresignExpires(expireIn))
	case Put:
		resp, err = s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.baseKeyName + key),
		}, s3.WithPresignExpires(expireIn))
	default:
		err = fmt.Errorf("%s unsupported method to presign '%s'", method, s.baseKeyName+key)
	}
	if err != nil {
		return "", err
	}
	return resp.URL, nil
}
