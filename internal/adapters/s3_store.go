package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

var sseAlgorithm = "AES256"

var _ ObjectStore = (*S3Store)(nil)

// S3Store keeps objects in one bucket under a fixed key prefix, encrypted at rest.
type S3Store struct {
	s3     *s3.S3
	region string
	bucket string
	prefix string
}

func NewS3Store(awsSession *session.Session, bucket, prefix string) *S3Store {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	client := s3.New(awsSession)
	return &S3Store{
		s3:     client,
		region: aws.StringValue(client.Config.Region),
		bucket: bucket,
		prefix: prefix,
	}
}

// IDFromName returns the location Put reports for name.
func (s *S3Store) IDFromName(name string) string {
	return fmt.Sprintf("s3://%s/%s/%s%s", s.region, s.bucket, s.prefix, name)
}

func (s *S3Store) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := s.prefix + name
	size := int64(len(data))
	_, err := s.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:               &s.bucket,
		Key:                  &key,
		Body:                 bytes.NewReader(data),
		ContentLength:        &size,
		ContentType:          &contentType,
		ServerSideEncryption: &sseAlgorithm,
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	return s.IDFromName(name), nil
}

func (s *S3Store) Get(ctx context.Context, location string) ([]byte, error) {
	_, bucket, key, err := parseS3Location(location)
	if err != nil {
		return nil, err
	}
	obj, err := s.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		var reqErr awserr.RequestFailure
		if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
			return nil, ErrNoObject
		}
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	defer obj.Body.Close()
	return io.ReadAll(obj.Body)
}

func (s *S3Store) Delete(ctx context.Context, location string) error {
	_, bucket, key, err := parseS3Location(location)
	if err != nil {
		return err
	}
	if _, err := s.s3.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}); err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

// parseS3Location splits s3://region/bucket/key.
func parseS3Location(location string) (region, bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return "", "", "", fmt.Errorf("not an s3 location: %q", location)
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("malformed s3 location: %q", location)
	}
	return parts[0], parts[1], parts[2], nil
}
