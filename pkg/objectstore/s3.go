package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/hideselfview/bae/pkg/musicerr"
)

// S3Config configures an S3-compatible object store target, following the
// original's S3Config::from_env() shape (bucket/region/credentials/
// optional endpoint for MinIO-style services).
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store is a thin wrapper around an AWS SDK S3 client exposing exactly
// the four capability-set operations. chunk_key() is ChunkKey verbatim.
type S3Store struct {
	client *s3.S3
	bucket string
}

// NewS3Store builds an S3-compatible store from cfg.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	awsCfg := aws.NewConfig().
		WithRegion(cfg.Region).
		WithCredentials(credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""))
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("objectstore: failed to create AWS session: %w", err)
	}

	return &S3Store{client: s3.New(sess), bucket: cfg.Bucket}, nil
}

func (st *S3Store) location(key string) string {
	return fmt.Sprintf("s3://%s/%s", st.bucket, key)
}

func parseS3Location(location string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(location, "s3://")
	if rest == location {
		return "", "", fmt.Errorf("not an s3:// location: %s", location)
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("malformed s3 location: %s", location)
	}
	return parts[0], parts[1], nil
}

func (st *S3Store) Upload(ctx context.Context, chunkID string, data []byte) (string, error) {
	key := ChunkKey(chunkID)
	_, err := st.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(st.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", classifyS3Error("upload chunk", err)
	}
	return st.location(key), nil
}

func (st *S3Store) Download(ctx context.Context, location string) ([]byte, error) {
	bucket, key, err := parseS3Location(location)
	if err != nil {
		return nil, musicerr.NewStorePermanent(err.Error(), err)
	}
	out, err := st.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyS3Error("download chunk", err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, musicerr.NewStoreTransient("failed reading download body", err)
	}
	return data, nil
}

func (st *S3Store) Delete(ctx context.Context, location string) error {
	bucket, key, err := parseS3Location(location)
	if err != nil {
		return musicerr.NewStorePermanent(err.Error(), err)
	}
	_, err = st.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classifyS3Error("delete chunk", err)
	}
	return nil
}

func (st *S3Store) Exists(ctx context.Context, location string) (bool, error) {
	bucket, key, err := parseS3Location(location)
	if err != nil {
		return false, musicerr.NewStorePermanent(err.Error(), err)
	}
	_, err = st.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound") {
			return false, nil
		}
		return false, classifyS3Error("check chunk existence", err)
	}
	return true, nil
}

// classifyS3Error maps an AWS error into Transient/Permanent/NotFound per
// the object-store error contract: timeouts, 5xx, and connection resets
// are retry-worthy; 4xx other than 404 are permanent; 404 is NotFound.
func classifyS3Error(op string, err error) error {
	aerr, ok := err.(awserr.Error)
	if !ok {
		return musicerr.NewStoreTransient(op+" failed", err)
	}

	switch aerr.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound":
		return musicerr.NewStoreNotFound(op)
	case "RequestTimeout", "RequestTimeoutException", "ServiceUnavailable", "SlowDown", "InternalError":
		return musicerr.NewStoreTransient(op+": "+aerr.Message(), err)
	default:
		if reqErr, ok := err.(awserr.RequestFailure); ok {
			if reqErr.StatusCode() >= 500 {
				return musicerr.NewStoreTransient(op+": "+aerr.Message(), err)
			}
			if reqErr.StatusCode() == 404 {
				return musicerr.NewStoreNotFound(op)
			}
		}
		return musicerr.NewStorePermanent(op+": "+aerr.Message(), err)
	}
}

var _ Store = (*S3Store)(nil)
