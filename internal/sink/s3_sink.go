package sink

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/chtzvt/dropslurp/internal/compression"
	"github.com/chtzvt/dropslurp/internal/secrets"
)

type S3Sink struct {
	bucket           string
	prefix           string
	region           string
	compression      string
	secrets          *secrets.Store
	endpoint         string
	client           PutObjectAPI // test only; nil in prod, set by test
	disableChecksums bool
}

// PutObjectAPI abstracts the S3 PutObject method (for testing)
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

func NewS3Sink(opts map[string]interface{}, store *secrets.Store) (Sink, error) {
	bucket := optString(opts, "bucket")
	region := optString(opts, "region")
	if bucket == "" || region == "" {
		return nil, fmt.Errorf("s3 sink requires 'bucket' and 'region' options")
	}
	comp := optCompression(opts)
	if _, err := compression.NewWriter(io.Discard, comp); err != nil {
		return nil, err
	}

	return &S3Sink{
		bucket:           bucket,
		prefix:           optString(opts, "prefix"),
		region:           region,
		compression:      comp,
		secrets:          store,
		endpoint:         chooseEndpoint(optString(opts, "endpoint"), optString(opts, "base_endpoint")),
		disableChecksums: toBool(opts["disable_checksums"]),
	}, nil
}

// Helper to select which endpoint to use
func chooseEndpoint(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// newClient builds an S3 client. Static credentials come from the secrets store
// (or the environment through it); without them the default AWS chain applies.
func (s *S3Sink) newClient(ctx context.Context) (PutObjectAPI, error) {
	awsCfgOpts := []func(*config.LoadOptions) error{
		config.WithRegion(s.region),
	}
	accessKey, errA := s.secrets.Get(ctx, "AWS_ACCESS_KEY_ID")
	secretKey, errS := s.secrets.Get(ctx, "AWS_SECRET_ACCESS_KEY")
	switch {
	case errA == nil && errS == nil:
		awsCfgOpts = append(awsCfgOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(string(accessKey), string(secretKey), ""),
		))
	case errA == nil || errS == nil:
		return nil, errors.New("s3 sink: AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together")
	}

	if s.disableChecksums {
		awsCfgOpts = append(awsCfgOpts, config.WithRequestChecksumCalculation(0))
		awsCfgOpts = append(awsCfgOpts, config.WithResponseChecksumValidation(0))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, awsCfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("aws config load error: %w", err)
	}
	s3Opts := []func(*s3.Options){}
	if s.endpoint != "" {
		endpoint := s.endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

func (s *S3Sink) Open(ctx context.Context, name string) (io.WriteCloser, error) {
	client := s.client
	if client == nil {
		var err error
		if client, err = s.newClient(ctx); err != nil {
			return nil, err
		}
	}

	key := s.prefix + name
	return pipeUpload(s.compression, func(body io.Reader) error {
		_, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: &s.bucket,
			Key:    &key,
			Body:   body,
		})
		if err != nil {
			return fmt.Errorf("s3 put %s/%s: %w", s.bucket, key, err)
		}
		return nil
	})
}

func init() {
	Register("s3", NewS3Sink)
}
