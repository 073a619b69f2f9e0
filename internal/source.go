package internal

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/tdvo/jarl"
	"github.com/tdvo/jarl/internal/awsconfig"
	"github.com/tdvo/jarl/internal/config"
	"github.com/tdvo/jarl/s3reader"
)

// Source is a random-access byte source over a local file or an S3 object.
// It owns the underlying handle; close it only after all readers derived
// from the opened archive are done.
type Source struct {
	// Location is the argument the source was opened from.
	Location string
	// ReaderAt reads the source bytes at explicit offsets.
	ReaderAt io.ReaderAt
	// Size is the total size in bytes.
	Size int64

	// Client, Bucket and Key are set only when the source is an S3 object.
	Client *s3.Client
	Bucket string
	Key    string
	// ExpectedBucketOwner carries the bucket's configured owner check, if any.
	ExpectedBucketOwner *string

	closer io.Closer
}

// OpenSource opens location, which is either a local path or an s3://bucket/key
// URI. For S3 objects the bucket's `.jarl` configuration supplies the AWS
// profile and expected bucket owner.
func OpenSource(ctx context.Context, loader awsconfig.ConfigLoader, location string) (*Source, error) {
	if !IsS3URI(location) {
		f, err := os.Open(location)
		if err != nil {
			return nil, err
		}

		fi, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, err
		}

		return &Source{Location: location, ReaderAt: f, Size: fi.Size(), closer: f}, nil
	}

	bucket, key, err := ParseS3URI(location)
	if err != nil {
		return nil, fmt.Errorf(`invalid s3 uri "%s": %w`, location, err)
	}

	bcfg := config.ForBucket(bucket)
	if bcfg.AWSProfile != "" {
		loader.AddOption(awscfg.WithSharedConfigProfile(bcfg.AWSProfile))
	}

	cfg, err := awsLoad(ctx, loader)
	if err != nil {
		return nil, fmt.Errorf("load default config error: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(options *s3.Options) {
		// without this, getting a bunch of WARN message below:
		// WARN Response has no supported checksum. Not validating response payload.
		options.DisableLogOutputChecksumValidationSkipped = true
	})

	r, err := s3reader.New(ctx, client, bucket, key, func(opts *s3reader.Options) {
		opts.CtxFn = func() context.Context { return ctx }
		opts.ModifyGetObjectInput = func(input *s3.GetObjectInput) *s3.GetObjectInput {
			input.ExpectedBucketOwner = bcfg.ExpectedBucketOwner
			return input
		}
		opts.ModifyHeadObjectInput = func(input *s3.HeadObjectInput) *s3.HeadObjectInput {
			input.ExpectedBucketOwner = bcfg.ExpectedBucketOwner
			return input
		}
	})
	if err != nil {
		return nil, fmt.Errorf(`open "%s" error: %w`, location, err)
	}

	return &Source{
		Location:            location,
		ReaderAt:            r,
		Size:                r.Size(),
		Client:              client,
		Bucket:              bucket,
		Key:                 key,
		ExpectedBucketOwner: bcfg.ExpectedBucketOwner,
	}, nil
}

// OpenArchive opens the boot JAR backed by this source.
func (s *Source) OpenArchive() (*jarl.Archive, error) {
	a, err := jarl.Open(s.ReaderAt, s.Size)
	if err != nil {
		return nil, fmt.Errorf(`open "%s" error: %w`, s.Location, err)
	}
	return a, nil
}

// Remote reports whether the source is backed by S3.
func (s *Source) Remote() bool {
	return s.Client != nil
}

func (s *Source) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

type awsLoader interface {
	LoadDefaultConfig(context.Context, ...func(*awscfg.LoadOptions) error) (aws.Config, error)
}

// awsLoad narrows the ConfigLoader interface back to the concrete mixin; the
// interface exists so commands only expose AddOption to the rest of the CLI.
func awsLoad(ctx context.Context, loader awsconfig.ConfigLoader) (aws.Config, error) {
	if l, ok := loader.(awsLoader); ok {
		return l.LoadDefaultConfig(ctx)
	}
	return awscfg.LoadDefaultConfig(ctx)
}
