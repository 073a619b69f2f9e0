// Package s3reader adapts an S3 object into the random-access byte source
// that archive scanning needs, using ranged GetObject calls so that only the
// archive tail, central directory, and requested entries are ever fetched.
package s3reader

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Reader provides explicit-offset reads over an S3 object.
//
// ReadAt issues one ranged GetObject per call, so it is safe for concurrent
// use; no cursor state is shared between calls.
type Reader interface {
	io.ReaderAt

	// Size returns the size of the S3 object determined from the initial
	// HeadObject.
	Size() int64
}

// Client abstracts the S3 APIs needed to implement Reader.
type Client interface {
	GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Options customises New.
type Options struct {
	// CtxFn returns a context.Context to be used with every GetObject call.
	//
	// By default, context.Background is used. ReadAt cannot accept a context
	// itself without breaking io.ReaderAt.
	CtxFn func() context.Context

	// ModifyGetObjectInput can be used to modify the GetObject input
	// parameters such as adding ExpectedBucketOwner.
	ModifyGetObjectInput func(*s3.GetObjectInput) *s3.GetObjectInput

	// ModifyHeadObjectInput can be used to modify the HeadObject input
	// parameters such as adding ExpectedBucketOwner.
	ModifyHeadObjectInput func(*s3.HeadObjectInput) *s3.HeadObjectInput
}

// New returns a Reader over the given bucket and key.
//
// ctx applies only to the initial HeadObject that determines the object
// size; use Options.CtxFn to control contexts of subsequent reads.
func New(ctx context.Context, client Client, bucket, key string, optFns ...func(*Options)) (Reader, error) {
	opts := &Options{
		CtxFn: context.Background,
		ModifyGetObjectInput: func(input *s3.GetObjectInput) *s3.GetObjectInput {
			return input
		},
		ModifyHeadObjectInput: func(input *s3.HeadObjectInput) *s3.HeadObjectInput {
			return input
		},
	}
	for _, fn := range optFns {
		fn(opts)
	}

	headObjectOutput, err := client.HeadObject(ctx, opts.ModifyHeadObjectInput(&s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}))
	if err != nil {
		return nil, fmt.Errorf("determine object size error: %w", err)
	}

	return &reader{
		client: client,
		bucket: bucket,
		key:    key,
		ctxFn:  opts.CtxFn,
		goiFn:  opts.ModifyGetObjectInput,
		size:   aws.ToInt64(headObjectOutput.ContentLength),
	}, nil
}

type reader struct {
	client      Client
	bucket, key string
	ctxFn       func() context.Context
	goiFn       func(*s3.GetObjectInput) *s3.GetObjectInput
	size        int64
}

func (r *reader) Size() int64 {
	return r.size
}

func (r *reader) ReadAt(p []byte, off int64) (n int, err error) {
	m := int64(len(p))
	if m == 0 {
		return 0, nil
	}
	if off >= r.size {
		return 0, io.EOF
	}

	// clamp to object size: S3 rejects ranges that start past the end but
	// io.ReaderAt callers routinely over-ask at the tail.
	rangeEnd := min(r.size, off+m) - 1
	getObjectOutput, err := r.client.GetObject(r.ctxFn(), r.goiFn(&s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, rangeEnd)),
	}))
	if err != nil {
		return 0, err
	}

	n, err = io.ReadFull(getObjectOutput.Body, p[:rangeEnd-off+1])
	_ = getObjectOutput.Body.Close()
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	if err == nil && int64(n) < m {
		err = io.EOF
	}
	return
}
