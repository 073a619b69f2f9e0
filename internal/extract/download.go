package extract

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/tdvo/jarl/internal"
)

// download fetches the whole S3 object into a temporary file and returns its
// path together with a cleanup func removing it.
func (c *Command) download(ctx context.Context, src *internal.Source) (string, func(), error) {
	f, err := os.CreateTemp("", "jarl-*.jar")
	if err != nil {
		return "", nil, fmt.Errorf("create temporary file error: %w", err)
	}

	cleanup := func() {
		_ = os.Remove(f.Name())
	}

	c.logger.Printf(`downloading %s from "%s"`, humanize.IBytes(uint64(src.Size)), src.Location)
	bar := internal.DefaultBytes(src.Size, "downloading")

	d := manager.NewDownloader(src.Client, func(d *manager.Downloader) {
		d.PartSize = 8 * 1024 * 1024
		d.Concurrency = 4
	})

	_, err = d.Download(ctx, writerAtWithProgress{f, bar}, &s3.GetObjectInput{
		Bucket:              aws.String(src.Bucket),
		Key:                 aws.String(src.Key),
		ExpectedBucketOwner: src.ExpectedBucketOwner,
	})
	_ = bar.Close()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf(`download "%s" error: %w`, src.Location, err)
	}

	return f.Name(), cleanup, nil
}

// writerAtWithProgress advances the progress bar as parts land; parts may
// arrive out of order so only byte counts are reported, never positions.
type writerAtWithProgress struct {
	f   *os.File
	bar *progressbar.ProgressBar
}

func (w writerAtWithProgress) WriteAt(p []byte, off int64) (int, error) {
	n, err := w.f.WriteAt(p, off)
	_ = w.bar.Add(n)
	return n, err
}
