package config

// BucketConfig contains configuration settings for a specific bucket,
// declared in a `[s3://<bucket>]` section.
type BucketConfig struct {
	Bucket              string
	AWSProfile          string
	ExpectedBucketOwner *string
}

// ForBucket returns configuration for a specific bucket.
func (l *Loader) ForBucket(bucket string) (c BucketConfig) {
	c.Bucket = bucket

	sec, err := l.cfg.GetSection("s3://" + bucket)
	if err != nil {
		return c
	}

	c.AWSProfile = sec.Key("aws-profile").Value()
	if v := sec.Key("expected-bucket-owner").Value(); v != "" {
		c.ExpectedBucketOwner = &v
	}

	return c
}

// ForBucket calls Loader.ForBucket on the DefaultLoader instance.
func ForBucket(bucket string) BucketConfig {
	return DefaultLoader.ForBucket(bucket)
}

// ExtractConfig contains extraction settings from the `[extract]` section.
type ExtractConfig struct {
	// Dir is the default output directory for extraction.
	Dir string
}

// ForExtract returns configuration for extraction.
func (l *Loader) ForExtract() (c ExtractConfig) {
	sec, err := l.cfg.GetSection("extract")
	if err != nil {
		return c
	}

	c.Dir = sec.Key("dir").Value()
	return c
}

// ForExtract calls Loader.ForExtract on the DefaultLoader instance.
func ForExtract() ExtractConfig {
	return DefaultLoader.ForExtract()
}
