package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// LoadSDKConfig builds an AWS SDK config. Static keys are used when both are set,
// otherwise the default credential chain applies.
func (c AWSConfig) LoadSDKConfig(ctx context.Context) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(c.Region),
	}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}
	return cfg, nil
}

// ArchiveEnabled reports whether an evidence bucket is configured
func (c AWSConfig) ArchiveEnabled() bool {
	return c.EvidenceBucket != ""
}

// EventsEnabled reports whether change events go to SNS
func (c AWSConfig) EventsEnabled() bool {
	return c.EventsTopicARN != ""
}
