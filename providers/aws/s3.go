package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type bucketConfig struct {
	Name       string            `json:"name"`
	Versioning bool              `json:"versioning"`
	Tags       map[string]string `json:"tags"`
}

func (p *Provider) createBucket(ctx context.Context, props map[string]any) (string, map[string]any, error) {
	var cfg bucketConfig
	if err := decode(props, &cfg); err != nil {
		return "", nil, err
	}

	input := &s3.CreateBucketInput{
		Bucket: aws.String(cfg.Name),
	}
	if p.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(p.region),
		}
	}

	if _, err := p.s3Client.CreateBucket(ctx, input); err != nil {
		return "", nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Name, err)
	}

	if err := p.configureBucket(ctx, cfg); err != nil {
		return "", nil, err
	}

	return cfg.Name, map[string]any{
		"id":   cfg.Name,
		"name": cfg.Name,
		"arn":  "arn:aws:s3:::" + cfg.Name,
	}, nil
}

func (p *Provider) updateBucket(ctx context.Context, id string, props map[string]any) (map[string]any, error) {
	var cfg bucketConfig
	if err := decode(props, &cfg); err != nil {
		return nil, err
	}
	cfg.Name = id

	if err := p.configureBucket(ctx, cfg); err != nil {
		return nil, err
	}
	return map[string]any{
		"id":   id,
		"name": id,
		"arn":  "arn:aws:s3:::" + id,
	}, nil
}

func (p *Provider) configureBucket(ctx context.Context, cfg bucketConfig) error {
	status := s3types.BucketVersioningStatusSuspended
	if cfg.Versioning {
		status = s3types.BucketVersioningStatusEnabled
	}
	_, err := p.s3Client.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: aws.String(cfg.Name),
		VersioningConfiguration: &s3types.VersioningConfiguration{
			Status: status,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to set versioning on bucket %s: %w", cfg.Name, err)
	}

	if len(cfg.Tags) > 0 {
		var tagSet []s3types.Tag
		for k, v := range cfg.Tags {
			tagSet = append(tagSet, s3types.Tag{Key: aws.String(k), Value: aws.String(v)})
		}
		_, err := p.s3Client.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
			Bucket:  aws.String(cfg.Name),
			Tagging: &s3types.Tagging{TagSet: tagSet},
		})
		if err != nil {
			return fmt.Errorf("failed to tag bucket %s: %w", cfg.Name, err)
		}
	}
	return nil
}

func (p *Provider) deleteBucket(ctx context.Context, id string) error {
	_, err := p.s3Client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(id)})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete bucket %s: %w", id, err)
	}
	return nil
}

func (p *Provider) describeBucket(ctx context.Context, id string) (bool, map[string]any, error) {
	_, err := p.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(id)})
	if err != nil {
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "404") {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("failed to describe bucket %s: %w", id, err)
	}
	return true, map[string]any{
		"id":   id,
		"name": id,
		"arn":  "arn:aws:s3:::" + id,
	}, nil
}
