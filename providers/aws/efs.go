package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/efs"
	efstypes "github.com/aws/aws-sdk-go-v2/service/efs/types"
)

type fileSystemConfig struct {
	PerformanceMode string            `json:"performanceMode"`
	Encrypted       bool              `json:"encrypted"`
	Tags            map[string]string `json:"tags"`
}

func (p *Provider) createFileSystem(ctx context.Context, props map[string]any) (string, map[string]any, error) {
	var cfg fileSystemConfig
	if err := decode(props, &cfg); err != nil {
		return "", nil, err
	}

	input := &efs.CreateFileSystemInput{
		Encrypted: aws.Bool(cfg.Encrypted),
	}
	if cfg.PerformanceMode != "" {
		input.PerformanceMode = efstypes.PerformanceMode(cfg.PerformanceMode)
	}
	for k, v := range cfg.Tags {
		input.Tags = append(input.Tags, efstypes.Tag{Key: aws.String(k), Value: aws.String(v)})
	}

	resp, err := p.efsClient.CreateFileSystem(ctx, input)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create file system: %w", err)
	}

	fsID := aws.ToString(resp.FileSystemId)
	return fsID, map[string]any{
		"id":  fsID,
		"arn": aws.ToString(resp.FileSystemArn),
	}, nil
}

func (p *Provider) deleteFileSystem(ctx context.Context, id string) error {
	_, err := p.efsClient.DeleteFileSystem(ctx, &efs.DeleteFileSystemInput{
		FileSystemId: aws.String(id),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete file system %s: %w", id, err)
	}
	return nil
}

func (p *Provider) describeFileSystem(ctx context.Context, id string) (bool, map[string]any, error) {
	resp, err := p.efsClient.DescribeFileSystems(ctx, &efs.DescribeFileSystemsInput{
		FileSystemId: aws.String(id),
	})
	if err != nil {
		if strings.Contains(err.Error(), "FileSystemNotFound") {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("failed to describe file system %s: %w", id, err)
	}
	if len(resp.FileSystems) == 0 {
		return false, nil, nil
	}

	fs := resp.FileSystems[0]
	return true, map[string]any{
		"id":    aws.ToString(fs.FileSystemId),
		"arn":   aws.ToString(fs.FileSystemArn),
		"state": string(fs.LifeCycleState),
	}, nil
}

type mountTargetConfig struct {
	FileSystemID     string   `json:"fileSystemId"`
	SubnetID         string   `json:"subnetId"`
	SecurityGroupIDs []string `json:"securityGroupIds"`
}

func (p *Provider) createMountTarget(ctx context.Context, props map[string]any) (string, map[string]any, error) {
	var cfg mountTargetConfig
	if err := decode(props, &cfg); err != nil {
		return "", nil, err
	}

	input := &efs.CreateMountTargetInput{
		FileSystemId: aws.String(cfg.FileSystemID),
		SubnetId:     aws.String(cfg.SubnetID),
	}
	if len(cfg.SecurityGroupIDs) > 0 {
		input.SecurityGroups = cfg.SecurityGroupIDs
	}

	resp, err := p.efsClient.CreateMountTarget(ctx, input)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create mount target: %w", err)
	}

	mtID := aws.ToString(resp.MountTargetId)
	return mtID, map[string]any{
		"id":        mtID,
		"ipAddress": aws.ToString(resp.IpAddress),
	}, nil
}

func (p *Provider) deleteMountTarget(ctx context.Context, id string) error {
	_, err := p.efsClient.DeleteMountTarget(ctx, &efs.DeleteMountTargetInput{
		MountTargetId: aws.String(id),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete mount target %s: %w", id, err)
	}
	return nil
}
