package aws

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

type instanceConfig struct {
	ImageID          string            `json:"imageId"`
	InstanceType     string            `json:"instanceType"`
	SubnetID         string            `json:"subnetId"`
	KeyName          string            `json:"keyName"`
	SecurityGroupIDs []string          `json:"securityGroupIds"`
	UserData         string            `json:"userData"`
	Tags             map[string]string `json:"tags"`
}

func (p *Provider) createInstance(ctx context.Context, props map[string]any) (string, map[string]any, error) {
	var cfg instanceConfig
	if err := decode(props, &cfg); err != nil {
		return "", nil, err
	}

	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(cfg.ImageID),
		InstanceType: ec2types.InstanceType(cfg.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
	}
	if cfg.SubnetID != "" {
		input.SubnetId = aws.String(cfg.SubnetID)
	}
	if cfg.KeyName != "" {
		input.KeyName = aws.String(cfg.KeyName)
	}
	if len(cfg.SecurityGroupIDs) > 0 {
		input.SecurityGroupIds = cfg.SecurityGroupIDs
	}
	if cfg.UserData != "" {
		input.UserData = aws.String(base64.StdEncoding.EncodeToString([]byte(cfg.UserData)))
	}

	resp, err := p.ec2Client.RunInstances(ctx, input)
	if err != nil {
		return "", nil, fmt.Errorf("failed to launch instance: %w", err)
	}
	if len(resp.Instances) == 0 {
		return "", nil, fmt.Errorf("RunInstances returned no instances")
	}
	inst := resp.Instances[0]
	instanceID := aws.ToString(inst.InstanceId)

	p.tagResource(ctx, instanceID, cfg.Tags)

	return instanceID, map[string]any{
		"id":               instanceID,
		"privateIpAddress": aws.ToString(inst.PrivateIpAddress),
		"availabilityZone": availabilityZone(inst),
	}, nil
}

func availabilityZone(inst ec2types.Instance) string {
	if inst.Placement == nil {
		return ""
	}
	return aws.ToString(inst.Placement.AvailabilityZone)
}

func (p *Provider) updateInstance(ctx context.Context, id string, props map[string]any) (map[string]any, error) {
	var cfg instanceConfig
	if err := decode(props, &cfg); err != nil {
		return nil, err
	}

	// Only the instance type and tags can change in place. The instance
	// must already be stopped for a type change to succeed.
	if cfg.InstanceType != "" {
		_, err := p.ec2Client.ModifyInstanceAttribute(ctx, &ec2.ModifyInstanceAttributeInput{
			InstanceId:   aws.String(id),
			InstanceType: &ec2types.AttributeValue{Value: aws.String(cfg.InstanceType)},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to modify instance %s: %w", id, err)
		}
	}
	p.tagResource(ctx, id, cfg.Tags)

	exists, outputs, err := p.describeInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("instance %s no longer exists", id)
	}
	return outputs, nil
}

func (p *Provider) deleteInstance(ctx context.Context, id string) error {
	_, err := p.ec2Client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to terminate instance %s: %w", id, err)
	}
	return nil
}

func (p *Provider) describeInstance(ctx context.Context, id string) (bool, map[string]any, error) {
	resp, err := p.ec2Client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		if strings.Contains(err.Error(), "NotFound") {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("failed to describe instance %s: %w", id, err)
	}

	for _, res := range resp.Reservations {
		for _, inst := range res.Instances {
			state := ""
			if inst.State != nil {
				state = string(inst.State.Name)
			}
			if state == string(ec2types.InstanceStateNameTerminated) {
				continue
			}
			return true, map[string]any{
				"id":               aws.ToString(inst.InstanceId),
				"privateIpAddress": aws.ToString(inst.PrivateIpAddress),
				"publicIpAddress":  aws.ToString(inst.PublicIpAddress),
				"availabilityZone": availabilityZone(inst),
				"state":            state,
			}, nil
		}
	}
	return false, nil, nil
}
