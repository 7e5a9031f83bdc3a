// Package aws implements the provider adapter for AWS resources using the
// AWS SDK v2 service clients.
package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/efs"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Provider struct {
	mu     sync.Mutex
	region string

	ec2Client   *ec2.Client
	rdsClient   *rds.Client
	s3Client    *s3.Client
	elbv2Client *elasticloadbalancingv2.Client
	efsClient   *efs.Client
}

func New() *Provider {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	return &Provider{region: region}
}

func (p *Provider) ensureClients(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ec2Client != nil {
		return nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(p.region))
	if err != nil {
		return fmt.Errorf("unable to load AWS config: %w", err)
	}

	p.ec2Client = ec2.NewFromConfig(cfg)
	p.rdsClient = rds.NewFromConfig(cfg)
	p.s3Client = s3.NewFromConfig(cfg)
	p.elbv2Client = elasticloadbalancingv2.NewFromConfig(cfg)
	p.efsClient = efs.NewFromConfig(cfg)
	return nil
}

func (p *Provider) Create(ctx context.Context, resourceType string, props map[string]any) (string, map[string]any, error) {
	if err := p.ensureClients(ctx); err != nil {
		return "", nil, err
	}

	switch resourceType {
	case "aws:ec2/vpc":
		return p.createVpc(ctx, props)
	case "aws:ec2/subnet":
		return p.createSubnet(ctx, props)
	case "aws:ec2/internetGateway":
		return p.createInternetGateway(ctx, props)
	case "aws:ec2/routeTable":
		return p.createRouteTable(ctx, props)
	case "aws:ec2/securityGroup":
		return p.createSecurityGroup(ctx, props)
	case "aws:ec2/instance":
		return p.createInstance(ctx, props)
	case "aws:rds/subnetGroup":
		return p.createDBSubnetGroup(ctx, props)
	case "aws:rds/instance":
		return p.createDBInstance(ctx, props)
	case "aws:s3/bucket":
		return p.createBucket(ctx, props)
	case "aws:elbv2/loadBalancer":
		return p.createLoadBalancer(ctx, props)
	case "aws:elbv2/targetGroup":
		return p.createTargetGroup(ctx, props)
	case "aws:elbv2/listener":
		return p.createListener(ctx, props)
	case "aws:efs/fileSystem":
		return p.createFileSystem(ctx, props)
	case "aws:efs/mountTarget":
		return p.createMountTarget(ctx, props)
	}
	return "", nil, fmt.Errorf("unknown resource type: %s", resourceType)
}

func (p *Provider) Update(ctx context.Context, resourceType, id string, props map[string]any) (map[string]any, error) {
	if err := p.ensureClients(ctx); err != nil {
		return nil, err
	}

	switch resourceType {
	case "aws:ec2/instance":
		return p.updateInstance(ctx, id, props)
	case "aws:rds/instance":
		return p.updateDBInstance(ctx, id, props)
	case "aws:s3/bucket":
		return p.updateBucket(ctx, id, props)
	case "aws:elbv2/targetGroup":
		return p.updateTargetGroup(ctx, id, props)
	}
	return nil, fmt.Errorf("in-place update not supported for %s; remove and re-declare the resource", resourceType)
}

func (p *Provider) Delete(ctx context.Context, resourceType, id string) error {
	if err := p.ensureClients(ctx); err != nil {
		return err
	}

	switch resourceType {
	case "aws:ec2/vpc":
		return p.deleteVpc(ctx, id)
	case "aws:ec2/subnet":
		return p.deleteSubnet(ctx, id)
	case "aws:ec2/internetGateway":
		return p.deleteInternetGateway(ctx, id)
	case "aws:ec2/routeTable":
		return p.deleteRouteTable(ctx, id)
	case "aws:ec2/securityGroup":
		return p.deleteSecurityGroup(ctx, id)
	case "aws:ec2/instance":
		return p.deleteInstance(ctx, id)
	case "aws:rds/subnetGroup":
		return p.deleteDBSubnetGroup(ctx, id)
	case "aws:rds/instance":
		return p.deleteDBInstance(ctx, id)
	case "aws:s3/bucket":
		return p.deleteBucket(ctx, id)
	case "aws:elbv2/loadBalancer":
		return p.deleteLoadBalancer(ctx, id)
	case "aws:elbv2/targetGroup":
		return p.deleteTargetGroup(ctx, id)
	case "aws:elbv2/listener":
		return p.deleteListener(ctx, id)
	case "aws:efs/fileSystem":
		return p.deleteFileSystem(ctx, id)
	case "aws:efs/mountTarget":
		return p.deleteMountTarget(ctx, id)
	}
	return fmt.Errorf("unknown resource type: %s", resourceType)
}

func (p *Provider) Describe(ctx context.Context, resourceType, id string) (bool, map[string]any, error) {
	if err := p.ensureClients(ctx); err != nil {
		return false, nil, err
	}

	switch resourceType {
	case "aws:ec2/vpc":
		return p.describeVpc(ctx, id)
	case "aws:ec2/subnet":
		return p.describeSubnet(ctx, id)
	case "aws:ec2/instance":
		return p.describeInstance(ctx, id)
	case "aws:rds/instance":
		return p.describeDBInstance(ctx, id)
	case "aws:s3/bucket":
		return p.describeBucket(ctx, id)
	case "aws:elbv2/loadBalancer":
		return p.describeLoadBalancer(ctx, id)
	case "aws:efs/fileSystem":
		return p.describeFileSystem(ctx, id)
	}
	return false, nil, fmt.Errorf("describe not supported for %s", resourceType)
}

// decode converts a property bag into a typed config struct via JSON tags.
func decode(props map[string]any, out any) error {
	data, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("failed to marshal properties: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid properties: %w", err)
	}
	return nil
}
