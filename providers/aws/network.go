package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

type vpcConfig struct {
	CidrBlock          string            `json:"cidrBlock"`
	EnableDnsHostnames bool              `json:"enableDnsHostnames"`
	Tags               map[string]string `json:"tags"`
}

func (p *Provider) createVpc(ctx context.Context, props map[string]any) (string, map[string]any, error) {
	var cfg vpcConfig
	if err := decode(props, &cfg); err != nil {
		return "", nil, err
	}

	resp, err := p.ec2Client.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock: aws.String(cfg.CidrBlock),
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to create VPC: %w", err)
	}
	vpcID := aws.ToString(resp.Vpc.VpcId)

	if cfg.EnableDnsHostnames {
		_, _ = p.ec2Client.ModifyVpcAttribute(ctx, &ec2.ModifyVpcAttributeInput{
			VpcId:              aws.String(vpcID),
			EnableDnsHostnames: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)},
		})
	}
	p.tagResource(ctx, vpcID, cfg.Tags)

	return vpcID, map[string]any{
		"id":        vpcID,
		"cidrBlock": aws.ToString(resp.Vpc.CidrBlock),
	}, nil
}

func (p *Provider) deleteVpc(ctx context.Context, id string) error {
	_, err := p.ec2Client.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(id)})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete VPC %s: %w", id, err)
	}
	return nil
}

func (p *Provider) describeVpc(ctx context.Context, id string) (bool, map[string]any, error) {
	resp, err := p.ec2Client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{id}})
	if err != nil {
		if strings.Contains(err.Error(), "NotFound") {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("failed to describe VPC %s: %w", id, err)
	}
	if len(resp.Vpcs) == 0 {
		return false, nil, nil
	}
	vpc := resp.Vpcs[0]
	return true, map[string]any{
		"id":        aws.ToString(vpc.VpcId),
		"cidrBlock": aws.ToString(vpc.CidrBlock),
		"state":     string(vpc.State),
	}, nil
}

type subnetConfig struct {
	VpcID               string            `json:"vpcId"`
	CidrBlock           string            `json:"cidrBlock"`
	AvailabilityZone    string            `json:"availabilityZone"`
	MapPublicIpOnLaunch bool              `json:"mapPublicIpOnLaunch"`
	Tags                map[string]string `json:"tags"`
}

func (p *Provider) createSubnet(ctx context.Context, props map[string]any) (string, map[string]any, error) {
	var cfg subnetConfig
	if err := decode(props, &cfg); err != nil {
		return "", nil, err
	}

	input := &ec2.CreateSubnetInput{
		VpcId:     aws.String(cfg.VpcID),
		CidrBlock: aws.String(cfg.CidrBlock),
	}
	if cfg.AvailabilityZone != "" {
		input.AvailabilityZone = aws.String(cfg.AvailabilityZone)
	}

	resp, err := p.ec2Client.CreateSubnet(ctx, input)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create subnet: %w", err)
	}
	subnetID := aws.ToString(resp.Subnet.SubnetId)

	if cfg.MapPublicIpOnLaunch {
		_, _ = p.ec2Client.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
			SubnetId:            aws.String(subnetID),
			MapPublicIpOnLaunch: &ec2types.AttributeBooleanValue{Value: aws.Bool(true)},
		})
	}
	p.tagResource(ctx, subnetID, cfg.Tags)

	return subnetID, map[string]any{
		"id":               subnetID,
		"vpcId":            aws.ToString(resp.Subnet.VpcId),
		"availabilityZone": aws.ToString(resp.Subnet.AvailabilityZone),
	}, nil
}

func (p *Provider) deleteSubnet(ctx context.Context, id string) error {
	_, err := p.ec2Client.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(id)})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete subnet %s: %w", id, err)
	}
	return nil
}

func (p *Provider) describeSubnet(ctx context.Context, id string) (bool, map[string]any, error) {
	resp, err := p.ec2Client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{SubnetIds: []string{id}})
	if err != nil {
		if strings.Contains(err.Error(), "NotFound") {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("failed to describe subnet %s: %w", id, err)
	}
	if len(resp.Subnets) == 0 {
		return false, nil, nil
	}
	sub := resp.Subnets[0]
	return true, map[string]any{
		"id":               aws.ToString(sub.SubnetId),
		"vpcId":            aws.ToString(sub.VpcId),
		"availabilityZone": aws.ToString(sub.AvailabilityZone),
	}, nil
}

type internetGatewayConfig struct {
	VpcID string            `json:"vpcId"`
	Tags  map[string]string `json:"tags"`
}

func (p *Provider) createInternetGateway(ctx context.Context, props map[string]any) (string, map[string]any, error) {
	var cfg internetGatewayConfig
	if err := decode(props, &cfg); err != nil {
		return "", nil, err
	}

	resp, err := p.ec2Client.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{})
	if err != nil {
		return "", nil, fmt.Errorf("failed to create internet gateway: %w", err)
	}
	igwID := aws.ToString(resp.InternetGateway.InternetGatewayId)

	if cfg.VpcID != "" {
		_, err := p.ec2Client.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
			InternetGatewayId: aws.String(igwID),
			VpcId:             aws.String(cfg.VpcID),
		})
		if err != nil {
			return "", nil, fmt.Errorf("failed to attach internet gateway: %w", err)
		}
	}
	p.tagResource(ctx, igwID, cfg.Tags)

	return igwID, map[string]any{
		"id":    igwID,
		"vpcId": cfg.VpcID,
	}, nil
}

func (p *Provider) deleteInternetGateway(ctx context.Context, id string) error {
	resp, err := p.ec2Client.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
		InternetGatewayIds: []string{id},
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to describe internet gateway %s: %w", id, err)
	}

	for _, igw := range resp.InternetGateways {
		for _, att := range igw.Attachments {
			_, err := p.ec2Client.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
				InternetGatewayId: aws.String(id),
				VpcId:             att.VpcId,
			})
			if err != nil {
				return fmt.Errorf("failed to detach internet gateway %s: %w", id, err)
			}
		}
	}

	_, err = p.ec2Client.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{
		InternetGatewayId: aws.String(id),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete internet gateway %s: %w", id, err)
	}
	return nil
}

type routeTableConfig struct {
	VpcID     string            `json:"vpcId"`
	Routes    []routeConfig     `json:"routes"`
	SubnetIDs []string          `json:"subnetIds"`
	Tags      map[string]string `json:"tags"`
}

type routeConfig struct {
	DestinationCidrBlock string `json:"destinationCidrBlock"`
	GatewayID            string `json:"gatewayId"`
}

func (p *Provider) createRouteTable(ctx context.Context, props map[string]any) (string, map[string]any, error) {
	var cfg routeTableConfig
	if err := decode(props, &cfg); err != nil {
		return "", nil, err
	}

	resp, err := p.ec2Client.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{
		VpcId: aws.String(cfg.VpcID),
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to create route table: %w", err)
	}
	rtID := aws.ToString(resp.RouteTable.RouteTableId)

	for _, route := range cfg.Routes {
		_, err := p.ec2Client.CreateRoute(ctx, &ec2.CreateRouteInput{
			RouteTableId:         aws.String(rtID),
			DestinationCidrBlock: aws.String(route.DestinationCidrBlock),
			GatewayId:            aws.String(route.GatewayID),
		})
		if err != nil {
			return "", nil, fmt.Errorf("failed to create route %s: %w", route.DestinationCidrBlock, err)
		}
	}
	for _, subnetID := range cfg.SubnetIDs {
		_, err := p.ec2Client.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
			RouteTableId: aws.String(rtID),
			SubnetId:     aws.String(subnetID),
		})
		if err != nil {
			return "", nil, fmt.Errorf("failed to associate route table with subnet %s: %w", subnetID, err)
		}
	}
	p.tagResource(ctx, rtID, cfg.Tags)

	return rtID, map[string]any{
		"id":    rtID,
		"vpcId": cfg.VpcID,
	}, nil
}

func (p *Provider) deleteRouteTable(ctx context.Context, id string) error {
	resp, err := p.ec2Client.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		RouteTableIds: []string{id},
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to describe route table %s: %w", id, err)
	}

	for _, rt := range resp.RouteTables {
		for _, assoc := range rt.Associations {
			if aws.ToBool(assoc.Main) {
				continue
			}
			_, err := p.ec2Client.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{
				AssociationId: assoc.RouteTableAssociationId,
			})
			if err != nil {
				return fmt.Errorf("failed to disassociate route table %s: %w", id, err)
			}
		}
	}

	_, err = p.ec2Client.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{
		RouteTableId: aws.String(id),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete route table %s: %w", id, err)
	}
	return nil
}

type securityGroupConfig struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	VpcID       string              `json:"vpcId"`
	Ingress     []securityGroupRule `json:"ingress"`
	Egress      []securityGroupRule `json:"egress"`
	Tags        map[string]string   `json:"tags"`
}

type securityGroupRule struct {
	FromPort         int      `json:"fromPort"`
	ToPort           int      `json:"toPort"`
	Protocol         string   `json:"protocol"`
	CidrBlocks       []string `json:"cidrBlocks"`
	SecurityGroupIDs []string `json:"securityGroupIds"`
}

func (p *Provider) createSecurityGroup(ctx context.Context, props map[string]any) (string, map[string]any, error) {
	var cfg securityGroupConfig
	if err := decode(props, &cfg); err != nil {
		return "", nil, err
	}

	input := &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(cfg.Name),
		Description: aws.String(cfg.Description),
	}
	if cfg.VpcID != "" {
		input.VpcId = aws.String(cfg.VpcID)
	}

	resp, err := p.ec2Client.CreateSecurityGroup(ctx, input)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create security group: %w", err)
	}
	groupID := aws.ToString(resp.GroupId)

	if len(cfg.Ingress) > 0 {
		_, err := p.ec2Client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: toIPPermissions(cfg.Ingress),
		})
		if err != nil {
			return "", nil, fmt.Errorf("failed to authorize ingress: %w", err)
		}
	}
	if len(cfg.Egress) > 0 {
		_, err := p.ec2Client.AuthorizeSecurityGroupEgress(ctx, &ec2.AuthorizeSecurityGroupEgressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: toIPPermissions(cfg.Egress),
		})
		if err != nil {
			return "", nil, fmt.Errorf("failed to authorize egress: %w", err)
		}
	}
	p.tagResource(ctx, groupID, cfg.Tags)

	return groupID, map[string]any{
		"id":   groupID,
		"name": cfg.Name,
	}, nil
}

func toIPPermissions(rules []securityGroupRule) []ec2types.IpPermission {
	var perms []ec2types.IpPermission
	for _, rule := range rules {
		perm := ec2types.IpPermission{
			IpProtocol: aws.String(rule.Protocol),
			FromPort:   aws.Int32(int32(rule.FromPort)),
			ToPort:     aws.Int32(int32(rule.ToPort)),
		}
		for _, cidr := range rule.CidrBlocks {
			perm.IpRanges = append(perm.IpRanges, ec2types.IpRange{CidrIp: aws.String(cidr)})
		}
		for _, sgID := range rule.SecurityGroupIDs {
			perm.UserIdGroupPairs = append(perm.UserIdGroupPairs, ec2types.UserIdGroupPair{GroupId: aws.String(sgID)})
		}
		perms = append(perms, perm)
	}
	return perms
}

func (p *Provider) deleteSecurityGroup(ctx context.Context, id string) error {
	_, err := p.ec2Client.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: aws.String(id)})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete security group %s: %w", id, err)
	}
	return nil
}

// tagResource applies tags to an EC2-family resource. Tagging failures are
// not fatal to the create.
func (p *Provider) tagResource(ctx context.Context, id string, tags map[string]string) {
	if len(tags) == 0 {
		return
	}
	var ec2Tags []ec2types.Tag
	for k, v := range tags {
		ec2Tags = append(ec2Tags, ec2types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	_, _ = p.ec2Client.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{id},
		Tags:      ec2Tags,
	})
}
