package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
)

type loadBalancerConfig struct {
	Name             string   `json:"name"`
	Scheme           string   `json:"scheme"`
	Type             string   `json:"type"`
	SubnetIDs        []string `json:"subnetIds"`
	SecurityGroupIDs []string `json:"securityGroupIds"`
}

func (p *Provider) createLoadBalancer(ctx context.Context, props map[string]any) (string, map[string]any, error) {
	var cfg loadBalancerConfig
	if err := decode(props, &cfg); err != nil {
		return "", nil, err
	}

	scheme := elbtypes.LoadBalancerSchemeEnumInternetFacing
	if cfg.Scheme == "internal" {
		scheme = elbtypes.LoadBalancerSchemeEnumInternal
	}
	lbType := elbtypes.LoadBalancerTypeEnumApplication
	if cfg.Type == "network" {
		lbType = elbtypes.LoadBalancerTypeEnumNetwork
	}

	input := &elbv2.CreateLoadBalancerInput{
		Name:    aws.String(cfg.Name),
		Scheme:  scheme,
		Type:    lbType,
		Subnets: cfg.SubnetIDs,
	}
	if len(cfg.SecurityGroupIDs) > 0 {
		input.SecurityGroups = cfg.SecurityGroupIDs
	}

	resp, err := p.elbv2Client.CreateLoadBalancer(ctx, input)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create load balancer: %w", err)
	}
	if len(resp.LoadBalancers) == 0 {
		return "", nil, fmt.Errorf("CreateLoadBalancer returned no load balancers")
	}

	lb := resp.LoadBalancers[0]
	arn := aws.ToString(lb.LoadBalancerArn)
	return arn, map[string]any{
		"id":      arn,
		"arn":     arn,
		"dnsName": aws.ToString(lb.DNSName),
	}, nil
}

func (p *Provider) deleteLoadBalancer(ctx context.Context, id string) error {
	_, err := p.elbv2Client.DeleteLoadBalancer(ctx, &elbv2.DeleteLoadBalancerInput{
		LoadBalancerArn: aws.String(id),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete load balancer %s: %w", id, err)
	}
	return nil
}

func (p *Provider) describeLoadBalancer(ctx context.Context, id string) (bool, map[string]any, error) {
	resp, err := p.elbv2Client.DescribeLoadBalancers(ctx, &elbv2.DescribeLoadBalancersInput{
		LoadBalancerArns: []string{id},
	})
	if err != nil {
		if strings.Contains(err.Error(), "LoadBalancerNotFound") {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("failed to describe load balancer %s: %w", id, err)
	}
	if len(resp.LoadBalancers) == 0 {
		return false, nil, nil
	}

	lb := resp.LoadBalancers[0]
	return true, map[string]any{
		"id":      aws.ToString(lb.LoadBalancerArn),
		"arn":     aws.ToString(lb.LoadBalancerArn),
		"dnsName": aws.ToString(lb.DNSName),
	}, nil
}

type targetGroupConfig struct {
	Name            string   `json:"name"`
	Port            int      `json:"port"`
	Protocol        string   `json:"protocol"`
	VpcID           string   `json:"vpcId"`
	TargetType      string   `json:"targetType"`
	HealthCheckPath string   `json:"healthCheckPath"`
	Targets         []string `json:"targets"`
}

func (p *Provider) createTargetGroup(ctx context.Context, props map[string]any) (string, map[string]any, error) {
	var cfg targetGroupConfig
	if err := decode(props, &cfg); err != nil {
		return "", nil, err
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "HTTP"
	}

	input := &elbv2.CreateTargetGroupInput{
		Name:     aws.String(cfg.Name),
		Port:     aws.Int32(int32(cfg.Port)),
		Protocol: elbtypes.ProtocolEnum(cfg.Protocol),
		VpcId:    aws.String(cfg.VpcID),
	}
	if cfg.TargetType != "" {
		input.TargetType = elbtypes.TargetTypeEnum(cfg.TargetType)
	}
	if cfg.HealthCheckPath != "" {
		input.HealthCheckPath = aws.String(cfg.HealthCheckPath)
	}

	resp, err := p.elbv2Client.CreateTargetGroup(ctx, input)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create target group: %w", err)
	}
	if len(resp.TargetGroups) == 0 {
		return "", nil, fmt.Errorf("CreateTargetGroup returned no target groups")
	}

	arn := aws.ToString(resp.TargetGroups[0].TargetGroupArn)
	if err := p.registerTargets(ctx, arn, cfg.Targets); err != nil {
		return "", nil, err
	}
	return arn, map[string]any{
		"id":  arn,
		"arn": arn,
	}, nil
}

func (p *Provider) updateTargetGroup(ctx context.Context, id string, props map[string]any) (map[string]any, error) {
	var cfg targetGroupConfig
	if err := decode(props, &cfg); err != nil {
		return nil, err
	}
	if err := p.registerTargets(ctx, id, cfg.Targets); err != nil {
		return nil, err
	}
	return map[string]any{
		"id":  id,
		"arn": id,
	}, nil
}

// registerTargets attaches instance or ip targets to a group. Registering an
// already-registered target is a no-op on the API side.
func (p *Provider) registerTargets(ctx context.Context, arn string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	var targets []elbtypes.TargetDescription
	for _, id := range ids {
		targets = append(targets, elbtypes.TargetDescription{Id: aws.String(id)})
	}
	_, err := p.elbv2Client.RegisterTargets(ctx, &elbv2.RegisterTargetsInput{
		TargetGroupArn: aws.String(arn),
		Targets:        targets,
	})
	if err != nil {
		return fmt.Errorf("failed to register targets with %s: %w", arn, err)
	}
	return nil
}

func (p *Provider) deleteTargetGroup(ctx context.Context, id string) error {
	_, err := p.elbv2Client.DeleteTargetGroup(ctx, &elbv2.DeleteTargetGroupInput{
		TargetGroupArn: aws.String(id),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete target group %s: %w", id, err)
	}
	return nil
}

type listenerConfig struct {
	LoadBalancerArn string `json:"loadBalancerArn"`
	Port            int    `json:"port"`
	Protocol        string `json:"protocol"`
	TargetGroupArn  string `json:"targetGroupArn"`
}

func (p *Provider) createListener(ctx context.Context, props map[string]any) (string, map[string]any, error) {
	var cfg listenerConfig
	if err := decode(props, &cfg); err != nil {
		return "", nil, err
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "HTTP"
	}

	resp, err := p.elbv2Client.CreateListener(ctx, &elbv2.CreateListenerInput{
		LoadBalancerArn: aws.String(cfg.LoadBalancerArn),
		Port:            aws.Int32(int32(cfg.Port)),
		Protocol:        elbtypes.ProtocolEnum(cfg.Protocol),
		DefaultActions: []elbtypes.Action{
			{
				Type:           elbtypes.ActionTypeEnumForward,
				TargetGroupArn: aws.String(cfg.TargetGroupArn),
			},
		},
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to create listener: %w", err)
	}
	if len(resp.Listeners) == 0 {
		return "", nil, fmt.Errorf("CreateListener returned no listeners")
	}

	arn := aws.ToString(resp.Listeners[0].ListenerArn)
	return arn, map[string]any{
		"id":  arn,
		"arn": arn,
	}, nil
}

func (p *Provider) deleteListener(ctx context.Context, id string) error {
	_, err := p.elbv2Client.DeleteListener(ctx, &elbv2.DeleteListenerInput{
		ListenerArn: aws.String(id),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete listener %s: %w", id, err)
	}
	return nil
}
