package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
)

type dbSubnetGroupConfig struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SubnetIDs   []string `json:"subnetIds"`
}

func (p *Provider) createDBSubnetGroup(ctx context.Context, props map[string]any) (string, map[string]any, error) {
	var cfg dbSubnetGroupConfig
	if err := decode(props, &cfg); err != nil {
		return "", nil, err
	}
	if cfg.Description == "" {
		cfg.Description = "Managed by relish"
	}

	resp, err := p.rdsClient.CreateDBSubnetGroup(ctx, &rds.CreateDBSubnetGroupInput{
		DBSubnetGroupName:        aws.String(cfg.Name),
		DBSubnetGroupDescription: aws.String(cfg.Description),
		SubnetIds:                cfg.SubnetIDs,
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to create DB subnet group: %w", err)
	}

	name := aws.ToString(resp.DBSubnetGroup.DBSubnetGroupName)
	return name, map[string]any{
		"id":   name,
		"name": name,
	}, nil
}

func (p *Provider) deleteDBSubnetGroup(ctx context.Context, id string) error {
	_, err := p.rdsClient.DeleteDBSubnetGroup(ctx, &rds.DeleteDBSubnetGroupInput{
		DBSubnetGroupName: aws.String(id),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete DB subnet group %s: %w", id, err)
	}
	return nil
}

type dbInstanceConfig struct {
	Identifier       string   `json:"identifier"`
	InstanceClass    string   `json:"instanceClass"`
	Engine           string   `json:"engine"`
	EngineVersion    string   `json:"engineVersion"`
	MasterUsername   string   `json:"masterUsername"`
	MasterPassword   string   `json:"masterPassword"`
	AllocatedStorage int      `json:"allocatedStorage"`
	DBName           string   `json:"dbName"`
	SubnetGroupName  string   `json:"subnetGroupName"`
	SecurityGroupIDs []string `json:"securityGroupIds"`
	MultiAZ          bool     `json:"multiAz"`
}

func (p *Provider) createDBInstance(ctx context.Context, props map[string]any) (string, map[string]any, error) {
	var cfg dbInstanceConfig
	if err := decode(props, &cfg); err != nil {
		return "", nil, err
	}

	input := &rds.CreateDBInstanceInput{
		DBInstanceIdentifier: aws.String(cfg.Identifier),
		DBInstanceClass:      aws.String(cfg.InstanceClass),
		Engine:               aws.String(cfg.Engine),
		AllocatedStorage:     aws.Int32(int32(cfg.AllocatedStorage)),
		MasterUsername:       aws.String(cfg.MasterUsername),
		MasterUserPassword:   aws.String(cfg.MasterPassword),
		MultiAZ:              aws.Bool(cfg.MultiAZ),
	}
	if cfg.EngineVersion != "" {
		input.EngineVersion = aws.String(cfg.EngineVersion)
	}
	if cfg.DBName != "" {
		input.DBName = aws.String(cfg.DBName)
	}
	if cfg.SubnetGroupName != "" {
		input.DBSubnetGroupName = aws.String(cfg.SubnetGroupName)
	}
	if len(cfg.SecurityGroupIDs) > 0 {
		input.VpcSecurityGroupIds = cfg.SecurityGroupIDs
	}

	resp, err := p.rdsClient.CreateDBInstance(ctx, input)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create DB instance: %w", err)
	}
	id := aws.ToString(resp.DBInstance.DBInstanceIdentifier)

	// The endpoint is not assigned until the instance leaves "creating".
	outputs := map[string]any{
		"id":     id,
		"engine": aws.ToString(resp.DBInstance.Engine),
	}
	if resp.DBInstance.Endpoint != nil {
		outputs["endpointAddress"] = aws.ToString(resp.DBInstance.Endpoint.Address)
		outputs["port"] = int(aws.ToInt32(resp.DBInstance.Endpoint.Port))
	}
	return id, outputs, nil
}

func (p *Provider) updateDBInstance(ctx context.Context, id string, props map[string]any) (map[string]any, error) {
	var cfg dbInstanceConfig
	if err := decode(props, &cfg); err != nil {
		return nil, err
	}

	input := &rds.ModifyDBInstanceInput{
		DBInstanceIdentifier: aws.String(id),
		ApplyImmediately:     aws.Bool(true),
	}
	if cfg.InstanceClass != "" {
		input.DBInstanceClass = aws.String(cfg.InstanceClass)
	}
	if cfg.AllocatedStorage > 0 {
		input.AllocatedStorage = aws.Int32(int32(cfg.AllocatedStorage))
	}
	if len(cfg.SecurityGroupIDs) > 0 {
		input.VpcSecurityGroupIds = cfg.SecurityGroupIDs
	}

	if _, err := p.rdsClient.ModifyDBInstance(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to modify DB instance %s: %w", id, err)
	}

	exists, outputs, err := p.describeDBInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("DB instance %s no longer exists", id)
	}
	return outputs, nil
}

func (p *Provider) deleteDBInstance(ctx context.Context, id string) error {
	_, err := p.rdsClient.DeleteDBInstance(ctx, &rds.DeleteDBInstanceInput{
		DBInstanceIdentifier: aws.String(id),
		SkipFinalSnapshot:    aws.Bool(true),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete DB instance %s: %w", id, err)
	}
	return nil
}

func (p *Provider) describeDBInstance(ctx context.Context, id string) (bool, map[string]any, error) {
	resp, err := p.rdsClient.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: aws.String(id),
	})
	if err != nil {
		if strings.Contains(err.Error(), "DBInstanceNotFound") {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("failed to describe DB instance %s: %w", id, err)
	}
	if len(resp.DBInstances) == 0 {
		return false, nil, nil
	}

	db := resp.DBInstances[0]
	outputs := map[string]any{
		"id":     aws.ToString(db.DBInstanceIdentifier),
		"engine": aws.ToString(db.Engine),
		"status": aws.ToString(db.DBInstanceStatus),
	}
	if db.Endpoint != nil {
		outputs["endpointAddress"] = aws.ToString(db.Endpoint.Address)
		outputs["port"] = int(aws.ToInt32(db.Endpoint.Port))
	}
	return true, outputs, nil
}
