package lifecycle

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
)

// Interface slices of the AWS SDK clients this package calls, so the wire
// logic stays testable without HTTP.

type elbAPI interface {
	ModifyRule(ctx context.Context, in *elasticloadbalancingv2.ModifyRuleInput, opts ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.ModifyRuleOutput, error)
}

type asgAPI interface {
	UpdateAutoScalingGroup(ctx context.Context, in *autoscaling.UpdateAutoScalingGroupInput, opts ...func(*autoscaling.Options)) (*autoscaling.UpdateAutoScalingGroupOutput, error)
	DescribeAutoScalingGroups(ctx context.Context, in *autoscaling.DescribeAutoScalingGroupsInput, opts ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error)
}

type rdsAPI interface {
	StartDBInstance(ctx context.Context, in *rds.StartDBInstanceInput, opts ...func(*rds.Options)) (*rds.StartDBInstanceOutput, error)
	StopDBInstance(ctx context.Context, in *rds.StopDBInstanceInput, opts ...func(*rds.Options)) (*rds.StopDBInstanceOutput, error)
	DescribeDBInstances(ctx context.Context, in *rds.DescribeDBInstancesInput, opts ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
}

type ec2API interface {
	CreateNatGateway(ctx context.Context, in *ec2.CreateNatGatewayInput, opts ...func(*ec2.Options)) (*ec2.CreateNatGatewayOutput, error)
	DeleteNatGateway(ctx context.Context, in *ec2.DeleteNatGatewayInput, opts ...func(*ec2.Options)) (*ec2.DeleteNatGatewayOutput, error)
	DescribeNatGateways(ctx context.Context, in *ec2.DescribeNatGatewaysInput, opts ...func(*ec2.Options)) (*ec2.DescribeNatGatewaysOutput, error)
	ReplaceRoute(ctx context.Context, in *ec2.ReplaceRouteInput, opts ...func(*ec2.Options)) (*ec2.ReplaceRouteOutput, error)
}

// AWSOptions name the infrastructure pieces the controller manipulates.
type AWSOptions struct {
	// ListenerRuleARN is the balancer rule whose forward action flips
	// between the two target groups.
	ListenerRuleARN           string
	PrimaryTargetGroupARN     string
	MaintenanceTargetGroupARN string

	// AutoScalingGroup is the application's group name.
	AutoScalingGroup string

	// DBInstanceID is the RDS instance identifier.
	DBInstanceID string

	// NAT gateway placement: the public subnet, the elastic IP allocation,
	// and the private route table whose default route uses the gateway.
	SubnetID     string
	AllocationID string
	RouteTableID string
}

// AWSPlane implements ControlPlane on the AWS control-plane APIs.
type AWSPlane struct {
	elb  elbAPI
	asg  asgAPI
	rds  rdsAPI
	ec2c ec2API
	opts AWSOptions
}

// NewAWSPlane wires concrete (or fake) service clients.
func NewAWSPlane(elb elbAPI, asg asgAPI, rdsc rdsAPI, ec2c ec2API, opts AWSOptions) *AWSPlane {
	return &AWSPlane{elb: elb, asg: asg, rds: rdsc, ec2c: ec2c, opts: opts}
}

// NewAWSPlaneFromConfig builds all four clients from one aws.Config.
func NewAWSPlaneFromConfig(cfg aws.Config, opts AWSOptions) *AWSPlane {
	return NewAWSPlane(
		elasticloadbalancingv2.NewFromConfig(cfg),
		autoscaling.NewFromConfig(cfg),
		rds.NewFromConfig(cfg),
		ec2.NewFromConfig(cfg),
		opts,
	)
}

// RouteTraffic implements ControlPlane.
func (p *AWSPlane) RouteTraffic(ctx context.Context, target TrafficTarget) error {
	tg := p.opts.PrimaryTargetGroupARN
	if target == TrafficMaintenance {
		tg = p.opts.MaintenanceTargetGroupARN
	}
	_, err := p.elb.ModifyRule(ctx, &elasticloadbalancingv2.ModifyRuleInput{
		RuleArn: aws.String(p.opts.ListenerRuleARN),
		Actions: []elbtypes.Action{{
			Type:           elbtypes.ActionTypeEnumForward,
			TargetGroupArn: aws.String(tg),
		}},
	})
	return err
}

// SetCapacity implements ControlPlane. Min, max and desired all move
// together: the migration window wants exactly 0 or exactly 1 instance, not
// a range the group can drift within.
func (p *AWSPlane) SetCapacity(ctx context.Context, desired int) error {
	n := int32(desired)
	_, err := p.asg.UpdateAutoScalingGroup(ctx, &autoscaling.UpdateAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(p.opts.AutoScalingGroup),
		MinSize:              aws.Int32(n),
		MaxSize:              aws.Int32(n),
		DesiredCapacity:      aws.Int32(n),
	})
	return err
}

// InServiceCapacity implements ControlPlane.
func (p *AWSPlane) InServiceCapacity(ctx context.Context) (int, error) {
	out, err := p.asg.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
		AutoScalingGroupNames: []string{p.opts.AutoScalingGroup},
	})
	if err != nil {
		return 0, err
	}
	if len(out.AutoScalingGroups) == 0 {
		return 0, fmt.Errorf("auto scaling group %s not found", p.opts.AutoScalingGroup)
	}

	n := 0
	for _, inst := range out.AutoScalingGroups[0].Instances {
		if inst.LifecycleState == "InService" {
			n++
		}
	}
	return n, nil
}

// StartDatabase implements ControlPlane.
func (p *AWSPlane) StartDatabase(ctx context.Context) error {
	_, err := p.rds.StartDBInstance(ctx, &rds.StartDBInstanceInput{
		DBInstanceIdentifier: aws.String(p.opts.DBInstanceID),
	})
	return err
}

// StopDatabase implements ControlPlane.
func (p *AWSPlane) StopDatabase(ctx context.Context) error {
	_, err := p.rds.StopDBInstance(ctx, &rds.StopDBInstanceInput{
		DBInstanceIdentifier: aws.String(p.opts.DBInstanceID),
	})
	return err
}

// DatabaseStatus implements ControlPlane.
func (p *AWSPlane) DatabaseStatus(ctx context.Context) (string, error) {
	out, err := p.rds.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: aws.String(p.opts.DBInstanceID),
	})
	if err != nil {
		return "", err
	}
	if len(out.DBInstances) == 0 {
		return "", fmt.Errorf("db instance %s not found", p.opts.DBInstanceID)
	}
	return aws.ToString(out.DBInstances[0].DBInstanceStatus), nil
}

// CreateEgressGateway implements ControlPlane.
func (p *AWSPlane) CreateEgressGateway(ctx context.Context) (string, error) {
	out, err := p.ec2c.CreateNatGateway(ctx, &ec2.CreateNatGatewayInput{
		SubnetId:     aws.String(p.opts.SubnetID),
		AllocationId: aws.String(p.opts.AllocationID),
	})
	if err != nil {
		return "", err
	}
	if out.NatGateway == nil || out.NatGateway.NatGatewayId == nil {
		return "", fmt.Errorf("create nat gateway returned no id")
	}
	return *out.NatGateway.NatGatewayId, nil
}

// EgressGatewayState implements ControlPlane.
func (p *AWSPlane) EgressGatewayState(ctx context.Context, id string) (string, error) {
	out, err := p.ec2c.DescribeNatGateways(ctx, &ec2.DescribeNatGatewaysInput{
		NatGatewayIds: []string{id},
	})
	if err != nil {
		return "", err
	}
	if len(out.NatGateways) == 0 {
		// DescribeNatGateways drops fully deleted gateways from results.
		return "deleted", nil
	}
	return string(out.NatGateways[0].State), nil
}

// DeleteEgressGateway implements ControlPlane.
func (p *AWSPlane) DeleteEgressGateway(ctx context.Context, id string) error {
	_, err := p.ec2c.DeleteNatGateway(ctx, &ec2.DeleteNatGatewayInput{
		NatGatewayId: aws.String(id),
	})
	return err
}

// RouteEgress implements ControlPlane.
func (p *AWSPlane) RouteEgress(ctx context.Context, gatewayID string) error {
	_, err := p.ec2c.ReplaceRoute(ctx, &ec2.ReplaceRouteInput{
		RouteTableId:         aws.String(p.opts.RouteTableID),
		DestinationCidrBlock: aws.String("0.0.0.0/0"),
		NatGatewayId:         aws.String(gatewayID),
	})
	return err
}

var _ ControlPlane = (*AWSPlane)(nil)
