package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"dbmigrate/internal/lifecycle"
)

// infraConfig names the infrastructure pieces the lifecycle commands touch.
type infraConfig struct {
	Region string `json:"region"`

	ListenerRuleARN           string `json:"listener_rule_arn"`
	PrimaryTargetGroupARN     string `json:"primary_target_group_arn"`
	MaintenanceTargetGroupARN string `json:"maintenance_target_group_arn"`

	AutoScalingGroup string `json:"auto_scaling_group"`
	DBInstanceID     string `json:"db_instance_id"`

	SubnetID     string `json:"subnet_id"`
	AllocationID string `json:"allocation_id"`
	RouteTableID string `json:"route_table_id"`
}

const usage = `usage: lifecycle [flags] <command> <arg>

commands:
  traffic  primary|maintenance   reroute the load balancer rule
  capacity <n>                   scale the app to n instances and wait
  database on|off                start or stop the database and wait
  egress   up                    provision the egress gateway (prints its id)
  egress   down <gateway-id>     tear the egress gateway down
`

func main() {
	var (
		cfgPath  string
		interval time.Duration
		maxWait  time.Duration
	)
	flag.StringVar(&cfgPath, "config", "configs/infra.json", "infrastructure config JSON path")
	flag.DurationVar(&interval, "interval", 30*time.Second, "status poll interval")
	flag.DurationVar(&maxWait, "max-wait", 30*time.Minute, "per-operation wait budget")
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	f, err := os.Open(cfgPath)
	if err != nil {
		fatalf("open config: %v", err)
	}
	defer f.Close()

	var ic infraConfig
	if err := json.NewDecoder(f).Decode(&ic); err != nil {
		fatalf("decode config: %v", err)
	}

	ctx := context.Background()

	var opts []func(*awsconfig.LoadOptions) error
	if ic.Region != "" {
		opts = append(opts, awsconfig.WithRegion(ic.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		fatalf("aws config: %v", err)
	}

	ctl := &lifecycle.Controller{
		Plane: lifecycle.NewAWSPlaneFromConfig(awsCfg, lifecycle.AWSOptions{
			ListenerRuleARN:           ic.ListenerRuleARN,
			PrimaryTargetGroupARN:     ic.PrimaryTargetGroupARN,
			MaintenanceTargetGroupARN: ic.MaintenanceTargetGroupARN,
			AutoScalingGroup:          ic.AutoScalingGroup,
			DBInstanceID:              ic.DBInstanceID,
			SubnetID:                  ic.SubnetID,
			AllocationID:              ic.AllocationID,
			RouteTableID:              ic.RouteTableID,
		}),
		Interval: interval,
		MaxWait:  maxWait,
		Logger:   log.Default(),
	}

	switch cmd, arg := args[0], args[1]; cmd {
	case "traffic":
		err = ctl.SetTrafficTarget(ctx, lifecycle.TrafficTarget(arg))

	case "capacity":
		var n int
		n, err = strconv.Atoi(arg)
		if err != nil {
			fatalf("capacity: %q is not a number", arg)
		}
		err = ctl.SetComputeCapacity(ctx, n)

	case "database":
		switch arg {
		case "on":
			err = ctl.SetDatabaseAvailability(ctx, true)
		case "off":
			err = ctl.SetDatabaseAvailability(ctx, false)
		default:
			fatalf("database: want on|off, got %q", arg)
		}

	case "egress":
		switch arg {
		case "up":
			var id string
			id, err = ctl.ProvisionEgressGateway(ctx)
			if id != "" {
				fmt.Println(id)
			}
		case "down":
			if len(args) < 3 {
				fatalf("egress down: gateway id required")
			}
			err = ctl.TeardownEgressGateway(ctx, args[2])
		default:
			fatalf("egress: want up|down, got %q", arg)
		}

	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("%v", err)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
