// Package lifecycle flips the surrounding service infrastructure around a
// migration window: route traffic to a maintenance page, scale the
// application down and back up, stop or start the database, and provision a
// temporary egress gateway.
//
// Every operation is "submit, poll until a target status, proceed" against an
// infrastructure control plane. None of it is part of the ETL core; the
// migration pipeline neither calls this package nor is called by it.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"dbmigrate/internal/poll"
)

// TrafficTarget selects where the load balancer sends requests.
type TrafficTarget string

const (
	TrafficPrimary     TrafficTarget = "primary"
	TrafficMaintenance TrafficTarget = "maintenance"
)

// ControlPlane is the provider seam. Mutating calls submit the change;
// the matching status calls observe convergence. The AWS implementation is
// in aws.go; tests use fakes.
type ControlPlane interface {
	// RouteTraffic points the balancer's rule at the target. Takes effect
	// on the next request; no convergence wait is needed.
	RouteTraffic(ctx context.Context, target TrafficTarget) error

	// SetCapacity requests the desired number of application instances.
	SetCapacity(ctx context.Context, desired int) error
	// InServiceCapacity reports how many instances are currently serving.
	InServiceCapacity(ctx context.Context) (int, error)

	StartDatabase(ctx context.Context) error
	StopDatabase(ctx context.Context) error
	// DatabaseStatus returns the provider status string, e.g. "available",
	// "stopped", or a transitional state.
	DatabaseStatus(ctx context.Context) (string, error)

	// CreateEgressGateway provisions the gateway and returns its ID.
	CreateEgressGateway(ctx context.Context) (string, error)
	// EgressGatewayState returns "pending", "available", "deleting",
	// "deleted", or "failed".
	EgressGatewayState(ctx context.Context, id string) (string, error)
	DeleteEgressGateway(ctx context.Context, id string) error
	// RouteEgress points the private route table's default route at the
	// gateway.
	RouteEgress(ctx context.Context, gatewayID string) error
}

// Logger is the minimal logging interface used by this package.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Controller sequences control-plane calls and waits out their slow
// convergence. Infrastructure state changes are slow (instances boot,
// databases stop), so the probe cadence is coarser than query polling.
type Controller struct {
	Plane ControlPlane

	// Interval between status probes. Defaults to 30s.
	Interval time.Duration

	// MaxWait bounds each operation's convergence wait. Defaults to 30m.
	MaxWait time.Duration

	Logger Logger
}

func (c *Controller) logger() Logger {
	if c.Logger == nil {
		return nopLogger{}
	}
	return c.Logger
}

func (c *Controller) pollOpts(what string) poll.Options {
	interval := c.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	maxWait := c.MaxWait
	if maxWait <= 0 {
		maxWait = 30 * time.Minute
	}
	return poll.Options{
		Interval: interval,
		MaxWait:  maxWait,
		What:     what,
		OnTick:   func() { c.logger().Printf("stage=poll waiting_for=%s", what) },
	}
}

// SetTrafficTarget reroutes the balancer between the live service and the
// maintenance page.
func (c *Controller) SetTrafficTarget(ctx context.Context, target TrafficTarget) error {
	switch target {
	case TrafficPrimary, TrafficMaintenance:
	default:
		return fmt.Errorf("lifecycle: unknown traffic target %q", target)
	}
	if err := c.Plane.RouteTraffic(ctx, target); err != nil {
		return fmt.Errorf("route traffic to %s: %w", target, err)
	}
	c.logger().Printf("stage=traffic target=%s", target)
	return nil
}

// SetComputeCapacity scales the application to desired instances (0 or 1 in
// practice) and blocks until that many are in service.
func (c *Controller) SetComputeCapacity(ctx context.Context, desired int) error {
	if desired < 0 {
		return fmt.Errorf("lifecycle: negative capacity %d", desired)
	}
	if err := c.Plane.SetCapacity(ctx, desired); err != nil {
		return fmt.Errorf("set capacity to %d: %w", desired, err)
	}

	err := poll.Until(ctx, c.pollOpts(fmt.Sprintf("compute capacity %d", desired)), func(ctx context.Context) (bool, error) {
		n, err := c.Plane.InServiceCapacity(ctx)
		if err != nil {
			return false, err
		}
		return n == desired, nil
	})
	if err != nil {
		return err
	}
	c.logger().Printf("stage=capacity desired=%d ok", desired)
	return nil
}

// SetDatabaseAvailability starts or stops the database instance and blocks
// until it reports the matching terminal status.
func (c *Controller) SetDatabaseAvailability(ctx context.Context, on bool) error {
	var submit func(context.Context) error
	want := "stopped"
	if on {
		submit = c.Plane.StartDatabase
		want = "available"
	} else {
		submit = c.Plane.StopDatabase
	}
	if err := submit(ctx); err != nil {
		return fmt.Errorf("database availability %t: %w", on, err)
	}

	err := poll.Until(ctx, c.pollOpts("database status "+want), func(ctx context.Context) (bool, error) {
		st, err := c.Plane.DatabaseStatus(ctx)
		if err != nil {
			return false, err
		}
		return st == want, nil
	})
	if err != nil {
		return err
	}
	c.logger().Printf("stage=database status=%s", want)
	return nil
}

// ProvisionEgressGateway creates the gateway, waits for it to become
// available, and points the egress route at it. Returns the gateway ID the
// caller needs for teardown.
func (c *Controller) ProvisionEgressGateway(ctx context.Context) (string, error) {
	id, err := c.Plane.CreateEgressGateway(ctx)
	if err != nil {
		return "", fmt.Errorf("create egress gateway: %w", err)
	}
	c.logger().Printf("stage=egress gateway=%s state=pending", id)

	err = poll.Until(ctx, c.pollOpts("egress gateway "+id), func(ctx context.Context) (bool, error) {
		st, err := c.Plane.EgressGatewayState(ctx, id)
		if err != nil {
			return false, err
		}
		if st == "failed" {
			return false, fmt.Errorf("egress gateway %s entered state failed", id)
		}
		return st == "available", nil
	})
	if err != nil {
		return id, err
	}

	if err := c.Plane.RouteEgress(ctx, id); err != nil {
		return id, fmt.Errorf("route egress via %s: %w", id, err)
	}
	c.logger().Printf("stage=egress gateway=%s state=available", id)
	return id, nil
}

// TeardownEgressGateway deletes the gateway and waits until it is gone.
func (c *Controller) TeardownEgressGateway(ctx context.Context, id string) error {
	if err := c.Plane.DeleteEgressGateway(ctx, id); err != nil {
		return fmt.Errorf("delete egress gateway %s: %w", id, err)
	}

	err := poll.Until(ctx, c.pollOpts("egress gateway "+id+" deletion"), func(ctx context.Context) (bool, error) {
		st, err := c.Plane.EgressGatewayState(ctx, id)
		if err != nil {
			return false, err
		}
		return st == "deleted", nil
	})
	if err != nil {
		return err
	}
	c.logger().Printf("stage=egress gateway=%s state=deleted", id)
	return nil
}
