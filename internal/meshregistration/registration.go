// Package meshregistration drives an agent's registration and heartbeat
// lifecycle against a mesh discovery backend: a per-agent worker that
// registers on boot, heartbeats on an interval, re-registers after too many
// consecutive heartbeat failures, and deregisters on retirement.
package meshregistration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yafatek/mxp-agents-runtime/internal/meshlifecycle"
	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
	"github.com/yafatek/mxp-agents-runtime/internal/meshscheduler"
	"github.com/yafatek/mxp-agents-runtime/internal/obs"
)

// InvalidConfigError reports a malformed registration configuration.
type InvalidConfigError struct {
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid registration configuration: %s", e.Reason)
}

// BackendError wraps a failure reported by a registry backend.
type BackendError struct {
	Reason string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("registry backend error: %s", e.Reason)
}

// Config controls heartbeat cadence and retry/backoff behavior.
type Config struct {
	HeartbeatInterval      time.Duration
	InitialRetryDelay      time.Duration
	MaxRetryDelay          time.Duration
	MaxConsecutiveFailures int
}

// DefaultConfig mirrors the defaults used by the system this controller's
// semantics were distilled from: 10s heartbeats, 1s-30s exponential retry,
// 3 consecutive failures before re-registration.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:      10 * time.Second,
		InitialRetryDelay:      time.Second,
		MaxRetryDelay:          30 * time.Second,
		MaxConsecutiveFailures: 3,
	}
}

// Validate reports a configuration error for zero durations or inverted
// retry bounds.
func (c Config) Validate() error {
	if c.HeartbeatInterval <= 0 {
		return &InvalidConfigError{Reason: "heartbeat interval must be greater than zero"}
	}
	if c.InitialRetryDelay <= 0 {
		return &InvalidConfigError{Reason: "initial retry delay must be greater than zero"}
	}
	if c.MaxRetryDelay <= 0 {
		return &InvalidConfigError{Reason: "max retry delay must be greater than zero"}
	}
	if c.InitialRetryDelay > c.MaxRetryDelay {
		return &InvalidConfigError{Reason: "initial retry delay cannot exceed max retry delay"}
	}
	if c.MaxConsecutiveFailures <= 0 {
		return &InvalidConfigError{Reason: "max consecutive failures must be greater than zero"}
	}
	return nil
}

// retryDelay returns the exponential backoff delay for the given attempt
// number (1-indexed), doubling on each attempt and clamped to MaxRetryDelay.
func (c Config) retryDelay(attempt int) time.Duration {
	delay := c.InitialRetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.MaxRetryDelay {
			return c.MaxRetryDelay
		}
	}
	return delay
}

// AgentRegistry is implemented by discovery/registry backends.
type AgentRegistry interface {
	Register(ctx context.Context, manifest meshprimitives.AgentManifest) error
	Heartbeat(ctx context.Context, manifest meshprimitives.AgentManifest) error
	Deregister(ctx context.Context, manifest meshprimitives.AgentManifest) error
}

// Controller drives registration and heartbeats for a single agent,
// starting and stopping its background worker in response to lifecycle
// state changes.
type Controller struct {
	registry AgentRegistry
	manifest meshprimitives.AgentManifest
	config   Config
	logger   *obs.Logger

	mu       sync.Mutex
	shutdown chan struct{}
	running  bool
}

// New constructs a registration controller for the given manifest. logger
// may be nil.
func New(registry AgentRegistry, manifest meshprimitives.AgentManifest, config Config, logger *obs.Logger) *Controller {
	return &Controller{registry: registry, manifest: manifest, config: config, logger: logger}
}

// OnStateChange starts the registration worker when the agent becomes
// Ready or Active, and tears it down (spawning a deregister call) when the
// agent enters Retiring or Terminated. Repeated Ready/Active calls never
// start a second worker; every Retiring or Terminated call schedules its own
// deregister call.
func (c *Controller) OnStateChange(ctx context.Context, scheduler *meshscheduler.Scheduler, state meshlifecycle.AgentState) error {
	switch state {
	case meshlifecycle.StateReady, meshlifecycle.StateActive:
		return c.ensureWorker(scheduler)
	case meshlifecycle.StateRetiring, meshlifecycle.StateTerminated:
		c.stopWorker()
		_, err := meshscheduler.Spawn(scheduler, func(ctx context.Context) (struct{}, error) {
			if err := c.registry.Deregister(ctx, c.manifest); err != nil {
				if c.logger != nil {
					c.logger.Warn(ctx, "agent deregistration failed", "agent_id", c.manifest.ID().String(), "error", err.Error())
				}
			} else if c.logger != nil {
				c.logger.Info(ctx, "agent deregistered", "agent_id", c.manifest.ID().String())
			}
			return struct{}{}, nil
		})
		return err
	default:
		return nil
	}
}

func (c *Controller) ensureWorker(scheduler *meshscheduler.Scheduler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	if err := c.config.Validate(); err != nil {
		return err
	}

	shutdown := make(chan struct{})
	c.shutdown = shutdown
	c.running = true

	_, err := meshscheduler.Spawn(scheduler, func(ctx context.Context) (struct{}, error) {
		c.runRegistrationLoop(ctx, shutdown)
		return struct{}{}, nil
	})
	if err != nil {
		c.running = false
		return err
	}
	return nil
}

func (c *Controller) stopWorker() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	close(c.shutdown)
	c.running = false
}

func (c *Controller) runRegistrationLoop(ctx context.Context, shutdown chan struct{}) {
	attempt := 1
	for {
		select {
		case <-shutdown:
			return
		default:
		}

		if err := c.registry.Register(ctx, c.manifest); err != nil {
			if c.logger != nil {
				c.logger.Warn(ctx, "agent registration failed; retrying", "agent_id", c.manifest.ID().String(), "error", err.Error())
			}
			delay := c.config.retryDelay(attempt)
			select {
			case <-shutdown:
				return
			case <-time.After(delay):
			}
			attempt++
			continue
		}

		if c.logger != nil {
			c.logger.Info(ctx, "agent registered with mesh", "agent_id", c.manifest.ID().String())
		}
		attempt = 1

		if c.runHeartbeatLoop(ctx, shutdown) {
			return
		}
	}
}

// runHeartbeatLoop returns true if shutdown was requested, false if the
// heartbeat failure threshold was reached and re-registration should be
// attempted.
func (c *Controller) runHeartbeatLoop(ctx context.Context, shutdown chan struct{}) bool {
	failures := 0
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-shutdown:
			return true
		case <-ticker.C:
		}

		select {
		case <-shutdown:
			return true
		default:
		}

		if err := c.registry.Heartbeat(ctx, c.manifest); err != nil {
			failures++
			if c.logger != nil {
				c.logger.Warn(ctx, "heartbeat failure", "agent_id", c.manifest.ID().String(), "failures", failures, "error", err.Error())
			}
			if failures >= c.config.MaxConsecutiveFailures {
				if c.logger != nil {
					c.logger.Warn(ctx, "heartbeat failure threshold reached; attempting re-registration",
						"agent_id", c.manifest.ID().String(), "failures", failures)
				}
				return false
			}
			continue
		}
		failures = 0
	}
}
