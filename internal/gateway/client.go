// Package gateway talks to the kernel session gateway: a Jupyter-style
// service exposing sessions, kernels and kernelspecs over REST, with kernel
// channels streamed over WebSocket.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/SessionOS/backend/internal/config"
	"github.com/GriffinCanCode/SessionOS/backend/internal/logging"
	"github.com/GriffinCanCode/SessionOS/backend/internal/resilience"
	"github.com/GriffinCanCode/SessionOS/backend/internal/session"
	"github.com/GriffinCanCode/SessionOS/backend/internal/types"
)

// readyPollInterval is how often Ready re-probes the gateway status
// endpoint until it answers.
const readyPollInterval = 500 * time.Millisecond

// Client is the REST client to the session gateway. It implements
// session.Directory.
type Client struct {
	http    *resty.Client
	wsURL   string
	token   string
	breaker *resilience.Breaker
	log     *logging.Logger

	readyOnce sync.Once
	readyCh   chan struct{}
}

// sessionModel is the gateway's wire representation of a session.
type sessionModel struct {
	ID     string       `json:"id"`
	Path   string       `json:"path"`
	Name   string       `json:"name"`
	Type   string       `json:"type"`
	Kernel *kernelModel `json:"kernel"`
}

// kernelModel is the gateway's wire representation of a kernel.
type kernelModel struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ExecutionState string `json:"execution_state,omitempty"`
}

// startSessionBody is the POST /api/sessions payload.
type startSessionBody struct {
	Path   string      `json:"path"`
	Name   string      `json:"name,omitempty"`
	Type   string      `json:"type"`
	Kernel kernelModel `json:"kernel"`
}

// NewClient creates a gateway client from configuration.
func NewClient(cfg config.GatewayConfig, log *logging.Logger) *Client {
	if log == nil {
		log = logging.NewDefault()
	}
	log = log.Named("gateway")

	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetHeader("Content-Type", "application/json")
	if cfg.Token != "" {
		http.SetHeader("Authorization", "token "+cfg.Token)
	}

	breaker := resilience.New("gateway", resilience.Settings{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	return &Client{
		http:    http,
		wsURL:   cfg.WSURL,
		token:   cfg.Token,
		breaker: breaker,
		log:     log,
		readyCh: make(chan struct{}),
	}
}

// Ready blocks until the gateway answers its status endpoint once.
func (c *Client) Ready(ctx context.Context) error {
	select {
	case <-c.readyCh:
		return nil
	default:
	}

	for {
		resp, err := c.http.R().SetContext(ctx).Get("/api/status")
		if err == nil && resp.IsSuccess() {
			c.readyOnce.Do(func() { close(c.readyCh) })
			return nil
		}
		if err == nil {
			err = fmt.Errorf("gateway status: %s", resp.Status())
		}
		c.log.Debug("gateway not ready", zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyPollInterval):
		}
	}
}

// ListRunning returns the sessions currently active on the gateway.
func (c *Client) ListRunning(ctx context.Context) ([]types.RunningSession, error) {
	var models []sessionModel
	err := c.breaker.Execute(func() error {
		resp, err := c.http.R().SetContext(ctx).SetResult(&models).Get("/api/sessions")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("list sessions: %s", resp.Status())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	running := make([]types.RunningSession, 0, len(models))
	for _, m := range models {
		r := types.RunningSession{ID: m.ID, Path: m.Path, Name: m.Name, Type: m.Type}
		if m.Kernel != nil {
			r.KernelID = m.Kernel.ID
			r.KernelName = m.Kernel.Name
		}
		running = append(running, r)
	}
	return running, nil
}

// ConnectTo attaches to an already running session.
func (c *Client) ConnectTo(ctx context.Context, model types.RunningSession) (session.Connection, error) {
	var sm sessionModel
	err := c.breaker.Execute(func() error {
		resp, err := c.http.R().SetContext(ctx).SetResult(&sm).Get("/api/sessions/" + model.ID)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("get session %s: %s", model.ID, resp.Status())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newConnection(ctx, c, sm)
}

// StartNew creates a remote session with the requested kernel.
func (c *Client) StartNew(ctx context.Context, req session.StartRequest) (session.Connection, error) {
	body := startSessionBody{
		Path:   req.Path,
		Name:   req.Name,
		Type:   req.Type,
		Kernel: kernelModel{ID: req.Kernel.ID, Name: req.Kernel.Name},
	}

	var sm sessionModel
	err := c.breaker.Execute(func() error {
		resp, err := c.http.R().SetContext(ctx).SetBody(body).SetResult(&sm).Post("/api/sessions")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("start session %q: %s", req.Path, resp.Status())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("started remote session",
		zap.String("session_id", sm.ID),
		zap.String("path", sm.Path))
	return newConnection(ctx, c, sm)
}

// KernelSpecs fetches the kernelspec catalog.
func (c *Client) KernelSpecs(ctx context.Context) (*types.KernelSpecCatalog, error) {
	var wire struct {
		Default string `json:"default"`
		Specs   map[string]struct {
			Name string `json:"name"`
			Spec struct {
				DisplayName string `json:"display_name"`
				Language    string `json:"language"`
			} `json:"spec"`
		} `json:"kernelspecs"`
	}

	err := c.breaker.Execute(func() error {
		resp, err := c.http.R().SetContext(ctx).SetResult(&wire).Get("/api/kernelspecs")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("kernelspecs: %s", resp.Status())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	catalog := &types.KernelSpecCatalog{
		Default: wire.Default,
		Specs:   make(map[string]types.KernelSpec, len(wire.Specs)),
	}
	for name, s := range wire.Specs {
		catalog.Specs[name] = types.KernelSpec{
			Name:        name,
			DisplayName: s.Spec.DisplayName,
			Language:    s.Spec.Language,
		}
	}
	return catalog, nil
}

// changeSessionKernel swaps the kernel on an existing session in place.
func (c *Client) changeSessionKernel(ctx context.Context, sessionID string, identity types.KernelIdentity) (sessionModel, error) {
	body := map[string]kernelModel{
		"kernel": {ID: identity.ID, Name: identity.Name},
	}
	var sm sessionModel
	err := c.breaker.Execute(func() error {
		resp, err := c.http.R().SetContext(ctx).SetBody(body).SetResult(&sm).
			Patch("/api/sessions/" + sessionID)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("change kernel on session %s: %s", sessionID, resp.Status())
		}
		return nil
	})
	return sm, err
}

// restartKernel restarts a kernel by id.
func (c *Client) restartKernel(ctx context.Context, kernelID string) error {
	return c.breaker.Execute(func() error {
		resp, err := c.http.R().SetContext(ctx).Post("/api/kernels/" + kernelID + "/restart")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("restart kernel %s: %s", kernelID, resp.Status())
		}
		return nil
	})
}

// deleteSession terminates a session on the gateway.
func (c *Client) deleteSession(ctx context.Context, sessionID string) error {
	return c.breaker.Execute(func() error {
		resp, err := c.http.R().SetContext(ctx).Delete("/api/sessions/" + sessionID)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("delete session %s: %s", sessionID, resp.Status())
		}
		return nil
	})
}
