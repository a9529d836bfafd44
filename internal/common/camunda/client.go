// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"entitlement-service/internal/common/config"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

const defaultConnectionTimeout = 10 * time.Second

// Client wraps the Zeebe gRPC client used by the job workers.
type Client struct {
	client            zbc.Client
	connectionTimeout time.Duration
}

// NewClient connects to the configured gateway and checks the topology once.
func NewClient(ctx context.Context, cfg config.CamundaConfig) (*Client, error) {
	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := &Client{client: zeebeClient, connectionTimeout: defaultConnectionTimeout}
	if err := c.HealthCheck(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", cfg.BrokerAddress, err)
	}
	return c, nil
}

// GetClient returns the raw Zeebe client for job polling.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// HealthCheck performs a topology request against the broker.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.connectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		if isTransient(err) {
			return fmt.Errorf("zeebe unavailable: %w", err)
		}
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{
		"connection refused",
		"connection reset",
		"deadline exceeded",
		"unavailable",
	} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
