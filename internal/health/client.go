package health

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// #region client-struct
// Client checks a running session's health service.
type Client struct {
	conn   *grpc.ClientConn
	client healthpb.HealthClient
}

// #endregion client-struct

// #region constructor
// Dial connects to a session's health endpoint. Extra options are appended
// after the insecure transport credentials.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{
		conn:   conn,
		client: healthpb.NewHealthClient(conn),
	}, nil
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region check
// Check returns the session service status, e.g. "SERVING".
func (c *Client) Check(ctx context.Context) (string, error) {
	resp, err := c.client.Check(ctx, &healthpb.HealthCheckRequest{Service: Service})
	if err != nil {
		return "", fmt.Errorf("health check: %w", err)
	}
	return resp.GetStatus().String(), nil
}

// #endregion check
