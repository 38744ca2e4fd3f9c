// Package health exposes the session phase over the standard gRPC health
// service and converts snapshots to protobuf Structs for dumps.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/jameskane05/nanauts-sub000/internal/state"
)

// Service is the health service name that tracks the session phase.
const Service = "nanauts.Session"

// #region reporter

// Reporter mirrors the store's phase into a gRPC health server: SERVING
// while an XR session is running, NOT_SERVING otherwise (paused,
// unsupported, or not yet in XR).
type Reporter struct {
	hs     *health.Server
	logger *slog.Logger
	last   healthpb.HealthCheckResponse_ServingStatus
}

// NewReporter returns a reporter whose service starts NOT_SERVING.
func NewReporter(logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reporter{hs: health.NewServer(), logger: logger}
	r.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return r
}

// StatusFor maps a phase to a serving status.
func StatusFor(p state.Phase) healthpb.HealthCheckResponse_ServingStatus {
	switch p {
	case state.XRActive, state.Playing, state.PortalPlacement:
		return healthpb.HealthCheckResponse_SERVING
	default:
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
}

// OnStateChanged is a store listener.
func (r *Reporter) OnStateChanged(next, _ state.Snapshot) {
	r.set(StatusFor(next.Phase()))
}

func (r *Reporter) set(status healthpb.HealthCheckResponse_ServingStatus) {
	if status == r.last {
		return
	}
	r.last = status
	r.hs.SetServingStatus(Service, status)
	r.logger.Debug("[HEALTH] status", "service", Service, "status", status.String())
}

// Server returns the underlying health server.
func (r *Reporter) Server() *health.Server { return r.hs }

// Serve registers the health service on a new gRPC server and serves lis
// until ctx is done.
func (r *Reporter) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, r.hs)

	go func() {
		<-ctx.Done()
		r.hs.Shutdown()
		srv.GracefulStop()
	}()

	r.logger.Info("[HEALTH] serving", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("health serve: %w", err)
	}
	return nil
}

// #endregion reporter
