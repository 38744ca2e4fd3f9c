package health

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jameskane05/nanauts-sub000/internal/state"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func check(t *testing.T, r *Reporter) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := r.Server().Check(context.Background(), &healthpb.HealthCheckRequest{Service: Service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestReporterFollowsPhase(t *testing.T) {
	s := state.New(state.WithLogger(quiet()))
	r := NewReporter(quiet())
	s.Subscribe(state.EventStateChanged, r.OnStateChanged)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, r))

	s.Set(state.Update{state.CurrentState: state.XRActive})
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, r))

	s.Set(state.Update{state.CurrentState: state.XRPaused})
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, r))

	s.Set(state.Update{state.CurrentState: state.PortalPlacement})
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, r))
}

func TestStatusFor(t *testing.T) {
	serving := map[state.Phase]bool{state.XRActive: true, state.Playing: true, state.PortalPlacement: true}
	for _, p := range state.Phases() {
		want := healthpb.HealthCheckResponse_NOT_SERVING
		if serving[p] {
			want = healthpb.HealthCheckResponse_SERVING
		}
		assert.Equal(t, want, StatusFor(p), p.String())
	}
}

func TestServeOverBufconn(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	r := NewReporter(quiet())
	r.OnStateChanged(state.NewSnapshot(state.Update{state.CurrentState: state.Playing}), state.Snapshot{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx, lis) }()

	c, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	defer c.Close()

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()
	status, err := c.Check(callCtx)
	require.NoError(t, err)
	assert.Equal(t, "SERVING", status)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

type fakeHealth struct {
	healthpb.HealthClient
	status healthpb.HealthCheckResponse_ServingStatus
	err    error
	asked  string
}

func (f *fakeHealth) Check(_ context.Context, in *healthpb.HealthCheckRequest, _ ...grpc.CallOption) (*healthpb.HealthCheckResponse, error) {
	f.asked = in.GetService()
	if f.err != nil {
		return nil, f.err
	}
	return &healthpb.HealthCheckResponse{Status: f.status}, nil
}

func TestClientCheck(t *testing.T) {
	fake := &fakeHealth{status: healthpb.HealthCheckResponse_NOT_SERVING}
	c := &Client{client: fake}
	defer c.Close()

	status, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "NOT_SERVING", status)
	assert.Equal(t, Service, fake.asked)

	fake.err = errors.New("unavailable")
	_, err = c.Check(context.Background())
	assert.ErrorContains(t, err, "health check")
}

func TestToStruct(t *testing.T) {
	snap := state.NewSnapshot(state.Defaults()).With(state.Update{
		state.CurrentState: state.XRPaused,
		state.World:        &struct{}{},
	})
	st, err := ToStruct(snap)
	require.NoError(t, err)

	fields := st.GetFields()
	assert.Equal(t, "XR_PAUSED", fields["currentState"].GetStringValue())
	assert.True(t, fields["world"].GetBoolValue())
	assert.InDelta(t, 0.6, fields["musicVolume"].GetNumberValue(), 1e-9)
	_, isNull := fields["transcript"].GetKind().(*structpb.Value_NullValue)
	assert.True(t, isNull, "nil fields become null")

	out, err := MarshalJSON(snap)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "XR_PAUSED", decoded["currentState"])
	assert.Equal(t, "voice", decoded["inputMode"])
}
