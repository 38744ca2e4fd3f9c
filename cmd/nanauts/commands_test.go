package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/jameskane05/nanauts-sub000/internal/behavior"
	"github.com/jameskane05/nanauts-sub000/internal/debugpreset"
	"github.com/jameskane05/nanauts-sub000/internal/health"
	"github.com/jameskane05/nanauts-sub000/internal/journal"
	"github.com/jameskane05/nanauts-sub000/internal/logging"
	"github.com/jameskane05/nanauts-sub000/internal/orchestrator"
	"github.com/jameskane05/nanauts-sub000/internal/rules"
	"github.com/jameskane05/nanauts-sub000/internal/session"
	"github.com/jameskane05/nanauts-sub000/internal/state"
)

func newShell(t *testing.T) (*shell, *bytes.Buffer) {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	var buf bytes.Buffer

	j, err := journal.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	store := state.New(state.WithLogger(quiet))
	store.Subscribe(state.EventStateChanged, j.Recorder(quiet))
	_, err = j.Commit(store.Get().Fields(), store.Get())
	require.NoError(t, err)

	decisions := logging.NewDecisionLog(j.DB(), func() string {
		rec, err := j.Current()
		if err != nil {
			return ""
		}
		return rec.VersionID
	}, quiet)

	out := console{w: &buf}
	table, err := rules.PanelTable()
	require.NoError(t, err)
	orch := orchestrator.New(store, table, orchestrator.Hosts{
		Panels: panelHost{out},
		Music:  musicHost{out},
		Dialog: dialogHost{out},
		SFX:    sfxHost{out},
	}, orchestrator.WithLogger(quiet), orchestrator.WithRecorder(decisions))
	t.Cleanup(orch.Close)

	robots := behavior.NewMachine(behavior.WithLogger(quiet))
	return &shell{
		out:       &buf,
		store:     store,
		table:     table,
		orch:      orch,
		adapter:   session.NewAdapter(store, session.WithLogger(quiet), session.WithBehavior(robots)),
		robots:    robots,
		journal:   j,
		decisions: decisions,
		now:       time.Now,
	}, &buf
}

func TestParseAssignments(t *testing.T) {
	u, err := parseAssignments([]string{"currentState=PLAYING", "musicVolume=0.5", "callIncoming=true", "lastDialogCompleted=null"})
	require.NoError(t, err)
	assert.Equal(t, state.Playing, u[state.CurrentState])
	assert.Equal(t, 0.5, u[state.MusicVolume])
	assert.Equal(t, true, u[state.CallIncoming])
	assert.Nil(t, u[state.LastDialogCompleted])

	u, err = parseAssignments([]string{"currentState=4"})
	require.NoError(t, err)
	assert.Equal(t, state.Phase(4), u[state.CurrentState])

	_, err = parseAssignments([]string{"callIncoming=maybe"})
	assert.Error(t, err)
	_, err = parseAssignments([]string{"noequals"})
	assert.Error(t, err)
	_, err = parseAssignments(nil)
	assert.Error(t, err)
}

func TestShellDrivesListeners(t *testing.T) {
	sh, buf := newShell(t)

	require.NoError(t, sh.exec("set currentState=XR_ACTIVE roomSetupRequired=true"))
	assert.Contains(t, buf.String(), "show    "+rules.PanelRoomSetupRequired)

	buf.Reset()
	require.NoError(t, sh.exec("capture"))
	assert.Contains(t, buf.String(), "show    "+rules.PanelRoomSetupProgress)
	assert.Contains(t, buf.String(), "show    "+rules.PanelWelcome)
	assert.False(t, sh.store.Get().Bool(state.RoomSetupRequired))

	buf.Reset()
	require.NoError(t, sh.exec("visibility hidden"))
	assert.Equal(t, state.XRPaused, sh.store.Get().Phase())
	require.NoError(t, sh.exec("visibility visible"))
	assert.Equal(t, state.XRActive, sh.store.Get().Phase())

	buf.Reset()
	require.NoError(t, sh.exec("decisions 20"))
	assert.Contains(t, buf.String(), "panels")
}

func TestShellRollback(t *testing.T) {
	sh, buf := newShell(t)

	require.NoError(t, sh.exec("set currentState=XR_ACTIVE"))
	rec, err := sh.journal.Current()
	require.NoError(t, err)
	require.NoError(t, sh.exec("set currentState=PLAYING introComplete=true"))

	require.NoError(t, sh.exec("rollback "+rec.VersionID[:8]))
	assert.Equal(t, state.XRActive, sh.store.Get().Phase())
	assert.False(t, sh.store.Get().Bool(state.IntroComplete))

	buf.Reset()
	require.NoError(t, sh.exec("history 2"))
	assert.Contains(t, buf.String(), "XR_ACTIVE")

	assert.ErrorIs(t, sh.exec("rollback ffffffff"), journal.ErrVersionNotFound)
}

func TestShellRobots(t *testing.T) {
	sh, buf := newShell(t)

	require.NoError(t, sh.exec("robot 1 wandering"))
	assert.Equal(t, behavior.Wandering, sh.robots.State(1))
	require.NoError(t, sh.exec("robot 1 panicking force"))
	assert.Equal(t, behavior.Panicking, sh.robots.State(1))

	buf.Reset()
	require.NoError(t, sh.exec("robots"))
	assert.Contains(t, buf.String(), "panicking")

	assert.Error(t, sh.exec("robot x idle"))
	assert.Error(t, sh.exec("robot 1 dancing"))
}

func TestShellErrors(t *testing.T) {
	sh, _ := newShell(t)

	assert.NoError(t, sh.exec("   "))
	assert.Error(t, sh.exec("fly"))
	assert.ErrorIs(t, sh.exec("quit"), errQuit)
	assert.ErrorIs(t, sh.exec("complete intro-greeting"), orchestrator.ErrNotPlaying)
	assert.Error(t, sh.exec("visibility sideways"))
}

func TestShellPresetsReportsOverlay(t *testing.T) {
	sh, buf := newShell(t)
	require.NoError(t, sh.exec("presets"))
	assert.Contains(t, buf.String(), "overlay applied: no")
	assert.Contains(t, buf.String(), "?"+debugpreset.Param+"=")

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	sh.store = state.New(state.WithLogger(quiet),
		state.WithDebugOverlay(debugpreset.Parse("gameState=skip-room-setup", quiet)))
	require.NoError(t, sh.exec("set currentState=XR_ACTIVE"))

	buf.Reset()
	require.NoError(t, sh.exec("presets"))
	assert.Contains(t, buf.String(), "overlay applied: yes")
}

func TestShellHealth(t *testing.T) {
	sh, buf := newShell(t)
	assert.ErrorContains(t, sh.exec("health"), "health service is off")

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	reporter := health.NewReporter(quiet)
	sh.store.Subscribe(state.EventStateChanged, reporter.OnStateChanged)
	reporter.OnStateChanged(sh.store.Get(), state.Snapshot{})

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reporter.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	c, err := health.Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	sh.health = c

	require.NoError(t, sh.exec("health"))
	assert.Contains(t, buf.String(), health.Service+": NOT_SERVING")

	require.NoError(t, sh.exec("set currentState=XR_ACTIVE"))
	buf.Reset()
	require.NoError(t, sh.exec("health"))
	assert.Contains(t, buf.String(), health.Service+": SERVING")
}

func TestReadLinesStopsWhenAckClosed(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	var calls atomic.Int32
	read := func() (string, error) {
		if calls.Add(1) == 1 {
			return "quit", nil
		}
		<-block
		return "", io.EOF
	}

	lines := make(chan string)
	ack := make(chan struct{})
	done := make(chan struct{})
	go func() {
		readLines(read, lines, ack)
		close(done)
	}()

	assert.Equal(t, "quit", <-lines)
	close(ack)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reader kept waiting after the loop quit")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunReturnsOnQuit(t *testing.T) {
	sh, _ := newShell(t)
	script := []string{"set currentState=XR_ACTIVE", "quit"}
	var calls atomic.Int32
	read := func() (string, error) {
		n := int(calls.Add(1))
		if n <= len(script) {
			return script[n-1], nil
		}
		return "", io.EOF
	}

	finished := make(chan struct{})
	go func() {
		run(read, sh, time.Hour)
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after quit")
	}
	assert.Equal(t, state.XRActive, sh.store.Get().Phase())
	assert.Equal(t, int32(2), calls.Load())
}
