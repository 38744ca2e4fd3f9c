package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

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

// errQuit ends the read loop.
var errQuit = errors.New("quit")

// #region shell

// shell executes one command line against a live session. It is only ever
// driven from the main loop, so store writes stay on one goroutine.
type shell struct {
	out       io.Writer
	store     *state.Store
	table     *rules.Table
	orch      *orchestrator.Orchestrator
	adapter   *session.Adapter
	robots    *behavior.Machine
	journal   *journal.Journal
	decisions *logging.DecisionLog
	health    *health.Client
	now       func() time.Time
}

type command struct {
	usage string
	run   func(sh *shell, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":       {"help", (*shell).help},
		"set":        {"set field=value [field=value ...]", (*shell).set},
		"get":        {"get [field]", (*shell).get},
		"visibility": {"visibility non-immersive|visible|hidden|visible-blurred", (*shell).visibility},
		"enter":      {"enter", (*shell).enter},
		"capture":    {"capture [ok|fail]", (*shell).capture},
		"surface":    {"surface", (*shell).surface},
		"complete":   {"complete <dialog>", (*shell).complete},
		"robot":      {"robot <id> <state> [force]", (*shell).robot},
		"done":       {"done <id>", (*shell).done},
		"robots":     {"robots", (*shell).listRobots},
		"panel":      {"panel", (*shell).panel},
		"tick":       {"tick [n]", (*shell).tick},
		"history":    {"history [n]", (*shell).history},
		"rollback":   {"rollback <version>", (*shell).rollback},
		"decisions":  {"decisions [n]", (*shell).recentDecisions},
		"presets":    {"presets", (*shell).presets},
		"health":     {"health", (*shell).checkHealth},
		"quit":       {"quit", func(*shell, []string) error { return errQuit }},
	}
	commands["exit"] = commands["quit"]
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// exec runs one line. Blank lines are ignored.
func (sh *shell) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, ok := commands[fields[0]]
	if !ok {
		return fmt.Errorf("unknown command %q (try help)", fields[0])
	}
	return cmd.run(sh, fields[1:])
}

func (sh *shell) help([]string) error {
	for _, name := range commandNames() {
		if name == "exit" {
			continue
		}
		fmt.Fprintf(sh.out, "  %s\n", commands[name].usage)
	}
	return nil
}

// #endregion shell

// #region state-commands

// parseAssignments turns field=value pairs into an update. Values are read
// as YAML scalars, so true, 0.5, null and phase names all work unquoted.
func parseAssignments(args []string) (state.Update, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("usage: set field=value")
	}
	u := make(state.Update, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("bad assignment %q", arg)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		cv, err := state.Coerce(state.Field(name), v)
		if err != nil {
			return nil, err
		}
		u[state.Field(name)] = cv
	}
	return u, nil
}

func (sh *shell) set(args []string) error {
	u, err := parseAssignments(args)
	if err != nil {
		return err
	}
	sh.store.Set(u)
	return nil
}

func (sh *shell) get(args []string) error {
	snap := sh.store.Get()
	if len(args) == 1 {
		v, ok := snap.Lookup(args[0])
		if !ok {
			return fmt.Errorf("field %s is not set", args[0])
		}
		if p, ok := v.(state.Phase); ok {
			v = p.String()
		}
		fmt.Fprintf(sh.out, "%s = %v\n", args[0], v)
		return nil
	}
	data, err := health.MarshalJSON(snap)
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, string(data))
	return nil
}

func (sh *shell) panel([]string) error {
	snap := sh.store.Get()
	if sh.orch.Panels != nil {
		fmt.Fprintf(sh.out, "active: %s\n", sh.orch.Panels.Active())
	}
	for _, r := range sh.table.Matching(snap, nil) {
		fmt.Fprintf(sh.out, "  %4d  %-22s %s\n", r.Priority, r.ID, r.Criteria)
	}
	return nil
}

func (sh *shell) presets([]string) error {
	applied := "no"
	if sh.store.OverlayApplied() {
		applied = "yes"
	}
	fmt.Fprintf(sh.out, "overlay applied: %s\n", applied)
	for _, name := range debugpreset.Names() {
		fmt.Fprintf(sh.out, "  ?%s=%s\n", debugpreset.Param, name)
	}
	return nil
}

// healthTimeout bounds one health command round trip.
const healthTimeout = 2 * time.Second

func (sh *shell) checkHealth([]string) error {
	if sh.health == nil {
		return errors.New("health service is off (start with -health addr)")
	}
	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()
	status, err := sh.health.Check(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "%s: %s\n", health.Service, status)
	return nil
}

// #endregion state-commands

// #region session-commands

func (sh *shell) visibility(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", commands["visibility"].usage)
	}
	v, err := session.ParseVisibility(args[0])
	if err != nil {
		return err
	}
	if !sh.adapter.HandleVisibility(v) {
		fmt.Fprintln(sh.out, "no change")
	}
	return nil
}

func (sh *shell) enter([]string) error {
	if !sh.adapter.EnterXR() {
		fmt.Fprintln(sh.out, "already in XR")
	}
	return nil
}

func (sh *shell) capture(args []string) error {
	fail := len(args) == 1 && args[0] == "fail"
	sh.adapter.RunRoomCapture(context.Background(), func(context.Context) error {
		if fail {
			return errors.New("capture declined")
		}
		return nil
	})
	return nil
}

func (sh *shell) surface([]string) error {
	sh.adapter.DetectSurface()
	return nil
}

func (sh *shell) complete(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", commands["complete"].usage)
	}
	if sh.orch.Dialogs == nil {
		return fmt.Errorf("dialogs are not wired")
	}
	return sh.orch.Dialogs.Complete(args[0])
}

func (sh *shell) tick(args []string) error {
	n := 1
	if len(args) == 1 {
		var err error
		if n, err = strconv.Atoi(args[0]); err != nil || n < 1 {
			return fmt.Errorf("bad tick count %q", args[0])
		}
	}
	for i := 0; i < n; i++ {
		for _, id := range sh.adapter.Tick(sh.now()) {
			fmt.Fprintf(sh.out, "  robot %d completed, now %s\n", id, sh.robots.State(id))
		}
	}
	return nil
}

// #endregion session-commands

// #region robot-commands

func parseActor(s string) (behavior.ActorID, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad robot id %q", s)
	}
	return behavior.ActorID(n), nil
}

func (sh *shell) robot(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("usage: %s", commands["robot"].usage)
	}
	id, err := parseActor(args[0])
	if err != nil {
		return err
	}
	s, err := behavior.ParseState(args[1])
	if err != nil {
		return err
	}
	if len(args) == 3 && args[2] == "force" {
		sh.robots.ForceState(id, s, nil)
		return nil
	}
	if !sh.robots.SetState(id, s, nil) {
		fmt.Fprintf(sh.out, "robot %d refused %s (in %s)\n", id, s, sh.robots.State(id))
	}
	return nil
}

func (sh *shell) done(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", commands["done"].usage)
	}
	id, err := parseActor(args[0])
	if err != nil {
		return err
	}
	if !sh.robots.OnStateComplete(id) {
		return fmt.Errorf("robot %d is in %s, which does not complete", id, sh.robots.State(id))
	}
	fmt.Fprintf(sh.out, "robot %d now %s\n", id, sh.robots.State(id))
	return nil
}

func (sh *shell) listRobots([]string) error {
	for _, id := range sh.robots.Actors() {
		managers := make([]string, 0, 4)
		for _, m := range sh.robots.ActiveManagers(id) {
			managers = append(managers, string(m))
		}
		fmt.Fprintf(sh.out, "  %3d  %-14s %8s  %s\n",
			id, sh.robots.State(id), sh.robots.Elapsed(id).Round(time.Millisecond), strings.Join(managers, ","))
	}
	return nil
}

// #endregion robot-commands

// #region journal-commands

func countArg(args []string, def int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("bad count %q", args[0])
	}
	return n, nil
}

func (sh *shell) history(args []string) error {
	n, err := countArg(args, 10)
	if err != nil {
		return err
	}
	records, err := sh.journal.List(n)
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Fprintf(sh.out, "  %-8s %-18s %s\n", shortID(r.VersionID), r.Phase, strings.Join(updateKeys(r.Update), ","))
	}
	return nil
}

func (sh *shell) rollback(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", commands["rollback"].usage)
	}
	id, err := sh.resolveVersion(args[0])
	if err != nil {
		return err
	}
	return sh.journal.Restore(sh.store, id)
}

// resolveVersion accepts a full version id or a unique prefix from the
// recent history.
func (sh *shell) resolveVersion(prefix string) (string, error) {
	records, err := sh.journal.History()
	if err != nil {
		return "", err
	}
	var match string
	for _, r := range records {
		if strings.HasPrefix(r.VersionID, prefix) {
			if match != "" {
				return "", fmt.Errorf("version prefix %q is ambiguous", prefix)
			}
			match = r.VersionID
		}
	}
	if match == "" {
		return "", fmt.Errorf("version %s: %w", prefix, journal.ErrVersionNotFound)
	}
	return match, nil
}

func (sh *shell) recentDecisions(args []string) error {
	n, err := countArg(args, 10)
	if err != nil {
		return err
	}
	entries, err := sh.decisions.Recent(n)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(sh.out, "  %-8s %-12s %-7s %-22s %s\n",
			shortID(e.VersionID), e.Component, e.Action, e.Target, e.Reason)
	}
	return nil
}

func updateKeys(u state.Update) []string {
	keys := make([]string, 0, len(u))
	for _, f := range u.Keys() {
		keys = append(keys, string(f))
	}
	return keys
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion journal-commands
