package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/jameskane05/nanauts-sub000/internal/behavior"
	"github.com/jameskane05/nanauts-sub000/internal/config"
	"github.com/jameskane05/nanauts-sub000/internal/debugpreset"
	"github.com/jameskane05/nanauts-sub000/internal/health"
	"github.com/jameskane05/nanauts-sub000/internal/journal"
	"github.com/jameskane05/nanauts-sub000/internal/logging"
	"github.com/jameskane05/nanauts-sub000/internal/orchestrator"
	"github.com/jameskane05/nanauts-sub000/internal/rules"
	"github.com/jameskane05/nanauts-sub000/internal/session"
	"github.com/jameskane05/nanauts-sub000/internal/state"
)

// robotCount is how many robots the simulated spawner creates.
const robotCount = 6

// #region main
func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	flag.StringVar(&cfg.JournalPath, "db", cfg.JournalPath, "journal database path")
	flag.StringVar(&cfg.DebugQuery, "debug", cfg.DebugQuery, "debug query, e.g. ?gameState=playing")
	flag.StringVar(&cfg.RulesFile, "rules", cfg.RulesFile, "YAML file of extra panel rules")
	flag.StringVar(&cfg.HealthAddr, "health", cfg.HealthAddr, "address for the gRPC health service")
	flag.Parse()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		log.Fatalf("readline: %v", err)
	}
	defer rl.Close()

	logger, err := logging.New(cfg.LogLevel, rl.Stderr())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		log.Fatalf("failed to open journal: %v", err)
	}
	defer j.Close()

	var extra []rules.Rule
	if cfg.RulesFile != "" {
		if extra, err = rules.LoadFile(cfg.RulesFile); err != nil {
			log.Fatalf("rules: %v", err)
		}
	}
	table, err := rules.PanelTable(extra...)
	if err != nil {
		log.Fatalf("rules: %v", err)
	}

	store := state.New(
		state.WithLogger(logger),
		state.WithDebugOverlay(debugpreset.Parse(cfg.DebugQuery, logger)),
	)
	store.Subscribe(state.EventStateChanged, j.Recorder(logger))
	if _, err := j.Commit(store.Get().Fields(), store.Get()); err != nil {
		log.Fatalf("journal: %v", err)
	}

	decisions := logging.NewDecisionLog(j.DB(), func() string {
		rec, err := j.Current()
		if err != nil {
			return ""
		}
		return rec.VersionID
	}, logger)

	out := console{w: rl.Stdout()}
	orch := orchestrator.New(store, table, orchestrator.Hosts{
		Panels: panelHost{out},
		Music:  musicHost{out},
		Dialog: dialogHost{out},
		SFX:    sfxHost{out},
	}, orchestrator.WithLogger(logger), orchestrator.WithRecorder(decisions))
	defer orch.Close()

	reporter := health.NewReporter(logger)
	store.Subscribe(state.EventStateChanged, reporter.OnStateChanged)
	reporter.OnStateChanged(store.Get(), state.Snapshot{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.HealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.HealthAddr)
		if err != nil {
			log.Fatalf("health listen %s: %v", cfg.HealthAddr, err)
		}
		go func() {
			if err := reporter.Serve(ctx, lis); err != nil {
				logger.Error("[HEALTH] stopped", "error", err)
			}
		}()
	}
	var checker *health.Client
	if cfg.HealthAddr != "" {
		if checker, err = health.Dial(cfg.HealthAddr); err != nil {
			log.Fatalf("health dial %s: %v", cfg.HealthAddr, err)
		}
		defer checker.Close()
	}

	robots := behavior.NewMachine(behavior.WithLogger(logger))
	for id := behavior.ActorID(0); id < robotCount; id++ {
		robots.SetState(id, behavior.Idle, nil)
	}
	adapter := session.NewAdapter(store,
		session.WithLogger(logger),
		session.WithBehavior(robots),
		session.WithSurfaceTimeout(cfg.SurfaceTimeout),
	)

	sh := &shell{
		out:       rl.Stdout(),
		store:     store,
		table:     table,
		orch:      orch,
		adapter:   adapter,
		robots:    robots,
		journal:   j,
		decisions: decisions,
		health:    checker,
		now:       time.Now,
	}

	fmt.Fprintln(rl.Stdout(), "Nanauts session simulator ready.")
	fmt.Fprintf(rl.Stdout(), "  Journal: %s | Phase: %s | Health: %s\n",
		cfg.JournalPath, store.Get().Phase(), valueOr(cfg.HealthAddr, "off"))
	fmt.Fprintln(rl.Stdout(), "Type a command (or 'help'):")

	run(rl.Readline, sh, cfg.TickInterval)
}

// #endregion main

// #region loop

// run reads lines on a separate goroutine and executes them, together with
// the frame tick, on this one.
func run(readLine func() (string, error), sh *shell, tickEvery time.Duration) {
	lines := make(chan string)
	ack := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		readLines(readLine, lines, ack)
	}()

	ticker := time.NewTicker(tickEvery)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			for _, id := range sh.adapter.Tick(now) {
				fmt.Fprintf(sh.out, "  robot %d completed, now %s\n", id, sh.robots.State(id))
			}
		case line := <-lines:
			err := sh.exec(strings.TrimSpace(line))
			if errors.Is(err, errQuit) {
				close(ack)
				<-done
				return
			}
			if err != nil {
				fmt.Fprintf(sh.out, "error: %v\n", err)
			}
			ack <- struct{}{}
		case <-done:
			return
		}
	}
}

// readLines hands each line to the loop and waits for it to be handled. A
// closed ack means the loop is gone, so no further line is read.
func readLines(readLine func() (string, error), lines chan<- string, ack <-chan struct{}) {
	for {
		line, err := readLine()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			return
		}
		lines <- line
		if _, ok := <-ack; !ok {
			return
		}
	}
}

func completer() readline.AutoCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(commands))
	for _, name := range commandNames() {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

// #endregion loop

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
