package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jameskane05/nanauts-sub000/internal/journal"
	"github.com/jameskane05/nanauts-sub000/internal/replay"
	"github.com/jameskane05/nanauts-sub000/internal/rules"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the journal database")
	last := flag.Int("last", 0, "export only the N most recent versions (0 = all)")
	outPath := flag.String("out", "", "output fixture JSON path")
	debugQuery := flag.String("debug", "", "debug query the session was started with")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --out path/to/fixture.json [--last N] [--debug ?gameState=...]")
		os.Exit(2)
	}

	if err := run(*dbPath, *last, *debugQuery, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath string, last int, debugQuery, outPath string) error {
	j, err := journal.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	records, err := j.History()
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	// keep one extra record: the oldest kept one becomes the start state
	if last > 0 && len(records) > last+1 {
		records = records[len(records)-last-1:]
	}
	if len(records) == 0 {
		return fmt.Errorf("no versions found in %s", dbPath)
	}

	fmt.Printf("Found %d versions\n", len(records))

	table, err := rules.PanelTable()
	if err != nil {
		return err
	}
	f, err := replay.FromJournal(
		fmt.Sprintf("Session export: %d versions from %s", len(records), dbPath), records, table)
	if err != nil {
		return err
	}
	f.DebugQuery = debugQuery

	return writeFixture(f, outPath)
}

// #endregion extract

// #region output

func writeFixture(f *replay.Fixture, outPath string) error {
	if err := replay.WriteFixture(outPath, f); err != nil {
		return err
	}
	fmt.Printf("Wrote fixture to %s (%d steps)\n", outPath, len(f.Steps))
	return nil
}

// #endregion output
