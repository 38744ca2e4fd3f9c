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
	dbPath := flag.String("db", "", "path to a journal database (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	rulesPath := flag.String("rules", "", "YAML file of extra panel rules")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/nanauts.db [--rules extra.yaml]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json [--rules extra.yaml]")
		os.Exit(2)
	}

	table, err := loadTable(*rulesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load rules: %v\n", err)
		os.Exit(2)
	}

	var f *replay.Fixture
	if *fixturePath != "" {
		f, err = replay.LoadFixture(*fixturePath)
	} else {
		f, err = fromDB(*dbPath, table)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	os.Exit(runFixture(f, table))
}

func loadTable(path string) (*rules.Table, error) {
	if path == "" {
		return rules.PanelTable()
	}
	extra, err := rules.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return rules.PanelTable(extra...)
}

// #endregion main

// #region db-extract

// fromDB turns the journal's full history into an in-memory fixture. Its
// expectations come from the same table, so a divergence here means the
// listener disagrees with a direct table evaluation.
func fromDB(dbPath string, table *rules.Table) (*replay.Fixture, error) {
	j, err := journal.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	records, err := j.History()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return replay.FromJournal(dbPath, records, table)
}

// #endregion db-extract

// #region output

// runFixture replays f, prints a comparison table and returns the exit code.
func runFixture(f *replay.Fixture, table *rules.Table) int {
	summary, results, err := replay.Run(f, table)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	fmt.Printf("%-12s| %-20s| %-22s| %-22s| %s\n", "Step", "Phase", "Expected", "Replayed", "Match")
	fmt.Printf("%-12s+%-20s+%-22s+%-22s+%s\n",
		"------------", "---------------------", "-----------------------", "-----------------------", "------")

	for i, r := range results {
		exp := f.Steps[i].ExpectedPanel
		match := "OK"
		if exp != "" && exp != r.Panel {
			match = "DIFF"
		}
		if exp == "" {
			exp = "—"
		}
		fmt.Printf("%-12s| %-20s| %-22s| %-22s| %s\n", shortID(r.StepID), r.Phase, exp, r.Panel, match)
	}

	fmt.Printf("\nSummary: %d steps, %d panel changes, %d mismatches\n",
		summary.TotalSteps, summary.PanelChanges, len(summary.Mismatches))
	for _, m := range summary.Mismatches {
		fmt.Printf("  %s\n", m)
	}
	fmt.Printf("Final phase: %s\n", summary.FinalSnapshot.Phase())

	if len(summary.Mismatches) > 0 {
		return 1
	}
	return 0
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion output
