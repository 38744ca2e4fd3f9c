package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jameskane05/nanauts-sub000/internal/health"
	"github.com/jameskane05/nanauts-sub000/internal/journal"
	"github.com/jameskane05/nanauts-sub000/internal/logging"
	"github.com/jameskane05/nanauts-sub000/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the journal database")
	last := flag.Int("last", 20, "show N most recent versions")
	version := flag.String("version", "", "show single version detail")
	decisions := flag.Int("decisions", 0, "show N most recent listener decisions instead of versions")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/nanauts.db [--last N] [--version id] [--decisions N] [--json]")
		os.Exit(2)
	}

	j, err := journal.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer j.Close()

	switch {
	case *version != "":
		err = runDetailMode(j, *version, *jsonOut)
	case *decisions > 0:
		err = runDecisionMode(j, *decisions, *jsonOut)
	default:
		err = runListMode(j, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	VersionID string   `json:"version_id"`
	ParentID  string   `json:"parent_id,omitempty"`
	Phase     string   `json:"phase"`
	Changed   []string `json:"changed"`
	CreatedAt string   `json:"created_at"`
}

func runListMode(j *journal.Journal, last int, jsonOut bool) error {
	records, err := j.List(last)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "no versions found")
		return nil
	}

	// List returns DESC, reverse for chronological
	rows := make([]listRow, len(records))
	for i, r := range records {
		rows[len(records)-1-i] = listRow{
			VersionID: r.VersionID,
			ParentID:  r.ParentID,
			Phase:     r.Phase.String(),
			Changed:   changedFields(r.Update),
			CreatedAt: r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%s  %s  %s  %s  %s\n",
		cell("Version", 8), cell("Parent", 8), cell("Phase", 18), cell("Time", 20), "Changed")
	fmt.Printf("%s+-%s+-%s+-%s+-%s\n",
		strings.Repeat("-", 9), strings.Repeat("-", 9), strings.Repeat("-", 19), strings.Repeat("-", 21), strings.Repeat("-", 20))
	for _, r := range rows {
		fmt.Printf("%s  %s  %s  %s  %s\n",
			cell(shortID(r.VersionID), 8), cell(valueOr(shortID(r.ParentID), "—"), 8),
			cell(r.Phase, 18), cell(r.CreatedAt, 20), strings.Join(r.Changed, ","))
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	VersionID string                  `json:"version_id"`
	ParentID  string                  `json:"parent_id"`
	CreatedAt string                  `json:"created_at"`
	Phase     string                  `json:"phase"`
	Changed   []string                `json:"changed"`
	Snapshot  json.RawMessage         `json:"snapshot"`
	Decisions []logging.DecisionEntry `json:"decisions"`
}

func runDetailMode(j *journal.Journal, versionID string, jsonOut bool) error {
	rec, err := j.Version(versionID)
	if err != nil {
		return err
	}
	snap, err := health.MarshalJSON(rec.Snapshot)
	if err != nil {
		return err
	}
	entries, err := logging.DecisionsForVersion(j.DB(), rec.VersionID)
	if err != nil {
		return err
	}

	out := detailOutput{
		VersionID: rec.VersionID,
		ParentID:  rec.ParentID,
		CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Phase:     rec.Phase.String(),
		Changed:   changedFields(rec.Update),
		Snapshot:  snap,
		Decisions: entries,
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Version:  %s\n", out.VersionID)
	fmt.Printf("Parent:   %s\n", valueOr(out.ParentID, "—"))
	fmt.Printf("Created:  %s\n", out.CreatedAt)
	fmt.Printf("Phase:    %s\n", out.Phase)
	fmt.Printf("Changed:  %s\n", strings.Join(out.Changed, ", "))

	fmt.Printf("\nSnapshot:\n%s\n", snap)

	if len(entries) > 0 {
		fmt.Printf("\nDecisions:\n")
		printDecisions(entries)
	}
	return nil
}

// #endregion detail-mode

// #region decision-mode

func runDecisionMode(j *journal.Journal, n int, jsonOut bool) error {
	entries, err := logging.RecentDecisions(j.DB(), n)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no decisions found")
		return nil
	}
	printDecisions(entries)
	return nil
}

func printDecisions(entries []logging.DecisionEntry) {
	fmt.Printf("  %s  %s  %s  %s  %s\n",
		cell("Version", 8), cell("Component", 10), cell("Action", 8), cell("Target", 24), "Reason")
	for _, e := range entries {
		fmt.Printf("  %s  %s  %s  %s  %s\n",
			cell(shortID(e.VersionID), 8), cell(e.Component, 10), cell(e.Action, 8), cell(e.Target, 24), e.Reason)
	}
}

// #endregion decision-mode

// #region output

// cell pads or truncates s to w terminal columns. Rule ids and reasons come
// from user YAML and may hold wide characters.
func cell(s string, w int) string {
	return runewidth.FillRight(runewidth.Truncate(s, w, "…"), w)
}

func changedFields(u state.Update) []string {
	out := make([]string, 0, len(u))
	for _, f := range u.Keys() {
		out = append(out, string(f))
	}
	return out
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// #endregion output
