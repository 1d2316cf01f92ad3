// Package formatting renders panelsync's debug and configuration data for
// the CLI as rounded tables, JSON or YAML.
package formatting

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"sigs.k8s.io/yaml"

	"panelsync/internal/config"
	"panelsync/internal/eventbus"
	"panelsync/internal/viewsync"
	pkgstrings "panelsync/pkg/strings"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use table, json or yaml)", s)
	}
}

// Encode writes v as JSON or YAML. YAML keys follow the JSON tags.
func Encode(w io.Writer, format OutputFormat, v interface{}) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(v, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	case FormatYAML:
		data, err = yaml.Marshal(v)
	default:
		return fmt.Errorf("format %q cannot encode data", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	_, err = w.Write(data)
	return err
}

// newTable creates a new table with standard styling
func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func header(cols ...string) table.Row {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = text.FgHiCyan.Sprint(c)
	}
	return row
}

// StatsTable renders one row per target with its metrics, dirty
// properties and throttle state. syncs, when non-nil, adds panel sync
// counts.
func StatsTable(w io.Writer, stats viewsync.Stats, syncs map[string]int) {
	t := newTable(w)
	t.SetTitle("Scheduler %s (%s, %s)", shortID(stats.ID), stats.State, stats.Phase)
	t.AppendHeader(header("TARGET", "MARKS", "DISPATCHES", "FAILURES", "DEFERRALS", "RETRIES", "SYNCS", "DIRTY", "STATE"))

	perTarget := make(map[string]viewsync.TargetMetricsView, len(stats.Metrics.PerTarget))
	for _, v := range stats.Metrics.PerTarget {
		perTarget[v.Target] = v
	}

	names := make([]string, 0, len(stats.Dirty))
	for name := range stats.Dirty {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := perTarget[name]
		syncCount := "-"
		if syncs != nil {
			syncCount = fmt.Sprint(syncs[name])
		}
		t.AppendRow(table.Row{
			name, m.Marks, m.Dispatches, m.HandlerFailures, m.Deferrals, m.Retries,
			syncCount, strings.Join(dirtyProperties(stats.Dirty[name]), ","),
			targetState(name, stats),
		})
	}

	t.AppendFooter(table.Row{
		"TOTAL", stats.Metrics.TotalMarks, stats.Metrics.TotalDispatches,
		stats.Metrics.TotalHandlerFailures, stats.Metrics.TotalDeferrals,
		stats.Metrics.TotalRetries, "", "",
		fmt.Sprintf("coalesced %.0f%%", stats.Metrics.CoalescingRatio*100),
	})
	t.Render()
}

func targetState(name string, stats viewsync.Stats) string {
	state := []string{}
	for _, p := range stats.Pending {
		if p == name {
			state = append(state, text.FgYellow.Sprint("pending"))
			break
		}
	}
	for _, b := range stats.Blocked {
		if b == name {
			state = append(state, text.FgRed.Sprint("throttled"))
			break
		}
	}
	if len(state) == 0 {
		return text.FgGreen.Sprint("idle")
	}
	return strings.Join(state, " ")
}

func dirtyProperties(row map[string]bool) []string {
	out := []string{}
	for p, dirty := range row {
		if dirty {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// payloadCell renders an event payload as compact one-line JSON, falling
// back to %v for values JSON cannot encode.
func payloadCell(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// TargetsTable renders the configured targets with their effective
// throttle intervals.
func TargetsTable(w io.Writer, cfg config.PanelsyncConfig) {
	t := newTable(w)
	t.SetTitle("Targets")
	t.AppendHeader(header("TARGET", "INTERVAL", "PROPERTIES"))
	for _, target := range cfg.Targets {
		interval := target.Interval
		suffix := ""
		if interval == 0 {
			interval = cfg.Scheduler.DefaultInterval
			suffix = " (default)"
		}
		t.AppendRow(table.Row{target.Name, interval.String() + suffix, strings.Join(target.Properties, ", ")})
	}
	t.Render()
}

// BindingsTable renders one row per event and marked target.
func BindingsTable(w io.Writer, cfg config.PanelsyncConfig) {
	t := newTable(w)
	t.SetTitle("Bindings")
	t.AppendHeader(header("EVENT", "TARGET", "PROPERTIES"))
	for _, b := range cfg.Bindings {
		for _, m := range b.Marks {
			t.AppendRow(table.Row{b.Event, m.Target, strings.Join(m.Properties, ", ")})
		}
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, AutoMerge: true}})
	t.Render()
}

// HistoryTable renders recorded bus emissions, oldest first.
func HistoryTable(w io.Writer, history []eventbus.Envelope) {
	if len(history) == 0 {
		fmt.Fprintf(w, "%s\n", text.FgYellow.Sprint("No events recorded"))
		return
	}
	t := newTable(w)
	t.AppendHeader(header("TIME", "EVENT", "ID", "PAYLOAD"))
	for _, env := range history {
		payload := "-"
		if env.Payload != nil {
			payload = pkgstrings.Truncate(payloadCell(env.Payload), pkgstrings.DefaultMaxLen)
		}
		t.AppendRow(table.Row{env.Time.Format(time.TimeOnly), env.Event, shortID(env.ID), payload})
	}
	t.Render()
}
