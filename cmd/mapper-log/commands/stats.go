package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/mapper-protocol/mapper-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Peers             map[string]*PeerStats
	Updates           int
	Errors            int
	Start, End        time.Time
}

// PeerStats holds the traffic exchanged with one remote device.
type PeerStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Batches   int
	Updates   int
}

// Collect aggregates the events of reader.
func Collect(reader *log.Reader) (*Stats, error) {
	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Peers:             make(map[string]*PeerStats),
	}

	err := each(reader, func(event log.Event) error {
		stats.TotalEvents++
		stats.EventsByLayer[event.Layer]++
		stats.EventsByCategory[event.Category]++
		stats.EventsByDirection[event.Direction]++

		if stats.Start.IsZero() || event.Timestamp.Before(stats.Start) {
			stats.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.End) {
			stats.End = event.Timestamp
		}
		if event.Error != nil {
			stats.Errors++
		}
		if event.Message != nil {
			stats.Updates += event.Message.Updates
		}

		if event.Peer == "" {
			return nil
		}
		p, ok := stats.Peers[event.Peer]
		if !ok {
			p = &PeerStats{FirstSeen: event.Timestamp}
			stats.Peers[event.Peer] = p
		}
		p.Events++
		if event.Timestamp.After(p.LastSeen) {
			p.LastSeen = event.Timestamp
		}
		if event.Message != nil && event.Message.Updates > 0 {
			p.Batches++
			p.Updates += event.Message.Updates
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats, err := Collect(reader)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n", stats.Start.Format(time.RFC3339), stats.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.End.Sub(stats.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintf(w, "Updates:      %d\n", stats.Updates)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, l := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerDevice} {
		if n := stats.EventsByLayer[l]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", l.String()+":", n)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, c := range []log.Category{log.CategoryMessage, log.CategoryPresence, log.CategoryState, log.CategoryInstance, log.CategoryError} {
		if n := stats.EventsByCategory[c]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", c.String()+":", n)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, d := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if n := stats.EventsByDirection[d]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", d.String()+":", n)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Peers: %d\n", len(stats.Peers))
	names := make([]string, 0, len(stats.Peers))
	for name := range stats.Peers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return stats.Peers[names[i]].FirstSeen.Before(stats.Peers[names[j]].FirstSeen)
	})
	for _, name := range names {
		p := stats.Peers[name]
		fmt.Fprintf(w, "  %s: %d events, %d batches, %d updates, span %s\n",
			name, p.Events, p.Batches, p.Updates, p.LastSeen.Sub(p.FirstSeen).Round(time.Millisecond))
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
