package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mapper-protocol/mapper-go/pkg/log"
)

const timestampLayout = "2006-01-02T15:04:05.000000Z"

// RunView prints the events of path matching filter in human-readable form.
func RunView(path string, filter log.Filter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(w, event)
	}
}

// eventType names the payload carried by an event.
func eventType(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "Frame"
	case event.Message != nil:
		return event.Message.Type.String()
	case event.StateChange != nil:
		return "State"
	case event.Instance != nil:
		return "Instance"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// formatEvent writes a header line, the payload details and a blank line.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format(timestampLayout)
	fmt.Fprintf(w, "%s [%s] %-3s %s %s\n", ts, endpoints(event), event.Direction, event.Layer, eventType(event))

	switch {
	case event.Frame != nil:
		fmt.Fprintf(w, "  Size: %d bytes\n", event.Frame.Size)
		if len(event.Frame.Data) > 0 {
			fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(event.Frame.Data))
			if event.Frame.Truncated {
				fmt.Fprint(w, " (truncated)")
			}
			fmt.Fprintln(w)
		}
	case event.Message != nil:
		formatMessage(w, event.Message)
	case event.StateChange != nil:
		sc := event.StateChange
		fmt.Fprintf(w, "  Entity: %s\n", sc.Entity)
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
		if sc.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
		}
	case event.Instance != nil:
		fmt.Fprintf(w, "  %s %s#%d\n", event.Instance.Kind, event.Instance.Signal, event.Instance.Instance)
	case event.Error != nil:
		fmt.Fprintf(w, "  Layer: %s\n", event.Error.Layer)
		fmt.Fprintf(w, "  Message: %s\n", event.Error.Message)
		if event.Error.Context != "" {
			fmt.Fprintf(w, "  Context: %s\n", event.Error.Context)
		}
	}

	fmt.Fprintln(w)
}

// endpoints renders "device" or "device<->peer", falling back to the
// remote address when the peer name is unknown.
func endpoints(event log.Event) string {
	remote := event.Peer
	if remote == "" {
		remote = event.RemoteAddr
	}
	switch {
	case event.Device == "" && remote == "":
		return shortID(event.SessionID)
	case remote == "":
		return event.Device
	default:
		return event.Device + "<->" + remote
	}
}

func formatMessage(w io.Writer, msg *log.MessageEvent) {
	if msg.Source != "" {
		fmt.Fprintf(w, "  Source: %s\n", msg.Source)
	}
	if msg.Destination != "" {
		fmt.Fprintf(w, "  Destination: %s\n", msg.Destination)
	}
	if msg.Updates == 0 {
		return
	}
	fmt.Fprintf(w, "  Seq: %d  Updates: %d\n", msg.Seq, msg.Updates)
	if msg.Time != nil {
		fmt.Fprintf(w, "  Time: %s\n", msg.Time)
	}
	if len(msg.Signals) > 0 {
		fmt.Fprintf(w, "  Signals: %s\n", strings.Join(msg.Signals, ", "))
	}
}

// shortID returns the first 8 characters of a session token.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
