package observability

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// ConsoleFormatter renders Events as short, human-readable lines, in the
// same color-coded style datalog's own annotation OutputFormatter uses
// for query execution events.
type ConsoleFormatter struct {
	useColor bool
	writer   io.Writer
}

// NewConsoleFormatter returns a formatter writing to w, auto-detecting
// color support the same way the query engine's formatter does: only
// stdout/stderr are considered color-capable.
func NewConsoleFormatter(w io.Writer) *ConsoleFormatter {
	if w == nil {
		w = os.Stdout
	}
	useColor := false
	if f, ok := w.(*os.File); ok {
		fd := f.Fd()
		useColor = fd == uintptr(1) || fd == uintptr(2)
	}
	return &ConsoleFormatter{useColor: useColor, writer: w}
}

// Format converts one event into a single display line.
func (f *ConsoleFormatter) Format(event Event) string {
	switch event.Name {
	case QueryRegistered:
		queryId := event.Data["query_id"]
		expected := event.Data["expected"]
		return fmt.Sprintf("%s query %v registered with %v expected filters",
			f.colorize("+", color.FgGreen), queryId, expected)

	case QueryRemoved:
		return fmt.Sprintf("%s query %v removed", f.colorize("-", color.FgRed), event.Data["query_id"])

	case CollectorTick:
		return fmt.Sprintf("%s tick over %v active queries",
			f.colorize("~", color.FgCyan), event.Data["query_count"])

	case FilterFinalized:
		return fmt.Sprintf("%s query %v filter %v finalized: %v",
			f.colorize("✓", color.FgGreen), event.Data["query_id"], event.Data["filter_id"], event.Data["domain"])

	case FilterSignalFire:
		return fmt.Sprintf("%s query %v filter %v signaled ready",
			f.colorize("!", color.FgYellow), event.Data["query_id"], event.Data["filter_id"])

	case SupplierFailed:
		return fmt.Sprintf("%s query %v supplier failed: %v",
			f.colorize("✗", color.FgRed), event.Data["query_id"], event.Data["error"])

	default:
		return fmt.Sprintf("%s %v", event.Name, event.Data)
	}
}

func (f *ConsoleFormatter) colorize(text string, attr color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attr).Sprint(text)
}

// ConsoleHandler returns a Handler that prints every event to os.Stdout as
// it happens.
func ConsoleHandler() Handler {
	formatter := NewConsoleFormatter(os.Stdout)
	return func(event Event) {
		fmt.Fprintln(formatter.writer, formatter.Format(event))
	}
}
