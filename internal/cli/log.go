// Package cli implements the oreflow command-line interface.
//
// This package provides commands for solving ore maps into machine and belt
// layouts, inspecting the model a map produces, browsing a solved layout
// interactively, serving the solver over HTTP, and managing the result cache
// and run history. The CLI is built using cobra and logs via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - solve: Solve a map and print or write the layout
//   - model: Build the model only and print its size
//   - view: Solve a map and open the interactive viewer
//   - serve: Run the HTTP API
//   - history: List or prune recorded runs
//   - cache: Manage the result cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
//
// # Configuration
//
// Settings come from --config, else $XDG_CONFIG_HOME/oreflow/config.toml when
// it exists, else built-in defaults. Flags override the file.
//
// # Example
//
//	import "github.com/matzehuels/oreflow/internal/cli"
//
//	func main() {
//	    c := cli.New(os.Stderr, cli.LogInfo)
//	    err := c.RootCommand().ExecuteContext(ctx)
//	    os.Exit(cli.ExitCode(err))
//	}
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger returns a logger that stamps each line with the wall-clock time
// to the hundredth of a second, as in "14:32:01.45 INFO Solved 3x2 map".
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
	})
}

// stageTimer logs how long one CLI step took.
type stageTimer struct {
	logger *log.Logger
	start  time.Time
}

func startStage(l *log.Logger) stageTimer {
	return stageTimer{logger: l, start: time.Now()}
}

// done logs the formatted message with the elapsed time appended, as in
// "Solved 3x2 map: optimal (412ms)".
func (s stageTimer) done(format string, args ...any) {
	elapsed := time.Since(s.start).Round(time.Millisecond)
	s.logger.Infof(format+" (%s)", append(args, elapsed)...)
}

type loggerKey struct{}

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// loggerFromContext returns the logger the root command attached. Code
// reached without one, such as tests calling helpers directly, gets
// log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
