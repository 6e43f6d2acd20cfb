// Package mkvlog wires up structured logging the way
// USA-RedDragon-DMRHub/internal/cmd/root.go does: log/slog with
// github.com/lmittmann/tint as the colorized console handler, installed
// via slog.SetDefault so every package can just call slog.Info/Warn/Error
// without threading a logger through every constructor.
package mkvlog

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Options configures the process-wide logger.
type Options struct {
	// Level is the minimum severity to emit (default slog.LevelInfo).
	Level slog.Level
	// Writer is where log lines go (default os.Stderr, matching mkvmerge's
	// convention of keeping stdout clean for progress/output).
	Writer io.Writer
	// NoColor disables ANSI color codes (e.g. when stderr is not a TTY).
	NoColor bool
}

// Init installs the process-wide slog.Default logger per opts, following
// the tint.NewHandler + slog.SetDefault pattern from the DMRHub teacher
// reference.
func Init(opts Options) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	logger := slog.New(tint.NewHandler(w, &tint.Options{
		Level:      opts.Level,
		TimeFormat: time.Kitchen,
		NoColor:    opts.NoColor,
	}))
	slog.SetDefault(logger)
}

// warningCount tracks how many Warning-kind errors have been logged during
// the current run, surfaced at process exit the way mkvmerge reports
// "N warning(s), 0 error(s)" style summaries.
var warningCount int

// Warning logs msg at warning level and increments the run's warning
// counter, used by the §7 Warning propagation path (log and continue).
func Warning(msg string, args ...any) {
	warningCount++
	slog.Warn(msg, args...)
}

// WarningCount returns how many warnings have been logged so far.
func WarningCount() int { return warningCount }

// ResetWarningCount clears the counter; used between independent runs in
// the same process (primarily by tests).
func ResetWarningCount() { warningCount = 0 }
