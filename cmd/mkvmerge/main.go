// Command mkvmerge assembles one or more input files into a single
// Matroska output, wiring CLI flags into mux.Config and mux.Mux per
// spec.md §4.7. Flag parsing itself follows
// USA-RedDragon-DMRHub/internal/cmd/root.go's cobra NewCommand/RunE shape;
// everything past flag assembly delegates to the mux/reader/packetizer
// packages.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nmaier/mkvengine/internal/mkverr"
	"github.com/nmaier/mkvengine/internal/mkvlog"
	"github.com/nmaier/mkvengine/mux"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var output string
	var title string
	var timecodeScale uint64
	var verbose bool

	cmd := &cobra.Command{
		Use:          "mkvmerge [flags] input...",
		Short:        "Mux one or more source files into a Matroska output",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			mkvlog.Init(mkvlog.Options{Level: level})

			if output == "" {
				return reportError(mkverr.New(mkverr.ConfigError, "missing required --output"))
			}

			cfg := mux.DefaultConfig()
			cfg.Title = title
			if timecodeScale != 0 {
				cfg.TimecodeScale = timecodeScale
			}

			return runMerge(args, output, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "", "output Matroska file (required)")
	flags.StringVar(&title, "title", "", "Segment title")
	flags.Uint64Var(&timecodeScale, "timecode-scale", 0, "override SegmentInfo TimecodeScale (default 1000000)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func runMerge(inputs []string, output string, cfg mux.Config) error {
	var trackInputs []mux.TrackInput
	var closers []func() error
	defer func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Error("closing input", "error", err)
			}
		}
	}()

	for _, path := range inputs {
		src, closeFn, err := openSource(path)
		if err != nil {
			return reportError(err)
		}
		closers = append(closers, closeFn)
		closers = append(closers, src.Close)

		for idx, t := range src.Tracks() {
			// Readers leave Track.Number unset (it has no meaning until a
			// track is placed into an output Segment); assign sequential
			// numbers across every input here, the one thing CLI assembly
			// is responsible for that no reader/packetizer can decide on
			// its own.
			t.Number = uint64(len(trackInputs) + 1)

			pz, err := packetizerForTrack(t)
			if err != nil {
				return reportError(err)
			}
			trackInputs = append(trackInputs, mux.TrackInput{
				Source:      src,
				SourceTrack: idx,
				Packetizer:  pz,
			})
		}
	}

	if len(trackInputs) == 0 {
		return reportError(mkverr.New(mkverr.ConfigError, "no tracks discovered across %d input(s)", len(inputs)))
	}

	out, err := os.Create(output)
	if err != nil {
		return reportError(mkverr.Wrap(mkverr.IoError, err, "creating output %q", output))
	}
	defer out.Close()

	cancelled := &atomic.Bool{}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; ok {
			slog.Warn("received interrupt, finishing current cluster and closing output")
			cancelled.Store(true)
		}
	}()
	defer signal.Stop(sigCh)

	if err := mux.Mux(out, trackInputs, cfg, cancelled.Load); err != nil {
		return reportError(err)
	}

	fmt.Printf("Muxing took no time at all. %d warning(s), 0 error(s).\n", mkvlog.WarningCount())
	return nil
}

func reportError(err error) error {
	if mkErr, ok := err.(*mkverr.Error); ok {
		fmt.Fprintln(os.Stderr, mkverr.FormatCLI("mkvmerge", mkErr))
		return mkErr
	}
	fmt.Fprintf(os.Stderr, "(mkvmerge) Error: %v.\n", err)
	return err
}
