package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rebuildtrace/internal/config"
	"rebuildtrace/internal/sink"
)

// setupSink combines the [output] section of the config file with the
// export flags of cmd and attaches the resulting sink to the command
// context. It returns the sink handles and a cleanup function.
func setupSink(cmd *cobra.Command, file *config.File) (sink.Handles, func(), error) {
	cfg := sink.Config{Level: sink.LevelOff, Mode: sink.ModeStream}
	if file != nil {
		var err error
		if cfg, err = file.SinkConfig(); err != nil {
			return sink.Handles{}, nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("out") {
		out, err := flags.GetString("out")
		if err != nil {
			return sink.Handles{}, nil, fmt.Errorf("failed to get out flag: %w", err)
		}
		cfg.OutputPath = out
		if cfg.Mode == sink.ModeRing {
			cfg.Mode = sink.ModeBoth
		}
		if cfg.Level == sink.LevelOff {
			cfg.Level = sink.LevelSummary
		}
	}
	if flags.Changed("ring") {
		size, err := flags.GetInt("ring")
		if err != nil {
			return sink.Handles{}, nil, fmt.Errorf("failed to get ring flag: %w", err)
		}
		cfg.RingSize = size
		if flags.Changed("out") || cfg.Mode == sink.ModeBoth {
			cfg.Mode = sink.ModeBoth
		} else {
			cfg.Mode = sink.ModeRing
		}
		if cfg.Level == sink.LevelOff {
			cfg.Level = sink.LevelSummary
		}
	}
	if flags.Changed("format") {
		value, err := flags.GetString("format")
		if err != nil {
			return sink.Handles{}, nil, fmt.Errorf("failed to get format flag: %w", err)
		}
		if cfg.Format, err = sink.ParseFormat(value); err != nil {
			return sink.Handles{}, nil, fmt.Errorf("invalid export format: %w", err)
		}
	}
	if flags.Changed("level") {
		value, err := flags.GetString("level")
		if err != nil {
			return sink.Handles{}, nil, fmt.Errorf("failed to get level flag: %w", err)
		}
		if cfg.Level, err = sink.ParseLevel(value); err != nil {
			return sink.Handles{}, nil, fmt.Errorf("invalid export level: %w", err)
		}
	}

	if cfg.Level == sink.LevelOff {
		cmd.SetContext(sink.WithSink(cmd.Context(), sink.Nop))
		return sink.Handles{Sink: sink.Nop}, func() {}, nil
	}

	handles, err := sink.New(cfg)
	if err != nil {
		return sink.Handles{}, nil, fmt.Errorf("failed to create frame sink: %w", err)
	}
	cmd.SetContext(sink.WithSink(cmd.Context(), handles.Sink))

	cleanup := func() {
		if err := handles.Sink.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "sink: flush error: %v\n", err)
		}
		if err := handles.Sink.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "sink: close error: %v\n", err)
		}
	}
	return handles, cleanup, nil
}
