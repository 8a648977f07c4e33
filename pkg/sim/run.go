package sim

import (
	"context"
	"io"
	"log/slog"

	"github.com/modoterra/minermock/pkg/config"
	"github.com/modoterra/minermock/pkg/core"
	"github.com/modoterra/minermock/pkg/logsink"
)

// RunFile truncates the configured log file and runs a simulator writing to it
// and to echo. An error opening or writing the file is returned as is.
func RunFile(ctx context.Context, m config.Miner, echo io.Writer, logger *slog.Logger) (core.Counters, error) {
	opts, err := OptionsFromConfig(m)
	if err != nil {
		return core.Counters{}, err
	}

	sink, err := logsink.Open(m.LogFile, echo)
	if err != nil {
		return core.Counters{}, err
	}

	logger.Info("log file opened", "path", sink.Path())
	c, runErr := New(opts, sink, logger).Run(ctx)
	if err := sink.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return c, runErr
}
