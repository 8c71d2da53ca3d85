package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"nightreign-lobby/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	writerMu sync.RWMutex
	writer   io.Writer = os.Stdout
	fileSink *sizeLimitedWriter
)

// Init configures the global zerolog logger. Every line carries the service
// name. When cfg.File is set, logs go to stdout and to a size-limited file.
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var console io.Writer = os.Stdout
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	output := console
	raw := io.Writer(os.Stdout)
	var sinkErr error
	if path := strings.TrimSpace(cfg.File); path != "" {
		sink, err := newSizeLimitedWriter(path, cfg.MaxMB)
		if err != nil {
			sinkErr = err
		} else {
			setFileSink(sink)
			output = zerolog.MultiLevelWriter(console, sink)
			raw = io.MultiWriter(os.Stdout, sink)
		}
	}
	setWriter(raw)

	zerolog.SetGlobalLevel(level)
	logCtx := zerolog.New(output).With().Timestamp()
	if svc := strings.TrimSpace(cfg.Service); svc != "" {
		logCtx = logCtx.Str("service", svc)
	}
	logger := logCtx.Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
	if sinkErr != nil {
		log.Warn().Err(sinkErr).Str("path", cfg.File).Msg("log file sink disabled")
	}
}

// Writer returns the raw sink used by the global logger, for libraries that
// log through their own encoder.
func Writer() io.Writer {
	writerMu.RLock()
	defer writerMu.RUnlock()
	return writer
}

// Close flushes and closes the file sink, if any.
func Close() error {
	writerMu.Lock()
	sink := fileSink
	fileSink = nil
	writer = os.Stdout
	writerMu.Unlock()
	if sink == nil {
		return nil
	}
	return sink.Close()
}

func setWriter(w io.Writer) {
	writerMu.Lock()
	defer writerMu.Unlock()
	writer = w
}

func setFileSink(s *sizeLimitedWriter) {
	writerMu.Lock()
	prev := fileSink
	fileSink = s
	writerMu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
}
