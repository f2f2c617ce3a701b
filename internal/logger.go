package internal

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mama165/sdk-go/logs"
)

// NewLogger logs to CHAT_LOG_FILE when set so that log lines never land in
// the terminal next to the chat. Both outputs write JSON records.
// The returned closer must be called on exit.
func NewLogger(config Config) (*slog.Logger, io.Closer, error) {
	level := strings.ToUpper(config.LogLevel)
	if config.LogFile == "" {
		return logs.GetLoggerFromString(level), io.NopCloser(nil), nil
	}

	file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: logs.GetLevelFromString(level)})
	return slog.New(handler), file, nil
}
