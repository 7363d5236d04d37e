package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}

// NewFileLogger tees log output to stdout and a dated file under dir.
// Falls back to a stdout-only logger when the file cannot be opened.
func NewFileLogger(level, dir string) (zerolog.Logger, io.Closer, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return NewLogger(level), nil, err
	}
	name := fmt.Sprintf("trading_%s.log", time.Now().UTC().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return NewLogger(level), nil, err
	}
	writer := zerolog.MultiLevelWriter(os.Stdout, file)
	return zerolog.New(writer).With().Timestamp().Logger().Level(lvl), file, nil
}
