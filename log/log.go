// Package log holds the process-wide zap logger.
//
// The default logger writes console output at info level to stderr. Init
// replaces it from a Config, optionally adding a rotated log file.
package log

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultMaxSize = 100 // MB

// FileConfig enables file output. An empty Filename disables it.
type FileConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max-size"` // MB
	MaxDays    int    `mapstructure:"max-days"`
	MaxBackups int    `mapstructure:"max-backups"`
}

type Config struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Format is json or console.
	Format        string     `mapstructure:"format"`
	Stdout        bool       `mapstructure:"stdout"`
	DisableCaller bool       `mapstructure:"disable-caller"`
	File          FileConfig `mapstructure:"file"`
}

var (
	globalL     = atomic.NewPointer[zap.Logger](nil)
	globalLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
)

func init() {
	enc := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), globalLevel)
	globalL.Store(zap.New(core))
}

// L returns the global logger. It's safe for concurrent use.
func L() *zap.Logger {
	return globalL.Load()
}

// ReplaceGlobals installs logger as the global logger.
func ReplaceGlobals(logger *zap.Logger) {
	globalL.Store(logger)
}

// Level returns the level of the global logger; changing it takes effect
// immediately.
func Level() zap.AtomicLevel { return globalLevel }

// Init builds a logger from cfg and installs it globally.
func Init(cfg Config) (*zap.Logger, error) {
	lg, err := New(cfg, globalLevel)
	if err != nil {
		return nil, err
	}
	ReplaceGlobals(lg)
	return lg, nil
}

// New builds a logger from cfg whose level is controlled by level.
func New(cfg Config, level zap.AtomicLevel) (*zap.Logger, error) {
	if cfg.Level != "" {
		var l zapcore.Level
		if err := l.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, errors.Wrapf(err, "log level %q", cfg.Level)
		}
		level.SetLevel(l)
	}

	var outputs []zapcore.WriteSyncer
	if cfg.File.Filename != "" {
		w, err := newFileWriter(cfg.File)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, zapcore.AddSync(w))
	}
	if cfg.Stdout || len(outputs) == 0 {
		outputs = append(outputs, zapcore.Lock(os.Stdout))
	}

	var enc zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "", "console", "text":
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	case "json":
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(ec)
	default:
		return nil, errors.Newf("unknown log format %q", cfg.Format)
	}

	var opts []zap.Option
	if !cfg.DisableCaller {
		opts = append(opts, zap.AddCaller())
	}
	core := zapcore.NewCore(enc, zap.CombineWriteSyncers(outputs...), level)
	return zap.New(core, opts...), nil
}

func newFileWriter(cfg FileConfig) (*lumberjack.Logger, error) {
	if st, err := os.Stat(cfg.Filename); err == nil && st.IsDir() {
		return nil, errors.Newf("log file %s is a directory", cfg.Filename)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0o755); err != nil {
		return nil, errors.Wrap(err, "create log directory")
	}
	maxSize := cfg.MaxSize
	if maxSize == 0 {
		maxSize = defaultMaxSize
	}
	return &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxDays,
		LocalTime:  true,
	}, nil
}

// Sync flushes buffered entries of the global logger.
func Sync() error {
	return L().Sync()
}
