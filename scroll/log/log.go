package log

import (
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Srv is the shared logger for the engine and server. It writes to stdout
// until InitLogRotator points it at a rotating log file as well.
var Srv *zap.SugaredLogger

var logRotator *rotator.Rotator

func init() {
	Srv = newLogger(zapcore.Lock(os.Stdout))
}

func newLogger(sinks ...zapcore.WriteSyncer) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.NewMultiWriteSyncer(sinks...),
		zap.NewAtomicLevelAt(zapcore.DebugLevel),
	)
	return zap.New(core, zap.AddCaller()).Sugar()
}

// InitLogRotator initializes the rotating log file and rebuilds Srv so log
// lines are written both to stdout and to the file. The directory of the
// log file is created if needed. Must be called before the logger is used
// from multiple goroutines.
func InitLogRotator(logFile string) {
	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		Srv.Fatalf("failed to create log directory: %v", err)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		Srv.Fatalf("failed to create file rotator: %v", err)
	}
	logRotator = r
	Srv = newLogger(zapcore.Lock(os.Stdout), zapcore.AddSync(logRotator))
}

// Close flushes buffered log entries and closes the rotator if one was
// initialized.
func Close() {
	_ = Srv.Sync()
	if logRotator != nil {
		_ = logRotator.Close()
	}
}
