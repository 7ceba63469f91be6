// Package logging provides categorized logging for ascbridge on top of zap.
// Every subsystem logs through a named category; categories can be switched
// off individually. Nothing is written until Initialize (or SetLogger) runs.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, CLI wiring
	CategoryConfig    Category = "config"    // Config loading and overrides
	CategoryBuild     Category = "build"     // Compiler invocations
	CategoryWatch     Category = "watch"     // File watching, rebuild trigger
	CategoryServe     Category = "serve"     // Dev server and artifact server
	CategoryProvision Category = "provision" // Build provisioning strategies
	CategoryBrowser   Category = "browser"   // Browser automation, CDP events
	CategoryVerify    Category = "verify"    // Verification verdicts
	CategoryRetry     Category = "retry"     // Retry supervisor
	CategoryHarness   Category = "harness"   // Scenario matrix
)

// Config controls how Initialize builds the root logger.
type Config struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// Format is "console" or "json". Defaults to console.
	Format string
	// Dir receives a JSON log file per day when DebugMode is on.
	Dir string
	// DebugMode enables the file sink and forces debug level for it.
	DebugMode bool
	// Categories disables individual categories when mapped to false.
	Categories map[string]bool
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	rootMu     sync.RWMutex
	root       = zap.NewNop()
	categories map[string]bool
	fileSink   *os.File

	loggersMu sync.Mutex
	loggers   = make(map[Category]*Logger)
)

// Initialize builds the root logger from cfg and replaces any previous one.
func Initialize(cfg Config) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var consoleEnc zapcore.Encoder
	if strings.EqualFold(cfg.Format, "json") {
		consoleEnc = zapcore.NewJSONEncoder(encCfg)
	} else {
		devCfg := encCfg
		devCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		consoleEnc = zapcore.NewConsoleEncoder(devCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), level),
	}

	var file *os.File
	if cfg.DebugMode && cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
		name := fmt.Sprintf("%s_ascbridge.log", time.Now().Format("2006-01-02"))
		file, err = os.OpenFile(filepath.Join(cfg.Dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), zapcore.DebugLevel))
	}

	install(zap.New(zapcore.NewTee(cores...)), cfg.Categories, file)

	Boot("logging initialized (level=%s, format=%s, debug_mode=%v)", level, formatName(cfg.Format), cfg.DebugMode)
	return nil
}

// SetLogger installs l as the root logger with every category enabled.
// Tests use it with a zaptest/observer core.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	install(l, nil, nil)
}

// L returns the root zap logger.
func L() *zap.Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return root
}

func install(l *zap.Logger, cats map[string]bool, file *os.File) {
	rootMu.Lock()
	old := fileSink
	_ = root.Sync()
	root = l
	categories = cats
	fileSink = file
	rootMu.Unlock()

	loggersMu.Lock()
	loggers = make(map[Category]*Logger)
	loggersMu.Unlock()

	if old != nil {
		_ = old.Close()
	}
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

func formatName(f string) string {
	if strings.EqualFold(f, "json") {
		return "json"
	}
	return "console"
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	rootMu.RLock()
	defer rootMu.RUnlock()
	if categories == nil {
		return true
	}
	enabled, ok := categories[string(category)]
	if !ok {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Disabled categories get a no-op logger.
func Get(category Category) *Logger {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	base := zap.NewNop()
	if IsCategoryEnabled(category) {
		base = L().Named(string(category))
	}
	l := &Logger{category: category, sugar: base.Sugar()}
	loggers[category] = l
	return l
}

// Zap exposes the underlying structured logger for field-based logging.
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// With returns a logger carrying key-value context, e.g. a session ID.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Sync flushes buffered entries and closes the debug log file.
func Sync() {
	rootMu.Lock()
	defer rootMu.Unlock()
	_ = root.Sync()
	if fileSink != nil {
		_ = fileSink.Close()
		fileSink = nil
	}
}

// =============================================================================
// CONVENIENCE FUNCTIONS - no-ops while the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// Build logs to the build category
func Build(format string, args ...interface{}) {
	Get(CategoryBuild).Info(format, args...)
}

// BuildDebug logs debug to the build category
func BuildDebug(format string, args ...interface{}) {
	Get(CategoryBuild).Debug(format, args...)
}

// BuildError logs an error to the build category
func BuildError(format string, args ...interface{}) {
	Get(CategoryBuild).Error(format, args...)
}

// Watch logs to the watch category
func Watch(format string, args ...interface{}) {
	Get(CategoryWatch).Info(format, args...)
}

// WatchDebug logs debug to the watch category
func WatchDebug(format string, args ...interface{}) {
	Get(CategoryWatch).Debug(format, args...)
}

// WatchWarn logs a warning to the watch category
func WatchWarn(format string, args ...interface{}) {
	Get(CategoryWatch).Warn(format, args...)
}

// WatchError logs an error to the watch category
func WatchError(format string, args ...interface{}) {
	Get(CategoryWatch).Error(format, args...)
}

// Serve logs to the serve category
func Serve(format string, args ...interface{}) {
	Get(CategoryServe).Info(format, args...)
}

// ServeDebug logs debug to the serve category
func ServeDebug(format string, args ...interface{}) {
	Get(CategoryServe).Debug(format, args...)
}

// ServeWarn logs a warning to the serve category
func ServeWarn(format string, args ...interface{}) {
	Get(CategoryServe).Warn(format, args...)
}

// Provision logs to the provision category
func Provision(format string, args ...interface{}) {
	Get(CategoryProvision).Info(format, args...)
}

// ProvisionDebug logs debug to the provision category
func ProvisionDebug(format string, args ...interface{}) {
	Get(CategoryProvision).Debug(format, args...)
}

// ProvisionWarn logs a warning to the provision category
func ProvisionWarn(format string, args ...interface{}) {
	Get(CategoryProvision).Warn(format, args...)
}

// BrowserDebug logs debug to the browser category
func BrowserDebug(format string, args ...interface{}) {
	Get(CategoryBrowser).Debug(format, args...)
}

// BrowserWarn logs a warning to the browser category
func BrowserWarn(format string, args ...interface{}) {
	Get(CategoryBrowser).Warn(format, args...)
}

// Retry logs to the retry category
func Retry(format string, args ...interface{}) {
	Get(CategoryRetry).Info(format, args...)
}

// RetryWarn logs a warning to the retry category
func RetryWarn(format string, args ...interface{}) {
	Get(CategoryRetry).Warn(format, args...)
}

// Harness logs to the harness category
func Harness(format string, args ...interface{}) {
	Get(CategoryHarness).Info(format, args...)
}

// HarnessDebug logs debug to the harness category
func HarnessDebug(format string, args ...interface{}) {
	Get(CategoryHarness).Debug(format, args...)
}

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopSlow ends the timer. Past limit it warns with the elapsed time and
// the limit as fields; otherwise it logs at debug like Stop.
func (t *Timer) StopSlow(limit time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	l := Get(t.category)
	if limit > 0 && elapsed > limit {
		l.Zap().Warn(t.op+" was slow", zap.Duration("elapsed", elapsed), zap.Duration("limit", limit))
		return elapsed
	}
	l.Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}
