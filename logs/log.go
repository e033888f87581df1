package logs

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// 定义日志级别常量（数值越大，级别越高）
const (
	LevelTrace   = iota // 0（最低，最详细）
	LevelDebug          // 1
	LevelVerbose        // 2
	LevelInfo           // 3
	LevelWarning        // 4
	LevelError          // 5（最高，最严重）
)

var (
	mu       sync.RWMutex
	logLevel = LevelInfo
	nodeTag  = ""
	logger   *Logger
)

// Logger 各级别的输出
type Logger struct {
	traceLogger   *log.Logger
	debugLogger   *log.Logger
	verboseLogger *log.Logger
	infoLogger    *log.Logger
	warnLogger    *log.Logger
	errorLogger   *log.Logger
}

const logFlags = log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile

func newLogger(out, errOut io.Writer) *Logger {
	return &Logger{
		traceLogger:   log.New(out, "[TRACE]   ", logFlags),
		debugLogger:   log.New(out, "[DEBUG]   ", logFlags),
		verboseLogger: log.New(out, "[VERBOSE] ", logFlags),
		infoLogger:    log.New(out, "[INFO]    ", logFlags),
		warnLogger:    log.New(out, "[WARN]    ", logFlags),
		errorLogger:   log.New(errOut, "[ERROR]   ", logFlags),
	}
}

func init() {
	logger = newLogger(os.Stdout, os.Stderr)
}

// SetOutput 重定向全部级别（测试里常用 io.Discard 或 bytes.Buffer）
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w, w)
}

// SetLevel 设置全局级别
func SetLevel(level int) {
	mu.Lock()
	defer mu.Unlock()
	logLevel = level
}

// SetLevelByName 按名字设置级别，未知名字返回 false 且不修改
func SetLevelByName(name string) bool {
	level, ok := ParseLevel(name)
	if ok {
		SetLevel(level)
	}
	return ok
}

func ParseLevel(name string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace, true
	case "debug":
		return LevelDebug, true
	case "verbose":
		return LevelVerbose, true
	case "info", "":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarning, true
	case "error":
		return LevelError, true
	}
	return 0, false
}

// SetNodeTag 每行日志前的节点标识
func SetNodeTag(tag string) {
	mu.Lock()
	defer mu.Unlock()
	nodeTag = tag
}

func output(level int, l func(*Logger) *log.Logger, format string, v ...interface{}) {
	mu.RLock()
	enabled := logLevel <= level
	lg := logger
	tag := nodeTag
	mu.RUnlock()
	if !enabled {
		return
	}
	if tag != "" {
		format = tag + " " + format
	}
	// calldepth 3: output -> 包级函数 -> 调用方
	_ = l(lg).Output(3, fmt.Sprintf(format, v...))
}

// 包级别的日志方法
func Trace(format string, v ...interface{}) {
	output(LevelTrace, func(l *Logger) *log.Logger { return l.traceLogger }, format, v...)
}

func Debug(format string, v ...interface{}) {
	output(LevelDebug, func(l *Logger) *log.Logger { return l.debugLogger }, format, v...)
}

func Verbose(format string, v ...interface{}) {
	output(LevelVerbose, func(l *Logger) *log.Logger { return l.verboseLogger }, format, v...)
}

func Info(format string, v ...interface{}) {
	output(LevelInfo, func(l *Logger) *log.Logger { return l.infoLogger }, format, v...)
}

func Warn(format string, v ...interface{}) {
	output(LevelWarning, func(l *Logger) *log.Logger { return l.warnLogger }, format, v...)
}

func Error(format string, v ...interface{}) {
	output(LevelError, func(l *Logger) *log.Logger { return l.errorLogger }, format, v...)
}
