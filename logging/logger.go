package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Logger 定义日志记录器接口
type Logger interface {
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
}

// Level 日志级别
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Format 日志格式
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// LogEntry 日志条目
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// sink 共享的输出目标，子记录器与父记录器共用同一把锁
type sink struct {
	output io.Writer
	mu     sync.Mutex
}

// DefaultLogger 默认日志记录器实现
type DefaultLogger struct {
	level  Level
	format Format
	sink   *sink
	fields []interface{} // With 绑定的固定字段
}

// Config 日志配置
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "text", "json"
	Output string // "stdout", "stderr", or file path
}

// NewLogger 创建新的日志记录器
func NewLogger(cfg *Config) (*DefaultLogger, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	var output io.Writer
	switch cfg.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		output = f
	}

	return NewWriterLogger(output, parseLevel(cfg.Level), parseFormat(cfg.Format)), nil
}

// NewWriterLogger 创建写入指定 io.Writer 的日志记录器
func NewWriterLogger(w io.Writer, level Level, format Format) *DefaultLogger {
	return &DefaultLogger{
		level:  level,
		format: format,
		sink:   &sink{output: w},
	}
}

// With 返回附带固定字段的子记录器，与父记录器共享输出
func (l *DefaultLogger) With(fields ...interface{}) *DefaultLogger {
	merged := make([]interface{}, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &DefaultLogger{
		level:  l.level,
		format: l.format,
		sink:   l.sink,
		fields: merged,
	}
}

// parseLevel 解析日志级别字符串
func parseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// parseFormat 解析日志格式字符串
func parseFormat(s string) Format {
	if s == "json" {
		return FormatJSON
	}
	return FormatText
}

// log 内部日志记录方法
func (l *DefaultLogger) log(level Level, msg string, fields ...interface{}) {
	if level < l.level {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     levelString(level),
		Message:   msg,
		Fields:    make(map[string]interface{}),
	}
	addFields(entry.Fields, l.fields)
	addFields(entry.Fields, fields)

	var output string
	if l.format == FormatJSON {
		data, err := json.Marshal(entry)
		if err != nil {
			data, _ = json.Marshal(LogEntry{Timestamp: entry.Timestamp, Level: entry.Level, Message: msg})
		}
		output = string(data)
	} else {
		output = fmt.Sprintf("[%s] %s: %s", entry.Timestamp, entry.Level, entry.Message)
		if len(entry.Fields) > 0 {
			output += fmt.Sprintf(" %v", entry.Fields)
		}
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	fmt.Fprintln(l.sink.output, output)
}

// addFields 解析 key-value 对；error 值按字符串记录
func addFields(dst map[string]interface{}, fields []interface{}) {
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		if err, ok := fields[i+1].(error); ok {
			dst[key] = err.Error()
			continue
		}
		dst[key] = fields[i+1]
	}
}

// levelString 将日志级别转换为字符串
func levelString(l Level) string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Debug 记录调试级别日志
func (l *DefaultLogger) Debug(msg string, fields ...interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info 记录信息级别日志
func (l *DefaultLogger) Info(msg string, fields ...interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn 记录警告级别日志
func (l *DefaultLogger) Warn(msg string, fields ...interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error 记录错误级别日志
func (l *DefaultLogger) Error(msg string, fields ...interface{}) {
	l.log(LevelError, msg, fields...)
}
