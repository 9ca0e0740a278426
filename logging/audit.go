package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IdentityAuditor 身份审计记录器接口
type IdentityAuditor interface {
	LogIdentity(ctx context.Context, event *IdentityEvent) error
	Query(ctx context.Context, filter *AuditFilter) ([]*AuditLog, error)
}

// FileAuditLogger 基于文件的身份审计记录器（JSON Lines）
type FileAuditLogger struct {
	outputPath string
	logger     Logger
	out        io.WriteCloser
	mu         sync.Mutex
	logs       []*AuditLog // 内存缓存，用于 Query
	maxCached  int
}

// defaultMaxCached 内存缓存的最大条目数
const defaultMaxCached = 10000

// NewFileAuditLogger 创建新的文件审计日志记录器
func NewFileAuditLogger(outputPath string, logger Logger) (*FileAuditLogger, error) {
	f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open audit log file: %w", err)
	}

	return &FileAuditLogger{
		outputPath: outputPath,
		logger:     logger,
		out:        f,
		logs:       make([]*AuditLog, 0),
		maxCached:  defaultMaxCached,
	}, nil
}

// LogIdentity 记录身份事件；拒绝事件同时写入结构化日志
func (a *FileAuditLogger) LogIdentity(ctx context.Context, event *IdentityEvent) error {
	if event == nil {
		return fmt.Errorf("identity event cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	auditLog := &AuditLog{
		ID:        uuid.NewString(),
		Timestamp: event.Timestamp,
		Event:     event,
	}

	if event.Result == ResultRejected && a.logger != nil {
		a.logger.Warn("Peer identity rejected",
			"transport", event.Transport,
			"remote_addr", event.RemoteAddr,
			"error_kind", event.ErrorKind,
			"reason", event.Reason,
		)
	}

	return a.writeLog(auditLog)
}

// Query 查询审计日志（仅查询内存缓存）
func (a *FileAuditLogger) Query(ctx context.Context, filter *AuditFilter) ([]*AuditLog, error) {
	if filter == nil {
		filter = &AuditFilter{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var results []*AuditLog
	for _, log := range a.logs {
		if matchFilter(log, filter) {
			results = append(results, log)
		}
	}

	// 应用 Limit 和 Offset
	start := filter.Offset
	if start > len(results) {
		start = len(results)
	}

	end := len(results)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}

	return results[start:end], nil
}

// matchFilter 检查日志是否匹配过滤条件
func matchFilter(log *AuditLog, filter *AuditFilter) bool {
	if !filter.StartTime.IsZero() && log.Timestamp.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && log.Timestamp.After(filter.EndTime) {
		return false
	}

	ev := log.Event
	if filter.Transport != "" && ev.Transport != filter.Transport {
		return false
	}
	if filter.SubjectCN != "" && ev.SubjectCN != filter.SubjectCN {
		return false
	}
	if filter.Fingerprint != "" && ev.Fingerprint != filter.Fingerprint {
		return false
	}
	if filter.Result != "" && ev.Result != filter.Result {
		return false
	}
	if filter.ErrorKind != "" && ev.ErrorKind != filter.ErrorKind {
		return false
	}
	return true
}

// writeLog 写入审计日志到文件
func (a *FileAuditLogger) writeLog(log *AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("marshal audit log: %w", err)
	}

	if _, err := a.out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}

	a.logs = append(a.logs, log)
	if len(a.logs) > a.maxCached {
		a.logs = a.logs[len(a.logs)-a.maxCached:]
	}

	return nil
}

// Close 关闭审计日志记录器
func (a *FileAuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.out != nil {
		return a.out.Close()
	}
	return nil
}
