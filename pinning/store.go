package pinning

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/houzhh15/sdp-peercert/certinfo"
	"github.com/houzhh15/sdp-peercert/logging"
)

// Options 登记库配置
type Options struct {
	Inspector *certinfo.Inspector // 默认 certinfo.NewInspector(nil)
	Algorithm string              // 默认 sha256
	Logger    logging.Logger
}

// Store 对端证书指纹登记库（数据库支持）
type Store struct {
	db        *gorm.DB
	inspector *certinfo.Inspector
	algorithm string
	logger    logging.Logger
	mu        sync.RWMutex
	now       func() time.Time // 统一使用 UTC，sqlite 按字符串比较时间
}

// Open 打开 sqlite 登记库
func Open(path string, opts *Options) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return NewStore(db, opts)
}

// NewStore 创建指纹登记库
func NewStore(db *gorm.DB, opts *Options) (*Store, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if opts == nil {
		opts = &Options{}
	}

	algorithm := strings.ToLower(opts.Algorithm)
	if algorithm == "" {
		algorithm = certinfo.AlgorithmSHA256
	}
	if certinfo.DigestSize(algorithm) == 0 {
		return nil, fmt.Errorf("unsupported pin algorithm: %s", opts.Algorithm)
	}

	inspector := opts.Inspector
	if inspector == nil {
		inspector = certinfo.NewInspector(&certinfo.Options{Logger: opts.Logger})
	}

	// 自动迁移表结构
	if err := db.AutoMigrate(&PinRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate peer_pins table: %w", err)
	}

	return &Store{
		db:        db,
		inspector: inspector,
		algorithm: algorithm,
		logger:    opts.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Algorithm 返回登记使用的指纹算法
func (s *Store) Algorithm() string {
	return s.algorithm
}

// Pin 登记证书信息及其指纹
func (s *Store) Pin(clientID string, info *certinfo.CertificateInfo, fingerprint string) (*Pin, error) {
	if fingerprint == "" {
		return nil, errors.New("fingerprint is required")
	}
	if info == nil {
		return nil, errors.New("certificate info is required")
	}

	notBefore, err := time.Parse(time.RFC3339, info.NotBefore)
	if err != nil {
		return nil, fmt.Errorf("invalid not_before: %w", err)
	}
	notAfter, err := time.Parse(time.RFC3339, info.NotAfter)
	if err != nil {
		return nil, fmt.Errorf("invalid not_after: %w", err)
	}

	altNames := make([]string, len(info.AltNames))
	for i, an := range info.AltNames {
		altNames[i] = an.String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing int64
	if err := s.db.Model(&PinRecord{}).Where("fingerprint = ?", fingerprint).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to query pin: %w", err)
	}
	if existing > 0 {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyPinned, fingerprint)
	}

	record := PinRecord{
		Fingerprint: fingerprint,
		Algorithm:   s.algorithm,
		ClientID:    clientID,
		SubjectCN:   info.Subject.CommonName,
		IssuerCN:    info.Issuer.CommonName,
		Serial:      info.Serial,
		AltNames:    altNames,
		NotBefore:   notBefore,
		NotAfter:    notAfter,
		Status:      string(StatusActive),
	}

	if result := s.db.Create(&record); result.Error != nil {
		if s.logger != nil {
			s.logger.Error("Failed to pin certificate", "fingerprint", fingerprint, "error", result.Error)
		}
		return nil, fmt.Errorf("failed to pin certificate: %w", result.Error)
	}

	if s.logger != nil {
		s.logger.Info("Certificate pinned", "fingerprint", fingerprint, "client_id", clientID)
	}

	return recordToPin(&record), nil
}

// PinSession 登记会话对端证书
func (s *Store) PinSession(clientID string, sess certinfo.Session) (*Pin, error) {
	info, err := s.inspector.GetPeerCertificateInfo(sess)
	if err != nil {
		return nil, err
	}
	fingerprint, err := s.inspector.PeerFingerprintString(sess, s.algorithm)
	if err != nil {
		return nil, err
	}
	return s.Pin(clientID, info, fingerprint)
}

// Unpin 删除登记
func (s *Store) Unpin(fingerprint string) error {
	if fingerprint == "" {
		return errors.New("fingerprint is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.db.Where("fingerprint = ?", fingerprint).Delete(&PinRecord{})
	if result.Error != nil {
		return fmt.Errorf("failed to unpin certificate: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotPinned, fingerprint)
	}

	if s.logger != nil {
		s.logger.Info("Certificate unpinned", "fingerprint", fingerprint)
	}
	return nil
}

// Revoke 吊销登记
func (s *Store) Revoke(fingerprint, reason string) error {
	if fingerprint == "" {
		return errors.New("fingerprint is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	result := s.db.Model(&PinRecord{}).
		Where("fingerprint = ?", fingerprint).
		Updates(map[string]interface{}{
			"status":        string(StatusRevoked),
			"revoked_at":    &now,
			"revoke_reason": reason,
		})

	if result.Error != nil {
		if s.logger != nil {
			s.logger.Error("Failed to revoke pin", "fingerprint", fingerprint, "error", result.Error)
		}
		return fmt.Errorf("failed to revoke pin: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotPinned, fingerprint)
	}

	if s.logger != nil {
		s.logger.Info("Pin revoked", "fingerprint", fingerprint, "reason", reason)
	}
	return nil
}

// Lookup 查询登记
func (s *Store) Lookup(fingerprint string) (*Pin, error) {
	if fingerprint == "" {
		return nil, errors.New("fingerprint is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var record PinRecord
	result := s.db.Where("fingerprint = ?", fingerprint).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotPinned, fingerprint)
		}
		return nil, fmt.Errorf("failed to query pin: %w", result.Error)
	}
	return recordToPin(&record), nil
}

// Verify 计算会话对端指纹并检查登记状态
func (s *Store) Verify(sess certinfo.Session) (*Pin, error) {
	fingerprint, err := s.inspector.PeerFingerprintString(sess, s.algorithm)
	if err != nil {
		pinChecksTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	pin, err := s.Lookup(fingerprint)
	if err != nil {
		if errors.Is(err, ErrNotPinned) {
			pinChecksTotal.WithLabelValues("not_pinned").Inc()
		} else {
			pinChecksTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	switch {
	case pin.Status == StatusRevoked:
		pinChecksTotal.WithLabelValues("revoked").Inc()
		return pin, fmt.Errorf("%w: %s", ErrRevoked, fingerprint)
	case pin.Status == StatusExpired || s.now().After(pin.NotAfter):
		pinChecksTotal.WithLabelValues("expired").Inc()
		return pin, fmt.Errorf("%w: %s", ErrExpired, fingerprint)
	}

	pinChecksTotal.WithLabelValues("pinned").Inc()
	return pin, nil
}

// List 列出登记（分页）
func (s *Store) List(page, pageSize int, status Status) ([]*Pin, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	query := s.db.Model(&PinRecord{})

	// 状态过滤
	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count pins: %w", err)
	}

	var records []PinRecord
	offset := (page - 1) * pageSize
	if err := query.Order("id").Offset(offset).Limit(pageSize).Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list pins: %w", err)
	}

	pins := make([]*Pin, len(records))
	for i := range records {
		pins[i] = recordToPin(&records[i])
	}
	return pins, total, nil
}

// CleanExpired 将已过期的登记标记为 expired
func (s *Store) CleanExpired() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.db.Model(&PinRecord{}).
		Where("not_after < ? AND status = ?", s.now(), string(StatusActive)).
		Update("status", string(StatusExpired))

	if result.Error != nil {
		if s.logger != nil {
			s.logger.Error("Failed to clean expired pins", "error", result.Error)
		}
		return 0, fmt.Errorf("failed to clean expired pins: %w", result.Error)
	}

	if s.logger != nil {
		s.logger.Info("Cleaned expired pins", "count", result.RowsAffected)
	}
	return result.RowsAffected, nil
}

// Close 关闭底层数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func recordToPin(record *PinRecord) *Pin {
	return &Pin{
		Fingerprint:  record.Fingerprint,
		ClientID:     record.ClientID,
		SubjectCN:    record.SubjectCN,
		IssuerCN:     record.IssuerCN,
		Serial:       record.Serial,
		AltNames:     record.AltNames,
		NotBefore:    record.NotBefore,
		NotAfter:     record.NotAfter,
		Status:       Status(record.Status),
		RevokedAt:    record.RevokedAt,
		RevokeReason: record.RevokeReason,
		CreatedAt:    record.CreatedAt,
	}
}

var _ Verifier = (*Store)(nil)
