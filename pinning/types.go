package pinning

import (
	"errors"
	"time"

	"github.com/houzhh15/sdp-peercert/certinfo"
)

// Status 指纹登记状态
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
	StatusExpired Status = "expired"
)

var (
	ErrNotPinned     = errors.New("pinning: fingerprint not pinned")
	ErrRevoked       = errors.New("pinning: fingerprint revoked")
	ErrExpired       = errors.New("pinning: pinned certificate expired")
	ErrAlreadyPinned = errors.New("pinning: fingerprint already pinned")
)

// Verifier 校验会话对端证书是否已登记
type Verifier interface {
	Verify(s certinfo.Session) (*Pin, error)
}

// Pin 已登记的对端证书
type Pin struct {
	Fingerprint  string     `json:"fingerprint"`
	ClientID     string     `json:"client_id"`
	SubjectCN    string     `json:"subject_cn,omitempty"`
	IssuerCN     string     `json:"issuer_cn,omitempty"`
	Serial       string     `json:"serial"`
	AltNames     []string   `json:"alt_names,omitempty"`
	NotBefore    time.Time  `json:"not_before"`
	NotAfter     time.Time  `json:"not_after"`
	Status       Status     `json:"status"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	RevokeReason string     `json:"revoke_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// PinRecord 数据库指纹记录
type PinRecord struct {
	ID           uint      `gorm:"primaryKey"`
	Fingerprint  string    `gorm:"uniqueIndex;not null"`
	Algorithm    string    `gorm:"not null"`
	ClientID     string    `gorm:"index"`
	SubjectCN    string
	IssuerCN     string
	Serial       string    `gorm:"not null"`
	AltNames     []string  `gorm:"serializer:json"`
	NotBefore    time.Time `gorm:"not null"`
	NotAfter     time.Time `gorm:"not null"`
	Status       string    `gorm:"default:'active'"`
	RevokedAt    *time.Time
	RevokeReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName 指定表名
func (PinRecord) TableName() string {
	return "peer_pins"
}
