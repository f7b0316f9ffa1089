package model

import (
	"fmt"
	"net"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ThreatType classifies an indicator of compromise.
type ThreatType string

const (
	TypeIP       ThreatType = "IP"
	TypeDomain   ThreatType = "Domain"
	TypeURL      ThreatType = "URL"
	TypeHash     ThreatType = "Hash"
	TypeEmail    ThreatType = "Email"
	TypeFileHash ThreatType = "FileHash"

	// TypeAny is valid only in rule conditions, never on a record.
	TypeAny ThreatType = "Any"
)

// RecordTypes lists the types a stored ThreatRecord may carry.
var RecordTypes = []ThreatType{
	TypeIP, TypeDomain, TypeURL, TypeHash, TypeEmail, TypeFileHash,
}

// IsRecordType reports whether t is a valid type for a stored record.
func (t ThreatType) IsRecordType() bool {
	for _, v := range RecordTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Severity is the analyst-assigned impact level of a threat.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

// Severities lists all valid severity levels, highest first.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// IsValid reports whether s is a known severity level.
func (s Severity) IsValid() bool {
	for _, v := range Severities {
		if s == v {
			return true
		}
	}
	return false
}

// ThreatRecord is one stored indicator of compromise. Records are
// immutable once ingested except for LastSeen and HitCount, which are
// bumped when the same (type, value) pair is observed again.
type ThreatRecord struct {
	ID            string     `json:"id"`
	Type          ThreatType `json:"type"`
	Value         string     `json:"value"`
	Severity      Severity   `json:"severity"`
	Source        string     `json:"source"`
	Category      string     `json:"category"`
	Country       string     `json:"country,omitempty"`
	MalwareFamily string     `json:"malware_family,omitempty"`
	Description   string     `json:"description,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	FirstSeen     time.Time  `json:"first_seen"`
	LastSeen      time.Time  `json:"last_seen"`
	HitCount      int64      `json:"hit_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewThreatRecord builds a validated record with a generated ID and a
// normalized value. now is used for all timestamps.
func NewThreatRecord(typ ThreatType, value string, now time.Time) (*ThreatRecord, error) {
	if !typ.IsRecordType() {
		return nil, fmt.Errorf("model: invalid threat type %q", typ)
	}
	if err := ValidateValue(typ, value); err != nil {
		return nil, err
	}
	return &ThreatRecord{
		ID:        uuid.New().String(),
		Type:      typ,
		Value:     NormalizeValue(typ, value),
		Severity:  SeverityMedium,
		FirstSeen: now,
		LastSeen:  now,
		HitCount:  1,
		CreatedAt: now,
	}, nil
}

// Observe bumps the re-observation counters. All other fields stay as
// they were at ingest.
func (t *ThreatRecord) Observe(now time.Time) {
	t.LastSeen = now
	t.HitCount++
}

var (
	domainPattern = regexp.MustCompile(`^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)
	hashPattern   = regexp.MustCompile(`^[a-fA-F0-9]{32}$|^[a-fA-F0-9]{40}$|^[a-fA-F0-9]{64}$|^[a-fA-F0-9]{128}$`)
)

// MaxValueLength bounds the stored IoC value.
const MaxValueLength = 4096

// ValidateValue checks value against the syntactic rules for its type.
func ValidateValue(typ ThreatType, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("model: threat value is empty")
	}
	if len(value) > MaxValueLength {
		return fmt.Errorf("model: threat value exceeds %d characters", MaxValueLength)
	}

	switch typ {
	case TypeIP:
		if net.ParseIP(value) == nil {
			return fmt.Errorf("model: %q is not a valid IP address", value)
		}
	case TypeDomain:
		if !domainPattern.MatchString(strings.ToLower(value)) {
			return fmt.Errorf("model: %q is not a valid domain", value)
		}
	case TypeURL:
		u, err := url.ParseRequestURI(value)
		if err != nil {
			return fmt.Errorf("model: invalid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("model: URL must use http or https")
		}
	case TypeHash, TypeFileHash:
		if !hashPattern.MatchString(value) {
			return fmt.Errorf("model: %q is not an MD5/SHA1/SHA256/SHA512 hash", value)
		}
	case TypeEmail:
		if _, err := mail.ParseAddress(value); err != nil {
			return fmt.Errorf("model: invalid email: %w", err)
		}
	default:
		return fmt.Errorf("model: unknown threat type %q", typ)
	}
	return nil
}

// NormalizeValue canonicalizes value for storage and matching: domains,
// IPs, and hashes are lowercased; URLs get lowercase scheme and host;
// email domains are lowercased while the local part is preserved.
func NormalizeValue(typ ThreatType, value string) string {
	value = strings.TrimSpace(value)
	switch typ {
	case TypeIP, TypeDomain, TypeHash, TypeFileHash:
		return strings.ToLower(value)
	case TypeURL:
		if u, err := url.Parse(value); err == nil {
			u.Scheme = strings.ToLower(u.Scheme)
			u.Host = strings.ToLower(u.Host)
			return u.String()
		}
		return value
	case TypeEmail:
		if at := strings.LastIndex(value, "@"); at > 0 {
			return value[:at] + strings.ToLower(value[at:])
		}
		return value
	default:
		return value
	}
}

// DetectType guesses the IoC type of a bare search string. Returns ""
// when nothing matches; callers fall back to substring search.
func DetectType(value string) ThreatType {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if net.ParseIP(value) != nil {
		return TypeIP
	}
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		if _, err := url.Parse(value); err == nil {
			return TypeURL
		}
	}
	if strings.Contains(value, "@") {
		if _, err := mail.ParseAddress(value); err == nil {
			return TypeEmail
		}
	}
	if hashPattern.MatchString(value) {
		return TypeHash
	}
	if domainPattern.MatchString(strings.ToLower(value)) && !strings.Contains(value, "/") {
		return TypeDomain
	}
	return ""
}
