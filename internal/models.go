package internal

import (
	"time"
)

// Link maps a short code to its destination. Clicks reference it by ShortCode
// only, so no foreign key is declared between the two tables.
type Link struct {
	ID          int64      `gorm:"primaryKey;type:bigint;autoIncrement:false" json:"-"`
	ShortCode   string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"shortCode"`
	OriginalURL string     `gorm:"type:text;not null" json:"originalUrl"`
	OwnerID     string     `gorm:"type:varchar(64);index;not null" json:"ownerId"`
	Title       string     `gorm:"type:text" json:"title"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

// PublicID is the base58 form of the link id used in URLs and payloads.
func (l *Link) PublicID() string {
	return EncodeID(uint64(l.ID))
}

// Expired reports whether the link has an expiration that is not after now.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

type ExpirationStatus string

const (
	ExpirationNA      ExpirationStatus = "N/A"
	ExpirationActive  ExpirationStatus = "Active"
	ExpirationExpired ExpirationStatus = "Expired"
)

func (l *Link) ExpirationStatus(now time.Time) ExpirationStatus {
	switch {
	case l.ExpiresAt == nil:
		return ExpirationNA
	case l.ExpiresAt.After(now):
		return ExpirationActive
	default:
		return ExpirationExpired
	}
}

// Click is one recorded resolution of a short code. Rows are never updated.
type Click struct {
	ID          int64       `gorm:"primaryKey"`
	ShortCode   string      `gorm:"type:varchar(64);not null;index:idx_clicks_code_ts,priority:1"`
	Timestamp   time.Time   `gorm:"column:clicked_at;not null;index:idx_clicks_code_ts,priority:2"`
	IPAddress   string      `gorm:"type:varchar(64);not null"`
	DeviceClass DeviceClass `gorm:"type:varchar(16);not null"`
}

type User struct {
	ID           string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ClickEvent is the message handed from the redirect path to the click
// recorder, either in process or over the click queue.
type ClickEvent struct {
	ShortCode   string      `json:"shortCode"`
	Timestamp   time.Time   `json:"timestamp"`
	IPAddress   string      `json:"ipAddress"`
	UserAgent   string      `json:"userAgent"`
	DeviceClass DeviceClass `json:"deviceClass"`
}

func NewClickEvent(code string, at time.Time, ip, userAgent string) ClickEvent {
	return ClickEvent{
		ShortCode:   code,
		Timestamp:   at.UTC(),
		IPAddress:   ip,
		UserAgent:   userAgent,
		DeviceClass: ClassifyDevice(userAgent),
	}
}

func (e ClickEvent) Click() Click {
	device := e.DeviceClass
	if device == "" {
		device = ClassifyDevice(e.UserAgent)
	}
	return Click{
		ShortCode:   e.ShortCode,
		Timestamp:   e.Timestamp,
		IPAddress:   e.IPAddress,
		DeviceClass: device,
	}
}
