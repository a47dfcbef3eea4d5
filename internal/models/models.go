// Package models defines the persistent entities of the quest system.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ProgressStatus enumerates review states of a quest attempt.
type ProgressStatus string

const (
	// StatusPending marks a submission awaiting admin review.
	StatusPending ProgressStatus = "pending"
	// StatusApproved marks a submission confirmed by an admin.
	StatusApproved ProgressStatus = "approved"
	// StatusRejected marks a submission declined by an admin.
	StatusRejected ProgressStatus = "rejected"
)

// User is a chat participant, created lazily on first interaction.
type User struct {
	ID             uuid.UUID `db:"id"`
	TelegramID     int64     `db:"telegram_id"`
	Name           string    `db:"name"`
	PhoneNumber    *string   `db:"phone_number"`
	IsVerified     bool      `db:"is_verified"`
	IsRouteBuilder bool      `db:"is_route_builder"`
	CreatedAt      time.Time `db:"created_at"`
}

// Quest is a single scavenger-hunt task tied to a location.
type Quest struct {
	ID          uuid.UUID `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Location    string    `db:"location"`
	Latitude    *float64  `db:"latitude"`
	Longitude   *float64  `db:"longitude"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
}

// HasCoordinates reports whether the quest carries a map position.
func (q *Quest) HasCoordinates() bool {
	return q.Latitude != nil && q.Longitude != nil
}

// PromoCode is a reward coupon scoped to one quest, consumed on approval.
type PromoCode struct {
	ID        uuid.UUID `db:"id"`
	Code      string    `db:"code"`
	QuestID   uuid.UUID `db:"quest_id"`
	IsUsed    bool      `db:"is_used"`
	CreatedAt time.Time `db:"created_at"`
}

// Progress is one user's attempt at one quest; at most one row per (user, quest).
type Progress struct {
	ID           uuid.UUID      `db:"id"`
	UserID       uuid.UUID      `db:"user_id"`
	QuestID      uuid.UUID      `db:"quest_id"`
	Photo        string         `db:"photo"`
	Status       ProgressStatus `db:"status"`
	PromoCodeID  *uuid.UUID     `db:"promo_code_id"`
	AdminComment string         `db:"admin_comment"`
	CompletedAt  time.Time      `db:"completed_at"`
}

// Decided reports whether the record reached a terminal review status.
func (p *Progress) Decided() bool {
	return p.Status != StatusPending
}

// Route is an ordered collection of quest points with a unique name.
type Route struct {
	ID          uuid.UUID `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// RoutePoint links a route to a quest at a 1-based position.
type RoutePoint struct {
	ID        uuid.UUID `db:"id"`
	RouteID   uuid.UUID `db:"route_id"`
	QuestID   uuid.UUID `db:"quest_id"`
	Order     int       `db:"position"`
	HintText  string    `db:"hint_text"`
	Photo     *string   `db:"photo"`
	Audio     *string   `db:"audio"`
	Latitude  *float64  `db:"latitude"`
	Longitude *float64  `db:"longitude"`
}

// RewardedQuest pairs an approved quest with its issued promo code.
type RewardedQuest struct {
	QuestName string `db:"quest_name"`
	Code      string `db:"code"`
}
