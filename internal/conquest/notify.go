package conquest

import (
	"context"
	"time"
)

type NotificationKind string

const (
	NoticeCapture          NotificationKind = "capture"
	NoticeChallengePassed  NotificationKind = "challenge_passed"
	NoticeBonusAwarded     NotificationKind = "bonus_awarded"
	NoticeGameToggled      NotificationKind = "game_toggled"
	NoticeLocationReleased NotificationKind = "location_released"
)

// Notification is a human-facing message fanned out to every connected
// player except ExceptPlayerID.
type Notification struct {
	Kind           NotificationKind `json:"kind"`
	Title          string           `json:"title"`
	Body           string           `json:"body"`
	ExceptPlayerID string           `json:"exceptPlayerId,omitempty"`
	TeamID         string           `json:"teamId,omitempty"`
	LocationID     string           `json:"locationId,omitempty"`
	ChallengeID    string           `json:"challengeId,omitempty"`
	At             time.Time        `json:"at"`
}

// Notifier dispatches notifications fire-and-forget. Implementations must not
// block on slow receivers.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) {}
