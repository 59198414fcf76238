package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationID identifies a Notification.
type NotificationID string

// NewNotificationID mints a fresh NotificationID.
func NewNotificationID() NotificationID { return NotificationID(uuid.NewString()) }

// NotificationStatus is the delivery lifecycle of a Notification.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSending NotificationStatus = "sending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// ChannelKind discriminates the Channel sum type.
type ChannelKind string

const (
	ChannelEmail     ChannelKind = "email"
	ChannelSlack     ChannelKind = "slack"
	ChannelPagerDuty ChannelKind = "pagerduty"
	ChannelWebhook   ChannelKind = "webhook"
	ChannelCustom    ChannelKind = "custom"
)

// Channel is the delivery target/payload for a Notification. Exactly the
// fields relevant to Kind are populated.
type Channel struct {
	Kind ChannelKind

	// Email
	To      string
	Subject string
	Body    string

	// Slack
	SlackChannel string
	Message      string

	// PagerDuty
	ServiceKey   string
	IncidentKey  string

	// Webhook / Custom
	URL     string
	Payload map[string]any
}

// Notification is a record handed to the Notification Sink.
type Notification struct {
	ID         NotificationID
	IncidentID IncidentID
	Channel    Channel
	Status     NotificationStatus
	CreatedAt  time.Time
	SentAt     *time.Time
	RetryCount int
	Error      string
}
