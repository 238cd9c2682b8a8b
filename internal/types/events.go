package types

import "time"

// Severity classifies a shutdown warning.
type Severity string

const (
	// SeverityInfo is used for the early warnings (10 and 5 minutes).
	SeverityInfo Severity = "info"
	// SeverityUrgent is used from one minute out.
	SeverityUrgent Severity = "urgent"
)

// Color is a display hint for clients that render colored text.
type Color string

const (
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorRed    Color = "red"
)

// NotificationEvent is a single staged warning emitted as the shutdown
// deadline approaches. Sound requests an audible cue alongside the message.
type NotificationEvent struct {
	ID        string        `json:"id"`
	Threshold time.Duration `json:"threshold"`
	Remaining time.Duration `json:"remaining"`
	Deadline  time.Time     `json:"deadline"`
	Severity  Severity      `json:"severity"`
	Color     Color         `json:"color"`
	Bold      bool          `json:"bold"`
	Sound     bool          `json:"sound"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"created_at"`
}
