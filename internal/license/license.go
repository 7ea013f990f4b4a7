// Package license turns the installed license details into the
// administrative warnings shown to users.
package license

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nhle/tracker/internal/model"
)

// DateLayout is the layout of license dates in configuration.
const DateLayout = "2006-01-02"

// Warning windows before an expiry date.
const (
	EvaluationWarningDays  = 30
	MaintenanceWarningDays = 45
)

// Details describes the installed license.
type Details struct {
	Type              string     `json:"type"`
	Evaluation        bool       `json:"evaluation"`
	ExpiresAt         *time.Time `json:"expiresAt,omitempty"`
	MaintenanceExpiry *time.Time `json:"maintenanceExpiry,omitempty"`
}

// FromConfig parses license details from configuration.
func FromConfig(cfg model.LicenseConfig) (Details, error) {
	d := Details{Type: cfg.Type, Evaluation: cfg.Evaluation}
	var err error
	if d.ExpiresAt, err = parseDate("expires_at", cfg.ExpiresAt); err != nil {
		return d, err
	}
	if d.MaintenanceExpiry, err = parseDate("maintenance_expiry", cfg.MaintenanceExpiry); err != nil {
		return d, err
	}
	if d.Evaluation && d.ExpiresAt == nil {
		return d, fmt.Errorf("evaluation license needs expires_at")
	}
	return d, nil
}

func parseDate(name, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("parsing license %s %q: %w", name, s, err)
	}
	return &t, nil
}

// Kind identifies a license message.
type Kind string

const (
	EvaluationExpired   Kind = "EVALUATION_EXPIRED"
	EvaluationExpiring  Kind = "EVALUATION_EXPIRING"
	MaintenanceExpired  Kind = "MAINTENANCE_EXPIRED"
	MaintenanceExpiring Kind = "MAINTENANCE_EXPIRING"
)

// Level is how prominently a message is shown.
type Level string

const (
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Message is one license notice.
type Message struct {
	Kind  Kind      `json:"kind"`
	Level Level     `json:"level"`
	Date  time.Time `json:"date"`
	// Days until expiry, or days since expiry for the expired kinds.
	Days  int       `json:"days"`
	Text  string    `json:"text"`
}

// Messages returns the notices due at now. Evaluation licenses report
// on their expiry date; other licenses report on maintenance expiry.
func (d Details) Messages(now time.Time) []Message {
	var out []Message
	if d.Evaluation {
		if m, ok := check(now, d.ExpiresAt, EvaluationWarningDays,
			EvaluationExpired, EvaluationExpiring, "evaluation license"); ok {
			out = append(out, m)
		}
		return out
	}
	if m, ok := check(now, d.MaintenanceExpiry, MaintenanceWarningDays,
		MaintenanceExpired, MaintenanceExpiring, "software maintenance"); ok {
		out = append(out, m)
	}
	return out
}

func check(now time.Time, at *time.Time, window int, expired, expiring Kind, what string) (Message, bool) {
	if at == nil {
		return Message{}, false
	}
	days := daysUntil(now, *at)
	switch {
	case days <= 0:
		return Message{
			Kind:  expired,
			Level: LevelError,
			Date:  *at,
			Days:  -days,
			Text:  fmt.Sprintf("Your %s expired on %s.", what, at.Format(DateLayout)),
		}, true
	case days <= window:
		return Message{
			Kind:  expiring,
			Level: LevelWarning,
			Date:  *at,
			Days:  days,
			Text:  fmt.Sprintf("Your %s expires in %d %s.", what, days, plural(days, "day")),
		}, true
	}
	return Message{}, false
}

// daysUntil counts whole days from now to at, rounding up partial days.
func daysUntil(now, at time.Time) int {
	return int(math.Ceil(at.Sub(now).Hours() / 24))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
