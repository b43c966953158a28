package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// Severity grades how serious a signal is.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Severities lists severities from least to most serious.
var Severities = []Severity{SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Confidence grades how sure a detector is about a signal.
type Confidence string

const (
	ConfidenceUncertain         Confidence = "UNCERTAIN"
	ConfidenceSomewhatConfident Confidence = "SOMEWHAT_CONFIDENT"
	ConfidenceConfident         Confidence = "CONFIDENT"
	ConfidenceVerified          Confidence = "VERIFIED"
	ConfidenceNotApplicable     Confidence = "NOT_APPLICABLE"
)

// Confidences lists confidence levels from weakest to strongest, followed by
// NOT_APPLICABLE.
var Confidences = []Confidence{
	ConfidenceUncertain,
	ConfidenceSomewhatConfident,
	ConfidenceConfident,
	ConfidenceVerified,
	ConfidenceNotApplicable,
}

// ResolutionStatus is the lifecycle state of a signal.
type ResolutionStatus string

const (
	StatusOpen         ResolutionStatus = "OPEN"
	StatusAcknowledged ResolutionStatus = "ACKNOWLEDGED"
	StatusDismissed    ResolutionStatus = "DISMISSED"
	StatusResolved     ResolutionStatus = "RESOLVED"
)

// ResolutionStatuses lists every resolution status.
var ResolutionStatuses = []ResolutionStatus{StatusOpen, StatusAcknowledged, StatusDismissed, StatusResolved}

var (
	ErrUnknownSeverity   = eris.New("model: unknown severity")
	ErrUnknownConfidence = eris.New("model: unknown confidence")
	ErrUnknownStatus     = eris.New("model: unknown resolution status")
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// ParseSeverity parses a severity case-insensitively.
func ParseSeverity(v string) (Severity, error) {
	s := Severity(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", eris.Wrapf(ErrUnknownSeverity, "%q", v)
	}
	return s, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	parsed, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Valid reports whether c is a known confidence level.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceUncertain, ConfidenceSomewhatConfident, ConfidenceConfident,
		ConfidenceVerified, ConfidenceNotApplicable:
		return true
	}
	return false
}

// ParseConfidence parses a confidence level case-insensitively.
func ParseConfidence(v string) (Confidence, error) {
	c := Confidence(strings.ToUpper(strings.TrimSpace(v)))
	if !c.Valid() {
		return "", eris.Wrapf(ErrUnknownConfidence, "%q", v)
	}
	return c, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Confidence) UnmarshalText(b []byte) error {
	parsed, err := ParseConfidence(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Valid reports whether s is a known resolution status.
func (s ResolutionStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusAcknowledged, StatusDismissed, StatusResolved:
		return true
	}
	return false
}

// ParseResolutionStatus parses a status case-insensitively.
func ParseResolutionStatus(v string) (ResolutionStatus, error) {
	s := ResolutionStatus(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", eris.Wrapf(ErrUnknownStatus, "%q", v)
	}
	return s, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ResolutionStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseResolutionStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Well-known event types used as grouping keys.
const (
	EventTimeDecayStaleness = "time_decay_staleness"
	EventBRIDrift           = "bri_drift"
	EventTaskOverdue        = "task_overdue"
	EventValuationDrop      = "valuation_drop"
	EventRiskFactor         = "risk_factor"
)

// Signal is a discrete, rankable unit of detected risk or opportunity.
// Signals are never deleted; only their resolution status changes.
type Signal struct {
	ID                   string              `json:"id" yaml:"id"`
	CompanyID            string              `json:"company_id,omitempty" yaml:"company_id,omitempty"`
	Title                string              `json:"title" yaml:"title"`
	Description          string              `json:"description,omitempty" yaml:"description,omitempty"`
	Severity             Severity            `json:"severity" yaml:"severity"`
	Confidence           Confidence          `json:"confidence" yaml:"confidence"`
	EstimatedValueImpact decimal.NullDecimal `json:"estimated_value_impact" yaml:"estimated_value_impact"`
	ResolutionStatus     ResolutionStatus    `json:"resolution_status" yaml:"resolution_status"`
	EventType            string              `json:"event_type" yaml:"event_type"`
	Category             Category            `json:"category,omitempty" yaml:"category,omitempty"`
	CreatedAt            time.Time           `json:"created_at" yaml:"created_at"`
}

// Validate checks that every enum on the signal is a known value.
func (s Signal) Validate() error {
	if !s.Severity.Valid() {
		return eris.Wrapf(ErrUnknownSeverity, "signal %s: %q", s.ID, s.Severity)
	}
	if !s.Confidence.Valid() {
		return eris.Wrapf(ErrUnknownConfidence, "signal %s: %q", s.ID, s.Confidence)
	}
	if !s.ResolutionStatus.Valid() {
		return eris.Wrapf(ErrUnknownStatus, "signal %s: %q", s.ID, s.ResolutionStatus)
	}
	if s.Category != "" && !s.Category.Valid() {
		return eris.Wrapf(ErrUnknownCategory, "signal %s: %q", s.ID, s.Category)
	}
	if s.EventType == "" {
		return eris.Errorf("model: signal %s has no event type", s.ID)
	}
	return nil
}
