package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// ImpactLevel grades how much completing a task would improve the business.
type ImpactLevel string

// DifficultyLevel grades how hard a task is to complete.
type DifficultyLevel string

const (
	ImpactNone     ImpactLevel = "NONE"
	ImpactLow      ImpactLevel = "LOW"
	ImpactMedium   ImpactLevel = "MEDIUM"
	ImpactHigh     ImpactLevel = "HIGH"
	ImpactVeryHigh ImpactLevel = "VERY_HIGH"
)

const (
	DifficultyNone     DifficultyLevel = "NONE"
	DifficultyLow      DifficultyLevel = "LOW"
	DifficultyMedium   DifficultyLevel = "MEDIUM"
	DifficultyHigh     DifficultyLevel = "HIGH"
	DifficultyVeryHigh DifficultyLevel = "VERY_HIGH"
)

// ImpactLevels lists impact levels from NONE to VERY_HIGH.
var ImpactLevels = []ImpactLevel{ImpactNone, ImpactLow, ImpactMedium, ImpactHigh, ImpactVeryHigh}

// DifficultyLevels lists difficulty levels from NONE to VERY_HIGH.
var DifficultyLevels = []DifficultyLevel{DifficultyNone, DifficultyLow, DifficultyMedium, DifficultyHigh, DifficultyVeryHigh}

// EffortLabel is the coarse effort estimate attached to generated tasks.
type EffortLabel string

const (
	EffortMinimal  EffortLabel = "MINIMAL"
	EffortLow      EffortLabel = "LOW"
	EffortModerate EffortLabel = "MODERATE"
	EffortHigh     EffortLabel = "HIGH"
	EffortMajor    EffortLabel = "MAJOR"
)

// TaskStatus is the lifecycle state of an action item.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskCancelled  TaskStatus = "CANCELLED"
)

var (
	ErrUnknownImpact     = eris.New("model: unknown impact level")
	ErrUnknownDifficulty = eris.New("model: unknown difficulty level")
	ErrUnknownEffort     = eris.New("model: unknown effort label")
)

// Index returns the position of l in ImpactLevels, or -1 when unknown.
func (l ImpactLevel) Index() int {
	for i, v := range ImpactLevels {
		if v == l {
			return i
		}
	}
	return -1
}

// Index returns the position of l in DifficultyLevels, or -1 when unknown.
func (l DifficultyLevel) Index() int {
	for i, v := range DifficultyLevels {
		if v == l {
			return i
		}
	}
	return -1
}

// ParseImpactLevel parses an impact level case-insensitively.
func ParseImpactLevel(v string) (ImpactLevel, error) {
	l := ImpactLevel(strings.ToUpper(strings.TrimSpace(v)))
	if l.Index() < 0 {
		return "", eris.Wrapf(ErrUnknownImpact, "%q", v)
	}
	return l, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *ImpactLevel) UnmarshalText(b []byte) error {
	parsed, err := ParseImpactLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseDifficultyLevel parses a difficulty level case-insensitively.
func ParseDifficultyLevel(v string) (DifficultyLevel, error) {
	l := DifficultyLevel(strings.ToUpper(strings.TrimSpace(v)))
	if l.Index() < 0 {
		return "", eris.Wrapf(ErrUnknownDifficulty, "%q", v)
	}
	return l, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *DifficultyLevel) UnmarshalText(b []byte) error {
	parsed, err := ParseDifficultyLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Valid reports whether e is a known effort label.
func (e EffortLabel) Valid() bool {
	switch e {
	case EffortMinimal, EffortLow, EffortModerate, EffortHigh, EffortMajor:
		return true
	}
	return false
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *EffortLabel) UnmarshalText(b []byte) error {
	v := EffortLabel(strings.ToUpper(strings.TrimSpace(string(b))))
	if !v.Valid() {
		return eris.Wrapf(ErrUnknownEffort, "%q", string(b))
	}
	*e = v
	return nil
}

// Task is an action item. Its priority rank is never stored on the record;
// it is always derived from Impact and Difficulty. CompletedAt is set when
// a task reaches COMPLETED.
type Task struct {
	ID             string          `json:"id" yaml:"id"`
	Title          string          `json:"title" yaml:"title"`
	Category       Category        `json:"category" yaml:"category"`
	Impact         ImpactLevel     `json:"impact" yaml:"impact"`
	Difficulty     DifficultyLevel `json:"difficulty" yaml:"difficulty"`
	Effort         EffortLabel     `json:"effort,omitempty" yaml:"effort,omitempty"`
	EstimatedHours *float64        `json:"estimated_hours,omitempty" yaml:"estimated_hours,omitempty"`
	Value          decimal.Decimal `json:"value" yaml:"value"`
	Status         TaskStatus      `json:"status" yaml:"status"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}
