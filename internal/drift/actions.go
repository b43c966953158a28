package drift

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sells-group/readiness-engine/internal/model"
)

// ActionKind says what a recommended action points at.
type ActionKind string

const (
	ActionCategory  ActionKind = "category"
	ActionTask      ActionKind = "task"
	ActionDocuments ActionKind = "documents"
	ActionSignals   ActionKind = "signals"
)

// Action is one recommended next step.
type Action struct {
	Kind     ActionKind      `json:"kind"`
	Title    string          `json:"title"`
	Category model.Category  `json:"category,omitempty"`
	TaskID   string          `json:"task_id,omitempty"`
	Value    decimal.Decimal `json:"value"`
}

// RecommendActions builds the ordered action list: the two most-declined
// categories, up to three of the highest-value pending tasks in declining
// categories, then document and critical-signal reminders. At most
// MaxActions are returned.
func RecommendActions(changes []model.CategoryChange, pending []model.Task, staleDocs int, signals model.SignalsSummary) []Action {
	var out []Action

	declines := sortedDeclines(changes)
	declining := make(map[model.Category]bool, len(declines))
	for _, ch := range declines {
		declining[ch.Category] = true
	}
	for i, ch := range declines {
		if i == maxCategoryActions {
			break
		}
		out = append(out, Action{
			Kind:     ActionCategory,
			Title:    fmt.Sprintf("Review %s: score fell %.1f points", ch.Category.Label(), -ch.Delta*100),
			Category: ch.Category,
		})
	}

	var tasks []model.Task
	for _, t := range pending {
		if t.Status != "" && t.Status != model.TaskPending && t.Status != model.TaskInProgress {
			continue
		}
		if declining[t.Category] {
			tasks = append(tasks, t)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].Value.Equal(tasks[j].Value) {
			return tasks[i].Value.GreaterThan(tasks[j].Value)
		}
		return tasks[i].ID < tasks[j].ID
	})
	for i, t := range tasks {
		if i == maxTaskActions {
			break
		}
		out = append(out, Action{
			Kind:     ActionTask,
			Title:    t.Title,
			Category: t.Category,
			TaskID:   t.ID,
			Value:    t.Value,
		})
	}

	if staleDocs > 0 {
		noun := "documents"
		if staleDocs == 1 {
			noun = "document"
		}
		out = append(out, Action{
			Kind:  ActionDocuments,
			Title: fmt.Sprintf("Refresh %d stale %s in the data room", staleDocs, noun),
		})
	}
	if signals.Critical > 0 {
		out = append(out, Action{
			Kind:  ActionSignals,
			Title: fmt.Sprintf("Address %d critical signals raised this period", signals.Critical),
		})
	}

	if len(out) > MaxActions {
		out = out[:MaxActions]
	}
	return out
}
