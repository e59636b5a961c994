// Package rules holds the order status progression used by the board.
//
// Progression is strictly linear and forward-only:
//
//	pendiente -> preparando -> lista -> entregada
//
// Every action moves an order exactly one step.
package rules

import (
	"errors"
	"fmt"

	"kitchen-sync/internal/microservices/board/models"
)

type Action string

const (
	ActionStartPreparing Action = "start_preparing"
	ActionMarkReady      Action = "mark_ready"
	ActionMarkDelivered  Action = "mark_delivered"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// InvalidTransitionError carries the rejected pair for diagnostics.
type InvalidTransitionError struct {
	Current models.Status
	Action  Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %q from %q", e.Action, e.Current)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

var progression = []models.Status{
	models.StatusPending,
	models.StatusPreparing,
	models.StatusReady,
	models.StatusDelivered,
}

// step maps the action to the status it leaves.
var step = map[Action]models.Status{
	ActionStartPreparing: models.StatusPending,
	ActionMarkReady:      models.StatusPreparing,
	ActionMarkDelivered:  models.StatusReady,
}

// Rank returns the position of s in the progression, -1 when unknown.
func Rank(s models.Status) int {
	for i, p := range progression {
		if p == s {
			return i
		}
	}
	return -1
}

// NextStatus validates action against current and returns the status it leads to.
func NextStatus(current models.Status, action Action) (models.Status, error) {
	from, ok := step[action]
	if !ok || from != current {
		return "", &InvalidTransitionError{Current: current, Action: action}
	}
	return progression[Rank(from)+1], nil
}

// ActionFor returns the single legal action for current, if any.
func ActionFor(current models.Status) (Action, bool) {
	for a, from := range step {
		if from == current {
			return a, true
		}
	}
	return "", false
}

func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := step[a]; !ok {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

// Min returns the least progressed of the given statuses. Unknown statuses are
// ignored; the second result is false when none is known.
func Min(statuses ...models.Status) (models.Status, bool) {
	best := -1
	for _, s := range statuses {
		r := Rank(s)
		if r < 0 {
			continue
		}
		if best < 0 || r < best {
			best = r
		}
	}
	if best < 0 {
		return "", false
	}
	return progression[best], true
}
