// Package cart implements the cart and basket line stores.
//
// State changes are pure functions over an ordered slice of lines that return
// the new lines together with the effects the caller must run. Store executes
// those effects against durable storage and a notifier.
package cart

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-funnel/internal/notify"
)

// Item is a purchasable catalog record that can sit on a line.
type Item interface {
	ItemID() string
	ItemName() string
	UnitPrice() decimal.Decimal
}

// Line is one item together with its quantity. Quantity is always at least 1.
type Line[T Item] struct {
	Item     T
	Quantity int
}

// Total returns unit price times quantity.
func (l Line[T]) Total() decimal.Decimal {
	return l.Item.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// InvalidQuantityError is returned when a quantity below zero is requested.
type InvalidQuantityError struct {
	ID       string
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for item %s", e.Quantity, e.ID)
}

// Effect is a side effect requested by a transition.
type Effect interface {
	effect()
}

// Persist asks for the full collection to be written to durable storage.
type Persist struct{}

// Notify asks for a user notification.
type Notify struct {
	notify.Notification
}

func (Persist) effect() {}
func (Notify) effect()  {}

// State is the ordered line collection of one named store.
type State[T Item] struct {
	Name  string
	Lines []Line[T]
}

func (s State[T]) index(id string) int {
	for i, l := range s.Lines {
		if l.Item.ItemID() == id {
			return i
		}
	}
	return -1
}

func (s State[T]) with(lines []Line[T]) State[T] {
	return State[T]{Name: s.Name, Lines: lines}
}

func clone[T Item](lines []Line[T]) []Line[T] {
	return append(make([]Line[T], 0, len(lines)+1), lines...)
}

// Add appends item as a new line, or increments the quantity of the line that
// already holds the same id by exactly one.
func Add[T Item](s State[T], item T) (State[T], []Effect) {
	lines := clone(s.Lines)
	if i := s.index(item.ItemID()); i >= 0 {
		lines[i].Quantity++
	} else {
		lines = append(lines, Line[T]{Item: item, Quantity: 1})
	}
	return s.with(lines), []Effect{
		Persist{},
		Notify{notify.Notification{
			Level:   notify.LevelSuccess,
			Message: fmt.Sprintf("%s added to %s", item.ItemName(), s.Name),
		}},
	}
}

// SetQuantity sets the quantity of the line holding id. Zero removes the
// line, a negative value is rejected and an absent id is a no-op.
func SetQuantity[T Item](s State[T], id string, n int) (State[T], []Effect, error) {
	if n < 0 {
		return s, nil, &InvalidQuantityError{ID: id, Quantity: n}
	}
	if n == 0 {
		next, effects := Remove(s, id)
		return next, effects, nil
	}
	i := s.index(id)
	if i < 0 || s.Lines[i].Quantity == n {
		return s, nil, nil
	}
	lines := clone(s.Lines)
	lines[i].Quantity = n
	return s.with(lines), []Effect{Persist{}}, nil
}

// Remove drops the line holding id. Removing an absent id is a no-op.
func Remove[T Item](s State[T], id string) (State[T], []Effect) {
	i := s.index(id)
	if i < 0 {
		return s, nil
	}
	name := s.Lines[i].Item.ItemName()
	lines := clone(s.Lines[:i])
	lines = append(lines, s.Lines[i+1:]...)
	return s.with(lines), []Effect{
		Persist{},
		Notify{notify.Notification{
			Level:   notify.LevelInfo,
			Message: fmt.Sprintf("%s removed from %s", name, s.Name),
		}},
	}
}

// Clear empties the collection.
func Clear[T Item](s State[T]) (State[T], []Effect) {
	return s.with([]Line[T]{}), []Effect{Persist{}}
}

// normalize coalesces duplicate ids and drops non-positive quantities,
// keeping the position of the first occurrence. Snapshots written by older
// clients may violate both rules.
func normalize[T Item](lines []Line[T]) []Line[T] {
	out := make([]Line[T], 0, len(lines))
	pos := make(map[string]int, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 {
			continue
		}
		if i, ok := pos[l.Item.ItemID()]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		pos[l.Item.ItemID()] = len(out)
		out = append(out, l)
	}
	return out
}
