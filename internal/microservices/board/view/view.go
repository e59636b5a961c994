// Package view turns store snapshots into what the kitchen screen draws.
package view

import (
	"time"

	"kitchen-sync/internal/microservices/board/models"
	"kitchen-sync/internal/microservices/board/rules"
)

type Button struct {
	Action rules.Action `json:"action"`
	Label  string       `json:"label"`
}

var labels = map[rules.Action]string{
	rules.ActionStartPreparing: "Empezar Preparación",
	rules.ActionMarkReady:      "Marcar como Lista",
	rules.ActionMarkDelivered:  "Marcar como Entregada",
}

type ItemView struct {
	ID     int64         `json:"id"`
	Name   string        `json:"nombre"`
	Status models.Status `json:"estado"`
	Class  string        `json:"class"`
}

type Card struct {
	ID        int64         `json:"id"`
	Table     string        `json:"mesa"`
	Status    models.Status `json:"estado"`
	CreatedAt time.Time     `json:"fecha_creacion"`
	Class     string        `json:"class"`
	Items     []ItemView    `json:"items"`
	Button    *Button       `json:"button,omitempty"`
	// Pending is true while a status change awaits the backend; the button is
	// shown disabled.
	Pending bool `json:"pending"`
}

type Board struct {
	Cards []Card `json:"cards"`
}

func CardClass(s models.Status) string { return "order-card " + string(s) }

func ItemClass(s models.Status) string { return "order-item item-status-" + string(s) }

// ActionButton returns the only action offered for an order in status s.
// Delivered orders get none.
func ActionButton(s models.Status) (Button, bool) {
	a, ok := rules.ActionFor(s)
	if !ok {
		return Button{}, false
	}
	return Button{Action: a, Label: labels[a]}, true
}

// Project builds the board in store order. pending may be nil.
func Project(orders []models.Order, pending func(orderID int64) bool) Board {
	b := Board{Cards: make([]Card, 0, len(orders))}
	for _, o := range orders {
		b.Cards = append(b.Cards, card(o, pending != nil && pending(o.ID)))
	}
	return b
}

// ForTable keeps only the orders of one table. An empty table keeps all.
func ForTable(orders []models.Order, table string) []models.Order {
	if table == "" {
		return orders
	}
	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if o.Table == table {
			out = append(out, o)
		}
	}
	return out
}

func card(o models.Order, pending bool) Card {
	c := Card{
		ID:        o.ID,
		Table:     o.Table,
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
		Class:     CardClass(o.Status),
		Items:     make([]ItemView, 0, len(o.Items)),
		Pending:   pending,
	}
	for _, it := range o.Items {
		c.Items = append(c.Items, ItemView{ID: it.ID, Name: it.Name, Status: it.Status, Class: ItemClass(it.Status)})
	}
	if btn, ok := ActionButton(o.Status); ok {
		c.Button = &btn
	}
	return c
}
