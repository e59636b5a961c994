package models

import "time"

// Status is the wire value of an order or item status.
type Status string

const (
	StatusPending   Status = "pendiente"
	StatusPreparing Status = "preparando"
	StatusReady     Status = "lista"
	StatusDelivered Status = "entregada"
)

type Order struct {
	ID        int64     `json:"id"`
	Table     string    `json:"mesa"`
	Status    Status    `json:"estado"`
	CreatedAt time.Time `json:"fecha_creacion"`
	Items     []Item    `json:"items"`
}

type Item struct {
	ID     int64  `json:"id"`
	Name   string `json:"nombre"`
	Status Status `json:"estado"`
}

// Clone returns a copy that shares no item storage with o.
func (o Order) Clone() Order {
	c := o
	if o.Items != nil {
		c.Items = make([]Item, len(o.Items))
		copy(c.Items, o.Items)
	}
	return c
}

// WithStatus returns a copy of o with the order and every item at s.
func (o Order) WithStatus(s Status) Order {
	c := o.Clone()
	c.Status = s
	for i := range c.Items {
		c.Items[i].Status = s
	}
	return c
}

// Outcome of a settled mutation.
type Outcome string

const (
	OutcomeConfirmed  Outcome = "confirmed"
	OutcomeRolledBack Outcome = "rolled_back"
)

// StatusEvent is emitted once per settled mutation (journal, brokers, websocket alerts).
type StatusEvent struct {
	MutationID string    `json:"mutation_id"`
	OrderID    int64     `json:"order_id"`
	Table      string    `json:"mesa"`
	OldStatus  Status    `json:"old_status"`
	NewStatus  Status    `json:"new_status"`
	Outcome    Outcome   `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	ChangedBy  string    `json:"changed_by"`
	Timestamp  time.Time `json:"timestamp"`
}

// ---- backend wire types ----

type StatusChangeRequest struct {
	Status Status `json:"estado"`
}

type StatusChangeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *Order `json:"data"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}

type User struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"nombre"`
	Email string `json:"email,omitempty"`
	Role  string `json:"rol"`
}
