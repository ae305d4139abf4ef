package domain

import "time"

// Workflow is a reusable listing template. Batch generation derives one
// QueueRecord per image set from it, picking a random description variant.
type Workflow struct {
	ID             int64
	Name           string
	Title          string
	Descriptions   []string
	Price          float64
	Category       string
	Condition      Condition
	Location       string
	DeliveryMethod DeliveryMethod
	Groups         []string
	Boost          bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
