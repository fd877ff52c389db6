package models

import "time"

// Transaction represents a single line item in a customer's ledger.
// IDs are unique only within the owning customer, so the table uses a
// composite primary key. Seq is a per-customer monotonic counter; listing
// orders by Seq descending, which realizes the most-recent-first invariant.
type Transaction struct {
	CustomerID  string    `json:"customer_id" gorm:"primaryKey;type:varchar(36)"`
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ProductName string    `json:"product_name" validate:"required,min=1,max=100"`
	Quantity    int       `json:"quantity" validate:"required,gt=0"`
	Amount      float64   `json:"amount" validate:"required,gt=0"` // Unit price
	IsPaid      bool      `json:"is_paid"`
	Date        time.Time `json:"date"`
	Seq         int64     `json:"-" gorm:"index"`
}

// Total returns quantity times unit price.
func (t *Transaction) Total() float64 {
	return float64(t.Quantity) * t.Amount
}
