package models

import "gorm.io/gorm"

// Customer represents a customer in a user's debt book. Customers belong to
// exactly one user and carry their transactions most-recent-first.
type Customer struct {
	ID           string        `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	UserID       string        `json:"user_id" gorm:"index;type:varchar(36)"`
	Name         string        `json:"name" validate:"required,min=1,max=100"`
	Transactions []Transaction `json:"transactions" gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE"`
	TotalDue     float64       `json:"total_due" gorm:"-"`
	TotalSpent   float64       `json:"total_spent" gorm:"-"`
	gorm.Model                 // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}

// ComputeTotals fills TotalDue and TotalSpent from the customer's transactions.
// TotalDue sums quantity*amount over unpaid transactions only.
func (c *Customer) ComputeTotals() {
	c.TotalDue = 0
	c.TotalSpent = 0
	for _, t := range c.Transactions {
		total := float64(t.Quantity) * t.Amount
		c.TotalSpent += total
		if !t.IsPaid {
			c.TotalDue += total
		}
	}
}
