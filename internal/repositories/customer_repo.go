package repositories

import "debtbook/internal/models"

// CustomerRepository defines the interface for customer data access.
// Customers are an aggregate root: their transactions are managed through the
// same repository. Every method is scoped by the owning user's ID; records
// belonging to another user are reported as ErrNotFound.
type CustomerRepository interface {
	GetAllByUser(userID string) ([]models.Customer, error)
	GetByID(userID, id string) (*models.Customer, error)
	Create(customer *models.Customer) error
	Update(customer *models.Customer) error
	Delete(userID, id string) error

	AddTransaction(userID, customerID string, txn *models.Transaction) error
	GetTransaction(userID, customerID, txnID string) (*models.Transaction, error)
	UpdateTransaction(userID string, txn *models.Transaction) error
	DeleteTransaction(userID, customerID, txnID string) error
}
