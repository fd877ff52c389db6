package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"debtbook/internal/models"
	"debtbook/internal/repositories"
)

// Publisher is the event-publishing surface the ledger needs. It is satisfied
// by *rabbitmq.Client; tests pass nil or a mock.
type Publisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// TransactionInput carries the caller-supplied fields of a new transaction.
type TransactionInput struct {
	ProductName string
	Quantity    int
	Price       float64
	Date        time.Time
}

// LedgerService handles business logic for customers and their transactions.
// Operations touching one user's ledger are serialized behind a per-user
// mutex, so concurrent callers cannot interleave read-modify-write cycles on
// the same data.
type LedgerService struct {
	repo      repositories.CustomerRepository
	mqClient  Publisher
	userLocks sync.Map // user ID -> *sync.Mutex
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(repo repositories.CustomerRepository, mqClient Publisher) *LedgerService {
	return &LedgerService{
		repo:     repo,
		mqClient: mqClient,
	}
}

// GetCustomers retrieves all of the user's customers with computed totals,
// transactions most-recent-first.
func (s *LedgerService) GetCustomers(userID string) ([]models.Customer, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	customers, err := s.repo.GetAllByUser(userID)
	if err != nil {
		return nil, err
	}
	for i := range customers {
		customers[i].ComputeTotals()
	}
	return customers, nil
}

// AddCustomer creates a new customer with an empty transaction list.
func (s *LedgerService) AddCustomer(userID, name string) (*models.Customer, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	customer := &models.Customer{
		UserID:       userID,
		Name:         name,
		Transactions: []models.Transaction{},
	}
	if err := s.repo.Create(customer); err != nil {
		return nil, fmt.Errorf("failed to add customer: %w", err)
	}

	s.publish("ledger.customer.created", map[string]interface{}{
		"userID":     userID,
		"customerID": customer.ID,
		"name":       customer.Name,
	})
	return customer, nil
}

// RenameCustomer changes a customer's name.
func (s *LedgerService) RenameCustomer(userID, customerID, newName string) (*models.Customer, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	customer, err := s.getCustomer(userID, customerID)
	if err != nil {
		return nil, err
	}
	customer.Name = newName
	if err := s.repo.Update(customer); err != nil {
		return nil, fmt.Errorf("failed to rename customer %s: %w", customerID, err)
	}
	customer.ComputeTotals()

	s.publish("ledger.customer.renamed", map[string]interface{}{
		"userID":     userID,
		"customerID": customerID,
		"name":       newName,
	})
	return customer, nil
}

// DeleteCustomer removes a customer and all of its transactions. Deleting an
// absent customer is a silent no-op.
func (s *LedgerService) DeleteCustomer(userID, customerID string) error {
	unlock := s.lockUser(userID)
	defer unlock()

	if err := s.repo.Delete(userID, customerID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete customer %s: %w", customerID, err)
	}

	s.publish("ledger.customer.deleted", map[string]interface{}{
		"userID":     userID,
		"customerID": customerID,
	})
	return nil
}

// AddTransaction records a new transaction at the head of the customer's
// sequence.
func (s *LedgerService) AddTransaction(userID, customerID string, input TransactionInput) (*models.Transaction, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	if _, err := s.getCustomer(userID, customerID); err != nil {
		return nil, err
	}

	date := input.Date
	if date.IsZero() {
		date = time.Now()
	}
	txn := &models.Transaction{
		ProductName: input.ProductName,
		Quantity:    input.Quantity,
		Amount:      input.Price,
		IsPaid:      false,
		Date:        date,
	}
	if err := s.repo.AddTransaction(userID, customerID, txn); err != nil {
		return nil, fmt.Errorf("failed to add transaction: %w", err)
	}

	s.publish("ledger.transaction.added", map[string]interface{}{
		"userID":        userID,
		"customerID":    customerID,
		"transactionID": txn.ID,
		"total":         txn.Total(),
	})
	return txn, nil
}

// ToggleTransactionPaid flips a transaction's paid flag and returns the
// updated record. Toggling twice restores the original value.
func (s *LedgerService) ToggleTransactionPaid(userID, customerID, txnID string) (*models.Transaction, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	if _, err := s.getCustomer(userID, customerID); err != nil {
		return nil, err
	}
	txn, err := s.repo.GetTransaction(userID, customerID, txnID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	txn.IsPaid = !txn.IsPaid
	if err := s.repo.UpdateTransaction(userID, txn); err != nil {
		return nil, fmt.Errorf("failed to update transaction %s: %w", txnID, err)
	}

	s.publish("ledger.transaction.toggled", map[string]interface{}{
		"userID":        userID,
		"customerID":    customerID,
		"transactionID": txnID,
		"isPaid":        txn.IsPaid,
	})
	return txn, nil
}

// DeleteTransaction removes a single transaction.
func (s *LedgerService) DeleteTransaction(userID, customerID, txnID string) error {
	unlock := s.lockUser(userID)
	defer unlock()

	if _, err := s.getCustomer(userID, customerID); err != nil {
		return err
	}
	if err := s.repo.DeleteTransaction(userID, customerID, txnID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrTransactionNotFound
		}
		return fmt.Errorf("failed to delete transaction %s: %w", txnID, err)
	}

	s.publish("ledger.transaction.deleted", map[string]interface{}{
		"userID":        userID,
		"customerID":    customerID,
		"transactionID": txnID,
	})
	return nil
}

func (s *LedgerService) getCustomer(userID, customerID string) (*models.Customer, error) {
	customer, err := s.repo.GetByID(userID, customerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return customer, nil
}

// lockUser serializes access to one user's ledger. The mutex is created
// lazily and kept for the lifetime of the process.
func (s *LedgerService) lockUser(userID string) func() {
	v, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// publish sends a ledger event to the message broker. Failures are logged,
// never propagated; the mutation has already been persisted.
func (s *LedgerService) publish(routingKey string, payload map[string]interface{}) {
	if s.mqClient == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", routingKey, err)
		return
	}
	if err := s.mqClient.Publish("ledger", routingKey, body); err != nil {
		log.Printf("Warning: Failed to publish %s event: %v", routingKey, err)
	}
}
