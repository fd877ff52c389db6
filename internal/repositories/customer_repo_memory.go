package repositories

import (
	"sync"

	"debtbook/internal/models"

	"github.com/google/uuid"
)

// MemoryCustomerRepository is an in-memory implementation of
// CustomerRepository. Transactions are kept as a slice with the newest entry
// at the head, so the stored order is already the serving order.
type MemoryCustomerRepository struct {
	customers map[string]*models.Customer
	order     []string // customer IDs in insertion order
	mu        sync.RWMutex
}

// NewMemoryCustomerRepository creates a new instance of
// MemoryCustomerRepository.
func NewMemoryCustomerRepository() *MemoryCustomerRepository {
	return &MemoryCustomerRepository{
		customers: make(map[string]*models.Customer),
	}
}

// cloneCustomer returns a deep copy so callers never alias stored state.
func cloneCustomer(c *models.Customer) *models.Customer {
	clone := *c
	clone.Transactions = make([]models.Transaction, len(c.Transactions))
	copy(clone.Transactions, c.Transactions)
	return &clone
}

// GetAllByUser returns copies of all customers owned by the user, in
// insertion order.
func (r *MemoryCustomerRepository) GetAllByUser(userID string) ([]models.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	customers := make([]models.Customer, 0)
	for _, id := range r.order {
		c, ok := r.customers[id]
		if !ok || c.UserID != userID {
			continue
		}
		customers = append(customers, *cloneCustomer(c))
	}
	return customers, nil
}

// GetByID returns a copy of a single customer owned by the user.
func (r *MemoryCustomerRepository) GetByID(userID, id string) (*models.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, err := r.lookup(userID, id)
	if err != nil {
		return nil, err
	}
	return cloneCustomer(c), nil
}

// Create adds a new customer.
func (r *MemoryCustomerRepository) Create(customer *models.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if customer.ID == "" {
		customer.ID = uuid.New().String()
	}
	r.customers[customer.ID] = cloneCustomer(customer)
	r.order = append(r.order, customer.ID)
	return nil
}

// Update replaces the customer's own fields, leaving its stored transactions
// untouched.
func (r *MemoryCustomerRepository) Update(customer *models.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.lookup(customer.UserID, customer.ID)
	if err != nil {
		return err
	}
	existing.Name = customer.Name
	return nil
}

// Delete removes a customer and all of its transactions.
func (r *MemoryCustomerRepository) Delete(userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.lookup(userID, id); err != nil {
		return err
	}
	delete(r.customers, id)
	for i, cid := range r.order {
		if cid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// AddTransaction prepends a transaction to the customer's sequence.
func (r *MemoryCustomerRepository) AddTransaction(userID, customerID string, txn *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.lookup(userID, customerID)
	if err != nil {
		return err
	}
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	txn.CustomerID = customerID
	var maxSeq int64
	for _, t := range c.Transactions {
		if t.Seq > maxSeq {
			maxSeq = t.Seq
		}
	}
	txn.Seq = maxSeq + 1
	c.Transactions = append([]models.Transaction{*txn}, c.Transactions...)
	return nil
}

// GetTransaction returns a copy of a single transaction.
func (r *MemoryCustomerRepository) GetTransaction(userID, customerID, txnID string) (*models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, err := r.lookup(userID, customerID)
	if err != nil {
		return nil, err
	}
	for _, t := range c.Transactions {
		if t.ID == txnID {
			txn := t
			return &txn, nil
		}
	}
	return nil, ErrNotFound
}

// UpdateTransaction replaces the mutable fields of a stored transaction.
func (r *MemoryCustomerRepository) UpdateTransaction(userID string, txn *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.lookup(userID, txn.CustomerID)
	if err != nil {
		return err
	}
	for i := range c.Transactions {
		if c.Transactions[i].ID == txn.ID {
			seq := c.Transactions[i].Seq
			c.Transactions[i] = *txn
			c.Transactions[i].Seq = seq
			return nil
		}
	}
	return ErrNotFound
}

// DeleteTransaction removes a single transaction from a customer's sequence.
func (r *MemoryCustomerRepository) DeleteTransaction(userID, customerID, txnID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.lookup(userID, customerID)
	if err != nil {
		return err
	}
	for i := range c.Transactions {
		if c.Transactions[i].ID == txnID {
			c.Transactions = append(c.Transactions[:i], c.Transactions[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryCustomerRepository) lookup(userID, id string) (*models.Customer, error) {
	c, ok := r.customers[id]
	if !ok || c.UserID != userID {
		return nil, ErrNotFound
	}
	return c, nil
}
