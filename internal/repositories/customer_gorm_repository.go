package repositories

import (
	"errors"
	"fmt"

	"debtbook/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMCustomerRepository is a GORM implementation of CustomerRepository.
type GORMCustomerRepository struct {
	db *gorm.DB
}

// NewGORMCustomerRepository creates a new instance of GORMCustomerRepository.
func NewGORMCustomerRepository(db *gorm.DB) *GORMCustomerRepository {
	return &GORMCustomerRepository{
		db: db,
	}
}

// transactionsNewestFirst orders preloaded transactions most-recent-first.
func transactionsNewestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("seq DESC")
}

// GetAllByUser retrieves all customers owned by the user, each with its
// transactions ordered most-recent-first.
func (r *GORMCustomerRepository) GetAllByUser(userID string) ([]models.Customer, error) {
	var customers []models.Customer
	err := r.db.Preload("Transactions", transactionsNewestFirst).
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&customers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get customers for user %s: %w", userID, err)
	}
	return customers, nil
}

// GetByID retrieves a single customer owned by the user.
func (r *GORMCustomerRepository) GetByID(userID, id string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.Preload("Transactions", transactionsNewestFirst).
		First(&customer, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customer %s: %w", id, err)
	}
	return &customer, nil
}

// Create creates a new customer in the database.
func (r *GORMCustomerRepository) Create(customer *models.Customer) error {
	if customer.ID == "" {
		customer.ID = uuid.New().String()
	}
	if err := r.db.Create(customer).Error; err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

// Update persists changes to an existing customer. Associations are omitted;
// transactions are mutated only through the transaction methods below.
func (r *GORMCustomerRepository) Update(customer *models.Customer) error {
	res := r.db.Omit(clause.Associations).Save(customer)
	if res.Error != nil {
		return fmt.Errorf("failed to update customer %s: %w", customer.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a customer and all of its transactions in one database
// transaction.
func (r *GORMCustomerRepository) Delete(userID, id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := tx.First(&customer, "id = ? AND user_id = ?", id, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to look up customer %s for deletion: %w", id, err)
		}
		if err := tx.Delete(&models.Transaction{}, "customer_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete transactions for customer %s: %w", id, err)
		}
		if err := tx.Delete(&customer).Error; err != nil {
			return fmt.Errorf("failed to delete customer %s: %w", id, err)
		}
		return nil
	})
}

// AddTransaction inserts a transaction at the head of the customer's sequence
// by assigning the next per-customer Seq value.
func (r *GORMCustomerRepository) AddTransaction(userID, customerID string, txn *models.Transaction) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := tx.First(&customer, "id = ? AND user_id = ?", customerID, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to look up customer %s: %w", customerID, err)
		}

		var maxSeq int64
		err := tx.Model(&models.Transaction{}).
			Where("customer_id = ?", customerID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq).Error
		if err != nil {
			return fmt.Errorf("failed to compute next seq for customer %s: %w", customerID, err)
		}

		if txn.ID == "" {
			txn.ID = uuid.New().String()
		}
		txn.CustomerID = customerID
		txn.Seq = maxSeq + 1

		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}
		return nil
	})
}

// GetTransaction retrieves a single transaction within a customer owned by the
// user.
func (r *GORMCustomerRepository) GetTransaction(userID, customerID, txnID string) (*models.Transaction, error) {
	if err := r.checkOwnership(userID, customerID); err != nil {
		return nil, err
	}
	var txn models.Transaction
	err := r.db.First(&txn, "customer_id = ? AND id = ?", customerID, txnID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction %s: %w", txnID, err)
	}
	return &txn, nil
}

// UpdateTransaction persists the mutable fields of a transaction, including
// zero values such as is_paid=false.
func (r *GORMCustomerRepository) UpdateTransaction(userID string, txn *models.Transaction) error {
	if err := r.checkOwnership(userID, txn.CustomerID); err != nil {
		return err
	}
	res := r.db.Model(&models.Transaction{}).
		Where("customer_id = ? AND id = ?", txn.CustomerID, txn.ID).
		Select("product_name", "quantity", "amount", "is_paid", "date").
		Updates(txn)
	if res.Error != nil {
		return fmt.Errorf("failed to update transaction %s: %w", txn.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTransaction removes a single transaction from a customer's sequence.
func (r *GORMCustomerRepository) DeleteTransaction(userID, customerID, txnID string) error {
	if err := r.checkOwnership(userID, customerID); err != nil {
		return err
	}
	res := r.db.Delete(&models.Transaction{}, "customer_id = ? AND id = ?", customerID, txnID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", txnID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GORMCustomerRepository) checkOwnership(userID, customerID string) error {
	var count int64
	err := r.db.Model(&models.Customer{}).
		Where("id = ? AND user_id = ?", customerID, userID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check customer %s: %w", customerID, err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}
