package handlers

import (
	"fmt"
	"log"
	"time"

	"debtbook/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// CustomerHandler handles HTTP requests for customers and their transactions.
type CustomerHandler struct {
	service  *services.LedgerService
	validate *validator.Validate
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(service *services.LedgerService) *CustomerHandler {
	return &CustomerHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the customer routes. Mount these behind the auth
// middleware; every handler reads the resolved user ID from the context.
func (h *CustomerHandler) RegisterRoutes(router fiber.Router) {
	customerRoutes := router.Group("/customers")
	customerRoutes.Get("/", h.HandleGetCustomers)
	customerRoutes.Post("/", h.HandleAddCustomer)
	customerRoutes.Patch("/:id", h.HandleRenameCustomer)
	customerRoutes.Delete("/:id", h.HandleDeleteCustomer)
	customerRoutes.Post("/:id/transactions", h.HandleAddTransaction)
	customerRoutes.Patch("/:id/transactions/:txId/paid", h.HandleToggleTransactionPaid)
	customerRoutes.Delete("/:id/transactions/:txId", h.HandleDeleteTransaction)
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

// HandleGetCustomers returns the user's customers with computed totals.
func (h *CustomerHandler) HandleGetCustomers(c *fiber.Ctx) error {
	customers, err := h.service.GetCustomers(userID(c))
	if err != nil {
		log.Printf("Error getting customers: %v", err)
		return errorJSON(c, "Could not retrieve customers", err)
	}
	return c.JSON(customers)
}

// CustomerRequest represents the request body for creating or renaming a
// customer.
type CustomerRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// HandleAddCustomer creates a new customer with an empty transaction list.
func (h *CustomerHandler) HandleAddCustomer(c *fiber.Ctx) error {
	var req CustomerRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing add customer request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if errs := h.validateStruct(req); errs != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errs,
		})
	}

	customer, err := h.service.AddCustomer(userID(c), req.Name)
	if err != nil {
		log.Printf("Error adding customer: %v", err)
		return errorJSON(c, "Could not add customer", err)
	}
	return c.Status(fiber.StatusCreated).JSON(customer)
}

// HandleRenameCustomer changes a customer's name.
func (h *CustomerHandler) HandleRenameCustomer(c *fiber.Ctx) error {
	var req CustomerRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing rename customer request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if errs := h.validateStruct(req); errs != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errs,
		})
	}

	customer, err := h.service.RenameCustomer(userID(c), c.Params("id"), req.Name)
	if err != nil {
		log.Printf("Error renaming customer %s: %v", c.Params("id"), err)
		return errorJSON(c, "Could not rename customer", err)
	}
	return c.JSON(customer)
}

// HandleDeleteCustomer deletes a customer and all of its transactions.
// Deleting an absent customer still reports success.
func (h *CustomerHandler) HandleDeleteCustomer(c *fiber.Ctx) error {
	if err := h.service.DeleteCustomer(userID(c), c.Params("id")); err != nil {
		log.Printf("Error deleting customer %s: %v", c.Params("id"), err)
		return errorJSON(c, "Could not delete customer", err)
	}
	return c.JSON(fiber.Map{
		"message": "Customer deleted successfully",
	})
}

// TransactionRequest represents the request body for a new transaction.
type TransactionRequest struct {
	ProductName string    `json:"product_name" validate:"required,min=1,max=100"`
	Quantity    int       `json:"quantity" validate:"required,gt=0"`
	Price       float64   `json:"price" validate:"required,gt=0"`
	Date        time.Time `json:"date"`
}

// HandleAddTransaction records a new transaction at the head of the
// customer's sequence.
func (h *CustomerHandler) HandleAddTransaction(c *fiber.Ctx) error {
	var req TransactionRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing add transaction request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if errs := h.validateStruct(req); errs != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errs,
		})
	}

	txn, err := h.service.AddTransaction(userID(c), c.Params("id"), services.TransactionInput{
		ProductName: req.ProductName,
		Quantity:    req.Quantity,
		Price:       req.Price,
		Date:        req.Date,
	})
	if err != nil {
		log.Printf("Error adding transaction to customer %s: %v", c.Params("id"), err)
		return errorJSON(c, "Could not add transaction", err)
	}
	return c.Status(fiber.StatusCreated).JSON(txn)
}

// HandleToggleTransactionPaid flips a transaction's paid flag.
func (h *CustomerHandler) HandleToggleTransactionPaid(c *fiber.Ctx) error {
	txn, err := h.service.ToggleTransactionPaid(userID(c), c.Params("id"), c.Params("txId"))
	if err != nil {
		log.Printf("Error toggling transaction %s: %v", c.Params("txId"), err)
		return errorJSON(c, "Could not toggle transaction", err)
	}
	return c.JSON(txn)
}

// HandleDeleteTransaction removes a single transaction.
func (h *CustomerHandler) HandleDeleteTransaction(c *fiber.Ctx) error {
	if err := h.service.DeleteTransaction(userID(c), c.Params("id"), c.Params("txId")); err != nil {
		log.Printf("Error deleting transaction %s: %v", c.Params("txId"), err)
		return errorJSON(c, "Could not delete transaction", err)
	}
	return c.JSON(fiber.Map{
		"message": "Transaction deleted successfully",
	})
}

func (h *CustomerHandler) validateStruct(s interface{}) map[string]string {
	if err := h.validate.Struct(s); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		errorMessages := make(map[string]string)
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return errorMessages
	}
	return nil
}
