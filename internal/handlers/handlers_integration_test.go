package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"debtbook/internal/handlers"
	"debtbook/internal/middleware"
	"debtbook/internal/models"
	"debtbook/internal/repositories"
	"debtbook/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupApp sets up a Fiber app for testing with in-memory SQLite and all
// handlers/services. Each test gets its own named shared-cache database so
// parallel tests do not see each other's data.
func setupApp(dbName string) (*fiber.App, *services.AuthService, error) {
	// Configure Viper for testing
	viper.SetDefault("JWT_SECRET", "test_jwt_secret")
	viper.AutomaticEnv()
	jwtSecret := viper.GetString("JWT_SECRET")

	// Initialize in-memory SQLite database
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", dbName)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to in-memory database: %w", err)
	}

	// Auto-migrate models
	err = db.AutoMigrate(&models.User{}, &models.Customer{}, &models.Transaction{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	// Initialize Repositories
	userRepo := repositories.NewGORMUserRepository(db)
	customerRepo := repositories.NewGORMCustomerRepository(db)

	// Initialize Services (nil publisher: no broker in tests)
	authService := services.NewAuthService(userRepo, jwtSecret)
	ledgerService := services.NewLedgerService(customerRepo, nil)

	// Initialize Handlers
	authHandler := handlers.NewAuthHandler(authService)
	customerHandler := handlers.NewCustomerHandler(ledgerService)

	app := fiber.New()

	// API Routes
	apiV1 := app.Group("/api/v1")

	// Authentication routes (public)
	authHandler.RegisterRoutes(apiV1)

	// Protected routes (require a valid session token)
	protectedRoutes := apiV1.Group("", middleware.AuthRequired(authService))
	authHandler.RegisterAccountRoutes(protectedRoutes)
	customerHandler.RegisterRoutes(protectedRoutes)

	return app, authService, nil
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

// doJSON performs a request with an optional bearer token and JSON payload,
// decoding the response body into out when out is non-nil.
func doJSON(t *testing.T, app *fiber.App, method, path, token string, payload interface{}, out interface{}) int {
	t.Helper()

	var body io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		assert.NoError(t, err)
		body = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1) // -1 for no timeout
	assert.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func registerAndLogin(t *testing.T, app *fiber.App, username, password string) string {
	t.Helper()

	var registerResp map[string]string
	status := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username":          username,
		"password":          password,
		"recovery_question": "Favorite color?",
		"recovery_answer":   "blue",
	}, &registerResp)
	assert.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, registerResp["token"])

	var loginResp map[string]string
	status = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	}, &loginResp)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, loginResp["token"])
	return loginResp["token"]
}

func TestAuthRegisterAndLogin(t *testing.T) {
	app, authService, err := setupApp("auth_test")
	assert.NoError(t, err)

	var registerResp map[string]string
	status := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username":          "testuser",
		"password":          "password123",
		"recovery_question": "First pet?",
		"recovery_answer":   "Rex",
	}, &registerResp)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "User registered successfully", registerResp["message"])
	assert.Equal(t, "testuser", registerResp["username"])
	assert.NotEmpty(t, registerResp["token"])

	// Duplicate registration under a different case fails.
	status = doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username":          "TESTUSER",
		"password":          "password123",
		"recovery_question": "First pet?",
		"recovery_answer":   "Rex",
	}, nil)
	assert.Equal(t, http.StatusConflict, status)

	// Login with a case variation of the username succeeds.
	var loginResp map[string]string
	status = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "TestUser",
		"password": "password123",
	}, &loginResp)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "testuser", loginResp["username"])
	assert.NotEmpty(t, loginResp["token"])

	// Wrong password is rejected.
	status = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "testuser",
		"password": "wrongpassword",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// Unknown username reports not found.
	status = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "ghost",
		"password": "password123",
	}, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// The issued token resolves through the auth service.
	user, err := authService.ResolveUser(loginResp["token"])
	assert.NoError(t, err)
	assert.Equal(t, "testuser", user.Username)
}

func TestCustomerEndpointsWithoutAuth(t *testing.T) {
	app, _, err := setupApp("noauth_test")
	assert.NoError(t, err)

	status := doJSON(t, app, http.MethodGet, "/api/v1/customers", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status = doJSON(t, app, http.MethodPost, "/api/v1/customers", "", map[string]string{"name": "X"}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status = doJSON(t, app, http.MethodGet, "/api/v1/customers", "garbage-token", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCustomerAndTransactionLifecycle(t *testing.T) {
	app, _, err := setupApp("lifecycle_test")
	assert.NoError(t, err)
	token := registerAndLogin(t, app, "shopkeeper", "password123")

	// --- Create a customer ---
	var created models.Customer
	status := doJSON(t, app, http.MethodPost, "/api/v1/customers", token, map[string]string{
		"name": "Warung Bu Siti",
	}, &created)
	assert.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, created.ID)
	assert.Empty(t, created.Transactions)

	// --- Add two transactions; the second lands at the head ---
	var first models.Transaction
	status = doJSON(t, app, http.MethodPost, "/api/v1/customers/"+created.ID+"/transactions", token, map[string]interface{}{
		"product_name": "Rice",
		"quantity":     2,
		"price":        50.0,
	}, &first)
	assert.Equal(t, http.StatusCreated, status)
	assert.False(t, first.IsPaid)

	var second models.Transaction
	status = doJSON(t, app, http.MethodPost, "/api/v1/customers/"+created.ID+"/transactions", token, map[string]interface{}{
		"product_name": "Oil",
		"quantity":     1,
		"price":        30.0,
	}, &second)
	assert.Equal(t, http.StatusCreated, status)

	var customers []models.Customer
	status = doJSON(t, app, http.MethodGet, "/api/v1/customers", token, nil, &customers)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, customers, 1)
	assert.Len(t, customers[0].Transactions, 2)
	assert.Equal(t, second.ID, customers[0].Transactions[0].ID)
	assert.Equal(t, first.ID, customers[0].Transactions[1].ID)
	assert.Equal(t, 130.0, customers[0].TotalDue)
	assert.Equal(t, 130.0, customers[0].TotalSpent)

	// --- Mark the second transaction paid; totals split ---
	var toggled models.Transaction
	status = doJSON(t, app, http.MethodPatch,
		"/api/v1/customers/"+created.ID+"/transactions/"+second.ID+"/paid", token, nil, &toggled)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, toggled.IsPaid)

	status = doJSON(t, app, http.MethodGet, "/api/v1/customers", token, nil, &customers)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 100.0, customers[0].TotalDue)
	assert.Equal(t, 130.0, customers[0].TotalSpent)

	// --- Toggling again restores the unpaid state ---
	status = doJSON(t, app, http.MethodPatch,
		"/api/v1/customers/"+created.ID+"/transactions/"+second.ID+"/paid", token, nil, &toggled)
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, toggled.IsPaid)

	// --- Rename the customer ---
	var renamed models.Customer
	status = doJSON(t, app, http.MethodPatch, "/api/v1/customers/"+created.ID, token, map[string]string{
		"name": "Warung Bu Siti Baru",
	}, &renamed)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Warung Bu Siti Baru", renamed.Name)

	// --- Delete one transaction ---
	status = doJSON(t, app, http.MethodDelete,
		"/api/v1/customers/"+created.ID+"/transactions/"+first.ID, token, nil, nil)
	assert.Equal(t, http.StatusOK, status)

	status = doJSON(t, app, http.MethodDelete,
		"/api/v1/customers/"+created.ID+"/transactions/"+first.ID, token, nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// --- Delete the customer; its transactions become unreachable ---
	status = doJSON(t, app, http.MethodDelete, "/api/v1/customers/"+created.ID, token, nil, nil)
	assert.Equal(t, http.StatusOK, status)

	status = doJSON(t, app, http.MethodGet, "/api/v1/customers", token, nil, &customers)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, customers)

	status = doJSON(t, app, http.MethodPatch,
		"/api/v1/customers/"+created.ID+"/transactions/"+second.ID+"/paid", token, nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// Deleting an absent customer still reports success.
	status = doJSON(t, app, http.MethodDelete, "/api/v1/customers/"+created.ID, token, nil, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestCustomersAreSegregatedPerUser(t *testing.T) {
	app, _, err := setupApp("segregation_test")
	assert.NoError(t, err)
	aliceToken := registerAndLogin(t, app, "alice", "password123")
	bobToken := registerAndLogin(t, app, "bob", "password123")

	var created models.Customer
	status := doJSON(t, app, http.MethodPost, "/api/v1/customers", aliceToken, map[string]string{
		"name": "Alice's Customer",
	}, &created)
	assert.Equal(t, http.StatusCreated, status)

	var bobCustomers []models.Customer
	status = doJSON(t, app, http.MethodGet, "/api/v1/customers", bobToken, nil, &bobCustomers)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, bobCustomers)

	// Bob cannot touch Alice's customer through any mutation.
	status = doJSON(t, app, http.MethodPatch, "/api/v1/customers/"+created.ID, bobToken, map[string]string{
		"name": "Hijacked",
	}, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status = doJSON(t, app, http.MethodPost, "/api/v1/customers/"+created.ID+"/transactions", bobToken, map[string]interface{}{
		"product_name": "Rice",
		"quantity":     1,
		"price":        10.0,
	}, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUpdateUsernameInvalidatesOldToken(t *testing.T) {
	app, _, err := setupApp("rename_test")
	assert.NoError(t, err)
	oldToken := registerAndLogin(t, app, "alice", "password123")

	var created models.Customer
	status := doJSON(t, app, http.MethodPost, "/api/v1/customers", oldToken, map[string]string{
		"name": "Ledger Customer",
	}, &created)
	assert.Equal(t, http.StatusCreated, status)

	var renameResp map[string]string
	status = doJSON(t, app, http.MethodPatch, "/api/v1/account/username", oldToken, map[string]string{
		"new_username": "bob",
	}, &renameResp)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "bob", renameResp["username"])
	newToken := renameResp["token"]
	assert.NotEmpty(t, newToken)

	// The new token sees exactly what alice had.
	var customers []models.Customer
	status = doJSON(t, app, http.MethodGet, "/api/v1/customers", newToken, nil, &customers)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, customers, 1)
	assert.Equal(t, created.ID, customers[0].ID)

	// The old token no longer resolves.
	status = doJSON(t, app, http.MethodGet, "/api/v1/customers", oldToken, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// Login under the new name works; the old name is gone.
	status = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "bob",
		"password": "password123",
	}, nil)
	assert.Equal(t, http.StatusOK, status)
	status = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "alice",
		"password": "password123",
	}, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUpdateUsernameTaken(t *testing.T) {
	app, _, err := setupApp("rename_taken_test")
	assert.NoError(t, err)
	registerAndLogin(t, app, "alice", "password123")
	bobToken := registerAndLogin(t, app, "bob", "password123")

	status := doJSON(t, app, http.MethodPatch, "/api/v1/account/username", bobToken, map[string]string{
		"new_username": "ALICE",
	}, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestRecoveryFlow(t *testing.T) {
	app, _, err := setupApp("recovery_test")
	assert.NoError(t, err)
	registerAndLogin(t, app, "carol", "oldpassword")

	// Step 1: look up the recovery question.
	var found map[string]string
	status := doJSON(t, app, http.MethodGet, "/api/v1/auth/recovery/carol", "", nil, &found)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Favorite color?", found["recovery_question"])

	status = doJSON(t, app, http.MethodGet, "/api/v1/auth/recovery/nobody", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// Step 2: verify the answer (case-insensitively).
	status = doJSON(t, app, http.MethodPost, "/api/v1/auth/recovery/verify", "", map[string]string{
		"username": "carol",
		"answer":   "green",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	var verifyResp map[string]bool
	status = doJSON(t, app, http.MethodPost, "/api/v1/auth/recovery/verify", "", map[string]string{
		"username": "carol",
		"answer":   "BLUE",
	}, &verifyResp)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, verifyResp["verified"])

	// Step 3: reset the password.
	status = doJSON(t, app, http.MethodPost, "/api/v1/auth/recovery/reset", "", map[string]string{
		"username":     "carol",
		"new_password": "newpassword",
	}, nil)
	assert.Equal(t, http.StatusOK, status)

	// Only the new password logs in now.
	status = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "carol",
		"password": "newpassword",
	}, nil)
	assert.Equal(t, http.StatusOK, status)
	status = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "carol",
		"password": "oldpassword",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestValidationFailures(t *testing.T) {
	app, _, err := setupApp("validation_test")
	assert.NoError(t, err)
	token := registerAndLogin(t, app, "validator", "password123")

	// Customer name is required.
	status := doJSON(t, app, http.MethodPost, "/api/v1/customers", token, map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var created models.Customer
	status = doJSON(t, app, http.MethodPost, "/api/v1/customers", token, map[string]string{
		"name": "Customer",
	}, &created)
	assert.Equal(t, http.StatusCreated, status)

	// Quantity and price must be positive.
	status = doJSON(t, app, http.MethodPost, "/api/v1/customers/"+created.ID+"/transactions", token, map[string]interface{}{
		"product_name": "Rice",
		"quantity":     0,
		"price":        10.0,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = doJSON(t, app, http.MethodPost, "/api/v1/customers/"+created.ID+"/transactions", token, map[string]interface{}{
		"product_name": "Rice",
		"quantity":     1,
		"price":        -5.0,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	// Registration enforces minimum password length.
	status = doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username":          "shorty",
		"password":          "abc",
		"recovery_question": "q",
		"recovery_answer":   "a",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
