package services

import (
	cryptorand "crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
)

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *ValidationHelper
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	FirstName   string `json:"firstName" validate:"required,min=2"`
	LastName    string `json:"lastName" validate:"required,min=2"`
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	Pin         string `json:"pin" validate:"required,len=4,numeric"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// AuthUser is the user block returned on register/login.
type AuthUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	AccountNumber string `json:"accountNumber"`
}

func NewAuthService(db *sql.DB, redisClient *redis.Client) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		validator: NewValidationHelper(),
	}
}

// Register creates a user plus a tier-1 wallet account.
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} APIError
// @Failure 409 {object} APIError
// @Router /auth/register [post]
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Registration attempt from IP: %s", r.RemoteAddr)

	var req RegisterRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed", err)
		return
	}

	passwordHash, err := hashSecret(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for %s: %v", req.Email, err)
		SendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
		return
	}
	pinHash, err := hashSecret(req.Pin)
	if err != nil {
		SendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
		return
	}

	accountID := uuid.New().String()
	accountNumber := generateAccountNumber()
	accountName := fmt.Sprintf("%s %s", req.FirstName, req.LastName)

	tx, err := s.db.Begin()
	if err != nil {
		SendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create user", nil)
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO accounts (id, account_number, account_name, balance, kyc_tier, status, version, updated_at)
		VALUES ($1, $2, $3, 0, 1, 'ACTIVE', 1, NOW())`,
		accountID, accountNumber, accountName)
	if err != nil {
		log.Printf("[AUTH] Account creation failed for %s: %v", req.Email, err)
		SendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create account", nil)
		return
	}

	var userID string
	err = tx.QueryRow(`
		INSERT INTO users (id, email, password, first_name, last_name, phone_number, pin_hash, account_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW()) RETURNING id`,
		uuid.New().String(), strings.ToLower(req.Email), passwordHash,
		req.FirstName, req.LastName, req.PhoneNumber, pinHash, accountID).Scan(&userID)
	if err != nil {
		log.Printf("[AUTH] User creation failed for %s: %v", req.Email, err)
		SendError(w, http.StatusConflict, "EMAIL_EXISTS", "Email already exists", nil)
		return
	}

	if err = tx.Commit(); err != nil {
		SendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create user", nil)
		return
	}

	token, err := generateJWT(userID)
	if err != nil {
		SendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate token", nil)
		return
	}

	log.Printf("[AUTH] User created - ID: %s, account: %s", userID, accountNumber)
	SendData(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user": AuthUser{
			ID: userID, Email: req.Email, FirstName: req.FirstName,
			LastName: req.LastName, AccountNumber: accountNumber,
		},
	})
}

// Login authenticates a user and issues a JWT.
// @Summary Login user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} APIError
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	var req LoginRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request", nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed", err)
		return
	}

	var userID, passwordHash string
	var user AuthUser
	err := s.db.QueryRow(`
		SELECT u.id, u.password, u.email, u.first_name, u.last_name, a.account_number
		FROM users u JOIN accounts a ON a.id = u.account_id
		WHERE u.email = $1`, strings.ToLower(req.Email)).
		Scan(&userID, &passwordHash, &user.Email, &user.FirstName, &user.LastName, &user.AccountNumber)
	if err != nil {
		log.Printf("[AUTH] Login failed for %s: unknown user", req.Email)
		SendError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		return
	}

	if !verifySecret(req.Password, passwordHash) {
		log.Printf("[AUTH] Login failed for %s: bad password", req.Email)
		SendError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		return
	}

	user.ID = userID
	token, err := generateJWT(userID)
	if err != nil {
		SendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate token", nil)
		return
	}

	log.Printf("[AUTH] Login successful for user %s", userID)
	SendData(w, http.StatusOK, map[string]interface{}{"token": token, "user": user})
}

// VerifyPIN checks a user's transaction PIN. Used by every money route.
func (s *AuthService) VerifyPIN(userID, pin string) error {
	var pinHash string
	err := s.db.QueryRow(`SELECT pin_hash FROM users WHERE id = $1`, userID).Scan(&pinHash)
	if err != nil {
		return fmt.Errorf("pin lookup failed: %w", err)
	}
	if !verifySecret(pin, pinHash) {
		return fmt.Errorf("incorrect transaction pin")
	}
	return nil
}

// AccountIDForUser resolves the wallet account backing a user.
func (s *AuthService) AccountIDForUser(userID string) (string, error) {
	var accountID string
	err := s.db.QueryRow(`SELECT account_id FROM users WHERE id = $1`, userID).Scan(&accountID)
	if err != nil {
		return "", fmt.Errorf("account lookup failed: %w", err)
	}
	return accountID, nil
}

func generateJWT(userID string) (string, error) {
	viper.SetDefault("jwt.expiry_hours", 24)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})
	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func hashSecret(secret string) (string, error) {
	salt := make([]byte, 16)
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(secret), salt, 1, 64*1024, 4, 32)
	return fmt.Sprintf("%s$%s",
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(hash)), nil
}

func verifySecret(secret, stored string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(secret), salt, 1, 64*1024, 4, 32)
	return subtle.ConstantTimeCompare(hash, computed) == 1
}

func generateAccountNumber() string {
	const digits = "0123456789"
	b := make([]byte, 10)
	for i := range b {
		b[i] = digits[rand.Intn(len(digits))]
	}
	return string(b)
}
