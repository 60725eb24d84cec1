package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSecret(t *testing.T) {
	t.Run("roundtrip verifies", func(t *testing.T) {
		hash, err := hashSecret("s3cret-pass")
		require.NoError(t, err)
		assert.True(t, verifySecret("s3cret-pass", hash))
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		hash, err := hashSecret("s3cret-pass")
		require.NoError(t, err)
		assert.False(t, verifySecret("other-pass", hash))
	})

	t.Run("same secret hashes differently per salt", func(t *testing.T) {
		h1, _ := hashSecret("s3cret-pass")
		h2, _ := hashSecret("s3cret-pass")
		assert.NotEqual(t, h1, h2)
	})

	t.Run("malformed stored value fails closed", func(t *testing.T) {
		assert.False(t, verifySecret("anything", "not-a-valid-hash"))
	})
}

func TestGenerateAccountNumber(t *testing.T) {
	n := generateAccountNumber()
	assert.Len(t, n, 10)
	for _, c := range n {
		assert.True(t, c >= '0' && c <= '9')
	}
}

func TestAuthService_Register(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")

	t.Run("creates account and user in one transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("INSERT INTO users").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("user-1"))
		mock.ExpectCommit()

		service := NewAuthService(db, nil)
		body, _ := json.Marshal(map[string]any{
			"email":       "ada@example.com",
			"password":    "hunter22",
			"firstName":   "Ada",
			"lastName":    "Obi",
			"phoneNumber": "+2348012345678",
			"pin":         "1234",
		})
		req := httptest.NewRequest("POST", "/auth/register", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		service.Register(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp struct {
			OK   bool `json:"ok"`
			Data struct {
				Token string   `json:"token"`
				User  AuthUser `json:"user"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.OK)
		assert.NotEmpty(t, resp.Data.Token)
		assert.Equal(t, "user-1", resp.Data.User.ID)
		assert.Len(t, resp.Data.User.AccountNumber, 10)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email rolls back the account row", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("INSERT INTO users").
			WillReturnError(assert.AnError)
		mock.ExpectRollback()

		service := NewAuthService(db, nil)
		body, _ := json.Marshal(map[string]any{
			"email":       "ada@example.com",
			"password":    "hunter22",
			"firstName":   "Ada",
			"lastName":    "Obi",
			"phoneNumber": "+2348012345678",
			"pin":         "1234",
		})
		req := httptest.NewRequest("POST", "/auth/register", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		service.Register(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid pin shape fails validation", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		service := NewAuthService(db, nil)
		body, _ := json.Marshal(map[string]any{
			"email":       "ada@example.com",
			"password":    "hunter22",
			"firstName":   "Ada",
			"lastName":    "Obi",
			"phoneNumber": "+2348012345678",
			"pin":         "12ab",
		})
		req := httptest.NewRequest("POST", "/auth/register", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		service.Register(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthService_Login(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")

	t.Run("valid credentials issue a token", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		passwordHash, err := hashSecret("hunter22")
		require.NoError(t, err)

		mock.ExpectQuery("SELECT u.id, u.password, u.email, u.first_name, u.last_name, a.account_number").
			WithArgs("ada@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "password", "email", "first_name", "last_name", "account_number"}).
				AddRow("user-1", passwordHash, "ada@example.com", "Ada", "Obi", "1111111111"))

		service := NewAuthService(db, nil)
		body, _ := json.Marshal(map[string]any{"email": "Ada@Example.com", "password": "hunter22"})
		req := httptest.NewRequest("POST", "/auth/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		service.Login(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		passwordHash, err := hashSecret("hunter22")
		require.NoError(t, err)

		mock.ExpectQuery("SELECT u.id, u.password, u.email, u.first_name, u.last_name, a.account_number").
			WithArgs("ada@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "password", "email", "first_name", "last_name", "account_number"}).
				AddRow("user-1", passwordHash, "ada@example.com", "Ada", "Obi", "1111111111"))

		service := NewAuthService(db, nil)
		body, _ := json.Marshal(map[string]any{"email": "ada@example.com", "password": "wrongpass"})
		req := httptest.NewRequest("POST", "/auth/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		service.Login(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown email is unauthorized", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT u.id, u.password, u.email, u.first_name, u.last_name, a.account_number").
			WithArgs("ghost@example.com").
			WillReturnError(assert.AnError)

		service := NewAuthService(db, nil)
		body, _ := json.Marshal(map[string]any{"email": "ghost@example.com", "password": "hunter22"})
		req := httptest.NewRequest("POST", "/auth/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		service.Login(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
