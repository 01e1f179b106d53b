package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MonMotDePasseTr0pSûr!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	// Test de la comparaison négative (mauvais mot de passe)
	match, err = ComparePassword("MauvaisMDP", hash)
	req.NoError(err)
	req.False(match)
}

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("uuid-123", "Alice", []string{"user"}, 1*time.Hour)
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := ValidateToken(token)
	req.NoError(err)
	req.Equal("uuid-123", claims.UserID)
	req.Equal("Alice", claims.Username)
	req.Equal([]string{"user"}, claims.Roles)

	identity, err := Authenticate(token)
	req.NoError(err)
	req.Equal("uuid-123", identity.ID)
	req.Equal("Alice", identity.Username)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("uuid-123", "Alice", []string{"user"}, -1*time.Minute)
	req.NoError(err)

	_, err = ValidateToken(token)
	req.Error(err)

	_, err = Authenticate(token)
	req.Error(err)
}

func TestGarbageTokenIsRejected(t *testing.T) {
	req := require.New(t)

	_, err := Authenticate("not.a.token")
	req.Error(err)
}

// TestRegistrationValidation vérifie les règles métier strictes
func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"test@example.com", "Alice", "ComplexPass123!"}, false},
		{"Invalid email", RegisterRequest{"notanemail", "Alice", "ComplexPass123!"}, true},
		{"Missing username", RegisterRequest{"test@example.com", "", "ComplexPass123!"}, true},
		{"Username too short", RegisterRequest{"test@example.com", "A", "ComplexPass123!"}, true},
		{"Password too short", RegisterRequest{"test@example.com", "Alice", "Short1!"}, true},
		{"Missing digit", RegisterRequest{"test@example.com", "Alice", "NoDigitPassword!"}, true},
		{"Missing special char", RegisterRequest{"test@example.com", "Alice", "NoSpecialChar123"}, true},
		{"Missing uppercase", RegisterRequest{"test@example.com", "Alice", "nouppercase123!!"}, true},
		{"Password too long (edge case)", RegisterRequest{"test@example.com", "Alice", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

// BenchmarkHashPassword permet de mesurer l'impact CPU/RAM (Crucial pour K8s)
func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
