package auth

import (
	"testing"
	"time"
)

func TestNewJWTManager(t *testing.T) {
	tests := []struct {
		name        string
		secretKey   string
		duration    int
		expectError bool
	}{
		{
			name:        "valid secret key",
			secretKey:   "test-secret-key-32-characters-long",
			duration:    24,
			expectError: false,
		},
		{
			name:        "empty secret key",
			secretKey:   "",
			duration:    24,
			expectError: true,
		},
		{
			name:        "non-positive duration falls back to default",
			secretKey:   "test-secret-key-32-characters-long",
			duration:    0,
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, err := NewJWTManager(tt.secretKey, tt.duration)
			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			if manager == nil {
				t.Error("Expected manager but got nil")
			}
		})
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	manager, err := NewJWTManager("test-secret-key-at-least-32-chars-long", 24)
	if err != nil {
		t.Fatalf("Failed to create JWT manager: %v", err)
	}

	user := &User{
		ID:    "user-1",
		Name:  "Alice Johnson",
		Email: "alice@acme.dev",
	}

	token, err := manager.GenerateToken(user)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if token == "" {
		t.Error("Generated token is empty")
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("UserID = %q, want %q", claims.UserID, user.ID)
	}
	if claims.Name != user.Name {
		t.Errorf("Name = %q, want %q", claims.Name, user.Name)
	}
	if claims.Email != user.Email {
		t.Errorf("Email = %q, want %q", claims.Email, user.Email)
	}
	if claims.Subject != user.ID {
		t.Errorf("Subject = %q, want %q", claims.Subject, user.ID)
	}
	if claims.Issuer != "lodestar" {
		t.Errorf("Issuer = %q, want lodestar", claims.Issuer)
	}
}

func TestValidateTokenErrors(t *testing.T) {
	manager, _ := NewJWTManager("test-secret-key-at-least-32-chars-long", 24)

	t.Run("garbage token", func(t *testing.T) {
		if _, err := manager.ValidateToken("not.a.token"); err != ErrInvalidToken {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("token signed with another key", func(t *testing.T) {
		other, _ := NewJWTManager("a-completely-different-secret-key-1234", 24)
		token, err := other.GenerateToken(&User{ID: "user-1"})
		if err != nil {
			t.Fatalf("Failed to generate token: %v", err)
		}
		if _, err := manager.ValidateToken(token); err != ErrInvalidToken {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		short := &JWTManager{
			secretKey:       []byte("test-secret-key-at-least-32-chars-long"),
			sessionDuration: -time.Minute,
		}
		token, err := short.GenerateToken(&User{ID: "user-1"})
		if err != nil {
			t.Fatalf("Failed to generate token: %v", err)
		}
		if _, err := manager.ValidateToken(token); err != ErrExpiredToken {
			t.Errorf("Expected ErrExpiredToken, got %v", err)
		}
	})
}

func TestRefreshToken(t *testing.T) {
	manager, _ := NewJWTManager("test-secret-key-at-least-32-chars-long", 24)

	original, err := manager.GenerateToken(&User{ID: "user-1", Name: "Alice", Email: "alice@acme.dev"})
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	claims, err := manager.ValidateToken(original)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}

	refreshed, err := manager.RefreshToken(claims)
	if err != nil {
		t.Fatalf("Failed to refresh token: %v", err)
	}

	newClaims, err := manager.ValidateToken(refreshed)
	if err != nil {
		t.Fatalf("Failed to validate refreshed token: %v", err)
	}
	if newClaims.UserID != "user-1" || newClaims.Email != "alice@acme.dev" {
		t.Errorf("Refreshed claims lost identity: %+v", newClaims)
	}
}
