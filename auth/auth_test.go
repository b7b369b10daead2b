package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cinematch/domain"
	apperrors "cinematch/errors"
)

func TestGenerateAndValidate(t *testing.T) {
	req := require.New(t)
	manager := NewManager("a_strong_signing_secret_for_tests", time.Hour)
	user := domain.User{ID: "alice", Username: "Alice", AvatarURL: "https://img.example/alice.png"}

	token, err := manager.Generate(user)
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := manager.Validate(token)
	req.NoError(err)
	req.Equal(user, claims.User())
	req.Equal("cinematch", claims.Issuer)
}

func TestValidate_RejectsExpiredToken(t *testing.T) {
	req := require.New(t)
	manager := NewManager("a_strong_signing_secret_for_tests", -time.Minute)

	token, err := manager.Generate(domain.User{ID: "alice", Username: "Alice"})
	req.NoError(err)

	_, err = manager.Validate(token)
	req.ErrorIs(err, apperrors.ErrInvalidToken)
}

func TestValidate_RejectsForeignSignature(t *testing.T) {
	req := require.New(t)
	manager := NewManager("a_strong_signing_secret_for_tests", time.Hour)
	other := NewManager("a_completely_different_secret_key", time.Hour)

	token, err := other.Generate(domain.User{ID: "alice", Username: "Alice"})
	req.NoError(err)

	_, err = manager.Validate(token)
	req.ErrorIs(err, apperrors.ErrInvalidToken)

	// Un token charcuté ne passe pas non plus
	_, err = manager.Validate(token[:len(token)-4] + "aaaa")
	req.ErrorIs(err, apperrors.ErrInvalidToken)
	_, err = manager.Validate("definitely.not.ajwt")
	req.ErrorIs(err, apperrors.ErrInvalidToken)
}

func TestTokenRequestValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     TokenRequest
		wantErr bool
	}{
		{"Valid request", TokenRequest{"alice-42", "Alice", ""}, false},
		{"Valid with avatar", TokenRequest{"alice.smith", "Alice", "https://img.example/a.png"}, false},
		{"Too short", TokenRequest{"al", "Alice", ""}, true},
		{"Missing username", TokenRequest{"alice-42", "", ""}, true},
		{"Space in id", TokenRequest{"alice smith", "Alice", ""}, true},
		{"Wildcard in id", TokenRequest{"alice*42", "Alice", ""}, true},
		{"Subject separator in id", TokenRequest{"alice>42", "Alice", ""}, true},
		{"Not a url avatar", TokenRequest{"alice-42", "Alice", "not a url"}, true},
		{"Too long (edge case)", TokenRequest{strings.Repeat("a", 33), "Alice", ""}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTokenRequest(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}
