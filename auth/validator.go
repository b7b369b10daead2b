package auth

import (
	"unicode"

	"github.com/go-playground/validator/v10"

	"cinematch/errors"
)

var validate = validator.New()

// TokenRequest is the identity a client exchanges for a token.
type TokenRequest struct {
	UserID    string `json:"user_id" validate:"required,min=3,max=32"`
	Username  string `json:"username" validate:"required,min=1,max=64"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url,max=256"`
}

func ValidateTokenRequest(req TokenRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}

	if !isUserIDSafe(req.UserID) {
		return errors.ErrInvalidUserID
	}
	return nil
}

// isUserIDSafe restricts IDs to characters that stay inert in store
// keys and bus subjects. Anything exotic is rejected upfront rather
// than escaped everywhere downstream.
func isUserIDSafe(s string) bool {
	for _, char := range s {
		switch {
		case unicode.IsLetter(char) && char < unicode.MaxASCII:
		case unicode.IsDigit(char) && char < unicode.MaxASCII:
		case char == '-' || char == '_' || char == '.':
		default:
			return false
		}
	}
	return true
}
