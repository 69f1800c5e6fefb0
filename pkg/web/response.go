// Package web defines common components for a web application.
package web

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Response holds the common response type for all APIs.
type Response struct {
	AccessToken           string    `json:"access_token,omitempty"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at,omitempty"`
	RefreshToken          string    `json:"refresh_token,omitempty"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at,omitempty"`
	Data                  any       `json:"data,omitempty"`
	Error                 string    `json:"error,omitempty"`
}

// Error wraps a given err into json frinedly struct.
func Error(err error) Response {
	return Response{Error: err.Error()}
}

// GetErrorMsg returns a readable message for the first failed validation.
func GetErrorMsg(ve validator.ValidationErrors) string {
	if len(ve) == 0 {
		return ""
	}

	fe := ve[0]

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s field is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s field must be a valid email", fe.Field())
	case "min":
		return fmt.Sprintf("%s field must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s field must be at most %s", fe.Field(), fe.Param())
	case "currency":
		return fmt.Sprintf("%s field must be a supported currency", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s field must be one of [%s]", fe.Field(), fe.Param())
	case "nefield":
		return fmt.Sprintf("%s field must differ from %s", fe.Field(), fe.Param())
	}

	return fmt.Sprintf("%s field is invalid", fe.Field())
}
