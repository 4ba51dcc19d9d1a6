package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the structure of the JSON Web Token (JWT) claims for the chat service.
// It includes standard claims required by the JWT specification and custom claims
// necessary for identifying and authorizing users.
type Payload struct {
	// StandardClaims embeds the necessary JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer). These are crucial for token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the unique identifier of the account the token was issued to.
	// The server re-verifies this id against the user store at connect time;
	// the token alone is never the final word on identity.
	ID string `json:"id"`

	// Username is the login name of the account, carried for logging context.
	Username string `json:"username"`

	// Role is the marketplace role of the account ("farmer", "buyer", "expert", "admin").
	Role string `json:"role"`
}
