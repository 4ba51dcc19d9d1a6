/*
Package user contains core data structures related to user identity.

It defines the basic public representation of a marketplace account (the User struct),
used for passing user information both internally and to clients in WebSocket events
and REST responses.
*/
package user

// Marketplace roles. The set is fixed; every account carries exactly one.
const (
	RoleFarmer = "farmer"
	RoleBuyer  = "buyer"
	RoleExpert = "expert"
	RoleAdmin  = "admin"
)

// ValidRole reports whether role is one of the four fixed marketplace roles.
func ValidRole(role string) bool {
	switch role {
	case RoleFarmer, RoleBuyer, RoleExpert, RoleAdmin:
		return true
	}
	return false
}

// User represents the public identity information of a chat participant.
// Fields use JSON tags for serialization in WebSocket messages and REST payloads.
// Password hashes and other private account fields never pass through this struct.
type User struct {
	// ID is the unique identifier for the account (UUID).
	ID string `json:"id"`

	// Username is the login name of the account.
	Username string `json:"username"`

	// DisplayName is the name shown next to messages.
	DisplayName string `json:"displayName"`

	// Avatar is the URL for the user's avatar, if set.
	Avatar string `json:"avatar,omitempty"`

	// Role is the marketplace role of the participant.
	Role string `json:"role"`
}
