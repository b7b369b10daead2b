package domain

// User is the authenticated identity attached to every operation.
// Accounts live in an external identity service; only the claims
// needed for display and audit travel with requests.
type User struct {
	ID        string
	Username  string
	AvatarURL string
}
