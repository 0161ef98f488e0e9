package model

// RoleAdmin is the role allowed to scan attendance QR codes.
const RoleAdmin = "admin"

// User is the authenticated account.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the user may use admin-only screens.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// LoginResult is the payload of POST /api/login.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
