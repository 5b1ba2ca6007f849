// internal/session/session.go
//
// An explicit session value identifying the acting user. Every engine
// operation takes one; there is no process-wide current-user singleton,
// which keeps the engines usable from a multi-tenant host.

package session

// Role identifies which side of the marketplace the session acts for.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Session carries the authenticated actor through engine calls.
type Session struct {
	UserID string
	Role   Role
}

// Buyer builds a buyer-side session.
func Buyer(userID string) Session {
	return Session{UserID: userID, Role: RoleBuyer}
}

// Seller builds a seller-side session.
func Seller(userID string) Session {
	return Session{UserID: userID, Role: RoleSeller}
}

// IsBuyer reports whether the session acts for a buyer account.
func (s Session) IsBuyer() bool { return s.Role == RoleBuyer }

// IsSeller reports whether the session acts for a seller account.
func (s Session) IsSeller() bool { return s.Role == RoleSeller }
