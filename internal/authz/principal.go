package authz

import "github.com/coem-edu/sga-api/internal/models"

// Principal is the authenticated actor on whose behalf an operation runs.
// Profile ids are set only for the matching role.
type Principal struct {
	AccountID        string
	Role             models.UserRole
	TeacherProfileID string
	ParentProfileID  string
}

// FromClaims builds a Principal from validated JWT claims.
func FromClaims(claims *models.JWTClaims) Principal {
	p := Principal{AccountID: claims.UserID, Role: claims.Role}
	if claims.TeacherProfileID != nil {
		p.TeacherProfileID = *claims.TeacherProfileID
	}
	if claims.ParentProfileID != nil {
		p.ParentProfileID = *claims.ParentProfileID
	}
	return p
}

// IsAdmin reports whether the principal holds the ADMIN role.
func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}
