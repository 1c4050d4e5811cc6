package authz

import (
	"context"
	"database/sql"
	"errors"

	"github.com/coem-edu/sga-api/internal/models"
	appErrors "github.com/coem-edu/sga-api/pkg/errors"
)

type classOwnerReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type parentLinkReader interface {
	LinkExists(ctx context.Context, parentID, studentID string) (bool, error)
}

// Guard centralises every ownership-scoped authorization decision. Decisions
// are recomputed per request against the store: links mutate, so nothing here
// may be cached across requests.
type Guard struct {
	classes classOwnerReader
	links   parentLinkReader
}

// NewGuard constructs the guard from narrow store readers.
func NewGuard(classes classOwnerReader, links parentLinkReader) *Guard {
	return &Guard{classes: classes, links: links}
}

// CanManage gates administrator-only mutations. Existence of the target is
// not secret for these actions, so denial is an explicit forbidden.
func (g *Guard) CanManage(p Principal) error {
	if p.IsAdmin() {
		return nil
	}
	return appErrors.ErrForbidden
}

// CanReadStudent decides whether the principal may see a student at all.
// A parent without a link gets the same not-found as a nonexistent id, so a
// denial never confirms the student exists.
func (g *Guard) CanReadStudent(ctx context.Context, p Principal, studentID string) error {
	switch p.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleParent:
		if p.ParentProfileID == "" {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		linked, err := g.links.LinkExists(ctx, p.ParentProfileID, studentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve parent link")
		}
		if !linked {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil
	default:
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
}

// CanWriteGrades decides whether the principal may record grades for a class.
// Only the owning teacher (or an admin) may; everyone else is forbidden.
func (g *Guard) CanWriteGrades(ctx context.Context, p Principal, classID string) error {
	if p.IsAdmin() {
		return nil
	}
	if p.Role != models.RoleTeacher || p.TeacherProfileID == "" {
		return appErrors.ErrForbidden
	}
	class, err := g.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve class owner")
	}
	if class.TeacherID != p.TeacherProfileID {
		return appErrors.Clone(appErrors.ErrForbidden, "class is owned by another teacher")
	}
	return nil
}

// CanReadRoster decides whether the principal may read a class roster.
// Teachers see only their own classes; denial mirrors not-found.
func (g *Guard) CanReadRoster(ctx context.Context, p Principal, classID string) error {
	if p.IsAdmin() {
		return nil
	}
	if p.Role != models.RoleTeacher || p.TeacherProfileID == "" {
		return appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	class, err := g.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve class owner")
	}
	if class.TeacherID != p.TeacherProfileID {
		return appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	return nil
}

// CanUpdateParentProfile allows admins, or the parent editing its own
// profile fields.
func (g *Guard) CanUpdateParentProfile(p Principal, profileID string) error {
	if p.IsAdmin() {
		return nil
	}
	if p.Role == models.RoleParent && p.ParentProfileID == profileID {
		return nil
	}
	return appErrors.ErrForbidden
}
