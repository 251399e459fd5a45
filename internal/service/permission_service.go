package service

import (
	"picturehub/internal/apperr"
	"picturehub/internal/domain"
)

// OperationType names what the caller wants to do with a resource.
type OperationType string

const (
	OperationView   OperationType = "view"
	OperationUpload OperationType = "upload"
	OperationEdit   OperationType = "edit"
	OperationDelete OperationType = "delete"
	OperationReview OperationType = "review"
)

// PermissionService decides who may read or mutate pictures and spaces.
type PermissionService struct{}

func NewPermissionService() *PermissionService {
	return &PermissionService{}
}

// CanAccessPicture reports whether user may perform op on pic. space is the
// picture's space when it has one; it may be nil for public pictures.
//
// Public pictures are readable by anyone once approved and mutable by the
// owner or an admin. Pictures in a private space are visible and mutable
// only by the space owner.
func (s *PermissionService) CanAccessPicture(user *domain.User, pic *domain.Picture, space *domain.Space, op OperationType) bool {
	if op == OperationReview {
		return user.IsAdmin()
	}

	if !pic.IsPublic() {
		if user == nil {
			return false
		}
		owner := pic.UserID
		if space != nil {
			owner = space.UserID
		}
		return user.ID == owner
	}

	if op == OperationView && pic.ReviewStatus == domain.ReviewPass {
		return true
	}
	if user == nil {
		return false
	}
	return user.ID == pic.UserID || user.IsAdmin()
}

// CanMutatePicture reports whether user may edit or delete pic.
func (s *PermissionService) CanMutatePicture(user *domain.User, pic *domain.Picture, space *domain.Space) bool {
	return s.CanAccessPicture(user, pic, space, OperationEdit)
}

// CanMutateSpace reports whether user may edit or delete space.
func (s *PermissionService) CanMutateSpace(user *domain.User, space *domain.Space) bool {
	return s.CanAccessSpace(user, space, OperationEdit)
}

// CanAccessSpace reports whether user may perform op on space. Uploads are
// reserved to the owner; everything else is open to the owner and admins.
func (s *PermissionService) CanAccessSpace(user *domain.User, space *domain.Space, op OperationType) bool {
	if user == nil || space == nil {
		return false
	}
	if user.ID == space.UserID {
		return true
	}
	return op != OperationUpload && user.IsAdmin()
}

func (s *PermissionService) CheckPicture(user *domain.User, pic *domain.Picture, space *domain.Space, op OperationType) error {
	if !s.CanAccessPicture(user, pic, space, op) {
		return apperr.Forbidden("no permission to %s picture %d", op, pic.ID)
	}
	return nil
}

func (s *PermissionService) CheckSpace(user *domain.User, space *domain.Space, op OperationType) error {
	if !s.CanAccessSpace(user, space, op) {
		return apperr.Forbidden("no permission to %s space %d", op, space.ID)
	}
	return nil
}

func (s *PermissionService) RequireAdmin(user *domain.User) error {
	if !user.IsAdmin() {
		return apperr.Forbidden("admin role required")
	}
	return nil
}

func requireUser(user *domain.User) error {
	if user == nil || user.ID == "" {
		return apperr.Forbidden("login required")
	}
	return nil
}
