package dto

import (
	"time"

	"github.com/recipebook/recipebook/internal/model"
)

// CreateUserRequest is the body of POST /api/v1/users.
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,notblank,max=255"`
	Password string `json:"password" validate:"required,min=5,max=128"`
	Name     string `json:"name" validate:"max=255"`
}

// TokenRequest is the body of POST /api/v1/users/token.
type TokenRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse carries a newly issued token. It is shown only once.
type TokenResponse struct {
	Token string `json:"token"`
}

// ReplaceUserRequest is the body of PUT /api/v1/users/me.
// An absent name clears it.
type ReplaceUserRequest struct {
	Name     string `json:"name" validate:"max=255"`
	Password string `json:"password" validate:"required,min=5,max=128"`
}

// UpdateUserRequest is the body of PATCH /api/v1/users/me.
type UpdateUserRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,max=255"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=5,max=128"`
}

// UserResponse is the self-service view of an account.
type UserResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AdminUserResponse adds account flags for staff listings.
type AdminUserResponse struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	IsActive    bool      `json:"is_active"`
	IsStaff     bool      `json:"is_staff"`
	IsSuperuser bool      `json:"is_superuser"`
	JoinedAt    time.Time `json:"joined_at"`
}

// AdminUserListResponse is the body of GET /api/v1/admin/users.
type AdminUserListResponse struct {
	Users []AdminUserResponse `json:"users"`
	Total int                 `json:"total"`
}

// ToUserResponse converts a User model to UserResponse DTO.
func ToUserResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
	}
}

// ToAdminUserListResponse converts users to the staff listing.
func ToAdminUserListResponse(users []*model.User) *AdminUserListResponse {
	resp := &AdminUserListResponse{
		Users: make([]AdminUserResponse, 0, len(users)),
		Total: len(users),
	}
	for _, u := range users {
		resp.Users = append(resp.Users, AdminUserResponse{
			ID:          u.ID,
			Email:       u.Email,
			Name:        u.Name,
			IsActive:    u.IsActive,
			IsStaff:     u.IsStaff,
			IsSuperuser: u.IsSuperuser,
			JoinedAt:    u.JoinedAt,
		})
	}
	return resp
}
