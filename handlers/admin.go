// handlers/admin.go - Site administration
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"wordlewise/middleware"
	"wordlewise/services"
)

type ResetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

type SetAdminRequest struct {
	IsAdmin *bool `json:"is_admin"`
}

// AdminUser is the site-admin view of an account
type AdminUser struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Forename  string `json:"forename"`
	IsAdmin   bool   `json:"is_admin"`
	LastLogin *int64 `json:"last_login"`
}

// ListAllUsers returns every account with pagination
// GET /admin/users?page=&limit=&search=
func (h *Handlers) ListAllUsers(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)

	users, total, err := h.users.SearchUsers(c.UserContext(), c.Query("search"), page, limit)
	if err != nil {
		return err
	}

	out := make([]AdminUser, 0, len(users))
	for _, u := range users {
		row := AdminUser{ID: u.ID, Username: u.Username, Forename: u.Forename, IsAdmin: u.IsAdmin}
		if u.LastLogin != nil {
			ts := u.LastLogin.Unix()
			row.LastLogin = &ts
		}
		out = append(out, row)
	}
	return c.JSON(fiber.Map{
		"users": out,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// SetUserAdmin grants or revokes site-admin rights
// PUT /admin/users/:id/admin
func (h *Handlers) SetUserAdmin(c *fiber.Ctx) error {
	userID, err := middleware.ParamID(c, "id")
	if err != nil {
		return err
	}
	var req SetAdminRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.IsAdmin == nil {
		return services.ValidationError("is_admin is required")
	}

	if err := h.users.SetAdmin(c.UserContext(), userID, *req.IsAdmin); err != nil {
		return err
	}
	h.log.Info("site admin flag changed",
		zap.Uint("user_id", userID),
		zap.Bool("is_admin", *req.IsAdmin),
		zap.Uint("admin_id", middleware.CurrentUser(c).ID),
	)
	return success(c, nil)
}

// ResetPassword sets a new password for any user
// POST /admin/users/:id/reset-password
func (h *Handlers) ResetPassword(c *fiber.Ctx) error {
	userID, err := middleware.ParamID(c, "id")
	if err != nil {
		return err
	}
	var req ResetPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.users.ResetPassword(c.UserContext(), userID, req.NewPassword); err != nil {
		return err
	}
	h.log.Info("password reset by admin",
		zap.Uint("user_id", userID),
		zap.Uint("admin_id", middleware.CurrentUser(c).ID),
	)
	return success(c, nil)
}
