// handlers/auth.go - Login and registration
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"wordlewise/models"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Forename string `json:"forename"`
}

type UserInfo struct {
	ID             uint   `json:"id"`
	Username       string `json:"username"`
	Forename       string `json:"forename"`
	DefaultGroupID *uint  `json:"default_group_id"`
	IsAdmin        bool   `json:"is_admin,omitempty"`
}

type AuthResponse struct {
	Success     bool      `json:"success"`
	Error       string    `json:"error"`
	AccessToken string    `json:"access_token,omitempty"`
	User        *UserInfo `json:"user,omitempty"`
}

func userInfo(u *models.User) *UserInfo {
	return &UserInfo{
		ID:             u.ID,
		Username:       u.Username,
		Forename:       u.Forename,
		DefaultGroupID: u.DefaultGroupID,
		IsAdmin:        u.IsAdmin,
	}
}

// Login exchanges credentials for an access token
// POST /login
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.users.Login(c.UserContext(), req.Username, req.Password)
	h.metrics.AuthAttempt("login", err == nil)
	if err != nil {
		return err
	}
	return h.issue(c, fiber.StatusOK, user)
}

// Register creates an account and logs it in
// POST /register
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.users.Register(c.UserContext(), req.Username, req.Password, req.Forename)
	h.metrics.AuthAttempt("register", err == nil)
	if err != nil {
		return err
	}
	return h.issue(c, fiber.StatusCreated, user)
}

func (h *Handlers) issue(c *fiber.Ctx, status int, user *models.User) error {
	token, err := h.tokens.Issue(user)
	if err != nil {
		return err
	}
	return c.Status(status).JSON(AuthResponse{
		Success:     true,
		AccessToken: token,
		User:        userInfo(user),
	})
}
