// handlers/users.go - Users in scope and default scope preference
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"wordlewise/middleware"
	"wordlewise/services"
)

type PlayerInfo struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Forename string `json:"forename"`
}

type DefaultScopeBody struct {
	Type    services.ScopeType `json:"type"`
	GroupID *uint              `json:"groupId"`
}

// GetUsers lists the players visible in a scope
// GET /users?scope=personal|group&groupId=
func (h *Handlers) GetUsers(c *fiber.Ctx) error {
	ctx := c.UserContext()
	user := middleware.CurrentUser(c)

	scope, err := h.scopes.ScopeFromRequest(ctx, user, c.Query("scope"), c.Query("groupId"))
	if err != nil {
		return err
	}
	resolved, err := h.scopes.Resolve(ctx, user, scope)
	if err != nil {
		return err
	}

	users, err := h.users.ListUsers(ctx, resolved.UserIDs)
	if err != nil {
		return err
	}
	players := make([]PlayerInfo, len(users))
	for i, u := range users {
		players[i] = PlayerInfo{ID: u.ID, Username: u.Username, Forename: u.Forename}
	}
	return c.JSON(players)
}

// GetDefaultScope returns the scope used when a request names none
// GET /user/default-scope
func (h *Handlers) GetDefaultScope(c *fiber.Ctx) error {
	scope, err := h.scopes.DefaultScope(c.UserContext(), middleware.CurrentUser(c))
	if err != nil {
		return err
	}

	body := DefaultScopeBody{Type: scope.Type}
	if scope.Type == services.ScopeGroup {
		id := scope.GroupID
		body.GroupID = &id
	}
	return c.JSON(body)
}

// PutDefaultScope stores the caller's default scope
// PUT /user/default-scope
func (h *Handlers) PutDefaultScope(c *fiber.Ctx) error {
	var req DefaultScopeBody
	if err := parseBody(c, &req); err != nil {
		return err
	}

	scope := services.Scope{Type: req.Type}
	if req.GroupID != nil {
		scope.GroupID = *req.GroupID
	}
	if err := h.users.SetDefaultScope(c.UserContext(), middleware.CurrentUser(c), scope); err != nil {
		return err
	}
	return success(c, nil)
}
