// handlers/handlers.go - Dependencies and route table
package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"wordlewise/metrics"
	"wordlewise/middleware"
	"wordlewise/services"
)

// Deps are the collaborators every handler draws on.
type Deps struct {
	DB      *gorm.DB
	Groups  *services.GroupService
	Scores  *services.ScoreService
	Users   *services.UserService
	Scopes  *services.ScopeResolver
	Tokens  *services.TokenService
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

type Handlers struct {
	db      *gorm.DB
	groups  *services.GroupService
	scores  *services.ScoreService
	users   *services.UserService
	scopes  *services.ScopeResolver
	tokens  *services.TokenService
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func New(d Deps) *Handlers {
	return &Handlers{
		db:      d.DB,
		groups:  d.Groups,
		scores:  d.Scores,
		users:   d.Users,
		scopes:  d.Scopes,
		tokens:  d.Tokens,
		metrics: d.Metrics,
		log:     d.Log,
		now:     time.Now,
	}
}

// SetupRoutes mounts every route. authLimit guards /login and /register
// and may be nil.
func (h *Handlers) SetupRoutes(app *fiber.App, auth *middleware.Auth, authLimit fiber.Handler) {
	app.Get("/health", h.Health)

	// Public auth routes
	if authLimit == nil {
		authLimit = func(c *fiber.Ctx) error { return c.Next() }
	}
	app.Post("/login", authLimit, h.Login)
	app.Post("/register", authLimit, h.Register)

	// Authenticated routes
	api := app.Group("", auth.Required())

	api.Get("/scores", h.GetScores)
	api.Post("/scores", h.PostScore)
	api.Get("/users", h.GetUsers)

	api.Get("/user/default-scope", h.GetDefaultScope)
	api.Put("/user/default-scope", h.PutDefaultScope)

	guard := middleware.NewGroupGuard(h.groups, "id")
	api.Get("/groups", h.ListGroups)
	api.Post("/groups", h.CreateGroup)
	api.Post("/groups/join", h.JoinGroup)
	api.Get("/groups/:id", guard.RequireMember(), h.GetGroup)
	api.Put("/groups/:id", guard.RequireAdmin(), h.UpdateGroup)
	api.Delete("/groups/:id", guard.RequireAdmin(), h.DeleteGroup)
	api.Post("/groups/:id/leave", h.LeaveGroup)
	api.Delete("/groups/:id/members/:userId", guard.RequireAdmin(), h.RemoveMember)
	api.Put("/groups/:id/members/:userId", guard.RequireAdmin(), h.UpdateMemberRole)
	api.Post("/groups/:id/regenerate-code", guard.RequireAdmin(), h.RegenerateInviteCode)

	// Site admin
	admin := api.Group("/admin", auth.SiteAdmin())
	admin.Get("/users", h.ListAllUsers)
	admin.Put("/users/:id/admin", h.SetUserAdmin)
	admin.Post("/users/:id/reset-password", h.ResetPassword)
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return services.ValidationError("Invalid request body")
	}
	return nil
}

func success(c *fiber.Ctx, extra fiber.Map) error {
	body := fiber.Map{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(body)
}
