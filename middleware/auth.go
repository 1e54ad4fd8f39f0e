// middleware/auth.go
package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"wordlewise/models"
	"wordlewise/services"
)

const localUser = "user"

type Auth struct {
	tokens *services.TokenService
	users  *services.UserService
}

func NewAuth(tokens *services.TokenService, users *services.UserService) *Auth {
	return &Auth{tokens: tokens, users: users}
}

// Required validates the bearer token and loads the user it names. Tokens
// for deleted users are rejected like expired ones.
func (a *Auth) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return services.ErrMissingToken
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return services.ErrInvalidToken
		}

		claims, err := a.tokens.Parse(parts[1])
		if err != nil {
			return err
		}

		user, err := a.users.GetUser(c.UserContext(), claims.UserID)
		if err != nil {
			if errors.Is(err, services.ErrUnknownUser) {
				return services.ErrInvalidToken
			}
			return err
		}

		c.Locals(localUser, user)
		return c.Next()
	}
}

// SiteAdmin must run after Required. The flag is read from the stored user,
// so revoking admin rights takes effect before the token expires.
func (a *Auth) SiteAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return services.ErrMissingToken
		}
		if !user.IsAdmin {
			return services.ErrSiteAdminRequired
		}
		return c.Next()
	}
}

// CurrentUser returns the user loaded by Required, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(localUser).(*models.User)
	return user
}
