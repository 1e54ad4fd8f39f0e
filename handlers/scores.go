// handlers/scores.go - Weekly score calendar and score entry
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"wordlewise/middleware"
	"wordlewise/services"
)

type ScoreRequest struct {
	Date     string `json:"date"`
	Score    *int   `json:"score"`
	Timezone string `json:"timezone"`
}

// GetScores returns the gap-filled weekly calendar for a scope. Without a
// scope the caller's default scope is used; without a timezone, UTC.
// GET /scores?scope=personal|group&groupId=&timezone=
func (h *Handlers) GetScores(c *fiber.Ctx) error {
	ctx := c.UserContext()
	user := middleware.CurrentUser(c)

	today, err := services.TodayIn(c.Query("timezone"), h.now())
	if err != nil {
		return err
	}

	scope, err := h.scopes.ScopeFromRequest(ctx, user, c.Query("scope"), c.Query("groupId"))
	if err != nil {
		return err
	}
	resolved, err := h.scopes.Resolve(ctx, user, scope)
	if err != nil {
		return err
	}

	weeks, err := h.scores.GetScores(ctx, resolved.UserIDs, resolved.Cutoff, today)
	if err != nil {
		return err
	}
	return c.JSON(weeks)
}

// PostScore records the caller's score for a day; a null score removes it.
// POST /scores
func (h *Handlers) PostScore(c *fiber.Ctx) error {
	var req ScoreRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Timezone == "" {
		return services.ValidationError("Timezone is required")
	}

	today, err := services.TodayIn(req.Timezone, h.now())
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	user := middleware.CurrentUser(c)
	if req.Score == nil {
		if err := h.scores.DeleteScore(ctx, user.ID, req.Date, today); err != nil {
			return err
		}
		h.metrics.ScoreDeleted()
		return success(c, nil)
	}

	if err := h.scores.AddScore(ctx, user.ID, req.Date, *req.Score, today); err != nil {
		return err
	}
	h.metrics.ScoreRecorded()
	return success(c, nil)
}
