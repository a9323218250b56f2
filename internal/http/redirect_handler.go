package http

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linkpulse/internal/clicks"
	"linkpulse/internal/links"
)

// RedirectAction resolves a short code, records the click and answers
// with a permanent redirect. Tracking failures never block the redirect.
func RedirectAction(cache *links.Cache, recorder *clicks.Recorder) func(ctx *cartridge.Context) error {
	return func(ctx *cartridge.Context) error {
		code := ctx.Params("code")
		db := ctx.DB()

		link, err := links.Resolve(ctx.Ctx.UserContext(), db, cache, ctx.Logger, code)
		if err != nil {
			if errors.Is(err, links.ErrLinkNotFound) {
				return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "Short link not found",
				})
			}
			ctx.Logger.Error("Failed to resolve short link",
				slog.String("short_code", code),
				slog.Any("error", err))
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to resolve short link",
			})
		}

		req := clicks.NewRequestContext(ctx.Get, ctx.IP(), time.Now().UTC())
		if _, ok := recorder.RecordClick(ctx.Ctx.UserContext(), link, req); !ok {
			if err := links.RecordFallbackClick(db, ctx.Logger, link.ID); err != nil {
				ctx.Logger.Error("Fallback click count failed",
					slog.Uint64("link_id", uint64(link.ID)),
					slog.Any("error", err))
			}
		}

		return ctx.Redirect(link.URL, fiber.StatusMovedPermanently)
	}
}
