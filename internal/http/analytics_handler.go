package http

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linkpulse/internal/analytics"
	"linkpulse/internal/http/middleware"
	"linkpulse/internal/links"
	"linkpulse/internal/timeframe"
)

// errInvalidParam marks a query or path value outside its allowed range.
var errInvalidParam = errors.New("invalid parameter")

func invalidParam(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errInvalidParam, fmt.Sprintf(format, args...))
}

// intQuery reads an integer query value within [min, max].
func intQuery(ctx *cartridge.Context, name string, def, min, max int) (int, error) {
	raw := ctx.Query(name)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam("%s must be an integer", name)
	}
	if value < min || value > max {
		return 0, invalidParam("%s must be between %d and %d", name, min, max)
	}
	return value, nil
}

func daysQuery(ctx *cartridge.Context, def, max int) (int, error) {
	return intQuery(ctx, "days", def, 1, max)
}

// respondError maps handler errors onto JSON responses.
func respondError(ctx *cartridge.Context, err error, msg string) error {
	switch {
	case errors.Is(err, errInvalidParam):
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, links.ErrLinkNotFound):
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Link not found or you don't have permission to view its analytics",
		})
	default:
		ctx.Logger.Error(msg, slog.String("path", ctx.Path()), slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msg})
	}
}

// ownedLink loads the :id link when it belongs to the authenticated user.
func ownedLink(ctx *cartridge.Context) (*links.Link, error) {
	userID, ok := middleware.UserID(ctx.Ctx)
	if !ok {
		return nil, links.ErrLinkNotFound
	}
	id, err := strconv.ParseUint(ctx.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return nil, invalidParam("link id must be a positive integer")
	}
	return links.GetForOwner(ctx.DB(), uint(id), userID)
}

func reporter(ctx *cartridge.Context) *analytics.Reporter {
	return analytics.NewReporter(ctx.DB(), ctx.Logger)
}

// AnalyticsOverviewAction returns the full breakdown of a link.
func AnalyticsOverviewAction(ctx *cartridge.Context) error {
	days, err := daysQuery(ctx, 30, 365)
	if err != nil {
		return respondError(ctx, err, "Invalid parameters")
	}
	link, err := ownedLink(ctx)
	if err != nil {
		return respondError(ctx, err, "Failed to load link")
	}

	result, err := reporter(ctx).Overview(ctx.Ctx.UserContext(), link, days)
	if err != nil {
		return respondError(ctx, err, "Failed to compute analytics")
	}
	return ctx.JSON(result)
}

// AnalyticsDevicesAction returns the device and browser breakdown.
func AnalyticsDevicesAction(ctx *cartridge.Context) error {
	days, err := daysQuery(ctx, 30, 365)
	if err != nil {
		return respondError(ctx, err, "Invalid parameters")
	}
	link, err := ownedLink(ctx)
	if err != nil {
		return respondError(ctx, err, "Failed to load link")
	}

	report, err := reporter(ctx).Devices(link.ID, days)
	if err != nil {
		return respondError(ctx, err, "Failed to compute device analytics")
	}
	return ctx.JSON(report)
}

// AnalyticsGeographyAction returns the geographic breakdown.
func AnalyticsGeographyAction(ctx *cartridge.Context) error {
	days, err := daysQuery(ctx, 30, 365)
	if err != nil {
		return respondError(ctx, err, "Invalid parameters")
	}
	link, err := ownedLink(ctx)
	if err != nil {
		return respondError(ctx, err, "Failed to load link")
	}

	report, err := reporter(ctx).Geography(link.ID, days)
	if err != nil {
		return respondError(ctx, err, "Failed to compute geographic analytics")
	}
	return ctx.JSON(report)
}

// AnalyticsTimelineAction returns the click timeline at the requested
// granularity. Unknown granularities are daily.
func AnalyticsTimelineAction(ctx *cartridge.Context) error {
	days, err := daysQuery(ctx, 30, 365)
	if err != nil {
		return respondError(ctx, err, "Invalid parameters")
	}
	link, err := ownedLink(ctx)
	if err != nil {
		return respondError(ctx, err, "Failed to load link")
	}
	granularity := timeframe.ParseGranularity(ctx.Query("granularity", string(timeframe.GranularityDaily)))

	report, err := reporter(ctx).Timeline(link.ID, days, granularity)
	if err != nil {
		return respondError(ctx, err, "Failed to compute timeline")
	}
	return ctx.JSON(report)
}

// AnalyticsClicksAction pages through the raw clicks of a link.
func AnalyticsClicksAction(ctx *cartridge.Context) error {
	limit, err := intQuery(ctx, "limit", 100, 1, 1000)
	if err != nil {
		return respondError(ctx, err, "Invalid parameters")
	}
	offset, err := intQuery(ctx, "offset", 0, 0, math.MaxInt32)
	if err != nil {
		return respondError(ctx, err, "Invalid parameters")
	}
	link, err := ownedLink(ctx)
	if err != nil {
		return respondError(ctx, err, "Failed to load link")
	}

	page, err := reporter(ctx).ListClicks(link.ID, limit, offset)
	if err != nil {
		return respondError(ctx, err, "Failed to list clicks")
	}
	return ctx.JSON(page)
}

// AnalyticsExportAction exports a link's analytics as JSON or as a CSV
// attachment.
func AnalyticsExportAction(ctx *cartridge.Context) error {
	days, err := daysQuery(ctx, 30, 365)
	if err != nil {
		return respondError(ctx, err, "Invalid parameters")
	}
	link, err := ownedLink(ctx)
	if err != nil {
		return respondError(ctx, err, "Failed to load link")
	}

	r := reporter(ctx)
	if analytics.ParseExportFormat(ctx.Query("format", "json")) == analytics.ExportCSV {
		data, err := r.ExportCSV(ctx.Ctx.UserContext(), link, days)
		if err != nil {
			return respondError(ctx, err, "Failed to export analytics")
		}
		ctx.Set(fiber.HeaderContentType, "text/csv")
		ctx.Set(fiber.HeaderContentDisposition, "attachment; filename="+analytics.ExportFilename(link.ID))
		return ctx.Send(data)
	}

	export, err := r.ExportJSON(ctx.Ctx.UserContext(), link, days)
	if err != nil {
		return respondError(ctx, err, "Failed to export analytics")
	}
	return ctx.JSON(export)
}

// AnalyticsDashboardAction summarizes every link of the authenticated user.
func AnalyticsDashboardAction(ctx *cartridge.Context) error {
	userID, ok := middleware.UserID(ctx.Ctx)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not authenticated"})
	}
	days, err := daysQuery(ctx, 7, 90)
	if err != nil {
		return respondError(ctx, err, "Invalid parameters")
	}

	dashboard, err := reporter(ctx).Dashboard(userID, days)
	if err != nil {
		return respondError(ctx, err, "Failed to build dashboard")
	}
	return ctx.JSON(dashboard)
}
