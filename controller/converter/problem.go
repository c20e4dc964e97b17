package converter

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/kylycht/ratebot/service"
)

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`     // URI reference that identifies the problem type
	Title    string `json:"title"`              // Short, human-readable summary
	Status   int    `json:"status"`             // HTTP status code
	Detail   string `json:"detail,omitempty"`   // Human-readable explanation
	Instance string `json:"instance,omitempty"` // URI reference of the occurrence
}

func problem(ctx *fiber.Ctx, status int, title, detail string) error {
	return ctx.Status(status).JSON(ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: ctx.OriginalURL(),
	}, "application/problem+json")
}

// ErrorToStatusCode maps resolution failures to HTTP status codes
func ErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrUnsupportedCurrency):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrInvalidAmount):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrRateUnavailable):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func rateProblem(ctx *fiber.Ctx, err error) error {
	status := ErrorToStatusCode(err)

	title := "Rate unavailable"
	switch service.KindOf(err) {
	case service.ErrUnsupportedCurrency:
		title = "Unsupported currency"
	case service.ErrInvalidAmount:
		title = "Invalid amount"
	}

	// upstream details are not exposed
	detail := err.Error()
	if status >= fiber.StatusInternalServerError {
		detail = "exchange rate could not be obtained, try again later"
	}

	return problem(ctx, status, title, detail)
}
