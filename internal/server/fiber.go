package server

import (
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
)

// NewFiber builds the fiber app with jsoniter as JSON codec
func NewFiber(bodyLimitMB int) *fiber.App {
	if bodyLimitMB <= 0 {
		bodyLimitMB = 20
	}

	return fiber.New(
		fiber.Config{
			AppName:               "emoface",
			BodyLimit:             bodyLimitMB * 1024 * 1024,
			StrictRouting:         true,
			CaseSensitive:         true,
			DisableStartupMessage: true,
			JSONEncoder:           jsoniter.Marshal,
			JSONDecoder:           jsoniter.Unmarshal,
			ErrorHandler:          errorHandler,
		})
}

// errorHandler renders errors that escape the handlers, such as unknown
// routes or oversized bodies, in the same JSON shape as handleError
func errorHandler(ctx *fiber.Ctx, err error) error {
	code, msg := errorStatus(err)
	return ctx.Status(code).JSON(fiber.Map{"error": msg})
}
