package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/dudu/emoface/internal/detector"
	applog "github.com/dudu/emoface/internal/log"
	"github.com/dudu/emoface/internal/pipeline"
)

// ResponseError carries the HTTP status an error should be reported with
type ResponseError struct {
	Code int
	Err  error
}

func (e *ResponseError) Error() string {
	return e.Err.Error()
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

func NewError(code int, msg string) error {
	return &ResponseError{code, errors.New(msg)}
}

var (
	ErrNoImage         = NewError(fiber.StatusBadRequest, "No image file provided")
	ErrTooManyRequests = NewError(fiber.StatusTooManyRequests, "Too many requests")
)

type boxResponse struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

type faceResponse struct {
	Emotion    string      `json:"emotion"`
	FaceImage  string      `json:"face_image"`
	Confidence float32     `json:"confidence"`
	Score      float32     `json:"score"`
	Box        boxResponse `json:"box"`
}

type analyzeResponse struct {
	Results []faceResponse `json:"results"`
}

// errorStatus maps an error to its status code and client-facing message
func errorStatus(err error) (int, string) {
	var respErr *ResponseError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &respErr):
		return respErr.Code, respErr.Err.Error()
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message
	case errors.Is(err, pipeline.ErrImageLoad):
		return fiber.StatusBadRequest, "Uploaded file is not a readable image"
	case errors.Is(err, detector.ErrInvalidBox):
		return fiber.StatusInternalServerError, "Detected face could not be cropped"
	default:
		return fiber.StatusInternalServerError, "Failed to analyze image"
	}
}

func (s *Server) handleError(ctx *fiber.Ctx, err error, operation string) error {
	code, msg := errorStatus(err)

	entry := s.log.WithFields(applog.Fields{
		applog.RequestIDKey: requestID(ctx),
		"error":             err.Error(),
		"code":              code,
		"path":              ctx.Path(),
		"operation":         operation,
	})
	if code >= fiber.StatusInternalServerError {
		entry.Error("Operation failed")
	} else {
		entry.Warn("Operation rejected")
	}

	return ctx.Status(code).JSON(fiber.Map{"error": msg})
}
