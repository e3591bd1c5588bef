package server

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/dudu/emoface/internal/imaging"
	applog "github.com/dudu/emoface/internal/log"
	"github.com/dudu/emoface/internal/pipeline"
)

const faceJPEGQuality = 90

func (s *Server) index(ctx *fiber.Ctx) error {
	page, err := webFS.ReadFile("web/index.html")
	if err != nil {
		return s.handleError(ctx, err, "read_index")
	}
	ctx.Type("html", "utf-8")
	return ctx.Send(page)
}

func (s *Server) healthz(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"message": "ok"})
}

// analyze stores the uploaded image under a generated name, runs the
// pipeline on it and removes it again.
func (s *Server) analyze(ctx *fiber.Ctx) error {
	file, err := ctx.FormFile("image")
	if err != nil {
		return s.handleError(ctx, ErrNoImage, "form_file")
	}

	s.log.WithFields(applog.Fields{
		applog.RequestIDKey: requestID(ctx),
		"file_name":         file.Filename,
		"file_size":         file.Size,
	}).Debug("Processing file upload")

	imagePath := filepath.Join(s.uploadDir, uuid.NewString())
	if err := ctx.SaveFile(file, imagePath); err != nil {
		return s.handleError(ctx, fmt.Errorf("failed to save upload: %w", err), "save_file")
	}
	defer s.removeUpload(imagePath)

	results, err := s.analyzer.ProcessImage(imagePath)
	if err != nil {
		return s.handleError(ctx, err, "process_image")
	}

	resp, err := newAnalyzeResponse(results)
	if err != nil {
		return s.handleError(ctx, err, "encode_faces")
	}
	return ctx.Status(fiber.StatusOK).JSON(resp)
}

func (s *Server) removeUpload(path string) {
	if err := os.Remove(path); err != nil {
		s.log.Warnf("Failed to delete uploaded file %s: %v", path, err)
	}
}

func newAnalyzeResponse(results []pipeline.Result) (analyzeResponse, error) {
	resp := analyzeResponse{Results: make([]faceResponse, 0, len(results))}
	for i, r := range results {
		jpg, err := imaging.EncodeJPEG(r.Face, faceJPEGQuality)
		if err != nil {
			return analyzeResponse{}, fmt.Errorf("failed to encode face %d: %w", i, err)
		}

		resp.Results = append(resp.Results, faceResponse{
			Emotion:    r.Emotion,
			FaceImage:  base64.StdEncoding.EncodeToString(jpg),
			Confidence: r.Confidence,
			Score:      r.Score,
			Box: boxResponse{
				X1: r.Box.X1,
				Y1: r.Box.Y1,
				X2: r.Box.X2,
				Y2: r.Box.Y2,
			},
		})
	}
	return resp, nil
}
