package handlers

import (
	"context"
	"net/http"
	"time"

	"imgforge/internal/middleware"
	"imgforge/pkg/processing"
	"imgforge/pkg/utils"
)

// ImageInfo is the /info response body: source metadata from a header-only
// decode.
type ImageInfo struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Size   int    `json:"size"`
}

// Info parses and verifies the path like the main endpoint, fetches the
// source, and returns header metadata. No pixel data is decoded.
func (s *State) Info(w http.ResponseWriter, r *http.Request, rawPath string) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(s.Config.Timeout)*time.Second)
	defer cancel()

	info, err := s.InfoPath(ctx, rawPath)
	if err != nil {
		writeServiceError(w, middleware.RequestID(r.Context()), err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, info)
}

// InfoPath is the transport-independent core of the Info handler.
func (s *State) InfoPath(ctx context.Context, rawPath string) (*ImageInfo, error) {
	parsed, err := s.parseAndAuthorize(rawPath)
	if err != nil {
		return nil, err
	}

	sourceURL, err := parsed.Source.Decode()
	if err != nil {
		return nil, err
	}

	sourceBytes, err := s.fetchSource(ctx, sourceURL, nil)
	if err != nil {
		return nil, err
	}

	header, format, err := processing.DecodeConfig(sourceBytes)
	if err != nil {
		return nil, &processing.EngineError{Stage: "load", Err: err}
	}

	return &ImageInfo{
		Width:  header.Width,
		Height: header.Height,
		Format: format,
		Size:   len(sourceBytes),
	}, nil
}
