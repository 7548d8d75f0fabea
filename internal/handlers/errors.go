package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"imgforge/pkg/fetch"
	"imgforge/pkg/forgeurl"
	"imgforge/pkg/options"
	"imgforge/pkg/processing"
	"imgforge/pkg/utils"
)

var (
	// errSignatureMismatch covers both a bad digest and a disallowed
	// "unsafe" token; callers cannot tell the two apart.
	errSignatureMismatch = errors.New("invalid signature")

	// errResolutionTooLarge trips the megapixel guard.
	errResolutionTooLarge = errors.New("source image resolution is too large")
)

// writeServiceError maps an internal error to its HTTP status, stable code,
// and user-safe message. Upstream URLs and key material never reach the
// response body.
func writeServiceError(w http.ResponseWriter, requestID string, err error) {
	status, code, message := classifyError(err)

	if errors.Is(err, context.Canceled) {
		// The client is gone; there is nobody to write to.
		log.Debug().Str("request_id", requestID).Msg("request cancelled by client")
		return
	}

	if status >= 500 {
		log.Error().Err(err).Str("request_id", requestID).Msg("request failed")
	} else {
		log.Warn().Err(err).Str("request_id", requestID).Msg("request rejected")
	}

	utils.WriteError(w, status, code, message)
}

func classifyError(err error) (int, string, string) {
	var optionErr *options.OptionError
	var unknownPreset *options.UnknownPresetError
	var presetsOnly *options.PresetsOnlyError
	var fetchErr *fetch.Error
	var engineErr *processing.EngineError

	switch {
	case errors.Is(err, forgeurl.ErrInvalidFormat):
		return http.StatusBadRequest, utils.ErrRequestInvalidURL, "Invalid URL format."

	case errors.Is(err, forgeurl.ErrInvalidSource), errors.Is(err, fetch.ErrInvalidScheme):
		return http.StatusBadRequest, utils.ErrRequestInvalidSource, "Invalid source URL."

	case errors.As(err, &optionErr):
		return http.StatusBadRequest, utils.ErrRequestInvalidOption, "Invalid option: " + optionErr.Name + "."

	case errors.As(err, &unknownPreset):
		return http.StatusBadRequest, utils.ErrRequestUnknownPreset, "Unknown preset: " + unknownPreset.Name + "."

	case errors.As(err, &presetsOnly):
		return http.StatusBadRequest, utils.ErrRequestPresetsOnly, "Only presets are allowed, found: " + presetsOnly.Directive + "."

	case errors.Is(err, errSignatureMismatch):
		return http.StatusForbidden, utils.ErrAuthSignatureMismatch, "Signature mismatch."

	case errors.Is(err, fetch.ErrSourceTooLarge), errors.Is(err, errResolutionTooLarge):
		return http.StatusBadRequest, utils.ErrRequestSourceTooLarge, "Source image is too large."

	case errors.Is(err, fetch.ErrUnsupportedMime):
		return http.StatusBadRequest, utils.ErrRequestUnsupportedMime, "Source MIME type is not allowed."

	case errors.Is(err, fetch.ErrDownloadTimeout):
		return http.StatusBadRequest, utils.ErrRequestDownloadTimeout, "Source download timed out."

	case errors.As(err, &fetchErr):
		return http.StatusBadRequest, utils.ErrUpstreamFetchFailed, "Could not fetch source image."

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, utils.ErrServerTimeout, "Request timed out."

	case errors.As(err, &engineErr):
		// Decode failures of the source or watermark are the client's
		// problem; anything deeper in the engine is ours.
		if engineErr.Stage == "load" || engineErr.Stage == "watermark" {
			return http.StatusBadRequest, utils.ErrRequestInvalidSource, "Could not decode source image."
		}
		return http.StatusInternalServerError, utils.ErrServerInternal, "Image processing failed."

	default:
		return http.StatusInternalServerError, utils.ErrServerInternal, "Internal error."
	}
}
