// Package slashcmd serves the signed /rollback slash command.
//
// Each request runs one pass of:
//
//	method check -> raw body capture -> signature check -> decode
//	  -> usage reply or field validation -> dispatch to the Rollbacker -> reply
//
// The body is read exactly once, before anything decodes it, so the
// signature is checked over the bytes the platform actually sent.
package slashcmd

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/rollbot/internal/rawbody"
	"github.com/mattjoyce/rollbot/internal/rollback"
	"github.com/mattjoyce/rollbot/internal/signature"
)

// Config configures a Handler.
type Config struct {
	Verifier signature.Verifier
	// MaxBodySize caps the request body (default DefaultMaxBodySize).
	MaxBodySize int64
}

// Handler is the http.Handler for the rollback command.
type Handler struct {
	verifier    signature.Verifier
	maxBodySize int64
	rollbacker  Rollbacker
	logger      *slog.Logger
}

// New creates a Handler. A nil rollbacker is replaced with rollback.Noop.
func New(cfg Config, rb Rollbacker, logger *slog.Logger) *Handler {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if rb == nil {
		rb = rollback.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		verifier:    cfg.Verifier,
		maxBodySize: cfg.MaxBodySize,
		rollbacker:  rb,
		logger:      logger,
	}
}

func (h *Handler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	w := middleware.NewWrapResponseWriter(rw, r.ProtoMajor)
	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			h.logger.Error("command handler panic",
				"path", r.URL.Path,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			// A reply already on the wire cannot be replaced.
			if w.Status() != 0 {
				return
			}
			h.respondError(w, http.StatusInternalServerError, msgInternal)
		}
	}()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.respondError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	body, err := rawbody.Read(r.Context(), r.Body, h.maxBodySize)
	if errors.Is(err, rawbody.ErrTooLarge) {
		h.logger.Warn("command body too large", "path", r.URL.Path, "limit", h.maxBodySize)
		h.respondError(w, http.StatusRequestEntityTooLarge, msgPayloadTooLarge)
		return
	}
	if err != nil {
		h.logger.Error("failed to read command body", "path", r.URL.Path, "error", err)
		h.respondError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	if err := h.verifier.Check(r.Header, body); err != nil {
		h.logger.Warn("command signature verification failed",
			"path", r.URL.Path,
			"reason", err,
		)
		h.respondError(w, http.StatusUnauthorized, msgVerificationFailed)
		return
	}

	payload, err := DecodePayload(r.Header.Get("Content-Type"), body)
	if err != nil {
		h.logger.Warn("malformed command payload", "path", r.URL.Path, "error", err)
		h.respondError(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	project := strings.TrimSpace(payload.Text)
	switch {
	case project == "":
		h.respondJSON(w, http.StatusOK, Response{ResponseType: Ephemeral, Text: MissingProjectText})
		return
	case strings.EqualFold(project, "help"):
		h.respondJSON(w, http.StatusOK, Response{ResponseType: Ephemeral, Text: UsageText})
		return
	}

	// Only a dispatched rollback needs to know who asked and where.
	if err := payload.validate(); err != nil {
		h.logger.Warn("incomplete command payload", "path", r.URL.Path, "error", err)
		h.respondError(w, http.StatusBadRequest, msgBadRequest)
		return
	}

	req := rollback.Request{
		Project:   project,
		UserID:    payload.UserID,
		ChannelID: payload.ChannelID,
		Delivery:  r.Header.Get(signature.TimestampHeader) + ":" + r.Header.Get(signature.SignatureHeader),
	}
	if err := h.rollbacker.RequestRollback(r.Context(), req); err != nil {
		h.logger.Error("failed to hand off rollback request",
			"project", project,
			"user_id", payload.UserID,
			"channel_id", payload.ChannelID,
			"error", err,
		)
		h.respondError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	h.logger.Info("rollback requested",
		"project", project,
		"user_id", payload.UserID,
		"channel_id", payload.ChannelID,
	)
	h.respondJSON(w, http.StatusOK, Response{ResponseType: Ephemeral, Text: AckText(project)})
}

// respondJSON sends a JSON response.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		h.logger.Debug("failed to write response", "error", err)
	}
}

// respondError sends a JSON error response.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, ErrorResponse{Error: message})
}
