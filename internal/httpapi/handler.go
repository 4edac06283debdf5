package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	stegseal "github.com/stegseal/stegseal-go"
	"github.com/stegseal/stegseal-go/keystore"
)

// DefaultMaxUploadBytes bounds multipart bodies when HandlerConfig leaves it
// unset.
const DefaultMaxUploadBytes = 32 << 20

var validate = validator.New()

// CreateKeyRequest is the body of POST /api/v1/keys.
type CreateKeyRequest struct {
	Identity string `json:"identity" validate:"required,max=256"`
	// Rotate replaces an existing key pair instead of returning it.
	Rotate bool `json:"rotate"`
}

// KeyResponse describes a stored public key.
type KeyResponse struct {
	Identity  string     `json:"identity"`
	PublicKey string     `json:"public_key"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// RevealResponse carries a revealed message. Encoding is "utf-8" or
// "base64".
type RevealResponse struct {
	Message  string `json:"message"`
	Encoding string `json:"encoding"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// HandlerConfig holds the handler's dependencies.
type HandlerConfig struct {
	Pipeline       *stegseal.Pipeline
	Store          keystore.Store
	Log            *slog.Logger
	MaxUploadBytes int64
}

// Handler implements the API routes.
type Handler struct {
	pipeline  *stegseal.Pipeline
	store     keystore.Store
	log       *slog.Logger
	maxUpload int64
}

// NewHandler creates a handler.
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		pipeline:  cfg.Pipeline,
		store:     cfg.Store,
		log:       cfg.Log,
		maxUpload: cfg.MaxUploadBytes,
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	if h.maxUpload <= 0 {
		h.maxUpload = DefaultMaxUploadBytes
	}
	return h
}

// CreateKey handles POST /api/v1/keys.
func (h *Handler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req CreateKeyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := keystore.ValidateIdentity(req.Identity); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var (
		kp      *stegseal.KeyPair
		created bool
		err     error
	)
	if req.Rotate {
		if kp, err = stegseal.GenerateKeyPair(); err == nil {
			err = h.store.Put(r.Context(), req.Identity, kp)
		}
		created = true
	} else {
		kp, created, err = stegseal.EnsureKeyPair(r.Context(), h.store, req.Identity)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.log.Info("key pair stored", "identity", req.Identity, "rotate", req.Rotate)
	}
	writeJSON(w, status, KeyResponse{Identity: req.Identity, PublicKey: kp.PublicKeyB64()})
}

// ListKeys handles GET /api/v1/keys.
func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]KeyResponse, 0, len(entries))
	for _, e := range entries {
		created := e.CreatedAt
		out = append(out, KeyResponse{Identity: e.Identity, PublicKey: e.PublicKeyB64(), CreatedAt: &created})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetKey handles GET /api/v1/keys/{identity}.
func (h *Handler) GetKey(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	kp, err := stegseal.LookupKeyPair(r.Context(), h.store, identity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, KeyResponse{Identity: identity, PublicKey: kp.PublicKeyB64()})
}

// DeleteKey handles DELETE /api/v1/keys/{identity}.
func (h *Handler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	if err := h.store.Delete(r.Context(), identity); err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.Info("key pair deleted", "identity", identity)
	w.WriteHeader(http.StatusNoContent)
}

// Hide handles POST /api/v1/hide. The form carries either recipient (an
// identity in the key store) or recipient_key (a public key), plus message,
// image and the optional mode, watermark, watermark_text and scramble.
func (h *Handler) Hide(w http.ResponseWriter, r *http.Request) {
	img, ok := h.readImage(w, r)
	if !ok {
		return
	}

	var opts []stegseal.HideOption
	if mode := r.FormValue("mode"); mode != "" {
		opts = append(opts, stegseal.WithVisualMode(mode))
	}
	if formBool(r, "watermark") {
		opts = append(opts, stegseal.WithWatermark(true))
	}
	if text := r.FormValue("watermark_text"); text != "" {
		opts = append(opts, stegseal.WithWatermarkText(text))
	}
	if formBool(r, "scramble") {
		opts = append(opts, stegseal.WithScrambledMetadata(true))
	}

	message := []byte(r.FormValue("message"))

	var (
		out []byte
		err error
	)
	switch recipient, key := r.FormValue("recipient"), r.FormValue("recipient_key"); {
	case key != "":
		var pk *[stegseal.KeySize]byte
		if pk, err = stegseal.ParsePublicKey(key); err == nil {
			out, err = h.pipeline.HideMessage(r.Context(), message, pk, img, opts...)
		}
	case recipient != "":
		out, err = h.pipeline.HideFor(r.Context(), h.store, recipient, message, img, opts...)
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "recipient or recipient_key is required")
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writePNG(w, out)
}

// Reveal handles POST /api/v1/reveal.
func (h *Handler) Reveal(w http.ResponseWriter, r *http.Request) {
	img, ok := h.readImage(w, r)
	if !ok {
		return
	}

	identity := r.FormValue("identity")
	if identity == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "identity is required")
		return
	}

	msg, err := h.pipeline.RevealAs(r.Context(), h.store, identity, img)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeMessage(msg))
}

// Scan handles POST /api/v1/scan. identity is optional.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	img, ok := h.readImage(w, r)
	if !ok {
		return
	}

	var kp *stegseal.KeyPair
	if identity := r.FormValue("identity"); identity != "" {
		var err error
		if kp, err = stegseal.LookupKeyPair(r.Context(), h.store, identity); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	res, err := h.pipeline.Scan(r.Context(), img, kp)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Capacity handles POST /api/v1/capacity.
func (h *Handler) Capacity(w http.ResponseWriter, r *http.Request) {
	img, ok := h.readImage(w, r)
	if !ok {
		return
	}

	n, err := h.pipeline.Capacity(r.Context(), img)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"capacity": n, "suite": h.pipeline.Suite()})
}

// Strip handles POST /api/v1/strip.
func (h *Handler) Strip(w http.ResponseWriter, r *http.Request) {
	h.transform(w, r, h.pipeline.StripMetadata)
}

// Scramble handles POST /api/v1/scramble.
func (h *Handler) Scramble(w http.ResponseWriter, r *http.Request) {
	h.transform(w, r, h.pipeline.ScrambleMetadata)
}

// Effect handles POST /api/v1/effect/{mode}.
func (h *Handler) Effect(w http.ResponseWriter, r *http.Request) {
	mode := chi.URLParam(r, "mode")
	h.transform(w, r, func(ctx context.Context, img []byte) ([]byte, error) {
		return h.pipeline.ApplyVisualEffect(ctx, img, mode, formBool(r, "watermark"))
	})
}

func (h *Handler) transform(w http.ResponseWriter, r *http.Request, fn func(context.Context, []byte) ([]byte, error)) {
	img, ok := h.readImage(w, r)
	if !ok {
		return
	}
	out, err := fn(r.Context(), img)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writePNG(w, out)
}

// readImage parses the multipart form and returns the image part. On
// failure the response has been written.
func (h *Handler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request_too_large",
				fmt.Sprintf("request body exceeds %d bytes", tooBig.Limit))
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "expected multipart/form-data")
		return nil, false
	}

	f, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "image is required")
		return nil, false
	}
	defer f.Close()

	img, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "failed to read image")
		return nil, false
	}
	return img, true
}

// fail writes err using the status of its kind.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := stegseal.ErrorKind(err)
	if errors.Is(err, keystore.ErrNotFound) {
		kind = "recipient_key_not_found"
	}
	if errors.Is(err, keystore.ErrInvalidIdentity) {
		kind = "invalid_request"
	}

	status := statusFor(kind)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "path", r.URL.Path, "request_id", RequestIDFrom(r.Context()), "err", err)
		msg = http.StatusText(status)
	}

	writeJSON(w, status, ErrorResponse{Error: kind, Message: msg, RequestID: RequestIDFrom(r.Context())})
}

func statusFor(kind string) int {
	switch kind {
	case "recipient_key_not_found":
		return http.StatusNotFound
	case "capacity_exceeded":
		return http.StatusRequestEntityTooLarge
	case "image_decode", "unknown_visual_mode", "invalid_key", "invalid_request":
		return http.StatusBadRequest
	case "unsupported_image_format":
		return http.StatusUnsupportedMediaType
	case "no_hidden_data", "malformed_ciphertext", "decryption_failed":
		return http.StatusUnprocessableEntity
	case "pipeline_closed":
		return http.StatusServiceUnavailable
	case "canceled", "deadline_exceeded":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func encodeMessage(msg []byte) RevealResponse {
	if utf8.Valid(msg) {
		return RevealResponse{Message: string(msg), Encoding: "utf-8"}
	}
	return RevealResponse{Message: base64.StdEncoding.EncodeToString(msg), Encoding: "base64"}
}

func formBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.FormValue(key))
	return err == nil && v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, ErrorResponse{Error: kind, Message: msg})
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
