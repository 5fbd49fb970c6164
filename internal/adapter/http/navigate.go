package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"nav-agent/internal/application/port/input"
	"nav-agent/internal/domain/entity"
	"nav-agent/internal/domain/session"
	"nav-agent/internal/infrastructure/imageproc"
)

type turnRequest struct {
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type,omitempty"`
	Goal        string `json:"goal"`
	SessionID   string `json:"session_id,omitempty"`
	// Context is either the context object or its JSON-encoded string form.
	Context json.RawMessage `json:"context,omitempty"`
}

type turnResponse struct {
	Action  *entity.Action         `json:"action,omitempty"`
	Detail  string                 `json:"detail,omitempty"`
	Context *entity.SessionContext `json:"context,omitempty"`
}

type newSessionRequest struct {
	SessionID   string             `json:"session_id"`
	GlobalGoal  string             `json:"global_goal"`
	Environment entity.Environment `json:"environment"`
}

func (h *Handler) navigateMultipart(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart/form-data: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	shot, err := readUpload(r)
	if err != nil {
		writeTurnError(w, h.logger, err)
		return
	}

	c, err := session.Resolve(r.FormValue("context"), r.FormValue("session_id"))
	if err != nil {
		writeTurnError(w, h.logger, err)
		return
	}

	res, err := h.take(r.Context(), input.TurnRequest{Screenshot: shot, Goal: r.FormValue("goal"), Context: c})
	if err != nil {
		writeTurnError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Action)
}

func (h *Handler) navigateBase64(w http.ResponseWriter, r *http.Request) {
	req, c, shot, ok := h.readTurnRequest(w, r)
	if !ok {
		return
	}

	res, err := h.take(r.Context(), input.TurnRequest{Screenshot: shot, Goal: req.Goal, Context: c})
	if err != nil {
		writeTurnError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Action)
}

// turn is the stateless-caller form: the updated context comes back on success
// and on failure, so the caller can carry it into its next request.
func (h *Handler) turn(w http.ResponseWriter, r *http.Request) {
	req, c, shot, ok := h.readTurnRequest(w, r)
	if !ok {
		return
	}

	res, err := h.take(r.Context(), input.TurnRequest{Screenshot: shot, Goal: req.Goal, Context: c})
	if err != nil {
		out := turnResponse{Detail: err.Error(), Context: &c}
		var te *entity.TurnError
		if errors.As(err, &te) {
			out.Context = &te.Context
		}
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Turn request failed", "error", err)
			out.Detail = "internal server error"
		}
		writeJSON(w, status, out)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{Action: &res.Action, Context: &res.Context})
}

func (h *Handler) newSession(w http.ResponseWriter, r *http.Request) {
	var req newSessionRequest
	if r.ContentLength != 0 {
		var ok bool
		if req, ok = readJSON[newSessionRequest](w, r, 64<<10); !ok {
			return
		}
	}

	c := session.New(req.SessionID)
	if goal := strings.TrimSpace(req.GlobalGoal); goal != "" {
		c = session.ReplaceGlobalGoal(c, goal)
	}
	c = session.WithEnvironment(c, req.Environment)

	writeJSON(w, http.StatusCreated, map[string]any{"context": c})
}

func (h *Handler) take(ctx context.Context, req input.TurnRequest) (*input.TurnResult, error) {
	if h.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.RequestTimeout)
		defer cancel()
	}
	return h.turns.TakeTurn(ctx, req)
}

func (h *Handler) readTurnRequest(w http.ResponseWriter, r *http.Request) (turnRequest, entity.SessionContext, entity.Screenshot, bool) {
	req, ok := readJSON[turnRequest](w, r, h.opts.MaxUploadBytes)
	if !ok {
		return req, entity.SessionContext{}, entity.Screenshot{}, false
	}

	shot, err := decodeBase64Image(req.ImageBase64, req.MimeType)
	if err != nil {
		writeTurnError(w, h.logger, err)
		return req, entity.SessionContext{}, entity.Screenshot{}, false
	}

	wire, err := contextWire(req.Context)
	if err == nil {
		var c entity.SessionContext
		c, err = session.Resolve(wire, req.SessionID)
		if err == nil {
			return req, c, shot, true
		}
	}
	writeTurnError(w, h.logger, err)
	return req, entity.SessionContext{}, entity.Screenshot{}, false
}

func readUpload(r *http.Request) (entity.Screenshot, error) {
	file, header, err := r.FormFile("screenshot")
	if err != nil {
		return entity.Screenshot{}, fmt.Errorf("%w: screenshot file is required", entity.ErrInvalidRequest)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return entity.Screenshot{}, fmt.Errorf("%w: read screenshot: %v", entity.ErrInvalidRequest, err)
	}
	if len(data) == 0 {
		return entity.Screenshot{}, fmt.Errorf("%w: uploaded screenshot is empty", entity.ErrInvalidRequest)
	}

	mime, ok := entity.MimeTypeFromFilename(header.Filename)
	if !ok {
		mime = header.Header.Get("Content-Type")
	}
	if !entity.SupportedMimeType(mime) {
		if sniffed, ok := imageproc.DetectMimeType(data); ok {
			mime = sniffed
		}
	}
	return entity.Screenshot{Data: data, MimeType: mime}, nil
}

// decodeBase64Image accepts raw base64 or a data: URL. The MIME type comes from
// the explicit field, then the data: URL header, then the bytes themselves.
func decodeBase64Image(encoded, mime string) (entity.Screenshot, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return entity.Screenshot{}, fmt.Errorf("%w: image_base64 is required", entity.ErrInvalidRequest)
	}

	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found {
			return entity.Screenshot{}, fmt.Errorf("%w: malformed data URL", entity.ErrInvalidRequest)
		}
		if mime == "" {
			mime, _, _ = strings.Cut(header, ";")
		}
		encoded = payload
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return entity.Screenshot{}, fmt.Errorf("%w: invalid base64 image: %v", entity.ErrInvalidRequest, err)
	}
	if len(data) == 0 {
		return entity.Screenshot{}, fmt.Errorf("%w: decoded image is empty", entity.ErrInvalidRequest)
	}
	if mime == "" {
		mime, _ = imageproc.DetectMimeType(data)
	}
	return entity.Screenshot{Data: data, MimeType: mime}, nil
}

func contextWire(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case trimmed == "" || trimmed == "null":
		return "", nil
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: context: %v", entity.ErrInvalidRequest, err)
		}
		return s, nil
	}
	return trimmed, nil
}
