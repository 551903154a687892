package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"taskboard/api/internal/logging"
	"taskboard/api/internal/mutation"
	"taskboard/api/internal/session"
	"taskboard/api/internal/signup"
)

var validate = validator.New()

type HTTPServer struct {
	service    *Service
	corsOrigin string
	log        logging.Logger
}

func NewHTTPServer(service *Service, corsOrigin string, logger logging.Logger) *HTTPServer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &HTTPServer{service: service, corsOrigin: corsOrigin, log: logger}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		who := session.FromContext(r.Context())
		if !who.Authenticated() {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "userId": who.UserID, "userName": who.UserName})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		values, err := decodeFormValues(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		outcome, err := s.service.Register(r.Context(), values)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeOutcome(w, outcome)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signin" {
		var req signInRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid sign-in request", validationDetails(err))
			return
		}
		result, err := s.service.SignIn(r.Context(), req.Email, req.Password)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"userId": result.UserID, "userName": result.UserName, "token": result.SessionToken})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signout" {
		if token := bearerToken(r); token != "" {
			if err := s.service.SignOut(r.Context(), token); err != nil {
				logging.FromContext(r.Context()).Warn("sign out failed", "err", err)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "tasks" {
		s.handleTasks(w, r, parts[2:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	statusCode := http.StatusOK
	checks := map[string]any{}
	deps := []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.service.Ping},
		{"sessions", s.service.PingSessions},
	}
	for _, dep := range deps {
		if err := dep.ping(ctx); err != nil {
			statusCode = http.StatusServiceUnavailable
			logging.FromContext(r.Context()).Warn("readiness check failed", "check", dep.name, "err", err)
			checks[dep.name] = map[string]any{"status": "error", "error": "unavailable"}
			continue
		}
		checks[dep.name] = map[string]any{"status": "ok"}
	}

	status := "ready"
	if statusCode != http.StatusOK {
		status = "not_ready"
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     statusCode == http.StatusOK,
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleTasks(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodPost:
		values, err := decodeFormValues(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		outcome, err := s.service.SubmitNewTask(r.Context(), values)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeOutcome(w, outcome)

	case len(rest) == 0 && r.Method == http.MethodGet:
		who, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		tasks, err := s.service.ListTasks(r.Context(), who.UserID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})

	case len(rest) == 1 && rest[0] == "search" && r.Method == http.MethodGet:
		who, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		req := searchRequest{Q: strings.TrimSpace(r.URL.Query().Get("q"))}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_QUERY", "limit must be a number", nil)
				return
			}
			req.Limit = limit
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid search query", validationDetails(err))
			return
		}
		writeJSON(w, http.StatusOK, s.service.SearchTasks(r.Context(), who.UserID, req.Q, req.Limit))

	case len(rest) == 2 && rest[1] == "form" && r.Method == http.MethodGet:
		who, ok := requireIdentity(w, r)
		if !ok {
			return
		}
		values, err := s.service.TaskEditForm(r.Context(), who.UserID, rest[0])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": rest[0], "values": values})

	case len(rest) == 1 && r.Method == http.MethodPut:
		values, err := decodeFormValues(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		outcome, err := s.service.SubmitTaskEdit(r.Context(), rest[0], values)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeOutcome(w, outcome)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type searchRequest struct {
	Q     string `validate:"required,max=200"`
	Limit int    `validate:"gte=0,lte=100"`
}

func validationDetails(err error) map[string]string {
	details := map[string]string{}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			details[strings.ToLower(fe.Field())] = fe.Tag()
		}
	}
	return details
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed", "err", err)
	}
	writeError(w, status, code, message, details)
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (session.Identity, bool) {
	who := session.FromContext(r.Context())
	if !who.Authenticated() {
		status, code, message, _ := mapError(errUnauthorized)
		writeError(w, status, code, message, nil)
		return session.Identity{}, false
	}
	return who, true
}

// withMiddleware assigns a request id, resolves the bearer token to an
// identity, sets CORS headers and writes the access log.
func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		logger := s.log.With("request_id", requestID)
		ctx := logging.WithContext(r.Context(), logger)

		if token := bearerToken(r); token != "" {
			who, err := s.service.Authenticate(ctx, token)
			if err != nil {
				logger.Debug("ignoring bearer token", "err", err)
			} else {
				ctx = session.WithIdentity(ctx, who)
			}
		}
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

type outcomeResponse struct {
	Phase    mutation.Phase     `json:"phase"`
	Loading  mutation.LoadState `json:"loading"`
	Values   map[string]string  `json:"values"`
	Errors   map[string]string  `json:"errors"`
	Message  string             `json:"message,omitempty"`
	Redirect string             `json:"redirect,omitempty"`
	Closed   bool               `json:"closed"`
	Skipped  bool               `json:"skipped,omitempty"`
	Token    string             `json:"token,omitempty"`
}

// writeOutcome renders a form outcome. Field errors and remote failures are
// 422; everything else, the silent no-ops included, is 200.
func writeOutcome(w http.ResponseWriter, outcome mutation.Outcome) {
	values := make(map[string]string, len(outcome.Values))
	for name, value := range outcome.Values {
		if name == signup.FieldPassword {
			continue
		}
		values[name] = value
	}
	errs := map[string]string{}
	for name, message := range outcome.Errors {
		errs[name] = message
	}

	status := http.StatusOK
	if len(errs) > 0 || outcome.Message != "" {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, outcomeResponse{
		Phase:    outcome.Phase,
		Loading:  outcome.Loading,
		Values:   values,
		Errors:   errs,
		Message:  outcome.Message,
		Redirect: outcome.Redirect,
		Closed:   outcome.Closed,
		Skipped:  outcome.Skipped,
		Token:    outcome.Token,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

// decodeFormValues reads a flat JSON object of form fields. Booleans become
// "true" or "", numbers their decimal text; nested values are rejected.
func decodeFormValues(r *http.Request) (map[string]string, error) {
	raw := map[string]any{}
	if err := decodeBody(r, &raw); err != nil {
		return nil, err
	}
	values := make(map[string]string, len(raw))
	for name, value := range raw {
		switch v := value.(type) {
		case nil:
			values[name] = ""
		case string:
			values[name] = v
		case bool:
			if v {
				values[name] = "true"
			} else {
				values[name] = ""
			}
		case float64:
			values[name] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return nil, fmt.Errorf("field %s must be a scalar", name)
		}
	}
	return values, nil
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
