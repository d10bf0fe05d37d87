package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// ContentType is set on every API response.
const ContentType = `application/json; charset="utf-8"`

// HeaderAppID identifies the calling application.
const HeaderAppID = "X-TBA-App-Id"

const (
	msgAppIDRequired = "X-TBA-App-Id is a required header."
	msgAppIDFormat   = "X-TBA-App-Id must follow the following format: <team/person id>:<app description>:<version>"
)

// HandlerFunc is an API handler. Returned errors are translated by Base.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Tracker records API usage.
type Tracker interface {
	Track(ctx context.Context, action, label, appID string)
}

type appIDKey struct{}

// AppID returns the validated X-TBA-App-Id of the request.
func AppID(ctx context.Context) string {
	id, _ := ctx.Value(appIDKey{}).(string)
	return id
}

// Base carries what every API action shares: header checks, field
// validation, usage tracking and error translation.
type Base struct {
	tracker Tracker
	logger  *slog.Logger
}

func NewBase(tracker Tracker, logger *slog.Logger) *Base {
	return &Base{
		tracker: tracker,
		logger:  logger,
	}
}

// Middleware guards the named action. It must run inside the chi route so
// path parameters are resolved.
func (b *Base) Middleware(action string, fields ...Field) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w = &jsonWriter{ResponseWriter: w}
			w.Header().Set("Content-Type", ContentType)

			appID := r.Header.Get(HeaderAppID)
			b.logger.Debug("api call", slog.String("action", action), slog.String("app_id", appID))
			if err := checkAppID(appID); err != nil {
				writeError(w, r, err, b.logger)
				return
			}

			if failures := Validate(r, fields...); len(failures) > 0 {
				writeError(w, r, InputError(map[string]any{"Errors": failures}), b.logger)
				return
			}

			if b.tracker != nil {
				b.tracker.Track(r.Context(), action, label(r, action, fields), appID)
			}

			ctx := context.WithValue(r.Context(), appIDKey{}, appID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Handle adapts h to http.Handler, translating its error.
func (b *Base) Handle(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			writeError(w, r, err, b.logger)
		}
	})
}

// Wrap is Middleware and Handle in one, for actions with no extra layers.
func (b *Base) Wrap(action string, h HandlerFunc, fields ...Field) http.Handler {
	return b.Middleware(action, fields...)(b.Handle(h))
}

func checkAppID(appID string) error {
	if appID == "" {
		return InputError(ErrorBody(msgAppIDRequired))
	}
	parts := strings.Split(appID, ":")
	if len(parts) != 3 {
		return InputError(ErrorBody(msgAppIDFormat))
	}
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			return InputError(ErrorBody(msgAppIDFormat))
		}
	}
	return nil
}

func label(r *http.Request, action string, fields []Field) string {
	if len(fields) == 0 {
		return action
	}
	values := make([]string, 0, len(fields))
	for _, f := range fields {
		values = append(values, f.Value(r))
	}
	return strings.Join(values, "/")
}

// WriteCacheHeaders marks the response publicly cacheable for seconds.
// Negative values are logged and ignored.
func (b *Base) WriteCacheHeaders(w http.ResponseWriter, seconds int) {
	if seconds < 0 {
		b.logger.Error("Cache-Control max-age is not a valid duration", slog.Int("seconds", seconds))
		return
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", seconds))
	w.Header().Set("Pragma", "Public")
}

// jsonWriter pins the API content type, which render.JSON would otherwise
// replace.
type jsonWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *jsonWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.Header().Set("Content-Type", ContentType)
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *jsonWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(p)
}

func (w *jsonWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
