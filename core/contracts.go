package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// CredentialStore persists the single opaque session credential.
// Load returns "" with a nil error when nothing is stored.
type CredentialStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Erase(ctx context.Context) error
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type TransportRequest struct {
	Method   string
	Path     string
	URL      string
	Headers  map[string]string
	Query    map[string]string
	Body     []byte
	Metadata map[string]any
	Timeout  time.Duration

	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

// TransportAdapter executes exactly one HTTP exchange against an absolute URL.
type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// Requester issues a request against the active backend candidate.
type Requester interface {
	Request(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// UnauthorizedHandler decides whether a 401 clears the session.
type UnauthorizedHandler interface {
	HandleUnauthorized(ctx context.Context, req TransportRequest) error
}

type UnauthorizedHandlerFunc func(ctx context.Context, req TransportRequest) error

func (f UnauthorizedHandlerFunc) HandleUnauthorized(ctx context.Context, req TransportRequest) error {
	if f == nil {
		return nil
	}
	return f(ctx, req)
}

// BearerHolder is the in-memory default authorization slot.
type BearerHolder interface {
	SetBearer(token string)
	ClearBearer()
	Bearer() string
}

type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	if f == nil {
		return "", nil
	}
	return f(ctx)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f()
}

type Principal struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Email string         `json:"email"`
	Role  string         `json:"role"`
	Raw   map[string]any `json:"-"`
}

func (p Principal) IsZero() bool {
	return p.ID == "" && p.Name == "" && p.Email == "" && p.Role == "" && len(p.Raw) == 0
}

type SessionSnapshot struct {
	Authenticated    bool
	Principal        Principal
	LoginGuardActive bool
}

type SessionEventName string

const (
	SessionEventLogin   SessionEventName = "session.login"
	SessionEventLogout  SessionEventName = "session.logout"
	SessionEventCleared SessionEventName = "session.cleared"
)

type SessionEvent struct {
	Name       SessionEventName
	Principal  Principal
	OccurredAt time.Time
	Metadata   map[string]any
}

type SessionHook interface {
	Name() string
	OnSessionEvent(ctx context.Context, event SessionEvent) error
}
