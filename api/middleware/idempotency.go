package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/sellerhub-backend/api/responses"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/sellerhub-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	maxKeyLength      = 255

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	inFlightTTL            = 2 * time.Minute
)

const (
	stateInFlight  = "in_flight"
	stateCompleted = "completed"
)

type idempotencyRule struct {
	method string
	match  func(path string) bool
	ttl    time.Duration
}

// Product creation and checkout are the only writes a client may safely
// resend; checkout records outlive a typical payment retry window.
var idempotencyRules = []idempotencyRule{
	{
		method: http.MethodPost,
		match:  func(p string) bool { return p == "/api/v1/products" },
		ttl:    defaultIdempotencyTTL,
	},
	{
		method: http.MethodPost,
		match: func(p string) bool {
			return strings.HasPrefix(p, "/api/v1/cart/") && strings.HasSuffix(p, "/checkout")
		},
		ttl: criticalIdempotencyTTL,
	},
}

// storedResponse is the Redis value behind a claimed key. Body is raw bytes,
// which encoding/json renders as base64.
type storedResponse struct {
	State       string `json:"state"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the first response for a repeated Idempotency-Key.
// A key is claimed with an in-flight marker before the handler runs, so
// concurrent duplicates are refused rather than executed twice. Server
// errors release the claim and stay retryable.
func Idempotency(store pkgredis.ResponseStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, routePattern(r))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" || len(clientKey) > maxKeyLength {
				msg := idempotencyHeader + " header required"
				if clientKey != "" {
					msg = idempotencyHeader + " header too long"
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, msg))
				return
			}
			if store == nil {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			claim := &keyClaim{
				store:       store,
				logg:        logg,
				key:         store.IdempotencyKey(requestScope(r), clientKey),
				fingerprint: fingerprint(body),
				ttl:         ttl,
			}
			claim.handle(w, r, next)
		})
	}
}

// keyClaim follows one idempotency key through a request.
type keyClaim struct {
	store       pkgredis.ResponseStore
	logg        *logger.Logger
	key         string
	fingerprint string
	ttl         time.Duration
}

func (c *keyClaim) handle(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ctx := r.Context()

	marker, err := json.Marshal(storedResponse{State: stateInFlight, Fingerprint: c.fingerprint})
	if err != nil {
		responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency marker"))
		return
	}
	won, err := c.store.SetNX(ctx, c.key, string(marker), inFlightTTL)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
		return
	}
	if !won {
		c.replay(ctx, w)
		return
	}

	tee := &teeWriter{ResponseWriter: w, status: http.StatusOK}
	next.ServeHTTP(tee, r)

	if tee.status >= http.StatusInternalServerError {
		c.logFailure(ctx, "idempotency.release_failed", c.store.Del(ctx, c.key))
		return
	}

	done, err := json.Marshal(storedResponse{
		State:       stateCompleted,
		Fingerprint: c.fingerprint,
		Status:      tee.status,
		ContentType: tee.Header().Get("Content-Type"),
		Body:        tee.body.Bytes(),
	})
	if err != nil {
		c.logFailure(ctx, "idempotency.encode_failed", err)
		return
	}
	c.logFailure(ctx, "idempotency.store_failed", c.store.Set(ctx, c.key, string(done), c.ttl))
}

func (c *keyClaim) replay(ctx context.Context, w http.ResponseWriter) {
	inProgress := pkgerrors.New(pkgerrors.CodeIdempotency, "request with this Idempotency-Key is still in progress")

	raw, err := c.store.Get(ctx, c.key)
	if errors.Is(err, redis.Nil) {
		// Released or expired between SetNX and Get.
		responses.WriteError(ctx, c.logg, w, inProgress)
		return
	}
	if err != nil {
		responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}

	var prior storedResponse
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case prior.Fingerprint != c.fingerprint:
		responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case prior.State != stateCompleted:
		responses.WriteError(ctx, c.logg, w, inProgress)
	default:
		if prior.ContentType != "" {
			w.Header().Set("Content-Type", prior.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(prior.Status)
		_, _ = w.Write(prior.Body)
	}
}

func (c *keyClaim) logFailure(ctx context.Context, msg string, err error) {
	if c.logg != nil && err != nil {
		c.logg.Error(ctx, msg, err)
	}
}

// requestScope keeps keys from colliding across callers and endpoints.
func requestScope(r *http.Request) string {
	p := PrincipalFromContext(r.Context())
	return strings.Join([]string{p.UserID, p.OrganisationID, r.Method, r.URL.Path}, "|")
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// routePattern prefers the resolved chi pattern. Middleware mounted on a
// subrouter runs before the route resolves and only sees the mount pattern
// ending in "/*", so the raw path is used instead.
func routePattern(r *http.Request) string {
	if r == nil {
		return ""
	}
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if pattern := ctx.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			return strings.TrimSuffix(pattern, "/")
		}
	}
	if r.URL.Path == "/" {
		return r.URL.Path
	}
	return strings.TrimSuffix(r.URL.Path, "/")
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if pattern == "" {
		return 0, false
	}
	for _, rule := range idempotencyRules {
		if rule.method == method && rule.match(pattern) {
			return rule.ttl, true
		}
	}
	return 0, false
}

// teeWriter copies the response body while passing it through.
type teeWriter struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (t *teeWriter) WriteHeader(code int) {
	t.status = code
	t.ResponseWriter.WriteHeader(code)
}

func (t *teeWriter) Write(b []byte) (int, error) {
	t.body.Write(b)
	return t.ResponseWriter.Write(b)
}
