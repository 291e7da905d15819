package http

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/example/session-coordinator/internal/session"
)

// Headers the upstream gateway sets after authenticating the caller.
const (
	HeaderViewerID        = "X-Viewer-Id"
	HeaderViewerEmail     = "X-Viewer-Email"
	HeaderViewerName      = "X-Viewer-Name"
	HeaderViewerSignature = "X-Viewer-Signature"
)

var errInvalidIdentity = errors.New("viewer identity could not be verified")

// IdentityVerifier checks the keyed BLAKE2b-256 signature the gateway
// attaches to viewer headers.
type IdentityVerifier struct {
	key []byte
}

// NewIdentityVerifier derives a MAC key from secret. Secrets longer than the
// BLAKE2b key limit are hashed down.
func NewIdentityVerifier(secret string) (*IdentityVerifier, error) {
	key := []byte(strings.TrimSpace(secret))
	if len(key) == 0 {
		return nil, errors.New("http: identity secret is required")
	}
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	return &IdentityVerifier{key: key}, nil
}

// Sign returns the hex signature for viewer.
func (v *IdentityVerifier) Sign(viewer session.Viewer) string {
	return hex.EncodeToString(v.mac(viewer))
}

// Verify reports whether signature matches viewer.
func (v *IdentityVerifier) Verify(viewer session.Viewer, signature string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, v.mac(viewer)) == 1
}

func (v *IdentityVerifier) mac(viewer session.Viewer) []byte {
	h, err := blake2b.New256(v.key)
	if err != nil {
		// Unreachable: the key is bounded in NewIdentityVerifier.
		panic(err)
	}
	h.Write([]byte(session.IdentityKey(viewer.Identity)))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(viewer.Email)))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(viewer.DisplayName)))
	return h.Sum(nil)
}

// Identify attaches the viewer named by the gateway headers to the request
// context. Requests without X-Viewer-Id continue anonymously. A present but
// unverifiable identity is rejected with 401.
func Identify(verifier *IdentityVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderViewerID))
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			viewer := session.Viewer{
				Identity:    session.IdentityKey(id),
				Email:       strings.TrimSpace(r.Header.Get(HeaderViewerEmail)),
				DisplayName: strings.TrimSpace(r.Header.Get(HeaderViewerName)),
			}
			if verifier == nil || !verifier.Verify(viewer, r.Header.Get(HeaderViewerSignature)) {
				responder.loggerFor(r.Context()).WarnContext(r.Context(), "viewer signature rejected", "viewer", viewer.Identity)
				responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
					ErrorCode: "IDENTITY_INVALID",
					Message:   errInvalidIdentity.Error(),
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithViewer(r.Context(), viewer)))
		})
	}
}
