package mid

import (
	"log/slog"
	"net/http"

	"github.com/WessleyAI/technews/engine/auth"
)

// Verifier turns a bearer token into an identity.
type Verifier interface {
	Enabled() bool
	Verify(token string) (*auth.Identity, error)
}

// Auth attaches the bearer token's identity to the request context.
// Requests without a token stay anonymous; an invalid token is rejected
// with 401. A disabled verifier lets every request through anonymous.
func Auth(v Verifier, log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r.Header.Get("Authorization"))
			if token == "" || v == nil || !v.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			id, err := v.Verify(token)
			if err != nil {
				log.Debug("rejected token", "path", r.URL.Path, "err", err)
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}
