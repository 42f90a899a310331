package core

import (
	"net/http"

	"cloudnotes/internal/types"
)

// RequireTrustedIdentity rebuilds the caller's Identity from the gateway's
// trust headers. Requests without X-User-Id are rejected with 401.
//
// The headers are trusted only because backends are reachable solely through
// the gateway, which strips any client-supplied values.
func RequireTrustedIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := types.Identity{
			ID:    r.Header.Get(types.HeaderUserID),
			Email: r.Header.Get(types.HeaderUserEmail),
		}
		if id.ID == "" {
			Error(w, r, types.NewAppError(types.ErrCodeAuthIdentityMissing, "missing user identity", nil))
			return
		}
		next.ServeHTTP(w, r.WithContext(types.WithIdentity(r.Context(), id)))
	})
}

// MustIdentity returns the Identity stored by RequireTrustedIdentity. Handlers
// mounted behind that middleware can rely on it being present.
func MustIdentity(r *http.Request) types.Identity {
	id, _ := types.GetIdentity(r.Context())
	return id
}
