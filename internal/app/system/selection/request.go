// internal/app/system/selection/request.go
package selection

import (
	"context"
	"net/http"

	"github.com/dalemusser/campusdesk/internal/app/system/auth"
	"github.com/dalemusser/campusdesk/internal/app/system/backend"
	"go.uber.org/zap"
)

// Provider builds the selection for one HTTP request. The persisted keys
// live in the caller's cookie session and the directory is narrowed to the
// schools the signed-in user may see.
type Provider struct {
	Dir      Directory
	Sessions *auth.SessionManager
	Log      *zap.Logger
}

// NewProvider returns a Provider reading schools and years from dir.
func NewProvider(dir Directory, sessions *auth.SessionManager, logger *zap.Logger) *Provider {
	return &Provider{Dir: dir, Sessions: sessions, Log: logger}
}

// ForRequest loads the caller's selection. save writes the session cookie
// and must be called before the response body is written when the
// selection changed.
func (p *Provider) ForRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (sel *Context, save func() error, err error) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return nil, nil, backend.AuthError(http.StatusUnauthorized, "not signed in")
	}
	sess, _ := p.Sessions.GetSession(r)
	sel = New(ForUser(p.Dir, u.Account()), SessionPersister{Session: sess}, p.Log)
	if err := sel.Load(ctx); err != nil {
		return nil, nil, err
	}
	return sel, func() error { return p.Sessions.Save(r, w, sess) }, nil
}
