package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/warden-admin/warden/internal/shared"
)

// PermissionSource resolves a user's effective permission names.
type PermissionSource interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// Gate enforces the action-to-permission policy in front of every protected
// handler. Denials short-circuit before any handler logic runs.
type Gate struct {
	perms  PermissionSource
	policy Policy
	logger *slog.Logger
	sf     *singleflight.Group
}

// NewGate constructs a Gate. The policy must have passed Validate.
func NewGate(perms PermissionSource, policy Policy, logger *slog.Logger) Gate {
	return Gate{perms: perms, policy: policy, logger: logger, sf: &singleflight.Group{}}
}

// Require returns middleware denying any caller lacking the permission the
// policy declares for action. Undeclared actions deny unconditionally, and
// unauthenticated callers are never authorized.
func (g Gate) Require(action Action) func(http.Handler) http.Handler {
	perm, declared := g.policy.Required(action)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !declared {
				if g.logger != nil {
					g.logger.Warn("deny undeclared action", slog.String("action", string(action)))
				}
				forbid(w)
				return
			}
			userID, ok := g.currentUserID(r)
			if !ok {
				forbid(w)
				return
			}
			granted, err := g.load(r.Context(), userID)
			if err != nil {
				if g.logger != nil {
					g.logger.Error("resolve permissions", slog.Int64("user_id", userID), slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !granted.Has(perm) {
				forbid(w)
				return
			}
			ctx := ContextWithGranted(r.Context(), granted)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// load coalesces concurrent permission lookups for the same user.
func (g Gate) load(ctx context.Context, userID int64) (PermissionSet, error) {
	v, err, _ := g.sf.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		names, err := g.perms.EffectivePermissions(ctx, userID)
		if err != nil {
			return nil, err
		}
		return NewPermissionSet(names), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(PermissionSet), nil
}

func (g Gate) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if g.logger != nil {
			g.logger.Error("parse session user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}

// forbid writes the fixed deny response. It never names the missing
// permission.
func forbid(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
}
