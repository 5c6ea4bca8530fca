package web

import (
	"log/slog"
	"net/http"

	"github.com/alecgard/saasboard/internal/auth"
	"github.com/alecgard/saasboard/internal/ratelimit"
)

// audit emits a structured audit log entry and forwards the same action to
// the activity sink. detail holds alternating keys and values.
func (s *server) audit(r *http.Request, action, resourceType, resourceID string, detail ...any) {
	attrs := []any{
		"action", action,
		"resource_type", resourceType,
		"resource_id", resourceID,
		"ip", ratelimit.ClientIP(r),
		"request_id", RequestIDFromContext(r.Context()),
	}
	meta := map[string]any{
		"resource_type": resourceType,
		"resource_id":   resourceID,
	}

	if tc, ok := auth.TenantFromContext(r.Context()); ok {
		attrs = append(attrs, "user_id", tc.UserID, "tenant_id", tc.TenantID, "user_role", string(tc.Role))
		meta["user_id"] = tc.UserID
		meta["tenant_id"] = tc.TenantID
	}

	for i := 0; i+1 < len(detail); i += 2 {
		if k, ok := detail[i].(string); ok {
			meta[k] = detail[i+1]
		}
	}

	attrs = append(attrs, detail...)
	slog.Info("audit", attrs...)
	s.logEvent(action, meta)
}
