package pipeline

import (
	"strings"

	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/render"
)

// SafePath renders a slash separated path template one component at a
// time. A component that renders to something containing a slash or a
// quote, or to "..", is rejected.
func SafePath(rc *render.Context, tmpl string) (string, error) {
	parts := strings.Split(tmpl, "/")
	for i, part := range parts {
		if !strings.Contains(part, "{{") {
			continue
		}
		out, err := rc.RenderText(part, part)
		if err != nil {
			return "", err
		}
		if out == ".." || strings.ContainsAny(out, `/"'`) {
			return "", derrors.NewValidationError("Unsafe path component %s renders to %q", part, out).WithPath(tmpl)
		}
		parts[i] = out
	}

	return strings.Join(parts, "/"), nil
}
