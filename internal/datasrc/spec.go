package datasrc

import (
	"fmt"
	"strings"

	derrors "github.com/jin-gizmo/docma/internal/errors"
)

// Spec identifies a data source: a provider type, a provider specific
// location, an optional query file and an optional target. Specs are
// comparable and serve as memo keys.
type Spec struct {
	Type     string
	Location string
	Query    string
	Target   string
}

// New builds a spec from fields trimmed of surrounding space. Type and
// location are required and no field may contain a semicolon.
func New(typ, location, query, target string) (Spec, error) {
	s := Spec{
		Type:     strings.TrimSpace(typ),
		Location: strings.TrimSpace(location),
		Query:    strings.TrimSpace(query),
		Target:   strings.TrimSpace(target),
	}
	if s.Type == "" || s.Location == "" {
		return Spec{}, derrors.NewDataProviderError(derrors.CodeInvalid, "type and location required")
	}
	if strings.Contains(s.Type+s.Location+s.Query+s.Target, ";") {
		return Spec{}, derrors.NewDataProviderError(derrors.CodeInvalid, "Bad data source specification: %s", s)
	}

	return s, nil
}

// Parse reads the string form type;location[;query[;target]].
func Parse(s string) (Spec, error) {
	fields := strings.Split(s, ";")
	if len(fields) > 4 {
		return Spec{}, derrors.NewDataProviderError(derrors.CodeInvalid, "Bad data source specification: %s", s)
	}
	for len(fields) < 4 {
		fields = append(fields, "")
	}

	return New(fields[0], fields[1], fields[2], fields[3])
}

// String returns the form accepted by Parse, without trailing empty
// fields.
func (s Spec) String() string {
	fields := []string{s.Type, s.Location, s.Query, s.Target}
	for len(fields) > 2 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}

	return strings.Join(fields, ";")
}

// GoString makes specs readable in test failures.
func (s Spec) GoString() string {
	return fmt.Sprintf("datasrc.Spec(%q)", s.String())
}
