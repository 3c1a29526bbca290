package packager

import (
	"context"
	"encoding/json"
	"errors"

	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/logging"
	"github.com/jin-gizmo/docma/internal/version"
)

// VersionFile is the manifest whose presence marks a compiled package.
const VersionFile = ".docma.json"

// VersionInfo is the content of the version manifest.
type VersionInfo struct {
	FormatVersion   int    `json:"docma_format_version"`
	CompilerVersion string `json:"docma_compiler_version"`
}

// CurrentVersionInfo describes the running compiler.
func CurrentVersionInfo() VersionInfo {
	return VersionInfo{
		FormatVersion:   version.FormatVersion,
		CompilerVersion: version.GetVersion(),
	}
}

// WriteVersionInfo stamps w with the running compiler's version.
func WriteVersionInfo(w *Writer) error {
	data, err := json.MarshalIndent(CurrentVersionInfo(), "", "  ")
	if err != nil {
		return err
	}

	return w.WriteBytes(VersionFile, append(data, '\n'))
}

// ReadVersionInfo returns the manifest of r.
func ReadVersionInfo(r *Reader) (VersionInfo, error) {
	var info VersionInfo
	data, err := r.ReadFile(VersionFile)
	if err != nil {
		if errors.Is(err, derrors.ErrNotFound) {
			return info, derrors.NewPackageError("Not a compiled docma template package").WithPath(r.Location())
		}

		return info, err
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, derrors.NewPackageError("Bad version manifest").WithPath(r.Location()).WithCause(err)
	}
	if info.FormatVersion == 0 {
		return info, derrors.NewPackageError("Version manifest has no docma_format_version").WithPath(r.Location())
	}

	return info, nil
}

// CheckVersionInfo fails if r is not a compiled package. A format version
// that differs from the running one is only logged.
func CheckVersionInfo(ctx context.Context, r *Reader, logger logging.Logger) (VersionInfo, error) {
	info, err := ReadVersionInfo(r)
	if err != nil {
		return info, err
	}
	if info.FormatVersion != version.FormatVersion {
		logger.Warn(ctx, nil, "Template package format version may not be compatible with expected version",
			"package", r.Location(),
			"format_version", info.FormatVersion,
			"expected_version", version.FormatVersion,
			"compiler_version", info.CompilerVersion)
	}

	return info, nil
}
