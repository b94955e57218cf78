package internal

import (
	"fmt"
	"log/slog"

	"github.com/Masterminds/semver/v3"
)

// versionCompatible reports whether the mdbook version satisfies constraint.
func versionCompatible(constraint, version string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("parse constraint %q: %w", constraint, err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("parse mdbook version %q: %w", version, err)
	}
	return c.Check(v), nil
}

// warnVersion logs a warning when the host mdbook falls outside the supported
// range. A mismatch never stops the build.
func warnVersion(logger *slog.Logger, constraint, version string) {
	ok, err := versionCompatible(constraint, version)
	if err != nil {
		logger.Warn("version check skipped", slog.String("error", err.Error()))
		return
	}
	if !ok {
		logger.Warn("mdbook version may be incompatible",
			slog.String("mdbook_version", version),
			slog.String("supported", constraint))
	}
}
