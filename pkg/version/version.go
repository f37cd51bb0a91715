package version

import (
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

const Version = "0.1.0"

// Current returns the parsed application version.
func Current() *goversion.Version {
	return goversion.Must(goversion.NewSemver(Version))
}

// ParseSemVer parses versions in the form "MAJOR.MINOR.PATCH" with an optional "v" prefix.
func ParseSemVer(raw string) (*goversion.Version, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, fmt.Errorf("version is empty")
	}

	v, err := goversion.NewSemver(value)
	if err != nil {
		return nil, fmt.Errorf("invalid semantic version %q: %w", raw, err)
	}
	if len(v.Segments()) != 3 || strings.Count(strings.TrimPrefix(value, "v"), ".") != 2 {
		return nil, fmt.Errorf("invalid semantic version %q (expected MAJOR.MINOR.PATCH)", raw)
	}
	if v.Prerelease() != "" || v.Metadata() != "" {
		return nil, fmt.Errorf("invalid semantic version %q (pre-releases are not supported)", raw)
	}
	return v, nil
}

// EnsureCompatible validates whether a config written for target can be read
// by the current version. Empty versions are treated as compatible.
func EnsureCompatible(target string) error {
	value := strings.TrimSpace(target)
	if value == "" {
		return nil
	}

	required, err := ParseSemVer(value)
	if err != nil {
		return err
	}
	current := Current()

	if required.Segments()[0] != current.Segments()[0] {
		return fmt.Errorf("unsupported major version %d (current major is %d)", required.Segments()[0], current.Segments()[0])
	}

	constraint, err := goversion.NewConstraint(">= " + required.String())
	if err != nil {
		return fmt.Errorf("build constraint for %q: %w", value, err)
	}
	if !constraint.Check(current) {
		return fmt.Errorf("requires foldersync >= %s (current %s)", required.String(), current.String())
	}

	return nil
}
