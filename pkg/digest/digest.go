package digest

import (
	"fmt"
	"strings"
)

// Kind represents the type of object a digest was computed over.
type Kind string

const (
	KindFile    Kind = "file"
	KindDir     Kind = "dir"
	KindSymlink Kind = "symlink"
)

const (
	AlgorithmXXH64  = "xxh64"
	AlgorithmSHA256 = "sha256"
)

func New(kind Kind, algorithm, sum string) (Digest, error) {
	if err := validateKind(kind); err != nil {
		return Digest{}, err
	}
	if err := ValidateAlgorithm(algorithm); err != nil {
		return Digest{}, err
	}
	if strings.TrimSpace(sum) == "" {
		return Digest{}, fmt.Errorf("digest sum is required")
	}

	return Digest{
		Kind:      kind,
		Algorithm: strings.TrimSpace(algorithm),
		Sum:       strings.TrimSpace(sum),
	}, nil
}

// Digest is a typed content identity.
// represented as "<kind>:<algorithm>:<hex>".
type Digest struct {
	Kind      Kind
	Algorithm string
	Sum       string
}

func (d Digest) IsZero() bool {
	return d.Kind == "" && d.Algorithm == "" && d.Sum == ""
}

// Equal reports whether both digests describe the same content under the same algorithm.
func (d Digest) Equal(other Digest) bool {
	return d.Kind == other.Kind && d.Algorithm == other.Algorithm && d.Sum == other.Sum
}

func (d Digest) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s:%s:%s", d.Kind, d.Algorithm, d.Sum)
}

// Short renders the algorithm and the first 12 hex digits of the sum.
func (d Digest) Short() string {
	if d.IsZero() {
		return ""
	}
	sum := d.Sum
	if len(sum) > 12 {
		sum = sum[:12]
	}
	return d.Algorithm + ":" + sum
}

func Parse(raw string) (Digest, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Digest{}, nil
	}

	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return Digest{}, fmt.Errorf("invalid digest %q (expected kind:algorithm:sum)", raw)
	}

	return New(Kind(parts[0]), parts[1], parts[2])
}

// ValidateAlgorithm rejects algorithm names the hasher cannot produce.
func ValidateAlgorithm(algorithm string) error {
	switch strings.TrimSpace(algorithm) {
	case AlgorithmXXH64, AlgorithmSHA256:
		return nil
	case "":
		return fmt.Errorf("digest algorithm is required")
	default:
		return fmt.Errorf("unsupported digest algorithm %q", algorithm)
	}
}

func validateKind(kind Kind) error {
	switch kind {
	case KindFile, KindDir, KindSymlink:
		return nil
	default:
		return fmt.Errorf("unsupported digest kind %q", kind)
	}
}
