package embedding

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_provider.go -package=mocks vaultindex/internal/embedding Provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable indicates the embedding backend is missing or misconfigured.
// All indexing and search operations fail fast with this condition instead of
// partially succeeding; status reporting surfaces it as a diagnostic.
var ErrUnavailable = errors.New("embedding capability unavailable")

// Provider maps text to fixed-dimension numeric vectors. Calls are batched;
// output has the same length and order as the input and is deterministic for
// identical input and model version.
type Provider interface {
	// Embed returns one vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the vector size produced by the model.
	Dimension() int
	// ModelInfo returns a model name/version identifier.
	ModelInfo() string
	// Available reports whether the backend can serve requests.
	Available() bool
}

// Disabled is a Provider stand-in used when no embedding backend is
// configured. Every Embed call reports the typed unavailable condition.
type Disabled struct {
	Reason string
}

// NewDisabled creates an unavailable provider with a diagnostic reason.
func NewDisabled(reason string) *Disabled {
	return &Disabled{Reason: reason}
}

// Embed always fails with ErrUnavailable.
func (d *Disabled) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnavailable, d.Reason)
}

// Dimension returns 0; a disabled provider produces no vectors.
func (d *Disabled) Dimension() int { return 0 }

// ModelInfo identifies the disabled state.
func (d *Disabled) ModelInfo() string { return "disabled" }

// Available reports false.
func (d *Disabled) Available() bool { return false }
