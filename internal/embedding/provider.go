// Package embedding turns title lists into fixed-length vectors via an
// external provider. Providers are opaque to the rest of the system; their
// failures propagate unchanged and retries, if any, are the caller's concern.
package embedding

import "context"

// Provider generates one embedding per title, all with the provider's fixed
// dimensionality.
type Provider interface {
	EmbedTitles(ctx context.Context, titles []string) ([][]float32, error)
}
