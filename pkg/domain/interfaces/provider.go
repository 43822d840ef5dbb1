package interfaces

import (
	"context"

	"github.com/athenaeum-lab/mnemosyne/pkg/domain/types"
)

// ProviderClient is the narrow contract the embedding gateway consumes
// for each configured AI provider. Implementations must distinguish
// transient from permanent failures by tagging returned errors
// (types.TagTransient / types.TagPermanent) so the retry loop can
// inspect them instead of matching on error types.
type ProviderClient interface {
	// ID returns the provider identity this client talks to
	ID() types.ProviderID

	// Embed converts texts into fixed-dimension vectors, one per input,
	// in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Complete generates text for the given prompt
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
}
