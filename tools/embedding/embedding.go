package embedding

import (
	"context"

	"github.com/mohammad-safakhou/coursechat/provider"
)

// Embedding adapts the LLM provider's embedding endpoint to the vector
// store's Embedder contract.
type Embedding struct {
	provider provider.Provider
}

func New(p provider.Provider) *Embedding {
	return &Embedding{provider: p}
}

func (e *Embedding) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.provider.CreateEmbedding(ctx, texts)
}
