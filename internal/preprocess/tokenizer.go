package preprocess

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/RishiKendai/aegis-dupe/internal/models"
	"github.com/RishiKendai/aegis-dupe/internal/tokenizer"
)

// RemoteTokenizer reads files locally and delegates tokenization to the
// preprocessing service
type RemoteTokenizer struct {
	client *Client
}

func NewRemoteTokenizer(client *Client) *RemoteTokenizer {
	return &RemoteTokenizer{client: client}
}

// Tokenize prefers the service's normalized tokens and falls back to the raw ones
func (t *RemoteTokenizer) Tokenize(ctx context.Context, path string) ([]string, models.Metadata, error) {
	if !tokenizer.IsSupported(path) {
		return nil, models.Metadata{}, fmt.Errorf("%w: %s", tokenizer.ErrUnsupportedExtension, path)
	}

	meta, err := tokenizer.FileMetadata(path)
	if err != nil {
		return nil, meta, err
	}
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, meta, fmt.Errorf("%w: %v", tokenizer.ErrUnreadable, err)
	}

	resp, err := t.client.Preprocess(ctx, &models.PreprocessingRequest{
		FileName: meta.FileName,
		Code:     string(code),
		Language: meta.Language,
	})
	if err != nil {
		return nil, meta, fmt.Errorf("failed to preprocess: %w", err)
	}

	raw := resp.Preprocessing.NormalizedTokens
	if len(raw) == 0 {
		raw = resp.Preprocessing.Tokens
	}
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if tok = strings.TrimSpace(tok); tok != "" {
			tokens = append(tokens, strings.ToLower(tok))
		}
	}

	meta.TokenCount = len(tokens)
	return tokens, meta, nil
}
