package hiveagent

import (
	"context"
	"net/http"
)

// ListSamplePrompts returns the prompts the agent suggests for starting a
// conversation.
func ListSamplePrompts(ctx context.Context, t *Transport, baseURL string) (map[string]any, error) {
	target := joinURL(baseURL, SamplePromptsEndpoint)
	t.logger.Debug("Listing sample prompts at %s", target)

	var prompts map[string]any
	if err := t.doJSON(ctx, http.MethodGet, target, nil, nil, &prompts); err != nil {
		return nil, wrapOpError("get sample prompts", err)
	}
	return prompts, nil
}
