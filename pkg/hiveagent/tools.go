package hiveagent

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const toolDescriptorsSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["url", "functions"],
    "properties": {
      "url": {"type": "string", "minLength": 1},
      "functions": {
        "type": "array",
        "minItems": 1,
        "items": {"type": "string", "minLength": 1}
      }
    }
  }
}`

var loadToolSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(toolDescriptorsSchema))
})

// ValidateToolDescriptors checks that every descriptor has a url and at least
// one function path.
func ValidateToolDescriptors(tools []ToolDescriptor) error {
	schema, err := loadToolSchema()
	if err != nil {
		return fmt.Errorf("internal tool schema error: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(tools))
	if err != nil {
		return &ValidationError{Field: "tools", Reason: "cannot validate descriptors", Err: err}
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return &ValidationError{Field: "tools", Reason: strings.Join(problems, "; ")}
	}
	return nil
}

// InstallTools posts the descriptor list as the JSON body. Descriptor keys
// beyond url and functions go out as given.
func InstallTools(ctx context.Context, t *Transport, baseURL string, tools []ToolDescriptor) (map[string]any, error) {
	const op = "install tools to the API"

	if tools == nil {
		tools = []ToolDescriptor{}
	}
	if err := ValidateToolDescriptors(tools); err != nil {
		return nil, wrapOpError(op, err)
	}

	target := joinURL(baseURL, InstallToolsEndpoint)
	t.logger.Debug("Installing %d tool(s) to %s", len(tools), target)

	var result map[string]any
	if err := t.doJSON(ctx, http.MethodPost, target, nil, tools, &result); err != nil {
		return nil, wrapOpError(op, err)
	}
	return result, nil
}
