package openapi

import (
	"github.com/nlbridge/nlbridge/internal/domain"

	"google.golang.org/genai"
)

// The two tool dialects the providers accept. Both are rendered from the
// same domain.Operation parameter list; neither maintains its own
// derivation from the OpenAPI document.

// GeminiDeclarations renders operations into the typed-schema dialect used
// by the Gemini SDK and REST API.
func GeminiDeclarations(ops []domain.Operation) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(ops))
	for _, op := range ops {
		properties := make(map[string]*genai.Schema, len(op.Params))
		var required []string
		for _, p := range op.Params {
			properties[p.Name] = &genai.Schema{
				Type:        geminiType(p.Type),
				Description: p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        op.OperationID,
			Description: op.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
				Required:   required,
			},
		})
	}
	return decls
}

// LooseParameters renders one operation's parameters into the loosely-typed
// JSON-object schema shape accepted by OpenAI-compatible endpoints.
func LooseParameters(op domain.Operation) map[string]any {
	properties := make(map[string]any, len(op.Params))
	var required []string
	for _, p := range op.Params {
		properties[p.Name] = map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// JSONTools renders operations into the OpenAI-style function-tool list
// used by providers spoken to over bare JSON.
func JSONTools(ops []domain.Operation) []map[string]any {
	tools := make([]map[string]any, 0, len(ops))
	for _, op := range ops {
		tools = append(tools, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        op.OperationID,
				"description": op.Description,
				"parameters":  LooseParameters(op),
			},
		})
	}
	return tools
}

func geminiType(t domain.ParamType) genai.Type {
	switch t {
	case domain.TypeInteger:
		return genai.TypeInteger
	case domain.TypeNumber:
		return genai.TypeNumber
	case domain.TypeBoolean:
		return genai.TypeBoolean
	case domain.TypeArray:
		return genai.TypeArray
	case domain.TypeObject:
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
