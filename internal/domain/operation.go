package domain

import "strings"

// ParamType is the normalized parameter type shared by every tool dialect.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// MapParamType normalizes an OpenAPI type string into a ParamType.
// Unknown or absent types fall back to string.
func MapParamType(t string) ParamType {
	switch strings.ToLower(t) {
	case "integer", "int32", "int64":
		return TypeInteger
	case "number", "float", "double":
		return TypeNumber
	case "boolean":
		return TypeBoolean
	case "array":
		return TypeArray
	case "object":
		return TypeObject
	default:
		return TypeString
	}
}

// OperationDescriptor maps a stable operation identifier to the HTTP call
// it stands for. Descriptors are immutable once registered; the registry
// holding them is rebuilt wholesale on every load.
type OperationDescriptor struct {
	OperationID  string
	HTTPMethod   string
	PathTemplate string
	Description  string
}

// ParameterSpec describes one callable parameter of an operation. Path and
// query parameters and request-body properties are merged into a single
// flat namespace keyed by Name.
type ParameterSpec struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// Operation bundles a descriptor with its flattened parameter list. It is
// the single source every tool dialect is rendered from.
type Operation struct {
	OperationDescriptor
	Params []ParameterSpec
}

// FunctionCall is the model's decision for the current turn: which
// operation to invoke and with what arguments.
//
// ProviderContext carries whatever the issuing strategy needs to continue
// the conversation in the follow-up turn (e.g. the raw model turn to echo
// back). It is opaque to the orchestrator and scoped to a single request.
type FunctionCall struct {
	OperationID     string
	Arguments       map[string]any
	ProviderContext any
}
