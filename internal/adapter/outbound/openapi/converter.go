package openapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/nlbridge/nlbridge/internal/domain"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// Converter loads an OpenAPI document and maintains the operation registry:
// operationId -> {HTTP method, path template}. The registry is rebuilt from
// scratch on every Load and swapped in one step, so concurrent lookups see
// either the previous or the new registry, never a partial one.
type Converter struct {
	httpClient *http.Client
	logger     *slog.Logger

	mu       sync.RWMutex
	registry map[string]domain.OperationDescriptor
}

// NewConverter creates a Converter using the given HTTP client for spec
// fetching.
func NewConverter(client *http.Client, logger *slog.Logger) *Converter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Converter{
		httpClient: client,
		logger:     logger.With("component", "openapi_converter"),
		registry:   make(map[string]domain.OperationDescriptor),
	}
}

// Load fetches and parses the OpenAPI document at src (URL or file path),
// rebuilds the registry, and returns the operations in deterministic order.
// An operation that fails to parse is logged and skipped; loading continues
// for the rest.
func (c *Converter) Load(ctx context.Context, src string) ([]domain.Operation, error) {
	log := c.logger.With(slog.String("source", src))
	log.Info("Loading OpenAPI document.")

	data, err := c.fetch(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch OpenAPI document from %s: %w", src, err)
	}

	data, removed := c.pruneDanglingBodyRefs(data)
	for _, op := range removed {
		log.Warn("Skipping operation with an unresolvable request body reference.",
			slog.String("operation", op))
	}

	loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: true}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document from %s: %w", src, err)
	}

	var ops []domain.Operation
	skipped := len(removed)
	for _, path := range sortedPaths(doc) {
		pathItem := doc.Paths.Value(path)
		if pathItem == nil {
			continue
		}
		for _, method := range sortedMethods(pathItem) {
			operation := pathItem.Operations()[method]
			if operation == nil {
				continue
			}
			op, err := c.convertOperation(method, path, operation)
			if err != nil {
				log.Warn("Skipping operation.",
					slog.String("method", method),
					slog.String("path", path),
					slog.Any("error", err))
				skipped++
				continue
			}
			ops = append(ops, op)
			log.Debug("Registered operation.",
				slog.String("operation_id", op.OperationID),
				slog.String("method", method),
				slog.String("path", path))
		}
	}

	registry := make(map[string]domain.OperationDescriptor, len(ops))
	for _, op := range ops {
		registry[op.OperationID] = op.OperationDescriptor
	}

	c.mu.Lock()
	c.registry = registry
	c.mu.Unlock()

	log.Info("Finished loading OpenAPI document.",
		slog.Int("registered", len(ops)),
		slog.Int("skipped", skipped))
	return ops, nil
}

// Lookup resolves an operation identifier against the current registry.
func (c *Converter) Lookup(operationID string) (domain.OperationDescriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	desc, ok := c.registry[operationID]
	if !ok {
		return domain.OperationDescriptor{}, fmt.Errorf("%w: %s", domain.ErrUnknownOperation, operationID)
	}
	return desc, nil
}

func (c *Converter) fetch(ctx context.Context, src string) ([]byte, error) {
	u, err := url.ParseRequestURI(src)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %s", resp.Status)
		}
		return io.ReadAll(resp.Body)
	}
	// Fall back to a local file path, handy for tests and offline runs.
	return os.ReadFile(src)
}

// convertOperation builds a single domain.Operation from an OpenAPI
// operation node. Errors here fail this operation only.
func (c *Converter) convertOperation(method, path string, op *openapi3.Operation) (domain.Operation, error) {
	id := op.OperationID
	if id == "" {
		id = SynthesizeOperationID(method, path)
	}

	desc := op.Summary
	if desc == "" {
		desc = op.Description
	}
	if desc == "" {
		desc = fmt.Sprintf("%s %s", method, path)
	}

	params, err := c.extractParams(op)
	if err != nil {
		return domain.Operation{}, err
	}

	return domain.Operation{
		OperationDescriptor: domain.OperationDescriptor{
			OperationID:  id,
			HTTPMethod:   strings.ToUpper(method),
			PathTemplate: path,
			Description:  desc,
		},
		Params: params,
	}, nil
}

// extractParams merges path/query parameters and request-body properties
// into one flat list. On a name collision the path/query parameter wins and
// the body property is skipped; parameters are always extracted first, so
// the outcome is deterministic.
func (c *Converter) extractParams(op *openapi3.Operation) ([]domain.ParameterSpec, error) {
	var params []domain.ParameterSpec
	seen := make(map[string]struct{})

	for _, paramRef := range op.Parameters {
		if paramRef == nil || paramRef.Value == nil {
			continue
		}
		param := paramRef.Value
		if param.In != openapi3.ParameterInQuery && param.In != openapi3.ParameterInPath {
			continue
		}
		params = append(params, domain.ParameterSpec{
			Name:        param.Name,
			Type:        domain.MapParamType(schemaType(param.Schema)),
			Description: param.Description,
			Required:    param.Required,
		})
		seen[param.Name] = struct{}{}
	}

	bodySchema, err := resolveBodySchema(op)
	if err != nil {
		return nil, err
	}
	if bodySchema != nil {
		required := make(map[string]struct{}, len(bodySchema.Required))
		for _, name := range bodySchema.Required {
			required[name] = struct{}{}
		}
		for _, name := range sortedPropertyNames(bodySchema) {
			if _, dup := seen[name]; dup {
				c.logger.Warn("Body property collides with a declared parameter, skipping.",
					slog.String("name", name))
				continue
			}
			prop := bodySchema.Properties[name]
			var desc string
			if prop != nil && prop.Value != nil {
				desc = prop.Value.Description
			}
			_, req := required[name]
			params = append(params, domain.ParameterSpec{
				Name:        name,
				Type:        domain.MapParamType(schemaType(prop)),
				Description: desc,
				Required:    req,
			})
			seen[name] = struct{}{}
		}
	}

	return params, nil
}

// resolveBodySchema returns the JSON request-body schema, or nil when the
// operation declares none. A body reference that did not resolve against
// the document fails this operation.
func resolveBodySchema(op *openapi3.Operation) (*openapi3.Schema, error) {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil, nil
	}
	content := op.RequestBody.Value.Content.Get("application/json")
	if content == nil || content.Schema == nil {
		return nil, nil
	}
	if content.Schema.Value == nil {
		return nil, fmt.Errorf("unresolved request body reference %q", content.Schema.Ref)
	}
	return content.Schema.Value, nil
}

var httpMethods = map[string]struct{}{
	"get": {}, "put": {}, "post": {}, "delete": {},
	"options": {}, "head": {}, "patch": {}, "trace": {},
}

// pruneDanglingBodyRefs removes operations whose JSON request body points
// at an internal reference missing from the document, before the document
// reaches the loader. The loader resolves references eagerly and rejects
// the whole document over a single dangling one; pruning confines the
// damage to the affected operation so the rest still load. Returns the
// (possibly rewritten) document and the removed operations.
func (c *Converter) pruneDanglingBodyRefs(data []byte) ([]byte, []string) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		// Not a document we can walk; let the loader report the error.
		return data, nil
	}
	paths, ok := root["paths"].(map[string]any)
	if !ok {
		return data, nil
	}

	var removed []string
	for path, rawItem := range paths {
		item, ok := rawItem.(map[string]any)
		if !ok {
			continue
		}
		for method, rawOp := range item {
			if _, isOp := httpMethods[strings.ToLower(method)]; !isOp {
				continue
			}
			op, ok := rawOp.(map[string]any)
			if !ok {
				continue
			}
			if ref := danglingBodyRef(root, op); ref != "" {
				delete(item, method)
				removed = append(removed, fmt.Sprintf("%s %s (%s)", strings.ToUpper(method), path, ref))
			}
		}
	}
	if len(removed) == 0 {
		return data, nil
	}
	sort.Strings(removed)

	pruned, err := yaml.Marshal(root)
	if err != nil {
		return data, nil
	}
	return pruned, removed
}

// danglingBodyRef returns the internal reference on the operation's JSON
// request body that does not resolve against the document, or "" when the
// body is absent or resolves. External references are left to the loader.
func danglingBodyRef(root, op map[string]any) string {
	body, _ := op["requestBody"].(map[string]any)
	if body == nil {
		return ""
	}
	if ref, ok := body["$ref"].(string); ok && strings.HasPrefix(ref, "#/") {
		resolved, _ := resolvePointer(root, ref).(map[string]any)
		if resolved == nil {
			return ref
		}
		body = resolved
	}
	content, _ := body["content"].(map[string]any)
	media, _ := content["application/json"].(map[string]any)
	schema, _ := media["schema"].(map[string]any)
	ref, _ := schema["$ref"].(string)
	if ref == "" || !strings.HasPrefix(ref, "#/") {
		return ""
	}
	if resolvePointer(root, ref) == nil {
		return ref
	}
	return ""
}

// resolvePointer walks a #/-rooted reference segment by segment through
// the document tree.
func resolvePointer(root map[string]any, ref string) any {
	var node any = root
	for _, seg := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		seg = strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return node
}

var nonIdentChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)
var repeatedUnderscores = regexp.MustCompile(`_+`)

// SynthesizeOperationID derives a stable identifier for an operation that
// declares none. Pure function of method and path: the same pair always
// yields the same identifier across reloads.
func SynthesizeOperationID(method, path string) string {
	id := strings.ToUpper(method) + "_" + path
	id = nonIdentChars.ReplaceAllString(id, "_")
	return repeatedUnderscores.ReplaceAllString(id, "_")
}

func schemaType(ref *openapi3.SchemaRef) string {
	if ref == nil || ref.Value == nil || ref.Value.Type == nil || len(*ref.Value.Type) == 0 {
		return ""
	}
	return (*ref.Value.Type)[0]
}

func sortedPaths(doc *openapi3.T) []string {
	paths := make([]string, 0, doc.Paths.Len())
	for path := range doc.Paths.Map() {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func sortedMethods(item *openapi3.PathItem) []string {
	methods := make([]string, 0, len(item.Operations()))
	for method := range item.Operations() {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return methods
}

func sortedPropertyNames(schema *openapi3.Schema) []string {
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
