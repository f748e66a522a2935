package spec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// converter walks a kin-openapi document and produces the canonical model.
// Schema conversion memoizes by source pointer, so a $ref target shared by
// many operations converts to one shared *Schema handle. A schema reached
// again while still being converted is a reference cycle and is rejected.
type converter struct {
	visiting map[*openapi3.Schema]bool
	done     map[*openapi3.Schema]*Schema
}

func convertDocument(doc3 *openapi3.T, format Format) (*Document, *ValidationError) {
	c := &converter{
		visiting: make(map[*openapi3.Schema]bool),
		done:     make(map[*openapi3.Schema]*Schema),
	}

	doc := &Document{Version: string(format)}
	if doc3.OpenAPI != "" {
		doc.Version = doc3.OpenAPI
	}
	if doc3.Info != nil {
		doc.Title = doc3.Info.Title
		doc.APIVersion = doc3.Info.Version
	}

	if raw, err := doc3.MarshalJSON(); err == nil {
		doc.Raw = raw
	}

	var paths map[string]*openapi3.PathItem
	if doc3.Paths != nil {
		paths = doc3.Paths.Map()
	}
	pathKeys := make([]string, 0, len(paths))
	for p := range paths {
		pathKeys = append(pathKeys, p)
	}
	sort.Strings(pathKeys)

	for _, path := range pathKeys {
		item := paths[path]
		if item == nil {
			continue
		}
		for method, op3 := range item.Operations() {
			if op3 == nil {
				continue
			}
			op, err := c.convertOperation(method, path, item, op3)
			if err != nil {
				return nil, err
			}
			doc.Operations = append(doc.Operations, op)
		}
	}

	sort.Slice(doc.Operations, func(i, j int) bool {
		if doc.Operations[i].Path != doc.Operations[j].Path {
			return doc.Operations[i].Path < doc.Operations[j].Path
		}
		return doc.Operations[i].Method < doc.Operations[j].Method
	})

	return doc, nil
}

func (c *converter) convertOperation(method, path string, item *openapi3.PathItem, op3 *openapi3.Operation) (*Operation, *ValidationError) {
	op := &Operation{
		ID:     op3.OperationID,
		Method: strings.ToUpper(method),
		Path:   path,
	}
	if op.ID == "" {
		op.ID = strings.ToLower(method) + ":" + path
	}

	// Path-level parameters apply to every operation unless shadowed.
	params := make([]*openapi3.ParameterRef, 0, len(item.Parameters)+len(op3.Parameters))
	params = append(params, item.Parameters...)
	params = append(params, op3.Parameters...)

	seen := make(map[string]bool)
	// Walk in reverse so operation-level parameters shadow path-level ones.
	for i := len(params) - 1; i >= 0; i-- {
		ref := params[i]
		if ref == nil || ref.Value == nil {
			continue
		}
		key := string(ref.Value.In) + ":" + ref.Value.Name
		if seen[key] {
			continue
		}
		seen[key] = true

		p, err := c.convertParameter(ref.Value, op)
		if err != nil {
			return nil, err
		}
		op.Parameters = append([]*Parameter{p}, op.Parameters...)
	}

	if op3.RequestBody != nil && op3.RequestBody.Value != nil {
		body := &RequestBody{Required: op3.RequestBody.Value.Required}
		if mt := op3.RequestBody.Value.Content.Get("application/json"); mt != nil && mt.Schema != nil {
			schema, err := c.convertSchema(mt.Schema, op.ID+"/requestBody")
			if err != nil {
				return nil, err
			}
			body.Schema = schema
		}
		op.Body = body
	}

	op.Responses = make(map[string]*Response)
	if op3.Responses != nil {
		for status, respRef := range op3.Responses.Map() {
			if respRef == nil || respRef.Value == nil {
				continue
			}
			resp := &Response{Status: status}
			if mt := respRef.Value.Content.Get("application/json"); mt != nil {
				if mt.Schema != nil {
					schema, err := c.convertSchema(mt.Schema, op.ID+"/responses/"+status)
					if err != nil {
						return nil, err
					}
					resp.Schema = schema
				}
				if mt.Example != nil {
					resp.Example = mt.Example
				}
			}
			op.Responses[status] = resp
		}
	}

	if op3.Security != nil {
		for _, req := range *op3.Security {
			sr := make(SecurityRequirement, len(req))
			for name, scopes := range req {
				sr[name] = scopes
			}
			op.Security = append(op.Security, sr)
		}
	}
	if len(op3.Extensions) > 0 {
		op.Extensions = make(map[string]any, len(op3.Extensions))
		for k, v := range op3.Extensions {
			op.Extensions[k] = v
		}
	}

	if err := op.checkPlaceholders(); err != nil {
		return nil, &ValidationError{
			Path:    "/paths/" + escapePointer(path),
			Code:    CodeMissingInfo,
			Message: err.Error(),
		}
	}

	return op, nil
}

func (c *converter) convertParameter(p3 *openapi3.Parameter, op *Operation) (*Parameter, *ValidationError) {
	in := Location(p3.In)
	p := &Parameter{
		Name:     p3.Name,
		In:       in,
		Required: p3.Required,
		Style:    DefaultStyle(in),
		Explode:  DefaultExplode(in),
	}
	if in == InPath {
		p.Required = true
	}
	if p3.Style != "" {
		p.Style = Style(p3.Style)
	}
	if p3.Explode != nil {
		p.Explode = *p3.Explode
	}
	if p3.Schema != nil {
		schema, err := c.convertSchema(p3.Schema, op.ID+"/parameters/"+p3.Name)
		if err != nil {
			return nil, err
		}
		p.Schema = schema
	}
	return p, nil
}

func (c *converter) convertSchema(ref *openapi3.SchemaRef, where string) (*Schema, *ValidationError) {
	if ref == nil || ref.Value == nil {
		return nil, nil
	}
	src := ref.Value

	if done, ok := c.done[src]; ok {
		return done, nil
	}
	if c.visiting[src] {
		return nil, &ValidationError{
			Path:       "/" + escapePointer(where),
			Code:       CodeCircularRef,
			Message:    "schema contains a reference cycle",
			Suggestion: "break the cycle by flattening one of the referenced schemas",
		}
	}
	c.visiting[src] = true
	defer delete(c.visiting, src)

	s := &Schema{
		Format:   src.Format,
		Pattern:  src.Pattern,
		Example:  src.Example,
		Default:  src.Default,
		Nullable: src.Nullable,
	}
	if src.Type != nil && len(src.Type.Slice()) > 0 {
		s.Type = src.Type.Slice()[0]
	}
	if len(src.Enum) > 0 {
		s.Enum = append([]any(nil), src.Enum...)
	}
	if len(src.Required) > 0 {
		s.Required = append([]string(nil), src.Required...)
	}
	s.Minimum = src.Min
	s.Maximum = src.Max
	if src.MinLength > 0 {
		v := int(src.MinLength)
		s.MinLength = &v
	}
	if src.MaxLength != nil {
		v := int(*src.MaxLength)
		s.MaxLength = &v
	}
	if src.MinItems > 0 {
		v := int(src.MinItems)
		s.MinItems = &v
	}
	if src.MaxItems != nil {
		v := int(*src.MaxItems)
		s.MaxItems = &v
	}

	if len(src.Properties) > 0 {
		s.Properties = make(map[string]*Schema, len(src.Properties))
		for name, propRef := range src.Properties {
			prop, err := c.convertSchema(propRef, where+"/"+name)
			if err != nil {
				return nil, err
			}
			s.Properties[name] = prop
		}
	}
	if src.Items != nil {
		items, err := c.convertSchema(src.Items, where+"/items")
		if err != nil {
			return nil, err
		}
		s.Items = items
	}

	for i, sub := range src.OneOf {
		conv, err := c.convertSchema(sub, fmt.Sprintf("%s/oneOf/%d", where, i))
		if err != nil {
			return nil, err
		}
		s.OneOf = append(s.OneOf, conv)
	}
	for i, sub := range src.AnyOf {
		conv, err := c.convertSchema(sub, fmt.Sprintf("%s/anyOf/%d", where, i))
		if err != nil {
			return nil, err
		}
		s.AnyOf = append(s.AnyOf, conv)
	}
	for i, sub := range src.AllOf {
		conv, err := c.convertSchema(sub, fmt.Sprintf("%s/allOf/%d", where, i))
		if err != nil {
			return nil, err
		}
		// allOf merging is only defined for objects.
		if conv != nil && conv.Type != "" && conv.Type != "object" {
			return nil, &ValidationError{
				Path:       "/" + escapePointer(fmt.Sprintf("%s/allOf/%d", where, i)),
				Code:       CodeParseFailure,
				Message:    fmt.Sprintf("allOf variant has type %q; only object variants can be merged", conv.Type),
				Suggestion: "restructure the composition so every allOf variant is an object",
			}
		}
		s.AllOf = append(s.AllOf, conv)
	}

	c.done[src] = s
	return s, nil
}

// escapePointer escapes a string for use inside a JSON pointer.
func escapePointer(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	return strings.ReplaceAll(s, "/", "~1")
}
