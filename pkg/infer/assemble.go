package infer

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// assemble builds a draft OpenAPI 3.0.3 document from clusters at or above
// the confidence floor. Operations are grouped by method; each carries the
// union of observed status codes with union-merged response schemas.
func assemble(clusters []*cluster, scores map[string]ConfidenceScore, minConfidence float64) map[string]any {
	paths := make(map[string]any)

	ordered := make([]*cluster, len(clusters))
	copy(ordered, clusters)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].pattern < ordered[j].pattern })

	for _, c := range ordered {
		if scores[c.pattern].Score < minConfidence {
			continue
		}
		item := make(map[string]any)

		for _, method := range observedMethods(c) {
			operation := buildOperation(c, method)
			item[strings.ToLower(method)] = operation
		}
		if len(item) > 0 {
			paths[c.pattern] = item
		}
	}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":       "Inferred API",
			"version":     "0.1.0",
			"description": "Draft specification inferred from recorded traffic.",
		},
		"paths": paths,
	}
}

func observedMethods(c *cluster) []string {
	set := make(map[string]bool)
	for _, ex := range c.exchanges {
		set[strings.ToUpper(ex.Method)] = true
	}
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func buildOperation(c *cluster, method string) map[string]any {
	responses := make(map[string]any)
	var requestSchema map[string]any
	responseSchemas := make(map[int]map[string]any)

	for _, ex := range c.exchanges {
		if !strings.EqualFold(ex.Method, method) {
			continue
		}
		if schema := induceBody(ex.RequestBody); schema != nil {
			requestSchema = mergeSchemas(requestSchema, schema)
		}
		if schema := induceBody(ex.ResponseBody); schema != nil {
			responseSchemas[ex.Status] = mergeSchemas(responseSchemas[ex.Status], schema)
		} else if _, seen := responseSchemas[ex.Status]; !seen {
			responseSchemas[ex.Status] = nil
		}
	}

	statuses := make([]int, 0, len(responseSchemas))
	for status := range responseSchemas {
		statuses = append(statuses, status)
	}
	sort.Ints(statuses)

	for _, status := range statuses {
		resp := map[string]any{
			"description": statusDescription(status),
		}
		if schema := responseSchemas[status]; schema != nil {
			resp["content"] = map[string]any{
				"application/json": map[string]any{"schema": schema},
			}
		}
		responses[strconv.Itoa(status)] = resp
	}

	op := map[string]any{"responses": responses}

	params := pathParameters(c.pattern)
	params = append(params, queryParameters(c, method)...)
	if len(params) > 0 {
		op["parameters"] = params
	}
	if requestSchema != nil {
		op["requestBody"] = map[string]any{
			"content": map[string]any{
				"application/json": map[string]any{"schema": requestSchema},
			},
		}
	}
	return op
}

func pathParameters(pattern string) []any {
	var out []any
	for _, seg := range splitSegments(pattern) {
		if !isPlaceholder(seg) {
			continue
		}
		out = append(out, map[string]any{
			"name":     seg[1 : len(seg)-1],
			"in":       "path",
			"required": true,
			"schema":   map[string]any{"type": "string"},
		})
	}
	return out
}

// queryParameters unions every query key observed for the method. All
// inferred query parameters are optional strings; typing them any tighter
// would need far more samples than recordings usually carry.
func queryParameters(c *cluster, method string) []any {
	keys := make(map[string]bool)
	for _, ex := range c.exchanges {
		if !strings.EqualFold(ex.Method, method) || ex.Query == "" {
			continue
		}
		values, err := url.ParseQuery(ex.Query)
		if err != nil {
			continue
		}
		for key := range values {
			keys[key] = true
		}
	}

	names := make([]string, 0, len(keys))
	for key := range keys {
		names = append(names, key)
	}
	sort.Strings(names)

	out := make([]any, 0, len(names))
	for _, name := range names {
		out = append(out, map[string]any{
			"name":   name,
			"in":     "query",
			"schema": map[string]any{"type": "string"},
		})
	}
	return out
}

func statusDescription(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "Successful response"
	case status >= 400 && status < 500:
		return "Client error"
	case status >= 500:
		return "Server error"
	default:
		return fmt.Sprintf("Status %d", status)
	}
}
