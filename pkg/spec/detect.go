package spec

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies a supported specification format.
type Format string

const (
	FormatOpenAPI20 Format = "openapi-2.0"
	FormatOpenAPI30 Format = "openapi-3.0"
	FormatOpenAPI31 Format = "openapi-3.1"
	FormatGraphQL   Format = "graphql"
	FormatProtobuf  Format = "protobuf"
)

// ErrUnknownFormat is returned when the content matches no supported format.
var ErrUnknownFormat = errors.New("unknown specification format")

// DisplayName returns a human-readable name for the format.
func (f Format) DisplayName() string {
	switch f {
	case FormatOpenAPI20:
		return "OpenAPI 2.0 (Swagger)"
	case FormatOpenAPI30:
		return "OpenAPI 3.0.x"
	case FormatOpenAPI31:
		return "OpenAPI 3.1.x"
	case FormatGraphQL:
		return "GraphQL SDL"
	case FormatProtobuf:
		return "Protocol Buffers"
	default:
		return string(f)
	}
}

// DetectFormat determines the specification format from content and an
// optional file-name hint. Detection order: file extension, then content
// sniffing (JSON first when the trimmed content starts with '{' or '[',
// otherwise YAML), then GraphQL keyword search.
func DetectFormat(content []byte, hint string) (Format, error) {
	if hint != "" {
		switch strings.ToLower(filepath.Ext(hint)) {
		case ".graphql", ".gql":
			return FormatGraphQL, nil
		case ".proto":
			return FormatProtobuf, nil
		}
	}

	trimmed := strings.TrimSpace(string(content))

	var root map[string]any
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(content, &root); err != nil {
			root = nil
		}
	} else {
		if err := yaml.Unmarshal(content, &root); err != nil {
			root = nil
		}
	}

	if root != nil {
		if v, ok := root["swagger"].(string); ok && strings.HasPrefix(v, "2.") {
			return FormatOpenAPI20, nil
		}
		if v, ok := root["openapi"].(string); ok {
			switch {
			case strings.HasPrefix(v, "3.0"):
				return FormatOpenAPI30, nil
			case strings.HasPrefix(v, "3.1"):
				return FormatOpenAPI31, nil
			default:
				return "", fmt.Errorf("%w: unsupported openapi version %q", ErrUnknownFormat, v)
			}
		}
	}

	if strings.Contains(trimmed, "type Query") || strings.Contains(trimmed, "type Mutation") {
		return FormatGraphQL, nil
	}

	return "", ErrUnknownFormat
}

// IsOpenAPI reports whether the format is an OpenAPI variant.
func (f Format) IsOpenAPI() bool {
	switch f {
	case FormatOpenAPI20, FormatOpenAPI30, FormatOpenAPI31:
		return true
	default:
		return false
	}
}
