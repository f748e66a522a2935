package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usersSpec = `{
  "openapi": "3.0.3",
  "info": {"title": "Users API", "version": "1.0.0"},
  "paths": {
    "/users": {
      "get": {
        "operationId": "listUsers",
        "responses": {
          "200": {
            "description": "ok",
            "content": {
              "application/json": {
                "schema": {
                  "type": "array",
                  "items": {
                    "type": "object",
                    "properties": {"id": {"type": "integer"}},
                    "required": ["id"]
                  }
                }
              }
            }
          }
        }
      }
    },
    "/users/{id}": {
      "get": {
        "operationId": "getUser",
        "parameters": [
          {"name": "id", "in": "path", "required": true, "schema": {"type": "integer"}}
        ],
        "responses": {
          "200": {
            "description": "ok",
            "content": {
              "application/json": {
                "schema": {"$ref": "#/components/schemas/User"}
              }
            }
          }
        }
      }
    }
  },
  "components": {
    "schemas": {
      "User": {
        "type": "object",
        "properties": {
          "id": {"type": "integer"},
          "email": {"type": "string", "format": "email"}
        },
        "required": ["id"]
      }
    }
  }
}`

func TestLoad_ValidSpec(t *testing.T) {
	t.Parallel()
	doc, report := Load([]byte(usersSpec), "users.json")
	require.True(t, report.Valid, "report: %+v", report)
	require.NotNil(t, doc)

	assert.Equal(t, "Users API", doc.Title)
	assert.Equal(t, "1.0.0", doc.APIVersion)
	require.Len(t, doc.Operations, 2)

	// Sorted by path, then method.
	assert.Equal(t, "/users", doc.Operations[0].Path)
	assert.Equal(t, "GET", doc.Operations[0].Method)
	assert.Equal(t, "listUsers", doc.Operations[0].ID)

	get := doc.Operations[1]
	assert.Equal(t, "/users/{id}", get.Path)
	require.Len(t, get.Parameters, 1)
	assert.Equal(t, InPath, get.Parameters[0].In)
	assert.True(t, get.Parameters[0].Required)
	assert.Equal(t, StyleSimple, get.Parameters[0].Style)
	assert.False(t, get.Parameters[0].Explode)

	// $ref resolved: no ref observable, schema fully materialized.
	resp := get.Responses["200"]
	require.NotNil(t, resp)
	require.NotNil(t, resp.Schema)
	assert.Equal(t, "object", resp.Schema.Type)
	assert.Contains(t, resp.Schema.Properties, "email")
	assert.Equal(t, "email", resp.Schema.Properties["email"].Format)

	assert.NotEmpty(t, doc.Raw)
}

func TestLoad_Swagger2Upconverted(t *testing.T) {
	t.Parallel()
	swagger := `{
	  "swagger": "2.0",
	  "info": {"title": "Legacy", "version": "0.1"},
	  "paths": {
	    "/ping": {
	      "get": {
	        "responses": {"200": {"description": "pong"}}
	      }
	    }
	  }
	}`
	doc, report := Load([]byte(swagger), "")
	require.True(t, report.Valid, "report: %+v", report)
	require.Len(t, doc.Operations, 1)
	assert.Equal(t, "/ping", doc.Operations[0].Path)
}

func TestLoad_YAMLSpec(t *testing.T) {
	t.Parallel()
	yamlSpec := `
openapi: "3.0.3"
info:
  title: Pets
  version: "1.0"
paths:
  /pets:
    get:
      responses:
        "200":
          description: ok
`
	doc, report := Load([]byte(yamlSpec), "pets.yaml")
	require.True(t, report.Valid, "report: %+v", report)
	require.Len(t, doc.Operations, 1)
}

func TestLoad_MissingInfoReported(t *testing.T) {
	t.Parallel()
	doc, report := Load([]byte(`{"openapi": "3.0.0", "paths": {"/x": {}}}`), "")
	require.Nil(t, doc)
	require.False(t, report.Valid)

	var codes []string
	for _, e := range report.Errors {
		codes = append(codes, e.Code)
	}
	assert.Contains(t, codes, CodeMissingInfo)
}

func TestLoad_EmptyPathsReported(t *testing.T) {
	t.Parallel()
	doc, report := Load([]byte(`{"openapi": "3.0.0", "info": {"title": "t", "version": "1"}, "paths": {}}`), "")
	require.Nil(t, doc)
	require.False(t, report.Valid)
	require.NotEmpty(t, report.Errors)
	assert.Equal(t, CodeEmptyPaths, report.Errors[0].Code)
	assert.Equal(t, "/paths", report.Errors[0].Path)
	assert.NotEmpty(t, report.Errors[0].Suggestion)
}

func TestLoad_CyclicRefRejected(t *testing.T) {
	t.Parallel()
	cyclic := `{
	  "openapi": "3.0.3",
	  "info": {"title": "t", "version": "1"},
	  "paths": {
	    "/nodes": {
	      "get": {
	        "responses": {
	          "200": {
	            "description": "ok",
	            "content": {
	              "application/json": {"schema": {"$ref": "#/components/schemas/Node"}}
	            }
	          }
	        }
	      }
	    }
	  },
	  "components": {
	    "schemas": {
	      "Node": {
	        "type": "object",
	        "properties": {
	          "next": {"$ref": "#/components/schemas/Node"}
	        }
	      }
	    }
	  }
	}`
	doc, report := Load([]byte(cyclic), "")
	require.Nil(t, doc)
	require.False(t, report.Valid)
	require.NotEmpty(t, report.Errors)
	assert.Equal(t, CodeCircularRef, report.Errors[0].Code)
}

func TestLoad_GraphQLRoutedElsewhere(t *testing.T) {
	t.Parallel()
	doc, report := Load([]byte("type Query { ping: String }"), "schema.graphql")
	require.Nil(t, doc)
	require.False(t, report.Valid)
}

func TestSchema_PropertyNames(t *testing.T) {
	t.Parallel()
	s := &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"zeta":  {Type: "string"},
			"alpha": {Type: "string"},
			"id":    {Type: "integer"},
		},
		Required: []string{"id"},
	}
	assert.Equal(t, []string{"id", "alpha", "zeta"}, s.PropertyNames())
}

func TestOperation_Placeholders(t *testing.T) {
	t.Parallel()
	op := &Operation{Method: "GET", Path: "/orgs/{org}/repos/{repo}"}
	assert.Equal(t, []string{"org", "repo"}, op.Placeholders())
}
