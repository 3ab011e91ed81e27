// Package apidocs holds the OpenAPI document for the slidetrack HTTP API.
// Regenerate with: swag init -g cmd/slidetrack/main.go -o internal/apidocs
package apidocs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/progress/{module}": {
            "get": {
                "description": "Returns the session's position in a module, or section 1 page 1 if never set.",
                "produces": ["application/json"],
                "tags": ["Progress"],
                "summary": "Get module progress",
                "parameters": [
                    {"type": "string", "description": "Module identifier", "name": "module", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/session.Progress"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/progress/{module}/{section}/{page}": {
            "post": {
                "description": "Overwrites the session's position in a module and echoes the stored values.",
                "produces": ["application/json"],
                "tags": ["Progress"],
                "summary": "Set module progress",
                "parameters": [
                    {"type": "string", "description": "Module identifier", "name": "module", "in": "path", "required": true},
                    {"type": "integer", "description": "Section number, 1-based", "name": "section", "in": "path", "required": true},
                    {"type": "integer", "description": "Page number, 1-based", "name": "page", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.progressResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/test-session": {
            "get": {
                "description": "Development only. Returns the caller's full session record.",
                "produces": ["application/json"],
                "tags": ["Debug"],
                "summary": "Dump session",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/session.Session"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/track/{resource}/{behavior}": {
            "post": {
                "description": "Records the session's first behavior for a resource and returns the resource's counts by behavior. Repeat submissions from the same session are not counted.",
                "produces": ["application/json"],
                "tags": ["Tracking"],
                "summary": "Track a response",
                "parameters": [
                    {"type": "string", "description": "Resource identifier", "name": "resource", "in": "path", "required": true},
                    {"type": "string", "description": "Behavior label", "name": "behavior", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "integer", "format": "int64"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/username": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Username"],
                "summary": "Get display name",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.usernameResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/username/{username}": {
            "post": {
                "description": "Stores the display name on the session, replacing any previous one.",
                "produces": ["text/plain"],
                "tags": ["Username"],
                "summary": "Save display name",
                "parameters": [
                    {"type": "string", "description": "Display name, 1-64 printable characters", "name": "username", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Successfully saved username!", "schema": {"type": "string"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.errorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "store unavailable"}
            }
        },
        "api.progressResponse": {
            "type": "object",
            "properties": {
                "module": {"type": "string", "example": "auth"},
                "page": {"type": "integer", "example": 3},
                "section": {"type": "integer", "example": 2}
            }
        },
        "api.usernameResponse": {
            "type": "object",
            "properties": {
                "username": {"type": "string", "example": "ada"}
            }
        },
        "session.Progress": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "section": {"type": "integer"}
            }
        },
        "session.Session": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "expires_at": {"type": "string"},
                "id": {"type": "string"},
                "last_active_at": {"type": "string"},
                "state": {"$ref": "#/definitions/session.State"}
            }
        },
        "session.State": {
            "type": "object",
            "properties": {
                "behaviors": {"type": "object", "additionalProperties": {"type": "string"}},
                "progress": {"type": "object", "additionalProperties": {"$ref": "#/definitions/session.Progress"}},
                "username": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "slidetrack API",
	Description:      "Anonymous response tracking and module progress for training slides.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
