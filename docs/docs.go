// Package docs holds the OpenAPI document served at /swagger/doc.json.
// Regenerate with: swag init -g cmd/server/docs.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Chatwave Maintainers",
            "url": "https://github.com/observer/chatwave"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["auth"],
                "summary": "Register a new user",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/auth.RegisterInput"}}],
                "responses": {"201": {"description": "User created successfully"}, "400": {"description": "Invalid input"}, "409": {"description": "Username or email already exists"}}
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Login",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/auth.LoginInput"}}],
                "responses": {"200": {"description": "Login successful"}, "401": {"description": "Invalid credentials"}}
            }
        },
        "/auth/refresh": {
            "post": {"tags": ["auth"], "summary": "Refresh token", "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}
        },
        "/auth/logout": {
            "post": {"tags": ["auth"], "summary": "Logout", "responses": {"200": {"description": "OK"}}}
        },
        "/auth/logout-all": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["auth"], "summary": "Logout everywhere", "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}
        },
        "/auth/me": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["auth"], "summary": "Get authenticated user", "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}
        },
        "/users/search": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "Search users",
                "parameters": [{"type": "string", "name": "q", "in": "query", "required": true}, {"type": "integer", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/users/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "Get a user profile",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/messages": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["messages"], "summary": "Send a direct message", "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}}
        },
        "/messages/{id}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["messages"],
                "summary": "Delete a message",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}, {"type": "string", "name": "scope", "in": "query"}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}}
            }
        },
        "/messages/{id}/forward": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["messages"], "summary": "Forward a message", "responses": {"201": {"description": "Created"}}}
        },
        "/conversations/{peerID}/messages": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["messages"], "summary": "Conversation history", "responses": {"200": {"description": "OK"}}}
        },
        "/groups": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["groups"], "summary": "List my groups", "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["groups"], "summary": "Create a group", "responses": {"201": {"description": "Created"}}}
        },
        "/groups/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["groups"], "summary": "Get a group", "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}}
        },
        "/groups/{id}/members": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["groups"], "summary": "Add a member", "responses": {"201": {"description": "Created"}, "403": {"description": "Forbidden"}}}
        },
        "/groups/{id}/members/{userID}": {
            "delete": {"security": [{"BearerAuth": []}], "tags": ["groups"], "summary": "Remove a member", "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}
        },
        "/groups/{id}/messages": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["groups"], "summary": "Group message history", "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["groups"], "summary": "Send a group message", "responses": {"201": {"description": "Created"}}}
        },
        "/uploads/init": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["uploads"], "summary": "Initialize file upload", "responses": {"200": {"description": "OK"}}}
        },
        "/uploads/complete": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["uploads"], "summary": "Complete file upload", "responses": {"200": {"description": "OK"}}}
        },
        "/attachments/{id}/url": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["attachments"], "summary": "Get file download URL", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/calls/ice-servers": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["calls"], "summary": "ICE servers for calls", "responses": {"200": {"description": "OK"}}}
        }
    },
    "definitions": {
        "auth.RegisterInput": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "username": {"type": "string"},
                "password": {"type": "string"},
                "first_name": {"type": "string"},
                "last_name": {"type": "string"}
            }
        },
        "auth.LoginInput": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "JWT token (format: Bearer <token>)",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Chatwave API",
	Description:      "Real-time chat relay with direct and group messaging and call signaling over WebSocket",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
