package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

// openapiSpecJSON is the router's OpenAPI 3 document, loaded and validated
// once at startup via kin-openapi; /openapi.json serves the parsed document
// re-encoded as JSON.
const openapiSpecJSON = `{
  "openapi": "3.0.3",
  "info": {"title": "llm-router", "version": "1.0.0", "description": "Routes OpenAI and Anthropic-shaped chat requests across configured providers with rate limiting, load balancing, and fallback."},
  "paths": {
    "/health": {"get": {"summary": "Health check", "responses": {"200": {"description": "ok"}}}},
    "/v1/chat/completions": {"post": {"summary": "OpenAI-compatible chat completion", "requestBody": {"content": {"application/json": {"schema": {"type": "object"}}}}, "responses": {"200": {"description": "completion"}}}},
    "/v1/messages": {"post": {"summary": "Anthropic-compatible messages", "requestBody": {"content": {"application/json": {"schema": {"type": "object"}}}}, "responses": {"200": {"description": "message"}}}},
    "/route": {"post": {"summary": "Auto-detected chat completion", "requestBody": {"content": {"application/json": {"schema": {"type": "object"}}}}, "responses": {"200": {"description": "completion"}}}},
    "/v1/models": {"get": {"summary": "List configured models", "responses": {"200": {"description": "model list"}}}}
  },
  "components": {
    "securitySchemes": {
      "bearerAuth": {"type": "http", "scheme": "bearer"},
      "apiKeyHeader": {"type": "apiKey", "in": "header", "name": "x-api-key"}
    }
  }
}`

func loadOpenAPIDoc() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData([]byte(openapiSpecJSON))
	if err != nil {
		return nil, fmt.Errorf("server: parsing embedded openapi spec: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("server: embedded openapi spec is invalid: %w", err)
	}
	return doc, nil
}

func (s *Server) handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.openapiDoc)
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head>
  <title>llm-router API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.onload = function() {
      SwaggerUIBundle({ url: "/openapi.json", dom_id: "#swagger-ui" });
    };
  </script>
</body>
</html>`)
}
