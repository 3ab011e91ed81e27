// Package insights exposes recorded tallies to MCP clients. It is read-only:
// nothing here appends events or touches sessions.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yosida95/uritemplate/v3"

	"github.com/txn2/slidetrack/pkg/tally"
)

// tallyTemplateURI is the resource template for one resource's tally.
const tallyTemplateURI = "tally://{resource}"

// Server is the MCP server over a tally reader.
type Server struct {
	mcpServer *mcp.Server
	tallies   tally.Reader
}

// New creates the MCP server and registers its tools and resource template.
func New(tallies tally.Reader, version string) *Server {
	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    "slidetrack",
			Version: version,
		}, nil),
		tallies: tallies,
	}
	s.registerTools()
	s.registerResourceTemplates()
	return s
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

// Handler returns the streamable HTTP transport for the server.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcpServer }, nil)
}

// tallyOutput is the JSON body returned for one resource.
type tallyOutput struct {
	Resource string      `json:"resource"`
	Counts   tally.Tally `json:"counts"`
	Total    int64       `json:"total"`
}

// listResourcesOutput is the JSON body of the list_resources tool.
type listResourcesOutput struct {
	Resources []string `json:"resources"`
	Count     int      `json:"count"`
}

type getTallyInput struct {
	Resource string `json:"resource" jsonschema:"resource identifier, as used in /api/track/{resource}/{behavior}"`
}

// listResourcesInput is empty since this tool has no parameters.
type listResourcesInput struct{}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_tally",
		Description: "Return the counts by behavior recorded for one resource.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in getTallyInput) (*mcp.CallToolResult, any, error) {
		return s.handleGetTally(ctx, req, in)
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_resources",
		Description: "List every resource with at least one recorded response.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ listResourcesInput) (*mcp.CallToolResult, any, error) {
		return s.handleListResources(ctx, req)
	})
}

func (s *Server) handleGetTally(ctx context.Context, _ *mcp.CallToolRequest, in getTallyInput) (*mcp.CallToolResult, any, error) {
	if in.Resource == "" {
		return errorResult("resource is required"), nil, nil
	}
	counts, err := s.tallies.Aggregate(ctx, in.Resource)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	return textResult(tallyOutput{Resource: in.Resource, Counts: counts, Total: counts.Total()})
}

func (s *Server) handleListResources(ctx context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, any, error) {
	resources, err := s.tallies.Resources(ctx)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	return textResult(listResourcesOutput{Resources: resources, Count: len(resources)})
}

func (s *Server) registerResourceTemplates() {
	s.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: tallyTemplateURI,
		Name:        "Resource Tally",
		Description: "Counts by behavior recorded for one resource",
		MIMEType:    "application/json",
	}, s.handleTallyResource)
}

// handleTallyResource handles tally://{resource} requests.
func (s *Server) handleTallyResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	vars, err := parseTemplateVars(tallyTemplateURI, uri)
	if err != nil || vars["resource"] == "" {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
	}

	resource := vars["resource"]
	counts, err := s.tallies.Aggregate(ctx, resource)
	if err != nil {
		return nil, fmt.Errorf("reading tally for %s: %w", resource, err)
	}
	return marshalResourceResult(uri, tallyOutput{Resource: resource, Counts: counts, Total: counts.Total()})
}

// parseTemplateVars extracts named variables from a URI using a URI template.
func parseTemplateVars(templateStr, uri string) (map[string]string, error) {
	tmpl, err := uritemplate.New(templateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid template %q: %w", templateStr, err)
	}

	match := tmpl.Match(uri)
	if match == nil {
		return nil, fmt.Errorf("uri %q does not match template %q", uri, templateStr)
	}

	result := make(map[string]string)
	for _, name := range tmpl.Varnames() {
		result[name] = match.Get(name).String()
	}
	return result, nil
}

func marshalResourceResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling resource %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}

func textResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

// errorResult reports a tool failure in the result, as the MCP protocol expects.
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}
}
