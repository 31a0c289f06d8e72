// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the brain reset as a tool for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/brainreset/internal/apperr"
	"github.com/starford/brainreset/internal/brainreset"
	"github.com/starford/brainreset/internal/validate"
)

// ClientKey is the rate limit key shared by every MCP caller.
const ClientKey = "mcp"

// Runner executes one brain reset request.
type Runner interface {
	Run(ctx context.Context, requestID, clientKey string, raw validate.RawRequest) (*brainreset.Result, error)
}

// Server wraps the MCP server with brain reset tools.
type Server struct {
	mcp *server.MCPServer
	svc Runner
}

// New creates a new MCP server with all tools registered.
func New(svc Runner, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Brain Reset",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("generate_brain_reset",
		mcp.WithDescription("Read the Craft daily notes of the last days, generate a reflection "+
			"and save it as a document in the most recent daily note. Returns the Craft link. "+
			"The document layout is described by get_reflection_format."),
		mcp.WithString("server_url", mcp.Required(), mcp.Description("Craft Connect link (https, craft.do)")),
		mcp.WithString("craft_token", mcp.Required(), mcp.Description("Craft API token")),
		mcp.WithNumber("days", mcp.Description("Days to cover, 1 to 30 (default 7)")),
	), s.generateBrainReset)

	s.mcp.AddTool(mcp.NewTool("get_reflection_format",
		mcp.WithDescription("Returns the section layout of a brain reset reflection."),
	), s.getReflectionFormat)

	// Resource: reflection format.
	s.mcp.AddResource(
		mcp.NewResource(ReflectionFormatURI, "Reflection Format",
			mcp.WithResourceDescription("Layout of the reflection document written to Craft."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readReflectionFormatResource,
	)

	return s
}

// Serve runs the stdio protocol on in and out until ctx is cancelled or
// in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) generateBrainReset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	serverURL, err := req.RequireString("server_url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	token, err := req.RequireString("craft_token")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw := validate.RawRequest{ServerURL: serverURL, CraftToken: token}
	if _, ok := req.GetArguments()["days"]; ok {
		days := req.GetInt("days", validate.DefaultDays)
		raw.Days = &days
	}

	requestID := uuid.NewString()
	res, err := s.svc.Run(ctx, requestID, ClientKey, raw)
	if err != nil {
		slog.Error("mcp brain reset failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return mcp.NewToolResultError(apperr.SafeMessage(err)), nil
	}

	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getReflectionFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ReflectionFormat), nil
}

func (s *Server) readReflectionFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ReflectionFormatURI,
			MIMEType: "text/markdown",
			Text:     ReflectionFormat,
		},
	}, nil
}
