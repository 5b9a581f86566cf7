package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
	"github.com/kirillkom/segment-advisor/internal/core/ports"
)

const Version = "1.0.0"

// Server exposes the conversational use cases as MCP tools.
type Server struct {
	turns    ports.TurnProcessor
	sessions ports.SessionManager
	mcp      *server.MCPServer
}

func NewServer(name string, turns ports.TurnProcessor, sessions ports.SessionManager) *Server {
	s := &Server{
		turns:    turns,
		sessions: sessions,
		mcp:      server.NewMCPServer(name, Version, server.WithToolCapabilities(false), server.WithRecovery()),
	}

	s.mcp.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Start a conversation with the audience advisor and return its session id and greeting."),
	), s.createSession)

	s.mcp.AddTool(mcp.NewTool("process_turn",
		mcp.WithDescription("Send one user message (Spanish) to an advisor session and get the reply, the tracked goal, subject and behavioral profile."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Id returned by create_session.")),
		mcp.WithString("text", mcp.Required(), mcp.Description("User message.")),
	), s.processTurn)

	s.mcp.AddTool(mcp.NewTool("end_session",
		mcp.WithDescription("Discard an advisor session and its conversation state."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Id returned by create_session.")),
	), s.endSession)

	return s
}

// ServeStdio blocks until stdin is closed or ctx is done.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) createSession(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := s.sessions.CreateSession(ctx)
	if err != nil {
		return toolError("create_session", err), nil
	}
	greeting := ""
	for _, msg := range state.History {
		if msg.Role == domain.RoleAssistant {
			greeting = msg.Content
			break
		}
	}
	return jsonResult(map[string]string{"session_id": state.SessionID, "greeting": greeting})
}

func (s *Server) processTurn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.turns.ProcessTurn(ctx, sessionID, text)
	if err != nil {
		return toolError("process_turn", err), nil
	}
	return jsonResult(result)
}

func (s *Server) endSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.sessions.EndSession(ctx, sessionID); err != nil {
		return toolError("end_session", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("session %s ended", sessionID)), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

// toolError reports use-case failures as tool errors so the client model can react to them.
func toolError(tool string, err error) *mcp.CallToolResult {
	kind := "internal"
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		kind = "invalid_input"
	case domain.IsKind(err, domain.ErrSessionNotFound):
		kind = "session_not_found"
	case errors.Is(err, context.DeadlineExceeded):
		kind = "timeout"
	case domain.IsKind(err, domain.ErrTemporary):
		kind = "temporary"
	case domain.IsKind(err, domain.ErrGeneration):
		kind = "generation_failed"
	}
	slog.Warn("mcp_tool_failed", "tool", tool, "kind", kind, "error", err)
	return mcp.NewToolResultError(kind + ": " + err.Error())
}
