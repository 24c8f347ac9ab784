/*
Package mcp implements the MCP server that exposes the recommendation engine.

The server uses stdio transport and exposes these tools:
  - skill_recommend: rank skills for the caller's session signals
  - skill_activate: report that a recommended skill was activated
  - skill_feedback: report whether a recommendation helped
  - skill_search: full-text search over the skill catalog (when loaded)
*/
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/catalog"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/logger"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/recommend"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/session"
	"github.com/NickCrew/claude-ctx-plugin-sub003/internal/storage"
)

const protocolVersion = "2024-11-05"

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeToolError      = -32000
	codeNotFound       = -32001
)

// Engine is the part of recommend.Engine the server calls.
type Engine interface {
	Recommend(ctx context.Context, sc session.SessionContext) (*recommend.Result, error)
	RecordActivation(ctx context.Context, id int64) error
	RecordFeedback(ctx context.Context, id int64, helpful bool, comment string) error
}

// Server is the skill-advisor MCP server.
type Server struct {
	engine  Engine
	builder *session.Builder
	catalog *catalog.Catalog
	version string

	in  io.Reader
	out io.Writer
	mu  sync.Mutex // guards out
}

// Option configures a Server.
type Option func(*Server)

// WithCatalog enables skill_search.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Server) { s.catalog = c }
}

// WithIO replaces stdin/stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *Server) {
		s.in = in
		s.out = out
	}
}

// WithVersion sets the version reported by initialize.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer creates a server around engine.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:  engine,
		builder: session.NewBuilder(),
		version: "dev",
		in:      os.Stdin,
		out:     os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves requests until the input is closed or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		resp, err := s.handleRequest(ctx, line)
		if err != nil {
			s.sendError(err)
			continue
		}
		if resp != nil {
			s.sendResponse(resp)
		}
	}
	return scanner.Err()
}

// MCPRequest is an incoming JSON-RPC request.
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse is an outgoing JSON-RPC response.
type MCPResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *MCPError `json:"error,omitempty"`
}

// MCPError is a JSON-RPC error object.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleRequest(ctx context.Context, data []byte) (*MCPResponse, error) {
	var req MCPRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, errors.Wrap(err, "invalid JSON-RPC request")
	}

	switch {
	case req.Method == "initialize":
		return s.handleInitialize(&req), nil
	case req.Method == "tools/list":
		return s.handleToolsList(&req), nil
	case req.Method == "tools/call":
		return s.handleToolsCall(ctx, &req), nil
	case req.Method == "ping":
		return &MCPResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{}}, nil
	case strings.HasPrefix(req.Method, "notifications/"):
		return nil, nil
	default:
		return errorResponse(req.ID, codeMethodNotFound, "Method not found"), nil
	}
}

func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
			"serverInfo": map[string]any{
				"name":    "skill-advisor",
				"version": s.version,
			},
		},
	}
}

var stringList = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	tools := []map[string]any{
		{
			"name": "skill_recommend",
			"description": `Recommend skills for the current session.

WHEN TO USE: At the start of a task, or when the working directory or active agents change.

Pass whatever signals you have: a directory listing (files), explicit markers such as
"python-file", the active agent ids and recent commands (hints). Each result carries an
id; report it back with skill_activate and skill_feedback so future recommendations improve.
Results with auto_activate=true are confident enough to load without asking.`,
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"working_dir":   map[string]any{"type": "string", "description": "Session working directory"},
					"files":         withDescription(stringList, "Directory listing, base names or relative paths"),
					"markers":       withDescription(stringList, "Explicit markers, e.g. python-file, dockerfile"),
					"active_agents": withDescription(stringList, "Identifiers of the active agents"),
					"hints":         withDescription(stringList, "Recent commands or free-text hints"),
				},
			},
		},
		{
			"name":        "skill_activate",
			"description": "Report that a recommended skill was activated. Call once per recommendation id.",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"recommendation_id": map[string]any{"type": "integer", "description": "id from skill_recommend"},
				},
				"required": []string{"recommendation_id"},
			},
		},
		{
			"name":        "skill_feedback",
			"description": "Report whether a recommended skill was helpful. May be called more than once.",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"recommendation_id": map[string]any{"type": "integer", "description": "id from skill_recommend"},
					"helpful":           map[string]any{"type": "boolean"},
					"comment":           map[string]any{"type": "string"},
				},
				"required": []string{"recommendation_id", "helpful"},
			},
		},
	}

	if s.catalog != nil {
		tools = append(tools, map[string]any{
			"name":        "skill_search",
			"description": fmt.Sprintf("Search the %d installed skills by name, description and tags.", s.catalog.Len()),
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "Free-text query"},
					"limit": map[string]any{"type": "integer", "description": "Maximum results (default 10)"},
				},
				"required": []string{"query"},
			},
		})
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  map[string]any{"tools": tools},
	}
}

func withDescription(schema map[string]any, desc string) map[string]any {
	out := make(map[string]any, len(schema)+1)
	for k, v := range schema {
		out[k] = v
	}
	out["description"] = desc
	return out
}

type recommendArgs struct {
	WorkingDir   string   `json:"working_dir"`
	Files        []string `json:"files"`
	Markers      []string `json:"markers"`
	ActiveAgents []string `json:"active_agents"`
	Hints        []string `json:"hints"`
}

type activateArgs struct {
	RecommendationID int64 `json:"recommendation_id"`
}

type feedbackArgs struct {
	RecommendationID int64  `json:"recommendation_id"`
	Helpful          *bool  `json:"helpful"`
	Comment          string `json:"comment"`
}

type searchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "invalid params: "+err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	log := logger.G(ctx).WithField("tool", params.Name)

	var (
		text string
		err  error
	)
	switch params.Name {
	case "skill_recommend":
		var args recommendArgs
		if err = json.Unmarshal(params.Arguments, &args); err == nil {
			text, err = s.execRecommend(ctx, args)
		}
	case "skill_activate":
		var args activateArgs
		if err = json.Unmarshal(params.Arguments, &args); err == nil {
			text, err = s.execActivate(ctx, args)
		}
	case "skill_feedback":
		var args feedbackArgs
		if err = json.Unmarshal(params.Arguments, &args); err == nil {
			text, err = s.execFeedback(ctx, args)
		}
	case "skill_search":
		var args searchArgs
		if err = json.Unmarshal(params.Arguments, &args); err == nil {
			text, err = s.execSearch(args)
		}
	default:
		return errorResponse(req.ID, codeInvalidParams, fmt.Sprintf("Unknown tool: %s", params.Name))
	}

	if err != nil {
		log.WithError(err).Debug("tool call failed")
		return errorResponse(req.ID, errorCode(err), err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": text},
			},
		},
	}
}

// paramError is a tool argument that fails validation.
type paramError struct{ msg string }

func (e *paramError) Error() string { return e.msg }

func errorCode(err error) int {
	var nf *storage.NotFoundError
	var ve *session.ValidationError
	var pe *paramError
	var je *json.UnmarshalTypeError
	switch {
	case errors.As(err, &nf):
		return codeNotFound
	case errors.As(err, &ve), errors.As(err, &pe), errors.As(err, &je):
		return codeInvalidParams
	default:
		return codeToolError
	}
}

type recommendOutput struct {
	RequestID       string                     `json:"request_id"`
	ContextHash     string                     `json:"context_hash"`
	Recommendations []recommend.Recommendation `json:"recommendations"`
	HistoryWarning  string                     `json:"history_warning,omitempty"`
}

func (s *Server) execRecommend(ctx context.Context, args recommendArgs) (string, error) {
	sc, err := s.builder.Build(session.RawSignals{
		WorkingDir:   args.WorkingDir,
		Files:        args.Files,
		Markers:      args.Markers,
		ActiveAgents: args.ActiveAgents,
		Hints:        args.Hints,
	})
	if err != nil {
		return "", err
	}

	res, err := s.engine.Recommend(ctx, sc)
	if err != nil {
		return "", err
	}

	out := recommendOutput{
		RequestID:       res.RequestID,
		ContextHash:     res.ContextHash,
		Recommendations: res.Recommendations,
	}
	if out.Recommendations == nil {
		out.Recommendations = []recommend.Recommendation{}
	}
	if res.HistoryErr != nil {
		out.HistoryWarning = "recommendations were not recorded: " + res.HistoryErr.Error()
	}
	return marshalText(out)
}

func (s *Server) execActivate(ctx context.Context, args activateArgs) (string, error) {
	if args.RecommendationID <= 0 {
		return "", &paramError{"recommendation_id must be a positive integer"}
	}
	if err := s.engine.RecordActivation(ctx, args.RecommendationID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Activation of recommendation %d recorded.", args.RecommendationID), nil
}

func (s *Server) execFeedback(ctx context.Context, args feedbackArgs) (string, error) {
	if args.RecommendationID <= 0 {
		return "", &paramError{"recommendation_id must be a positive integer"}
	}
	if args.Helpful == nil {
		return "", &paramError{"helpful is required"}
	}
	if err := s.engine.RecordFeedback(ctx, args.RecommendationID, *args.Helpful, args.Comment); err != nil {
		return "", err
	}
	verdict := "unhelpful"
	if *args.Helpful {
		verdict = "helpful"
	}
	return fmt.Sprintf("Feedback (%s) for recommendation %d recorded.", verdict, args.RecommendationID), nil
}

func (s *Server) execSearch(args searchArgs) (string, error) {
	if s.catalog == nil {
		return "", errors.New("skill catalog is not loaded")
	}
	results, err := s.catalog.Search(args.Query, args.Limit)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return fmt.Sprintf("No skills match '%s'.", args.Query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Skills matching '%s':\n", args.Query)
	for _, r := range results {
		fmt.Fprintf(&b, "  • %s (%.2f): %s\n", r.Name, r.Score, r.Description)
	}
	return b.String(), nil
}

func marshalText(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to encode result")
	}
	return string(data), nil
}

func errorResponse(id any, code int, msg string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &MCPError{Code: code, Message: msg},
	}
}

func (s *Server) sendResponse(resp *MCPResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.L.WithError(err).Error("failed to encode response")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, string(data))
}

func (s *Server) sendError(err error) {
	s.sendResponse(errorResponse(nil, codeParseError, err.Error()))
}
