package mcptool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/workgraph/workctl/internal/advisory"
	"github.com/workgraph/workctl/internal/gatecheck"
	"github.com/workgraph/workctl/internal/obslog"
	"github.com/workgraph/workctl/internal/orchestrate"
	"github.com/workgraph/workctl/internal/store"
)

// Tool name constants, mirroring the teacher's per-operation constant
// style (internal/rpc/protocol.go's OpCreate, OpBatch, ...) but one
// constant per MCP tool rather than per dispatch-string operation.
const (
	ToolAdvanceItem      = "advance_item"
	ToolCompleteTree     = "complete_tree"
	ToolGetBlockedItems  = "get_blocked_items"
	ToolGetNextItem      = "get_next_item"
	ToolGetNextStatus    = "get_next_status"
	ToolGetContext       = "get_context"
	ToolManageItems      = "manage_items"
	ToolManageDependencies = "manage_dependencies"
	ToolManageNotes      = "manage_notes"
	ToolQueryItems       = "query_items"
	ToolQueryNotes       = "query_notes"
)

// Services bundles every dependency a tool handler needs: the persistence
// contract directly (for the collaborator tools), the two batch
// orchestrators, and the advisory service.
type Services struct {
	Store         store.Store
	Orchestrator  *orchestrate.Orchestrator
	Advisory      *advisory.Service
	SchemaService gatecheck.NoteSchemaService
}

// NewServices wires an Orchestrator and Advisory Service off a shared
// store and schema service.
func NewServices(st store.Store, schemaService gatecheck.NoteSchemaService) *Services {
	if schemaService == nil {
		schemaService = gatecheck.NoOpNoteSchemaService{}
	}
	return &Services{
		Store:         st,
		Orchestrator:  orchestrate.New(st, schemaService),
		Advisory:      advisory.New(st, schemaService, 0),
		SchemaService: schemaService,
	}
}

// Server wraps an MCP server with the tool set registered against svc.
type Server struct {
	mcp *server.MCPServer
	svc *Services
}

// New builds a Server and registers every tool.
func New(svc *Services, name, version string) *Server {
	s := &Server{
		mcp: server.NewMCPServer(name, version),
		svc: svc,
	}
	s.register()
	return s
}

// ServeStdio runs the server over stdin/stdout: one JSON-RPC request read
// per line, dispatched to completion before the next line is read, per
// SPEC_FULL.md §7.
func (s *Server) ServeStdio(ctx context.Context) error {
	return server.ServeStdio(s.mcp, server.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return ctx
	}))
}

// ServeTCP runs the server as a streamable-HTTP listener at addr, letting
// multiple MCP clients connect concurrently (SPEC_FULL.md §7's TCP mode,
// grounded on the teacher's daemon dual unix-socket+TCP transport in
// internal/rpc/server_core.go's tcpListener/httpServer fields). Each
// accepted connection is handled to completion by the underlying HTTP
// server's own goroutine-per-request model; no engine-level locking is
// required because every tool handler's repository calls are already
// transaction-scoped.
func (s *Server) ServeTCP(ctx context.Context, addr string) error {
	httpSrv := server.NewStreamableHTTPServer(s.mcp)
	obslog.Debugf("mcptool: listening on %s", addr)
	return httpSrv.Start(addr)
}

func (s *Server) register() {
	s.addTool(ToolAdvanceItem, "Apply one or more role-transition triggers to work items, with cascade and unblock detection.",
		objectSchema(
			reqProp("transitions", "array", "List of {itemId, trigger, summary?, statusLabel?, applyCascade?} entries to apply in order."),
		),
		s.handleAdvanceItem)

	s.addTool(ToolCompleteTree, "Bulk-advance a subtree or explicit item set with trigger complete or cancel, skipping downstream of any gate failure.",
		objectSchema(
			optProp("rootId", "string", "Root item id; descendants are the target set."),
			optProp("itemIds", "array", "Explicit target item id list (exactly one of rootId/itemIds)."),
			reqProp("trigger", "string", "complete or cancel."),
		),
		s.handleCompleteTree)

	s.addTool(ToolGetBlockedItems, "Enumerate items that are BLOCKED or have at least one unsatisfied incoming blocker.",
		objectSchema(optProp("parentId", "string", "Restrict to direct children of this item.")),
		s.handleGetBlockedItems)

	s.addTool(ToolGetNextItem, "Recommend unblocked, non-terminal items ranked by priority/complexity/age.",
		objectSchema(
			optProp("parentId", "string", "Restrict to direct children of this item."),
			optProp("priority", "string", "high|medium|low filter."),
			optProp("limit", "number", "Maximum recommendations to return."),
		),
		s.handleGetNextItem)

	s.addTool(ToolGetNextStatus, "Compute a single item's readiness: Ready/Blocked/Terminal, next role, and trigger.",
		objectSchema(reqProp("itemId", "string", "Item to evaluate.")),
		s.handleGetNextStatus)

	s.addTool(ToolGetContext, "Resume context: item mode, session-resume mode (since timestamp), or health-check mode.",
		objectSchema(
			optProp("itemId", "string", "Item mode when set."),
			optProp("since", "string", "RFC3339 timestamp; session-resume mode when set."),
		),
		s.handleGetContext)

	s.addTool(ToolManageItems, "Create, update, or delete work items.",
		objectSchema(reqProp("operation", "string", "create|update|delete")),
		s.handleManageItems)

	s.addTool(ToolManageDependencies, "Create, batch-create, or delete dependency edges between items.",
		objectSchema(reqProp("operation", "string", "create|createBatch|delete")),
		s.handleManageDependencies)

	s.addTool(ToolManageNotes, "Upsert or delete a note attached to an item.",
		objectSchema(reqProp("operation", "string", "upsert|delete")),
		s.handleManageNotes)

	s.addTool(ToolQueryItems, "List work items filtered by parent/role/priority/tag, paginated.",
		objectSchema(),
		s.handleQueryItems)

	s.addTool(ToolQueryNotes, "List notes filtered by item and/or role.",
		objectSchema(),
		s.handleQueryNotes)
}

type propSpec struct {
	name, typ, desc string
	required        bool
}

func reqProp(name, typ, desc string) propSpec { return propSpec{name, typ, desc, true} }
func optProp(name, typ, desc string) propSpec { return propSpec{name, typ, desc, false} }

func objectSchema(props ...propSpec) []mcp.ToolOption {
	opts := make([]mcp.ToolOption, 0, len(props))
	for _, p := range props {
		switch p.typ {
		case "array":
			if p.required {
				opts = append(opts, mcp.WithArray(p.name, mcp.Required(), mcp.Description(p.desc)))
			} else {
				opts = append(opts, mcp.WithArray(p.name, mcp.Description(p.desc)))
			}
		case "number":
			if p.required {
				opts = append(opts, mcp.WithNumber(p.name, mcp.Required(), mcp.Description(p.desc)))
			} else {
				opts = append(opts, mcp.WithNumber(p.name, mcp.Description(p.desc)))
			}
		default:
			if p.required {
				opts = append(opts, mcp.WithString(p.name, mcp.Required(), mcp.Description(p.desc)))
			} else {
				opts = append(opts, mcp.WithString(p.name, mcp.Description(p.desc)))
			}
		}
	}
	return opts
}

func (s *Server) addTool(name, description string, schemaOpts []mcp.ToolOption, handler server.ToolHandlerFunc) {
	opts := append([]mcp.ToolOption{mcp.WithDescription(description)}, schemaOpts...)
	s.mcp.AddTool(mcp.NewTool(name, opts...), handler)
}

// decodeArgs round-trips the call's raw argument map through JSON into a
// typed parameter struct, insulating handlers from the mcp-go request
// shape.
func decodeArgs(req mcp.CallToolRequest, out any) error {
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return fmt.Errorf("marshal tool arguments: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode tool arguments: %w", err)
	}
	return nil
}

// resultJSON renders v as the tool's JSON text result.
func resultJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func resultError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}
