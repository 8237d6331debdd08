package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Felps0156/SDR-Agent/internal/booking"
	"github.com/Felps0156/SDR-Agent/internal/logger"
	"github.com/Felps0156/SDR-Agent/internal/models"
	"github.com/Felps0156/SDR-Agent/internal/orchestrator"
)

// ErrNotInitialized is reported by every tool when the backend failed to start.
var ErrNotInitialized = orchestrator.ErrNotInitialized

// maxResultsCap bounds caller supplied result counts.
const maxResultsCap = 250

// Service is the booking API the tools call into.
type Service interface {
	Create(ctx context.Context, req models.BookingRequest) booking.Decision
	Update(ctx context.Context, id string, patch models.EventPatch) booking.Decision
	Delete(ctx context.Context, id string) booking.Decision
	ListUpcoming(ctx context.Context, maxResults int) ([]models.Event, error)
	Search(ctx context.Context, query string, maxResults int) ([]models.Event, error)
	Get(ctx context.Context, id string) (*models.Event, error)
}

// Readiness records whether startup succeeded. The zero value is not ready.
type Readiness struct {
	ready bool
	err   error
}

func Ready() Readiness { return Readiness{ready: true} }

// NotReady keeps the startup error for logging; callers only ever see
// the uniform not-initialized message.
func NotReady(err error) Readiness { return Readiness{err: err} }

// Err is nil when ready.
func (r Readiness) Err() error {
	if r.ready {
		return nil
	}
	if r.err != nil {
		return fmt.Errorf("%w: %v", ErrNotInitialized, r.err)
	}
	return ErrNotInitialized
}

// Handler exposes the booking service as MCP tools.
type Handler struct {
	svc       Service
	readiness Readiness
	format    Formatter
	log       *logger.Logger
}

func New(svc Service, readiness Readiness, format Formatter, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	if svc == nil {
		readiness = NotReady(fmt.Errorf("no booking service"))
	}
	return &Handler{svc: svc, readiness: readiness, format: format, log: log}
}

// NewMCPServer builds a server with every booking tool registered.
func NewMCPServer(h *Handler, version string) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("sdr-agent", version,
		mcpserver.WithToolCapabilities(true),
	)
	h.Register(s)
	return s
}

// Register adds the booking tools to s.
func (h *Handler) Register(s *mcpserver.MCPServer) {
	createTool := mcp.NewTool("create_booking",
		mcp.WithDescription("Book an appointment with a qualified lead. Checks business hours (weekdays 08:00-18:00), "+
			"conflicts with a 15-minute buffer, and asks the operator for confirmation before writing."),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Event title, e.g. 'Ana Souza - Ap 2 quartos'"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start as 'YYYY-MM-DDTHH:MM:SS' or a bare 'HH:MM' for today"),
		),
		mcp.WithString("end",
			mcp.Description("End in the same formats; defaults to one hour after start"),
		),
		mcp.WithString("attendees",
			mcp.Description("Comma-separated attendee email addresses"),
		),
		mcp.WithString("location",
			mcp.Description("Where the appointment takes place"),
		),
		mcp.WithString("description",
			mcp.Description("Notes about the lead and the property"),
		),
		mcp.WithObject("notes",
			mcp.Description("Lead details shown to the operator before confirming, e.g. {\"budget\": \"R$ 450 mil\"}. Not saved on the event"),
		),
	)
	s.AddTool(createTool, h.handleCreate)

	listTool := mcp.NewTool("list_upcoming",
		mcp.WithDescription("List upcoming calendar events ordered by start time"),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of events (default: 10)"),
		),
	)
	s.AddTool(listTool, h.handleList)

	searchTool := mcp.NewTool("search_events",
		mcp.WithDescription("Search upcoming events by free text (name, property, address)"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Text to search for"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of events (default: 10)"),
		),
	)
	s.AddTool(searchTool, h.handleSearch)

	getTool := mcp.NewTool("get_event",
		mcp.WithDescription("Show the details of one event"),
		mcp.WithString("event_id",
			mcp.Required(),
			mcp.Description("The event ID from list_upcoming or search_events"),
		),
	)
	s.AddTool(getTool, h.handleGet)

	updateTool := mcp.NewTool("update_event",
		mcp.WithDescription("Change fields of an existing event. Omitted fields keep their current values."),
		mcp.WithString("event_id",
			mcp.Required(),
			mcp.Description("The event ID to update"),
		),
		mcp.WithString("summary", mcp.Description("New title")),
		mcp.WithString("start", mcp.Description("New start; a bare 'HH:MM' keeps the current date")),
		mcp.WithString("end", mcp.Description("New end; a bare 'HH:MM' uses the start date")),
		mcp.WithString("attendees", mcp.Description("Comma-separated emails; replaces the attendee list")),
		mcp.WithString("location", mcp.Description("New location")),
		mcp.WithString("description", mcp.Description("New description")),
	)
	s.AddTool(updateTool, h.handleUpdate)

	deleteTool := mcp.NewTool("delete_event",
		mcp.WithDescription("Permanently delete an event. Find the event_id with search_events first."),
		mcp.WithString("event_id",
			mcp.Required(),
			mcp.Description("The event ID to delete"),
		),
	)
	s.AddTool(deleteTool, h.handleDelete)
}

// notReady returns a tool error when startup failed.
func (h *Handler) notReady(tool string) *mcp.CallToolResult {
	err := h.readiness.Err()
	if err == nil {
		return nil
	}
	h.log.Warn("Tool called before initialization", logger.Action(tool), logger.Error(err))
	return mcp.NewToolResultError(FormatError(ErrNotInitialized))
}

func (h *Handler) decisionResult(op booking.Operation, summary string, d booking.Decision) *mcp.CallToolResult {
	text := h.format.Decision(op, summary, d)
	switch d.Outcome {
	case booking.InvalidFormat, booking.Failed, booking.NotInitialized:
		return mcp.NewToolResultError(text)
	}
	return mcp.NewToolResultText(text)
}

func (h *Handler) handleCreate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := h.notReady("create_booking"); res != nil {
		return res, nil
	}
	args := request.GetArguments()

	summary, _ := args["summary"].(string)
	if strings.TrimSpace(summary) == "" {
		return mcp.NewToolResultError("summary is required"), nil
	}
	start, _ := args["start"].(string)
	if strings.TrimSpace(start) == "" {
		return mcp.NewToolResultError("start is required"), nil
	}

	req := models.BookingRequest{
		Summary:   summary,
		Start:     start,
		Attendees: EmailList(args["attendees"]),
	}
	if end, ok := args["end"].(string); ok {
		req.End = end
	}
	if loc, ok := args["location"].(string); ok {
		req.Location = loc
	}
	if desc, ok := args["description"].(string); ok {
		req.Description = desc
	}
	req.Extra = NoteMap(args["notes"])

	d := h.svc.Create(ctx, req)
	return h.decisionResult(booking.OpCreate, strings.TrimSpace(summary), d), nil
}

func (h *Handler) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := h.notReady("list_upcoming"); res != nil {
		return res, nil
	}
	events, err := h.svc.ListUpcoming(ctx, maxResults(request.GetArguments()))
	if err != nil {
		return mcp.NewToolResultError(FormatError(err)), nil
	}
	return mcp.NewToolResultText(h.format.Events("Upcoming events", events)), nil
}

func (h *Handler) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := h.notReady("search_events"); res != nil {
		return res, nil
	}
	args := request.GetArguments()
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	events, err := h.svc.Search(ctx, query, maxResults(args))
	if err != nil {
		return mcp.NewToolResultError(FormatError(err)), nil
	}
	if len(events) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No upcoming events found for %q.", query)), nil
	}
	return mcp.NewToolResultText(h.format.Events(fmt.Sprintf("Events matching %q", query), events)), nil
}

func (h *Handler) handleGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := h.notReady("get_event"); res != nil {
		return res, nil
	}
	id, _ := request.GetArguments()["event_id"].(string)
	if strings.TrimSpace(id) == "" {
		return mcp.NewToolResultError("event_id is required"), nil
	}

	ev, err := h.svc.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(FormatError(err)), nil
	}
	return mcp.NewToolResultText(h.format.Event(ev)), nil
}

func (h *Handler) handleUpdate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := h.notReady("update_event"); res != nil {
		return res, nil
	}
	args := request.GetArguments()
	id, _ := args["event_id"].(string)
	if strings.TrimSpace(id) == "" {
		return mcp.NewToolResultError("event_id is required"), nil
	}

	var patch models.EventPatch
	for key, field := range map[string]**string{
		"summary":     &patch.Summary,
		"start":       &patch.Start,
		"end":         &patch.End,
		"location":    &patch.Location,
		"description": &patch.Description,
	} {
		if v, ok := args[key].(string); ok {
			*field = models.String(v)
		}
	}
	// null means absent; an empty string or list clears the attendees.
	switch args["attendees"].(type) {
	case string, []interface{}, []string:
		patch.Attendees = models.Strings(EmailList(args["attendees"]))
	}

	d := h.svc.Update(ctx, id, patch)
	summary := ""
	if patch.Summary != nil {
		summary = *patch.Summary
	}
	return h.decisionResult(booking.OpUpdate, summary, d), nil
}

func (h *Handler) handleDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := h.notReady("delete_event"); res != nil {
		return res, nil
	}
	id, _ := request.GetArguments()["event_id"].(string)
	if strings.TrimSpace(id) == "" {
		return mcp.NewToolResultError("event_id is required"), nil
	}

	d := h.svc.Delete(ctx, id)
	return h.decisionResult(booking.OpDelete, "", d), nil
}

// maxResults reads max_results, clamped to [1, maxResultsCap]; 0 means default.
func maxResults(args map[string]interface{}) int {
	v, ok := args["max_results"].(float64)
	if !ok || v < 1 {
		return 0
	}
	if v > maxResultsCap {
		return maxResultsCap
	}
	return int(v)
}

// EmailList accepts a comma-separated string or a JSON array of strings.
func EmailList(v interface{}) []string {
	var raw []string
	switch val := v.(type) {
	case string:
		raw = strings.Split(val, ",")
	case []interface{}:
		for _, item := range val {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case []string:
		raw = val
	}

	var out []string
	for _, e := range raw {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// NoteMap flattens a JSON object into string notes. Blank keys and null
// values are dropped; nil is returned when nothing is left.
func NoteMap(v interface{}) map[string]string {
	out := make(map[string]string)
	switch val := v.(type) {
	case map[string]interface{}:
		for k, item := range val {
			if item == nil {
				continue
			}
			out[k] = fmt.Sprint(item)
		}
	case map[string]string:
		for k, item := range val {
			out[k] = item
		}
	}
	for k := range out {
		if strings.TrimSpace(k) == "" {
			delete(out, k)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
