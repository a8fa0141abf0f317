// Package mcptools exposes the reminder store and sweeps as MCP tools over stdio.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/m3rciful/sroki/core/buildinfo"
	"github.com/m3rciful/sroki/core/logger"
	"github.com/m3rciful/sroki/internal/reminder"
	"github.com/m3rciful/sroki/internal/sweep"
)

// Sweeper runs sweep cycles on demand.
type Sweeper interface {
	RunDue(ctx context.Context) (sweep.Result, error)
	RunLookahead(ctx context.Context) (sweep.Result, error)
}

// Deps holds what the tools operate on.
type Deps struct {
	Store reminder.Store
	// Sweeper is optional; without it run_sweep is not registered.
	Sweeper  Sweeper
	Location *time.Location
	Now      func() time.Time
}

func (d Deps) today() reminder.Date {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	return reminder.Today(now(), loc)
}

// NewServer creates the MCP server with the reminder tools registered.
func NewServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"sroki",
		buildinfo.Version,
		server.WithToolCapabilities(false),
		server.WithInstructions("sroki: reminders with due dates, delivered to a Telegram channel."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_reminders",
			mcp.WithDescription("List stored reminders in insertion order, one page at a time."),
			mcp.WithNumber("page", mcp.Description("1-based page number (default 1)")),
			mcp.WithNumber("size", mcp.Description("Page size (default 20)")),
		),
		listReminders(deps),
	)

	s.AddTool(
		mcp.NewTool("add_reminder",
			mcp.WithDescription("Store a one-time reminder for a chat."),
			mcp.WithNumber("chat_id", mcp.Description("Owning Telegram chat id"), mcp.Required()),
			mcp.WithString("text", mcp.Description("Reminder text"), mcp.Required()),
			mcp.WithString("date", mcp.Description("Due date as DD.MM.YYYY"), mcp.Required()),
		),
		addReminder(deps),
	)

	s.AddTool(
		mcp.NewTool("due_reminders",
			mcp.WithDescription("Reminders due today or earlier; with window_days, those due in the next window_days instead."),
			mcp.WithNumber("window_days", mcp.Description("Look ahead this many days (default 0: overdue only)")),
		),
		dueReminders(deps),
	)

	if deps.Sweeper != nil {
		s.AddTool(
			mcp.NewTool("run_sweep",
				mcp.WithDescription("Run one sweep now and deliver notices to the channel."),
				mcp.WithString("kind", mcp.Description("due or lookahead"), mcp.Required(), mcp.Enum(string(sweep.KindDue), string(sweep.KindLookahead))),
			),
			runSweep(deps),
		)
	}

	return s
}

// Serve runs the stdio transport until ctx is cancelled or stdin closes.
func Serve(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	logger.Info(ctx, "mcp", "serve", slog.String("status", "ok"), slog.String("transport", "stdio"))
	return server.NewStdioServer(s).Listen(ctx, in, out)
}

func listReminders(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		page := req.GetInt("page", 1)
		size := req.GetInt("size", reminder.DefaultPageSize)
		items, err := deps.Store.ListPage(ctx, page, size)
		if err != nil {
			return toolError(fmt.Sprintf("list failed: %v", err)), nil
		}
		return toolJSON(items)
	}
}

func addReminder(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		chatID, err := req.RequireFloat("chat_id")
		if err != nil {
			return toolError("chat_id is required"), nil
		}
		text, err := req.RequireString("text")
		if err != nil {
			return toolError("text is required"), nil
		}
		raw, err := req.RequireString("date")
		if err != nil {
			return toolError("date is required"), nil
		}
		due, err := reminder.ParseDate(raw)
		if err != nil {
			return toolError(err.Error()), nil
		}
		r, err := reminder.New(int64(chatID), text, due)
		if err != nil {
			return toolError(err.Error()), nil
		}
		saved, err := deps.Store.Insert(ctx, r)
		if err != nil {
			return toolError(fmt.Sprintf("insert failed: %v", err)), nil
		}
		logger.Info(ctx, "mcp", "add_reminder",
			slog.String("status", "ok"),
			slog.Int64("id", saved.ID),
			slog.Int64("chat_id", saved.ChatID),
		)
		return toolJSON(saved)
	}
}

func dueReminders(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		today := deps.today()
		window := req.GetInt("window_days", 0)
		var (
			items []reminder.Reminder
			err   error
		)
		if window > 0 {
			items, err = deps.Store.DueWithinWindow(ctx, today, time.Duration(window)*24*time.Hour)
		} else {
			items, err = deps.Store.DueOnOrBefore(ctx, today)
		}
		if err != nil {
			return toolError(fmt.Sprintf("query failed: %v", err)), nil
		}
		return toolJSON(items)
	}
}

func runSweep(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		kind, err := req.RequireString("kind")
		if err != nil {
			return toolError("kind is required"), nil
		}
		var res sweep.Result
		switch sweep.Kind(kind) {
		case sweep.KindDue:
			res, err = deps.Sweeper.RunDue(ctx)
		case sweep.KindLookahead:
			res, err = deps.Sweeper.RunLookahead(ctx)
		default:
			return toolError(fmt.Sprintf("unknown kind %q", kind)), nil
		}
		if err != nil {
			return toolError(fmt.Sprintf("sweep failed: %v", err)), nil
		}
		return toolJSON(map[string]any{
			"kind":      res.Kind,
			"run_id":    res.RunID,
			"found":     res.Found,
			"delivered": res.Delivered,
			"failed":    res.Failed,
			"deleted":   res.Deleted,
			"skipped":   res.Skipped,
		})
	}
}

func toolJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return toolError(fmt.Sprintf("encode: %v", err)), nil
	}
	return toolText(string(b)), nil
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
