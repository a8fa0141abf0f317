package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/m3rciful/sroki/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command the bot answers.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands reach the handler only for the configured admin.
	AdminOnly bool
	// Hidden commands are left out of the menu Telegram shows to users.
	Hidden bool
	// Interrupts lets the command run while the chat is mid-conversation.
	// Any other command typed then is handed to the conversation as an answer.
	Interrupts bool
}

// Registry maps command names and callback keys to handlers.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]Command
	callbacks map[string]tele.HandlerFunc
	notFound  tele.HandlerFunc
}

// NewRegistry returns an empty registry. Unknown callbacks get a bare acknowledgement
// until SetCallbackNotFound replaces it.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]Command),
		callbacks: make(map[string]tele.HandlerFunc),
		notFound:  func(c tele.Context) error { return c.Respond() },
	}
}

// RegisterCommand adds name, which must start with a slash.
func (r *Registry) RegisterCommand(name string, cmd Command) error {
	switch {
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		return fmt.Errorf("telegram: command %q must start with /", name)
	case cmd.Handler == nil:
		return fmt.Errorf("telegram: command %s has no handler", name)
	case cmd.Description == "":
		return fmt.Errorf("telegram: command %s has no description", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.commands[name]; dup {
		return fmt.Errorf("telegram: command %s registered twice", name)
	}
	r.commands[name] = cmd
	return nil
}

// Command looks name up, adding the leading slash when it is missing.
func (r *Registry) Command(name string) (Command, bool) {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// CommandNames returns the registered names in sorted order.
func (r *Registry) CommandNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MenuCommands lists commands for the Telegram menu. With public set, hidden
// and admin-only commands are skipped.
func (r *Registry) MenuCommands(public bool) []tele.Command {
	var out []tele.Command
	for _, name := range r.CommandNames() {
		cmd, _ := r.Command(name)
		if public && (cmd.Hidden || cmd.AdminOnly) {
			continue
		}
		out = append(out, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: cmd.Description})
	}
	return out
}

// RegisterCallback binds an inline button key to its handler.
func (r *Registry) RegisterCallback(key string, h tele.HandlerFunc) error {
	if key == "" || h == nil {
		return fmt.Errorf("telegram: invalid callback %q", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.callbacks[key]; dup {
		return fmt.Errorf("telegram: callback %s registered twice", key)
	}
	r.callbacks[key] = h
	return nil
}

// Callback returns the handler bound to key.
func (r *Registry) Callback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// CallbackCount reports how many button keys are bound.
func (r *Registry) CallbackCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.callbacks)
}

// SetCallbackNotFound replaces the handler for buttons nobody registered.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.notFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the handler for unknown buttons.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.notFound
}

// PublishCommands replaces the bot's command menu with the public commands.
func PublishCommands(ctx context.Context, bot *tele.Bot, r *Registry) {
	menu := r.MenuCommands(true)
	if err := bot.SetCommands(menu); err != nil {
		logger.Warn(ctx, "tg.wire", "commands.publish",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Info(ctx, "tg.wire", "commands.publish",
		slog.String("status", "ok"),
		slog.Int("count", len(menu)),
	)
}
