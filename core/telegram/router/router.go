// Package router turns a Registry into the endpoint table telebot dispatches on.
package router

import (
	"context"
	"log/slog"
	"strings"

	"github.com/m3rciful/sroki/core/logger"
	tg "github.com/m3rciful/sroki/core/telegram"
	"github.com/m3rciful/sroki/core/telegram/callbacks"
	"github.com/m3rciful/sroki/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation receives the messages of chats that are mid-dialogue.
type Conversation interface {
	InProgress(chatID int64) bool
	ManagerHandler(c tele.Context) error
}

// Fallbacks answer messages no command or conversation claims. Unknown
// buttons go to the registry's CallbackNotFound instead.
type Fallbacks interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
}

// Options configure Routes.
type Options struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
	Conversation  Conversation
	Fallbacks     Fallbacks
}

// Routes builds one route per registered command plus the callback, text and
// document endpoints.
func Routes(reg *tg.Registry, opts Options) []tg.Route {
	names := reg.CommandNames()
	routes := make([]tg.Route, 0, len(names)+3)
	for _, name := range names {
		cmd, _ := reg.Command(name)
		routes = append(routes, tg.Route{Endpoint: name, Handler: commandHandler(name, cmd, opts)})
	}
	routes = append(routes,
		tg.Route{Endpoint: tele.OnCallback, Handler: callbackHandler(reg)},
		tg.Route{Endpoint: tele.OnText, Handler: textHandler(opts, "text", unknownText)},
		tg.Route{Endpoint: tele.OnDocument, Handler: textHandler(opts, "document", unknownDocument)},
	)
	logger.Info(context.Background(), "tg.wire", "routes",
		slog.String("status", "ok"),
		slog.Int("commands", len(names)),
		slog.Int("callbacks", reg.CallbackCount()),
	)
	return routes
}

func unknownText(f Fallbacks) tele.HandlerFunc     { return f.UnknownText() }
func unknownDocument(f Fallbacks) tele.HandlerFunc { return f.UnknownDocument() }

func inConversation(conv Conversation, c tele.Context) bool {
	if conv == nil {
		return false
	}
	chat := c.Chat()
	return chat != nil && conv.InProgress(chat.ID)
}

func commandHandler(name string, cmd tg.Command, opts Options) tele.HandlerFunc {
	run := cmd.Handler
	if cmd.AdminOnly {
		run = middleware.AdminOnly(opts.AdminID, opts.OnAdminReject)(run)
	}
	label := strings.TrimPrefix(name, "/")
	return func(c tele.Context) error {
		// A command typed mid-conversation is an answer unless it may interrupt.
		if !cmd.Interrupts && inConversation(opts.Conversation, c) {
			return summarize(c, "conversation", opts.Conversation.ManagerHandler, slog.String("command", label))
		}
		return summarize(c, label, run)
	}
}

func callbackHandler(reg *tg.Registry) tele.HandlerFunc {
	return func(c tele.Context) error {
		key, _ := callbacks.Parse(c.Callback())
		h, ok := reg.Callback(key)
		if !ok {
			return summarize(c, "callback.unknown", reg.CallbackNotFound(), slog.String("cb_key", logger.Clip(key, 64)))
		}
		// Stop the client's spinner before the handler does slow work.
		_ = c.Respond()
		return summarize(c, "callback."+key, h)
	}
}

func textHandler(opts Options, kind string, fallback func(Fallbacks) tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if inConversation(opts.Conversation, c) {
			return summarize(c, "conversation", opts.Conversation.ManagerHandler, slog.String("kind", kind))
		}
		if opts.Fallbacks == nil {
			return nil
		}
		return summarize(c, "unknown."+kind, fallback(opts.Fallbacks))
	}
}
