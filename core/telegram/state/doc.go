// Package state keeps short-lived per-chat conversation sessions for Telegram bots.
// It is domain-agnostic: the session payload is a type parameter.
package state
