// Package tgui holds small Telegram UI helpers: HTML escaping, callback data
// in "scope:action[:payload]" form, inline keyboards and a message builder
// that defaults to HTML with link previews disabled.
package tgui
