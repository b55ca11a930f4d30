package router

import (
	"html"
	"sort"
	"strings"

	"blastbot/internal/access"
)

// helpText renders HTML help. Without args it lists the commands visible to
// level; with a command name it shows that command's details.
func (m *CommandManager) helpText(args []string, level access.Level) string {
	m.mu.RLock()
	list := append([]Command(nil), m.list...)
	m.mu.RUnlock()

	if len(args) > 0 {
		name := strings.ToLower(strings.TrimPrefix(args[0], "/"))
		if c, ok := m.lookup(name); ok {
			return helpCommandHTML(*c)
		}
		return "❓ <b>Unknown command</b>\nTry <code>/help</code> for the list."
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Access != list[j].Access {
			return list[i].Access < list[j].Access
		}
		return list[i].Name < list[j].Name
	})

	lines := []string{"📜 <b>Available Commands</b>", ""}
	section := access.Level(-1)
	for _, c := range list {
		if c.Access > level {
			continue
		}
		if c.Access != section {
			section = c.Access
			switch section {
			case access.Sudo:
				lines = append(lines, "", "⚔️ <b>Sudo</b>")
			case access.Owner:
				lines = append(lines, "", "👑 <b>Owner</b>")
			}
		}
		usage := c.Usage
		if usage == "" {
			usage = "/" + c.Name
		}
		line := "• <code>" + html.EscapeString(usage) + "</code>"
		if c.Description != "" {
			line += " - " + html.EscapeString(c.Description)
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func helpCommandHTML(c Command) string {
	lines := []string{"📜 <b>/" + html.EscapeString(c.Name) + "</b>"}
	if c.Description != "" {
		lines = append(lines, html.EscapeString(c.Description))
	}
	switch c.Access {
	case access.Sudo:
		lines = append(lines, "🔒 <i>sudo only</i>")
	case access.Owner:
		lines = append(lines, "🔒 <i>owner only</i>")
	}
	if c.Usage != "" {
		lines = append(lines, "", "<b>Usage</b>", "<code>"+html.EscapeString(c.Usage)+"</code>")
	}
	if len(c.Aliases) > 0 {
		al := make([]string, 0, len(c.Aliases))
		for _, a := range c.Aliases {
			al = append(al, "<code>/"+html.EscapeString(a)+"</code>")
		}
		lines = append(lines, "", "<b>Aliases</b> "+strings.Join(al, ", "))
	}
	return strings.Join(lines, "\n")
}

// HelpText is the command list visible to level, as sent by /help.
func (m *CommandManager) HelpText(level access.Level) string {
	return m.helpText(nil, level)
}
