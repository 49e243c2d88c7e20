// Package docs renders the command reference from the command registry.
package docs

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/template"

	"katu-bot/internal/command"
	v "katu-bot/internal/version"
	"katu-bot/pkg/cmd"
)

// DefaultTemplate is used when no README template is supplied.
const DefaultTemplate = `# {{.AppName}}

Daily message counter with rankings and a conversational assistant for Discord.

## Commands

All commands start with ` + "`{{.Prefix}}`" + `.

{{.CommandSections}}`

// CommandSections renders one markdown section per category.
func CommandSections(registry *cmd.Registry, prefix string) string {
	byCategory := map[string][]command.Entry{}
	for _, e := range command.Catalog(registry) {
		byCategory[e.Category] = append(byCategory[e.Category], e)
	}

	var buf bytes.Buffer
	for _, category := range command.Categories {
		entries := byCategory[category]
		if len(entries) == 0 {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(&buf, "### %s\n\n", category)
		for _, e := range entries {
			names := []string{"`" + prefix + e.Usage + "`"}
			for _, alias := range e.Aliases {
				names = append(names, "`"+prefix+alias+"`")
			}
			fmt.Fprintf(&buf, "- **%s**: %s\n", strings.Join(names, ", "), e.Description)
		}
	}
	return buf.String()
}

// Render executes tmpl with the command sections and writes the result to w.
// An empty tmpl falls back to DefaultTemplate.
func Render(w io.Writer, tmpl string, registry *cmd.Registry, prefix string) error {
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	t, err := template.New("readme").Parse(tmpl)
	if err != nil {
		return fmt.Errorf("parse readme template: %w", err)
	}
	data := struct {
		AppName         string
		Version         string
		Prefix          string
		CommandSections string
	}{
		AppName:         v.AppName,
		Version:         v.Version,
		Prefix:          prefix,
		CommandSections: CommandSections(registry, prefix),
	}
	return t.Execute(w, data)
}
