package command

import (
	"context"
	"sort"
	"strings"

	"katu-bot/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

const infoText = "• Los contadores se resetean automáticamente a las 12:00 AM UTC\n" +
	"• Solo se cuentan mensajes de usuarios (no bots)\n" +
	"• Datos separados por servidor\n" +
	"• Bot activo 24/7"

// helpOrder lists commands in the order the help embed shows them.
var helpOrder = []string{"ranking", "mystats", "stats", "resetchat", "aistats", "help", "setlog", "removelog"}

// HelpCommand lists the registered commands.
type HelpCommand struct {
	deps     Deps
	registry *cmd.Registry
}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Mostrar esta ayuda" }
func (c *HelpCommand) Category() string    { return categoryUsers }
func (c *HelpCommand) Usage() string       { return "help" }
func (c *HelpCommand) FailureMessage() string {
	return "❌ Error al mostrar la ayuda. Inténtalo más tarde."
}

func (c *HelpCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	mc, err := contextOf(inv)
	if err != nil {
		return err
	}
	embed := newEmbed("🤖 Comandos de Katu Bot", "Bot contador de mensajes diarios con sistema de ranking", mc.Now)
	embed.Fields = append(c.commandFields(), &discordgo.MessageEmbedField{Name: "📋 Información", Value: infoText})
	return mc.Out.ReplyEmbed(ctx, embed)
}

func (c *HelpCommand) commandFields() []*discordgo.MessageEmbedField {
	lines := map[string][]string{}
	for _, e := range Catalog(c.registry) {
		line := "`" + c.deps.Prefix + e.Usage + "`"
		for _, alias := range e.Aliases {
			line += " o `" + c.deps.Prefix + alias + "`"
		}
		lines[e.Category] = append(lines[e.Category], line+" - "+e.Description)
	}

	var fields []*discordgo.MessageEmbedField
	for _, category := range Categories {
		if len(lines[category]) == 0 {
			continue
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: category, Value: strings.Join(lines[category], "\n")})
	}
	return fields
}

// Entry describes one registered command for help and docs output.
type Entry struct {
	Name        string
	Usage       string
	Aliases     []string
	Category    string
	Description string
}

// Categories in display order.
var Categories = []string{categoryUsers, categoryAdmins}

// Catalog lists the described commands of r in help order.
func Catalog(r *cmd.Registry) []Entry {
	commands := r.GetAll()
	sort.SliceStable(commands, func(i, j int) bool {
		return helpPosition(commands[i].Name()) < helpPosition(commands[j].Name())
	})

	var out []Entry
	for _, command := range commands {
		d, ok := cmd.Root(command).(Described)
		if !ok {
			continue
		}
		e := Entry{
			Name:        command.Name(),
			Usage:       d.Usage(),
			Category:    d.Category(),
			Description: command.Description(),
		}
		if a, ok := cmd.Root(command).(cmd.Aliased); ok {
			e.Aliases = a.Aliases()
		}
		out = append(out, e)
	}
	return out
}

func helpPosition(name string) int {
	for i, n := range helpOrder {
		if n == name {
			return i
		}
	}
	return len(helpOrder)
}
