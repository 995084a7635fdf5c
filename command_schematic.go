package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

type schematicCommand struct {
	store *SchematicStore
}

func (c *schematicCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "schematic",
		Description: "Manage the server's schematic files",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List schematic files",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "delete",
				Description: "Delete a schematic file",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "file_name",
						Description: "Schematic file to delete",
						Required:    true,
					},
				},
			},
		},
	}
}

func (c *schematicCommand) Permissions() *int64 { return nil }

func (c *schematicCommand) Handle(_ context.Context, i *discordgo.Interaction) *discordgo.InteractionResponse {
	sub, opts := subcommand(i)
	switch sub {
	case "list":
		return c.list()
	case "delete":
		name, _ := opts.String("file_name")
		return c.delete(name)
	}
	return ephemeral(messageResponse(fmt.Sprintf("Unknown subcommand %q.", sub)))
}

func (c *schematicCommand) list() *discordgo.InteractionResponse {
	files, err := c.store.List()
	if err != nil {
		return errorResponse("Could not list schematics", err)
	}

	desc := "No schematics on the server."
	if len(files) > 0 {
		lines := make([]string, len(files))
		for i, f := range files {
			lines[i] = fmt.Sprintf("`%s` (%s, %s)", f.Name, humanSize(f.Size), f.ModTime.Format("2006-01-02 15:04"))
		}
		desc = truncateRunes(strings.Join(lines, "\n"), 4000)
	}
	return embedResponse(&discordgo.MessageEmbed{
		Title:       fmt.Sprintf("📐 Schematics (%d)", len(files)),
		Description: desc,
		Color:       colorInfo,
	})
}

func (c *schematicCommand) delete(name string) *discordgo.InteractionResponse {
	err := c.store.Delete(name)
	switch {
	case errors.Is(err, ErrSchematicNotFound):
		return ephemeral(messageResponse(fmt.Sprintf("No schematic named `%s`.", name)))
	case errors.Is(err, ErrInvalidSchematicName):
		return ephemeral(messageResponse(fmt.Sprintf("`%s` is not a valid schematic file name.", name)))
	case err != nil:
		return errorResponse("Could not delete schematic", err)
	}
	return messageResponse(fmt.Sprintf("🗑️ Deleted `%s`.", name))
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}
