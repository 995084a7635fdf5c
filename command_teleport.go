package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

type teleportPointCommand struct {
	store *TeleportStore
}

func dimensionOption() *discordgo.ApplicationCommandOption {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, len(Dimensions))
	for i, d := range Dimensions {
		choices[i] = &discordgo.ApplicationCommandOptionChoice{Name: string(d), Value: string(d)}
	}
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "dimension",
		Description: "Dimension of the teleport point",
		Required:    true,
		Choices:     choices,
	}
}

func nameOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "name",
		Description: "Teleport point name",
		Required:    true,
	}
}

func axisOption(axis string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        axis,
		Description: strings.ToUpper(axis) + " coordinate",
		Required:    true,
	}
}

func (c *teleportPointCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "teleportpoint",
		Description: "Manage the teleport points listed in game",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List teleport points",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Add or move a teleport point",
				Options: []*discordgo.ApplicationCommandOption{
					dimensionOption(), nameOption(), axisOption("x"), axisOption("y"), axisOption("z"),
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove a teleport point",
				Options:     []*discordgo.ApplicationCommandOption{dimensionOption(), nameOption()},
			},
		},
	}
}

func (c *teleportPointCommand) Permissions() *int64 { return nil }

func (c *teleportPointCommand) Handle(_ context.Context, i *discordgo.Interaction) *discordgo.InteractionResponse {
	sub, opts := subcommand(i)
	switch sub {
	case "list":
		return c.list()
	case "add":
		return c.add(opts)
	case "remove":
		return c.remove(opts)
	}
	return ephemeral(messageResponse(fmt.Sprintf("Unknown subcommand %q.", sub)))
}

func (c *teleportPointCommand) list() *discordgo.InteractionResponse {
	points := c.store.Read()

	fields := make([]*discordgo.MessageEmbedField, 0, len(Dimensions))
	for _, d := range Dimensions {
		value := "-"
		if names := points.Names(d); len(names) > 0 {
			lines := make([]string, len(names))
			for i, name := range names {
				lines[i] = fmt.Sprintf("`%s`: %s", name, points[d][name].Coordinate)
			}
			value = truncateRunes(strings.Join(lines, "\n"), 1000)
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: string(d), Value: value})
	}
	return embedResponse(&discordgo.MessageEmbed{
		Title:  "📍 Teleport points",
		Color:  colorInfo,
		Fields: fields,
	})
}

func (c *teleportPointCommand) add(opts commandOptions) *discordgo.InteractionResponse {
	dim, name, ok := pointTarget(opts)
	if !ok {
		return ephemeral(messageResponse("Both `dimension` and `name` are required."))
	}
	var coord Coordinate
	for n, axis := range []string{"x", "y", "z"} {
		v, ok := opts.Int(axis)
		if !ok {
			return ephemeral(messageResponse(fmt.Sprintf("`%s` must be an integer.", axis)))
		}
		coord[n] = v
	}

	inserted, err := c.store.Add(dim, name, coord)
	verb := "Updated"
	if inserted {
		verb = "Added"
	}
	msg := fmt.Sprintf("📍 %s `%s` in %s at %s.", verb, name, dim, coord)
	switch {
	case errors.Is(err, ErrPublish):
		return messageResponse(msg + "\n" + publishWarning(err))
	case errors.Is(err, ErrUnknownDimension):
		return ephemeral(messageResponse(fmt.Sprintf("Unknown dimension `%s`.", dim)))
	case err != nil:
		return errorResponse("Could not save teleport point", err)
	}
	return messageResponse(msg)
}

func (c *teleportPointCommand) remove(opts commandOptions) *discordgo.InteractionResponse {
	dim, name, ok := pointTarget(opts)
	if !ok {
		return ephemeral(messageResponse("Both `dimension` and `name` are required."))
	}

	err := c.store.Remove(dim, name)
	msg := fmt.Sprintf("🗑️ Removed `%s` from %s.", name, dim)
	switch {
	case errors.Is(err, ErrPointNotFound):
		return ephemeral(messageResponse(fmt.Sprintf("No teleport point `%s` in %s.", name, dim)))
	case errors.Is(err, ErrUnknownDimension):
		return ephemeral(messageResponse(fmt.Sprintf("Unknown dimension `%s`.", dim)))
	case errors.Is(err, ErrPublish):
		return messageResponse(msg + "\n" + publishWarning(err))
	case err != nil:
		return errorResponse("Could not remove teleport point", err)
	}
	return messageResponse(msg)
}

func pointTarget(opts commandOptions) (Dimension, string, bool) {
	dim, ok := opts.String("dimension")
	if !ok {
		return "", "", false
	}
	name, ok := opts.String("name")
	if !ok || strings.TrimSpace(name) == "" {
		return "", "", false
	}
	return Dimension(dim), strings.TrimSpace(name), true
}

func publishWarning(err error) string {
	if errors.Is(err, ErrNotConnected) {
		return "⚠️ Saved, but the server is offline; the in-game list updates on the next reload."
	}
	return "⚠️ Saved, but the in-game list could not be refreshed: " + err.Error()
}
