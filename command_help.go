package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const projectURL = "https://github.com/manamana32321/mc-discord-bridge"

var helpFeatures = []string{
	"Relays chat between this channel and the Minecraft server",
	"Announces server start/stop and player login/logout",
	"Shows server status and online players in the bot's presence",
	"Uploads .schematic/.schem files posted here to the server",
}

type helpCommand struct {
	definitions func() []*discordgo.ApplicationCommand
}

func (c *helpCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "help",
		Description: "Show what this bot does and the available commands",
	}
}

func (c *helpCommand) Permissions() *int64 { return nil }

func (c *helpCommand) Handle(_ context.Context, _ *discordgo.Interaction) *discordgo.InteractionResponse {
	features := make([]string, len(helpFeatures))
	for i, f := range helpFeatures {
		features[i] = "🔹 " + f
	}

	var commands []string
	if c.definitions != nil {
		for _, def := range c.definitions() {
			commands = append(commands, fmt.Sprintf("/%s: %s", def.Name, def.Description))
		}
	}
	if len(commands) == 0 {
		commands = append(commands, "(none registered)")
	}

	return embedResponse(&discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{
			Name: "mc-discord-bridge " + version,
			URL:  projectURL,
		},
		Title:       "ℹ️ Help",
		Description: "Bridges this channel with the Minecraft server console.",
		Color:       colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "✨ Features", Value: strings.Join(features, "\n")},
			{Name: "🔧 Commands", Value: "```\n" + strings.Join(commands, "\n") + "\n```"},
		},
	})
}
