package main

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/gorcon/rcon"
)

// Discord rejects message content longer than this many characters.
const discordMessageLimit = 2000

var formattingCodePattern = regexp.MustCompile(`§.`)

type cmdCommand struct {
	console Console
}

func (c *cmdCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "cmd",
		Description: "Run a command on the server console",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "command",
				Description: "Minecraft command, without the leading slash",
				Required:    true,
			},
		},
	}
}

func (c *cmdCommand) Permissions() *int64 {
	perm := int64(discordgo.PermissionManageServer)
	return &perm
}

// Deferred is true: console commands can take up to the RCON deadline, longer
// than Discord waits for an acknowledgement.
func (c *cmdCommand) Deferred() bool { return true }

func (c *cmdCommand) Handle(_ context.Context, i *discordgo.Interaction) *discordgo.InteractionResponse {
	command, _ := optionsOf(i.ApplicationCommandData().Options).String("command")
	command = strings.TrimPrefix(strings.TrimSpace(command), "/")
	if command == "" {
		return ephemeral(messageResponse("Give a command to run, e.g. `/cmd command:list`."))
	}
	if len(command) > rcon.MaxCommandLen {
		return ephemeral(messageResponse(fmt.Sprintf("Commands are limited to %d bytes; this one is %d.",
			rcon.MaxCommandLen, len(command))))
	}

	out, err := c.console.Send(command)
	switch {
	case errors.Is(err, ErrNotConnected):
		return offlineResponse()
	case err != nil:
		return errorResponse("Command failed", err)
	}
	return messageResponse(formatConsoleReply(command, out))
}

// formatConsoleReply renders the command and its output as a code block that
// fits in one Discord message.
func formatConsoleReply(command, out string) string {
	out = strings.TrimSpace(formattingCodePattern.ReplaceAllString(out, ""))
	if out == "" {
		out = "(no output)"
	}
	out = strings.ReplaceAll(out, "```", "`\u200b``")

	head := "```\n> " + truncateRunes(command, 200) + "\n"
	const tail = "\n```"
	budget := discordMessageLimit - len([]rune(head)) - len(tail) - len("...")
	return head + truncateRunes(out, budget) + tail
}
