package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "mc-discord-bridge",
		Short: "Bridge a Discord channel with a Minecraft server console",
		Long: `mc-discord-bridge relays chat between a Discord channel and a Minecraft server,
announces logins and server start/stop, and serves slash commands over RCON.

Runs until interrupted (SIGINT/SIGTERM).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runBridge(ctx, cfg)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $CONFIG_PATH or ./config.yaml)")

	root.AddCommand(newCommandsCmd(&configPath), newVersionCmd())
	return root
}

func newCommandsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commands",
		Short: "Inspect or clean up the bot's slash commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the built-in slash commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var defs []*discordgo.ApplicationCommand
			for _, c := range builtinCommands(commandDeps{}) {
				defs = append(defs, c.Definition())
			}
			printDefinitions(cmd.OutOrStdout(), defs)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete every slash command the bot has registered",
		Long: `Delete every slash command the bot has registered in the configured guild
(or globally when no guild is set). Useful after a crash left stale commands behind.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			dc, err := NewDiscordChannel(cfg.Discord, newLogger(cfg.Log).Named("discord"))
			if err != nil {
				return err
			}
			if err := dc.Open(); err != nil {
				return err
			}
			defer dc.Close()

			if err := dc.DeleteCommands(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "slash commands deleted")
			return nil
		},
	})
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mc-discord-bridge %s\n", version)
		},
	}
}

// printDefinitions writes one line per command, or per subcommand when the
// command has subcommands.
func printDefinitions(w io.Writer, defs []*discordgo.ApplicationCommand) {
	for _, def := range defs {
		printed := false
		for _, opt := range def.Options {
			if opt.Type != discordgo.ApplicationCommandOptionSubCommand {
				continue
			}
			fmt.Fprintf(w, "/%s %s%s: %s\n", def.Name, opt.Name, optionUsage(opt.Options), opt.Description)
			printed = true
		}
		if !printed {
			fmt.Fprintf(w, "/%s%s: %s\n", def.Name, optionUsage(def.Options), def.Description)
		}
	}
}

func optionUsage(opts []*discordgo.ApplicationCommandOption) string {
	var s string
	for _, o := range opts {
		if o.Type == discordgo.ApplicationCommandOptionSubCommand {
			continue
		}
		s += " <" + o.Name + ">"
	}
	return s
}
