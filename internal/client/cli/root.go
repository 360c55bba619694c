package cli

import (
	"github.com/spf13/cobra"
)

// RootCommand builds the bookclub command tree
func (c *Cli) RootCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookclub",
		Short: "Reading club client",
		Long: `Bookclub keeps books, reviews, communities, events and reading progress
in sync with the club server. Every command reads the latest server state
and falls back to the local cache when the server is unreachable.

Password priority (highest to lowest):
  1. BOOKCLUB_PASSWORD environment variable
  2. --password-file (file path)
  3. --password (command line)
  4. Interactive prompt (fallback)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd.Context())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.opts.ConfigPath, "config", "", "Path to YAML config file")
	flags.StringVar(&c.opts.ServerURL, "server", "", "Server URL (overrides config)")
	flags.StringVar(&c.opts.DBPath, "db", "", "Path to local database (overrides config)")
	flags.StringVar(&c.opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flags.StringVar(&c.opts.Password, "password", "", "Password (not recommended, use env var or file)")
	flags.StringVar(&c.opts.PasswordFile, "password-file", "", "Path to file containing password")
	flags.DurationVar(&c.opts.SyncWait, "sync-wait", defaultSyncWait, "How long to wait for the server before using cached data")

	cmd.AddCommand(
		c.registerCommand(),
		c.loginCommand(),
		c.logoutCommand(),
		c.statusCommand(),
		c.livrosCommand(),
		c.reviewsCommand(),
		c.comunidadesCommand(),
		c.eventosCommand(),
		c.citacoesCommand(),
		c.favoritesCommand(),
		c.progressCommand(),
		c.stickersCommand(),
	)

	// help и --version печатаются через тот же вывод, что и команды
	cmd.SetOut(c.io)

	return cmd
}
