// cmd/cli/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/keshon/yomiage/internal/app"
	"github.com/keshon/yomiage/internal/config"
	"github.com/keshon/yomiage/internal/logging"
	"github.com/keshon/yomiage/internal/storage"
)

// localGuild is the guild ID the CLI reads and edits settings under.
const localGuild = "local"

var (
	guildFlag string
	logger    *log.Logger
	cfg       *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "yomiage",
	Short: "Local tools for the yomiage reading bot",
	Long: `yomiage reads text aloud with the same voice pipeline the Discord bot uses.

The CLI plays through the local sound card and edits the same store the bot
reads, so dictionary changes made here apply to the bot on its next start.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger = logging.New(os.Stderr, cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&guildFlag, "guild", "g", localGuild, "guild whose settings and dictionary are used")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// withStore opens the configured store for the duration of fn.
func withStore(ctx context.Context, fn func(storage.Store) error) error {
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}
