package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keshon/yomiage/internal/app"
	"github.com/keshon/yomiage/internal/playback"
	"github.com/keshon/yomiage/internal/reading"
	"github.com/keshon/yomiage/internal/speaker"
	"github.com/keshon/yomiage/internal/storage"
)

const (
	cliTextChannel  = "cli"
	cliVoiceChannel = "speaker"
)

var (
	sayUser string
	sayNick string
)

var sayCmd = &cobra.Command{
	Use:   "say [text...]",
	Short: "Read text aloud through the local speaker",
	Long: `Say synthesizes text with the guild's dictionary and the user's voice
settings and plays it on the default output device.

With no arguments the text is read from standard input.`,
	RunE: runSay,
}

var tagCmd = &cobra.Command{
	Use:   "tag <name>",
	Short: "Play an audio tag through the local speaker",
	Args:  cobra.ExactArgs(1),
	RunE:  runTag,
}

func init() {
	sayCmd.Flags().StringVarP(&sayUser, "user", "u", "cli", "user whose voice settings are used")
	sayCmd.Flags().StringVar(&sayNick, "nick", "", "display name read before the message")
	rootCmd.AddCommand(sayCmd, tagCmd)
}

func runSay(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}

	return withSpeaker(cmd.Context(), func(ctx context.Context, s *app.Services) error {
		outcome, err := s.Reader.HandleMessage(ctx, reading.Message{
			GuildID:   guildFlag,
			ChannelID: cliTextChannel,
			AuthorID:  sayUser,
			Username:  sayUser,
			Nickname:  sayNick,
			Content:   text,
		})
		if err != nil {
			return err
		}
		logger.Debug("Message read", "outcome", outcome.String())
		return nil
	})
}

func runTag(cmd *cobra.Command, args []string) error {
	return withSpeaker(cmd.Context(), func(ctx context.Context, s *app.Services) error {
		audio, err := s.Tags.Load(guildFlag, args[0])
		if err != nil {
			return err
		}
		outcome, err := s.Reader.PlayClip(ctx, guildFlag, cliTextChannel, audio)
		if err != nil {
			return err
		}
		if outcome == playback.OutcomeFailed {
			return fmt.Errorf("playing tag %q failed", args[0])
		}
		return nil
	})
}

// withSpeaker builds the pipeline over the local speaker, joins it, and
// runs fn. Everything is torn down before it returns.
func withSpeaker(ctx context.Context, fn func(context.Context, *app.Services) error) error {
	dev, err := speaker.OpenDevice()
	if err != nil {
		return err
	}
	table, err := app.LoadPhonetic(cfg.PhoneticDictPath, logger)
	if err != nil {
		return err
	}

	return withStore(ctx, func(store storage.Store) error {
		s := app.New(app.Options{
			Config:    cfg,
			Store:     store,
			Transport: speaker.NewTransport(dev, logger),
			Synth:     app.SynthFactory(cfg),
			Phonetic:  table,
			Logger:    logger,
		})
		pumpCtx, stop := context.WithCancel(ctx)
		defer stop()
		go s.RunEventPump(pumpCtx)
		defer s.Shutdown(context.Background())

		if _, err := s.Reader.Join(ctx, guildFlag, cliTextChannel, cliVoiceChannel, cliVoiceChannel); err != nil {
			return err
		}
		return fn(ctx, s)
	})
}
