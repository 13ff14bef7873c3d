package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mempirate/docscrape/log"
	"github.com/mempirate/docscrape/slack"
	"github.com/mempirate/docscrape/store"
)

func newSlackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slack",
		Short: "Run the Slack bot, scraping sites requested with /scrape or a mention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.SlackAppToken == "" || cfg.SlackBotToken == "" {
				return errors.New("SLACK_APP_TOKEN and SLACK_BOT_TOKEN must be set")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return runSlack(cmd.Context())
		},
	}
}

func runSlack(ctx context.Context) error {
	logger := log.NewLogger("main")
	logger.Info().Str("data_dir", cfg.DataDir).Msg("Using data directory")

	handler := slack.NewSlackHandler(cfg.SlackAppToken, cfg.SlackBotToken)
	commands := handler.SubscribeCommands()
	s := newScraper(cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- handler.Start(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case cmd := <-commands:
			outputDir := filepath.Join(cfg.DataDir, cmd.URL.Host)
			reply(handler, cmd, fmt.Sprintf(slack.ReplyStarted, cmd.URL))

			report, err := s.Run(ctx, cmd.URL.String(), outputDir)
			if err != nil {
				logger.Error().Err(err).Str("url", cmd.URL.String()).Msg("Scrape failed")
				reply(handler, cmd, fmt.Sprintf("Failed to scrape %s: %s", cmd.URL, err))
				continue
			}

			summary := report.Summary()
			if files, err := store.NewFileStore(outputDir).List(); err == nil {
				summary += fmt.Sprintf(" (%d files in %s)", len(files), outputDir)
			}
			reply(handler, cmd, summary)
		}
	}
}

// reply answers in the request's thread, or privately for slash commands.
func reply(handler *slack.SlackHandler, cmd slack.Command, text string) {
	var err error
	if cmd.ThreadTS != "" {
		err = handler.PostMessage(cmd.ChannelID, &cmd.ThreadTS, text)
	} else {
		err = handler.PostEphemeral(cmd.ChannelID, cmd.UserID, text)
	}

	if err != nil {
		logger := log.NewLogger("main")
		logger.Error().Err(err).Str("channel", cmd.ChannelID).Msg("Failed to reply on Slack")
	}
}
