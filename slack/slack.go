// Package slack receives scrape requests from Slack over Socket Mode and posts results back.
package slack

import (
	"context"
	"net/url"
	"regexp"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/mempirate/docscrape/log"
)

// https://stackoverflow.com/a/3809435
const URL_REGEX = `https?:\/\/(www\.)?[-a-zA-Z0-9@:%._\+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b([-a-zA-Z0-9()@:%_\+.~#?&//=]*)`

const (
	ReplyMissingURL = "There doesn't seem to be a URL in your message."
	ReplyStarted    = "Scraping %s, I'll report back when it's done."
	ReplyBusy       = "Too many scrapes are queued right now, please try again later."
)

var urlRegex = regexp.MustCompile(URL_REGEX)

// queueSize bounds the number of requests waiting to be scraped.
const queueSize = 16

// Command is a request to scrape the documentation site at URL.
type Command struct {
	URL       *url.URL
	ChannelID string
	UserID    string
	// ThreadTS is set when the request came from a message, so replies can be threaded.
	ThreadTS string
}

type SlackHandler struct {
	log      zerolog.Logger
	client   *socketmode.Client
	commands chan Command
}

func NewSlackHandler(appToken, botToken string) *SlackHandler {
	api := slack.New(
		botToken,
		slack.OptionAppLevelToken(appToken),
	)

	return &SlackHandler{
		log:      log.NewLogger("slack"),
		client:   socketmode.New(api),
		commands: make(chan Command, queueSize),
	}
}

// SubscribeCommands returns the stream of scrape requests.
func (s *SlackHandler) SubscribeCommands() <-chan Command {
	return s.commands
}

// Start connects to Slack and handles events until ctx is done.
func (s *SlackHandler) Start(ctx context.Context) error {
	go s.handleEvents(ctx)

	if err := s.client.RunContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "socket mode client stopped")
	}

	return nil
}

func (s *SlackHandler) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-s.client.Events:
			if !ok {
				return
			}

			switch evt.Type {
			case socketmode.EventTypeConnecting:
				s.log.Debug().Msg("Connecting to Slack with Socket Mode...")
			case socketmode.EventTypeConnectionError:
				s.log.Warn().Any("data", evt.Data).Msg("Connection failed. Retrying later...")
			case socketmode.EventTypeConnected:
				s.log.Info().Msg("Connected to Slack with Socket Mode")
			case socketmode.EventTypeSlashCommand:
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					s.log.Warn().Msg("Ignored slash command")
					continue
				}

				// Slash commands must be acknowledged within 3 seconds.
				s.client.Ack(*evt.Request)
				s.onSlashCommand(cmd)
			case socketmode.EventTypeEventsAPI:
				apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					s.log.Warn().Msg("Ignored event")
					continue
				}

				s.client.Ack(*evt.Request)
				s.onEvent(apiEvent)
			default:
				s.log.Trace().Str("type", string(evt.Type)).Msg("Ignored event")
			}
		}
	}
}

func (s *SlackHandler) onEvent(event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}

	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		s.onAppMention(ev)
	default:
		s.log.Debug().Str("type", event.InnerEvent.Type).Msg("Unhandled callback event")
	}
}

func (s *SlackHandler) onSlashCommand(cmd slack.SlashCommand) {
	u, ok := ExtractURL(cmd.Text)
	if !ok {
		s.log.Debug().Str("text", cmd.Text).Msg("Ignoring command without URL")
		if err := s.PostEphemeral(cmd.ChannelID, cmd.UserID, ReplyMissingURL); err != nil {
			s.log.Error().Err(err).Msg("Failed to reply")
		}
		return
	}

	if !s.emit(Command{URL: u, ChannelID: cmd.ChannelID, UserID: cmd.UserID}) {
		if err := s.PostEphemeral(cmd.ChannelID, cmd.UserID, ReplyBusy); err != nil {
			s.log.Error().Err(err).Msg("Failed to reply")
		}
	}
}

func (s *SlackHandler) onAppMention(event *slackevents.AppMentionEvent) {
	// Thread ID is determined by the timestamp
	threadTS := event.ThreadTimeStamp
	if threadTS == "" {
		threadTS = event.TimeStamp
	}

	u, ok := ExtractURL(event.Text)
	if !ok {
		s.log.Debug().Str("text", event.Text).Msg("Ignoring mention without URL")
		if err := s.PostMessage(event.Channel, &threadTS, ReplyMissingURL); err != nil {
			s.log.Error().Err(err).Msg("Failed to reply")
		}
		return
	}

	if !s.emit(Command{URL: u, ChannelID: event.Channel, UserID: event.User, ThreadTS: threadTS}) {
		if err := s.PostMessage(event.Channel, &threadTS, ReplyBusy); err != nil {
			s.log.Error().Err(err).Msg("Failed to reply")
		}
	}
}

// emit queues cmd without blocking the event loop. It returns false if the queue is full.
func (s *SlackHandler) emit(cmd Command) bool {
	select {
	case s.commands <- cmd:
		s.log.Info().Str("url", cmd.URL.String()).Str("channel", cmd.ChannelID).Msg("New scrape request")
		return true
	default:
		s.log.Warn().Str("url", cmd.URL.String()).Int("queued", len(s.commands)).Msg("Scrape queue full, rejecting request")
		return false
	}
}

// PostEphemeral posts a message only visible to userID.
func (s *SlackHandler) PostEphemeral(channelID, userID, text string) error {
	_, err := s.client.PostEphemeral(channelID, userID, slack.MsgOptionText(text, false))
	return errors.Wrap(err, "failed to post ephemeral message")
}

// PostMessage posts text to channelID, in the thread threadTS if it is set.
func (s *SlackHandler) PostMessage(channelID string, threadTS *string, text string) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != nil && *threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(*threadTS))
	}

	_, _, err := s.client.PostMessage(channelID, opts...)
	return errors.Wrap(err, "failed to post message")
}

// ExtractURL returns the first http(s) URL in text. Slack's <url|label> link markup is handled.
func ExtractURL(text string) (*url.URL, bool) {
	raw := urlRegex.FindString(text)
	if raw == "" {
		return nil, false
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, false
	}

	return u, true
}
