// Package channelcheck verifies that a bot's stored channel credential is
// accepted by the channel's API, without sending any messages.
package channelcheck

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/mymmrac/telego"
	"github.com/slack-go/slack"

	"github.com/nextlevelbuilder/keyproxy/internal/secrets"
)

var (
	ErrUnsupportedChannel = errors.New("channelcheck: unsupported channel")
	ErrMissingSecret      = errors.New("channelcheck: credential not set")
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 10 * time.Second

// CheckFunc authenticates credential against a channel API and returns the
// account name the credential belongs to.
type CheckFunc func(ctx context.Context, credential string) (string, error)

// Result describes a successful verification.
type Result struct {
	Channel string
	Secret  string
	Account string
}

// Checker reads credentials from the secret store and runs channel checks.
type Checker struct {
	secrets *secrets.Store
	checks  map[string]CheckFunc
	timeout time.Duration
}

// Option configures a Checker.
type Option func(*Checker)

// WithCheck registers or replaces the check for channel.
func WithCheck(channel string, fn CheckFunc) Option {
	return func(c *Checker) { c.checks[channel] = fn }
}

// WithTelegramAPI points the telegram check at a different Bot API server.
func WithTelegramAPI(url string) Option {
	return WithCheck("telegram", telegramCheck(telego.WithAPIServer(url)))
}

// WithSlackAPI points the slack check at a different Web API base URL.
func WithSlackAPI(url string) Option {
	return WithCheck("slack", slackCheck(slack.OptionAPIURL(url)))
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) { c.timeout = d }
}

// New creates a Checker with the telegram, slack and discord checks.
func New(sec *secrets.Store, opts ...Option) *Checker {
	c := &Checker{
		secrets: sec,
		checks: map[string]CheckFunc{
			"telegram": telegramCheck(),
			"slack":    slackCheck(),
			"discord":  discordCheck,
		},
		timeout: DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Channels returns the supported channel ids, sorted.
func (c *Checker) Channels() []string {
	out := make([]string, 0, len(c.checks))
	for ch := range c.checks {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// DefaultSecretName is the conventional secret name for a channel's token,
// e.g. TELEGRAM_BOT_TOKEN.
func DefaultSecretName(channel string) string {
	return strings.ToUpper(channel) + "_BOT_TOKEN"
}

// Verify reads secretName (or the channel default when empty) for botID and
// checks the channel API with it.
func (c *Checker) Verify(ctx context.Context, botID, channel, secretName string) (*Result, error) {
	check, ok := c.checks[channel]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedChannel, channel)
	}
	if secretName == "" {
		secretName = DefaultSecretName(channel)
	}

	credential, found, err := c.secrets.Read(botID, secretName)
	if err != nil {
		return nil, err
	}
	if !found || credential == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingSecret, secretName)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	account, err := check(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("%s rejected credential %s: %w", channel, secretName, err)
	}
	return &Result{Channel: channel, Secret: secretName, Account: account}, nil
}

func telegramCheck(opts ...telego.BotOption) CheckFunc {
	return func(ctx context.Context, token string) (string, error) {
		all := append([]telego.BotOption{telego.WithDiscardLogger()}, opts...)
		bot, err := telego.NewBot(token, all...)
		if err != nil {
			return "", err
		}
		me, err := bot.GetMe(ctx)
		if err != nil {
			return "", err
		}
		return "@" + me.Username, nil
	}
}

func slackCheck(opts ...slack.Option) CheckFunc {
	return func(ctx context.Context, token string) (string, error) {
		resp, err := slack.New(token, opts...).AuthTestContext(ctx)
		if err != nil {
			return "", err
		}
		return resp.User + "@" + resp.Team, nil
	}
}

func discordCheck(ctx context.Context, token string) (string, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return "", err
	}
	u, err := s.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return u.Username, nil
}
