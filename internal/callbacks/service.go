package callbacks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Store is the persistence contract for callback registrations. The durable
// mapping is owned by the database; this service only reads and writes it.
type Store interface {
	GetCallbackURL(ctx context.Context, botUsername string) (string, error)
	UpsertCallback(ctx context.Context, botUsername, callbackURL string) error
	DeleteCallback(ctx context.Context, botUsername string) error
}

var ErrInvalidCallbackURL = errors.New("callback url must be absolute http or https")

// Service resolves and maintains the bot → callback URL registry.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(log *slog.Logger, store Store) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		logger: log.With(slog.String("service", "callbacks")),
	}
}

// Resolve returns the callback URL registered for a bot. A missing
// registration is not an error: the bot has opted out of forwarding, and
// callers must treat ok=false as a silent skip.
func (s *Service) Resolve(ctx context.Context, botUsername string) (string, bool, error) {
	botUsername = strings.TrimSpace(botUsername)
	if botUsername == "" {
		return "", false, nil
	}
	callbackURL, err := s.store.GetCallbackURL(ctx, botUsername)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolve callback for %s: %w", botUsername, err)
	}
	return callbackURL, true, nil
}

// Register stores or replaces the callback URL for a bot.
func (s *Service) Register(ctx context.Context, botUsername, callbackURL string) error {
	botUsername = strings.TrimSpace(botUsername)
	callbackURL = strings.TrimSpace(callbackURL)
	if botUsername == "" {
		return fmt.Errorf("bot username is required")
	}
	if err := validateCallbackURL(callbackURL); err != nil {
		return err
	}
	if err := s.store.UpsertCallback(ctx, botUsername, callbackURL); err != nil {
		return fmt.Errorf("register callback for %s: %w", botUsername, err)
	}
	s.logger.Info("callback registered", slog.String("bot", botUsername))
	return nil
}

// Unregister removes a bot's callback registration if present.
func (s *Service) Unregister(ctx context.Context, botUsername string) error {
	botUsername = strings.TrimSpace(botUsername)
	if botUsername == "" {
		return fmt.Errorf("bot username is required")
	}
	if err := s.store.DeleteCallback(ctx, botUsername); err != nil {
		return fmt.Errorf("unregister callback for %s: %w", botUsername, err)
	}
	s.logger.Info("callback unregistered", slog.String("bot", botUsername))
	return nil
}

func validateCallbackURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidCallbackURL
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ErrInvalidCallbackURL
	}
	return nil
}
