package telegramauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"photoshoot-backend/internal/shared/telemetry"
	"photoshoot-backend/internal/users"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidCode  = errors.New("invalid or expired verification code")
	ErrSendFailed   = errors.New("failed to send verification code")
)

// TokenIssuer mints access tokens; implemented by auth.JWTService.
type TokenIssuer interface {
	GenerateToken(userID string) (string, error)
}

// UserStore is the part of users.Service this package needs.
type UserStore interface {
	FindOrCreate(ctx context.Context, id users.Identity) (users.User, error)
	GetByUsername(ctx context.Context, username string) (users.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (users.User, error)
}

type BotInfo struct {
	Username string `json:"bot_username"`
	Name     string `json:"bot_name"`
	ID       string `json:"bot_id,omitempty"`
}

type AuthResult struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	User        users.User `json:"user"`
}

type Service struct {
	Users    UserStore
	Tokens   TokenIssuer
	Codes    CodeStore
	Bot      Sender
	BotToken string
	CodeTTL  time.Duration
	Info     BotInfo
	now      func() time.Time
}

func NewService(userStore UserStore, tokens TokenIssuer, codes CodeStore, bot Sender, botToken string, codeTTL time.Duration, info BotInfo) *Service {
	if codeTTL <= 0 {
		codeTTL = 5 * time.Minute
	}
	if codes == nil {
		codes = NewLRUCodeStore(codeTTL)
	}
	return &Service{
		Users:    userStore,
		Tokens:   tokens,
		Codes:    codes,
		Bot:      bot,
		BotToken: botToken,
		CodeTTL:  codeTTL,
		Info:     info,
		now:      time.Now,
	}
}

// LoginWidget verifies Login Widget data and signs the user in, creating the
// account on first login.
func (s *Service) LoginWidget(ctx context.Context, fields map[string]string, id users.Identity) (AuthResult, error) {
	if err := CheckWidget(fields, s.BotToken, s.now()); err != nil {
		return AuthResult{}, err
	}
	user, err := s.Users.FindOrCreate(ctx, id)
	if err != nil {
		return AuthResult{}, err
	}
	return s.issue(user)
}

// RequestCode sends a one-time code to a user who has already started the bot.
func (s *Service) RequestCode(ctx context.Context, username string) error {
	key := users.NormalizeUsername(username)
	user, err := s.Users.GetByUsername(ctx, key)
	if errors.Is(err, users.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	code, err := newCode()
	if err != nil {
		return err
	}
	s.Codes.Put(key, code, user.TelegramID)

	text := fmt.Sprintf("🔐 <b>Код для входа на сайт</b>\n\nВаш код: <code>%s</code>\n\n"+
		"Код действителен %d минут.\nНе сообщайте этот код никому!", code, int(s.CodeTTL.Minutes()))
	if s.Bot == nil {
		return ErrSendFailed
	}
	if err := s.Bot.SendMessage(ctx, user.TelegramID, text); err != nil {
		telemetry.Warn("telegramauth.send_code_failed", map[string]any{"user_id": user.ID, "error": err.Error()})
		return ErrSendFailed
	}
	telemetry.Info("telegramauth.code_sent", map[string]any{"user_id": user.ID})
	return nil
}

// VerifyCode consumes a code and signs the user in.
func (s *Service) VerifyCode(ctx context.Context, username, code string) (AuthResult, error) {
	telegramID, ok := s.Codes.Consume(users.NormalizeUsername(username), code)
	if !ok {
		return AuthResult{}, ErrInvalidCode
	}
	user, err := s.Users.GetByTelegramID(ctx, telegramID)
	if errors.Is(err, users.ErrNotFound) {
		return AuthResult{}, ErrUserNotFound
	}
	if err != nil {
		return AuthResult{}, err
	}
	return s.issue(user)
}

func (s *Service) issue(user users.User) (AuthResult, error) {
	token, err := s.Tokens.GenerateToken(user.ID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	return AuthResult{AccessToken: token, TokenType: "bearer", User: user}, nil
}

// UserNotifier sends bot messages to users by account ID.
type UserNotifier struct {
	Users interface {
		GetByID(ctx context.Context, userID string) (users.User, error)
	}
	Bot Sender
}

func (n UserNotifier) Notify(ctx context.Context, userID, text string) error {
	user, err := n.Users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	return n.Bot.SendMessage(ctx, user.TelegramID, text)
}
