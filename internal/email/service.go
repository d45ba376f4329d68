package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jeromwolf/FluxNews/internal/config"
	"github.com/jeromwolf/FluxNews/internal/model"
	"github.com/jeromwolf/FluxNews/internal/repository"
	"github.com/jeromwolf/FluxNews/pkg/logger"
)

// Service sends notification emails over SMTP.
type Service struct {
	cfg    config.EmailConfig
	dialer *gomail.Dialer
	users  repository.UserRepository
	logger *logger.Logger
}

func NewService(cfg config.EmailConfig, users repository.UserRepository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		users:  users,
		logger: log,
	}
}

// SendNotification renders and sends the notification to the user's
// registered address.
func (s *Service) SendNotification(ctx context.Context, userID string, n *model.Notification) error {
	address, err := s.users.Email(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolving email for %s: %w", userID, err)
	}
	return s.Send(ctx, address, n.Title, renderBody(n))
}

// Send delivers one message. The context is checked before dialing;
// gomail itself does not take a context.
func (s *Service) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("sending email to %s: %w", to, err)
	}
	s.logger.Debug("email sent", "to", to, "subject", subject)
	return nil
}

func renderBody(n *model.Notification) string {
	body := fmt.Sprintf("<h2>%s</h2><p>%s</p>", n.Title, n.Message)
	if url, ok := n.Data["article_url"].(string); ok && url != "" {
		body += fmt.Sprintf(`<p><a href="%s">Read the full article</a></p>`, url)
	}
	return body
}
