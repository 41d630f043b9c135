package communication

import (
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"hcasc.cz/dagmar/model"
	"hcasc.cz/dagmar/security"
)

const smtpTimeout = 20 * time.Second

var ErrSMTPNotConfigured = errors.New("smtp is not configured")

// Mailer sends mail through the admin-configured SMTP server.
type Mailer struct {
	options MailerOption
}

type MailerOption struct {
	Host      string
	Port      int
	Username  string
	Password  string
	Security  string // "ssl", "starttls" or "none"
	FromEmail string
	FromName  string
}

// NewMailer builds a Mailer from the stored settings row, decrypting the
// password with the app secret. Missing host or sender means mail is off.
func NewMailer(settings *model.AppSettings, secret []byte) (*Mailer, error) {
	if settings.SMTPHost == nil || *settings.SMTPHost == "" ||
		settings.SMTPFromEmail == nil || *settings.SMTPFromEmail == "" {
		return nil, ErrSMTPNotConfigured
	}
	opt := MailerOption{
		Host:      *settings.SMTPHost,
		Port:      587,
		Security:  "starttls",
		FromEmail: *settings.SMTPFromEmail,
	}
	if settings.SMTPPort != nil {
		opt.Port = *settings.SMTPPort
	}
	if settings.SMTPUsername != nil {
		opt.Username = *settings.SMTPUsername
	}
	if settings.SMTPSecurity != nil && *settings.SMTPSecurity != "" {
		opt.Security = *settings.SMTPSecurity
	}
	if settings.SMTPFromName != nil {
		opt.FromName = *settings.SMTPFromName
	}
	if settings.SMTPPassword != nil && *settings.SMTPPassword != "" {
		password, err := security.DecryptSecret(*settings.SMTPPassword, secret)
		if err != nil {
			return nil, fmt.Errorf("decrypting smtp password: %w", err)
		}
		opt.Password = password
	}
	return NewMailerWithOptions(opt), nil
}

func NewMailerWithOptions(options MailerOption) *Mailer {
	return &Mailer{options: options}
}

func (m *Mailer) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(m.options.Port),
		mail.WithTimeout(smtpTimeout),
	}
	switch m.options.Security {
	case "ssl":
		opts = append(opts, mail.WithSSL())
	case "starttls":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if m.options.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.options.Username),
			mail.WithPassword(m.options.Password),
		)
	}
	client, err := mail.NewClient(m.options.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("building smtp client: %w", err)
	}
	return client, nil
}

func (m *Mailer) send(to, subject, body string) error {
	msg := mail.NewMsg()
	if m.options.FromName != "" {
		if err := msg.FromFormat(m.options.FromName, m.options.FromEmail); err != nil {
			return fmt.Errorf("setting sender: %w", err)
		}
	} else {
		if err := msg.From(m.options.FromEmail); err != nil {
			return fmt.Errorf("setting sender: %w", err)
		}
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := m.client()
	if err != nil {
		return err
	}
	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	return nil
}

// SendPasswordReset mails the single-use reset link to a portal user.
func (m *Mailer) SendPasswordReset(to, name, resetURL string) error {
	body := fmt.Sprintf(
		"Dobrý den, %s,\n\n"+
			"pro nastavení nového hesla do docházkového portálu klikněte na tento odkaz:\n\n%s\n\n"+
			"Odkaz platí 24 hodin a lze jej použít jen jednou.\n\n"+
			"Pokud jste o změnu hesla nežádali, tento e-mail ignorujte.\n",
		name, resetURL)
	return m.send(to, "Nastavení hesla — docházkový portál", body)
}

// SendAdminHelp notifies the operator mailbox about a forgotten admin
// password.
func (m *Mailer) SendAdminHelp(to, requestIP string) error {
	body := fmt.Sprintf(
		"Někdo požádal o pomoc s přihlášením do administrace (IP %s).\n\n"+
			"Heslo administrátora se mění v konfiguraci serveru.\n",
		requestIP)
	return m.send(to, "Žádost o pomoc s přihlášením", body)
}
