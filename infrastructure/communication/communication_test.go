package communication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hcasc.cz/dagmar/model"
	"hcasc.cz/dagmar/security"
)

func strptr(s string) *string { return &s }
func intptr(i int) *int       { return &i }

func TestNewMailerRequiresHostAndSender(t *testing.T) {
	secret := []byte("secret")

	_, err := NewMailer(&model.AppSettings{}, secret)
	assert.ErrorIs(t, err, ErrSMTPNotConfigured)

	_, err = NewMailer(&model.AppSettings{SMTPHost: strptr("smtp.hotel.cz")}, secret)
	assert.ErrorIs(t, err, ErrSMTPNotConfigured)
}

func TestNewMailerDecryptsPassword(t *testing.T) {
	secret := []byte("secret")
	encrypted, err := security.EncryptSecret("smtp-pass", secret)
	require.NoError(t, err)

	settings := &model.AppSettings{
		SMTPHost:      strptr("smtp.hotel.cz"),
		SMTPPort:      intptr(465),
		SMTPUsername:  strptr("noreply@hotel.cz"),
		SMTPPassword:  &encrypted,
		SMTPSecurity:  strptr("ssl"),
		SMTPFromEmail: strptr("noreply@hotel.cz"),
		SMTPFromName:  strptr("Hotel"),
	}
	mailer, err := NewMailer(settings, secret)
	require.NoError(t, err)
	assert.Equal(t, "smtp.hotel.cz", mailer.options.Host)
	assert.Equal(t, 465, mailer.options.Port)
	assert.Equal(t, "ssl", mailer.options.Security)
	assert.Equal(t, "smtp-pass", mailer.options.Password)
	assert.Equal(t, "Hotel", mailer.options.FromName)
}

func TestNewMailerDefaults(t *testing.T) {
	settings := &model.AppSettings{
		SMTPHost:      strptr("smtp.hotel.cz"),
		SMTPFromEmail: strptr("noreply@hotel.cz"),
	}
	mailer, err := NewMailer(settings, []byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, 587, mailer.options.Port)
	assert.Equal(t, "starttls", mailer.options.Security)
	assert.Empty(t, mailer.options.Password)
}
