package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hcasc.cz/dagmar/model"
	"hcasc.cz/dagmar/security"
)

func TestSeedAndCheckAdminLogin(t *testing.T) {
	db := openTestDB(t)
	hash, err := security.HashPassword("hunter22")
	require.NoError(t, err)
	require.NoError(t, SeedAdminUser(db, "admin", hash))
	// Re-seeding with the same hash is a no-op.
	require.NoError(t, SeedAdminUser(db, "admin", hash))

	assert.True(t, CheckAdminLogin(db, "admin", "hunter22"))
	assert.False(t, CheckAdminLogin(db, "admin", "hunter23"))
	assert.False(t, CheckAdminLogin(db, "nobody", "hunter22"))
}

func TestCreatePortalUserUniqueEmail(t *testing.T) {
	db := openTestDB(t)
	_, err := CreatePortalUser(db, PortalUserInput{
		Email: "Jana@Hotel.CZ", Name: "Jana", Role: model.RoleEmployee,
	})
	require.NoError(t, err)

	// Emails are normalized, so a case variant collides.
	_, err = CreatePortalUser(db, PortalUserInput{
		Email: "jana@hotel.cz", Name: "Jana 2", Role: model.RoleEmployee,
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestResetTokenFlow(t *testing.T) {
	db := openTestDB(t)
	user, err := CreatePortalUser(db, PortalUserInput{
		Email: "petr@hotel.cz", Name: "Petr", Role: model.RoleEmployee,
	})
	require.NoError(t, err)

	token, err := CreateResetToken(db, user.ID)
	require.NoError(t, err)
	// Plaintext is never stored.
	var row model.PortalUserResetToken
	require.NoError(t, db.First(&row, "user_id = ?", user.ID).Error)
	assert.NotEqual(t, token, row.TokenHash)

	require.NoError(t, ConsumeResetToken(db, token, "new-password-1"))

	reloaded, err := GetPortalUser(db, user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.PasswordHash)
	assert.True(t, security.VerifyPassword("new-password-1", *reloaded.PasswordHash))

	// Single use.
	err = ConsumeResetToken(db, token, "another-password")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestConsumeResetTokenExpired(t *testing.T) {
	db := openTestDB(t)
	user, err := CreatePortalUser(db, PortalUserInput{
		Email: "eva@hotel.cz", Name: "Eva", Role: model.RoleEmployee,
	})
	require.NoError(t, err)

	token, err := CreateResetToken(db, user.ID)
	require.NoError(t, err)
	require.NoError(t, db.Model(&model.PortalUserResetToken{}).
		Where("user_id = ?", user.ID).
		Update("expires_at", time.Now().UTC().Add(-time.Hour)).Error)

	err = ConsumeResetToken(db, token, "whatever-pass")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestPortalLogin(t *testing.T) {
	db := openTestDB(t)
	inst := activeTestInstance(t, db, "pokladna")
	user, err := CreatePortalUser(db, PortalUserInput{
		Email: "lucie@hotel.cz", Name: "Lucie", Role: model.RoleEmployee,
		InstanceID: &inst.ID,
	})
	require.NoError(t, err)

	token, err := CreateResetToken(db, user.ID)
	require.NoError(t, err)
	require.NoError(t, ConsumeResetToken(db, token, "correct-horse-1"))

	bearer, loginInst, err := PortalLogin(db, "lucie@hotel.cz", "correct-horse-1")
	require.NoError(t, err)
	assert.Equal(t, inst.ID, loginInst.ID)

	resolved, err := VerifyInstanceToken(db, bearer)
	require.NoError(t, err)
	assert.Equal(t, inst.ID, resolved.ID)

	_, _, err = PortalLogin(db, "lucie@hotel.cz", "wrong-password")
	assert.ErrorIs(t, err, ErrLoginFailed)
	_, _, err = PortalLogin(db, "nikdo@hotel.cz", "correct-horse-1")
	assert.ErrorIs(t, err, ErrLoginFailed)
}

func TestPortalLoginUnlinkedOrInactive(t *testing.T) {
	db := openTestDB(t)
	user, err := CreatePortalUser(db, PortalUserInput{
		Email: "bez@hotel.cz", Name: "Bez Instance", Role: model.RoleEmployee,
	})
	require.NoError(t, err)
	token, err := CreateResetToken(db, user.ID)
	require.NoError(t, err)
	require.NoError(t, ConsumeResetToken(db, token, "some-password-1"))

	_, _, err = PortalLogin(db, "bez@hotel.cz", "some-password-1")
	assert.ErrorIs(t, err, ErrLoginFailed)

	inactive := false
	_, err = UpdatePortalUser(db, user.ID, PortalUserInput{
		Email: "bez@hotel.cz", Name: "Bez Instance", Role: model.RoleEmployee,
		IsActive: &inactive,
	})
	require.NoError(t, err)
	_, _, err = PortalLogin(db, "bez@hotel.cz", "some-password-1")
	assert.ErrorIs(t, err, ErrLoginFailed)
}
