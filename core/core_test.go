package core

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"hcasc.cz/dagmar/model"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dm, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, dm.AutoMigrate())
	t.Cleanup(func() { dm.Close() })
	return dm.DB
}

func registerTestInstance(t *testing.T, db *gorm.DB, name string) *model.Instance {
	t.Helper()
	inst, err := RegisterInstance(db, RegisterInput{
		ClientType:        model.ClientAndroid,
		DeviceFingerprint: "fp-" + name + "-0123456789",
		DisplayName:       name,
	})
	require.NoError(t, err)
	return inst
}

func activeTestInstance(t *testing.T, db *gorm.DB, name string) *model.Instance {
	t.Helper()
	inst := registerTestInstance(t, db, name)
	activated, err := ActivateInstance(db, inst.ID, ActivateInput{})
	require.NoError(t, err)
	return activated
}
