package keyring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceName(t *testing.T) {
	assert.Equal(t, "TileDB Cloud - api_key@https://api.tiledb.com", serviceName("api_key@https://api.tiledb.com"))
}

func TestDefaultStore_TestDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(TestKeyringEnvVar, dir)

	store := DefaultStore()
	require.IsType(t, &FileStore{}, store)

	require.NoError(t, store.Set("password@https://h", "s3cret"))
	got, err := store.Get("password@https://h")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)
}

func TestDefaultStore_OSKeyring(t *testing.T) {
	t.Setenv(TestKeyringEnvVar, "")
	assert.IsType(t, &osKeyring{}, DefaultStore())
}

func TestOSKeyring_RejectsEmptyInput(t *testing.T) {
	k := &osKeyring{}

	assert.ErrorIs(t, k.Set("", "x"), ErrEmptyKey)
	assert.ErrorIs(t, k.Set("key", ""), ErrEmptySecret)

	_, err := k.Get("")
	assert.ErrorIs(t, err, ErrEmptyKey)
	assert.ErrorIs(t, k.Delete(""), ErrEmptyKey)
}

func TestWrapKeyringError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		wantIs error
	}{
		{name: "access denied", err: errors.New("Permission denied by user"), wantIs: ErrKeyringAccessDenied},
		{name: "not allowed", err: errors.New("operation not allowed"), wantIs: ErrKeyringAccessDenied},
		{name: "no secret service", err: errors.New("The name org.freedesktop.secrets was not provided: secret service"), wantIs: ErrKeyringUnavailable},
		{name: "unavailable", err: errors.New("backend unavailable"), wantIs: ErrKeyringUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapKeyringError(tt.err, "failed to store secret")
			assert.ErrorIs(t, err, tt.wantIs)
			assert.Contains(t, err.Error(), "failed to store secret")
		})
	}
}

func TestWrapKeyringError_Passthrough(t *testing.T) {
	assert.NoError(t, wrapKeyringError(nil, "ignored"))

	cause := errors.New("something odd")
	err := wrapKeyringError(cause, "failed to delete secret")
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrKeyringUnavailable)
	assert.NotErrorIs(t, err, ErrKeyringAccessDenied)
}
