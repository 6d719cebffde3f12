package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idc-renew/browser"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	return NewStore(t.TempDir(), logger)
}

func TestSaveAndLoad(t *testing.T) {
	store := newTestStore(t)

	cookies := []browser.Cookie{
		{Name: "WHMCSUser", Value: "abc123", Domain: "56idc.net", Path: "/"},
		{Name: "cf_clearance", Value: "tok", Domain: ".56idc.net", Path: "/", Secure: true},
	}

	require.NoError(t, store.Save("alice@x.com", cookies))

	loaded, ok := store.Load("alice@x.com")
	require.True(t, ok)
	assert.Equal(t, cookies, loaded)
}

func TestLoadAbsentIsNoSession(t *testing.T) {
	store := newTestStore(t)

	cookies, ok := store.Load("nobody@x.com")
	assert.False(t, ok)
	assert.Nil(t, cookies)
}

func TestLoadCorruptIsNoSession(t *testing.T) {
	store := newTestStore(t)

	path := filepath.Join(store.dir, SafeName("alice@x.com")+".json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, ok := store.Load("alice@x.com")
	assert.False(t, ok)
}

func TestLoadEmptyJarIsNoSession(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save("alice@x.com", nil))

	_, ok := store.Load("alice@x.com")
	assert.False(t, ok)
}

func TestSaveOverwritesPriorRecord(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save("alice@x.com", []browser.Cookie{{Name: "old", Value: "1"}}))
	require.NoError(t, store.Save("alice@x.com", []browser.Cookie{{Name: "new", Value: "2"}}))

	loaded, ok := store.Load("alice@x.com")
	require.True(t, ok)
	require.Len(t, loaded, 1)
	assert.Equal(t, "new", loaded[0].Name)
}

func TestSaveCreatesDirectoryOnDemand(t *testing.T) {
	logger := logrus.New()
	dir := filepath.Join(t.TempDir(), "nested", "sessions")
	store := NewStore(dir, logger)

	require.NoError(t, store.Save("alice@x.com", []browser.Cookie{{Name: "c", Value: "v"}}))

	_, ok := store.Load("alice@x.com")
	assert.True(t, ok)
}

func TestAccountsDoNotShareSessions(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save("alice@x.com", []browser.Cookie{{Name: "a", Value: "1"}}))
	require.NoError(t, store.Save("bob@x.com", []browser.Cookie{{Name: "b", Value: "2"}}))

	aliceCookies, ok := store.Load("alice@x.com")
	require.True(t, ok)
	bobCookies, ok := store.Load("bob@x.com")
	require.True(t, ok)

	assert.Equal(t, "a", aliceCookies[0].Name)
	assert.Equal(t, "b", bobCookies[0].Name)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "alice_at_x_com", SafeName("alice@x.com"))
	assert.Equal(t, "bob_at_sub_example_org", SafeName("bob@sub.example.org"))
}
