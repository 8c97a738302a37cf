package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svcerrors "github.com/R3E-Network/menu_layer/internal/errors"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("MENU_DB_DRIVER", "memory")
	t.Setenv("MENU_AUTH", "memory")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "")

	dir := t.TempDir()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{
		"--env", filepath.Join(dir, "missing.env"),
		"--session", "file",
		"--session-dir", dir,
	}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCartShowEmpty(t *testing.T) {
	out, err := run(t, "cart", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Your cart is empty")
}

func TestCartAddUnknownItem(t *testing.T) {
	_, err := run(t, "cart", "add", "missing-item")
	require.Error(t, err)
	assert.True(t, svcerrors.Is(err, svcerrors.ErrNotFound))
}

func TestCartRejectsBadQuantity(t *testing.T) {
	_, err := run(t, "cart", "set", "item-1", "many")
	assert.ErrorContains(t, err, "not a number")
}

func TestMenuForUnknownRestaurant(t *testing.T) {
	out, err := run(t, "menu", "restaurant-1")
	require.NoError(t, err)
	assert.Contains(t, out, "no menu yet")
}

func TestWhoamiSignedOut(t *testing.T) {
	out, err := run(t, "whoami")
	assert.ErrorContains(t, err, "not signed in")
	assert.Contains(t, out, "/login")
}

func TestLoginValidatesInput(t *testing.T) {
	_, err := run(t, "login", "--email", "not-an-email", "--password", "secret1")
	require.Error(t, err)
	se := svcerrors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, "Please enter a valid email", se.Details["email"])
}

func TestLoginRejectedIsReported(t *testing.T) {
	out, err := run(t, "login", "--email", "owner@example.com", "--password", "secret1")
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, out, "Login failed")
}

func TestRegisterSignsIn(t *testing.T) {
	out, err := run(t, "register", "--name", "Ada", "--email", "ada@example.com", "--password", "secret1")
	require.NoError(t, err)
	assert.Contains(t, out, "Registration successful")
	assert.Contains(t, out, "Welcome, Ada!")
}

func TestCartWatchNeedsSupabase(t *testing.T) {
	_, err := run(t, "cart", "watch", "restaurant-1")
	assert.ErrorContains(t, err, "Supabase project")
}
