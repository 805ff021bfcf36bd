package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration(t *testing.T) {
	t.Setenv("OUTBOX_POLL_INTERVAL", "250ms")
	d, err := Duration("OUTBOX_POLL_INTERVAL", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	t.Setenv("OUTBOX_POLL_INTERVAL", "soon")
	_, err = Duration("OUTBOX_POLL_INTERVAL", time.Second)
	require.Error(t, err)

	d, err = Duration("UNSET_DURATION_KEY", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)
}

func TestIntRejectsNonPositive(t *testing.T) {
	t.Setenv("OUTBOX_BATCH_SIZE", "0")
	_, err := Int("OUTBOX_BATCH_SIZE", 100)
	require.Error(t, err)

	t.Setenv("OUTBOX_BATCH_SIZE", "25")
	n, err := Int("OUTBOX_BATCH_SIZE", 100)
	require.NoError(t, err)
	assert.Equal(t, 25, n)
}

func TestBoolAndList(t *testing.T) {
	t.Setenv("DB_MIGRATE", "off")
	assert.False(t, Bool("DB_MIGRATE", true))
	assert.True(t, Bool("UNSET_BOOL_KEY", true))

	t.Setenv("CORS_ALLOWED_ORIGINS", " http://a.test, ,http://b.test ")
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, List("CORS_ALLOWED_ORIGINS"))
}

func TestPort(t *testing.T) {
	t.Setenv("PORT", "70000")
	_, err := Port("PORT", "8080")
	require.Error(t, err)
}
