package passwordless_test

import (
	"bytes"
	"context"
	"testing"

	passwordless "github.com/goliatone/go-passwordless"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterMailer(t *testing.T) {
	var buf bytes.Buffer
	mailer := &passwordless.WriterMailer{Out: &buf}

	id, err := mailer.SendLoginEmail(context.Background(), "alice@example.com", "https://app.example.com/auth/verify?token=abc", "en")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	out := buf.String()
	assert.Contains(t, out, "alice@example.com")
	assert.Contains(t, out, "https://app.example.com/auth/verify?token=abc")
}
