package input

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminal_Confirm(t *testing.T) {
	tests := []struct {
		name       string
		answer     string
		defaultYes bool
		want       bool
	}{
		{"yes", "y\n", false, true},
		{"YES uppercase", "YES\n", false, true},
		{"no", "n\n", true, false},
		{"empty uses default yes", "\n", true, true},
		{"empty uses default no", "\n", false, false},
		{"eof uses default", "", true, true},
		{"garbage is no", "maybe\n", true, false},
		{"answer without newline", "yes", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			term := &Terminal{In: strings.NewReader(tt.answer), Out: &out}

			got, err := term.Confirm(context.Background(), "Continue anyway?", tt.defaultYes)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Continue anyway?")
		})
	}
}

func TestTerminal_ConfirmHint(t *testing.T) {
	var out bytes.Buffer
	term := &Terminal{In: strings.NewReader("\n"), Out: &out}

	_, err := term.Confirm(context.Background(), "Proceed?", true)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "[Y/n]")
}

func TestTerminal_PipedAnswersServeSeveralPrompts(t *testing.T) {
	term := &Terminal{In: strings.NewReader("y\nn\ny\n"), Out: io.Discard}
	ctx := context.Background()

	var got []bool
	for i := 0; i < 3; i++ {
		ok, err := term.Confirm(ctx, "Overwrite?", false)
		require.NoError(t, err)
		got = append(got, ok)
	}

	assert.Equal(t, []bool{true, false, true}, got)
}

func TestTerminal_CancelWhileWaiting(t *testing.T) {
	in, answer := io.Pipe()
	defer answer.Close()
	term := &Terminal{In: in, Out: io.Discard}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := term.Confirm(ctx, "Continue anyway?", true)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Confirm did not return after cancellation")
	}

	// The abandoned read still delivers the next answer.
	go func() { _, _ = answer.Write([]byte("n\n")) }()
	ok, err := term.Confirm(context.Background(), "Again?", true)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAlways(t *testing.T) {
	yes, err := Always(true).Confirm(context.Background(), "anything", false)
	require.NoError(t, err)
	assert.True(t, yes)

	no, err := Always(false).Confirm(context.Background(), "anything", true)
	require.NoError(t, err)
	assert.False(t, no)
}
