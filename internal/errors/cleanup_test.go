package errors

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/perfprobe/internal/testutil"
)

type mockCloser struct {
	closeErr error
	closed   bool
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.closeErr
}

func TestDeferClose(t *testing.T) {
	tests := []struct {
		name       string
		closer     io.Closer
		wantLogged bool
	}{
		{
			name:       "nil closer",
			closer:     nil,
			wantLogged: false,
		},
		{
			name:       "successful close",
			closer:     &mockCloser{},
			wantLogged: false,
		},
		{
			name:       "close with error",
			closer:     &mockCloser{closeErr: errors.New("close failed")},
			wantLogged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)

			DeferClose(logger, tt.closer, "test close")

			if tt.closer != nil {
				mc := tt.closer.(*mockCloser)
				if !mc.closed {
					t.Error("Close() was not called")
				}
			}

			logged := buf.Len() > 0
			if logged != tt.wantLogged {
				t.Errorf("logged = %v, want %v", logged, tt.wantLogged)
			}
		})
	}
}

func TestDeferRollback_NilTransaction(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	DeferRollback(logger, nil)

	if buf.Len() > 0 {
		t.Error("expected no logging for nil transaction")
	}
}

func TestDeferRollback_Transaction(t *testing.T) {
	db := testutil.NewTestDB(t)

	tests := []struct {
		name       string
		commit     bool
		wantLogged bool
	}{
		{name: "open transaction rolls back silently", commit: false},
		{name: "committed transaction ignores ErrTxDone", commit: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tx, err := db.BeginTx(context.Background(), nil)
			if err != nil {
				t.Fatalf("BeginTx() error = %v", err)
			}
			if tt.commit {
				if err := tx.Commit(); err != nil {
					t.Fatalf("Commit() error = %v", err)
				}
			}

			DeferRollback(zerolog.New(&buf), tx)

			if logged := buf.Len() > 0; logged != tt.wantLogged {
				t.Errorf("logged = %v, want %v (%s)", logged, tt.wantLogged, buf.String())
			}
		})
	}
}

func TestMessage(t *testing.T) {
	if got := Message(nil); got != "" {
		t.Errorf("Message(nil) = %q, want empty", got)
	}
	if got := Message(errors.New("boom")); got != "boom" {
		t.Errorf("Message(boom) = %q, want %q", got, "boom")
	}
}
