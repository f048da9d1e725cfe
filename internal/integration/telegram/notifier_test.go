package telegram

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	pkgerrors "deadline-desk/backend/pkg/errors"
)

type fakeSender struct {
	err  error
	sent []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestSend(t *testing.T) {
	s := &fakeSender{}
	n := newWithSender(s, zap.NewNop())

	require.NoError(t, n.Send(context.Background(), 1001, "⏰ Напоминание"))
	require.Len(t, s.sent, 1)
	msg, ok := s.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(1001), msg.ChatID)
	assert.Equal(t, "⏰ Напоминание", msg.Text)
}

func TestSend_TruncatesLongMessage(t *testing.T) {
	s := &fakeSender{}
	n := newWithSender(s, zap.NewNop())

	require.NoError(t, n.Send(context.Background(), 1, strings.Repeat("я", 5000)))
	msg := s.sent[0].(tgbotapi.MessageConfig)
	assert.Len(t, []rune(msg.Text), maxMessageRunes)
}

func TestSend_FailureIsDeliveryError(t *testing.T) {
	n := newWithSender(&fakeSender{err: errors.New("Forbidden: bot was blocked by the user")}, zap.NewNop())

	err := n.Send(context.Background(), 1, "x")
	assert.ErrorIs(t, err, pkgerrors.ErrDelivery)
}

func TestSend_CancelledContext(t *testing.T) {
	s := &fakeSender{}
	n := newWithSender(s, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, n.Send(ctx, 1, "x"), pkgerrors.ErrDelivery)
	assert.Empty(t, s.sent)
}

func TestSendDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lab_2.docx")
	require.NoError(t, os.WriteFile(path, []byte("PK"), 0o644))
	s := &fakeSender{}
	n := newWithSender(s, zap.NewNop())

	require.NoError(t, n.SendDocument(context.Background(), 2002, path, "Лабораторная_2.docx", "📤 Готовая работа"))
	doc, ok := s.sent[0].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	assert.Equal(t, int64(2002), doc.ChatID)
	assert.Equal(t, "📤 Готовая работа", doc.Caption)
	file, ok := doc.File.(tgbotapi.FileReader)
	require.True(t, ok)
	assert.Equal(t, "Лабораторная_2.docx", file.Name)
}

func TestSendDocument_MissingFile(t *testing.T) {
	s := &fakeSender{}
	n := newWithSender(s, zap.NewNop())

	err := n.SendDocument(context.Background(), 1, filepath.Join(t.TempDir(), "missing.docx"), "", "")
	assert.ErrorIs(t, err, pkgerrors.ErrDelivery)
	assert.Empty(t, s.sent)
}

func TestLogNotifier_DryRun(t *testing.T) {
	n := NewLogNotifier(zap.NewNop(), true)
	assert.NoError(t, n.Send(context.Background(), 1, "x"))
	assert.ErrorIs(t, n.SendDocument(context.Background(), 1, "/nonexistent/file.docx", "f", "c"), pkgerrors.ErrDelivery)

	path := filepath.Join(t.TempDir(), "lab.docx")
	require.NoError(t, os.WriteFile(path, []byte("PK"), 0o600))
	assert.NoError(t, n.SendDocument(context.Background(), 1, path, "lab.docx", "c"))
}

func TestLogNotifier_WithoutDryRunFailsDelivery(t *testing.T) {
	n := NewLogNotifier(zap.NewNop(), false)

	err := n.Send(context.Background(), 1, "x")
	assert.ErrorIs(t, err, pkgerrors.ErrDelivery)
	assert.ErrorIs(t, err, ErrBotUnconfigured)
	assert.True(t, pkgerrors.IsRetryable(err))

	path := filepath.Join(t.TempDir(), "lab.docx")
	require.NoError(t, os.WriteFile(path, []byte("PK"), 0o600))
	err = n.SendDocument(context.Background(), 1, path, "lab.docx", "c")
	assert.ErrorIs(t, err, ErrBotUnconfigured)
}
