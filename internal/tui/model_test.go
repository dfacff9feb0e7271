package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evidence-rag/internal/models"
)

type fakeChat struct {
	sent  [][]models.ChatMessage
	reply string
	err   error
}

func (f *fakeChat) Send(_ context.Context, messages []models.ChatMessage) (models.ChatMessage, error) {
	f.sent = append(f.sent, messages)
	return models.ChatMessage{Role: models.RoleAssistant, Content: f.reply}, f.err
}

func typeText(m tea.Model, s string) tea.Model {
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

// submit presses enter and feeds the reply back without a running program
func submit(t *testing.T, m tea.Model) tea.Model {
	t.Helper()
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.(Model).Loading())

	reply := m.(Model).send()()
	m, _ = m.Update(reply)
	return m
}

func TestStartsWithGreeting(t *testing.T) {
	m := New(&fakeChat{})
	require.Len(t, m.Messages(), 1)
	assert.Equal(t, models.Greeting, m.Messages()[0].Content)
	assert.Equal(t, "Loading...", m.View())
}

func TestSubmitSendsWholeConversation(t *testing.T) {
	chat := &fakeChat{reply: "A red sedan [witness_statement.txt]."}
	var m tea.Model = New(chat)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	m = typeText(m, "What color was the car?")
	m = submit(t, m)

	msgs := m.(Model).Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, models.RoleUser, msgs[1].Role)
	assert.Equal(t, "What color was the car?", msgs[1].Content)
	assert.Equal(t, "A red sedan [witness_statement.txt].", msgs[2].Content)
	assert.False(t, m.(Model).Loading())

	require.NotEmpty(t, chat.sent)
	last := chat.sent[len(chat.sent)-1]
	require.Len(t, last, 2)
	assert.Equal(t, models.Greeting, last[0].Content)
	assert.Contains(t, m.View(), "Detective:")
}

func TestFailedRequestShowsConnectionError(t *testing.T) {
	var m tea.Model = New(&fakeChat{err: errors.New("dial tcp: connection refused")})
	m = typeText(m, "Who did it?")
	m = submit(t, m)

	msgs := m.(Model).Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, models.ConnectionErrorText, msgs[2].Content)
}

func TestBlankInputIsIgnored(t *testing.T) {
	chat := &fakeChat{}
	var m tea.Model = New(chat)
	m = typeText(m, "   ")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Len(t, m.(Model).Messages(), 1)
	assert.Empty(t, chat.sent)
}

func TestEscQuits(t *testing.T) {
	_, cmd := New(&fakeChat{}).Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
