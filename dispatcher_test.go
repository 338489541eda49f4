package tgrelay

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	tg "github.com/requilence/telegram-bot-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantCommand string
		wantBot     string
		wantParam   string
	}{
		{"just command", "/start", "start", "", ""},
		{"command with param", "/start param", "start", "", "param"},
		{"command with bot name", "/start@relay_bot", "start", "relay_bot", ""},
		{"command with bot name and param", "/start@relay_bot deep link", "start", "relay_bot", "deep link"},
		{"uppercase", "/START", "start", "", ""},
		{"not a command", "hello /start", "", "", "hello /start"},
		{"slash only", "/", "", "", ""},
		{"multiline param", "/start a\nb", "start", "", "a\nb"},
	}
	for _, tt := range tests {
		command, bot, param := parseCommand(tt.text)
		if command != tt.wantCommand || bot != tt.wantBot || param != tt.wantParam {
			t.Errorf("%q. parseCommand() = (%q, %q, %q), want (%q, %q, %q)", tt.name, command, bot, param, tt.wantCommand, tt.wantBot, tt.wantParam)
		}
	}
}

func messageUpdate(id int, chatID int64, text string) *tg.Update {
	return &tg.Update{UpdateID: id, Message: &tg.Message{MessageID: id, Chat: &tg.Chat{ID: chatID}, Text: text}}
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *UpdateQueue) {
	c := testConfig(t)
	q := NewUpdateQueue(c.QueueSize)
	return NewDispatcher(q, newFakeBot(), c), q
}

func TestDispatcher_Routes(t *testing.T) {
	d, q := newTestDispatcher(t)
	d.BotUsername = "relay_bot"

	var handled int32
	params := make(chan string, 4)
	d.Handle("/ping", func(c *Context) error {
		atomic.AddInt32(&handled, 1)
		params <- c.Param
		return nil
	})
	d.Start()

	ctx := context.Background()
	require.NoError(t, q.Put(ctx, messageUpdate(1, 42, "/ping now")))
	require.NoError(t, q.Put(ctx, messageUpdate(2, 42, "/ping@relay_bot")))
	require.NoError(t, q.Put(ctx, messageUpdate(3, 42, "/ping@other_bot")))
	require.NoError(t, q.Put(ctx, messageUpdate(4, 42, "/unknown")))
	require.NoError(t, q.Put(ctx, messageUpdate(5, 42, "just text")))
	require.NoError(t, q.Put(ctx, &tg.Update{UpdateID: 6}))

	require.NoError(t, d.Stop(ctx))
	assert.Equal(t, int32(2), atomic.LoadInt32(&handled))

	close(params)
	var got []string
	for p := range params {
		got = append(got, p)
	}
	assert.ElementsMatch(t, []string{"now", ""}, got)
}

func TestDispatcher_EditedMessage(t *testing.T) {
	d, q := newTestDispatcher(t)

	done := make(chan int64, 1)
	d.Handle("start", func(c *Context) error {
		done <- c.ChatID()
		return nil
	})
	d.Start()

	u := &tg.Update{UpdateID: 1, EditedMessage: &tg.Message{MessageID: 1, Chat: &tg.Chat{ID: -100}, Text: "/start"}}
	require.NoError(t, q.Put(context.Background(), u))

	select {
	case chatID := <-done:
		assert.Equal(t, int64(-100), chatID)
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}
	require.NoError(t, d.Stop(context.Background()))
}

func TestDispatcher_SurvivesPanicsAndErrors(t *testing.T) {
	d, q := newTestDispatcher(t)

	var handled int32
	d.Handle("panic", func(c *Context) error {
		panic("boom")
	})
	d.Handle("fail", func(c *Context) error {
		return errors.New("failed")
	})
	d.Handle("ok", func(c *Context) error {
		atomic.AddInt32(&handled, 1)
		return nil
	})
	d.Start()

	ctx := context.Background()
	require.NoError(t, q.Put(ctx, messageUpdate(1, 1, "/panic")))
	require.NoError(t, q.Put(ctx, messageUpdate(2, 1, "/fail")))
	require.NoError(t, q.Put(ctx, messageUpdate(3, 1, "/ok")))

	require.NoError(t, d.Stop(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&handled))
}

func TestDispatcher_StopDrainsQueue(t *testing.T) {
	d, q := newTestDispatcher(t)

	var handled int32
	d.Handle("start", func(c *Context) error {
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&handled, 1)
		return nil
	})

	ctx := context.Background()
	for i := 1; i <= 10; i++ {
		require.NoError(t, q.Put(ctx, messageUpdate(i, int64(i), "/start")))
	}

	// never started: Stop still dispatches everything that was queued
	require.NoError(t, d.Stop(ctx))
	assert.Equal(t, int32(10), atomic.LoadInt32(&handled))
	assert.ErrorIs(t, q.Put(ctx, messageUpdate(11, 1, "/start")), ErrQueueClosed)
}

func TestDispatcher_ConcurrencyLimit(t *testing.T) {
	c := testConfig(t)
	c.Workers = 2
	q := NewUpdateQueue(c.QueueSize)
	d := NewDispatcher(q, newFakeBot(), c)

	var running, maxRunning int32
	d.Handle("start", func(c *Context) error {
		n := atomic.AddInt32(&running, 1)
		for {
			m := atomic.LoadInt32(&maxRunning)
			if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	})
	d.Start()

	ctx := context.Background()
	for i := 1; i <= 8; i++ {
		require.NoError(t, q.Put(ctx, messageUpdate(i, int64(i), "/start")))
	}
	require.NoError(t, d.Stop(ctx))

	assert.LessOrEqual(t, atomic.LoadInt32(&maxRunning), int32(2))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&maxRunning), int32(1))
}

func TestDispatcher_StopTimeout(t *testing.T) {
	d, q := newTestDispatcher(t)

	release := make(chan struct{})
	d.Handle("start", func(c *Context) error {
		<-release
		return nil
	})
	d.Start()
	require.NoError(t, q.Put(context.Background(), messageUpdate(1, 1, "/start")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, d.Stop(ctx), context.DeadlineExceeded)
	close(release)
}

func TestDispatcher_StopWithBlockedProducer(t *testing.T) {
	c := testConfig(t)
	c.Workers = 1
	c.QueueSize = 1
	q := NewUpdateQueue(c.QueueSize)
	d := NewDispatcher(q, newFakeBot(), c)

	release := make(chan struct{})
	defer close(release)
	d.Handle("start", func(c *Context) error {
		<-release
		return nil
	})
	d.Start()

	// 1 is handled and hangs, 2 waits for a worker, 3 fills the queue
	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Put(context.Background(), messageUpdate(i, 1, "/start")))
	}

	putErr := make(chan error, 1)
	go func() {
		putErr <- q.Put(context.Background(), messageUpdate(4, 1, "/start"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	stopped := make(chan error, 1)
	go func() {
		stopped <- d.Stop(ctx)
	}()

	select {
	case err := <-stopped:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop ignored its deadline")
	}

	select {
	case err := <-putErr:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked Put was not released")
	}
}
