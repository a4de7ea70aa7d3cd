package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownHooks_Add(t *testing.T) {
	t.Run("registers and runs hook", func(t *testing.T) {
		hooks := &ShutdownHooks{}
		called := false

		hooks.Add("resource", func() error {
			called = true
			return nil
		})

		require.Len(t, hooks.hooks, 1)
		assert.Equal(t, "resource", hooks.hooks[0].name)

		hooks.Execute(context.Background())
		assert.True(t, called)
	})

	t.Run("ignores nil hook", func(t *testing.T) {
		hooks := &ShutdownHooks{}
		hooks.Add("nil-hook", nil)
		hooks.AddContext("nil-ctx-hook", nil)
		hooks.AddClose("nil-closer", nil)
		assert.Empty(t, hooks.hooks)
	})
}

func TestShutdownHooks_Execute(t *testing.T) {
	t.Run("runs hooks in registration order", func(t *testing.T) {
		hooks := &ShutdownHooks{}
		var order []string

		hooks.AddContext("first", func(ctx context.Context) error {
			order = append(order, "first")
			return nil
		})
		hooks.Add("second", func() error {
			order = append(order, "second")
			return nil
		})
		hooks.AddClose("third", closerFunc(func() {
			order = append(order, "third")
		}))

		hooks.Execute(context.Background())

		assert.Equal(t, []string{"first", "second", "third"}, order)
	})

	t.Run("continues past a failing hook", func(t *testing.T) {
		hooks := &ShutdownHooks{}
		var executed []string

		hooks.Add("failing", func() error {
			executed = append(executed, "failing")
			return errors.New("hook failed")
		})
		hooks.Add("after", func() error {
			executed = append(executed, "after")
			return nil
		})

		hooks.Execute(context.Background())

		assert.Equal(t, []string{"failing", "after"}, executed)
	})

	t.Run("passes the shutdown context through", func(t *testing.T) {
		hooks := &ShutdownHooks{}
		type ctxKey struct{}

		var received string
		hooks.AddContext("ctx-check", func(ctx context.Context) error {
			received = ctx.Value(ctxKey{}).(string)
			return nil
		})

		hooks.Execute(context.WithValue(context.Background(), ctxKey{}, "deadline-bearing"))
		assert.Equal(t, "deadline-bearing", received)
	})

	t.Run("empty hook set is a no-op", func(t *testing.T) {
		hooks := &ShutdownHooks{}
		hooks.Execute(context.Background())
	})
}

type closerFunc func()

func (f closerFunc) Close() { f() }
