package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFuture(t *testing.T) {
	t.Run("Await returns the settled response", func(t *testing.T) {
		f := newFuture()
		f.settle(json.RawMessage(`{"ok":true}`), nil)

		response, err := f.Await(context.Background())

		assert.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(response))
	})

	t.Run("Await returns the settled error", func(t *testing.T) {
		f := newFuture()
		settleErr := errors.New("boom")
		f.settle(nil, settleErr)

		response, err := f.Await(context.Background())

		assert.Nil(t, response)
		assert.Equal(t, settleErr, err)
	})

	t.Run("only the first settle takes effect", func(t *testing.T) {
		f := newFuture()
		f.settle(json.RawMessage(`"first"`), nil)
		f.settle(json.RawMessage(`"second"`), nil)
		f.settle(nil, errors.New("late error"))

		response, err := f.Await(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, `"first"`, string(response))
	})

	t.Run("Await respects context cancellation", func(t *testing.T) {
		f := newFuture()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := f.Await(ctx)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
