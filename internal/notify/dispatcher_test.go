package notify

import (
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

func TestDispatcher_Notify(t *testing.T) {
	t.Run("queues the notification on redis", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.Regexp().ExpectRPush(queueKey, `.*"template":"credit".*`).SetVal(1)

		d := NewDispatcher(client, nil)
		d.Notify("acct-1", "credit", map[string]interface{}{"reference": "ref-1"})

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("queue failure is swallowed", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		mock.Regexp().ExpectRPush(queueKey, `.*`).SetErr(assert.AnError)

		d := NewDispatcher(client, nil)
		d.Notify("acct-1", "debit", nil)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("degrades to logging without redis", func(t *testing.T) {
		d := NewDispatcher(nil, nil)
		assert.NotPanics(t, func() {
			d.Notify("acct-1", "reversal", nil)
		})
	})
}
