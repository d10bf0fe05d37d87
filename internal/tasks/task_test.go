package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregmarra/the-blue-alliance/pkg/logger"
	"github.com/gregmarra/the-blue-alliance/pkg/metrics"
)

type greeting struct {
	Name string `json:"name"`
}

func TestNewAndDecode(t *testing.T) {
	task, err := New("greet", greeting{Name: "frc254"})
	require.NoError(t, err)
	assert.Equal(t, "greet", task.Name)
	assert.NotEqual(t, uuid.Nil, task.ID)

	var out greeting
	require.NoError(t, task.Decode(&out))
	assert.Equal(t, "frc254", out.Name)
}

func TestRegistryDispatch(t *testing.T) {
	m := metrics.New()
	r := NewRegistry(m, logger.Discard())

	var got string
	r.Register("greet", func(_ context.Context, task Task) error {
		var g greeting
		if err := task.Decode(&g); err != nil {
			return err
		}
		got = g.Name
		return nil
	})
	r.Register("boom", func(context.Context, Task) error { return errors.New("boom") })

	task, _ := New("greet", greeting{Name: "frc1114"})
	require.NoError(t, r.Dispatch(context.Background(), task))
	assert.Equal(t, "frc1114", got)

	boom, _ := New("boom", nil)
	assert.EqualError(t, r.Dispatch(context.Background(), boom), "boom")

	missing, _ := New("missing", nil)
	assert.ErrorIs(t, r.Dispatch(context.Background(), missing), ErrUnknownTask)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskCounter("greet", "done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskCounter("boom", "failed")))
}

func TestLocalQueueRunsTasks(t *testing.T) {
	r := NewRegistry(nil, logger.Discard())
	var mu sync.Mutex
	var seen []string
	r.Register("greet", func(_ context.Context, task Task) error {
		var g greeting
		_ = task.Decode(&g)
		mu.Lock()
		seen = append(seen, g.Name)
		mu.Unlock()
		return nil
	})

	q := NewLocalQueue(r, 2, 8, nil, logger.Discard())
	for _, name := range []string{"a", "b", "c"} {
		task, _ := New("greet", greeting{Name: name})
		require.NoError(t, q.Enqueue(context.Background(), task))
	}
	q.Close()

	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)

	task, _ := New("greet", greeting{Name: "late"})
	assert.ErrorIs(t, q.Enqueue(context.Background(), task), ErrQueueClosed)
}

func TestLocalQueueFull(t *testing.T) {
	r := NewRegistry(nil, logger.Discard())
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	r.Register("block", func(context.Context, Task) error {
		started <- struct{}{}
		<-release
		return nil
	})

	q := NewLocalQueue(r, 1, 1, nil, logger.Discard())
	first, _ := New("block", nil)
	require.NoError(t, q.Enqueue(context.Background(), first))

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("worker did not pick up task")
	}

	second, _ := New("block", nil)
	require.NoError(t, q.Enqueue(context.Background(), second))

	third, _ := New("block", nil)
	assert.ErrorIs(t, q.Enqueue(context.Background(), third), ErrQueueFull)

	close(release)
	q.Close()
}

type fakePublisher struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
}

func (f *fakePublisher) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func TestAMQPQueuePublishes(t *testing.T) {
	pub := &fakePublisher{}
	q := NewAMQPQueue(pub, nil, logger.Discard())

	task, _ := New("greet", greeting{Name: "frc971"})
	require.NoError(t, q.Enqueue(context.Background(), task))

	assert.Equal(t, Exchange, pub.exchange)
	assert.Equal(t, RoutingKey, pub.key)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.Equal(t, task.ID.String(), pub.msg.MessageId)

	var decoded Task
	require.NoError(t, json.Unmarshal(pub.msg.Body, &decoded))
	assert.Equal(t, task.ID, decoded.ID)
	assert.JSONEq(t, `{"name":"frc971"}`, string(decoded.Payload))
}

func TestAMQPQueuePublishError(t *testing.T) {
	q := NewAMQPQueue(&fakePublisher{err: amqp.ErrClosed}, nil, logger.Discard())
	task, _ := New("greet", nil)
	assert.ErrorIs(t, q.Enqueue(context.Background(), task), amqp.ErrClosed)
}
