package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-vision/facesearch-go/internal/domain/model"
)

func newTestQueue(t *testing.T) (*RedisDispatcher, *RedisConsumer, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	dispatcher, err := NewRedisDispatcher(DispatcherOptions{
		Client: client,
		Queue:  "faces_search_queue",
	})
	require.NoError(t, err)

	consumer, err := NewRedisConsumer(ConsumerOptions{
		Client:      client,
		Queue:       "faces_search_queue",
		PollTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	return dispatcher, consumer, mr
}

func TestRedisDispatcher_Dispatch(t *testing.T) {
	dispatcher, _, mr := newTestQueue(t)

	task := &model.SearchTask{
		CorrelationID:    "abc-123",
		SubjectReference: "s3://suspects/img.jpg",
		Parameters:       json.RawMessage(`{"top_k":5}`),
	}

	require.NoError(t, dispatcher.Dispatch(context.Background(), task))

	raw, err := mr.Lpop("faces_search_queue")
	require.NoError(t, err)

	var got model.SearchTask
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, "abc-123", got.CorrelationID)
	assert.Equal(t, "s3://suspects/img.jpg", got.SubjectReference)
	assert.JSONEq(t, `{"top_k":5}`, string(got.Parameters))
}

func TestRedisDispatcher_Dispatch_Validation(t *testing.T) {
	dispatcher, _, _ := newTestQueue(t)

	assert.Error(t, dispatcher.Dispatch(context.Background(), nil))
	assert.Error(t, dispatcher.Dispatch(context.Background(), &model.SearchTask{
		SubjectReference: "s3://suspects/img.jpg",
	}))
}

func TestRedisConsumer_Next_RoundTrip(t *testing.T) {
	dispatcher, consumer, _ := newTestQueue(t)
	ctx := context.Background()

	want := &model.SearchTask{
		CorrelationID:    "abc-123",
		SubjectReference: "s3://suspects/img.jpg",
	}
	require.NoError(t, dispatcher.Dispatch(ctx, want))

	got, err := consumer.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.CorrelationID, got.CorrelationID)
	assert.Equal(t, want.SubjectReference, got.SubjectReference)
}

func TestRedisConsumer_Next_FIFO(t *testing.T) {
	dispatcher, consumer, _ := newTestQueue(t)
	ctx := context.Background()

	for _, id := range []string{"first", "second", "third"} {
		require.NoError(t, dispatcher.Dispatch(ctx, &model.SearchTask{
			CorrelationID:    id,
			SubjectReference: "s3://suspects/img.jpg",
		}))
	}

	for _, want := range []string{"first", "second", "third"} {
		got, err := consumer.Next(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want, got.CorrelationID)
	}
}

func TestRedisConsumer_Next_TimeoutReturnsNil(t *testing.T) {
	_, consumer, _ := newTestQueue(t)

	got, err := consumer.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisConsumer_Next_MalformedPayload(t *testing.T) {
	_, consumer, mr := newTestQueue(t)

	mr.Lpush("faces_search_queue", "not json")

	_, err := consumer.Next(context.Background())
	assert.Error(t, err)
}

func TestNewRedisDispatcher_Validation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	_, err := NewRedisDispatcher(DispatcherOptions{Queue: "q"})
	assert.Error(t, err)

	_, err = NewRedisDispatcher(DispatcherOptions{Client: client})
	assert.Error(t, err)
}
