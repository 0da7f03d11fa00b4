package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yasu-888/monologue-muser/internal/domain/event"
	"github.com/yasu-888/monologue-muser/internal/usecase"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const bareObject = `{"bucket":"b","name":"20240101_ab12cd34_ideas.aiff","timeCreated":"2024-01-01T00:00:00Z"}`

type fakeSource struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []kafka.Message
	cancel    context.CancelFunc
}

func (s *fakeSource) FetchMessage(ctx context.Context) (kafka.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.messages) == 0 {
		s.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := s.messages[0]
	s.messages = s.messages[1:]
	return msg, nil
}

func (s *fakeSource) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, msgs...)
	return nil
}

type countingProcessor struct {
	objects []event.Object
}

func (p *countingProcessor) Execute(_ context.Context, obj event.Object) usecase.Report {
	p.objects = append(p.objects, obj)
	return usecase.Report{Status: usecase.StatusCompleted}
}

func TestHandler_CommitsEveryMessageOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &fakeSource{
		cancel: cancel,
		messages: []kafka.Message{
			{Offset: 1, Value: []byte(bareObject)},
			{Offset: 2, Value: []byte("not json")},
			{Offset: 3, Value: []byte(bareObject)},
		},
	}
	processor := &countingProcessor{}

	require.NoError(t, NewHandler(source, processor, discard).Run(ctx))

	assert.Len(t, processor.objects, 2)
	require.Len(t, source.committed, 3)
	assert.Equal(t, int64(2), source.committed[1].Offset)
}

func TestDecode(t *testing.T) {
	structured := `{"specversion":"1.0","id":"1","source":"//storage.googleapis.com/projects/_/buckets/b",` +
		`"type":"google.cloud.storage.object.v1.finalized","datacontenttype":"application/json","data":` + bareObject + `}`

	tests := []struct {
		name  string
		value string
		err   bool
	}{
		{name: "bare storage object", value: bareObject},
		{name: "structured cloudevent", value: structured},
		{name: "empty", value: "  ", err: true},
		{name: "garbage", value: "{", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := Decode([]byte(tt.value))
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "b", obj.Bucket)
			assert.Equal(t, "20240101_ab12cd34_ideas.aiff", obj.Name)
			assert.Equal(t, "2024-01-01T00:00:00Z", obj.EventTime())
		})
	}
}

func TestDecode_OptionalFieldsDoNotDropMessage(t *testing.T) {
	payloads := []string{
		`{"bucket":"b","name":"20240101_ab12cd34_ideas.aiff","timeCreated":""}`,
		`{"bucket":"b","name":"20240101_ab12cd34_ideas.aiff","timeCreated":"2024-01-01 00:00:00"}`,
		`{"bucket":"b","name":"20240101_ab12cd34_ideas.aiff","size":1234}`,
	}

	for _, payload := range payloads {
		obj, err := Decode([]byte(payload))
		require.NoError(t, err, payload)
		assert.Equal(t, "b", obj.Bucket)
		assert.Equal(t, "20240101_ab12cd34_ideas.aiff", obj.Name)
	}

	obj, err := Decode([]byte(payloads[1]))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01 00:00:00", obj.EventTime(), "event time is passed through unparsed")
}

func TestDecode_EmptyIsSentinel(t *testing.T) {
	_, err := Decode(nil)
	assert.True(t, errors.Is(err, ErrEmptyMessage))
}
