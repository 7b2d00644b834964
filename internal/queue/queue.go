package queue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"classattend/internal/attendance"
)

// Message types.
const (
	TypeWindowOpened = "window.opened"
)

// DefaultKey is the Redis list course events are pushed to.
const DefaultKey = "classattend:events"

// Message is one course event.
type Message struct {
	Type string
	Body []byte
}

// WindowOpened is the body of a TypeWindowOpened message.
type WindowOpened struct {
	CourseID  string               `json:"course_id"`
	SessionID string               `json:"session_id"`
	Date      string               `json:"date"`
	End       attendance.TimeOfDay `json:"end"`
}

// NewWindowOpened builds the event announcing w.
func NewWindowOpened(w attendance.Window) (Message, error) {
	body, err := json.Marshal(WindowOpened{CourseID: w.CourseID, SessionID: w.ID, Date: w.Date(), End: w.End})
	if err != nil {
		return Message{}, errors.Wrap(err, "encode window.opened")
	}
	return Message{Type: TypeWindowOpened, Body: body}, nil
}

// DecodeWindowOpened parses the body of a TypeWindowOpened message.
func DecodeWindowOpened(msg Message) (WindowOpened, error) {
	if msg.Type != TypeWindowOpened {
		return WindowOpened{}, errors.Errorf("unexpected message type %q", msg.Type)
	}
	var evt WindowOpened
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		return WindowOpened{}, errors.Wrap(err, "decode window.opened")
	}
	return evt, nil
}

// Queue carries course events between the API and the sweeper.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
}

// InMemory is a buffered channel shared by publisher and consumer in one process.
type InMemory struct {
	ch chan Message
}

func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Message, size)}
}

// Publish blocks while the buffer is full.
func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume forwards buffered messages until ctx is done, then closes the channel.
func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-q.ch:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

const (
	pollTimeout = 5 * time.Second
	pollBackoff = time.Second
)

// RedisQueue is a Redis list: producers LPUSH, consumers BRPOP.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue uses DefaultKey when key is empty.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	return errors.Wrapf(q.client.LPush(ctx, q.key, serialize(msg)).Err(), "lpush %s", q.key)
}

// Consume streams messages using BRPOP. Connection errors are retried after
// pollBackoff until ctx is done.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, pollTimeout, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, redis.Nil) {
					select {
					case <-time.After(pollBackoff):
					case <-ctx.Done():
						return
					}
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			select {
			case out <- deserialize(res[1]):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// serialize stores messages as Type|Body. Types never contain '|'.
func serialize(msg Message) string {
	return msg.Type + "|" + string(msg.Body)
}

func deserialize(s string) Message {
	typ, body, ok := strings.Cut(s, "|")
	if !ok {
		return Message{Body: []byte(s)}
	}
	return Message{Type: typ, Body: []byte(body)}
}
