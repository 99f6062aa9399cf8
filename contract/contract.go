//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-relay/domain/chat"
	"chat-relay/domain/event"
)

type WorkerName string

// Worker doesn't protect itself.
// Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink consumes observability events emitted after accept decisions.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// IMessageRepository is the durable, append-only history store.
// Store must be safe for concurrent writers; ordering across senders is
// guaranteed by the router's shared clock, not by the store.
type IMessageRepository interface {
	Store(message chat.Message) (chat.Message, error)
	Query(a, b string) ([]chat.Message, error)
	QueryLatest(a, b string, cursor *string) ([]chat.Message, *string, error)
}

type IUserRepository interface {
	CreateUser(username, passwordHash string) (string, error)
	GetUserByName(username string) (User, error)
}

// User is the repository-level representation of an account.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    int64
}

// IUserIndex is the full-text index backing username search.
type IUserIndex interface {
	Index(username string) error
	Search(ctx context.Context, query string, limit int) ([]string, error)
}
