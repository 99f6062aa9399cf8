package services

import (
	"context"

	"chat-relay/domain/chat"
	"chat-relay/runtime"
)

type IChatService interface {
	PostPublic(ctx context.Context, cmd chat.PostPublicCommand) (chat.Message, error)
	PostPrivate(ctx context.Context, cmd chat.PostPrivateCommand) error
	History(a, b string) ([]chat.Message, error)
	HistoryPage(q chat.HistoryQuery) ([]chat.Message, *string, error)
}

// ChatService is the thin application boundary in front of the router.
// Transport handlers depend on this interface, not on the engine itself.
type ChatService struct {
	router *runtime.Router
}

func NewChatService(router *runtime.Router) *ChatService {
	return &ChatService{router: router}
}

func (s *ChatService) PostPublic(ctx context.Context, cmd chat.PostPublicCommand) (chat.Message, error) {
	return s.router.AcceptPublic(ctx, cmd.Sender, cmd.Body)
}

func (s *ChatService) PostPrivate(ctx context.Context, cmd chat.PostPrivateCommand) error {
	return s.router.SendPrivate(ctx, cmd.Sender, cmd.Receiver, cmd.Body)
}

func (s *ChatService) History(a, b string) ([]chat.Message, error) {
	return s.router.FetchHistory(a, b)
}

func (s *ChatService) HistoryPage(q chat.HistoryQuery) ([]chat.Message, *string, error) {
	return s.router.FetchHistoryPage(q)
}
