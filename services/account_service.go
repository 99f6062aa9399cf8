package services

import (
	"context"
	"fmt"
	"log/slog"

	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/errors"
)

type IAccountService interface {
	Register(username, password string) (Token, error)
	Login(username, password string) (Token, error)
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

type Token string

// AccountService owns account creation and authentication. The routing
// engine never calls it: every identity the router sees is assumed to have
// passed through here first.
type AccountService struct {
	log            *slog.Logger
	userRepository contract.IUserRepository
	userIndex      contract.IUserIndex
	tokens         *auth.TokenManager
}

func NewAccountService(log *slog.Logger, repo contract.IUserRepository,
	index contract.IUserIndex, tokens *auth.TokenManager) IAccountService {
	return &AccountService{log: log, userRepository: repo, userIndex: index, tokens: tokens}
}

func (s *AccountService) Register(username, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		Username: username,
		Password: password,
	}

	// Validate before any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", err
	}

	// Hashing happens in the service layer to keep the repository unaware
	// of plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.userRepository.CreateUser(username, hashedPassword)
	if err != nil {
		return "", err // propagates ErrUserAlreadyExists when the name is taken
	}

	// Index failures are not fatal to registration: the account exists,
	// it is only missing from directory search until re-indexed.
	if err := s.userIndex.Index(username); err != nil {
		s.log.Warn("user created but not indexed", "username", username, "error", err)
	}

	token, err := s.tokens.Generate(userID, username)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AccountService) Login(username, password string) (Token, error) {
	user, err := s.userRepository.GetUserByName(username)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AccountService) Search(ctx context.Context, query string, limit int) ([]string, error) {
	return s.userIndex.Search(ctx, query, limit)
}
