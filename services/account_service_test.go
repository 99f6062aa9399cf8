package services

import (
	"context"
	stderrors "errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/errors"
	"chat-relay/mocks"
)

const goodPassword = "S3cure!Passw0rd"

func newAccountService(t *testing.T) (IAccountService, *mocks.MockIUserRepository, *mocks.MockIUserIndex) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	repo := mocks.NewMockIUserRepository(ctrl)
	index := mocks.NewMockIUserIndex(ctrl)
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	return NewAccountService(slog.Default(), repo, index, tokens), repo, index
}

func Test_Register_Creates_User_And_Returns_Token(t *testing.T) {
	req := require.New(t)
	service, repo, index := newAccountService(t)

	repo.EXPECT().CreateUser("alice", gomock.Any()).
		DoAndReturn(func(_ string, hash string) (string, error) {
			// The repository must never see a plain password.
			req.NotEqual(goodPassword, hash)
			req.Contains(hash, "$argon2id$")
			return "user-123", nil
		})
	index.EXPECT().Index("alice").Return(nil)

	token, err := service.Register("alice", goodPassword)
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := auth.NewTokenManager("test-secret", time.Hour).Validate(string(token))
	req.NoError(err)
	req.Equal("alice", claims.Username)
	req.Equal("user-123", claims.UserID)
}

func Test_Register_Rejects_Invalid_Input_Before_Storage(t *testing.T) {
	req := require.New(t)
	service, _, _ := newAccountService(t)

	// No repository expectation: validation failures never reach storage.
	_, err := service.Register("a|b", goodPassword)
	req.ErrorIs(err, errors.ErrInvalidUsername)

	_, err = service.Register("alice", "weakpassword1234")
	req.ErrorIs(err, errors.ErrInvalidPassword)
}

func Test_Register_Propagates_Taken_Username(t *testing.T) {
	req := require.New(t)
	service, repo, _ := newAccountService(t)

	repo.EXPECT().CreateUser("alice", gomock.Any()).
		Return("", errors.ErrUserAlreadyExists)

	_, err := service.Register("alice", goodPassword)
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_Register_Survives_Index_Failure(t *testing.T) {
	req := require.New(t)
	service, repo, index := newAccountService(t)

	repo.EXPECT().CreateUser("alice", gomock.Any()).Return("user-123", nil)
	index.EXPECT().Index("alice").Return(stderrors.New("index unavailable"))

	// The account exists; the directory catches up later.
	token, err := service.Register("alice", goodPassword)
	req.NoError(err)
	req.NotEmpty(token)
}

func Test_Login_Succeeds_With_Valid_Credentials(t *testing.T) {
	req := require.New(t)
	service, repo, _ := newAccountService(t)

	hash, err := auth.HashPassword(goodPassword)
	req.NoError(err)
	repo.EXPECT().GetUserByName("alice").
		Return(contract.User{ID: "user-123", Username: "alice", PasswordHash: hash}, nil)

	token, err := service.Login("alice", goodPassword)
	req.NoError(err)
	req.NotEmpty(token)
}

func Test_Login_Errors_Are_Indistinguishable(t *testing.T) {
	req := require.New(t)
	service, repo, _ := newAccountService(t)

	// Unknown user and wrong password return the same error, so a caller
	// cannot probe which usernames exist.
	repo.EXPECT().GetUserByName("ghost").
		Return(contract.User{}, stderrors.New("not found"))
	_, err := service.Login("ghost", goodPassword)
	req.ErrorIs(err, errors.ErrInvalidCredentials)

	hash, err := auth.HashPassword(goodPassword)
	req.NoError(err)
	repo.EXPECT().GetUserByName("alice").
		Return(contract.User{ID: "user-123", Username: "alice", PasswordHash: hash}, nil)
	_, err = service.Login("alice", "wrong password!1A")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}

func Test_Search_Delegates_To_Index(t *testing.T) {
	req := require.New(t)
	service, _, index := newAccountService(t)

	index.EXPECT().Search(gomock.Any(), "al", 5).
		Return([]string{"alice", "albert"}, nil)

	names, err := service.Search(context.Background(), "al", 5)
	req.NoError(err)
	req.Equal([]string{"alice", "albert"}, names)
}
