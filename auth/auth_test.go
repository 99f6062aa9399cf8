package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-relay/errors"
)

func Test_Hash_And_Compare_Password(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("S3cure!Passw0rd")
	req.NoError(err)
	req.Contains(hash, "$argon2id$")

	ok, err := ComparePassword("S3cure!Passw0rd", hash)
	req.NoError(err)
	req.True(ok)

	ok, err = ComparePassword("wrong password", hash)
	req.NoError(err)
	req.False(ok)
}

func Test_Hashing_Is_Salted(t *testing.T) {
	req := require.New(t)

	first, err := HashPassword("S3cure!Passw0rd")
	req.NoError(err)
	second, err := HashPassword("S3cure!Passw0rd")
	req.NoError(err)
	req.NotEqual(first, second)
}

func Test_Compare_Rejects_Malformed_Hash(t *testing.T) {
	req := require.New(t)

	_, err := ComparePassword("whatever", "not-a-phc-string")
	req.Error(err)
}

func Test_Token_Roundtrip(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("test-secret", time.Hour)

	token, err := manager.Generate("user-123", "alice")
	req.NoError(err)

	claims, err := manager.Validate(token)
	req.NoError(err)
	req.Equal("user-123", claims.UserID)
	req.Equal("alice", claims.Username)
}

func Test_Token_Wrong_Secret_Is_Rejected(t *testing.T) {
	req := require.New(t)

	token, err := NewTokenManager("secret-a", time.Hour).Generate("u", "alice")
	req.NoError(err)

	_, err = NewTokenManager("secret-b", time.Hour).Validate(token)
	req.Error(err)
}

func Test_Expired_Token_Is_Rejected(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("test-secret", -time.Minute)

	token, err := manager.Generate("u", "alice")
	req.NoError(err)

	_, err = manager.Validate(token)
	req.Error(err)
}

func Test_Validate_Register(t *testing.T) {
	req := require.New(t)

	req.NoError(ValidateRegister(RegisterRequest{
		Username: "alice42",
		Password: "S3cure!Passw0rd",
	}))

	// Separator characters in usernames would corrupt storage keys.
	err := ValidateRegister(RegisterRequest{
		Username: "al|ice",
		Password: "S3cure!Passw0rd",
	})
	req.ErrorIs(err, errors.ErrInvalidUsername)

	err = ValidateRegister(RegisterRequest{
		Username: "ab",
		Password: "S3cure!Passw0rd",
	})
	req.ErrorIs(err, errors.ErrInvalidUsername)

	err = ValidateRegister(RegisterRequest{
		Username: "alice42",
		Password: "short",
	})
	req.ErrorIs(err, errors.ErrInvalidUsername)

	err = ValidateRegister(RegisterRequest{
		Username: "alice42",
		Password: "NoSpecialChar123x",
	})
	req.ErrorIs(err, errors.ErrInvalidPassword)
}
