package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"chat-relay/contract"
	"chat-relay/errors"
)

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) contract.IUserRepository {
	return &UserRepository{db: db}
}

// CreateUser persists a new account keyed by username. The username is the
// stable join key across presence and history; it is immutable once assigned.
func (u *UserRepository) CreateUser(username, passwordHash string) (string, error) {
	user := contract.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().Unix(),
	}

	data, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		key := []byte("user:" + username)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// GetUserByName retrieves an account by its username.
func (u *UserRepository) GetUserByName(username string) (contract.User, error) {
	var user contract.User

	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("user:" + username))
		if err != nil {
			return err // handled as ErrInvalidCredentials by the caller
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if err != nil {
		return contract.User{}, err
	}
	return user, nil
}
