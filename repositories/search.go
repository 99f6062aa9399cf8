package repositories

import (
	"context"
	"log/slog"
	"strings"

	"github.com/blugelabs/bluge"

	"chat-relay/contract"
)

// UserIndex is the full-text index over usernames backing directory search.
// It is an eventually consistent read model: the badger user store stays
// the source of truth.
type UserIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewUserIndex(writer *bluge.Writer, log *slog.Logger) contract.IUserIndex {
	return &UserIndex{writer: writer, log: log}
}

// Index adds (or re-adds) a username to the search index. Update is an
// upsert keyed by document id, so re-indexing is idempotent.
func (ui *UserIndex) Index(username string) error {
	doc := bluge.NewDocument(username).
		AddField(bluge.NewTextField("username", strings.ToLower(username)).StoreValue())
	return ui.writer.Update(doc.ID(), doc)
}

// Search returns up to limit usernames matching the query, by prefix or by
// full term, case-insensitively.
func (ui *UserIndex) Search(ctx context.Context, query string, limit int) ([]string, error) {
	reader, err := ui.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			ui.log.Debug("closing index reader", "error", err)
		}
	}()

	term := strings.ToLower(strings.TrimSpace(query))
	q := bluge.NewBooleanQuery().
		AddShould(bluge.NewPrefixQuery(term).SetField("username")).
		AddShould(bluge.NewMatchQuery(term).SetField("username"))

	it, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, err
	}

	var names []string
	match, err := it.Next()
	for err == nil && match != nil {
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				names = append(names, string(value))
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		match, err = it.Next()
	}
	if err != nil {
		return nil, err
	}
	return names, nil
}
