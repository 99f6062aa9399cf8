package e2e

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"

	"chat-relay/domain/chat"
)

type APISuite struct {
	BaseAPISuite
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type historyResponse struct {
	Messages []chat.Message `json:"messages"`
	Cursor   *string        `json:"cursor,omitempty"`
}

const strongPassword = "S3cure!Passw0rd"

func (s *APISuite) register(username string) string {
	var tr tokenResponse
	status := s.DoJSON(http.MethodPost, "/api/auth/register", "",
		credentials{Username: username, Password: strongPassword}, &tr)
	s.Require().Equal(http.StatusCreated, status)
	s.Require().NotEmpty(tr.Token)
	return tr.Token
}

func (s *APISuite) TestScenario_AccountLifecycle() {
	s.Header("Account lifecycle")

	s.register("zoe")

	// Duplicate registration is refused
	status := s.DoJSON(http.MethodPost, "/api/auth/register", "",
		credentials{Username: "zoe", Password: strongPassword}, nil)
	s.Require().Equal(http.StatusConflict, status)

	// Login with the right password succeeds
	var tr tokenResponse
	status = s.DoJSON(http.MethodPost, "/api/auth/login", "",
		credentials{Username: "zoe", Password: strongPassword}, &tr)
	s.Require().Equal(http.StatusOK, status)
	s.Require().NotEmpty(tr.Token)

	// A wrong password is rejected without detail
	status = s.DoJSON(http.MethodPost, "/api/auth/login", "",
		credentials{Username: "zoe", Password: "Wrong!Passw0rd00"}, nil)
	s.Require().Equal(http.StatusUnauthorized, status)
}

func (s *APISuite) TestScenario_DirectorySearch() {
	s.Header("Directory search")

	token := s.register("martin")
	s.register("martha")

	var names []string
	status := s.DoJSON(http.MethodGet, "/api/users?q=mart", token, nil, &names)
	s.Require().Equal(http.StatusOK, status)
	s.Require().Subset(names, []string{"martin", "martha"})
}

func (s *APISuite) TestScenario_HistoryThroughTheAPI() {
	s.Header("History through the API")

	aliceToken := s.register("histalice")
	bobToken := s.register("histbob")

	ctx := context.Background()
	s.Require().NoError(s.Router.SendPrivate(ctx, "histalice", "histbob", "first"))
	s.Require().NoError(s.Router.SendPrivate(ctx, "histbob", "histalice", "second"))

	// Both participants see the same ascending conversation
	var fromAlice historyResponse
	status := s.DoJSON(http.MethodGet, "/api/history/histbob?order=asc", aliceToken, nil, &fromAlice)
	s.Require().Equal(http.StatusOK, status)
	s.Require().Len(fromAlice.Messages, 2)
	s.Require().Equal("first", fromAlice.Messages[0].Body)
	s.Require().Equal("second", fromAlice.Messages[1].Body)

	var fromBob historyResponse
	status = s.DoJSON(http.MethodGet, "/api/history/histalice?order=asc", bobToken, nil, &fromBob)
	s.Require().Equal(http.StatusOK, status)
	s.Require().Equal(fromAlice.Messages, fromBob.Messages)

	// The default page comes newest first with a resume cursor
	var page historyResponse
	status = s.DoJSON(http.MethodGet, "/api/history/histbob", aliceToken, nil, &page)
	s.Require().Equal(http.StatusOK, status)
	s.Require().Len(page.Messages, 2)
	s.Require().Equal("second", page.Messages[0].Body)
}

func (s *APISuite) TestScenario_PublicFeedAndModeration() {
	s.Header("Public feed and moderation")

	token := s.register("feedreader")

	_, err := s.Router.AcceptPublic(context.Background(), "feedreader", "beware the badger")
	s.Require().NoError(err)

	var feed historyResponse
	status := s.DoJSON(http.MethodGet, "/api/history/public", token, nil, &feed)
	s.Require().Equal(http.StatusOK, status)
	s.Require().NotEmpty(feed.Messages)
	s.Require().Equal("beware the ******", feed.Messages[0].Body)
}

func (s *APISuite) TestScenario_AuthIsEnforced() {
	s.Header("Auth is enforced")

	status := s.DoJSON(http.MethodGet, "/api/history/public", "", nil, nil)
	s.Require().Equal(http.StatusUnauthorized, status)

	status = s.DoJSON(http.MethodGet, "/api/users?q=any", "invalid-token", nil, nil)
	s.Require().Equal(http.StatusUnauthorized, status)
}
