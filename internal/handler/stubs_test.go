package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pingpanda/pingpanda/internal/analytics"
	"github.com/pingpanda/pingpanda/internal/auth"
	"github.com/pingpanda/pingpanda/internal/model"
	"github.com/pingpanda/pingpanda/internal/service"
)

type stubCategories struct {
	summaries []*model.CategorySummary
	created   *model.Category
	count     int
	hasEvents bool
	err       error

	gotCreate service.CreateCategoryInput
	gotName   string
}

func (s *stubCategories) ListCategories(ctx context.Context, userID string) ([]*model.CategorySummary, error) {
	return s.summaries, s.err
}

func (s *stubCategories) CreateCategory(ctx context.Context, userID string, input service.CreateCategoryInput) (*model.Category, error) {
	s.gotCreate = input
	return s.created, s.err
}

func (s *stubCategories) DeleteCategory(ctx context.Context, userID, name string) error {
	s.gotName = name
	return s.err
}

func (s *stubCategories) Quickstart(ctx context.Context, userID string) (int, error) {
	return s.count, s.err
}

func (s *stubCategories) Poll(ctx context.Context, userID, name string) (bool, error) {
	s.gotName = name
	return s.hasEvents, s.err
}

type stubQueries struct {
	page *model.EventPage
	err  error
	got  service.ListEventsInput
}

func (s *stubQueries) ListEvents(ctx context.Context, userID string, input service.ListEventsInput) (*model.EventPage, error) {
	s.got = input
	return s.page, s.err
}

type stubAnalytics struct {
	result *analytics.Result
	err    error
	got    service.AnalyticsInput
}

func (s *stubAnalytics) Aggregate(ctx context.Context, userID string, input service.AnalyticsInput) (*analytics.Result, error) {
	s.got = input
	return s.result, s.err
}

type stubIngest struct {
	event *model.Event
	err   error
	got   service.IngestEventInput
}

func (s *stubIngest) Ingest(ctx context.Context, userID string, input service.IngestEventInput) (*model.Event, error) {
	s.got = input
	return s.event, s.err
}

type stubAccounts struct {
	account *service.Account
	rotated *model.APIKeyRotateResponse
	err     error
}

func (s *stubAccounts) GetAccount(ctx context.Context, userID string) (*service.Account, error) {
	return s.account, s.err
}

func (s *stubAccounts) RotateAPIKey(ctx context.Context, ac *model.AuthContext) (*model.APIKeyRotateResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	if ac == nil || !ac.IsSession() {
		return nil, service.ErrUnauthorized
	}
	return s.rotated, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var apiKeyCaller = &model.AuthContext{UserID: "user-1", Plan: model.PlanFree, Method: model.AuthMethodAPIKey}

// serve routes one request through a chi router so URL params resolve.
func serve(pattern, method, target, body string, caller *model.AuthContext, fn http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, fn)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if caller != nil {
		req = req.WithContext(auth.ContextWithAuth(req.Context(), caller))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}
