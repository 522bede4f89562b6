package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blueoctober14/RightImpact/internal/match"
	"github.com/blueoctober14/RightImpact/internal/metrics"
	"github.com/blueoctober14/RightImpact/internal/model"
	"github.com/blueoctober14/RightImpact/internal/monitoring"
	"github.com/blueoctober14/RightImpact/internal/queue"
	"github.com/blueoctober14/RightImpact/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) Submit(ctx context.Context, kind model.JobKind, params model.JobParams) (*model.Job, error) {
	args := m.Called(ctx, kind, params)
	job, _ := args.Get(0).(*model.Job)
	return job, args.Error(1)
}

type failingMatcher struct{}

func (failingMatcher) MatchContactToLists(context.Context, int64, *int64) (*match.ContactResult, error) {
	return nil, errors.New("database unavailable")
}

type fixture struct {
	st     *store.SQLiteStore
	jobs   *mockSubmitter
	srv    http.Handler
	source *model.SourceContact
	list   *model.TargetList
	target *model.TargetContact
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	f := &fixture{st: st, jobs: new(mockSubmitter)}
	f.source = &model.SourceContact{FirstName: "Ana", LastName: "Ruiz", Mobile1: "(555) 123-4567"}
	require.NoError(t, st.CreateSourceContact(ctx, f.source))
	f.list = &model.TargetList{Name: "County voters", Status: model.ListStatusCompleted}
	require.NoError(t, st.CreateTargetList(ctx, f.list))
	f.target = &model.TargetContact{ListID: f.list.ID, VoterID: "V-1", FirstName: "Ana", LastName: "Ruiz", ZipCode: "73301", Cell1: "5551234567"}
	require.NoError(t, st.CreateTargetContact(ctx, f.target))

	reg := prometheus.NewRegistry()
	f.srv = NewServer(Deps{
		Matcher:     match.New(st, match.Options{Metrics: metrics.New(reg)}),
		Store:       st,
		Jobs:        f.jobs,
		Stats:       monitoring.NewCollector(st, func() int { return 0 }),
		Gatherer:    reg,
		CORSOrigins: []string{"*"},
	}).Routes()
	return f
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMatchContact_CreatesMatch(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/contacts/"+itoa(f.source.ID)+"/match")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[match.ContactResult](t, rec)
	assert.True(t, res.Found)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, f.target.ID, res.Matches[0].TargetContactID)
	assert.Equal(t, model.ConfidenceHigh, res.Matches[0].Confidence)

	rec = f.do(t, http.MethodGet, "/contacts/"+itoa(f.source.ID)+"/matches")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Matched bool                `json:"matched"`
		Matches []model.MatchDetail `json:"matches"`
	}](t, rec)
	assert.True(t, body.Matched)
	require.Len(t, body.Matches, 1)
	assert.Equal(t, "V-1", body.Matches[0].VoterID)
	assert.Equal(t, "County voters", body.Matches[0].TargetListName)

	rec = f.do(t, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rightimpact_matches_created_total 1")
}

func TestMatchContact_WithListFilter(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/contacts/"+itoa(f.source.ID)+"/match?list_id=9999")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[match.ContactResult](t, rec)
	assert.Equal(t, match.OutcomeNoLists, res.Outcome)
	assert.Empty(t, res.Matches)

	rec = f.do(t, http.MethodPost, "/contacts/"+itoa(f.source.ID)+"/match?list_id=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMatchContact_UnknownContact(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/contacts/4242/match")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[match.ContactResult](t, rec)
	assert.False(t, res.Found)
	assert.Empty(t, res.Matches)

	rec = f.do(t, http.MethodGet, "/contacts/4242/matches")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMatchContact_BadID(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/contacts/abc/match").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/contacts/0/match").Code)
}

func TestMatchContact_StorageFailure(t *testing.T) {
	srv := NewServer(Deps{Matcher: failingMatcher{}}).Routes()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/contacts/1/match", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"matching failed"}`, rec.Body.String())
}

func TestMatchNewContacts_Enqueues(t *testing.T) {
	f := newFixture(t)
	f.jobs.On("Submit", mock.Anything, model.JobKindNewContacts, model.JobParams{
		UserIDs:       []int64{3, 4},
		TargetListIDs: []int64{f.list.ID},
	}).Return(&model.Job{ID: "job-1", Kind: model.JobKindNewContacts, Status: model.JobStatusQueued}, nil)

	rec := f.do(t, http.MethodPost, "/match/new-contacts?user_id=3,4&list_id="+itoa(f.list.ID))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "/jobs/job-1", rec.Header().Get("Location"))
	job := decode[model.Job](t, rec)
	assert.Equal(t, "job-1", job.ID)
	f.jobs.AssertExpectations(t)
}

func TestMatchNewContacts_BadQuery(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/match/new-contacts?user_id=x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.jobs.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func TestMatchNewContacts_QueueFull(t *testing.T) {
	f := newFixture(t)
	f.jobs.On("Submit", mock.Anything, model.JobKindNewContacts, mock.Anything).Return(nil, queue.ErrQueueFull)

	rec := f.do(t, http.MethodPost, "/match/new-contacts")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMatchTargetList(t *testing.T) {
	f := newFixture(t)
	f.jobs.On("Submit", mock.Anything, model.JobKindTargetList, model.JobParams{TargetListID: f.list.ID}).
		Return(&model.Job{ID: "job-2", Kind: model.JobKindTargetList, Status: model.JobStatusQueued}, nil)

	rec := f.do(t, http.MethodPost, "/targets/"+itoa(f.list.ID)+"/match")
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(t, http.MethodPost, "/targets/9999/match")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	f.jobs.AssertNumberOfCalls(t, "Submit", 1)
}

func TestJobsEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := &model.Job{ID: "job-9", Kind: model.JobKindTargetList, Params: model.JobParams{TargetListID: f.list.ID}}
	require.NoError(t, f.st.CreateJob(ctx, job))
	require.NoError(t, f.st.StartJob(ctx, job.ID))
	require.NoError(t, f.st.CompleteJob(ctx, job.ID, &model.BatchSummary{TotalContacts: 1, ProcessedContacts: 1, Success: true}))

	rec := f.do(t, http.MethodGet, "/jobs/job-9")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[model.Job](t, rec)
	assert.Equal(t, model.JobStatusComplete, got.Status)
	require.NotNil(t, got.Summary)
	assert.True(t, got.Summary.Success)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/jobs/nope").Code)

	rec = f.do(t, http.MethodGet, "/jobs?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Job](t, rec), 1)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/jobs?limit=0").Code)

	rec = f.do(t, http.MethodGet, "/stats?hours=1")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[monitoring.Snapshot](t, rec)
	assert.Equal(t, 1, snap.JobsComplete)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/jobs", nil)
	req.Header.Set("Origin", "https://app.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestInt64List(t *testing.T) {
	got, err := int64List([]string{"1,2", " 3 ", ""})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, got)

	_, err = int64List([]string{"1,x"})
	assert.Error(t, err)

	got, err = int64List(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
