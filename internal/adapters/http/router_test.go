package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
)

type annotatorFake struct {
	blurb     *domain.Blurb
	blurbErr  error
	breakdown *domain.BudgetBreakdown
}

func (f *annotatorFake) AnnotateItem(context.Context, domain.BallotItem, domain.VoterProfile, *domain.UsedVectorSet) ([]domain.Annotation, error) {
	return nil, nil
}

func (f *annotatorFake) AnnotateBatch(context.Context, []domain.BallotItem, domain.VoterProfile) map[string][]domain.Annotation {
	return nil
}

func (f *annotatorFake) Blurb(context.Context, domain.BallotItem, domain.VoterProfile) (*domain.Blurb, error) {
	if f.blurbErr != nil {
		return nil, f.blurbErr
	}
	return f.blurb, nil
}

func (f *annotatorFake) BudgetBreakdown(_ context.Context, _ domain.BallotItem, _ domain.VoterProfile, categories []string) (*domain.BudgetBreakdown, error) {
	if f.breakdown != nil {
		return f.breakdown, nil
	}
	out := &domain.BudgetBreakdown{ItemID: "q1", Categories: map[string]domain.BudgetCategory{}}
	for _, c := range categories {
		out.Categories[c] = domain.BudgetCategory{
			Explanation: domain.NeutralExplanation,
			Direction:   domain.DirectionNoChange,
			Citations:   []domain.Citation{},
		}
	}
	return out, nil
}

type ingestorFake struct {
	doc *domain.SourceDocument
	err error
}

func (f *ingestorFake) Upload(_ context.Context, meta domain.SourceDocument, body io.Reader) (*domain.SourceDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, err := io.ReadAll(body); err != nil {
		return nil, err
	}
	doc := *f.doc
	doc.Filename = meta.Filename
	return &doc, nil
}

type ballotRepoFakeHTTP struct {
	items []domain.BallotItem
	err   error
}

func (f *ballotRepoFakeHTTP) List(context.Context) ([]domain.BallotItem, error) {
	return f.items, f.err
}

func (f *ballotRepoFakeHTTP) Create(_ context.Context, item *domain.BallotItem) error {
	if f.err != nil {
		return f.err
	}
	f.items = append(f.items, *item)
	return nil
}

func (f *ballotRepoFakeHTTP) GetByIDs(_ context.Context, ids []string) ([]domain.BallotItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.BallotItem, 0)
	for _, item := range f.items {
		for _, id := range ids {
			if item.ID == id {
				out = append(out, item)
			}
		}
	}
	return out, nil
}

type profileRepoFakeHTTP struct {
	profiles map[string]*domain.VoterProfile
	created  []*domain.VoterProfile
}

func (f *profileRepoFakeHTTP) Create(_ context.Context, p *domain.VoterProfile) error {
	f.created = append(f.created, p)
	return nil
}

func (f *profileRepoFakeHTTP) GetByID(_ context.Context, id string) (*domain.VoterProfile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get voter profile", errors.New(id))
	}
	return p, nil
}

type jobRepoFakeHTTP struct {
	jobs        map[string]*domain.AnnotationJob
	annotations map[string][]domain.Annotation
	created     []*domain.AnnotationJob
}

func (f *jobRepoFakeHTTP) CreateJob(_ context.Context, job *domain.AnnotationJob) error {
	f.created = append(f.created, job)
	return nil
}

func (f *jobRepoFakeHTTP) GetJob(_ context.Context, id string) (*domain.AnnotationJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get annotation job", errors.New(id))
	}
	return job, nil
}

func (f *jobRepoFakeHTTP) UpdateJobStatus(context.Context, string, domain.JobStatus, string) error {
	return nil
}

func (f *jobRepoFakeHTTP) SaveAnnotations(context.Context, string, []domain.Annotation) error {
	return nil
}

func (f *jobRepoFakeHTTP) ListAnnotationsByJob(_ context.Context, id string) ([]domain.Annotation, error) {
	return f.annotations[id], nil
}

type sourceRepoFakeHTTP struct {
	docs map[string]*domain.SourceDocument
}

func (f *sourceRepoFakeHTTP) Create(context.Context, *domain.SourceDocument) error { return nil }

func (f *sourceRepoFakeHTTP) GetByID(_ context.Context, id string) (*domain.SourceDocument, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get source document", errors.New(id))
	}
	return doc, nil
}

func (f *sourceRepoFakeHTTP) UpdateStatus(context.Context, string, domain.SourceStatus, string) error {
	return nil
}

type queueFakeHTTP struct {
	jobIDs []string
	err    error
}

func (f *queueFakeHTTP) PublishAnnotationJob(_ context.Context, jobID string) error {
	if f.err != nil {
		return f.err
	}
	f.jobIDs = append(f.jobIDs, jobID)
	return nil
}

func (f *queueFakeHTTP) SubscribeAnnotationJobs(context.Context, func(context.Context, string) error) error {
	return nil
}

func (f *queueFakeHTTP) PublishSourceIngested(context.Context, string) error { return nil }

func (f *queueFakeHTTP) SubscribeSourceIngested(context.Context, func(context.Context, string) error) error {
	return nil
}

type routerFixture struct {
	annotator *annotatorFake
	ballot    *ballotRepoFakeHTTP
	profiles  *profileRepoFakeHTTP
	jobs      *jobRepoFakeHTTP
	queue     *queueFakeHTTP
	handler   http.Handler
}

func newRouterFixture() *routerFixture {
	annotator := &annotatorFake{
		blurb: &domain.Blurb{
			ItemID:    "q1",
			Text:      "A short explanation.",
			Citations: []domain.Citation{{Title: "Memo", URL: "https://example.org/memo"}},
		},
	}
	profiles := &profileRepoFakeHTTP{profiles: map[string]*domain.VoterProfile{
		"prof-1": {ID: "prof-1", Issues: map[string][]string{"housing": {"rents"}}},
	}}
	jobs := &jobRepoFakeHTTP{
		jobs:        map[string]*domain.AnnotationJob{},
		annotations: map[string][]domain.Annotation{},
	}
	queue := &queueFakeHTTP{}
	ballot := &ballotRepoFakeHTTP{items: []domain.BallotItem{{ID: "q1", Kind: domain.KindQuestion, Title: "Question 1"}}}

	router := NewRouter(
		annotator,
		&ingestorFake{doc: &domain.SourceDocument{ID: "src-1", Status: domain.SourceUploaded}},
		ballot,
		profiles,
		jobs,
		&sourceRepoFakeHTTP{docs: map[string]*domain.SourceDocument{
			"src-1": {ID: "src-1", Status: domain.SourceIndexed},
		}},
		queue,
		RouterOptions{BudgetCategories: []string{"education", "transit"}},
	)
	return &routerFixture{
		annotator: annotator,
		ballot:    ballot,
		profiles:  profiles,
		jobs:      jobs,
		queue:     queue,
		handler:   router.Handler(),
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHealthzEndpoint(t *testing.T) {
	fx := newRouterFixture()
	res := doJSON(t, fx.handler, http.MethodGet, "/healthz", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestCreateBlurbSuccess(t *testing.T) {
	fx := newRouterFixture()
	res := doJSON(t, fx.handler, http.MethodPost, "/v1/blurbs", map[string]string{
		"item_id":    "q1",
		"profile_id": "prof-1",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var blurb domain.Blurb
	if err := json.NewDecoder(res.Body).Decode(&blurb); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if blurb.Text != "A short explanation." || len(blurb.Citations) != 1 {
		t.Fatalf("unexpected blurb %+v", blurb)
	}
}

func TestCreateBlurbUnknownItemReturns404(t *testing.T) {
	fx := newRouterFixture()
	res := doJSON(t, fx.handler, http.MethodPost, "/v1/blurbs", map[string]string{"item_id": "nope"})
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestCreateBlurbMalformedModelOutputReturns502(t *testing.T) {
	fx := newRouterFixture()
	fx.annotator.blurbErr = domain.NewMalformedOutputError(domain.FlavorBlurb, "not json", errors.New("parse"))

	res := doJSON(t, fx.handler, http.MethodPost, "/v1/blurbs", map[string]string{"item_id": "q1"})
	if res.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", res.Code)
	}
}

func TestCreateBlurbTemporaryFailureReturns503(t *testing.T) {
	fx := newRouterFixture()
	fx.annotator.blurbErr = domain.WrapError(domain.ErrTemporary, "complete", errors.New("overloaded"))

	res := doJSON(t, fx.handler, http.MethodPost, "/v1/blurbs", map[string]string{"item_id": "q1"})
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestCreateBudgetBreakdownUsesConfiguredCategories(t *testing.T) {
	fx := newRouterFixture()
	res := doJSON(t, fx.handler, http.MethodPost, "/v1/budget/breakdown", map[string]string{"item_id": "q1"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var breakdown domain.BudgetBreakdown
	if err := json.NewDecoder(res.Body).Decode(&breakdown); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(breakdown.Categories) != 2 {
		t.Fatalf("expected both configured categories, got %v", breakdown.Categories)
	}
	if _, ok := breakdown.Categories["transit"]; !ok {
		t.Fatalf("missing transit category: %v", breakdown.Categories)
	}
}

func TestCreateBallotItemSuccess(t *testing.T) {
	fx := newRouterFixture()
	res := doJSON(t, fx.handler, http.MethodPost, "/v1/ballot", map[string]any{
		"kind":   "question",
		"title":  "Question 2",
		"text":   "Shall the city issue bonds?",
		"topics": []string{"finance"},
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var item domain.BallotItem
	if err := json.NewDecoder(res.Body).Decode(&item); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if item.ID == "" || item.Kind != domain.KindQuestion {
		t.Fatalf("unexpected item %+v", item)
	}
	if len(fx.ballot.items) != 2 {
		t.Fatalf("expected item persisted, have %d items", len(fx.ballot.items))
	}
}

func TestCreateBallotItemRejectsUnknownKind(t *testing.T) {
	fx := newRouterFixture()
	res := doJSON(t, fx.handler, http.MethodPost, "/v1/ballot", map[string]any{
		"kind":  "referendum",
		"title": "T",
		"text":  "t",
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if len(fx.ballot.items) != 1 {
		t.Fatalf("expected nothing persisted")
	}
}

func TestCreateProfileRequiresIssues(t *testing.T) {
	fx := newRouterFixture()
	res := doJSON(t, fx.handler, http.MethodPost, "/v1/profiles", map[string]any{
		"issues": map[string][]string{},
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestCreateProfileSuccess(t *testing.T) {
	fx := newRouterFixture()
	res := doJSON(t, fx.handler, http.MethodPost, "/v1/profiles", map[string]any{
		"issues":       map[string][]string{"housing": {"rents are too high"}},
		"demographics": map[string]any{"age": 34, "zip": "02139"},
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if len(fx.profiles.created) != 1 {
		t.Fatalf("expected profile persisted")
	}
	if fx.profiles.created[0].ID == "" {
		t.Fatalf("expected generated profile id")
	}
}

func TestCreateJobQueuesAndReturns202(t *testing.T) {
	fx := newRouterFixture()
	res := doJSON(t, fx.handler, http.MethodPost, "/v1/annotations/jobs", map[string]any{
		"profile_id": "prof-1",
		"item_ids":   []string{"q1"},
	})
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if len(fx.jobs.created) != 1 {
		t.Fatalf("expected job persisted")
	}
	if len(fx.queue.jobIDs) != 1 || fx.queue.jobIDs[0] != fx.jobs.created[0].ID {
		t.Fatalf("expected job published, got %v", fx.queue.jobIDs)
	}
}

func TestCreateJobUnknownProfileReturns404(t *testing.T) {
	fx := newRouterFixture()
	res := doJSON(t, fx.handler, http.MethodPost, "/v1/annotations/jobs", map[string]any{
		"profile_id": "missing",
		"item_ids":   []string{"q1"},
	})
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if len(fx.queue.jobIDs) != 0 {
		t.Fatalf("expected nothing queued")
	}
}

func TestGetJobIncludesAnnotationsWhenDone(t *testing.T) {
	fx := newRouterFixture()
	fx.jobs.jobs["job-1"] = &domain.AnnotationJob{
		ID: "job-1", ProfileID: "prof-1", Status: domain.JobDone,
		ItemIDs: []string{"q1"}, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	fx.jobs.annotations["job-1"] = []domain.Annotation{
		{ItemID: "q1", Issue: "housing", Text: "Explanation.", Citations: []domain.Citation{}},
	}

	res := doJSON(t, fx.handler, http.MethodGet, "/v1/annotations/jobs/job-1", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var resp struct {
		Job         domain.AnnotationJob `json:"job"`
		Annotations []domain.Annotation  `json:"annotations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Job.Status != domain.JobDone || len(resp.Annotations) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestUploadSourceSuccess(t *testing.T) {
	fx := newRouterFixture()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("title", "Ordinance 2024-17"); err != nil {
		t.Fatalf("WriteField() error = %v", err)
	}
	if err := writer.WriteField("namespace", "legislation"); err != nil {
		t.Fatalf("WriteField() error = %v", err)
	}
	part, err := writer.CreateFormFile("file", "ord.pdf")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte("pdf bytes")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/sources", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	var doc domain.SourceDocument
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.Filename != "ord.pdf" {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestUploadSourceMissingMultipartField(t *testing.T) {
	fx := newRouterFixture()

	req := httptest.NewRequest(http.MethodPost, "/v1/sources", strings.NewReader("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}
