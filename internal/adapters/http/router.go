package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
	"github.com/ballotbrief/ballotbrief/internal/core/ports"
	"github.com/ballotbrief/ballotbrief/internal/observability/metrics"
)

type Router struct {
	annotator   ports.Annotator
	ingestor    ports.SourceIngestor
	ballotRepo  ports.BallotRepository
	profileRepo ports.ProfileRepository
	jobRepo     ports.AnnotationRepository
	sourceRepo  ports.SourceRepository
	queue       ports.MessageQueue

	budgetCategories []string
	serverMetrics    *metrics.HTTPServerMetrics

	rateLimitRPS   float64
	rateLimitBurst int
	maxConcurrent  int
}

type RouterOptions struct {
	BudgetCategories []string
	Metrics          *metrics.HTTPServerMetrics
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxConcurrent    int
}

func NewRouter(
	annotator ports.Annotator,
	ingestor ports.SourceIngestor,
	ballotRepo ports.BallotRepository,
	profileRepo ports.ProfileRepository,
	jobRepo ports.AnnotationRepository,
	sourceRepo ports.SourceRepository,
	queue ports.MessageQueue,
	options RouterOptions,
) *Router {
	return &Router{
		annotator:        annotator,
		ingestor:         ingestor,
		ballotRepo:       ballotRepo,
		profileRepo:      profileRepo,
		jobRepo:          jobRepo,
		sourceRepo:       sourceRepo,
		queue:            queue,
		budgetCategories: options.BudgetCategories,
		serverMetrics:    options.Metrics,
		rateLimitRPS:     options.RateLimitRPS,
		rateLimitBurst:   options.RateLimitBurst,
		maxConcurrent:    options.MaxConcurrent,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ballot", rt.handleBallot)
	mux.HandleFunc("/v1/profiles", rt.createProfile)
	mux.HandleFunc("/v1/blurbs", rt.createBlurb)
	mux.HandleFunc("/v1/budget/breakdown", rt.createBudgetBreakdown)
	mux.HandleFunc("/v1/annotations/jobs", rt.createJob)
	mux.HandleFunc("/v1/annotations/jobs/", rt.getJob)
	mux.HandleFunc("/v1/sources", rt.uploadSource)
	mux.HandleFunc("/v1/sources/", rt.getSource)
	if rt.serverMetrics != nil {
		mux.Handle("/metrics", rt.serverMetrics.Handler())
	}

	var handler http.Handler = mux
	if rt.maxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.maxConcurrent, 5*time.Second)
	}
	if rt.rateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	}
	if rt.serverMetrics != nil {
		handler = rt.serverMetrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) handleBallot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rt.listBallot(w, r)
	case http.MethodPost:
		rt.createBallotItem(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) listBallot(w http.ResponseWriter, r *http.Request) {
	items, err := rt.ballotRepo.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// createBallotItem seeds one annotatable item. Operators load the ballot
// through this endpoint before requesting annotations.
func (rt *Router) createBallotItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind     string   `json:"kind"`
		Title    string   `json:"title"`
		Text     string   `json:"text"`
		Category string   `json:"category"`
		Topics   []string `json:"topics"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	kind := domain.ItemKind(req.Kind)
	switch kind {
	case domain.KindQuestion, domain.KindRace, domain.KindPolicy:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kind must be question, race, or policy"})
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title and text are required"})
		return
	}

	item := &domain.BallotItem{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     req.Title,
		Text:      req.Text,
		Category:  req.Category,
		Topics:    req.Topics,
		CreatedAt: time.Now().UTC(),
	}
	if err := rt.ballotRepo.Create(r.Context(), item); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (rt *Router) createProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Issues       map[string][]string `json:"issues"`
		Demographics domain.Demographics `json:"demographics"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Issues) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one issue is required"})
		return
	}

	profile := &domain.VoterProfile{
		ID:           uuid.NewString(),
		Issues:       req.Issues,
		Demographics: req.Demographics,
		CreatedAt:    time.Now().UTC(),
	}
	if err := rt.profileRepo.Create(r.Context(), profile); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (rt *Router) createBlurb(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		ItemID    string `json:"item_id"`
		ProfileID string `json:"profile_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	item, profile, err := rt.resolveItemAndProfile(r, req.ItemID, req.ProfileID)
	if err != nil {
		writeError(w, err)
		return
	}

	blurb, err := rt.annotator.Blurb(r.Context(), *item, *profile)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blurb)
}

func (rt *Router) createBudgetBreakdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		ItemID    string `json:"item_id"`
		ProfileID string `json:"profile_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	item, profile, err := rt.resolveItemAndProfile(r, req.ItemID, req.ProfileID)
	if err != nil {
		writeError(w, err)
		return
	}

	breakdown, err := rt.annotator.BudgetBreakdown(r.Context(), *item, *profile, rt.budgetCategories)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (rt *Router) createJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		ProfileID string   `json:"profile_id"`
		ItemIDs   []string `json:"item_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.ProfileID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "profile_id is required"})
		return
	}
	if len(req.ItemIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item_ids is required"})
		return
	}

	// Reject unknown profiles before queueing.
	if _, err := rt.profileRepo.GetByID(r.Context(), req.ProfileID); err != nil {
		writeError(w, err)
		return
	}

	now := time.Now().UTC()
	job := &domain.AnnotationJob{
		ID:        uuid.NewString(),
		ProfileID: req.ProfileID,
		ItemIDs:   req.ItemIDs,
		Status:    domain.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := rt.jobRepo.CreateJob(r.Context(), job); err != nil {
		writeError(w, err)
		return
	}
	if err := rt.queue.PublishAnnotationJob(r.Context(), job.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) getJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/annotations/jobs/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job id is required"})
		return
	}

	job, err := rt.jobRepo.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{"job": job}
	if job.Status == domain.JobDone {
		annotations, err := rt.jobRepo.ListAnnotationsByJob(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		resp["annotations"] = annotations
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) uploadSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	meta := domain.SourceDocument{
		Title:     r.FormValue("title"),
		URL:       r.FormValue("url"),
		Type:      r.FormValue("type"),
		Namespace: r.FormValue("namespace"),
		Filename:  fileHeader.Filename,
		MimeType:  fileHeader.Header.Get("Content-Type"),
	}

	doc, err := rt.ingestor.Upload(r.Context(), meta, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/sources/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source id is required"})
		return
	}

	doc, err := rt.sourceRepo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) resolveItemAndProfile(r *http.Request, itemID, profileID string) (*domain.BallotItem, *domain.VoterProfile, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "resolve item", errStr("item_id is required"))
	}

	items, err := rt.ballotRepo.GetByIDs(r.Context(), []string{itemID})
	if err != nil {
		return nil, nil, err
	}
	if len(items) == 0 {
		return nil, nil, domain.WrapError(domain.ErrNotFound, "resolve item", errStr("ballot item "+itemID))
	}

	profile := &domain.VoterProfile{}
	if strings.TrimSpace(profileID) != "" {
		profile, err = rt.profileRepo.GetByID(r.Context(), profileID)
		if err != nil {
			return nil, nil, err
		}
	}
	return &items[0], profile, nil
}

type errStr string

func (e errStr) Error() string { return string(e) }

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
