package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"learnplatform/internal/application/usecase"
	"learnplatform/internal/domain"
	"learnplatform/internal/middleware"
	"learnplatform/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-secret"

type memStore struct {
	mu   sync.Mutex
	rows map[string]*domain.LessonProgress
}

func storeKey(userID, lessonID uuid.UUID) string {
	return userID.String() + "|" + lessonID.String()
}

func (s *memStore) Get(ctx context.Context, userID, lessonID uuid.UUID) (*domain.LessonProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[storeKey(userID, lessonID)]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (s *memStore) Mutate(ctx context.Context, userID, lessonID uuid.UUID, fn func(current *domain.LessonProgress) (*domain.LessonProgress, error)) (*domain.LessonProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var current *domain.LessonProgress
	if row, ok := s.rows[storeKey(userID, lessonID)]; ok {
		cp := *row
		current = &cp
	}
	updated, err := fn(current)
	if err != nil {
		return nil, err
	}
	cp := *updated
	s.rows[storeKey(userID, lessonID)] = &cp
	out := *updated
	return &out, nil
}

func (s *memStore) CountCompleted(ctx context.Context, userID uuid.UUID, lessonIDs []uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, id := range lessonIDs {
		if row, ok := s.rows[storeKey(userID, id)]; ok && row.Completed {
			count++
		}
	}
	return count, nil
}

type memDirectory struct {
	lessons map[uuid.UUID]*domain.LessonRef
	courses map[uuid.UUID][]uuid.UUID
}

func (d *memDirectory) ResolveLesson(ctx context.Context, lessonID uuid.UUID) (*domain.LessonRef, error) {
	ref, ok := d.lessons[lessonID]
	if !ok {
		return nil, domain.ErrLessonNotFound
	}
	return ref, nil
}

func (d *memDirectory) ListLessonIDsForCourse(ctx context.Context, courseID uuid.UUID) ([]uuid.UUID, error) {
	return d.courses[courseID], nil
}

type memEnrollments struct {
	mu     sync.Mutex
	values map[string]float64
}

func (e *memEnrollments) SetCompletionPercentage(ctx context.Context, userID, courseID uuid.UUID, value float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.values[storeKey(userID, courseID)] = value
	return nil
}

func (e *memEnrollments) GetByUserAndCourse(ctx context.Context, userID, courseID uuid.UUID) (*domain.Enrollment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.values[storeKey(userID, courseID)]
	if !ok {
		return nil, nil
	}
	return &domain.Enrollment{
		UserID:               userID,
		CourseID:             courseID,
		CompletionPercentage: v,
		Status:               domain.EnrollmentStatusActive,
	}, nil
}

type nopSink struct{}

func (nopSink) RecordPlaybackSession(ctx context.Context, event domain.PlaybackSessionEvent) {}

type apiFixture struct {
	router *gin.Engine
	dir    *memDirectory
	userID uuid.UUID
	token  string
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := &memDirectory{
		lessons: make(map[uuid.UUID]*domain.LessonRef),
		courses: make(map[uuid.UUID][]uuid.UUID),
	}
	enrollments := &memEnrollments{values: make(map[string]float64)}
	uc := usecase.NewProgressUseCase(
		&memStore{rows: make(map[string]*domain.LessonProgress)},
		dir,
		enrollments,
		nopSink{},
		logger.Nop(),
		usecase.DefaultCompletionThreshold,
	)

	router := NewRouter(
		NewProgressHandler(uc, logger.Nop()),
		NewCourseProgressHandler(enrollments),
		middleware.NewRateLimiter(nil),
		RouterOptions{
			JWTAccessSecret:    testSecret,
			HeartbeatRateLimit: 0, // без redis в тестах
		},
	)

	userID := uuid.New()
	return &apiFixture{
		router: router,
		dir:    dir,
		userID: userID,
		token:  signToken(t, userID.String()),
	}
}

func (fx *apiFixture) addLesson(courseID uuid.UUID, durationSec *float64) uuid.UUID {
	id := uuid.New()
	fx.dir.lessons[id] = &domain.LessonRef{LessonID: id, CourseID: courseID, DurationSec: durationSec}
	fx.dir.courses[courseID] = append(fx.dir.courses[courseID], id)
	return id
}

func signToken(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"exp":  time.Now().Add(15 * time.Minute).Unix(),
		"type": "access",
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func (fx *apiFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	return w
}

func heartbeatBody(lessonID uuid.UUID, pos, dur float64) map[string]interface{} {
	return map[string]interface{}{
		"lesson_id": lessonID.String(),
		"position":  pos,
		"duration":  dur,
	}
}

func TestHeartbeatEndpoint(t *testing.T) {
	fx := newAPI(t)
	lessonID := fx.addLesson(uuid.New(), nil)

	w := fx.do(t, http.MethodPost, "/api/v1/progress/heartbeat", fx.token, heartbeatBody(lessonID, 30, 100))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	var view usecase.ProgressView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.WatchedSec != 30 || view.Completed {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestHeartbeatRequiresAuth(t *testing.T) {
	fx := newAPI(t)
	lessonID := fx.addLesson(uuid.New(), nil)

	if w := fx.do(t, http.MethodPost, "/api/v1/progress/heartbeat", "", heartbeatBody(lessonID, 30, 100)); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status=%d", w.Code)
	}
	if w := fx.do(t, http.MethodPost, "/api/v1/progress/heartbeat", "garbage", heartbeatBody(lessonID, 30, 100)); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status=%d", w.Code)
	}
}

func TestHeartbeatErrorMapping(t *testing.T) {
	fx := newAPI(t)
	lessonID := fx.addLesson(uuid.New(), nil)

	cases := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{"negative position", heartbeatBody(lessonID, -1, 100), http.StatusBadRequest},
		{"zero duration", heartbeatBody(lessonID, 10, 0), http.StatusBadRequest},
		{"unknown lesson", heartbeatBody(uuid.New(), 10, 100), http.StatusNotFound},
		{"malformed lesson id", map[string]interface{}{"lesson_id": "not-a-uuid", "position": 1, "duration": 10}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := fx.do(t, http.MethodPost, "/api/v1/progress/heartbeat", fx.token, tc.body); w.Code != tc.want {
				t.Fatalf("status=%d, want %d, body=%s", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestGetProgressEndpointZeroState(t *testing.T) {
	fx := newAPI(t)
	lessonID := fx.addLesson(uuid.New(), nil)

	w := fx.do(t, http.MethodGet, "/api/v1/progress/lessons/"+lessonID.String(), fx.token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("untouched lesson must not error: status=%d", w.Code)
	}
	var view usecase.ProgressView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.WatchedSec != 0 || view.Completed {
		t.Fatalf("zero state expected: %+v", view)
	}
}

func TestMarkCompleteAndCourseProgressEndpoints(t *testing.T) {
	fx := newAPI(t)
	courseID := uuid.New()
	quizID := fx.addLesson(courseID, nil)
	fx.addLesson(courseID, nil)

	w := fx.do(t, http.MethodPost, "/api/v1/progress/lessons/"+quizID.String()+"/complete", fx.token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("markComplete: status=%d body=%s", w.Code, w.Body.String())
	}

	w = fx.do(t, http.MethodGet, "/api/v1/courses/"+courseID.String()+"/progress", fx.token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("course progress: status=%d", w.Code)
	}
	var resp struct {
		CompletionPercentage float64 `json:"completion_percentage"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CompletionPercentage != 50 {
		t.Fatalf("pct=%v, want 50", resp.CompletionPercentage)
	}

	w = fx.do(t, http.MethodPost, "/api/v1/courses/"+courseID.String()+"/progress/recompute", fx.token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("recompute: status=%d", w.Code)
	}
	if body := w.Body.String(); body == "" {
		t.Fatal("empty recompute response")
	}
}

func TestRecomputeEndpointUnknownCourse(t *testing.T) {
	fx := newAPI(t)

	w := fx.do(t, http.MethodPost, fmt.Sprintf("/api/v1/courses/%s/progress/recompute", uuid.New()), fx.token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("empty course recompute: status=%d", w.Code)
	}
	var resp struct {
		CompletionPercentage float64 `json:"completion_percentage"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CompletionPercentage != 0 {
		t.Fatalf("pct=%v, want 0", resp.CompletionPercentage)
	}
}

func TestHealthz(t *testing.T) {
	fx := newAPI(t)
	if w := fx.do(t, http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("healthz: status=%d", w.Code)
	}
}
