package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"raffler/models"
	"raffler/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error {
	return p.err
}

type testServer struct {
	router  *gin.Engine
	users   *service.MockUserService
	raffles *service.MockRaffleService
	tickets *service.MockTicketService
	draws   *service.MockDrawService
}

func newTestServer(db Pinger) *testServer {
	ts := &testServer{
		users:   new(service.MockUserService),
		raffles: new(service.MockRaffleService),
		tickets: new(service.MockTicketService),
		draws:   new(service.MockDrawService),
	}
	ts.router = NewRouter(testSecret, Services{
		Users:   ts.users,
		Raffles: ts.raffles,
		Tickets: ts.tickets,
		Draws:   ts.draws,
	}, db, nil)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}

	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func tokenFor(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := IssueToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return token
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error, body.Kind
}

func TestStatusForKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind     models.ErrorKind
		expected int
	}{
		{models.KindNotFound, http.StatusNotFound},
		{models.KindInvalidArgument, http.StatusBadRequest},
		{models.KindInvalidState, http.StatusConflict},
		{models.KindConflict, http.StatusConflict},
		{models.KindForbidden, http.StatusForbidden},
		{models.KindBusy, http.StatusServiceUnavailable},
		{models.KindInternal, http.StatusInternalServerError},
		{"", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, statusForKind(tt.kind), "kind %q", tt.kind)
	}
}

func TestBuyTicket(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	raffleID := uuid.New()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(nil)
		ticket := &models.Ticket{ID: uuid.New(), RaffleID: raffleID, UserID: userID, Number: 7, Status: models.TicketStatusPending}
		ts.tickets.On("Purchase", mock.Anything, raffleID, userID, 7, "proof-1").Return(ticket, nil)

		rec := ts.do(t, http.MethodPost, "/api/tickets/buy", map[string]interface{}{
			"raffleId":        raffleID.String(),
			"number":          7,
			"paymentProofRef": "proof-1",
		}, tokenFor(t, userID))

		require.Equal(t, http.StatusCreated, rec.Code)
		var got models.Ticket
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, 7, got.Number)
		assert.Equal(t, models.TicketStatusPending, got.Status)
	})

	t.Run("number zero is accepted", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(nil)
		ts.tickets.On("Purchase", mock.Anything, raffleID, userID, 0, "proof").
			Return(&models.Ticket{Number: 0}, nil)

		rec := ts.do(t, http.MethodPost, "/api/tickets/buy", map[string]interface{}{
			"raffleId":        raffleID.String(),
			"number":          0,
			"paymentProofRef": "proof",
		}, tokenFor(t, userID))

		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("conflict maps to 409", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(nil)
		ts.tickets.On("Purchase", mock.Anything, raffleID, userID, 7, "proof").
			Return(nil, models.NewConflict("number %d already sold", 7))

		rec := ts.do(t, http.MethodPost, "/api/tickets/buy", map[string]interface{}{
			"raffleId":        raffleID.String(),
			"number":          7,
			"paymentProofRef": "proof",
		}, tokenFor(t, userID))

		require.Equal(t, http.StatusConflict, rec.Code)
		message, kind := decodeError(t, rec)
		assert.Equal(t, "number 7 already sold", message)
		assert.Equal(t, string(models.KindConflict), kind)
	})

	t.Run("busy maps to 503", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(nil)
		ts.tickets.On("Purchase", mock.Anything, raffleID, userID, 3, "proof").
			Return(nil, models.NewBusy(errors.New("lock timeout")))

		rec := ts.do(t, http.MethodPost, "/api/tickets/buy", map[string]interface{}{
			"raffleId":        raffleID.String(),
			"number":          3,
			"paymentProofRef": "proof",
		}, tokenFor(t, userID))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("internal detail is hidden", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(nil)
		ts.tickets.On("Purchase", mock.Anything, raffleID, userID, 3, "proof").
			Return(nil, errors.New("pq: connection reset by peer"))

		rec := ts.do(t, http.MethodPost, "/api/tickets/buy", map[string]interface{}{
			"raffleId":        raffleID.String(),
			"number":          3,
			"paymentProofRef": "proof",
		}, tokenFor(t, userID))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		message, kind := decodeError(t, rec)
		assert.Equal(t, "internal error", message)
		assert.Equal(t, string(models.KindInternal), kind)
	})

	t.Run("missing number", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(nil)

		rec := ts.do(t, http.MethodPost, "/api/tickets/buy", map[string]interface{}{
			"raffleId": raffleID.String(),
		}, tokenFor(t, userID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		ts.tickets.AssertNotCalled(t, "Purchase", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed raffle id", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(nil)

		rec := ts.do(t, http.MethodPost, "/api/tickets/buy", map[string]interface{}{
			"raffleId": "not-a-uuid",
			"number":   1,
		}, tokenFor(t, userID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestJWTAuth(t *testing.T) {
	t.Parallel()

	raffleID := uuid.New()

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	expiredToken, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)

	wrongKey, err := IssueToken("another-secret", uuid.New(), time.Hour)
	require.NoError(t, err)

	badSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"})
	badSubjectToken, err := badSubject.SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "garbage token", header: "Bearer abc.def.ghi"},
		{name: "expired", header: "Bearer " + expiredToken},
		{name: "wrong key", header: "Bearer " + wrongKey},
		{name: "subject not a uuid", header: "Bearer " + badSubjectToken},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts := newTestServer(nil)

			req := httptest.NewRequest(http.MethodPatch, "/api/raffles/"+raffleID.String()+"/status", bytes.NewBufferString(`{"status":"active"}`))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			ts.router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			ts.raffles.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRaffleRoutes(t *testing.T) {
	t.Parallel()

	actorID := uuid.New()
	raffleID := uuid.New()

	t.Run("create uses caller as creator", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(nil)
		ts.raffles.On("Create", mock.Anything, mock.MatchedBy(func(input models.CreateRaffleInput) bool {
			return input.CreatorID == actorID && input.RaffleType == models.RaffleTypeSmall
		})).Return(&models.Raffle{ID: raffleID, CreatorID: actorID, Status: models.RaffleStatusDraft}, nil)

		rec := ts.do(t, http.MethodPost, "/api/raffles", map[string]interface{}{
			"title":         "Weekend motorbike raffle",
			"description":   "A brand new motorbike for one lucky number",
			"raffleType":    "small",
			"ticketPrice":   500,
			"prizeValue":    100000,
			"prizeImageUrl": "https://example.com/bike.png",
		}, tokenFor(t, actorID))

		assert.Equal(t, http.StatusCreated, rec.Code)
		ts.raffles.AssertExpectations(t)
	})

	t.Run("set status", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(nil)
		ts.raffles.On("SetStatus", mock.Anything, raffleID, models.RaffleStatusActive, actorID).
			Return(&models.Raffle{ID: raffleID, Status: models.RaffleStatusActive}, nil)

		rec := ts.do(t, http.MethodPatch, "/api/raffles/"+raffleID.String()+"/status",
			map[string]string{"status": "active"}, tokenFor(t, actorID))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("draw settings forbidden", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(nil)
		drawDate := time.Date(2026, 12, 24, 20, 0, 0, 0, time.UTC)
		ts.draws.On("UpdateDrawSettings", mock.Anything, raffleID, mock.MatchedBy(func(input models.DrawSettingsInput) bool {
			return input.ActorID == actorID && input.DrawMode == models.DrawModeAppDraw && input.DrawDate.Equal(drawDate)
		})).Return(nil, models.NewForbidden("only the majority owner can change draw settings"))

		rec := ts.do(t, http.MethodPatch, "/api/raffles/"+raffleID.String()+"/draw-settings", map[string]interface{}{
			"drawMode": "app_draw",
			"drawDate": drawDate.Format(time.RFC3339),
		}, tokenFor(t, actorID))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		ts.draws.AssertExpectations(t)
	})

	t.Run("winning numbers pass the caller as actor", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(nil)
		second := 54
		ts.draws.On("SetWinningNumbers", mock.Anything, raffleID, 45, &second, mock.MatchedBy(func(actor *uuid.UUID) bool {
			return actor != nil && *actor == actorID
		})).Return(&models.Raffle{ID: raffleID}, nil)

		rec := ts.do(t, http.MethodPatch, "/api/raffles/"+raffleID.String()+"/winning-numbers", map[string]interface{}{
			"winningNumber":            45,
			"secondPrizeWinningNumber": 54,
		}, tokenFor(t, actorID))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("recurrent from unfinished raffle", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(nil)
		ts.raffles.On("CreateRecurrent", mock.Anything, raffleID, actorID).
			Return(nil, models.NewInvalidState("only finished raffles can recur"))

		rec := ts.do(t, http.MethodPost, "/api/raffles/"+raffleID.String()+"/recurrent", nil, tokenFor(t, actorID))

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("public reads", func(t *testing.T) {
		t.Parallel()
		ts := newTestServer(nil)
		ts.raffles.On("FindAll", mock.Anything).Return([]*models.Raffle{{ID: raffleID}}, nil)
		ts.raffles.On("ListHistory", mock.Anything, raffleID).Return([]*models.HistoryEntry{}, nil)
		ts.raffles.On("FindOne", mock.Anything, raffleID).Return(nil, models.NewNotFound("raffle %s not found", raffleID))

		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/raffles", nil, "").Code)
		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/raffles/"+raffleID.String()+"/history", nil, "").Code)
		assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/raffles/"+raffleID.String(), nil, "").Code)
		assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/raffles/not-a-uuid", nil, "").Code)
	})
}

func TestUserAndTicketRoutes(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	ticketID := uuid.New()

	ts := newTestServer(nil)
	ts.users.On("Create", mock.Anything, models.CreateUserInput{Name: "Ana", Phone: "+57 300 1234567", Email: "ana@example.com"}).
		Return(&models.User{ID: userID, Name: "Ana"}, nil)
	ts.tickets.On("ListForUser", mock.Anything, userID).Return([]*models.Ticket{{ID: ticketID}}, nil)
	ts.tickets.On("UpdateStatus", mock.Anything, ticketID, models.TicketStatusSold, userID).
		Return(&models.Ticket{ID: ticketID, Status: models.TicketStatusSold}, nil)

	rec := ts.do(t, http.MethodPost, "/api/users", map[string]string{
		"name":  "Ana",
		"phone": "+57 300 1234567",
		"email": "ana@example.com",
	}, "")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/users/"+userID.String()+"/tickets", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tickets []models.Ticket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tickets))
	assert.Len(t, tickets, 1)

	rec = ts.do(t, http.MethodPatch, "/api/tickets/"+ticketID.String()+"/status",
		map[string]string{"status": "sold"}, tokenFor(t, userID))
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.users.AssertExpectations(t)
	ts.tickets.AssertExpectations(t)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	up := newTestServer(stubPinger{})
	assert.Equal(t, http.StatusOK, up.do(t, http.MethodGet, "/healthz", nil, "").Code)

	down := newTestServer(stubPinger{err: errors.New("connection refused")})
	assert.Equal(t, http.StatusServiceUnavailable, down.do(t, http.MethodGet, "/healthz", nil, "").Code)
}
