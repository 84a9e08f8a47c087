package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fund_transfer_back/models"
	"fund_transfer_back/pkg/repository"
	"fund_transfer_back/pkg/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter() (*gin.Engine, *repository.Repository) {
	repos := repository.NewMemoryRepository()
	h := NewHandler(service.NewService(repos), nil)
	return h.InitRoute(), repos
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateTransfer(t *testing.T) {
	router, repos := newTestRouter()

	rec := do(router, http.MethodPost, "/transfer", `{"accountOrigin":"X","accountDestination":"Y","value":100.5,"email":"a@b.io"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.TransactionIDResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.TransactionID)

	stored, err := repos.FindByID(context.Background(), resp.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInQueue, stored.Status)
	assert.Equal(t, "100.5", stored.Value.String())
}

func TestCreateTransferBadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"same account", `{"accountOrigin":"X","accountDestination":"X","value":1}`, "Cannot transfer value to the same account"},
		{"missing value", `{"accountOrigin":"X","accountDestination":"Y"}`, "Invalid or missing value"},
		{"non numeric value", `{"accountOrigin":"X","accountDestination":"Y","value":"abc"}`, "invalid request body"},
		{"not json", `hello`, "invalid request body"},
		{"bad email", `{"accountOrigin":"X","accountDestination":"Y","value":1,"email":"x@"}`, "Invalid e-mail address: x@"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter()

			rec := do(router, http.MethodPost, "/transfer", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp Error
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp.Message)
		})
	}
}

func TestGetTransferStatus(t *testing.T) {
	router, repos := newTestRouter()
	ctx := context.Background()

	rec := do(router, http.MethodPost, "/transfer", `{"accountOrigin":"X","accountDestination":"Y","value":10}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.TransactionIDResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = do(router, http.MethodGet, "/transfer/"+created.TransactionID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"In Queue"}`, rec.Body.String())

	_, err := repos.Transition(ctx, created.TransactionID, models.StatusInQueue, models.StatusProcessing, "")
	require.NoError(t, err)
	_, err = repos.Transition(ctx, created.TransactionID, models.StatusProcessing, models.StatusError, "insufficient funds")
	require.NoError(t, err)

	rec = do(router, http.MethodGet, "/transfer/"+created.TransactionID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"Error","message":"insufficient funds"}`, rec.Body.String())
}

func TestGetTransferStatusNotFound(t *testing.T) {
	router, _ := newTestRouter()

	rec := do(router, http.MethodGet, "/transfer/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Transaction 'nope' not found"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter()

	rec := do(router, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	h := NewHandler(service.NewService(repository.NewMemoryRepository()), []string{"https://bank.example"})
	router := h.InitRoute()

	req := httptest.NewRequest(http.MethodOptions, "/transfer", nil)
	req.Header.Set("Origin", "https://bank.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://bank.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
