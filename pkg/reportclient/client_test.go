package reportclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateReport(t *testing.T) {
	created := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/reports", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req CreateReportRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Acme Bakery", req.Form.BusinessName)
		assert.Equal(t, "2-9", req.Form.EmployeeCount)
		require.Len(t, req.Form.Offerings, 1)
		assert.Equal(t, "product", req.Form.Offerings[0].Type)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(CreateReportResponse{
			ReportID:  "r1",
			Status:    StatusQueued,
			CreatedAt: created,
		})
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "secret-token")
	resp, err := c.CreateReport(context.Background(), &CreateReportRequest{
		Form: IntakeForm{
			BusinessName:   "Acme Bakery",
			Description:    "Artisan sourdough bakery serving the old town district.",
			EmployeeCount:  "2-9",
			CustomerGroups: []string{"local residents"},
			Offerings: []Offering{
				{Name: "Sourdough loaf", Type: "product", DeliveryMethod: "physical"},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "r1", resp.ReportID)
	assert.Equal(t, StatusQueued, resp.Status)
	assert.True(t, resp.CreatedAt.Equal(created))
}

func TestCreateReport_ValidationRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"VALIDATION_ERROR","message":"Validation failed"}}`))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "token")
	_, err := c.CreateReport(context.Background(), &CreateReportRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "VALIDATION_ERROR")
}

func TestGetAccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/reports/r1/access", r.URL.Path)
		assert.Equal(t, "450", r.URL.Query().Get("exp"))
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ReportAccessResponse{
			Type:        "preview",
			URL:         "https://cdn.planforge.dev/previews/r1-preview2.pdf",
			DownloadURL: "https://cdn.planforge.dev/previews/r1-preview2.pdf?download=1",
			ExpiresIn:   450,
		})
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "secret-token")
	access, err := c.GetAccess(context.Background(), "r1", 450)
	require.NoError(t, err)
	assert.Equal(t, "preview", access.Type)
	assert.Contains(t, access.URL, "previews/r1-preview2.pdf")
	assert.Equal(t, 450, access.ExpiresIn)
}

func TestGetAccess_NotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"CONFLICT","message":"Report is not ready yet"}}`))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "token")
	_, err := c.GetAccess(context.Background(), "r1", 300)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
}
