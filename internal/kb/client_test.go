package kb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursenerd/internal/citation"
)

func TestQuerySuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/query", r.URL.Path)

		var params QueryParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "what is attention", params.Query)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": "Attention weights tokens by relevance.",
			"references": []map[string]string{
				{"reference_id": "r1", "file_path": "lecture_8_slides_26-27.pdf"},
				{"reference_id": "r2", "file_path": "exam_2023_q5.pdf"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	result := c.Query(context.Background(), QueryParams{Query: "what is attention"})

	require.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "Attention weights tokens by relevance.", result.Answer)
	require.Len(t, result.Citations, 2)

	lec, ok := result.Citations[0].(citation.LectureCitation)
	require.True(t, ok, "want LectureCitation, got %T", result.Citations[0])
	assert.Equal(t, "Lecture 8, Slides 26-27", lec.Text())

	exam, ok := result.Citations[1].(citation.ExamCitation)
	require.True(t, ok, "want ExamCitation, got %T", result.Citations[1])
	assert.Equal(t, "2023", exam.Year)
}

func TestQueryTooShortSkipsNetwork(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := New(srv.URL)
	for _, q := range []string{"", "ab", "  a  "} {
		result := c.Query(context.Background(), QueryParams{Query: q})
		assert.Equal(t, StatusBadRequest, result.Status, "query %q", q)
		assert.NotEmpty(t, result.Detail)
	}

	assert.Equal(t, int64(0), calls.Load(), "short queries must not reach the server")
}

func TestQueryInvalidMode(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := New(srv.URL)
	result := c.Query(context.Background(), QueryParams{Query: "valid question", Mode: "telepathic"})
	assert.Equal(t, StatusBadRequest, result.Status)
	assert.Equal(t, int64(0), calls.Load())
}

func TestQueryServerStatuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		httpStatus int
		body       string
		want       Status
		wantDetail string
	}{
		{
			name:       "bad request with detail",
			httpStatus: http.StatusBadRequest,
			body:       `{"detail": "query too vague"}`,
			want:       StatusBadRequest,
			wantDetail: "query too vague",
		},
		{
			name:       "validation error",
			httpStatus: http.StatusUnprocessableEntity,
			body:       `{"detail": "mode must be one of local, global, hybrid"}`,
			want:       StatusBadRequest,
			wantDetail: "mode must be one of local, global, hybrid",
		},
		{
			name:       "internal error",
			httpStatus: http.StatusInternalServerError,
			body:       `{"detail": "storage backend offline"}`,
			want:       StatusServerError,
		},
		{
			name:       "bad gateway",
			httpStatus: http.StatusBadGateway,
			body:       "upstream unavailable",
			want:       StatusServerError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.httpStatus)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			result := New(srv.URL).Query(context.Background(), QueryParams{Query: "a real question"})
			assert.Equal(t, tt.want, result.Status)
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, result.Detail)
			}
		})
	}
}

func TestQueryConnectionError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening

	result := New(srv.URL).Query(context.Background(), QueryParams{Query: "a real question"})
	assert.Equal(t, StatusConnectionError, result.Status)
}

func TestQueryTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		srv.Close()
	}()

	c := New(srv.URL, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	result := c.Query(context.Background(), QueryParams{Query: "a real question"})
	assert.Equal(t, StatusTimeout, result.Status)
}

func TestAPIKeyQueryParam(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sekrit", r.URL.Query().Get("api_key_header_value"))
		json.NewEncoder(w).Encode(map[string]string{"response": "ok"})
	}))
	defer srv.Close()

	c := New(srv.URL, WithAPIKey("sekrit"))
	result := c.Query(context.Background(), QueryParams{Query: "a real question"})
	assert.Equal(t, StatusSuccess, result.Status)
}

func TestQueryOmitsUnsetOptionals(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		for _, key := range []string{"top_k", "response_type", "enable_rerank", "user_prompt", "stream"} {
			_, present := raw[key]
			assert.False(t, present, "unset optional %q should be omitted, not null", key)
		}
		assert.Equal(t, "a real question", raw["query"])
		assert.Equal(t, "mix", raw["mode"], "unset mode should default, not be dropped")
		assert.Equal(t, true, raw["include_references"])
		json.NewEncoder(w).Encode(map[string]string{"response": "ok"})
	}))
	defer srv.Close()

	result := New(srv.URL).Query(context.Background(), QueryParams{Query: "a real question"})
	assert.Equal(t, StatusSuccess, result.Status)
}

func TestInsertText(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/documents/text", r.URL.Path)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "lecture notes", payload["text"])
		assert.Equal(t, "week 3", payload["description"])

		json.NewEncoder(w).Encode(InsertResponse{Status: "success", Message: "queued", TrackID: "t-42"})
	}))
	defer srv.Close()

	resp, err := New(srv.URL).InsertText(context.Background(), "lecture notes", "week 3")
	require.NoError(t, err)
	assert.Equal(t, "t-42", resp.TrackID)
}

func TestInsertTextsEmptyBatch(t *testing.T) {
	t.Parallel()

	_, err := New("http://localhost:1").InsertTexts(context.Background(), nil)
	require.Error(t, err)
}

func TestPipelineStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/documents/pipeline_status", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"busy":           true,
			"job_name":       "indexing",
			"docs":           12,
			"batchs":         3,
			"cur_batch":      1,
			"latest_message": "embedding chunk 40/120",
		})
	}))
	defer srv.Close()

	ps, err := New(srv.URL).PipelineStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, ps.Busy)
	assert.Equal(t, "indexing", ps.JobName)
	assert.Equal(t, 3, ps.Batches)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	t.Run("health endpoint available", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		assert.True(t, New(srv.URL).HealthCheck(context.Background()))
	})

	t.Run("falls back to pipeline status", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/documents/pipeline_status" {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		assert.True(t, New(srv.URL).HealthCheck(context.Background()))
	})

	t.Run("unreachable service", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		assert.False(t, New(srv.URL).HealthCheck(context.Background()))
	})
}
