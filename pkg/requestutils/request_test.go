package requestutils

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covclient/coveralls-go/pkg/core"
	"github.com/covclient/coveralls-go/pkg/errs"
	"github.com/covclient/coveralls-go/testutils"
)

func noRetry() backoff.BackOff {
	return &backoff.StopBackOff{}
}

func fastRetry(maxRetries uint64) func() backoff.BackOff {
	return func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), maxRetries)
	}
}

func newRequests(t *testing.T, host string, newBackOff func() backoff.BackOff) core.Requests {
	t.Helper()
	logger, err := testutils.GetLogger()
	require.NoError(t, err)
	return New(logger, host, 5*time.Second, newBackOff)
}

func TestSubmitReportPostsMultipart(t *testing.T) {
	var gotPath, gotFilename string
	var gotReport []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		file, header, err := r.FormFile("json_file")
		require.NoError(t, err)
		defer file.Close()
		gotFilename = header.Filename
		gotReport, err = io.ReadAll(file)
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message":"Job #42.1","url":"https://coveralls.io/jobs/42"}`))
	}))
	defer server.Close()

	resp, err := newRequests(t, server.URL, noRetry).SubmitReport(context.TODO(), []byte(`{"source_files":[]}`))
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/jobs", gotPath)
	assert.Equal(t, "coverage.json", gotFilename)
	assert.Equal(t, `{"source_files":[]}`, string(gotReport))
	assert.Equal(t, "Job #42.1", resp.Message)
	assert.Equal(t, "https://coveralls.io/jobs/42", resp.URL)
	assert.False(t, resp.Error)
}

func TestSubmitReportRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Couldn't find a repository matching this job.","error":true}`))
	}))
	defer server.Close()

	_, err := newRequests(t, server.URL, noRetry).SubmitReport(context.TODO(), []byte(`{}`))
	require.Error(t, err)

	var subErr *errs.SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, http.StatusUnprocessableEntity, subErr.StatusCode)
	assert.Contains(t, subErr.Body, "Couldn't find a repository")
}

func TestSubmitReportRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer server.Close()

	resp, err := newRequests(t, server.URL, fastRetry(4)).SubmitReport(context.TODO(), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Message)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestSubmitReportExhaustsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newRequests(t, server.URL, fastRetry(2)).SubmitReport(context.TODO(), []byte(`{}`))
	require.Error(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestParallelFinish(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhook", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"done":true}`))
	}))
	defer server.Close()

	err := newRequests(t, server.URL, noRetry).ParallelFinish(context.TODO(), "tok", "build-9", "owner/repo")
	require.NoError(t, err)

	assert.Equal(t, "tok", got.RepoToken)
	assert.Equal(t, "owner/repo", got.RepoName)
	assert.Equal(t, "done", got.Payload.Status)
	assert.Equal(t, "build-9", got.Payload.BuildNum)
}

func TestParallelFinishNotDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"done":false}`))
	}))
	defer server.Close()

	err := newRequests(t, server.URL, noRetry).ParallelFinish(context.TODO(), "tok", "1", "")
	assert.True(t, errors.Is(err, errs.ErrParallelFinish))
}

func TestParallelFinishAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"no token"}`))
	}))
	defer server.Close()

	err := newRequests(t, server.URL, noRetry).ParallelFinish(context.TODO(), "", "1", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrParallelFinish))
	assert.Contains(t, err.Error(), "no token")
}

func TestHostTrailingSlashTrimmed(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"done":true}`))
	}))
	defer server.Close()

	err := newRequests(t, server.URL+"/", noRetry).ParallelFinish(context.TODO(), "tok", "1", "")
	require.NoError(t, err)
	assert.Equal(t, "/webhook", gotPath)
}
