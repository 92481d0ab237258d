// Package requestutils talks to the coveralls HTTP API.
package requestutils

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/covclient/coveralls-go/pkg/core"
	"github.com/covclient/coveralls-go/pkg/errs"
	"github.com/covclient/coveralls-go/pkg/global"
	"github.com/covclient/coveralls-go/pkg/lumber"
)

type requests struct {
	logger     lumber.Logger
	client     http.Client
	host       string
	newBackOff func() backoff.BackOff
}

// New returns a Requests implementation against the given coveralls host.
// Transport failures and 5xx responses are retried with the supplied backoff.
func New(logger lumber.Logger, host string, timeout time.Duration, newBackOff func() backoff.BackOff) core.Requests {
	client := http.Client{Timeout: timeout}
	if os.Getenv(global.SkipSSLVerifyEnv) != "" {
		client.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}} //nolint:gosec
	}
	return &requests{
		logger:     logger,
		client:     client,
		host:       strings.TrimRight(host, "/"),
		newBackOff: newBackOff,
	}
}

func (r *requests) SubmitReport(ctx context.Context, report []byte) (*core.APIResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("json_file", "coverage.json")
	if err != nil {
		return nil, err
	}
	if _, err = part.Write(report); err != nil {
		return nil, err
	}
	if err = writer.Close(); err != nil {
		return nil, err
	}

	respBody, statusCode, err := r.post(ctx, r.host+global.JobsEndpoint, writer.FormDataContentType(), body.Bytes())
	if err != nil {
		return nil, err
	}
	if statusCode == http.StatusUnprocessableEntity {
		// the "github" service name requires GITHUB_TOKEN; repo token
		// submissions from actions must override the service name
		r.logger.Errorf("received 422 from coveralls. When submitting with a COVERALLS_REPO_TOKEN " +
			"from Github Actions, override COVERALLS_SERVICE_NAME to \"github-actions\"")
	}
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, &errs.SubmissionError{StatusCode: statusCode, Body: string(respBody)}
	}

	apiResp := new(core.APIResponse)
	if err := json.Unmarshal(respBody, apiResp); err != nil {
		return nil, err
	}
	return apiResp, nil
}

// webhookPayload is the parallel build done signal.
// https://docs.coveralls.io/parallel-build-webhook
type webhookPayload struct {
	RepoToken string        `json:"repo_token,omitempty"`
	RepoName  string        `json:"repo_name,omitempty"`
	Payload   webhookStatus `json:"payload"`
}

type webhookStatus struct {
	Status   string `json:"status"`
	BuildNum string `json:"build_num,omitempty"`
}

func (r *requests) ParallelFinish(ctx context.Context, repoToken, buildNum, repoName string) error {
	payload := webhookPayload{
		RepoToken: repoToken,
		RepoName:  repoName,
		Payload:   webhookStatus{Status: "done", BuildNum: buildNum},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	respBody, statusCode, err := r.post(ctx, r.host+global.WebhookEndpoint, "application/json", body)
	if err != nil {
		return err
	}
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return &errs.SubmissionError{StatusCode: statusCode, Body: string(respBody)}
	}

	var resp struct {
		Done  bool   `json:"done"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("%w: %s", errs.ErrParallelFinish, resp.Error)
	}
	if !resp.Done {
		return errs.ErrParallelFinish
	}
	return nil
}

func (r *requests) post(ctx context.Context, endpoint, contentType string, body []byte) (respBody []byte, statusCode int, err error) {
	operation := func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if reqErr != nil {
			r.logger.Errorf("error while creating http request %v", reqErr)
			return backoff.Permanent(reqErr)
		}
		req.Header.Set("Content-Type", contentType)

		resp, doErr := r.client.Do(req)
		if doErr != nil {
			r.logger.Errorf("error while sending http request %v", doErr)
			return doErr
		}
		defer resp.Body.Close()

		readBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			r.logger.Errorf("error while reading http response body %v", readErr)
			return readErr
		}
		respBody = readBody
		statusCode = resp.StatusCode

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("server error %d from %s", resp.StatusCode, endpoint)
		}
		return nil
	}

	if retryErr := backoff.Retry(operation, backoff.WithContext(r.newBackOff(), ctx)); retryErr != nil {
		return nil, statusCode, retryErr
	}
	return respBody, statusCode, nil
}
