package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"

	"github.com/leshachaplin/loginpipe/internal/worker"
)

type stubStats struct {
	mu    sync.Mutex
	stats worker.Stats
}

func (s *stubStats) Stats() worker.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *stubStats) set(stats worker.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
}

type ServerTestSuite struct {
	ctx    context.Context
	stats  *stubStats
	srv    *httptest.Server
	client *Client

	suite.Suite
}

func (s *ServerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.stats = &stubStats{}

	server := New("", NewHandler(s.stats, zerolog.Nop()))
	s.srv = httptest.NewServer(server.Router())

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil
	retryClient.RetryMax = 2
	retryClient.RetryWaitMax = 100 * time.Millisecond
	retryClient.HTTPClient.Timeout = 5 * time.Second
	// 503 from the ready probe is an answer, not a transient failure.
	retryClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if err == nil && resp.StatusCode == http.StatusServiceUnavailable {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	s.client = NewClient(s.srv.URL, retryClient.StandardClient())
}

func (s *ServerTestSuite) TearDownTest() {
	s.srv.Close()
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) TestReady() {
	cases := map[string]struct {
		state      worker.State
		wantStatus int
	}{
		"idle":      {state: worker.StateIdle, wantStatus: http.StatusOK},
		"receiving": {state: worker.StateReceiving, wantStatus: http.StatusOK},
		"done":      {state: worker.StateDone, wantStatus: http.StatusOK},
		"failed":    {state: worker.StateFailed, wantStatus: http.StatusServiceUnavailable},
	}

	for name, tc := range cases {
		tt := tc
		s.Run(name, func() {
			s.stats.set(worker.Stats{RunID: "run-1", State: tt.state, Error: "boom"})

			status, apiErr, err := s.client.Ready(s.ctx)
			s.Require().NoError(err)
			s.Require().Equal(tt.wantStatus, status)

			if tt.wantStatus == http.StatusOK {
				s.Require().Nil(apiErr)
				return
			}
			s.Require().NotNil(apiErr)
			s.Require().Equal("pipeline failed", apiErr.Message)
			s.Require().Equal(http.StatusServiceUnavailable, apiErr.HTTP.Code)
			s.Require().Equal("run-1", apiErr.Details["run_id"])
			s.Require().Equal("boom", apiErr.Details["error"])
		})
	}
}

func (s *ServerTestSuite) TestStats() {
	want := worker.Stats{
		RunID:        "run-2",
		State:        worker.StateCommitting,
		Cycles:       3,
		Received:     23,
		Persisted:    20,
		Skipped:      3,
		Acknowledged: 20,
	}
	s.stats.set(want)

	got, err := s.client.Stats(s.ctx)
	s.Require().NoError(err)
	s.Require().Equal(want, got)
}

func (s *ServerTestSuite) TestUnknownRoute() {
	res, err := http.Get(s.srv.URL + "/v1/event")
	s.Require().NoError(err)
	defer res.Body.Close()
	s.Require().Equal(http.StatusNotFound, res.StatusCode)
}
