package scanner_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/a11yscan/internal/browser"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/scanner"
)

func drain(t *testing.T, job *scanner.Job) []scanner.JobEvent {
	t.Helper()
	var out []scanner.JobEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-job.Events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("job did not finish")
		}
	}
}

func TestJobs_ScanRunsToCompletion(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fastConfig(), nil)
	jobs := scanner.NewJobs(f.scanner, 10, f.logger)

	job, err := jobs.Start(context.Background(), scanner.JobScan, model.ScanRequest{URL: "https://example.com", Country: "Canada"})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)

	events := drain(t, job)
	require.NotEmpty(t, events)
	assert.Equal(t, scanner.JobPending, events[0].Status)
	assert.Equal(t, scanner.JobRunning, events[1].Status)

	var states []scanner.State
	for _, ev := range events {
		assert.Equal(t, job.ID, ev.JobID)
		if ev.Type == scanner.JobEventState {
			states = append(states, ev.State)
		}
	}
	assert.Contains(t, states, scanner.StateAuditing)

	last := events[len(events)-1]
	assert.Equal(t, scanner.JobEventResult, last.Type)
	assert.Equal(t, scanner.JobDone, last.Status)
	res, ok := last.Result.(*model.NormalizedScanResult)
	require.True(t, ok)
	assert.Equal(t, "Canada", res.Compliance.Country)

	got := jobs.Get(job.ID)
	require.NotNil(t, got)
	assert.Equal(t, scanner.JobDone, got.Status)
	assert.Equal(t, scanner.StateResponding, got.State)
	assert.NotNil(t, got.Result)
	assert.Nil(t, got.CookieResult)
	assert.False(t, got.EndedAt.IsZero())
}

func TestJobs_CookieScan(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fastConfig(), nil)
	jobs := scanner.NewJobs(f.scanner, 10, nil)

	job, err := jobs.Start(context.Background(), scanner.JobCookie, model.ScanRequest{URL: "https://example.com"})
	require.NoError(t, err)
	events := drain(t, job)

	_, ok := events[len(events)-1].Result.(*model.CookieComplianceResult)
	assert.True(t, ok)
	got := jobs.Get(job.ID)
	assert.NotNil(t, got.CookieResult)
	assert.Nil(t, got.Result)
}

func TestJobs_InvalidRequestCreatesNoJob(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fastConfig(), nil)
	jobs := scanner.NewJobs(f.scanner, 10, nil)

	job, err := jobs.Start(context.Background(), scanner.JobScan, model.ScanRequest{URL: "not a url"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	assert.Nil(t, job)
	assert.Empty(t, jobs.List())
	assert.Zero(t, f.browser.PageCount())
}

func TestJobs_FailedScan(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fastConfig(), nil)
	f.engine.auditFn = func(context.Context, browser.Page) (json.RawMessage, error) {
		return nil, model.NewScanError(model.ErrInjectionFailed, "auditing", assert.AnError)
	}
	jobs := scanner.NewJobs(f.scanner, 10, nil)

	job, err := jobs.Start(context.Background(), scanner.JobScan, model.ScanRequest{URL: "https://example.com"})
	require.NoError(t, err)
	events := drain(t, job)

	last := events[len(events)-1]
	assert.Equal(t, scanner.JobFailed, last.Status)
	assert.Contains(t, last.Error, "injection failed")
	assert.Equal(t, scanner.JobFailed, jobs.Get(job.ID).Status)
}

func TestJobs_Cancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fastConfig(), nil)
	started := make(chan struct{})
	release := make(chan struct{})
	f.engine.auditFn = func(context.Context, browser.Page) (json.RawMessage, error) {
		close(started)
		<-release
		return json.RawMessage(auditResult), nil
	}
	jobs := scanner.NewJobs(f.scanner, 10, nil)

	job, err := jobs.Start(context.Background(), scanner.JobScan, model.ScanRequest{URL: "https://example.com"})
	require.NoError(t, err)
	<-started
	jobs.Cancel(job.ID)
	close(release)

	events := drain(t, job)
	assert.Equal(t, scanner.JobCanceled, events[len(events)-1].Status)
	got := jobs.Get(job.ID)
	assert.Equal(t, scanner.JobCanceled, got.Status)
	assert.Nil(t, got.Result)
	assert.Equal(t, 1, f.browser.Page(1).CloseCalls())

	// Unknown ids are ignored.
	jobs.Cancel("missing")
	assert.Nil(t, jobs.Get("missing"))
}

func TestJobs_HistoryIsCapped(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fastConfig(), nil)
	jobs := scanner.NewJobs(f.scanner, 2, nil)

	var ids []string
	for i := 0; i < 4; i++ {
		job, err := jobs.Start(context.Background(), scanner.JobScan, model.ScanRequest{URL: "https://example.com"})
		require.NoError(t, err)
		drain(t, job)
		ids = append(ids, job.ID)
	}

	list := jobs.List()
	require.Len(t, list, 2)
	// The newest job is always kept and listed first.
	assert.Equal(t, ids[3], list[0].ID)
	assert.Nil(t, jobs.Get(ids[0]))
}
