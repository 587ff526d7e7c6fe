package runtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/theapemachine/qdemo/backend"
)

// SamplerRequest is one Sampler V2 job with a single pub.
type SamplerRequest struct {
	Backend   string
	SessionID string
	QASM      string
	Shots     int
}

// SubmitSampler queues a sampler job and returns the job id.
func (c *Client) SubmitSampler(ctx context.Context, req SamplerRequest) (string, error) {
	in := map[string]any{
		"program_id": "sampler",
		"backend":    req.Backend,
		"params": map[string]any{
			"pubs":    [][]any{{req.QASM, nil, req.Shots}},
			"version": 2,
		},
	}
	if req.SessionID != "" {
		in["session_id"] = req.SessionID
	}

	var out struct {
		ID      string `json:"id"`
		Backend string `json:"backend"`
	}
	if err := c.do(ctx, http.MethodPost, "/jobs", in, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("runtime accepted job without an id")
	}
	return out.ID, nil
}

// JobInfo is the status view of a runtime job.
type JobInfo struct {
	ID      string `json:"id"`
	Backend string `json:"backend"`
	Status  string `json:"status"`
	State   struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"state"`
}

// Terminal reports whether the job will not change state again.
func (j JobInfo) Terminal() bool {
	switch strings.ToLower(j.Status) {
	case "completed", "failed", "cancelled", "canceled", "error":
		return true
	}
	return false
}

func (j JobInfo) Completed() bool {
	return strings.EqualFold(j.Status, "completed")
}

func (c *Client) Job(ctx context.Context, id string) (JobInfo, error) {
	var out JobInfo
	err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, &out)
	return out, err
}

/*
Wait polls a job until it reaches a terminal state, the configured job
timeout passes, or ctx is done. A terminal state other than completed is
reported as ErrJobFailed.
*/
func (c *Client) Wait(ctx context.Context, id string) (JobInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.JobTimeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		job, err := c.Job(ctx, id)
		if err != nil {
			return job, err
		}

		if job.Terminal() {
			if !job.Completed() {
				return job, errors.Wrapf(ErrJobFailed, "job %s %s: %s", id, job.Status, job.State.Reason)
			}
			return job, nil
		}

		c.logger.Info("waiting for runtime job", "job", id, "status", job.Status)

		select {
		case <-ctx.Done():
			return job, errors.Wrapf(ctx.Err(), "waiting for job %s", id)
		case <-ticker.C:
		}
	}
}

// RegisterData is one classical register of a Sampler V2 pub result.
type RegisterData struct {
	Samples []string `json:"samples"`
	NumBits int      `json:"num_bits"`
}

// SamplerResult is the decoded body of /jobs/{id}/results.
type SamplerResult struct {
	Results []struct {
		Data map[string]RegisterData `json:"data"`
	} `json:"results"`
}

func (c *Client) JobResults(ctx context.Context, id string) (SamplerResult, error) {
	var out SamplerResult
	err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id)+"/results", nil, &out)
	return out, err
}

/*
Counts tallies the hex samples of one register in the first pub result into
bit-strings of the register's width, classical bit 0 rightmost. width is
used when the result leaves num_bits out.
*/
func (r SamplerResult) Counts(register string, width int) (backend.Counts, error) {
	if len(r.Results) == 0 {
		return nil, errors.Wrap(backend.ErrMalformedResult, "no pub results")
	}

	data, ok := r.Results[0].Data[register]
	if !ok {
		return nil, errors.Wrapf(backend.ErrMalformedResult, "register %q missing", register)
	}

	numBits := data.NumBits
	if numBits == 0 {
		numBits = width
	}

	counts := make(backend.Counts)
	for _, sample := range data.Samples {
		value, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(sample), "0x"), 16, 64)
		if err != nil {
			return nil, errors.Wrapf(backend.ErrMalformedResult, "sample %q: %v", sample, err)
		}
		if numBits < 64 && value>>uint(numBits) != 0 {
			return nil, errors.Wrapf(backend.ErrMalformedResult, "sample %q exceeds %d bits", sample, numBits)
		}
		counts[fmt.Sprintf("%0*b", numBits, value)]++
	}
	return counts, nil
}
