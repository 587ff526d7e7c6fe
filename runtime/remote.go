package runtime

import (
	"context"

	"github.com/pkg/errors"
	"github.com/theapemachine/qdemo/backend"
	"github.com/theapemachine/qdemo/circuit"
)

// Register is the classical register name the QASM exporter declares.
const Register = "c"

// Remote is one named runtime device exposed as a backend.Backend.
type Remote struct {
	client *Client
	name   string
}

func (c *Client) Backend(name string) *Remote {
	return &Remote{client: c, name: name}
}

// Backends lists every device as a Remote.
func (c *Client) Backends(ctx context.Context) ([]backend.Backend, error) {
	names, err := c.ListBackends(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list runtime backends")
	}

	out := make([]backend.Backend, 0, len(names))
	for _, name := range names {
		out = append(out, c.Backend(name))
	}
	return out, nil
}

func (r *Remote) Name() string {
	return r.name
}

func (r *Remote) Info(ctx context.Context) (backend.Info, error) {
	status, err := r.client.BackendStatus(ctx, r.name)
	if err != nil {
		return backend.Info{}, errors.Wrapf(err, "status of %s", r.name)
	}
	config, err := r.client.BackendConfiguration(ctx, r.name)
	if err != nil {
		return backend.Info{}, errors.Wrapf(err, "configuration of %s", r.name)
	}

	return backend.Info{
		Name:        r.name,
		NumQubits:   config.NumQubits,
		Simulator:   config.Simulator,
		Operational: status.State && (status.Status == "" || status.Status == "active"),
		PendingJobs: status.LengthQueue,
		BasisGates:  config.BasisGates,
		Version:     status.BackendVersion,
	}, nil
}

/*
Run transpiles c for the device, submits it inside a dedicated session and
blocks until the sampler result is available. The session is closed whether
or not the job succeeds.
*/
func (r *Remote) Run(ctx context.Context, c *circuit.Circuit, shots int) (backend.Counts, error) {
	info, err := r.Info(ctx)
	if err != nil {
		return nil, err
	}

	transpiled, err := circuit.Transpile(c, info.Target())
	if err != nil {
		return nil, err
	}
	qasm, err := circuit.QASM3(transpiled)
	if err != nil {
		return nil, err
	}

	session, err := r.client.OpenSession(ctx, r.name)
	if err != nil {
		return nil, errors.Wrapf(err, "open session on %s", r.name)
	}
	defer func() {
		if err := r.client.CloseSession(context.WithoutCancel(ctx), session); err != nil {
			r.client.logger.Warn("closing session", "session", session, "err", err)
		}
	}()

	jobID, err := r.client.SubmitSampler(ctx, SamplerRequest{
		Backend:   r.name,
		SessionID: session,
		QASM:      qasm,
		Shots:     shots,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "submit %q to %s", c.Name, r.name)
	}

	r.client.logger.Info("submitted sampler job", "job", jobID, "backend", r.name, "shots", shots)

	if _, err := r.client.Wait(ctx, jobID); err != nil {
		return nil, err
	}

	result, err := r.client.JobResults(ctx, jobID)
	if err != nil {
		return nil, errors.Wrapf(err, "results of job %s", jobID)
	}
	return result.Counts(Register, c.NumClbits())
}
