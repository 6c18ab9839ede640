package cron

import (
	"context"
	"time"
)

// Job is one sweep the cron worker runs on a cadence.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Interval lets a job override the service tick.
type Interval interface {
	Interval() time.Duration
}

// Registry holds jobs keyed by name in registration order. Cadence is
// tracked per name, so a second job with the same name is dropped.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{names: map[string]struct{}{}}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

// Register reports whether job was added.
func (r *Registry) Register(job Job) bool {
	if job == nil {
		return false
	}
	if _, dup := r.names[job.Name()]; dup {
		return false
	}
	r.names[job.Name()] = struct{}{}
	r.jobs = append(r.jobs, job)
	return true
}

func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name())
	}
	return names
}
