package jobs

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrInvalidInterval = errors.New("interval must be a positive number of minutes")
	ErrDuplicateBucket = errors.New("interval registered twice")
	ErrDuplicateJob    = errors.New("job registered in more than one interval")
	ErrInvalidJob      = errors.New("job needs a name and a factory")
)

// Bucket groups the jobs that share a recurrence interval, in execution order.
type Bucket struct {
	Interval int
	Jobs     []Descriptor
}

// Registry is the fixed table of jobs, ordered by ascending interval and then registration order.
// It is built once at startup and never modified afterwards.
type Registry struct {
	buckets []Bucket
}

// NewRegistry validates and freezes the job table.
func NewRegistry(buckets ...Bucket) (*Registry, error) {
	return buildRegistry(buckets, true)
}

// MustRegistry is NewRegistry for statically known tables; it panics on an invalid table.
func MustRegistry(buckets ...Bucket) *Registry {
	r, err := NewRegistry(buckets...)
	if err != nil {
		panic(err)
	}
	return r
}

func buildRegistry(buckets []Bucket, strict bool) (*Registry, error) {
	seenInterval := make(map[int]bool, len(buckets))
	seenJob := make(map[string]int)

	frozen := make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		if b.Interval <= 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidInterval, b.Interval)
		}
		if seenInterval[b.Interval] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateBucket, b.Interval)
		}
		seenInterval[b.Interval] = true

		jobs := make([]Descriptor, 0, len(b.Jobs))
		for _, d := range b.Jobs {
			if d.Name == "" || d.New == nil {
				return nil, fmt.Errorf("%w (interval %d)", ErrInvalidJob, b.Interval)
			}
			if prev, ok := seenJob[d.Name]; ok && strict {
				return nil, fmt.Errorf("%w: %s in %d and %d", ErrDuplicateJob, d.Name, prev, b.Interval)
			}
			seenJob[d.Name] = b.Interval

			d.Interval = b.Interval
			jobs = append(jobs, d)
		}
		frozen = append(frozen, Bucket{Interval: b.Interval, Jobs: jobs})
	}

	sort.SliceStable(frozen, func(i, j int) bool {
		return frozen[i].Interval < frozen[j].Interval
	})

	return &Registry{buckets: frozen}, nil
}

// Buckets returns a copy of the table.
func (r *Registry) Buckets() []Bucket {
	out := make([]Bucket, len(r.buckets))
	for i, b := range r.buckets {
		out[i] = Bucket{Interval: b.Interval, Jobs: append([]Descriptor(nil), b.Jobs...)}
	}
	return out
}

// All returns every registered job, flattened in table order.
func (r *Registry) All() []Descriptor {
	var all []Descriptor
	for _, b := range r.buckets {
		all = append(all, b.Jobs...)
	}
	return all
}

// Names returns the names of all registered jobs in table order
func (r *Registry) Names() []string {
	all := r.All()
	names := make([]string, 0, len(all))
	for _, d := range all {
		names = append(names, d.Name)
	}
	return names
}
