package dataset

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"cesure-forge/internal/music"
)

// LoadOptions configures Load.
type LoadOptions struct {
	// Prefix is the number of chords replayed before prediction starts.
	Prefix     int
	NumWorkers int
	// SkipFailed logs and drops unreadable files instead of failing.
	SkipFailed bool
	Logger     logrus.FieldLogger
}

// Load decodes files on a worker pool and returns their training sets in
// the order of files.
func Load(parent context.Context, files []string, opts LoadOptions) ([]*TrainingSet, error) {
	if len(files) == 0 {
		return nil, errors.New("dataset: no training files provided")
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	jobs := make(chan loadJob, opts.NumWorkers)
	results := make(chan loadResult, opts.NumWorkers)

	go produceJobs(ctx, jobs, files)

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, opts.Prefix, log)
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	sets := make([]*TrainingSet, 0, len(files))
	pending := make(map[int]loadResult)
	nextID := 0
	for res := range results {
		pending[res.id] = res
		for {
			r, ok := pending[nextID]
			if !ok {
				break
			}
			delete(pending, nextID)
			nextID++
			if r.err != nil {
				if !opts.SkipFailed {
					return nil, r.err
				}
				log.WithError(r.err).WithField("path", r.path).Warn("skipping training file")
				continue
			}
			sets = append(sets, r.set)
		}
	}
	if err := parent.Err(); err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return nil, errors.New("dataset: no readable training files")
	}
	return sets, nil
}

type loadJob struct {
	id   int
	path string
}

type loadResult struct {
	id   int
	path string
	set  *TrainingSet
	err  error
}

func produceJobs(ctx context.Context, jobs chan<- loadJob, files []string) {
	defer close(jobs)
	for i, path := range files {
		select {
		case <-ctx.Done():
			return
		case jobs <- loadJob{id: i, path: path}:
		}
	}
}

func worker(ctx context.Context, jobs <-chan loadJob, results chan<- loadResult, prefix int, log logrus.FieldLogger) {
	for job := range jobs {
		set, err := loadFile(job.path, prefix, log)
		select {
		case <-ctx.Done():
			return
		case results <- loadResult{id: job.id, path: job.path, set: set, err: err}:
		}
	}
}

func loadFile(path string, prefix int, log logrus.FieldLogger) (*TrainingSet, error) {
	seq, err := music.ReadFile(path, log.WithField("path", path))
	if err != nil {
		return nil, err
	}
	set, err := FromSequence(seq, prefix)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	set.Name = path
	return set, nil
}

// BuildOrder shuffles each root's files with rng and interleaves the roots
// round-robin in sorted root order.
func BuildOrder(roots map[string][]string, rng *rand.Rand) []string {
	rootNames := make([]string, 0, len(roots))
	copied := make(map[string][]string, len(roots))
	for root, files := range roots {
		if len(files) == 0 {
			continue
		}
		rootNames = append(rootNames, root)
		copied[root] = append([]string(nil), files...)
	}
	sort.Strings(rootNames)
	if rng != nil {
		for _, root := range rootNames {
			files := copied[root]
			rng.Shuffle(len(files), func(i, j int) {
				files[i], files[j] = files[j], files[i]
			})
		}
	}
	var order []string
	for {
		advanced := false
		for _, root := range rootNames {
			files := copied[root]
			if len(files) == 0 {
				continue
			}
			order = append(order, files[0])
			copied[root] = files[1:]
			advanced = true
		}
		if !advanced {
			break
		}
	}
	return order
}
