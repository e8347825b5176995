// Package train implements the Training Orchestration Contract (spec.md §6,
// §8): a directed acyclic graph of tasks keyed by output-file freshness,
// where a task re-runs only when one of its declared inputs is newer than
// one of its declared outputs ("re-invoking training without changes is
// idempotent and a near-no-op"). Grounded on
// original_source/rhasspy/train/__init__.py's doit-based task graph
// (task_grammars/task_grammar_fsts/... each declaring file_dep/targets/
// actions); this package reimplements the same file_dep/targets freshness
// contract natively rather than depending on a Python build tool, fanning
// independent tasks out concurrently with golang.org/x/sync/errgroup
// (grounded on other_examples' upgear-gcloudvoice transcribe.go, the only
// errgroup usage anywhere in the pack).
package train

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of training work. Name must be unique within a Runner's
// task set; FileDep/Targets name the files a task reads/writes (used both
// for the freshness check and to infer the dependency graph: task A depends
// on task B if any of A's FileDep matches one of B's Targets). A Task with
// no Targets is always considered stale (it has no freshness signal to
// compare against, e.g. the remote intent-trainer variant's HTTP POST).
type Task struct {
	Name    string
	FileDep []string
	Targets []string
	Run     func(ctx context.Context) error
}

// statFunc abstracts file modification-time lookup so tests can simulate a
// filesystem without touching disk.
type statFunc func(path string) (time.Time, bool)

// Runner executes a task set respecting both freshness and the dependency
// graph implied by FileDep/Targets overlap.
type Runner struct {
	Stat statFunc // nil uses os.Stat
}

func (r *Runner) stat(path string) (time.Time, bool) {
	if r.Stat != nil {
		return r.Stat(path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// stale reports whether t must run: true if it declares no targets, if any
// target is missing, or if any declared input is newer than the oldest
// target (spec.md §6: "tasks re-run when any declared input is newer than
// any declared output").
func (r *Runner) stale(t Task) bool {
	if len(t.Targets) == 0 {
		return true
	}

	var oldestTarget time.Time
	for i, out := range t.Targets {
		mt, ok := r.stat(out)
		if !ok {
			return true
		}
		if i == 0 || mt.Before(oldestTarget) {
			oldestTarget = mt
		}
	}

	for _, in := range t.FileDep {
		mt, ok := r.stat(in)
		if !ok {
			continue // an already-consumed/transient input is not a freshness signal
		}
		if mt.After(oldestTarget) {
			return true
		}
	}
	return false
}

// Run executes tasks in dependency order, skipping any task that is not
// stale. Tasks with no unresolved dependency on one another run
// concurrently within the same wave via errgroup; Run returns the first
// error any task in a wave produces, after letting the rest of that wave
// finish (errgroup.Group's own semantics).
func (r *Runner) Run(ctx context.Context, tasks []Task) error {
	waves, err := waveOrder(tasks)
	if err != nil {
		return err
	}

	for _, wave := range waves {
		g, gctx := errgroup.WithContext(ctx)
		for _, t := range wave {
			t := t
			if !r.stale(t) {
				continue
			}
			g.Go(func() error {
				if err := t.Run(gctx); err != nil {
					return fmt.Errorf("train: task %q: %w", t.Name, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// waveOrder groups tasks into dependency waves via Kahn's algorithm: a
// task's dependencies are the other tasks whose Targets intersect its
// FileDep. Each wave's tasks have no unresolved dependency on any
// not-yet-run task and so are safe to run concurrently. Ties within a wave
// are broken by Name for deterministic wave content across runs.
func waveOrder(tasks []Task) ([][]Task, error) {
	producedBy := map[string]string{} // target file -> task name
	byName := map[string]Task{}
	for _, t := range tasks {
		byName[t.Name] = t
		for _, out := range t.Targets {
			producedBy[out] = t.Name
		}
	}

	deps := map[string]map[string]bool{}   // task -> set of task names it depends on
	dependents := map[string][]string{}    // task -> tasks that depend on it
	indegree := map[string]int{}
	for _, t := range tasks {
		indegree[t.Name] = 0
		deps[t.Name] = map[string]bool{}
	}
	for _, t := range tasks {
		for _, in := range t.FileDep {
			producer, ok := producedBy[in]
			if !ok || producer == t.Name {
				continue
			}
			if !deps[t.Name][producer] {
				deps[t.Name][producer] = true
				indegree[t.Name]++
				dependents[producer] = append(dependents[producer], t.Name)
			}
		}
	}

	var waves [][]Task
	remaining := len(tasks)
	ready := map[string]bool{}
	for name, n := range indegree {
		if n == 0 {
			ready[name] = true
		}
	}

	for remaining > 0 {
		var names []string
		for name := range ready {
			names = append(names, name)
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("train: cyclic task dependency detected")
		}
		sort.Strings(names)

		wave := make([]Task, 0, len(names))
		for _, name := range names {
			wave = append(wave, byName[name])
			delete(ready, name)
			remaining--
		}
		waves = append(waves, wave)

		for _, name := range names {
			for _, dependent := range dependents[name] {
				delete(deps[dependent], name)
				if len(deps[dependent]) == 0 {
					ready[dependent] = true
				}
			}
		}
	}
	return waves, nil
}
