package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// readers bounds how many job event files are read at once.
const readers = 8

// ErrNoStatus is returned when a run left no status artifact.
var ErrNoStatus = errors.New("no status artifact")

// ArtifactDir returns the directory ansible-runner writes a run's artifacts to.
func ArtifactDir(privateDataDir, ident string) string {
	return filepath.Join(privateDataDir, "artifacts", ident)
}

// LoadArtifacts reads the status, rc and job events of one finished run.
// Events are returned in counter order.
func LoadArtifacts(dir string) (*RunHandle, error) {
	statusData, err := os.ReadFile(filepath.Join(dir, "status"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", dir, ErrNoStatus)
		}
		return nil, fmt.Errorf("reading status: %w", err)
	}
	h := &RunHandle{
		Ident:  filepath.Base(dir),
		Status: Status(strings.TrimSpace(string(statusData))),
	}

	if rcData, err := os.ReadFile(filepath.Join(dir, "rc")); err == nil {
		if rc, err := strconv.Atoi(strings.TrimSpace(string(rcData))); err == nil {
			h.RC = rc
		}
	}

	events, err := loadEvents(filepath.Join(dir, "job_events"))
	if err != nil {
		return nil, err
	}
	h.Events = events
	return h, nil
}

func loadEvents(dir string) ([]Event, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing job events: %w", err)
	}
	if len(paths) == 0 {
		return []Event{}, nil
	}

	events := make([]Event, len(paths))
	var g errgroup.Group
	g.SetLimit(readers)
	for i, p := range paths {
		g.Go(func() error {
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("reading job event: %w", err)
			}
			ev, err := DecodeEvent(data)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(p), err)
			}
			events[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].EventMeta().Counter < events[j].EventMeta().Counter
	})
	return events, nil
}
