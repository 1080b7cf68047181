// Package download fetches a list of URLs into a directory with bounded
// parallelism, resolving destination name collisions before any transfer
// starts.
package download

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/rescale/dlxt/internal/constants"
	"github.com/rescale/dlxt/internal/http"
	"github.com/rescale/dlxt/internal/logging"
	"github.com/rescale/dlxt/internal/transfer"
	"github.com/rescale/dlxt/internal/util/paths"
	"github.com/rescale/dlxt/internal/validation"
)

// Options configures a Manager.
type Options struct {
	// OnDuplicated decides what happens when a destination already exists.
	OnDuplicated paths.CollisionPolicy

	// OnRegistered, if set, is called once per transfer handed to the engine.
	// The progress UI uses it to create a bar per token.
	OnRegistered func(token transfer.Token, url, name string)

	// OnFinished, if set, is called once per completion message.
	OnFinished func(msg transfer.Message)

	Logger *logging.Logger
}

// Manager drives an Engine over one batch of sources at a time.
type Manager struct {
	engine transfer.Engine
	opts   Options
	logger *logging.Logger
}

// entry is one destination registered with the engine.
type entry struct {
	url  string
	name string
	path string
	sink *os.File
}

type candidate struct {
	url  string
	name string
}

// NewManager creates a Manager around engine.
func NewManager(engine transfer.Engine, opts Options) *Manager {
	return &Manager{
		engine: engine,
		opts:   opts,
		logger: logging.OrNop(opts.Logger),
	}
}

// DownloadAll fetches sources into dir and returns the local paths of the
// successful transfers, in completion order. Per-source failures are logged
// and omitted. The returned error is non-nil only when dir cannot be created
// or ctx is cancelled; in the latter case the paths finished so far are
// returned alongside it.
func (m *Manager) DownloadAll(ctx context.Context, sources []string, dir string) ([]string, error) {
	sources = paths.Dedup(sources)

	batchID := uuid.New().String()
	log := m.logger.With("batch", batchID)

	if err := os.MkdirAll(dir, constants.DirPerm); err != nil {
		return nil, fmt.Errorf("failed to create download directory %s: %w", dir, err)
	}

	candidates := make([]candidate, 0, len(sources))
	for _, src := range sources {
		name, ok := paths.FileNameFromURL(src)
		if !ok {
			log.Debug().Str("url", src).Msg("No file name in URL, dropping")
			continue
		}
		if err := validation.ValidateFilename(name); err != nil {
			log.Warn().Err(err).Str("url", src).Msg("Unusable file name in URL, dropping")
			continue
		}
		candidates = append(candidates, candidate{url: src, name: name})
	}

	entries := make(map[transfer.Token]*entry, len(candidates))
	defer func() {
		for _, e := range entries {
			e.sink.Close()
		}
	}()

	claimed := make(map[string]bool, len(candidates))
	for i, c := range candidates {
		token := transfer.Token(i)
		e, ok := m.register(log, dir, c, token, claimed)
		if !ok {
			continue
		}
		entries[token] = e
		if m.opts.OnRegistered != nil {
			m.opts.OnRegistered(token, e.url, e.name)
		}
	}

	log.Info().
		Int("sources", len(sources)).
		Int("queued", len(entries)).
		Str("dir", dir).
		Msg("Starting downloads")

	results := make([]string, 0, len(entries))
	handle := func(msg transfer.Message) {
		e, ok := entries[msg.Token]
		if !ok {
			log.Warn().Int("token", int(msg.Token)).Msg("Completion for unknown transfer")
			return
		}
		delete(entries, msg.Token)

		if m.opts.OnFinished != nil {
			m.opts.OnFinished(msg)
		}
		if path, ok := m.finish(log, e, msg); ok {
			results = append(results, path)
		}
	}

	for {
		active, err := m.engine.Perform(ctx)
		m.engine.Messages(handle)
		if err != nil {
			log.Warn().Err(err).Int("completed", len(results)).Msg("Downloads interrupted")
			return results, fmt.Errorf("download interrupted: %w", err)
		}
		if active == 0 {
			break
		}
	}
	m.engine.Messages(handle)

	ev := log.Info().
		Int("downloaded", len(results)).
		Int("dropped", len(sources)-len(results))
	if s, ok := m.engine.(statsReporter); ok {
		st := s.Stats()
		ev = ev.Int("transfers_completed", st.Completed).Int("transfers_failed", st.Failed)
	}
	ev.Msg("Downloads finished")
	return results, nil
}

// statsReporter is implemented by engines that keep per-state task counts.
type statsReporter interface {
	Stats() transfer.Stats
}

// register resolves the destination for c, opens it and hands it to the
// engine. It returns false when the source is dropped.
func (m *Manager) register(log *logging.Logger, dir string, c candidate, token transfer.Token, claimed map[string]bool) (*entry, bool) {
	res, err := paths.Resolve(dir, c.name, m.opts.OnDuplicated)
	if err != nil {
		log.Error().Err(err).Str("url", c.url).Msg("Cannot resolve destination")
		return nil, false
	}
	if res.Skip {
		log.Warn().Str("url", c.url).Str("name", c.name).Msg("Destination exists, skipping")
		return nil, false
	}
	if err := validation.ValidatePathInDirectory(res.Path, dir); err != nil {
		log.Error().Err(err).Str("url", c.url).Msg("Destination outside download directory")
		return nil, false
	}
	if claimed[res.Path] {
		// Replace would hand the same file to two transfers.
		log.Warn().Str("url", c.url).Str("path", res.Path).Msg("Destination already used by this batch, skipping")
		return nil, false
	}

	sink, err := paths.OpenDestination(res)
	if err != nil {
		log.Error().Err(err).Str("url", c.url).Str("path", res.Path).Msg("Cannot open destination")
		return nil, false
	}

	if err := m.engine.Add(c.url, sink, token); err != nil {
		sink.Close()
		log.Error().Err(err).Str("url", c.url).Msg("Cannot register transfer")
		return nil, false
	}
	claimed[res.Path] = true

	switch {
	case res.Renamed:
		log.Info().Str("url", c.url).Str("name", res.Name).Msg("Destination exists, renamed")
	case res.Replaced:
		log.Info().Str("url", c.url).Str("name", res.Name).Msg("Destination exists, replacing")
	}

	return &entry{url: c.url, name: res.Name, path: res.Path, sink: sink}, true
}

// finish closes the sink of a completed transfer and reports whether it
// produced a usable file.
func (m *Manager) finish(log *logging.Logger, e *entry, msg transfer.Message) (string, bool) {
	closeErr := e.sink.Close()
	err := msg.Err
	if err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close %s: %w", e.path, closeErr)
	}

	if err != nil {
		kind := http.ClassifyError(err).String()
		ev := log.Error().Err(err).Str("url", e.url).Str("kind", kind)
		if msg.Status != 0 {
			ev = ev.Int("status", msg.Status)
		}
		ev.Msg("Download failed")

		// A partial or error-page file would collide with the next attempt.
		if rmErr := os.Remove(e.path); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn().Err(rmErr).Str("path", e.path).Msg("Cannot remove partial download")
		}
		return "", false
	}

	size := msg.Bytes
	if info, statErr := os.Stat(e.path); statErr == nil {
		size = info.Size()
	}
	log.Info().
		Str("path", e.path).
		Str("size", humanize.IBytes(uint64(size))).
		Dur("elapsed", msg.Elapsed).
		Str("speed", humanize.IBytes(uint64(msg.Speed))+"/s").
		Msg("Downloaded")
	return e.path, true
}
