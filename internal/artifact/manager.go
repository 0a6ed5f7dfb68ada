// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package artifact

import (
	"errors"
	"io/fs"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pdiddy/dcrm-diagnostics/internal/model"
	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

// Load outcomes reported to a LoadObserver.
const (
	OutcomeReady      = "ready"
	OutcomeMissingDir = "missing_dir"
	OutcomeFailed     = "failed"
)

// LoadObserver is told about every load attempt.
type LoadObserver func(layout, outcome string)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for load events.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithLoadObserver registers fn to be called after each load attempt.
func WithLoadObserver(fn LoadObserver) Option {
	return func(m *Manager) { m.observe = fn }
}

// Manager loads one artifact layout lazily and at most once per need.
// Readers that find a published bundle never take the lock.
type Manager struct {
	layout  Layout
	store   *Store
	logger  *slog.Logger
	observe LoadObserver

	mu      sync.Mutex
	bundle  atomic.Pointer[Bundle]
	lastErr atomic.Pointer[types.ArtifactUnavailableError]
	loads   atomic.Int64
}

// NewManager returns a manager for layout reading from dir. Nothing is
// loaded until the first EnsureReady.
func NewManager(layout Layout, dir string, opts ...Option) *Manager {
	m := &Manager{
		layout: layout,
		store:  NewStore(dir),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Layout returns the layout this manager loads.
func (m *Manager) Layout() Layout { return m.layout }

// Store returns the underlying artifact store.
func (m *Manager) Store() *Store { return m.store }

// EnsureReady returns the loaded bundle, loading it first if needed. When
// the artifacts cannot be loaded it returns *types.ArtifactUnavailableError
// naming the first missing item.
func (m *Manager) EnsureReady() (*Bundle, error) {
	if b := m.bundle.Load(); b != nil {
		return b, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b := m.bundle.Load(); b != nil {
		return b, nil
	}
	m.load()
	if b := m.bundle.Load(); b != nil {
		return b, nil
	}
	return nil, m.unavailable()
}

// Peek returns the published bundle without loading, or nil.
func (m *Manager) Peek() *Bundle { return m.bundle.Load() }

// Invalidate drops the published bundle so the next EnsureReady reloads.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundle.Store(nil)
}

// Reload forces a load attempt. A failed reload keeps no bundle.
func (m *Manager) Reload() (*Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundle.Store(nil)
	m.load()
	if b := m.bundle.Load(); b != nil {
		return b, nil
	}
	return nil, m.unavailable()
}

// Loads returns the number of load attempts so far.
func (m *Manager) Loads() int64 { return m.loads.Load() }

// LastError returns the failure of the most recent load attempt, or nil.
func (m *Manager) LastError() error {
	if err := m.lastErr.Load(); err != nil {
		return err
	}
	return nil
}

func (m *Manager) unavailable() error {
	if err := m.lastErr.Load(); err != nil {
		return err
	}
	item := "artifacts"
	if missing := (*Bundle)(nil).Missing(m.layout); len(missing) > 0 {
		item = missing[0]
	}
	return &types.ArtifactUnavailableError{Layout: m.layout.Name, Item: item, Dir: m.store.Dir()}
}

// load makes one attempt and publishes the bundle only when it is complete.
// It never returns an error; failures are logged and kept for LastError.
// Callers hold m.mu.
func (m *Manager) load() {
	m.loads.Add(1)
	log := m.logger.With("layout", m.layout.Name, "dir", m.store.Dir())

	if !m.store.Exists() {
		m.fail(&types.ArtifactUnavailableError{
			Layout: m.layout.Name, Item: "directory", Dir: m.store.Dir(), Err: fs.ErrNotExist,
		})
		log.Warn("artifact directory does not exist")
		m.notify(OutcomeMissingDir)
		return
	}

	b, err := m.read()
	if err != nil {
		var ua *types.ArtifactUnavailableError
		if !errors.As(err, &ua) {
			ua = &types.ArtifactUnavailableError{Layout: m.layout.Name, Item: "artifacts", Dir: m.store.Dir(), Err: err}
		}
		m.fail(ua)
		log.Error("loading artifacts failed", "item", ua.Item, "error", ua.Err)
		m.notify(OutcomeFailed)
		return
	}

	m.lastErr.Store(nil)
	m.bundle.Store(b)
	log.Info("artifacts loaded",
		"features", b.Schema.Len(),
		"models", b.AvailableModels(),
		"classes", b.Labels.Len())
	m.notify(OutcomeReady)
}

func (m *Manager) fail(err *types.ArtifactUnavailableError) {
	m.lastErr.Store(err)
}

func (m *Manager) notify(outcome string) {
	if m.observe != nil {
		m.observe(m.layout.Name, outcome)
	}
}

// read decodes every artifact of the layout into a new bundle.
func (m *Manager) read() (*Bundle, error) {
	l := m.layout
	b := &Bundle{Layout: l.Name, Dir: m.store.Dir(), Threshold: math.NaN()}

	wrap := func(item string, err error) error {
		return &types.ArtifactUnavailableError{Layout: l.Name, Item: item, Dir: m.store.Dir(), Err: err}
	}

	data, err := m.store.ReadFile(l.Features)
	if err != nil {
		return nil, wrap(l.Features, err)
	}
	if b.Schema, err = decodeSchema(data); err != nil {
		return nil, wrap(l.Features, err)
	}

	b.Scaler = model.IdentityScaler{}
	if l.Scaler != "" {
		data, err := m.store.ReadFile(l.Scaler)
		switch {
		case err == nil:
			if b.Scaler, err = model.DecodeScaler(data); err != nil {
				return nil, wrap(l.Scaler, err)
			}
		case l.ScalerOptional && errors.Is(err, fs.ErrNotExist):
			m.logger.Debug("optional scaler absent, using identity", "layout", l.Name, "file", l.Scaler)
		default:
			return nil, wrap(l.Scaler, err)
		}
	}

	if l.Labels != "" {
		data, err := m.store.ReadFile(l.Labels)
		if err != nil {
			return nil, wrap(l.Labels, err)
		}
		if b.Labels, err = model.DecodeLabelMap(data); err != nil {
			return nil, wrap(l.Labels, err)
		}
	}

	if l.Primary != "" {
		data, err := m.store.ReadFile(l.Primary)
		if err != nil {
			return nil, wrap(l.Primary, err)
		}
		xgb, err := model.DecodeXGBoost(data)
		if err != nil {
			return nil, wrap(l.Primary, err)
		}
		b.Primary = xgb
	}

	if l.Secondary != "" {
		data, err := m.store.ReadFile(l.Secondary)
		if err != nil {
			return nil, wrap(l.Secondary, err)
		}
		ada, err := model.DecodeAdaBoost(data)
		if err != nil {
			return nil, wrap(l.Secondary, err)
		}
		b.Secondary = ada
	}

	if l.Reconstructor != "" {
		data, err := m.store.ReadFile(l.Reconstructor)
		if err != nil {
			return nil, wrap(l.Reconstructor, err)
		}
		ae, err := model.DecodeAutoencoder(data)
		if err != nil {
			return nil, wrap(l.Reconstructor, err)
		}
		b.Reconstructor = ae
	}

	if l.Threshold != "" {
		data, err := m.store.ReadFile(l.Threshold)
		if err != nil {
			return nil, wrap(l.Threshold, err)
		}
		if b.Threshold, err = model.DecodeThreshold(data); err != nil {
			return nil, wrap(l.Threshold, err)
		}
	}

	if err := b.validate(l); err != nil {
		return nil, err
	}
	if missing := b.Missing(l); len(missing) > 0 {
		return nil, wrap(missing[0], errors.New("artifact not loaded"))
	}
	b.LoadedAt = time.Now().UTC()
	return b, nil
}
