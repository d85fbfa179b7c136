package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/erauner12/shiftsync/internal/syncx"
)

// DefaultPollInterval is the reconciler tick period.
const DefaultPollInterval = 10 * time.Second

// Status is the connectivity indicator shown to the user.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// PassResult summarizes one reconciliation pass.
type PassResult struct {
	Checked int       `json:"checked"`
	Applied int       `json:"applied"`
	Missing int       `json:"missing"`
	Errors  int       `json:"errors"`
	Offline bool      `json:"offline"`
	At      time.Time `json:"at"`
}

// ReconcilerConfig wires a Reconciler.
type ReconcilerConfig struct {
	API     RecordAPI
	Cache   syncx.RecordStore
	Applier Applier

	// Keys returns the keys to check on each pass.
	Keys func() []string

	Interval time.Duration

	// OnPass is called after every pass. Optional.
	OnPass func(PassResult)
}

// Reconciler polls the server for each watched key and adopts any record
// newer than the locally cached one.
type Reconciler struct {
	cfg ReconcilerConfig
	now func() time.Time

	inFlight atomic.Bool

	mu       sync.Mutex
	wg       sync.WaitGroup
	stopped  bool
	status   Status
	lastPass time.Time
	last     PassResult
}

// NewReconciler creates a reconciler. Interval defaults to DefaultPollInterval.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	return &Reconciler{cfg: cfg, now: time.Now, status: StatusUnknown}
}

// Run triggers a pass immediately and then on every tick until ctx is done.
// It returns once any pass still in flight has finished.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.cfg.Interval).Msg("Reconciler started")
	r.Trigger()

	for {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			r.stopped = true
			r.mu.Unlock()
			r.wg.Wait()
			log.Info().Msg("Reconciler stopped")
			return nil
		case <-ticker.C:
			if !r.Trigger() {
				log.Debug().Msg("Previous pass still running, tick skipped")
			}
		}
	}
}

// Trigger starts a pass in the background unless one is already running.
// Reports whether a pass was started.
func (r *Reconciler) Trigger() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || !r.inFlight.CompareAndSwap(false, true) {
		return false
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.inFlight.Store(false)
		r.pass(context.Background())
	}()
	return true
}

// RunOnce runs a pass synchronously. The pass is not cancelled when ctx is.
// ok is false when another pass was already in flight.
func (r *Reconciler) RunOnce(ctx context.Context) (res PassResult, ok bool) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return PassResult{}, false
	}
	defer r.inFlight.Store(false)
	return r.pass(context.WithoutCancel(ctx)), true
}

// Status returns the connectivity status from the last pass.
func (r *Reconciler) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// LastPass returns when the server was last reached for every key. Zero if never.
func (r *Reconciler) LastPass() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPass
}

// LastResult returns the summary of the most recent pass.
func (r *Reconciler) LastResult() PassResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Reconciler) pass(ctx context.Context) PassResult {
	var res PassResult
	for _, key := range r.cfg.Keys() {
		res.Checked++
		applied, err := r.reconcileKey(ctx, key)
		switch {
		case errors.Is(err, errMissing):
			res.Missing++
		case err != nil:
			res.Errors++
			var fe fetchError
			if errors.As(err, &fe) {
				res.Offline = true
			}
			log.Warn().Err(err).Str("key", key).Msg("Reconcile failed, retrying next tick")
		case applied:
			res.Applied++
		}
	}
	res.At = r.now()

	r.mu.Lock()
	r.last = res
	if res.Offline {
		r.status = StatusOffline
	} else {
		r.status = StatusOnline
		r.lastPass = res.At
	}
	r.mu.Unlock()

	log.Debug().
		Int("checked", res.Checked).
		Int("applied", res.Applied).
		Int("missing", res.Missing).
		Int("errors", res.Errors).
		Msg("Reconcile pass complete")

	if r.cfg.OnPass != nil {
		r.cfg.OnPass(res)
	}
	return res
}

// reconcileKey adopts the server record for key if it is newer than the cache.
// Data is applied before the cache is updated so a failed apply is retried.
func (r *Reconciler) reconcileKey(ctx context.Context, key string) (bool, error) {
	remote, err := r.cfg.API.GetRecord(ctx, key)
	if err != nil {
		return false, fetchError{err}
	}
	if remote == nil {
		return false, errMissing
	}

	cached, err := r.cfg.Cache.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !syncx.Accepts(cached, *remote) {
		return false, nil
	}

	if err := r.cfg.Applier.Apply(ctx, key, remote.Data); err != nil {
		return false, err
	}
	if err := r.cfg.Cache.Set(ctx, key, *remote); err != nil {
		return false, err
	}
	log.Info().
		Str("key", key).
		Int64("timestamp", remote.Timestamp).
		Str("deviceId", remote.DeviceID).
		Msg("Adopted newer record")
	return true, nil
}
