// Package orchestrator holds the listeners that turn store changes into
// show/hide and play/stop commands on the systems they own.
package orchestrator

// #region imports
import (
	"log/slog"

	"github.com/jameskane05/nanauts-sub000/internal/criteria"
	"github.com/jameskane05/nanauts-sub000/internal/rules"
	"github.com/jameskane05/nanauts-sub000/internal/state"
)

// #endregion

// #region hosts

// PanelHost shows and hides spatial panels. Both calls are idempotent.
type PanelHost interface {
	Show(id string)
	Hide(id string)
}

// AudioPlayer plays music tracks. Pause/Resume keep the playback offset.
type AudioPlayer interface {
	Play(id string)
	Stop(id string)
	Pause(id string)
	Resume(id string)
	SetVolume(v float64)
}

// DialogPlayer plays voiced dialog lines.
type DialogPlayer interface {
	Play(id string)
	Stop(id string)
	Pause(id string)
	Resume(id string)
}

// SFXPlayer fires one-shot sound effects.
type SFXPlayer interface {
	PlaySFX(id string)
}

// Recorder receives every command a listener issues. logging.DecisionLog
// implements it.
type Recorder interface {
	Record(component, target, action, reason string)
}

// Listener is the common shape of every orchestration listener.
type Listener interface {
	OnStateChanged(next, prev state.Snapshot)
}

// #endregion hosts

// #region base

type nopRecorder struct{}

func (nopRecorder) Record(string, string, string, string) {}

// Option configures a listener.
type Option func(*base)

// WithLogger sets the listener's logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *base) { b.logger = l }
}

// WithRecorder sets where issued commands are recorded.
func WithRecorder(r Recorder) Option {
	return func(b *base) {
		if r != nil {
			b.rec = r
		}
	}
}

type base struct {
	logger *slog.Logger
	rec    Recorder
}

func newBase(opts []Option) base {
	b := base{logger: slog.Default(), rec: nopRecorder{}}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// relevantFields collects the fields a rule set reads. ok is false when a
// rule holds an expression, which may read anything.
func relevantFields(rs []rules.Rule) (fields []state.Field, ok bool) {
	seen := map[string]bool{}
	for _, r := range rs {
		if r.Criteria.Dynamic() {
			return nil, false
		}
		for _, f := range r.Criteria.Fields() {
			if !seen[f] {
				seen[f] = true
				fields = append(fields, state.Field(f))
			}
		}
	}
	return fields, true
}

// touches reports whether the notification changed anything rs depends on.
func touches(next, prev state.Snapshot, rs []rules.Rule) bool {
	fields, ok := relevantFields(rs)
	if !ok {
		return true
	}
	return next.Changed(prev, fields...)
}

func criteriaFields(cs ...criteria.Criteria) []state.Field {
	var out []state.Field
	for _, c := range cs {
		for _, f := range c.Fields() {
			out = append(out, state.Field(f))
		}
	}
	return out
}

// #endregion base

// #region orchestrator

// Hosts bundles the external systems the listeners drive. A nil host
// disables its listener.
type Hosts struct {
	Panels PanelHost
	Music  AudioPlayer
	Dialog DialogPlayer
	SFX    SFXPlayer
}

// Orchestrator wires every listener to one store. Subscription order is
// fixed: panels first, so the input-mode listener sees the current
// exclusivity; the ringer last, since it may Set.
type Orchestrator struct {
	store   *state.Store
	Panels  *Panels
	Input   *InputMode
	Music   *Music
	Dialogs *Dialogs
	Ringer  *Ringer
	subs    []state.SubscriptionID
}

// New builds and subscribes every listener with a host, then syncs them to
// the store's current snapshot.
func New(store *state.Store, table *rules.Table, hosts Hosts, opts ...Option) *Orchestrator {
	o := &Orchestrator{store: store}
	var ls []Listener

	if hosts.Panels != nil {
		o.Panels = NewPanels(table, hosts.Panels, opts...)
		o.Input = NewInputMode(hosts.Panels, o.Panels.Exclusive, opts...)
		o.Panels.follow(o.Input)
		ls = append(ls, o.Panels, o.Input)
	}
	if hosts.Music != nil {
		o.Music = NewMusic(DefaultTracks(), hosts.Music, opts...)
		ls = append(ls, o.Music)
	}
	if hosts.Dialog != nil {
		o.Dialogs = NewDialogs(store, DefaultDialogs(), hosts.Dialog, opts...)
		ls = append(ls, o.Dialogs)
	}
	if hosts.SFX != nil {
		o.Ringer = NewRinger(store, hosts.SFX, opts...)
		ls = append(ls, o.Ringer)
	}

	for _, l := range ls {
		o.subs = append(o.subs, store.Subscribe(state.EventStateChanged, l.OnStateChanged))
	}
	current := store.Get()
	for _, l := range ls {
		l.OnStateChanged(current, state.Snapshot{})
	}
	return o
}

// Close unsubscribes every listener.
func (o *Orchestrator) Close() {
	for _, id := range o.subs {
		o.store.Unsubscribe(state.EventStateChanged, id)
	}
	o.subs = nil
}

// #endregion orchestrator
