package thermostat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/azviot/thermostazv/internal/protocol"
)

// noon is an in-schedule instant for the default morning/evening bounds.
var noon = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

type harness struct {
	t        *testing.T
	store    *MemoryStore
	in       chan Command
	device   chan protocol.Command
	announce chan protocol.Command
	mgr      *Manager
	cancel   context.CancelFunc
	done     chan error
}

func startManager(t *testing.T, initial State, at time.Time) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		store:    &MemoryStore{},
		in:       make(chan Command),
		device:   make(chan protocol.Command, 4),
		announce: make(chan protocol.Command, 4),
		done:     make(chan error, 1),
	}
	h.mgr = NewManager(h.store, initial, h.in, h.device)
	h.mgr.SetAnnounce(h.announce)
	h.mgr.SetClock(func() time.Time { return at }, time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.mgr.Run(ctx) }()
	t.Cleanup(cancel)
	return h
}

// apply sends cmds, then a barrier command, so every cmd is fully handled
// on return.
func (h *harness) apply(cmds ...Command) {
	h.t.Helper()
	for _, c := range cmds {
		select {
		case h.in <- c:
		case err := <-h.done:
			h.t.Fatalf("manager stopped early: %v", err)
		case <-time.After(time.Second):
			h.t.Fatalf("manager did not accept %v", c)
		}
	}
	// The manager only takes the barrier once the previous command is done.
	// An out-of-range hour is rejected without touching state or store.
	select {
	case h.in <- SetMorning{Hour: -1}:
	case <-time.After(time.Second):
		h.t.Fatal("manager stalled")
	}
}

func (h *harness) persisted() State {
	h.t.Helper()
	s, err := h.store.Load(context.Background())
	if err != nil {
		h.t.Fatalf("store.Load() error = %v", err)
	}
	return s
}

func drain(ch chan protocol.Command) []protocol.Command {
	var out []protocol.Command
	for {
		select {
		case c := <-ch:
			out = append(out, c)
		default:
			return out
		}
	}
}

func TestManager_TurnsHeaterOn(t *testing.T) {
	initial := DefaultState()
	initial.Present = true
	initial.Day = 17.5
	initial.Hot = false

	h := startManager(t, initial, noon)
	h.apply(Current{Temperature: 16.9})

	sent := drain(h.device)
	if len(sent) != 1 || sent[0] != (protocol.Set{Relay: protocol.Hot}) {
		t.Fatalf("device queue = %v, want [Set(Hot)]", sent)
	}
	if !h.persisted().Hot {
		t.Error("persisted hot = false, want true")
	}
	if !h.mgr.State().Load().Hot {
		t.Error("broadcast hot = false, want true")
	}
	if got := drain(h.announce); len(got) != 1 || got[0] != (protocol.Set{Relay: protocol.Hot}) {
		t.Errorf("announce queue = %v, want [Set(Hot)]", got)
	}
}

func TestManager_HysteresisBand(t *testing.T) {
	initial := DefaultState()
	const target = 17.5

	h := startManager(t, initial, noon)

	h.apply(Current{Temperature: target - 0.6})
	if got := drain(h.device); len(got) != 1 || got[0] != (protocol.Set{Relay: protocol.Hot}) {
		t.Fatalf("after %v: device queue = %v, want [Set(Hot)]", target-0.6, got)
	}

	h.apply(Current{Temperature: target - 0.4})
	if got := drain(h.device); len(got) != 0 {
		t.Errorf("inside band: device queue = %v, want nothing", got)
	}
	if !h.persisted().Hot {
		t.Error("inside band: hot should stay true")
	}

	h.apply(Current{Temperature: target + 0.6})
	if got := drain(h.device); len(got) != 1 || got[0] != (protocol.Set{Relay: protocol.Cold}) {
		t.Errorf("above band: device queue = %v, want [Set(Cold)]", got)
	}
	if h.persisted().Hot {
		t.Error("above band: hot should be false")
	}
}

func TestManager_AbsenceUsesEmptyTarget(t *testing.T) {
	h := startManager(t, DefaultState(), noon)

	h.apply(SetPresent{Present: false}, Current{Temperature: 12})
	if got := drain(h.device); len(got) != 0 {
		t.Errorf("device queue = %v, want nothing (12°C is above empty target)", got)
	}

	h.apply(Current{Temperature: 9})
	if got := drain(h.device); len(got) != 1 || got[0] != (protocol.Set{Relay: protocol.Hot}) {
		t.Errorf("device queue = %v, want [Set(Hot)]", got)
	}
}

func TestManager_SettersPersist(t *testing.T) {
	h := startManager(t, DefaultState(), noon)

	h.apply(
		SetDay{Value: 20},
		SetNight{Value: 16},
		SetEmpty{Value: 8},
		SetMorning{Hour: 7},
		SetEvening{Hour: 22},
		SetPresent{Present: false},
		SetHot{Hot: true},
	)

	want := State{Day: 20, Night: 16, Empty: 8, Morning: 7, Evening: 22, Present: false, Hot: true}
	if got := h.persisted(); got != want {
		t.Errorf("persisted = %+v, want %+v", got, want)
	}
	if got := h.mgr.State().Load(); got != want {
		t.Errorf("broadcast = %+v, want %+v", got, want)
	}
	if got := drain(h.device); len(got) != 0 {
		t.Errorf("setters must not reach the device, got %v", got)
	}
}

func TestManager_InvalidHourRejected(t *testing.T) {
	h := startManager(t, DefaultState(), noon)

	h.apply(SetMorning{Hour: 24}, SetEvening{Hour: -1})

	if _, err := h.store.Load(context.Background()); !errors.Is(err, ErrStateNotFound) {
		t.Errorf("store.Load() error = %v, want ErrStateNotFound after rejected setters", err)
	}
	if got := h.mgr.State().Load(); got.Morning != 6 || got.Evening != 23 {
		t.Errorf("broadcast schedule = %d-%d, want unchanged 6-23", got.Morning, got.Evening)
	}

	h.apply(SetDay{Value: 18})
	saves := h.store.Saves()
	h.apply(SetMorning{Hour: 25}, SetEvening{Hour: 99})

	if got := h.store.Saves(); got != saves {
		t.Errorf("Saves() = %d after rejected setters, want %d", got, saves)
	}
	got := h.persisted()
	if got.Morning != 6 || got.Evening != 23 || got.Day != 18 {
		t.Errorf("persisted = %+v, want day 18 and schedule 6-23", got)
	}
}

func TestManager_BroadcastOnlyOnChange(t *testing.T) {
	h := startManager(t, DefaultState(), noon)

	h.apply(SetDay{Value: 17.5}, SetDay{Value: 17.5})
	if v := h.mgr.State().Version(); v != 0 {
		t.Errorf("Version() = %d after unchanged commands, want 0", v)
	}
	if h.store.Saves() < 2 {
		t.Errorf("Saves() = %d, want every command persisted", h.store.Saves())
	}

	h.apply(SetDay{Value: 18})
	if v := h.mgr.State().Version(); v != 1 {
		t.Errorf("Version() = %d, want 1", v)
	}
}

func TestManager_StoreFailureIsFatal(t *testing.T) {
	store := &MemoryStore{FailSave: errors.New("disk full")}
	in := make(chan Command, 1)
	mgr := NewManager(store, DefaultState(), in, make(chan protocol.Command, 1))

	in <- SetDay{Value: 19}
	err := mgr.Run(context.Background())
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("Run() error = %v, want ErrPersist", err)
	}
	if mgr.State().Load().Day != 17.5 {
		t.Error("state must not change when persisting fails")
	}
}

func TestManager_StopsOnCancel(t *testing.T) {
	h := startManager(t, DefaultState(), noon)
	h.cancel()

	select {
	case err := <-h.done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestLoadOrInit(t *testing.T) {
	store := &MemoryStore{}
	ctx := context.Background()

	got, err := LoadOrInit(ctx, store, DefaultState())
	if err != nil {
		t.Fatalf("LoadOrInit() error = %v", err)
	}
	if got != DefaultState() {
		t.Errorf("LoadOrInit() = %+v, want defaults", got)
	}
	if store.Saves() != 1 {
		t.Errorf("defaults should be saved once, got %d saves", store.Saves())
	}

	custom := DefaultState()
	custom.Day = 21
	if err := store.Save(ctx, custom); err != nil {
		t.Fatal(err)
	}
	got, err = LoadOrInit(ctx, store, DefaultState())
	if err != nil {
		t.Fatalf("LoadOrInit() error = %v", err)
	}
	if got.Day != 21 {
		t.Errorf("LoadOrInit() Day = %v, want persisted 21", got.Day)
	}
}
