package trigger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ilkoid/teplitsa-ai/pkg/brain"
)

// fakeDecider отвечает мгновенно (или с задержкой) и записывает запросы.
type fakeDecider struct {
	mu    sync.Mutex
	reqs  []brain.Request
	delay time.Duration

	running    atomic.Int32
	maxRunning atomic.Int32
}

func (d *fakeDecider) Decide(ctx context.Context, req brain.Request) brain.DecisionResult {
	n := d.running.Add(1)
	for {
		max := d.maxRunning.Load()
		if n <= max || d.maxRunning.CompareAndSwap(max, n) {
			break
		}
	}
	defer d.running.Add(-1)

	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
		}
	}

	d.mu.Lock()
	d.reqs = append(d.reqs, req)
	d.mu.Unlock()

	return brain.DecisionResult{
		FinalText:  "ok",
		Trigger:    req.Trigger,
		ExitReason: brain.ExitNatural,
	}
}

func (d *fakeDecider) requests() []brain.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]brain.Request, len(d.reqs))
	copy(out, d.reqs)
	return out
}

func startScheduler(t *testing.T, d Decider, cfg Config) (*Scheduler, context.CancelFunc) {
	t.Helper()
	s := New(d, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s, cancel
}

func TestSchedulerScheduledTicks(t *testing.T) {
	d := &fakeDecider{}
	_, cancel := startScheduler(t, d, Config{Interval: 20 * time.Millisecond, ReactiveCooldown: time.Hour})

	time.Sleep(110 * time.Millisecond)
	cancel()

	reqs := d.requests()
	if len(reqs) < 2 {
		t.Fatalf("expected at least 2 scheduled cycles, got %d", len(reqs))
	}
	for _, r := range reqs {
		if r.Trigger != brain.TriggerScheduled {
			t.Errorf("Trigger = %s, want scheduled", r.Trigger)
		}
	}
}

func TestSchedulerReactiveEvent(t *testing.T) {
	d := &fakeDecider{}
	s, _ := startScheduler(t, d, Config{Interval: time.Hour, ReactiveCooldown: time.Hour})

	if !s.Notify(ReactiveEvent{Kind: "frost_risk", Payload: "air_temp 4.1C", ObservedAt: time.Now()}) {
		t.Fatal("first event must be accepted")
	}

	waitFor(t, func() bool { return len(d.requests()) == 1 })
	req := d.requests()[0]
	if req.Trigger != brain.TriggerReactive {
		t.Errorf("Trigger = %s, want reactive", req.Trigger)
	}
	if req.EventKind != "frost_risk" || req.EventPayload != "air_temp 4.1C" {
		t.Errorf("event fields lost: %+v", req)
	}
}

func TestSchedulerAnomalyProvenance(t *testing.T) {
	d := &fakeDecider{}
	s, _ := startScheduler(t, d, Config{Interval: time.Hour, ReactiveCooldown: time.Hour})

	s.Notify(ReactiveEvent{Kind: "pump_failure", Anomaly: true, ObservedAt: time.Now()})

	waitFor(t, func() bool { return len(d.requests()) == 1 })
	if got := d.requests()[0].Trigger; got != brain.TriggerAnomaly {
		t.Errorf("Trigger = %s, want anomaly", got)
	}
}

func TestSchedulerCooldownDropsSameKind(t *testing.T) {
	d := &fakeDecider{}
	s, _ := startScheduler(t, d, Config{Interval: time.Hour, ReactiveCooldown: 10 * time.Minute})

	if !s.Notify(ReactiveEvent{Kind: "co2_spike"}) {
		t.Fatal("first event must be accepted")
	}
	if s.Notify(ReactiveEvent{Kind: "co2_spike"}) {
		t.Error("same-kind event inside cooldown must be dropped")
	}

	waitFor(t, func() bool { return len(d.requests()) == 1 })
	time.Sleep(30 * time.Millisecond)
	if n := len(d.requests()); n != 1 {
		t.Errorf("cycles = %d, want exactly 1", n)
	}
}

func TestSchedulerSingleFlightDropsReactive(t *testing.T) {
	d := &fakeDecider{delay: 150 * time.Millisecond}
	s, _ := startScheduler(t, d, Config{Interval: time.Hour, ReactiveCooldown: time.Hour})

	// Запускаем долгий интерактивный цикл
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.Ask(context.Background(), brain.Request{Query: "status?"})
	}()

	waitFor(t, func() bool { return s.Busy() })

	// Реактивное событие во время работающего цикла отбрасывается
	if s.Notify(ReactiveEvent{Kind: "frost_risk"}) {
		t.Error("reactive event must be dropped while a cycle is in flight")
	}

	wg.Wait()
}

func TestSchedulerBusyDropKeepsCooldownSlot(t *testing.T) {
	d := &fakeDecider{delay: 100 * time.Millisecond}
	s, _ := startScheduler(t, d, Config{Interval: time.Hour, ReactiveCooldown: time.Hour})

	go func() { _, _ = s.Ask(context.Background(), brain.Request{Query: "slow"}) }()
	waitFor(t, func() bool { return s.Busy() })

	if s.Notify(ReactiveEvent{Kind: "frost_risk"}) {
		t.Fatal("event must be dropped while busy")
	}

	waitFor(t, func() bool { return !s.Busy() })

	// Отбрасывание по занятости не сжигает cooldown-слот вида
	if !s.Notify(ReactiveEvent{Kind: "frost_risk"}) {
		t.Error("same-kind event after the cycle must be accepted")
	}
	waitFor(t, func() bool { return len(d.requests()) == 2 })
}

func TestSchedulerInteractiveQueues(t *testing.T) {
	d := &fakeDecider{delay: 60 * time.Millisecond}
	s, _ := startScheduler(t, d, Config{Interval: time.Hour, ReactiveCooldown: time.Hour})

	// Два одновременных интерактивных запроса: оба выполняются, по очереди
	var wg sync.WaitGroup
	results := make([]brain.DecisionResult, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.Ask(context.Background(), brain.Request{Query: "q"})
			if err != nil {
				t.Errorf("Ask %d failed: %v", i, err)
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	if len(d.requests()) != 2 {
		t.Errorf("cycles = %d, want 2 (interactive requests queue, not drop)", len(d.requests()))
	}
	if max := d.maxRunning.Load(); max != 1 {
		t.Errorf("max concurrent cycles = %d, want 1 (single-flight)", max)
	}
	for i, res := range results {
		if res.FinalText != "ok" {
			t.Errorf("result %d = %+v", i, res)
		}
	}
}

func TestSchedulerAskCancellation(t *testing.T) {
	d := &fakeDecider{delay: 200 * time.Millisecond}
	s, _ := startScheduler(t, d, Config{Interval: time.Hour, ReactiveCooldown: time.Hour})

	// Первый запрос занимает агента
	go func() { _, _ = s.Ask(context.Background(), brain.Request{Query: "slow"}) }()
	waitFor(t, func() bool { return s.Busy() })

	// Второй отменяется не дождавшись очереди
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Ask(ctx, brain.Request{Query: "impatient"})
	if err == nil {
		t.Error("cancelled Ask must return an error")
	}
}

func TestSchedulerOnDecision(t *testing.T) {
	d := &fakeDecider{}
	s, _ := startScheduler(t, d, Config{Interval: time.Hour, ReactiveCooldown: time.Hour})

	var mu sync.Mutex
	var seen []brain.DecisionResult
	s.OnDecision(func(res brain.DecisionResult) {
		mu.Lock()
		seen = append(seen, res)
		mu.Unlock()
	})

	if _, err := s.Ask(context.Background(), brain.Request{Query: "q"}); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 {
		t.Fatalf("callback invocations = %d, want 1", len(seen))
	}
	if seen[0].Trigger != brain.TriggerInteractive {
		t.Errorf("callback trigger = %s", seen[0].Trigger)
	}
}

// waitFor опрашивает условие до таймаута.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}
