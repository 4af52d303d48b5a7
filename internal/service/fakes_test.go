package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-sql/civil"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func outcomePtr(o domain.Outcome) *domain.Outcome { return &o }

// fakeLedgerStore is an in-memory domain.LedgerStore. EligibleWallets runs
// the same latest-event-wins projection the real store does.
type fakeLedgerStore struct {
	mu          sync.Mutex
	events      []domain.ParticipationEvent
	nextID      int64
	eligibleErr error
	recentErr   error
	appendErr   error
}

func (f *fakeLedgerStore) Append(_ context.Context, ev domain.ParticipationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.nextID++
	ev.ID = f.nextID
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeLedgerStore) EligibleWallets(_ context.Context, contract string, targetDate civil.Date) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eligibleErr != nil {
		return nil, f.eligibleErr
	}
	latest := make(map[string]domain.ParticipationEvent)
	for _, ev := range f.events {
		if !strings.EqualFold(ev.Contract, contract) {
			continue
		}
		if ev.EventDate().After(targetDate) {
			continue
		}
		prev, ok := latest[ev.Wallet]
		if !ok || ev.EventAt.After(prev.EventAt) {
			latest[ev.Wallet] = ev
		}
	}
	var out []string
	for w, ev := range latest {
		if ev.EventType.Active() {
			out = append(out, w)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeLedgerStore) HasRecentEntry(_ context.Context, wallet, contract string, since time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recentErr != nil {
		return false, f.recentErr
	}
	for _, ev := range f.events {
		if ev.Wallet == wallet && strings.EqualFold(ev.Contract, contract) &&
			ev.EventType.Active() && !ev.EventAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedgerStore) ListByContract(_ context.Context, contract string, opts domain.ListOpts) ([]domain.ParticipationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ParticipationEvent
	for i := len(f.events) - 1; i >= 0; i-- {
		if strings.EqualFold(f.events[i].Contract, contract) {
			out = append(out, f.events[i])
		}
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeLedgerStore) DeleteByContract(_ context.Context, contract string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []domain.ParticipationEvent
	var deleted int64
	for _, ev := range f.events {
		if strings.EqualFold(ev.Contract, contract) {
			deleted++
			continue
		}
		kept = append(kept, ev)
	}
	f.events = kept
	return deleted, nil
}

type predKey struct {
	mt       domain.MarketType
	wallet   string
	question string
	date     civil.Date
}

// fakePredictionStore is an in-memory domain.PredictionStore.
type fakePredictionStore struct {
	mu        sync.Mutex
	rows      map[predKey]domain.Prediction
	listErr   error
	deleteErr error
}

func newFakePredictionStore() *fakePredictionStore {
	return &fakePredictionStore{rows: make(map[predKey]domain.Prediction)}
}

func (f *fakePredictionStore) Upsert(_ context.Context, p domain.Prediction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[predKey{p.MarketType, p.Wallet, p.QuestionName, p.PredictionDate}] = p
	return nil
}

func (f *fakePredictionStore) ListForDate(_ context.Context, mt domain.MarketType, question string, date civil.Date) ([]domain.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Prediction
	for k, p := range f.rows {
		if k.mt == mt && k.question == question && k.date == date {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Wallet < out[j].Wallet })
	return out, nil
}

func (f *fakePredictionStore) ListRemaining(_ context.Context, mt domain.MarketType) ([]domain.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Prediction
	for k, p := range f.rows {
		if k.mt == mt {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Wallet < out[j].Wallet })
	return out, nil
}

func (f *fakePredictionStore) DeleteForWallet(_ context.Context, mt domain.MarketType, wallet, question string, date civil.Date) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.rows, predKey{mt, wallet, question, date})
	return nil
}

func (f *fakePredictionStore) DeleteForDate(_ context.Context, mt domain.MarketType, question string, date civil.Date) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for k := range f.rows {
		if k.mt == mt && k.question == question && k.date == date {
			delete(f.rows, k)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakePredictionStore) DeleteByMarket(_ context.Context, mt domain.MarketType) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for k := range f.rows {
		if k.mt == mt {
			delete(f.rows, k)
			deleted++
		}
	}
	return deleted, nil
}

type penaltyKey struct {
	mt     domain.MarketType
	wallet string
	date   civil.Date
}

// fakePenaltyStore is an in-memory domain.PenaltyStore with the same
// insert-if-absent behavior as the real one.
type fakePenaltyStore struct {
	mu        sync.Mutex
	rows      map[penaltyKey]domain.Penalty
	insertErr error
}

func newFakePenaltyStore() *fakePenaltyStore {
	return &fakePenaltyStore{rows: make(map[penaltyKey]domain.Penalty)}
}

func (f *fakePenaltyStore) Insert(_ context.Context, mt domain.MarketType, wallet string, date civil.Date) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return false, f.insertErr
	}
	k := penaltyKey{mt, wallet, date}
	if _, ok := f.rows[k]; ok {
		return false, nil
	}
	f.rows[k] = domain.Penalty{
		MarketType:          mt,
		Wallet:              wallet,
		WrongPredictionDate: date,
		CreatedAt:           time.Now().UTC(),
	}
	return true, nil
}

func (f *fakePenaltyStore) ListWallets(_ context.Context, mt domain.MarketType) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for k := range f.rows {
		if k.mt == mt && !seen[k.wallet] {
			seen[k.wallet] = true
			out = append(out, k.wallet)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakePenaltyStore) ListByWallet(_ context.Context, mt domain.MarketType, wallet string) ([]domain.Penalty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Penalty
	for k, p := range f.rows {
		if k.mt == mt && k.wallet == wallet {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].WrongPredictionDate.Before(out[j].WrongPredictionDate)
	})
	return out, nil
}

func (f *fakePenaltyStore) CountForDate(_ context.Context, mt domain.MarketType, date civil.Date) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k := range f.rows {
		if k.mt == mt && k.date == date {
			n++
		}
	}
	return n, nil
}

func (f *fakePenaltyStore) DeleteByWallet(_ context.Context, mt domain.MarketType, wallet string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for k := range f.rows {
		if k.mt == mt && k.wallet == wallet {
			delete(f.rows, k)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakePenaltyStore) DeleteByMarket(_ context.Context, mt domain.MarketType) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for k := range f.rows {
		if k.mt == mt {
			delete(f.rows, k)
			deleted++
		}
	}
	return deleted, nil
}

type outcomeKey struct {
	mt       domain.MarketType
	question string
	date     civil.Date
}

// fakeOutcomeStore is an in-memory domain.OutcomeStore mirroring the SQL
// upsert semantics: SetProvisional restarts the window and clears the
// dispute flag, SetFinal leaves provisional fields untouched.
type fakeOutcomeStore struct {
	mu   sync.Mutex
	rows map[outcomeKey]domain.OutcomeRecord
}

func newFakeOutcomeStore() *fakeOutcomeStore {
	return &fakeOutcomeStore{rows: make(map[outcomeKey]domain.OutcomeRecord)}
}

func (f *fakeOutcomeStore) SetProvisional(_ context.Context, mt domain.MarketType, question string, date civil.Date, outcome domain.Outcome, setAt, windowExpires time.Time) (domain.OutcomeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := outcomeKey{mt, question, date}
	rec := f.rows[k]
	rec.MarketType = mt
	rec.QuestionName = question
	rec.OutcomeDate = date
	rec.ProvisionalOutcome = outcomePtr(outcome)
	rec.ProvisionalSetAt = &setAt
	rec.EvidenceWindowExpires = &windowExpires
	rec.Disputed = false
	f.rows[k] = rec
	return rec, nil
}

func (f *fakeOutcomeStore) SetFinal(_ context.Context, mt domain.MarketType, question string, date civil.Date, outcome domain.Outcome, setAt time.Time) (domain.OutcomeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := outcomeKey{mt, question, date}
	rec := f.rows[k]
	rec.MarketType = mt
	rec.QuestionName = question
	rec.OutcomeDate = date
	rec.FinalOutcome = outcomePtr(outcome)
	rec.FinalSetAt = &setAt
	f.rows[k] = rec
	return rec, nil
}

func (f *fakeOutcomeStore) MarkDisputed(_ context.Context, mt domain.MarketType, question string, date civil.Date) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := outcomeKey{mt, question, date}
	rec, ok := f.rows[k]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Disputed = true
	f.rows[k] = rec
	return nil
}

func (f *fakeOutcomeStore) Get(_ context.Context, mt domain.MarketType, question string, date civil.Date) (domain.OutcomeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.rows[outcomeKey{mt, question, date}]
	if !ok {
		return domain.OutcomeRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

// fakePotStore is an in-memory domain.PotStore.
type fakePotStore struct {
	mu     sync.Mutex
	pots   map[string]domain.PotInfo
	getErr error
}

func newFakePotStore() *fakePotStore {
	return &fakePotStore{pots: make(map[string]domain.PotInfo)}
}

func (f *fakePotStore) Get(_ context.Context, contract string) (domain.PotInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.PotInfo{}, f.getErr
	}
	info, ok := f.pots[strings.ToLower(contract)]
	if !ok {
		return domain.PotInfo{}, domain.ErrNotFound
	}
	return info, nil
}

func (f *fakePotStore) Upsert(_ context.Context, info domain.PotInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pots[strings.ToLower(info.Contract)] = info
	return nil
}

func (f *fakePotStore) MarkAnnouncementSent(_ context.Context, contract string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.pots[strings.ToLower(contract)]
	if !ok {
		return domain.ErrNotFound
	}
	info.AnnouncementSent = true
	f.pots[strings.ToLower(contract)] = info
	return nil
}

func (f *fakePotStore) Delete(_ context.Context, contract string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pots[strings.ToLower(contract)]; !ok {
		return domain.ErrNotFound
	}
	delete(f.pots, strings.ToLower(contract))
	return nil
}

type runKey struct {
	mt       domain.MarketType
	question string
	date     civil.Date
}

// fakeRunStore is an in-memory domain.SettlementRunStore.
type fakeRunStore struct {
	mu      sync.Mutex
	runs    map[runKey]domain.SettlementRun
	upserts int
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{runs: make(map[runKey]domain.SettlementRun)}
}

func (f *fakeRunStore) Get(_ context.Context, mt domain.MarketType, question string, date civil.Date) (domain.SettlementRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runKey{mt, question, date}]
	if !ok {
		return domain.SettlementRun{}, domain.ErrNotFound
	}
	return run, nil
}

func (f *fakeRunStore) Upsert(_ context.Context, run domain.SettlementRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	f.runs[runKey{run.MarketType, run.QuestionName, run.TargetDate}] = run
	return nil
}

func (f *fakeRunStore) ListRecent(_ context.Context, limit int) ([]domain.SettlementRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.SettlementRun
	for _, r := range f.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeAuditStore records audit events for assertion.
type fakeAuditStore struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (f *fakeAuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, domain.AuditEntry{
		ID:        int64(len(f.entries) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (f *fakeAuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AuditEntry, len(f.entries))
	copy(out, f.entries)
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeAuditStore) eventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.entries))
	for i, e := range f.entries {
		names[i] = e.Event
	}
	return names
}

// fakeParticipantSource serves a fixed live participant list.
type fakeParticipantSource struct {
	wallets map[string][]string
	err     error
}

func (f *fakeParticipantSource) LiveParticipants(_ context.Context, contract string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.wallets[strings.ToLower(contract)], nil
}

// fakeLockManager holds at most one lock per key.
type fakeLockManager struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLockManager() *fakeLockManager {
	return &fakeLockManager{held: make(map[string]bool)}
}

func (f *fakeLockManager) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return nil, domain.ErrLockHeld
	}
	f.held[key] = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
	}, nil
}

// fakeSignalBus captures published payloads per channel.
type fakeSignalBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func newFakeSignalBus() *fakeSignalBus {
	return &fakeSignalBus{published: make(map[string][][]byte)}
}

func (f *fakeSignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[channel] = append(f.published[channel], payload)
	return nil
}

func (f *fakeSignalBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (f *fakeSignalBus) count(channel string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published[channel])
}

// fakeParticipantCache tracks invalidations.
type fakeParticipantCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (f *fakeParticipantCache) Set(context.Context, string, []string, time.Duration) error {
	return nil
}

func (f *fakeParticipantCache) Get(context.Context, string) ([]string, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeParticipantCache) Invalidate(_ context.Context, contract string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, contract)
	return nil
}
