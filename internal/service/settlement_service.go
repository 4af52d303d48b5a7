package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
)

// settleLockTTL bounds how long a settlement lock is held if the process
// dies mid-run. Longer than any realistic run, short enough that a crashed
// run does not block the daily cycle.
const settleLockTTL = 5 * time.Minute

// SettlementService is the elimination executor. Given a day's true outcome
// it penalizes wrong predictors and non-predictors, leaves correct
// predictors untouched, and clears or retains prediction rows depending on
// the pot phase.
//
// The five settlement steps are logically one transaction. The underlying
// store does not always provide multi-statement atomicity, so the executor
// runs them sequentially and records the last completed step in a durable
// run record. On failure it aborts without compensating rollback: every
// mutation is idempotent (insert-if-absent, delete-by-key), so operators
// simply re-run Settle.
type SettlementService struct {
	registry    *Registry
	outcomes    domain.OutcomeStore
	runs        domain.SettlementRunStore
	predictions domain.PredictionStore
	penalties   domain.PenaltyStore
	ledger      domain.LedgerStore
	pots        domain.PotStore
	grace       *GracePolicy
	archiver    domain.SettlementArchiver
	locks       domain.LockManager
	bus         domain.SignalBus
	audit       domain.AuditStore
	logger      *slog.Logger
	now         func() time.Time
}

// SettlementDeps bundles the dependencies of the settlement service.
// Archiver, Locks, Bus, and Audit are optional; a nil value disables that
// concern without changing settlement semantics.
type SettlementDeps struct {
	Registry    *Registry
	Outcomes    domain.OutcomeStore
	Runs        domain.SettlementRunStore
	Predictions domain.PredictionStore
	Penalties   domain.PenaltyStore
	Ledger      domain.LedgerStore
	Pots        domain.PotStore
	Grace       *GracePolicy
	Archiver    domain.SettlementArchiver
	Locks       domain.LockManager
	Bus         domain.SignalBus
	Audit       domain.AuditStore
}

// NewSettlementService creates a SettlementService.
func NewSettlementService(deps SettlementDeps, logger *slog.Logger) *SettlementService {
	return &SettlementService{
		registry:    deps.Registry,
		outcomes:    deps.Outcomes,
		runs:        deps.Runs,
		predictions: deps.Predictions,
		penalties:   deps.Penalties,
		ledger:      deps.Ledger,
		pots:        deps.Pots,
		grace:       deps.Grace,
		archiver:    deps.Archiver,
		locks:       deps.Locks,
		bus:         deps.Bus,
		audit:       deps.Audit,
		logger:      logger.With(slog.String("component", "settlement_service")),
		now:         time.Now,
	}
}

// Settle runs the full elimination pipeline for one market's question and
// date. A zero TargetDate means the current UTC date. Re-running a completed
// settlement returns the stored counts without further mutation; re-running
// a failed one resumes safely because every mutation is idempotent.
func (s *SettlementService) Settle(ctx context.Context, req domain.SettleRequest) (domain.SettlementResult, error) {
	outcome, err := domain.ParseOutcome(string(req.Outcome))
	if err != nil {
		return domain.SettlementResult{}, err
	}
	market, err := s.registry.Get(req.MarketType)
	if err != nil {
		return domain.SettlementResult{}, err
	}

	question := req.QuestionName
	if question == "" {
		question = market.QuestionName
	}
	targetDate := req.TargetDate
	if targetDate == (civil.Date{}) {
		targetDate = civil.DateOf(s.now().UTC())
	}

	// One settle at a time per (market, question, date). The idempotent
	// design makes a double invocation safe rather than merely detected;
	// the lock just keeps two operators from interleaving log output and
	// duplicate notifications.
	if s.locks != nil {
		key := fmt.Sprintf("settle:%s:%s:%s", req.MarketType, question, targetDate)
		unlock, err := s.locks.Acquire(ctx, key, settleLockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return domain.SettlementResult{}, domain.ErrSettleInProgress
			}
			return domain.SettlementResult{}, fmt.Errorf("settlement: acquire lock: %w", err)
		}
		defer unlock()
	}

	logger := s.logger.With(
		slog.String("market_type", string(req.MarketType)),
		slog.String("question", question),
		slog.String("target_date", targetDate.String()),
	)

	finalDay := false
	if info, err := s.pots.Get(ctx, market.Contract); err == nil {
		finalDay = info.IsFinalDay
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.SettlementResult{}, fmt.Errorf("settlement: load pot info: %w", err)
	}

	// A completed run for the same outcome short-circuits: state is already
	// settled and the stored counts are returned unchanged.
	prior, priorErr := s.runs.Get(ctx, req.MarketType, question, targetDate)
	havePrior := priorErr == nil
	if priorErr != nil && !errors.Is(priorErr, domain.ErrNotFound) {
		return domain.SettlementResult{}, fmt.Errorf("settlement: load run record: %w", priorErr)
	}
	if havePrior && prior.Completed() && prior.Outcome == outcome {
		logger.InfoContext(ctx, "settlement already completed, returning stored counts")
		return prior.Result(finalDay), nil
	}
	if havePrior && prior.Completed() && prior.Outcome != outcome {
		logger.WarnContext(ctx, "re-settling with a different outcome",
			slog.String("previous", string(prior.Outcome)),
			slog.String("new", string(outcome)),
		)
	}

	run := domain.SettlementRun{
		RunID:        uuid.New().String(),
		MarketType:   req.MarketType,
		QuestionName: question,
		TargetDate:   targetDate,
		Outcome:      outcome,
		LastStep:     domain.StepNone,
		StartedAt:    s.now().UTC(),
	}
	if havePrior {
		// Preserve counts observed by an earlier partial attempt; rows it
		// already deleted are invisible to this run.
		run.TotalParticipants = prior.TotalParticipants
		run.CorrectPredictors = prior.CorrectPredictors
	}

	fail := func(step domain.SettleStep, err error) (domain.SettlementResult, error) {
		logger.ErrorContext(ctx, "settlement aborted",
			slog.String("last_completed_step", string(run.LastStep)),
			slog.String("failed_step", string(step)),
			slog.String("error", err.Error()),
		)
		if upErr := s.runs.Upsert(ctx, run); upErr != nil {
			logger.ErrorContext(ctx, "recording aborted run failed",
				slog.String("error", upErr.Error()),
			)
		}
		return domain.SettlementResult{}, fmt.Errorf("settlement: step %s (last completed %q): %w", step, run.LastStep, err)
	}

	// Step 1: record the final outcome.
	if _, err := s.outcomes.SetFinal(ctx, req.MarketType, question, targetDate, outcome, s.now().UTC()); err != nil {
		return fail(domain.StepFinalOutcome, err)
	}
	run.LastStep = domain.StepFinalOutcome
	if err := s.runs.Upsert(ctx, run); err != nil {
		return fail(domain.StepFinalOutcome, err)
	}

	// Step 2: partition the day's predictions.
	preds, err := s.predictions.ListForDate(ctx, req.MarketType, question, targetDate)
	if err != nil {
		return fail(domain.StepWrong, err)
	}

	var wrong, correct []domain.Prediction
	for _, p := range preds {
		if p.Side == outcome.Opposite() {
			wrong = append(wrong, p)
		} else {
			correct = append(correct, p)
		}
	}
	if len(preds) > run.TotalParticipants {
		run.TotalParticipants = len(preds)
	}
	if len(correct) > run.CorrectPredictors {
		run.CorrectPredictors = len(correct)
	}

	// Snapshot the day's rows to cold storage before anything is deleted.
	// An upload failure aborts the run; the rows survive for the retry.
	if s.archiver != nil && len(preds) > 0 {
		if _, err := s.archiver.ArchivePredictions(ctx, req.MarketType, question, targetDate, preds); err != nil {
			return fail(domain.StepWrong, err)
		}
	}

	// Step 3: penalize wrong predictors, then delete their prediction rows
	// so a retry cannot double count them.
	for _, p := range wrong {
		if _, err := s.penalties.Insert(ctx, req.MarketType, p.Wallet, targetDate); err != nil {
			return fail(domain.StepWrong, err)
		}
		if err := s.predictions.DeleteForWallet(ctx, req.MarketType, p.Wallet, question, targetDate); err != nil {
			return fail(domain.StepWrong, err)
		}
	}
	run.LastStep = domain.StepWrong
	if err := s.runs.Upsert(ctx, run); err != nil {
		return fail(domain.StepWrong, err)
	}

	// Step 4: penalize eligible wallets that never predicted, unless
	// exempt. A ledger read failure aborts: "cannot determine eligibility"
	// must never be treated as "nobody eligible".
	eligible, err := s.ledger.EligibleWallets(ctx, market.Contract, targetDate)
	if err != nil {
		return fail(domain.StepNonPredictors, err)
	}

	predictors := make(map[string]bool, len(preds))
	for _, p := range preds {
		predictors[p.Wallet] = true
	}
	for _, wallet := range eligible {
		if predictors[wallet] {
			continue
		}
		if s.grace.IsExempt(ctx, wallet, market.Contract, targetDate) {
			continue
		}
		if _, err := s.penalties.Insert(ctx, req.MarketType, wallet, targetDate); err != nil {
			return fail(domain.StepNonPredictors, err)
		}
	}
	run.LastStep = domain.StepNonPredictors
	if err := s.runs.Upsert(ctx, run); err != nil {
		return fail(domain.StepNonPredictors, err)
	}

	// Step 5: on a non-final day the surviving (correct) rows are cleared
	// for the next cycle. On the final day they are retained for winner
	// resolution.
	if !finalDay {
		if _, err := s.predictions.DeleteForDate(ctx, req.MarketType, question, targetDate); err != nil {
			return fail(domain.StepCleanup, err)
		}
	}
	run.LastStep = domain.StepCleanup

	// Eliminated is derived from the persisted penalty rows for the date,
	// which makes the count stable across retries.
	eliminatedCount, err := s.penalties.CountForDate(ctx, req.MarketType, targetDate)
	if err != nil {
		return fail(domain.StepDone, err)
	}
	run.Eliminated = int(eliminatedCount)

	completedAt := s.now().UTC()
	run.CompletedAt = &completedAt
	run.LastStep = domain.StepDone
	if err := s.runs.Upsert(ctx, run); err != nil {
		return fail(domain.StepDone, err)
	}

	result := run.Result(finalDay)
	logger.InfoContext(ctx, "settlement completed",
		slog.String("outcome", string(outcome)),
		slog.Int("eliminated", result.Eliminated),
		slog.Int("total_participants", result.TotalParticipants),
		slog.Int("correct_predictors", result.CorrectPredictors),
		slog.Bool("final_day", finalDay),
	)

	if s.audit != nil {
		_ = s.audit.Log(ctx, "settlement_completed", map[string]any{
			"run_id":      run.RunID,
			"market_type": string(req.MarketType),
			"question":    question,
			"date":        targetDate.String(),
			"outcome":     string(outcome),
			"eliminated":  result.Eliminated,
		})
	}
	s.publishResult(ctx, req.MarketType, question, outcome, result)

	return result, nil
}

// SettleDueProvisional finds markets whose provisional outcome for the
// current UTC date has an expired evidence window, is not disputed, and is
// not yet final, then settles each of them with the provisional outcome.
// Disputed rows are skipped for operator review. Markets settle in parallel;
// their partitions are disjoint.
func (s *SettlementService) SettleDueProvisional(ctx context.Context) ([]domain.SettlementResult, error) {
	today := civil.DateOf(s.now().UTC())
	now := s.now()

	var due []domain.SettleRequest
	for _, market := range s.registry.List() {
		rec, err := s.outcomes.Get(ctx, market.Type, market.QuestionName, today)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("settlement: scan outcome for %s: %w", market.Type, err)
		}
		if rec.Finalized() || rec.ProvisionalOutcome == nil {
			continue
		}
		if rec.Disputed {
			s.logger.InfoContext(ctx, "skipping disputed outcome",
				slog.String("market_type", string(market.Type)),
				slog.String("date", today.String()),
			)
			continue
		}
		if rec.EvidenceWindowActive(now) {
			continue
		}
		due = append(due, domain.SettleRequest{
			MarketType:   market.Type,
			QuestionName: market.QuestionName,
			Outcome:      *rec.ProvisionalOutcome,
			TargetDate:   today,
		})
	}

	results := make([]domain.SettlementResult, len(due))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range due {
		g.Go(func() error {
			res, err := s.Settle(gctx, req)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ListRuns returns recent settlement run records for operator inspection.
func (s *SettlementService) ListRuns(ctx context.Context, limit int) ([]domain.SettlementRun, error) {
	runs, err := s.runs.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("settlement: list runs: %w", err)
	}
	return runs, nil
}

func (s *SettlementService) publishResult(ctx context.Context, mt domain.MarketType, question string, outcome domain.Outcome, result domain.SettlementResult) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"event":              "settlement_completed",
		"market_type":        string(mt),
		"question":           question,
		"outcome":            string(outcome),
		"target_date":        result.TargetDate.String(),
		"eliminated":         result.Eliminated,
		"total_participants": result.TotalParticipants,
		"correct_predictors": result.CorrectPredictors,
		"final_day":          result.FinalDay,
	})
	if err := s.bus.Publish(ctx, "settlements", payload); err != nil {
		s.logger.WarnContext(ctx, "publish settlement event failed",
			slog.String("error", err.Error()),
		)
	}
}
