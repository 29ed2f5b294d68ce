package watch

// Qualification and dedupe. Each watched subject carries its own state
// object: a monotonic blockTime watermark, the identity of the last
// qualifying address, and the set of processed dedupe keys. State is
// snapshotted to disk on every advance so a restart cannot pay the same
// winner twice.

import (
	"context"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"clutch-protocol/internal/infra/fs"
	log "clutch-protocol/internal/infra/log"
)

type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeQualified
)

// Decision is the result of one poll for one subject.
type Decision struct {
	Outcome   Outcome
	Candidate Candidate
	Holding   *HoldingSnapshot
}

type subjectState struct {
	watermark     int64
	lastQualifier string
	processed     map[string]int64
}

type Engine struct {
	threshold float64
	stateFile string
	now       func() int64

	mu       sync.Mutex
	subjects map[string]*subjectState
}

// NewEngine loads persisted per-subject state from stateFile. An empty or
// missing file starts every subject from a zero watermark.
func NewEngine(threshold float64, stateFile string, now func() int64) (*Engine, error) {
	e := &Engine{
		threshold: threshold,
		stateFile: stateFile,
		now:       now,
		subjects:  map[string]*subjectState{},
	}

	persisted, err := fs.LoadWatchState(stateFile)
	if err != nil {
		return nil, err
	}
	for id, s := range persisted.Subjects {
		processed := s.Processed
		if processed == nil {
			processed = map[string]int64{}
		}
		e.subjects[id] = &subjectState{
			watermark:     s.LastSeenBlockTime,
			lastQualifier: s.LastQualifier,
			processed:     processed,
		}
	}
	return e, nil
}

func (e *Engine) subject(id string) *subjectState {
	if s, ok := e.subjects[id]; ok {
		return s
	}
	s := &subjectState{processed: map[string]int64{}}
	e.subjects[id] = s
	return s
}

// Watermark returns the subject's reprocessing boundary.
func (e *Engine) Watermark(subjectID string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.subject(subjectID).watermark
}

// InitWatermark seeds a subject's watermark, keeping monotonicity: it only
// ever moves the boundary forward.
func (e *Engine) InitWatermark(subjectID string, blockTime int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.subject(subjectID)
	if blockTime > s.watermark {
		s.watermark = blockTime
		e.persistLocked()
	}
}

// FreshSignatures drops records at or before the subject's watermark and
// orders the rest oldest-to-newest. This is the one scan order the whole
// system uses: the earliest qualifying event since the watermark wins.
func (e *Engine) FreshSignatures(subjectID string, sigs []*rpc.TransactionSignature) []*rpc.TransactionSignature {
	watermark := e.Watermark(subjectID)

	fresh := make([]*rpc.TransactionSignature, 0, len(sigs))
	for _, sig := range sigs {
		if sig.BlockTime == nil {
			continue
		}
		if int64(*sig.BlockTime) <= watermark {
			continue
		}
		fresh = append(fresh, sig)
	}
	sort.SliceStable(fresh, func(i, j int) bool {
		return int64(*fresh[i].BlockTime) < int64(*fresh[j].BlockTime)
	})
	return fresh
}

// Decide scans candidates in order, evaluating each holding, and picks the
// first whose balance meets the threshold (boundary inclusive). A repeat
// of the last qualifier, or an already-processed dedupe key, yields NONE.
// Only a QUALIFIED outcome advances the watermark.
func (e *Engine) Decide(ctx context.Context, subjectID, mint string, candidates []Candidate, evaluate func(ctx context.Context, address string) (*HoldingSnapshot, error)) Decision {
	for _, candidate := range candidates {
		holding, err := evaluate(ctx, candidate.Address)
		if err != nil {
			// One bad lookup never aborts the scan.
			log.LogDebug("Holding evaluation failed, skipping candidate",
				zap.String("subject", subjectID),
				zap.String("candidate", candidate.Address),
				zap.Error(err))
			continue
		}
		if holding == nil || holding.Balance < e.threshold {
			continue
		}

		key := mint + ":" + candidate.Address

		e.mu.Lock()
		s := e.subject(subjectID)
		if s.lastQualifier == candidate.Address {
			e.mu.Unlock()
			log.LogInfo("Qualifying address unchanged since last poll",
				zap.String("subject", subjectID),
				zap.String("address", candidate.Address))
			return Decision{Outcome: OutcomeNone}
		}
		if _, done := s.processed[key]; done {
			e.mu.Unlock()
			log.LogInfo("Dedupe key already processed",
				zap.String("subject", subjectID),
				zap.String("key", key))
			return Decision{Outcome: OutcomeNone}
		}

		s.lastQualifier = candidate.Address
		s.processed[key] = e.now()
		if candidate.BlockTime > s.watermark {
			s.watermark = candidate.BlockTime
		}
		e.persistLocked()
		e.mu.Unlock()

		return Decision{Outcome: OutcomeQualified, Candidate: candidate, Holding: holding}
	}

	return Decision{Outcome: OutcomeNone}
}

// persistLocked snapshots state to disk. Callers hold e.mu.
func (e *Engine) persistLocked() {
	if e.stateFile == "" {
		return
	}
	out := &fs.WatchStateFile{Subjects: map[string]fs.SubjectState{}}
	for id, s := range e.subjects {
		out.Subjects[id] = fs.SubjectState{
			LastSeenBlockTime: s.watermark,
			LastQualifier:     s.lastQualifier,
			Processed:         s.processed,
		}
	}
	if err := fs.SaveWatchState(e.stateFile, out); err != nil {
		log.LogWarn("Failed to persist watch state", zap.Error(err))
	}
}
