package fair

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/exp/slog"

	"go-fairdice/internal/http-server/model"
	"go-fairdice/internal/lib/logger/sl"
	"go-fairdice/internal/lib/random"
	"go-fairdice/internal/lib/vault"
)

const seedByteLen = 32 // 256-bit seeds, 64 hex characters

var (
	ErrRoundExists        = errors.New("round already has a commitment")
	ErrRoundNotFound      = errors.New("round not found")
	ErrCommitmentMismatch = errors.New("revealed seed does not match stored commitment")
)

type RoundRepository interface {
	SaveRound(round model.Round) (int64, error)
	FindRoundByRoundID(roundID string) (*model.Round, error)
	MarkRoundRevealed(roundID string, revealedSeedHash string, revealedAt time.Time) error
}

type AuditWriter interface {
	AppendAudit(entry model.AuditLog) error
}

// Engine owns the commit-reveal lifecycle of server seeds. A round's
// commitment is persisted before the seed is handed to anything that can
// resolve bets; that ordering is the fairness guarantee.
type Engine struct {
	rounds     RoundRepository
	audit      AuditWriter
	vault      *vault.Vault
	digitCount int
	revealed   *cache.Cache
	log        *slog.Logger
}

type RevealData struct {
	Seed       string `json:"seed"`
	Digits     []int  `json:"digits"`
	Commitment string `json:"commitment"`
}

func NewEngine(
	rounds RoundRepository,
	audit AuditWriter,
	seedVault *vault.Vault,
	digitCount int,
	log *slog.Logger,
) *Engine {
	if digitCount <= 0 {
		digitCount = DefaultDigitCount
	}

	return &Engine{
		rounds:     rounds,
		audit:      audit,
		vault:      seedVault,
		digitCount: digitCount,
		revealed:   cache.New(time.Hour, 10*time.Minute),
		log:        log,
	}
}

// Generate draws a fresh 256-bit seed, encrypts it and durably stores the
// commitment. The plaintext seed never leaves this method; callers get the
// commitment only, so the seed cannot be chosen after bets are seen.
func (e *Engine) Generate(roundID, periodTag string, clientSeedAllowed bool) (*model.Round, error) {
	const op = "fair.Engine.Generate"

	if roundID == "" {
		roundID = uuid.New().String()
	}

	existing, err := e.rounds.FindRoundByRoundID(roundID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if existing != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrRoundExists)
	}

	seed := random.NewHexString(seedByteLen)
	commitment := Commitment(seed)

	encryptedSeed, err := e.vault.Encrypt(seed)
	if err != nil {
		e.log.Error("failed to encrypt server seed", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	round := model.Round{
		RoundID:           roundID,
		Commitment:        commitment,
		EncryptedSeed:     encryptedSeed,
		PeriodTag:         periodTag,
		ClientSeedAllowed: clientSeedAllowed,
		CreatedAt:         time.Now(),
	}

	id, err := e.rounds.SaveRound(round)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	round.ID = id

	e.appendAudit("system", "round_committed", roundID, map[string]interface{}{
		"commitment": commitment,
		"period_tag": periodTag,
	})

	e.log.Info("round committed",
		sl.String("round_id", roundID),
		sl.String("commitment", commitment))

	return &round, nil
}

// Reveal decrypts the stored seed and cross-checks it against the published
// commitment. A mismatch means tampering or storage corruption and is fatal
// for the round. The first reveal records revealed_at and the seed hash;
// later calls are idempotent reads returning the same plaintext.
func (e *Engine) Reveal(roundID string) (*RevealData, error) {
	const op = "fair.Engine.Reveal"

	round, err := e.rounds.FindRoundByRoundID(roundID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if round == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrRoundNotFound)
	}

	var seed string

	if cached, ok := e.revealed.Get(roundID); ok {
		seed = cached.(string)
	} else {
		seed, err = e.vault.Decrypt(round.EncryptedSeed)
		if err != nil {
			e.log.Error("failed to decrypt server seed", sl.Err(err))

			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if Commitment(seed) != round.Commitment {
		e.log.Error("commitment mismatch on reveal", sl.String("round_id", roundID))

		return nil, fmt.Errorf("%s: %w", op, ErrCommitmentMismatch)
	}

	if round.RevealedAt == nil {
		if err = e.rounds.MarkRoundRevealed(roundID, Commitment(seed), time.Now()); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		e.appendAudit("system", "round_revealed", roundID, map[string]interface{}{
			"commitment": round.Commitment,
		})
	}

	e.revealed.Set(roundID, seed, cache.DefaultExpiration)

	return &RevealData{
		Seed:       seed,
		Digits:     ExtractDigits(seed, roundID, "", e.digitCount),
		Commitment: round.Commitment,
	}, nil
}

// Verify is the stateless accountability check: any party holding a revealed
// seed can recompute the same triple without access to internal storage.
func (e *Engine) Verify(seed, roundID, clientSeed string, expected []int) (bool, []int, string) {
	return VerifyDraw(seed, roundID, clientSeed, expected, e.digitCount)
}

func (e *Engine) appendAudit(actor, action, target string, meta map[string]interface{}) {
	entry := model.AuditLog{
		ActorID:   actor,
		Action:    action,
		Target:    target,
		CreatedAt: time.Now(),
	}

	if meta != nil {
		raw, err := json.Marshal(meta)
		if err == nil {
			entry.Meta = raw
		}
	}

	if err := e.audit.AppendAudit(entry); err != nil {
		e.log.Error("failed to append audit record",
			sl.Err(err),
			sl.String("action", action))
	}
}

// DigitCount reports the configured draw width.
func (e *Engine) DigitCount() int {
	return e.digitCount
}
