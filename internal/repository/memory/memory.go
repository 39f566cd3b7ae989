package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go-fairdice/internal/http-server/handlers/force"
	"go-fairdice/internal/http-server/handlers/payout"
	"go-fairdice/internal/http-server/model"
	"go-fairdice/internal/lib/fair"
)

// Store is an in-memory storage backend implementing the same contracts as
// the MySQL repositories. Per-record exclusive locking is modeled with one
// mutex per user balance and per forced action; the store-wide mutex is held
// only for short map accesses, never across a caller's read-modify-write.
type Store struct {
	mu          sync.Mutex
	rounds      map[string]model.Round
	actions     map[int64]model.ForcedAction
	actionLocks map[int64]*sync.Mutex
	users       map[int64]model.User
	userLocks   map[int64]*sync.Mutex
	pot         model.Pot
	payouts     map[string]model.Payout
	payoutRefs  []string
	audits      []model.AuditLog

	nextRoundID  int64
	nextActionID int64
	nextPayoutID int64
	nextAuditID  int64
}

func New() *Store {
	return &Store{
		rounds:      make(map[string]model.Round),
		actions:     make(map[int64]model.ForcedAction),
		actionLocks: make(map[int64]*sync.Mutex),
		users:       make(map[int64]model.User),
		userLocks:   make(map[int64]*sync.Mutex),
		pot:         model.Pot{ID: 1},
		payouts:     make(map[string]model.Payout),
	}
}

// SeedUser creates or resets a user balance record.
func (s *Store) SeedUser(id int64, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.users[id] = model.User{ID: id, Balance: balance, CreatedAt: now, UpdatedAt: now}

	if _, ok := s.userLocks[id]; !ok {
		s.userLocks[id] = &sync.Mutex{}
	}
}

func (s *Store) UserBalanceValue(id int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]

	return user.Balance, ok
}

func (s *Store) PotBalance() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pot.Balance
}

func (s *Store) Audits() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.AuditLog, len(s.audits))
	copy(out, s.audits)

	return out
}

// CorruptRoundCommitment overwrites a stored commitment; used to exercise
// the integrity-error path.
func (s *Store) CorruptRoundCommitment(roundID string, commitment string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	round, ok := s.rounds[roundID]
	if !ok {
		return
	}

	round.Commitment = commitment
	s.rounds[roundID] = round
}

// --- fair.RoundRepository ---

func (s *Store) SaveRound(round model.Round) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rounds[round.RoundID]; ok {
		return 0, fmt.Errorf("round %q: %w", round.RoundID, fair.ErrRoundExists)
	}

	s.nextRoundID++
	round.ID = s.nextRoundID
	s.rounds[round.RoundID] = round

	return round.ID, nil
}

func (s *Store) FindRoundByRoundID(roundID string) (*model.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	round, ok := s.rounds[roundID]
	if !ok {
		return nil, nil
	}

	return &round, nil
}

func (s *Store) MarkRoundRevealed(roundID string, revealedSeedHash string, revealedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	round, ok := s.rounds[roundID]
	if !ok {
		return fmt.Errorf("round %q: %w", roundID, fair.ErrRoundNotFound)
	}

	if round.RevealedAt != nil {
		return nil
	}

	round.RevealedSeedHash = &revealedSeedHash
	round.RevealedAt = &revealedAt
	s.rounds[roundID] = round

	return nil
}

// --- audit writer ---

func (s *Store) AppendAudit(entry model.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextAuditID++
	entry.ID = s.nextAuditID
	s.audits = append(s.audits, entry)

	return nil
}

// --- force.ActionRepository ---

func (s *Store) SaveAction(action model.ForcedAction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextActionID++
	action.ID = s.nextActionID
	s.actions[action.ID] = action
	s.actionLocks[action.ID] = &sync.Mutex{}

	return action.ID, nil
}

func (s *Store) UpdateActionLocked(id int64, fn func(action *model.ForcedAction) error) (*model.ForcedAction, error) {
	s.mu.Lock()
	lock, ok := s.actionLocks[id]
	s.mu.Unlock()

	if !ok {
		return nil, force.ErrActionNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	action := s.actions[id]
	action.Confirmations = append([]model.Confirmation(nil), action.Confirmations...)
	s.mu.Unlock()

	if err := fn(&action); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.actions[id] = action
	s.mu.Unlock()

	return &action, nil
}

func (s *Store) PendingActions(chatID int64) ([]model.ForcedAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var actions []model.ForcedAction

	for _, a := range s.actions {
		if a.Status != model.ForcePending {
			continue
		}

		if chatID != 0 && a.ChatID != chatID {
			continue
		}

		actions = append(actions, a)
	}

	sortActionsByRequestedAt(actions)

	return actions, nil
}

func (s *Store) ActionHistory(chatID int64, limit int) ([]model.ForcedAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var actions []model.ForcedAction

	for _, a := range s.actions {
		if chatID != 0 && a.ChatID != chatID {
			continue
		}

		actions = append(actions, a)
	}

	sortActionsByRequestedAt(actions)

	if limit > 0 && len(actions) > limit {
		actions = actions[:limit]
	}

	return actions, nil
}

func sortActionsByRequestedAt(actions []model.ForcedAction) {
	sort.Slice(actions, func(i, j int) bool {
		if actions[i].RequestedAt.Equal(actions[j].RequestedAt) {
			return actions[i].ID > actions[j].ID
		}

		return actions[i].RequestedAt.After(actions[j].RequestedAt)
	})
}

// --- payout.Ledger ---

// ledgerTx stages mutations while the user lock is held and applies them
// only when the caller's function succeeds, mirroring commit/rollback.
type ledgerTx struct {
	store    *Store
	userID   int64
	balance  *int64
	potDelta int64
	payouts  []model.Payout
	audits   []model.AuditLog
}

func (s *Store) WithinUserTx(userID int64, fn func(tx payout.LedgerTx) error) error {
	s.mu.Lock()
	lock, ok := s.userLocks[userID]
	s.mu.Unlock()

	if !ok {
		return payout.ErrUserNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	tx := &ledgerTx{store: s, userID: userID}

	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.balance != nil {
		user := s.users[userID]
		user.Balance = *tx.balance
		user.UpdatedAt = time.Now()
		s.users[userID] = user
	}

	if tx.potDelta != 0 {
		now := time.Now()
		s.pot.Balance += tx.potDelta
		s.pot.UpdatedAt = &now
	}

	for _, p := range tx.payouts {
		s.upsertPayout(p)
	}

	for _, entry := range tx.audits {
		s.nextAuditID++
		entry.ID = s.nextAuditID
		s.audits = append(s.audits, entry)
	}

	return nil
}

func (t *ledgerTx) UserBalance(userID int64) (int64, error) {
	if t.balance != nil {
		return *t.balance, nil
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	user, ok := t.store.users[userID]
	if !ok {
		return 0, payout.ErrUserNotFound
	}

	return user.Balance, nil
}

func (t *ledgerTx) SetUserBalance(userID int64, balance int64) error {
	if userID != t.userID {
		return fmt.Errorf("balance of user %d is not locked by this transaction", userID)
	}

	t.balance = &balance

	return nil
}

func (t *ledgerTx) AddToPot(amount int64) error {
	t.potDelta += amount

	return nil
}

func (t *ledgerTx) SavePayout(p model.Payout) error {
	t.payouts = append(t.payouts, p)

	return nil
}

func (t *ledgerTx) AppendAudit(entry model.AuditLog) error {
	t.audits = append(t.audits, entry)

	return nil
}

func (s *Store) SavePayoutRecord(p model.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertPayout(p)

	return nil
}

// upsertPayout keys on tx_ref; callers hold s.mu.
func (s *Store) upsertPayout(p model.Payout) {
	existing, ok := s.payouts[p.TxRef]
	if ok {
		p.ID = existing.ID
	} else {
		s.nextPayoutID++
		p.ID = s.nextPayoutID
		s.payoutRefs = append(s.payoutRefs, p.TxRef)
	}

	s.payouts[p.TxRef] = p
}

func (s *Store) FailedPayouts(maxAttempts int) ([]model.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payouts []model.Payout

	for _, ref := range s.payoutRefs {
		p := s.payouts[ref]
		if p.Status == model.PayoutFailed && p.Attempts < maxAttempts {
			payouts = append(payouts, p)
		}
	}

	return payouts, nil
}

func (s *Store) PayoutHistory(userID int64, limit int) ([]model.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payouts []model.Payout

	for i := len(s.payoutRefs) - 1; i >= 0; i-- {
		p := s.payouts[s.payoutRefs[i]]
		if p.UserID != userID {
			continue
		}

		payouts = append(payouts, p)

		if limit > 0 && len(payouts) >= limit {
			break
		}
	}

	return payouts, nil
}
