package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"auction-core/internal/domain"
)

// nopLogger silences service logging in tests.
type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Fatal(string, ...interface{}) {}

// memTxManager mimics transactional rollback over the in-memory repos: it
// snapshots every store before the unit of work and restores them all when
// the unit fails.
type memTxManager struct {
	mu     sync.Mutex
	stores []rollbackStore
}

type rollbackStore interface {
	snapshot() interface{}
	restore(state interface{})
}

func newMemTxManager(stores ...rollbackStore) *memTxManager {
	return &memTxManager{stores: stores}
}

func (m *memTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	states := make([]interface{}, len(m.stores))
	for i, s := range m.stores {
		states[i] = s.snapshot()
	}

	if err := fn(ctx); err != nil {
		for i, s := range m.stores {
			s.restore(states[i])
		}
		return err
	}
	return nil
}

type memAuctionRepo struct {
	mu        sync.Mutex
	auctions  map[string]*domain.Auction
	statusErr error // next UpdateAuctionStatus fails with this, once
}

func newMemAuctionRepo() *memAuctionRepo {
	return &memAuctionRepo{auctions: make(map[string]*domain.Auction)}
}

func (r *memAuctionRepo) failNextStatusUpdate(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusErr = err
}

func (r *memAuctionRepo) snapshot() interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make(map[string]*domain.Auction, len(r.auctions))
	for id, auction := range r.auctions {
		c := *auction
		if auction.CurrentPrice != nil {
			price := *auction.CurrentPrice
			c.CurrentPrice = &price
		}
		cp[id] = &c
	}
	return cp
}

func (r *memAuctionRepo) restore(state interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions = state.(map[string]*domain.Auction)
}

func (r *memAuctionRepo) CreateAuction(_ context.Context, auction *domain.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *auction
	r.auctions[auction.ID] = &cp
	return nil
}

func (r *memAuctionRepo) GetAuction(_ context.Context, auctionID string) (*domain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	auction, ok := r.auctions[auctionID]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	cp := *auction
	if auction.CurrentPrice != nil {
		price := *auction.CurrentPrice
		cp.CurrentPrice = &price
	}
	return &cp, nil
}

func (r *memAuctionRepo) UpdateAuctionStatus(_ context.Context, auctionID string, status domain.AuctionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.statusErr; err != nil {
		r.statusErr = nil
		return err
	}
	if auction, ok := r.auctions[auctionID]; ok {
		auction.Status = status
		auction.UpdatedAt = time.Now()
	}
	return nil
}

func (r *memAuctionRepo) UpdateAuctionPrice(_ context.Context, auctionID string, price *int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if auction, ok := r.auctions[auctionID]; ok {
		if price == nil {
			auction.CurrentPrice = nil
		} else {
			p := *price
			auction.CurrentPrice = &p
		}
		auction.UpdatedAt = time.Now()
	}
	return nil
}

func (r *memAuctionRepo) GetOpenAuctionsEndingAfter(_ context.Context, t time.Time) ([]*domain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Auction
	for _, auction := range r.auctions {
		if auction.Status == domain.AuctionOpen && auction.EndTime.After(t) {
			cp := *auction
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memAuctionRepo) ListAuctions(_ context.Context, page, size int) ([]*domain.Auction, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Auction
	for _, auction := range r.auctions {
		if auction.Status != domain.AuctionDeleted {
			cp := *auction
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

type memBidRepo struct {
	mu        sync.Mutex
	bids      map[string]*domain.Bid
	createErr error // next CreateBid fails with this, once
	priceErr  error // next UpdateBidPrice fails with this, once
}

func newMemBidRepo() *memBidRepo {
	return &memBidRepo{bids: make(map[string]*domain.Bid)}
}

func (r *memBidRepo) failNextCreate(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createErr = err
}

func (r *memBidRepo) failNextPriceUpdate(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.priceErr = err
}

func (r *memBidRepo) snapshot() interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make(map[string]*domain.Bid, len(r.bids))
	for id, bid := range r.bids {
		c := *bid
		cp[id] = &c
	}
	return cp
}

func (r *memBidRepo) restore(state interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bids = state.(map[string]*domain.Bid)
}

func (r *memBidRepo) CreateBid(_ context.Context, bid *domain.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.createErr; err != nil {
		r.createErr = nil
		return err
	}
	cp := *bid
	r.bids[bid.ID] = &cp
	return nil
}

func (r *memBidRepo) GetBid(_ context.Context, bidID string) (*domain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bid, ok := r.bids[bidID]
	if !ok {
		return nil, domain.ErrBidNotFound
	}
	cp := *bid
	return &cp, nil
}

func (r *memBidRepo) UpdateBidPrice(_ context.Context, bidID string, price int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.priceErr; err != nil {
		r.priceErr = nil
		return err
	}
	if bid, ok := r.bids[bidID]; ok {
		bid.Price = price
	}
	return nil
}

func (r *memBidRepo) UpdateBidStatus(_ context.Context, bidID string, status domain.BidStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if bid, ok := r.bids[bidID]; ok {
		bid.Status = status
	}
	return nil
}

func (r *memBidRepo) GetHighestActiveBid(_ context.Context, auctionID string) (*domain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *domain.Bid
	for _, bid := range r.bids {
		if bid.AuctionID != auctionID || bid.Status != domain.BidActive {
			continue
		}
		if best == nil || bid.Price > best.Price ||
			(bid.Price == best.Price && bid.CreatedAt.Before(best.CreatedAt)) {
			best = bid
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (r *memBidRepo) GetHighestActivePrice(ctx context.Context, auctionID string) (*int64, error) {
	best, err := r.GetHighestActiveBid(ctx, auctionID)
	if err != nil || best == nil {
		return nil, err
	}
	price := best.Price
	return &price, nil
}

func (r *memBidRepo) ListBidsByAuction(_ context.Context, auctionID string, page, size int) ([]*domain.Bid, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Bid
	for _, bid := range r.bids {
		if bid.AuctionID == auctionID {
			cp := *bid
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	return out, int64(len(out)), nil
}

func (r *memBidRepo) ListBidsByUser(_ context.Context, userID string, page, size int) ([]*domain.Bid, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Bid
	for _, bid := range r.bids {
		if bid.BidderID == userID {
			cp := *bid
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

type memBalanceRepo struct {
	mu       sync.Mutex
	balances map[string]int64
}

func newMemBalanceRepo() *memBalanceRepo {
	return &memBalanceRepo{balances: make(map[string]int64)}
}

func (r *memBalanceRepo) setBalance(userID string, amount int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[userID] = amount
}

func (r *memBalanceRepo) balance(userID string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[userID]
}

func (r *memBalanceRepo) snapshot() interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make(map[string]int64, len(r.balances))
	for id, amount := range r.balances {
		cp[id] = amount
	}
	return cp
}

func (r *memBalanceRepo) restore(state interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances = state.(map[string]int64)
}

func (r *memBalanceRepo) Reserve(_ context.Context, userID string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.balances[userID] < amount {
		return domain.ErrInsufficientBalance
	}
	r.balances[userID] -= amount
	return nil
}

func (r *memBalanceRepo) ReleaseAndReserve(_ context.Context, userID string, oldAmount, newAmount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.balances[userID]+oldAmount < newAmount {
		return domain.ErrInsufficientBalance
	}
	r.balances[userID] += oldAmount - newAmount
	return nil
}

func (r *memBalanceRepo) Release(_ context.Context, userID string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.balances[userID]; !ok {
		return domain.ErrUserNotFound
	}
	r.balances[userID] += amount
	return nil
}

type memSettlementRepo struct {
	mu           sync.Mutex
	entries      map[string]*domain.SettlementEntry
	transactions []*domain.Transaction
	entryErr     error // next CreateEntry fails with this, once
}

func newMemSettlementRepo() *memSettlementRepo {
	return &memSettlementRepo{entries: make(map[string]*domain.SettlementEntry)}
}

func (r *memSettlementRepo) failNextCreateEntry(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entryErr = err
}

type settlementState struct {
	entries      map[string]*domain.SettlementEntry
	transactions []*domain.Transaction
}

func (r *memSettlementRepo) snapshot() interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := settlementState{
		entries:      make(map[string]*domain.SettlementEntry, len(r.entries)),
		transactions: make([]*domain.Transaction, len(r.transactions)),
	}
	for id, entry := range r.entries {
		c := *entry
		state.entries[id] = &c
	}
	copy(state.transactions, r.transactions)
	return state
}

func (r *memSettlementRepo) restore(state interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := state.(settlementState)
	r.entries = s.entries
	r.transactions = s.transactions
}

func (r *memSettlementRepo) CreateEntry(_ context.Context, entry *domain.SettlementEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.entryErr; err != nil {
		r.entryErr = nil
		return err
	}
	cp := *entry
	r.entries[entry.ID] = &cp
	return nil
}

func (r *memSettlementRepo) GetPendingEntries(_ context.Context, limit int) ([]*domain.SettlementEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.SettlementEntry
	for _, entry := range r.entries {
		if entry.Status == domain.SettlementPending && len(out) < limit {
			cp := *entry
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memSettlementRepo) MarkCompleted(_ context.Context, entryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[entryID]; ok {
		entry.Status = domain.SettlementCompleted
	}
	return nil
}

func (r *memSettlementRepo) CreateTransaction(_ context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *tx
	r.transactions = append(r.transactions, &cp)
	return nil
}

func (r *memSettlementRepo) entryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *memSettlementRepo) transactionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transactions)
}

type memEventPublisher struct {
	mu     sync.Mutex
	events []*domain.AuctionEvent
}

func (p *memEventPublisher) PublishAuctionEvent(_ context.Context, event *domain.AuctionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *event
	p.events = append(p.events, &cp)
	return nil
}

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled map[string]time.Time
	cancelled []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: make(map[string]time.Time)}
}

func (s *fakeScheduler) Schedule(auctionID string, fireAt time.Time) error {
	if time.Until(fireAt) <= 0 {
		return domain.ErrInvalidSchedule
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled[auctionID] = fireAt
	return nil
}

func (s *fakeScheduler) Cancel(auctionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scheduled, auctionID)
	s.cancelled = append(s.cancelled, auctionID)
}

func (s *fakeScheduler) Recover(context.Context) error { return nil }

func (s *fakeScheduler) Shutdown(context.Context) error { return nil }

func (s *fakeScheduler) wasCancelled(auctionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.cancelled {
		if id == auctionID {
			return true
		}
	}
	return false
}

// countingCloser counts closure invocations for scheduler tests.
type countingCloser struct {
	mu    sync.Mutex
	count int
	err   error
}

func (c *countingCloser) CloseAuction(context.Context, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return c.err
}

func (c *countingCloser) closures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
