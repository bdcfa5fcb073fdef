package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stub repositories shared by the service tests
// ---------------------------------------------------------------------------

type stubProfiles struct {
	mu       sync.Mutex
	byID     map[string]*domain.UserProfile
	incErr   error // if set, CreditOnce returns this error without crediting
	lostAck  error // if set, CreditOnce credits and then returns this error
	incCalls int
	applied  map[string]bool // userID + "/" + reference
}

func newStubProfiles(profiles ...*domain.UserProfile) *stubProfiles {
	r := &stubProfiles{byID: make(map[string]*domain.UserProfile), applied: make(map[string]bool)}
	for _, p := range profiles {
		clone := *p
		r.byID[p.UserID] = &clone
	}
	return r
}

func (r *stubProfiles) Ensure(_ context.Context, p *domain.UserProfile) (*domain.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byID[p.UserID]; ok {
		clone := *existing
		return &clone, nil
	}
	clone := *p
	r.byID[p.UserID] = &clone
	out := clone
	return &out, nil
}

func (r *stubProfiles) FindByID(_ context.Context, userID string) (*domain.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *stubProfiles) Update(_ context.Context, userID string, upd ports.ProfileUpdate) (*domain.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if upd.DisplayName != nil {
		p.DisplayName = *upd.DisplayName
	}
	if upd.Bio != nil {
		p.Bio = *upd.Bio
	}
	if upd.AvatarPath != nil {
		p.AvatarPath = *upd.AvatarPath
	}
	if upd.PhotoURL != nil {
		p.PhotoURL = *upd.PhotoURL
	}
	if upd.SuiWalletAddress != nil {
		p.SuiWalletAddress = *upd.SuiWalletAddress
	}
	if upd.LastPaymentAt != nil {
		t := *upd.LastPaymentAt
		p.LastPaymentAt = &t
	}
	clone := *p
	return &clone, nil
}

func (r *stubProfiles) CreditOnce(_ context.Context, userID, reference string, amount float64) (float64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incCalls++
	if r.incErr != nil {
		return 0, false, r.incErr
	}
	p, ok := r.byID[userID]
	if !ok {
		return 0, false, domain.ErrNotFound
	}
	key := userID + "/" + reference
	if r.applied[key] {
		return p.Balance, false, nil
	}
	r.applied[key] = true
	p.Balance += amount
	if r.lostAck != nil {
		return 0, false, r.lostAck
	}
	return p.Balance, true, nil
}

func (r *stubProfiles) DecrementBalance(_ context.Context, userID string, amount float64) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if p.Balance < amount {
		return 0, domain.ErrInsufficientBalance
	}
	p.Balance -= amount
	return p.Balance, nil
}

func (r *stubProfiles) balance(userID string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[userID].Balance
}

type stubDeposits struct {
	mu    sync.Mutex
	byRef map[string]*domain.Deposit
	seq   int
}

func newStubDeposits() *stubDeposits {
	return &stubDeposits{byRef: make(map[string]*domain.Deposit)}
}

func (r *stubDeposits) Insert(_ context.Context, d *domain.Deposit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byRef[d.Reference]; ok {
		return domain.ErrConflict
	}
	r.seq++
	d.ID = fmt.Sprintf("dep-%d", r.seq)
	clone := *d
	r.byRef[d.Reference] = &clone
	return nil
}

func (r *stubDeposits) FindByReference(_ context.Context, reference string) (*domain.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byRef[reference]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *d
	return &clone, nil
}

func (r *stubDeposits) MarkCredited(_ context.Context, reference string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.byRef[reference]; ok && d.Status == domain.DepositPending {
		d.Status = domain.DepositCredited
		d.CreditedAt = &at
	}
	return nil
}

func (r *stubDeposits) ListPending(_ context.Context, olderThan time.Time, limit int) ([]*domain.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Deposit
	for _, d := range r.byRef {
		if d.Status == domain.DepositPending && d.CreatedAt.Before(olderThan) {
			clone := *d
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubDeposits) ListByUser(_ context.Context, userID string, limit int) ([]*domain.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Deposit
	for _, d := range r.byRef {
		if d.UserID == userID {
			clone := *d
			out = append(out, &clone)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubDeposits) status(reference string) domain.DepositStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byRef[reference].Status
}

// fixedConverter prices every non-SUI currency at rate units per SUI.
type fixedConverter struct {
	rate float64
	err  error
}

func (c fixedConverter) ConvertToSui(_ context.Context, amount float64, currency string) (*ports.Conversion, error) {
	if c.err != nil {
		return nil, c.err
	}
	if strings.EqualFold(currency, domain.CurrencySUI) {
		return &ports.Conversion{Amount: amount, Currency: domain.CurrencySUI, Rate: 1, AmountSui: amount}, nil
	}
	return &ports.Conversion{Amount: amount, Currency: strings.ToUpper(currency), Rate: c.rate, AmountSui: amount / c.rate}, nil
}

type stubDedup struct {
	mu      sync.Mutex
	applied map[string]bool
	err     error
}

func newStubDedup() *stubDedup { return &stubDedup{applied: make(map[string]bool)} }

func (d *stubDedup) IsApplied(_ context.Context, reference string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.applied[reference], d.err
}

func (d *stubDedup) MarkApplied(_ context.Context, reference string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.applied[reference] = true
	return nil
}

type stubNotes struct {
	mu    sync.Mutex
	items []*domain.Notification
}

func (r *stubNotes) Insert(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *n
	r.items = append(r.items, &clone)
	return nil
}

func (r *stubNotes) ListByUser(_ context.Context, userID string, limit int) ([]*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Notification
	for _, n := range r.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubNotes) CountUnread(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, item := range r.items {
		if item.UserID == userID && !item.Read {
			n++
		}
	}
	return n, nil
}

func (r *stubNotes) forUser(userID string) []*domain.Notification {
	out, _ := r.ListByUser(context.Background(), userID, 1000)
	return out
}

type stubProducts struct {
	mu   sync.Mutex
	byID map[string]*domain.Product
	seq  int
}

func newStubProducts() *stubProducts {
	return &stubProducts{byID: make(map[string]*domain.Product)}
}

func (r *stubProducts) Create(_ context.Context, p *domain.Product) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	clone := *p
	clone.ID = fmt.Sprintf("prod-%d", r.seq)
	r.byID[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *stubProducts) FindByID(_ context.Context, id string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *stubProducts) Update(_ context.Context, id string, upd ports.ProductUpdate) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Price != nil {
		p.Price = *upd.Price
	}
	if upd.PriceSui != nil {
		p.PriceSui = *upd.PriceSui
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Category != nil {
		p.Category = *upd.Category
	}
	if upd.DeliveryTime != nil {
		p.DeliveryTime = *upd.DeliveryTime
	}
	if upd.Images != nil {
		p.Images = upd.Images
	}
	clone := *p
	return &clone, nil
}

func (r *stubProducts) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

// List applies the same filters the real Mongo repo would use.
func (r *stubProducts) List(_ context.Context, f ports.ProductFilter) ([]*domain.Product, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*domain.Product
	for _, p := range r.byID {
		if f.OwnerID != "" && p.OwnerUserID != f.OwnerID {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.MinPrice != nil && p.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && p.Price > *f.MaxPrice {
			continue
		}
		if f.Query != "" {
			q := strings.ToLower(f.Query)
			if !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.Description), q) {
				continue
			}
		}
		clone := *p
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := int64(len(matched))
	skip := (f.Page - 1) * f.Limit
	if skip > len(matched) {
		return []*domain.Product{}, total, nil
	}
	end := skip + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[skip:end], total, nil
}

func (r *stubProducts) Categories(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, p := range r.byID {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *stubProducts) CountByOwner(_ context.Context, ownerID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.byID {
		if p.OwnerUserID == ownerID {
			n++
		}
	}
	return n, nil
}

type stubEscrows struct {
	mu   sync.Mutex
	byID map[string]*domain.Escrow
	seq  int
}

func newStubEscrows() *stubEscrows {
	return &stubEscrows{byID: make(map[string]*domain.Escrow)}
}

func (r *stubEscrows) Create(_ context.Context, e *domain.Escrow) (*domain.Escrow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	clone := *e
	clone.ID = fmt.Sprintf("esc-%d", r.seq)
	r.byID[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *stubEscrows) FindByID(_ context.Context, id string) (*domain.Escrow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (r *stubEscrows) Transition(_ context.Context, id string, t ports.EscrowTransition) (*domain.Escrow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if e.Status != t.From {
		return nil, domain.ErrInvalidTransition
	}
	e.Status = t.To
	e.ConfirmTxDigest = t.ConfirmTxDigest
	now := time.Now()
	e.ConfirmedAt = &now
	clone := *e
	return &clone, nil
}

func (r *stubEscrows) ListByUser(_ context.Context, userID string) ([]*domain.Escrow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Escrow
	for _, e := range r.byID {
		if e.BuyerID == userID || e.SellerID == userID {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *stubEscrows) CountActiveByUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, e := range r.byID {
		if e.Status == domain.EscrowActive && (e.BuyerID == userID || e.SellerID == userID) {
			n++
		}
	}
	return n, nil
}

type stubMessages struct {
	mu    sync.Mutex
	items []*domain.Message
}

func (r *stubMessages) Insert(_ context.Context, m *domain.Message) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *m
	clone.ID = fmt.Sprintf("msg-%d", len(r.items)+1)
	r.items = append(r.items, &clone)
	out := clone
	return &out, nil
}

func (r *stubMessages) ListByThread(_ context.Context, threadID string, limit int) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Message
	for _, m := range r.items {
		if m.ThreadID == threadID {
			clone := *m
			out = append(out, &clone)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type stubChain struct {
	mu    sync.Mutex
	calls []ports.MoveCall
	err   error
}

func (c *stubChain) MoveCall(_ context.Context, call ports.MoveCall) (*ports.TxResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	if c.err != nil {
		return nil, c.err
	}
	return &ports.TxResult{Digest: fmt.Sprintf("digest-%d", len(c.calls)), Status: "success"}, nil
}

func (c *stubChain) Address() string { return "0xtreasury" }

type stubObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newStubObjectStore() *stubObjectStore {
	return &stubObjectStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (s *stubObjectStore) Upload(_ context.Context, path string, r io.Reader, contentType string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = b
	s.types[path] = contentType
	return s.URL(path), nil
}

func (s *stubObjectStore) Open(_ context.Context, path string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[path]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(string(b))), s.types[path], nil
}

func (s *stubObjectStore) URL(path string) string { return "https://files.test/v1/files/" + path }
