// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package market

import (
	"context"
	"sort"
	"time"

	"github.com/orbitforge/worldmarket/db"
	"github.com/orbitforge/worldmarket/econ"
	"github.com/orbitforge/worldmarket/order"
)

// memArchivist is an in-memory db.Archivist with snapshot/rollback RunTx
// semantics, for exercising settlement logic without a database.
type memArchivist struct {
	nextOID  econ.OrderID
	nextItem econ.ItemID
	orders   map[econ.OrderID]*order.Order
	wallets  map[walletKey]int64
	treasury int64
	stacks   map[econ.ItemID]*memStack
	samples  map[sampleKey]*db.PriceSample
	taxLog   []*db.TaxChange
	infos    map[econ.MarketID]*db.MarketInfo
	rates    map[econ.MarketID]float64
}

type walletKey struct {
	owner econ.EntityID
	corp  bool
}

type memStack struct {
	def       econ.ItemDefID
	units     uint32
	container econ.ContainerID
}

type sampleKey struct {
	mkt    econ.MarketID
	def    econ.ItemDefID
	bucket time.Time
}

func newMemArchivist(infos ...*db.MarketInfo) *memArchivist {
	byID := make(map[econ.MarketID]*db.MarketInfo)
	rates := make(map[econ.MarketID]float64)
	for _, info := range infos {
		byID[info.ID] = info
		rates[info.ID] = info.TaxRate
	}
	return &memArchivist{
		nextOID:  100,
		nextItem: 1000,
		orders:   make(map[econ.OrderID]*order.Order),
		wallets:  make(map[walletKey]int64),
		stacks:   make(map[econ.ItemID]*memStack),
		samples:  make(map[sampleKey]*db.PriceSample),
		infos:    byID,
		rates:    rates,
	}
}

// Test state helpers.

func (a *memArchivist) fund(owner econ.EntityID, corp bool, amount int64) {
	a.wallets[walletKey{owner, corp}] = amount
}

func (a *memArchivist) balance(owner econ.EntityID, corp bool) int64 {
	return a.wallets[walletKey{owner, corp}]
}

func (a *memArchivist) addStack(def econ.ItemDefID, units uint32, container econ.ContainerID) econ.ItemID {
	a.nextItem++
	a.stacks[a.nextItem] = &memStack{def: def, units: units, container: container}
	return a.nextItem
}

// containerUnits sums the units of def held in a container.
func (a *memArchivist) containerUnits(container econ.ContainerID, def econ.ItemDefID) uint32 {
	var total uint32
	for _, st := range a.stacks {
		if st.container == container && st.def == def {
			total += st.units
		}
	}
	return total
}

// totalUnits sums all units of def across all containers.
func (a *memArchivist) totalUnits(def econ.ItemDefID) uint32 {
	var total uint32
	for _, st := range a.stacks {
		if st.def == def {
			total += st.units
		}
	}
	return total
}

// totalMoney sums all wallets and the treasury.
func (a *memArchivist) totalMoney() int64 {
	total := a.treasury
	for _, bal := range a.wallets {
		total += bal
	}
	return total
}

// Snapshot/rollback.

type memSnapshot struct {
	nextOID  econ.OrderID
	nextItem econ.ItemID
	orders   map[econ.OrderID]*order.Order
	wallets  map[walletKey]int64
	treasury int64
	stacks   map[econ.ItemID]*memStack
	samples  map[sampleKey]*db.PriceSample
	taxLog   []*db.TaxChange
	rates    map[econ.MarketID]float64
}

func (a *memArchivist) snapshot() *memSnapshot {
	snap := &memSnapshot{
		nextOID:  a.nextOID,
		nextItem: a.nextItem,
		orders:   make(map[econ.OrderID]*order.Order, len(a.orders)),
		wallets:  make(map[walletKey]int64, len(a.wallets)),
		treasury: a.treasury,
		stacks:   make(map[econ.ItemID]*memStack, len(a.stacks)),
		samples:  make(map[sampleKey]*db.PriceSample, len(a.samples)),
		taxLog:   append([]*db.TaxChange(nil), a.taxLog...),
		rates:    make(map[econ.MarketID]float64, len(a.rates)),
	}
	for oid, o := range a.orders {
		cp := *o
		snap.orders[oid] = &cp
	}
	for k, v := range a.wallets {
		snap.wallets[k] = v
	}
	for id, st := range a.stacks {
		cp := *st
		snap.stacks[id] = &cp
	}
	for k, s := range a.samples {
		cp := *s
		snap.samples[k] = &cp
	}
	for k, v := range a.rates {
		snap.rates[k] = v
	}
	return snap
}

func (a *memArchivist) restore(snap *memSnapshot) {
	a.nextOID = snap.nextOID
	a.nextItem = snap.nextItem
	a.orders = snap.orders
	a.wallets = snap.wallets
	a.treasury = snap.treasury
	a.stacks = snap.stacks
	a.samples = snap.samples
	a.taxLog = snap.taxLog
	a.rates = snap.rates
}

type memTx struct {
	*memArchivist
	hooks []func()
}

func (t *memTx) OnCommit(f func()) {
	t.hooks = append(t.hooks, f)
}

func (a *memArchivist) RunTx(_ context.Context, f func(db.Tx) error) error {
	snap := a.snapshot()
	tx := &memTx{memArchivist: a}
	if err := f(tx); err != nil {
		a.restore(snap)
		return err
	}
	for _, hook := range tx.hooks {
		hook()
	}
	return nil
}

func (a *memArchivist) Close() error { return nil }

// OrderArchiver

func (a *memArchivist) InsertOrder(_ context.Context, ord *order.Order) (econ.OrderID, error) {
	if err := ord.Validate(); err != nil {
		return 0, db.ArchiveError{Code: db.ErrInvalidOrder, Detail: err.Error()}
	}
	a.nextOID++
	cp := *ord
	cp.ID = a.nextOID
	a.orders[cp.ID] = &cp
	return cp.ID, nil
}

func (a *memArchivist) Order(_ context.Context, oid econ.OrderID) (*order.Order, error) {
	o, found := a.orders[oid]
	if !found {
		return nil, db.ArchiveError{Code: db.ErrUnknownOrder}
	}
	cp := *o
	return &cp, nil
}

func (a *memArchivist) SetOrderQuantity(_ context.Context, oid econ.OrderID, remaining uint32) error {
	if remaining == 0 {
		return db.ArchiveError{Code: db.ErrInvalidOrder, Detail: "zero remaining"}
	}
	o, found := a.orders[oid]
	if !found {
		return db.ArchiveError{Code: db.ErrUnknownOrder}
	}
	o.Quantity = econ.Finite(remaining)
	return nil
}

func (a *memArchivist) SetOrderPrice(_ context.Context, oid econ.OrderID, p int64) error {
	o, found := a.orders[oid]
	if !found {
		return db.ArchiveError{Code: db.ErrUnknownOrder}
	}
	o.Price = p
	return nil
}

func (a *memArchivist) DeleteOrder(_ context.Context, oid econ.OrderID) (int64, error) {
	if _, found := a.orders[oid]; !found {
		return 0, nil
	}
	delete(a.orders, oid)
	return 1, nil
}

func (a *memArchivist) eligible(o *order.Order, q *db.CounterQuery) bool {
	return o.MarketID == q.Market && o.ItemDef == q.ItemDef &&
		o.Submitter != q.Exclude && (o.Scope == 0 || o.Scope == q.Scope)
}

func (a *memArchivist) BestSellOrder(_ context.Context, q *db.CounterQuery) (*order.Order, error) {
	var matches []*order.Order
	for _, o := range a.orders {
		if o.Sell && o.Price <= q.Price && a.eligible(o, q) {
			matches = append(matches, o)
		}
	}
	if len(matches) == 0 {
		return nil, db.ArchiveError{Code: db.ErrNoCounterOrder}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Price != matches[j].Price {
			return matches[i].Price < matches[j].Price
		}
		if !matches[i].SubmittedAt.Equal(matches[j].SubmittedAt) {
			return matches[i].SubmittedAt.Before(matches[j].SubmittedAt)
		}
		return matches[i].ID < matches[j].ID
	})
	cp := *matches[0]
	return &cp, nil
}

func (a *memArchivist) BestBuyOrder(_ context.Context, q *db.CounterQuery) (*order.Order, error) {
	var matches []*order.Order
	for _, o := range a.orders {
		if !o.Sell && o.Price >= q.Price && a.eligible(o, q) {
			matches = append(matches, o)
		}
	}
	if len(matches) == 0 {
		return nil, db.ArchiveError{Code: db.ErrNoCounterOrder}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Price != matches[j].Price {
			return matches[i].Price > matches[j].Price
		}
		if !matches[i].SubmittedAt.Equal(matches[j].SubmittedAt) {
			return matches[i].SubmittedAt.Before(matches[j].SubmittedAt)
		}
		return matches[i].ID < matches[j].ID
	})
	cp := *matches[0]
	return &cp, nil
}

func (a *memArchivist) ExpiredOrders(_ context.Context, now time.Time, ratio float64) ([]*order.Order, error) {
	var expired []*order.Order
	for _, o := range a.orders {
		if o.Vendor || o.Scope != 0 || o.Quantity.IsInfinite() {
			continue
		}
		if o.ExpiredBy(now, ratio) {
			cp := *o
			expired = append(expired, &cp)
		}
	}
	return expired, nil
}

func (a *memArchivist) MarketOrders(_ context.Context, mkt econ.MarketID) ([]*order.Order, error) {
	var out []*order.Order
	for _, o := range a.orders {
		if o.MarketID == mkt {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (a *memArchivist) SubmitterOrders(_ context.Context, submitter econ.EntityID) ([]*order.Order, error) {
	var out []*order.Order
	for _, o := range a.orders {
		if o.Submitter == submitter {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

// PriceArchiver

func (a *memArchivist) AppendSample(_ context.Context, s *db.PriceSample) error {
	key := sampleKey{s.MarketID, s.ItemDef, db.BucketStart(s.Bucket)}
	row, found := a.samples[key]
	if !found {
		cp := *s
		cp.Bucket = key.bucket
		a.samples[key] = &cp
		return nil
	}
	row.TotalPrice += s.TotalPrice
	row.Quantity += s.Quantity
	if s.High > row.High {
		row.High = s.High
	}
	if s.Low < row.Low {
		row.Low = s.Low
	}
	return nil
}

func (a *memArchivist) WindowSum(_ context.Context, mkt econ.MarketID, def econ.ItemDefID, since time.Time) (int64, int64, error) {
	var total, qty int64
	for key, s := range a.samples {
		if key.mkt == mkt && key.def == def && !key.bucket.Before(db.BucketStart(since)) {
			total += s.TotalPrice
			qty += s.Quantity
		}
	}
	return total, qty, nil
}

// TaxArchiver

func (a *memArchivist) AppendTaxChange(_ context.Context, ch *db.TaxChange) error {
	cp := *ch
	a.taxLog = append(a.taxLog, &cp)
	return nil
}

func (a *memArchivist) TaxChanges(_ context.Context, base econ.BaseID, limit int) ([]*db.TaxChange, error) {
	var out []*db.TaxChange
	for i := len(a.taxLog) - 1; i >= 0 && len(out) < limit; i-- {
		if a.taxLog[i].BaseID == base {
			cp := *a.taxLog[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// MarketArchiver

func (a *memArchivist) Markets(_ context.Context) ([]*db.MarketInfo, error) {
	var out []*db.MarketInfo
	for _, info := range a.infos {
		cp := *info
		cp.TaxRate = a.rates[info.ID]
		out = append(out, &cp)
	}
	return out, nil
}

func (a *memArchivist) SetMarketTax(_ context.Context, mkt econ.MarketID, rate float64) error {
	if _, found := a.infos[mkt]; !found {
		return db.ArchiveError{Code: db.ErrUnknownMarket}
	}
	a.rates[mkt] = econ.ClampRate(rate)
	return nil
}

// BankArchiver

func (a *memArchivist) WalletBalance(_ context.Context, owner econ.EntityID, corp bool) (int64, error) {
	bal, found := a.wallets[walletKey{owner, corp}]
	if !found {
		return 0, db.ArchiveError{Code: db.ErrUnknownWallet}
	}
	return bal, nil
}

func (a *memArchivist) AdjustWallet(_ context.Context, owner econ.EntityID, corp bool, delta int64, _ econ.EntryKind) error {
	key := walletKey{owner, corp}
	bal, found := a.wallets[key]
	if !found {
		return db.ArchiveError{Code: db.ErrUnknownWallet}
	}
	if bal+delta < 0 {
		return db.ArchiveError{Code: db.ErrInsufficientBalance}
	}
	a.wallets[key] = bal + delta
	return nil
}

func (a *memArchivist) CreditCentralBank(_ context.Context, amount int64, _ econ.EntryKind) error {
	a.treasury += amount
	return nil
}

func (a *memArchivist) DebitCentralBank(_ context.Context, amount int64, _ econ.EntryKind) error {
	a.treasury -= amount
	return nil
}

func (a *memArchivist) CentralBankBalance(_ context.Context) (int64, error) {
	return a.treasury, nil
}

// ItemArchiver

func (a *memArchivist) MoveStack(_ context.Context, item econ.ItemID, to econ.ContainerID) error {
	st, found := a.stacks[item]
	if !found {
		return db.ArchiveError{Code: db.ErrUnknownItem}
	}
	st.container = to
	return nil
}

func (a *memArchivist) SplitStack(_ context.Context, item econ.ItemID, units uint32, to econ.ContainerID) (econ.ItemID, error) {
	st, found := a.stacks[item]
	if !found {
		return 0, db.ArchiveError{Code: db.ErrUnknownItem}
	}
	if units == 0 || units >= st.units {
		return 0, db.ArchiveError{Code: db.ErrGeneralFailure,
			Detail: "split must leave both stacks non-empty"}
	}
	st.units -= units
	a.nextItem++
	a.stacks[a.nextItem] = &memStack{def: st.def, units: units, container: to}
	return a.nextItem, nil
}

func (a *memArchivist) MintStack(_ context.Context, def econ.ItemDefID, units uint32, to econ.ContainerID) (econ.ItemID, error) {
	if units == 0 {
		return 0, db.ArchiveError{Code: db.ErrGeneralFailure, Detail: "empty mint"}
	}
	a.nextItem++
	a.stacks[a.nextItem] = &memStack{def: def, units: units, container: to}
	return a.nextItem, nil
}

func (a *memArchivist) DestroyStack(_ context.Context, item econ.ItemID) error {
	if _, found := a.stacks[item]; !found {
		return db.ArchiveError{Code: db.ErrUnknownItem}
	}
	delete(a.stacks, item)
	return nil
}

func (a *memArchivist) StackUnits(_ context.Context, item econ.ItemID) (uint32, error) {
	st, found := a.stacks[item]
	if !found {
		return 0, db.ArchiveError{Code: db.ErrUnknownItem}
	}
	return st.units, nil
}

// Collaborator fakes.

type testPerson struct {
	id       econ.EntityID
	corp     econ.CorporationID
	bonus    float64
	roles    econ.Role
	delivery econ.ContainerID
}

func (p *testPerson) ID() econ.EntityID               { return p.id }
func (p *testPerson) Corporation() econ.CorporationID { return p.corp }
func (p *testPerson) TaxBonus() float64               { return p.bonus }
func (p *testPerson) HasRole(corp econ.CorporationID, roles econ.Role) bool {
	return corp == p.corp && p.roles&roles != 0
}
func (p *testPerson) DeliveryContainer(econ.BaseID) econ.ContainerID { return p.delivery }

type testDirectory map[econ.EntityID]*testPerson

func (d testDirectory) Participant(_ context.Context, id econ.EntityID) (econ.Participant, error) {
	p, found := d[id]
	if !found {
		return nil, econ.NewError(econ.ErrNotFound, "no such entity")
	}
	return p, nil
}

type sentNote struct {
	char  econ.EntityID
	event string
}

type testNotifier struct {
	notes []sentNote
}

func (n *testNotifier) SendToCharacter(char econ.EntityID, event string, _ any) {
	n.notes = append(n.notes, sentNote{char, event})
}

func (n *testNotifier) count(event string) int {
	var c int
	for _, note := range n.notes {
		if note.event == event {
			c++
		}
	}
	return c
}
