package aft

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testAssetNumber uint32 = 1234

type fakeLedger struct {
	mu          sync.Mutex
	balances    Balances
	creditLimit uint64
	credits     []string
	debits      []string
	balanceErr  error
	moveErr     error
	panicOnMove bool
	// gate 非空时资金移动阻塞到通道关闭
	gate chan struct{}
}

func (l *fakeLedger) Balances(ctx context.Context) (Balances, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances, l.balanceErr
}

func (l *fakeLedger) CreditLimit() uint64 { return l.creditLimit }

func (l *fakeLedger) Credit(ctx context.Context, transactionID string, amounts Amounts, poolID uint16, expiration uint32) error {
	if l.gate != nil {
		<-l.gate
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.panicOnMove {
		panic("ledger exploded")
	}
	if l.moveErr != nil {
		return l.moveErr
	}
	l.balances.Amounts = l.balances.Add(amounts)
	if amounts.Restricted > 0 {
		l.balances.RestrictedPoolID = poolID
	}
	l.credits = append(l.credits, transactionID)
	return nil
}

func (l *fakeLedger) Debit(ctx context.Context, transactionID string, amounts Amounts) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.moveErr != nil {
		return l.moveErr
	}
	l.balances.Cashable -= amounts.Cashable
	l.balances.Restricted -= amounts.Restricted
	l.balances.NonRestricted -= amounts.NonRestricted
	l.debits = append(l.debits, transactionID)
	return nil
}

func (l *fakeLedger) creditCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.credits)
}

func (l *fakeLedger) debitCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.debits)
}

type fakeMeters struct {
	mu     sync.Mutex
	totals map[TransferType]Amounts
}

func (m *fakeMeters) Increment(ctx context.Context, transferType TransferType, amounts Amounts) (Amounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.totals == nil {
		m.totals = make(map[TransferType]Amounts)
	}
	m.totals[transferType] = m.totals[transferType].Add(amounts)
	return m.totals[transferType], nil
}

type fakePrinter struct {
	mu        sync.Mutex
	available bool
	tickets   []Record
	receipts  []Record
}

func (p *fakePrinter) CanPrint() bool { return p.available }

func (p *fakePrinter) PrintTicket(ctx context.Context, record Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tickets = append(p.tickets, record)
	return nil
}

func (p *fakePrinter) PrintReceipt(ctx context.Context, record Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receipts = append(p.receipts, record)
	return nil
}

type fakeRegistration struct {
	registered   bool
	key          RegistrationKey
	posID        uint32
	debitEnabled bool
}

func (r *fakeRegistration) IsRegistered() bool                  { return r.registered }
func (r *fakeRegistration) RegistrationKey() RegistrationKey    { return r.key }
func (r *fakeRegistration) KeyMatches(key RegistrationKey) bool { return r.registered && r.key == key }
func (r *fakeRegistration) POSID() uint32                       { return r.posID }
func (r *fakeRegistration) DebitTransfersEnabled() bool         { return r.debitEnabled }

type fakeDisable struct {
	inGame, tilt, overlay, outDisabled bool
}

func (d *fakeDisable) InGame() bool              { return d.inGame }
func (d *fakeDisable) Tilt() bool                { return d.tilt }
func (d *fakeDisable) Overlay() bool             { return d.overlay }
func (d *fakeDisable) TransferOutDisabled() bool { return d.outDisabled }

type fakeHostCashOut struct {
	mu          sync.Mutex
	winPending  bool
	pendingWin  Amounts
	completed   []string
	timerResets int
	enabled     bool
	hardMode    bool
}

func (h *fakeHostCashOut) WinPending() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.winPending
}

func (h *fakeHostCashOut) CanCashOut() bool { return true }

func (h *fakeHostCashOut) PendingWin() Amounts {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pendingWin
}

func (h *fakeHostCashOut) CompleteWinCashOut(transactionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.winPending = false
	h.pendingWin = Amounts{}
	h.completed = append(h.completed, transactionID)
}

func (h *fakeHostCashOut) ResetTimer() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.timerResets++
}

func (h *fakeHostCashOut) ApplyHostCashOutFlags(enabled, hardMode bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enabled = enabled
	h.hardMode = hardMode
}

func (h *fakeHostCashOut) HostCashOutEnabled() bool  { return h.enabled }
func (h *fakeHostCashOut) HostCashOutHardMode() bool { return h.hardMode }

type fakeAutoPlay struct {
	mu      sync.Mutex
	active  bool
	ended   int
	resumed int
}

func (a *fakeAutoPlay) EndAutoPlayIfActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	wasActive := a.active
	if wasActive {
		a.active = false
		a.ended++
	}
	return wasActive
}

func (a *fakeAutoPlay) ResumeAutoPlay() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = true
	a.resumed++
}

type fakeBonus struct {
	mu      sync.Mutex
	allowed bool
	awarded []Amounts
}

func (b *fakeBonus) BonusAllowed() bool { return b.allowed }

func (b *fakeBonus) AwardBonus(ctx context.Context, transactionID string, transferType TransferType, amounts Amounts) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.awarded = append(b.awarded, amounts)
	return nil
}

type fakeFeatures struct {
	assetNumber   uint32
	aftEnabled    bool
	transferIn    bool
	transferOut   bool
	tickets       bool
	bonus         bool
	debit         bool
	winToHost     bool
	partial       bool
	receipts      bool
	customTicket  bool
	transferLimit uint64
}

func (f *fakeFeatures) AssetNumber() uint32             { return f.assetNumber }
func (f *fakeFeatures) AFTEnabled() bool                { return f.aftEnabled }
func (f *fakeFeatures) TransferInEnabled() bool         { return f.transferIn }
func (f *fakeFeatures) TransferOutEnabled() bool        { return f.transferOut }
func (f *fakeFeatures) TicketTransfersEnabled() bool    { return f.tickets }
func (f *fakeFeatures) BonusTransfersEnabled() bool     { return f.bonus }
func (f *fakeFeatures) DebitTransfersEnabled() bool     { return f.debit }
func (f *fakeFeatures) WinToHostEnabled() bool          { return f.winToHost }
func (f *fakeFeatures) PartialTransfersAllowed() bool   { return f.partial }
func (f *fakeFeatures) ReceiptsSupported() bool         { return f.receipts }
func (f *fakeFeatures) CustomTicketDataSupported() bool { return f.customTicket }
func (f *fakeFeatures) TransferLimit() uint64           { return f.transferLimit }

type recordingObserver struct {
	mu      sync.Mutex
	records []Record
}

func (o *recordingObserver) OnTransferCompleted(record Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, record)
}

// harness 组装好的引擎与全部假协作者
type harness struct {
	ledger       *fakeLedger
	meters       *fakeMeters
	printer      *fakePrinter
	registration *fakeRegistration
	disable      *fakeDisable
	hostCash     *fakeHostCashOut
	autoPlay     *fakeAutoPlay
	bonus        *fakeBonus
	features     *fakeFeatures
	historyStore *MemoryHistoryStore
	observer     *recordingObserver
	engine       *Engine
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		ledger:       &fakeLedger{creditLimit: 10_000_000},
		meters:       &fakeMeters{},
		printer:      &fakePrinter{available: true},
		registration: &fakeRegistration{registered: true, key: testKey(), posID: 77, debitEnabled: true},
		disable:      &fakeDisable{},
		hostCash:     &fakeHostCashOut{},
		autoPlay:     &fakeAutoPlay{},
		bonus:        &fakeBonus{allowed: true},
		features: &fakeFeatures{
			assetNumber:   testAssetNumber,
			aftEnabled:    true,
			transferIn:    true,
			transferOut:   true,
			tickets:       true,
			bonus:         true,
			debit:         true,
			winToHost:     true,
			partial:       true,
			receipts:      true,
			transferLimit: 1_000_000,
		},
		historyStore: NewMemoryHistoryStore(),
		observer:     &recordingObserver{},
	}

	engine, err := NewEngine(context.Background(), h.collaborators(), Stores{
		History:      h.historyStore,
		Registration: &MemoryRegistrationStore{},
		ReceiptData:  &MemoryReceiptDataStore{},
	}, zap.NewNop())
	require.NoError(t, err)
	engine.Dispatcher.AddObserver(h.observer)
	h.engine = engine

	t.Cleanup(engine.Close)
	return h
}

func (h *harness) collaborators() Collaborators {
	return Collaborators{
		Ledger:       h.ledger,
		Meters:       h.meters,
		Printer:      h.printer,
		Registration: h.registration,
		Disable:      h.disable,
		HostCashOut:  h.hostCash,
		AutoPlay:     h.autoPlay,
		Bonus:        h.bonus,
		Features:     h.features,
	}
}

// transfer 发送请求并等待后台任务结束
func (h *harness) transfer(request Request) Record {
	record := h.engine.TransferFunds(request)
	h.engine.Dispatcher.Wait()
	return record
}

func (h *harness) interrogate(index byte) Record {
	return h.engine.TransferFunds(Request{TransferCode: TransferCodeInterrogate, TransactionIndex: index})
}

func testKey() RegistrationKey {
	var key RegistrationKey
	for i := range key {
		key[i] = byte(i + 1)
	}
	return key
}

func inHouseIn(id string, cashable uint64) Request {
	return Request{
		TransferCode:  TransferCodeFullOnly,
		TransferType:  TransferTypeInHouseIn,
		Amounts:       Amounts{Cashable: cashable},
		AssetNumber:   testAssetNumber,
		TransactionID: id,
	}
}

var errLedgerOffline = errors.New("ledger offline")
