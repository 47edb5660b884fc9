package machine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/egm-aft/internal/aft"
	"github.com/wfunc/egm-aft/internal/config"
	apperrors "github.com/wfunc/egm-aft/internal/errors"
	"github.com/wfunc/egm-aft/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testAsset uint32 = 1001

func testAFTConfig() config.AFTConfig {
	return config.AFTConfig{
		Enabled:          true,
		AssetNumber:      testAsset,
		TransferIn:       true,
		TransferOut:      true,
		TicketTransfers:  true,
		BonusTransfers:   true,
		DebitTransfers:   true,
		WinToHost:        true,
		PartialTransfers: true,
		Receipts:         true,
		TransferLimit:    1_000_000,
		CreditLimit:      10_000_000,
	}
}

// MachineTestSuite 机台协作者测试套件
type MachineTestSuite struct {
	suite.Suite
	db      *gorm.DB
	ctx     context.Context
	repos   *repository.Manager
	cabinet *Cabinet
}

func (suite *MachineTestSuite) SetupTest() {
	suite.db = repository.SetupTestDB()
	suite.ctx = context.Background()
	suite.repos = repository.NewManager(suite.db)

	cabinet, err := NewCabinet(suite.ctx, suite.repos, testAFTConfig(), config.MachineConfig{
		PrinterAvailable: true,
		BonusAllowed:     true,
	}, zap.NewNop())
	suite.Require().NoError(err)
	suite.cabinet = cabinet
}

func (suite *MachineTestSuite) TearDownTest() {
	suite.cabinet.Close()
	repository.CleanupTestDB(suite.db)
}

// TestLedger_CreditDebit 入账出账更新余额
func (suite *MachineTestSuite) TestLedger_CreditDebit() {
	ledger := suite.cabinet.Ledger

	suite.Require().NoError(ledger.Credit(suite.ctx, "TX-1", aft.Amounts{Cashable: 1000, Restricted: 300}, 9, 12312026))
	suite.Require().NoError(ledger.Debit(suite.ctx, "TX-2", aft.Amounts{Cashable: 400}))

	balances, err := ledger.Balances(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(uint64(600), balances.Cashable)
	suite.Equal(uint64(300), balances.Restricted)
	suite.Equal(uint16(9), balances.RestrictedPoolID)
	suite.Equal(uint32(12312026), balances.RestrictedExpiration)
	suite.Equal(uint64(10_000_000), ledger.CreditLimit())

	// 重新加载后余额一致
	reloaded, err := NewLedger(suite.ctx, suite.repos.Credit(), suite.cabinet.Options, zap.NewNop())
	suite.Require().NoError(err)
	again, err := reloaded.Balances(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(balances, again)
}

// TestLedger_InsufficientKeepsBalance 余额不足时内存余额不变
func (suite *MachineTestSuite) TestLedger_InsufficientKeepsBalance() {
	ledger := suite.cabinet.Ledger
	suite.Require().NoError(ledger.Credit(suite.ctx, "TX-1", aft.Amounts{Cashable: 100}, 0, 0))

	err := ledger.Debit(suite.ctx, "TX-2", aft.Amounts{Cashable: 500})
	suite.True(apperrors.Is(err, apperrors.ErrInsufficientCredits))

	balances, _ := ledger.Balances(suite.ctx)
	suite.Equal(uint64(100), balances.Cashable)
}

// TestMeters_Accumulate 计数器按类型累加
func (suite *MachineTestSuite) TestMeters_Accumulate() {
	meters := suite.cabinet.Meters

	_, err := meters.Increment(suite.ctx, aft.TransferTypeInHouseIn, aft.Amounts{Cashable: 100})
	suite.Require().NoError(err)
	total, err := meters.Increment(suite.ctx, aft.TransferTypeInHouseIn, aft.Amounts{Cashable: 50, Restricted: 5})
	suite.Require().NoError(err)
	suite.Equal(aft.Amounts{Cashable: 150, Restricted: 5}, total)

	other, err := meters.Increment(suite.ctx, aft.TransferTypeInHouseOut, aft.Amounts{Cashable: 1})
	suite.Require().NoError(err)
	suite.Equal(aft.Amounts{Cashable: 1}, other)
}

// TestCabinet_AwardWin 赢分入账并挂起等待主机兑现
func (suite *MachineTestSuite) TestCabinet_AwardWin() {
	pending, err := suite.cabinet.AwardWin(suite.ctx, aft.Amounts{Cashable: 700})
	suite.Require().NoError(err)
	suite.False(pending)

	suite.cabinet.State.ApplyHostCashOutFlags(true, false)
	pending, err = suite.cabinet.AwardWin(suite.ctx, aft.Amounts{Cashable: 300})
	suite.Require().NoError(err)
	suite.True(pending)

	status, err := suite.cabinet.Status(suite.ctx)
	suite.Require().NoError(err)
	suite.True(status.WinPending)
	suite.Equal(aft.Amounts{Cashable: 300}, status.PendingWin)
	suite.Equal(uint64(1000), status.Balances.Cashable)
}

// TestEngine_InHouseInEndToEnd 引擎使用数据库协作者完成主机转入
func (suite *MachineTestSuite) TestEngine_InHouseInEndToEnd() {
	engine := suite.newEngine()
	engine.Dispatcher.AddObserver(NewJournal(suite.repos.TransferLog(), zap.NewNop()))

	response := engine.TransferFunds(aft.Request{
		TransferCode:  aft.TransferCodeFullOnly,
		TransferType:  aft.TransferTypeInHouseIn,
		Amounts:       aft.Amounts{Cashable: 2500},
		AssetNumber:   testAsset,
		TransactionID: "E2E-1",
	})
	suite.Equal(aft.StatusTransferPending, response.Status)
	engine.Dispatcher.Wait()

	ack := engine.TransferFunds(aft.Request{TransferCode: aft.TransferCodeInterrogate})
	suite.Equal(aft.StatusFullTransferSuccessful, ack.Status)
	suite.Equal(byte(1), ack.Position)
	suite.Equal(aft.Amounts{Cashable: 2500}, ack.Cumulative)

	balances, err := suite.cabinet.Ledger.Balances(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(uint64(2500), balances.Cashable)

	logs, err := suite.repos.TransferLog().FindByTransactionID(suite.ctx, "E2E-1")
	suite.Require().NoError(err)
	suite.Require().Len(logs, 1)
	suite.Equal(int64(2500), logs[0].Cashable)

	entries, err := suite.repos.Credit().Entries(suite.ctx, "E2E-1")
	suite.Require().NoError(err)
	suite.Len(entries, 1)

	// 历史缓冲区从数据库恢复
	restored, err := aft.NewHistoryBuffer(suite.ctx, suite.repos.History(), zap.NewNop())
	suite.Require().NoError(err)
	suite.True(restored.ContainsTransactionID("E2E-1"))
	suite.Equal("E2E-1", restored.GetEntry(1).TransactionID)

	engine.Close()
}

// TestEngine_InHouseOutRejectedWhenEmpty 无余额时全额转出被拒绝
func (suite *MachineTestSuite) TestEngine_InHouseOutRejectedWhenEmpty() {
	engine := suite.newEngine()
	defer engine.Close()

	response := engine.TransferFunds(aft.Request{
		TransferCode:  aft.TransferCodeFullOnly,
		TransferType:  aft.TransferTypeInHouseOut,
		Amounts:       aft.Amounts{Cashable: 100},
		AssetNumber:   testAsset,
		TransactionID: "E2E-2",
	})
	suite.Equal(aft.StatusNotAValidTransferAmount, response.Status)
	suite.Equal(aft.StateIdle, engine.Dispatcher.State())
}

// TestEngine_WinToHost 赢分转出后清除挂起
func (suite *MachineTestSuite) TestEngine_WinToHost() {
	engine := suite.newEngine()
	defer engine.Close()

	suite.cabinet.State.ApplyHostCashOutFlags(true, false)
	_, err := suite.cabinet.AwardWin(suite.ctx, aft.Amounts{Cashable: 800})
	suite.Require().NoError(err)

	response := engine.TransferFunds(aft.Request{
		TransferCode:  aft.TransferCodeFullOnly,
		TransferType:  aft.TransferTypeWinToHostOut,
		Amounts:       aft.Amounts{Cashable: 800},
		AssetNumber:   testAsset,
		TransactionID: "E2E-3",
	})
	suite.Equal(aft.StatusTransferPending, response.Status)
	engine.Dispatcher.Wait()

	current, ok := engine.Dispatcher.Current()
	suite.Require().True(ok)
	suite.Equal(aft.StatusFullTransferSuccessful, current.Status)
	suite.False(suite.cabinet.State.WinPending())

	balances, _ := suite.cabinet.Ledger.Balances(suite.ctx)
	suite.Zero(balances.Cashable)
}

func (suite *MachineTestSuite) newEngine() *aft.Engine {
	engine, err := aft.NewEngine(suite.ctx, suite.cabinet.Collaborators(), aft.Stores{
		History:      suite.repos.History(),
		Registration: suite.repos.Registration(),
		ReceiptData:  suite.repos.ReceiptData(),
	}, zap.NewNop())
	suite.Require().NoError(err)
	suite.cabinet.Printer.BindReceiptHeaders(engine.Receipts)
	return engine
}

func TestMachineTestSuite(t *testing.T) {
	suite.Run(t, new(MachineTestSuite))
}

func TestOptions_Update(t *testing.T) {
	options := NewOptions(testAFTConfig())
	assert.True(t, options.AFTEnabled())
	assert.Equal(t, testAsset, options.AssetNumber())

	cfg := testAFTConfig()
	cfg.Enabled = false
	cfg.TransferLimit = 10
	options.Update(cfg)

	assert.False(t, options.AFTEnabled())
	assert.Equal(t, uint64(10), options.TransferLimit())
	assert.Equal(t, cfg, options.Snapshot())
}

func TestState_SoftTimeoutClearsWin(t *testing.T) {
	state := NewState(StateOptions{HostCashOutEnabled: true, CashOutTimeout: 20 * time.Millisecond}, zap.NewNop())
	defer state.Close()

	var (
		mu      sync.Mutex
		expired aft.Amounts
	)
	state.OnWinTimeout(func(win aft.Amounts) {
		mu.Lock()
		defer mu.Unlock()
		expired = win
	})

	require.True(t, state.AwardWin(aft.Amounts{Cashable: 250}))
	assert.True(t, state.WinPending())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return expired.Cashable == 250
	}, time.Second, 5*time.Millisecond)
	assert.False(t, state.WinPending())
	assert.True(t, state.PendingWin().IsZero())
}

func TestState_HardModeKeepsWinPending(t *testing.T) {
	state := NewState(StateOptions{CashOutTimeout: 10 * time.Millisecond}, zap.NewNop())
	defer state.Close()

	called := false
	state.OnWinTimeout(func(aft.Amounts) { called = true })
	state.ApplyHostCashOutFlags(true, true)
	require.True(t, state.AwardWin(aft.Amounts{Cashable: 100}))

	time.Sleep(50 * time.Millisecond)
	assert.True(t, state.WinPending())
	assert.False(t, called)

	state.CompleteWinCashOut("TX-1")
	assert.False(t, state.WinPending())
}

func TestState_Conditions(t *testing.T) {
	state := NewState(StateOptions{BonusAllowed: true, HostCashOutEnabled: true}, zap.NewNop())

	assert.True(t, state.BonusAllowed())
	assert.True(t, state.CanCashOut())

	state.SetTilt(true)
	assert.False(t, state.BonusAllowed())
	assert.False(t, state.CanCashOut())
	state.SetTilt(false)

	state.SetTransferOutDisabled(true)
	assert.False(t, state.CanCashOut())

	assert.False(t, state.EndAutoPlayIfActive())
	state.StartAutoPlay()
	assert.True(t, state.EndAutoPlayIfActive())
	assert.False(t, state.Snapshot().AutoPlay)
	state.ResumeAutoPlay()
	assert.True(t, state.Snapshot().AutoPlay)

	// 未开启主机兑现时赢分不挂起
	state.ApplyHostCashOutFlags(false, false)
	assert.False(t, state.AwardWin(aft.Amounts{Cashable: 1}))
}

func TestPrinter_Unavailable(t *testing.T) {
	state := NewState(StateOptions{}, zap.NewNop())
	printer := NewPrinter(state, zap.NewNop())

	record := aft.Record{Request: aft.Request{TransactionID: "TX-P"}}
	assert.Error(t, printer.PrintTicket(context.Background(), record))
	assert.Error(t, printer.PrintReceipt(context.Background(), record))

	state.SetPrinterReady(true)
	assert.NoError(t, printer.PrintTicket(context.Background(), record))
	assert.NoError(t, printer.PrintReceipt(context.Background(), record))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "12.34", formatCents(1234))
	assert.Equal(t, "0.05", formatCents(5))
	assert.Equal(t, "****5678", maskAccount("12345678"))
	assert.Equal(t, "123", maskAccount("123"))
}
