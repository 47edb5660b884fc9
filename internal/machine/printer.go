package machine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/wfunc/egm-aft/internal/aft"
	"go.uber.org/zap"
)

// ReceiptHeaders 收据抬头数据来源
type ReceiptHeaders interface {
	Get(field aft.ReceiptField) string
}

// Printer 彩票/收据打印适配器（实现 aft.TicketPrinter），以日志形式输出票面
type Printer struct {
	mu      sync.RWMutex
	state   *State
	headers ReceiptHeaders
	logger  *zap.Logger
}

// NewPrinter 创建打印适配器
func NewPrinter(state *State, logger *zap.Logger) *Printer {
	return &Printer{state: state, logger: logger}
}

// BindReceiptHeaders 绑定主机下发的收据抬头
func (p *Printer) BindReceiptHeaders(headers ReceiptHeaders) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.headers = headers
}

// CanPrint 打印机是否可用
func (p *Printer) CanPrint() bool {
	return p.state.CanPrint()
}

// PrintTicket 打印彩票
func (p *Printer) PrintTicket(ctx context.Context, record aft.Record) error {
	if !p.CanPrint() {
		return fmt.Errorf("打印机不可用")
	}
	lines := p.header()
	lines = append(lines,
		"CASHOUT TICKET",
		fmt.Sprintf("TXN %s", record.TransactionID),
		fmt.Sprintf("AMOUNT %s", formatCents(record.Transferred.Total())),
	)
	if record.Expiration != 0 {
		lines = append(lines, fmt.Sprintf("EXPIRES %08d", record.Expiration))
	}
	p.emit("ticket", record, lines)
	return nil
}

// PrintReceipt 打印转账收据
func (p *Printer) PrintReceipt(ctx context.Context, record aft.Record) error {
	if !p.CanPrint() {
		return fmt.Errorf("打印机不可用")
	}

	lines := p.header()
	first := aft.ReceiptFieldInHouseLine1
	if record.TransferType.IsDebit() {
		first = aft.ReceiptFieldDebitLine1
	}
	p.mu.RLock()
	if p.headers != nil {
		for field := first; field < first+4; field++ {
			if text := p.headers.Get(field); text != "" {
				lines = append(lines, text)
			}
		}
	}
	p.mu.RUnlock()

	data := record.ReceiptData
	lines = append(lines,
		strings.ToUpper(record.TransferType.String()),
		fmt.Sprintf("TXN %s", record.TransactionID),
		fmt.Sprintf("AMOUNT %s", formatCents(record.Transferred.Total())),
	)
	if data.PatronName != "" {
		lines = append(lines, data.PatronName)
	}
	if data.PatronAccountNumber != "" {
		lines = append(lines, "ACCT "+maskAccount(data.PatronAccountNumber))
	}
	if data.DebitCardNumber != "" {
		lines = append(lines, "CARD "+maskAccount(data.DebitCardNumber))
	}
	if data.TransactionFee != 0 {
		lines = append(lines, "FEE "+formatCents(data.TransactionFee))
	}
	p.emit("receipt", record, lines)
	return nil
}

func (p *Printer) header() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.headers == nil {
		return nil
	}
	var lines []string
	for _, field := range []aft.ReceiptField{aft.ReceiptFieldLocation, aft.ReceiptFieldAddress1, aft.ReceiptFieldAddress2} {
		if text := p.headers.Get(field); text != "" {
			lines = append(lines, text)
		}
	}
	return lines
}

func (p *Printer) emit(kind string, record aft.Record, lines []string) {
	p.logger.Info("打印输出",
		zap.String("kind", kind),
		zap.String("transaction_id", record.TransactionID),
		zap.Strings("lines", lines))
}

// formatCents 分转为 12.34 格式
func formatCents(cents uint64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// maskAccount 只保留后四位
func maskAccount(account string) string {
	if len(account) <= 4 {
		return account
	}
	return strings.Repeat("*", len(account)-4) + account[len(account)-4:]
}
