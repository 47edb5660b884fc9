package aft

import (
	"encoding/hex"
	"fmt"
	"time"
)

// TransferCode 转账指令码（主机选择的操作）
type TransferCode byte

const (
	TransferCodeFullOnly              TransferCode = 0x00 // 仅允许全额转账
	TransferCodePartialAllowed        TransferCode = 0x01 // 允许部分转账
	TransferCodeCancel                TransferCode = 0x80 // 取消转账请求
	TransferCodeInterrogateStatusOnly TransferCode = 0xFE // 仅查询状态（不确认）
	TransferCodeInterrogate           TransferCode = 0xFF // 查询并确认
)

// TransferType 转账类型
type TransferType byte

const (
	TransferTypeInHouseIn       TransferType = 0x00 // 主机 -> 机台
	TransferTypeBonusCoinIn     TransferType = 0x10 // 奖励（赢分）-> 机台
	TransferTypeBonusJackpotIn  TransferType = 0x11 // 奖励（头奖）-> 机台
	TransferTypeInHouseToTicket TransferType = 0x20 // 主机 -> 彩票
	TransferTypeDebitIn         TransferType = 0x40 // 借记 -> 机台
	TransferTypeDebitToTicket   TransferType = 0x60 // 借记 -> 彩票
	TransferTypeInHouseOut      TransferType = 0x80 // 机台 -> 主机
	TransferTypeWinToHostOut    TransferType = 0x90 // 赢分 -> 主机
)

// String 返回类型名称
func (t TransferType) String() string {
	switch t {
	case TransferTypeInHouseIn:
		return "in_house_in"
	case TransferTypeBonusCoinIn:
		return "bonus_coin_in"
	case TransferTypeBonusJackpotIn:
		return "bonus_jackpot_in"
	case TransferTypeInHouseToTicket:
		return "in_house_to_ticket"
	case TransferTypeDebitIn:
		return "debit_in"
	case TransferTypeDebitToTicket:
		return "debit_to_ticket"
	case TransferTypeInHouseOut:
		return "in_house_out"
	case TransferTypeWinToHostOut:
		return "win_to_host_out"
	default:
		return "unknown"
	}
}

// IsTransferIn 是否为转入类（包括转彩票）
func (t TransferType) IsTransferIn() bool {
	return !t.IsTransferOut()
}

// IsTransferOut 是否为转出到主机
func (t TransferType) IsTransferOut() bool {
	return t == TransferTypeInHouseOut || t == TransferTypeWinToHostOut
}

// IsBonus 是否为奖励转账
func (t TransferType) IsBonus() bool {
	return t == TransferTypeBonusCoinIn || t == TransferTypeBonusJackpotIn
}

// IsDebit 是否为借记转账
func (t TransferType) IsDebit() bool {
	return t == TransferTypeDebitIn || t == TransferTypeDebitToTicket
}

// IsToTicket 是否转到彩票
func (t TransferType) IsToTicket() bool {
	return t == TransferTypeInHouseToTicket || t == TransferTypeDebitToTicket
}

// TransferStatus 转账状态码
type TransferStatus byte

const (
	StatusFullTransferSuccessful           TransferStatus = 0x00
	StatusPartialTransferSuccessful        TransferStatus = 0x01
	StatusTransferPending                  TransferStatus = 0x40
	StatusCancelledByHost                  TransferStatus = 0x80
	StatusTransactionIDNotUnique           TransferStatus = 0x81
	StatusNotAValidTransferFunction        TransferStatus = 0x82
	StatusNotAValidTransferAmount          TransferStatus = 0x83
	StatusAmountExceedsLimit               TransferStatus = 0x84
	StatusAmountNotEvenMultiple            TransferStatus = 0x85
	StatusUnableToPerformPartial           TransferStatus = 0x86
	StatusUnableToPerformTransfer          TransferStatus = 0x87
	StatusNotRegistered                    TransferStatus = 0x88
	StatusRegistrationKeyMismatch          TransferStatus = 0x89
	StatusNoPOSID                          TransferStatus = 0x8A
	StatusNoWonCreditsAvailable            TransferStatus = 0x8B
	StatusNoDenominationSet                TransferStatus = 0x8C
	StatusExpirationNotValidForTicket      TransferStatus = 0x8D
	StatusTicketDeviceNotAvailable         TransferStatus = 0x8E
	StatusRestrictedPoolMismatch           TransferStatus = 0x8F
	StatusReceiptDeviceNotAvailable        TransferStatus = 0x90
	StatusInsufficientReceiptData          TransferStatus = 0x91
	StatusReceiptNotAllowedForType         TransferStatus = 0x92
	StatusAssetNumberMismatch              TransferStatus = 0x93
	StatusNotLocked                        TransferStatus = 0x94
	StatusTransactionIDNotValid            TransferStatus = 0x95
	StatusUnexpectedError                  TransferStatus = 0x9F
	StatusNotCompatibleWithCurrentTransfer TransferStatus = 0xC0
	StatusUnsupportedTransferCode          TransferStatus = 0xC1
	StatusNoTransferInfoAvailable          TransferStatus = 0xFF
)

// IsSuccess 全额或部分成功
func (s TransferStatus) IsSuccess() bool {
	return s == StatusFullTransferSuccessful || s == StatusPartialTransferSuccessful
}

// IsPending 转账处理中
func (s TransferStatus) IsPending() bool {
	return s == StatusTransferPending
}

// IsFailure 拒绝或失败
func (s TransferStatus) IsFailure() bool {
	return s >= StatusCancelledByHost
}

// ReceiptStatus 收据状态
type ReceiptStatus byte

const (
	ReceiptPrinted            ReceiptStatus = 0x00
	ReceiptPrintingInProgress ReceiptStatus = 0x20
	ReceiptPending            ReceiptStatus = 0x40
	ReceiptNotRequested       ReceiptStatus = 0xFF
)

// TransferFlags 转账标志位
type TransferFlags byte

const (
	FlagHostCashOutEnableControl TransferFlags = 1 << 0 // 主机兑现开关控制
	FlagHostCashOutEnable        TransferFlags = 1 << 1 // 主机兑现开启
	FlagHostCashOutModeHard      TransferFlags = 1 << 2 // 硬兑现模式
	FlagCashOutRequest           TransferFlags = 1 << 3 // 请求机台兑现
	FlagLockAfterTransfer        TransferFlags = 1 << 6 // 转账需已锁机，完成后保持锁定
	FlagReceiptRequest           TransferFlags = 1 << 7 // 请求打印收据
)

// Has 判断标志位
func (f TransferFlags) Has(flag TransferFlags) bool {
	return f&flag != 0
}

// Amounts 三类信用额（单位：分）
type Amounts struct {
	Cashable      uint64 `json:"cashable"`
	Restricted    uint64 `json:"restricted"`
	NonRestricted uint64 `json:"non_restricted"`
}

// Total 合计
func (a Amounts) Total() uint64 {
	return a.Cashable + a.Restricted + a.NonRestricted
}

// IsZero 是否全为零
func (a Amounts) IsZero() bool {
	return a.Total() == 0
}

// Add 相加
func (a Amounts) Add(b Amounts) Amounts {
	return Amounts{
		Cashable:      a.Cashable + b.Cashable,
		Restricted:    a.Restricted + b.Restricted,
		NonRestricted: a.NonRestricted + b.NonRestricted,
	}
}

// ReceiptData 转账附带的收据数据
type ReceiptData struct {
	SourceDestination   string `json:"source_destination,omitempty"`
	PatronName          string `json:"patron_name,omitempty"`
	PatronAccountNumber string `json:"patron_account_number,omitempty"`
	AccountBalance      uint64 `json:"account_balance,omitempty"`
	DebitCardNumber     string `json:"debit_card_number,omitempty"`
	TransactionFee      uint64 `json:"transaction_fee,omitempty"`
	TotalDebitAmount    uint64 `json:"total_debit_amount,omitempty"`
}

// RegistrationKey 20字节注册密钥
type RegistrationKey [20]byte

// IsZero 是否为全零密钥
func (k RegistrationKey) IsZero() bool {
	return k == RegistrationKey{}
}

// MarshalText 以十六进制文本输出
func (k RegistrationKey) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(k[:])), nil
}

// UnmarshalText 解析40位十六进制文本，空文本为全零密钥
func (k *RegistrationKey) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*k = RegistrationKey{}
		return nil
	}
	raw, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("注册密钥格式错误: %w", err)
	}
	if len(raw) != len(k) {
		return fmt.Errorf("注册密钥长度应为%d字节，实际%d", len(k), len(raw))
	}
	copy(k[:], raw)
	return nil
}

// Request 主机下发的转账请求。
// 所有字段均可比较，重复请求检测直接使用 == 。
type Request struct {
	TransferCode     TransferCode    `json:"transfer_code"`
	TransactionIndex byte            `json:"transaction_index"`
	TransferType     TransferType    `json:"transfer_type"`
	Amounts          Amounts         `json:"amounts"`
	Flags            TransferFlags   `json:"flags"`
	AssetNumber      uint32          `json:"asset_number"`
	RegistrationKey  RegistrationKey `json:"registration_key"`
	TransactionID    string          `json:"transaction_id"`
	Expiration       uint32          `json:"expiration"` // MMDDYYYY 或天数
	PoolID           uint16          `json:"pool_id"`
	ReceiptData      ReceiptData     `json:"receipt_data"`
	LockTimeout      uint16          `json:"lock_timeout"` // 百分之一秒
}

// IsPartialAllowed 主机是否允许部分转账
func (r *Request) IsPartialAllowed() bool {
	return r.TransferCode == TransferCodePartialAllowed
}

// IsFullOnly 主机是否要求全额转账
func (r *Request) IsFullOnly() bool {
	return r.TransferCode == TransferCodeFullOnly
}

// ReceiptRequested 是否请求收据
func (r *Request) ReceiptRequested() bool {
	return r.Flags.Has(FlagReceiptRequest)
}

// Record 当前转账记录（应答主机的结构）
type Record struct {
	Request
	Status        TransferStatus `json:"status"`
	ReceiptStatus ReceiptStatus  `json:"receipt_status"`
	Transferred   Amounts        `json:"transferred"`
	Position      byte           `json:"position"` // 历史缓冲区位置，0 表示尚未入账
	POSID         uint32         `json:"pos_id"`
	Cumulative    Amounts        `json:"cumulative"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Entry 转换为历史条目
func (r *Record) Entry() HistoryEntry {
	return HistoryEntry{
		Position:      r.Position,
		TransferType:  r.TransferType,
		Status:        r.Status,
		ReceiptStatus: r.ReceiptStatus,
		Flags:         r.Flags,
		AssetNumber:   r.AssetNumber,
		Amounts:       r.Transferred,
		Cumulative:    r.Cumulative,
		TransactionID: r.TransactionID,
		Timestamp:     r.Timestamp,
		Expiration:    r.Expiration,
		PoolID:        r.PoolID,
	}
}

// HistoryEntry 历史缓冲区条目，写入后不再修改
type HistoryEntry struct {
	Position      byte           `json:"position"`
	TransferType  TransferType   `json:"transfer_type"`
	Status        TransferStatus `json:"status"`
	ReceiptStatus ReceiptStatus  `json:"receipt_status"`
	Flags         TransferFlags  `json:"flags"`
	AssetNumber   uint32         `json:"asset_number"`
	Amounts       Amounts        `json:"amounts"`
	Cumulative    Amounts        `json:"cumulative"`
	TransactionID string         `json:"transaction_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Expiration    uint32         `json:"expiration"`
	PoolID        uint16         `json:"pool_id"`
}

// Record 将历史条目还原为应答记录
func (e HistoryEntry) Record() Record {
	return Record{
		Request: Request{
			TransferCode:     TransferCodeInterrogate,
			TransactionIndex: e.Position,
			TransferType:     e.TransferType,
			Amounts:          e.Amounts,
			Flags:            e.Flags,
			AssetNumber:      e.AssetNumber,
			TransactionID:    e.TransactionID,
			Expiration:       e.Expiration,
			PoolID:           e.PoolID,
		},
		Status:        e.Status,
		ReceiptStatus: e.ReceiptStatus,
		Transferred:   e.Amounts,
		Position:      e.Position,
		Cumulative:    e.Cumulative,
		Timestamp:     e.Timestamp,
	}
}

// emptyEntry 未写入槽位的哨兵值
func emptyEntry(index byte) HistoryEntry {
	return HistoryEntry{
		Position:      index,
		Status:        StatusNoTransferInfoAvailable,
		ReceiptStatus: ReceiptNotRequested,
	}
}

// Balances 机台当前余额
type Balances struct {
	Amounts
	RestrictedPoolID     uint16 `json:"restricted_pool_id"`
	RestrictedExpiration uint32 `json:"restricted_expiration"`
}
