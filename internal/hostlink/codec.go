package hostlink

import (
	"encoding/binary"
	"sort"

	"github.com/wfunc/egm-aft/internal/aft"
	apperrors "github.com/wfunc/egm-aft/internal/errors"
)

// 转账请求中的收据数据编码
const (
	receiptSourceDestination byte = 0x00
	receiptPatronName        byte = 0x10
	receiptPatronAccount     byte = 0x11
	receiptAccountBalance    byte = 0x13
	receiptDebitCardNumber   byte = 0x41
	receiptTransactionFee    byte = 0x42
	receiptTotalDebitAmount  byte = 0x43
)

// decoder 顺序读取，首个错误之后的读取全部返回零值
type decoder struct {
	data []byte
	pos  int
	err  error
}

func newDecoder(data []byte) *decoder {
	return &decoder{data: data}
}

func (d *decoder) next(n int) []byte {
	if d.err != nil {
		return make([]byte, n)
	}
	if d.pos+n > len(d.data) {
		d.err = apperrors.Newf(apperrors.ErrDecode, "数据不足: 需要 %d 字节, 剩余 %d", n, len(d.data)-d.pos)
		return make([]byte, n)
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b
}

func (d *decoder) byte() byte       { return d.next(1)[0] }
func (d *decoder) uint16LE() uint16 { return binary.LittleEndian.Uint16(d.next(2)) }
func (d *decoder) uint32LE() uint32 { return binary.LittleEndian.Uint32(d.next(4)) }
func (d *decoder) remaining() int   { return len(d.data) - d.pos }

func (d *decoder) bcd(n int) uint64 {
	raw := d.next(n)
	if d.err != nil {
		return 0
	}
	value, err := DecodeBCD(raw)
	if err != nil {
		d.err = err
	}
	return value
}

func (d *decoder) amounts() aft.Amounts {
	return aft.Amounts{
		Cashable:      d.bcd(amountSize),
		Restricted:    d.bcd(amountSize),
		NonRestricted: d.bcd(amountSize),
	}
}

// encoder 顺序写入
type encoder struct {
	buf []byte
}

func (e *encoder) byte(b byte)         { e.buf = append(e.buf, b) }
func (e *encoder) bytes(b []byte)      { e.buf = append(e.buf, b...) }
func (e *encoder) bcd(v uint64, n int) { e.buf = append(e.buf, EncodeBCD(v, n)...) }
func (e *encoder) uint16LE(v uint16)   { e.buf = binary.LittleEndian.AppendUint16(e.buf, v) }
func (e *encoder) uint32LE(v uint32)   { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }

func (e *encoder) amounts(a aft.Amounts) {
	e.bcd(a.Cashable, amountSize)
	e.bcd(a.Restricted, amountSize)
	e.bcd(a.NonRestricted, amountSize)
}

// meter 累计计数器：长度 + BCD
func (e *encoder) meter(v uint64) {
	e.byte(amountSize)
	e.bcd(v, amountSize)
}

// DecodeTransferRequest 解析0x72请求。查询指令可只带指令码和交易索引。
func DecodeTransferRequest(data []byte) (aft.Request, error) {
	d := newDecoder(data)
	request := aft.Request{
		TransferCode:     aft.TransferCode(d.byte()),
		TransactionIndex: d.byte(),
	}
	if d.err != nil {
		return aft.Request{}, d.err
	}

	isInterrogate := request.TransferCode == aft.TransferCodeInterrogate ||
		request.TransferCode == aft.TransferCodeInterrogateStatusOnly
	if isInterrogate && d.remaining() == 0 {
		return request, nil
	}

	request.TransferType = aft.TransferType(d.byte())
	request.Amounts = d.amounts()
	request.Flags = aft.TransferFlags(d.byte())
	request.AssetNumber = d.uint32LE()
	copy(request.RegistrationKey[:], d.next(len(request.RegistrationKey)))
	request.TransactionID = string(d.next(int(d.byte())))
	request.Expiration = uint32(d.bcd(dateSize))
	request.PoolID = d.uint16LE()
	request.ReceiptData = decodeReceiptData(d, int(d.byte()))
	if d.remaining() >= lockTimeoutLen {
		request.LockTimeout = uint16(d.bcd(lockTimeoutLen))
	}
	if d.err != nil {
		return aft.Request{}, d.err
	}
	return request, nil
}

// decodeReceiptData 解析收据数据TLV，未知编码跳过
func decodeReceiptData(d *decoder, length int) aft.ReceiptData {
	var data aft.ReceiptData
	sub := newDecoder(d.next(length))
	for sub.err == nil && sub.remaining() > 0 {
		code := sub.byte()
		value := sub.next(int(sub.byte()))
		if sub.err != nil {
			break
		}
		switch code {
		case receiptSourceDestination:
			data.SourceDestination = string(value)
		case receiptPatronName:
			data.PatronName = string(value)
		case receiptPatronAccount:
			data.PatronAccountNumber = string(value)
		case receiptDebitCardNumber:
			data.DebitCardNumber = string(value)
		case receiptAccountBalance, receiptTransactionFee, receiptTotalDebitAmount:
			amount, err := DecodeBCD(value)
			if err != nil {
				sub.err = err
				break
			}
			switch code {
			case receiptAccountBalance:
				data.AccountBalance = amount
			case receiptTransactionFee:
				data.TransactionFee = amount
			default:
				data.TotalDebitAmount = amount
			}
		}
	}
	if sub.err != nil && d.err == nil {
		d.err = sub.err
	}
	return data
}

// EncodeTransferResponse 编码0x72应答
func EncodeTransferResponse(record aft.Record) []byte {
	e := &encoder{}
	e.byte(record.Position)
	e.byte(byte(record.Status))
	e.byte(byte(record.ReceiptStatus))
	e.byte(byte(record.TransferType))
	e.amounts(record.Transferred)
	e.byte(byte(record.Flags))
	e.uint32LE(record.AssetNumber)
	e.byte(byte(len(record.TransactionID)))
	e.bytes([]byte(record.TransactionID))
	e.bytes(EncodeDate(record.Timestamp))
	e.bytes(EncodeTime(record.Timestamp))
	e.bcd(uint64(record.Expiration), dateSize)
	e.uint16LE(record.PoolID)
	e.meter(record.Cumulative.Cashable)
	e.meter(record.Cumulative.Restricted)
	e.meter(record.Cumulative.NonRestricted)
	return e.buf
}

// EncodeTransferRequest 编码0x72请求（主机侧）
func EncodeTransferRequest(request aft.Request) []byte {
	e := &encoder{}
	e.byte(byte(request.TransferCode))
	e.byte(request.TransactionIndex)
	isInterrogate := request.TransferCode == aft.TransferCodeInterrogate ||
		request.TransferCode == aft.TransferCodeInterrogateStatusOnly
	if isInterrogate {
		return e.buf
	}

	e.byte(byte(request.TransferType))
	e.amounts(request.Amounts)
	e.byte(byte(request.Flags))
	e.uint32LE(request.AssetNumber)
	e.bytes(request.RegistrationKey[:])
	e.byte(byte(len(request.TransactionID)))
	e.bytes([]byte(request.TransactionID))
	e.bcd(uint64(request.Expiration), dateSize)
	e.uint16LE(request.PoolID)

	receipt := encodeReceiptData(request.ReceiptData)
	e.byte(byte(len(receipt)))
	e.bytes(receipt)
	e.bcd(uint64(request.LockTimeout), lockTimeoutLen)
	return e.buf
}

func encodeReceiptData(data aft.ReceiptData) []byte {
	e := &encoder{}
	text := func(code byte, value string) {
		if value != "" {
			e.byte(code)
			e.byte(byte(len(value)))
			e.bytes([]byte(value))
		}
	}
	amount := func(code byte, value uint64) {
		if value != 0 {
			e.byte(code)
			e.byte(amountSize)
			e.bcd(value, amountSize)
		}
	}
	text(receiptSourceDestination, data.SourceDestination)
	text(receiptPatronName, data.PatronName)
	text(receiptPatronAccount, data.PatronAccountNumber)
	amount(receiptAccountBalance, data.AccountBalance)
	text(receiptDebitCardNumber, data.DebitCardNumber)
	amount(receiptTransactionFee, data.TransactionFee)
	amount(receiptTotalDebitAmount, data.TotalDebitAmount)
	return e.buf
}

// DecodeRegistrationRequest 解析0x73请求，读取指令只带指令码
func DecodeRegistrationRequest(data []byte) (aft.RegistrationRequest, error) {
	d := newDecoder(data)
	request := aft.RegistrationRequest{Code: aft.RegistrationCode(d.byte())}
	if d.err == nil && request.Code == aft.RegistrationCodeRead && d.remaining() == 0 {
		return request, nil
	}

	request.AssetNumber = d.uint32LE()
	copy(request.Key[:], d.next(len(request.Key)))
	request.POSID = d.uint32LE()
	if d.err != nil {
		return aft.RegistrationRequest{}, d.err
	}
	return request, nil
}

// EncodeRegistrationResponse 编码0x73应答
func EncodeRegistrationResponse(response aft.RegistrationResponse) []byte {
	e := &encoder{}
	e.byte(byte(response.Status))
	e.uint32LE(response.AssetNumber)
	e.bytes(response.Key[:])
	e.uint32LE(response.POSID)
	return e.buf
}

// DecodeLockRequest 解析0x74请求（指令码、转账条件、BCD超时）
func DecodeLockRequest(data []byte, assetNumber uint32) (aft.LockRequest, error) {
	d := newDecoder(data)
	request := aft.LockRequest{
		AssetNumber: assetNumber,
		Code:        aft.LockCode(d.byte()),
		Conditions:  aft.LockConditions(d.byte()),
		Timeout:     uint16(d.bcd(lockTimeoutLen)),
	}
	if d.err != nil {
		return aft.LockRequest{}, d.err
	}
	return request, nil
}

// EncodeLockResponse 编码0x74应答
func EncodeLockResponse(response aft.LockResponse) []byte {
	e := &encoder{}
	e.uint32LE(response.AssetNumber)
	e.byte(byte(response.LockStatus))
	e.byte(response.AvailableTransfers)
	e.byte(response.HostCashOutStatus)
	e.byte(response.AFTStatus)
	e.byte(response.MaxHistoryIndex)
	e.amounts(response.Balances)
	e.bcd(response.TransferLimit, amountSize)
	e.bcd(uint64(response.RestrictedExpiration), dateSize)
	e.uint16LE(response.RestrictedPoolID)
	return e.buf
}

// DecodeReceiptFields 解析0x75请求的字段TLV
func DecodeReceiptFields(data []byte) (map[aft.ReceiptField]string, error) {
	d := newDecoder(data)
	fields := make(map[aft.ReceiptField]string)
	for d.err == nil && d.remaining() > 0 {
		field := aft.ReceiptField(d.byte())
		value := d.next(int(d.byte()))
		if d.err == nil {
			fields[field] = string(value)
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return fields, nil
}

// EncodeReceiptFields 编码0x75字段，按编码排序
func EncodeReceiptFields(fields map[aft.ReceiptField]string) []byte {
	codes := make([]int, 0, len(fields))
	for field := range fields {
		codes = append(codes, int(field))
	}
	sort.Ints(codes)

	e := &encoder{}
	for _, code := range codes {
		value := fields[aft.ReceiptField(code)]
		e.byte(byte(code))
		e.byte(byte(len(value)))
		e.bytes([]byte(value))
	}
	return e.buf
}
