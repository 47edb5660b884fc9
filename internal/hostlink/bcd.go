package hostlink

import (
	"time"

	apperrors "github.com/wfunc/egm-aft/internal/errors"
)

// 常用BCD字段长度
const (
	amountSize     = 5 // 金额，10位十进制（分）
	dateSize       = 4 // MMDDYYYY
	timeSize       = 3 // HHMMSS
	lockTimeoutLen = 2
)

// EncodeBCD 十进制数编码为定长压缩BCD，超出位数时截断高位
func EncodeBCD(value uint64, size int) []byte {
	buf := make([]byte, size)
	for i := size - 1; i >= 0; i-- {
		low := value % 10
		value /= 10
		high := value % 10
		value /= 10
		buf[i] = byte(high<<4 | low)
	}
	return buf
}

// DecodeBCD 解析压缩BCD
func DecodeBCD(data []byte) (uint64, error) {
	var value uint64
	for _, b := range data {
		high, low := b>>4, b&0x0F
		if high > 9 || low > 9 {
			return 0, apperrors.Newf(apperrors.ErrDecode, "非法BCD字节 0x%02X", b)
		}
		value = value*100 + uint64(high)*10 + uint64(low)
	}
	return value, nil
}

// EncodeDate 日期编码为 MMDDYYYY
func EncodeDate(t time.Time) []byte {
	if t.IsZero() {
		return make([]byte, dateSize)
	}
	return EncodeBCD(uint64(t.Month())*1_000_000+uint64(t.Day())*10_000+uint64(t.Year()), dateSize)
}

// EncodeTime 时间编码为 HHMMSS
func EncodeTime(t time.Time) []byte {
	if t.IsZero() {
		return make([]byte, timeSize)
	}
	return EncodeBCD(uint64(t.Hour())*10_000+uint64(t.Minute())*100+uint64(t.Second()), timeSize)
}
