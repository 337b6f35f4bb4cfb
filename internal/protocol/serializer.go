package protocol

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed данные не разбираются как последовательность полей
var ErrMalformed = errors.New("malformed protowire data")

// Encoder пишет поля в формате protobuf без сгенерированных сообщений
type Encoder struct {
	buf []byte
}

// NewEncoder создает пустой кодировщик
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Uint пишет varint
func (e *Encoder) Uint(num protowire.Number, v uint64) *Encoder {
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, v)
	return e
}

// Int пишет знаковое целое в zigzag
func (e *Encoder) Int(num protowire.Number, v int64) *Encoder {
	return e.Uint(num, protowire.EncodeZigZag(v))
}

// Bool пишет флаг
func (e *Encoder) Bool(num protowire.Number, v bool) *Encoder {
	return e.Uint(num, protowire.EncodeBool(v))
}

// Double пишет float64
func (e *Encoder) Double(num protowire.Number, v float64) *Encoder {
	e.buf = protowire.AppendTag(e.buf, num, protowire.Fixed64Type)
	e.buf = protowire.AppendFixed64(e.buf, math.Float64bits(v))
	return e
}

// String пишет строку
func (e *Encoder) String(num protowire.Number, v string) *Encoder {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendString(e.buf, v)
	return e
}

// Bytes пишет байты
func (e *Encoder) Bytes(num protowire.Number, v []byte) *Encoder {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, v)
	return e
}

// Message пишет вложенное сообщение
func (e *Encoder) Message(num protowire.Number, fill func(*Encoder)) *Encoder {
	nested := NewEncoder()
	fill(nested)
	return e.Bytes(num, nested.buf)
}

// Encoded накопленные байты
func (e *Encoder) Encoded() []byte {
	return e.buf
}

// Field значение одного поля при разборе
type Field struct {
	Num  protowire.Number
	Type protowire.Type
	raw  uint64
	data []byte
}

// Uint значение varint
func (f Field) Uint() uint64 { return f.raw }

// Int значение zigzag
func (f Field) Int() int64 { return protowire.DecodeZigZag(f.raw) }

// Bool значение флага
func (f Field) Bool() bool { return protowire.DecodeBool(f.raw) }

// Double значение fixed64 как float64
func (f Field) Double() float64 { return math.Float64frombits(f.raw) }

// String значение строки
func (f Field) String() string { return string(f.data) }

// Bytes значение байтов или вложенного сообщения
func (f Field) Bytes() []byte { return f.data }

// Decode обходит поля data по порядку. Неизвестные типы полей считаются ошибкой.
func Decode(data []byte, fn func(f Field) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		data = data[n:]

		f := Field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			f.raw, n = protowire.ConsumeVarint(data)
		case protowire.Fixed64Type:
			f.raw, n = protowire.ConsumeFixed64(data)
		case protowire.BytesType:
			f.data, n = protowire.ConsumeBytes(data)
		default:
			return fmt.Errorf("%w: field %d has unsupported type %d", ErrMalformed, num, typ)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		data = data[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}
