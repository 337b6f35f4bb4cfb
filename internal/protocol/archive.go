package protocol

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ArchiveVersion версия формата архива региона
const ArchiveVersion = 1

// versionField номер поля версии в начале архива
const versionField protowire.Number = 15

// BlockKind подблок архива. Подблоки пишутся и читаются строго по возрастанию.
type BlockKind protowire.Number

const (
	BlockRegion         BlockKind = 1
	BlockMissions       BlockKind = 2
	BlockUI             BlockKind = 3
	BlockObjectiveGraph BlockKind = 4

	blockCount = 4
)

func (k BlockKind) String() string {
	switch k {
	case BlockRegion:
		return "Region"
	case BlockMissions:
		return "Missions"
	case BlockUI:
		return "UI"
	case BlockObjectiveGraph:
		return "ObjectiveGraph"
	default:
		return fmt.Sprintf("Block(%d)", int(k))
	}
}

var (
	// ErrArchiveOrder подблок записан или прочитан не в своем порядке
	ErrArchiveOrder = errors.New("archive block out of order")
	// ErrArchiveVersion неподдерживаемая версия архива
	ErrArchiveVersion = errors.New("unsupported archive version")
	// ErrArchiveIncomplete в архиве записаны не все подблоки
	ErrArchiveIncomplete = errors.New("archive is incomplete")
)

// ArchiveWriter собирает архив из подблоков в фиксированном порядке
type ArchiveWriter struct {
	enc  *Encoder
	next BlockKind
}

// NewArchiveWriter создает писатель с заголовком версии
func NewArchiveWriter() *ArchiveWriter {
	w := &ArchiveWriter{enc: NewEncoder(), next: BlockRegion}
	w.enc.Uint(versionField, ArchiveVersion)
	return w
}

// WriteBlock добавляет подблок; kind должен быть следующим по порядку
func (w *ArchiveWriter) WriteBlock(kind BlockKind, payload []byte) error {
	if kind != w.next {
		return fmt.Errorf("%w: write %s, expected %s", ErrArchiveOrder, kind, w.next)
	}
	w.enc.Bytes(protowire.Number(kind), payload)
	w.next++
	return nil
}

// Bytes готовый архив; ошибка если записаны не все подблоки
func (w *ArchiveWriter) Bytes() ([]byte, error) {
	if w.next <= blockCount {
		return nil, fmt.Errorf("%w: missing %s", ErrArchiveIncomplete, w.next)
	}
	return w.enc.Encoded(), nil
}

// ArchiveReader читает подблоки архива в фиксированном порядке
type ArchiveReader struct {
	blocks []Field
	pos    int
}

// NewArchiveReader разбирает архив и проверяет версию
func NewArchiveReader(data []byte) (*ArchiveReader, error) {
	r := &ArchiveReader{}
	versionSeen := false
	err := Decode(data, func(f Field) error {
		if f.Num == versionField {
			if f.Uint() != ArchiveVersion {
				return fmt.Errorf("%w: %d", ErrArchiveVersion, f.Uint())
			}
			versionSeen = true
			return nil
		}
		if f.Type != protowire.BytesType {
			return fmt.Errorf("%w: block %d is not length-delimited", ErrMalformed, f.Num)
		}
		r.blocks = append(r.blocks, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !versionSeen {
		return nil, fmt.Errorf("%w: no version header", ErrArchiveVersion)
	}
	return r, nil
}

// ReadBlock возвращает следующий подблок, если он имеет ожидаемый вид
func (r *ArchiveReader) ReadBlock(kind BlockKind) ([]byte, error) {
	if r.pos >= len(r.blocks) {
		return nil, fmt.Errorf("%w: missing %s", ErrArchiveIncomplete, kind)
	}
	f := r.blocks[r.pos]
	if BlockKind(f.Num) != kind {
		return nil, fmt.Errorf("%w: read %s, found %s", ErrArchiveOrder, kind, BlockKind(f.Num))
	}
	r.pos++
	return f.Bytes(), nil
}
