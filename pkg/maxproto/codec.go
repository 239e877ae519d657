package maxproto

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// Codec штампует исходящие кадры: проставляет ver и очередной seq.
// Счётчик живёт столько же, сколько Codec, и не сбрасывается при
// переподключениях — первый кадр получает seq == 1, дальше строго +1.
type Codec struct {
	ver int
	seq atomic.Uint64
}

func NewCodec(ver int) *Codec {
	if ver == 0 {
		ver = DefaultVersion
	}
	return &Codec{ver: ver}
}

// Next собирает кадр с очередным seq. Payload сериализуется до выдачи
// номера: кадр, который не собрался, номер не сжигает.
func (c *Codec) Next(cmd, opcode int, payload any) (*Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("maxproto: marshal payload (opcode %d): %w", opcode, err)
	}
	return &Frame{
		Ver:     c.ver,
		Cmd:     cmd,
		Seq:     c.seq.Add(1),
		Opcode:  opcode,
		Payload: raw,
	}, nil
}

// Seq возвращает номер последнего выданного кадра (0 — кадров ещё не было).
func (c *Codec) Seq() uint64 {
	return c.seq.Load()
}
