package conversation

import (
	"encoding/json"
	"iter"
)

// Transcript 是只追加的不可变记录序列。
// Append 返回新快照，旧快照对并发读者始终有效。
type Transcript struct {
	records []TurnRecord
}

// NewTranscript builds a transcript from records, copying them.
func NewTranscript(records ...TurnRecord) Transcript {
	return Transcript{records: append([]TurnRecord(nil), records...)}
}

// Append returns a new snapshot with rec at the end. The receiver is not
// modified and never shares spare capacity with the result.
func (t Transcript) Append(rec TurnRecord) Transcript {
	n := len(t.records)
	return Transcript{records: append(t.records[:n:n], rec)}
}

// Render yields the records in insertion order. The sequence can be
// ranged over any number of times.
func (t Transcript) Render() iter.Seq[TurnRecord] {
	records := t.records
	return func(yield func(TurnRecord) bool) {
		for _, r := range records {
			if !yield(r) {
				return
			}
		}
	}
}

// Records returns a copy of the records.
func (t Transcript) Records() []TurnRecord {
	return append([]TurnRecord(nil), t.records...)
}

// Len returns the number of records.
func (t Transcript) Len() int { return len(t.records) }

// Last returns the most recent record.
func (t Transcript) Last() (TurnRecord, bool) {
	if len(t.records) == 0 {
		return TurnRecord{}, false
	}
	return t.records[len(t.records)-1], true
}

// LastAgentRecord returns the most recent agent-kind record.
func (t Transcript) LastAgentRecord() (TurnRecord, bool) {
	for i := len(t.records) - 1; i >= 0; i-- {
		if t.records[i].Kind == RecordAgent {
			return t.records[i], true
		}
	}
	return TurnRecord{}, false
}

// Tail returns a transcript holding only the last n records.
func (t Transcript) Tail(n int) Transcript {
	if n <= 0 {
		return Transcript{}
	}
	if n >= len(t.records) {
		return t
	}
	tail := t.records[len(t.records)-n:]
	return Transcript{records: tail[:len(tail):len(tail)]}
}

func (t Transcript) MarshalJSON() ([]byte, error) {
	if t.records == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.records)
}

func (t *Transcript) UnmarshalJSON(data []byte) error {
	var records []TurnRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	t.records = records
	return nil
}
