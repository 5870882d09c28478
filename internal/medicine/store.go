package medicine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"maps"
	"slices"
)

const (
	keyName      = "name"
	keyPrice     = "price"
	keyMedicines = "medicines"
)

// Medicine is one record of the collection. Name is the lookup key but is not
// required to be unique. Price keeps whatever representation was stored:
// json.Number or float64 for numbers, a free-form string, or nil.
//
// Records are decoded leniently. Fields other than name and price are kept in
// Extra, a name that is not a string makes the record unmatchable, and an
// entry that is not an object at all is carried through untouched. All of it
// is written back as read.
type Medicine struct {
	Name  string
	Price any
	Extra map[string]json.RawMessage

	rawName json.RawMessage
	noPrice bool
	opaque  json.RawMessage
}

// Matches reports whether the record can be found under name.
func (m Medicine) Matches(name string) bool {
	return m.opaque == nil && m.rawName == nil && m.Name == name
}

func (m *Medicine) UnmarshalJSON(b []byte) error {
	*m = Medicine{}

	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		m.opaque = append(json.RawMessage(nil), b...)
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}

	if raw, ok := fields[keyName]; ok {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil || bytes.Equal(raw, []byte("null")) {
			m.rawName = raw
		} else {
			m.Name = name
		}
		delete(fields, keyName)
	}

	if raw, ok := fields[keyPrice]; ok {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&m.Price); err != nil {
			return err
		}
		delete(fields, keyPrice)
	} else {
		m.noPrice = true
	}

	if len(fields) > 0 {
		m.Extra = fields
	}
	return nil
}

func (m Medicine) MarshalJSON() ([]byte, error) {
	if m.opaque != nil {
		return m.opaque, nil
	}

	w := newObjectWriter()
	if m.rawName != nil {
		w.raw(keyName, m.rawName)
	} else if err := w.field(keyName, m.Name); err != nil {
		return nil, err
	}
	// a record stored without a price stays that way until one is set
	if m.Price != nil || !m.noPrice {
		if err := w.field(keyPrice, m.Price); err != nil {
			return nil, err
		}
	}
	if err := w.extra(m.Extra, keyName, keyPrice); err != nil {
		return nil, err
	}
	return w.close(), nil
}

// Collection is the whole stored document. Top-level keys other than
// "medicines" are kept in Extra.
type Collection struct {
	Medicines []Medicine
	Extra     map[string]json.RawMessage
}

func (c *Collection) UnmarshalJSON(b []byte) error {
	*c = Collection{Medicines: []Medicine{}}

	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) == 0 || b[0] != '{' {
		return errors.New("collection is not a json object")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}

	if raw, ok := fields[keyMedicines]; ok {
		if err := json.Unmarshal(raw, &c.Medicines); err != nil {
			return err
		}
		if c.Medicines == nil {
			c.Medicines = []Medicine{}
		}
		delete(fields, keyMedicines)
	}

	if len(fields) > 0 {
		c.Extra = fields
	}
	return nil
}

func (c Collection) MarshalJSON() ([]byte, error) {
	meds := c.Medicines
	if meds == nil {
		meds = []Medicine{}
	}

	w := newObjectWriter()
	if err := w.field(keyMedicines, meds); err != nil {
		return nil, err
	}
	if err := w.extra(c.Extra, keyMedicines); err != nil {
		return nil, err
	}
	return w.close(), nil
}

func emptyCollection() Collection {
	return Collection{Medicines: []Medicine{}}
}

// IndexOf returns the position of the first medicine called name, or -1.
func (c Collection) IndexOf(name string) int {
	return slices.IndexFunc(c.Medicines, func(m Medicine) bool { return m.Matches(name) })
}

func (c Collection) clone() Collection {
	out := Collection{
		Medicines: make([]Medicine, len(c.Medicines)),
		Extra:     maps.Clone(c.Extra),
	}
	for i, m := range c.Medicines {
		m.Extra = maps.Clone(m.Extra)
		out.Medicines[i] = m
	}
	return out
}

// objectWriter builds a JSON object with a fixed key order: the known keys
// first, then extra keys sorted.
type objectWriter struct {
	buf bytes.Buffer
	n   int
}

func newObjectWriter() *objectWriter {
	w := &objectWriter{}
	w.buf.WriteByte('{')
	return w
}

func (w *objectWriter) raw(key string, v json.RawMessage) {
	if w.n > 0 {
		w.buf.WriteByte(',')
	}
	w.n++

	k, _ := json.Marshal(key)
	w.buf.Write(k)
	w.buf.WriteByte(':')
	w.buf.Write(v)
}

func (w *objectWriter) field(key string, v any) error {
	b, err := marshalValue(v)
	if err != nil {
		return err
	}
	w.raw(key, b)
	return nil
}

func (w *objectWriter) extra(fields map[string]json.RawMessage, known ...string) error {
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		if slices.Contains(known, k) {
			continue
		}
		v := fields[k]
		if !json.Valid(v) {
			return errors.New("invalid json in field " + k)
		}
		w.raw(k, v)
	}
	return nil
}

func (w *objectWriter) close() []byte {
	w.buf.WriteByte('}')
	return w.buf.Bytes()
}

// marshalValue leaves HTML characters alone; the outer encoder decides
// whether to escape them.
func marshalValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Store loads and replaces the whole collection at once.
//
// Load never fails because of the stored data: a missing or unreadable
// document reads as an empty collection. It only returns ctx errors.
type Store interface {
	Load(ctx context.Context) (Collection, error)
	Save(ctx context.Context, c Collection) error
	Ping(ctx context.Context) error
}
