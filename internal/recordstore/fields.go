// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recordstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

type valueKind uint8

const (
	kindText valueKind = iota
	kindNumber
)

// Value is a typed record field value.
type Value struct {
	kind   valueKind
	text   string
	number float64
}

// Text returns a text value.
func Text(s string) Value { return Value{kind: kindText, text: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: kindNumber, number: f} }

// ValueOf maps Go numbers to Number and everything else to Text.
func ValueOf(v any) Value {
	switch n := v.(type) {
	case int:
		return Number(float64(n))
	case int32:
		return Number(float64(n))
	case int64:
		return Number(float64(n))
	case uint:
		return Number(float64(n))
	case uint32:
		return Number(float64(n))
	case uint64:
		return Number(float64(n))
	case float32:
		return Number(float64(n))
	case float64:
		return Number(n)
	case string:
		return Text(n)
	case nil:
		return Text("")
	default:
		return Text(fmt.Sprint(n))
	}
}

// IsNumber reports whether v is sent as a numeric field.
func (v Value) IsNumber() bool { return v.kind == kindNumber }

func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsNumber() {
		if math.IsNaN(v.number) || math.IsInf(v.number, 0) {
			return nil, fmt.Errorf("recordstore: number field value %v is not representable", v.number)
		}
		return json.Marshal(struct {
			Number float64 `json:"number"`
		}{v.number})
	}
	return json.Marshal(struct {
		Text string `json:"text"`
	}{v.text})
}

// FieldUpdate is an ordered set of field name to value assignments for one record.
// Setting an existing name replaces its value and keeps its position.
type FieldUpdate struct {
	names  []string
	values map[string]Value
}

// NewFieldUpdate returns an empty update.
func NewFieldUpdate() *FieldUpdate {
	return &FieldUpdate{values: make(map[string]Value)}
}

// Set assigns v to name. Blank names are ignored.
func (u *FieldUpdate) Set(name string, v Value) *FieldUpdate {
	if name == "" {
		return u
	}
	if _, ok := u.values[name]; !ok {
		u.names = append(u.names, name)
	}
	u.values[name] = v
	return u
}

// SetValue assigns v to name using ValueOf.
func (u *FieldUpdate) SetValue(name string, v any) *FieldUpdate {
	return u.Set(name, ValueOf(v))
}

// Names returns the field names in insertion order.
func (u *FieldUpdate) Names() []string {
	return append([]string(nil), u.names...)
}

// Get returns the value assigned to name.
func (u *FieldUpdate) Get(name string) (Value, bool) {
	v, ok := u.values[name]
	return v, ok
}

func (u *FieldUpdate) Len() int { return len(u.names) }

// MarshalJSON writes the fields as a JSON object in insertion order.
func (u *FieldUpdate) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range u.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := u.values[name].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
