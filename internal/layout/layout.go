// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package layout verifies that the cache-line padding separating hot
// atomic fields in the scheduler's bounded run-queue struct actually lands
// where the source says it does. There is no
// architecture-specific assembly fast path backing these structs — only
// the struct-offset contract matters here, since every access goes
// through ordinary Go atomics rather than hand-written instruction
// sequences.
package layout

import "reflect"

// CheckOffset reports whether typ's field name sits at byte offset want,
// returning a descriptive error if not. Intended for use from a test so a
// future reordering of a padded struct's fields fails loudly instead of
// silently reintroducing false sharing.
func CheckOffset(typ reflect.Type, name string, want uintptr) error {
	field, ok := typ.FieldByName(name)
	if !ok {
		return &offsetError{typ: typ, field: name, msg: "missing field"}
	}
	if field.Offset != want {
		return &offsetError{typ: typ, field: name, got: field.Offset, want: want, msg: "offset mismatch"}
	}
	return nil
}

type offsetError struct {
	typ   reflect.Type
	field string
	got   uintptr
	want  uintptr
	msg   string
}

func (e *offsetError) Error() string {
	if e.msg == "missing field" {
		return e.typ.String() + "." + e.field + ": missing field"
	}
	return e.typ.String() + "." + e.field + ": offset got " + itoa(e.got) + ", want " + itoa(e.want)
}

func itoa(n uintptr) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
