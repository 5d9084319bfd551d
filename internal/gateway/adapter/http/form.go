package http

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	apperrors "codes-api/internal/shared/errors"
)

// FormOptions bounds nested form decoding.
type FormOptions struct {
	// ParameterLimit is the maximum number of key/value pairs.
	ParameterLimit int
	// Depth is the maximum number of bracket groups honoured per key.
	Depth int
	// ArrayLimit is the highest numeric index decoded as an array slot.
	ArrayLimit int
}

// formArray collects array members by index until the tree is finalised.
type formArray struct {
	items map[int]interface{}
	next  int
}

func newFormArray() *formArray {
	return &formArray{items: make(map[int]interface{})}
}

func (a *formArray) set(i int, v interface{}) {
	a.items[i] = v
	if i >= a.next {
		a.next = i + 1
	}
}

func (a *formArray) toMap() map[string]interface{} {
	m := make(map[string]interface{}, len(a.items))
	for i, v := range a.items {
		m[strconv.Itoa(i)] = v
	}
	return m
}

// ParseNestedForm decodes an application/x-www-form-urlencoded body with
// bracket nesting:
//
//	a[b][c]=1        -> {"a": {"b": {"c": "1"}}}
//	a[]=x&a[]=y      -> {"a": ["x", "y"]}
//	a[1]=y&a[0]=x    -> {"a": ["x", "y"]}
//	a=1&a=2          -> {"a": ["1", "2"]}
//
// Brackets beyond opts.Depth are kept literally in the last key. Indexes above
// opts.ArrayLimit become object keys. Sparse arrays are compacted.
func ParseNestedForm(raw string, opts FormOptions) (map[string]interface{}, error) {
	root := make(map[string]interface{})
	if raw == "" {
		return root, nil
	}

	pairs := strings.Split(raw, "&")
	if opts.ParameterLimit > 0 && countNonEmpty(pairs) > opts.ParameterLimit {
		return nil, apperrors.ErrTooManyParams
	}

	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		rawKey, rawVal, _ := strings.Cut(pair, "=")

		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, err
		}
		val, err := url.QueryUnescape(rawVal)
		if err != nil {
			return nil, err
		}
		if key == "" {
			continue
		}

		segs := splitFormKey(key, opts.Depth)
		root[segs[0]] = insertFormValue(root[segs[0]], segs[1:], val, opts.ArrayLimit)
	}

	for k, v := range root {
		root[k] = finalizeFormValue(v)
	}
	return root, nil
}

func countNonEmpty(parts []string) int {
	n := 0
	for _, p := range parts {
		if p != "" {
			n++
		}
	}
	return n
}

// splitFormKey turns "a[b][]" into ["a", "b", ""]. A key whose first bracket
// group is unterminated is returned whole.
func splitFormKey(key string, depth int) []string {
	open := strings.IndexByte(key, '[')
	if open < 0 || strings.IndexByte(key[open:], ']') < 0 {
		return []string{key}
	}

	segs := make([]string, 0, depth+2)
	if open > 0 {
		segs = append(segs, key[:open])
	}

	rest := key[open:]
	for i := 0; i < depth && strings.HasPrefix(rest, "["); i++ {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			break
		}
		segs = append(segs, rest[1:end])
		rest = rest[end+1:]
	}
	if rest != "" {
		segs = append(segs, rest)
	}

	if len(segs) == 0 {
		return []string{key}
	}
	return segs
}

// arrayIndex reports whether seg addresses an array slot; -1 means append.
func arrayIndex(seg string, limit int) (int, bool) {
	if seg == "" {
		return -1, true
	}
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 || i > limit || strconv.Itoa(i) != seg {
		return 0, false
	}
	return i, true
}

func insertFormValue(node interface{}, segs []string, val string, arrayLimit int) interface{} {
	if len(segs) == 0 {
		return combineFormValue(node, val)
	}

	seg, rest := segs[0], segs[1:]

	if idx, ok := arrayIndex(seg, arrayLimit); ok {
		switch n := node.(type) {
		case nil:
			arr := newFormArray()
			insertAt(arr, idx, rest, val, arrayLimit)
			return arr
		case *formArray:
			insertAt(n, idx, rest, val, arrayLimit)
			return n
		case map[string]interface{}:
			key := seg
			if key == "" {
				key = strconv.Itoa(len(n))
			}
			n[key] = insertFormValue(n[key], rest, val, arrayLimit)
			return n
		default:
			arr := newFormArray()
			arr.set(0, n)
			insertAt(arr, idx, rest, val, arrayLimit)
			return arr
		}
	}

	switch n := node.(type) {
	case nil:
		return map[string]interface{}{seg: insertFormValue(nil, rest, val, arrayLimit)}
	case map[string]interface{}:
		n[seg] = insertFormValue(n[seg], rest, val, arrayLimit)
		return n
	case *formArray:
		m := n.toMap()
		m[seg] = insertFormValue(m[seg], rest, val, arrayLimit)
		return m
	default:
		arr := newFormArray()
		arr.set(0, n)
		arr.set(1, map[string]interface{}{seg: insertFormValue(nil, rest, val, arrayLimit)})
		return arr
	}
}

func insertAt(arr *formArray, idx int, rest []string, val string, arrayLimit int) {
	if idx < 0 {
		idx = arr.next
	}
	arr.set(idx, insertFormValue(arr.items[idx], rest, val, arrayLimit))
}

func combineFormValue(node interface{}, val string) interface{} {
	switch n := node.(type) {
	case nil:
		return val
	case *formArray:
		n.set(n.next, val)
		return n
	default:
		arr := newFormArray()
		arr.set(0, n)
		arr.set(1, val)
		return arr
	}
}

func finalizeFormValue(v interface{}) interface{} {
	switch n := v.(type) {
	case *formArray:
		idxs := make([]int, 0, len(n.items))
		for i := range n.items {
			idxs = append(idxs, i)
		}
		sort.Ints(idxs)
		out := make([]interface{}, 0, len(idxs))
		for _, i := range idxs {
			out = append(out, finalizeFormValue(n.items[i]))
		}
		return out
	case map[string]interface{}:
		for k, child := range n {
			n[k] = finalizeFormValue(child)
		}
		return n
	default:
		return v
	}
}
