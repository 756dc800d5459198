package execache

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// keyJSON sorts map keys, unlike jsoniter's default config, so fallback
// encoding stays deterministic for maps of any key/value type.
var keyJSON = jsoniter.Config{SortMapKeys: true}.Froze()

// Args carries named arguments for Key. Keys are rendered in sorted order so
// two calls that pass the same pairs in a different order produce the same
// cache key.
type Args map[string]any

// Key builds a deterministic cache key from an operation name and the
// arguments that identify it. Identical logical requests collide to the same
// key; distinguishable requests do not (fields are joined with a separator
// that cannot appear from the length-prefixed string encoding).
func Key(op string, args ...any) string {
	var b strings.Builder
	writeString(&b, op)
	for _, arg := range args {
		b.WriteByte(0x1f)
		writeArg(&b, arg)
	}
	return b.String()
}

func writeString(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

func writeArg(b *strings.Builder, arg any) {
	switch v := arg.(type) {
	case nil:
		b.WriteString("nil")
	case string:
		writeString(b, v)
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		// The type tag keeps e.g. int(1) and float64(1) from colliding.
		fmt.Fprintf(b, "%T(%v)", v, v)
	case Args:
		writeMap(b, v)
	case map[string]any:
		writeMap(b, v)
	case []string:
		b.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			writeString(b, item)
		}
		b.WriteByte(']')
	case []any:
		b.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			writeArg(b, item)
		}
		b.WriteByte(']')
	case fmt.Stringer:
		writeString(b, v.String())
	default:
		// Structs, other map types and anything else go through JSON with
		// sorted map keys, so the encoding is stable across calls.
		bs, err := keyJSON.Marshal(v)
		if err != nil {
			fmt.Fprintf(b, "%T(%v)", v, v)
			return
		}
		b.Write(bs)
	}
}

func writeMap(b *strings.Builder, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		writeString(b, k)
		b.WriteByte('=')
		writeArg(b, m[k])
	}
	b.WriteByte('}')
}
