// Package scanner finds top-level JSON fields without decoding the payload.
// It is only accurate for flat, well-formed objects and is meant for cheap
// routing decisions before a full decode.
package scanner

// ScanUintField returns the unsigned integer value following key.
// key must include its quotes, e.g. []byte(`"status"`).
func ScanUintField(payload []byte, key []byte) (uint64, bool) {
	i, ok := valueStart(payload, key)
	if !ok || payload[i] < '0' || payload[i] > '9' {
		return 0, false
	}
	var v uint64
	for i < len(payload) && payload[i] >= '0' && payload[i] <= '9' {
		v = v*10 + uint64(payload[i]-'0')
		i++
	}
	return v, true
}

// ScanStringField returns the raw string value following key, without
// unescaping.
func ScanStringField(payload []byte, key []byte) ([]byte, bool) {
	i, ok := valueStart(payload, key)
	if !ok || payload[i] != '"' {
		return nil, false
	}
	i++
	start := i
	for i < len(payload) && payload[i] != '"' {
		if payload[i] == '\\' {
			i++
		}
		i++
	}
	if i >= len(payload) {
		return nil, false
	}
	return payload[start:i], true
}

// HasField reports whether key appears followed by a colon.
func HasField(payload []byte, key []byte) bool {
	_, ok := valueStart(payload, key)
	return ok
}

// IsBareWord reports whether payload, ignoring surrounding whitespace, is
// exactly word. Exchanges use bare text frames such as "pong" for keepalive.
func IsBareWord(payload []byte, word []byte) bool {
	start, end := 0, len(payload)
	for start < end && IsSpace(payload[start]) {
		start++
	}
	for end > start && IsSpace(payload[end-1]) {
		end--
	}
	if end-start != len(word) {
		return false
	}
	return IndexOf(payload[start:end], word) == 0
}

func valueStart(payload []byte, key []byte) (int, bool) {
	idx := IndexOf(payload, key)
	if idx < 0 {
		return 0, false
	}
	i := idx + len(key)
	for i < len(payload) && IsSpace(payload[i]) {
		i++
	}
	if i >= len(payload) || payload[i] != ':' {
		return 0, false
	}
	i++
	for i < len(payload) && IsSpace(payload[i]) {
		i++
	}
	if i >= len(payload) {
		return 0, false
	}
	return i, true
}

func IndexOf(payload []byte, key []byte) int {
	if len(key) == 0 || len(payload) < len(key) {
		return -1
	}
outer:
	for i := 0; i <= len(payload)-len(key); i++ {
		for j := 0; j < len(key); j++ {
			if payload[i+j] != key[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

func IsSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func BytesContains(haystack []byte, needle []byte) bool {
	if len(needle) == 0 {
		return true
	}
	return IndexOf(haystack, needle) >= 0
}
