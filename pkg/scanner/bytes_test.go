package scanner

import "testing"

func TestScanStringField(t *testing.T) {
	cases := []struct {
		payload string
		key     string
		want    string
		ok      bool
	}{
		{`{"type":"subscriptions","channels":[]}`, `"type"`, "subscriptions", true},
		{`{"type" : "ticker"}`, `"type"`, "ticker", true},
		{`{"event":"subscribe","arg":{}}`, `"event"`, "subscribe", true},
		{`{"msg":"a \"quoted\" word"}`, `"msg"`, `a \"quoted\" word`, true},
		{`{"type":1}`, `"type"`, "", false},
		{`{"kind":"x"}`, `"type"`, "", false},
		{`{"type":"unterminated`, `"type"`, "", false},
		{`["type"]`, `"type"`, "", false},
	}
	for _, c := range cases {
		got, ok := ScanStringField([]byte(c.payload), []byte(c.key))
		if ok != c.ok || string(got) != c.want {
			t.Fatalf("ScanStringField(%s, %s) = %q, %v; want %q, %v", c.payload, c.key, got, ok, c.want, c.ok)
		}
	}
}

func TestScanUintField(t *testing.T) {
	v, ok := ScanUintField([]byte(`{"id":"x","status": 200,"result":[]}`), []byte(`"status"`))
	if !ok || v != 200 {
		t.Fatalf("status = %d, %v", v, ok)
	}
	if _, ok := ScanUintField([]byte(`{"status":"200"}`), []byte(`"status"`)); ok {
		t.Fatalf("quoted status must not scan as uint")
	}
	if _, ok := ScanUintField([]byte(`{"status":`), []byte(`"status"`)); ok {
		t.Fatalf("truncated payload must not scan")
	}
}

func TestHasFieldAndBareWord(t *testing.T) {
	if !HasField([]byte(`{"event": "error"}`), []byte(`"event"`)) {
		t.Fatalf("expected event field")
	}
	if HasField([]byte(`{"data":["event"]}`), []byte(`"event"`)) {
		t.Fatalf("array element must not count as a field")
	}
	if !IsBareWord([]byte(" pong\n"), []byte("pong")) {
		t.Fatalf("expected bare pong")
	}
	if IsBareWord([]byte(`{"pong":1}`), []byte("pong")) {
		t.Fatalf("object must not be a bare word")
	}
}

func TestBytesContains(t *testing.T) {
	if !BytesContains([]byte("mark-price-candle1m"), []byte("candle")) {
		t.Fatalf("expected match")
	}
	if BytesContains([]byte("abc"), []byte("abcd")) {
		t.Fatalf("unexpected match")
	}
	if !BytesContains(nil, nil) {
		t.Fatalf("empty needle always matches")
	}
}
