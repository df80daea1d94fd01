package rcon

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestEncodeFrameLayout(t *testing.T) {
	got, err := Encode(7, TypeCommand, "abc")
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	want := []byte{
		13, 0, 0, 0, // size = 10 + 3
		7, 0, 0, 0, // id
		2, 0, 0, 0, // type
		'a', 'b', 'c',
		0, 0,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode = %v, want %v", got, want)
	}
}

func TestEncodeNegativeID(t *testing.T) {
	got, err := Encode(-1, TypeAuthResponse, "")
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if !bytes.Equal(got[4:8], []byte{0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("id bytes = %v, want all 0xff", got[4:8])
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		id   int32
		typ  PacketType
		body string
	}{
		{"empty body", 1, TypeCommand, ""},
		{"auth", 42, TypeAuth, "hunter2"},
		{"response", 3, TypeResponse, "Saved"},
		{"negative id", -1, TypeAuthResponse, ""},
		{"max id", 1<<31 - 1, TypeCommand, "Shutdown 30 bye"},
		{"utf8", 9, TypeResponse, "セーブ完了"},
		{"largest body", 5, TypeCommand, strings.Repeat("x", MaxPacketSize-10)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame, err := Encode(tc.id, tc.typ, tc.body)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			pkt, n, err := Decode(frame)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if n != len(frame) {
				t.Errorf("consumed %d bytes, want %d", n, len(frame))
			}
			if pkt.ID != tc.id || pkt.Type != tc.typ || pkt.Body != tc.body {
				t.Errorf("Decode = {%d %v %q}, want {%d %v %q}", pkt.ID, pkt.Type, pkt.Body, tc.id, tc.typ, tc.body)
			}
			if int(pkt.Size) != len(frame)-4 {
				t.Errorf("Size = %d, want %d", pkt.Size, len(frame)-4)
			}
		})
	}
}

func TestEncodeRejectsNullByte(t *testing.T) {
	_, err := Encode(1, TypeCommand, "say\x00hi")
	if !errors.Is(err, ErrNullInBody) {
		t.Fatalf("err = %v, want ErrNullInBody", err)
	}
	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		t.Errorf("err = %T, want *EncodingError", err)
	}
}

func TestEncodeRejectsOversize(t *testing.T) {
	_, err := Encode(1, TypeCommand, strings.Repeat("x", MaxPacketSize-9))
	if !errors.Is(err, ErrPacketTooLarge) {
		t.Fatalf("err = %v, want ErrPacketTooLarge", err)
	}
}

func TestDecodeTruncatedNeedsMoreInput(t *testing.T) {
	frame, err := Encode(11, TypeResponse, "hello world")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	for i := 0; i < len(frame); i++ {
		_, n, err := Decode(frame[:i])
		if !errors.Is(err, ErrIncomplete) {
			t.Fatalf("Decode(frame[:%d]) err = %v, want ErrIncomplete", i, err)
		}
		if n != 0 {
			t.Fatalf("Decode(frame[:%d]) consumed %d bytes", i, n)
		}
	}
}

func TestDecodeLeavesTrailingBytes(t *testing.T) {
	first, _ := Encode(1, TypeResponse, "one")
	second, _ := Encode(2, TypeResponse, "two")
	buf := append(append([]byte{}, first...), second[:5]...)

	pkt, n, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if pkt.Body != "one" || n != len(first) {
		t.Errorf("got body %q consumed %d, want %q consumed %d", pkt.Body, n, "one", len(first))
	}
	if _, _, err := Decode(buf[n:]); !errors.Is(err, ErrIncomplete) {
		t.Errorf("remainder err = %v, want ErrIncomplete", err)
	}
}

func TestDecodeMalformedSize(t *testing.T) {
	cases := map[string][]byte{
		"size below minimum": {9, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0},
		"negative size":      {0xff, 0xff, 0xff, 0xff},
		"absurd size":        {0, 0, 0, 0x10},
	}
	for name, buf := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Decode(buf)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("err = %v, want ErrMalformed", err)
			}
			if errors.Is(err, ErrIncomplete) {
				t.Errorf("malformed frame reported as incomplete")
			}
		})
	}
}

func TestDecodeStripsTrailingNulls(t *testing.T) {
	// some servers pad the body with an extra null
	buf := []byte{
		13, 0, 0, 0,
		4, 0, 0, 0,
		0, 0, 0, 0,
		'o', 'k', 0,
		0, 0,
	}
	pkt, _, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if pkt.Body != "ok" {
		t.Errorf("Body = %q, want %q", pkt.Body, "ok")
	}
}
