package models

import "testing"

func TestPeekType(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"message", `{"type":"message","content":"hi"}`, "message", false},
		{"auth", `{"type":"auth","userId":1,"role":"talent"}`, "auth", false},
		{"future type passes peek", `{"type":"reaction"}`, "reaction", false},
		{"missing type", `{"content":"hi"}`, "", true},
		{"not json", `hello`, "", true},
		{"empty", ``, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := PeekType([]byte(tc.in))
			if tc.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr = %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Fatalf("type = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDecodeFrameTypes(t *testing.T) {
	frame, err := DecodeFrame([]byte(`{"type":"message","id":"m1","senderId":1,"receiverId":2,"content":"hi","mediaType":"image","mediaUrl":"data:image/png;base64,AA"}`))
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	m, ok := frame.(*Message)
	if !ok || m.ID != "m1" || m.ReceiverID != 2 || m.MediaType != "image" {
		t.Fatalf("decoded = %#v", frame)
	}

	frame, err = DecodeFrame([]byte(`{"type":"ack","localId":"l1","id":"r1","timestamp":"2026-09-01T10:00:00Z"}`))
	if err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if a, ok := frame.(*Ack); !ok || a.LocalID != "l1" || a.ID != "r1" {
		t.Fatalf("decoded = %#v", frame)
	}

	frame, err = DecodeFrame([]byte(`{"type":"status","userId":3,"status":"online"}`))
	if err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st, ok := frame.(*Status); !ok || st.UserID != 3 || st.Status != StatusOnline {
		t.Fatalf("decoded = %#v", frame)
	}

	if _, err := DecodeFrame([]byte(`{"type":"reaction","emoji":"+1"}`)); err == nil {
		t.Fatal("unknown frame type decoded")
	}
}
