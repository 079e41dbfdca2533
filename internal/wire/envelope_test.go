package wire

import (
	"net"
	"testing"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"
)

func TestMessageLength(t *testing.T) {
	tests := []struct {
		name    string
		buf     []byte
		total   int
		ok      bool
		wantErr bool
	}{
		{
			name: "empty buffer",
			buf:  nil,
		},
		{
			name: "header incomplete",
			buf:  []byte{0x30},
		},
		{
			name:  "short form",
			buf:   []byte{0x30, 0x05},
			total: 7,
			ok:    true,
		},
		{
			name:  "long form two bytes",
			buf:   []byte{0x30, 0x82, 0x01, 0x00},
			total: 260,
			ok:    true,
		},
		{
			name: "long form header incomplete",
			buf:  []byte{0x30, 0x82, 0x01},
		},
		{
			name:    "not a sequence",
			buf:     []byte{0x02, 0x01},
			wantErr: true,
		},
		{
			name:    "indefinite length",
			buf:     []byte{0x30, 0x80},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, ok, err := messageLength(tt.buf)
			if tt.wantErr {
				if err == nil {
					t.Fatal("messageLength() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("messageLength() error = %v", err)
			}
			if ok != tt.ok || total != tt.total {
				t.Errorf("messageLength() = (%d, %v), want (%d, %v)", total, ok, tt.total, tt.ok)
			}
		})
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	op, err := Search(SearchParams{BaseDN: "dc=example,dc=com", Scope: 2, Filter: "(cn=test)"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	raw := NewEnvelope(7, op, []*ber.Packet{PagedControl(10, nil)})

	packet, err := ber.DecodePacketErr(raw.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	env, err := DecodeEnvelope(packet)
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}
	if env.ID != 7 {
		t.Errorf("ID = %d, want 7", env.ID)
	}
	if env.Tag() != ApplicationSearchRequest {
		t.Errorf("Tag = %d, want %d", env.Tag(), ApplicationSearchRequest)
	}
	if len(env.Controls) != 1 {
		t.Fatalf("Controls = %d, want 1", len(env.Controls))
	}
	if got := ControlOID(env.Controls[0]); got != OIDPagedResults {
		t.Errorf("control OID = %q, want %q", got, OIDPagedResults)
	}
}

func TestDecodeEnvelopeMalformed(t *testing.T) {
	packet := ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "junk", "")
	if _, err := DecodeEnvelope(packet); err == nil {
		t.Fatal("DecodeEnvelope() error = nil, want error")
	}
}

func TestFramerNonBlockingPartialMessage(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	raw := NewEnvelope(3, Unbind(), nil).Bytes()
	fr := NewFramer(client)

	// Nothing written yet: the poll reports pending.
	env, err := fr.Next(false)
	if err != nil || env != nil {
		t.Fatalf("Next(false) = (%v, %v), want (nil, nil)", env, err)
	}

	// First half of the message arrives; the poll must keep it buffered.
	go server.Write(raw[:len(raw)/2])
	time.Sleep(20 * time.Millisecond)
	env, err = fr.Next(false)
	if err != nil || env != nil {
		t.Fatalf("Next(false) after partial write = (%v, %v), want (nil, nil)", env, err)
	}

	// Second half completes the message.
	go server.Write(raw[len(raw)/2:])
	time.Sleep(20 * time.Millisecond)
	env, err = fr.Next(false)
	if err != nil {
		t.Fatalf("Next(false) error = %v", err)
	}
	if env == nil {
		t.Fatal("Next(false) = nil after full message")
	}
	if env.ID != 3 || env.Tag() != ApplicationUnbindRequest {
		t.Errorf("envelope = id %d tag %d, want id 3 tag %d", env.ID, env.Tag(), ApplicationUnbindRequest)
	}
}

func TestFramerBlocking(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		server.Write(NewEnvelope(9, Abandon(4), nil).Bytes())
	}()

	fr := NewFramer(client)
	env, err := fr.Next(true)
	if err != nil {
		t.Fatalf("Next(true) error = %v", err)
	}
	if env.ID != 9 || env.Tag() != ApplicationAbandonRequest {
		t.Errorf("envelope = id %d tag %d, want id 9 abandon", env.ID, env.Tag())
	}
}

func TestFramerTwoMessagesOneRead(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	first := NewEnvelope(1, Unbind(), nil).Bytes()
	second := NewEnvelope(2, Unbind(), nil).Bytes()
	go server.Write(append(append([]byte{}, first...), second...))

	fr := NewFramer(client)
	for want := 1; want <= 2; want++ {
		env, err := fr.Next(true)
		if err != nil {
			t.Fatalf("Next(true) #%d error = %v", want, err)
		}
		if env.ID != want {
			t.Errorf("message #%d ID = %d", want, env.ID)
		}
	}
}
