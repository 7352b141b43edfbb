package discovery

import (
	"errors"
	"net"
	"testing"
)

func TestAnnouncementTXTRoundTrip(t *testing.T) {
	ann := &Announcement{
		Name:    "synth.2",
		ID:      DeriveID("synth.2"),
		Token:   "0f3c2a10-8d1e-4a5b-9c6d-1234567890ab",
		Version: "1.0",
	}

	strs := TXTRecordsToStrings(EncodeAnnouncementTXT(ann))
	if strs[0] != "id="+formatID(ann.ID) {
		t.Errorf("TXT strings not sorted: %v", strs)
	}

	got, err := DecodeAnnouncementTXT(StringsToTXTRecords(strs))
	if err != nil {
		t.Fatalf("DecodeAnnouncementTXT failed: %v", err)
	}
	if *got != *ann {
		t.Errorf("got %+v, want %+v", got, ann)
	}
}

func TestDecodeAnnouncementTXTErrors(t *testing.T) {
	good := func() TXTRecordMap {
		return TXTRecordMap{TXTKeyName: "a.1", TXTKeyID: "00000000000000ff", TXTKeyToken: "t"}
	}

	tests := []struct {
		name   string
		mutate func(TXTRecordMap)
		err    error
	}{
		{"missing name", func(m TXTRecordMap) { delete(m, TXTKeyName) }, ErrMissingRequired},
		{"base name only", func(m TXTRecordMap) { m[TXTKeyName] = "a" }, ErrInvalidTXTRecord},
		{"missing id", func(m TXTRecordMap) { delete(m, TXTKeyID) }, ErrMissingRequired},
		{"short id", func(m TXTRecordMap) { m[TXTKeyID] = "ff" }, ErrInvalidTXTRecord},
		{"non-hex id", func(m TXTRecordMap) { m[TXTKeyID] = "zz000000000000ff" }, ErrInvalidTXTRecord},
		{"missing token", func(m TXTRecordMap) { delete(m, TXTKeyToken) }, ErrMissingRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := good()
			tt.mutate(m)
			if _, err := DecodeAnnouncementTXT(m); !errors.Is(err, tt.err) {
				t.Errorf("got %v, want %v", err, tt.err)
			}
		})
	}
}

func TestStringsToTXTRecordsFlags(t *testing.T) {
	m := StringsToTXTRecords([]string{"a=1", "flag", "", "b=x=y"})
	if m["a"] != "1" || m["b"] != "x=y" {
		t.Errorf("unexpected map %v", m)
	}
	if v, ok := m["flag"]; !ok || v != "" {
		t.Errorf("flag key missing: %v", m)
	}
	if len(m) != 3 {
		t.Errorf("got %d keys, want 3", len(m))
	}
}

func TestInstanceName(t *testing.T) {
	ann := &Announcement{Name: "synth.1", Token: "abcdef0123456789"}
	if got := ann.InstanceName(); got != "synth.1@abcdef01" {
		t.Errorf("InstanceName = %q", got)
	}
	if err := ValidateInstanceName(ann.InstanceName()); err != nil {
		t.Error(err)
	}
	if err := ValidateInstanceName(""); err == nil {
		t.Error("empty instance name should fail")
	}
}

func TestPeerUDPAddr(t *testing.T) {
	p := &Peer{Announcement: Announcement{Port: 7570}, Addresses: []string{"fe80::1", "bogus", "192.168.1.4"}}
	addr, ok := p.UDPAddr()
	if !ok || !addr.IP.Equal(net.ParseIP("192.168.1.4")) || addr.Port != 7570 {
		t.Errorf("UDPAddr = %v, %v", addr, ok)
	}

	p.Addresses = []string{"fe80::1"}
	if addr, ok := p.UDPAddr(); !ok || addr.IP.To4() != nil {
		t.Errorf("expected IPv6 fallback, got %v", addr)
	}

	p.Addresses = nil
	if _, ok := p.UDPAddr(); ok {
		t.Error("expected no address")
	}
}
