package x32

import "testing"

func TestClassifySource(t *testing.T) {
	tests := []struct {
		value int
		want  SourceClass
	}{
		{1, SourceLocal},
		{32, SourceLocal},
		{33, SourceAES50A},
		{80, SourceAES50A},
		{81, SourceAES50B},
		{128, SourceAES50B},
		{129, SourceDAW},
		{160, SourceDAW},
		{0, SourceOther},
		{161, SourceOther},
		{-5, SourceOther},
	}

	for _, tt := range tests {
		if got := ClassifySource(tt.value); got != tt.want {
			t.Errorf("ClassifySource(%d) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestRoutingValues(t *testing.T) {
	for block := 0; block < NumRoutingBlocks; block++ {
		if got := RoutingLocalValue(block); got != block {
			t.Errorf("RoutingLocalValue(%d) = %d, want %d", block, got, block)
		}
		if got := RoutingCardValue(block); got != 20+block {
			t.Errorf("RoutingCardValue(%d) = %d, want %d", block, got, 20+block)
		}
	}
}

func TestChannelAddresses(t *testing.T) {
	if got := ChannelNameAddress(1); got != "/ch/01/config/name" {
		t.Errorf("ChannelNameAddress(1) = %q", got)
	}
	if got := ChannelColorAddress(32); got != "/ch/32/config/color" {
		t.Errorf("ChannelColorAddress(32) = %q", got)
	}
	if got := ChannelPatchAddress(7); got != "/config/userrout/in/07" {
		t.Errorf("ChannelPatchAddress(7) = %q", got)
	}
}

func TestParseChannelAddress(t *testing.T) {
	tests := []struct {
		addr     string
		wantCh   int
		wantAttr channelAttr
		wantOK   bool
	}{
		{"/ch/01/config/name", 1, attrName, true},
		{"/ch/32/config/color", 32, attrColor, true},
		{"/config/userrout/in/15", 15, attrPatch, true},
		{"/ch/33/config/name", 0, 0, false},
		{"/config/routing/IN/1-8", 0, 0, false},
		{"/xinfo", 0, 0, false},
	}

	for _, tt := range tests {
		ch, attr, ok := parseChannelAddress(tt.addr)
		if ok != tt.wantOK {
			t.Errorf("parseChannelAddress(%q) ok = %v, want %v", tt.addr, ok, tt.wantOK)
			continue
		}
		if ok && (ch != tt.wantCh || attr != tt.wantAttr) {
			t.Errorf("parseChannelAddress(%q) = (%d, %d), want (%d, %d)",
				tt.addr, ch, attr, tt.wantCh, tt.wantAttr)
		}
	}
}

func TestRoutingBlockFor(t *testing.T) {
	for block, addr := range routingBlockAddresses {
		if got := routingBlockFor(addr); got != block {
			t.Errorf("routingBlockFor(%q) = %d, want %d", addr, got, block)
		}
	}
	if got := routingBlockFor("/config/routing/IN/33-40"); got != -1 {
		t.Errorf("routingBlockFor(unknown) = %d, want -1", got)
	}
}
