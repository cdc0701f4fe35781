package x32

import "fmt"

// Console constants.
const (
	// NumChannels is the number of input channels on the console.
	NumChannels = 32

	// NumRoutingBlocks is the number of 8-channel input routing blocks.
	NumRoutingBlocks = 4

	// InfoAddress is the discovery/keep-alive address. The console answers
	// with [ip, name, model, firmware]; the reply's sender address is the
	// authoritative console address.
	InfoAddress = "/xinfo"
)

// routingBlockAddresses are the four fixed routing-block parameters, one
// per group of 8 input channels.
var routingBlockAddresses = [NumRoutingBlocks]string{
	"/config/routing/IN/1-8",
	"/config/routing/IN/9-16",
	"/config/routing/IN/17-24",
	"/config/routing/IN/25-32",
}

// Routing enum values. Blocks 0..3 map to local preamps AN1-8..AN25-32
// (values 0..3) and to expansion card banks CARD1-8..CARD25-32
// (values 20..23).
const (
	routingLocalBase = 0
	routingCardBase  = 20
)

// RoutingBlockAddress returns the OSC address for routing block 0..3.
func RoutingBlockAddress(block int) string {
	return routingBlockAddresses[block]
}

// RoutingBlockAddresses returns the four routing-block addresses in order.
func RoutingBlockAddresses() []string {
	return routingBlockAddresses[:]
}

// RoutingLocalValue returns the local-preamp enum value for a block.
func RoutingLocalValue(block int) int {
	return routingLocalBase + block
}

// RoutingCardValue returns the expansion-card enum value for a block.
func RoutingCardValue(block int) int {
	return routingCardBase + block
}

// ChannelID formats a 1-based channel number as the console's two-digit,
// zero-padded channel id ("01".."32").
func ChannelID(ch int) string {
	return fmt.Sprintf("%02d", ch)
}

// ChannelNameAddress returns the name parameter for channel ch (1..32).
func ChannelNameAddress(ch int) string {
	return "/ch/" + ChannelID(ch) + "/config/name"
}

// ChannelColorAddress returns the colour parameter for channel ch (1..32).
func ChannelColorAddress(ch int) string {
	return "/ch/" + ChannelID(ch) + "/config/color"
}

// ChannelPatchAddress returns the user-routable input source parameter for
// channel ch (1..32).
func ChannelPatchAddress(ch int) string {
	return "/config/userrout/in/" + ChannelID(ch)
}

// parseChannelAddress reports whether addr is one of the per-channel
// attribute addresses and, if so, which channel and attribute.
func parseChannelAddress(addr string) (ch int, attr channelAttr, ok bool) {
	for c := 1; c <= NumChannels; c++ {
		switch addr {
		case ChannelNameAddress(c):
			return c, attrName, true
		case ChannelColorAddress(c):
			return c, attrColor, true
		case ChannelPatchAddress(c):
			return c, attrPatch, true
		}
	}
	return 0, 0, false
}

// channelAttr identifies a per-channel attribute class.
type channelAttr int

const (
	attrName channelAttr = iota
	attrColor
	attrPatch
)

// routingBlockFor returns the block index for a routing address, or -1.
func routingBlockFor(addr string) int {
	for i, a := range routingBlockAddresses {
		if a == addr {
			return i
		}
	}
	return -1
}

// Patch-source classification boundaries for the user input router.
// The console numbers sources 1..32 local XLR, 33..80 AES50 port A,
// 81..128 AES50 port B, 129..160 expansion card.
const (
	patchLocalMax  = 32
	patchAES50AMax = 80
	patchAES50BMax = 128
	patchDAWMax    = 160
)

// SourceClass is a labelled patch-value range.
type SourceClass string

// Patch source classes reported by enumerate-sources.
const (
	SourceLocal  SourceClass = "Local"
	SourceAES50A SourceClass = "AES50A"
	SourceAES50B SourceClass = "AES50B"
	SourceDAW    SourceClass = "DAW"
	SourceOther  SourceClass = "Other"
)

// ClassifySource maps a patch value onto its labelled range.
func ClassifySource(value int) SourceClass {
	switch {
	case value >= 1 && value <= patchLocalMax:
		return SourceLocal
	case value > patchLocalMax && value <= patchAES50AMax:
		return SourceAES50A
	case value > patchAES50AMax && value <= patchAES50BMax:
		return SourceAES50B
	case value > patchAES50BMax && value <= patchDAWMax:
		return SourceDAW
	default:
		return SourceOther
	}
}
