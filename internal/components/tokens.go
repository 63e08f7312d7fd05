package components

// Token ids for the TLV-encoded configuration blobs carried by IPC
// component_new and set_config, reusing the same token/value mechanism
// the topology blob's vendor arrays use, so topology-supplied and
// runtime-supplied component configuration share one format. Each kind owns a disjoint block of ids so a stray token
// from the wrong kind's blob matches none of that Configure's cases
// rather than being misapplied.
const (
	// Host: a single uint32 Direction value (0=playback, 1=capture),
	// since the host endpoint's only configuration is which way data
	// flows through its mailbox staging ring — everything else about it
	// comes from the negotiated stream params. Shared across every kind
	// below TokenVolumeGainQ16's block starts, rather than owning its
	// own hundred-block, since no other kind needs a direction token.
	TokenDirection uint32 = 1

	// Volume: repeated {channel uint32, gainQ16 int32} entries, plus one
	// ramp shape and one ramp duration applied to the whole batch.
	TokenVolumeGainQ16     uint32 = 100
	TokenVolumeRampShape   uint32 = 101
	TokenVolumeRampSamples uint32 = 102

	// Tone: two scalar float64-bits values.
	TokenToneFreqHz    uint32 = 110
	TokenToneAmplitude uint32 = 111

	// ASRC: one scalar float64-bits ratio.
	TokenASRCRatio uint32 = 120

	// DRC: seven scalar float64-bits values, one per DRCConfig field.
	TokenDRCThresholdDB  uint32 = 130
	TokenDRCRatioToOne   uint32 = 131
	TokenDRCKneeWidthDB  uint32 = 132
	TokenDRCAttackMs     uint32 = 133
	TokenDRCReleaseMs    uint32 = 134
	TokenDRCLookaheadMs  uint32 = 135
	TokenDRCMakeupGainDB uint32 = 136

	// EQ: repeated float64-bits FIR taps, or repeated 5x-float64-bits IIR
	// sections, in coefficient order. A blob must carry only one of the
	// two per Configure's topology check.
	TokenEQFIRTap     uint32 = 140
	TokenEQIIRSection uint32 = 141

	// MuxDemux: repeated {sinkIdx uint32, outCh uint32, mask uint64}
	// entries; outCh selects the position within that sink's outMasks
	// slice, so a complete routing table for a sink arrives as one entry
	// per output channel.
	TokenMuxRoute uint32 = 150

	// Selector: repeated uint32 source-channel entries, one per output
	// channel in order — the i-th occurrence feeds output channel i.
	TokenSelRoute uint32 = 160

	// DCBlock: one scalar float64-bits pole position.
	TokenDCBlockR uint32 = 170

	// KPB: one uint32 history window in milliseconds, plus a drain
	// command token (any non-zero uint32) the host sends after a
	// phrase_detected notification to trigger history replay.
	TokenKPBHistoryMs uint32 = 180
	TokenKPBDrain     uint32 = 181
)
