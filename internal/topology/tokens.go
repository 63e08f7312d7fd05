package topology

// Token ids carried inside each block's TLV body. Numbering follows
// the usual vendor-token convention (buffer tokens anchored at 100); a
// token appearing in a block of the wrong type is simply skipped
// by the loader, the same skip-unknown rule that covers genuinely
// unknown ids.
const (
	// BlockPipeline
	TknPipelineID     uint32 = 1
	TknSchedPeriodUS  uint32 = 2
	TknXrunLimitUsecs uint32 = 3

	// BlockComponent
	TknCompID        uint32 = 10
	TknCompPipeline  uint32 = 11
	TknCompTypeUUID  uint32 = 12 // 16-byte value
	TknCompName      uint32 = 13
	TknCompDirection uint32 = 14 // 0=playback, 1=capture; host endpoints only
	TknCompConfig    uint32 = 15 // nested component config blob, forwarded verbatim

	// BlockBuffer — a buffer block both declares the ring and names the
	// edge it wires, since the loader performs buffer_new and
	// comp_connect as one step.
	TknBufSize     uint32 = 100
	TknBufCaps     uint32 = 101
	TknBufID       uint32 = 102
	TknBufPipeline uint32 = 103
	TknBufFromComp uint32 = 104
	TknBufToComp   uint32 = 105
	TknBufRate     uint32 = 106
	TknBufChannels uint32 = 107
	TknBufFormat   uint32 = 108

	// BlockDAI
	TknDAIPipeline  uint32 = 120
	TknDAICompID    uint32 = 121
	TknDAIName      uint32 = 122 // string
	TknDAIType      uint32 = 123 // string, matched against the platform table
	TknDAIIndex     uint32 = 124
	TknDAIDirection uint32 = 125
)
