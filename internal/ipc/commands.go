package ipc

// Command ids within each Class.
// Values only need to be stable within one running image and its
// paired host driver.
const (
	CmdCompNew uint8 = iota
	CmdBufferNew
	CmdPipeNew
	CmdCompConnect
	CmdPipeComplete
	CmdCompFree
	CmdBufferFree
	CmdPipeFree
	CmdDAIConfig
)

const (
	CmdPCMParams uint8 = iota
	CmdPCMFree
	CmdTrigger
	CmdPosition
	CmdSetConfig
	CmdGetConfig
)

const (
	CmdCtxSave uint8 = iota
	CmdCtxRestore
	CmdCoreEnable
)

const (
	CmdTraceDMAParams uint8 = iota
	CmdMemDump
)

// Notification subcommands, sent dsp->host with Class == ClassNotify.
const (
	NotifyFWReady uint8 = iota
	NotifyXrun
	NotifyPositionAdvance
	NotifyResourceEvent
	NotifyWatchdogTimeout
	NotifyPhraseDetected
)
