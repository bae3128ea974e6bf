package config

// DefaultHost binds all interfaces so a phone on the LAN can connect.
const DefaultHost = "0.0.0.0"

// DefaultPort is the agent's preferred port.
const DefaultPort = 9527

// DefaultPortAttempts is how many consecutive ports the standalone agent tries.
const DefaultPortAttempts = 10

// Variants.
const (
	VariantStandalone = "standalone"
	VariantIntegrated = "integrated"
)

// Reply modes select how a submitted prompt asks the agent to report back.
const (
	ReplyModeSummary = "summary"
	ReplyModeCommand = "command"
)

// DefaultReplyCommand is the CLI an agent runs in command reply mode.
const DefaultReplyCommand = "voice-to-cursor"

// Environment variables read by ApplyEnv. PORT is the fallback for VTC_PORT.
const (
	EnvPort      = "VTC_PORT"
	EnvPortAlt   = "PORT"
	EnvHost      = "VTC_HOST"
	EnvVariant   = "VTC_VARIANT"
	EnvWorkspace = "VTC_WORKSPACE"
)
