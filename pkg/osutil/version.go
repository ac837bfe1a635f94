package osutil

// AgentVersion is the agent's own release version, reported to the
// controller during registration and via get_agent_version.
const AgentVersion = "1.0.0"

// GetAgentVersion implements get_agent_version.
func GetAgentVersion() string {
	return AgentVersion
}

// CopyrightMessage is printed by the version subcommand and on startup,
// mirroring clup_agent.py's version.copyright_message().
func CopyrightMessage() string {
	return "clup-agent " + AgentVersion + "\nCopyright (c) CSUDATA.COM and/or its affiliates. All rights reserved."
}
