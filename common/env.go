// Package common provides the types and constants shared between the
// ia-helper daemon and its RPC clients.
package common

// Environment variable names for configuration overrides.
const (
	// PortEnv overrides the daemon listen port.
	PortEnv = "IA_HELPER_PORT"

	// SecretEnv sets the RPC auth token.
	SecretEnv = "IA_HELPER_SECRET"

	// DownloadDirEnv overrides the download directory.
	DownloadDirEnv = "IA_HELPER_DOWNLOAD_DIR"

	// DataDirEnv overrides the data directory holding the task store.
	DataDirEnv = "IA_HELPER_DATA_DIR"

	// DebugEnv enables debug logging.
	DebugEnv = "IA_HELPER_DEBUG"
)
