package utils

// LoggerInitializationFailedMessageFormat formats the panic raised when the application logger cannot be built.
const LoggerInitializationFailedMessageFormat = "logger initialization failed: %w"

// ApplicationExecutionFailedMessage prefixes fatal log entries emitted when the command layer returns an error.
const ApplicationExecutionFailedMessage = "application execution failed"
