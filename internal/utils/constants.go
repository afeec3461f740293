package utils

// LoggerInitializationFailedMessageFormat reports a failed logger setup.
const LoggerInitializationFailedMessageFormat = "failed to initialize logger: %w"

// ApplicationExecutionFailedMessage prefixes fatal command errors.
const ApplicationExecutionFailedMessage = "application execution failed"
