// Package utils exposes the ambient helpers shared by every cisync command:
// the ConfigurationLoader layering embedded defaults, configuration files,
// and CISYNC environment overrides; the LoggerFactory translating the common
// logging configuration into zap loggers; and the context accessor that
// threads the resolved configuration file path through command execution.
package utils
