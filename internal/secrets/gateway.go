package secrets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"go.uber.org/zap"

	"github.com/temirov/cisync/internal/execshell"
)

const (
	encryptedBundleSuffixConstant      = ".age"
	plaintextFallbackSuffixConstant    = ".txt"
	defaultSearchPathVariableConstant  = "PYTHONPATH"
	defaultPasswordFileNameConstant    = "password"
	searchPathSeparatorConstant        = ":"
	secretsDirectoryPermissionConstant = 0o700
	secretFilePermissionConstant       = 0o600

	executorMissingMessageConstant          = "webhook executor not configured"
	environmentMissingMessageConstant       = "process environment not configured"
	bundlePathRequiredMessageConstant       = "bundle path must be provided"
	secretsDirectoryRequiredMessageConstant = "secrets directory must be provided"

	bundleCopyFailureTemplateConstant       = "failed to copy credential bundle to %s: %w"
	passwordReadFailureTemplateConstant     = "failed to read password file %s: %w"
	bundleDecryptFailureTemplateConstant    = "failed to decrypt credential bundle %s: %w"
	plaintextWriteFailureTemplateConstant   = "failed to write decrypted bundle %s: %w"
	directoryCreateFailureTemplateConstant  = "failed to create secrets directory %s: %w"
	searchPathUpdateFailureTemplateConstant = "failed to update %s: %w"

	secretsAlreadyAvailableLogConstant = "secrets directory already on search path, skipping decryption"
	secretsMaterializedLogConstant     = "credential bundle decrypted"
	alertDeliveryFailedLogConstant     = "alert delivery failed"
	alertDeliverySkippedLogConstant    = "no webhook configured, alert logged only"
	secretsDirectoryLogFieldConstant   = "secrets_directory"
	severityLogFieldConstant           = "severity"
	htmlLogFieldConstant               = "html"

	contentTypeHeaderConstant     = "Content-Type: application/json"
	curlSilentFlagConstant        = "-sS"
	curlMethodFlagConstant        = "-X"
	curlPostMethodConstant        = "POST"
	curlHeaderFlagConstant        = "-H"
	curlDataFlagConstant          = "--data-binary"
	curlStandardInputNameConstant = "@-"
)

// Severity labels an alert for both the webhook payload and the log mirror.
type Severity string

const (
	// SeverityInfo marks informational alerts.
	SeverityInfo Severity = "info"
	// SeverityWarning marks alerts requiring operator attention.
	SeverityWarning Severity = "warning"
	// SeverityError marks alerts for failed operations.
	SeverityError Severity = "error"
)

// ErrWebhookExecutorNotConfigured indicates the executor dependency was missing.
var ErrWebhookExecutorNotConfigured = errors.New(executorMissingMessageConstant)

// ErrProcessEnvironmentNotConfigured indicates the environment dependency was missing.
var ErrProcessEnvironmentNotConfigured = errors.New(environmentMissingMessageConstant)

// ErrBundlePathRequired indicates the bundle path option was empty.
var ErrBundlePathRequired = errors.New(bundlePathRequiredMessageConstant)

// ErrSecretsDirectoryRequired indicates the secrets directory option was empty.
var ErrSecretsDirectoryRequired = errors.New(secretsDirectoryRequiredMessageConstant)

// WebhookExecutor posts alert payloads to the chat webhook.
type WebhookExecutor interface {
	ExecuteCurl(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// ProcessEnvironment exposes the environment variables the gateway reads and mutates.
type ProcessEnvironment interface {
	Get(key string) string
	Set(key string, value string) error
}

// OSProcessEnvironment implements ProcessEnvironment with the real process environment.
type OSProcessEnvironment struct{}

// NewOSProcessEnvironment constructs an operating-system backed ProcessEnvironment.
func NewOSProcessEnvironment() OSProcessEnvironment {
	return OSProcessEnvironment{}
}

// Get reads an environment variable.
func (OSProcessEnvironment) Get(key string) string {
	return os.Getenv(key)
}

// Set writes an environment variable for the current process.
func (OSProcessEnvironment) Set(key string, value string) error {
	return os.Setenv(key, value)
}

// Dependencies enumerates external collaborators required by the Gateway.
type Dependencies struct {
	Executor    WebhookExecutor
	Environment ProcessEnvironment
	Logger      *zap.Logger
}

// Options captures the secret-material layout and alert destination.
type Options struct {
	BundlePath         string
	PasswordFilePath   string
	SecretsDirectory   string
	SearchPathVariable string
	WebhookURL         string
	Channel            string
	Sender             string
}

// Gateway lazily decrypts the credential bundle and dispatches alerts.
type Gateway struct {
	executor           WebhookExecutor
	environment        ProcessEnvironment
	logger             *zap.Logger
	bundlePath         string
	passwordFilePath   string
	secretsDirectory   string
	searchPathVariable string
	webhookURL         string
	channel            string
	sender             string
}

// NewGateway validates the dependencies and options and constructs a Gateway.
func NewGateway(dependencies Dependencies, options Options) (*Gateway, error) {
	if dependencies.Executor == nil {
		return nil, ErrWebhookExecutorNotConfigured
	}
	if dependencies.Environment == nil {
		return nil, ErrProcessEnvironmentNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bundlePath := strings.TrimSpace(options.BundlePath)
	if len(bundlePath) == 0 {
		return nil, ErrBundlePathRequired
	}
	secretsDirectory := strings.TrimSpace(options.SecretsDirectory)
	if len(secretsDirectory) == 0 {
		return nil, ErrSecretsDirectoryRequired
	}
	passwordFilePath := strings.TrimSpace(options.PasswordFilePath)
	if len(passwordFilePath) == 0 {
		passwordFilePath = filepath.Join(filepath.Dir(bundlePath), defaultPasswordFileNameConstant)
	}
	searchPathVariable := strings.TrimSpace(options.SearchPathVariable)
	if len(searchPathVariable) == 0 {
		searchPathVariable = defaultSearchPathVariableConstant
	}
	return &Gateway{
		executor:           dependencies.Executor,
		environment:        dependencies.Environment,
		logger:             logger,
		bundlePath:         bundlePath,
		passwordFilePath:   passwordFilePath,
		secretsDirectory:   secretsDirectory,
		searchPathVariable: searchPathVariable,
		webhookURL:         strings.TrimSpace(options.WebhookURL),
		channel:            strings.TrimSpace(options.Channel),
		sender:             strings.TrimSpace(options.Sender),
	}, nil
}

// EnsureSecrets decrypts the credential bundle into the secrets directory and
// prepends that directory to the module search path. When the directory is
// already on the search path the call returns immediately without touching
// the filesystem. Decryption failure is fatal and propagates to the caller.
func (gateway *Gateway) EnsureSecrets(executionContext context.Context) error {
	if gateway.secretsAvailable() {
		gateway.logger.Debug(secretsAlreadyAvailableLogConstant, zap.String(secretsDirectoryLogFieldConstant, gateway.secretsDirectory))
		return nil
	}

	if directoryError := os.MkdirAll(gateway.secretsDirectory, secretsDirectoryPermissionConstant); directoryError != nil {
		return fmt.Errorf(directoryCreateFailureTemplateConstant, gateway.secretsDirectory, directoryError)
	}

	copiedBundlePath, copyError := gateway.copyBundle()
	if copyError != nil {
		return copyError
	}

	plaintextContent, decryptError := gateway.decryptBundle(copiedBundlePath)
	if decryptError != nil {
		return decryptError
	}

	plaintextPath := gateway.plaintextPath(copiedBundlePath)
	if writeError := os.WriteFile(plaintextPath, plaintextContent, secretFilePermissionConstant); writeError != nil {
		return fmt.Errorf(plaintextWriteFailureTemplateConstant, plaintextPath, writeError)
	}
	if permissionError := os.Chmod(plaintextPath, secretFilePermissionConstant); permissionError != nil {
		return fmt.Errorf(plaintextWriteFailureTemplateConstant, plaintextPath, permissionError)
	}

	if searchPathError := gateway.prependToSearchPath(); searchPathError != nil {
		return searchPathError
	}

	gateway.logger.Info(secretsMaterializedLogConstant, zap.String(secretsDirectoryLogFieldConstant, gateway.secretsDirectory))
	return nil
}

// Alert ensures secrets are available and then dispatches the message to the
// configured webhook and the process log at the mapped level. Delivery
// failures are logged and never affect the caller's control flow; only a
// secrets failure propagates.
func (gateway *Gateway) Alert(executionContext context.Context, severity Severity, message string) error {
	if secretsError := gateway.EnsureSecrets(executionContext); secretsError != nil {
		return secretsError
	}

	htmlDetected := containsHTML(message)
	gateway.mirrorToLog(severity, message, htmlDetected)

	if len(gateway.webhookURL) == 0 {
		gateway.logger.Debug(alertDeliverySkippedLogConstant)
		return nil
	}

	payloadBytes, marshalError := json.Marshal(alertPayload{
		Channel:  gateway.channel,
		Sender:   gateway.sender,
		Severity: string(severity),
		HTML:     htmlDetected,
		Message:  message,
	})
	if marshalError != nil {
		gateway.logger.Warn(alertDeliveryFailedLogConstant, zap.Error(marshalError))
		return nil
	}

	details := execshell.CommandDetails{
		Arguments: []string{
			curlSilentFlagConstant,
			curlMethodFlagConstant, curlPostMethodConstant,
			curlHeaderFlagConstant, contentTypeHeaderConstant,
			curlDataFlagConstant, curlStandardInputNameConstant,
			gateway.webhookURL,
		},
		StandardInput: payloadBytes,
	}
	if _, deliveryError := gateway.executor.ExecuteCurl(executionContext, details); deliveryError != nil {
		gateway.logger.Warn(alertDeliveryFailedLogConstant, zap.Error(deliveryError))
	}
	return nil
}

type alertPayload struct {
	Channel  string `json:"channel,omitempty"`
	Sender   string `json:"sender,omitempty"`
	Severity string `json:"severity"`
	HTML     bool   `json:"html"`
	Message  string `json:"message"`
}

func (gateway *Gateway) secretsAvailable() bool {
	searchPath := gateway.environment.Get(gateway.searchPathVariable)
	for _, searchPathEntry := range strings.Split(searchPath, searchPathSeparatorConstant) {
		if searchPathEntry == gateway.secretsDirectory {
			return true
		}
	}
	return false
}

func (gateway *Gateway) copyBundle() (string, error) {
	copiedBundlePath := filepath.Join(gateway.secretsDirectory, filepath.Base(gateway.bundlePath))
	bundleContent, readError := os.ReadFile(gateway.bundlePath)
	if readError != nil {
		return "", fmt.Errorf(bundleCopyFailureTemplateConstant, copiedBundlePath, readError)
	}
	if writeError := os.WriteFile(copiedBundlePath, bundleContent, secretFilePermissionConstant); writeError != nil {
		return "", fmt.Errorf(bundleCopyFailureTemplateConstant, copiedBundlePath, writeError)
	}
	return copiedBundlePath, nil
}

func (gateway *Gateway) decryptBundle(encryptedBundlePath string) ([]byte, error) {
	passwordContent, passwordError := os.ReadFile(gateway.passwordFilePath)
	if passwordError != nil {
		return nil, fmt.Errorf(passwordReadFailureTemplateConstant, gateway.passwordFilePath, passwordError)
	}
	passphrase := strings.TrimSpace(string(passwordContent))

	identity, identityError := age.NewScryptIdentity(passphrase)
	if identityError != nil {
		return nil, fmt.Errorf(bundleDecryptFailureTemplateConstant, encryptedBundlePath, identityError)
	}

	encryptedContent, readError := os.ReadFile(encryptedBundlePath)
	if readError != nil {
		return nil, fmt.Errorf(bundleDecryptFailureTemplateConstant, encryptedBundlePath, readError)
	}
	plaintextReader, decryptError := age.Decrypt(bytes.NewReader(encryptedContent), identity)
	if decryptError != nil {
		return nil, fmt.Errorf(bundleDecryptFailureTemplateConstant, encryptedBundlePath, decryptError)
	}
	plaintextContent, drainError := io.ReadAll(plaintextReader)
	if drainError != nil {
		return nil, fmt.Errorf(bundleDecryptFailureTemplateConstant, encryptedBundlePath, drainError)
	}
	return plaintextContent, nil
}

func (gateway *Gateway) plaintextPath(encryptedBundlePath string) string {
	if strings.HasSuffix(encryptedBundlePath, encryptedBundleSuffixConstant) {
		return strings.TrimSuffix(encryptedBundlePath, encryptedBundleSuffixConstant)
	}
	return encryptedBundlePath + plaintextFallbackSuffixConstant
}

func (gateway *Gateway) prependToSearchPath() error {
	updatedSearchPath := gateway.secretsDirectory
	if existingSearchPath := gateway.environment.Get(gateway.searchPathVariable); len(existingSearchPath) > 0 {
		updatedSearchPath = gateway.secretsDirectory + searchPathSeparatorConstant + existingSearchPath
	}
	if setError := gateway.environment.Set(gateway.searchPathVariable, updatedSearchPath); setError != nil {
		return fmt.Errorf(searchPathUpdateFailureTemplateConstant, gateway.searchPathVariable, setError)
	}
	return nil
}

func (gateway *Gateway) mirrorToLog(severity Severity, message string, htmlDetected bool) {
	logFields := []zap.Field{
		zap.String(severityLogFieldConstant, string(severity)),
		zap.Bool(htmlLogFieldConstant, htmlDetected),
	}
	switch severity {
	case SeverityError:
		gateway.logger.Error(message, logFields...)
	case SeverityWarning:
		gateway.logger.Warn(message, logFields...)
	default:
		gateway.logger.Info(message, logFields...)
	}
}

// containsHTML reports whether the message holds a '<' immediately followed
// by a non-space byte.
func containsHTML(message string) bool {
	for byteIndex := 0; byteIndex+1 < len(message); byteIndex++ {
		if message[byteIndex] == '<' && message[byteIndex+1] != ' ' {
			return true
		}
	}
	return false
}
