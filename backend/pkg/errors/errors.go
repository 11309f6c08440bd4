package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeDiscord represents Discord-related errors
	ErrorTypeDiscord ErrorType = "discord"
	// ErrorTypeVoice represents voice session/pipeline errors
	ErrorTypeVoice ErrorType = "voice"
	// ErrorTypeSpeech represents speech-to-text / text-to-speech errors
	ErrorTypeSpeech ErrorType = "speech"
	// ErrorTypeLLM represents language model provider errors
	ErrorTypeLLM ErrorType = "llm"
	// ErrorTypePermission represents authorization denials
	ErrorTypePermission ErrorType = "permission"
	// ErrorTypeStorage represents persistence backend errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Discord Errors

// ErrDiscordSessionUnavailable is returned when Discord session is not available
var ErrDiscordSessionUnavailable = NewBaseError(ErrorTypeDiscord, "Discord session not available", nil)

// ErrDiscordChannelNotFound is returned when a Discord channel cannot be found
type ErrDiscordChannelNotFound struct {
	*BaseError
	ChannelID string
}

func NewDiscordChannelNotFound(channelID string) *ErrDiscordChannelNotFound {
	return &ErrDiscordChannelNotFound{
		BaseError: NewBaseError(ErrorTypeDiscord, fmt.Sprintf("channel not found: %s", channelID), nil),
		ChannelID: channelID,
	}
}

// ErrDiscordMemberNotFound is returned when a fuzzy member lookup finds nobody
type ErrDiscordMemberNotFound struct {
	*BaseError
	Query string
}

func NewDiscordMemberNotFound(query string) *ErrDiscordMemberNotFound {
	return &ErrDiscordMemberNotFound{
		BaseError: NewBaseError(ErrorTypeDiscord, fmt.Sprintf("member not found: %s", query), nil),
		Query:     query,
	}
}

// ErrDiscordGuildNotFound is returned when a Discord guild cannot be found
type ErrDiscordGuildNotFound struct {
	*BaseError
	GuildID string
}

func NewDiscordGuildNotFound(guildID string) *ErrDiscordGuildNotFound {
	return &ErrDiscordGuildNotFound{
		BaseError: NewBaseError(ErrorTypeDiscord, fmt.Sprintf("guild not found: %s", guildID), nil),
		GuildID:   guildID,
	}
}

// Voice Errors

// ErrVoiceNotConnected is returned when a guild has no active voice session
type ErrVoiceNotConnected struct {
	*BaseError
	GuildID string
}

func NewVoiceNotConnected(guildID string) *ErrVoiceNotConnected {
	return &ErrVoiceNotConnected{
		BaseError: NewBaseError(ErrorTypeVoice, fmt.Sprintf("no active voice session for guild: %s", guildID), nil),
		GuildID:   guildID,
	}
}

// ErrVoiceJoinFailed is returned when joining a voice channel fails
type ErrVoiceJoinFailed struct {
	*BaseError
	GuildID   string
	ChannelID string
}

func NewVoiceJoinFailed(guildID, channelID string, err error) *ErrVoiceJoinFailed {
	return &ErrVoiceJoinFailed{
		BaseError: NewBaseError(ErrorTypeVoice, fmt.Sprintf("failed to join voice channel %s", channelID), err),
		GuildID:   guildID,
		ChannelID: channelID,
	}
}

// ErrVoicePlaybackFailed is returned when sending audio to a voice connection fails
type ErrVoicePlaybackFailed struct {
	*BaseError
	GuildID string
}

func NewVoicePlaybackFailed(guildID string, err error) *ErrVoicePlaybackFailed {
	return &ErrVoicePlaybackFailed{
		BaseError: NewBaseError(ErrorTypeVoice, "voice playback failed", err),
		GuildID:   guildID,
	}
}

// Speech Errors

// ErrTranscriptionFailed is returned when the speech-to-text provider errors.
// An unintelligible utterance is NOT an error; it is an empty transcript.
type ErrTranscriptionFailed struct {
	*BaseError
	Bytes int
}

func NewTranscriptionFailed(audioBytes int, err error) *ErrTranscriptionFailed {
	return &ErrTranscriptionFailed{
		BaseError: NewBaseError(ErrorTypeSpeech, fmt.Sprintf("transcription failed (%d bytes)", audioBytes), err),
		Bytes:     audioBytes,
	}
}

// ErrSynthesisFailed is returned when text-to-speech generation fails
type ErrSynthesisFailed struct {
	*BaseError
	Voice string
}

func NewSynthesisFailed(voice string, err error) *ErrSynthesisFailed {
	return &ErrSynthesisFailed{
		BaseError: NewBaseError(ErrorTypeSpeech, fmt.Sprintf("speech synthesis failed (voice: %s)", voice), err),
		Voice:     voice,
	}
}

// LLM Errors

// ErrLLMProviderFailed is returned when a single provider in the chain fails
type ErrLLMProviderFailed struct {
	*BaseError
	Provider  string
	Retryable bool
}

func NewLLMProviderFailed(provider string, retryable bool, err error) *ErrLLMProviderFailed {
	return &ErrLLMProviderFailed{
		BaseError: NewBaseError(ErrorTypeLLM, fmt.Sprintf("provider failed: %s", provider), err),
		Provider:  provider,
		Retryable: retryable,
	}
}

// ErrLLMAllProvidersFailed is returned when the whole fallback chain is exhausted
var ErrLLMAllProvidersFailed = NewBaseError(ErrorTypeLLM, "all providers failed", nil)

// Permission Errors

// ErrPermissionDenied is returned when the invoker lacks the needed capability
type ErrPermissionDenied struct {
	*BaseError
	UserID  string
	Command string
}

func NewPermissionDenied(userID, command string) *ErrPermissionDenied {
	return &ErrPermissionDenied{
		BaseError: NewBaseError(ErrorTypePermission, fmt.Sprintf("permission denied: %s for user %s", command, userID), nil),
		UserID:    userID,
		Command:   command,
	}
}

// Storage Errors

// ErrStorageOpenFailed is returned when a backend store cannot be opened
type ErrStorageOpenFailed struct {
	*BaseError
	Path string
}

func NewStorageOpenFailed(path string, err error) *ErrStorageOpenFailed {
	return &ErrStorageOpenFailed{
		BaseError: NewBaseError(ErrorTypeStorage, fmt.Sprintf("failed to open store: %s", path), err),
		Path:      path,
	}
}

// ErrStorageWriteFailed is returned when a queued save operation fails.
// The operation is dropped; in-memory state stays authoritative and the next
// save for the same key rewrites the full record.
type ErrStorageWriteFailed struct {
	*BaseError
	Key string
}

func NewStorageWriteFailed(key string, err error) *ErrStorageWriteFailed {
	return &ErrStorageWriteFailed{
		BaseError: NewBaseError(ErrorTypeStorage, fmt.Sprintf("failed to write record: %s", key), err),
		Key:       key,
	}
}

// ErrStorageBackupFailed is returned when a snapshot or restore pass fails
type ErrStorageBackupFailed struct {
	*BaseError
	Dir string
}

func NewStorageBackupFailed(dir string, err error) *ErrStorageBackupFailed {
	return &ErrStorageBackupFailed{
		BaseError: NewBaseError(ErrorTypeStorage, fmt.Sprintf("backup operation failed: %s", dir), err),
		Dir:       dir,
	}
}

// Context Errors

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// ErrContextTimeout is returned when context times out
type ErrContextTimeout struct {
	*BaseError
	Operation string
	Timeout   time.Duration
}

func NewContextTimeout(operation string, timeout time.Duration) *ErrContextTimeout {
	return &ErrContextTimeout{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context timeout: %s (timeout: %v)", operation, timeout), nil),
		Operation: operation,
		Timeout:   timeout,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	if baseErr, ok := err.(*BaseError); ok {
		return baseErr.Type == errType
	}
	// Check wrapped errors
	if baseErr, ok := err.(interface{ Unwrap() error }); ok {
		return IsErrorType(baseErr.Unwrap(), errType)
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	// Context errors are not retryable
	if IsErrorType(err, ErrorTypeContext) {
		return false
	}
	if llmErr, ok := err.(*ErrLLMProviderFailed); ok {
		return llmErr.Retryable
	}
	// A failed transcription or synthesis can be retried with the next utterance
	if IsErrorType(err, ErrorTypeSpeech) {
		return true
	}
	// Storage writes are rewritten in full by the next save for the same key
	if IsErrorType(err, ErrorTypeStorage) {
		return true
	}
	return false
}
