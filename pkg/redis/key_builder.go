package redis

import "fmt"

// Key constants for campaign records
const (
	KeyContacts   = "campaign:contacts"
	KeySettings   = "campaign:settings"
	KeyGroups     = "campaign:groups"
	KeyPhones     = "campaign:phones"
	ChannelEvents = "campaign:events"
)

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	switch environment {
	case "development", "staging":
		prefix = "staging"
	case "test":
		prefix = "test"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

func (kb *KeyBuilder) KeyContacts() string {
	return kb.BuildKey(KeyContacts)
}

func (kb *KeyBuilder) KeySettings() string {
	return kb.BuildKey(KeySettings)
}

func (kb *KeyBuilder) KeyGroups() string {
	return kb.BuildKey(KeyGroups)
}

// KeyPhones is the hash of claimed digit-normalized phone numbers
func (kb *KeyBuilder) KeyPhones() string {
	return kb.BuildKey(KeyPhones)
}

// ChannelEvents is the pub/sub channel carrying change notifications
func (kb *KeyBuilder) ChannelEvents() string {
	return kb.BuildKey(ChannelEvents)
}
