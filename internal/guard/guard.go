// Package guard enforces limits on what clients may push into the store.
package guard

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrViolation is matched by every *Violation via errors.Is.
var ErrViolation = errors.New("policy violation")

// Policy defines the limits applied to pushed contexts.
type Policy struct {
	MaxKeyLength      int      `json:"max_key_length" yaml:"max_key_length" mapstructure:"max_key_length"`
	MaxContentBytes   int      `json:"max_content_bytes" yaml:"max_content_bytes" mapstructure:"max_content_bytes"`
	MaxTags           int      `json:"max_tags" yaml:"max_tags" mapstructure:"max_tags"`
	AllowedKeyGlobs   []string `json:"allowed_key_globs" yaml:"allowed_key_globs" mapstructure:"allowed_key_globs"`
	BlockedKeyGlobs   []string `json:"blocked_key_globs" yaml:"blocked_key_globs" mapstructure:"blocked_key_globs"`
	AllowedPriorities []string `json:"allowed_priorities" yaml:"allowed_priorities" mapstructure:"allowed_priorities"`
}

// DefaultPolicy provides safe defaults.
var DefaultPolicy = Policy{
	MaxKeyLength:      200,
	MaxContentBytes:   1 << 20,
	MaxTags:           20,
	AllowedKeyGlobs:   []string{"**"},
	AllowedPriorities: []string{"low", "medium", "high"},
}

// Violation represents a specific breach of policy.
type Violation struct {
	Rule    string
	Message string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Rule, v.Message)
}

func (v *Violation) Unwrap() error {
	return ErrViolation
}

// Guard enforces the policy.
type Guard struct {
	policy Policy
}

func New(p Policy) *Guard {
	return &Guard{policy: p}
}

// Policy returns the guard's current policy configuration.
func (g *Guard) Policy() Policy {
	return g.policy
}

// CheckKey verifies a context key: non-empty, printable, within length and
// matching the key globs. Limits of zero are not enforced.
func (g *Guard) CheckKey(key string) *Violation {
	if strings.TrimSpace(key) == "" {
		return &Violation{Rule: "key", Message: "Key cannot be empty"}
	}
	if g.policy.MaxKeyLength > 0 && len(key) > g.policy.MaxKeyLength {
		return &Violation{Rule: "max_key_length", Message: fmt.Sprintf("Key longer than %d bytes", g.policy.MaxKeyLength)}
	}
	if strings.IndexFunc(key, unicode.IsControl) >= 0 {
		return &Violation{Rule: "key", Message: "Key contains control characters"}
	}

	for _, pattern := range g.policy.BlockedKeyGlobs {
		if match, err := doublestar.Match(pattern, key); err == nil && match {
			return &Violation{Rule: "blocked_key_globs", Message: "Key not allowed: " + key}
		}
	}

	if len(g.policy.AllowedKeyGlobs) == 0 {
		return nil
	}
	for _, pattern := range g.policy.AllowedKeyGlobs {
		if match, err := doublestar.Match(pattern, key); err == nil && match {
			return nil
		}
	}
	return &Violation{Rule: "allowed_key_globs", Message: "Key not allowed: " + key}
}

// CheckContent verifies the content is present and within the size limit.
func (g *Guard) CheckContent(content string) *Violation {
	if strings.TrimSpace(content) == "" {
		return &Violation{Rule: "content", Message: "Content cannot be empty"}
	}
	if g.policy.MaxContentBytes > 0 && len(content) > g.policy.MaxContentBytes {
		return &Violation{Rule: "max_content_bytes", Message: fmt.Sprintf("Content larger than %d bytes", g.policy.MaxContentBytes)}
	}
	return nil
}

// CheckTags verifies the number of tags.
func (g *Guard) CheckTags(tags []string) *Violation {
	if g.policy.MaxTags > 0 && len(tags) > g.policy.MaxTags {
		return &Violation{Rule: "max_tags", Message: fmt.Sprintf("More than %d tags", g.policy.MaxTags)}
	}
	return nil
}

// CheckPriority verifies priority is one of the allowed levels. Empty is
// always accepted.
func (g *Guard) CheckPriority(priority string) *Violation {
	if priority == "" || len(g.policy.AllowedPriorities) == 0 {
		return nil
	}
	if !slices.Contains(g.policy.AllowedPriorities, priority) {
		return &Violation{Rule: "allowed_priorities", Message: fmt.Sprintf("Priority must be one of %s", strings.Join(g.policy.AllowedPriorities, ", "))}
	}
	return nil
}

// CheckPush runs every check and returns the first violation as an error.
func (g *Guard) CheckPush(key, content string, tags []string, priority string) error {
	if v := g.CheckKey(key); v != nil {
		return v
	}
	if v := g.CheckContent(content); v != nil {
		return v
	}
	if v := g.CheckTags(tags); v != nil {
		return v
	}
	if v := g.CheckPriority(priority); v != nil {
		return v
	}
	return nil
}
