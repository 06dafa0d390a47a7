package action

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Spec is the serialized form of an action, as written in workflow files:
//
//	action:
//	  kind: navigate
//	  url: https://example.com
//	  wait_for_selector: "#main"
type Spec struct {
	Kind        Kind   `yaml:"kind" json:"kind"`
	Session     string `yaml:"session,omitempty" json:"session,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	URL             string `yaml:"url,omitempty" json:"url,omitempty"`
	WaitForSelector string `yaml:"wait_for_selector,omitempty" json:"wait_for_selector,omitempty"`
	WaitUntil       string `yaml:"wait_until,omitempty" json:"wait_until,omitempty"`

	Selector  string        `yaml:"selector,omitempty" json:"selector,omitempty"`
	Text      string        `yaml:"text,omitempty" json:"text,omitempty"`
	MaxLength int           `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	State     string        `yaml:"state,omitempty" json:"state,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Decode builds the Action variant named by s.Kind and validates it.
func Decode(s Spec) (Action, error) {
	var a Action
	switch Kind(strings.ToLower(string(s.Kind))) {
	case KindNavigate:
		a = Navigate{URL: s.URL, WaitForSelector: s.WaitForSelector, WaitUntil: s.WaitUntil, Session: s.Session, Description: s.Description}
	case KindClick:
		a = Click{Selector: s.Selector, Session: s.Session, Description: s.Description}
	case KindType:
		a = Type{Selector: s.Selector, Text: s.Text, Session: s.Session, Description: s.Description}
	case KindExtract:
		a = Extract{Selector: s.Selector, MaxLength: s.MaxLength, Session: s.Session, Description: s.Description}
	case KindWait:
		a = Wait{Selector: s.Selector, State: s.State, Timeout: s.Timeout, Session: s.Session, Description: s.Description}
	case "":
		return nil, fmt.Errorf("%w: kind is required", ErrInvalidAction)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, s.Kind)
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Encode returns the serialized form of a.
func Encode(a Action) Spec {
	switch v := a.(type) {
	case Navigate:
		return Spec{Kind: KindNavigate, URL: v.URL, WaitForSelector: v.WaitForSelector, WaitUntil: v.WaitUntil, Session: v.Session, Description: v.Description}
	case Click:
		return Spec{Kind: KindClick, Selector: v.Selector, Session: v.Session, Description: v.Description}
	case Type:
		return Spec{Kind: KindType, Selector: v.Selector, Text: v.Text, Session: v.Session, Description: v.Description}
	case Extract:
		return Spec{Kind: KindExtract, Selector: v.Selector, MaxLength: v.MaxLength, Session: v.Session, Description: v.Description}
	case Wait:
		return Spec{Kind: KindWait, Selector: v.Selector, State: v.State, Timeout: v.Timeout, Session: v.Session, Description: v.Description}
	default:
		return Spec{}
	}
}

// Parse decodes a single YAML action document.
func Parse(data []byte) (Action, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	return Decode(s)
}
