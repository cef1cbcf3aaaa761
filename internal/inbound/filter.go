package inbound

import (
	"strings"
)

// Filter authenticates a message by sender and subject.
type Filter struct {
	senders  []string
	trigger  string
	passcode string
}

// NewFilter builds a filter. Sender entries are trimmed and lowercased and
// blanks dropped; an empty list accepts every sender. Empty trigger or
// passcode skips that check.
func NewFilter(senders []string, trigger, passcode string) *Filter {
	f := &Filter{
		trigger:  strings.ToLower(strings.TrimSpace(trigger)),
		passcode: strings.ToLower(strings.TrimSpace(passcode)),
	}
	for _, s := range senders {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			f.senders = append(f.senders, s)
		}
	}
	return f
}

// Reason explains a filter decision.
type Reason string

const (
	ReasonAccepted         Reason = "accepted"
	ReasonSenderNotAllowed Reason = "sender_not_allowed"
	ReasonMissingTrigger   Reason = "missing_trigger"
	ReasonMissingPasscode  Reason = "missing_passcode"
)

// Verdict is the outcome of Check, with the decoded headers it judged.
type Verdict struct {
	Accepted bool
	Reason   Reason
	From     string
	Subject  string
}

// Check decodes from and subject and applies the sender and subject rules.
func (f *Filter) Check(from, subject string) Verdict {
	v := Verdict{From: DecodeHeader(from), Subject: DecodeHeader(subject)}

	if !f.senderAllowed(v.From) {
		v.Reason = ReasonSenderNotAllowed
		return v
	}
	subj := strings.ToLower(v.Subject)
	if f.trigger != "" && !strings.Contains(subj, f.trigger) {
		v.Reason = ReasonMissingTrigger
		return v
	}
	if f.passcode != "" && !strings.Contains(subj, f.passcode) {
		v.Reason = ReasonMissingPasscode
		return v
	}

	v.Accepted = true
	v.Reason = ReasonAccepted
	return v
}

// Accepts reports whether the message passes both checks.
func (f *Filter) Accepts(from, subject string) bool {
	return f.Check(from, subject).Accepted
}

func (f *Filter) senderAllowed(from string) bool {
	if len(f.senders) == 0 {
		return true
	}
	from = strings.ToLower(from)
	for _, s := range f.senders {
		if strings.Contains(from, s) {
			return true
		}
	}
	return false
}
