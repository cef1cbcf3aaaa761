package inbound

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_SenderAllowList(t *testing.T) {
	t.Parallel()

	f := NewFilter([]string{" Trusted.com ", ""}, "", "")

	assert.False(t, f.Accepts("someone@random.com", "anything"))
	assert.True(t, f.Accepts("Baker <BAKER@TRUSTED.COM>", "anything"))

	v := f.Check("someone@random.com", "plan")
	assert.False(t, v.Accepted)
	assert.Equal(t, ReasonSenderNotAllowed, v.Reason)
}

func TestFilter_EmptyAllowListAcceptsAll(t *testing.T) {
	t.Parallel()

	f := NewFilter(nil, "", "")
	assert.True(t, f.Accepts("anyone@anywhere.org", ""))
	assert.True(t, f.Accepts("", ""))
}

func TestFilter_SubjectTriggerAndPasscode(t *testing.T) {
	t.Parallel()

	f := NewFilter(nil, "Bake List", "crumb42")

	tests := []struct {
		subject string
		want    Reason
	}{
		{"BAKE LIST for tuesday CRUMB42", ReasonAccepted},
		{"bake list", ReasonMissingPasscode},
		{"crumb42", ReasonMissingTrigger},
		{"", ReasonMissingTrigger},
	}
	for _, tt := range tests {
		v := f.Check("baker@village.com", tt.subject)
		assert.Equal(t, tt.want, v.Reason, tt.subject)
		assert.Equal(t, tt.want == ReasonAccepted, v.Accepted, tt.subject)
	}
}

func TestFilter_DecodesEncodedWords(t *testing.T) {
	t.Parallel()

	f := NewFilter([]string{"village.com"}, "today", "")

	v := f.Check("=?UTF-8?Q?Ren=C3=A9e?= <renee@village.com>", "=?UTF-8?B?QmFrZSBsaXN0IOKAlCB0b2RheQ==?=")
	assert.True(t, v.Accepted)
	assert.Equal(t, "Renée <renee@village.com>", v.From)
	assert.Equal(t, "Bake list — today", v.Subject)
}

func TestFilter_BothChecksMustPass(t *testing.T) {
	t.Parallel()

	f := NewFilter([]string{"village.com"}, "plan", "")
	assert.False(t, f.Accepts("x@elsewhere.com", "plan"))
	assert.False(t, f.Accepts("x@village.com", "hello"))
	assert.True(t, f.Accepts("x@village.com", "Plan"))
}
