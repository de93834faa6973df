package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fake credentials are built at runtime to avoid secret scanner false positives.
func fakeSeed() string     { return "SU" + strings.Repeat("A", 56) }
func fakeJWT() string      { return "eyJ" + "0eXAiOiJKV1QiLCJhbGci" + ".eyJqdGkiOiJURVNUIn0" + ".c2lnbmF0dXJl" }
func fakeBusURL() string   { return "nats://alice:" + "s3cretpass@bus.local:4222" }
func fakeTokenURL() string { return "nats://" + "TESTONLYtoken123@bus.local:4222" }

func TestContainsSensitiveData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"url with user and password", "dial " + fakeBusURL(), true},
		{"url with token", "dial " + fakeTokenURL(), true},
		{"websocket url with credentials", "wss://bob:" + "hunter22@edge:443", true},
		{"nkey seed", "seed " + fakeSeed(), true},
		{"user jwt", "jwt " + fakeJWT(), true},
		{"creds file block", "-----BEGIN " + "USER NKEY SEED-----", true},
		{"bearer token", "Authorization: Bearer " + "TESTONLYbearertoken1234", true},
		{"token assignment", "token=" + "TESTONLY123", true},
		{"password assignment", `password: "` + "testonly123" + `"`, true},
		{"plain url", "dial nats://bus.local:4222", false},
		{"status line", "Operating: deck-light,anchor", false},
		{"short token value", "token=abc", false},
		{"empty string", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, ContainsSensitiveData(tc.input))
		})
	}
}

func TestFilterSensitiveValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "url credentials redacted, host kept",
			input:    "dial " + fakeBusURL() + " failed",
			expected: "dial nats://[REDACTED]@bus.local:4222 failed",
		},
		{
			name:     "server list",
			input:    "nats://a:" + "bbbbbb@h1:4222,nats://c:" + "dddddd@h2:4222",
			expected: "nats://[REDACTED]@h1:4222,nats://[REDACTED]@h2:4222",
		},
		{
			name:     "seed redacted",
			input:    "seed " + fakeSeed() + " loaded",
			expected: "seed [REDACTED] loaded",
		},
		{
			name:     "token assignment redacted",
			input:    "connect token=" + "TESTONLY123",
			expected: "connect [REDACTED]",
		},
		{
			name:     "bearer redacted",
			input:    "Authorization: Bearer " + "TESTONLYbearertoken1234",
			expected: "Authorization: [REDACTED]",
		},
		{
			name:     "no sensitive data unchanged",
			input:    "task 'deck-light' stopped (trigger stream closed)",
			expected: "task 'deck-light' stopped (trigger stream closed)",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, FilterSensitiveValue(tc.input))
		})
	}
}

func TestIsSensitiveFieldName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		fieldName   string
		isSensitive bool
	}{
		{"token", true},
		{"TOKEN", true},
		{"bus.token", true},
		{"creds_file", true},
		{"nkey-seed", true},
		{"user_jwt", true},
		{"password", true},
		{"tokens", false},
		{"subject_prefix", false},
		{"bus.url", false},
		{"task", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(tc.fieldName, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.isSensitive, IsSensitiveFieldName(tc.fieldName))
		})
	}
}

func TestMatchesSensitivePattern(t *testing.T) {
	t.Parallel()

	assert.True(t, matchesSensitivePattern("my_token_field", "token"))
	assert.True(t, matchesSensitivePattern("bus.token", "token"))
	assert.False(t, matchesSensitivePattern("mytoken", "token"))
	assert.False(t, matchesSensitivePattern("", "token"))
	assert.False(t, matchesSensitivePattern("token", ""))
}

func TestRedactIfSensitive(t *testing.T) {
	t.Parallel()

	assert.Equal(t, RedactedValue, RedactIfSensitive("bus.token", "anything"))
	assert.Equal(t, "nats://[REDACTED]@bus.local:4222", RedactIfSensitive("bus.url", fakeBusURL()))
	assert.Equal(t, "cadence", RedactIfSensitive("bus.subject_prefix", "cadence"))
}

func TestSensitiveDataHook_Run(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Hook(NewSensitiveDataHook())

	// The hook flags the event; redaction is FilteringWriter's job.
	logger.Info().Msg("dial " + fakeBusURL())
	assert.Contains(t, buf.String(), "contains_filtered_data")

	buf.Reset()
	logger.Info().Msg("Standing by")
	assert.NotContains(t, buf.String(), "contains_filtered_data")
}

func TestFilteringWriter_WithZerolog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(NewFilteringWriter(&buf))

	logger.Error().Str("error", "dial "+fakeBusURL()+": connection refused").Msg("bus connect failed")

	output := buf.String()
	assert.NotContains(t, output, "s3cretpass")
	assert.Contains(t, output, "nats://[REDACTED]@bus.local:4222")
	assert.Contains(t, output, "bus connect failed")
}

func TestFilteringWriter_PreservesWriteLength(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	fw := NewFilteringWriter(&buf)

	input := "seed " + fakeSeed()
	n, err := fw.Write([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, len(input), n)
	assert.Equal(t, "seed [REDACTED]", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, assert.AnError }

func TestFilteringWriter_PropagatesErrors(t *testing.T) {
	t.Parallel()

	n, err := NewFilteringWriter(failingWriter{}).Write([]byte("x"))
	require.ErrorIs(t, err, assert.AnError)
	assert.Zero(t, n)
}
