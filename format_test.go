package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "0", formatCount(0))
	assert.Equal(t, "980", formatCount(980))
	assert.Equal(t, "12,500", formatCount(12500))
	assert.Equal(t, "10,000,000", formatCount(10_000_000))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{1234567 * time.Nanosecond, "1ms"},
		{1520 * time.Millisecond, "1.5s"},
		{90*time.Second + 400*time.Millisecond, "1m30s"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", formatTime(time.Time{}))

	now := time.Now()
	sameYear := time.Date(now.Year(), time.March, 15, 10, 30, 0, 0, time.Local)
	assert.Equal(t, "Mar 15 10:30", formatTime(sameYear))

	diffYear := time.Date(2020, time.December, 25, 8, 0, 0, 0, time.Local)
	assert.Equal(t, "Dec 25  2020", formatTime(diffYear))
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer

	printTable(&buf, []string{"RUN", "OUTCOME"}, [][]string{
		{"a1", "completed"},
		{"b22222", "failed"},
	})

	want := "RUN     OUTCOME\n" +
		"a1      completed\n" +
		"b22222  failed\n"
	assert.Equal(t, want, buf.String())
}

func TestIsTerminal_NonFile(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))
}
