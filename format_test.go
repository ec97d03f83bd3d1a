package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"zero", 0, "0 B"},
		{"bytes", 512, "512 B"},
		{"kilobytes", 1500, "1.5 kB"},
		{"megabytes", 5000000, "5.0 MB"},
		{"gigabytes", 2500000000, "2.5 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatSize(tt.bytes))
		})
	}
}

func TestFormatWhen(t *testing.T) {
	t.Run("empty is never", func(t *testing.T) {
		assert.Equal(t, "never", formatWhen(""))
	})

	t.Run("unparsable passes through", func(t *testing.T) {
		assert.Equal(t, "around lunchtime", formatWhen("around lunchtime"))
	})

	t.Run("relative rendering", func(t *testing.T) {
		threeDaysAgo := time.Now().Add(-72 * time.Hour).Format(time.RFC3339)
		assert.Contains(t, formatWhen(threeDaysAgo), "days ago")
	})
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer

	headers := []string{"NAME", "SIZE", "PATH"}
	rows := [][]string{
		{"a.txt", "1.5 kB", "/My Drive/a.txt"},
		{"backup.tar", "2.5 GB", "/My Drive/Backups/backup.tar"},
	}

	printTable(&buf, headers, rows)
	output := buf.String()

	assert.Contains(t, output, "NAME")
	assert.Contains(t, output, "a.txt")
	assert.Contains(t, output, "backup.tar")

	// Columns align: every NAME cell pads to the widest entry.
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	assert.Len(t, lines, 3)

	sizeCol := bytes.Index(lines[0], []byte("SIZE"))
	assert.Equal(t, sizeCol, bytes.Index(lines[1], []byte("1.5 kB")))
	assert.Equal(t, sizeCol, bytes.Index(lines[2], []byte("2.5 GB")))
}
