package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/opd-frontdesk/internal/report"
)

func TestWriteReport(t *testing.T) {
	rep := &report.Summary{TotalPatients: 12, AppointmentsToday: 3}

	t.Run("csv stats", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeReport(&buf, rep, reportFlags{format: "csv", view: "stats"}))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		assert.Equal(t, "Metric,Key,Value", lines[0])
		assert.Contains(t, lines, "Total Patients,,12")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeReport(&buf, rep, reportFlags{format: "json", view: "stats"}))
		var got report.Summary
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, *rep, got)
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeReport(&buf, rep, reportFlags{format: "table", view: "stats"}))
		assert.Contains(t, buf.String(), "Appointments Today")
	})

	t.Run("unknown format", func(t *testing.T) {
		err := writeReport(&bytes.Buffer{}, rep, reportFlags{format: "xml", view: "stats"})
		assert.ErrorContains(t, err, "unknown format")
	})

	t.Run("unknown view", func(t *testing.T) {
		err := writeReport(&bytes.Buffer{}, rep, reportFlags{format: "csv", view: "wide"})
		assert.ErrorContains(t, err, "unknown view")
	})
}
