package logging

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestLoggerLevels(t *testing.T) {
	color.NoColor = true

	tests := []struct {
		name    string
		logger  Logger
		wantOut string
	}{
		{"quiet", Logger{}, ""},
		{"verbose", Logger{Verbose: true}, "[info] checking a.xls\n"},
		{"debug", Logger{Debug: true}, "[info] checking a.xls\n[debug] sid 0x002f\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errOut := new(bytes.Buffer), new(bytes.Buffer)
			l := tt.logger
			l.Out, l.Err = out, errOut

			l.Infof("checking %s", "a.xls")
			l.Debugf("sid 0x%04x", 0x2f)
			l.Warnf("skipping %d files", 2)
			l.Errorf("failed")

			assert.Equal(t, tt.wantOut, out.String())
			assert.Equal(t, "[warn] skipping 2 files\n[error] failed\n", errOut.String())
		})
	}
}
