package markupcheck

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/NowakAdmin/BizantiPOS/internal/validate"
)

func fixedCaps(m validate.Matrix) CapsFunc {
	return func() (validate.Matrix, error) { return m, nil }
}

func boldReceipt(cut bool) validate.Matrix {
	return validate.Matrix{Receipt: validate.StationCaps{Present: true, Bold: true, PaperCut: cut, LineChars: 48}}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		stdin    string
		caps     CapsFunc
		wantCode int
		wantOut  []string
	}{
		{
			name:     "arguments",
			args:     []string{`\e|bCHi\e|100P`},
			wantCode: 0,
			wantOut:  []string{"bold true", `text "Hi"`, "cut 100%"},
		},
		{
			name:     "stdin",
			stdin:    "Kawa\\n",
			wantCode: 0,
			wantOut:  []string{`text "Kawa"`, "LF"},
		},
		{
			name:     "valid for station",
			args:     []string{"-validate", `\e|bCHi\e|100P`},
			caps:     fixedCaps(boldReceipt(true)),
			wantCode: 0,
			wantOut:  []string{"ok"},
		},
		{
			name:     "rejected by station caps",
			args:     []string{"-validate", `\e|bCHi\e|100P`},
			caps:     fixedCaps(boldReceipt(false)),
			wantCode: 1,
			wantOut:  []string{"niepoprawne:", "(kod 106)"},
		},
		{
			name:     "station not present",
			args:     []string{"-validate", "-station", "slip", "x"},
			caps:     fixedCaps(boldReceipt(true)),
			wantCode: 1,
			wantOut:  []string{"niepoprawne:"},
		},
		{
			name:     "config error",
			args:     []string{"-validate", "x"},
			caps:     func() (validate.Matrix, error) { return validate.Matrix{}, errors.New("brak pliku") },
			wantCode: 1,
		},
		{
			name:     "unknown station",
			args:     []string{"-validate", "-station", "drawer", "x"},
			caps:     fixedCaps(boldReceipt(true)),
			wantCode: 2,
		},
		{
			name:     "bad flag",
			args:     []string{"-verbose"},
			wantCode: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := Run(tt.args, strings.NewReader(tt.stdin), &stdout, &stderr, tt.caps)
			if code != tt.wantCode {
				t.Fatalf("code = %d, want %d (stdout %q, stderr %q)", code, tt.wantCode, stdout.String(), stderr.String())
			}
			for _, want := range tt.wantOut {
				if !strings.Contains(stdout.String(), want) {
					t.Errorf("stdout %q lacks %q", stdout.String(), want)
				}
			}
		})
	}
}
