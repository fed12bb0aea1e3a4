// Package markupcheck implements the parse command: it lists the parts of a
// print markup string and optionally validates them for a station.
package markupcheck

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/NowakAdmin/BizantiPOS/internal/escseq"
	"github.com/NowakAdmin/BizantiPOS/internal/upos"
	"github.com/NowakAdmin/BizantiPOS/internal/validate"
)

// CapsFunc loads the capabilities used by -validate.
type CapsFunc func() (validate.Matrix, error)

// ESC is hard to type in a shell.
var shellEscapes = strings.NewReplacer(`\e`, "\x1b", `\x1b`, "\x1b", `\n`, "\n")

// Run parses args, reads the markup from the remaining arguments or from
// stdin and prints one part per line. It returns the process exit code.
func Run(args []string, stdin io.Reader, stdout, stderr io.Writer, caps CapsFunc) int {
	fs := flag.NewFlagSet("parse", flag.ContinueOnError)
	fs.SetOutput(stderr)
	stationName := fs.String("station", "receipt", "Stacja: receipt, journal, slip")
	check := fs.Bool("validate", false, "Sprawdź znaczniki względem możliwości drukarki z konfiguracji")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	markup := strings.Join(fs.Args(), " ")
	if markup == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			fmt.Fprintf(stderr, "Błąd odczytu: %v\n", err)
			return 1
		}
		markup = string(data)
	}

	parts := escseq.Parse(shellEscapes.Replace(markup), escseq.Options{})
	for _, part := range parts {
		fmt.Fprintln(stdout, escseq.Describe(part))
	}
	if !*check {
		return 0
	}

	station, err := upos.ParseStation(*stationName)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	matrix, err := caps()
	if err != nil {
		fmt.Fprintf(stderr, "Błąd konfiguracji: %v\n", err)
		return 1
	}
	pipeline := validate.Pipeline{Caps: matrix}
	if err = pipeline.Validate(station, parts); err != nil {
		fmt.Fprintf(stdout, "niepoprawne: %v (kod %d)\n", err, upos.Code(err))
		return 1
	}
	fmt.Fprintln(stdout, "ok")
	return 0
}
