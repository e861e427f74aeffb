// risreplay decodes a capture of raw feed messages (one JSON message per
// line, as written by rislive -raw) without a live connection.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bgpkit/ris-live-go/internal/decode"
	"github.com/bgpkit/ris-live-go/internal/output"
)

func main() {
	var file string
	var format string
	var pretty bool
	flag.StringVar(&file, "file", "", "capture file to replay ('-' for stdin)")
	flag.StringVar(&format, "format", "line", "output format (line, json, jsonl, csv)")
	flag.BoolVar(&pretty, "pretty", false, "pretty-print JSON output")
	flag.Parse()
	if file == "" {
		fmt.Fprintln(os.Stderr, "missing -file")
		os.Exit(1)
	}

	var r io.Reader = os.Stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		r = f
	}

	w, err := output.NewStdoutWriter(format, pretty)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var messages, elements, failed int
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		messages++
		elems, err := decode.Decode(line)
		if err != nil {
			if !errors.Is(err, decode.ErrEndOfRIB) && !errors.Is(err, decode.ErrUnsupportedEnvelope) {
				failed++
			}
			continue
		}
		elements += len(elems)
		if err := w.WriteElements(elems); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "replayed %d messages, %d elements, %d failed\n", messages, elements, failed)
}
