package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/bgpkit/ris-live-go/internal/decode"
)

// Format represents the output format
type Format string

const (
	// FormatLine is the default pipe-separated one-line-per-element text.
	FormatLine  Format = "line"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
)

// ParseFormat parses a format string
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "line", "text", "":
		return FormatLine, nil
	case "json":
		return FormatJSON, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown format: %s", s)
	}
}

// Writer renders routing elements in the configured format. Safe for use
// from multiple goroutines.
type Writer struct {
	format    Format
	pretty    bool
	w         io.Writer
	csvWriter *csv.Writer
	mu        sync.Mutex
	hasHeader bool
}

// NewWriter creates a new output writer
func NewWriter(format string, pretty bool, w io.Writer) (*Writer, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	writer := &Writer{format: f, pretty: pretty, w: w}
	if f == FormatCSV {
		writer.csvWriter = csv.NewWriter(w)
	}
	return writer, nil
}

// NewStdoutWriter creates a writer for stdout
func NewStdoutWriter(format string, pretty bool) (*Writer, error) {
	return NewWriter(format, pretty, os.Stdout)
}

// WriteElements writes all elements of one decoded message
func (w *Writer) WriteElements(elems []decode.Element) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, e := range elems {
		if err := w.writeOne(e); err != nil {
			return err
		}
	}
	if w.csvWriter != nil {
		w.csvWriter.Flush()
		return w.csvWriter.Error()
	}
	return nil
}

func (w *Writer) writeOne(e decode.Element) error {
	switch w.format {
	case FormatLine:
		_, err := fmt.Fprintln(w.w, e.String())
		return err

	case FormatJSON:
		enc := json.NewEncoder(w.w)
		if w.pretty {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(e)

	case FormatJSONL:
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := w.w.Write(data); err != nil {
			return err
		}
		_, err = w.w.Write([]byte("\n"))
		return err

	case FormatCSV:
		return w.writeCSV(e)

	default:
		return fmt.Errorf("unsupported format: %s", w.format)
	}
}

// writeCSV writes one element as a CSV row
func (w *Writer) writeCSV(e decode.Element) error {
	if !w.hasHeader {
		w.csvWriter.Write([]string{
			"type", "timestamp", "peer", "peer_asn", "host",
			"prefix", "next_hop", "as_path", "origin", "communities",
			"med", "local_pref", "aggregator", "peer_state",
		})
		w.hasHeader = true
	}

	prefix, nextHop, aggr := "", "", ""
	if e.Prefix != nil {
		prefix = e.Prefix.String()
	}
	if e.NextHop != nil {
		nextHop = e.NextHop.String()
	}
	if e.Aggregator != nil {
		aggr = fmt.Sprintf("%d:%s", e.Aggregator.ASN, e.Aggregator.Addr)
	}
	med, localPref := "", ""
	if e.MED != nil {
		med = strconv.FormatUint(uint64(*e.MED), 10)
	}
	if e.LocalPref != nil {
		localPref = strconv.FormatUint(uint64(*e.LocalPref), 10)
	}
	comms := make([]string, len(e.Communities))
	for i, c := range e.Communities {
		comms[i] = fmt.Sprintf("%d:%d", c.ASN, c.Value)
	}

	w.csvWriter.Write([]string{
		string(e.Type),
		strconv.FormatFloat(e.Timestamp, 'f', -1, 64),
		e.Peer.String(),
		strconv.FormatUint(uint64(e.PeerASN), 10),
		e.Host,
		prefix,
		nextHop,
		e.ASPath.String(),
		string(e.Origin),
		strings.Join(comms, " "),
		med,
		localPref,
		aggr,
		e.PeerState,
	})
	return w.csvWriter.Error()
}

// WriteRaw passes one undecoded message line through
func (w *Writer) WriteRaw(raw string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintln(w.w, raw)
	return err
}

// Flush flushes any buffered data
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.csvWriter != nil {
		w.csvWriter.Flush()
		return w.csvWriter.Error()
	}
	return nil
}
