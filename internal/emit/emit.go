package emit

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/bgpkit/ris-live-go/internal/decode"
	"github.com/bgpkit/ris-live-go/internal/httpclient"
)

// Batch is the unit POSTed to the ingest endpoint.
type Batch struct {
	Client   string           `json:"client"`
	Sent     time.Time        `json:"sent"`
	Elements []decode.Element `json:"elements"`
}

// Emitter accumulates decoded elements and ships them to an HTTP ingest
// endpoint in batches. Failed batches are spooled to disk and retried on
// Drain, so a flaky endpoint loses nothing.
type Emitter struct {
	ingest      string
	clientName  string
	batchMax    int
	flushEvery  time.Duration
	spoolDir    string
	client      *http.Client
	retryBudget time.Duration
	mu          sync.Mutex
	acc         []decode.Element
}

func NewEmitter(ingest, clientName string, batchMax int, flushEvery time.Duration, spoolDir, mtlsCert, mtlsKey, mtlsCA string) *Emitter {
	client := httpclient.Default()
	if mtlsCert != "" && mtlsKey != "" {
		if cert, err := tls.LoadX509KeyPair(mtlsCert, mtlsKey); err == nil {
			tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}}
			if mtlsCA != "" {
				if ca, err := os.ReadFile(mtlsCA); err == nil {
					pool := x509.NewCertPool()
					pool.AppendCertsFromPEM(ca)
					tlsCfg.RootCAs = pool
				}
			}
			client.Transport = &http.Transport{TLSClientConfig: tlsCfg}
		}
	}
	_ = os.MkdirAll(spoolDir, 0o755)
	return &Emitter{
		ingest:     ingest,
		clientName: clientName,
		batchMax:   batchMax,
		flushEvery: flushEvery,
		spoolDir:   spoolDir,
		client:     client,

		retryBudget: 30 * time.Second,
	}
}

func (e *Emitter) Run(ctx context.Context, in <-chan []decode.Element, log *zap.SugaredLogger) {
	t := time.NewTimer(e.flushEvery)
	for {
		select {
		case elems, ok := <-in:
			if !ok {
				return
			}
			e.append(elems)
			if e.size() >= e.batchMax {
				e.flush(log)
				if !t.Stop() {
					select {
					case <-t.C:
					default:
					}
				}
				t.Reset(e.flushEvery)
			}
		case <-t.C:
			e.flush(log)
			t.Reset(e.flushEvery)
		case <-ctx.Done():
			return
		}
	}
}

func (e *Emitter) append(elems []decode.Element) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.acc = append(e.acc, elems...)
}

func (e *Emitter) size() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.acc)
}

func (e *Emitter) flush(log *zap.SugaredLogger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.acc) == 0 {
		return
	}
	b := Batch{Client: e.clientName, Sent: time.Now().UTC(), Elements: e.acc}
	if err := e.post(b); err != nil {
		log.Warnw("ingest failed, spooling", "err", err, "elements", len(b.Elements))
		e.spool(b, log)
	}
	e.acc = nil
}

func (e *Emitter) post(b Batch) error {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(b); err != nil {
		return err
	}
	op := func() error {
		req, err := http.NewRequest("POST", e.ingest, bytes.NewReader(buf.Bytes()))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := e.client.Do(req)
		if err != nil {
			return err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("bad status: %d", resp.StatusCode)
		}
		return nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = e.retryBudget
	return backoff.Retry(op, bo)
}

func (e *Emitter) spool(b Batch, log *zap.SugaredLogger) {
	name := time.Now().UTC().Format("20060102T150405.000000000") + ".json"
	path := filepath.Join(e.spoolDir, name)
	f, err := os.Create(path)
	if err != nil {
		log.Errorw("spool create", "err", err)
		return
	}
	defer f.Close()
	_ = json.NewEncoder(f).Encode(b)
}

// Drain flushes the accumulator and attempts to resend spooled batches.
func (e *Emitter) Drain(log *zap.SugaredLogger) {
	e.flush(log)
	entries, _ := os.ReadDir(e.spoolDir)
	for _, ent := range entries {
		p := filepath.Join(e.spoolDir, ent.Name())
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		var b Batch
		if err := json.NewDecoder(f).Decode(&b); err == nil && e.post(b) == nil {
			_ = f.Close()
			_ = os.Remove(p)
			continue
		}
		_ = f.Close()
	}
}
