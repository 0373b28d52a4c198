// Package replay streams flow records out of an EVE log and submits them to
// a running prediction service, tallying the returned labels into the same
// summary format the batch runner prints.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/netsift/flowtriage/internal/feature"
	"github.com/netsift/flowtriage/internal/model"
	"github.com/netsift/flowtriage/internal/report"
)

const (
	// DefaultMaxConsecutiveFailures is the number of back-to-back request
	// failures tolerated before the replay aborts. A single unreachable
	// attempt is logged and skipped; total failure is surfaced to the
	// operator instead of silently tallying nothing.
	DefaultMaxConsecutiveFailures = 5

	defaultRequestTimeout = 10 * time.Second

	maxLineSize = 1024 * 1024
)

// Options configures one replay run.
type Options struct {
	LogPath   string
	ServerURL string
	Limit     int // max flow-kind records submitted; 0 = all
	// MaxConsecutiveFailures overrides the abort threshold; 0 uses the default.
	MaxConsecutiveFailures int
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

type predictRequest struct {
	Dur    float64 `json:"dur"`
	Spkts  int64   `json:"spkts"`
	Dpkts  int64   `json:"dpkts"`
	Sbytes int64   `json:"sbytes"`
	Dbytes int64   `json:"dbytes"`
	Proto  string  `json:"proto"`
	State  string  `json:"state"`
}

type predictResponse struct {
	BinaryLabel string  `json:"binary_label"`
	DosVsOther  *string `json:"dos_vs_other"`
	FinalLabel  string  `json:"final_label"`
}

// Run replays the log against the service. One request is in flight at a
// time; the service sets the pace. Per-record failures (network, HTTP
// status, extraction) are logged, tallied as skipped, and do not abort the
// replay unless the consecutive-failure threshold is exceeded. The partial
// summary is always returned.
func Run(ctx context.Context, opts Options) (*report.Summary, error) {
	f, err := os.Open(opts.LogPath)
	if err != nil {
		return nil, fmt.Errorf("opening flow log: %w", err)
	}
	defer f.Close()

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	maxFailures := opts.MaxConsecutiveFailures
	if maxFailures <= 0 {
		maxFailures = DefaultMaxConsecutiveFailures
	}
	endpoint := strings.TrimSuffix(opts.ServerURL, "/") + "/predict_one"

	summary := report.NewSummary()
	submitted := 0
	consecutiveFailures := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, maxLineSize), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if opts.Limit > 0 && submitted >= opts.Limit {
			break
		}

		fv, err := feature.FromEVELine(scanner.Bytes())
		if err != nil {
			log.Printf("replay: skipping malformed record: %v", err)
			summary.Skip()
			continue
		}
		if fv == nil {
			// Not a flow event; out of scope, not an error.
			continue
		}
		submitted++

		label, err := predictOne(ctx, client, endpoint, *fv)
		if err != nil {
			log.Printf("replay: request failed: %v", err)
			summary.Skip()
			consecutiveFailures++
			if consecutiveFailures >= maxFailures {
				return summary, fmt.Errorf("aborting after %d consecutive request failures: %w", consecutiveFailures, err)
			}
			continue
		}
		consecutiveFailures = 0
		summary.Add(label)
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("reading flow log: %w", err)
	}

	return summary, nil
}

func predictOne(ctx context.Context, client *http.Client, endpoint string, fv model.FeatureVector) (string, error) {
	body, err := json.Marshal(predictRequest{
		Dur:    fv.Dur,
		Spkts:  fv.Spkts,
		Dpkts:  fv.Dpkts,
		Sbytes: fv.Sbytes,
		Dbytes: fv.Dbytes,
		Proto:  fv.Proto,
		State:  fv.State,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if pr.FinalLabel == "" {
		return "", fmt.Errorf("response missing final_label")
	}
	return pr.FinalLabel, nil
}
