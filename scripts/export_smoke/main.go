// Command export_smoke drives one export through the full pipeline against a
// running instance: queue a job, poll until it finishes, resolve the signed
// download URL, and fetch the payload. It exits non-zero on any failure so it
// can gate deployments.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type jobResponse struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Progress int     `json:"progress"`
	RecordID *string `json:"recordId"`
	Error    *string `json:"error"`
}

type downloadResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expiresAt"`
}

func main() {
	var (
		base     string
		ticketID string
		kind     string
		actor    string
		timeout  time.Duration
		interval time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.StringVar(&ticketID, "ticket", "", "Ticket ID to export")
	flag.StringVar(&kind, "kind", "pdf", "Export kind: pdf, word or zip")
	flag.StringVar(&actor, "actor", "export-smoke", "Actor identity header value")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Overall deadline")
	flag.DurationVar(&interval, "interval", time.Second, "Status poll interval")
	flag.Parse()

	if ticketID == "" {
		log.Fatal("missing required -ticket flag")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	base = strings.TrimRight(base, "/")

	job, err := createJob(client, base, ticketID, kind, actor)
	if err != nil {
		log.Fatalf("create job: %v", err)
	}
	fmt.Printf("queued job %s (%s)\n", job.ID, kind)

	deadline := time.Now().Add(timeout)
	for {
		if time.Now().After(deadline) {
			log.Fatalf("job %s did not finish within %s", job.ID, timeout)
		}
		time.Sleep(interval)

		job, err = getStatus(client, base, job.ID, actor)
		if err != nil {
			log.Fatalf("poll status: %v", err)
		}
		fmt.Printf("  %s %d%%\n", job.Status, job.Progress)

		switch job.Status {
		case "FINISHED":
		case "FAILED", "ABANDONED":
			msg := ""
			if job.Error != nil {
				msg = *job.Error
			}
			log.Fatalf("job %s ended %s: %s", job.ID, job.Status, msg)
		default:
			continue
		}
		break
	}

	if job.RecordID == nil {
		log.Fatalf("job %s finished without a record", job.ID)
	}

	link, err := getDownloadURL(client, base, *job.RecordID, actor)
	if err != nil {
		log.Fatalf("resolve download url: %v", err)
	}

	size, err := fetchPayload(client, base, link.URL)
	if err != nil {
		log.Fatalf("download payload: %v", err)
	}

	fmt.Printf("record %s downloaded, %d bytes, url valid until %s\n", *job.RecordID, size, link.ExpiresAt)
}

func createJob(client *http.Client, base, ticketID, kind, actor string) (*jobResponse, error) {
	payload, err := json.Marshal(map[string]interface{}{"kind": kind})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, base+"/tickets/"+ticketID+"/exports", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Id", actor)

	var job jobResponse
	if err := doJSON(client, req, http.StatusAccepted, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func getStatus(client *http.Client, base, jobID, actor string) (*jobResponse, error) {
	req, err := http.NewRequest(http.MethodGet, base+"/exports/jobs/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Actor-Id", actor)

	var job jobResponse
	if err := doJSON(client, req, http.StatusOK, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func getDownloadURL(client *http.Client, base, recordID, actor string) (*downloadResponse, error) {
	req, err := http.NewRequest(http.MethodGet, base+"/exports/records/"+recordID+"/download", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Actor-Id", actor)

	var link downloadResponse
	if err := doJSON(client, req, http.StatusOK, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

func fetchPayload(client *http.Client, base, rawURL string) (int64, error) {
	target := rawURL
	if strings.HasPrefix(target, "/") {
		// Signed URLs are issued relative to the API prefix.
		root := strings.TrimSuffix(base, "/api/v1")
		target = root + target
	}
	resp, err := client.Get(target)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.Copy(io.Discard, resp.Body)
}

func doJSON(client *http.Client, req *http.Request, wantStatus int, dest interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode response: %w (body %s)", err, truncate(body))
	}
	if resp.StatusCode != wantStatus {
		if env.Error != nil {
			return fmt.Errorf("status %d: %s %s", resp.StatusCode, env.Error.Code, env.Error.Message)
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body))
	}
	if dest != nil {
		if err := json.Unmarshal(env.Data, dest); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

func truncate(body []byte) string {
	const limit = 200
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
