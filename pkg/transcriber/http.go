package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Client talks to the remote transcription service. Audio is submitted as
// raw s16le PCM; the transcript is collected through a long-poll wait call.
type Client struct {
	base  string
	token string
	http  *http.Client
	log   *logrus.Entry
}

// NewClient creates a transcription client for the given base URL and token.
// The underlying http.Client deliberately has no timeout: the wait call is a
// long poll and per-request deadlines come from the caller's context.
func NewClient(base, token string) *Client {
	return &Client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{},
		log:   logrus.WithField("component", "transcriber"),
	}
}

type submitResponse struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

type waitResponse struct {
	Error         string            `json:"error"`
	Status        string            `json:"status"`
	QueuePosition *int              `json:"queue_position"`
	Result        *transcriptResult `json:"result"`
}

type transcriptResult struct {
	Segments []Segment `json:"segments"`
}

// Segment is one timed slice of the transcript.
type Segment struct {
	Start float64 `json:"start"`
	Text  string  `json:"text"`
}

// Transcribe submits the PCM payload and long-polls for the result.
func (c *Client) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	requestID, err := c.submit(ctx, pcm)
	if err != nil {
		return "", err
	}
	return c.wait(ctx, requestID)
}

// Close implements Transcriber.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) submit(ctx context.Context, pcm []byte) (string, error) {
	url := c.base + "/transcribe/raw?format=s16le&sample_rate=48000&channels=2"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(pcm))
	if err != nil {
		return "", fmt.Errorf("building transcribe request: %w", err)
	}
	req.Header.Set("x-token", c.token)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submitting audio: %w", err)
	}
	defer closeBody(resp.Body)

	var parsed submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding transcribe response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("transcription service: %s", parsed.Error)
	}
	if parsed.RequestID == "" {
		return "", fmt.Errorf("transcription service returned no request id")
	}

	c.log.WithFields(logrus.Fields{
		"request_id":  parsed.RequestID,
		"audio_bytes": len(pcm),
	}).Debug("Audio submitted for transcription")
	return parsed.RequestID, nil
}

// wait long-polls the result endpoint until the transcript is ready. The
// service holds each request open while the job is pending, so the loop only
// spins when the service keeps reporting queue progress.
func (c *Client) wait(ctx context.Context, requestID string) (string, error) {
	url := fmt.Sprintf("%s/result/%s/wait", c.base, requestID)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", fmt.Errorf("building wait request: %w", err)
		}
		req.Header.Set("x-token", c.token)

		resp, err := c.http.Do(req)
		if err != nil {
			return "", fmt.Errorf("waiting for transcript: %w", err)
		}

		var parsed waitResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		closeBody(resp.Body)
		if err != nil {
			return "", fmt.Errorf("decoding wait response: %w", err)
		}

		switch {
		case parsed.Error != "":
			return "", fmt.Errorf("transcription service: %s", parsed.Error)
		case parsed.Result != nil:
			return joinSegments(parsed.Result.Segments), nil
		default:
			// Still pending; log progress and poll again.
			fields := logrus.Fields{"request_id": requestID, "status": parsed.Status}
			if parsed.QueuePosition != nil {
				fields["queue_position"] = *parsed.QueuePosition
			}
			c.log.WithFields(fields).Debug("Transcript not ready yet")
		}
	}
}

// joinSegments reassembles the transcript in ascending start order.
func joinSegments(segments []Segment) string {
	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var b strings.Builder
	for _, seg := range sorted {
		b.WriteString(seg.Text)
	}
	return strings.TrimSpace(b.String())
}

func closeBody(body io.ReadCloser) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		logrus.WithError(err).Debug("Draining response body failed")
	}
	if err := body.Close(); err != nil {
		logrus.WithError(err).Debug("Closing response body failed")
	}
}
