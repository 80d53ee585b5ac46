package approval

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/nextlevelbuilder/ralph-gate/internal/gate"
)

// maxMessageBytes is the IPC message ceiling from spec.md §6: "messages
// are ≤ 4 KiB; longer argument summaries are truncated with an ellipsis
// marker."
const maxMessageBytes = 4096

const ellipsisMarker = "…"

// wireRequest and wireResponse are the exact JSON shapes spec.md §6
// specifies for the parent<->sub-agent pipe protocol.
type wireRequest struct {
	RequestID uint32 `json:"request_id"`
	Tool      string `json:"tool"`
	Arguments string `json:"arguments"`
	Summary   string `json:"summary"`
}

type wireResponse struct {
	RequestID uint32 `json:"request_id"`
	Decision  string `json:"decision"`
	Pattern   string `json:"pattern,omitempty"`
}

// WriteRequest serializes req as one NUL-terminated JSON object.
func WriteRequest(w io.Writer, req gate.ApprovalRequest) error {
	wr := wireRequest{RequestID: req.RequestID, Tool: req.Tool, Arguments: req.Arguments, Summary: req.Summary}
	return writeFramed(w, wr)
}

// ReadRequest blocks until one NUL-terminated JSON request arrives.
func ReadRequest(r *bufio.Reader) (gate.ApprovalRequest, error) {
	var wr wireRequest
	if err := readFramed(r, &wr); err != nil {
		return gate.ApprovalRequest{}, err
	}
	return gate.ApprovalRequest{RequestID: wr.RequestID, Tool: wr.Tool, Arguments: wr.Arguments, Summary: wr.Summary}, nil
}

// WriteResponse serializes resp as one NUL-terminated JSON object.
func WriteResponse(w io.Writer, resp gate.ApprovalResponse) error {
	wr := wireResponse{RequestID: resp.RequestID, Decision: string(resp.Decision), Pattern: resp.Pattern}
	return writeFramed(w, wr)
}

// ReadResponse blocks until one NUL-terminated JSON response arrives.
func ReadResponse(r *bufio.Reader) (gate.ApprovalResponse, error) {
	var wr wireResponse
	if err := readFramed(r, &wr); err != nil {
		return gate.ApprovalResponse{}, err
	}
	return gate.ApprovalResponse{RequestID: wr.RequestID, Decision: gate.ApprovalDecision(wr.Decision), Pattern: wr.Pattern}, nil
}

func writeFramed(w io.Writer, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("approval: marshal: %w", err)
	}
	if len(b) > maxMessageBytes-1 {
		b = truncateJSONSummary(b)
	}
	b = append(b, 0)
	_, err = w.Write(b)
	return err
}

func readFramed(r *bufio.Reader, v interface{}) error {
	line, err := r.ReadBytes(0)
	if err != nil {
		return fmt.Errorf("approval: read: %w", err)
	}
	line = line[:len(line)-1] // drop the trailing NUL
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("approval: unmarshal: %w", err)
	}
	return nil
}

// truncateJSONSummary shrinks an oversized request's summary field (the
// only field expected to vary in size) until the encoded message fits
// under the 4 KiB ceiling, appending an ellipsis marker.
func truncateJSONSummary(b []byte) []byte {
	var wr wireRequest
	if err := json.Unmarshal(b, &wr); err != nil {
		// Not a request (e.g. a response, which carries no unbounded
		// field) — cut the encoded bytes at the ceiling as a last resort.
		if len(b) > maxMessageBytes-1 {
			b = b[:maxMessageBytes-1]
		}
		return b
	}
	budget := maxMessageBytes - 1 - len(ellipsisMarker) - 64 // headroom for the rest of the JSON envelope
	for len(wr.Summary) > budget && budget > 0 {
		wr.Summary = wr.Summary[:len(wr.Summary)/2]
	}
	wr.Summary += ellipsisMarker
	out, _ := json.Marshal(wr)
	return out
}
