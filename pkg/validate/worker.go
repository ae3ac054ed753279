package validate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ordlab/ordpilot/pkg/observability"
	"github.com/ordlab/ordpilot/pkg/repair"
)

// Worker operations.
const (
	OpValidate   = "validate"
	OpFixSpacing = "fix_spacing"
)

// DefaultTimeout bounds one worker invocation end to end, including process
// startup. Validation of a well-formed source takes well under a second;
// anything approaching this limit is a runaway.
const DefaultTimeout = 45 * time.Second

// Request is the single-shot message a host sends to a worker process on
// stdin. The worker replies with exactly one JSON-encoded [Response] on
// stdout and exits.
type Request struct {
	Operation  string            `json:"operation"`
	Source     string            `json:"source"`
	TestParams map[string]string `json:"test_params,omitempty"`
	Changes    []repair.Change   `json:"changes,omitempty"`
	MinGap     int               `json:"min_gap,omitempty"`
}

// Response is the worker's reply envelope: either the outcome of a
// completed operation, or a classified worker failure when the request
// never reached the validation pipeline. A completed operation that found
// the source invalid is still OK at this level, the verdict lives in
// Result.
type Response struct {
	OK           bool     `json:"ok"`
	Result       *Outcome `json:"result,omitempty"`
	ErrorStage   Stage    `json:"error_stage,omitempty"`
	ErrorCode    string   `json:"error_code,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

// Client validates source by spawning an isolated worker process per
// request. The worker is this same executable re-invoked with a dedicated
// subcommand, so validating untrusted source never touches the host
// process: a crash, hang, or runaway allocation is contained and killed by
// the timeout.
//
// Every infrastructure failure (spawn error, timeout, garbled reply)
// comes back as a [StageRuntime] outcome rather than an error: callers
// treat the validator boundary as total.
type Client struct {
	// Command is the worker executable. Empty means the current executable.
	Command string
	// Args are passed to the worker, e.g. ["worker"].
	Args []string
	// Timeout bounds one invocation. Zero means DefaultTimeout.
	Timeout time.Duration
	// MinGap is the spacing requirement forwarded to the worker.
	// Zero means DefaultMinGap.
	MinGap int

	// exchange overrides process spawning in tests.
	exchange func(ctx context.Context, payload []byte) ([]byte, error)
}

// NewClient returns a client that re-invokes the current executable with
// the given subcommand arguments.
func NewClient(args ...string) *Client {
	return &Client{Args: args}
}

// Validate runs the full validation pipeline on source in a worker process.
func (c *Client) Validate(ctx context.Context, source string, testParams map[string]string) Outcome {
	return c.do(ctx, Request{
		Operation:  OpValidate,
		Source:     source,
		TestParams: testParams,
		MinGap:     c.MinGap,
	})
}

// FixSpacing applies layout changes and re-validates the patched source in
// a worker process. The returned outcome carries the patched source in
// FixedSource whether or not re-validation succeeded.
func (c *Client) FixSpacing(ctx context.Context, source string, changes []repair.Change, testParams map[string]string) Outcome {
	return c.do(ctx, Request{
		Operation:  OpFixSpacing,
		Source:     source,
		TestParams: testParams,
		Changes:    changes,
		MinGap:     c.MinGap,
	})
}

func (c *Client) do(ctx context.Context, req Request) Outcome {
	start := time.Now()
	observability.Worker().OnValidateStart(ctx, req.Operation)

	out, err := c.roundTrip(ctx, req)
	if err != nil {
		out = runtimeFailure(err)
	}

	observability.Worker().OnValidateComplete(ctx, req.Operation, string(out.Stage), time.Since(start), err)
	return out
}

func (c *Client) roundTrip(ctx context.Context, req Request) (Outcome, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("encoding worker request: %w", err)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	exchange := c.exchange
	if exchange == nil {
		exchange = c.spawn
	}
	reply, err := exchange(ctx, payload)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Outcome{}, fmt.Errorf("validation timed out after %s", timeout)
		}
		return Outcome{}, err
	}

	var resp Response
	if err := json.Unmarshal(reply, &resp); err != nil {
		return Outcome{}, fmt.Errorf("decoding worker response: %w", err)
	}
	switch {
	case resp.OK && resp.Result != nil:
		return *resp.Result, nil
	case !resp.OK && (resp.ErrorStage != "" || resp.ErrorMessage != ""):
		stage := resp.ErrorStage
		if stage == "" {
			stage = StageRuntime
		}
		out := failure(stage, resp.ErrorMessage)
		if resp.ErrorCode != "" {
			out.Code = resp.ErrorCode
		}
		return out, nil
	default:
		return Outcome{}, fmt.Errorf("worker response carries no result")
	}
}

// spawn runs one worker process, writing payload to its stdin and returning
// its stdout.
func (c *Client) spawn(ctx context.Context, payload []byte) ([]byte, error) {
	command := c.Command
	if command == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locating worker executable: %w", err)
		}
		command = exe
	}

	cmd := exec.CommandContext(ctx, command, c.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("worker process failed: %v: %s", err, msg)
		}
		return nil, fmt.Errorf("worker process failed: %w", err)
	}
	return stdout.Bytes(), nil
}

// runtimeFailure classifies an infrastructure error as a StageRuntime
// outcome.
func runtimeFailure(err error) Outcome {
	return failure(StageRuntime, err.Error())
}

// ServeWorker is the worker-process entry point: it reads one [Request]
// from r, executes it against rt, writes one [Response] to w, and returns.
// Unreadable or malformed requests are reported inside the envelope as
// classified runtime failures, never as a silent exit: the host always
// gets a reply it can parse. The returned error covers only the write
// itself.
func ServeWorker(rt Runtime, r io.Reader, w io.Writer) error {
	respond := func(resp Response) error {
		return json.NewEncoder(w).Encode(resp)
	}
	protocolFailure := func(format string, args ...any) error {
		return respond(Response{
			ErrorStage:   StageRuntime,
			ErrorCode:    CodeValidationRuntime,
			ErrorMessage: fmt.Sprintf(format, args...),
		})
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return protocolFailure("reading request: %v", err)
	}
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return protocolFailure("decoding request: %v", err)
	}

	var out Outcome
	switch req.Operation {
	case OpValidate:
		out = Full(rt, req.Source, req.TestParams, req.MinGap)
	case OpFixSpacing:
		out = FixSpacing(rt, req.Source, req.Changes, req.TestParams, req.MinGap)
	default:
		return protocolFailure("unknown operation %q", req.Operation)
	}

	return respond(Response{OK: true, Result: &out})
}
