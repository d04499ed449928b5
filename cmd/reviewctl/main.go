package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/vigil-exam/vigil/internal/config"
	"github.com/vigil-exam/vigil/internal/model"
	"github.com/vigil-exam/vigil/internal/response"
)

// reviewctl is the reviewer's terminal for the resume queue: list pending
// requests, approve with a time grant, or decline with a reason.
func main() {
	var (
		server = flag.String("server", "", "Record server base URL (default: SERVER_BASE_URL)")
		tok    = flag.String("token", "", "Reviewer bearer token (default: VIGIL_REVIEWER_TOKEN; falls back to -email login)")
		email  = flag.String("email", "", "Reviewer email, prompts for password when no token is given")
	)
	flag.Parse()

	cfg := config.Load()
	if *server == "" {
		*server = cfg.ServerBaseURL
	}
	if *tok == "" {
		*tok = os.Getenv("VIGIL_REVIEWER_TOKEN")
	}

	cli := &client{base: *server, http: &http.Client{Timeout: 15 * time.Second}}

	if *tok == "" {
		if *email == "" {
			fmt.Fprintln(os.Stderr, "Error: provide -token or -email")
			printUsage()
			os.Exit(2)
		}
		token, err := cli.login(*email)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
			os.Exit(1)
		}
		*tok = token
	}
	cli.token = *tok

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		return
	}

	var err error
	switch args[0] {
	case "list":
		err = cli.list()
	case "approve":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: reviewctl approve <request-id> <granted-seconds> [reason]")
			os.Exit(2)
		}
		var seconds int
		if _, serr := fmt.Sscanf(args[2], "%d", &seconds); serr != nil || seconds < 0 {
			fmt.Fprintln(os.Stderr, "Error: granted-seconds must be a non-negative integer")
			os.Exit(2)
		}
		err = cli.decide(args[1], "approve", seconds, tail(args, 3))
	case "decline":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: reviewctl decline <request-id> [reason]")
			os.Exit(2)
		}
		err = cli.decide(args[1], "decline", 0, tail(args, 2))
	default:
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func tail(args []string, from int) string {
	if len(args) > from {
		return args[from]
	}
	return ""
}

func printUsage() {
	fmt.Println(`Usage: reviewctl [flags] <command>

Commands:
  list                                        Show pending resume requests
  approve <request-id> <granted-seconds> [reason]
  decline <request-id> [reason]

Flags:
  -server URL   Record server base URL
  -token JWT    Reviewer bearer token
  -email ADDR   Login with email + prompted password`)
}

// ─── HTTP plumbing ──────────────────────────────────────────────────────────

type client struct {
	base  string
	token string
	http  *http.Client
}

func (c *client) login(email string) (string, error) {
	fmt.Print("Password: ")
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	var out struct {
		Token string `json:"token"`
	}
	err = c.call(http.MethodPost, "/api/v1/auth/reviewer/login",
		model.ReviewerLoginRequest{Email: email, Password: string(pw)}, &out)
	if err != nil {
		return "", err
	}
	return out.Token, nil
}

func (c *client) list() error {
	var out struct {
		Requests []model.ResumeRequest `json:"requests"`
	}
	if err := c.call(http.MethodGet, "/api/v1/review/resume-requests", nil, &out); err != nil {
		return err
	}
	reqs := out.Requests
	if len(reqs) == 0 {
		fmt.Println("No pending resume requests.")
		return nil
	}
	for _, r := range reqs {
		fmt.Printf("%s  %-24s %-20s waiting %s, expires %s\n",
			r.ID,
			truncate(r.ExamTitle, 24),
			truncate(r.RequesterName, 20),
			time.Since(r.CreatedAt).Round(time.Second),
			r.ExpiresAt.Format(time.RFC3339),
		)
	}
	return nil
}

func (c *client) decide(requestID, action string, seconds int, reason string) error {
	var out model.ResumeRequest
	body := model.ResumeDecisionRequest{TimeRemainingSeconds: seconds, Reason: reason}
	path := fmt.Sprintf("/api/v1/review/resume-requests/%s/%s", requestID, action)
	if err := c.call(http.MethodPost, path, body, &out); err != nil {
		return err
	}
	fmt.Printf("Request %s: %s\n", out.ID, out.Status)
	return nil
}

func (c *client) call(method, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		Data  json.RawMessage     `json:"data"`
		Error *response.ErrorBody `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 300 {
		if envelope.Error != nil {
			return fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if out != nil && len(envelope.Data) > 0 {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
