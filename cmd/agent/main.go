package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vigil-exam/vigil/internal/apiclient"
	"github.com/vigil-exam/vigil/internal/attempt"
	"github.com/vigil-exam/vigil/internal/broker"
	"github.com/vigil-exam/vigil/internal/config"
	"github.com/vigil-exam/vigil/internal/database"
	"github.com/vigil-exam/vigil/internal/identity"
	"github.com/vigil-exam/vigil/internal/localstore"
	"github.com/vigil-exam/vigil/internal/logger"
	"github.com/vigil-exam/vigil/internal/model"
)

// agent is a headless exam client: it runs one attempt session end to end,
// driven by stdin commands, and recovers interrupted attempts through the
// session's own startup path.
func main() {
	var (
		examIDStr  = flag.String("exam", "", "Exam UUID (required)")
		accessCode = flag.String("access-code", "", "Exam access code, if the exam requires one")
		token      = flag.String("token", "", "Student bearer token (mutually exclusive with guest flags)")
		name       = flag.String("name", "", "Display name (student) or guest name")
		email      = flag.String("email", "", "Guest email; providing it selects the guest identity")
	)
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	examID, err := uuid.Parse(*examIDStr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: -exam must be a valid UUID")
		flag.Usage()
		os.Exit(2)
	}

	var ident attempt.IdentityProvider
	switch {
	case *email != "":
		if *name == "" {
			fmt.Fprintln(os.Stderr, "Error: guest identity needs -name")
			os.Exit(2)
		}
		ident = identity.Guest(*name, *email)
	case *token != "":
		ident = identity.Student(*token, *name)
	default:
		fmt.Fprintln(os.Stderr, "Error: provide -token (student) or -name and -email (guest)")
		os.Exit(2)
	}

	ctx := context.Background()

	store, err := localstore.Open(cfg.AgentStateDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.AgentStateDir).Msg("Failed to open local state store")
	}
	defer store.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	api := apiclient.New(cfg.ServerBaseURL, *token, log)

	session := attempt.New(attempt.Config{
		API:      api,
		Store:    store,
		Broker:   broker.NewResumeBroker(rdb, log),
		Identity: ident,
		Log:      log,

		ExamID:     examID,
		AccessCode: *accessCode,

		ProbeInterval: cfg.ProbeInterval,
		RetryBase:     cfg.RetryBase,
		RetryCap:      cfg.RetryCap,
		RetryMax:      cfg.RetryMax,

		Hooks: sessionHooks(log),
	})

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = session.Start(startCtx)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start attempt")
	}
	// Best effort: saves and violation reports ride the WebSocket stream
	// when it is up, and per-call HTTP otherwise.
	streamCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := api.OpenStream(streamCtx, session.AttemptID()); err != nil {
		log.Debug().Err(err).Msg("Live stream unavailable, saving over HTTP")
	}
	cancel()
	defer api.CloseStream()

	log.Info().
		Str("attempt_id", session.AttemptID().String()).
		Dur("remaining", session.Remaining()).
		Msg("Attempt running")
	fmt.Println(`Commands: answer <qid> <option>, multi <qid> <opt,opt>, text <qid> <response>,
          flag <qid>, goto <page>, violation <type>, status, submit, quit`)

	// stdin commands feed the loop; closing stdin just stops the feed.
	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	// SIGINT submits, SIGTERM interrupts (seal + beacon).
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			runCommand(session, line)
		case sig := <-sigs:
			if sig == syscall.SIGTERM {
				log.Warn().Msg("Interrupting session")
				session.Interrupt()
				continue
			}
			log.Info().Msg("Submitting attempt")
			if err := session.Submit(); err != nil {
				log.Error().Err(err).Msg("Submit rejected")
			}
		case <-session.Done():
			if cause := session.Cause(); cause != nil {
				log.Warn().Err(cause).Msg("Session was ended early")
			}
			if err := session.Err(); err != nil {
				log.Error().Err(err).Str("state", string(session.State())).Msg("Session finished with error")
				os.Exit(1)
			}
			log.Info().Str("state", string(session.State())).Msg("Session finished")
			return
		}
	}
}

func runCommand(session *attempt.Session, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	var err error
	switch fields[0] {
	case "answer":
		if len(fields) < 3 {
			fmt.Println("usage: answer <qid> <option>")
			return
		}
		opt := fields[2]
		err = session.SetResponse(fields[1], model.ResponsePatch{SelectedOptionID: &opt})
	case "multi":
		if len(fields) < 3 {
			fmt.Println("usage: multi <qid> <opt,opt,...>")
			return
		}
		opts := strings.Split(fields[2], ",")
		err = session.SetResponse(fields[1], model.ResponsePatch{SelectedOptionIDs: &opts})
	case "text":
		if len(fields) < 3 {
			fmt.Println("usage: text <qid> <response...>")
			return
		}
		txt := strings.Join(fields[2:], " ")
		err = session.SetResponse(fields[1], model.ResponsePatch{TextResponse: &txt})
	case "flag":
		if len(fields) < 2 {
			fmt.Println("usage: flag <qid>")
			return
		}
		flagged := true
		err = session.SetResponse(fields[1], model.ResponsePatch{Flagged: &flagged})
	case "goto":
		if len(fields) < 2 {
			fmt.Println("usage: goto <page>")
			return
		}
		page, perr := strconv.Atoi(fields[1])
		if perr != nil {
			fmt.Println("page must be a number")
			return
		}
		err = session.Navigate(page)
	case "violation":
		if len(fields) < 2 {
			fmt.Println("usage: violation <type>")
			return
		}
		vt := model.ViolationType(fields[1])
		if !vt.Known() {
			fmt.Println("unknown violation type:", fields[1])
			return
		}
		session.RecordViolation(vt)
	case "ack":
		session.AcknowledgeWarning()
	case "status":
		fmt.Printf("state=%s remaining=%s violations=%d answered=%d\n",
			session.State(), session.Remaining().Round(time.Second),
			session.Violations(), len(session.Responses().Responses))
	case "submit":
		err = session.Submit()
	case "quit":
		session.Interrupt()
	default:
		fmt.Printf("unknown command %q\n", fields[0])
	}

	if err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

func sessionHooks(log zerolog.Logger) attempt.Hooks {
	return attempt.Hooks{
		OnState: func(st attempt.State) {
			log.Info().Str("state", string(st)).Msg("Session state")
		},
		OnLowTime: func(remaining time.Duration) {
			log.Warn().Dur("remaining", remaining).Msg("Low time")
		},
		OnWarning: func(vt model.ViolationType, remainingBefore int, grace time.Duration) {
			log.Warn().
				Str("type", string(vt)).
				Int("remaining_before_limit", remainingBefore).
				Dur("grace", grace).
				Msg("Violation warning; type 'ack' to acknowledge")
		},
		OnSealed: func(reason model.SealReason) {
			log.Warn().Str("reason", string(reason)).Msg("Session sealed")
		},
		OnResumePending: func(ticket model.ResumeTicket) {
			log.Info().
				Str("request_id", ticket.RequestID.String()).
				Time("expires_at", ticket.ExpiresAt).
				Msg("Resume request pending reviewer decision")
		},
		OnResult: func(res model.SubmitResult) {
			log.Info().
				Str("attempt_id", res.AttemptID.String()).
				Float64("score", res.Score).
				Msg("Attempt submitted")
		},
		OnFatal: func(err error) {
			log.Error().Err(err).Msg("Session ended fatally")
		},
	}
}
