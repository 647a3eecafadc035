package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/prepstack/testcenter-backend/internal/apiclient"
	"github.com/prepstack/testcenter-backend/internal/attempt"
	"github.com/prepstack/testcenter-backend/internal/logger"
	"github.com/prepstack/testcenter-backend/internal/model"
)

// testcli is a terminal client for taking a test: it logs in, negotiates a
// session, and drives an attempt with simple line commands.
func main() {
	baseURL := os.Getenv("TESTCENTER_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	log := logger.Setup("warn", "console")
	client := apiclient.New(baseURL, log)
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	// ─── Login ─────────────────────────────────────────────────────────
	fmt.Print("Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)

	fmt.Print("Password: ")
	passBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		os.Exit(1)
	}

	learner, err := client.Login(ctx, email, string(passBytes))
	if err != nil {
		fmt.Printf("Login failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Welcome, %s\n\n", learner.Name)

	// ─── Pick a Test ───────────────────────────────────────────────────
	tests, err := client.ListTests(ctx)
	if err != nil {
		fmt.Printf("Failed to list tests: %v\n", err)
		os.Exit(1)
	}
	if len(tests) == 0 {
		fmt.Println("No tests available.")
		return
	}

	fmt.Println("Available tests:")
	for i, tc := range tests {
		fmt.Printf("  %d. %s (%d min, %.0f marks)\n", i+1, tc.Title, tc.DurationMinutes, tc.TotalMarks)
	}
	fmt.Print("Choose a test: ")
	choice, _ := reader.ReadString('\n')
	idx, err := strconv.Atoi(strings.TrimSpace(choice))
	if err != nil || idx < 1 || idx > len(tests) {
		fmt.Println("Invalid choice")
		os.Exit(1)
	}
	selected := tests[idx-1]

	// ─── Run the Attempt ───────────────────────────────────────────────
	store, err := attempt.NewHandleStore(handleDir())
	if err != nil {
		fmt.Printf("Failed to open session store: %v\n", err)
		os.Exit(1)
	}

	autoSubmitted := make(chan struct{})
	ctrl := attempt.NewController(client, promptDecision(reader), store, time.Now, attempt.ControllerOptions{
		OnAutoSubmit: func(result *model.AttemptResult, err error) {
			if err != nil {
				fmt.Printf("\nTime is up, but submission failed: %v\n", err)
				return
			}
			fmt.Println("\nTime is up. Your attempt was submitted automatically.")
			close(autoSubmitted)
		},
		OnSyncFailure: func(f attempt.SyncFailure) {
			fmt.Printf("\n(warning: answer for a question failed to save: %v)\n", f.Err)
		},
	}, log)

	if err := ctrl.Start(ctx, selected.ID); err != nil {
		fmt.Printf("Failed to start attempt: %v\n", err)
		os.Exit(1)
	}

	if ctrl.State() == attempt.StateCompleted {
		// Session was already expired when we attached.
		showResult(ctrl.Result())
		return
	}

	runAttempt(ctx, ctrl, reader, autoSubmitted)
}

// promptDecision asks resume-or-abandon when a previous session is live.
func promptDecision(reader *bufio.Reader) attempt.Decider {
	return func(info *model.ActiveSessionInfo) (attempt.Decision, error) {
		remaining := time.Until(*info.ExpiresAt).Round(time.Second)
		fmt.Printf("\nYou have an unfinished attempt (%s remaining).\n", remaining)
		for {
			fmt.Print("Resume it, or abandon and start over? [r/a]: ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return 0, err
			}
			switch strings.TrimSpace(strings.ToLower(line)) {
			case "r":
				return attempt.DecisionResume, nil
			case "a":
				return attempt.DecisionAbandon, nil
			}
		}
	}
}

func runAttempt(ctx context.Context, ctrl *attempt.Controller, reader *bufio.Reader, autoSubmitted <-chan struct{}) {
	nav := ctrl.Navigator()
	syncer := ctrl.Answers()
	marks := ctrl.Marks()

	fmt.Println("\nCommands: 1-9 answer, n next, p prev, g N goto, c clear, m mark, o overview, s submit, q quit")

	for {
		select {
		case <-autoSubmitted:
			showResult(ctrl.Result())
			return
		default:
		}

		printQuestion(ctrl, nav)

		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			ctrl.Exit()
			return
		}
		cmd := strings.TrimSpace(strings.ToLower(line))
		q := nav.Current()

		switch {
		case cmd == "n":
			nav.Next()
		case cmd == "p":
			nav.Previous()
		case strings.HasPrefix(cmd, "g "):
			if n, err := strconv.Atoi(strings.TrimSpace(cmd[2:])); err == nil {
				nav.GoTo(n - 1)
			}
		case cmd == "c":
			if q != nil {
				syncer.Clear(q.ID)
			}
		case cmd == "m":
			if q != nil {
				marks.Toggle(q.ID)
			}
		case cmd == "o":
			printOverview(ctrl, nav)
		case cmd == "s":
			if confirmSubmit(ctrl, reader) {
				result, err := ctrl.ConfirmManualSubmit(ctx)
				if err != nil {
					fmt.Printf("Submission failed: %v. Your answers are safe, try again.\n", err)
					continue
				}
				showResult(result)
				return
			}
		case cmd == "q":
			ctrl.Exit()
			fmt.Println("Detached. The clock keeps running; log back in to resume.")
			return
		default:
			if n, err := strconv.Atoi(cmd); err == nil && q != nil && n >= 1 && n <= len(q.Options) {
				syncer.Select(q.ID, q.Options[n-1].ID)
			}
		}
	}
}

func printQuestion(ctrl *attempt.Controller, nav *attempt.QuestionNavigator) {
	q := nav.Current()
	if q == nil {
		return
	}
	fmt.Printf("\n[%s left]  Question %d/%d (%s)\n",
		ctrl.Remaining().Round(time.Second), nav.Index()+1, nav.Len(), nav.DisplayState(q.ID))
	fmt.Println(q.Text)
	selected, _ := ctrl.Answers().Record().Get(q.ID)
	for i, opt := range q.Options {
		marker := " "
		if selected != nil && *selected == opt.ID {
			marker = "*"
		}
		fmt.Printf("  %s %d. %s\n", marker, i+1, opt.Text)
	}
}

func printOverview(ctrl *attempt.Controller, nav *attempt.QuestionNavigator) {
	fmt.Println()
	pos := nav.Index()
	for i := 0; i < nav.Len(); i++ {
		nav.GoTo(i)
		q := nav.Current()
		fmt.Printf("  %2d: %s\n", i+1, nav.DisplayState(q.ID))
	}
	nav.GoTo(pos)
}

func confirmSubmit(ctrl *attempt.Controller, reader *bufio.Reader) bool {
	summary, err := ctrl.Summary()
	if err != nil {
		fmt.Printf("Cannot build summary: %v\n", err)
		return false
	}
	fmt.Printf("\nAnswered %d, unanswered %d, marked for review %d. Elapsed %s.\n",
		summary.Answered, summary.Unanswered, summary.Marked, summary.Elapsed.Round(time.Second))
	fmt.Print("Submit now? This is final. [y/N]: ")
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(strings.ToLower(line)) == "y"
}

func showResult(result *model.AttemptResult) {
	if result == nil {
		return
	}
	presenter := attempt.NewResultPresenter()
	presenter.Open(result)
	fmt.Println()
	presenter.Render(os.Stdout)
}

func handleDir() string {
	if dir := os.Getenv("TESTCENTER_STATE_DIR"); dir != "" {
		return dir
	}
	u, err := user.Current()
	if err != nil {
		return ".testcenter"
	}
	return filepath.Join(u.HomeDir, ".testcenter")
}
