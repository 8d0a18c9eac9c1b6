package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/docsdesk/docsdesk/internal/admin"
	"github.com/docsdesk/docsdesk/internal/model"
)

func newRegistrationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "registration",
		Aliases: []string{"reg"},
		Short:   "File and review registration requests",
		Long: `File registration requests and review the pending ones on a running server.
Review commands need an operator session (DOCSDESK_CLIENT_TOKEN) or an API key
(client.api_key).`,
	}

	cmd.AddCommand(newRegistrationListCmd())
	cmd.AddCommand(newRegistrationApproveCmd())
	cmd.AddCommand(newRegistrationRejectCmd())
	cmd.AddCommand(newRegistrationDeleteCmd())
	cmd.AddCommand(newRegistrationRequestCmd())
	cmd.AddCommand(newRegistrationReviewCmd())

	return cmd
}

// interruptContext returns a context cancelled on SIGINT or SIGTERM.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// ---------- registration list ----------

func newRegistrationListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List pending registration requests, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			reqs, err := newAPIClient(cfg.Client).ListRegistrationRequests(cmd.Context())
			if err != nil {
				return fmt.Errorf("list registration requests: %w", err)
			}
			if jsonOutput {
				if reqs == nil {
					reqs = []model.RegistrationRequest{}
				}
				return printJSON(os.Stdout, model.RegistrationListResponse{Requests: reqs})
			}
			printRequests(os.Stdout, reqs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func printRequests(w io.Writer, reqs []model.RegistrationRequest) {
	if len(reqs) == 0 {
		fmt.Fprintln(w, "No pending registration requests.")
		return
	}
	fmt.Fprintf(w, "%-36s %-20s %-30s %-20s\n", "ID", "USERNAME", "EMAIL", "REQUESTED")
	fmt.Fprintf(w, "%-36s %-20s %-30s %-20s\n", "--", "--------", "-----", "---------")
	for _, r := range reqs {
		fmt.Fprintf(w, "%-36s %-20s %-30s %-20s\n", r.ID, r.Username, r.Email, admin.FormatDate(r.CreateDate))
	}
}

// ---------- registration approve / reject / delete ----------

func newRegistrationApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending request and create the account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := newAPIClient(cfg.Client).ApproveRegistrationRequest(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("approve %s: %w", args[0], err)
			}
			fmt.Printf("Approved registration request %s\n", args[0])
			return nil
		},
	}
}

func newRegistrationRejectCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := newAPIClient(cfg.Client).RejectRegistrationRequest(cmd.Context(), args[0], reason); err != nil {
				return fmt.Errorf("reject %s: %w", args[0], err)
			}
			fmt.Printf("Rejected registration request %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason sent to the requester")

	return cmd
}

func newRegistrationDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a request without notifying the requester",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := newAPIClient(cfg.Client).DeleteRegistrationRequest(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete %s: %w", args[0], err)
			}
			fmt.Printf("Deleted registration request %s\n", args[0])
			return nil
		},
	}
}

// ---------- registration request ----------

func newRegistrationRequestCmd() *cobra.Command {
	var (
		username string
		email    string
		locale   string
		yes      bool
	)

	cmd := &cobra.Command{
		Use:   "request",
		Short: "File a registration request",
		Long: `Ask for an account. Missing fields are prompted for; the request is sent
once confirmed. Filing a request needs no credentials.`,
		Example: `  docsdesk registration request
  docsdesk registration request --username alice --email alice@example.com --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := interruptContext(cmd.Context())
			defer cancel()
			return runRegistrationRequest(ctx, os.Stdin, os.Stdout, username, email, locale, yes)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Requested username")
	cmd.Flags().StringVar(&email, "email", "", "Contact e-mail address")
	cmd.Flags().StringVar(&locale, "locale", "", "Message language (default: client.locale)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Send without asking for confirmation")

	return cmd
}

func runRegistrationRequest(ctx context.Context, stdin io.Reader, out io.Writer, username, email, locale string, yes bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	catalog, err := newCatalog(cfg.Client, locale)
	if err != nil {
		return err
	}

	in := bufio.NewReader(stdin)
	modal := admin.OpenRegistrationModal()
	draft := modal.Draft()
	draft.Username = username
	draft.Email = email

	title := catalog.Instant("registration.modal.title", nil)
	fmt.Fprintf(out, "%s\n%s\n", title, strings.Repeat("=", utf8.RuneCountInString(title)))

	if draft.Username == "" {
		if draft.Username, err = promptLine(in, out, catalog.Instant("registration.modal.username", nil)); err != nil {
			modal.Dismiss()
			return err
		}
	}
	if draft.Email == "" {
		if draft.Email, err = promptLine(in, out, catalog.Instant("registration.modal.email", nil)); err != nil {
			modal.Dismiss()
			return err
		}
	}

	var dialog admin.ConfirmationDialog = admin.NewPromptDialog(in, out)
	if yes {
		dialog = &admin.FixedDialog{Result: admin.ResultOK}
	}
	result, err := dialog.MessageBox(ctx, title,
		fmt.Sprintf("%s <%s>", draft.Username, draft.Email),
		[]admin.Button{
			{Result: admin.ResultCancel, Label: catalog.Instant("cancel", nil)},
			{Result: admin.ResultOK, Label: catalog.Instant("ok", nil)},
		})
	if err != nil {
		modal.Dismiss()
		return err
	}
	if result == admin.ResultOK {
		modal.Close(*draft)
	} else {
		modal.Dismiss()
	}

	submitted, err := admin.SubmitRegistration(ctx, modal, newAPIClient(cfg.Client))
	if err != nil {
		return fmt.Errorf("submit registration request: %w", err)
	}
	if submitted {
		fmt.Fprintln(out, catalog.Instant("registration.modal.submitted", nil))
	}
	return nil
}

// promptLine prints label and reads one trimmed line from in.
func promptLine(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprintf(out, "%s: ", label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

// ---------- registration review ----------

// Review choices offered for each pending request.
const (
	choiceApprove = "approve"
	choiceReject  = "reject"
	choiceSkip    = "skip"
)

func newRegistrationReviewCmd() *cobra.Command {
	var (
		action string
		reason string
		locale string
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Walk through the pending requests and decide each one",
		Long: `Load the pending registration requests and, for each one, approve, reject or
skip it. Every decision is confirmed before it is sent unless --yes is given.`,
		Example: `  docsdesk registration review
  docsdesk registration review --action reject --reason "closed beta" --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch action {
			case "", choiceApprove, choiceReject:
			default:
				return fmt.Errorf("unknown --action %q (approve or reject)", action)
			}
			if yes && action == "" {
				return fmt.Errorf("--yes needs --action approve or reject")
			}
			ctx, cancel := interruptContext(cmd.Context())
			defer cancel()
			return runRegistrationReview(ctx, os.Stdin, os.Stdout, action, reason, locale, yes)
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "Apply this decision to every request: approve or reject")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason sent with rejections")
	cmd.Flags().StringVar(&locale, "locale", "", "Message language (default: client.locale)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

func runRegistrationReview(ctx context.Context, stdin io.Reader, out io.Writer, action, reason, locale string, yes bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	catalog, err := newCatalog(cfg.Client, locale)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging)

	prompt := admin.NewPromptDialog(stdin, out)
	var confirm admin.ConfirmationDialog = prompt
	if yes {
		confirm = &admin.FixedDialog{Result: admin.ResultOK}
	}
	nav := &admin.URLNavigator{BaseURL: cfg.Client.BaseURL, Out: out}
	panel := admin.NewUserAdminPanel(newAPIClient(cfg.Client), confirm, catalog, nav, logger)

	if err := panel.Activate(ctx); err != nil {
		return fmt.Errorf("load administration data: %w", err)
	}

	pending := panel.RegistrationRequests()
	fmt.Fprintf(out, "%s: %d\n", catalog.Instant("settings.user.registration_request.title", nil), len(pending))
	if len(pending) == 0 {
		fmt.Fprintln(out, catalog.Instant("settings.user.registration_request.none", nil))
		return nil
	}

	var (
		approved, rejected int
		stale              bool
	)
	for _, req := range pending {
		// Another operator may have resolved it since the list was loaded.
		if !stillPending(panel, req.ID) {
			continue
		}

		choice := action
		if choice == "" {
			choice, err = prompt.MessageBox(ctx, req.Username,
				fmt.Sprintf("%s\n%s", req.Email, admin.FormatDate(req.CreateDate)),
				[]admin.Button{
					{Result: choiceApprove, Label: "Approve"},
					{Result: choiceReject, Label: "Reject"},
					{Result: choiceSkip, Label: "Skip"},
				})
			if err != nil {
				return err
			}
			if choice == "" {
				break // input closed
			}
		}

		var done bool
		switch choice {
		case choiceApprove:
			done, err = panel.ApproveRequest(ctx, req)
		case choiceReject:
			done, err = panel.RejectRequestWithReason(ctx, req, reason)
		default:
			continue
		}
		if !done {
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				fmt.Fprintf(out, "%s: %v\n", req.Username, err)
			}
			continue
		}
		if choice == choiceApprove {
			approved++
			fmt.Fprintln(out, catalog.Instant("settings.user.registration_request.approved", map[string]string{"username": req.Username}))
		} else {
			rejected++
			fmt.Fprintln(out, catalog.Instant("settings.user.registration_request.rejected", map[string]string{"username": req.Username}))
		}
		// The decision is committed; only the list refresh failed.
		if err != nil {
			stale = true
			fmt.Fprintf(out, "%s: %v\n", req.Username, err)
		}
	}

	if stale {
		if err := panel.LoadRegistrationRequests(ctx); err != nil {
			logger.Warn("refresh registration requests", "error", err)
		}
	}
	fmt.Fprintf(out, "\n%d approved, %d rejected, %d still pending\n",
		approved, rejected, len(panel.RegistrationRequests()))
	return nil
}

func stillPending(panel *admin.UserAdminPanel, id string) bool {
	for _, r := range panel.RegistrationRequests() {
		if r.ID == id {
			return true
		}
	}
	return false
}
