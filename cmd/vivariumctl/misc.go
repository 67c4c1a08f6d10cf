package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vivariumcore/internal/auth"
	"vivariumcore/internal/config"
	"vivariumcore/internal/export"
	"vivariumcore/pkg/domain"
)

func newStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize facilities by type and status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.facilityManager(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(m.FacilityStatistics())
		},
	}
}

func newExportCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write snapshots to blob storage",
	}

	var (
		formats []string
		reason  string
		by      string
		split   bool
	)
	run := &cobra.Command{
		Use:   "run",
		Short: "Export the current facilities and buildings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := export.Request{Reason: reason, RequestedBy: by}
			for _, name := range formats {
				f, err := export.ParseFormat(strings.TrimSpace(name))
				if err != nil {
					return err
				}
				req.Formats = append(req.Formats, f)
			}
			reqs := []export.Request{req}
			if split {
				reqs = splitByFormat(req)
			}
			exporter, err := a.exporter(cmd.Context())
			if err != nil {
				return err
			}
			records, err := runExports(cmd.Context(), exporter, reqs)
			if len(records) == 1 {
				if perr := a.print(records[0]); perr != nil {
					return perr
				}
			} else if len(records) > 1 {
				if perr := a.print(records); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	run.Flags().StringSliceVar(&formats, "format", nil, "formats to write (json, yaml, csv); default all")
	run.Flags().StringVar(&reason, "reason", "", "free-form note stored on the record")
	run.Flags().StringVar(&by, "requested-by", "", "who asked for the export")
	run.Flags().BoolVar(&split, "split", false, "write each format as its own export")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored export ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			exporter, err := a.exporter(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := exporter.List(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(ids)
		},
	}

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print the JSON snapshot of an export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.blobStore(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := export.ReadSnapshot(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			return a.print(snap)
		},
	}

	restore := &cobra.Command{
		Use:   "restore ID",
		Short: "Replace all facilities and buildings with the JSON snapshot of an export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.blobStore(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := export.ReadSnapshot(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			m, err := a.facilityManager(cmd.Context())
			if err != nil {
				return err
			}
			res, err := m.Restore(cmd.Context(), snap)
			a.reportResult(res)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "restored export %s: %d facilities, %d buildings\n", args[0], len(snap.Facilities), len(snap.Buildings))
			return nil
		},
	}

	cmd.AddCommand(run, list, show, restore)
	return cmd
}

// splitByFormat turns one request into a request per format.
func splitByFormat(req export.Request) []export.Request {
	formats := req.Formats
	if len(formats) == 0 {
		formats = export.AllFormats()
	}
	out := make([]export.Request, 0, len(formats))
	for _, f := range formats {
		r := req
		r.Formats = []export.Format{f}
		out = append(out, r)
	}
	return out
}

// runExports queues every request on a background worker and waits for all of them. Records
// of finished exports are returned even when one of them failed.
func runExports(ctx context.Context, exporter *export.Exporter, reqs []export.Request) ([]export.Record, error) {
	w := export.NewWorker(exporter, len(reqs))
	w.Start()
	defer func() { _ = w.Stop(context.WithoutCancel(ctx)) }()

	ids := make([]string, 0, len(reqs))
	for _, req := range reqs {
		queued, err := w.Enqueue(ctx, req)
		if err != nil {
			return nil, err
		}
		ids = append(ids, queued.ID)
	}
	var (
		records []export.Record
		errs    []error
	)
	for _, id := range ids {
		record, err := w.Wait(ctx, id)
		if err != nil {
			if record.ID == "" {
				return records, err
			}
			errs = append(errs, err)
		}
		records = append(records, record)
	}
	return records, errors.Join(errs...)
}

func (a *app) exporter(ctx context.Context) (*export.Exporter, error) {
	m, err := a.facilityManager(ctx)
	if err != nil {
		return nil, err
	}
	store, err := a.blobStore(ctx)
	if err != nil {
		return nil, err
	}
	return export.New(m, store, export.WithLogger(a.log.Named("export")), export.WithAuditRecorder(auditLogger{log: a.log.Named("audit")})), nil
}

func newAuthCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Check passwords and issue or verify session tokens",
	}

	var preset string
	checkPassword := &cobra.Command{
		Use:   "check-password PASSWORD",
		Short: "Check a password against the preset's policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			policy, err := a.facilityConfiguration(preset, "")
			if err != nil {
				return err
			}
			if errs := auth.ValidatePasswordStrength(args[0], policy.MinPasswordLength); len(errs) > 0 {
				return &domain.ValidationFailedError{Entity: domain.EntityUser, Errors: errs}
			}
			fmt.Fprintln(a.stdout, "password accepted")
			return nil
		},
	}
	checkPassword.Flags().StringVar(&preset, "preset", "", "preset whose policy applies; default from configuration")

	var (
		userID     string
		email      string
		facilityID string
		ttl        time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a signed session token",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			issuer, err := a.tokenIssuer()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				policy := domain.FacilityConfigurationPreset(a.cfg.FacilityPreset())
				ttl = time.Duration(policy.SessionTimeoutMinutes) * time.Minute
			}
			token, claims, err := issuer.Issue(auth.User{ID: userID, Email: email, FacilityID: facilityID}, time.Now(), ttl)
			if err != nil {
				return err
			}
			return a.print(map[string]any{"token": token, "claims": claims})
		},
	}
	issue.Flags().StringVar(&userID, "user-id", "", "subject of the token")
	issue.Flags().StringVar(&email, "email", "", "email claim")
	issue.Flags().StringVar(&facilityID, "facility", "", "facility claim")
	issue.Flags().DurationVar(&ttl, "ttl", 0, "lifetime; default is the preset session timeout")
	_ = issue.MarkFlagRequired("user-id")

	verify := &cobra.Command{
		Use:   "verify TOKEN",
		Short: "Verify a session token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			issuer, err := a.tokenIssuer()
			if err != nil {
				return err
			}
			claims, err := issuer.Parse(args[0], time.Now())
			if err != nil {
				return err
			}
			return a.print(claims)
		},
	}

	var (
		usersFile string
		password  string
	)
	signIn := &cobra.Command{
		Use:   "sign-in EMAIL --users FILE",
		Short: "Sign in against a user manifest and print the session",
		Long: "Registers every user listed in the manifest under the preset's password policy, " +
			"then signs EMAIL in. The password is read from --password, or from stdin when omitted.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is not configured")
			}
			policy, err := a.facilityConfiguration(preset, "")
			if err != nil {
				return err
			}
			var manifest userManifest
			if err := a.readManifest(usersFile, &manifest); err != nil {
				return err
			}
			if password == "" && usersFile == "-" {
				return fmt.Errorf("--password is required when the user manifest is read from stdin")
			}
			if password == "" {
				line, err := bufio.NewReader(a.stdin).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			svc, err := auth.NewService(a.cfg.Auth.JWTSecret, a.cfg.Auth.Issuer, policy, auth.WithLogger(a.log.Named("auth").Zap()))
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			for _, u := range manifest.Users {
				if _, err := svc.SignUp(ctx, u.Email, u.Password, u.DisplayName, u.FacilityID); err != nil {
					return fmt.Errorf("registering %s: %w", u.Email, err)
				}
			}
			session, err := svc.SignIn(ctx, args[0], password)
			if err != nil {
				return err
			}
			user, err := svc.CurrentUser(ctx, session.Token)
			if err != nil {
				return err
			}
			return a.print(map[string]any{"session": session, "user": user})
		},
	}
	signIn.Flags().StringVar(&usersFile, "users", "", "YAML or JSON manifest with a users list, or - for stdin")
	signIn.Flags().StringVar(&password, "password", "", "password; read from stdin when omitted")
	signIn.Flags().StringVar(&preset, "preset", "", "preset whose policy applies; default from configuration")
	_ = signIn.MarkFlagRequired("users")

	cmd.AddCommand(checkPassword, issue, verify, signIn)
	return cmd
}

// userManifest is the document accepted by "auth sign-in --users".
type userManifest struct {
	Users []struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
		FacilityID  string `json:"facilityId"`
	} `json:"users"`
}

func (a *app) tokenIssuer() (*auth.TokenIssuer, error) {
	if a.cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is not configured")
	}
	return auth.NewTokenIssuer(a.cfg.Auth.JWTSecret, a.cfg.Auth.Issuer), nil
}

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return a.printConfig(redact(a.cfg))
		},
	}, &cobra.Command{
		Use:   "options TYPE",
		Short: "List the fields of a configuration type (facility or building)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			opts := domain.ConfigurationOptions(args[0])
			if opts == nil {
				return fmt.Errorf("unknown configuration type %q", args[0])
			}
			return a.print(opts)
		},
	})
	return cmd
}

const redacted = "***"

func redact(cfg config.Config) config.Config {
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&cfg.Auth.JWTSecret)
	mask(&cfg.Blob.S3.SecretKey)
	mask(&cfg.Metrics.Influx.Token)
	mask(&cfg.Storage.Postgres.DSN)
	return cfg
}
