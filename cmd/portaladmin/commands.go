package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/twopelicans/portal/internal/auth"
	"github.com/twopelicans/portal/internal/model"
	"github.com/twopelicans/portal/internal/service"
)

// adminService is the part of *service.Provisioner the CLI drives.
type adminService interface {
	Provision(ctx context.Context, in service.ProvisionInput) (*service.ProvisionResult, error)
	List(ctx context.Context, filter service.ListFilter) ([]*model.Profile, error)
	Lookup(ctx context.Context, email string) (*model.Profile, error)
	Verify(ctx context.Context, email string) (*service.VerifyReport, error)
	Deprovision(ctx context.Context, id string) error
	UpdateProfile(ctx context.Context, actorID, id string, patch model.ProfilePatch) (*model.Profile, error)
	Orphans(ctx context.Context) (*service.OrphanReport, error)
}

var _ adminService = (*service.Provisioner)(nil)

// errCheckFailed marks a command that ran but found a problem.
var errCheckFailed = errors.New("check failed")

type cli struct {
	svc    adminService
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

const usage = `usage: portaladmin <command> [flags]

commands:
  create   --email --company [--password] [--welcome]
  list     [--role admin|client]
  verify   --email
  delete   --email [--yes]
  promote  --email
  orphans
`

// run executes one command and returns the process exit code.
func (c *cli) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(c.stderr, usage)
		return 1
	}

	commands := map[string]func(context.Context, []string) error{
		"create":  c.create,
		"list":    c.list,
		"verify":  c.verify,
		"delete":  c.delete,
		"promote": c.promote,
		"orphans": c.orphans,
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(c.stderr, "unknown command %q\n\n%s", args[0], usage)
		return 1
	}

	if err := cmd(ctx, args[1:]); err != nil {
		if !errors.Is(err, errCheckFailed) && !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(c.stderr, "error:", describe(err))
		}
		return 1
	}
	return 0
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func (c *cli) create(ctx context.Context, args []string) error {
	fs := c.flags("create")
	email := fs.String("email", "", "user email")
	company := fs.String("company", "", "company name")
	password := fs.String("password", "", "initial password (generated when empty)")
	welcome := fs.Bool("welcome", false, "send the welcome email")
	asJSON := fs.Bool("json", false, "print the result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	generated := false
	if *password == "" {
		p, err := auth.GeneratePassword(auth.DefaultPasswordLength)
		if err != nil {
			return err
		}
		*password = p
		generated = true
	}

	res, err := c.svc.Provision(ctx, service.ProvisionInput{
		Email:       *email,
		Company:     *company,
		Password:    *password,
		SendWelcome: *welcome,
	})
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*service.ProvisionResult
			Password string `json:"password"`
		}{res, *password})
	}

	fmt.Fprintln(c.stdout, "user created")
	fmt.Fprintf(c.stdout, "  id:        %s\n", res.IdentityID)
	fmt.Fprintf(c.stdout, "  email:     %s\n", res.Email)
	fmt.Fprintf(c.stdout, "  company:   %s\n", res.Company)
	fmt.Fprintf(c.stdout, "  role:      %s\n", res.Role)
	fmt.Fprintf(c.stdout, "  password:  %s\n", *password)
	fmt.Fprintf(c.stdout, "  login test: %s\n", passFail(res.LoginTestPassed))
	if generated {
		fmt.Fprintln(c.stdout, "the password was generated; share it over a secure channel")
	}
	return nil
}

func (c *cli) list(ctx context.Context, args []string) error {
	fs := c.flags("list")
	role := fs.String("role", "", "only list this role")
	if err := fs.Parse(args); err != nil {
		return err
	}

	profiles, err := c.svc.List(ctx, service.ListFilter{Role: *role})
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		fmt.Fprintln(c.stdout, "no users")
		return nil
	}

	byRole := map[model.Role][]*model.Profile{}
	for _, p := range profiles {
		byRole[p.Role] = append(byRole[p.Role], p)
	}
	roles := make([]string, 0, len(byRole))
	for r := range byRole {
		roles = append(roles, string(r))
	}
	sort.Strings(roles)

	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	for _, r := range roles {
		group := byRole[model.Role(r)]
		fmt.Fprintf(tw, "%s (%d)\n", strings.ToUpper(r), len(group))
		for _, p := range group {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", p.Email, p.Company, activeLabel(p.IsActive), lastLogin(p.LastLogin))
		}
	}
	fmt.Fprintf(tw, "total: %d\n", len(profiles))
	return tw.Flush()
}

func (c *cli) verify(ctx context.Context, args []string) error {
	fs := c.flags("verify")
	email := fs.String("email", "", "user email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}

	report, err := c.svc.Verify(ctx, *email)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "verifying %s\n", report.Email)
	fmt.Fprintf(c.stdout, "  identity:   %s\n", found(report.Identity != nil))
	fmt.Fprintf(c.stdout, "  profile:    %s\n", found(report.Profile != nil))
	fmt.Fprintf(c.stdout, "  ids match:  %s\n", passFail(report.IDsMatch))
	if report.Profile != nil {
		fmt.Fprintf(c.stdout, "  role:       %s\n", report.Profile.Role)
		fmt.Fprintf(c.stdout, "  active:     %t\n", report.Profile.IsActive)
	}
	fmt.Fprintln(c.stdout, "  login test: skipped (password not stored)")

	if !report.OK() {
		fmt.Fprintln(c.stdout, "result: INCONSISTENT")
		return errCheckFailed
	}
	fmt.Fprintln(c.stdout, "result: OK")
	return nil
}

func (c *cli) delete(ctx context.Context, args []string) error {
	fs := c.flags("delete")
	email := fs.String("email", "", "user email")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}

	profile, err := c.svc.Lookup(ctx, *email)
	if err != nil {
		return err
	}

	if !*yes {
		fmt.Fprintf(c.stdout, "delete %s (%s, %s)? [y/N] ", profile.Email, profile.Company, profile.Role)
		answer, _ := bufio.NewReader(c.stdin).ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(c.stdout, "aborted")
			return errCheckFailed
		}
	}

	if err := c.svc.Deprovision(ctx, profile.ID); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "deleted %s\n", profile.Email)
	return nil
}

func (c *cli) promote(ctx context.Context, args []string) error {
	fs := c.flags("promote")
	email := fs.String("email", "", "user email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}

	profile, err := c.svc.Lookup(ctx, *email)
	if err != nil {
		return err
	}
	if profile.Role == model.RoleAdmin {
		fmt.Fprintf(c.stdout, "%s is already an admin\n", profile.Email)
		return nil
	}

	admin := model.RoleAdmin
	if _, err := c.svc.UpdateProfile(ctx, "", profile.ID, model.ProfilePatch{Role: &admin}); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "promoted %s to admin\n", profile.Email)
	return nil
}

func (c *cli) orphans(ctx context.Context, args []string) error {
	fs := c.flags("orphans")
	if err := fs.Parse(args); err != nil {
		return err
	}

	report, err := c.svc.Orphans(ctx)
	if err != nil {
		return err
	}
	if report.Empty() {
		fmt.Fprintln(c.stdout, "no orphaned profiles or identities")
		return nil
	}

	if n := len(report.Profiles); n > 0 {
		fmt.Fprintf(c.stdout, "%d profile(s) without an identity; the ON DELETE CASCADE migration is missing:\n", n)
		for _, p := range report.Profiles {
			fmt.Fprintf(c.stdout, "  %s\t%s\n", p.ID, p.Email)
		}
	}
	if n := len(report.Identities); n > 0 {
		fmt.Fprintf(c.stdout, "%d identity(ies) without a profile; a provisioning rollback failed and the login must be removed from the identity store:\n", n)
		for _, identity := range report.Identities {
			fmt.Fprintf(c.stdout, "  %s\t%s\n", identity.ID, identity.Email)
		}
	}
	return errCheckFailed
}

// describe renders service errors for an operator.
func describe(err error) string {
	switch {
	case errors.Is(err, service.ErrAlreadyExists):
		return "a user with this email already exists"
	case errors.Is(err, service.ErrNotFound):
		return "user not found"
	}
	return err.Error()
}

func passFail(ok bool) string {
	if ok {
		return "passed"
	}
	return "failed"
}

func found(ok bool) string {
	if ok {
		return "found"
	}
	return "MISSING"
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

func lastLogin(t *time.Time) string {
	if t == nil {
		return "never logged in"
	}
	return "last login " + t.Format(time.RFC3339)
}
