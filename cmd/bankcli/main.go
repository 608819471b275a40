// Command bankcli is the terminal client of the bank: the same screens as the
// shell, one subcommand each, with the session kept under BANK_CLI_HOME.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"
	"time"

	"nobugs-bank/bankapi"
	"nobugs-bank/banking"
	"nobugs-bank/config"
	"nobugs-bank/export"
	"nobugs-bank/models"
	"nobugs-bank/session"
	"nobugs-bank/transfer"
)

const usage = `usage: bankcli <command> [flags]

commands:
  login          -u USER -p PASS
  logout
  profile        [-name NAME]
  accounts
  create-account
  deposit        -account ID -amount N
  transfer       -from ID -to NUMBER [-name NAME] -amount N -yes
  repeat-search  -q QUERY
  repeat         -tx ID -from ID [-amount N] -yes
  users
  create-user    -u USER -p PASS [-role USER|ADMIN]
  export         -format pdf|xlsx -o FILE
`

var errUsage = errors.New("usage")

type app struct {
	api      *bankapi.Client
	workflow *transfer.Workflow
	store    *session.FileStore
	out      io.Writer
}

func newApp(cfg config.Config, out io.Writer) *app {
	client := bankapi.New(cfg.BaseURL(), bankapi.WithTimeout(cfg.APITimeout))
	elevated := session.New(cfg.DirectoryUser, models.RoleAdmin, cfg.DirectoryPassword)
	return &app{
		api:      client,
		workflow: transfer.NewWorkflow(client, bankapi.NewDirectory(client, &elevated)),
		store:    session.NewFileStore(cfg.CLIHome),
		out:      out,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := newApp(config.Load(), os.Stdout)
	if err := a.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// noticeError carries the user-facing text of a failed command.
type noticeError struct {
	text string
	err  error
}

func (e *noticeError) Error() string { return e.text }
func (e *noticeError) Unwrap() error { return e.err }

func notice(action string, err error) error {
	if err == nil {
		return nil
	}
	return &noticeError{text: banking.Notice(action, err), err: err}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	switch cmd {
	case "login":
		user := fs.String("u", "", "username")
		pass := fs.String("p", "", "password")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		return a.login(ctx, *user, *pass)
	case "logout":
		if err := a.store.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Logged out.")
		return nil
	case "profile":
		name := fs.String("name", "", "new display name")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		return a.profile(ctx, *name, isSet(fs, "name"))
	case "accounts":
		return a.accounts(ctx)
	case "create-account":
		return a.createAccount(ctx)
	case "deposit":
		account := fs.String("account", "", "account id")
		amount := fs.String("amount", "", "amount")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		return a.deposit(ctx, banking.DepositForm{AccountID: *account, Amount: *amount})
	case "transfer":
		var d models.TransferDraft
		fs.StringVar(&d.SenderAccountID, "from", "", "sender account id")
		fs.StringVar(&d.RecipientAccountNumber, "to", "", "recipient account number")
		fs.StringVar(&d.RecipientName, "name", "", "recipient name")
		fs.StringVar(&d.Amount, "amount", "", "amount")
		fs.BoolVar(&d.Confirmed, "yes", false, "confirm the transfer")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		return a.transfer(ctx, d)
	case "repeat-search":
		query := fs.String("q", "", "username or name")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		return a.repeatSearch(ctx, *query)
	case "repeat":
		txID := fs.Int64("tx", 0, "transaction id")
		from := fs.String("from", "", "sender account id")
		amount := fs.String("amount", "", "amount, defaults to the original")
		yes := fs.Bool("yes", false, "confirm the transfer")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		return a.repeat(ctx, *txID, *from, *amount, *yes)
	case "users":
		return a.users(ctx)
	case "create-user":
		var u models.NewUser
		fs.StringVar(&u.Username, "u", "", "username")
		fs.StringVar(&u.Password, "p", "", "password")
		role := fs.String("role", string(models.RoleUser), "USER or ADMIN")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		u.Role = models.Role(*role)
		return a.createUser(ctx, u)
	case "export":
		format := fs.String("format", "pdf", "pdf or xlsx")
		out := fs.String("o", "", "output file")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		return a.export(ctx, *format, *out)
	}
	return errUsage
}

func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// session loads the stored credential, optionally insisting on a role.
func (a *app) session(role models.Role) (*session.Record, error) {
	rec, err := a.store.Load()
	if err != nil {
		return nil, notice("Loading session", err)
	}
	if role != "" && rec.Session.Role != role {
		return nil, &noticeError{text: fmt.Sprintf("This command needs a %s login.", role)}
	}
	return &rec, nil
}

func (a *app) login(ctx context.Context, username, password string) error {
	sess, err := banking.Login(ctx, a.api, username, password)
	if err != nil {
		return notice("Login", err)
	}
	rec := session.Record{Session: sess, CreatedAt: time.Now().UTC()}
	if sess.Role == models.RoleUser {
		if profile, err := a.api.Profile(ctx, &sess); err == nil {
			rec.User = &profile
		}
	}
	if err := a.store.Save(rec); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	fmt.Fprintf(a.out, "Logged in as %s (%s).\n", sess.Username, sess.Role)
	return nil
}

func (a *app) profile(ctx context.Context, name string, rename bool) error {
	rec, err := a.session("")
	if err != nil {
		return err
	}
	var profile models.Profile
	if rename {
		profile, err = banking.UpdateProfile(ctx, a.api, &rec.Session, name)
		if err != nil {
			return notice("Update", err)
		}
		rec.User = &profile
		if err := a.store.Save(*rec); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		fmt.Fprintln(a.out, "Name updated successfully!")
	} else {
		profile, err = a.api.Profile(ctx, &rec.Session)
		if err != nil {
			return notice("Loading profile", err)
		}
	}
	fmt.Fprintf(a.out, "%s %s\n", profile.HeaderName(), profile.Handle())
	return nil
}

func (a *app) accounts(ctx context.Context) error {
	rec, err := a.session(models.RoleUser)
	if err != nil {
		return err
	}
	summaries, err := banking.Dashboard(ctx, a.api, &rec.Session)
	if err != nil {
		return notice("Loading accounts", err)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(a.out, "No accounts yet.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, s := range summaries {
		fmt.Fprintf(tw, "%d\t%s\t$%s\n", s.ID, s.AccountNumber, s.Balance)
		if len(s.Recent) == 0 {
			fmt.Fprintln(tw, "\tNo transactions yet\t")
		}
		for _, tx := range s.Recent {
			fmt.Fprintf(tw, "\t#%d %s\t%s\t%s\n", tx.ID, tx.Type, tx.Amount.StringFixed(2), tx.Date)
		}
	}
	return tw.Flush()
}

func (a *app) createAccount(ctx context.Context) error {
	rec, err := a.session("")
	if err != nil {
		return err
	}
	accounts, err := banking.CreateAccount(ctx, a.api, &rec.Session)
	if err != nil {
		return notice("Creating account", err)
	}
	fmt.Fprintf(a.out, "New account created! You now have %d account(s).\n", len(accounts))
	return nil
}

func (a *app) deposit(ctx context.Context, form banking.DepositForm) error {
	rec, err := a.session("")
	if err != nil {
		return err
	}
	accounts, err := a.api.Accounts(ctx, &rec.Session)
	if err != nil {
		return notice("Deposit", err)
	}
	account, amount, err := banking.Deposit(ctx, a.api, &rec.Session, accounts, form)
	if err != nil {
		return notice("Deposit", err)
	}
	fmt.Fprintln(a.out, banking.DepositNotice(account, amount))
	return nil
}

func (a *app) transfer(ctx context.Context, draft models.TransferDraft) error {
	rec, err := a.session("")
	if err != nil {
		return err
	}
	if _, err := a.workflow.Submit(ctx, &rec.Session, draft); err != nil {
		return notice("Transfer", err)
	}
	fmt.Fprintln(a.out, transfer.SuccessNotice(draft.Amount, draft.RecipientAccountNumber))
	return nil
}

func (a *app) repeatSearch(ctx context.Context, query string) error {
	if _, err := a.session(""); err != nil {
		return err
	}
	repeat, err := a.workflow.LoadRepeat(ctx)
	if err != nil {
		return notice("Search", err)
	}
	results, err := repeat.Search(query)
	if err != nil {
		return notice("Search", err)
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, m := range results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", m.ID, m.MatchedName, m.Type, m.Amount.StringFixed(2), m.Date)
	}
	return tw.Flush()
}

func (a *app) repeat(ctx context.Context, txID int64, from, amount string, yes bool) error {
	rec, err := a.session("")
	if err != nil {
		return err
	}
	r, err := a.workflow.LoadRepeat(ctx)
	if err != nil {
		return notice("Transfer", err)
	}
	draft, err := r.Select(txID)
	if err != nil {
		return notice("Transfer", err)
	}
	draft.SenderAccountID = from
	draft.Confirmed = yes
	if amount != "" {
		draft.Amount = amount
	}
	sent := draft.Amount
	res, err := a.workflow.ConfirmRepeat(ctx, &rec.Session, draft)
	if err != nil {
		return notice("Transfer", err)
	}
	fmt.Fprintln(a.out, transfer.SuccessNotice(sent, strconv.FormatInt(res.ReceiverAccountID, 10)))
	return nil
}

func (a *app) users(ctx context.Context) error {
	rec, err := a.session(models.RoleAdmin)
	if err != nil {
		return err
	}
	users, err := banking.ListUsers(ctx, a.api, &rec.Session)
	if err != nil {
		return notice("Loading users", err)
	}
	printUsers(a.out, users)
	return nil
}

func (a *app) createUser(ctx context.Context, u models.NewUser) error {
	rec, err := a.session(models.RoleAdmin)
	if err != nil {
		return err
	}
	users, err := banking.CreateUser(ctx, a.api, &rec.Session, u)
	if err != nil {
		return notice("Create user", err)
	}
	fmt.Fprintln(a.out, "User created successfully!")
	printUsers(a.out, users)
	return nil
}

func printUsers(w io.Writer, users []models.User) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Name, u.Role)
	}
	_ = tw.Flush()
}

func (a *app) export(ctx context.Context, rawFormat, path string) error {
	format, err := export.ParseFormat(rawFormat)
	if err != nil || path == "" {
		return errUsage
	}
	rec, err := a.session(models.RoleUser)
	if err != nil {
		return err
	}
	accounts, err := a.api.Accounts(ctx, &rec.Session)
	if err != nil {
		return notice("Export", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := export.Write(f, format, "Statement for "+rec.Session.Username, models.Statement(accounts)); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Statement written to %s\n", path)
	return f.Close()
}
