package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/credentials"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/database"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/password"
	"github.com/TINF-IFSP-RioPreto/SD-2025-Senhas/backend/token"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/term"
)

// loginFailed is returned when credentials were checked and rejected. The
// process exits non-zero without printing an error.
type loginFailed struct{}

func (loginFailed) Error() string { return "authentication failed" }

// readPassword returns value when set; otherwise it prompts on the
// terminal without echo, or reads one line when stdin is not a terminal.
func readPassword(value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requireEmail(fs *flag.FlagSet, email string) error {
	if strings.TrimSpace(email) == "" {
		fs.Usage()
		return errors.New("-email is required")
	}
	return nil
}

func (a *app) runRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	email := fs.String("email", "", "user email")
	pw := fs.String("password", "", "password (prompted when empty)")
	secondFactor := fs.Bool("2fa", false, "enable TOTP and issue backup codes")
	qrPath := fs.String("qr", "", "write the provisioning QR code to this PNG file")
	checkPolicy := fs.Bool("policy", true, "require the password to meet the complexity policy")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireEmail(fs, *email); err != nil {
		return err
	}

	plain, err := readPassword(*pw, "Password: ")
	if err != nil {
		return err
	}
	if *checkPolicy {
		if err := password.Validate(plain, password.DefaultPolicy); err != nil {
			return err
		}
	}

	out, err := a.store.Register(context.Background(), *email, plain, *secondFactor)
	if err != nil {
		return err
	}

	if *qrPath != "" && out.Enabled() {
		if err := qrcode.WriteFile(out.ProvisioningURI, qrcode.Medium, 256, *qrPath); err != nil {
			return fmt.Errorf("write qr code: %w", err)
		}
		fmt.Fprintf(os.Stderr, "QR code written to %s\n", *qrPath)
	}

	if !out.Enabled() {
		fmt.Println("registered", credentials.NormalizeEmail(*email))
		return nil
	}
	if *qrPath == "" && term.IsTerminal(int(os.Stdout.Fd())) {
		// Small enough to scan straight from the terminal
		if qr, err := qrcode.New(out.ProvisioningURI, qrcode.Low); err == nil {
			fmt.Fprintln(os.Stderr, qr.ToSmallString(false))
		}
	}
	return printJSON(out)
}

func (a *app) runLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "user email")
	pw := fs.String("password", "", "password (prompted when empty)")
	code := fs.String("code", "", "TOTP or backup code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireEmail(fs, *email); err != nil {
		return err
	}

	plain, err := readPassword(*pw, "Password: ")
	if err != nil {
		return err
	}

	ok, err := a.engine.Login(context.Background(), *email, plain, *code)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("authentication failed")
		return loginFailed{}
	}
	fmt.Println("authenticated")
	return nil
}

func (a *app) runBackupCodes(args []string) error {
	fs := flag.NewFlagSet("backup-codes", flag.ContinueOnError)
	email := fs.String("email", "", "user email")
	pw := fs.String("password", "", "password (prompted when empty)")
	count := fs.Int("count", a.cfg.BackupCodes.Count, "number of codes to issue")
	remaining := fs.Bool("remaining", false, "only print how many unused codes are left")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireEmail(fs, *email); err != nil {
		return err
	}

	plain, err := readPassword(*pw, "Password: ")
	if err != nil {
		return err
	}
	ctx := context.Background()

	if *remaining {
		n, err := a.engine.RemainingBackupCodes(ctx, *email, plain)
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	}

	codes, err := a.engine.RegenerateBackupCodes(ctx, *email, plain, *count)
	if err != nil {
		return err
	}
	for _, c := range codes {
		fmt.Println(c)
	}
	return nil
}

func (a *app) runDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	email := fs.String("email", "", "user email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireEmail(fs, *email); err != nil {
		return err
	}

	deleted, err := a.store.Delete(context.Background(), *email)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("no user %s", *email)
	}
	fmt.Println("deleted", *email)
	return nil
}

func (a *app) runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	sub := fs.String("sub", "admin", "token subject")
	action := fs.String("action", "", "action the token is valid for, e.g. list_users or create")
	ttl := fs.Duration("ttl", a.cfg.Token.TTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *action == "" {
		fs.Usage()
		return errors.New("-action is required")
	}
	if a.cfg.Token.Secret == "" {
		return errors.New("TOKEN_SECRET is not configured")
	}

	m := token.NewManager([]byte(a.cfg.Token.Secret), a.cfg.TOTP.Issuer, nil)
	raw, err := m.Issue(*sub, *action, *ttl, map[string]string{"role": "admin"})
	if err != nil {
		return err
	}
	fmt.Println(raw)
	return nil
}

func (a *app) runResetDB(args []string) error {
	fs := flag.NewFlagSet("reset-db", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "confirm that every user, code and log entry is deleted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		return errors.New("refusing to reset without -yes")
	}
	if err := database.Reset(a.db); err != nil {
		return err
	}
	fmt.Println("database reset:", a.cfg.DatabasePath)
	return nil
}

func runGenpass(args []string) error {
	fs := flag.NewFlagSet("genpass", flag.ContinueOnError)
	length := fs.Int("length", 16, "password length")
	noUpper := fs.Bool("no-upper", false, "leave out upper-case letters")
	noLower := fs.Bool("no-lower", false, "leave out lower-case letters")
	noDigits := fs.Bool("no-digits", false, "leave out digits")
	noSymbols := fs.Bool("no-symbols", false, "leave out symbols")
	keepConfusable := fs.Bool("keep-confusable", false, "allow I, l, 1, O and 0")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pw, err := password.Generate(*length, password.Categories{
		Upper:            !*noUpper,
		Lower:            !*noLower,
		Digits:           !*noDigits,
		Symbols:          !*noSymbols,
		RemoveConfusable: !*keepConfusable,
	})
	if err != nil {
		return err
	}
	fmt.Println(pw)
	return nil
}

func runPassphrase(args []string) error {
	fs := flag.NewFlagSet("passphrase", flag.ContinueOnError)
	wordlist := fs.String("wordlist", "", "file with one word per line (required)")
	words := fs.Int("words", 4, "number of words")
	full := fs.Bool("full", false, "keep whole words instead of their first four letters")
	sep := fs.String("sep", "-", "separator between words")
	upper := fs.Bool("upper", true, "upper-case one random word")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *wordlist == "" {
		fs.Usage()
		return errors.New("-wordlist is required")
	}

	f, err := os.Open(*wordlist)
	if err != nil {
		return err
	}
	defer f.Close()
	list, err := password.LoadWordList(f)
	if err != nil {
		return err
	}

	p, err := password.Passphrase(list, password.PassphraseOptions{
		Words:     *words,
		FullWords: *full,
		Separator: *sep,
		Uppercase: *upper,
	})
	if err != nil {
		return err
	}
	fmt.Println(p)
	return nil
}

func runCheckpass(args []string) error {
	fs := flag.NewFlagSet("checkpass", flag.ContinueOnError)
	pw := fs.String("password", "", "password to check (prompted when empty)")
	minLength := fs.Int("min", password.DefaultPolicy.MinLength, "minimum length")
	if err := fs.Parse(args); err != nil {
		return err
	}

	plain, err := readPassword(*pw, "Password: ")
	if err != nil {
		return err
	}
	policy := password.DefaultPolicy
	policy.MinLength = *minLength
	if err := password.Validate(plain, policy); err != nil {
		return err
	}
	fmt.Println("password meets the policy")
	return nil
}
