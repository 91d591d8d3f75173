package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/casefill/internal/caramel"
	"github.com/tonimelisma/casefill/internal/config"
	"github.com/tonimelisma/casefill/internal/credfile"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save Caramel credentials for later commands",
		Long: `Write host, port, user name and password to the credentials file
(key:value lines, owner-only permissions). Values already in the file are
kept unless overridden. Without --password the password is read from stdin.

With --verify-case the credentials are checked against that case first and
nothing is written if the check fails.

Examples:
  casefill login --host caramel.local -p 8080 -u svc-fill
  echo "$PW" | casefill login --host caramel.local -u svc-fill --verify-case alpha`,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE:        runLogin,
		Args:        cobra.NoArgs,
	}

	cmd.Flags().String("file", "", "credentials file (default "+config.DefaultCredentialsPath()+")")
	cmd.Flags().String("verify-case", "", "list this case's folders to verify the credentials")

	return cmd
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	path := flagString(cmd, "file")
	if path == "" {
		path = config.DefaultCredentialsPath()
	}

	if path == "" {
		return errors.New("cannot determine credentials file location; pass --file")
	}

	existing, err := credfile.Load(path)
	if err != nil {
		return err
	}

	creds := mergeLoginCreds(existing, cc)

	if creds.Password == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")

		pw, err := readLine(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}

		creds.Password = pw
	}

	if creds.Host == "" || creds.Username == "" {
		return errors.New("--host and --user-name are required (or must already be saved)")
	}

	if verifyCase := flagString(cmd, "verify-case"); verifyCase != "" {
		if err := verifyCredentials(cmd, cc, creds, verifyCase); err != nil {
			return err
		}
	}

	if err := credfile.Save(path, creds); err != nil {
		return err
	}

	cc.Logger.Info("credentials saved", slog.String("path", path), slog.String("user", creds.Username))
	cc.Statusf("Credentials saved to %s\n", path)

	return nil
}

// mergeLoginCreds layers flags and environment over an existing file.
func mergeLoginCreds(existing *credfile.File, cc *CLIContext) *credfile.File {
	creds := &credfile.File{}
	if existing != nil {
		creds = existing
	}

	pick := func(dst *string, vals ...string) {
		for _, v := range vals {
			if v != "" {
				*dst = v
			}
		}
	}

	pick(&creds.Host, cc.Env.Host, cc.Flags.Host)
	pick(&creds.Username, cc.Env.Username, cc.Flags.Username)
	pick(&creds.Password, cc.Env.Password, cc.Flags.Password)

	if cc.Env.Port != 0 {
		creds.Port = cc.Env.Port
	}

	if cc.Flags.Port != 0 {
		creds.Port = cc.Flags.Port
	}

	return creds
}

func verifyCredentials(cmd *cobra.Command, cc *CLIContext, creds *credfile.File, caseName string) error {
	cfg := config.DefaultConfig()
	cfg.Server.Host = creds.Host
	cfg.Server.Username = creds.Username
	cfg.Server.Password = creds.Password

	if creds.Port != 0 {
		cfg.Server.Port = creds.Port
	}

	cfg.Network.MaxRetries = 0

	folders, err := newCaramelClient(cfg, cc.Logger).ListFolders(cmd.Context(), caseName)
	if err != nil {
		if errors.Is(err, caramel.ErrUnauthorized) {
			return errors.New("unauthorized: invalid login credentials, nothing saved")
		}

		return fmt.Errorf("verifying credentials against case %q: %w", caseName, err)
	}

	cc.Statusf("Verified: case '%s' has %s folders.\n", caseName, formatCount(len(folders)))

	return nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}
