package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/syssam/stackgen/config"
	"github.com/syssam/stackgen/identity"
)

func (a *app) authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the identity bridge",
		Long: `Auth operates the identity bridge configured under "bridge" in the
project config: the principal store and the trusted token issuers.`,
	}
	cmd.AddCommand(a.authMigrateCmd(), a.authIssueCmd(), a.authVerifyCmd())
	return cmd
}

func (a *app) authMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the principal table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			if cfg.Bridge.Store.Driver == "" {
				return errors.New("bridge.store.driver is not configured")
			}
			_, closeFn, err := cfg.Bridge.OpenStore(cmd.Context(), a.logger, nil)
			if err != nil {
				return err
			}
			if err := closeFn(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "principal store ready (%s)\n", cfg.Bridge.Store.Driver)
			return nil
		},
	}
}

func (a *app) authIssueCmd() *cobra.Command {
	var (
		issuer string
		claims identity.Claims
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a session token of a local issuer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			ic, err := localIssuer(cfg, issuer)
			if err != nil {
				return err
			}
			p, err := ic.LocalProvider()
			if err != nil {
				return err
			}
			now := time.Now()
			claims.IssuedAt = now
			claims.ExpiresAt = now.Add(ttl)
			token, err := p.Issue(claims)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&issuer, "issuer", "", "Local issuer name (default: the only local issuer)")
	cmd.Flags().StringVar(&claims.Subject, "subject", "", "Token subject")
	cmd.Flags().StringVar(&claims.Email, "email", "", "Email claim")
	cmd.Flags().StringVar(&claims.Name, "name", "", "Name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

// localIssuer returns the local issuer named name, or the only one when
// name is empty.
func localIssuer(cfg *config.Config, name string) (config.IssuerConfig, error) {
	var found []config.IssuerConfig
	for _, ic := range cfg.Bridge.Issuers {
		if ic.Kind == config.KindLocal && (name == "" || ic.Name == name) {
			found = append(found, ic)
		}
	}
	switch {
	case len(found) == 1:
		return found[0], nil
	case len(found) == 0 && name != "":
		return config.IssuerConfig{}, fmt.Errorf("no local issuer %q", name)
	case len(found) == 0:
		return config.IssuerConfig{}, errors.New("no local issuer configured")
	default:
		return config.IssuerConfig{}, errors.New("several local issuers configured, use --issuer")
	}
}

func (a *app) authVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [token]",
		Short: "Authenticate a token against the configured issuers",
		Long: `Verify runs a token through the identity bridge and prints the
authentication trail. The token is read from standard input when omitted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			token, err := readToken(cmd, args)
			if err != nil {
				return err
			}
			bridge, closeFn, err := cfg.Bridge.OpenBridge(cmd.Context(), a.logger, nil)
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			res := bridge.AuthenticateToken(cmd.Context(), token)
			out := cmd.OutOrStdout()
			trail := make([]string, len(res.Trail))
			for i, s := range res.Trail {
				trail[i] = s.String()
			}
			fmt.Fprintf(out, "trail: %s\n", strings.Join(trail, " -> "))
			if !res.OK() {
				return fmt.Errorf("token rejected: %s", res.Reason)
			}
			fmt.Fprintf(out, "principal: %s\n", res.Principal.ID)
			fmt.Fprintf(out, "issuer: %s (provider %s)\n", res.Claims.Issuer, res.Claims.Provider)
			fmt.Fprintf(out, "subject: %s\n", res.Claims.Subject)
			fmt.Fprintf(out, "expires: %s\n", res.Claims.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}

func readToken(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return strings.TrimSpace(args[0]), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	token := strings.TrimSpace(line)
	if token == "" {
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return "", errors.New("empty token")
	}
	return token, nil
}
