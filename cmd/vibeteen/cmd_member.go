package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vibeteen/vibe-teen/internal/client"
	"github.com/vibeteen/vibe-teen/internal/identity"
	"github.com/vibeteen/vibe-teen/internal/service"
)

var (
	signupInput service.SignupInput
	loginEmail  string
	loginPIN    string
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create your member profile",
	RunE:  runSignup,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with your e-mail (and PIN, if you set one)",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored profile",
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in member",
	RunE:  runWhoami,
}

func addMemberCommands(root *cobra.Command) {
	signupCmd.Flags().StringVar(&signupInput.FirstName, "first", "", "first name (shown on your cards)")
	signupCmd.Flags().StringVar(&signupInput.LastName, "last", "", "last name")
	signupCmd.Flags().StringVar(&signupInput.Email, "email", "", "e-mail")
	signupCmd.Flags().StringVar(&signupInput.AvatarColor, "color", "", "avatar colour, e.g. #0084FF")
	signupCmd.Flags().StringVar(&signupInput.PIN, "pin", "", "optional 4-8 digit PIN")
	signupCmd.MarkFlagRequired("first")
	signupCmd.MarkFlagRequired("email")

	loginCmd.Flags().StringVar(&loginEmail, "email", "", "e-mail")
	loginCmd.Flags().StringVar(&loginPIN, "pin", "", "PIN, if you set one")
	loginCmd.MarkFlagRequired("email")

	root.AddCommand(signupCmd, loginCmd, logoutCmd, whoamiCmd)
}

func identityProvider() (*identity.Provider, error) {
	path := identityPath
	if path == "" {
		var err error
		if path, err = identity.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return identity.NewProvider(identity.NewFileKV(path)), nil
}

// currentProfile returns the stored profile, or nil when signed out.
func currentProfile(ids *identity.Provider) (*identity.Profile, error) {
	prof, err := ids.Current()
	if errors.Is(err, identity.ErrNotSignedIn) {
		return nil, nil
	}
	return prof, err
}

// newClient picks the server from --server, then the profile, then the
// default, and authenticates with the profile's token when it belongs to
// that server.
func newClient(prof *identity.Profile) (*client.Client, error) {
	server := serverURL
	if server == "" && prof != nil {
		server = prof.Server
	}
	var opts []client.Option
	if prof != nil && prof.Token != "" && (serverURL == "" || serverURL == prof.Server) {
		opts = append(opts, client.WithToken(prof.Token))
	}
	return client.New(server, opts...)
}

func requireProfile(ids *identity.Provider) (*identity.Profile, error) {
	prof, err := currentProfile(ids)
	if err != nil {
		return nil, err
	}
	if prof == nil {
		return nil, errors.New("not signed in: run `vibeteen signup` or `vibeteen login` first")
	}
	return prof, nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	ids, err := identityProvider()
	if err != nil {
		return err
	}
	c, err := newClient(nil)
	if err != nil {
		return err
	}

	res, err := c.Signup(cmd.Context(), signupInput)
	if err != nil {
		return fmt.Errorf("signup: %w", err)
	}
	if err := ids.Save(identity.FromMember(res.Member, res.Token, c.Server())); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Bem-vindo(a), %s!\n", res.Member.DisplayName())
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	ids, err := identityProvider()
	if err != nil {
		return err
	}
	c, err := newClient(nil)
	if err != nil {
		return err
	}

	res, err := c.Login(cmd.Context(), loginEmail, loginPIN)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := ids.Save(identity.FromMember(res.Member, res.Token, c.Server())); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Olá de novo, %s!\n", res.Member.DisplayName())
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	ids, err := identityProvider()
	if err != nil {
		return err
	}
	if err := ids.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "signed out")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	ids, err := identityProvider()
	if err != nil {
		return err
	}
	prof, err := requireProfile(ids)
	if err != nil {
		return err
	}

	// Refresh from the server so status and role changes made by an admin
	// show up. An unreachable server still prints the stored profile.
	if c, err := newClient(prof); err == nil {
		if m, err := c.Me(cmd.Context()); err == nil {
			prof = identity.FromMember(m, prof.Token, prof.Server)
			_ = ids.Save(prof)
		} else if client.IsUnauthorized(err) {
			return errors.New("session expired: run `vibeteen login` again")
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s %s <%s>\n", prof.Initials(), prof.FirstName, prof.LastName, prof.Email)
	fmt.Fprintf(out, "status: %s  role: %s\n", prof.Status, prof.Role)
	fmt.Fprintf(out, "server: %s\n", prof.Server)
	return nil
}
