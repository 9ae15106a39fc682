package main

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"messenger-service/internal/models"
	"messenger-service/internal/session"
)

var signUpCmd = &cobra.Command{
	Use:   "signup EMAIL PASSWORD",
	Short: "Create an account and sign in",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		client, err := newClient(newLogger())
		if err != nil {
			return err
		}
		var name *string
		if v, _ := cmd.Flags().GetString("name"); v != "" {
			name = &v
		}
		st, err := session.NewProvider(client).SignUp(ctx, args[0], args[1], name)
		if err != nil {
			return errors.Wrap(err, "sign up")
		}
		return finishSignIn(cmd.OutOrStdout(), st)
	},
}

var signInCmd = &cobra.Command{
	Use:   "signin EMAIL PASSWORD",
	Short: "Sign in and remember the session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		client, err := newClient(newLogger())
		if err != nil {
			return err
		}
		st, err := session.NewProvider(client).SignIn(ctx, args[0], args[1])
		if err != nil {
			return errors.Wrap(err, "sign in")
		}
		return finishSignIn(cmd.OutOrStdout(), st)
	},
}

var signOutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Forget the saved session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return saveToken("", time.Time{})
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the signed-in profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		client, err := newClient(newLogger())
		if err != nil {
			return err
		}
		provider, err := signedIn(ctx, client)
		if err != nil {
			return err
		}
		printProfile(cmd.OutOrStdout(), *provider.Current().Profile)
		return nil
	},
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change display name, avatar or status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		update, err := profileUpdateFromFlags(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()
		client, err := newClient(newLogger())
		if err != nil {
			return err
		}
		provider, err := signedIn(ctx, client)
		if err != nil {
			return err
		}
		profile, err := provider.UpdateProfile(ctx, update)
		if err != nil {
			return errors.Wrap(err, "update profile")
		}
		printProfile(cmd.OutOrStdout(), profile)
		return nil
	},
}

func init() {
	signUpCmd.Flags().String("name", "", "Display name (defaults to the email local part)")
	profileUpdateCmd.Flags().String("name", "", "New display name")
	profileUpdateCmd.Flags().String("avatar", "", "New avatar URL")
	profileUpdateCmd.Flags().String("status", "", "online, offline or away")

	profileCmd.AddCommand(profileUpdateCmd)
	rootCmd.AddCommand(signUpCmd, signInCmd, signOutCmd, profileCmd)
}

func profileUpdateFromFlags(cmd *cobra.Command) (models.ProfileUpdate, error) {
	var update models.ProfileUpdate
	if cmd.Flags().Changed("name") {
		v, _ := cmd.Flags().GetString("name")
		update.DisplayName = &v
	}
	if cmd.Flags().Changed("avatar") {
		v, _ := cmd.Flags().GetString("avatar")
		update.AvatarURL = &v
	}
	if cmd.Flags().Changed("status") {
		v, _ := cmd.Flags().GetString("status")
		status := models.ProfileStatus(v)
		if !status.Valid() {
			return update, errors.Errorf("unknown status %q", v)
		}
		update.Status = &status
	}
	if update.DisplayName == nil && update.AvatarURL == nil && update.Status == nil {
		return update, errors.New("nothing to update, pass --name, --avatar or --status")
	}
	return update, nil
}

func finishSignIn(w io.Writer, st session.State) error {
	if err := saveToken(st.Token, st.ExpiresAt); err != nil {
		return err
	}
	fmt.Fprintf(w, "signed in as %s (%s)\n", st.Profile.Name(), st.Identity.Email)
	return nil
}

func printProfile(w io.Writer, p models.Profile) {
	fmt.Fprintf(w, "%s <%s> %s\n", p.Name(), p.Email, p.Status)
	fmt.Fprintf(w, "user id: %s\n", p.UserID)
	if p.AvatarURL != nil {
		fmt.Fprintf(w, "avatar: %s\n", *p.AvatarURL)
	}
}
