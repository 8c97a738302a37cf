package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/menu_layer/internal/validation"
)

type emailForm struct {
	Email string `json:"email" validate:"required,email"`
}

type credentials struct {
	Name     string `json:"name" validate:"omitempty,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func passwordFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "password", "p", "", "Password (default $MENU_PASSWORD)")
}

func resolvePassword(p string) string {
	if p != "" {
		return p
	}
	return os.Getenv("MENU_PASSWORD")
}

func newLoginCmd(e *env) *cobra.Command {
	var c credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as a restaurant owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Password = resolvePassword(c.Password)
			if err := validation.Struct(c); err != nil {
				return err
			}
			if !e.auth.Login(cmd.Context(), c.Email, c.Password) {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&c.Email, "email", "e", "", "Email address")
	passwordFlag(cmd, &c.Password)
	return cmd
}

func newRegisterCmd(e *env) *cobra.Command {
	var c credentials
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a restaurant owner account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Password = resolvePassword(c.Password)
			if err := validation.Struct(c); err != nil {
				return err
			}
			if !e.auth.Register(cmd.Context(), c.Name, c.Email, c.Password) {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&c.Name, "name", "n", "", "Display name")
	cmd.Flags().StringVarP(&c.Email, "email", "e", "", "Email address")
	passwordFlag(cmd, &c.Password)
	return cmd
}

func newLogoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e.auth.Logout(cmd.Context())
			return nil
		},
	}
}

func newWhoamiCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := e.requireUser()
			if err != nil {
				return err
			}
			e.out.Info(fmt.Sprintf("%s <%s> (%s)", u.DisplayName(), u.Email, u.ID))
			return nil
		},
	}
}

func newForgotPasswordCmd(e *env) *cobra.Command {
	var form emailForm
	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Email a password reset link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.Struct(form); err != nil {
				return err
			}
			if !e.auth.ForgotPassword(cmd.Context(), form.Email) {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&form.Email, "email", "e", "", "Email address")
	return cmd
}
