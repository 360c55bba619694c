package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

func (c *Cli) registerCommand() *cobra.Command {
	var username, displayName string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRegister(cmd.Context(), username, displayName)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when empty)")
	cmd.Flags().StringVar(&displayName, "name", "", "Name shown to other readers (defaults to username)")
	return cmd
}

func (c *Cli) runRegister(ctx context.Context, username, displayName string) error {
	c.io.Println("=== Registration ===")
	c.io.Println()

	var err error
	if username == "" {
		username, err = c.io.ReadInput("Username: ")
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
	}

	interactive := c.isInteractive()
	password, err := c.getPassword("Password (min 12 chars): ")
	if err != nil {
		return err
	}
	if interactive {
		confirm, err := c.io.ReadPassword("Confirm password: ")
		if err != nil {
			return fmt.Errorf("failed to read password confirmation: %w", err)
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}
	}

	c.io.Println("Registering...")
	actor, err := c.session.Register(ctx, username, displayName, password)
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Registration successful!")
	c.io.Printf("Username: %s\n", username)
	c.io.Printf("Name:     %s\n", actor.DisplayName)
	c.io.Printf("User ID:  %s\n", actor.ID)
	return nil
}

func (c *Cli) loginCommand() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLogin(cmd.Context(), username)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when empty)")
	return cmd
}

func (c *Cli) runLogin(ctx context.Context, username string) error {
	var err error
	if username == "" {
		username, err = c.io.ReadInput("Username: ")
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
	}

	password, err := c.getPassword("Password: ")
	if err != nil {
		return err
	}

	c.io.Println("Authenticating...")
	actor, err := c.session.Login(ctx, username, password)
	if err != nil {
		return err
	}

	c.io.Println("✓ Login successful!")
	c.io.Printf("Signed in as %s (%s)\n", actor.DisplayName, username)
	c.io.Println("Your session has been saved.")
	return nil
}

func (c *Cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, ok := c.session.Current()
			if !ok {
				c.io.Println("Not logged in.")
				return nil
			}
			if err := c.session.Logout(cmd.Context()); err != nil {
				return err
			}
			c.app.Forget(cmd.Context(), actor.ID)
			c.io.Println("✓ Logged out")
			return nil
		},
	}
}

func (c *Cli) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session and the synchronization state of every collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus(cmd.Context())
		},
	}
}

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Status ===")
	c.io.Println()

	actor, loggedIn := c.session.Current()
	stores := []readiness{c.app.Eventos.Store(), c.app.Livros.Store()}
	if loggedIn {
		c.io.Println("Status: Authenticated")
		c.io.Printf("Username: %s\n", c.session.Username())
		c.io.Printf("Name:     %s\n", actor.DisplayName)
		c.io.Printf("User ID:  %s\n", actor.ID)
		stores = append(stores,
			c.app.Reviews.Store(),
			c.app.Comunidades.Store(),
			c.app.Citacoes.Store(),
			c.app.Favorites.Store(),
			c.app.Stickers.Store(),
			c.app.Progress.Store(),
		)
	} else {
		c.io.Println("Status: Not authenticated")
		c.io.Println("Run 'bookclub login' to authenticate.")
	}
	c.io.Println()

	return c.withApp(ctx, stores, func(ctx context.Context) error {
		states := c.app.States()
		names := make([]string, 0, len(states))
		for name := range states {
			names = append(names, name)
		}
		slices.Sort(names)

		c.io.Println("Collections:")
		for _, name := range names {
			c.io.Printf("  %-12s %s\n", name, strings.ToUpper(states[name].String()))
		}
		return nil
	})
}
