package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iudanet/bookclub/internal/models"
)

func (c *Cli) stickersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stickers",
		Short: "Collect stickers and pick the one shown on your profile",
	}

	add := &cobra.Command{
		Use:   "add <image-url>",
		Short: "Add a sticker to my collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stickers := c.app.Stickers
			return c.withReader(cmd.Context(), []readiness{stickers.Store()}, func(ctx context.Context, _ models.Actor) error {
				res := stickers.AddSticker(ctx, args[0])
				return c.report(res, "Sticker added: %s", res.ID)
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List my stickers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stickers := c.app.Stickers
			return c.withReader(cmd.Context(), []readiness{stickers.Store()}, func(ctx context.Context, actor models.Actor) error {
				items := stickers.StickersOf(actor.ID)
				if len(items) == 0 {
					c.io.Println("No stickers yet.")
					return nil
				}
				for _, s := range items {
					mark := " "
					if s.Selected {
						mark = "*"
					}
					c.io.Printf("%s %s  %s\n", mark, s.ID, s.ImageURL)
				}
				return nil
			})
		},
	}

	sel := &cobra.Command{
		Use:   "select <id>",
		Short: "Show this sticker on my profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stickers := c.app.Stickers
			return c.withReader(cmd.Context(), []readiness{stickers.Store()}, func(ctx context.Context, _ models.Actor) error {
				return c.report(stickers.SelectSticker(ctx, args[0]), "Sticker selected")
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a sticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stickers := c.app.Stickers
			return c.withReader(cmd.Context(), []readiness{stickers.Store()}, func(ctx context.Context, _ models.Actor) error {
				return c.report(stickers.DeleteSticker(ctx, args[0]), "Sticker deleted")
			})
		},
	}

	cmd.AddCommand(add, list, sel, del)
	return cmd
}
