package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/bookclub/internal/client/bookclub"
	"github.com/iudanet/bookclub/internal/models"
)

func (c *Cli) reviewsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviews",
		Short: "Rate books and like other readers' reviews",
	}
	cmd.AddCommand(
		c.reviewsAddCommand(),
		c.reviewsListCommand(),
		c.reviewsUpdateCommand(),
		c.reviewsLikeCommand(),
		c.reviewsDeleteCommand(),
	)
	return cmd
}

func (c *Cli) reviewsAddCommand() *cobra.Command {
	var in bookclub.ReviewInput

	cmd := &cobra.Command{
		Use:   "add <book-id>",
		Short: "Review a book (one review per book)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.BookID = args[0]
			reviews := c.app.Reviews
			return c.withReader(cmd.Context(), []readiness{reviews.Store()}, func(ctx context.Context, _ models.Actor) error {
				res := reviews.AddReview(ctx, in)
				return c.report(res, "Review added: %s", res.ID)
			})
		},
	}
	cmd.Flags().IntVarP(&in.Rating, "rating", "r", 0, "Rating from 1 to 5")
	cmd.Flags().StringVarP(&in.Comment, "comment", "m", "", "Comment")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}

func (c *Cli) reviewsListCommand() *cobra.Command {
	var mine bool

	cmd := &cobra.Command{
		Use:   "list [book-id]",
		Short: "List the reviews of a book, or my reviews with --mine",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !mine && len(args) == 0 {
				return fmt.Errorf("book id is required unless --mine is set")
			}
			reviews := c.app.Reviews
			return c.withReader(cmd.Context(), []readiness{reviews.Store()}, func(ctx context.Context, actor models.Actor) error {
				var items []models.Review
				if mine {
					items = reviews.ReviewsByUser(actor.ID)
				} else {
					items = reviews.ReviewsForBook(args[0])
					if avg, n := reviews.AverageRating(args[0]); n > 0 {
						c.io.Printf("Average rating: %.1f (%d reviews)\n", avg, n)
					}
				}

				if len(items) == 0 {
					c.io.Println("No reviews found.")
					return nil
				}
				for _, r := range items {
					liked := ""
					if r.LikedByActor(actor.ID) {
						liked = " ♥"
					}
					c.io.Printf("  %s  %s  %s: %s (%d likes%s)\n", r.ID, stars(r.Rating), r.UserName, r.Comment, r.Likes, liked)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&mine, "mine", false, "Only my reviews")
	return cmd
}

func (c *Cli) reviewsUpdateCommand() *cobra.Command {
	var (
		rating  int
		comment string
	)

	cmd := &cobra.Command{
		Use:   "update <review-id>",
		Short: "Change the rating or comment of my review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reviews := c.app.Reviews
			return c.withReader(cmd.Context(), []readiness{reviews.Store()}, func(ctx context.Context, _ models.Actor) error {
				return c.report(reviews.UpdateReview(ctx, args[0], rating, comment), "Review updated")
			})
		},
	}
	cmd.Flags().IntVarP(&rating, "rating", "r", 0, "New rating from 1 to 5")
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "New comment")
	return cmd
}

func (c *Cli) reviewsLikeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "like <review-id>",
		Short: "Like a review, or take the like back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reviews := c.app.Reviews
			return c.withReader(cmd.Context(), []readiness{reviews.Store()}, func(ctx context.Context, _ models.Actor) error {
				res, liked := reviews.ToggleLike(ctx, args[0])
				if liked {
					return c.report(res, "Review liked")
				}
				return c.report(res, "Like removed")
			})
		},
	}
}

func (c *Cli) reviewsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <review-id>",
		Short: "Delete my review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reviews := c.app.Reviews
			return c.withReader(cmd.Context(), []readiness{reviews.Store()}, func(ctx context.Context, _ models.Actor) error {
				return c.report(reviews.DeleteReview(ctx, args[0]), "Review deleted")
			})
		},
	}
}

func (c *Cli) favoritesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "favorites",
		Aliases: []string{"fav"},
		Short:   "Mark books as favorites",
	}

	toggle := &cobra.Command{
		Use:   "toggle <book-id>",
		Short: "Add a book to favorites, or remove it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			favorites := c.app.Favorites
			return c.withReader(cmd.Context(), []readiness{favorites.Store()}, func(ctx context.Context, _ models.Actor) error {
				res, on := favorites.ToggleFavorite(ctx, args[0])
				if on {
					return c.report(res, "Added to favorites")
				}
				return c.report(res, "Removed from favorites")
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List my favorite books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			favorites := c.app.Favorites
			stores := []readiness{favorites.Store(), c.app.Livros.Store()}
			return c.withReader(cmd.Context(), stores, func(ctx context.Context, _ models.Actor) error {
				items := favorites.MyFavorites()
				if len(items) == 0 {
					c.io.Println("No favorites yet.")
					return nil
				}
				for _, f := range items {
					title := ""
					if l, ok := c.app.Livros.Livro(f.BookID); ok {
						title = l.Titulo
					}
					c.io.Printf("  %s  %s\n", f.BookID, title)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(toggle, list)
	return cmd
}
